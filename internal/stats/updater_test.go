package stats

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	redisstore "github.com/dlsarena/backend/internal/redis"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUpdater(t *testing.T) (*Updater, sqlmock.Sqlmock, *redisstore.Leaderboard) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	board := redisstore.NewLeaderboard(rdb)

	return NewUpdater(sqlx.NewDb(db, "postgres"), board), mock, board
}

func TestRecordOutcome(t *testing.T) {
	u, mock, board := newTestUpdater(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("total_wins = user_stats.total_wins + 1")).
		WithArgs("alice", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("total_losses = user_stats.total_losses + 1")).
		WithArgs("bob").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, u.RecordOutcome(ctx, "alice", "bob", decimal.NewFromInt(2)))
	assert.NoError(t, mock.ExpectationsWereMet())

	rank, err := board.Rank(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rank)
	assert.Equal(t, int64(1), u.Rank(ctx, "alice"))
	assert.Equal(t, int64(0), u.Rank(ctx, "bob"))
}

func TestRecordOutcomeRollsBackOnFailure(t *testing.T) {
	u, mock, board := newTestUpdater(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO user_stats").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_stats").WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := u.RecordOutcome(context.Background(), "alice", "bob", decimal.NewFromInt(2))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	rank, _ := board.Rank(context.Background(), "alice")
	assert.Zero(t, rank, "leaderboard untouched when the transaction fails")
}

func TestGetUserStats(t *testing.T) {
	u, mock, _ := newTestUpdater(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_stats WHERE user_id = $1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "total_games", "total_wins", "total_losses", "total_earnings", "top_earnings"}).
			AddRow("alice", 3, 2, 1, "4.00000000", "2.00000000"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_stats WHERE user_id = $1")).
		WithArgs("newbie").
		WillReturnError(sql.ErrNoRows)

	s, err := u.GetUserStats(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, s.TotalGames)
	assert.Equal(t, 67, s.WinRate())
	assert.True(t, s.TotalEarnings.Equal(decimal.NewFromInt(4)))

	s, err = u.GetUserStats(context.Background(), "newbie")
	require.NoError(t, err)
	assert.Zero(t, s.TotalGames)
	assert.True(t, s.TotalEarnings.IsZero())
}

func TestLeaderboardComputesWinRate(t *testing.T) {
	u, mock, _ := newTestUpdater(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.total_games > 0")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name", "total_earnings", "total_games", "total_wins"}).
			AddRow("alice", "Alice", "10", 4, 3).
			AddRow("bob", "Bob", "2", 2, 1))

	entries, err := u.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 75, entries[0].WinRate)
	assert.Equal(t, 50, entries[1].WinRate)
}

func TestSyncLeaderboard(t *testing.T) {
	u, mock, board := newTestUpdater(t)
	ctx := context.Background()
	require.NoError(t, board.AddEarnings(ctx, "ghost", decimal.NewFromInt(99)))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, total_earnings FROM user_stats")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "total_earnings"}).
			AddRow("alice", "10").
			AddRow("bob", "12"))

	require.NoError(t, u.SyncLeaderboard(ctx))

	for user, want := range map[string]int64{"bob": 1, "alice": 2, "ghost": 0} {
		rank, err := board.Rank(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, want, rank, user)
	}
}

func TestNilBoardIsTolerated(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	u := NewUpdater(sqlx.NewDb(db, "postgres"), nil)

	assert.NoError(t, u.SyncLeaderboard(context.Background()))
	assert.Zero(t, u.Rank(context.Background(), "alice"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
