package store

import (
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrConflict       = errors.New("match status changed")
	ErrDuplicateCode  = errors.New("join code already in use")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrDuplicateDLSID = errors.New("dls id already linked to another user")
)

// Settlement is what a completed match records
type Settlement struct {
	WinnerID    string
	LoserID     string
	PlatformFee decimal.Decimal
	ExternalRef string
	CompletedAt time.Time
}

// Store is the Postgres repository for users and matches
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}
