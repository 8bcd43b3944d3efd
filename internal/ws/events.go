package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/dlsarena/backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const matchEventsChannel = "match_events"

// Publisher fans match events out to every API instance through Redis.
// Without Redis it delivers straight to the local hub.
type Publisher struct {
	rdb *redis.Client
	hub *Hub
}

func NewPublisher(rdb *redis.Client, hub *Hub) *Publisher {
	return &Publisher{rdb: rdb, hub: hub}
}

func (p *Publisher) Publish(ctx context.Context, event models.MatchEvent) {
	if p.rdb == nil {
		p.deliver(event)
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[WS] Failed to encode %s event: %v", event.Type, err)
		return
	}
	if err := p.rdb.Publish(ctx, matchEventsChannel, payload).Err(); err != nil {
		log.Printf("[WS] Failed to publish %s for match %s: %v", event.Type, event.MatchID, err)
	}
}

func (p *Publisher) deliver(event models.MatchEvent) {
	if p.hub == nil {
		return
	}
	for _, userID := range event.Recipients {
		p.hub.SendToUser(userID, event)
	}
}

// StartSubscriber relays match_events messages to connected users until
// ctx is cancelled.
func (p *Publisher) StartSubscriber(ctx context.Context) {
	if p.rdb == nil {
		log.Println("[WS] Redis client not set; match event subscriber not started")
		return
	}

	pubsub := p.rdb.Subscribe(ctx, matchEventsChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Println("[WS] match_events subscriber started")
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event models.MatchEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("[WS] invalid event payload: %v", err)
					continue
				}
				log.Printf("[WS] event received: type=%s match_id=%s", event.Type, event.MatchID)
				p.deliver(event)
			}
		}
	}()
}
