package infra

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventMessage is the JSON document published on the events channel.
type EventMessage struct {
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`

	// Recipients of the websocket push.
	UserIDs []uint   `json:"userIds,omitempty"`
	Roles   []string `json:"roles,omitempty"`
}

// EventPublisher forwards domain events to a Redis pub/sub channel so other
// processes (reporting jobs, other API instances) can follow them.
type EventPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewEventPublisher(rdb *redis.Client, channel string) *EventPublisher {
	return &EventPublisher{rdb: rdb, channel: channel}
}

func (p *EventPublisher) Publish(ctx context.Context, msg EventMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, payload).Err()
}

// StartEventSubscriber relays messages from the events channel to handle
// until ctx is cancelled.
func StartEventSubscriber(ctx context.Context, rdb *redis.Client, channel string, handle func(EventMessage)) error {
	pubsub := rdb.Subscribe(ctx, channel)

	// Wait for confirmation that subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Printf("EventSubscriber: listening on %s", channel)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var em EventMessage
				if err := json.Unmarshal([]byte(msg.Payload), &em); err != nil {
					log.Printf("EventSubscriber: bad payload: %v", err)
					continue
				}
				handle(em)
			}
		}
	}()
	return nil
}
