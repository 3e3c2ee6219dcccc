// Package handoff announces accepted utterances to downstream consumers
// through a Redis list.
package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
)

const DefaultKey = "aria:utterances"

var ErrNoClient = errors.New("handoff: no redis client")

// Ready is the message pushed for each accepted utterance.
type Ready struct {
	ID         uuid.UUID     `json:"id"`
	SessionID  uuid.UUID     `json:"sessionId"`
	Path       string        `json:"path"`
	SampleRate int           `json:"sampleRate"`
	Duration   time.Duration `json:"duration"`
	Transcript string        `json:"transcript,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

type Publisher struct {
	rc  *redis.Client
	key string
}

func New(rc *redis.Client, key string) *Publisher {
	if key == "" {
		key = DefaultKey
	}
	return &Publisher{rc: rc, key: key}
}

// Key is the list messages are appended to.
func (p *Publisher) Key() string {
	return p.key
}

// Publish appends msg to the tail of the list, so consumers BLPOP in
// capture order.
func (p *Publisher) Publish(ctx context.Context, msg Ready) error {
	if p.rc == nil {
		return ErrNoClient
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("handoff: encode: %w", err)
	}
	if err := p.rc.WithContext(ctx).RPush(p.key, payload).Err(); err != nil {
		return fmt.Errorf("handoff: push to %s: %w", p.key, err)
	}
	return nil
}
