// AngelaMos | 2026
// envelope.go

package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxTries = 3
	DefaultTimeout  = 120 * time.Second
)

// Envelope is the unit stored on the stream. Payload stays raw so the
// queue never needs to know job argument types.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	MaxTries   int             `json:"max_tries"`
	Timeout    time.Duration   `json:"timeout"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

type Options struct {
	MaxTries int
	Timeout  time.Duration
}

func NewEnvelope(jobType string, payload any, opts Options) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", jobType, err)
	}

	if opts.MaxTries <= 0 {
		opts.MaxTries = DefaultMaxTries
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Envelope{
		ID:         uuid.New().String(),
		Type:       jobType,
		Payload:    raw,
		MaxTries:   opts.MaxTries,
		Timeout:    opts.Timeout,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

func (e *Envelope) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

func (e *Envelope) Exhausted() bool {
	return e.Attempt >= e.MaxTries
}

func parseEnvelope(data string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("unmarshal envelope: missing type")
	}
	return &env, nil
}

func mustJSON(env *Envelope, fallback string) string {
	data, err := json.Marshal(env)
	if err != nil {
		return fallback
	}
	return string(data)
}
