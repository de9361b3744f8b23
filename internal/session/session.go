// Package session keeps short-lived booking conversation state per caller.
package session

import (
	"context"
	"time"
)

// Step is the position of a caller inside the booking conversation.
type Step string

const (
	StepIdle          Step = "idle"
	StepChooseService Step = "choose_service"
	StepChooseDate    Step = "choose_date"
	StepChooseSlot    Step = "choose_slot"
	StepConfirm       Step = "confirm"
)

// DefaultTTL is how long an idle conversation survives.
const DefaultTTL = 30 * time.Minute

// Session holds the choices a caller made so far.
type Session struct {
	CallerID   string            `json:"caller_id"`
	BusinessID int64             `json:"business_id"`
	Step       Step              `json:"step"`
	ResourceID int64             `json:"resource_id,omitempty"`
	ServiceID  int64             `json:"service_id,omitempty"`
	Date       string            `json:"date,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Store persists sessions with an expiry. Get returns nil, nil for a missing
// or expired session.
type Store interface {
	Get(ctx context.Context, callerID string) (*Session, error)
	Set(ctx context.Context, s *Session) error
	Clear(ctx context.Context, callerID string) error
}
