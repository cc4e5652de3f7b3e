package events

import (
	"time"

	"github.com/spec-kit/query-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventQuerySubmitted EventType = "query_submitted"
	EventQueryClosed    EventType = "query_closed"
)

// Actor identifies who triggered an event.
type Actor struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	QueryID   string      `json:"query_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// QuerySubmittedPayload payload.
type QuerySubmittedPayload struct {
	ClientEmail   string `json:"client_email"`
	Heading       string `json:"heading"`
	HasScreenshot bool   `json:"has_screenshot"`
}

// QueryClosedPayload payload.
type QueryClosedPayload struct {
	ClientEmail string    `json:"client_email"`
	DateRaised  time.Time `json:"date_raised"`
	DateClosed  time.Time `json:"date_closed"`
}
