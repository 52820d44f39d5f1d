package models

import "time"

// TicketKind says what a ticket channel was opened for
type TicketKind string

const (
	TicketKindOrder       TicketKind = "order"
	TicketKindReport      TicketKind = "report"
	TicketKindApplication TicketKind = "tutor_application"
)

// ChannelPrefix is prepended to the channel name of a ticket of this kind
func (k TicketKind) ChannelPrefix() string {
	switch k {
	case TicketKindReport:
		return "report-"
	case TicketKindApplication:
		return "tutor-"
	default:
		return "order-"
	}
}

// TicketState tracks the private channel behind a ticket
type TicketState string

const (
	TicketStateCreating  TicketState = "creating"
	TicketStateActive    TicketState = "active"
	TicketStateCompleted TicketState = "completed"
	TicketStateCancelled TicketState = "cancelled"
)

// Ticket is a private channel opened on behalf of one requester
type Ticket struct {
	ID        string      `db:"id" json:"id"`
	Kind      TicketKind  `db:"kind" json:"kind"`
	GuildID   string      `db:"guild_id" json:"guild_id"`
	ChannelID string      `db:"channel_id" json:"channel_id"`
	Requester string      `db:"requester" json:"requester"`
	Name      string      `db:"name" json:"name"`
	Sequence  int64       `db:"sequence" json:"sequence"`
	State     TicketState `db:"state" json:"state"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	ClosedAt  *time.Time  `db:"closed_at" json:"closed_at,omitempty"`
}

// IsClosed reports whether the ticket reached a final state
func (t *Ticket) IsClosed() bool {
	return t.State == TicketStateCompleted || t.State == TicketStateCancelled
}
