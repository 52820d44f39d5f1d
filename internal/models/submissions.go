package models

import "time"

// SubmissionStatus is shared by reports and tutor applications
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusResolved SubmissionStatus = "resolved"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// Report is a user complaint collected through a report ticket
type Report struct {
	ID           string           `db:"id" json:"id"`
	TicketID     string           `db:"ticket_id" json:"ticket_id"`
	Reporter     string           `db:"reporter" json:"reporter"`
	ReportedUser string           `db:"reported_user" json:"reported_user"`
	Description  string           `db:"description" json:"description"`
	Evidence     string           `db:"evidence" json:"evidence"`
	Status       SubmissionStatus `db:"status" json:"status"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// TutorApplication is a sign-up request from a prospective tutor
type TutorApplication struct {
	ID         string           `db:"id" json:"id"`
	TicketID   string           `db:"ticket_id" json:"ticket_id"`
	Applicant  string           `db:"applicant" json:"applicant"`
	Subjects   string           `db:"subjects" json:"subjects"`
	Education  string           `db:"education" json:"education"`
	Experience string           `db:"experience" json:"experience"`
	Motivation string           `db:"motivation" json:"motivation"`
	Documents  string           `db:"documents" json:"documents"`
	Status     SubmissionStatus `db:"status" json:"status"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// Payment holds a student's latest proof of payment
type Payment struct {
	Student    string     `db:"student" json:"student"`
	OrderID    *string    `db:"order_id" json:"order_id,omitempty"`
	Proof      string     `db:"proof" json:"proof"`
	Verified   bool       `db:"verified" json:"verified"`
	VerifiedBy *string    `db:"verified_by" json:"verified_by,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	VerifiedAt *time.Time `db:"verified_at" json:"verified_at,omitempty"`
}

// BroadcastCopy is one delivered copy of an order alert
type BroadcastCopy struct {
	OrderID   string    `db:"order_id" json:"order_id"`
	ChannelID string    `db:"channel_id" json:"channel_id"`
	MessageID string    `db:"message_id" json:"message_id"`
	Direct    bool      `db:"direct" json:"direct"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
