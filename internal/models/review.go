package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rating bounds
const (
	MinRating = 1
	MaxRating = 5
)

// Review is the requester's feedback on a delivered order
type Review struct {
	ID        string    `db:"id" json:"id"`
	OrderID   string    `db:"order_id" json:"order_id"`
	Reviewer  string    `db:"reviewer" json:"reviewer"`
	Tutor     string    `db:"tutor" json:"tutor"`
	Rating    int       `db:"rating" json:"rating"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ParseRating accepts an integer from MinRating to MaxRating
func ParseRating(raw string) (int, error) {
	rating, err := strconv.Atoi(strings.TrimSpace(raw))

	if err != nil {
		return 0, fmt.Errorf("rating %q is not a whole number", raw)
	}

	if rating < MinRating || rating > MaxRating {
		return 0, fmt.Errorf("rating %d is outside %d-%d", rating, MinRating, MaxRating)
	}

	return rating, nil
}

// NewReview builds a review for order written by its requester
func NewReview(order *Order, rating int, text string) *Review {
	return &Review{
		ID:        NewRecordID(),
		OrderID:   order.ID,
		Reviewer:  order.Requester,
		Tutor:     order.Tutor(),
		Rating:    rating,
		Text:      strings.TrimSpace(text),
		CreatedAt: GetCurrentTime(),
	}
}
