package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vaidashi/hire-a-tutor/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDatabase  = errors.New("database error")
	ErrDuplicate = errors.New("duplicate record")
)

// StatusConflictError is returned when an order is not in a status the
// requested transition can start from
type StatusConflictError struct {
	OrderID  string
	Current  models.OrderStatus
	Expected []models.OrderStatus
	Target   models.OrderStatus
}

func (e *StatusConflictError) Error() string {
	expected := make([]string, len(e.Expected))
	for i, s := range e.Expected {
		expected[i] = string(s)
	}
	return fmt.Sprintf("order %s is %s, expected one of [%s] to move to %s",
		e.OrderID, e.Current, strings.Join(expected, ", "), e.Target)
}

// CheckTransition validates moving order from one of from to to
func CheckTransition(order *models.Order, from []models.OrderStatus, to models.OrderStatus) error {
	allowed := false
	for _, s := range from {
		if order.Status == s {
			allowed = true
			break
		}
	}

	if !allowed || !order.Status.CanTransitionTo(to) {
		return &StatusConflictError{OrderID: order.ID, Current: order.Status, Expected: from, Target: to}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func dbError(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return fmt.Errorf("%w: %v", ErrDatabase, err)
}

// withTx runs fn in a transaction, committing only when fn succeeds
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)

	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrDatabase, err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrDatabase, err)
	}

	return nil
}
