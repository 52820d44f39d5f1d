package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vaidashi/hire-a-tutor/internal/database"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// SubmissionRepository stores reports, tutor applications and payment proofs
type SubmissionRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewSubmissionRepository creates a new SubmissionRepository
func NewSubmissionRepository(db *database.Database, logger logger.Logger) *SubmissionRepository {
	return &SubmissionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateReport inserts a user report
func (r *SubmissionRepository) CreateReport(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (id, ticket_id, reporter, reported_user, description, evidence, status, created_at)
		VALUES (:id, :ticket_id, :reporter, :reported_user, :description, :evidence, :status, :created_at)
	`

	if _, err := r.db.DB.NamedExecContext(ctx, query, report); err != nil {
		r.logger.Error("Failed to create report", "error", err, "reportID", report.ID)
		return dbError(err)
	}

	return nil
}

// CreateApplication inserts a tutor application
func (r *SubmissionRepository) CreateApplication(ctx context.Context, app *models.TutorApplication) error {
	query := `
		INSERT INTO tutor_applications (id, ticket_id, applicant, subjects, education, experience, motivation, documents, status, created_at)
		VALUES (:id, :ticket_id, :applicant, :subjects, :education, :experience, :motivation, :documents, :status, :created_at)
	`

	if _, err := r.db.DB.NamedExecContext(ctx, query, app); err != nil {
		r.logger.Error("Failed to create tutor application", "error", err, "applicationID", app.ID)
		return dbError(err)
	}

	return nil
}

// UpsertPayment replaces the student's proof of payment and clears any
// earlier verification
func (r *SubmissionRepository) UpsertPayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (student, order_id, proof, verified, verified_by, created_at, verified_at)
		VALUES (:student, :order_id, :proof, FALSE, NULL, :created_at, NULL)
		ON CONFLICT (student) DO UPDATE
		SET order_id = EXCLUDED.order_id, proof = EXCLUDED.proof, verified = FALSE,
			verified_by = NULL, created_at = EXCLUDED.created_at, verified_at = NULL
	`

	if _, err := r.db.DB.NamedExecContext(ctx, query, p); err != nil {
		r.logger.Error("Failed to store payment proof", "error", err, "student", p.Student)
		return dbError(err)
	}

	p.Verified = false
	p.VerifiedBy = nil
	p.VerifiedAt = nil
	return nil
}

// GetPayment retrieves the student's latest proof
func (r *SubmissionRepository) GetPayment(ctx context.Context, student string) (*models.Payment, error) {
	query := `
		SELECT student, order_id, proof, verified, verified_by, created_at, verified_at
		FROM payments
		WHERE student = $1
	`

	var p models.Payment
	err := r.db.DB.GetContext(ctx, &p, query, student)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get payment", "error", err, "student", student)
		return nil, dbError(err)
	}

	return &p, nil
}

// VerifyPayment marks the student's proof as checked by admin
func (r *SubmissionRepository) VerifyPayment(ctx context.Context, student string, admin string) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET verified = TRUE, verified_by = $1, verified_at = $2
		WHERE student = $3
		RETURNING student, order_id, proof, verified, verified_by, created_at, verified_at
	`

	var p models.Payment
	err := r.db.DB.GetContext(ctx, &p, query, admin, models.GetCurrentTime(), student)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to verify payment", "error", err, "student", student)
		return nil, dbError(err)
	}

	return &p, nil
}
