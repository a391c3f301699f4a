package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-service/internal/domain"
)

// FollowUpRepository persists ticket follow-ups.
type FollowUpRepository interface {
	Create(ctx context.Context, followUp *domain.FollowUp) error
	Update(ctx context.Context, followUp *domain.FollowUp) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.FollowUp, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.FollowUp, error)
}

type followUpRepository struct {
	db DB
}

// NewFollowUpRepository constructs the repository.
func NewFollowUpRepository(db DB) FollowUpRepository {
	return &followUpRepository{db: db}
}

func (r *followUpRepository) Create(ctx context.Context, followUp *domain.FollowUp) error {
	const query = `
        INSERT INTO follow_ups (ticket_id, notes, file)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query, followUp.TicketID, followUp.Notes, followUp.File).
		Scan(&followUp.ID, &followUp.CreatedAt)
}

func (r *followUpRepository) Update(ctx context.Context, followUp *domain.FollowUp) error {
	cmd, err := r.db.Exec(ctx, `UPDATE follow_ups SET notes=$1, file=$2 WHERE id=$3`,
		followUp.Notes, followUp.File, followUp.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *followUpRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM follow_ups WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *followUpRepository) GetByID(ctx context.Context, id string) (*domain.FollowUp, error) {
	var f domain.FollowUp
	err := r.db.QueryRow(ctx, `SELECT id, ticket_id, notes, file, created_at FROM follow_ups WHERE id=$1`, id).
		Scan(&f.ID, &f.TicketID, &f.Notes, &f.File, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *followUpRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.FollowUp, error) {
	const query = `
        SELECT id, ticket_id, notes, file, created_at
        FROM follow_ups WHERE ticket_id=$1
        ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.FollowUp
	for rows.Next() {
		var f domain.FollowUp
		if err := rows.Scan(&f.ID, &f.TicketID, &f.Notes, &f.File, &f.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}
