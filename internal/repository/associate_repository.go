package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-service/internal/domain"
)

// AssociateRepository handles persistence for associates and their users.
type AssociateRepository interface {
	Create(ctx context.Context, associate *domain.Associate) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Associate, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Associate, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]domain.Associate, error)
}

type associateRepository struct {
	db DB
}

// NewAssociateRepository instantiates the repository.
func NewAssociateRepository(db DB) AssociateRepository {
	return &associateRepository{db: db}
}

const associateSelect = `
        SELECT a.id, a.user_id, a.department_id, a.created_at,
               u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash,
               u.is_organizer, u.is_associate, u.created_at, u.updated_at
        FROM associates a
        JOIN users u ON u.id = a.user_id`

func (r *associateRepository) Create(ctx context.Context, associate *domain.Associate) error {
	const query = `
        INSERT INTO associates (user_id, department_id)
        VALUES ($1, $2)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query, associate.UserID, associate.DepartmentID).
		Scan(&associate.ID, &associate.CreatedAt)
}

func (r *associateRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM associates WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *associateRepository) GetByID(ctx context.Context, id string) (*domain.Associate, error) {
	return r.fetchSingle(ctx, associateSelect+` WHERE a.id=$1`, id)
}

func (r *associateRepository) GetByUserID(ctx context.Context, userID string) (*domain.Associate, error) {
	return r.fetchSingle(ctx, associateSelect+` WHERE a.user_id=$1`, userID)
}

func (r *associateRepository) ListByDepartment(ctx context.Context, departmentID string) ([]domain.Associate, error) {
	rows, err := r.db.Query(ctx, associateSelect+` WHERE a.department_id=$1 ORDER BY a.created_at ASC`, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Associate
	for rows.Next() {
		associate, err := scanAssociate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *associate)
	}
	return result, rows.Err()
}

func (r *associateRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Associate, error) {
	return scanAssociate(r.db.QueryRow(ctx, query, arg))
}

func scanAssociate(row pgx.Row) (*domain.Associate, error) {
	var (
		associate domain.Associate
		user      domain.User
	)
	targets := append([]any{
		&associate.ID,
		&associate.UserID,
		&associate.DepartmentID,
		&associate.CreatedAt,
	}, userScanTargets(&user)...)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	associate.User = &user
	return &associate, nil
}
