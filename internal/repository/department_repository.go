package repository

import (
	"context"

	"github.com/spec-kit/crm-service/internal/domain"
)

// DepartmentRepository manages organizer departments.
type DepartmentRepository interface {
	GetOrCreateForUser(ctx context.Context, userID string) (*domain.UserDepartment, error)
	GetByID(ctx context.Context, id string) (*domain.UserDepartment, error)
	GetByUserID(ctx context.Context, userID string) (*domain.UserDepartment, error)
}

type departmentRepository struct {
	db DB
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(db DB) DepartmentRepository {
	return &departmentRepository{db: db}
}

// GetOrCreateForUser returns the user's department, inserting it when missing.
func (r *departmentRepository) GetOrCreateForUser(ctx context.Context, userID string) (*domain.UserDepartment, error) {
	const query = `
        INSERT INTO user_departments (user_id)
        VALUES ($1)
        ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
        RETURNING id, user_id, created_at`
	var dept domain.UserDepartment
	if err := r.db.QueryRow(ctx, query, userID).Scan(&dept.ID, &dept.UserID, &dept.CreatedAt); err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepository) GetByID(ctx context.Context, id string) (*domain.UserDepartment, error) {
	return r.fetchSingle(ctx, `SELECT id, user_id, created_at FROM user_departments WHERE id=$1`, id)
}

func (r *departmentRepository) GetByUserID(ctx context.Context, userID string) (*domain.UserDepartment, error) {
	return r.fetchSingle(ctx, `SELECT id, user_id, created_at FROM user_departments WHERE user_id=$1`, userID)
}

func (r *departmentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.UserDepartment, error) {
	var dept domain.UserDepartment
	if err := r.db.QueryRow(ctx, query, arg).Scan(&dept.ID, &dept.UserID, &dept.CreatedAt); err != nil {
		return nil, err
	}
	return &dept, nil
}
