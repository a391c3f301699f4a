package repository

import (
	"context"
	"fmt"

	"github.com/spec-kit/crm-service/internal/domain"
)

// CategoryRepository stores the lifecycle stages.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	GetByName(ctx context.Context, name domain.CategoryName) (*domain.Category, error)
	GetOrCreate(ctx context.Context, name domain.CategoryName) (*domain.Category, error)
	Count(ctx context.Context) (int, error)
	ListWithCounts(ctx context.Context, scope domain.Scope) ([]domain.CategoryCount, error)
}

type categoryRepository struct {
	db DB
}

// NewCategoryRepository builds the repository.
func NewCategoryRepository(db DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	const query = `
        INSERT INTO categories (name)
        VALUES ($1)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query, string(category.Name)).Scan(&category.ID, &category.CreatedAt)
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	return r.fetchSingle(ctx, `SELECT id, name, created_at FROM categories WHERE id=$1`, id)
}

func (r *categoryRepository) GetByName(ctx context.Context, name domain.CategoryName) (*domain.Category, error) {
	return r.fetchSingle(ctx, `SELECT id, name, created_at FROM categories WHERE name=$1`, string(name))
}

// GetOrCreate returns the named row, inserting it on first use.
func (r *categoryRepository) GetOrCreate(ctx context.Context, name domain.CategoryName) (*domain.Category, error) {
	const query = `
        INSERT INTO categories (name)
        VALUES ($1)
        ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
        RETURNING id, name, created_at`
	return r.fetchSingle(ctx, query, string(name))
}

func (r *categoryRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count)
	return count, err
}

// ListWithCounts returns every category with the number of in-scope tickets it holds.
func (r *categoryRepository) ListWithCounts(ctx context.Context, scope domain.Scope) ([]domain.CategoryCount, error) {
	args := []any{scope.DepartmentID}
	join := "t.category_id = c.id AND t.department_id = $1"
	if scope.AssociateID != nil {
		args = append(args, *scope.AssociateID)
		join += fmt.Sprintf(" AND t.associate_id = $%d", len(args))
	}
	query := fmt.Sprintf(`
        SELECT c.id, c.name, c.created_at, COUNT(t.id)
        FROM categories c
        LEFT JOIN tickets t ON %s
        GROUP BY c.id, c.name, c.created_at
        ORDER BY c.created_at ASC`, join)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CategoryCount
	for rows.Next() {
		var (
			item domain.CategoryCount
			name string
		)
		if err := rows.Scan(&item.ID, &name, &item.CreatedAt, &item.Count); err != nil {
			return nil, err
		}
		item.Name = domain.CategoryName(name)
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *categoryRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Category, error) {
	var (
		category domain.Category
		name     string
	)
	if err := r.db.QueryRow(ctx, query, arg).Scan(&category.ID, &name, &category.CreatedAt); err != nil {
		return nil, err
	}
	category.Name = domain.CategoryName(name)
	return &category, nil
}
