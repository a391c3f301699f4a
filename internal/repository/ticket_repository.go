package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-service/internal/domain"
)

// TicketFilter captures list parameters. Scope fields are mandatory for
// user-facing queries and are applied by the service layer.
type TicketFilter struct {
	DepartmentID  *string
	AssociateID   *string
	Assigned      *bool
	CategoryID    *string
	Uncategorized bool
	CreatedFrom   *time.Time
	Limit         int
	Offset        int
}

// ScopeFilter turns a visibility scope into a filter.
func ScopeFilter(scope domain.Scope) TicketFilter {
	dept := scope.DepartmentID
	return TicketFilter{DepartmentID: &dept, AssociateID: scope.AssociateID}
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	ReleaseAssociate(ctx context.Context, associateID string) (int64, error)
}

type ticketRepository struct {
	db DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DB) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketSelect = `
        SELECT t.id, t.title, t.type, t.description, t.uploaded_file, t.uploaded_image,
               t.department_id, t.associate_id, t.category_id, c.name,
               t.created_at, t.updated_at, t.completed_at
        FROM tickets t
        LEFT JOIN categories c ON c.id = t.category_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, type, description, uploaded_file, uploaded_image, department_id, associate_id, category_id, completed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Title,
		int16(ticket.Type),
		ticket.Description,
		ticket.UploadedFile,
		ticket.UploadedImage,
		ticket.DepartmentID,
		ticket.AssociateID,
		ticket.CategoryID,
		ticket.CompletedAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, type=$2, description=$3, uploaded_file=$4, uploaded_image=$5,
            associate_id=$6, category_id=$7, completed_at=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.Title,
		int16(ticket.Type),
		ticket.Description,
		ticket.UploadedFile,
		ticket.UploadedImage,
		ticket.AssociateID,
		ticket.CategoryID,
		ticket.CompletedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return err
}

// Delete removes the ticket; follow-ups go with it through ON DELETE CASCADE.
func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return scanTicket(r.db.QueryRow(ctx, ticketSelect+` WHERE t.id=$1`, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := filter.clauses()
	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.created_at DESC`, ticketSelect, where)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	where, args := filter.clauses()
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets t WHERE `+where, args...).Scan(&count)
	return count, err
}

// ReleaseAssociate unassigns every ticket held by the associate. The category is
// cleared with it so that an unassigned ticket never carries one.
func (r *ticketRepository) ReleaseAssociate(ctx context.Context, associateID string) (int64, error) {
	const query = `
        UPDATE tickets SET associate_id=NULL, category_id=NULL, updated_at=NOW()
        WHERE associate_id=$1`
	cmd, err := r.db.Exec(ctx, query, associateID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (f TicketFilter) clauses() (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if f.DepartmentID != nil {
		args = append(args, *f.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("t.department_id=$%d", len(args)))
	}
	if f.AssociateID != nil {
		args = append(args, *f.AssociateID)
		clauses = append(clauses, fmt.Sprintf("t.associate_id=$%d", len(args)))
	}
	if f.Assigned != nil {
		if *f.Assigned {
			clauses = append(clauses, "t.associate_id IS NOT NULL")
		} else {
			clauses = append(clauses, "t.associate_id IS NULL")
		}
	}
	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		clauses = append(clauses, fmt.Sprintf("t.category_id=$%d", len(args)))
	}
	if f.Uncategorized {
		clauses = append(clauses, "t.category_id IS NULL")
	}
	if f.CreatedFrom != nil {
		args = append(args, *f.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("t.created_at >= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket       domain.Ticket
		ticketType   int16
		categoryName *string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticketType,
		&ticket.Description,
		&ticket.UploadedFile,
		&ticket.UploadedImage,
		&ticket.DepartmentID,
		&ticket.AssociateID,
		&ticket.CategoryID,
		&categoryName,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.CompletedAt,
	); err != nil {
		return nil, err
	}
	ticket.Type = domain.TicketType(ticketType)
	if categoryName != nil {
		name := domain.CategoryName(*categoryName)
		ticket.Category = &name
	}
	return &ticket, nil
}
