package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store bundles the repositories bound to one connection or transaction.
type Store struct {
	db DB

	Users          UserRepository
	Departments    DepartmentRepository
	Associates     AssociateRepository
	Tickets        TicketRepository
	Categories     CategoryRepository
	FollowUps      FollowUpRepository
	PasswordResets PasswordResetRepository
	Stats          StatsRepository
}

// NewStore builds Postgres-backed repositories over db.
func NewStore(db DB) *Store {
	return &Store{
		db:             db,
		Users:          NewUserRepository(db),
		Departments:    NewDepartmentRepository(db),
		Associates:     NewAssociateRepository(db),
		Tickets:        NewTicketRepository(db),
		Categories:     NewCategoryRepository(db),
		FollowUps:      NewFollowUpRepository(db),
		PasswordResets: NewPasswordResetRepository(db),
		Stats:          NewStatsRepository(db),
	}
}

// InTx runs fn against repositories bound to a single transaction.
// A Store assembled without a connection runs fn directly.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(NewStore(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
