// Package repositorytest provides in-memory repositories for tests of the
// layers above the database.
package repositorytest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
)

// Epoch is the creation time of the first row; each later row is one minute newer.
var Epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// DB is a tiny in-memory stand-in for the Postgres schema. Rows are
// copied in and out so callers never share pointers with the store.
type DB struct {
	mu         sync.Mutex
	seq        int
	users      map[string]domain.User
	depts      map[string]domain.UserDepartment
	associates map[string]domain.Associate
	tickets    map[string]domain.Ticket
	categories map[string]domain.Category
	followUps  map[string]domain.FollowUp
	resets     map[string]repository.PasswordResetToken
}

// New returns an empty database.
func New() *DB {
	return &DB{
		users:      map[string]domain.User{},
		depts:      map[string]domain.UserDepartment{},
		associates: map[string]domain.Associate{},
		tickets:    map[string]domain.Ticket{},
		categories: map[string]domain.Category{},
		followUps:  map[string]domain.FollowUp{},
		resets:     map[string]repository.PasswordResetToken{},
	}
}

// next returns a fresh id and a creation time that grows with it.
func (m *DB) next(prefix string) (string, time.Time) {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq), Epoch.Add(time.Duration(m.seq) * time.Minute)
}

// Store returns repositories backed by the database. Its InTx runs inline.
func (m *DB) Store() *repository.Store {
	return &repository.Store{
		Users:          memUsers{m},
		Departments:    memDepartments{m},
		Associates:     memAssociates{m},
		Tickets:        memTickets{m},
		Categories:     memCategories{m},
		FollowUps:      memFollowUps{m},
		PasswordResets: memResets{m},
		Stats:          memStats{m},
	}
}

type memUsers struct{ m *DB }

func (r memUsers) Create(_ context.Context, user *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Username == user.Username {
			return uniqueViolation("users_username_key")
		}
		if strings.EqualFold(u.Email, user.Email) {
			return uniqueViolation("users_email_key")
		}
	}
	user.ID, user.CreatedAt = r.m.next("user")
	user.UpdatedAt = user.CreatedAt
	r.m.users[user.ID] = *user
	return nil
}

func (r memUsers) Update(_ context.Context, user *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.m.users[user.ID] = *user
	return nil
}

func (r memUsers) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.m.users, id)
	return nil
}

func (r memUsers) find(match func(domain.User) bool) (*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r memUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r memUsers) GetByLogin(_ context.Context, login string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == login || strings.EqualFold(u.Email, login) })
}

type memDepartments struct{ m *DB }

func (r memDepartments) GetOrCreateForUser(_ context.Context, userID string) (*domain.UserDepartment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, d := range r.m.depts {
		if d.UserID == userID {
			found := d
			return &found, nil
		}
	}
	d := domain.UserDepartment{UserID: userID}
	d.ID, d.CreatedAt = r.m.next("dept")
	r.m.depts[d.ID] = d
	return &d, nil
}

func (r memDepartments) GetByID(_ context.Context, id string) (*domain.UserDepartment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if d, ok := r.m.depts[id]; ok {
		return &d, nil
	}
	return nil, pgx.ErrNoRows
}

func (r memDepartments) GetByUserID(_ context.Context, userID string) (*domain.UserDepartment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, d := range r.m.depts {
		if d.UserID == userID {
			found := d
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memAssociates struct{ m *DB }

func (r memAssociates) Create(_ context.Context, associate *domain.Associate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	associate.ID, associate.CreatedAt = r.m.next("assoc")
	row := *associate
	row.User = nil
	r.m.associates[row.ID] = row
	return nil
}

func (r memAssociates) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.associates[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.m.associates, id)
	return nil
}

// joined attaches the user row like the JOIN in the SQL repository. Callers hold the lock.
func (r memAssociates) joined(a domain.Associate) *domain.Associate {
	if u, ok := r.m.users[a.UserID]; ok {
		a.User = &u
	}
	return &a
}

func (r memAssociates) GetByID(_ context.Context, id string) (*domain.Associate, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if a, ok := r.m.associates[id]; ok {
		return r.joined(a), nil
	}
	return nil, pgx.ErrNoRows
}

func (r memAssociates) GetByUserID(_ context.Context, userID string) (*domain.Associate, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.associates {
		if a.UserID == userID {
			return r.joined(a), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memAssociates) ListByDepartment(_ context.Context, departmentID string) ([]domain.Associate, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.Associate
	for _, a := range r.m.associates {
		if a.DepartmentID == departmentID {
			out = append(out, *r.joined(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memTickets struct{ m *DB }

func (r memTickets) row(t *domain.Ticket) domain.Ticket {
	row := *t
	row.Category = nil
	row.Associate = nil
	row.FollowUps = nil
	return row
}

// joined resolves the category name like the LEFT JOIN in the SQL repository.
func (r memTickets) joined(t domain.Ticket) *domain.Ticket {
	if t.CategoryID != nil {
		if c, ok := r.m.categories[*t.CategoryID]; ok {
			name := c.Name
			t.Category = &name
		}
	}
	return &t
}

func (r memTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ticket.ID, ticket.CreatedAt = r.m.next("ticket")
	ticket.UpdatedAt = ticket.CreatedAt
	r.m.tickets[ticket.ID] = r.row(ticket)
	return nil
}

func (r memTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	row := r.row(ticket)
	row.CreatedAt = stored.CreatedAt
	r.m.tickets[ticket.ID] = row
	return nil
}

func (r memTickets) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.m.tickets, id)
	for fid, f := range r.m.followUps {
		if f.TicketID == id {
			delete(r.m.followUps, fid)
		}
	}
	return nil
}

func (r memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t, ok := r.m.tickets[id]; ok {
		return r.joined(t), nil
	}
	return nil, pgx.ErrNoRows
}

func matches(t domain.Ticket, f repository.TicketFilter) bool {
	switch {
	case f.DepartmentID != nil && t.DepartmentID != *f.DepartmentID:
		return false
	case f.AssociateID != nil && (t.AssociateID == nil || *t.AssociateID != *f.AssociateID):
		return false
	case f.Assigned != nil && *f.Assigned != (t.AssociateID != nil):
		return false
	case f.CategoryID != nil && (t.CategoryID == nil || *t.CategoryID != *f.CategoryID):
		return false
	case f.Uncategorized && t.CategoryID != nil:
		return false
	case f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom):
		return false
	}
	return true
}

func (r memTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.m.tickets {
		if matches(t, filter) {
			out = append(out, *r.joined(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memTickets) Count(ctx context.Context, filter repository.TicketFilter) (int, error) {
	list, err := r.List(ctx, filter)
	return len(list), err
}

func (r memTickets) ReleaseAssociate(_ context.Context, associateID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, t := range r.m.tickets {
		if t.AssociateID != nil && *t.AssociateID == associateID {
			t.AssociateID = nil
			t.CategoryID = nil
			r.m.tickets[id] = t
			n++
		}
	}
	return n, nil
}

type memCategories struct{ m *DB }

func (r memCategories) Create(_ context.Context, category *domain.Category) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, c := range r.m.categories {
		if c.Name == category.Name {
			return uniqueViolation("categories_name_key")
		}
	}
	category.ID, category.CreatedAt = r.m.next("cat")
	r.m.categories[category.ID] = *category
	return nil
}

func (r memCategories) GetByID(_ context.Context, id string) (*domain.Category, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c, ok := r.m.categories[id]; ok {
		return &c, nil
	}
	return nil, pgx.ErrNoRows
}

func (r memCategories) GetByName(_ context.Context, name domain.CategoryName) (*domain.Category, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, c := range r.m.categories {
		if c.Name == name {
			found := c
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memCategories) GetOrCreate(ctx context.Context, name domain.CategoryName) (*domain.Category, error) {
	if c, err := r.GetByName(ctx, name); err == nil {
		return c, nil
	}
	c := &domain.Category{Name: name}
	return c, r.Create(ctx, c)
}

func (r memCategories) Count(_ context.Context) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return len(r.m.categories), nil
}

func (r memCategories) ListWithCounts(_ context.Context, scope domain.Scope) ([]domain.CategoryCount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	filter := repository.ScopeFilter(scope)
	var out []domain.CategoryCount
	for _, c := range r.m.categories {
		count := 0
		for _, t := range r.m.tickets {
			if t.CategoryID != nil && *t.CategoryID == c.ID && matches(t, filter) {
				count++
			}
		}
		out = append(out, domain.CategoryCount{Category: c, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memFollowUps struct{ m *DB }

func (r memFollowUps) Create(_ context.Context, followUp *domain.FollowUp) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.tickets[followUp.TicketID]; !ok {
		return &pgconn.PgError{Code: "23503", ConstraintName: "followups_ticket_id_fkey"}
	}
	followUp.ID, followUp.CreatedAt = r.m.next("followup")
	r.m.followUps[followUp.ID] = *followUp
	return nil
}

func (r memFollowUps) Update(_ context.Context, followUp *domain.FollowUp) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.followUps[followUp.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.m.followUps[followUp.ID] = *followUp
	return nil
}

func (r memFollowUps) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.followUps[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.m.followUps, id)
	return nil
}

func (r memFollowUps) GetByID(_ context.Context, id string) (*domain.FollowUp, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if f, ok := r.m.followUps[id]; ok {
		return &f, nil
	}
	return nil, pgx.ErrNoRows
}

func (r memFollowUps) ListByTicket(_ context.Context, ticketID string) ([]domain.FollowUp, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.FollowUp
	for _, f := range r.m.followUps {
		if f.TicketID == ticketID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memResets struct{ m *DB }

func (r memResets) Create(_ context.Context, token *repository.PasswordResetToken) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	token.ID, token.CreatedAt = r.m.next("reset")
	r.m.resets[token.ID] = *token
	return nil
}

func (r memResets) GetByToken(_ context.Context, token string) (*repository.PasswordResetToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.resets {
		if t.Token == token {
			found := t
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memResets) MarkUsed(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.resets[id]
	if !ok || t.UsedAt != nil {
		return pgx.ErrNoRows
	}
	now := time.Now().UTC()
	t.UsedAt = &now
	r.m.resets[id] = t
	return nil
}

type memStats struct{ m *DB }

func (r memStats) DepartmentStats(_ context.Context, departmentID string, since time.Time) (repository.DepartmentStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var stats repository.DepartmentStats
	for _, t := range r.m.tickets {
		if t.DepartmentID != departmentID {
			continue
		}
		stats.TotalTickets++
		if !t.CreatedAt.Before(since) {
			stats.RecentTickets++
		}
		completed := false
		if t.CategoryID != nil {
			completed = r.m.categories[*t.CategoryID].Name == domain.CategoryCompleted
		}
		if completed && t.CompletedAt != nil && !t.CompletedAt.Before(since) {
			stats.RecentCompleted++
		}
	}
	return stats, nil
}
