package service

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository"
	"github.com/spec-kit/crm-service/internal/repository/repositorytest"
)

// memFiles is an in-memory storage.Storage.
type memFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemFiles() *memFiles {
	return &memFiles{objects: map[string][]byte{}}
}

func (f *memFiles) Save(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *memFiles) Open(_ context.Context, key string) (io.ReadCloser, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, "", os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), "application/octet-stream", nil
}

func (f *memFiles) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *memFiles) URL(key string) string { return "/media/" + key }

func (f *memFiles) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) Subscribe(events.EventType, events.EventHandler) {}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) last(eventType events.EventType) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == eventType {
			return r.events[i], true
		}
	}
	return events.Event{}, false
}

// world wires every service over one in-memory database.
type world struct {
	t          *testing.T
	db         *repositorytest.DB
	store      *repository.Store
	files      *memFiles
	events     *recorder
	users      *UserService
	auth       *AuthService
	associates *AssociateService
	tickets    *TicketService
	categories *CategoryService
	followUps  *FollowUpService
	dashboard  *DashboardService
	revoker    *memoryRevoker
	clock      time.Time
}

type memoryRevoker struct {
	revoked map[string]time.Time
}

func (m *memoryRevoker) Revoke(_ context.Context, id string, expiresAt time.Time) error {
	m.revoked[id] = expiresAt
	return nil
}

func (m *memoryRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	_, ok := m.revoked[id]
	return ok, nil
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{
		t:       t,
		db:      repositorytest.New(),
		files:   newMemFiles(),
		events:  &recorder{},
		revoker: &memoryRevoker{revoked: map[string]time.Time{}},
		clock:   repositorytest.Epoch.Add(24 * time.Hour),
	}
	w.store = w.db.Store()
	now := func() time.Time { return w.clock }

	w.users = NewUserService(w.store, bcrypt.MinCost)
	w.auth = NewAuthService(testConfig(), AuthDependencies{
		Store:      w.store,
		Users:      w.users,
		Tokens:     auth.NewTokenManager("test-secret", time.Hour),
		Revoker:    w.revoker,
		Dispatcher: w.events,
	})
	w.auth.now = now
	w.associates = NewAssociateService(w.store, w.users, w.events, nil)
	deps := TicketDependencies{
		Store:          w.store,
		Files:          w.files,
		Dispatcher:     w.events,
		MaxUploadBytes: 1 << 10,
	}
	w.tickets = NewTicketService(deps)
	w.tickets.now = now
	w.categories = NewCategoryService(w.store)
	w.followUps = NewFollowUpService(deps)
	w.dashboard = NewDashboardService(w.store)
	w.dashboard.now = now
	return w
}

// organizer signs up a fresh organizer and returns its principal.
func (w *world) organizer(name string) *auth.Principal {
	w.t.Helper()
	ctx := context.Background()
	session, err := w.auth.Signup(ctx, SignupInput{
		Username:  name,
		Email:     name + "@example.com",
		Password1: "s3cret-pass",
		Password2: "s3cret-pass",
	})
	require.NoError(w.t, err)
	dept, err := w.store.Departments.GetByUserID(ctx, session.User.ID)
	require.NoError(w.t, err)
	return &auth.Principal{User: session.User, Department: dept, Token: session.Token}
}

// associate creates an associate in the organizer's department and returns
// its principal.
func (w *world) associate(org *auth.Principal, name string) *auth.Principal {
	w.t.Helper()
	a, err := w.associates.CreateAssociate(context.Background(), org, AssociateInput{
		Email:     name + "@example.com",
		Username:  name,
		FirstName: strings.ToUpper(name[:1]) + name[1:],
		LastName:  "Tester",
	})
	require.NoError(w.t, err)
	return &auth.Principal{User: a.User, Associate: a}
}

func (w *world) ticket(org *auth.Principal, title string, associate *auth.Principal) *domain.Ticket {
	w.t.Helper()
	in := TicketInput{Title: title, Type: domain.TicketType1}
	if associate != nil {
		id := associate.Associate.ID
		in.AssociateID = &id
	}
	ticket, err := w.tickets.CreateTicket(context.Background(), org, in)
	require.NoError(w.t, err)
	return ticket
}

func strPtr(s string) *string { return &s }

var epoch = repositorytest.Epoch

func upload(name, body string) *FileUpload {
	return &FileUpload{Filename: name, ContentType: "application/octet-stream", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func (w *world) scopeFilter(p *auth.Principal) repository.TicketFilter {
	w.t.Helper()
	scope, ok := p.Scope()
	require.True(w.t, ok)
	return repository.ScopeFilter(scope)
}
