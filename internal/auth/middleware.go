package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User       *domain.User
	Department *domain.UserDepartment
	Associate  *domain.Associate
	Token      domain.Token
}

// Role returns the effective role of the caller.
func (p *Principal) Role() domain.Role {
	if p == nil {
		return domain.RoleNone
	}
	return domain.RoleOf(p.User)
}

// IsOrganizer reports whether the caller manages a department.
func (p *Principal) IsOrganizer() bool {
	return p.Role() == domain.RoleOrganizer && p.Department != nil
}

// Scope returns the ticket rows the caller may see. ok is false for
// callers with neither a department nor an associate record.
func (p *Principal) Scope() (domain.Scope, bool) {
	switch p.Role() {
	case domain.RoleOrganizer:
		if p.Department == nil {
			return domain.Scope{}, false
		}
		return domain.Scope{DepartmentID: p.Department.ID}, true
	case domain.RoleAssociate:
		if p.Associate == nil {
			return domain.Scope{}, false
		}
		id := p.Associate.ID
		return domain.Scope{DepartmentID: p.Associate.DepartmentID, AssociateID: &id}, true
	default:
		return domain.Scope{}, false
	}
}

// AuthMiddleware resolves the session token into a principal.
type AuthMiddleware struct {
	tokens      *TokenManager
	revoker     Revoker
	users       repository.UserRepository
	departments repository.DepartmentRepository
	associates  repository.AssociateRepository
	cookieName  string
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(
	tokens *TokenManager,
	revoker Revoker,
	users repository.UserRepository,
	departments repository.DepartmentRepository,
	associates repository.AssociateRepository,
	cookieName string,
) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:      tokens,
		revoker:     revoker,
		users:       users,
		departments: departments,
		associates:  associates,
		cookieName:  cookieName,
	}
}

// CookieName is the name of the session cookie.
func (m *AuthMiddleware) CookieName() string {
	return m.cookieName
}

// Handle loads the principal when a valid token is present. Anonymous requests
// pass through; access rules live in LoginRequired and OrganizerRequired.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw := m.extractToken(c)
	if raw == "" {
		return c.Next()
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return c.Next()
	}
	if m.revoker != nil {
		revoked, err := m.revoker.IsRevoked(c.UserContext(), claims.ID)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		if revoked {
			return c.Next()
		}
	}

	principal, err := m.loadPrincipal(c, claims)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return c.Next()
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

func (m *AuthMiddleware) extractToken(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Cookies(m.cookieName)
}

func (m *AuthMiddleware) loadPrincipal(c *fiber.Ctx, claims *Claims) (*Principal, error) {
	ctx := c.UserContext()
	user, err := m.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	principal := &Principal{User: user, Token: claims.Token()}

	switch domain.RoleOf(user) {
	case domain.RoleOrganizer:
		dept, err := m.departments.GetByUserID(ctx, user.ID)
		if err != nil && !apperrors.IsNotFound(err) {
			return nil, err
		}
		principal.Department = dept
	case domain.RoleAssociate:
		associate, err := m.associates.GetByUserID(ctx, user.ID)
		if err != nil && !apperrors.IsNotFound(err) {
			return nil, err
		}
		principal.Associate = associate
	}
	return principal, nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// WithPrincipal stores the principal on the request.
func WithPrincipal(c *fiber.Ctx, principal *Principal) {
	c.Locals(principalKey, principal)
}
