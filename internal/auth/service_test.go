package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type memUserRepo struct {
	users map[uuid.UUID]*User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *memUserRepo) CreateUser(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserRepo) GetUserByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memUserRepo) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func newTestAuth(ttl time.Duration) (*Service, *TokenIssuer) {
	issuer := NewTokenIssuer("test-secret", ttl)
	return NewService(newMemUserRepo(), issuer, zerolog.Nop()), issuer
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestAuth(time.Hour)
	ctx := context.Background()

	u, err := svc.Register(ctx, "Ravi", "ravi@example.com", "s3cret", nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != RolePatient {
		t.Errorf("registration must always produce a PATIENT, got %s", u.Role)
	}
	if u.PasswordHash == "s3cret" {
		t.Error("password must not be stored in the clear")
	}

	logged, token, err := svc.Login(ctx, "ravi@example.com", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.ID != u.ID {
		t.Errorf("login returned wrong user")
	}
	if token == "" {
		t.Error("login must return a token")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestAuth(time.Hour)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Ravi", "ravi@example.com", "s3cret", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.Register(ctx, "Other", "ravi@example.com", "other", nil)
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	svc, _ := newTestAuth(time.Hour)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Ravi", "ravi@example.com", "s3cret", nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "ravi@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	userID := uuid.New()

	token, err := issuer.Issue(userID, RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("user id: got %s, want %s", claims.UserID, userID)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("role: got %s, want %s", claims.Role, RoleAdmin)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	other := NewTokenIssuer("another-secret", time.Hour)

	token, err := issuer.Issue(uuid.New(), RolePatient)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenExpiryRejected(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)

	token, err := issuer.Issue(uuid.New(), RolePatient)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for an expired token, got %v", err)
	}
}

func TestTokenGarbageRejected(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	if _, err := issuer.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
