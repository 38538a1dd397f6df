package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"docguard/internal/domain"
)

type mockUserRepo struct {
	byID       map[string]domain.User
	byEmail    map[string]domain.User
	byUsername map[string]domain.User
	created    []domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		byID:       make(map[string]domain.User),
		byEmail:    make(map[string]domain.User),
		byUsername: make(map[string]domain.User),
	}
}

func (m *mockUserRepo) add(user domain.User) {
	m.byID[user.ID] = user
	m.byEmail[user.Email] = user
	m.byUsername[user.Username] = user
}

func (m *mockUserRepo) Create(ctx context.Context, user domain.User) error {
	m.created = append(m.created, user)
	m.add(user)
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	user, ok := m.byEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	user, ok := m.byUsername[username]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(m.byID))
	for _, user := range m.byID {
		out = append(out, user)
	}
	return out, nil
}

func (m *mockUserRepo) SetTwoFactor(ctx context.Context, id string, enabled bool) error {
	user, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.TwoFactorEnabled = enabled
	m.add(user)
	return nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	return len(m.byID), nil
}

func hashedUser(t *testing.T, email, username, password string) domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return domain.User{
		ID:           "u1",
		Email:        email,
		Username:     username,
		Role:         domain.RoleUser,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
}

func TestUserService_CreateUserDefaults(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(zap.NewNop(), repo)

	user, err := svc.CreateUser(context.Background(), CreateUserInput{
		Email:    "  New.User@Example.com ",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Email != "new.user@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Username != "new.user" {
		t.Fatalf("expected username derived from email, got %q", user.Username)
	}
	if user.Role != domain.RoleUser {
		t.Fatalf("expected default role, got %q", user.Role)
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret" {
		t.Fatalf("expected hashed password")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected user persisted")
	}
}

func TestUserService_CreateUserValidation(t *testing.T) {
	svc := NewUserService(zap.NewNop(), newMockUserRepo())

	if _, err := svc.CreateUser(context.Background(), CreateUserInput{Email: ""}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected invalid email, got %v", err)
	}
	if _, err := svc.CreateUser(context.Background(), CreateUserInput{Email: "not-an-email"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected invalid email, got %v", err)
	}
	if _, err := svc.CreateUser(context.Background(), CreateUserInput{Email: "a@b.com", Role: "superuser"}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected invalid role, got %v", err)
	}
}

func TestUserService_AuthenticateByEmailAndUsername(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(hashedUser(t, "user@example.com", "user", "secret"))
	svc := NewUserService(zap.NewNop(), repo)

	byEmail, err := svc.Authenticate(context.Background(), "User@Example.com", "secret")
	if err != nil {
		t.Fatalf("authenticate by email: %v", err)
	}
	if byEmail.ID != "u1" {
		t.Fatalf("unexpected user: %+v", byEmail)
	}

	byUsername, err := svc.Authenticate(context.Background(), "USER", "secret")
	if err != nil {
		t.Fatalf("authenticate by username: %v", err)
	}
	if byUsername.ID != "u1" {
		t.Fatalf("unexpected user: %+v", byUsername)
	}
}

func TestUserService_AuthenticateRejections(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(hashedUser(t, "user@example.com", "user", "secret"))
	svc := NewUserService(zap.NewNop(), repo)

	cases := []struct {
		name       string
		identifier string
		password   string
	}{
		{"wrong password", "user@example.com", "nope"},
		{"unknown email", "ghost@example.com", "secret"},
		{"unknown username", "ghost", "secret"},
		{"empty identifier", "", "secret"},
		{"empty password", "user@example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Authenticate(context.Background(), tc.identifier, tc.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected invalid credentials, got %v", err)
			}
		})
	}
}

func TestUserService_GetByIDNotFound(t *testing.T) {
	svc := NewUserService(zap.NewNop(), newMockUserRepo())

	if _, err := svc.GetByID(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserService_SetTwoFactor(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(hashedUser(t, "user@example.com", "user", "secret"))
	svc := NewUserService(zap.NewNop(), repo)

	if err := svc.SetTwoFactor(context.Background(), "u1", true); err != nil {
		t.Fatalf("set two factor: %v", err)
	}
	if !repo.byID["u1"].TwoFactorEnabled {
		t.Fatalf("expected two factor enabled")
	}
	if err := svc.SetTwoFactor(context.Background(), "missing", true); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
