package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"propertyhub/internal/apperr"
	"propertyhub/internal/approval"
	"propertyhub/internal/auth"
	"propertyhub/internal/models"
)

type mockUserStore struct {
	users map[uint]*models.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[uint]*models.User)}
}

func (m *mockUserStore) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	return m.users[id], nil
}

func (m *mockUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserStore) CreateUser(ctx context.Context, u *models.User) error {
	u.ID = uint(len(m.users) + 1)
	m.users[u.ID] = u
	return nil
}

func (m *mockUserStore) UpdateUser(ctx context.Context, u *models.User) error {
	if _, ok := m.users[u.ID]; !ok {
		return errors.New("user not found")
	}
	m.users[u.ID] = u
	return nil
}

func newService(store Store) *Service {
	return NewService(store, auth.NewTokenIssuer("secret", time.Hour), "ES", zap.NewNop())
}

func TestRegister_Success(t *testing.T) {
	repo := newMockUserStore()
	service := newService(repo)

	session, err := service.Register(context.Background(), RegisterRequest{
		FirstName: "Ana",
		Email:     "  Ana@Example.com ",
		Phone:     "612 34 56 78",
		Password:  "password123",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if session.Token == "" {
		t.Error("expected a token")
	}
	if session.User.Email != "ana@example.com" {
		t.Errorf("email = %q", session.User.Email)
	}
	if session.User.Phone != "+34612345678" {
		t.Errorf("phone = %q, want E.164", session.User.Phone)
	}
	if session.User.PasswordHash == "password123" || session.User.Admin {
		t.Error("password must be hashed and new users are not admins")
	}
}

func TestRegister_Errors(t *testing.T) {
	repo := newMockUserStore()
	service := newService(repo)
	if _, err := service.Register(context.Background(), RegisterRequest{Email: "ana@example.com", Password: "password123"}); err != nil {
		t.Fatalf("seed Register() error = %v", err)
	}

	tests := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"duplicate email", RegisterRequest{Email: "ANA@example.com", Password: "password123"}, apperr.ErrConflict},
		{"bad email", RegisterRequest{Email: "not-an-email", Password: "password123"}, apperr.ErrValidation},
		{"short password", RegisterRequest{Email: "b@example.com", Password: "short"}, apperr.ErrValidation},
		{"bad phone", RegisterRequest{Email: "c@example.com", Password: "password123", Phone: "123"}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.Register(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Register() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	repo := newMockUserStore()
	service := newService(repo)
	service.Register(context.Background(), RegisterRequest{Email: "ana@example.com", Password: "password123"})

	if _, err := service.Login(context.Background(), "ana@example.com", "password123"); err != nil {
		t.Errorf("Login() error = %v", err)
	}
	if _, err := service.Login(context.Background(), "ana@example.com", "wrong-password"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("wrong password error = %v", err)
	}
	if _, err := service.Login(context.Background(), "nobody@example.com", "password123"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("unknown user error = %v", err)
	}
}

func TestMakeAdmin(t *testing.T) {
	repo := newMockUserStore()
	service := newService(repo)
	s, _ := service.Register(context.Background(), RegisterRequest{Email: "ana@example.com", Password: "password123"})

	if _, err := service.MakeAdmin(context.Background(), &approval.Actor{UserID: s.User.ID}, s.User.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("self promotion error = %v, want ErrForbidden", err)
	}
	admin := &approval.Actor{UserID: 99, Admin: true}
	if _, err := service.MakeAdmin(context.Background(), admin, 42); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown user error = %v, want ErrNotFound", err)
	}
	u, err := service.MakeAdmin(context.Background(), admin, s.User.ID)
	if err != nil {
		t.Fatalf("MakeAdmin() error = %v", err)
	}
	if !u.Admin || !repo.users[s.User.ID].Admin {
		t.Error("admin flag not persisted")
	}
}

func TestUpdateProfile(t *testing.T) {
	repo := newMockUserStore()
	service := newService(repo)
	s, _ := service.Register(context.Background(), RegisterRequest{Email: "ana@example.com", Password: "password123"})
	actor := &approval.Actor{UserID: s.User.ID, Email: s.User.Email}

	phone := "+34 712 34 56 78"
	u, err := service.UpdateProfile(context.Background(), actor, ProfileUpdate{Phone: &phone})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if u.Phone != "+34712345678" {
		t.Errorf("phone = %q", u.Phone)
	}
}
