package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/storepilot/storepilot/internal/domain"
	"github.com/storepilot/storepilot/internal/domain/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthService(users domain.UserRepository) *AuthService {
	return NewAuthService(users, "test-secret", time.Hour, testLogger())
}

func TestRegisterFirstAccountBecomesAdmin(t *testing.T) {
	svc := newAuthService(mocks.NewMockUserRepository())

	first, token, err := svc.Register(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("register first: %v", err)
	}
	if first.Role != domain.RoleAdmin {
		t.Errorf("first account role = %s, want admin", first.Role)
	}
	if token == "" {
		t.Error("expected a token for the first account")
	}

	second, _, err := svc.Register(context.Background(), "bob@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("register second: %v", err)
	}
	if second.Role != domain.RoleTenant {
		t.Errorf("second account role = %s, want tenant", second.Role)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthService(mocks.NewMockUserRepository())

	if _, _, err := svc.Register(context.Background(), "not-an-email", "correct-horse"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad email: expected ErrValidation, got %v", err)
	}
	if _, _, err := svc.Register(context.Background(), "a@example.com", "short"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("short password: expected ErrValidation, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newAuthService(mocks.NewMockUserRepository())
	if _, _, err := svc.Register(context.Background(), "alice@example.com", "correct-horse"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, _, err := svc.Register(context.Background(), "Alice@Example.com", "correct-horse")
	if !errors.Is(err, domain.ErrDuplicateUser) {
		t.Errorf("expected ErrDuplicateUser, got %v", err)
	}
}

func TestLoginAndIdentify(t *testing.T) {
	svc := newAuthService(mocks.NewMockUserRepository())
	registered, _, err := svc.Register(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, token, err := svc.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != registered.ID {
		t.Error("login returned a different user")
	}

	ident, err := svc.Identify(token)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if ident.UserID != registered.ID || ident.Role != domain.RoleAdmin {
		t.Errorf("identity = %+v, want user %s role admin", ident, registered.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthService(mocks.NewMockUserRepository())
	if _, _, err := svc.Register(context.Background(), "alice@example.com", "correct-horse"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@example.com", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestIdentifyRejectsGarbageToken(t *testing.T) {
	svc := newAuthService(mocks.NewMockUserRepository())
	if _, err := svc.Identify("not-a-token"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}
