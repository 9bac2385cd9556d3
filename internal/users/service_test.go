package users

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndLogin(t *testing.T) {
	svc := NewService(NewInMemoryStore())

	created, err := svc.Register(context.Background(), "Sam@Example.com", "Sam", "hunter22")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if created.Email != "sam@example.com" {
		t.Fatalf("email = %q, want normalized lowercase", created.Email)
	}
	if !created.MemoryEnabled {
		t.Fatalf("MemoryEnabled = false, want true by default")
	}
	if len(created.PasswordVerifier) == 0 || len(created.PasswordSalt) == 0 {
		t.Fatalf("verifier/salt not populated")
	}

	got, err := svc.Login(context.Background(), "sam@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("login returned user %q, want %q", got.ID, created.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	if _, err := svc.Register(context.Background(), "sam@example.com", "Sam", "hunter22"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := svc.Login(context.Background(), "sam@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	if _, err := svc.Register(context.Background(), "sam@example.com", "Sam", "hunter22"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := svc.Register(context.Background(), "SAM@example.com", "Other", "hunter22"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate register error = %v, want ErrEmailTaken", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	if _, err := svc.Register(context.Background(), "not-an-email", "Sam", "hunter22"); err == nil {
		t.Fatalf("expected error for invalid email")
	}
	if _, err := svc.Register(context.Background(), "sam@example.com", "Sam", "short"); err == nil {
		t.Fatalf("expected error for short password")
	}
}
