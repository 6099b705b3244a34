package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	name, ok := UniqueViolation(err)
	if !ok {
		t.Fatal("expected unique violation")
	}
	if name != "users_email_key" {
		t.Errorf("expected users_email_key, got %s", name)
	}
	if _, ok := ForeignKeyViolation(err); ok {
		t.Error("did not expect foreign key violation")
	}
}

func TestForeignKeyViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23503", ConstraintName: "appointments_doctor_id_fkey"}
	if _, ok := ForeignKeyViolation(err); !ok {
		t.Error("expected foreign key violation")
	}
	if _, ok := UniqueViolation(errors.New("plain")); ok {
		t.Error("plain error is not a pg violation")
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Error("expected wrapped ErrNoRows to match")
	}
	if IsNoRows(errors.New("other")) {
		t.Error("unexpected match")
	}
}

func TestNoTx_RunsFn(t *testing.T) {
	called := false
	err := NoTx{}.WithTx(context.Background(), func(ctx context.Context) error {
		called = true
		if InTx(ctx) {
			t.Error("NoTx must not bind a transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected fn to be called")
	}
}

func TestNoTx_PropagatesError(t *testing.T) {
	want := errors.New("rollback me")
	got := NoTx{}.WithTx(context.Background(), func(context.Context) error { return want })
	if !errors.Is(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
