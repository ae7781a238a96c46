package gormstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"pastelcal/internal/model"
	"pastelcal/internal/store"
	"pastelcal/internal/store/storetest"
)

// openTestStore connects to PASTELCAL_TEST_DSN and empties both tables.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PASTELCAL_TEST_DSN")
	if dsn == "" {
		t.Skip("PASTELCAL_TEST_DSN not set")
	}
	s, err := Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.db.Exec("TRUNCATE TABLE events, users").Error; err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTestStore(t) })
}

func TestUsersPutAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	users := s.Users()

	if _, err := users.Lookup(ctx, "kim"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("lookup before put err = %v", err)
	}
	if _, err := users.Put(ctx, model.User{Username: "kim", PasswordHash: "h1", Name: "Kim"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := users.Put(ctx, model.User{Username: "kim", PasswordHash: "h2", Name: "Kim J"}); err != nil {
		t.Fatalf("second put: %v", err)
	}
	got, err := users.Lookup(ctx, "kim")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.PasswordHash != "h2" || got.Name != "Kim J" {
		t.Fatalf("user = %+v", got)
	}
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("empty dsn accepted")
	}
}
