package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"
)

func TestLinkedAccountStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO linked_accounts") {
				t.Fatalf("unexpected query: %s", query)
			}
			if !strings.Contains(query, "'pending'") {
				t.Fatalf("new accounts must start pending: %s", query)
			}
			if len(args) != 8 || args[0] != "acc-1" || args[1] != "user-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewLinkedAccountStore(stubDB{})
	err := store.Create(ctx, execer, LinkedAccountInput{
		ID: "acc-1", UserID: "user-1", ProviderID: "prov-1", Kind: "bank",
		DisplayName: "Checking", SyncFrequencyHours: 24,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLinkedAccountStoreListByUserWithStatus(t *testing.T) {
	ctx := context.Background()
	store := NewLinkedAccountStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "WHERE user_id = $1") || !strings.Contains(query, "AND status = $2") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[0] != "user-1" || args[1] != "active" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]LinkedAccount) = []LinkedAccount{{ID: "acc-1", Status: "active"}}
			return nil
		},
	})
	rows, err := store.ListByUser(ctx, "user-1", "active")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "acc-1" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestLinkedAccountStoreClaimForSync(t *testing.T) {
	ctx := context.Background()
	store := NewLinkedAccountStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET status = 'syncing'") {
				t.Fatalf("unexpected query: %s", query)
			}
			if !strings.Contains(query, "status <> 'syncing'") {
				t.Fatalf("claim must exclude accounts already syncing: %s", query)
			}
			if len(args) != 1 || args[0] != "acc-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	})
	claimed, err := store.ClaimForSync(ctx, "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed != 1 {
		t.Fatalf("expected 1 row claimed, got %d", claimed)
	}
}

func TestLinkedAccountStoreClaimForSyncAlreadyHeld(t *testing.T) {
	ctx := context.Background()
	store := NewLinkedAccountStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			return stubResult{rows: 0}, nil
		},
	})
	claimed, err := store.ClaimForSync(ctx, "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed != 0 {
		t.Fatalf("expected 0 rows claimed, got %d", claimed)
	}
}

func TestLinkedAccountStoreFinishSync(t *testing.T) {
	ctx := context.Background()
	lastSync := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET status = 'active', last_sync = $1, last_error = NULL") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[0] != lastSync || args[1] != "acc-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewLinkedAccountStore(stubDB{})
	if err := store.FinishSync(ctx, execer, "acc-1", lastSync); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLinkedAccountStoreReleaseClaim(t *testing.T) {
	ctx := context.Background()
	store := NewLinkedAccountStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET status = 'error', last_error = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if !strings.Contains(query, "status = 'syncing'") {
				t.Fatalf("release must only touch a held claim: %s", query)
			}
			if strings.Contains(query, "last_sync") {
				t.Fatalf("ReleaseClaim must not touch last_sync: %s", query)
			}
			if len(args) != 2 || args[0] != "sync finalization failed" || args[1] != "acc-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	})
	if err := store.ReleaseClaim(ctx, "acc-1", "sync finalization failed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLinkedAccountStoreMarkError(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET status = 'error', last_error = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if strings.Contains(query, "last_sync") {
				t.Fatalf("MarkError must not touch last_sync: %s", query)
			}
			if len(args) != 2 || args[0] != "source unavailable" || args[1] != "acc-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewLinkedAccountStore(stubDB{})
	if err := store.MarkError(ctx, execer, "acc-1", "source unavailable"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
