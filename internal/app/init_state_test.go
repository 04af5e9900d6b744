package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fitflow/billing/internal/db"
)

func TestHasAdminInitialized(t *testing.T) {
	conn, err := db.Open(db.BuildSQLiteDSN(filepath.Join(t.TempDir(), "fitflow-test.db")))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	initialized, err := HasAdminInitialized(conn)
	if err != nil {
		t.Fatalf("HasAdminInitialized: %v", err)
	}
	if initialized {
		t.Fatalf("expected initialized=false before migrate")
	}

	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	initialized, err = HasAdminInitialized(conn)
	if err != nil {
		t.Fatalf("HasAdminInitialized after migrate: %v", err)
	}
	if initialized {
		t.Fatalf("expected initialized=false with empty admins table")
	}

	if _, errEnsure := EnsureAdminWithConn(context.Background(), conn, "", "Owner@Example.com"); errEnsure != nil {
		t.Fatalf("EnsureAdminWithConn: %v", errEnsure)
	}

	initialized, err = HasAdminInitialized(conn)
	if err != nil {
		t.Fatalf("HasAdminInitialized after seed: %v", err)
	}
	if !initialized {
		t.Fatalf("expected initialized=true after admin created")
	}
}

func TestEnsureAdminWithConn_Idempotent(t *testing.T) {
	conn, err := db.Open(db.BuildSQLiteDSN(filepath.Join(t.TempDir(), "fitflow-test.db")))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	ctx := context.Background()

	first, err := EnsureAdminWithConn(ctx, conn, "Owner", "owner@example.com")
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := EnsureAdminWithConn(ctx, conn, "Other", " OWNER@example.com ")
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first.ID != second.ID || second.Name != "Owner" || !second.Active {
		t.Fatalf("expected the existing admin, got %+v", second)
	}

	if _, err := EnsureAdminWithConn(ctx, conn, "x", "not-an-email"); err == nil {
		t.Fatalf("expected invalid email error")
	}
}
