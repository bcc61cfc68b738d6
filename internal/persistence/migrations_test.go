package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/facilityops/facility-service/internal/domain"
)

func TestMigrationFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	if len(files) != 2 || files[0] != "001_a.sql" || files[1] != "002_b.sql" {
		t.Fatalf("unexpected files %v", files)
	}
}

func TestMigrationFilesMissingDir(t *testing.T) {
	if _, err := migrationFiles(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestOpenStoresFallsBackToMemory(t *testing.T) {
	stores := OpenStores(&Postgres{}, []domain.StaffMember{{ID: "staff-1", OrganizationID: "org-1", Active: true}})
	if stores.Durable {
		t.Fatalf("expected in-process stores without a pool")
	}
	member, err := stores.Staff.GetByID(context.Background(), "staff-1")
	if err != nil || member.ID != "staff-1" {
		t.Fatalf("expected seeded member, got %v %v", member, err)
	}
}
