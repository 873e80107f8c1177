package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Refund Reason!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(filepath.Base(path), "_add_refund_reason.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "-- +goose Up") {
		t.Fatalf("missing goose header")
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatalf("expected invalid filename error")
	}
}

func TestCreateSQLMigrationRequiresName(t *testing.T) {
	if _, err := CreateSQLMigration(t.TempDir(), "!!!"); err == nil {
		t.Fatalf("expected error for empty sanitized name")
	}
}

func TestCreateSQLMigrationBumpsTakenVersion(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	dir := t.TempDir()
	first, err := CreateSQLMigration(dir, "add_refund_reason")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := CreateSQLMigration(dir, "add_refund_note")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(first), "20260301090000_") {
		t.Fatalf("unexpected first version %s", first)
	}
	if !strings.HasPrefix(filepath.Base(second), "20260301090001_") {
		t.Fatalf("expected bumped version, got %s", second)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migrations should validate: %v", err)
	}
}

func TestValidateFSReportsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"bad-name.sql":                  {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260301090000_no_down.sql":    {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		"20260301090100_reversed.sql":   {Data: []byte("-- +goose Down\n-- +goose Up\n")},
		"20260301090200_unbalanced.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")},
		"20260301090300_fine.sql":       {Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")},
		"README.md":                     {Data: []byte("ignored")},
	}
	err := ValidateFS(fsys)
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"bad-name.sql", "no_down", "Down before Up", "unbalanced"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
	if strings.Contains(err.Error(), "fine") {
		t.Errorf("valid migration reported: %v", err)
	}
}
