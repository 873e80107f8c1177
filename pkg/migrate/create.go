package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// now is swapped in tests.
var now = time.Now

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- Mirror table changes in pkg/db/schema_sqlite.go for local and test runs.
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<name>.sql. When a file
// already holds that second's version the timestamp is bumped until free.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	stamp := now().UTC()
	for attempt := 0; attempt < 60; attempt++ {
		version := stamp.Add(time.Duration(attempt) * time.Second).Format("20060102150405")
		taken, err := versionTaken(dir, version)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}
		fullpath := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version, safe))
		f, err := os.OpenFile(fullpath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create migration %q: %w", fullpath, err)
		}
		_, werr := fmt.Fprintf(f, migrationTemplate, safe)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return "", fmt.Errorf("write migration %q: %w", fullpath, werr)
		}
		return fullpath, nil
	}
	return "", fmt.Errorf("no free migration version near %s", stamp.Format(time.RFC3339))
}

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

func versionTaken(dir, version string) (bool, error) {
	matches, err := filepath.Glob(filepath.Join(dir, version+"_*.sql"))
	if err != nil {
		return false, fmt.Errorf("scan %q: %w", dir, err)
	}
	return len(matches) > 0, nil
}
