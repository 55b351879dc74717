package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MigrationFiles lists the *.up.sql or *.down.sql files in dir, in the order
// they must run: ascending for up, descending for down.
func MigrationFiles(dir, direction string) ([]string, error) {
	if direction != "up" && direction != "down" {
		return nil, fmt.Errorf("direction must be 'up' or 'down', got %q", direction)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	suffix := fmt.Sprintf(".%s.sql", direction)
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if direction == "down" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	return files, nil
}

// Migrate executes every migration file for direction and returns the names
// that ran. It stops at the first failing file.
func Migrate(ctx context.Context, db *sql.DB, dir, direction string) ([]string, error) {
	files, err := MigrationFiles(dir, direction)
	if err != nil {
		return nil, err
	}

	ran := make([]string, 0, len(files))
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return ran, fmt.Errorf("read migration file %s: %w", name, err)
		}

		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return ran, fmt.Errorf("execute migration %s: %w", name, err)
		}
		ran = append(ran, name)
	}

	return ran, nil
}
