package postgres

import (
	"io/fs"
	"reflect"
	"strings"
	"testing"
)

func TestMigrationFilesOrdered(t *testing.T) {
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migration files: %v", err)
	}
	want := []string{"001_backtest.sql", "002_fee_checkpoints.sql", "003_checkpoint_aligned_ticks.sql"}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("files mismatch: %v != %v", files, want)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migration files: %v", err)
	}
	for _, file := range files {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		for _, stmt := range strings.Split(string(data), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if !strings.Contains(stmt, "IF NOT EXISTS") {
				t.Fatalf("%s: statement is not idempotent: %.60s", file, stmt)
			}
		}
	}
}
