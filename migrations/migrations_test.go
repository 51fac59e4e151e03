package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestPostgres_Ordered(t *testing.T) {
	list, err := Postgres()
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}

	if len(list) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(list))
	}

	want := []string{"users", "posts", "api_keys"}
	for i, m := range list {
		if m.Name != want[i] {
			t.Errorf("migration %d name = %s, want %s", i, m.Name, want[i])
		}
		if m.Up == "" || m.Down == "" {
			t.Errorf("migration %s missing up or down", m.Name)
		}
	}
}

func TestPostgresFS(t *testing.T) {
	fsys, err := PostgresFS()
	if err != nil {
		t.Fatalf("PostgresFS: %v", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("expected 6 migration files, got %d", len(entries))
	}
	if _, err := fs.Stat(fsys, "000001_users.up.sql"); err != nil {
		t.Errorf("000001_users.up.sql not at FS root: %v", err)
	}
}

func TestSQLiteSchema(t *testing.T) {
	schema := SQLiteSchema()
	for _, table := range []string{"users", "posts", "api_keys"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("schema missing table %s", table)
		}
	}
}

func TestSplitMigrationName(t *testing.T) {
	testCases := []struct {
		in        string
		base      string
		direction string
		ok        bool
	}{
		{"000001_users.up.sql", "000001_users", "up", true},
		{"000002_posts.down.sql", "000002_posts", "down", true},
		{"README.md", "", "", false},
		{"000003_api_keys.sql", "", "", false},
	}

	for _, tc := range testCases {
		base, direction, ok := splitMigrationName(tc.in)
		if base != tc.base || direction != tc.direction || ok != tc.ok {
			t.Errorf("splitMigrationName(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.in, base, direction, ok, tc.base, tc.direction, tc.ok)
		}
	}
}
