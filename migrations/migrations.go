// Package migrations embeds the database schema for each supported engine.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Migration is one versioned PostgreSQL schema change.
type Migration struct {
	Version string
	Name    string
	Up      string
	Down    string
}

// Postgres returns the PostgreSQL migrations ordered by version.
func Postgres() ([]Migration, error) {
	entries, err := fs.ReadDir(files, "postgres")
	if err != nil {
		return nil, fmt.Errorf("read postgres migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		name := entry.Name()
		base, direction, ok := splitMigrationName(name)
		if !ok {
			return nil, fmt.Errorf("unexpected migration file name %q", name)
		}

		data, err := files.ReadFile("postgres/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}

		version, label, _ := strings.Cut(base, "_")
		m, exists := byVersion[version]
		if !exists {
			m = &Migration{Version: version, Name: label}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(data)
		} else {
			m.Down = string(data)
		}
	}

	result := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %s_%s is missing a direction", m.Version, m.Name)
		}
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })

	return result, nil
}

// PostgresFS returns the PostgreSQL migration files, named
// {version}_{name}.{up|down}.sql at the root of the returned FS.
func PostgresFS() (fs.FS, error) {
	sub, err := fs.Sub(files, "postgres")
	if err != nil {
		return nil, fmt.Errorf("open postgres migrations: %w", err)
	}
	return sub, nil
}

// SQLiteSchema returns the idempotent SQLite schema.
func SQLiteSchema() string {
	data, err := files.ReadFile("sqlite/schema.sql")
	if err != nil {
		// Embedded at build time; a missing file is a build defect.
		panic(fmt.Sprintf("sqlite schema not embedded: %v", err))
	}
	return string(data)
}

// splitMigrationName parses "000001_users.up.sql" into ("000001_users", "up").
func splitMigrationName(name string) (string, string, bool) {
	trimmed, ok := strings.CutSuffix(name, ".sql")
	if !ok {
		return "", "", false
	}
	switch {
	case strings.HasSuffix(trimmed, ".up"):
		return strings.TrimSuffix(trimmed, ".up"), "up", true
	case strings.HasSuffix(trimmed, ".down"):
		return strings.TrimSuffix(trimmed, ".down"), "down", true
	default:
		return "", "", false
	}
}
