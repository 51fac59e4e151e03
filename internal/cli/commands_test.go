package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/repository"
)

func TestSignupAndKeyLifecycle(t *testing.T) {
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "inkpost.db")

	stdout, _, err := execute(t, "signup", "--database-url", dbURL, "--email", "alice@example.com", "--name", "Alice", "--format", "json")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	var user userResult
	if err := json.Unmarshal([]byte(stdout), &user); err != nil {
		t.Fatalf("decode signup output %q: %v", stdout, err)
	}
	if user.ID == "" || user.Email != "alice@example.com" || user.Name == nil || *user.Name != "Alice" {
		t.Fatalf("unexpected user: %+v", user)
	}

	_, _, err = execute(t, "signup", "--database-url", dbURL, "--email", "alice@example.com")
	if err == nil || !strings.Contains(err.Error(), "email already registered") {
		t.Fatalf("expected duplicate signup to fail, got %v", err)
	}

	stdout, stderr, err := execute(t, "issue-key", "--database-url", dbURL, "--email", "alice@example.com", "--name", "ci", "--format", "json")
	if err != nil {
		t.Fatalf("issue-key: %v", err)
	}
	if !strings.Contains(stderr, "cannot be shown again") {
		t.Errorf("expected warning on stderr, got %q", stderr)
	}

	var issued issuedKeyResult
	if err := json.Unmarshal([]byte(stdout), &issued); err != nil {
		t.Fatalf("decode issue-key output %q: %v", stdout, err)
	}
	if issued.UserID != user.ID || issued.Name != "ci" {
		t.Errorf("unexpected key: %+v", issued)
	}

	parsed, err := auth.ParseKey(issued.Key)
	if err != nil {
		t.Fatalf("issued key does not parse: %v", err)
	}
	if parsed.Env != auth.EnvLive || parsed.Prefix != issued.KeyPrefix {
		t.Errorf("unexpected parsed key: %+v", parsed)
	}

	assertStoredKey(t, dbURL, issued, true)

	stdout, _, err = execute(t, "revoke-key", "--database-url", dbURL, "--id", issued.KeyID)
	if err != nil {
		t.Fatalf("revoke-key: %v", err)
	}
	if !strings.Contains(stdout, "revoked "+issued.KeyID) {
		t.Errorf("unexpected revoke output %q", stdout)
	}
	assertStoredKey(t, dbURL, issued, false)

	_, _, err = execute(t, "revoke-key", "--database-url", dbURL, "--id", issued.KeyID)
	if err == nil || !strings.Contains(err.Error(), "no active api key") {
		t.Fatalf("expected second revoke to fail, got %v", err)
	}
}

func TestIssueKeyErrors(t *testing.T) {
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "inkpost.db")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown user", []string{"issue-key", "--database-url", dbURL, "--email", "ghost@example.com"}, "run inkctl signup first"},
		{"bad env", []string{"issue-key", "--database-url", dbURL, "--email", "a@example.com", "--env", "staging"}, "invalid env"},
		{"missing email", []string{"issue-key", "--database-url", dbURL}, "required flag"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSignupValidation(t *testing.T) {
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "inkpost.db")

	_, _, err := execute(t, "signup", "--database-url", dbURL, "--email", "not-an-email")
	if err == nil || !strings.Contains(err.Error(), "email") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMigrateRequiresPostgres(t *testing.T) {
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "inkpost.db")

	for _, args := range [][]string{{"up"}, {"down"}, {"status"}, {"force", "2"}} {
		argv := append([]string{"migrate"}, args...)
		_, _, err := execute(t, append(argv, "--database-url", dbURL)...)
		if err == nil || !strings.Contains(err.Error(), "postgres://") {
			t.Errorf("migrate %s: expected postgres requirement, got %v", args[0], err)
		}
	}
}

func TestMigrateForceRejectsBadVersion(t *testing.T) {
	for _, arg := range []string{"two", "-2"} {
		_, _, err := execute(t, "migrate", "force", "--database-url", "postgres://localhost/inkpost", "--", arg)
		if err == nil || !strings.Contains(err.Error(), "invalid version") {
			t.Errorf("force %s: expected invalid version, got %v", arg, err)
		}
	}
}

func assertStoredKey(t *testing.T, dbURL string, issued issuedKeyResult, wantActive bool) {
	t.Helper()
	ctx := context.Background()

	gateway, err := repository.Open(ctx, dbURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer gateway.Close()

	keys, err := gateway.GetAPIKeysByPrefix(ctx, issued.KeyPrefix)
	if err != nil {
		t.Fatalf("lookup key: %v", err)
	}
	if !wantActive {
		if len(keys) != 0 {
			t.Fatalf("expected no active keys, got %d", len(keys))
		}
		return
	}

	if len(keys) != 1 {
		t.Fatalf("expected 1 active key, got %d", len(keys))
	}
	if keys[0].KeyHash == issued.Key {
		t.Fatal("plaintext key stored")
	}
	ok, err := auth.VerifyKey(issued.Key, keys[0].KeyHash)
	if err != nil || !ok {
		t.Fatalf("stored hash does not verify: ok=%v err=%v", ok, err)
	}
}
