package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Key format: ink_{env}_{prefix}_{secret}
// Example: ink_live_7a9f3c_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	KeyPrefixLen = 6
	KeySecretLen = 32
)

// Key environments.
const (
	EnvLive = "live"
	EnvTest = "test"
)

// ErrInvalidKeyFormat indicates the key does not match the key format.
var ErrInvalidKeyFormat = errors.New("invalid API key format")

var keyFormat = regexp.MustCompile(`^ink_(live|test)_([a-f0-9]{6})_([a-f0-9]{32})$`)

// IssuedKey is a freshly generated API key.
// Plaintext is shown to the owner once and never stored.
type IssuedKey struct {
	Plaintext string
	Hash      string
	Prefix    string
}

// IssueKey generates a key for env. Unknown environments fall back to live.
func IssueKey(env string) (*IssuedKey, error) {
	if env != EnvLive && env != EnvTest {
		env = EnvLive
	}

	prefix, err := randomHex(KeyPrefixLen / 2)
	if err != nil {
		return nil, fmt.Errorf("generate prefix: %w", err)
	}
	secret, err := randomHex(KeySecretLen / 2)
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	plaintext := fmt.Sprintf("ink_%s_%s_%s", env, prefix, secret)

	hash, err := HashKey(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}

	return &IssuedKey{Plaintext: plaintext, Hash: hash, Prefix: prefix}, nil
}

// ParsedKey holds the components of a plaintext key.
type ParsedKey struct {
	Env    string
	Prefix string
	Secret string
}

// ParseKey splits a plaintext key into its components.
func ParseKey(key string) (*ParsedKey, error) {
	m := keyFormat.FindStringSubmatch(key)
	if m == nil {
		return nil, ErrInvalidKeyFormat
	}
	return &ParsedKey{Env: m[1], Prefix: m[2], Secret: m[3]}, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
