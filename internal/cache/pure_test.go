package cache

import (
	"testing"
)

func TestHashSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
	}{
		{"different IPv4", "ip:192.168.1.1", "ip:192.168.1.2"},
		{"IPv4 vs IPv6", "ip:127.0.0.1", "ip:::1"},
		{"user vs ip", "user:01HXYZ", "ip:01HXYZ"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ha, hb := hashSubject(tt.a), hashSubject(tt.b)
			if len(ha) != 16 || len(hb) != 16 {
				t.Errorf("expected 16 hex chars, got %d and %d", len(ha), len(hb))
			}
			if ha == hb {
				t.Errorf("%q and %q both hashed to %s", tt.a, tt.b, ha)
			}
			if ha != hashSubject(tt.a) {
				t.Error("hashSubject should be deterministic")
			}
		})
	}
}

func TestBucketTTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rate  float64
		burst int
		want  int
	}{
		{"fast refill uses floor", 100, 20, 10},
		{"slow refill", 1, 60, 61},
		{"fractional rate", 0.5, 10, 21},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := bucketTTL(tt.rate, tt.burst); got != tt.want {
				t.Errorf("bucketTTL(%v, %d) = %d, want %d", tt.rate, tt.burst, got, tt.want)
			}
		})
	}
}

func TestDecodePrincipal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantNil bool
	}{
		{"valid", `{"id":"u1","email":"alice@example.com","name":"Alice"}`, false},
		{"corrupted", `{"id":`, true},
		{"missing id", `{"email":"alice@example.com"}`, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := decodePrincipal([]byte(tt.data))
			if tt.wantNil {
				if got != nil {
					t.Errorf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil || got.ID != "u1" || got.Name == nil || *got.Name != "Alice" {
				t.Errorf("unexpected principal: %+v", got)
			}
		})
	}
}
