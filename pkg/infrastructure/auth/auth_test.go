package auth

import (
	"strings"
	"testing"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
)

func TestStaticAuthenticator_Authenticate(t *testing.T) {
	authenticator := NewStaticAuthenticator("admin", "s3cret")

	tests := []struct {
		name     string
		creds    *entity.Credentials
		expected bool
	}{
		{"valid", &entity.Credentials{Username: "admin", Password: "s3cret"}, true},
		{"wrong password", &entity.Credentials{Username: "admin", Password: "secret"}, false},
		{"wrong user", &entity.Credentials{Username: "root", Password: "s3cret"}, false},
		{"absent", nil, false},
		{"empty", &entity.Credentials{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := authenticator.Authenticate(tt.creds); got != tt.expected {
				t.Errorf("Authenticate(%+v) = %v, want %v", tt.creds, got, tt.expected)
			}
		})
	}
}

func TestStaticAuthenticator_EmptyConfigDeniesAll(t *testing.T) {
	authenticator := NewStaticAuthenticator("", "")
	if authenticator.Authenticate(&entity.Credentials{}) {
		t.Error("an unconfigured authenticator must not accept empty credentials")
	}
}

func TestKeyDeriver_Derive(t *testing.T) {
	deriver := NewKeyDeriver("pepper")

	key := deriver.Derive("203.0.113.7")
	if strings.Contains(key, "203.0.113.7") {
		t.Errorf("derived key %s leaks the identity", key)
	}
	if len(key) != 64 {
		t.Errorf("len(key) = %d, want 64", len(key))
	}
	if key != deriver.Derive("203.0.113.7") {
		t.Error("Derive should be deterministic")
	}
	if key == deriver.Derive("203.0.113.8") {
		t.Error("different identities should yield different keys")
	}
	if key == NewKeyDeriver("salt").Derive("203.0.113.7") {
		t.Error("different secrets should yield different keys")
	}
}
