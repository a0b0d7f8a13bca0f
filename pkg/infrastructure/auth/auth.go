package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
)

// StaticAuthenticator implements service.Authenticator against one configured account
type StaticAuthenticator struct {
	username []byte
	password []byte
}

// NewStaticAuthenticator creates an authenticator for the given account
func NewStaticAuthenticator(username, password string) *StaticAuthenticator {
	return &StaticAuthenticator{
		username: []byte(username),
		password: []byte(password),
	}
}

// Authenticate implements service.Authenticator
func (a *StaticAuthenticator) Authenticate(creds *entity.Credentials) bool {
	if creds == nil || len(a.username) == 0 || len(a.password) == 0 {
		return false
	}
	// Evaluate both comparisons so timing does not reveal which one failed
	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), a.username)
	passOK := subtle.ConstantTimeCompare([]byte(creds.Password), a.password)
	return userOK&passOK == 1
}

// KeyDeriver derives opaque client keys from caller identities
type KeyDeriver struct {
	secret []byte
}

// NewKeyDeriver creates a key deriver keyed by secret
func NewKeyDeriver(secret string) *KeyDeriver {
	return &KeyDeriver{secret: []byte(secret)}
}

// Derive returns the hex HMAC-SHA256 of identity
func (k *KeyDeriver) Derive(identity string) string {
	mac := hmac.New(sha256.New, k.secret)
	mac.Write([]byte(identity))
	return hex.EncodeToString(mac.Sum(nil))
}
