package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// API keys look like pk_{env}_{prefix}_{secret}, for example
// pk_live_7a9x3k_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b.
const (
	KeyPrefixLen = 6  // hex chars, looked up in the database
	KeySecretLen = 32 // hex chars, only ever stored hashed
)

// Environment indicators for key prefix.
const (
	EnvLive = "live"
	EnvTest = "test"
)

// ErrInvalidKeyFormat indicates the key format is invalid.
var ErrInvalidKeyFormat = errors.New("invalid API key format")

var keyFormatRegex = regexp.MustCompile(`^pk_(live|test)_([a-f0-9]{6})_([a-f0-9]{32})$`)

// GeneratedKey contains the parts of a newly generated API key.
type GeneratedKey struct {
	Plaintext string // show once only
	Hash      string // argon2id, stored
	Prefix    string // stored, used for lookup
}

// GenerateAPIKey creates a new key for env. Unknown envs become live keys.
func GenerateAPIKey(env string) (*GeneratedKey, error) {
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

	plaintext := fmt.Sprintf("pk_%s_%s_%s", env, prefix, secret)
	hash, err := HashPassword(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}

	return &GeneratedKey{Plaintext: plaintext, Hash: hash, Prefix: prefix}, nil
}

// EnvForAppEnv maps APP_ENV to the key environment.
func EnvForAppEnv(appEnv string) string {
	if appEnv == "production" {
		return EnvLive
	}
	return EnvTest
}

// ParsedKey contains the parsed parts of an API key.
type ParsedKey struct {
	Env    string
	Prefix string
	Secret string
}

// ParseAPIKey splits a plaintext key into its parts.
func ParseAPIKey(key string) (*ParsedKey, error) {
	m := keyFormatRegex.FindStringSubmatch(key)
	if m == nil {
		return nil, ErrInvalidKeyFormat
	}
	return &ParsedKey{Env: m[1], Prefix: m[2], Secret: m[3]}, nil
}

// ValidateKeyFormat checks if the key matches the expected format.
func ValidateKeyFormat(key string) bool {
	return keyFormatRegex.MatchString(key)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
