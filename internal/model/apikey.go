package model

import (
	"slices"
	"time"
)

// Scopes granted to a principal. Admin holds every other scope.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

// ValidScopes lists the scopes a key may carry, in display order.
var ValidScopes = []string{ScopeRead, ScopeWrite, ScopeAdmin}

// IsValidScope reports whether scope is one of ValidScopes.
func IsValidScope(scope string) bool {
	return slices.Contains(ValidScopes, scope)
}

// Rate limit tiers. New keys start at TierFree; basic auth principals are
// always TierFree.
const (
	TierFree      = "free"
	TierPro       = "pro"
	TierUnlimited = "unlimited"
)

// RateLimitConfig is a token bucket: RequestsPerMinute refill and Burst
// capacity. A zero RequestsPerMinute disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// TierConfigs holds the bucket for each tier.
var TierConfigs = map[string]RateLimitConfig{
	TierFree:      {RequestsPerMinute: 60, Burst: 10},
	TierPro:       {RequestsPerMinute: 600, Burst: 50},
	TierUnlimited: {},
}

// IsValidTier reports whether tier has an entry in TierConfigs.
func IsValidTier(tier string) bool {
	_, ok := TierConfigs[tier]
	return ok
}

// TierConfig returns the bucket for tier. Unknown tiers get the free bucket.
func TierConfig(tier string) RateLimitConfig {
	if !IsValidTier(tier) {
		tier = TierFree
	}
	return TierConfigs[tier]
}

// APIKey is a bearer credential owned by an account. Only the argon2 hash of
// the secret is stored; KeyPrefix locates candidates during lookup.
type APIKey struct {
	ID            string     `json:"id"`
	AccountID     int64      `json:"account_id"`
	Username      string     `json:"username"`
	KeyHash       string     `json:"-"`
	KeyPrefix     string     `json:"key_prefix"`
	Scopes        []string   `json:"scopes"`
	RateLimitTier string     `json:"rate_limit_tier"`
	Name          string     `json:"name,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

func (k *APIKey) HasScope(scope string) bool {
	return grants(k.Scopes, scope)
}

// Limits returns the bucket for the key's tier.
func (k *APIKey) Limits() RateLimitConfig {
	return TierConfig(k.RateLimitTier)
}

// How an AuthContext was established.
const (
	AuthMethodAPIKey = "api_key"
	AuthMethodBasic  = "basic"
)

// AuthContext is the principal attached to a request after authentication.
// KeyID and KeyPrefix are empty for basic auth.
type AuthContext struct {
	KeyID         string   `json:"key_id,omitempty"`
	KeyPrefix     string   `json:"key_prefix,omitempty"`
	AccountID     int64    `json:"account_id"`
	Username      string   `json:"username"`
	Scopes        []string `json:"scopes"`
	RateLimitTier string   `json:"rate_limit_tier"`
	Method        string   `json:"method"`
}

func (a *AuthContext) HasScope(scope string) bool {
	return grants(a.Scopes, scope)
}

// RateLimitKey names the bucket for this principal: one per API key, and
// one per account for basic auth.
func (a *AuthContext) RateLimitKey() string {
	if a.KeyID == "" {
		return "user:" + a.Username
	}
	return "key:" + a.KeyID
}

func grants(held []string, scope string) bool {
	for _, s := range held {
		if s == scope || s == ScopeAdmin {
			return true
		}
	}
	return false
}

// APIKeyCreateRequest is the body of POST /api-keys.
type APIKeyCreateRequest struct {
	Name   string   `json:"name,omitempty"`
	Scopes []string `json:"scopes"`
}

// APIKeyResponse describes a key without its secret or hash.
type APIKeyResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	Username      string     `json:"username"`
	KeyPrefix     string     `json:"key_prefix"`
	Scopes        []string   `json:"scopes"`
	RateLimitTier string     `json:"rate_limit_tier"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	Revoked       bool       `json:"revoked"`
}

func (k *APIKey) ToResponse() APIKeyResponse {
	return APIKeyResponse{
		ID:            k.ID,
		Name:          k.Name,
		Username:      k.Username,
		KeyPrefix:     k.KeyPrefix,
		Scopes:        k.Scopes,
		RateLimitTier: k.RateLimitTier,
		CreatedAt:     k.CreatedAt,
		LastUsedAt:    k.LastUsedAt,
		Revoked:       k.IsRevoked(),
	}
}

// APIKeyCreateResponse is the only response that carries the plaintext key.
type APIKeyCreateResponse struct {
	ID            string    `json:"id"`
	Key           string    `json:"key"`
	Name          string    `json:"name,omitempty"`
	KeyPrefix     string    `json:"key_prefix"`
	Scopes        []string  `json:"scopes"`
	RateLimitTier string    `json:"rate_limit_tier"`
	CreatedAt     time.Time `json:"created_at"`
}

// APIKeyRotateResponse pairs the replacement key with the revoked one.
type APIKeyRotateResponse struct {
	OldKeyID        string               `json:"old_key_id"`
	OldKeyRevokedAt time.Time            `json:"old_key_revoked_at"`
	NewKey          APIKeyCreateResponse `json:"new_key"`
}
