// Package store persists the client's key-value state: tokens, the cached
// profile, chat identifiers and the cart.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Persisted keys.
const (
	KeyAccessToken       = "access_token"
	KeyRefreshToken      = "refresh_token"
	KeyUser              = "user"
	KeyUserEmail         = "user_email"
	KeyDeviceID          = "device_id"
	KeySessionID         = "session_id"
	KeyHasSeenOnboarding = "hasSeenOnboarding"
	KeyCartItems         = "cartItems"
)

// Namespaces keep the mobile session and the web catalog session apart.
const (
	NamespaceMobile = "mobile"
	NamespaceWeb    = "web"
)

// TokenStore is a string key-value store. A missing key is reported with
// ok=false and a nil error.
type TokenStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Backend is a namespaced key-value store that can hand out scoped views.
type Backend interface {
	Scoped(namespace string) TokenStore
	Close() error
}

// GetJSON decodes the JSON value stored under key into v.
func GetJSON(ctx context.Context, s TokenStore, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v under key as a JSON string.
func SetJSON(ctx context.Context, s TokenStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
