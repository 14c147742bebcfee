package auth

import (
	"testing"
	"time"
)

func TestAccessTokenExpired(t *testing.T) {
	t.Parallel()
	now := time.Now()

	fresh := mintToken(t, "u", time.Hour)
	if AccessTokenExpired(fresh, 10*time.Second, now) {
		t.Error("fresh token reported expired")
	}

	nearly := mintToken(t, "u", 5*time.Second)
	if !AccessTokenExpired(nearly, 10*time.Second, now) {
		t.Error("token inside leeway should count as expired")
	}

	old := mintToken(t, "u", -time.Minute)
	if !AccessTokenExpired(old, 0, now) {
		t.Error("expired token reported fresh")
	}

	if AccessTokenExpired("opaque-token", 0, now) {
		t.Error("opaque tokens are assumed valid")
	}
}

func TestTokenExpiry(t *testing.T) {
	t.Parallel()
	tok := mintToken(t, "u", time.Hour)
	exp, ok := TokenExpiry(tok)
	if !ok {
		t.Fatal("expected exp claim")
	}
	if d := time.Until(exp); d < 59*time.Minute || d > 61*time.Minute {
		t.Errorf("unexpected expiry %v", exp)
	}
}
