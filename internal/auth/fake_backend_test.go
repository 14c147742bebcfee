package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"afyacare.app/client/internal/backend"
	"afyacare.app/client/internal/store"
)

var testSecret = []byte("test-secret")

func mintToken(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// fakeBackend mimics the mobile REST backend's auth endpoints plus one
// protected resource.
type fakeBackend struct {
	t *testing.T

	mu       sync.Mutex
	accounts map[string]string
	access   map[string]bool
	refresh  map[string]bool
	seq      int

	failLogin     atomic.Bool
	rejectRefresh atomic.Bool
	alwaysDeny    atomic.Bool
	refreshGate   chan struct{} // guarded by mu; when set, refresh waits on it

	loginCalls    atomic.Int32
	registerCalls atomic.Int32
	refreshCalls  atomic.Int32
	unauthorized  atomic.Int32
	reportCalls   atomic.Int32
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	f := &fakeBackend{
		t:        t,
		accounts: map[string]string{"amina@afya.test": "siri-kali-1"},
		access:   map[string]bool{},
		refresh:  map[string]bool{},
	}

	r := chi.NewRouter()
	r.Post("/login/", f.login)
	r.Post("/register/", f.register)
	r.Post("/token/refresh/", f.refreshToken)
	r.Get("/reports/", f.reports)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeBackend) issue() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	a := mintToken(f.t, fmt.Sprintf("access-%d", f.seq), time.Hour)
	r := mintToken(f.t, fmt.Sprintf("refresh-%d", f.seq), 24*time.Hour)
	f.access[a] = true
	f.refresh[r] = true
	return a, r
}

func (f *fakeBackend) holdRefresh(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshGate = gate
}

func (f *fakeBackend) revokeAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = map[string]bool{}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	f.loginCalls.Add(1)
	var req map[string]string
	json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	pw, ok := f.accounts[req["email"]]
	f.mu.Unlock()
	if f.failLogin.Load() || !ok || pw != req["password"] {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}
	a, rt := f.issue()
	writeJSON(w, http.StatusOK, map[string]string{
		"access": a, "refresh": rt, "email": req["email"], "role": "patient", "full_name": "Amina Juma",
	})
}

func (f *fakeBackend) register(w http.ResponseWriter, r *http.Request) {
	f.registerCalls.Add(1)
	var req map[string]string
	json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.accounts[req["email"]]; exists {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"user with this email already exists."}})
		return
	}
	f.accounts[req["email"]] = req["password"]
	writeJSON(w, http.StatusCreated, map[string]string{"email": req["email"]})
}

func (f *fakeBackend) refreshToken(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)
	f.mu.Lock()
	gate := f.refreshGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	var req map[string]string
	json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	valid := f.refresh[req["refresh"]]
	f.mu.Unlock()
	if f.rejectRefresh.Load() || !valid {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
		return
	}
	a, _ := f.issue()
	writeJSON(w, http.StatusOK, map[string]string{"access": a})
}

func (f *fakeBackend) reports(w http.ResponseWriter, r *http.Request) {
	f.reportCalls.Add(1)
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	ok := f.access[token]
	f.mu.Unlock()
	if f.alwaysDeny.Load() || !ok {
		f.unauthorized.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
		return
	}
	writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "title": "CBC"}})
}

func newTestSession(t *testing.T, srv *httptest.Server) (*SessionManager, store.TokenStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	kv := s.Scoped(store.NamespaceMobile)
	client := backend.NewClient(srv.URL, 5*time.Second, slog.Default())
	return NewSessionManager(client, kv, MobileEndpoints, 10*time.Second, slog.Default()), kv
}

func storedKeys(t *testing.T, kv store.TokenStore) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, k := range []string{store.KeyAccessToken, store.KeyRefreshToken, store.KeyUser} {
		v, ok, err := kv.Get(context.Background(), k)
		if err != nil {
			t.Fatalf("Get %s failed: %v", k, err)
		}
		if ok {
			out[k] = v
		}
	}
	return out
}
