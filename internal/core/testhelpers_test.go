package core

import (
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

	"afyacare.app/client/internal/auth"
	"afyacare.app/client/internal/backend"
	"afyacare.app/client/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// fakeChatBackend serves the chat endpoints from memory.
type fakeChatBackend struct {
	mu       sync.Mutex
	seq      int
	sessions []store.ChatSession
	history  map[string][]map[string]any
	gates    map[string]chan struct{} // history requests for these ids block until closed
	chatGate chan struct{}            // when set, /chat/ reports "chat" on entered and waits
	entered  chan string

	failChat    atomic.Bool
	failList    atomic.Bool
	failCreate  atomic.Bool
	chatCalls   atomic.Int32
	lastChatReq map[string]string
	reply       ChatReply
}

func newFakeChatBackend(t *testing.T) (*fakeChatBackend, *httptest.Server) {
	t.Helper()
	f := &fakeChatBackend{
		history: map[string][]map[string]any{},
		gates:   map[string]chan struct{}{},
		entered: make(chan string, 8),
		reply:   ChatReply{Response: "Pole sana."},
	}

	r := chi.NewRouter()
	r.Post("/sessions/create/", func(w http.ResponseWriter, r *http.Request) {
		if f.failCreate.Load() {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
			return
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.seq++
		s := store.ChatSession{
			SessionID: fmt.Sprintf("s-%d", f.seq),
			DeviceID:  req["device_id"],
			Topic:     req["topic"],
			CreatedAt: time.Date(2024, 1, f.seq, 0, 0, 0, 0, time.UTC),
		}
		f.sessions = append(f.sessions, s)
		f.mu.Unlock()
		// The real backend does not echo the topic on create.
		writeJSON(w, http.StatusCreated, map[string]any{"session_id": s.SessionID, "created_at": s.CreatedAt})
	})
	r.Get("/sessions/user/", func(w http.ResponseWriter, r *http.Request) {
		if f.failList.Load() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "down"})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		var out []store.ChatSession
		for _, s := range f.sessions {
			if s.DeviceID == r.URL.Query().Get("device_id") {
				out = append(out, s)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	r.Get("/sessions/{id}/messages/", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		f.mu.Lock()
		gate := f.gates[id]
		msgs := f.history[id]
		f.mu.Unlock()
		f.entered <- id
		if gate != nil {
			<-gate
		}
		if msgs == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	})
	r.Post("/chat/", func(w http.ResponseWriter, r *http.Request) {
		f.chatCalls.Add(1)
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.lastChatReq = req
		reply := f.reply
		gate := f.chatGate
		f.mu.Unlock()
		if gate != nil {
			f.entered <- "chat"
			<-gate
		}
		if f.failChat.Load() {
			writeJSON(w, http.StatusBadGateway, map[string]string{"detail": "upstream"})
			return
		}
		writeJSON(w, http.StatusOK, reply)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeChatBackend) setHistory(id string, msgs ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msgs == nil {
		msgs = []map[string]any{}
	}
	f.history[id] = msgs
}

func (f *fakeChatBackend) hold(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[id] = gate
	return gate
}

func (f *fakeChatBackend) holdChat() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.chatGate = gate
	return gate
}

type testEnv struct {
	kv        store.TokenStore
	client    *backend.Client
	session   *auth.SessionManager
	transport *auth.Transport
}

func newTestEnv(t *testing.T, baseURL string) *testEnv {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	kv := s.Scoped(store.NamespaceMobile)
	client := backend.NewClient(baseURL, 5*time.Second, slog.Default())
	session := auth.NewSessionManager(client, kv, auth.MobileEndpoints, 0, slog.Default())
	return &testEnv{kv: kv, client: client, session: session, transport: auth.NewTransport(client, session, slog.Default())}
}

// loggedInBackend serves /login/ and /token/refresh/ and hands every other
// request to next after checking the bearer token.
func loggedInBackend(t *testing.T, next func(r chi.Router)) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/login/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"access": "access-1", "refresh": "refresh-1", "email": "daktari@afya.test", "role": "doctor", "full_name": "Dr. Wanjiku",
		})
	})
	r.Post("/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access": "access-1"})
	})
	r.Group(func(r chi.Router) {
		r.Use(func(h http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ") != "access-1" {
					writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "no token"})
					return
				}
				h.ServeHTTP(w, req)
			})
		})
		next(r)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}
