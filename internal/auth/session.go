// Package auth owns the authenticated session: who is logged in, with which
// tokens, and how requests get a valid bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"afyacare.app/client/internal/backend"
	"afyacare.app/client/internal/store"
)

const minPasswordLength = 8

const refreshTimeout = 30 * time.Second

// Endpoints names the backend paths a SessionManager uses.
type Endpoints struct {
	LoginPath    string
	RegisterPath string // empty when the service has no self-registration
	RefreshPath  string
	ProfilePath  string // fetched after login when the token response carries no profile
	LoginField   string // credential field name: "email" or "username"
}

var (
	MobileEndpoints = Endpoints{
		LoginPath:    "/login/",
		RegisterPath: "/register/",
		RefreshPath:  "/token/refresh/",
		LoginField:   "email",
	}
	WebEndpoints = Endpoints{
		LoginPath:   "/api/token/",
		RefreshPath: "/api/token/refresh/",
		ProfilePath: "/api/users/me/",
		LoginField:  "username",
	}
)

// RegisterRequest is the profile submitted on sign-up.
type RegisterRequest struct {
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
	Role            string `json:"role,omitempty"`
	Phone           string `json:"phone,omitempty"`
}

func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || !strings.Contains(r.Email, "@") {
		return &backend.ValidationError{Field: "email", Message: "a valid email is required"}
	}
	if strings.TrimSpace(r.FullName) == "" {
		return &backend.ValidationError{Field: "full_name", Message: "full name is required"}
	}
	if len(r.Password) < minPasswordLength {
		return &backend.ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}
	if r.ConfirmPassword != r.Password {
		return &backend.ValidationError{Field: "confirm_password", Message: "passwords do not match"}
	}
	return nil
}

type loginResponse struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// SessionManager is the single source of truth for the logged-in user.
type SessionManager struct {
	client    *backend.Client
	tokens    store.TokenStore
	endpoints Endpoints
	logger    *slog.Logger
	leeway    time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	user    *store.User
	subs    map[int]func(*store.User)
	nextSub int

	refreshGroup singleflight.Group
}

func NewSessionManager(client *backend.Client, tokens store.TokenStore, endpoints Endpoints, leeway time.Duration, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		client:    client,
		tokens:    tokens,
		endpoints: endpoints,
		logger:    logger,
		leeway:    leeway,
		now:       time.Now,
		subs:      make(map[int]func(*store.User)),
	}
}

// CurrentUser returns a copy of the in-memory user, or nil when logged out.
func (m *SessionManager) CurrentUser() *store.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *SessionManager) IsLoggedIn() bool {
	return m.CurrentUser() != nil
}

// Subscribe registers fn to be called with the new user (nil on logout)
// whenever the session changes. The returned func removes the subscription.
func (m *SessionManager) Subscribe(fn func(*store.User)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *SessionManager) setUser(u *store.User) {
	m.mu.Lock()
	m.user = u
	subs := make([]func(*store.User), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		if u == nil {
			fn(nil)
			continue
		}
		cp := *u
		fn(&cp)
	}
}

// LoadUser hydrates the in-memory user from storage. Token freshness is not
// checked here; an expired token surfaces on the next authenticated call.
func (m *SessionManager) LoadUser(ctx context.Context) (*store.User, error) {
	var u store.User
	ok, err := store.GetJSON(ctx, m.tokens, store.KeyUser, &u)
	if err != nil {
		m.logger.Warn("Stored user record unreadable, starting logged out", "error", err)
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	m.setUser(&u)
	return m.CurrentUser(), nil
}

// Login posts credentials and, on success, persists the tokens and profile.
// On any failure the previous session is left untouched.
func (m *SessionManager) Login(ctx context.Context, email, password string) (*store.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, &backend.ValidationError{Message: "email and password are required"}
	}

	field := m.endpoints.LoginField
	if field == "" {
		field = "email"
	}
	resp, err := m.client.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   m.endpoints.LoginPath,
		Body:   map[string]string{field: email, "password": password},
	}, "")
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		msg := ""
		var sve *backend.ServerValidationError
		if errors.As(resp.Err(), &sve) {
			msg = sve.Joined()
		}
		return nil, &backend.AuthenticationError{Status: resp.StatusCode, Message: msg}
	}

	var lr loginResponse
	if err := resp.Decode(&lr); err != nil {
		return nil, err
	}
	if lr.Access == "" {
		return nil, &backend.AuthenticationError{Status: resp.StatusCode, Message: "no access token in login response"}
	}

	user := &store.User{Email: lr.Email, FullName: lr.FullName, Role: lr.Role, Phone: lr.Phone}
	if m.endpoints.ProfilePath != "" {
		if err := m.client.DoJSON(ctx, backend.Request{Method: http.MethodGet, Path: m.endpoints.ProfilePath}, lr.Access, user); err != nil {
			return nil, fmt.Errorf("failed to fetch profile after login: %w", err)
		}
	}
	if user.Email == "" {
		user.Email = email
	}

	if err := m.persist(ctx, lr.Access, lr.Refresh, user); err != nil {
		return nil, err
	}
	m.setUser(user)
	m.logger.Info("Logged in", "email", user.Email, "role", user.Role)
	return m.CurrentUser(), nil
}

func (m *SessionManager) persist(ctx context.Context, access, refresh string, user *store.User) error {
	writes := []func() error{
		func() error { return m.tokens.Set(ctx, store.KeyAccessToken, access) },
		func() error { return m.tokens.Set(ctx, store.KeyRefreshToken, refresh) },
		func() error { return store.SetJSON(ctx, m.tokens, store.KeyUser, user) },
		func() error { return m.tokens.Set(ctx, store.KeyUserEmail, user.Email) },
	}
	for _, write := range writes {
		if err := write(); err != nil {
			// Never leave a token without its user record.
			m.clearStored(ctx)
			m.setUser(nil)
			return fmt.Errorf("failed to persist session: %w", err)
		}
	}
	return nil
}

// UpdateUser replaces the cached profile after the backend accepted an edit.
// Tokens are left alone.
func (m *SessionManager) UpdateUser(ctx context.Context, u store.User) error {
	if !m.IsLoggedIn() {
		return &backend.SessionExpiredError{Reason: "not logged in"}
	}
	if err := store.SetJSON(ctx, m.tokens, store.KeyUser, u); err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}
	if u.Email != "" {
		if err := m.tokens.Set(ctx, store.KeyUserEmail, u.Email); err != nil {
			m.logger.Warn("Failed to store user email", "error", err)
		}
	}
	m.setUser(&u)
	return nil
}

// Register creates the account and then logs in with the same credentials.
// If the login step fails the account still exists server-side and the error
// is returned with the token store untouched.
func (m *SessionManager) Register(ctx context.Context, req RegisterRequest) (*store.User, error) {
	if m.endpoints.RegisterPath == "" {
		return nil, fmt.Errorf("registration is not available for this service")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := m.client.Do(ctx, backend.Request{Method: http.MethodPost, Path: m.endpoints.RegisterPath, Body: req}, "")
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		msg := ""
		var sve *backend.ServerValidationError
		if errors.As(resp.Err(), &sve) {
			msg = sve.Joined()
		}
		return nil, &backend.AuthenticationError{Status: resp.StatusCode, Message: msg}
	}
	m.logger.Info("Account registered", "email", req.Email)

	user, err := m.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, fmt.Errorf("account created but login failed: %w", err)
	}
	return user, nil
}

// Logout clears the persisted session and the in-memory user. It never fails.
func (m *SessionManager) Logout(ctx context.Context) {
	m.clearStored(ctx)
	m.setUser(nil)
	m.logger.Info("Logged out")
}

func (m *SessionManager) clearStored(ctx context.Context) {
	// Detached so a cancelled caller cannot leave tokens behind.
	ctx = context.WithoutCancel(ctx)
	if err := m.tokens.Delete(ctx, store.KeyAccessToken, store.KeyRefreshToken, store.KeyUser); err != nil {
		m.logger.Error("Failed to clear stored session", "error", err)
	}
}

// RefreshAccessToken exchanges the stored refresh token for a new access
// token. A missing or rejected refresh token ends the session and returns a
// *backend.SessionExpiredError. Concurrent callers share one request, which
// runs under its own deadline so one caller giving up does not fail the rest.
func (m *SessionManager) RefreshAccessToken(ctx context.Context) (string, error) {
	ch := m.refreshGroup.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refresh(rctx)
	})
	select {
	case <-ctx.Done():
		return "", &backend.NetworkError{Op: "POST " + m.endpoints.RefreshPath, Err: ctx.Err()}
	case res := <-ch:
		if res.Shared {
			m.logger.Debug("Joined in-flight token refresh")
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (m *SessionManager) refresh(ctx context.Context) (string, error) {
	refresh, ok, err := m.tokens.Get(ctx, store.KeyRefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	if !ok || refresh == "" {
		m.Logout(ctx)
		return "", &backend.SessionExpiredError{Reason: "no refresh token"}
	}

	resp, err := m.client.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   m.endpoints.RefreshPath,
		Body:   map[string]string{"refresh": refresh},
	}, "")
	if err != nil {
		// Transport failures keep the session; the refresh token may still be good.
		return "", err
	}
	if !resp.OK() {
		m.logger.Warn("Refresh token rejected", "status", resp.StatusCode)
		m.Logout(ctx)
		return "", &backend.SessionExpiredError{Reason: "refresh token rejected"}
	}

	var rr refreshResponse
	if err := resp.Decode(&rr); err != nil || rr.Access == "" {
		m.Logout(ctx)
		return "", &backend.SessionExpiredError{Reason: "refresh response carried no access token"}
	}

	if err := m.tokens.Set(ctx, store.KeyAccessToken, rr.Access); err != nil {
		return "", fmt.Errorf("failed to store access token: %w", err)
	}
	if rr.Refresh != "" && rr.Refresh != refresh {
		if err := m.tokens.Set(ctx, store.KeyRefreshToken, rr.Refresh); err != nil {
			m.logger.Warn("Failed to store rotated refresh token", "error", err)
		}
	}
	m.logger.Debug("Access token refreshed")
	return rr.Access, nil
}

// AccessToken returns a usable access token, refreshing when the stored one
// is absent or about to expire.
func (m *SessionManager) AccessToken(ctx context.Context) (string, error) {
	token, ok, err := m.tokens.Get(ctx, store.KeyAccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}
	if ok && token != "" && !AccessTokenExpired(token, m.leeway, m.now()) {
		return token, nil
	}
	return m.RefreshAccessToken(ctx)
}

// storedAccessToken is the current token without any refresh attempt.
func (m *SessionManager) storedAccessToken(ctx context.Context) string {
	token, _, err := m.tokens.Get(ctx, store.KeyAccessToken)
	if err != nil {
		return ""
	}
	return token
}
