package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"afyacare.app/client/internal/auth"
	"afyacare.app/client/internal/backend"
	"afyacare.app/client/internal/core"
	"afyacare.app/client/internal/store"
)

// Services are the client components exposed by the gateway.
type Services struct {
	Session      *auth.SessionManager
	Chat         *core.ChatService
	Appointments *core.AppointmentService
	Availability *core.AvailabilityService
	Reports      *core.ReportService
	Profile      *core.ProfileService
	Catalog      *core.CatalogService
	Cart         *core.CartService
}

type APIHandler struct {
	svc    Services
	logger *slog.Logger
}

func NewAPIHandler(svc Services, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{svc: svc, logger: logger}
}

// RequireSession rejects requests while nobody is logged in, so screens get
// the same session_expired answer they would after a failed refresh.
func (h *APIHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.svc.Session.IsLoggedIn() {
			h.writeError(w, r, &backend.SessionExpiredError{Reason: "not logged in"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *APIHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.svc.Catalog.Admin().IsLoggedIn() {
			h.writeError(w, r, &backend.SessionExpiredError{Reason: "admin not logged in"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &backend.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}

// Session

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.svc.Session.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type RegisterRequest struct {
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            string `json:"role"`
	Phone           string `json:"phone"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.svc.Session.Register(r.Context(), auth.RegisterRequest(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.svc.Session.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Session.CurrentUser())
}

func (h *APIHandler) OnboardingHandler(w http.ResponseWriter, r *http.Request) {
	seen, err := h.svc.Profile.HasSeenOnboarding(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_seen_onboarding": seen})
}

func (h *APIHandler) MarkOnboardingHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Profile.MarkOnboardingSeen(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Chat

func (h *APIHandler) ChatStateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Chat.Snapshot())
}

type CreateSessionRequest struct {
	Hint string `json:"hint"`
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeBody(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	session, err := h.svc.Chat.CreateSession(r.Context(), req.Hint)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type ListSessionsResponse struct {
	Sessions  []store.ChatSession `json:"sessions"`
	Retryable bool                `json:"retryable"`
}

func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions := h.svc.Chat.ListSessions(r.Context())
	writeJSON(w, http.StatusOK, ListSessionsResponse{
		Sessions:  sessions,
		Retryable: h.svc.Chat.Snapshot().SessionsRetryable,
	})
}

func (h *APIHandler) SelectSessionHandler(w http.ResponseWriter, r *http.Request) {
	h.svc.Chat.SelectSession(r.Context(), chi.URLParam(r, "sessionID"))
	writeJSON(w, http.StatusOK, h.svc.Chat.Snapshot())
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessageHandler always answers with the conversation; failures show up
// in it as an apology rather than an error status.
func (h *APIHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.svc.Chat.SendMessage(r.Context(), req.Text)
	writeJSON(w, http.StatusOK, h.svc.Chat.Snapshot())
}
