package core

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"afyacare.app/client/internal/auth"
	"afyacare.app/client/internal/backend"
	"afyacare.app/client/internal/store"
)

const (
	GreetingText = "Habari! Mimi ni msaidizi wako wa afya. Nieleze unavyojisikia, kwa mfano \"nina homa\"."
	ApologyText  = "Samahani, sikuweza kupata jibu kwa sasa. Tafadhali jaribu tena baadaye."
)

var fallbackTopics = []string{
	"Ushauri wa afya",
	"Dalili za ugonjwa",
	"Mazungumzo ya afya",
	"Swali la kiafya",
	"Ushauri wa daktari",
}

// Condition is one candidate condition returned by the triage backend.
type Condition struct {
	Name      string `json:"name"`
	Treatment string `json:"treatment"`
	Advice    string `json:"advice"`
}

// ChatReply is the backend's answer to a chat message.
type ChatReply struct {
	Response           string      `json:"response"`
	SessionID          string      `json:"session_id,omitempty"`
	PossibleConditions []Condition `json:"possible_conditions,omitempty"`
}

type chatRequest struct {
	Text      string `json:"text"`
	DeviceID  string `json:"device_id"`
	SessionID string `json:"session_id,omitempty"`
}

type createSessionRequest struct {
	DeviceID string `json:"device_id"`
	Topic    string `json:"topic,omitempty"`
}

type historyMessage struct {
	ID      json.RawMessage `json:"id"`
	Text    string          `json:"text"`
	Message string          `json:"message"`
	Sender  string          `json:"sender"`
}

// ChatState is a point-in-time copy of the conversation for rendering.
type ChatState struct {
	Messages          []store.Message     `json:"messages"`
	SessionID         string              `json:"session_id,omitempty"`
	DeviceID          string              `json:"device_id"`
	Sessions          []store.ChatSession `json:"sessions"`
	SessionsRetryable bool                `json:"sessions_retryable"`
	HistoryRetryable  bool                `json:"history_retryable"`
}

// ChatService drives the triage conversation. Network failures never escape
// as errors from SendMessage, ListSessions or SelectSession; they become an
// apology message or a retryable state instead.
type ChatService struct {
	anon      *backend.Client
	transport *auth.Transport
	kv        store.TokenStore
	logger    *slog.Logger

	mu                sync.Mutex
	messages          []store.Message
	sessionID         string
	deviceID          string
	sessions          []store.ChatSession
	sessionsRetryable bool
	historyRetryable  bool
	// epoch changes when a select starts and whenever a create or select
	// replaces the conversation; responses started under an older epoch are
	// dropped.
	epoch uint64

	// persistMu orders writes of the active session id so the stored value
	// ends up matching the in-memory one.
	persistMu sync.Mutex
}

func NewChatService(anon *backend.Client, transport *auth.Transport, kv store.TokenStore, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ChatService{
		anon:      anon,
		transport: transport,
		kv:        kv,
		logger:    logger,
		messages:  greeting(),
	}
	// Session lists are per user; drop the cached one when the user changes.
	transport.Session().Subscribe(func(*store.User) {
		s.mu.Lock()
		s.sessions = nil
		s.mu.Unlock()
	})
	return s
}

func greeting() []store.Message {
	return []store.Message{{ID: "greeting", Text: GreetingText, Sender: store.SenderBot, Status: store.StatusConfirmed}}
}

// call uses the authenticated transport when someone is logged in and the
// anonymous device identity otherwise.
func (s *ChatService) call(ctx context.Context, req backend.Request, out any) error {
	if s.transport.Session().IsLoggedIn() {
		return s.transport.ExecuteJSON(ctx, req, out)
	}
	return s.anon.DoJSON(ctx, req, "", out)
}

// Bootstrap ensures a device id exists, restores the last active session and
// loads its history, or starts with the greeting.
func (s *ChatService) Bootstrap(ctx context.Context) error {
	deviceID, ok, err := s.kv.Get(ctx, store.KeyDeviceID)
	if err != nil {
		return fmt.Errorf("failed to read device id: %w", err)
	}
	if !ok || deviceID == "" {
		deviceID = uuid.NewString()
		if err := s.kv.Set(ctx, store.KeyDeviceID, deviceID); err != nil {
			return fmt.Errorf("failed to persist device id: %w", err)
		}
		s.logger.Info("Generated device id", "device_id", deviceID)
	}

	sessionID, _, err := s.kv.Get(ctx, store.KeySessionID)
	if err != nil {
		return fmt.Errorf("failed to read session id: %w", err)
	}

	s.mu.Lock()
	s.deviceID = deviceID
	s.sessionID = sessionID
	s.messages = greeting()
	s.mu.Unlock()

	if sessionID != "" {
		s.SelectSession(ctx, sessionID)
	}
	return nil
}

// CreateSession mints a new server session seeded with an optional topic
// hint. On failure the current session stays active.
func (s *ChatService) CreateSession(ctx context.Context, hint string) (*store.ChatSession, error) {
	s.mu.Lock()
	deviceID := s.deviceID
	s.mu.Unlock()

	hint = strings.TrimSpace(hint)
	var created store.ChatSession
	err := s.call(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/sessions/create/",
		Body:   createSessionRequest{DeviceID: deviceID, Topic: hint},
	}, &created)
	if err != nil {
		s.logger.Warn("Failed to create chat session", "error", err)
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	if created.SessionID == "" {
		return nil, fmt.Errorf("failed to create chat session: no session id in response")
	}
	if created.Topic == "" {
		created.Topic = hint
	}
	created = AssignFallbackTopic(created)
	if created.DeviceID == "" {
		created.DeviceID = deviceID
	}

	s.mu.Lock()
	s.epoch++
	s.sessionID = created.SessionID
	s.messages = greeting()
	s.historyRetryable = false
	s.sessions = append([]store.ChatSession{created}, s.sessions...)
	s.mu.Unlock()

	s.persistSessionID(ctx)
	s.logger.Info("Chat session created", "session_id", created.SessionID)
	return &created, nil
}

// ListSessions fetches the sessions for the current user or device, newest
// first. A failure yields an empty, retryable result.
func (s *ChatService) ListSessions(ctx context.Context) []store.ChatSession {
	s.mu.Lock()
	deviceID := s.deviceID
	s.mu.Unlock()

	var sessions []store.ChatSession
	err := s.call(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "/sessions/user/",
		Query:  url.Values{"device_id": {deviceID}},
	}, &sessions)
	if err != nil {
		s.logger.Warn("Failed to list chat sessions", "error", err)
		s.mu.Lock()
		s.sessions = []store.ChatSession{}
		s.sessionsRetryable = true
		s.mu.Unlock()
		return []store.ChatSession{}
	}

	for i := range sessions {
		sessions[i] = AssignFallbackTopic(sessions[i])
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	s.mu.Lock()
	s.sessions = sessions
	s.sessionsRetryable = false
	s.mu.Unlock()
	return append([]store.ChatSession(nil), sessions...)
}

// SelectSession replaces the conversation with the server's history for id.
// A response that arrives after a newer select or create is discarded.
func (s *ChatService) SelectSession(ctx context.Context, id string) {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	var history []historyMessage
	err := s.call(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "/sessions/" + url.PathEscape(id) + "/messages/",
	}, &history)

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale session history", "session_id", id)
		return
	}
	if err != nil {
		s.historyRetryable = true
		s.mu.Unlock()
		s.logger.Warn("Failed to load session history", "session_id", id, "error", err)
		return
	}

	messages := make([]store.Message, 0, len(history))
	for _, h := range history {
		messages = append(messages, h.toMessage())
	}
	if len(messages) == 0 {
		messages = greeting()
	}
	// A send started before this point belongs to the previous conversation.
	s.epoch++
	s.sessionID = id
	s.messages = messages
	s.historyRetryable = false
	s.mu.Unlock()

	s.persistSessionID(ctx)
}

func (h historyMessage) toMessage() store.Message {
	id := strings.Trim(string(h.ID), `"`)
	if id == "" || id == "null" {
		id = uuid.NewString()
	}
	text := h.Text
	if text == "" {
		text = h.Message
	}
	sender := store.SenderUser
	switch strings.ToLower(h.Sender) {
	case "bot", "assistant", "ai", "model":
		sender = store.SenderBot
	}
	return store.Message{ID: id, Text: text, Sender: sender, Status: store.StatusConfirmed}
}

// SendMessage appends the user's text immediately, then the bot's reply, or
// an apology if the backend could not be reached. Blank input does nothing.
func (s *ChatService) SendMessage(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	userMsg := store.Message{ID: uuid.NewString(), Text: text, Sender: store.SenderUser, Status: store.StatusPending}
	s.mu.Lock()
	s.messages = append(s.messages, userMsg)
	epoch := s.epoch
	req := chatRequest{Text: text, DeviceID: s.deviceID, SessionID: s.sessionID}
	s.mu.Unlock()

	var reply ChatReply
	err := s.call(ctx, backend.Request{Method: http.MethodPost, Path: "/chat/", Body: req}, &reply)

	status := store.StatusConfirmed
	botText := FormatReply(reply)
	if err != nil {
		s.logger.Warn("Chat message failed, showing apology", "error", err)
		status = store.StatusFailed
		botText = ApologyText
	} else if botText == "" {
		botText = ApologyText
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		s.logger.Debug("Discarding reply for a conversation no longer shown")
		return
	}
	for i := range s.messages {
		if s.messages[i].ID == userMsg.ID {
			s.messages[i].Status = status
			break
		}
	}
	s.messages = append(s.messages, store.Message{ID: uuid.NewString(), Text: botText, Sender: store.SenderBot, Status: store.StatusConfirmed})

	adopted := false
	if err == nil && s.sessionID == "" && reply.SessionID != "" {
		s.sessionID = reply.SessionID
		adopted = true
	}
	s.mu.Unlock()

	if adopted {
		s.persistSessionID(ctx)
	}
}

// FormatReply renders the response text followed by one block per candidate
// condition, in the order the backend sent them.
func FormatReply(reply ChatReply) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(reply.Response))
	for _, c := range reply.PossibleConditions {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Ugonjwa: %s", c.Name)
		if c.Treatment != "" {
			fmt.Fprintf(&b, "\nMatibabu: %s", c.Treatment)
		}
		if c.Advice != "" {
			fmt.Fprintf(&b, "\nUshauri: %s", c.Advice)
		}
	}
	return b.String()
}

// AssignFallbackTopic gives a session without a topic one of the fixed
// phrases. The choice depends only on the session id, so a session keeps its
// topic across reloads.
func AssignFallbackTopic(session store.ChatSession) store.ChatSession {
	if strings.TrimSpace(session.Topic) != "" {
		return session
	}
	h := fnv.New32a()
	h.Write([]byte(session.SessionID))
	session.Topic = fallbackTopics[h.Sum32()%uint32(len(fallbackTopics))]
	return session
}

func (s *ChatService) Snapshot() ChatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := s.sessions
	if sessions == nil {
		sessions = []store.ChatSession{}
	}
	return ChatState{
		Messages:          append([]store.Message(nil), s.messages...),
		SessionID:         s.sessionID,
		DeviceID:          s.deviceID,
		Sessions:          append([]store.ChatSession{}, sessions...),
		SessionsRetryable: s.sessionsRetryable,
		HistoryRetryable:  s.historyRetryable,
	}
}

// persistSessionID stores the session id that is active when the write
// happens, not the one the caller saw, so back-to-back changes cannot leave
// an older id on disk.
func (s *ChatService) persistSessionID(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	id := s.sessionID
	s.mu.Unlock()
	if id == "" {
		return
	}
	if err := s.kv.Set(ctx, store.KeySessionID, id); err != nil {
		s.logger.Error("Failed to persist session id", "session_id", id, "error", err)
	}
}
