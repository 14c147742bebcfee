package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"afyacare.app/client/internal/auth"
	"afyacare.app/client/internal/backend"
	"afyacare.app/client/internal/store"
)

// maxVoiceNoteSize caps uploads held in memory for replay after a refresh.
const maxVoiceNoteSize = 10 << 20

// ProfileService groups the smaller account screens: health education,
// feedback, profile edits, voice notes and the onboarding flag.
type ProfileService struct {
	transport *auth.Transport
	kv        store.TokenStore
	logger    *slog.Logger
}

func NewProfileService(transport *auth.Transport, kv store.TokenStore, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{transport: transport, kv: kv, logger: logger}
}

func (s *ProfileService) Elimu(ctx context.Context) ([]store.ElimuArticle, error) {
	var out []store.ElimuArticle
	if err := s.transport.ExecuteJSON(ctx, backend.Request{Method: http.MethodGet, Path: "/elimu/"}, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch health education content: %w", err)
	}
	if out == nil {
		out = []store.ElimuArticle{}
	}
	return out, nil
}

func (s *ProfileService) SendFeedback(ctx context.Context, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return &backend.ValidationError{Field: "message", Message: "feedback cannot be empty"}
	}
	if _, err := s.transport.Execute(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/feedback/",
		Body:   map[string]string{"message": message},
	}); err != nil {
		return fmt.Errorf("failed to send feedback: %w", err)
	}
	return nil
}

// UpdateProfile saves the edit and refreshes the cached user with what the
// backend returned, falling back to the submitted fields.
func (s *ProfileService) UpdateProfile(ctx context.Context, p store.ProfileUpdate) (*store.User, error) {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.TrimSpace(p.Email)
	if p == (store.ProfileUpdate{}) {
		return nil, &backend.ValidationError{Message: "nothing to update"}
	}

	session := s.transport.Session()
	current := session.CurrentUser()
	if current == nil {
		return nil, &backend.SessionExpiredError{Reason: "not logged in"}
	}

	var returned store.User
	if err := s.transport.ExecuteJSON(ctx, backend.Request{
		Method: http.MethodPut,
		Path:   "/update-profile/",
		Body:   p,
	}, &returned); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	updated := *current
	mergeProfile(&updated, store.User{FullName: p.FullName, Phone: p.Phone, Email: p.Email})
	mergeProfile(&updated, returned)
	if err := session.UpdateUser(ctx, updated); err != nil {
		return nil, err
	}
	s.logger.Info("Profile updated", "email", updated.Email)
	return &updated, nil
}

func mergeProfile(dst *store.User, src store.User) {
	if src.Email != "" {
		dst.Email = src.Email
	}
	if src.FullName != "" {
		dst.FullName = src.FullName
	}
	if src.Role != "" {
		dst.Role = src.Role
	}
	if src.Phone != "" {
		dst.Phone = src.Phone
	}
}

// SendVoiceNote uploads an audio recording for the given recipient.
func (s *ProfileService) SendVoiceNote(ctx context.Context, recipientID int64, filename string, r io.Reader) error {
	content, err := io.ReadAll(io.LimitReader(r, maxVoiceNoteSize+1))
	if err != nil {
		return fmt.Errorf("failed to read voice note: %w", err)
	}
	if len(content) == 0 {
		return &backend.ValidationError{Field: "audio", Message: "recording is empty"}
	}
	if len(content) > maxVoiceNoteSize {
		return &backend.ValidationError{Field: "audio", Message: "recording is too large"}
	}
	if filename = filepath.Base(filename); filename == "." || filename == "/" {
		filename = "voice-note.m4a"
	}

	if _, err := s.transport.Execute(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/api/voice-notes/send/%d/", recipientID),
		Multipart: &backend.MultipartBody{
			FileField: "audio",
			FileName:  filename,
			Content:   content,
		},
	}); err != nil {
		return fmt.Errorf("failed to send voice note: %w", err)
	}
	s.logger.Info("Voice note sent", "recipient", recipientID, "bytes", len(content))
	return nil
}

func (s *ProfileService) HasSeenOnboarding(ctx context.Context) (bool, error) {
	v, _, err := s.kv.Get(ctx, store.KeyHasSeenOnboarding)
	if err != nil {
		return false, fmt.Errorf("failed to read onboarding flag: %w", err)
	}
	return v == "true", nil
}

func (s *ProfileService) MarkOnboardingSeen(ctx context.Context) error {
	if err := s.kv.Set(ctx, store.KeyHasSeenOnboarding, "true"); err != nil {
		return fmt.Errorf("failed to store onboarding flag: %w", err)
	}
	return nil
}
