package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"afyacare.app/client/internal/auth"
	"afyacare.app/client/internal/backend"
	"afyacare.app/client/internal/store"
	"afyacare.app/client/internal/utils"
)

// AvailabilityService manages a doctor's open slots and lists the doctors
// patients can book with.
type AvailabilityService struct {
	transport *auth.Transport
	logger    *slog.Logger
}

func NewAvailabilityService(transport *auth.Transport, logger *slog.Logger) *AvailabilityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AvailabilityService{transport: transport, logger: logger}
}

func (s *AvailabilityService) List(ctx context.Context) ([]store.Availability, error) {
	var out []store.Availability
	if err := s.transport.ExecuteJSON(ctx, backend.Request{Method: http.MethodGet, Path: "/availability/"}, &out); err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}
	if out == nil {
		out = []store.Availability{}
	}
	return out, nil
}

func (s *AvailabilityService) Create(ctx context.Context, a store.Availability) (*store.Availability, error) {
	if err := validateSlot(a); err != nil {
		return nil, err
	}
	var created store.Availability
	if err := s.transport.ExecuteJSON(ctx, backend.Request{Method: http.MethodPost, Path: "/availability/", Body: a}, &created); err != nil {
		return nil, fmt.Errorf("failed to create availability: %w", err)
	}
	s.logger.Info("Availability created", "id", created.ID, "date", created.Date)
	return &created, nil
}

func (s *AvailabilityService) Update(ctx context.Context, id int64, a store.Availability) (*store.Availability, error) {
	if err := validateSlot(a); err != nil {
		return nil, err
	}
	var updated store.Availability
	if err := s.transport.ExecuteJSON(ctx, backend.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/availability/%d/", id),
		Body:   a,
	}, &updated); err != nil {
		return nil, fmt.Errorf("failed to update availability %d: %w", id, err)
	}
	return &updated, nil
}

func (s *AvailabilityService) Delete(ctx context.Context, id int64) error {
	if _, err := s.transport.Execute(ctx, backend.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/availability/%d/", id),
	}); err != nil {
		return fmt.Errorf("failed to delete availability %d: %w", id, err)
	}
	return nil
}

func (s *AvailabilityService) AvailableDoctors(ctx context.Context) ([]store.Doctor, error) {
	var out []store.Doctor
	if err := s.transport.ExecuteJSON(ctx, backend.Request{Method: http.MethodGet, Path: "/availability/available-doctors/"}, &out); err != nil {
		return nil, fmt.Errorf("failed to list available doctors: %w", err)
	}
	if out == nil {
		out = []store.Doctor{}
	}
	return out, nil
}

// validateSlot requires a parseable date and an end after the start.
func validateSlot(a store.Availability) error {
	start, err := utils.CombineDateTime(a.Date, a.StartTime, time.UTC)
	if err != nil {
		return &backend.ValidationError{Field: "start_time", Message: err.Error()}
	}
	end, err := utils.CombineDateTime(a.Date, a.EndTime, time.UTC)
	if err != nil {
		return &backend.ValidationError{Field: "end_time", Message: err.Error()}
	}
	if !end.After(start) {
		return &backend.ValidationError{Field: "end_time", Message: "must be after the start time"}
	}
	return nil
}
