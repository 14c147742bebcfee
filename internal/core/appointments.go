package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"afyacare.app/client/internal/auth"
	"afyacare.app/client/internal/backend"
	"afyacare.app/client/internal/store"
	"afyacare.app/client/internal/utils"
)

// Appointment statuses a doctor may set.
var appointmentStatuses = map[string]bool{
	"pending":   true,
	"confirmed": true,
	"cancelled": true,
	"completed": true,
}

// AppointmentService covers booking and managing appointments for both
// patients and doctors. Every call goes through the authenticated transport.
type AppointmentService struct {
	transport *auth.Transport
	logger    *slog.Logger
}

func NewAppointmentService(transport *auth.Transport, logger *slog.Logger) *AppointmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppointmentService{transport: transport, logger: logger}
}

func appointmentPath(id int64, suffix string) string {
	return fmt.Sprintf("/appointment/%d/%s", id, suffix)
}

func (s *AppointmentService) Get(ctx context.Context, id int64) (*store.Appointment, error) {
	var a store.Appointment
	if err := s.transport.ExecuteJSON(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/appointments/%d/", id),
	}, &a); err != nil {
		return nil, fmt.Errorf("failed to fetch appointment %d: %w", id, err)
	}
	return &a, nil
}

// Mine lists the logged-in patient's appointments, soonest first.
func (s *AppointmentService) Mine(ctx context.Context) ([]store.Appointment, error) {
	return s.list(ctx, "/my-appointments/")
}

// ForDoctor lists the logged-in doctor's appointments, soonest first.
func (s *AppointmentService) ForDoctor(ctx context.Context) ([]store.Appointment, error) {
	return s.list(ctx, "/doctor-appointments/")
}

func (s *AppointmentService) list(ctx context.Context, path string) ([]store.Appointment, error) {
	var out []store.Appointment
	if err := s.transport.ExecuteJSON(ctx, backend.Request{Method: http.MethodGet, Path: path}, &out); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	if out == nil {
		out = []store.Appointment{}
	}
	SortAppointments(out)
	return out, nil
}

func (s *AppointmentService) Book(ctx context.Context, req store.BookAppointmentRequest) (*store.Appointment, error) {
	req.Doctor = strings.TrimSpace(req.Doctor)
	switch {
	case req.Doctor == "":
		return nil, &backend.ValidationError{Field: "doctor", Message: "choose a doctor"}
	case req.Date == "":
		return nil, &backend.ValidationError{Field: "date", Message: "choose a date"}
	case req.Time == "":
		return nil, &backend.ValidationError{Field: "time", Message: "choose a time"}
	}
	if _, err := utils.CombineDateTime(req.Date, req.Time, time.Local); err != nil {
		return nil, &backend.ValidationError{Field: "date", Message: err.Error()}
	}

	var a store.Appointment
	if err := s.transport.ExecuteJSON(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/appointment/book/",
		Body:   req,
	}, &a); err != nil {
		return nil, fmt.Errorf("failed to book appointment: %w", err)
	}
	s.logger.Info("Appointment booked", "id", a.ID, "date", a.Date, "time", a.Time)
	return &a, nil
}

func (s *AppointmentService) UpdateStatus(ctx context.Context, id int64, status string) (*store.Appointment, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !appointmentStatuses[status] {
		return nil, &backend.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	var a store.Appointment
	if err := s.transport.ExecuteJSON(ctx, backend.Request{
		Method: http.MethodPatch,
		Path:   appointmentPath(id, "update-status/"),
		Body:   map[string]string{"status": status},
	}, &a); err != nil {
		return nil, fmt.Errorf("failed to update appointment %d: %w", id, err)
	}
	return &a, nil
}

func (s *AppointmentService) Delete(ctx context.Context, id int64) error {
	if _, err := s.transport.Execute(ctx, backend.Request{
		Method: http.MethodDelete,
		Path:   appointmentPath(id, "delete/"),
	}); err != nil {
		return fmt.Errorf("failed to delete appointment %d: %w", id, err)
	}
	return nil
}

// SortAppointments orders by date and time ascending. Entries whose date or
// time cannot be parsed go last, in their original order.
func SortAppointments(list []store.Appointment) {
	at := func(a store.Appointment) (time.Time, bool) {
		t, err := utils.CombineDateTime(a.Date, a.Time, time.UTC)
		return t, err == nil
	}
	sort.SliceStable(list, func(i, j int) bool {
		ti, oki := at(list[i])
		tj, okj := at(list[j])
		if oki != okj {
			return oki
		}
		return oki && ti.Before(tj)
	})
}
