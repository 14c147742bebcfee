package core

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"afyacare.app/client/internal/auth"
	"afyacare.app/client/internal/backend"
	"afyacare.app/client/internal/store"
)

type ReportService struct {
	transport *auth.Transport
	timeout   time.Duration
}

// NewReportService bounds each listing by timeout; zero leaves the transport
// default in place.
func NewReportService(transport *auth.Transport, timeout time.Duration) *ReportService {
	return &ReportService{transport: transport, timeout: timeout}
}

// List returns the user's medical reports, newest first.
func (s *ReportService) List(ctx context.Context) ([]store.Report, error) {
	var out []store.Report
	if err := s.transport.ExecuteJSON(ctx, backend.Request{
		Method:  http.MethodGet,
		Path:    "/reports/",
		Timeout: s.timeout,
	}, &out); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if out == nil {
		out = []store.Report{}
	}
	SortReports(out)
	return out, nil
}

func SortReports(list []store.Report) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
