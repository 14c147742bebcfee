package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"afyacare.app/client/internal/auth"
	"afyacare.app/client/internal/backend"
	"afyacare.app/client/internal/store"
)

// CatalogService reads the public medicine and pharmacy catalog and holds the
// admin session for the web backend.
type CatalogService struct {
	client *backend.Client
	admin  *auth.Transport
	logger *slog.Logger
}

// NewCatalogService takes the plain catalog client for public reads and a
// transport whose session manager uses auth.WebEndpoints.
func NewCatalogService(client *backend.Client, admin *auth.Transport, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{client: client, admin: admin, logger: logger}
}

// call sends the admin bearer token when an admin is logged in.
func (s *CatalogService) call(ctx context.Context, req backend.Request, out any) error {
	if s.admin.Session().IsLoggedIn() {
		return s.admin.ExecuteJSON(ctx, req, out)
	}
	return s.client.DoJSON(ctx, req, "", out)
}

func (s *CatalogService) Medicines(ctx context.Context) ([]store.Medicine, error) {
	var out []store.Medicine
	if err := s.call(ctx, backend.Request{Method: http.MethodGet, Path: "/api/medicine/"}, &out); err != nil {
		return nil, fmt.Errorf("failed to list medicines: %w", err)
	}
	if out == nil {
		out = []store.Medicine{}
	}
	return out, nil
}

// Medicine looks a single medicine up by name.
func (s *CatalogService) Medicine(ctx context.Context, name string) (*store.Medicine, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &backend.ValidationError{Field: "name", Message: "medicine name is required"}
	}
	var m store.Medicine
	if err := s.call(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "/api/medicine/" + url.PathEscape(name) + "/",
	}, &m); err != nil {
		return nil, fmt.Errorf("failed to fetch medicine %q: %w", name, err)
	}
	return &m, nil
}

func (s *CatalogService) Pharmacies(ctx context.Context) ([]store.Pharmacy, error) {
	var out []store.Pharmacy
	if err := s.call(ctx, backend.Request{Method: http.MethodGet, Path: "/api/pharmacies/"}, &out); err != nil {
		return nil, fmt.Errorf("failed to list pharmacies: %w", err)
	}
	if out == nil {
		out = []store.Pharmacy{}
	}
	return out, nil
}

// Admin is the web backend session, separate from the mobile one.
func (s *CatalogService) Admin() *auth.SessionManager {
	return s.admin.Session()
}
