package auth

import (
	"context"
	"log/slog"
	"net/http"

	"afyacare.app/client/internal/backend"
)

// Transport executes backend requests with the session's bearer token. It is
// the only place that reacts to 401: at most one refresh, then exactly one
// retry with the refreshed token.
type Transport struct {
	client  *backend.Client
	session *SessionManager
	logger  *slog.Logger
}

func NewTransport(client *backend.Client, session *SessionManager, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{client: client, session: session, logger: logger}
}

func (t *Transport) Session() *SessionManager { return t.session }

// Execute performs req. A non-2xx response other than 401 is returned along
// with a *backend.ServerValidationError. Authorization failures that survive
// a refresh made for this request end the session with a
// *backend.SessionExpiredError.
func (t *Transport) Execute(ctx context.Context, req backend.Request) (*backend.Response, error) {
	token, err := t.session.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, resp.Err()
	}

	// Another request may already have refreshed while this one was in flight.
	// If that token is rejected too, this request still gets its own refresh.
	if current := t.session.storedAccessToken(ctx); current != "" && current != token {
		resp, err = t.client.Do(ctx, req, current)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized {
			return resp, resp.Err()
		}
	}

	t.logger.Debug("Access token rejected, refreshing", "path", req.Path)
	token, err = t.session.RefreshAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err = t.client.Do(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		t.logger.Warn("Request unauthorized after token refresh, ending session", "path", req.Path)
		t.session.Logout(ctx)
		return nil, &backend.SessionExpiredError{Reason: "unauthorized after refresh"}
	}
	return resp, resp.Err()
}

// ExecuteJSON performs req and decodes a 2xx body into out.
func (t *Transport) ExecuteJSON(ctx context.Context, req backend.Request, out any) error {
	resp, err := t.Execute(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}
