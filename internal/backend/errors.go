package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// AuthenticationError reports credentials rejected on login or register.
type AuthenticationError struct {
	Status  int
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return "authentication failed: " + e.Message
}

// SessionExpiredError means the refresh token is gone or was rejected and the
// session has been ended.
type SessionExpiredError struct {
	Reason string
}

func (e *SessionExpiredError) Error() string {
	if e.Reason == "" {
		return "session expired"
	}
	return "session expired: " + e.Reason
}

// NetworkError wraps a transport failure or timeout.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError is raised by client-side checks before any request is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ServerValidationError is a non-2xx response. Messages holds the error
// strings found in the body, if it was structured.
type ServerValidationError struct {
	Status   int
	Messages []string
}

func (e *ServerValidationError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return e.Joined()
}

// Joined returns the error strings the way they are shown to the user.
func (e *ServerValidationError) Joined() string {
	return strings.Join(e.Messages, "\n")
}

// extractMessages pulls human-readable strings out of an error body such as
// {"detail": "..."} or {"email": ["already taken"], "non_field_errors": [...]}.
func extractMessages(body []byte) []string {
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		var list []any
		if err := json.Unmarshal(body, &list); err == nil {
			return flatten("", list)
		}
		return nil
	}

	var messages []string
	for _, k := range []string{"detail", "message", "error", "non_field_errors"} {
		if v, ok := obj[k]; ok {
			messages = append(messages, flatten("", v)...)
			delete(obj, k)
		}
	}

	fields := make([]string, 0, len(obj))
	for k := range obj {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, k := range fields {
		messages = append(messages, flatten(k, obj[k])...)
	}
	return messages
}

func flatten(field string, v any) []string {
	prefix := ""
	if field != "" {
		prefix = field + ": "
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{prefix + t}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, flatten(field, item)...)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, flatten(k, t[k])...)
		}
		return out
	default:
		return nil
	}
}
