package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestDoAttachesBearerAndJSON(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Post("/api/feedback/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected Content-Type %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"message":"asante"}` {
			t.Errorf("unexpected body %s", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":7}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := NewClient(srv.URL+"/api/", 0, slog.Default())
	var out struct {
		ID int `json:"id"`
	}
	err := c.DoJSON(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/feedback/",
		Body:   map[string]string{"message": "asante"},
	}, "tok", &out)
	if err != nil {
		t.Fatalf("DoJSON failed: %v", err)
	}
	if out.ID != 7 {
		t.Fatalf("expected id 7, got %d", out.ID)
	}
}

func TestDoReturnsServerValidationError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"password":["too short"],"email":["already taken"],"detail":"invalid"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, nil)
	err := c.DoJSON(context.Background(), Request{Method: http.MethodPost, Path: "/register/"}, "", nil)

	var sve *ServerValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("expected ServerValidationError, got %T %v", err, err)
	}
	if sve.Status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", sve.Status)
	}
	want := "invalid\nemail: already taken\npassword: too short"
	if sve.Joined() != want {
		t.Errorf("expected %q, got %q", want, sve.Joined())
	}
}

func TestDoTimeoutIsNetworkError(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, 0, nil)
	_, err := c.Do(context.Background(), Request{Path: "/reports/", Timeout: 50 * time.Millisecond}, "")

	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %T %v", err, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded to be wrapped, got %v", err)
	}
}

func TestMultipartUpload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm failed: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("voice_note")
		if err != nil {
			t.Errorf("missing file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		if hdr.Filename != "note.m4a" || string(data) != "audio" {
			t.Errorf("unexpected upload %s %q", hdr.Filename, data)
		}
		if r.FormValue("duration") != "3" {
			t.Errorf("unexpected duration field %q", r.FormValue("duration"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, nil)
	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/voice-notes/send/4/",
		Multipart: &MultipartBody{
			FileField: "voice_note",
			FileName:  "note.m4a",
			Content:   []byte("audio"),
			Fields:    map[string]string{"duration": "3"},
		},
	}, "")
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
}

func TestExtractMessagesFallsBackToStatusText(t *testing.T) {
	t.Parallel()

	err := (&Response{StatusCode: http.StatusBadGateway, Body: []byte("<html>oops</html>")}).Err()
	if err == nil || err.Error() != "server returned 502 Bad Gateway" {
		t.Fatalf("unexpected error %v", err)
	}
}
