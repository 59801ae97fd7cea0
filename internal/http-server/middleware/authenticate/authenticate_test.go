package authenticate

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"groupgate/entity"
	"groupgate/lib/api/cont"
)

type staticResolver struct{}

func (staticResolver) Resolve(code string) (*entity.Identity, error) {
	return &entity.Identity{Role: entity.RoleAdmin, Code: code}, nil
}

func TestBearerCodeResolved(t *testing.T) {
	var got *entity.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = cont.GetIdentity(r.Context())
	})
	mw := New(slog.New(slog.NewTextHandler(io.Discard, nil)), staticResolver{})(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/groups", nil)
	req.Header.Set("Authorization", "Bearer ROOT1234")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.Code != "ROOT1234" {
		t.Errorf("expected resolved identity in context, got %+v", got)
	}
}

// A bare "Bearer" header with no token must come back as an auth failure,
// not a panic.
func TestBareBearerHeaderRejected(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without an access code")
	})
	mw := New(slog.New(slog.NewTextHandler(io.Discard, nil)), staticResolver{})(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/groups", nil)
	req.Header.Set("Authorization", "Bearer")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMissingHeaderRejected(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without authorization")
	})
	mw := New(slog.New(slog.NewTextHandler(io.Discard, nil)), staticResolver{})(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/groups", nil)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
