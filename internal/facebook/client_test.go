package facebook_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pollpick/internal/facebook"
)

func newGraph(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		token := r.URL.Query().Get("access_token")
		if r.URL.Query().Get("fields") == "" {
			t.Errorf("missing fields param")
		}
		switch {
		case token == "expired":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Session has expired","type":"OAuthException","code":190}}`))
		case r.URL.Path == "/me":
			_, _ = w.Write([]byte(`{"id":"fb1","name":"Zoë Zed","first_name":"Zoë","email":"zoe@example.com","gender":"female"}`))
		case r.URL.Path == "/fb2" && token == "app":
			_, _ = w.Write([]byte(`{"id":"fb2","first_name":"Bo"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"not found","type":"GraphMethodException"}}`))
		}
	}))
}

func TestMe(t *testing.T) {
	srv := newGraph(t)
	defer srv.Close()

	p, err := facebook.NewClient(srv.URL).Me(context.Background(), "good")
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if p.ID != "fb1" || p.FirstName != "Zoë" || p.Email != "zoe@example.com" || p.Gender != "female" {
		t.Errorf("profile = %+v", p)
	}
}

func TestUser_AppToken(t *testing.T) {
	srv := newGraph(t)
	defer srv.Close()

	p, err := facebook.NewClient(srv.URL+"/").User(context.Background(), "fb2", "app")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if p.FirstName != "Bo" {
		t.Errorf("profile = %+v", p)
	}
}

func TestErrors(t *testing.T) {
	srv := newGraph(t)
	defer srv.Close()
	c := facebook.NewClient(srv.URL)

	if _, err := c.Me(context.Background(), "expired"); !errors.Is(err, facebook.ErrInvalidToken) {
		t.Errorf("expired token err = %v, want ErrInvalidToken", err)
	}
	if _, err := c.Me(context.Background(), ""); !errors.Is(err, facebook.ErrInvalidToken) {
		t.Errorf("empty token err = %v, want ErrInvalidToken", err)
	}
	_, err := c.User(context.Background(), "missing", "app")
	if err == nil || errors.Is(err, facebook.ErrInvalidToken) {
		t.Errorf("missing user err = %v, want plain error", err)
	}
}
