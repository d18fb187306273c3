package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			t.Error("missing or wrong basic auth")
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("From"); got != "whatsapp:+15550000001" {
			t.Errorf("From = %q", got)
		}
		if got := r.PostForm.Get("To"); got != "whatsapp:+15550000002" {
			t.Errorf("To = %q", got)
		}
		if got := r.PostForm.Get("Body"); got != "digest body" {
			t.Errorf("Body = %q", got)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	n := NewNotifier("AC123", "secret", "+15550000001")
	n.baseURL = srv.URL

	if err := n.Send(context.Background(), "digest body", "+15550000002"); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewNotifier("AC123", "wrong", "+15550000001")
	n.baseURL = srv.URL

	if err := n.Send(context.Background(), "body", "+15550000002"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestSendMisconfigured(t *testing.T) {
	n := NewNotifier("", "", "")
	if err := n.Send(context.Background(), "body", "+15550000002"); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}
