package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTwilioSender_SendSMS(t *testing.T) {
	var gotPath, gotUser, gotPass string
	var gotForm map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		r.ParseForm()
		gotForm = map[string]string{
			"To":   r.PostForm.Get("To"),
			"From": r.PostForm.Get("From"),
			"Body": r.PostForm.Get("Body"),
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer server.Close()

	sender := NewTwilioSender("AC000", "secret", "+15550009999", 5*time.Second).
		WithBaseURL(server.URL)

	if err := sender.SendSMS(context.Background(), "+15550001111", "new job"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/Accounts/AC000/Messages.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUser != "AC000" || gotPass != "secret" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}
	if gotForm["To"] != "+15550001111" || gotForm["From"] != "+15550009999" || gotForm["Body"] != "new job" {
		t.Errorf("form = %v", gotForm)
	}
}

func TestTwilioSender_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":20003}`))
	}))
	defer server.Close()

	sender := NewTwilioSender("AC000", "wrong", "+15550009999", 5*time.Second).
		WithBaseURL(server.URL)

	if err := sender.SendSMS(context.Background(), "+15550001111", "new job"); err == nil {
		t.Fatal("expected error for 401 response")
	}
}
