package ultramsg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testTransport(srv *httptest.Server) *Transport {
	return &Transport{
		InstanceID: "instance123",
		Token:      "secret",
		BaseURL:    srv.URL,
		Client:     srv.Client(),
	}
}

func TestSend_Success(t *testing.T) {
	var gotPath, gotToken, gotTo, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotToken = r.PostFormValue("token")
		gotTo = r.PostFormValue("to")
		gotBody = r.PostFormValue("body")
		w.Write([]byte(`{"sent":"true","message":"ok","id":42}`))
	}))
	defer srv.Close()

	tr := testTransport(srv)
	if err := tr.Send(context.Background(), "966500000000", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/instance123/messages/chat" {
		t.Errorf("path = %q", gotPath)
	}
	if gotToken != "secret" || gotTo != "966500000000" || gotBody != "hello" {
		t.Errorf("form = token %q, to %q, body %q", gotToken, gotTo, gotBody)
	}
}

func TestSend_GatewayRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with sent != "true" still counts as a failure.
		w.Write([]byte(`{"sent":"false","error":"invalid number"}`))
	}))
	defer srv.Close()

	if err := testTransport(srv).Send(context.Background(), "bad", "hello"); err == nil {
		t.Fatal("expected error for sent=false response")
	}
}

func TestSend_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token invalid", http.StatusUnauthorized)
	}))
	defer srv.Close()

	if err := testTransport(srv).Send(context.Background(), "966500000000", "hello"); err == nil {
		t.Fatal("expected error for 401 response")
	}
}
