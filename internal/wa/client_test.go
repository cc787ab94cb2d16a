package wa

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestSendText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.SRV"}]}`))
	}))
	defer srv.Close()

	logger, _ := zap.NewDevelopment()
	c := NewClient(srv.URL, "839608629240039", "token123", logger)

	id, err := c.SendText(context.Background(), "5511999990000", "welcome")
	if err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if id != "wamid.SRV" {
		t.Errorf("server msg id = %q, want wamid.SRV", id)
	}
	if gotPath != "/839608629240039/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer token123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody["messaging_product"] != "whatsapp" || gotBody["to"] != "5511999990000" {
		t.Errorf("body = %v", gotBody)
	}
	text, _ := gotBody["text"].(map[string]any)
	if text["body"] != "welcome" {
		t.Errorf("text body = %v", text)
	}
}

func TestSendTemplate(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.TPL"}]}`))
	}))
	defer srv.Close()

	logger, _ := zap.NewDevelopment()
	c := NewClient(srv.URL, "pn", "tok", logger)

	id, err := c.SendTemplate(context.Background(), "c1", "welcome_v2", "pt_BR", []string{"Alice"})
	if err != nil {
		t.Fatalf("SendTemplate() error = %v", err)
	}
	if id != "wamid.TPL" {
		t.Errorf("server msg id = %q", id)
	}
	tpl, _ := gotBody["template"].(map[string]any)
	if tpl["name"] != "welcome_v2" {
		t.Errorf("template name = %v", tpl["name"])
	}
	lang, _ := tpl["language"].(map[string]any)
	if lang["code"] != "pt_BR" {
		t.Errorf("language = %v", lang)
	}
	comps, _ := tpl["components"].([]any)
	if len(comps) != 1 {
		t.Fatalf("components = %v", comps)
	}
}

func TestSendGraphError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`))
	}))
	defer srv.Close()

	logger, _ := zap.NewDevelopment()
	c := NewClient(srv.URL, "pn", "bad", logger)

	_, err := c.SendText(context.Background(), "c1", "hi")
	if err == nil {
		t.Fatal("SendText() should fail on graph error")
	}
	want := "graph api: Invalid OAuth access token (type OAuthException, code 190)"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestSendEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[]}`))
	}))
	defer srv.Close()

	logger, _ := zap.NewDevelopment()
	c := NewClient(srv.URL, "pn", "tok", logger)

	if _, err := c.SendText(context.Background(), "c1", "hi"); err == nil {
		t.Error("SendText() should fail when response carries no message id")
	}
}
