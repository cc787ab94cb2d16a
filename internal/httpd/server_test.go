package httpd

import (
	"bufio"
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wabot/internal/api"
	"github.com/matheus3301/wabot/internal/bus"
	"github.com/matheus3301/wabot/internal/config"
	"github.com/matheus3301/wabot/internal/store"
	"github.com/matheus3301/wabot/internal/tracker"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	count int
}

func (f *fakeSender) SendText(_ context.Context, to string, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	f.count++
	return fmt.Sprintf("wamid.OUT%d", f.count), nil
}

func (f *fakeSender) SendTemplate(_ context.Context, _ string, name string, _ string, _ []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, "[template "+name+"]")
	f.count++
	return fmt.Sprintf("wamid.TPL%d", f.count), nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testEnv struct {
	srv    *Server
	db     *store.DB
	sender *fakeSender
	bus    *bus.Bus
	cfg    *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Default()
	cfg.VerifyToken = "verify-me"
	logger := zap.NewNop()
	b := bus.New()
	sender := &fakeSender{}
	tr := tracker.New(db, sender, b, nil, cfg, logger)

	return &testEnv{
		srv:    New(cfg, db, tr, nil, b, logger),
		db:     db,
		sender: sender,
		bus:    b,
		cfg:    cfg,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body == nil {
		rdr = bytes.NewReader(nil)
	} else {
		rdr = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func webhookDelivery(contactID, msgID, text string) []byte {
	payload := fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "ent1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"contacts": [{"wa_id": %q, "profile": {"name": "Ana"}}],
			"messages": [{"from": %q, "id": %q, "timestamp": "1700000000", "type": "text", "text": {"body": %q}}]
		}}]}]
	}`, contactID, contactID, msgID, text)
	return []byte(payload)
}

func TestVerifyHandshake(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "12345" {
		t.Errorf("body = %q, want the challenge echoed back", w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for bad token", w.Code)
	}
}

func TestWebhookDeliveryGreets(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/webhook", webhookDelivery("5511999990001", "wamid.1", "hi there"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	c, err := env.db.GetConversation("5511999990001")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatal("conversation not created from delivery")
	}
	if c.UnreadCount != 1 {
		t.Errorf("UnreadCount = %d, want 1", c.UnreadCount)
	}
	if c.DisplayName != "Ana" {
		t.Errorf("DisplayName = %q, want Ana", c.DisplayName)
	}
	if env.sender.sentCount() != 1 {
		t.Errorf("got %d greetings, want 1", env.sender.sentCount())
	}
}

// Malformed and unrecognized deliveries must still be acknowledged, or the
// platform keeps redelivering them forever.
func TestWebhookAlwaysAcks(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{
		`not json at all`,
		`{}`,
		`{"entry": [{"changes": [{"value": {"statuses": [{"id": "wamid.x", "status": "delivered"}]}}]}]}`,
	} {
		w := env.do(t, http.MethodPost, "/webhook", []byte(body))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d for %q, want 200", w.Code, body)
		}
	}
	if n, _ := env.db.ConversationCount(); n != 0 {
		t.Errorf("conversations = %d, want 0", n)
	}
}

func TestWebhookSignature(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.AppSecret = "app-secret"
	body := webhookDelivery("5511999990001", "wamid.1", "hi")

	// No header.
	w := env.do(t, http.MethodPost, "/webhook", body)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 without signature", w.Code)
	}

	// Wrong signature.
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for bad signature", rec.Code)
	}

	// Valid signature.
	mac := hmac.New(sha256.New, []byte("app-secret"))
	mac.Write(body)
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	rec = httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for valid signature", rec.Code)
	}
	if n, _ := env.db.ConversationCount(); n != 1 {
		t.Errorf("conversations = %d, want 1", n)
	}
}

func TestListConversationsAndMessages(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/webhook", webhookDelivery("c1", "m1", "first"))
	env.do(t, http.MethodPost, "/webhook", webhookDelivery("c2", "m2", "second"))

	w := env.do(t, http.MethodGet, "/v1/conversations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var convs []api.Conversation
	if err := json.Unmarshal(w.Body.Bytes(), &convs); err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}

	w = env.do(t, http.MethodGet, "/v1/conversations/c1/messages", nil)
	var msgs []api.Message
	if err := json.Unmarshal(w.Body.Bytes(), &msgs); err != nil {
		t.Fatal(err)
	}
	// Inbound message plus greeting.
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/webhook", webhookDelivery("c1", "m1", "hi"))

	w := env.do(t, http.MethodPost, "/v1/conversations/c1/messages", []byte(`{"text": "on our way"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	// Greeting plus the operator reply.
	if env.sender.sentCount() != 2 {
		t.Errorf("got %d sends, want 2", env.sender.sentCount())
	}

	w = env.do(t, http.MethodPost, "/v1/conversations/c1/messages", []byte(`{}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing text", w.Code)
	}
}

func TestMarkReadAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/webhook", webhookDelivery("c1", "m1", "hi"))

	if w := env.do(t, http.MethodPost, "/v1/conversations/c1/read", nil); w.Code != http.StatusOK {
		t.Fatalf("read status = %d", w.Code)
	}
	c, _ := env.db.GetConversation("c1")
	if c.UnreadCount != 0 {
		t.Errorf("UnreadCount = %d, want 0", c.UnreadCount)
	}

	if w := env.do(t, http.MethodDelete, "/v1/conversations/c1", nil); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/v1/conversations/c1", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/webhook", webhookDelivery("c1", "m1", "the invoice is overdue"))
	env.do(t, http.MethodPost, "/webhook", webhookDelivery("c2", "m2", "see you tomorrow"))

	w := env.do(t, http.MethodGet, "/v1/search?q=invoice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var results []api.SearchResult
	if err := json.Unmarshal(w.Body.Bytes(), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Message.ContactID != "c1" {
		t.Errorf("matched contact = %q, want c1", results[0].Message.ContactID)
	}

	if w := env.do(t, http.MethodGet, "/v1/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without query", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/webhook", webhookDelivery("c1", "m1", "hi"))

	w := env.do(t, http.MethodGet, "/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var st api.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Conversations != 1 {
		t.Errorf("Conversations = %d, want 1", st.Conversations)
	}
	if st.Messages != 2 {
		t.Errorf("Messages = %d, want 2 (inbound plus greeting)", st.Messages)
	}
	if st.PID == 0 {
		t.Error("PID not set")
	}
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events?namespace=greeting.", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Give the handler time to subscribe before publishing.
	time.Sleep(100 * time.Millisecond)
	env.do(t, http.MethodPost, "/webhook", webhookDelivery("c1", "m1", "hi"))

	scanner := bufio.NewScanner(resp.Body)
	var eventLine string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			eventLine = line
			break
		}
	}
	if !strings.Contains(eventLine, "greeting.sent") {
		t.Errorf("event line = %q, want greeting.sent", eventLine)
	}
	cancel()
}
