package wa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client sends messages through the Cloud API graph endpoint. It is the
// only component that talks to the platform outbound.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	phoneNumberID string
	accessToken   string
	logger        *zap.Logger
}

// NewClient creates a Cloud API client for the configured business number.
func NewClient(baseURL, phoneNumberID, accessToken string, logger *zap.Logger) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       baseURL,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		logger:        logger,
	}
}

type textPayload struct {
	Body string `json:"body"`
}

type languageRef struct {
	Code string `json:"code"`
}

type templateParam struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type templateComponent struct {
	Type       string          `json:"type"`
	Parameters []templateParam `json:"parameters"`
}

type templateRef struct {
	Name       string              `json:"name"`
	Language   languageRef         `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type sendRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type,omitempty"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textPayload `json:"text,omitempty"`
	Template         *templateRef `json:"template,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends a free-text message. Returns the platform message id.
func (c *Client) SendText(ctx context.Context, to string, body string) (string, error) {
	return c.post(ctx, &sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textPayload{Body: body},
	})
}

// SendTemplate sends a structured template message with positional text
// parameters. Returns the platform message id.
func (c *Client) SendTemplate(ctx context.Context, to string, name string, locale string, params []string) (string, error) {
	if locale == "" {
		locale = "en_US"
	}
	tpl := &templateRef{
		Name:     name,
		Language: languageRef{Code: locale},
	}
	if len(params) > 0 {
		component := templateComponent{Type: "body"}
		for _, p := range params {
			component.Parameters = append(component.Parameters, templateParam{Type: "text", Text: p})
		}
		tpl.Components = []templateComponent{component}
	}
	return c.post(ctx, &sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template:         tpl,
	})
}

func (c *Client) post(ctx context.Context, payload *sendRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read send response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ge graphError
		if err := json.Unmarshal(raw, &ge); err == nil && ge.Error.Message != "" {
			return "", fmt.Errorf("graph api: %s (type %s, code %d)", ge.Error.Message, ge.Error.Type, ge.Error.Code)
		}
		return "", fmt.Errorf("graph api: unexpected status %d", resp.StatusCode)
	}

	var sr sendResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	if len(sr.Messages) == 0 {
		return "", fmt.Errorf("graph api: response carried no message id")
	}

	c.logger.Info("message sent",
		zap.String("to", payload.To),
		zap.String("type", payload.Type),
		zap.String("server_msg_id", sr.Messages[0].ID),
	)
	return sr.Messages[0].ID, nil
}
