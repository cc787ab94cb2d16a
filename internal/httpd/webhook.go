package httpd

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/wabot/internal/wa"
	"go.uber.org/zap"
)

// maxWebhookBody bounds how much of a delivery we read. The platform sends
// small JSON payloads; anything past this is garbage.
const maxWebhookBody = 1 << 20

// verifyWebhook answers the platform's subscription handshake: echo the
// challenge when the verify token matches, 403 otherwise.
func (s *Server) verifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == s.cfg.VerifyToken {
		s.logger.Info("webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}
	s.logger.Warn("webhook verification rejected", zap.String("mode", mode))
	c.Status(http.StatusForbidden)
}

// receiveWebhook ingests one delivery. Authentication failures get a 403;
// everything else answers 200 regardless of processing outcome, because a
// non-2xx makes the platform redeliver and deduplication already handles
// redelivery on our side.
func (s *Server) receiveWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.logger.Warn("webhook body read failed", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}

	if s.cfg.AppSecret != "" && !validSignature(s.cfg.AppSecret, body, c.GetHeader("X-Hub-Signature-256")) {
		s.logger.Warn("webhook signature mismatch")
		c.Status(http.StatusForbidden)
		return
	}

	events := wa.ParseWebhook(body)
	for _, evt := range events {
		if _, err := s.tracker.HandleInbound(c.Request.Context(), evt); err != nil {
			s.logger.Error("inbound event dropped",
				zap.Error(err),
				zap.String("contact", evt.ContactID),
				zap.String("msg_id", evt.MsgID))
		}
	}
	c.Status(http.StatusOK)
}

// validSignature checks the X-Hub-Signature-256 header, which carries
// "sha256=" followed by the hex HMAC-SHA256 of the raw body.
func validSignature(secret string, body []byte, header string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}
