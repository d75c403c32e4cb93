package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/julian-najas/cacp/pkg/services"
)

// maxWebhookBody caps webhook payload reads. GitHub PR events run tens of
// kilobytes; anything past this is not a webhook we recognize.
const maxWebhookBody = 1 << 20

// githubWebhookHandler handles POST /webhook/github, the merge notification
// that promotes an approved proposal into the work queue.
func (s *Server) githubWebhookHandler(c *gin.Context) {
	// 1. Read the raw body: the signature covers the exact bytes
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "unreadable webhook body")
		return
	}

	// 2. Hand off to the service
	outcome, err := s.webhooks.HandleGitHub(c.Request.Context(), services.GitHubDelivery{
		Event:      c.GetHeader("X-GitHub-Event"),
		DeliveryID: c.GetHeader("X-GitHub-Delivery"),
		Signature:  c.GetHeader("X-Hub-Signature-256"),
		Body:       body,
	})
	if err != nil {
		mapServiceError(c, err)
		return
	}

	// 3. Replays answer 200 so GitHub stops redelivering; fresh deliveries
	// answer 202 whether enqueued or ignored
	status := http.StatusAccepted
	if outcome.Status == services.WebhookDuplicate {
		status = http.StatusOK
	}
	c.JSON(status, outcome)
}

// twilioStatusHandler handles POST /webhook/twilio-status, the provider's
// form-encoded delivery receipt.
func (s *Server) twilioStatusHandler(c *gin.Context) {
	// 1. Decode the form body
	if err := c.Request.ParseForm(); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "unreadable form body")
		return
	}
	params := make(map[string]string, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	// 2. Hand off with the full callback URL (the signature covers it)
	outcome, err := s.delivery.HandleStatus(c.Request.Context(), services.StatusCallback{
		URL:       requestURL(c),
		Signature: c.GetHeader("X-Twilio-Signature"),
		Params:    params,
	})
	if err != nil {
		mapServiceError(c, err)
		return
	}

	// 3. Always 200: the provider should never retry a status callback
	if !outcome.Accepted {
		c.JSON(http.StatusOK, gin.H{"ignored": true, "reason": outcome.Reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true, "status": outcome.Status})
}

// requestURL reconstructs the externally visible URL for signature
// verification, honoring the proxy's forwarded scheme.
func requestURL(c *gin.Context) string {
	scheme := c.GetHeader("X-Forwarded-Proto")
	if scheme == "" {
		if c.Request.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}
