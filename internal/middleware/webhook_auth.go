package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/ibkr-relay/pkg/response"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body,
// keyed with the shared webhook secret.
const SignatureHeader = "X-Signature"

// WebhookAuthMiddleware verifies the body signature of inbound signals.
// An empty secret disables the check, matching alert transports that cannot
// set request headers.
func WebhookAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.BadRequest(c, "failed to read request body")
			c.Abort()
			return
		}
		// Restore the body for the handler's JSON binding.
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))

		provided := c.GetHeader(SignatureHeader)
		if provided == "" || !hmac.Equal([]byte(provided), []byte(expected)) {
			response.Unauthorized(c, "invalid webhook signature")
			c.Abort()
			return
		}

		c.Next()
	}
}
