package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/veldmed/practice-platform/pkg/logging"
)

var gmailTracer = otel.Tracer("veldmed.internal.mail.gmail")

const defaultGmailSendURL = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

// GmailSender posts base64url-encoded raw RFC 2822 messages to the Gmail
// send endpoint.
type GmailSender struct {
	sendURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewGmailSender builds a Gmail sender. sendURL overrides the production
// endpoint and is meant for tests; pass "" for the default.
func NewGmailSender(sendURL string, httpClient *http.Client, logger *logging.Logger) *GmailSender {
	if sendURL == "" {
		sendURL = defaultGmailSendURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GmailSender{
		sendURL:    sendURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

var _ Sender = (*GmailSender)(nil)

// Send delivers the message as a `{raw}` payload with a bearer token.
func (s *GmailSender) Send(ctx context.Context, accessToken string, msg Message) error {
	if accessToken == "" {
		return errors.New("mail: gmail access token required")
	}
	if msg.To == "" {
		return errors.New("mail: recipient required")
	}

	ctx, span := gmailTracer.Start(ctx, "mail.gmail.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("veldmed.to", msg.To),
		attribute.Int("veldmed.attachment_bytes", len(msg.Attachment)),
	)

	payload, err := json.Marshal(map[string]string{
		"raw": encodeWebSafe(buildRawMessage(msg)),
	})
	if err != nil {
		return fmt.Errorf("mail: failed to marshal gmail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mail: failed to create gmail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail: gmail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return sendStatusError("gmail", resp.StatusCode, string(body))
	}

	s.logger.Info("email sent via gmail", "to", msg.To, "attachment", msg.AttachmentName)
	return nil
}
