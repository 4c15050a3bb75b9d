package mail

import (
	"bytes"
	"context"
	"encoding/base64"
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

var outlookTracer = otel.Tracer("veldmed.internal.mail.outlook")

const defaultOutlookSendURL = "https://graph.microsoft.com/v1.0/me/sendMail"

// OutlookSender posts structured sendMail payloads to the Microsoft Graph
// endpoint.
type OutlookSender struct {
	sendURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewOutlookSender builds an Outlook sender. sendURL overrides the
// production endpoint and is meant for tests; pass "" for the default.
func NewOutlookSender(sendURL string, httpClient *http.Client, logger *logging.Logger) *OutlookSender {
	if sendURL == "" {
		sendURL = defaultOutlookSendURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OutlookSender{
		sendURL:    sendURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

var _ Sender = (*OutlookSender)(nil)

type outlookRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type outlookAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
}

type outlookMessage struct {
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ToRecipients []outlookRecipient  `json:"toRecipients"`
	Attachments  []outlookAttachment `json:"attachments"`
}

// Send delivers the message as a JSON body with a base64 file attachment.
func (s *OutlookSender) Send(ctx context.Context, accessToken string, msg Message) error {
	if accessToken == "" {
		return errors.New("mail: outlook access token required")
	}
	if msg.To == "" {
		return errors.New("mail: recipient required")
	}

	ctx, span := outlookTracer.Start(ctx, "mail.outlook.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("veldmed.to", msg.To),
		attribute.Int("veldmed.attachment_bytes", len(msg.Attachment)),
	)

	var message outlookMessage
	message.Subject = msg.Subject
	message.Body.ContentType = "Text"
	message.Body.Content = msg.Body
	var recipient outlookRecipient
	recipient.EmailAddress.Address = msg.To
	message.ToRecipients = []outlookRecipient{recipient}
	message.Attachments = []outlookAttachment{{
		ODataType:    "#microsoft.graph.fileAttachment",
		Name:         msg.AttachmentName,
		ContentType:  "application/pdf",
		ContentBytes: base64.StdEncoding.EncodeToString(msg.Attachment),
	}}

	payload, err := json.Marshal(map[string]any{
		"message":         message,
		"saveToSentItems": true,
	})
	if err != nil {
		return fmt.Errorf("mail: failed to marshal outlook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mail: failed to create outlook request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail: outlook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return sendStatusError("outlook", resp.StatusCode, string(body))
	}

	s.logger.Info("email sent via outlook", "to", msg.To, "attachment", msg.AttachmentName)
	return nil
}
