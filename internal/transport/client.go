// Package transport talks to the conversation backend: multipart message
// submission identified as a programmatic request, JSON response decoding.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/micumarket/composer/internal/delivery"
	"github.com/micumarket/composer/shared/api"
	"github.com/micumarket/composer/shared/domain"
	"github.com/micumarket/composer/shared/logger"
)

const (
	contentField = "content"
	filesField   = "attachments"
	csrfField    = "csrf_token"
)

// Client posts outgoing messages for one conversation.
type Client struct {
	BaseURL        string
	ConversationID string
	HttpClient     *http.Client
	csrf           TokenSource
}

func New(baseURL, conversationID string, csrf TokenSource) *Client {
	return &Client{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		ConversationID: conversationID,
		HttpClient:     &http.Client{},
		csrf:           csrf,
	}
}

// Send posts the message as multipart form data and returns the confirmed
// message on success. An application-level failure (success=false) comes
// back as *delivery.Rejection; anything else is a transport error. The
// request is never aborted by the client itself once started.
func (c *Client) Send(ctx context.Context, out domain.OutgoingMessage) (*domain.ConfirmedMessage, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField(contentField, out.Content); err != nil {
		return nil, fmt.Errorf("encode content field: %w", err)
	}
	if token, ok := c.csrf.Token(); ok {
		if err := writer.WriteField(csrfField, token); err != nil {
			return nil, fmt.Errorf("encode csrf field: %w", err)
		}
	}
	for _, f := range out.Files {
		if err := writeFilePart(writer, f); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/conversations/%s/messages", c.BaseURL, c.ConversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend unavailable: %w", err)
	}
	defer resp.Body.Close()

	var decoded api.SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	if !decoded.Success {
		reason := decoded.Error
		if reason == "" {
			reason = "unknown error"
		}
		return nil, &delivery.Rejection{Reason: reason}
	}
	if decoded.Message == nil {
		return nil, fmt.Errorf("success response without a message")
	}

	confirmed, err := decoded.Message.ToDomain()
	if err != nil {
		logger.Log.Warn("unparsable created_at in response, substituting local time",
			"created_at", decoded.Message.CreatedAt, "err", err)
		confirmed.CreatedAt = time.Now()
	}
	return &confirmed, nil
}

func writeFilePart(writer *multipart.Writer, f domain.SourceFile) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, filesField, f.Name))
	if f.MimeType != "" {
		header.Set("Content-Type", f.MimeType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create file part %s: %w", f.Name, err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return fmt.Errorf("write file part %s: %w", f.Name, err)
	}
	return nil
}
