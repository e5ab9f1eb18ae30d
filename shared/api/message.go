// Package api holds the wire DTOs shared by the transport client and the
// reference backend.
package api

import (
	"time"

	"github.com/micumarket/composer/shared/domain"
)

type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
}

type Message struct {
	Id          int64        `json:"id"`
	Content     string       `json:"content"`
	CreatedAt   string       `json:"created_at"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SendResponse is the envelope returned for a message submission.
type SendResponse struct {
	Success bool     `json:"success"`
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func FromDomain(m domain.ConfirmedMessage) Message {
	out := Message{
		Id:        m.Id,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
	for _, att := range m.Attachments {
		out.Attachments = append(out.Attachments, Attachment{
			URL:      att.URL,
			Filename: att.Filename,
			FileType: att.Kind.WireType(),
		})
	}
	return out
}

// ToDomain converts the wire message. An unparsable created_at is reported
// so the caller can decide on a fallback.
func (m Message) ToDomain() (domain.ConfirmedMessage, error) {
	createdAt, err := time.Parse(time.RFC3339, m.CreatedAt)
	out := domain.ConfirmedMessage{
		Id:        m.Id,
		Content:   m.Content,
		CreatedAt: createdAt,
	}
	for _, att := range m.Attachments {
		out.Attachments = append(out.Attachments, domain.ConfirmedAttachment{
			URL:      att.URL,
			Filename: att.Filename,
			Kind:     domain.KindFromWire(att.FileType),
		})
	}
	return out, err
}
