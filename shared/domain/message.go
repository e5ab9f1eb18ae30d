package domain

import "time"

type DeliveryStatus int

const (
	Draft DeliveryStatus = iota
	Submitting
	OptimisticallyVisible
	Confirmed
	Failed
)

func (s DeliveryStatus) String() string {
	switch s {
	case Draft:
		return "draft"
	case Submitting:
		return "submitting"
	case OptimisticallyVisible:
		return "optimistic"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// PendingMessage is the composer-owned state of a single outgoing message.
// LocalId is the sole correlation key between the optimistic list node and
// the eventual server response or failure. It is never reused: a retry after
// a failure produces a new PendingMessage with a fresh LocalId.
type PendingMessage struct {
	LocalId     string
	Content     string
	Attachments []*Attachment
	Status      DeliveryStatus
}

// ConfirmedMessage is a server-sourced message. Immutable once rendered.
type ConfirmedMessage struct {
	Id          int64
	Content     string
	Attachments []ConfirmedAttachment
	CreatedAt   time.Time
}

type ConfirmedAttachment struct {
	URL      string
	Filename string
	Kind     AttachmentKind
}

// OutgoingMessage is the transport payload assembled at submit time.
type OutgoingMessage struct {
	Content string
	Files   []SourceFile
}
