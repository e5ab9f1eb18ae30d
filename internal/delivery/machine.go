// Package delivery owns the lifecycle of a single outgoing message: draft,
// optimistic render, then reconciliation or rollback once the network
// round-trip settles.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/micumarket/composer/shared/domain"
	"github.com/micumarket/composer/shared/logger"
	"github.com/micumarket/composer/shared/metrics"
)

var (
	// ErrEmptyMessage rejects a submit with no content and no attachments.
	// Handled locally; no network call is made.
	ErrEmptyMessage = errors.New("empty message")
	// ErrInFlight reports a submit attempt while a message is already in
	// flight. Callers treat it as a no-op: the control is disabled anyway.
	ErrInFlight = errors.New("message already in flight")
)

// Rejection is an application-level failure reported by the backend
// (success=false). Reason is safe to show to the user.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

// Transport submits one outgoing message and returns its confirmed form.
type Transport interface {
	Send(ctx context.Context, out domain.OutgoingMessage) (*domain.ConfirmedMessage, error)
}

// MessageList is the renderer surface the machine drives.
type MessageList interface {
	AppendOptimistic(m *domain.PendingMessage)
	RemoveOptimistic(localId string)
	AppendConfirmed(m domain.ConfirmedMessage)
	ShowError(text string)
	ScrollToLatest()
}

// InputControl is the composer's shared input surface (submit control plus
// content field), guarded by one coarse enable flag.
type InputControl interface {
	SetEnabled(enabled bool)
	ClearContent()
	SignalEmpty()
}

// AttachmentSource is the slice of the attachment queue the machine needs.
type AttachmentSource interface {
	Wait()
	Count() int
	Attachments() []*domain.Attachment
	UploadFiles() []domain.SourceFile
	Clear()
}

// Machine serializes outgoing messages: at most one PendingMessage is in
// {Submitting, OptimisticallyVisible} at a time.
type Machine struct {
	mu          sync.Mutex
	current     *domain.PendingMessage
	transport   Transport
	list        MessageList
	input       InputControl
	attachments AttachmentSource

	// ErrorText is the localized message surfaced on a failed send.
	ErrorText string
}

func NewMachine(transport Transport, list MessageList, input InputControl, attachments AttachmentSource) *Machine {
	return &Machine{
		transport:   transport,
		list:        list,
		input:       input,
		attachments: attachments,
		ErrorText:   "Could not send the message",
	}
}

// Busy reports whether a message is currently in flight.
func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Submit runs one message through the full lifecycle and blocks until it
// settles. The optimistic node is rendered before the network call starts;
// the input surface is re-enabled on every path. The passed context is
// honored as an extension point but the composer itself never cancels it.
func (m *Machine) Submit(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)

	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return ErrInFlight
	}
	if content == "" && m.attachments.Count() == 0 {
		m.mu.Unlock()
		m.input.SignalEmpty()
		return ErrEmptyMessage
	}
	pending := &domain.PendingMessage{
		LocalId: uuid.NewString(),
		Content: content,
		Status:  domain.Submitting,
	}
	m.current = pending
	m.mu.Unlock()

	m.input.SetEnabled(false)
	defer func() {
		// Unconditional: the composer must return to an interactive state
		// whichever path executed.
		m.input.SetEnabled(true)
		m.mu.Lock()
		m.current = nil
		m.mu.Unlock()
	}()

	// Let in-flight transcodes finish so the payload carries processed files.
	m.attachments.Wait()
	pending.Attachments = m.attachments.Attachments()

	pending.Status = domain.OptimisticallyVisible
	m.list.AppendOptimistic(pending)
	m.list.ScrollToLatest()

	out := domain.OutgoingMessage{
		Content: content,
		Files:   m.attachments.UploadFiles(),
	}

	confirmed, err := m.transport.Send(ctx, out)
	if err != nil {
		m.fail(pending, err)
		return err
	}

	m.confirm(pending, *confirmed)
	return nil
}

func (m *Machine) confirm(pending *domain.PendingMessage, confirmed domain.ConfirmedMessage) {
	pending.Status = domain.Confirmed
	m.list.RemoveOptimistic(pending.LocalId)
	m.list.AppendConfirmed(confirmed)

	// Clear the composer: content, attachment queue, preview handles.
	m.input.ClearContent()
	m.attachments.Clear()
	m.list.ScrollToLatest()

	metrics.MessagesSent.WithLabelValues("confirmed").Inc()
}

// fail rolls the optimistic node back and surfaces a localized error. The
// typed content and the attachment queue are deliberately left as they are.
func (m *Machine) fail(pending *domain.PendingMessage, err error) {
	pending.Status = domain.Failed
	m.list.RemoveOptimistic(pending.LocalId)

	var rejection *Rejection
	if errors.As(err, &rejection) {
		m.list.ShowError(fmt.Sprintf("%s: %s", m.ErrorText, rejection.Reason))
		metrics.MessagesSent.WithLabelValues("rejected").Inc()
	} else {
		m.list.ShowError(m.ErrorText)
		metrics.MessagesSent.WithLabelValues("failed").Inc()
	}
	logger.Log.Error("message delivery failed", "localId", pending.LocalId, "err", err)
}
