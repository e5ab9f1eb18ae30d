// Package composer wires the attachment queue, delivery machine, layout
// manager and typing controller into the conversation composer: one content
// field, one submit control, one shared enable flag.
package composer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/micumarket/composer/internal/attachments"
	"github.com/micumarket/composer/internal/delivery"
	"github.com/micumarket/composer/internal/layout"
	"github.com/micumarket/composer/internal/render"
	"github.com/micumarket/composer/internal/typing"
	"github.com/micumarket/composer/shared/config"
	"github.com/micumarket/composer/shared/domain"
)

// Composer owns the draft state of the input region. It implements the
// delivery machine's InputControl, so enable/disable and clears flow back
// into it on both delivery paths.
type Composer struct {
	mu            sync.Mutex
	content       string
	contentHeight int
	enabled       bool
	shaking       bool
	shakeTimer    *time.Timer

	maxContentHeight int
	shake            time.Duration

	queue   *attachments.Queue
	machine *delivery.Machine
	layout  *layout.Manager
	typing  *typing.Controller
}

func New(cfg config.Composer, transport delivery.Transport, list *render.List, queue *attachments.Queue, lm *layout.Manager) *Composer {
	c := &Composer{
		enabled:          true,
		maxContentHeight: cfg.MaxContentHeightPx,
		shake:            cfg.Shake(),
		queue:            queue,
		layout:           lm,
	}
	c.machine = delivery.NewMachine(transport, list, c, queue)
	c.typing = typing.NewController(cfg.TypingIdle(), list)
	return c
}

// SetContent replaces the draft text, counting as input activity for the
// typing indicator. Ignored while the input is disabled.
func (c *Composer) SetContent(s string) {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	c.content = s
	c.mu.Unlock()

	c.typing.InputActivity()
}

func (c *Composer) Content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// HandleEnter handles the Enter keypress: without shift it submits and
// swallows the key, with shift it inserts a literal line break.
func (c *Composer) HandleEnter(shift bool) bool {
	if shift {
		c.mu.Lock()
		if c.enabled {
			c.content += "\n"
		}
		c.mu.Unlock()
		return true
	}

	go func() {
		// Failures already surface through the renderer; a repeated submit
		// while one is in flight is deliberately a no-op.
		_ = c.Submit(context.Background())
	}()
	return true
}

// Submit runs the current draft through the delivery machine and blocks
// until the message settles.
func (c *Composer) Submit(ctx context.Context) error {
	return c.machine.Submit(ctx, c.Content())
}

// AttachFiles feeds a picked or dropped file batch into the queue. The two
// intake paths are identical from here on.
func (c *Composer) AttachFiles(files []domain.SourceFile) {
	c.queue.SetBatch(files)
}

// RemoveAttachment drops one pending attachment by index.
func (c *Composer) RemoveAttachment(index int) {
	c.queue.RemoveAt(index)
}

// ContentGrown reports the content input's natural height after an edit.
// The applied height is capped; past the cap, the input scrolls internally.
// Any actual change triggers a layout recompute after the settle delay.
func (c *Composer) ContentGrown(naturalHeight int) int {
	applied := naturalHeight
	if applied > c.maxContentHeight {
		applied = c.maxContentHeight
	}

	c.mu.Lock()
	changed := applied != c.contentHeight
	c.contentHeight = applied
	c.mu.Unlock()

	if changed && c.layout != nil {
		c.layout.ComposerHeightChanged()
	}
	return applied
}

// ContentHeight returns the currently applied content input height.
func (c *Composer) ContentHeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contentHeight
}

// ViewportResized forwards a viewport resize to the layout manager's
// debouncer.
func (c *Composer) ViewportResized() {
	if c.layout != nil {
		c.layout.ViewportResized()
	}
}

// Blur hides the typing indicator immediately.
func (c *Composer) Blur() {
	c.typing.Blur()
}

// Busy reports whether a message is in flight.
func (c *Composer) Busy() bool {
	return c.machine.Busy()
}

// SetEnabled toggles the shared input flag covering the submit control and
// the content field. Called by the delivery machine around each flight.
func (c *Composer) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

func (c *Composer) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// ClearContent empties the draft after a confirmed delivery.
func (c *Composer) ClearContent() {
	c.mu.Lock()
	c.content = ""
	c.contentHeight = 0
	c.mu.Unlock()

	if c.layout != nil {
		c.layout.ComposerHeightChanged()
	}
}

// SignalEmpty starts the brief shake shown for an empty submit. The shake
// self-expires after its fixed duration.
func (c *Composer) SignalEmpty() {
	c.mu.Lock()
	c.shaking = true
	if c.shakeTimer != nil {
		c.shakeTimer.Stop()
	}
	c.shakeTimer = time.AfterFunc(c.shake, func() {
		c.mu.Lock()
		c.shaking = false
		c.mu.Unlock()
	})
	c.mu.Unlock()
}

func (c *Composer) Shaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shaking
}

// HasDraft reports whether submitting now would pass the empty-message
// guard.
func (c *Composer) HasDraft() bool {
	return strings.TrimSpace(c.Content()) != "" || c.queue.Count() > 0
}
