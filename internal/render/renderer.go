// Package render maintains the message list as an explicit node model the
// embedding surface draws from. State lives here, never in the drawn output.
package render

import (
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/micumarket/composer/shared/domain"
)

type Glyph string

const (
	GlyphSending   Glyph = "sending"
	GlyphDelivered Glyph = "delivered"
)

// Node is one rendered message: a content area, an attachments area and a
// time/status area.
type Node struct {
	LocalId     string // set only while the node is optimistic
	Optimistic  bool
	Received    bool // true for messages from the other participant
	BodyHTML    string
	Attachments []string // pre-rendered attachment markup
	TimeLabel   string
	Status      Glyph
}

// List is the message list renderer. All mutations go through it; the
// optimistic lifecycle keys removals by LocalId.
type List struct {
	mu     sync.Mutex
	nodes  []*Node
	policy *bluemonday.Policy

	typingInserted bool
	typingVisible  bool

	errorText  string
	errorTimer *time.Timer
	pulse      bool
	pulseTimer *time.Timer

	errorFlash   time.Duration
	successPulse time.Duration

	// scrollFn, when set, performs the smooth scroll on the real surface.
	scrollFn func()
	scrolls  int
}

const sendingLabel = "Sending…"

func NewList(errorFlash, successPulse time.Duration) *List {
	return &List{
		policy:       newPolicy(),
		errorFlash:   errorFlash,
		successPulse: successPulse,
	}
}

// OnScroll registers the hook invoked for every scroll-to-latest request.
func (l *List) OnScroll(fn func()) {
	l.mu.Lock()
	l.scrollFn = fn
	l.mu.Unlock()
}

// AppendOptimistic renders the temporary node for an in-flight message: a
// "sending" indicator takes the place of the timestamp.
func (l *List) AppendOptimistic(m *domain.PendingMessage) {
	node := &Node{
		LocalId:    m.LocalId,
		Optimistic: true,
		BodyHTML:   l.renderBody(m.Content),
		TimeLabel:  sendingLabel,
		Status:     GlyphSending,
	}
	l.mu.Lock()
	l.nodes = append(l.nodes, node)
	l.mu.Unlock()
}

// RemoveOptimistic drops the node tagged with localId. Unknown ids are a
// no-op; reconciliation may race a manual clear.
func (l *List) RemoveOptimistic(localId string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, n := range l.nodes {
		if n.Optimistic && n.LocalId == localId {
			l.nodes = append(l.nodes[:i], l.nodes[i+1:]...)
			return
		}
	}
}

// AppendConfirmed renders a server-confirmed message and fires the brief
// success pulse.
func (l *List) AppendConfirmed(m domain.ConfirmedMessage) {
	l.append(m, false)
	l.startPulse()
}

// AppendReceived renders a message from the other participant, delivered by
// the incoming feed.
func (l *List) AppendReceived(m domain.ConfirmedMessage) {
	l.append(m, true)
}

func (l *List) append(m domain.ConfirmedMessage, received bool) {
	node := &Node{
		Received:  received,
		BodyHTML:  l.renderBody(m.Content),
		TimeLabel: m.CreatedAt.Format("02.01.2006 15:04"),
		Status:    GlyphDelivered,
	}
	for _, att := range m.Attachments {
		node.Attachments = append(node.Attachments, l.renderAttachment(att))
	}
	l.mu.Lock()
	l.nodes = append(l.nodes, node)
	l.mu.Unlock()
}

// ShowError flashes a localized error on the list. The flash self-expires
// after the configured duration even if another error replaced it.
func (l *List) ShowError(text string) {
	l.mu.Lock()
	l.errorText = text
	if l.errorTimer != nil {
		l.errorTimer.Stop()
	}
	l.errorTimer = time.AfterFunc(l.errorFlash, func() {
		l.mu.Lock()
		l.errorText = ""
		l.mu.Unlock()
	})
	l.mu.Unlock()
}

func (l *List) startPulse() {
	l.mu.Lock()
	l.pulse = true
	if l.pulseTimer != nil {
		l.pulseTimer.Stop()
	}
	l.pulseTimer = time.AfterFunc(l.successPulse, func() {
		l.mu.Lock()
		l.pulse = false
		l.mu.Unlock()
	})
	l.mu.Unlock()
}

// ScrollToLatest requests a smooth scroll to the newest entry.
func (l *List) ScrollToLatest() {
	l.mu.Lock()
	fn := l.scrollFn
	l.scrolls++
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// ScrollToBottom is the layout manager's name for the same request.
func (l *List) ScrollToBottom() {
	l.ScrollToLatest()
}

// ShowTyping inserts the typing indicator node on first use and toggles it
// visible afterwards.
func (l *List) ShowTyping() {
	l.mu.Lock()
	l.typingInserted = true
	l.typingVisible = true
	l.mu.Unlock()
	l.ScrollToLatest()
}

// HideTyping toggles the indicator off without removing it.
func (l *List) HideTyping() {
	l.mu.Lock()
	l.typingVisible = false
	l.mu.Unlock()
}

// Nodes returns a snapshot of the rendered nodes in display order.
func (l *List) Nodes() []Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Node, len(l.nodes))
	for i, n := range l.nodes {
		out[i] = *n
	}
	return out
}

// OptimisticCount reports how many optimistic nodes are currently rendered.
func (l *List) OptimisticCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, n := range l.nodes {
		if n.Optimistic {
			count++
		}
	}
	return count
}

func (l *List) ErrorText() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errorText
}

func (l *List) PulseActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pulse
}

func (l *List) TypingVisible() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.typingVisible
}

func (l *List) TypingInserted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.typingInserted
}

func (l *List) Scrolls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scrolls
}

// HTML flattens the node model into the markup the surrounding template
// shows, mostly useful for debugging and the CLI driver.
func (l *List) HTML() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var b strings.Builder
	for _, n := range l.nodes {
		class := "message sent"
		if n.Received {
			class = "message received"
		}
		if n.Optimistic {
			class += " temporary"
		}
		b.WriteString(`<div class="` + class + `">`)
		b.WriteString(`<div class="message-bubble">` + n.BodyHTML)
		for _, att := range n.Attachments {
			b.WriteString(att)
		}
		b.WriteString(`</div>`)
		b.WriteString(`<div class="message-time">` + n.TimeLabel + ` <span class="status-` + string(n.Status) + `"></span></div>`)
		b.WriteString(`</div>`)
	}
	return b.String()
}
