// Package layout recomputes the message list's scrollable height from the
// measured heights of the surrounding regions.
package layout

import (
	"sync"
	"time"

	"github.com/micumarket/composer/shared/config"
)

// Regions are the measured heights the recompute subtracts from the
// viewport, in the fixed order the page stacks them.
type Regions struct {
	Viewport           int
	Header             int
	Footer             int
	ConversationHeader int
	ComposerForm       int
}

// Measurer reads the current region heights from the embedding surface.
type Measurer interface {
	Measure() Regions
}

// Surface receives the computed height and the follow-up scroll request.
type Surface interface {
	SetMessageAreaHeight(px int)
	ScrollToBottom()
}

// Manager debounces resize bursts and applies the height budget. Composer
// growth triggers a recompute after a short settle delay so measurement sees
// the grown form.
type Manager struct {
	measurer     Measurer
	surface      Surface
	debounce     *Debouncer
	settle       time.Duration
	minHeight    int
	footerMargin int

	mu         sync.Mutex
	lastHeight int
	recomputes int
}

func NewManager(measurer Measurer, surface Surface, cfg config.Composer) *Manager {
	m := &Manager{
		measurer:     measurer,
		surface:      surface,
		settle:       cfg.LayoutSettle(),
		minHeight:    cfg.MinMessageAreaPx,
		footerMargin: cfg.FooterMarginPx,
	}
	m.debounce = NewDebouncer(cfg.ResizeDebounce(), m.Recompute)
	return m
}

// Start performs the initial recompute.
func (m *Manager) Start() {
	m.Recompute()
}

// ViewportResized schedules a recompute on the trailing edge of the resize
// burst.
func (m *Manager) ViewportResized() {
	m.debounce.Trigger()
}

// ComposerHeightChanged schedules a recompute after the settle delay.
func (m *Manager) ComposerHeightChanged() {
	time.AfterFunc(m.settle, m.Recompute)
}

// Recompute measures the fixed region set, assigns the remaining viewport
// height to the message area (clamped to the minimum floor) and scrolls the
// list to its newest entry.
func (m *Manager) Recompute() {
	r := m.measurer.Measure()

	available := r.Viewport
	available -= r.Header
	available -= r.Footer + m.footerMargin
	available -= r.ConversationHeader
	available -= r.ComposerForm
	if available < m.minHeight {
		available = m.minHeight
	}

	m.mu.Lock()
	m.lastHeight = available
	m.recomputes++
	m.mu.Unlock()

	m.surface.SetMessageAreaHeight(available)
	m.surface.ScrollToBottom()
}

// LastHeight returns the most recently applied message area height.
func (m *Manager) LastHeight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeight
}

// Recomputes reports how many times the layout has been recomputed.
func (m *Manager) Recomputes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recomputes
}
