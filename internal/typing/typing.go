// Package typing drives the debounced typing-presence indicator.
package typing

import (
	"sync"
	"time"
)

// Indicator is the single lazily-inserted indicator node, toggled rather
// than recreated. The renderer's message list implements it.
type Indicator interface {
	ShowTyping()
	HideTyping()
}

// Controller shows the indicator on input activity and hides it after an
// idle period with no further activity. Losing focus hides it immediately.
type Controller struct {
	mu        sync.Mutex
	idle      time.Duration
	indicator Indicator
	timer     *time.Timer
}

func NewController(idle time.Duration, indicator Indicator) *Controller {
	return &Controller{idle: idle, indicator: indicator}
}

// InputActivity shows the indicator and restarts the idle timer.
func (c *Controller) InputActivity() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.idle, c.indicator.HideTyping)
	c.mu.Unlock()

	c.indicator.ShowTyping()
}

// Blur cancels the idle timer and hides the indicator immediately.
func (c *Controller) Blur() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.indicator.HideTyping()
}
