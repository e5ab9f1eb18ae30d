package layout

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micumarket/composer/shared/config"
)

type fixedMeasurer struct {
	mu sync.Mutex
	r  Regions
}

func (m *fixedMeasurer) Measure() Regions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.r
}

func (m *fixedMeasurer) set(r Regions) {
	m.mu.Lock()
	m.r = r
	m.mu.Unlock()
}

type fakeSurface struct {
	mu      sync.Mutex
	heights []int
	scrolls int
}

func (s *fakeSurface) SetMessageAreaHeight(px int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heights = append(s.heights, px)
}

func (s *fakeSurface) ScrollToBottom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrolls++
}

func (s *fakeSurface) heightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heights)
}

func testConfig() config.Composer {
	cfg := config.Default().Composer
	cfg.ResizeDebounceMs = 40
	cfg.LayoutSettleMs = 5
	return cfg
}

func TestRecompute_HeightBudget(t *testing.T) {
	measurer := &fixedMeasurer{r: Regions{
		Viewport:           900,
		Header:             80,
		Footer:             60,
		ConversationHeader: 50,
		ComposerForm:       90,
	}}
	surface := &fakeSurface{}
	m := NewManager(measurer, surface, testConfig())

	m.Start()

	// 900 - 80 - (60+20) - 50 - 90 = 600
	assert.Equal(t, 600, m.LastHeight())
	require.Len(t, surface.heights, 1)
	assert.Equal(t, 600, surface.heights[0])
	assert.Equal(t, 1, surface.scrolls)
}

func TestRecompute_ClampsToFloor(t *testing.T) {
	measurer := &fixedMeasurer{r: Regions{Viewport: 400, Header: 150, Footer: 100, ConversationHeader: 60, ComposerForm: 120}}
	surface := &fakeSurface{}
	m := NewManager(measurer, surface, testConfig())

	m.Start()

	// Remaining height is negative on a small viewport; the floor applies.
	assert.Equal(t, 300, m.LastHeight())
}

func TestViewportResized_DebouncesBursts(t *testing.T) {
	measurer := &fixedMeasurer{r: Regions{Viewport: 800}}
	surface := &fakeSurface{}
	m := NewManager(measurer, surface, testConfig())

	// Two rapid resize events inside one debounce window.
	m.ViewportResized()
	time.Sleep(10 * time.Millisecond)
	m.ViewportResized()

	require.Eventually(t, func() bool { return m.Recomputes() == 1 }, time.Second, 5*time.Millisecond)
	// Quiet period passes with no further recompute.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, m.Recomputes())
	assert.Equal(t, 1, surface.heightCount())
}

func TestComposerHeightChanged_SettleDelay(t *testing.T) {
	measurer := &fixedMeasurer{r: Regions{Viewport: 800, ComposerForm: 60}}
	surface := &fakeSurface{}
	cfg := testConfig()
	cfg.LayoutSettleMs = 50
	m := NewManager(measurer, surface, cfg)

	m.ComposerHeightChanged()
	// The measurement happens after the settle delay and sees the grown form.
	measurer.set(Regions{Viewport: 800, ComposerForm: 100})

	require.Eventually(t, func() bool { return m.Recomputes() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 800-100-20, m.LastHeight())
}

func TestDebouncer_LastWriteWins(t *testing.T) {
	var mu sync.Mutex
	fired := 0
	d := NewDebouncer(30*time.Millisecond, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDebouncer_Stop(t *testing.T) {
	fired := make(chan struct{}, 1)
	d := NewDebouncer(20*time.Millisecond, func() { fired <- struct{}{} })

	d.Trigger()
	d.Stop()

	select {
	case <-fired:
		t.Fatal("stopped debouncer must not fire")
	case <-time.After(60 * time.Millisecond):
	}
}
