package composer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micumarket/composer/internal/attachments"
	"github.com/micumarket/composer/internal/layout"
	"github.com/micumarket/composer/internal/render"
	"github.com/micumarket/composer/shared/config"
	"github.com/micumarket/composer/shared/domain"
)

type stubTransport struct {
	mu   sync.Mutex
	sent int
	err  error
}

func (t *stubTransport) Send(ctx context.Context, out domain.OutgoingMessage) (*domain.ConfirmedMessage, error) {
	t.mu.Lock()
	t.sent++
	t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	return &domain.ConfirmedMessage{Id: 1, Content: out.Content, CreatedAt: time.Now()}, nil
}

func (t *stubTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

type stubSurface struct{}

func (stubSurface) SetMessageAreaHeight(int) {}
func (stubSurface) ScrollToBottom()          {}

type stubMeasurer struct{}

func (stubMeasurer) Measure() layout.Regions { return layout.Regions{Viewport: 800} }

func passthrough(src domain.SourceFile) (domain.SourceFile, error) { return src, nil }

func testSetup(transport *stubTransport) (*Composer, *render.List, *attachments.Queue) {
	cfg := config.Default().Composer
	cfg.TypingIdleMs = 40
	cfg.ShakeMs = 40
	cfg.LayoutSettleMs = 5
	cfg.ResizeDebounceMs = 30

	list := render.NewList(cfg.ErrorFlash(), cfg.SuccessPulse())
	queue := attachments.NewQueue(passthrough, attachments.NewPreviewRegistry(), &nullSink{})
	lm := layout.NewManager(stubMeasurer{}, stubSurface{}, cfg)
	return New(cfg, transport, list, queue, lm), list, queue
}

type nullSink struct{}

func (nullSink) ShowPreview(attachments.Preview) {}
func (nullSink) RemovePreview(int)               {}
func (nullSink) ClearPreviews()                  {}

func TestComposer_SubmitSuccess(t *testing.T) {
	transport := &stubTransport{}
	c, list, queue := testSetup(transport)

	c.SetContent("hello there")
	c.AttachFiles([]domain.SourceFile{{Name: "a.png", MimeType: "image/png", Data: []byte{1}}})

	require.NoError(t, c.Submit(context.Background()))

	assert.Empty(t, c.Content())
	assert.Zero(t, queue.Count())
	assert.Zero(t, list.OptimisticCount())
	require.Len(t, list.Nodes(), 1)
	assert.Equal(t, 1, transport.sentCount())
	assert.True(t, c.Enabled())
}

func TestComposer_SubmitFailureKeepsDraft(t *testing.T) {
	transport := &stubTransport{err: errors.New("down")}
	c, list, queue := testSetup(transport)

	c.SetContent("keep me")
	c.AttachFiles([]domain.SourceFile{{Name: "a.png", MimeType: "image/png", Data: []byte{1}}})

	require.Error(t, c.Submit(context.Background()))

	assert.Equal(t, "keep me", c.Content())
	assert.Equal(t, 1, queue.Count())
	assert.Zero(t, list.OptimisticCount())
	assert.NotEmpty(t, list.ErrorText())
	assert.True(t, c.Enabled())
}

func TestComposer_EmptySubmitShakes(t *testing.T) {
	transport := &stubTransport{}
	c, _, _ := testSetup(transport)

	err := c.Submit(context.Background())
	require.Error(t, err)
	assert.Zero(t, transport.sentCount())
	assert.True(t, c.Shaking())

	// The shake self-expires.
	assert.Eventually(t, func() bool { return !c.Shaking() }, time.Second, 5*time.Millisecond)
}

func TestComposer_EnterSubmits(t *testing.T) {
	transport := &stubTransport{}
	c, _, _ := testSetup(transport)

	c.SetContent("one line")
	handled := c.HandleEnter(false)
	assert.True(t, handled)

	require.Eventually(t, func() bool { return transport.sentCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, c.Content())
}

func TestComposer_ShiftEnterInsertsLineBreak(t *testing.T) {
	transport := &stubTransport{}
	c, _, _ := testSetup(transport)

	c.SetContent("first")
	handled := c.HandleEnter(true)

	assert.True(t, handled)
	assert.Equal(t, "first\n", c.Content())
	assert.Zero(t, transport.sentCount())
}

func TestComposer_ContentGrownCapsHeight(t *testing.T) {
	c, _, _ := testSetup(&stubTransport{})

	assert.Equal(t, 80, c.ContentGrown(80))
	assert.Equal(t, 120, c.ContentGrown(400), "height caps at the maximum")
	assert.Equal(t, 120, c.ContentHeight())
}

func TestComposer_TypingIndicatorLifecycle(t *testing.T) {
	c, list, _ := testSetup(&stubTransport{})

	c.SetContent("typ")
	assert.True(t, list.TypingVisible())

	// Idle expiry hides it.
	require.Eventually(t, func() bool { return !list.TypingVisible() }, time.Second, 5*time.Millisecond)

	// Blur hides immediately.
	c.SetContent("typing again")
	require.True(t, list.TypingVisible())
	c.Blur()
	assert.False(t, list.TypingVisible())
}

func TestComposer_DisabledInputIgnoresEdits(t *testing.T) {
	c, _, _ := testSetup(&stubTransport{})

	c.SetContent("before")
	c.SetEnabled(false)
	c.SetContent("after")
	c.HandleEnter(true)

	assert.Equal(t, "before", c.Content())
}

func TestComposer_HasDraft(t *testing.T) {
	c, _, queue := testSetup(&stubTransport{})
	assert.False(t, c.HasDraft())

	c.SetContent("   ")
	assert.False(t, c.HasDraft())

	c.SetContent("text")
	assert.True(t, c.HasDraft())

	c.ClearContent()
	queue.SetBatch([]domain.SourceFile{{Name: "f.png", MimeType: "image/png"}})
	queue.Wait()
	assert.True(t, c.HasDraft())
}
