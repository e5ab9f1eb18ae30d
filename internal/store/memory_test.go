package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micumarket/composer/shared/domain"
)

func TestAppendMessage(t *testing.T) {
	s := New()

	first := s.AppendMessage("c1", domain.ConfirmedMessage{Content: "hello"})
	second := s.AppendMessage("c1", domain.ConfirmedMessage{Content: "again"})
	other := s.AppendMessage("c2", domain.ConfirmedMessage{Content: "elsewhere"})

	assert.Equal(t, int64(1), first.Id)
	assert.Equal(t, int64(2), second.Id)
	assert.Equal(t, int64(3), other.Id, "ids are global, not per conversation")

	history := s.Messages("c1")
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, "again", history[1].Content)
	assert.Len(t, s.Messages("c2"), 1)
	assert.Empty(t, s.Messages("missing"))
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := New()
	s.AppendMessage("c1", domain.ConfirmedMessage{Content: "original"})

	history := s.Messages("c1")
	history[0].Content = "mutated"

	assert.Equal(t, "original", s.Messages("c1")[0].Content)
}

func TestSaveFile(t *testing.T) {
	s := New()

	name := s.SaveFile("photo.jpg", "image/jpeg", []byte{0xff, 0xd8})
	assert.NotEqual(t, "photo.jpg", name, "stored name must not collide with the upload name")

	data, mimeType, ok := s.File(name)
	require.True(t, ok)
	assert.Equal(t, []byte{0xff, 0xd8}, data)
	assert.Equal(t, "image/jpeg", mimeType)

	other := s.SaveFile("photo.jpg", "image/jpeg", []byte{0x01})
	assert.NotEqual(t, name, other, "same upload name gets distinct stored names")

	_, _, ok = s.File("unknown")
	assert.False(t, ok)
}
