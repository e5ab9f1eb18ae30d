// Package store keeps conversation history and attachment bytes in memory.
// It backs the reference backend; nothing here survives a restart.
package store

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/micumarket/composer/shared/domain"
)

type storedFile struct {
	data     []byte
	mimeType string
}

type Store struct {
	mu            sync.RWMutex
	nextMessageId int64
	conversations map[string][]domain.ConfirmedMessage
	files         map[string]storedFile
}

func New() *Store {
	return &Store{
		nextMessageId: 1,
		conversations: make(map[string][]domain.ConfirmedMessage),
		files:         make(map[string]storedFile),
	}
}

// AppendMessage assigns the message an id and appends it to the
// conversation. The stored copy is returned.
func (s *Store) AppendMessage(conversationId string, m domain.ConfirmedMessage) domain.ConfirmedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Id = s.nextMessageId
	s.nextMessageId++
	s.conversations[conversationId] = append(s.conversations[conversationId], m)
	return m
}

// Messages returns the conversation history in insertion order.
func (s *Store) Messages(conversationId string) []domain.ConfirmedMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.conversations[conversationId]
	out := make([]domain.ConfirmedMessage, len(src))
	copy(out, src)
	return out
}

// SaveFile stores the bytes under a collision-free name and returns it.
func (s *Store) SaveFile(filename, mimeType string, data []byte) string {
	name := fmt.Sprintf("%s_%s", uuid.NewString(), filename)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = storedFile{data: data, mimeType: mimeType}
	return name
}

// File returns the stored bytes and MIME type for a name from SaveFile.
func (s *Store) File(name string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[name]
	if !ok {
		return nil, "", false
	}
	return f.data, f.mimeType, true
}
