package attachments

import (
	"sync"

	"github.com/google/uuid"
)

const handleScheme = "preview://"

// PreviewRegistry mints ephemeral handles for preview bytes, the in-process
// stand-in for locally-owned object URLs. Every minted handle must be revoked
// when its attachment is removed or superseded; unrevoked handles are leaks.
type PreviewRegistry struct {
	mu      sync.Mutex
	handles map[string][]byte
}

func NewPreviewRegistry() *PreviewRegistry {
	return &PreviewRegistry{handles: make(map[string][]byte)}
}

// Mint registers data under a fresh opaque handle.
func (r *PreviewRegistry) Mint(data []byte) string {
	handle := handleScheme + uuid.NewString()
	r.mu.Lock()
	r.handles[handle] = data
	r.mu.Unlock()
	return handle
}

// Resolve returns the bytes behind a live handle.
func (r *PreviewRegistry) Resolve(handle string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.handles[handle]
	return data, ok
}

// Revoke releases a handle. Revoking an unknown or empty handle is a no-op.
func (r *PreviewRegistry) Revoke(handle string) {
	if handle == "" {
		return
	}
	r.mu.Lock()
	delete(r.handles, handle)
	r.mu.Unlock()
}

// ActiveCount reports the number of live handles.
func (r *PreviewRegistry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
