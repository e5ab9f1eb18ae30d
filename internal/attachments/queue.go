// Package attachments manages the composer's pending files: concurrent
// transcoding, ordered preview publication and preview handle lifecycle.
package attachments

import (
	"sync"

	"github.com/micumarket/composer/shared/domain"
	"github.com/micumarket/composer/shared/logger"
)

// Transcoder processes one image file. The real implementation wraps
// imaging.Transcode with a fixed profile.
type Transcoder func(domain.SourceFile) (domain.SourceFile, error)

// Preview is what the embedding surface renders for one pending attachment.
type Preview struct {
	Index        int
	Filename     string
	SizeLabel    string
	Kind         domain.AttachmentKind
	ThumbnailURL string // empty for non-image files
}

// PreviewSink receives preview updates. Implementations render them; the
// queue guarantees ShowPreview calls arrive in selection order.
type PreviewSink interface {
	ShowPreview(p Preview)
	RemovePreview(index int)
	ClearPreviews()
}

// Queue owns the composer's pending attachments from selection until submit.
// A new batch supersedes the previous one (matching a file input whose change
// event carries the full selection); previews of the old batch are revoked.
//
// Files are transcoded concurrently, one goroutine per image, but previews
// are published strictly in selection order: slot i is shown only after its
// file is known and slot i-1 has been shown.
type Queue struct {
	mu        sync.Mutex
	transcode Transcoder
	previews  *PreviewRegistry
	sink      PreviewSink
	items     []*domain.Attachment
	gen       int
	wg        sync.WaitGroup
}

func NewQueue(transcode Transcoder, previews *PreviewRegistry, sink PreviewSink) *Queue {
	return &Queue{
		transcode: transcode,
		previews:  previews,
		sink:      sink,
	}
}

// SetBatch replaces the pending set with a new selection and starts
// processing it. Returns immediately; use Wait to block until the batch has
// settled. An empty batch just clears the queue.
func (q *Queue) SetBatch(files []domain.SourceFile) {
	q.mu.Lock()
	q.gen++
	gen := q.gen
	q.revokeAllLocked()
	batch := make([]*domain.Attachment, len(files))
	for i, f := range files {
		batch[i] = &domain.Attachment{Source: f, Kind: domain.KindFromMime(f.MimeType)}
	}
	q.items = batch
	q.mu.Unlock()

	q.sink.ClearPreviews()
	if len(batch) == 0 {
		return
	}

	done := make([]chan struct{}, len(batch))
	for i := range batch {
		done[i] = make(chan struct{})
	}

	for i, item := range batch {
		q.wg.Add(1)
		go func(item *domain.Attachment, ch chan struct{}) {
			defer q.wg.Done()
			defer close(ch)
			q.process(item, gen)
		}(item, done[i])
	}

	// Publisher: release previews slot by slot in the original order.
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for i, item := range batch {
			<-done[i]
			q.publish(item, gen)
		}
	}()
}

// process runs the transcoder for image files. A transcode failure is not
// surfaced: the original file is kept as the upload candidate.
func (q *Queue) process(item *domain.Attachment, gen int) {
	if item.Kind != domain.KindImage {
		return
	}
	out, err := q.transcode(item.Source)
	if err != nil {
		logger.Log.Warn("attachment transcode failed, using original file",
			"file", item.Source.Name, "err", err)
		return
	}
	q.mu.Lock()
	if q.gen == gen {
		item.Processed = &out
	}
	q.mu.Unlock()
}

// publish mints the preview handle and hands the preview to the sink, unless
// the batch was superseded or the attachment removed in the meantime.
func (q *Queue) publish(item *domain.Attachment, gen int) {
	q.mu.Lock()
	if q.gen != gen {
		q.mu.Unlock()
		return
	}
	idx := q.indexOfLocked(item)
	if idx < 0 {
		q.mu.Unlock()
		return
	}
	upload := item.UploadFile()
	p := Preview{
		Index:     idx,
		Filename:  upload.Name,
		SizeLabel: domain.HumanSize(upload.Size()),
		Kind:      item.Kind,
	}
	if item.Kind == domain.KindImage {
		// Thumbnail reflects what will actually be uploaded.
		item.PreviewURL = q.previews.Mint(upload.Data)
		p.ThumbnailURL = item.PreviewURL
	}
	q.mu.Unlock()

	q.sink.ShowPreview(p)
}

// Wait blocks until all in-flight processing and publication has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// RemoveAt drops the attachment at index and revokes its preview handle.
// Out-of-range indexes are a no-op.
func (q *Queue) RemoveAt(index int) {
	q.mu.Lock()
	if index < 0 || index >= len(q.items) {
		q.mu.Unlock()
		return
	}
	q.previews.Revoke(q.items[index].PreviewURL)
	q.items = append(q.items[:index], q.items[index+1:]...)
	q.mu.Unlock()

	q.sink.RemovePreview(index)
}

// Clear drops all pending attachments, revoking every preview handle, and
// invalidates any batch still in flight.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.gen++
	q.revokeAllLocked()
	q.items = nil
	q.mu.Unlock()

	q.sink.ClearPreviews()
}

// Attachments returns a snapshot of the pending set in selection order.
func (q *Queue) Attachments() []*domain.Attachment {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*domain.Attachment, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// UploadFiles returns the files to put on the wire, processed where
// transcoding succeeded, in selection order.
func (q *Queue) UploadFiles() []domain.SourceFile {
	q.mu.Lock()
	defer q.mu.Unlock()
	files := make([]domain.SourceFile, 0, len(q.items))
	for _, item := range q.items {
		files = append(files, item.UploadFile())
	}
	return files
}

func (q *Queue) indexOfLocked(item *domain.Attachment) int {
	for i, it := range q.items {
		if it == item {
			return i
		}
	}
	return -1
}

func (q *Queue) revokeAllLocked() {
	for _, item := range q.items {
		q.previews.Revoke(item.PreviewURL)
		item.PreviewURL = ""
	}
}
