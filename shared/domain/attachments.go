package domain

import (
	"strings"
	"time"
)

type AttachmentKind int

const (
	KindGeneric AttachmentKind = iota
	KindImage
)

// KindFromMime classifies a file by its MIME type.
func KindFromMime(mimeType string) AttachmentKind {
	if strings.HasPrefix(mimeType, "image/") {
		return KindImage
	}
	return KindGeneric
}

// WireType is the file_type value used on the wire ("image" or "file").
func (k AttachmentKind) WireType() string {
	if k == KindImage {
		return "image"
	}
	return "file"
}

func KindFromWire(fileType string) AttachmentKind {
	if fileType == "image" {
		return KindImage
	}
	return KindGeneric
}

// SourceFile is an immutable in-memory file: content plus the metadata the
// composer needs to rebuild it on the wire.
type SourceFile struct {
	Name     string
	MimeType string
	ModTime  time.Time
	Data     []byte
}

func (f SourceFile) Size() int64 {
	return int64(len(f.Data))
}

// Attachment pairs a user-selected file with its transcoded replacement.
// Processed stays nil until transcoding completes; the attachment queue owns
// Processed and PreviewURL until submit time, when ownership of the processed
// file transfers to the transport payload. PreviewURL must be revoked when
// the attachment is removed or superseded.
type Attachment struct {
	Source     SourceFile
	Processed  *SourceFile
	Kind       AttachmentKind
	PreviewURL string
}

// UploadFile returns the file that should actually be sent: the processed
// one when transcoding produced it, otherwise the untouched source.
func (a *Attachment) UploadFile() SourceFile {
	if a.Processed != nil {
		return *a.Processed
	}
	return a.Source
}
