// Package media defines the image blob passed between acquisition and conversion.
package media

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/excaliboard/excaliboard/pkg/errors"
)

// CaptureFilename is the name given to stills taken from the camera.
const CaptureFilename = "capture.jpg"

// ImageBlob is raw image bytes plus the declared media type and original filename.
// Fields are unexported so a blob cannot change after creation.
type ImageBlob struct {
	data      []byte
	mediaType string
	filename  string
}

// NewImageBlob copies data into a new blob.
func NewImageBlob(data []byte, mediaType, filename string) *ImageBlob {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &ImageBlob{
		data:      buf,
		mediaType: strings.ToLower(strings.TrimSpace(mediaType)),
		filename:  filename,
	}
}

// Bytes returns a copy of the blob contents.
func (b *ImageBlob) Bytes() []byte {
	buf := make([]byte, len(b.data))
	copy(buf, b.data)
	return buf
}

// Size is the blob length in bytes.
func (b *ImageBlob) Size() int64 { return int64(len(b.data)) }

// MediaType is the declared media type, lower-cased.
func (b *ImageBlob) MediaType() string { return b.mediaType }

// Filename is the original filename.
func (b *ImageBlob) Filename() string { return b.filename }

// ReadFile loads a local file as a blob, deriving its media type.
func ReadFile(path string) (*ImageBlob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image file")
	}
	name := filepath.Base(path)
	return NewImageBlob(data, DetectMediaType(name, "", data), name), nil
}

// genericTypes say nothing about the content. Object stores assign them to
// uploads that were sent without a type.
var genericTypes = map[string]bool{
	"application/octet-stream": true,
	"binary/octet-stream":      true,
}

// DetectMediaType picks the explicit type, then the extension's type, then sniffs
// the content. A generic explicit type counts as undeclared.
func DetectMediaType(filename, explicit string, data []byte) string {
	exp := strings.TrimSpace(explicit)
	base, _, _ := strings.Cut(strings.ToLower(exp), ";")
	if exp != "" && !genericTypes[strings.TrimSpace(base)] {
		return exp
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		if semi := strings.IndexByte(byExt, ';'); semi >= 0 {
			byExt = byExt[:semi]
		}
		return byExt
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "application/octet-stream"
}
