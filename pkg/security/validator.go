package security

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/excaliboard/excaliboard/pkg/media"
)

// imageTypePrefix is the media category every accepted blob must belong to.
const imageTypePrefix = "image/"

// Validator checks acquired blobs before they enter a conversion session and
// filenames returned by the conversion service before they touch disk.
type Validator struct {
	maxImageSize int64
}

// NewValidator creates a new validator. maxImageSize <= 0 disables the size check.
func NewValidator(maxImageSize int64) *Validator {
	slog.Info("image_validator_init", "max_image_size", sizeLabel(maxImageSize))
	return &Validator{maxImageSize: maxImageSize}
}

// Validate accepts only blobs whose declared media type is in the image category
// and, when a limit is set, no larger than it. The blob is returned unchanged on
// success.
func (v *Validator) Validate(blob *media.ImageBlob) (*media.ImageBlob, error) {
	if blob == nil {
		return nil, errors.New(errors.ErrInvalidMediaType, "no file")
	}

	if !strings.HasPrefix(blob.MediaType(), imageTypePrefix) {
		slog.Warn("image_validation_failed",
			"filename", blob.Filename(),
			"media_type", blob.MediaType(),
			"reason", "not_an_image")
		return nil, errors.New(errors.ErrInvalidMediaType,
			fmt.Sprintf("%s has type %q, expected an image", blob.Filename(), blob.MediaType()))
	}

	if v.maxImageSize > 0 && blob.Size() > v.maxImageSize {
		slog.Warn("image_validation_failed",
			"filename", blob.Filename(),
			"size", humanize.Bytes(uint64(blob.Size())),
			"max_image_size", humanize.Bytes(uint64(v.maxImageSize)),
			"reason", "too_large")
		return nil, errors.New(errors.ErrImageTooLarge,
			fmt.Sprintf("%s is %s, larger than %s", blob.Filename(),
				humanize.Bytes(uint64(blob.Size())), humanize.Bytes(uint64(v.maxImageSize))))
	}

	slog.Info("image_validated",
		"filename", blob.Filename(),
		"media_type", blob.MediaType(),
		"size", humanize.Bytes(uint64(blob.Size())))
	return blob, nil
}

// ValidateFilename reduces a service-supplied filename to a safe base name.
// Absolute paths and names that climb out of the output directory are rejected.
func (v *Validator) ValidateFilename(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("security: empty filename")
	}

	slashed := strings.ReplaceAll(trimmed, "\\", "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(trimmed) {
		slog.Error("security_filename_validation_failed", "filename", name, "reason", "absolute_path")
		return "", fmt.Errorf("security: absolute path not allowed: %s", name)
	}

	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			slog.Error("security_filename_validation_failed", "filename", name, "reason", "path_traversal")
			return "", fmt.Errorf("security: path traversal detected: %s", name)
		}
	}

	base := filepath.Base(filepath.FromSlash(slashed))
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("security: no filename in %q", name)
	}
	return base, nil
}

func sizeLabel(n int64) string {
	if n <= 0 {
		return "unlimited"
	}
	return humanize.Bytes(uint64(n))
}
