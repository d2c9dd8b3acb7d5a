// Package artifact turns a conversion result into the downloadable file and
// hands it to a sink.
package artifact

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/excaliboard/excaliboard/pkg/convert"
	"github.com/excaliboard/excaliboard/pkg/errors"
)

// MediaType of every artifact.
const MediaType = "application/json"

// Artifact is a named, serialized diagram.
type Artifact struct {
	Name      string
	Data      []byte
	MediaType string
}

// Prepare serializes the result contents under its canonical download name.
func Prepare(res *convert.Result, pretty bool) (*Artifact, error) {
	if res == nil {
		return nil, errors.New(errors.ErrInvalidState, "no result to download")
	}
	data, err := res.Document(pretty)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize contents")
	}
	return &Artifact{
		Name:      res.DownloadName(),
		Data:      data,
		MediaType: MediaType,
	}, nil
}

// Sink stores an artifact and reports where it went.
type Sink interface {
	Save(ctx context.Context, a *Artifact) (string, error)
}

// DirSink writes artifacts into a local directory.
type DirSink struct {
	Dir string
}

// Save writes the artifact, replacing any file with the same name.
func (s DirSink) Save(ctx context.Context, a *Artifact) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	path := filepath.Join(s.Dir, filepath.Base(a.Name))
	tmp, err := os.CreateTemp(s.Dir, ".excaliboard-*")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		return "", errors.Wrap(err, "failed to write artifact")
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "failed to close artifact")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Wrap(err, "failed to move artifact into place")
	}

	slog.Info("artifact_saved", "path", path, "size", humanize.Bytes(uint64(len(a.Data))))
	return path, nil
}
