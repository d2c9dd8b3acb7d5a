package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/excaliboard/excaliboard/pkg/artifact"
	"github.com/excaliboard/excaliboard/pkg/errors"
)

// maxKeyAttempts bounds the search for a free key.
const maxKeyAttempts = 100

// Sink uploads artifacts under Prefix in the client's bucket.
type Sink struct {
	Client *Client
	Prefix string
	// Overwrite replaces an existing object instead of picking a free key.
	Overwrite bool
}

// Key is where an artifact named name is stored.
func (s Sink) Key(name string) string {
	return path.Join(s.Prefix, path.Base(name))
}

// Save uploads the artifact and returns its s3:// location. Unless
// Overwrite is set, an existing object is kept and the artifact goes to
// the first free "name-N.ext" key.
func (s Sink) Save(ctx context.Context, a *artifact.Artifact) (string, error) {
	key := s.Key(a.Name)

	if !s.Overwrite {
		free, err := freeKey(ctx, key, s.Client.Exists)
		if err != nil {
			return "", err
		}
		if free != key {
			slog.Info("s3_artifact_renamed", "bucket", s.Client.Bucket(), "s3_key", key, "new_key", free)
		}
		key = free
	}

	if err := s.Client.Upload(ctx, key, a.Data, a.MediaType); err != nil {
		return "", err
	}
	return Scheme + s.Client.Bucket() + "/" + key, nil
}

// freeKey returns key, or key with a "-N" suffix before its extension,
// whichever exists reports absent first.
func freeKey(ctx context.Context, key string, exists func(context.Context, string) (bool, error)) (string, error) {
	ext := path.Ext(key)
	stem := strings.TrimSuffix(key, ext)

	candidate := key
	for n := 2; n <= maxKeyAttempts+1; n++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
	return "", errors.Wrap(fmt.Errorf("%d keys taken", maxKeyAttempts), "no free key for "+key)
}
