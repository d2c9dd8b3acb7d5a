// Package convert submits whiteboard images to the remote conversion service
// and turns its answer into a validated Result.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/excaliboard/excaliboard/pkg/media"
	"github.com/excaliboard/excaliboard/pkg/security"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 64 << 20

// Client talks to one conversion endpoint.
type Client struct {
	endpoint   string
	encoding   Encoding
	httpClient *http.Client
	validator  *security.Validator
	shapes     []Shape
}

// NewClient creates a client for endpoint. No retries are performed and the
// request deadline is whatever httpClient imposes.
func NewClient(endpoint string, encoding Encoding, httpClient *http.Client, validator *security.Validator) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint:   endpoint,
		encoding:   encoding,
		httpClient: httpClient,
		validator:  validator,
		shapes:     DefaultShapes,
	}
}

// Endpoint returns the configured URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Convert encodes blob, posts it once and normalizes the response.
func (c *Client) Convert(ctx context.Context, blob *media.ImageBlob) (*Result, error) {
	body, contentType, err := c.Encode(blob)
	if err != nil {
		return nil, err
	}
	raw, err := c.Submit(ctx, body, contentType)
	if err != nil {
		return nil, err
	}
	return c.Normalize(raw)
}

// Encode builds the request body for blob.
func (c *Client) Encode(blob *media.ImageBlob) ([]byte, string, error) {
	body, contentType, err := Encode(blob, c.encoding)
	if err != nil {
		slog.Error("conversion_encode_failed", "filename", blob.Filename(), "error", err)
		return nil, "", errors.Mark(errors.ErrConversionFailed, errors.Wrap(err, "encode request"))
	}
	slog.Info("conversion_encoded",
		"filename", blob.Filename(),
		"encoding", c.encoding,
		"body_size", humanize.Bytes(uint64(len(body))))
	return body, contentType, nil
}

// Submit performs the single POST. Any transport error or non-2xx status is a
// terminal ErrConversionFailed.
func (c *Client) Submit(ctx context.Context, body []byte, contentType string) ([]byte, error) {
	slog.Info("conversion_submit_start", "endpoint", c.endpoint, "content_type", contentType)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Mark(errors.ErrConversionFailed, errors.Wrap(err, "build request"))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("conversion_submit_failed", "endpoint", c.endpoint, "error", err)
		return nil, errors.Mark(errors.ErrConversionFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		slog.Error("conversion_read_failed", "endpoint", c.endpoint, "error", err)
		return nil, errors.Mark(errors.ErrConversionFailed, errors.Wrap(err, "read response"))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("conversion_rejected",
			"endpoint", c.endpoint,
			"status", resp.StatusCode,
			"body", snippet(raw))
		return nil, errors.New(errors.ErrConversionFailed, fmt.Sprintf("service returned %s", resp.Status))
	}

	slog.Info("conversion_submit_complete",
		"endpoint", c.endpoint,
		"status", resp.StatusCode,
		"response_size", humanize.Bytes(uint64(len(raw))),
		"duration", time.Since(start).Round(time.Millisecond))
	return raw, nil
}

// Normalize unwraps the response envelope and validates the filename.
func (c *Client) Normalize(raw []byte) (*Result, error) {
	res, err := Normalize(raw, c.shapes)
	if err != nil {
		slog.Error("conversion_response_invalid", "error", err, "body", snippet(raw))
		return nil, err
	}

	if c.validator != nil {
		name, err := c.validator.ValidateFilename(res.Filename)
		if err != nil {
			return nil, errors.Mark(errors.ErrInvalidResponseShape, err)
		}
		res.Filename = name
	}

	slog.Info("conversion_response_normalized", "filename", res.Filename, "contents_size", len(res.Contents))
	return res, nil
}

func snippet(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
