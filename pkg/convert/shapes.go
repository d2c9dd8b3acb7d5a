package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/excaliboard/excaliboard/pkg/errors"
)

// Shape is one known response envelope: the chain of object keys leading to
// the object that holds filename and contents.
type Shape struct {
	Name string
	Path []string
}

// DefaultShapes lists the envelopes the service has been seen to return,
// tried in order. The first one that yields a complete result wins.
var DefaultShapes = []Shape{
	{Name: "plain"},
	{Name: "workflow", Path: []string{"results", "convertImage", "payload", "results"}},
}

// Normalize extracts a Result from a response body by trying shapes in order.
func Normalize(body []byte, shapes []Shape) (*Result, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New(errors.ErrInvalidResponseShape, "empty body")
	}
	if !json.Valid(trimmed) {
		return nil, errors.New(errors.ErrInvalidResponseShape, "body is not JSON")
	}

	var misses []string
	for _, shape := range shapes {
		res, err := shape.match(trimmed)
		if err == nil {
			return res, nil
		}
		misses = append(misses, fmt.Sprintf("%s: %v", shape.Name, err))
	}
	return nil, errors.New(errors.ErrInvalidResponseShape, strings.Join(misses, "; "))
}

func (s Shape) match(body json.RawMessage) (*Result, error) {
	cur := body
	for _, key := range s.Path {
		obj, err := asObject(cur)
		if err != nil {
			return nil, err
		}
		next, ok := obj[key]
		if !ok {
			return nil, fmt.Errorf("no %q key", key)
		}
		cur = next
	}

	obj, err := asObject(cur)
	if err != nil {
		return nil, err
	}

	rawName, ok := obj["filename"]
	if !ok {
		return nil, fmt.Errorf("missing filename")
	}
	var filename string
	if err := json.Unmarshal(rawName, &filename); err != nil {
		return nil, fmt.Errorf("filename is not a string")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("filename is empty")
	}

	contents, ok := obj["contents"]
	if !ok {
		return nil, fmt.Errorf("missing contents")
	}
	contents = bytes.TrimSpace(contents)
	if len(contents) == 0 || contents[0] != '{' {
		return nil, fmt.Errorf("contents is not an object")
	}

	return &Result{Filename: filename, Contents: contents}, nil
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("not an object")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}
