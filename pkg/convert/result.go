package convert

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Extension is the suffix every downloaded diagram carries.
const Extension = ".excalidraw"

// Result is a validated conversion: a non-empty filename and the diagram
// document as raw JSON.
type Result struct {
	Filename string          `json:"filename"`
	Contents json.RawMessage `json:"contents"`
}

// DownloadName is the filename with the canonical extension appended if missing.
func (r *Result) DownloadName() string {
	return CanonicalFilename(r.Filename)
}

// CanonicalFilename appends Extension unless name already ends with it
// (compared case-insensitively).
func CanonicalFilename(name string) string {
	if strings.HasSuffix(strings.ToLower(name), Extension) {
		return name
	}
	return name + Extension
}

// Document serializes Contents, indented when pretty is set and compact otherwise.
func (r *Result) Document(pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	if pretty {
		if err := json.Indent(&buf, r.Contents, "", "  "); err != nil {
			return nil, err
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	}
	if err := json.Compact(&buf, r.Contents); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
