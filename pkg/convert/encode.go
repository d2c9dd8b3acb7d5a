package convert

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/excaliboard/excaliboard/pkg/media"
)

// Encoding selects how the image travels in the request body.
type Encoding string

const (
	EncodingJSON      Encoding = "json"
	EncodingMultipart Encoding = "multipart"
)

// ParseEncoding maps a config value to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(s))) {
	case EncodingJSON, "":
		return EncodingJSON, nil
	case EncodingMultipart:
		return EncodingMultipart, nil
	default:
		return "", fmt.Errorf("unknown request encoding %q", s)
	}
}

// payload is the JSON request body.
type payload struct {
	File     string `json:"file"`
	Filename string `json:"filename"`
}

// Encode builds the request body and its content type.
func Encode(blob *media.ImageBlob, enc Encoding) ([]byte, string, error) {
	switch enc {
	case EncodingMultipart:
		return encodeMultipart(blob)
	default:
		body, err := json.Marshal(payload{
			File:     base64.StdEncoding.EncodeToString(blob.Bytes()),
			Filename: blob.Filename(),
		})
		if err != nil {
			return nil, "", err
		}
		return body, "application/json", nil
	}
}

func encodeMultipart(blob *media.ImageBlob) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(blob.Filename())))
	h.Set("Content-Type", blob.MediaType())
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(blob.Bytes()); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("filename", blob.Filename()); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
