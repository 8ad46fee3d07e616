// Package extract turns uploaded PDF payloads into plain text. There is
// no OCR and no layout reconstruction: pages are concatenated in order,
// joined by newlines. An image-only PDF yields an empty string, which is
// not an error; callers treat empty text as "no document".
package extract

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractionError reports a payload that could not be decoded or parsed
// as a PDF.
type ExtractionError struct {
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed: %s", e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

const dataURIMarker = ";base64,"

// DecodePayload base64-decodes an upload body, stripping an optional
// data-URI header ("data:application/pdf;base64,...") first.
func DecodePayload(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, dataURIMarker)
		if idx < 0 {
			return nil, &ExtractionError{Message: "malformed data URI"}
		}
		payload = payload[idx+len(dataURIMarker):]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &ExtractionError{Message: "invalid base64 payload", Err: err}
	}

	return raw, nil
}

// Text extracts the concatenated per-page text of a PDF. Pure function
// of the input bytes.
func Text(data []byte) (text string, err error) {
	// The parser panics on some malformed inputs; surface those as
	// extraction errors like any other bad payload.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Message: fmt.Sprintf("malformed PDF: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Message: "not a valid PDF", Err: err}
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		builder.WriteString(pageText)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}
