// Package extract converts uploaded PDFs to plain text.
// Library used: github.com/ledongthuc/pdf.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MimePDF is the only accepted upload type.
const MimePDF = "application/pdf"

// ErrUnreadableDocument is returned for encrypted, corrupt, or image-only
// PDFs. There is no OCR fallback; callers surface this to the user.
var ErrUnreadableDocument = errors.New("extract: could not read PDF; it might be image-based or encrypted")

// Client extracts text from PDF payloads.
type Client struct{}

// NewClient constructs an extraction client.
func NewClient() *Client {
	return &Client{}
}

// ExtractPDF returns the document's plain text: pages in order joined by
// newline, text fragments within a page joined by single spaces.
func (c *Client) ExtractPDF(ctx context.Context, data []byte) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// The pdf library panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadableDocument, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pages = append(pages, pageText(page))
	}

	joined := strings.Join(pages, "\n")
	if strings.TrimSpace(joined) == "" {
		return "", ErrUnreadableDocument
	}
	return joined, nil
}

func pageText(page pdf.Page) string {
	content := page.Content()
	fragments := make([]string, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		fragments = append(fragments, t.S)
	}
	return strings.Join(fragments, " ")
}
