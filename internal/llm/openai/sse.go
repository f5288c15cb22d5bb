package openai

import (
	"bufio"
	"io"
	"strings"
)

// sseDecoder reads "data:" lines from a server-sent-events body.
type sseDecoder struct {
	scanner *bufio.Scanner
}

func newSSEDecoder(r io.Reader) *sseDecoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseDecoder{scanner: scanner}
}

// Next returns the payload of the next data event, or io.EOF when the
// stream ends.
func (d *sseDecoder) Next() (string, error) {
	for d.scanner.Scan() {
		line := strings.TrimSpace(d.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			return strings.TrimSpace(payload), nil
		}
	}
	if err := d.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
