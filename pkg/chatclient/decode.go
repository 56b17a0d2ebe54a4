package chatclient

import (
	"io"
	"unicode/utf8"

	"github.com/shamba-ai/shamba/pkg/llm/provider/openai"
	"github.com/shamba-ai/shamba/pkg/sse"
)

// readChunkSize is the read size for plain text bodies.
const readChunkSize = 4096

// decodeEvents emits the delta text of every completion event.
func decodeEvents(r io.Reader, emit func(string) bool) error {
	reader := sse.NewReader(r)
	for {
		ev, err := reader.Next()
		if err != nil {
			return err
		}
		if ev == nil || ev.IsDone() {
			return nil
		}

		if text, ok := openai.DeltaText(ev.Data); ok && text != "" {
			if !emit(text) {
				return nil
			}
		}
	}
}

// decodeText emits a plain text body as it arrives. A multi-byte character
// split across reads is held back until it is complete.
func decodeText(r io.Reader, emit func(string) bool) error {
	buf := make([]byte, readChunkSize)
	var pending []byte

	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			cut := completePrefix(pending)
			if cut > 0 {
				if !emit(string(pending[:cut])) {
					return nil
				}
				pending = append(pending[:0], pending[cut:]...)
			}
		}

		if err == io.EOF {
			if len(pending) > 0 {
				emit(string(pending))
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// completePrefix returns the length of the longest prefix of b that does not
// end inside a multi-byte UTF-8 sequence.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}
