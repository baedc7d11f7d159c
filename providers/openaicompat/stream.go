package openaicompat

import (
	"bufio"
	"bytes"
	"io"

	"github.com/goccy/go-json"

	aierrors "github.com/13108387302/aigate/pkg/errors"
)

var (
	ssePrefix = []byte("data:")
	sseDone   = []byte("[DONE]")
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// sseStream reads OpenAI-style server-sent events off an HTTP response body.
type sseStream struct {
	provider string
	body     io.ReadCloser
	scanner  *bufio.Scanner
	done     bool
}

func newSSEStream(provider string, body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseStream{
		provider: provider,
		body:     body,
		scanner:  scanner,
	}
}

// Recv returns the next non-empty content chunk, io.EOF once the backend
// sends the [DONE] marker or closes the stream.
func (s *sseStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if !bytes.HasPrefix(line, ssePrefix) {
			continue
		}
		payload := bytes.TrimSpace(bytes.TrimPrefix(line, ssePrefix))
		if len(payload) == 0 {
			continue
		}
		if bytes.Equal(payload, sseDone) {
			s.done = true
			return "", io.EOF
		}

		var chunk streamChunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			s.done = true
			return "", aierrors.NewProcessing(s.provider, "unmarshal stream chunk", err)
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return "", aierrors.NewNetwork(s.provider, "stream interrupted", err)
	}
	return "", io.EOF
}

// Close releases the underlying response body.
func (s *sseStream) Close() error {
	s.done = true
	return s.body.Close()
}
