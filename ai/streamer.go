//go:generate go run go.uber.org/mock/mockgen -source=streamer.go -destination=../mocks/mock_streamer.go -package=mocks
package ai

import "context"

// Chunk is one streamed fragment of a generated answer.
type Chunk struct {
	Content string
}

// Streamer produces an answer for a persona as a stream of chunks. The
// channel closes when generation completes. Implementations talk to an
// external generation backend; none lives in this repository.
type Streamer interface {
	Stream(ctx context.Context, persona, query string) (<-chan Chunk, error)
}
