package vectorindex

import "context"

// Embedder converts text into dense vectors. Implementations must be safe to
// call from multiple goroutines.
type Embedder interface {
	// Embed returns one embedding per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector size this embedder produces.
	Dimensions() int
}
