package embed

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// VertexAdapter calls the Vertex AI text embedding model, grounded on the
// batched-request shape of a REST embedding client: one call per batch,
// each text wrapped as a content part, results unpacked in request order.
// Implements Embedder.
type VertexAdapter struct {
	client *genai.Client
	model  string
	dim    int
}

// NewVertexAdapter creates a VertexAdapter using application default
// credentials (via the genai client's own auth plumbing).
func NewVertexAdapter(ctx context.Context, project, location, model string, dim int) (*VertexAdapter, error) {
	client, err := genai.NewClient(ctx, project, location)
	if err != nil {
		return nil, fmt.Errorf("embed.NewVertexAdapter: %w", err)
	}
	return &VertexAdapter{client: client, model: model, dim: dim}, nil
}

func (a *VertexAdapter) Dimension() int { return a.dim }

// Embed sends texts to the configured embedding model, retrying on
// rate-limit responses with the same backoff schedule as Vertex AI's own
// transient-429 handling.
func (a *VertexAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return withRetry(ctx, "VertexAdapter.Embed", func() ([][]float32, error) {
		return a.doEmbed(ctx, texts)
	})
}

func (a *VertexAdapter) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	em := a.client.EmbeddingModel(a.model)

	reqs := make([]*genai.EmbedContentRequest, len(texts))
	for i, t := range texts {
		reqs[i] = em.NewEmbedContentRequest(genai.Text(t))
	}

	batch := em.NewBatch()
	for _, r := range reqs {
		batch.AddEmbedContentRequest(r)
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("embed.VertexAdapter.Embed: %w", err)
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// Close releases the underlying client.
func (a *VertexAdapter) Close() error {
	return a.client.Close()
}
