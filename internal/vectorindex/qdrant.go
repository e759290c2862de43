package vectorindex

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant-backed Store.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	APIKey     string
	UseTLS     bool
}

// QdrantStore implements Store on a shared Qdrant collection. Every point is
// tagged with project_id and branch payload fields; all mutations filter on
// those tags.
type QdrantStore struct {
	client   *qdrant.Client
	cfg      QdrantConfig
	contents ContentSource
	embedder Embedder
	chunker  *Chunker
	logger   *slog.Logger
}

// NewQdrantStore connects to Qdrant and ensures the shared collection exists
// with the embedder's vector size.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, contents ContentSource, embedder Embedder, chunker *Chunker, logger *slog.Logger) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: create client: %w", err)
	}

	s := &QdrantStore{client: client, cfg: cfg, contents: contents, embedder: embedder, chunker: chunker, logger: logger}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.embedder.Dimensions()),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %q: %w", s.cfg.Collection, err)
	}
	return nil
}

func (s *QdrantStore) UpsertChunks(ctx context.Context, req UpsertRequest) (int, error) {
	var chunks []Chunk
	for _, path := range req.Files {
		content, err := s.contents.GetFileContent(ctx, req.Repo, req.Commit, path)
		if err != nil {
			return 0, fmt.Errorf("read %s at %s: %w", path, req.Commit, err)
		}
		chunks = append(chunks, s.chunker.Split(path, content)...)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(req.ProjectID, req.Branch, c.Path, c.Ordinal).String()),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"project_id": req.ProjectID.String(),
				"branch":     req.Branch,
				"commit":     req.Commit,
				"path":       c.Path,
				"chunk":      c.Ordinal,
				"content":    c.Text,
			}),
		}
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	}); err != nil {
		return 0, fmt.Errorf("qdrant: upsert points: %w", err)
	}
	return len(points), nil
}

func (s *QdrantStore) DeleteFiles(ctx context.Context, projectID uuid.UUID, branch string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("project_id", projectID.String()),
			qdrant.NewMatch("branch", branch),
			qdrant.NewMatchKeywords("path", paths...),
		},
	}
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	}); err != nil {
		return fmt.Errorf("qdrant: delete files: %w", err)
	}
	return nil
}

func (s *QdrantStore) DeleteBranch(ctx context.Context, projectID uuid.UUID, branch string) error {
	filter := s.branchFilter(projectID, branch)
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	}); err != nil {
		return fmt.Errorf("qdrant: delete branch %s: %w", branch, err)
	}
	return nil
}

func (s *QdrantStore) BranchExists(ctx context.Context, projectID uuid.UUID, branch string) (bool, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Filter:         s.branchFilter(projectID, branch),
	})
	if err != nil {
		return false, fmt.Errorf("qdrant: count branch points: %w", err)
	}
	return count > 0, nil
}

func (s *QdrantStore) branchFilter(projectID uuid.UUID, branch string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("project_id", projectID.String()),
			qdrant.NewMatch("branch", branch),
		},
	}
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
