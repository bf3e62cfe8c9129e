package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Payload field names. message_id duplicates the point id so queries can read
// it without resolving ids; the two must never diverge.
const (
	fieldUserID    = "user_id"
	fieldChatID    = "chat_id"
	fieldMessageID = "message_id"
	fieldRole      = "role"
	fieldTimestamp = "timestamp"
	fieldPreview   = "content_preview"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name holding message points.
	// The collection is shared by all users; the user_id payload filter is
	// the multi-tenancy boundary.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection. It must match the embedder's output dimension.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates the gRPC client and returns a ready QdrantStore.
// The collection itself is NOT created here — it is created lazily by
// EnsureCollection on the first write attempt, so a process that never
// indexes anything never mutates the store.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name must not be empty")
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must not be zero")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// EnsureCollection creates the collection (cosine distance, configured vector
// size) and its payload indexes if they do not already exist. Existence is
// checked first so concurrent first-writers do not race destructively.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	// Payload indexes make the mandatory user scope and the optional
	// chat/role/time filters cheap on a collection shared by all users.
	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{fieldUserID, qdrant.FieldType_FieldTypeKeyword},
		{fieldChatID, qdrant.FieldType_FieldTypeKeyword},
		{fieldRole, qdrant.FieldType_FieldTypeKeyword},
		{fieldTimestamp, qdrant.FieldType_FieldTypeDatetime},
	}
	wait := true
	for _, idx := range indexes {
		kind := idx.kind
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.cfg.Collection,
			FieldName:      idx.field,
			FieldType:      &kind,
			Wait:           &wait,
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to index payload field %q: %w", idx.field, err)
		}
	}

	return nil
}

// Upsert writes a single point with overwrite semantics: an existing point
// with the same message id is replaced. Wait is set so the write is durable
// and visible to subsequent reads before Upsert returns.
func (s *QdrantStore) Upsert(ctx context.Context, p Point) error {
	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(p.MessageID),
				Vectors: qdrant.NewVectors(p.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					fieldUserID:    p.UserID,
					fieldChatID:    p.ChatID,
					fieldMessageID: p.MessageID,
					fieldRole:      string(p.Role),
					fieldTimestamp: p.Timestamp.UTC().Format(time.RFC3339),
					fieldPreview:   p.Preview,
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert of message %s failed: %w", p.MessageID, err)
	}
	return nil
}

// DeleteByMessageID removes the single point stored for the given message.
func (s *QdrantStore) DeleteByMessageID(ctx context.Context, messageID string) error {
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(messageID)),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete of message %s failed: %w", messageID, err)
	}
	return nil
}

// DeleteByChatID removes all points of one conversation via a filter-scoped
// bulk delete performed store-side.
func (s *QdrantStore) DeleteByChatID(ctx context.Context, chatID string) error {
	return s.deleteByFilter(ctx, fieldChatID, chatID)
}

// DeleteByUserID removes all points owned by one user.
func (s *QdrantStore) DeleteByUserID(ctx context.Context, userID string) error {
	return s.deleteByFilter(ctx, fieldUserID, userID)
}

// deleteByFilter performs a filter-scoped bulk delete on a single keyword field.
func (s *QdrantStore) deleteByFilter(ctx context.Context, field, value string) error {
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(field, value)},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: bulk delete by %s=%s failed: %w", field, value, err)
	}
	return nil
}

// Search performs a filtered cosine similarity query. The user scope is
// always applied first; it is the hard multi-tenancy boundary on the shared
// collection, enforced at the query layer rather than by convention.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, userID string, opts SearchOptions) ([]SearchHit, error) {
	if userID == "" {
		return nil, fmt.Errorf("qdrant: search requires a user id")
	}

	limit := uint64(opts.Limit)
	if opts.Limit <= 0 {
		limit = DefaultSearchLimit
	}
	threshold := opts.ScoreThreshold
	if threshold == 0 {
		threshold = DefaultScoreThreshold
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         searchFilter(userID, opts),
		Limit:          &limit,
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, pointToHit(r))
	}
	return hits, nil
}

// searchFilter builds the conjunctive payload filter for a search: the
// mandatory user scope plus any optional chat, role, and time-range narrows.
func searchFilter(userID string, opts SearchOptions) *qdrant.Filter {
	must := []*qdrant.Condition{
		qdrant.NewMatch(fieldUserID, userID),
	}
	if opts.ChatID != "" {
		must = append(must, qdrant.NewMatch(fieldChatID, opts.ChatID))
	}
	if opts.Role != "" {
		must = append(must, qdrant.NewMatch(fieldRole, string(opts.Role)))
	}
	if !opts.After.IsZero() || !opts.Before.IsZero() {
		rng := &qdrant.DatetimeRange{}
		if !opts.After.IsZero() {
			rng.Gte = timestamppb.New(opts.After)
		}
		if !opts.Before.IsZero() {
			rng.Lte = timestamppb.New(opts.Before)
		}
		must = append(must, qdrant.NewDatetimeRange(fieldTimestamp, rng))
	}
	return &qdrant.Filter{Must: must}
}

// pointToHit converts a scored Qdrant point into a SearchHit.
func pointToHit(r *qdrant.ScoredPoint) SearchHit {
	hit := SearchHit{
		MessageID: r.GetId().GetUuid(),
		Score:     r.GetScore(),
	}
	p := r.GetPayload()
	if p == nil {
		return hit
	}
	if v, ok := p[fieldMessageID]; ok && v.GetStringValue() != "" {
		hit.MessageID = v.GetStringValue()
	}
	if v, ok := p[fieldUserID]; ok {
		hit.UserID = v.GetStringValue()
	}
	if v, ok := p[fieldChatID]; ok {
		hit.ChatID = v.GetStringValue()
	}
	if v, ok := p[fieldRole]; ok {
		hit.Role = Role(v.GetStringValue())
	}
	if v, ok := p[fieldPreview]; ok {
		hit.Preview = v.GetStringValue()
	}
	if v, ok := p[fieldTimestamp]; ok {
		if ts, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
			hit.Timestamp = ts
		}
	}
	return hit
}

// Ping calls the Qdrant HealthCheck RPC. Used by readiness probes.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
