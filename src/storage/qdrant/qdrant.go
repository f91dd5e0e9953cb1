// Package qdrant stores chunk vectors in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"docresearch/src/core/research"
)

const (
	payloadVectorID = "vector_id"
	payloadDocID    = "doc_id"
	payloadRef      = "ref"
	payloadText     = "text"
)

type Store struct {
	conn        *grpc.ClientConn
	collections qdrant.CollectionsClient
	points      qdrant.PointsClient
	health      qdrant.QdrantClient
	collection  string
	apiKey      string
}

// NewStore dials the Qdrant gRPC endpoint at addr (host:port) and uses collection for all chunks.
func NewStore(addr, collection, apiKey string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	return &Store{
		conn:        conn,
		collections: qdrant.NewCollectionsClient(conn),
		points:      qdrant.NewPointsClient(conn),
		health:      qdrant.NewQdrantClient(conn),
		collection:  collection,
		apiKey:      apiKey,
	}, nil
}

func (s *Store) withAuth(ctx context.Context) context.Context {
	if s.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", s.apiKey)
}

func (s *Store) EnsureIndex(ctx context.Context, dimension int) error {
	ctx = s.withAuth(ctx)

	list, err := s.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, vectors []research.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	wait := true
	points := make([]*qdrant.PointStruct, len(vectors))
	for i, v := range vectors {
		points[i] = &qdrant.PointStruct{
			Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: PointID(v.ID)}},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: v.Values}},
			},
			Payload: map[string]*qdrant.Value{
				payloadVectorID: stringValue(v.ID),
				payloadDocID:    stringValue(v.DocID),
				payloadRef:      stringValue(v.Ref),
				payloadText:     stringValue(v.Text),
			},
		}
	}

	_, err := s.points.Upsert(s.withAuth(ctx), &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Query searches by vector, or scrolls the first topK points when vector is nil.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]research.Match, error) {
	ctx = s.withAuth(ctx)
	withPayload := &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}}

	if vector == nil {
		limit := uint32(topK)
		resp, err := s.points.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Limit:          &limit,
			WithPayload:    withPayload,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}
		matches := make([]research.Match, 0, len(resp.GetResult()))
		for _, p := range resp.GetResult() {
			matches = append(matches, matchFromPayload(p.GetId(), p.GetPayload(), 0))
		}
		return matches, nil
	}

	resp, err := s.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    withPayload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}
	matches := make([]research.Match, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		matches = append(matches, matchFromPayload(p.GetId(), p.GetPayload(), float64(p.GetScore())))
	}
	return matches, nil
}

func matchFromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value, score float64) research.Match {
	m := research.Match{
		ID:    payload[payloadVectorID].GetStringValue(),
		DocID: payload[payloadDocID].GetStringValue(),
		Ref:   payload[payloadRef].GetStringValue(),
		Text:  payload[payloadText].GetStringValue(),
		Score: score,
	}
	if m.ID == "" {
		m.ID = id.GetUuid()
	}
	return m
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

// PointID maps a vector id to the deterministic UUID used as the Qdrant point id.
func PointID(vectorID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(vectorID)).String()
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.health.HealthCheck(s.withAuth(ctx), &qdrant.HealthCheckRequest{})
	return err
}

func (s *Store) Close() error {
	return s.conn.Close()
}
