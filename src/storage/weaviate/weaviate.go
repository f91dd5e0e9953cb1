package weaviate

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"docresearch/src/core/research"
)

const (
	propVectorID = "vectorId"
	propDocID    = "docId"
	propRef      = "ref"
	propText     = "text"
)

var resultFields = []graphql.Field{
	{Name: propVectorID},
	{Name: propDocID},
	{Name: propRef},
	{Name: propText},
	{Name: "_additional { id distance }"},
}

// Config holds the connection settings of a Weaviate instance.
type Config struct {
	Host   string
	Scheme string
	APIKey string
}

// NewClient connects to Weaviate.
func NewClient(cfg Config) (*weaviate.Client, error) {
	wc := weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	}
	if wc.Scheme == "" {
		wc.Scheme = "http"
	}
	if cfg.APIKey != "" {
		wc.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(wc)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return client, nil
}

// Store keeps chunk vectors in one Weaviate class.
type Store struct {
	client    *weaviate.Client
	className string
}

// NewStore uses the class derived from index, e.g. "citation-theme-bot" becomes "CitationThemeBot".
func NewStore(client *weaviate.Client, index string) *Store {
	return &Store{
		client:    client,
		className: ClassName(index),
	}
}

// ClassName converts an index name into a valid Weaviate class name.
func ClassName(index string) string {
	var b strings.Builder
	upper := true
	for _, r := range index {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}

	name := b.String()
	if name == "" {
		return "Chunk"
	}
	if first := []rune(name)[0]; !unicode.IsLetter(first) {
		name = "C" + name
	}
	return name
}

// EnsureIndex creates the class when it does not exist yet. Vectors are supplied by the caller, so the
// dimension is implied by the first insert.
func (s *Store) EnsureIndex(ctx context.Context, _ int) error {
	exists, err := s.classExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check if class exists: %w", err)
	}
	if exists {
		return nil
	}

	textProp := func(name string) *models.Property {
		return &models.Property{Name: name, DataType: []string{"text"}}
	}
	class := &models.Class{
		Class:      s.className,
		Vectorizer: "none",
		Properties: []*models.Property{
			textProp(propVectorID),
			textProp(propDocID),
			textProp(propRef),
			textProp(propText),
		},
		VectorIndexConfig: map[string]interface{}{"distance": "cosine"},
	}

	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create Weaviate class: %w", err)
	}
	return nil
}

func (s *Store) classExists(ctx context.Context) (bool, error) {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get schema: %w", err)
	}

	for _, class := range schema.Classes {
		if class.Class == s.className {
			return true, nil
		}
	}
	return false, nil
}

// Upsert writes vectors in one batch. Object ids are derived from the vector id so a re-upload replaces
// the previous object.
func (s *Store) Upsert(ctx context.Context, vectors []research.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	objs := make([]*models.Object, len(vectors))
	for i, v := range vectors {
		objs[i] = &models.Object{
			Class:  s.className,
			ID:     ObjectID(v.ID),
			Vector: v.Values,
			Properties: map[string]interface{}{
				propVectorID: v.ID,
				propDocID:    v.DocID,
				propRef:      v.Ref,
				propText:     v.Text,
			},
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to batch add vectors: %w", err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("failed to add vector %s: %s", r.ID, r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Query runs a nearVector search, or returns an unranked sample when vector is nil.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]research.Match, error) {
	get := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithFields(resultFields...).
		WithLimit(topK)
	if vector != nil {
		get = get.WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(vector))
	}

	result, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("failed to query vectors: %s", result.Errors[0].Message)
	}

	return parseMatches(result.Data, s.className, vector != nil), nil
}

// parseMatches reads the Get.<class> objects of a GraphQL response.
func parseMatches(data map[string]models.JSONObject, className string, ranked bool) []research.Match {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := get[className].([]interface{})
	if !ok {
		return nil
	}

	matches := make([]research.Match, 0, len(objects))
	for _, obj := range objects {
		objMap, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		m := research.Match{
			ID:    stringProp(objMap, propVectorID),
			DocID: stringProp(objMap, propDocID),
			Ref:   stringProp(objMap, propRef),
			Text:  stringProp(objMap, propText),
		}
		if additional, ok := objMap["_additional"].(map[string]interface{}); ok {
			if m.ID == "" {
				m.ID = stringProp(additional, "id")
			}
			if d, ok := additional["distance"].(float64); ok && ranked {
				m.Score = 1 - d
			}
		}
		matches = append(matches, m)
	}
	return matches
}

func stringProp(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// ObjectID maps a vector id to the deterministic UUID Weaviate requires.
func ObjectID(vectorID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(vectorID)).String())
}

func (s *Store) Ping(ctx context.Context) error {
	ready, err := s.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return fmt.Errorf("weaviate is not ready")
	}
	return nil
}
