package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/bwmarrin/snowflake"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"docresearch/src/core/chunking"
	"docresearch/src/core/research"
	"docresearch/src/extract"
	"docresearch/src/fsutil"
	"docresearch/src/infrastructure/integrations/llm"
	"docresearch/src/infrastructure/integrations/ollama"
	"docresearch/src/infrastructure/integrations/unstructured"
	"docresearch/src/infrastructure/job"
	"docresearch/src/log"
	"docresearch/src/storage/elastic"
	"docresearch/src/storage/memory"
	"docresearch/src/storage/minioctrl"
	"docresearch/src/storage/pgvector"
	"docresearch/src/storage/postgres"
	"docresearch/src/storage/postgres/chunkctrl"
	"docresearch/src/storage/postgres/documentctrl"
	"docresearch/src/storage/qdrant"
	"docresearch/src/storage/valkey"
	"docresearch/src/storage/weaviate"
)

// app holds the services shared by the serve, worker and CLI commands.
type app struct {
	ingest research.Ingestor
	query  research.QueryService
	themes research.ThemeService
	docs   research.DocumentService
	system research.SystemService

	// jobs is nil unless AMQP ingestion is enabled.
	jobs     *job.JobService
	wmLogger watermill.LoggerAdapter

	closers []func()
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// jobTracker returns the job service as a tracker, or nil when it is not configured.
func (a *app) jobTracker() research.JobTracker {
	if a.jobs == nil {
		return nil
	}
	return a.jobs
}

// buildApp wires the configured services; role selects the default snowflake node.
func buildApp(ctx context.Context, role string) (*app, error) {
	a := &app{wmLogger: job.NewLoggerAdapter(log.Logger())}
	pingers := map[string]research.Pinger{}

	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	extractor := buildExtractor(pingers)

	embedder, err := buildEmbedder(a, pingers)
	if err != nil {
		return nil, err
	}

	store, err := buildVectorStore(ctx, a)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureIndex(ctx, embeddingDimension()); err != nil {
		return nil, fmt.Errorf("failed to prepare vector index: %w", err)
	}
	pingers["vectorstore"] = store

	model := llmModel()
	chat, err := llm.New(llm.Config{
		Provider:  viper.GetString("llm.provider"),
		Model:     model,
		APIKey:    llmAPIKey(),
		BaseURL:   llmBaseURL(),
		RateLimit: viper.GetFloat64("llm.rate_limit"),
		Burst:     viper.GetInt("llm.burst"),
	})
	if err != nil {
		return nil, err
	}

	split, err := chunking.New(viper.GetString("chunking.strategy"))
	if err != nil {
		return nil, err
	}
	opts := []research.IngestOption{
		research.WithChunker(split),
		research.WithDefaultChunkSize(viper.GetInt("chunking.size")),
	}

	var docRepo research.DocumentRepository
	var jobRepo *job.PostgresJobRepository
	if viper.GetBool("postgres.enabled") {
		db, err := postgres.Open(postgresConfig())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { closeDB(db) })

		if err := documentctrl.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate documents: %w", err)
		}
		node, err := snowflake.NewNode(snowflakeNode(role))
		if err != nil {
			return nil, fmt.Errorf("failed to create snowflake node: %w", err)
		}
		log.Debug("Snowflake node selected", "node", snowflakeNode(role), "role", role)

		jobRepo = job.NewPostgresJobRepository(db, node)
		if err := jobRepo.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate jobs: %w", err)
		}

		docs := documentctrl.NewDocumentService(db, chunkctrl.NewChunkService(db, node), node)
		docRepo = docs
		opts = append(opts, research.WithDocumentRepository(docs))
		pingers["postgres"] = docs
	}

	if viper.GetBool("minio.enabled") {
		blobs, err := minioctrl.NewMinioService(
			viper.GetString("minio.endpoint"),
			viper.GetString("minio.access_key"),
			viper.GetString("minio.secret_key"),
			viper.GetBool("minio.use_ssl"),
			viper.GetString("minio.bucket"),
		)
		if err != nil {
			return nil, err
		}
		if err := blobs.EnsureBucketExists(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, research.WithBlobStore(blobs))
		pingers["minio"] = blobs
	}

	if viper.GetBool("amqp.enabled") && jobRepo != nil {
		publisher, err := job.NewAMQPPublisher(viper.GetString("amqp.url"), a.wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create AMQP publisher: %w", err)
		}
		a.closers = append(a.closers, func() { _ = publisher.Close() })

		a.jobs = job.NewJobService(publisher, jobRepo, a.wmLogger, viper.GetString("amqp.topic"))
		opts = append(opts, research.WithJobQueue(a.jobs))
	}

	a.themes = research.NewThemeService(embedder, store, chat, model)
	a.query = research.NewQueryService(embedder, store, chat, model)
	a.ingest = research.NewIngestService(extractor, embedder, store, fsutil.NewLocalFileStore(viper.GetString("upload.dir")), a.themes, opts...)
	a.docs = research.NewDocumentService(docRepo)
	a.system = research.NewSystemService(pingers)

	log.Info("Services ready",
		"vectorstore", viper.GetString("vectorstore.driver"),
		"llm", viper.GetString("llm.provider"),
		"model", model,
		"embedding", viper.GetString("embedding.provider"),
		"ocr", viper.GetString("ocr.engine"),
		"async", a.jobs != nil,
	)
	ok = true
	return a, nil
}

func buildExtractor(pingers map[string]research.Pinger) *extract.Registry {
	var ocr extract.OCR
	switch viper.GetString("ocr.engine") {
	case ocrTesseract:
		t := extract.NewTesseract(viper.GetString("ocr.tesseract_path"), viper.GetString("ocr.language"))
		pingers["ocr"] = t
		ocr = t
	case ocrUnstructured:
		u := unstructured.NewUnstructuredService(viper.GetString("unstructured.url"))
		pingers["ocr"] = u
		ocr = u
	}

	registry := extract.New(ocr, extract.NewPdftoppm(viper.GetString("ocr.pdftoppm_path"), viper.GetInt("ocr.dpi")))
	log.Debug("Extractors registered", "extensions", registry.Extensions())
	return registry
}

func buildEmbedder(a *app, pingers map[string]research.Pinger) (research.Embedder, error) {
	model := embeddingModel()

	var embedder research.Embedder
	switch viper.GetString("embedding.provider") {
	case llm.ProviderOllama:
		client, err := ollama.NewClient(viper.GetString("ollama.url"), model, 2*time.Minute)
		if err != nil {
			return nil, err
		}
		pingers["ollama"] = client
		embedder = client
	default:
		e, err := llm.NewOpenAIEmbedder(llm.EmbedderConfig{
			Model:   model,
			APIKey:  viper.GetString("openai.api_key"),
			BaseURL: viper.GetString("openai.base_url"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		embedder = e
	}

	if !viper.GetBool("valkey.enabled") {
		return embedder, nil
	}

	client, err := valkey.NewClient(viper.GetString("valkey.addr"), viper.GetString("valkey.password"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)

	cached := valkey.NewCachedEmbedder(client, embedder, model, viper.GetDuration("valkey.ttl"))
	pingers["valkey"] = cached
	return cached, nil
}

func buildVectorStore(ctx context.Context, a *app) (research.VectorStore, error) {
	index := viper.GetString("vectorstore.index")

	switch driver := viper.GetString("vectorstore.driver"); driver {
	case driverWeaviate:
		client, err := weaviate.NewClient(weaviate.Config{
			Host:   viper.GetString("weaviate.url"),
			Scheme: viper.GetString("weaviate.scheme"),
			APIKey: viper.GetString("weaviate.api_key"),
		})
		if err != nil {
			return nil, err
		}
		return weaviate.NewStore(client, index), nil
	case driverPgvector:
		store, err := pgvector.NewStore(ctx, postgresConfig().URL(), index)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case driverQdrant:
		store, err := qdrant.NewStore(viper.GetString("qdrant.addr"), index, viper.GetString("qdrant.api_key"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		return store, nil
	case driverElasticsearch:
		return elastic.NewStore(elastic.Config{
			Addresses: listValue("elasticsearch.addresses"),
			APIKey:    viper.GetString("elasticsearch.api_key"),
		}, index)
	case driverMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown vector store driver %q", driver)
	}
}

func postgresConfig() postgres.Config {
	return postgres.Config{
		Host:     viper.GetString("postgres.host"),
		Port:     viper.GetInt("postgres.port"),
		User:     viper.GetString("postgres.user"),
		Password: viper.GetString("postgres.password"),
		DB:       viper.GetString("postgres.db"),
		SSLMode:  viper.GetString("postgres.sslmode"),
	}
}

func llmAPIKey() string {
	switch viper.GetString("llm.provider") {
	case llm.ProviderGroq:
		return viper.GetString("groq.api_key")
	case llm.ProviderOpenAI:
		return viper.GetString("openai.api_key")
	default:
		return ""
	}
}

func llmBaseURL() string {
	switch viper.GetString("llm.provider") {
	case llm.ProviderGroq:
		return viper.GetString("groq.base_url")
	case llm.ProviderOllama:
		return viper.GetString("ollama.url")
	default:
		return viper.GetString("openai.base_url")
	}
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Error(err, "Failed to get underlying *sql.DB")
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error(err, "Error closing database connection")
	}
}
