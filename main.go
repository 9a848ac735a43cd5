package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/ecoalerta/chat-backend/config"
	"github.com/ecoalerta/chat-backend/controller"
	"github.com/ecoalerta/chat-backend/services"
	"github.com/ecoalerta/chat-backend/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Invalid configuration: %v", err)
	}
	config.InitLogger(cfg)
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, err := services.NewEmbedder(cfg.Embedding.APIBase, cfg.Embedding.APIKey, cfg.Embedding.ModelName)
	if err != nil {
		log.Fatalf("FATAL: Failed to create embedder: %v", err)
	}

	store, closeStore, err := openStore(ctx, cfg, embedder)
	if err != nil {
		log.Fatalf("FATAL: Failed to open vector store: %v", err)
	}
	defer closeStore()
	log.Printf("Connected to %s vector store.", cfg.VectorStore)

	chatModel, err := services.NewChatModel(cfg.LLM.APIBase, cfg.LLM.APIKey, cfg.LLM.ModelName)
	if err != nil {
		log.Fatalf("FATAL: Failed to create chat model: %v", err)
	}

	var qaPrompt *prompts.PromptTemplate
	if !cfg.QA.BuiltinPrompt {
		tmpl, err := services.LoadQAPrompt(cfg.QA.PromptTemplateFile)
		if err != nil {
			log.Fatalf("FATAL: Failed to load QA prompt: %v", err)
		}
		qaPrompt = &tmpl
	}
	qa := services.NewRetrievalQAPipeline(chatModel, vectorstores.ToRetriever(store, cfg.QA.TopK), qaPrompt)

	describer, err := newDescriber(ctx, cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to set up image description: %v", err)
	}

	citationKey, err := services.CitationKeyFuncFor(cfg.CitationDedupKey)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	format, err := services.ParseResponseFormat(cfg.ResponseFormat)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	chatService := services.NewChatService(qa, describer, citationKey)
	chatController := controller.NewChatController(chatService, format, cfg.Server.RequestTimeout)
	router := controller.NewRouter(chatController, cfg.Server.CORSOrigins)

	if cfg.Indexer.Path != "" {
		startIndexer(ctx, cfg, store)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Chat backend listening on http://localhost:%s", cfg.Server.Port)
		log.Printf("  POST http://localhost:%s/ (%s)", cfg.Server.Port, format)
		log.Printf("  POST http://localhost:%s/api/v1/chat", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: Server shutdown did not complete: %v", err)
	}
}

// openStore connects to the configured backend. The returned func releases
// whatever client the store holds.
func openStore(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (vectorstore.Store, func(), error) {
	switch cfg.VectorStore {
	case "chroma":
		client, collection, err := vectorstore.OpenChromaCollection(ctx, cfg.Chroma.URL, cfg.Chroma.Collection)
		if err != nil {
			return nil, nil, err
		}
		closeClient := func() {
			if err := client.Close(); err != nil {
				log.Printf("Warning: Failed to close chroma client: %v", err)
			}
		}
		return vectorstore.NewChroma(collection, embedder), closeClient, nil
	default:
		client, err := vectorstore.NewElasticsearchClient(vectorstore.ElasticsearchConfig{
			Host:        cfg.Elasticsearch.Host,
			User:        cfg.Elasticsearch.User,
			Password:    cfg.Elasticsearch.Password,
			VerifyCerts: cfg.Elasticsearch.VerifyCerts,
		})
		if err != nil {
			return nil, nil, err
		}
		store := vectorstore.NewElasticsearch(client, embedder, cfg.Elasticsearch.Index, cfg.Elasticsearch.NumCandidates)
		return store, func() {}, nil
	}
}

// newDescriber returns nil when vision is not configured.
func newDescriber(ctx context.Context, cfg *config.Config) (services.ImageDescriber, error) {
	if !cfg.VisionEnabled() {
		log.Println("Image description disabled: no vision model configured.")
		return nil, nil
	}

	prompt, err := services.LoadVisionPrompt(cfg.Vision.PromptFile)
	if err != nil {
		return nil, err
	}

	switch cfg.Vision.Provider {
	case "gemini":
		client, err := services.NewGeminiClient(ctx, cfg.Vision.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		log.Printf("Image description via Gemini model %s.", cfg.Vision.ModelName)
		return services.NewGeminiDescriber(client, cfg.Vision.ModelName, prompt), nil
	default:
		model, err := services.NewChatModel(cfg.Vision.APIBase, cfg.Vision.APIKey, cfg.Vision.ModelName)
		if err != nil {
			return nil, err
		}
		log.Printf("Image description via %s at %s.", cfg.Vision.ModelName, cfg.Vision.APIBase)
		return services.NewOpenAIDescriber(model, prompt), nil
	}
}

// startIndexer runs the initial scan in the background and, if enabled,
// keeps watching the directory until ctx is cancelled.
func startIndexer(ctx context.Context, cfg *config.Config, store vectorstore.Store) {
	if cfg.Indexer.LicenseKey != "" {
		if err := services.SetPDFLicenseKey(cfg.Indexer.LicenseKey); err != nil {
			log.Printf("Warning: PDF extraction unavailable: %v", err)
		}
	}

	indexer := services.NewFileIndexingService(store)
	go func() {
		if err := indexer.ScanAndIndexDirectory(ctx, cfg.Indexer.Path); err != nil {
			log.Printf("ERROR: Initial scan of %s failed: %v", cfg.Indexer.Path, err)
		}
		if !cfg.Indexer.Watch {
			return
		}
		if err := indexer.WatchDirectory(ctx, cfg.Indexer.Path); err != nil {
			log.Printf("ERROR: Watching %s stopped: %v", cfg.Indexer.Path, err)
		}
	}()
}
