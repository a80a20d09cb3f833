package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	policychat "github.com/sachiverma0/policychat"
	"github.com/sachiverma0/policychat/internal/handlers"
	"github.com/sachiverma0/policychat/internal/ingest"
	"github.com/sachiverma0/policychat/internal/services"
)

func main() {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	llm, err := cfg.LLM.llm(logger)
	if err != nil {
		logger.Error("Failed to initialize LLM provider", slog.String("err", err.Error()))
		os.Exit(1)
	}

	var embedder handlers.Embedder
	if cfg.Embedder != nil {
		embedder, err = cfg.Embedder.embedder(logger)
		if err != nil {
			logger.Error("Failed to initialize embedder", slog.String("err", err.Error()))
			os.Exit(1)
		}
	} else {
		logger.Info("No embedder configured, retrieval will use full-text search")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("Failed to create data directory", slog.String("err", err.Error()))
		os.Exit(1)
	}

	store, err := services.NewBoltDB(filepath.Join(cfg.DataDir, "store.db"))
	if err != nil {
		logger.Error("Failed to open store", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	index, err := services.NewSearchIndex(filepath.Join(cfg.DataDir, "search.db"))
	if err != nil {
		logger.Error("Failed to open search index", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer index.Close()

	queue := ingest.NewQueue(store, embedder, index, logger)

	m := handlers.NewMain(llm, embedder, store, index, queue, handlers.Config{
		SystemPrompt: cfg.SystemPrompt,
		RAGPrompt:    cfg.RAGPrompt,
		TitlePrompt:  cfg.TitlePrompt,
		AuthToken:    cfg.AuthToken,
	}, logger)

	queue.OnIndexed(m.PublishIndexed)

	queueCtx, queueCancel := context.WithCancel(context.Background())
	queue.Start(queueCtx)

	staticFS, err := fs.Sub(policychat.StaticFS, "static")
	if err != nil {
		logger.Error("Failed to load static assets", slog.String("err", err.Error()))
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/health", m.HandleHealth)
	mux.HandleFunc("/api/chat", m.API(m.HandleChat))
	mux.HandleFunc("/api/rag-query", m.API(m.HandleRAGQuery))
	mux.HandleFunc("/api/ingest", m.API(m.HandleIngest))
	mux.HandleFunc("/api/upload-excel", m.API(m.HandleUploadExcel))
	mux.HandleFunc("/api/upload-excel-direct", m.API(m.HandleUploadExcelDirect))
	mux.HandleFunc("/api/upload-policy-documents", m.API(m.HandleUploadPolicyDocuments))
	mux.HandleFunc("/api/get-uploaded-files", m.API(m.HandleUploadedFiles))
	mux.HandleFunc("/api/knowledge/search", m.API(m.HandleKnowledgeSearch))
	mux.HandleFunc("/api/conversations", m.API(m.HandleConversations))
	mux.HandleFunc("/api/messages", m.API(m.HandleMessages))
	mux.HandleFunc("/api/conversations/export", m.API(m.HandleExportConversation))
	mux.HandleFunc("/api/events", m.API(m.HandleSSE))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown SSE server", slog.String("err", err.Error()))
		}
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String("err", err.Error()))
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown server gracefully", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Failed to close server", slog.String("err", err.Error()))
			}
		}
	}

	queueCancel()
	queue.Wait()
}
