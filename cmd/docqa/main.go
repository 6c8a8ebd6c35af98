// Package main provides the docqa entry point: HTTP/MCP server plus a CLI
// for one-shot indexing and querying of a local document directory.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mike-a-ellis/docqa/internal/chunker"
	"github.com/mike-a-ellis/docqa/internal/config"
	"github.com/mike-a-ellis/docqa/internal/embedding"
	"github.com/mike-a-ellis/docqa/internal/index/qdrantindex"
	"github.com/mike-a-ellis/docqa/internal/ingest"
	mcpserver "github.com/mike-a-ellis/docqa/internal/mcp"
	"github.com/mike-a-ellis/docqa/internal/server"
	"github.com/mike-a-ellis/docqa/internal/service"
	"github.com/mike-a-ellis/docqa/internal/session"
	"github.com/mike-a-ellis/docqa/internal/synthesizer"
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Document question answering service",
	Long:  "Upload documents into isolated sessions and ask questions answered only from their content",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and MCP server",
	Long: `Starts the HTTP server with the REST API under /api/v1 and the MCP
endpoint at /mcp.

Environment variables:
  OPENAI_API_KEY      OpenAI API key for embeddings and generation (required)
  CONFIG_FILE         Config file path (default: configs/config.toml)
  HOST, PORT          Listen address (default: 0.0.0.0:8080)
  DOCQA_INDEX_BACKEND Index backend, "file" or "qdrant" (default: file)
  DOCQA_INDEX_PATH    Base directory for persisted file indexes
  QDRANT_HOST         Qdrant hostname (default: localhost)
  QDRANT_PORT         Qdrant gRPC port (default: 6334)`,
	RunE: runServe,
}

var indexCmd = &cobra.Command{
	Use:   "index <dir>",
	Short: "Index a directory of documents into a persisted session",
	Long: `Ingests every supported file (.txt, .md, .pdf) in the directory into
the named session and persists its index to disk, so "docqa ask" can query
it later without re-embedding.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question against a previously indexed session",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var (
	cliSession string
	stdioMode  bool
)

func init() {
	serveCmd.Flags().BoolVar(&stdioMode, "stdio", false, "serve MCP over stdin/stdout instead of HTTP")
	indexCmd.Flags().StringVar(&cliSession, "session", "default", "session name for the persisted index")
	askCmd.Flags().StringVar(&cliSession, "session", "default", "session name for the persisted index")
	rootCmd.AddCommand(serveCmd, indexCmd, askCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildService wires the full pipeline from configuration. The returned
// cleanup function closes the Qdrant connection when that backend is in use.
func buildService(cfg *config.Config) (*service.Service, func(), error) {
	client, err := embedding.NewClient()
	if err != nil {
		return nil, nil, fmt.Errorf("create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.Embedding.BatchSize)

	cleanup := func() {}
	var store session.Store
	switch cfg.Index.Backend {
	case config.BackendQdrant:
		qc, err := qdrantindex.NewClient(cfg.Index.QdrantHost, cfg.Index.QdrantPort)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to qdrant: %w", err)
		}
		store = qdrantindex.NewStore(qc, embedder.Dimension())
		cleanup = func() { _ = qc.Close() }
	default:
		store = session.NewFileStore(cfg.Index.Path, embedder.Dimension())
	}

	ch, err := chunker.NewChunker(cfg.Chunking.UnitSize, cfg.Chunking.Overlap)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create chunker: %w", err)
	}

	svc := service.New(service.Config{
		Registry:        session.NewRegistry(store),
		Embedder:        embedder,
		Pipeline:        ingest.NewPipeline(ch, embedder, slog.Default()),
		Synthesizer:     synthesizerFor(client, cfg),
		Logger:          slog.Default(),
		DefaultK:        cfg.Retrieval.K,
		DefaultMinScore: cfg.Retrieval.MinScore,
	})
	return svc, cleanup, nil
}

func synthesizerFor(client *embedding.Client, cfg *config.Config) *synthesizer.Synthesizer {
	return synthesizer.New(synthesizer.NewOpenAIGenerator(client.Client(), cfg.Generation.Model))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	mcpSrv := mcpserver.NewServer(svc)
	if stdioMode {
		log.Println("Starting MCP server (stdio mode)")
		return mcpSrv.Run(ctx)
	}

	router := server.NewRouter(svc, cfg.Server.GinMode)

	// MCP over Streamable HTTP, mounted alongside the REST API.
	mcpHandler := mcpserver.NewHTTPHandler(mcpSrv, nil)
	router.Any("/mcp", gin.WrapH(mcpHandler))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Starting HTTP server on %s (API at /api/v1, MCP at /mcp)", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	start := time.Now()

	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("Indexing %s into session %q...\n", args[0], cliSession)
	result, err := svc.IndexDir(ctx, cliSession, args[0])
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Indexing complete!")
	fmt.Printf("  Files: %d/%d\n", result.SuccessfulFiles, result.TotalFiles)
	fmt.Printf("  Units: %d\n", result.TotalUnits)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.FailedFiles) > 0 {
		fmt.Println()
		fmt.Println("Failed files:")
		for _, failed := range result.FailedFiles {
			fmt.Printf("  - %s: %s\n", failed.Name, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()

	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	answer, err := svc.Ask(ctx, cliSession, args[0], cfg.Retrieval.K, &cfg.Retrieval.MinScore)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	fmt.Printf("Answer: %s\n", answer.Answer)
	fmt.Println()
	fmt.Printf("Rationale: %s\n", answer.Rationale)
	if len(answer.Evidence) > 0 {
		fmt.Println()
		fmt.Println("Evidence:")
		for _, span := range answer.Evidence {
			fmt.Printf("  [%s] %s\n", span.SourceID, span.Quote)
		}
	}
	fmt.Println()
	fmt.Printf("Confidence: %.3f (%d sources)\n", answer.Confidence, len(answer.Sources))
	return nil
}
