package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"docquery/app/agent"
	"docquery/app/api"
	"docquery/loader"
	"docquery/model"
	"docquery/store"
	"docquery/types"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
}

type Server struct {
	listenAddr string
	logger     *slog.Logger
}

func NewServer(addr string) *Server {
	return &Server{
		listenAddr: addr,
		logger:     slog.Default(),
	}
}

func (s *Server) Stop() {
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()

	cfg, err := types.ConfigFromEnv()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
		return
	}

	embedder, err := model.NewEmbedder()
	if err != nil {
		log.Fatal("error to create embedder: ", err)
		return
	}

	storer, err := NewStorer(ctx, cfg, embedder)
	if err != nil {
		log.Fatal("error to create vector store: ", err)
		return
	}

	llm, err := model.NewLLM()
	if err != nil {
		log.Fatal("error to create LLM client: ", err)
		return
	}

	docLoader, err := loader.New(cfg)
	if err != nil {
		log.Fatal("error to create document loader: ", err)
		return
	}

	system := agent.New(cfg, storer, docLoader, llm)

	// Restore the last snapshot if one exists; a fresh deployment has none.
	if _, statErr := os.Stat(cfg.IndexPath + ".meta"); statErr == nil {
		if err := system.Load(ctx, cfg.IndexPath); err != nil {
			s.logger.Warn("failed to load index snapshot", "path", cfg.IndexPath, "error", err)
		}
	}

	var (
		app          = fiber.New(config)
		checkHandler = api.NewCheckHandler()
		queryHandler = api.NewQueryHandler(system)
		check        = app.Group("/check")
		apiv1        = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/query", queryHandler.HandleQuery)
	apiv1.Post("/batch", queryHandler.HandleBatchQuery)
	apiv1.Get("/stats", queryHandler.HandleStats)
	apiv1.Post("/save", queryHandler.HandleSave)
	apiv1.Post("/load", queryHandler.HandleLoad)

	if err := app.Listen(s.listenAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}

// NewStorer builds the vector index configured by STORE_BACKEND: the
// in-process inner-product index by default, or the pgvector-backed table
// when set to "postgres".
func NewStorer(ctx context.Context, cfg types.Config, embedder model.EmbedderInterface) (store.Storer, error) {
	if cfg.StoreBackend == "postgres" {
		return store.NewPostgresIndex(ctx, PostgresDSN(), embedder, cfg.EmbeddingDim)
	}
	return store.NewMemoryIndex(embedder), nil
}

// PostgresDSN assembles the connection string from the PG_* environment
// variables.
func PostgresDSN() string {
	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
}
