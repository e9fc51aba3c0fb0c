package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"docquery/app/server"
	"docquery/loader"
	"docquery/loader/service"
	"docquery/model"
	"docquery/types"
)

func init() {
	mustLoadEnvVariables()
}

func main() {
	ctx := context.Background()

	cfg, err := types.ConfigFromEnv()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	embedder, err := model.NewEmbedder()
	if err != nil {
		log.Fatal("error to create embedder: ", err)
	}

	storer, err := server.NewStorer(ctx, cfg, embedder)
	if err != nil {
		log.Fatal("error to create vector store: ", err)
	}

	docLoader, err := loader.New(cfg)
	if err != nil {
		log.Fatal("error to create document loader: ", err)
	}

	svc, err := service.New(cfg, storer, docLoader)
	if err != nil {
		log.Fatal("error to create loader service: ", err)
	}

	// LOADER_MODE=once ingests the source directory in one pass and
	// exits; the default keeps watching it.
	if os.Getenv("LOADER_MODE") == "once" {
		if err := svc.IngestOnce(ctx, cfg.SourceDir); err != nil {
			log.Fatal("ingest failed: ", err)
		}
		log.Println("Ingest finished")
		return
	}

	svc.Run()
}

func mustLoadEnvVariables() {
	err := godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file")
	}
}
