// Package service runs the ingestion daemon: it watches a source
// directory, chunks and indexes stable files, persists the index and
// archives what it processed.
package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"docquery/loader"
	"docquery/store"
	"docquery/types"
)

type Service struct {
	logger *slog.Logger
	cfg    types.Config
	store  store.Storer
	loader *loader.DocumentLoader

	fileMutex       sync.Mutex
	fileFirstSeen   map[string]time.Time
	filesProcessing map[string]bool
}

func New(cfg types.Config, storer store.Storer, docLoader *loader.DocumentLoader) (*Service, error) {
	if err := createDirectories(cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir); err != nil {
		return nil, err
	}
	return &Service{
		logger:          slog.Default(),
		cfg:             cfg,
		store:           storer,
		loader:          docLoader,
		fileFirstSeen:   make(map[string]time.Time),
		filesProcessing: make(map[string]bool),
	}, nil
}

func (s *Service) Stop() {
	s.logger.Info("loader service stopped")
}

// Run watches the source directory until an interrupt arrives. Watching
// and ingestion run in separate goroutines connected by a channel; on
// shutdown both are given a grace period to finish the file in flight.
func (s *Service) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		s.watchFiles(ctx, fileChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.processFiles(ctx, fileChan)
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)

	<-sigch
	log.Println("Received shutdown signal, shutting down gracefully...")

	cancel()
	signal.Stop(sigch)
	close(sigch)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All goroutines stopped successfully")
	case <-shutdownCtx.Done():
		log.Println("Timeout waiting for goroutines to stop, forcing shutdown...")
	}

	s.Stop()
}

// IngestOnce processes the whole directory in one pass, adds the chunks
// to the index and persists a snapshot.
func (s *Service) IngestOnce(ctx context.Context, dir string) error {
	chunks, err := s.loader.ProcessDirectory(dir)
	if err != nil {
		return err
	}
	if err := s.store.Add(ctx, chunks); err != nil {
		return err
	}
	return s.store.Save(ctx, s.cfg.IndexPath)
}

// watchFiles polls the source directory and forwards files that have been
// stable for the configured monitoring window. A file is forwarded once;
// files that disappear are dropped from tracking.
func (s *Service) watchFiles(ctx context.Context, fileChan chan<- string) {
	s.logger.Info("start monitoring folder", "dir", s.cfg.SourceDir)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping file watcher")
			return
		case <-ticker.C:
			files, err := os.ReadDir(s.cfg.SourceDir)
			if err != nil {
				s.logger.Error("error reading source directory", "error", err)
				continue
			}

			currentFiles := make(map[string]bool)

			for _, file := range files {
				if file.IsDir() {
					continue
				}

				filePath := filepath.Join(s.cfg.SourceDir, file.Name())
				currentFiles[filePath] = true

				s.fileMutex.Lock()
				if s.filesProcessing[filePath] {
					s.fileMutex.Unlock()
					continue
				}
				firstSeen, seen := s.fileFirstSeen[filePath]
				if !seen {
					s.fileFirstSeen[filePath] = time.Now()
					s.logger.Info("new file detected", "path", filePath)
					s.fileMutex.Unlock()
					continue
				}
				s.fileMutex.Unlock()

				if time.Since(firstSeen) > s.cfg.MonitoringTime {
					s.fileMutex.Lock()
					s.filesProcessing[filePath] = true
					s.fileMutex.Unlock()

					select {
					case fileChan <- filePath:
					case <-ctx.Done():
						return
					}
				}
			}

			// Drop tracking state for files no longer present.
			s.fileMutex.Lock()
			for filePath := range s.fileFirstSeen {
				if !currentFiles[filePath] {
					delete(s.fileFirstSeen, filePath)
					delete(s.filesProcessing, filePath)
				}
			}
			s.fileMutex.Unlock()
		}
	}
}

// processFiles ingests each forwarded file and archives it. A failing
// file goes to the bad directory and never aborts the loop.
func (s *Service) processFiles(ctx context.Context, fileChan <-chan string) {
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping file processor")
			return
		case filePath, ok := <-fileChan:
			if !ok {
				return
			}

			s.logger.Info("processing file", "path", filePath)
			if err := s.ingestFile(ctx, filePath); err != nil {
				s.logger.Error("error processing file", "path", filePath, "error", err)
				s.moveToArchive(filePath, s.cfg.BadDir)
			} else {
				s.moveToArchive(filePath, s.cfg.ArchiveDir)
			}

			s.fileMutex.Lock()
			delete(s.filesProcessing, filePath)
			delete(s.fileFirstSeen, filePath)
			s.fileMutex.Unlock()
		}
	}
}

func (s *Service) ingestFile(ctx context.Context, filePath string) error {
	chunks, err := s.loader.ProcessFile(filePath)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		s.logger.Info("file yielded no chunks", "path", filePath)
		return nil
	}
	if err := s.store.Add(ctx, chunks); err != nil {
		return err
	}
	if err := s.store.Save(ctx, s.cfg.IndexPath); err != nil {
		return fmt.Errorf("saving index after ingest: %w", err)
	}
	log.Printf("[LOADER] Successfully indexed %s (%d chunks)", filePath, len(chunks))
	return nil
}

// moveToArchive copies the file into a dated subfolder of destRoot and
// removes the original, suffixing the name on conflicts.
func (s *Service) moveToArchive(filePath, destRoot string) {
	currentDate := time.Now().Format("2006-01-02")
	destDir := filepath.Join(destRoot, currentDate)

	if _, err := os.Stat(destDir); os.IsNotExist(err) {
		if err := os.MkdirAll(destDir, 0755); err != nil {
			s.logger.Error("error creating archive directory", "error", err)
			return
		}
	}

	destPath := filepath.Join(destDir, filepath.Base(filePath))

	counter := 1
	for {
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			break
		}
		ext := filepath.Ext(destPath)
		baseName := filepath.Base(filePath)
		baseName = baseName[:len(baseName)-len(filepath.Ext(baseName))]
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", baseName, counter, ext))
		counter++
	}

	if err := copyFile(filePath, destPath); err != nil {
		s.logger.Error("error moving file to archive", "error", err)
		return
	}
	os.Remove(filePath)
	s.logger.Info("file moved to archive", "path", destPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func createDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
