package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/ecoalerta/chat-backend/vectorstore"
)

const (
	indexChunkSize    = 1000
	indexChunkOverlap = 100
)

// FileIndexingService keeps the search index in sync with a local directory.
type FileIndexingService struct {
	store    vectorstore.Store
	splitter textsplitter.TextSplitter
}

// NewFileIndexingService creates a new indexing service.
func NewFileIndexingService(store vectorstore.Store) *FileIndexingService {
	return &FileIndexingService{
		store: store,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(indexChunkSize),
			textsplitter.WithChunkOverlap(indexChunkOverlap),
		),
	}
}

// WatchDirectory re-indexes files as they change until ctx is cancelled.
// Subdirectories are watched too, including ones created later.
func (s *FileIndexingService) WatchDirectory(ctx context.Context, dirPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchTree(watcher, dirPath); err != nil {
		return err
	}
	log.Printf("WATCHER: Watching %d directories under: %s", len(watcher.WatchList()), dirPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				s.handleNewDirectory(ctx, watcher, event.Name)
				continue
			}
			if !isSupportedFile(event.Name) {
				continue
			}
			s.handleEvent(ctx, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("WATCHER ERROR: %v", err)

		case <-ctx.Done():
			log.Println("WATCHER: Context cancelled, shutting down watcher.")
			return nil
		}
	}
}

// addWatchTree watches root and every directory below it.
func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// handleNewDirectory starts watching a directory that appeared after startup
// and indexes whatever was moved in with it.
func (s *FileIndexingService) handleNewDirectory(ctx context.Context, watcher *fsnotify.Watcher, dir string) {
	log.Printf("WATCHER: New directory: %s", dir)
	if err := addWatchTree(watcher, dir); err != nil {
		log.Printf("WATCHER ERROR: %v", err)
		return
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isSupportedFile(path) {
			return err
		}
		s.handleEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Create})
		return nil
	})
	if err != nil {
		log.Printf("WATCHER ERROR: Failed to index %s: %v", dir, err)
	}
}

func (s *FileIndexingService) handleEvent(ctx context.Context, event fsnotify.Event) {
	log.Debugf("WATCHER EVENT: %s", event)

	switch {
	// Editors often save through a temp file and rename, so Create and
	// Write are handled the same way.
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		hash, err := calculateFileHash(event.Name)
		if err != nil {
			log.Printf("WATCHER WARN: Could not hash file %s: %v", event.Name, err)
			return
		}
		if err := s.reindexFile(ctx, event.Name, hash); err != nil {
			log.Printf("WATCHER ERROR: Failed to process file %s: %v", event.Name, err)
		}

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		log.Printf("WATCHER: File removed/renamed: %s. Removing from index...", event.Name)
		if err := s.store.DeleteBySource(ctx, event.Name); err != nil {
			log.Printf("WATCHER ERROR: Failed to delete records for %s: %v", event.Name, err)
		}
	}
}

// ScanAndIndexDirectory indexes new and changed files under dirPath and
// drops files that no longer exist. Per-file failures are logged and skipped.
func (s *FileIndexingService) ScanAndIndexDirectory(ctx context.Context, dirPath string) error {
	log.Printf("INDEXER: Starting directory scan for: %s", dirPath)

	indexedFiles, err := s.store.SourceHashes(ctx)
	if err != nil {
		return fmt.Errorf("could not get current index state: %w", err)
	}
	log.Printf("INDEXER: Found %d files currently in the index.", len(indexedFiles))

	localFiles := make(map[string]bool)
	err = filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isSupportedFile(path) {
			return nil
		}
		localFiles[path] = true

		hash, err := calculateFileHash(path)
		if err != nil {
			log.Printf("INDEXER WARN: Could not hash file %s: %v", path, err)
			return nil
		}
		if indexedHash, ok := indexedFiles[path]; ok && indexedHash == hash {
			return nil
		}

		log.Printf("INDEXER: Indexing new/modified file: %s", path)
		if err := s.reindexFile(ctx, path, hash); err != nil {
			log.Printf("INDEXER ERROR: Failed to process file %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error walking the path %s: %w", dirPath, err)
	}

	for path := range indexedFiles {
		if !localFiles[path] {
			log.Printf("INDEXER: File deleted: %s. Removing from index...", path)
			if err := s.store.DeleteBySource(ctx, path); err != nil {
				log.Printf("INDEXER ERROR: Failed to delete records for %s: %v", path, err)
			}
		}
	}
	log.Println("INDEXER: Directory scan finished.")
	return nil
}

// reindexFile replaces whatever the index holds for path. chunk_num counts
// across the whole file; PDF chunks also record their page.
func (s *FileIndexingService) reindexFile(ctx context.Context, path, hash string) error {
	if err := s.store.DeleteBySource(ctx, path); err != nil {
		return fmt.Errorf("failed to delete old version: %w", err)
	}

	pages, err := ExtractPages(path)
	if err != nil {
		return err
	}

	var docs []schema.Document
	for _, page := range pages {
		chunks, err := s.splitter.SplitText(page.Text)
		if err != nil {
			return fmt.Errorf("failed to split %s: %w", path, err)
		}
		for _, chunk := range chunks {
			if strings.TrimSpace(chunk) == "" {
				continue
			}
			metadata := map[string]any{
				vectorstore.MetadataSource:   path,
				vectorstore.MetadataTitle:    filepath.Base(path),
				vectorstore.MetadataFileHash: hash,
				vectorstore.MetadataChunkNum: len(docs),
			}
			if page.Number > 0 {
				metadata[vectorstore.MetadataPage] = page.Number
			}
			docs = append(docs, schema.Document{PageContent: chunk, Metadata: metadata})
		}
	}
	log.Printf("INDEXER: Split %s (%d pages) into %d chunks.", path, len(pages), len(docs))

	if len(docs) == 0 {
		return nil
	}
	if _, err := s.store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("failed to add chunks of %s: %w", path, err)
	}
	return nil
}

func isSupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".pdf":
		return true
	default:
		return false
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func calculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
