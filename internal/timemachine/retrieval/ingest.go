package retrieval

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ingestExtensions are the file types IngestDir picks up.
var ingestExtensions = map[string]bool{".txt": true, ".md": true}

// ChunkID derives a stable chunk ID from the source path and chunk index,
// so re-ingesting a file replaces its chunks instead of duplicating them.
func ChunkID(source string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", source, index))).String()
}

// FileType is the base name of path without its extension.
func FileType(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IngestFile splits one text file and stores its chunks. It returns the
// number of chunks written.
func IngestFile(ctx context.Context, store *SQLiteStore, splitter *Splitter, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("retrieval: read %s: %w", path, err)
	}
	pieces := splitter.Split(string(data))
	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{
			ID:       ChunkID(path, i),
			Source:   path,
			Index:    i,
			FileType: FileType(path),
			Content:  p,
		}
	}
	if err := store.Add(ctx, chunks); err != nil {
		return 0, err
	}
	store.logger.Info("retrieval: ingested file", "source", path, "chunks", len(chunks))
	return len(chunks), nil
}

// IngestDir ingests every .txt and .md file under root. It returns the
// total number of chunks written.
func IngestDir(ctx context.Context, store *SQLiteStore, splitter *Splitter, root string) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !ingestExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		n, err := IngestFile(ctx, store, splitter, path)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("retrieval: ingest %s: %w", root, err)
	}
	return total, nil
}

// Ingest ingests path, which may be a file or a directory.
func Ingest(ctx context.Context, store *SQLiteStore, splitter *Splitter, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("retrieval: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return IngestDir(ctx, store, splitter, path)
	}
	return IngestFile(ctx, store, splitter, path)
}
