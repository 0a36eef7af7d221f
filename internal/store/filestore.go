package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/universe-mcp/harvester/pkg/model"
)

// FileStore writes one JSON document per record. Servers are partitioned by
// classification subdirectory; other categories are flat:
//
//	data/servers/official/github-mcp.json
//	data/clients/claude-desktop.json
//	data/use-cases/code-review.json
type FileStore struct {
	dir string
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) recordPath(rec *model.Record) string {
	if rec.Category == model.CategoryServers {
		return filepath.Join(s.dir, string(rec.Category), string(rec.StorageClassification()), rec.ID+".json")
	}
	return filepath.Join(s.dir, string(rec.Category), rec.ID+".json")
}

// Upsert writes the record atomically (temp file + rename). When a server's
// classification changed since the previous harvest, the copy under the old
// classification directory is removed so the id stays unique.
func (s *FileStore) Upsert(ctx context.Context, rec *model.Record) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if rec.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidInput)
	}
	if strings.ContainsAny(rec.ID, "/\\") {
		return fmt.Errorf("%w: id %q contains a path separator", ErrInvalidInput, rec.ID)
	}

	path := s.recordPath(rec)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create record dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+rec.ID+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp record file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write record %s: %w", rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close record %s: %w", rec.ID, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace record %s: %w", rec.ID, err)
	}

	if rec.Category == model.CategoryServers {
		s.removeStaleCopies(rec, path)
	}
	return nil
}

// removeStaleCopies drops the record file from classification directories it
// no longer belongs to.
func (s *FileStore) removeStaleCopies(rec *model.Record, keep string) {
	for _, c := range []model.Classification{
		model.ClassificationOfficial,
		model.ClassificationReference,
		model.ClassificationCommunity,
	} {
		p := filepath.Join(s.dir, string(model.CategoryServers), string(c), rec.ID+".json")
		if p != keep {
			os.Remove(p)
		}
	}
}

func (s *FileStore) Get(ctx context.Context, category model.Category, id string) (*model.Record, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	records, err := s.List(ctx, category)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}

// List walks the category directory and decodes every record file. Files
// that fail to decode are skipped; the harvest never wrote them, so they are
// not part of the corpus.
func (s *FileStore) List(ctx context.Context, category model.Category) ([]*model.Record, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	root := filepath.Join(s.dir, string(category))
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var records []*model.Record
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		var rec model.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil
		}
		records = append(records, &rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", category, err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (s *FileStore) Count(ctx context.Context, category model.Category) (int, error) {
	records, err := s.List(ctx, category)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *FileStore) Close() error { return nil }
