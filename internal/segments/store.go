package segments

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dmitrijs2005/camuploader/internal/logging"
)

// Store is a read-mostly view over <root>/<camera>/ directories.
type Store struct {
	root   string
	exts   map[string]struct{}
	logger logging.Logger
}

// NewStore builds a Store over root. exts are matched case-insensitively;
// an empty list means ".mp4".
func NewStore(root string, exts []string, logger logging.Logger) *Store {
	if len(exts) == 0 {
		exts = []string{".mp4"}
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return &Store{root: root, exts: set, logger: logger.With("module", "segment_store")}
}

func (s *Store) Root() string { return s.root }

// CheckRoot fails when the storage root is missing or not a directory.
func (s *Store) CheckRoot() error {
	fi, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("storage root %s: %w", s.root, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("storage root %s: not a directory", s.root)
	}
	return nil
}

// Cameras lists the directories directly under the root, sorted.
func (s *Store) Cameras(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read storage root: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// List returns the segments in camera's directory, oldest first. A missing
// directory is not an error: the recorder may not have started yet. Files
// that disappear while listing are skipped.
func (s *Store) List(ctx context.Context, camera string) ([]Segment, error) {
	dir := filepath.Join(s.root, camera)

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list camera %s: %w", camera, err)
	}

	segs := make([]Segment, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if _, ok := s.exts[strings.ToLower(ext)]; !ok {
			continue
		}

		ts, err := ParseTimestamp(e.Name())
		if err != nil {
			s.logger.Debug(ctx, "skipping file without timestamp", "camera", camera, "file", e.Name())
			continue
		}

		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}

		segs = append(segs, Segment{
			Camera:    camera,
			Path:      filepath.Join(dir, e.Name()),
			Name:      e.Name(),
			Ext:       ext,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			Timestamp: ts,
		})
	}

	sort.Slice(segs, func(i, j int) bool { return segs[i].Name < segs[j].Name })
	return segs, nil
}

// Remove deletes a segment file. A file that is already gone counts as removed.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
