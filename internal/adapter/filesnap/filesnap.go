// Package filesnap writes checkpoint snapshots and the final report as JSON
// files on the local disk.
package filesnap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/user/seo-crawler/internal/entity"
)

// timestampLayout sorts lexically in chronological order.
const timestampLayout = "20060102_150405.000000"

type Store struct {
	dir        string
	reportPath string
}

// New returns a store writing snapshots under dir and the report to
// reportPath. An empty reportPath disables the report file.
func New(dir, reportPath string) *Store {
	return &Store{dir: dir, reportPath: reportPath}
}

func (s *Store) SaveSnapshot(_ context.Context, snap *entity.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	stamp := snap.TakenAt.UTC().Format(timestampLayout)
	for _, kind := range entity.SnapshotKinds {
		name := fmt.Sprintf("%s_autosave_%s.json", kind, stamp)
		if err := writeJSON(filepath.Join(s.dir, name), snap.Part(kind)); err != nil {
			return err
		}
	}
	return nil
}

// PruneSnapshots keeps the newest keep files of each kind.
func (s *Store) PruneSnapshots(_ context.Context, keep int) error {
	for _, kind := range entity.SnapshotKinds {
		files, err := filepath.Glob(filepath.Join(s.dir, string(kind)+"_autosave_*.json"))
		if err != nil {
			return err
		}
		if len(files) <= keep {
			continue
		}
		sort.Strings(files)
		for _, f := range files[:len(files)-keep] {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", f, err)
			}
		}
	}
	return nil
}

func (s *Store) SaveReport(_ context.Context, report *entity.Report) error {
	if s.reportPath == "" {
		return nil
	}
	if dir := filepath.Dir(s.reportPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	return writeJSON(s.reportPath, report)
}

// writeJSON replaces path atomically so a crash never leaves a torn file.
func writeJSON(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+strings.TrimSuffix(filepath.Base(path), ".json")+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
