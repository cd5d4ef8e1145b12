// Package snapshot persists datasets as full-replacement CSV files.
//
// A snapshot is first written to a temporary file next to its destination
// and then renamed over it, so readers see either the old file or the new
// one, never a partial write.
package snapshot

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"CryptoIngest/internal/dataset"
	"CryptoIngest/internal/model"
)

// Target is one dataset and the path it replaces.
type Target struct {
	Path    string
	Records []model.Record
}

// Staged is a fully written temporary file awaiting Commit.
type Staged struct {
	Path    string
	tmpPath string
	done    bool
}

// Stage writes records to a temporary file in the destination directory,
// creating the directory if needed. The destination is not touched.
func Stage(path string, records []model.Record) (*Staged, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	fail := func(err error) (*Staged, error) {
		f.Close()
		os.Remove(tmp)
		return nil, err
	}

	if err := dataset.WriteCSV(f, records); err != nil {
		return fail(fmt.Errorf("write %s: %w", tmp, err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("sync %s: %w", tmp, err))
	}
	if err := f.Chmod(0644); err != nil {
		return fail(fmt.Errorf("chmod %s: %w", tmp, err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("close %s: %w", tmp, err)
	}
	return &Staged{Path: path, tmpPath: tmp}, nil
}

// Commit atomically replaces the destination with the staged file.
func (s *Staged) Commit() error {
	if s.done {
		return fmt.Errorf("snapshot %s already finalized", s.Path)
	}
	if err := os.Rename(s.tmpPath, s.Path); err != nil {
		os.Remove(s.tmpPath)
		s.done = true
		return fmt.Errorf("replace %s: %w", s.Path, err)
	}
	s.done = true
	return nil
}

// Discard removes the staged file. It is a no-op after Commit.
func (s *Staged) Discard() {
	if s.done {
		return
	}
	s.done = true
	if err := os.Remove(s.tmpPath); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] remove temp snapshot %s: %v", s.tmpPath, err)
	}
}

// WriteError names the destination whose write failed.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("snapshot %s: %v", e.Path, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// WriteAll stages every target before replacing any destination. If staging
// fails or ctx is done before the first rename, no destination is modified.
// Renames then run in target order and each is atomic on its own, so a
// failed later rename leaves earlier destinations already replaced.
func WriteAll(ctx context.Context, targets ...Target) error {
	staged := make([]*Staged, 0, len(targets))
	defer func() {
		for _, s := range staged {
			s.Discard()
		}
	}()

	for _, t := range targets {
		s, err := Stage(t.Path, t.Records)
		if err != nil {
			return &WriteError{Path: t.Path, Err: err}
		}
		staged = append(staged, s)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, s := range staged {
		if err := s.Commit(); err != nil {
			return &WriteError{Path: s.Path, Err: err}
		}
		log.Printf("[INFO] snapshot written: %s", s.Path)
	}
	return nil
}
