// Package store implements the local file-backed record store and the
// bounded summary index. Layout: one JSON file per prescription id plus an
// index.json in the records directory, and one file per learning feedback
// record in a separate directory.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mediflow/go-rxdraft/internal/domain/prescription"
)

// RecordStore reads and writes full prescription records.
type RecordStore struct {
	recordsDir  string
	learningDir string
	logger      *zap.Logger
}

// NewRecordStore creates a record store rooted at the given directories.
func NewRecordStore(recordsDir, learningDir string, logger *zap.Logger) *RecordStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordStore{
		recordsDir:  recordsDir,
		learningDir: learningDir,
		logger:      logger,
	}
}

// WriteRecord persists the full record as <id>.json, creating the directory
// if absent. Re-writing an existing id overwrites the previous content.
func (s *RecordStore) WriteRecord(rec *prescription.Record) error {
	name, err := recordFilename(rec.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.recordsDir, 0o755); err != nil {
		return fmt.Errorf("create records dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}

	path := filepath.Join(s.recordsDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write record %s: %w", rec.ID, err)
	}

	s.logger.Debug("record written", zap.String("id", rec.ID), zap.String("path", path))
	return nil
}

// ReadRecord loads one record by id. An absent or unreadable file is a
// NotFound, matching the retrieval contract.
func (s *RecordStore) ReadRecord(id string) (*prescription.Record, error) {
	name, err := recordFilename(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.recordsDir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", prescription.ErrNotFound, id)
	}

	var rec prescription.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s", prescription.ErrNotFound, id)
	}
	return &rec, nil
}

// WriteLearning persists a learning feedback record as
// learning_<prescriptionId>.json in the learning directory.
func (s *RecordStore) WriteLearning(fb prescription.LearningFeedback) error {
	name, err := recordFilename(fb.PrescriptionID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.learningDir, 0o755); err != nil {
		return fmt.Errorf("create learning dir: %w", err)
	}

	data, err := json.MarshalIndent(fb, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal learning feedback %s: %w", fb.PrescriptionID, err)
	}

	path := filepath.Join(s.learningDir, "learning_"+name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write learning feedback %s: %w", fb.PrescriptionID, err)
	}
	return nil
}

// recordFilename maps an id to its file name, rejecting ids that would
// escape the store directory.
func recordFilename(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: invalid prescription id %q", prescription.ErrValidation, id)
	}
	return id + ".json", nil
}
