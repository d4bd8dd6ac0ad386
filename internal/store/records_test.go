package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediflow/go-rxdraft/internal/domain/prescription"
)

func testRecord(id string) *prescription.Record {
	return &prescription.Record{
		ID:          id,
		Timestamp:   time.Now().UTC(),
		PatientInfo: prescription.PatientInfo{Name: "Jane Doe"},
		Symptoms:    "persistent cough",
		Diagnosis:   "Bronchitis",
		FinalPrescription: []prescription.MedicationEntry{
			{ID: "med_1", Name: "Amoxicillin", Dosage: "500mg", Provenance: prescription.AiOriginal},
		},
	}
}

func newTestStore(t *testing.T) *RecordStore {
	t.Helper()
	dir := t.TempDir()
	return NewRecordStore(filepath.Join(dir, "prescriptions"), filepath.Join(dir, "learning"), nil)
}

func TestRecordRoundtrip(t *testing.T) {
	s := newTestStore(t)

	rec := testRecord("RX100")
	require.NoError(t, s.WriteRecord(rec))

	got, err := s.ReadRecord("RX100")
	require.NoError(t, err)
	assert.Equal(t, "RX100", got.ID)
	assert.Equal(t, "Bronchitis", got.Diagnosis)
	require.Len(t, got.FinalPrescription, 1)
	assert.Equal(t, prescription.AiOriginal, got.FinalPrescription[0].Provenance)
}

func TestWriteRecordOverwrites(t *testing.T) {
	s := newTestStore(t)

	rec := testRecord("RX100")
	require.NoError(t, s.WriteRecord(rec))

	rec.Diagnosis = "Pneumonia"
	require.NoError(t, s.WriteRecord(rec))

	got, err := s.ReadRecord("RX100")
	require.NoError(t, err)
	assert.Equal(t, "Pneumonia", got.Diagnosis)
}

func TestReadRecordNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ReadRecord("RX999")
	assert.ErrorIs(t, err, prescription.ErrNotFound)
}

func TestReadRecordCorruptFileIsNotFound(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.recordsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.recordsDir, "RX1.json"), []byte("not json"), 0o644))

	_, err := s.ReadRecord("RX1")
	assert.ErrorIs(t, err, prescription.ErrNotFound)
}

func TestRecordFilenameRejectsUnsafeIDs(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		rec := testRecord(id)
		err := s.WriteRecord(rec)
		assert.ErrorIs(t, err, prescription.ErrValidation, "id %q", id)

		_, err = s.ReadRecord(id)
		assert.ErrorIs(t, err, prescription.ErrValidation, "id %q", id)
	}
}

func TestWriteLearning(t *testing.T) {
	s := newTestStore(t)

	fb := prescription.NewLearningFeedback(testRecord("RX55"))
	require.NoError(t, s.WriteLearning(fb))

	data, err := os.ReadFile(filepath.Join(s.learningDir, "learning_RX55.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"prescriptionId": "RX55"`)
}
