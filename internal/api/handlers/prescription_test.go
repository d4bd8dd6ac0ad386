package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediflow/go-rxdraft/internal/ai"
	"github.com/mediflow/go-rxdraft/internal/domain/prescription"
	"github.com/mediflow/go-rxdraft/internal/persist"
	"github.com/mediflow/go-rxdraft/internal/store"
)

type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	return s.response, s.err
}

type stubRemote struct {
	saveErr error
}

func (s *stubRemote) SavePrescription(ctx context.Context, rec *prescription.Record) error {
	return s.saveErr
}

func (s *stubRemote) SendLearningFeedback(ctx context.Context, fb prescription.LearningFeedback) error {
	return nil
}

func newTestHandler(t *testing.T, llm ai.TextGenerator, remote persist.RemoteSink) *PrescriptionHandler {
	t.Helper()
	dir := t.TempDir()
	records := store.NewRecordStore(filepath.Join(dir, "prescriptions"), filepath.Join(dir, "learning"), nil)
	index := store.NewIndex(filepath.Join(dir, "prescriptions"), 1000, nil)
	coordinator := persist.New(remote, records, index, nil, nil, nil, nil)
	generator := ai.NewGenerator(llm, nil, nil)
	return NewPrescriptionHandler(generator, coordinator, nil)
}

func doRequest(h *PrescriptionHandler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestNewPrescriptionHandlerDefaultsLogger(t *testing.T) {
	h := NewPrescriptionHandler(nil, nil, nil)
	assert.NotNil(t, h.logger)
}

func TestGenerateEndpoint(t *testing.T) {
	llm := &stubLLM{response: `{"diagnosis":"Viral fever","medications":[{"name":"Paracetamol","dosage":"500mg"}],"notes":"rest"}`}
	h := newTestHandler(t, llm, &stubRemote{})

	w := doRequest(h, http.MethodPost, "/generate", `{"symptoms":"fever, chills","patientId":"p1","doctorId":"d1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, llm.response, body["aiResponse"])

	draft := body["prescription"].(map[string]interface{})
	assert.Equal(t, "Viral fever", draft["diagnosis"])
	meds := draft["medications"].([]interface{})
	require.Len(t, meds, 1)
	med := meds[0].(map[string]interface{})
	assert.Equal(t, true, med["aiSuggested"])
	assert.NotEmpty(t, med["id"])
}

func TestGenerateEndpointMissingSymptoms(t *testing.T) {
	h := newTestHandler(t, &stubLLM{}, &stubRemote{})

	w := doRequest(h, http.MethodPost, "/generate", `{"patientId":"p1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["success"])
}

func TestGenerateEndpointUpstreamFailure(t *testing.T) {
	h := newTestHandler(t, &stubLLM{err: errors.New("model unavailable")}, &stubRemote{})

	w := doRequest(h, http.MethodPost, "/generate", `{"symptoms":"fever"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["success"])
}

func TestGenerateEndpointBadJSON(t *testing.T) {
	h := newTestHandler(t, &stubLLM{}, &stubRemote{})

	w := doRequest(h, http.MethodPost, "/generate", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// savePayload builds a save request the way the editing client sends it: the
// AI draft under aiSuggestions and the clinician's notes under doctorNotes.
func savePayload(id string) string {
	body := PrescriptionBody{
		Symptoms:    "fever",
		Diagnosis:   "Viral fever",
		DoctorNotes: "take rest",
		AISuggestions: []prescription.MedicationEntry{
			{ID: "med_1", Name: "Paracetamol", Provenance: prescription.AiOriginal},
		},
		FinalPrescription: []prescription.MedicationEntry{
			{ID: "med_1", Name: "Paracetamol", Provenance: prescription.AiOriginal},
		},
	}
	data, _ := json.Marshal(map[string]interface{}{
		"prescriptionId": id,
		"prescription":   body,
	})
	return string(data)
}

func TestSaveEndpoint(t *testing.T) {
	h := newTestHandler(t, &stubLLM{}, &stubRemote{})

	w := doRequest(h, http.MethodPost, "/save", savePayload("RX1"))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "RX1", body["prescriptionId"])
	assert.Equal(t, true, body["mcpServerUsed"])
	assert.Equal(t, true, body["localBackupSaved"])
	assert.Nil(t, body["mcpError"])
	assert.Equal(t, true, body["learningDataSent"])
}

func TestSaveEndpointPersistsClientFields(t *testing.T) {
	h := newTestHandler(t, &stubLLM{}, &stubRemote{})

	w := doRequest(h, http.MethodPost, "/save", savePayload("RX1"))
	require.Equal(t, http.StatusOK, w.Code)

	// The stored record carries the submitted AI draft and notes under the
	// persisted field names.
	w = doRequest(h, http.MethodGet, "/?id=RX1", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	rec := body["prescription"].(map[string]interface{})
	assert.Equal(t, "take rest", rec["notes"])

	suggestions := rec["originalAISuggestions"].([]interface{})
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Paracetamol", suggestions[0].(map[string]interface{})["name"])

	learning := rec["learningData"].(map[string]interface{})
	assert.Equal(t, float64(1), learning["totalSuggestions"])
	assert.Equal(t, float64(1), learning["acceptedSuggestions"])
}

func TestSaveEndpointRemoteDown(t *testing.T) {
	h := newTestHandler(t, &stubLLM{}, &stubRemote{saveErr: errors.New("registry down")})

	w := doRequest(h, http.MethodPost, "/save", savePayload("RX1"))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["mcpServerUsed"])
	assert.Equal(t, true, body["localBackupSaved"])
	assert.Contains(t, body["mcpError"], "registry down")
}

func TestSaveEndpointMissingFields(t *testing.T) {
	h := newTestHandler(t, &stubLLM{}, &stubRemote{})

	w := doRequest(h, http.MethodPost, "/save", `{"prescriptionId":"RX1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Prescription ID and data are required", body["error"])
}

func TestQueryEndpointByID(t *testing.T) {
	h := newTestHandler(t, &stubLLM{}, &stubRemote{})

	doRequest(h, http.MethodPost, "/save", savePayload("RX1"))

	w := doRequest(h, http.MethodGet, "/?id=RX1", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	rec := body["prescription"].(map[string]interface{})
	assert.Equal(t, "RX1", rec["id"])
}

func TestQueryEndpointNotFound(t *testing.T) {
	h := newTestHandler(t, &stubLLM{}, &stubRemote{})

	w := doRequest(h, http.MethodGet, "/?id=RX999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Prescription not found", body["error"])
}

func TestQueryEndpointList(t *testing.T) {
	h := newTestHandler(t, &stubLLM{}, &stubRemote{})

	doRequest(h, http.MethodPost, "/save", savePayload("RX1"))
	doRequest(h, http.MethodPost, "/save", savePayload("RX2"))

	w := doRequest(h, http.MethodGet, "/?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["total"])
	assert.Len(t, body["prescriptions"].([]interface{}), 1)
}

func TestQueryEndpointEmptyList(t *testing.T) {
	h := newTestHandler(t, &stubLLM{}, &stubRemote{})

	w := doRequest(h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotNil(t, body["prescriptions"])
	assert.Equal(t, float64(0), body["total"])
}
