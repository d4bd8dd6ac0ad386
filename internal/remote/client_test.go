package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediflow/go-rxdraft/internal/domain/prescription"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, "secret-key", 2*time.Second, time.Second, nil)
	require.NoError(t, err)
	return c
}

func TestSavePrescription(t *testing.T) {
	var gotPath, gotAuth, gotClientType string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotClientType = r.Header.Get("X-Client-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	rec := &prescription.Record{
		ID:       "RX1",
		Symptoms: "fever",
		FinalPrescription: []prescription.MedicationEntry{
			{ID: "med_1", Name: "Paracetamol", Provenance: prescription.AiOriginal},
		},
	}

	require.NoError(t, c.SavePrescription(context.Background(), rec))
	assert.Equal(t, "/api/prescriptions/save", gotPath)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "healthcare-app", gotClientType)
	assert.Equal(t, "RX1", gotBody["id"])

	meds, ok := gotBody["finalPrescription"].([]interface{})
	require.True(t, ok)
	med := meds[0].(map[string]interface{})
	assert.Equal(t, true, med["aiSuggested"])
}

func TestSendLearningFeedback(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	fb := prescription.LearningFeedback{PrescriptionID: "RX1", Symptoms: "fever"}

	require.NoError(t, c.SendLearningFeedback(context.Background(), fb))
	assert.Equal(t, "/api/learning/prescription-feedback", gotPath)
}

func TestSavePrescriptionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.SavePrescription(context.Background(), &prescription.Record{ID: "RX1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSavePrescriptionConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.SavePrescription(context.Background(), &prescription.Record{ID: "RX1"})
	assert.Error(t, err)
}
