// Package handlers provides HTTP handlers for the prescription API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mediflow/go-rxdraft/internal/ai"
	"github.com/mediflow/go-rxdraft/internal/api/middleware"
	"github.com/mediflow/go-rxdraft/internal/domain/prescription"
	"github.com/mediflow/go-rxdraft/internal/persist"
)

// PrescriptionHandler handles prescription endpoints
type PrescriptionHandler struct {
	generator   *ai.Generator
	coordinator *persist.Coordinator
	logger      *zap.Logger
}

// NewPrescriptionHandler creates a new handler
func NewPrescriptionHandler(generator *ai.Generator, coordinator *persist.Coordinator, logger *zap.Logger) *PrescriptionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrescriptionHandler{
		generator:   generator,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Routes returns the handler routes
func (h *PrescriptionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/generate", h.Generate)
	r.Post("/save", h.Save)
	r.Get("/", h.Query)
	return r
}

// GenerateRequest is the request body for draft generation
type GenerateRequest struct {
	Symptoms  string `json:"symptoms"`
	PatientID string `json:"patientId"`
	DoctorID  string `json:"doctorId"`
	Timestamp string `json:"timestamp"`
}

// GenerateResponse is the response for draft generation
type GenerateResponse struct {
	Success      bool               `json:"success"`
	Prescription prescription.Draft `json:"prescription"`
	AIResponse   string             `json:"aiResponse"`
	Timestamp    time.Time          `json:"timestamp"`
}

// Generate handles POST /prescriptions/generate
func (h *PrescriptionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("prescription-handler")
	ctx, span := tracer.Start(ctx, "generate_prescription")
	defer span.End()

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	result, err := h.generator.Generate(ctx, ai.Request{
		Symptoms:  req.Symptoms,
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Timestamp: ts,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	span.SetAttributes(
		attribute.Int("medications", len(result.Draft.Medications)),
		attribute.Bool("fallback", result.Fallback),
	)
	h.logger.Info("draft generated",
		zap.String("patient_id", req.PatientID),
		zap.String("request_id", middleware.GetRequestID(ctx)),
		zap.Bool("fallback", result.Fallback),
	)

	h.writeJSON(w, http.StatusOK, GenerateResponse{
		Success:      true,
		Prescription: result.Draft,
		AIResponse:   result.RawResponse,
		Timestamp:    time.Now().UTC(),
	})
}

// SaveRequest is the request body for saving a finalized prescription
type SaveRequest struct {
	PrescriptionID      string                         `json:"prescriptionId"`
	Prescription        *PrescriptionBody              `json:"prescription"`
	DoctorModifications []prescription.MedicationEntry `json:"doctorModifications"`
}

// PrescriptionBody is the prescription as the editing client submits it. The
// field names differ from the persisted record: the AI draft arrives as
// aiSuggestions and the clinician's notes as doctorNotes.
type PrescriptionBody struct {
	PatientInfo       prescription.PatientInfo       `json:"patientInfo"`
	DoctorInfo        prescription.DoctorInfo        `json:"doctorInfo"`
	Symptoms          string                         `json:"symptoms"`
	Diagnosis         string                         `json:"diagnosis"`
	DoctorNotes       string                         `json:"doctorNotes"`
	AISuggestions     []prescription.MedicationEntry `json:"aiSuggestions"`
	FinalPrescription []prescription.MedicationEntry `json:"finalPrescription"`
}

// toRecord maps the submitted shape onto the persisted record.
func (b *PrescriptionBody) toRecord() *prescription.Record {
	return &prescription.Record{
		PatientInfo:       b.PatientInfo,
		DoctorInfo:        b.DoctorInfo,
		Symptoms:          b.Symptoms,
		Diagnosis:         b.Diagnosis,
		Notes:             b.DoctorNotes,
		AISuggestions:     b.AISuggestions,
		FinalPrescription: b.FinalPrescription,
	}
}

// SaveResponse reports per-sink results for a save
type SaveResponse struct {
	Success          bool      `json:"success"`
	PrescriptionID   string    `json:"prescriptionId"`
	MCPServerUsed    bool      `json:"mcpServerUsed"`
	LocalBackupSaved bool      `json:"localBackupSaved"`
	MCPError         *string   `json:"mcpError"`
	LearningDataSent bool      `json:"learningDataSent"`
	Timestamp        time.Time `json:"timestamp"`
}

// Save handles POST /prescriptions/save
func (h *PrescriptionHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("prescription-handler")
	ctx, span := tracer.Start(ctx, "save_prescription")
	defer span.End()

	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.PrescriptionID == "" || req.Prescription == nil {
		h.jsonError(w, "Prescription ID and data are required", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("prescription_id", req.PrescriptionID))

	outcome, err := h.coordinator.Save(ctx, req.PrescriptionID, req.Prescription.toRecord(), req.DoctorModifications)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var mcpErr *string
	if !outcome.RemoteSaved {
		mcpErr = &outcome.RemoteError
	}

	h.writeJSON(w, http.StatusOK, SaveResponse{
		Success:          true,
		PrescriptionID:   outcome.PrescriptionID,
		MCPServerUsed:    outcome.RemoteSaved,
		LocalBackupSaved: outcome.LocalSaved,
		MCPError:         mcpErr,
		LearningDataSent: outcome.LearningQueued,
		Timestamp:        time.Now().UTC(),
	})
}

// Query handles GET /prescriptions. With ?id it returns one record, otherwise
// a page of recent index entries (?limit, default 50).
func (h *PrescriptionHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if id := r.URL.Query().Get("id"); id != "" {
		rec, err := h.coordinator.Get(ctx, id)
		if err != nil {
			h.jsonError(w, "Prescription not found", http.StatusNotFound)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":      true,
			"prescription": rec,
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		// Non-numeric limits fall through to the default.
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	entries, total, err := h.coordinator.List(ctx, limit)
	if err != nil {
		h.jsonError(w, "failed to list prescriptions", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []prescription.IndexEntry{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"prescriptions": entries,
		"total":         total,
	})
}

// writeError maps domain error kinds to HTTP statuses with the flat error
// envelope the clients expect.
func (h *PrescriptionHandler) writeError(w http.ResponseWriter, err error) {
	var upstream *prescription.UpstreamError
	var persistErr *prescription.PersistenceError

	switch {
	case errors.Is(err, prescription.ErrValidation):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, prescription.ErrNotFound):
		h.jsonError(w, "Prescription not found", http.StatusNotFound)
	case errors.As(err, &upstream):
		h.logger.Error("upstream ai failure", zap.Error(err))
		h.jsonError(w, upstream.Error(), http.StatusInternalServerError)
	case errors.As(err, &persistErr):
		h.logger.Error("save failed on all sinks", zap.Error(err))
		h.jsonError(w, "Failed to save prescription to both MCP server and local storage", http.StatusInternalServerError)
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *PrescriptionHandler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *PrescriptionHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
