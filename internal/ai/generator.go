package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mediflow/go-rxdraft/internal/domain/prescription"
	"github.com/mediflow/go-rxdraft/internal/observability/metrics"
)

// Request carries the inputs for one suggestion generation.
type Request struct {
	Symptoms  string
	PatientID string
	DoctorID  string
	Timestamp time.Time
}

// Result is the outcome of a generation. Fallback is true when the model's
// response could not be parsed and the canned draft was used; the operation
// still counts as a success in that case.
type Result struct {
	Draft       prescription.Draft
	RawResponse string
	Fallback    bool
}

// Generator produces prescription drafts from patient symptoms.
type Generator struct {
	llm     TextGenerator
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewGenerator creates a suggestion generator.
func NewGenerator(llm TextGenerator, m *metrics.Metrics, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{llm: llm, logger: logger, metrics: m}
}

// Generate runs one model call and returns a draft. The upstream call is made
// exactly once; a transport or API failure surfaces as UpstreamError. An
// unparseable response degrades silently to the canned fallback draft.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	tracer := otel.Tracer("suggestion-generator")
	ctx, span := tracer.Start(ctx, "generate_draft")
	defer span.End()

	if strings.TrimSpace(req.Symptoms) == "" {
		return nil, fmt.Errorf("%w: symptoms are required", prescription.ErrValidation)
	}

	text, err := g.llm.GenerateText(ctx, buildPrompt(req))
	if err != nil {
		span.RecordError(err)
		if g.metrics != nil {
			g.metrics.GenerationsFailed.Inc()
		}
		return nil, &prescription.UpstreamError{Err: err}
	}

	parsed := ParseDraft(text)
	span.SetAttributes(attribute.Bool("draft.parsed", parsed.Parsed()))

	var draft prescription.Draft
	if parsed.Parsed() {
		draft = parsed.Draft()
	} else {
		g.logger.Warn("model response not parseable, using fallback draft",
			zap.String("patient_id", req.PatientID),
			zap.Int("response_len", len(text)),
		)
		if g.metrics != nil {
			g.metrics.ParseFallbacks.Inc()
		}
		draft = fallbackDraft(req.Symptoms, text)
	}

	// Entry ids and provenance are owned by this service, not the model.
	now := time.Now().UnixMilli()
	for i := range draft.Medications {
		if draft.Medications[i].ID == "" {
			draft.Medications[i].ID = fmt.Sprintf("med_%d_%d", now, i)
		}
		draft.Medications[i].Provenance = prescription.AiOriginal
	}

	if g.metrics != nil {
		g.metrics.GenerationsTotal.Inc()
	}
	return &Result{Draft: draft, RawResponse: text, Fallback: !parsed.Parsed()}, nil
}

func buildPrompt(req Request) string {
	return fmt.Sprintf(`As a medical AI assistant, analyze the following patient symptoms and generate a prescription recommendation.
Please provide a structured response in JSON format.

Patient Symptoms: %s
Patient ID: %s
Doctor ID: %s
Timestamp: %s

Please generate a prescription with the following structure:
{
  "patientInfo": {
    "name": "Generate appropriate patient name",
    "age": "Estimate appropriate age based on symptoms",
    "gender": "Estimate gender if relevant to symptoms",
    "address": "Generate sample address",
    "phone": "Generate sample phone number"
  },
  "diagnosis": "Provide preliminary diagnosis based on symptoms",
  "medications": [
    {
      "id": "unique_id",
      "name": "Medicine name",
      "dosage": "Appropriate dosage",
      "frequency": "How often to take",
      "duration": "Treatment duration",
      "instructions": "Special instructions"
    }
  ],
  "notes": "Additional medical notes and recommendations",
  "context": "Brief explanation of the medical reasoning"
}

Important guidelines:
- Only suggest common, safe medications
- Include appropriate dosages and frequencies
- Provide clear instructions
- Add relevant medical advice
- Consider drug interactions and contraindications
- This is for educational/demo purposes - always consult a real doctor

Generate the prescription now:`,
		req.Symptoms, req.PatientID, req.DoctorID, req.Timestamp.Format(time.RFC3339))
}

// fallbackDraft is the canned draft used when the model's output contains no
// parseable JSON object. One generic medication, diagnosis derived from the
// symptoms, notes carrying the head of the raw response.
func fallbackDraft(symptoms, raw string) prescription.Draft {
	notes := raw
	if len(notes) > 500 {
		notes = notes[:500] + "..."
	}
	return prescription.Draft{
		PatientInfo: prescription.PatientInfo{
			Name:    "John Smith",
			Age:     "35",
			Gender:  "Male",
			Address: "123 Main St, City, State",
			Phone:   "+1 (555) 123-4567",
		},
		Diagnosis: "Based on symptoms: " + symptoms,
		Medications: []prescription.MedicationEntry{
			{
				Name:         "Paracetamol",
				Dosage:       "500mg",
				Frequency:    "Twice daily",
				Duration:     "5 days",
				Instructions: "Take with food",
			},
		},
		Notes:   notes,
		Context: "AI analysis of presented symptoms",
	}
}
