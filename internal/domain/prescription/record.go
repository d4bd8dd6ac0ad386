// Package prescription implements the prescription record and its authoring lifecycle.
package prescription

import (
	"encoding/json"
	"fmt"
	"time"
)

// Provenance marks who authored a medication entry. The transition is one-way:
// an entry that a clinician has touched never reverts to AiOriginal.
type Provenance int

const (
	AiOriginal Provenance = iota
	ClinicianModified
)

// MedicationEntry is a single line item on a prescription.
type MedicationEntry struct {
	ID           string
	Name         string
	Dosage       string
	Frequency    string
	Duration     string
	Instructions string
	Provenance   Provenance
}

// MarkModified records that a clinician authored or changed this entry.
// There is no reverse transition.
func (e *MedicationEntry) MarkModified() {
	e.Provenance = ClinicianModified
}

// medicationWire is the JSON shape shared with the web client and the remote
// registry: provenance travels as the aiSuggested boolean.
type medicationWire struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
	AISuggested  bool   `json:"aiSuggested"`
}

// MarshalJSON implements json.Marshaler.
func (e MedicationEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(medicationWire{
		ID:           e.ID,
		Name:         e.Name,
		Dosage:       e.Dosage,
		Frequency:    e.Frequency,
		Duration:     e.Duration,
		Instructions: e.Instructions,
		AISuggested:  e.Provenance == AiOriginal,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *MedicationEntry) UnmarshalJSON(data []byte) error {
	var w medicationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.ID = w.ID
	e.Name = w.Name
	e.Dosage = w.Dosage
	e.Frequency = w.Frequency
	e.Duration = w.Duration
	e.Instructions = w.Instructions
	if w.AISuggested {
		e.Provenance = AiOriginal
	} else {
		e.Provenance = ClinicianModified
	}
	return nil
}

// PatientInfo is a flat attribute bag describing the patient.
type PatientInfo struct {
	Name    string `json:"name"`
	Age     string `json:"age,omitempty"`
	Gender  string `json:"gender,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// DoctorInfo is a flat attribute bag describing the prescriber.
type DoctorInfo struct {
	Name          string `json:"name"`
	Qualification string `json:"qualification,omitempty"`
	Registration  string `json:"registration,omitempty"`
	Address       string `json:"address,omitempty"`
	Phone         string `json:"phone,omitempty"`
}

// Draft is the output of the AI suggestion generator before a clinician has
// taken over: patient estimate, preliminary diagnosis and a proposed
// medication list.
type Draft struct {
	PatientInfo PatientInfo       `json:"patientInfo"`
	Diagnosis   string            `json:"diagnosis"`
	Medications []MedicationEntry `json:"medications"`
	Notes       string            `json:"notes"`
	Context     string            `json:"context,omitempty"`
}

// LearningMetrics summarizes how far the clinician diverged from the AI draft.
type LearningMetrics struct {
	ModificationsCount  int `json:"modificationsCount"`
	AcceptedSuggestions int `json:"acceptedSuggestions"`
	TotalSuggestions    int `json:"totalSuggestions"`
	CustomMedicines     int `json:"customMedicines"`
}

// Record is the persisted prescription document. AISuggestions is the list as
// originally proposed and is immutable after creation; FinalPrescription
// carries the clinician's edits. Once saved the record is only ever replaced
// wholesale (re-saving the same id overwrites).
type Record struct {
	ID                  string            `json:"id"`
	Timestamp           time.Time         `json:"timestamp"`
	AISuggestions       []MedicationEntry `json:"originalAISuggestions"`
	FinalPrescription   []MedicationEntry `json:"finalPrescription"`
	DoctorModifications []MedicationEntry `json:"doctorModifications"`
	PatientInfo         PatientInfo       `json:"patientInfo"`
	DoctorInfo          DoctorInfo        `json:"doctorInfo"`
	Symptoms            string            `json:"symptoms"`
	Diagnosis           string            `json:"diagnosis"`
	Notes               string            `json:"notes"`
	LearningData        LearningMetrics   `json:"learningData"`
}

// NewRecordID generates a time-based prescription id. Collisions are possible
// in principle and not managed, matching the ids minted by the web client.
func NewRecordID() string {
	return fmt.Sprintf("RX%d", time.Now().UnixMilli())
}

// Modifications returns the subset of the final prescription the clinician
// authored or changed.
func (r *Record) Modifications() []MedicationEntry {
	var mods []MedicationEntry
	for _, m := range r.FinalPrescription {
		if m.Provenance == ClinicianModified {
			mods = append(mods, m)
		}
	}
	return mods
}

// ComputeLearningMetrics derives the divergence summary from the current
// medication lists.
func (r *Record) ComputeLearningMetrics() LearningMetrics {
	accepted, custom := 0, 0
	for _, m := range r.FinalPrescription {
		if m.Provenance == AiOriginal {
			accepted++
		} else {
			custom++
		}
	}
	return LearningMetrics{
		ModificationsCount:  len(r.DoctorModifications),
		AcceptedSuggestions: accepted,
		TotalSuggestions:    len(r.AISuggestions),
		CustomMedicines:     custom,
	}
}

// Finalize computes the derived fields before persistence. An explicit
// DoctorModifications list (submitted by the editing client) is kept; it is
// derived from provenance flags only when absent.
func (r *Record) Finalize() {
	if r.DoctorModifications == nil {
		r.DoctorModifications = r.Modifications()
	}
	r.LearningData = r.ComputeLearningMetrics()
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
}

// IndexEntry is the truncated projection of a record kept in the summary
// index so listing does not require reading every full record.
type IndexEntry struct {
	ID              string    `json:"id"`
	PatientName     string    `json:"patientName"`
	DoctorName      string    `json:"doctorName"`
	Symptoms        string    `json:"symptoms"`
	Diagnosis       string    `json:"diagnosis"`
	MedicationCount int       `json:"medicationCount"`
	Timestamp       time.Time `json:"timestamp"`
	Modifications   int       `json:"modifications"`
}

// NewIndexEntry projects a record into its index summary. Free-text fields
// are clipped to 100 characters.
func NewIndexEntry(r *Record) IndexEntry {
	patient := r.PatientInfo.Name
	if patient == "" {
		patient = "Unknown"
	}
	doctor := r.DoctorInfo.Name
	if doctor == "" {
		doctor = "Unknown"
	}
	return IndexEntry{
		ID:              r.ID,
		PatientName:     patient,
		DoctorName:      doctor,
		Symptoms:        clip(r.Symptoms, 100),
		Diagnosis:       clip(r.Diagnosis, 100),
		MedicationCount: len(r.FinalPrescription),
		Timestamp:       r.Timestamp,
		Modifications:   r.LearningData.ModificationsCount,
	}
}

// LearningFeedback is the write-only artifact emitted after every save for
// future model improvement. Nothing in this system reads it back.
type LearningFeedback struct {
	PrescriptionID      string            `json:"prescriptionId"`
	Symptoms            string            `json:"symptoms"`
	AISuggestions       []MedicationEntry `json:"aiSuggestions"`
	DoctorModifications []MedicationEntry `json:"doctorModifications"`
	FinalPrescription   []MedicationEntry `json:"finalPrescription"`
	LearningMetrics     LearningMetrics   `json:"learningMetrics"`
	Timestamp           time.Time         `json:"timestamp"`
}

// NewLearningFeedback builds the feedback payload for a record.
func NewLearningFeedback(r *Record) LearningFeedback {
	return LearningFeedback{
		PrescriptionID:      r.ID,
		Symptoms:            r.Symptoms,
		AISuggestions:       r.AISuggestions,
		DoctorModifications: r.DoctorModifications,
		FinalPrescription:   r.FinalPrescription,
		LearningMetrics:     r.LearningData,
		Timestamp:           r.Timestamp,
	}
}

// clip truncates to n characters, never mid-rune.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
