package prescription

import (
	"github.com/google/uuid"
)

// MedicationPatch carries replacement field values for an edit. Fields are
// replaced wholesale, mirroring the editing form which always submits every
// field.
type MedicationPatch struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

// EditMedication replaces the fields of the entry with the given id and marks
// it clinician-modified. Unknown ids are a silent no-op. The final list is
// reassigned so observers comparing slice identity see the change.
func (r *Record) EditMedication(id string, patch MedicationPatch) {
	next := make([]MedicationEntry, len(r.FinalPrescription))
	copy(next, r.FinalPrescription)
	for i := range next {
		if next[i].ID != id {
			continue
		}
		next[i].Name = patch.Name
		next[i].Dosage = patch.Dosage
		next[i].Frequency = patch.Frequency
		next[i].Duration = patch.Duration
		next[i].Instructions = patch.Instructions
		next[i].MarkModified()
		break
	}
	r.FinalPrescription = next
}

// AddMedication appends a new clinician-authored entry with placeholder
// defaults and returns it. No uniqueness or plausibility checks are applied.
func (r *Record) AddMedication() MedicationEntry {
	entry := MedicationEntry{
		ID:           "med_" + uuid.NewString(),
		Name:         "New Medicine",
		Dosage:       "100mg",
		Frequency:    "Once daily",
		Duration:     "7 days",
		Instructions: "Take as directed",
		Provenance:   ClinicianModified,
	}
	next := make([]MedicationEntry, 0, len(r.FinalPrescription)+1)
	next = append(next, r.FinalPrescription...)
	next = append(next, entry)
	r.FinalPrescription = next
	return entry
}

// RemoveMedication removes the first entry with the given id; no-op if absent.
func (r *Record) RemoveMedication(id string) {
	next := make([]MedicationEntry, 0, len(r.FinalPrescription))
	removed := false
	for _, m := range r.FinalPrescription {
		if !removed && m.ID == id {
			removed = true
			continue
		}
		next = append(next, m)
	}
	r.FinalPrescription = next
}
