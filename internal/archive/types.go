package archive

import (
	"time"

	"github.com/wolfman30/medisync/internal/prescription"
)

// PrescriptionRecord is the archived copy of one committed prescription.
// Fragment is the exact text appended to the patient record.
type PrescriptionRecord struct {
	PatientID     string                         `json:"patient_id"`
	PromotedFrom  string                         `json:"promoted_from,omitempty"`
	DoctorID      string                         `json:"doctor_id,omitempty"`
	DoctorName    string                         `json:"doctor_name,omitempty"`
	FormatVersion int                            `json:"format_version"`
	Fragment      string                         `json:"fragment"`
	Suggestion    prescription.Suggestion        `json:"suggestion"`
	Context       prescription.GenerationContext `json:"context"`
	CommittedAt   time.Time                      `json:"committed_at"`
}

// ManifestEntry is one line in the monthly JSONL manifest.
type ManifestEntry struct {
	PatientID       string `json:"patient_id"`
	S3Key           string `json:"s3_key"`
	DoctorID        string `json:"doctor_id,omitempty"`
	MedicationCount int    `json:"medication_count"`
	Promoted        bool   `json:"promoted"`
	CommittedAt     string `json:"committed_at"`
}
