// Package intake turns front-desk voice transcripts into appointment form
// fields and books the result.
package intake

import "time"

// AppointmentForm is the front-desk booking form. Pointer fields are unset
// until the operator or the reconciler fills them.
type AppointmentForm struct {
	PatientName     string     `json:"patientName"`
	PatientAge      *int       `json:"patientAge,omitempty"`
	Symptoms        string     `json:"symptoms"`
	DoctorID        string     `json:"doctorId,omitempty"`
	AppointmentDate *time.Time `json:"appointmentDate,omitempty"`
}

// ClearVoiceFields resets the fields a capture is expected to fill. Doctor
// and date are kept so a manual selection survives a new capture.
func (f *AppointmentForm) ClearVoiceFields() {
	f.PatientName = ""
	f.PatientAge = nil
	f.Symptoms = ""
}

func (f AppointmentForm) clone() AppointmentForm {
	out := f
	if f.PatientAge != nil {
		age := *f.PatientAge
		out.PatientAge = &age
	}
	if f.AppointmentDate != nil {
		at := *f.AppointmentDate
		out.AppointmentDate = &at
	}
	return out
}
