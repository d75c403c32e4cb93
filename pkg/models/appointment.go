// Package models defines the domain types shared across the control plane:
// appointments, risk results, actions, execution plans, audit events, and
// consent records.
package models

// Appointment is the inbound unit of work: a scheduled clinical visit that is
// a candidate for no-show intervention. Only the identifiers and scheduled_at
// are required; the remaining fields default to empty/false/zero.
type Appointment struct {
	AppointmentID   string `json:"appointment_id"`
	PatientID       string `json:"patient_id"`
	ClinicID        string `json:"clinic_id"`
	ScheduledAt     string `json:"scheduled_at"` // ISO-8601 instant
	TreatmentType   string `json:"treatment_type,omitempty"`
	IsFirstVisit    bool   `json:"is_first_visit,omitempty"`
	PreviousNoShows int    `json:"previous_no_shows,omitempty"`
	PatientPhone    string `json:"patient_phone,omitempty"`
	PatientWhatsapp bool   `json:"patient_whatsapp,omitempty"`
	ConsentGiven    bool   `json:"consent_given,omitempty"`
}

// HasContact reports whether the patient is reachable on any channel.
func (a Appointment) HasContact() bool {
	return a.PatientPhone != "" || a.PatientWhatsapp
}
