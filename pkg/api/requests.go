package api

import "github.com/julian-najas/cacp/pkg/models"

// IngestRequest is the appointment payload accepted by POST /ingest.
type IngestRequest struct {
	AppointmentID   string `json:"appointment_id" binding:"required"`
	PatientID       string `json:"patient_id" binding:"required"`
	ClinicID        string `json:"clinic_id" binding:"required"`
	ScheduledAt     string `json:"scheduled_at" binding:"required"`
	TreatmentType   string `json:"treatment_type"`
	IsFirstVisit    bool   `json:"is_first_visit"`
	PreviousNoShows int    `json:"previous_no_shows"`
	PatientPhone    string `json:"patient_phone"`
	PatientWhatsapp bool   `json:"patient_whatsapp"`
	ConsentGiven    bool   `json:"consent_given"`
}

func (r *IngestRequest) appointment() models.Appointment {
	return models.Appointment{
		AppointmentID:   r.AppointmentID,
		PatientID:       r.PatientID,
		ClinicID:        r.ClinicID,
		ScheduledAt:     r.ScheduledAt,
		TreatmentType:   r.TreatmentType,
		IsFirstVisit:    r.IsFirstVisit,
		PreviousNoShows: r.PreviousNoShows,
		PatientPhone:    r.PatientPhone,
		PatientWhatsapp: r.PatientWhatsapp,
		ConsentGiven:    r.ConsentGiven,
	}
}

// auditPayload is what the appointment_ingested event stores. Contact
// details stay out; the orchestrator's appointment_received record carries
// the full payload for the execution path.
func (r *IngestRequest) auditPayload() map[string]any {
	return map[string]any{
		"appointment_id":    r.AppointmentID,
		"patient_id":        r.PatientID,
		"clinic_id":         r.ClinicID,
		"scheduled_at":      r.ScheduledAt,
		"treatment_type":    r.TreatmentType,
		"is_first_visit":    r.IsFirstVisit,
		"previous_no_shows": r.PreviousNoShows,
	}
}

// ConsentRequest covers POST /consent/grant and POST /consent/revoke.
type ConsentRequest struct {
	PatientID string   `json:"patient_id" binding:"required"`
	Channels  []string `json:"channels" binding:"required"`
}

// ReplayRequest bounds one DLQ replay run. max_items 0 uses the default
// batch size.
type ReplayRequest struct {
	MaxItems int `json:"max_items"`
}
