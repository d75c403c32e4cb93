// Package messaging provides the delivery adapters and message templates
// used by queue workers to reach patients.
package messaging

import (
	"fmt"
	"time"
)

// Template IDs referenced by action plans.
const (
	TemplateConfirmReminder = "confirm_reminder_v2"
	TemplateUrgencyShort    = "urgency_short"
	TemplateRescheduleOffer = "reschedule_offer"
)

// RenderTemplate renders the patient-facing SMS body for a template ID.
// Unknown IDs fall back to a generic reminder so a plan with a stale
// template still produces a usable message.
func RenderTemplate(templateID, appointmentDate string) string {
	date := formatAppointmentDate(appointmentDate)

	switch templateID {
	case TemplateConfirmReminder:
		return fmt.Sprintf("Hola, le recordamos su cita del %s. Responda SI para confirmar o llame a la clinica si necesita cambiarla.", date)
	case TemplateUrgencyShort:
		return fmt.Sprintf("Su cita del %s sigue sin confirmar. Responda SI para confirmarla.", date)
	case TemplateRescheduleOffer:
		return fmt.Sprintf("No podemos mantener su cita del %s sin confirmacion. Responda CAMBIAR si prefiere otra fecha.", date)
	default:
		return fmt.Sprintf("Le recordamos su cita del %s.", date)
	}
}

// formatAppointmentDate converts an RFC 3339 timestamp into the short form
// patients see in messages. Unparseable input passes through unchanged.
func formatAppointmentDate(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Format("02/01/2006 a las 15:04")
}
