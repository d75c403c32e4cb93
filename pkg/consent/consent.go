// Package consent tracks per-patient, per-channel messaging consent. The
// worker refuses to send on any channel without an active grant, so every
// outbound path checks here first.
package consent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/julian-najas/cacp/pkg/models"
)

// HashPII one-way hashes contact details (phone, email) for logs and events.
// Raw values never leave the ingest path.
func HashPII(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}

// Store is the minimal contract for consent lookups and mutations.
type Store interface {
	// HasConsent reports whether the patient holds an active grant for the channel.
	HasConsent(ctx context.Context, patientID, channel string) (bool, error)
	// Grant records a consent grant, replacing any prior record.
	Grant(ctx context.Context, patientID, channel string) error
	// Revoke marks an active grant as revoked. Revoking absent consent is a no-op.
	Revoke(ctx context.Context, patientID, channel string) error
}

// BootstrapFromAppointment seeds consent from the appointment payload. A
// payload with consent_given and a phone grants sms; a whatsapp flag grants
// whatsapp. Real consent lifecycle runs through the /consent endpoints.
func BootstrapFromAppointment(ctx context.Context, store Store, appt models.Appointment) error {
	if store == nil || appt.PatientID == "" || !appt.ConsentGiven {
		return nil
	}

	if appt.PatientPhone != "" {
		if err := store.Grant(ctx, appt.PatientID, models.ChannelSMS); err != nil {
			return fmt.Errorf("grant sms consent: %w", err)
		}
	}
	if appt.PatientWhatsapp {
		if err := store.Grant(ctx, appt.PatientID, models.ChannelWhatsapp); err != nil {
			return fmt.Errorf("grant whatsapp consent: %w", err)
		}
	}
	return nil
}

func consentKey(patientID, channel string) string {
	return patientID + ":" + channel
}
