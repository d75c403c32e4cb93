package models

import "time"

// ConsentRecord tracks a patient's messaging consent per channel. Granting
// again after a revocation replaces the record, so a record is active exactly
// when it has a grant and no revocation.
type ConsentRecord struct {
	PatientID string     `json:"patient_id"`
	Channel   string     `json:"channel"`
	GrantedAt time.Time  `json:"granted_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// IsActive reports whether the consent currently permits messaging.
func (c ConsentRecord) IsActive() bool {
	return !c.GrantedAt.IsZero() && c.RevokedAt == nil
}
