package config

import "sort"

// MessagingProfile holds per-clinic messaging policy.
type MessagingProfile struct {
	// PreferredChannel is the default outbound channel (sms, whatsapp,
	// email).
	PreferredChannel string `yaml:"preferred_channel" json:"preferred_channel"`

	// MaxMessagesPerPatientPerDay caps the actions a single proposal may
	// carry for one patient.
	MaxMessagesPerPatientPerDay int `yaml:"max_messages_per_patient_per_day" json:"max_messages_per_patient_per_day"`
}

// ClinicProfile is the per-clinic configuration block.
type ClinicProfile struct {
	Name      string           `yaml:"name" json:"name"`
	Messaging MessagingProfile `yaml:"messaging" json:"messaging"`
}

// DefaultClinicProfile returns the profile applied to clinics without an
// explicit entry.
func DefaultClinicProfile() ClinicProfile {
	return ClinicProfile{
		Messaging: MessagingProfile{
			PreferredChannel:            "whatsapp",
			MaxMessagesPerPatientPerDay: 3,
		},
	}
}

// ClinicRegistry provides read access to clinic profiles.
type ClinicRegistry struct {
	profiles map[string]ClinicProfile
}

// NewClinicRegistry creates a registry from loaded profiles.
func NewClinicRegistry(profiles map[string]ClinicProfile) *ClinicRegistry {
	if profiles == nil {
		profiles = make(map[string]ClinicProfile)
	}
	return &ClinicRegistry{profiles: profiles}
}

// Get returns the profile for a clinic ID. Unknown clinics get the default
// profile, so lookups never fail.
func (r *ClinicRegistry) Get(clinicID string) ClinicProfile {
	if p, ok := r.profiles[clinicID]; ok {
		return p
	}
	return DefaultClinicProfile()
}

// Has reports whether an explicit profile exists for the clinic.
func (r *ClinicRegistry) Has(clinicID string) bool {
	_, ok := r.profiles[clinicID]
	return ok
}

// ClinicIDs returns a sorted list of configured clinic IDs.
func (r *ClinicRegistry) ClinicIDs() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of configured clinics.
func (r *ClinicRegistry) Len() int {
	return len(r.profiles)
}
