package policy

// BuildInput constructs the OPA input document for policy evaluation.
func BuildInput(action, role, mode, patientID, clinicID string, extra map[string]any) map[string]any {
	input := map[string]any{
		"action":     action,
		"role":       role,
		"mode":       mode,
		"patient_id": patientID,
		"clinic_id":  clinicID,
	}
	for k, v := range extra {
		input[k] = v
	}
	return input
}
