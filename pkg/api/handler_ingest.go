package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/julian-najas/cacp/pkg/models"
)

// ingestHandler handles POST /ingest: score the appointment, build and sign
// the proposal, open the review PR. Always 202 on a valid payload; policy
// rejections come back as compliant=false, not as an HTTP error.
func (s *Server) ingestHandler(c *gin.Context) {
	// 1. Bind and validate the appointment payload
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusUnprocessableEntity, CodeInvalidRequest,
			"Request validation failed", bindingDetails(err)...)
		return
	}
	appt := req.appointment()

	// 2. Record the arrival and seed consent from the payload flags. Neither
	// failure blocks the pipeline.
	if err := s.events.Record(c.Request.Context(), appt.AppointmentID,
		models.EventAppointmentIngested, req.auditPayload()); err != nil {
		s.logger.Warn("Failed to record ingestion", "appointment_id", appt.AppointmentID, "error", err)
	}
	if err := s.consents.Bootstrap(c.Request.Context(), appt); err != nil {
		s.logger.Warn("Failed to bootstrap consent", "patient_id", appt.PatientID, "error", err)
	}

	// 3. Run the proposal pipeline
	result := s.orch.ProcessAppointment(c.Request.Context(), appt)

	if s.metrics != nil {
		s.metrics.IngestTotal.Inc()
	}

	// 4. Respond 202. The proposal itself travels by PR, not by this response.
	c.JSON(http.StatusAccepted, &IngestResponse{
		ProposalID:   result.ProposalID,
		RiskLevel:    result.RiskLevel,
		RiskScore:    result.RiskScore,
		ActionsCount: len(result.Actions),
		PRURL:        result.PRURL,
		Compliant:    result.Compliant,
		Violations:   result.Violations,
		Message:      ingestMessage(result.Compliant, result.PRURL),
	})
}

func ingestMessage(compliant bool, prURL string) string {
	switch {
	case !compliant:
		return "Proposal rejected by compliance"
	case prURL != "":
		return "Proposal submitted for review"
	default:
		return "Proposal created"
	}
}
