package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// grantConsentHandler handles POST /consent/grant.
func (s *Server) grantConsentHandler(c *gin.Context) {
	var req ConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusUnprocessableEntity, CodeInvalidRequest,
			"Request validation failed", bindingDetails(err)...)
		return
	}

	if err := s.consents.Grant(c.Request.Context(), req.PatientID, req.Channels); err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, &ConsentResponse{
		PatientID: req.PatientID,
		Channels:  req.Channels,
		Status:    "granted",
	})
}

// revokeConsentHandler handles POST /consent/revoke. Takes effect on the
// next dequeued action for the patient.
func (s *Server) revokeConsentHandler(c *gin.Context) {
	var req ConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusUnprocessableEntity, CodeInvalidRequest,
			"Request validation failed", bindingDetails(err)...)
		return
	}

	if err := s.consents.Revoke(c.Request.Context(), req.PatientID, req.Channels); err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, &ConsentResponse{
		PatientID: req.PatientID,
		Channels:  req.Channels,
		Status:    "revoked",
	})
}
