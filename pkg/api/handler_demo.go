package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/julian-najas/cacp/pkg/demo"
)

// demoParams are the sandbox knobs for the ROI simulation. The ticket value
// is derived from the cohort's appointment mix rather than taken as input,
// so a ticket query parameter is accepted and ignored.
type demoParams struct {
	citas     int
	noShow    float64
	reduction float64
	smsCost   float64
	seed      int64
}

func (p *demoParams) cohort() demo.CohortParams {
	return demo.CohortParams{
		Appointments:       p.citas,
		BaselineNoShowRate: p.noShow,
		SMSReductionRate:   p.reduction,
		Seed:               p.seed,
	}
}

func parseDemoParams(c *gin.Context) (*demoParams, error) {
	p := &demoParams{citas: 800, noShow: 0.12, reduction: 0.35, smsCost: 0.07, seed: 42}

	if raw := c.Query("citas"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 10 || v > 10000 {
			return nil, fmt.Errorf("citas must be an integer between 10 and 10000")
		}
		p.citas = v
	}
	if raw := c.Query("no_show"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0.01 || v > 0.50 {
			return nil, fmt.Errorf("no_show must be between 0.01 and 0.50")
		}
		p.noShow = v
	}
	if raw := c.Query("reduction"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0.05 || v > 0.80 {
			return nil, fmt.Errorf("reduction must be between 0.05 and 0.80")
		}
		p.reduction = v
	}
	if raw := c.Query("sms_cost"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0.01 || v > 1.0 {
			return nil, fmt.Errorf("sms_cost must be between 0.01 and 1.0")
		}
		p.smsCost = v
	}
	if raw := c.Query("seed"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("seed must be an integer")
		}
		p.seed = v
	}
	return p, nil
}

// demoROIHandler handles GET /demo/dental-roi: a seeded what-if projection
// for sales conversations, no live data involved.
func (s *Server) demoROIHandler(c *gin.Context) {
	params, err := parseDemoParams(c)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, CodeInvalidRequest, err.Error())
		return
	}

	sim := demo.GenerateCohort(params.cohort())
	roi := demo.ProjectROI(sim, params.smsCost)

	c.JSON(http.StatusOK, &ROIResponse{
		ROIReport:        roi.Report(),
		ExecutiveSummary: roi.ExecutiveSummary(),
		Simulation:       sim.Summary(),
	})
}

// demoROICSVHandler handles GET /demo/dental-roi/csv: the per-appointment
// cohort as a spreadsheet download.
func (s *Server) demoROICSVHandler(c *gin.Context) {
	params, err := parseDemoParams(c)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, CodeInvalidRequest, err.Error())
		return
	}

	sim := demo.GenerateCohort(params.cohort())

	filename := fmt.Sprintf("clinic_simulation_%dcitas.csv", params.citas)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	record := []string{"appointment_id", "patient_id", "type", "scheduled_at", "ticket_eur",
		"noshow_baseline", "sms_sent", "sms_confirmed", "noshow_after_sms"}
	if err := w.Write(record); err != nil {
		return
	}
	for _, appt := range sim.Appointments {
		record = record[:0]
		record = append(record,
			appt.AppointmentID,
			appt.PatientID,
			appt.Type,
			appt.ScheduledAt.Format(time.RFC3339),
			strconv.FormatFloat(appt.TicketEUR, 'f', 2, 64),
			strconv.FormatBool(appt.NoShowBaseline),
			strconv.FormatBool(appt.SMSSent),
			strconv.FormatBool(appt.SMSConfirmed),
			strconv.FormatBool(appt.NoShowAfterSMS),
		)
		if err := w.Write(record); err != nil {
			return
		}
	}
	w.Flush()
}
