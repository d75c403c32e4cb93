package demo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ROIProjection turns a simulated cohort into the numbers a clinic owner
// asks about: what no-shows cost today, what the SMS campaign recovers, and
// what is left after paying for the messages.
type ROIProjection struct {
	TotalAppointments  int
	BaselineNoShowRate float64
	AvgTicketEUR       float64

	BaselineNoShows int
	BaselineLossEUR float64

	NoShowsAfterSMS     int
	NoShowsPrevented    int
	RecoveredRevenueEUR float64

	SMSCostPerMessageEUR float64
	SMSSent              int
	TotalSMSCostEUR      float64

	NetGainEUR          float64
	MonthlyROIPercent   float64
	AnnualProjectionEUR float64
}

// ROIReport is the JSON shape served by the demo API.
type ROIReport struct {
	Summary struct {
		TotalAppointments  int     `json:"total_appointments"`
		BaselineNoShowRate string  `json:"baseline_noshow_rate"`
		AvgTicketEUR       float64 `json:"avg_ticket_eur"`
	} `json:"summary"`
	Baseline struct {
		NoShows        int     `json:"noshows"`
		MonthlyLossEUR float64 `json:"monthly_loss_eur"`
	} `json:"baseline"`
	WithSMS struct {
		NoShowsAfter        int     `json:"noshows_after"`
		NoShowsPrevented    int     `json:"noshows_prevented"`
		RecoveredRevenueEUR float64 `json:"recovered_revenue_eur"`
	} `json:"with_sms"`
	Cost struct {
		SMSCostPerMessageEUR float64 `json:"sms_cost_per_message_eur"`
		SMSSent              int     `json:"sms_sent"`
		TotalSMSCostEUR      float64 `json:"total_sms_cost_eur"`
	} `json:"cost"`
	ROI struct {
		NetGainMonthlyEUR float64 `json:"net_gain_monthly_eur"`
		NetGainAnnualEUR  float64 `json:"net_gain_annual_eur"`
		MonthlyROIPercent float64 `json:"monthly_roi_percent"`
	} `json:"roi"`
}

// Report builds the rounded JSON view.
func (p *ROIProjection) Report() ROIReport {
	var report ROIReport
	report.Summary.TotalAppointments = p.TotalAppointments
	report.Summary.BaselineNoShowRate = fmt.Sprintf("%.1f%%", p.BaselineNoShowRate*100)
	report.Summary.AvgTicketEUR = round2(p.AvgTicketEUR)
	report.Baseline.NoShows = p.BaselineNoShows
	report.Baseline.MonthlyLossEUR = round2(p.BaselineLossEUR)
	report.WithSMS.NoShowsAfter = p.NoShowsAfterSMS
	report.WithSMS.NoShowsPrevented = p.NoShowsPrevented
	report.WithSMS.RecoveredRevenueEUR = round2(p.RecoveredRevenueEUR)
	report.Cost.SMSCostPerMessageEUR = p.SMSCostPerMessageEUR
	report.Cost.SMSSent = p.SMSSent
	report.Cost.TotalSMSCostEUR = round2(p.TotalSMSCostEUR)
	report.ROI.NetGainMonthlyEUR = round2(p.NetGainEUR)
	report.ROI.NetGainAnnualEUR = round2(p.AnnualProjectionEUR)
	report.ROI.MonthlyROIPercent = math.Round(p.MonthlyROIPercent*10) / 10
	return report
}

// ExecutiveSummary renders the one-paragraph pitch, in Spanish, with the
// rounded euro amounts a sales conversation needs.
func (p *ROIProjection) ExecutiveSummary() string {
	return fmt.Sprintf(
		"Con %d citas mensuales y una tasa de no-show del %.0f%%, su clínica pierde "+
			"aproximadamente %s€ al mes. Nuestro sistema de confirmación por SMS previene "+
			"%d inasistencias, recuperando %s€ mensuales. Descontando el coste de SMS (%s€), "+
			"el beneficio neto es de %s€/mes (%s€/año).",
		p.TotalAppointments,
		p.BaselineNoShowRate*100,
		formatThousands(p.BaselineLossEUR),
		p.NoShowsPrevented,
		formatThousands(p.RecoveredRevenueEUR),
		formatThousands(p.TotalSMSCostEUR),
		formatThousands(p.NetGainEUR),
		formatThousands(p.AnnualProjectionEUR),
	)
}

// ProjectROI derives the financial projection from a cohort. The average
// ticket comes from the simulated appointments themselves, not from an
// assumed input.
func ProjectROI(sim *SimulationResult, smsCostPerMessage float64) *ROIProjection {
	total := sim.Total
	if total < 1 {
		total = 1
	}

	var totalTicket float64
	for _, appointment := range sim.Appointments {
		totalTicket += appointment.TicketEUR
	}
	avgTicket := totalTicket / float64(total)

	baselineLoss := float64(sim.NoShowBaseline) * avgTicket
	recovered := float64(sim.NoShowsPrevented) * avgTicket
	smsCostTotal := float64(sim.SMSSent) * smsCostPerMessage
	net := recovered - smsCostTotal

	costBasis := smsCostTotal
	if costBasis < 0.01 {
		costBasis = 0.01
	}

	return &ROIProjection{
		TotalAppointments:    sim.Total,
		BaselineNoShowRate:   float64(sim.NoShowBaseline) / float64(total),
		AvgTicketEUR:         avgTicket,
		BaselineNoShows:      sim.NoShowBaseline,
		BaselineLossEUR:      baselineLoss,
		NoShowsAfterSMS:      sim.NoShowAfterSMS,
		NoShowsPrevented:     sim.NoShowsPrevented,
		RecoveredRevenueEUR:  recovered,
		SMSCostPerMessageEUR: smsCostPerMessage,
		SMSSent:              sim.SMSSent,
		TotalSMSCostEUR:      smsCostTotal,
		NetGainEUR:           net,
		MonthlyROIPercent:    net / costBasis * 100,
		AnnualProjectionEUR:  net * 12,
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// formatThousands renders a euro amount with comma grouping and no decimals.
func formatThousands(value float64) string {
	n := int64(math.Round(value))
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	if len(digits) <= 3 {
		return sign + digits
	}

	var grouped strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		grouped.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if grouped.Len() > 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteString(digits[i : i+3])
	}
	return sign + grouped.String()
}
