// Package agent implements the proposal-generation agents: the revenue agent
// maps risk to an action sequence, the compliance agent validates the
// sequence before signing.
package agent

import (
	"github.com/julian-najas/cacp/pkg/config"
	"github.com/julian-najas/cacp/pkg/models"
)

// RevenueAgent generates action sequences optimized for confirmation rates.
type RevenueAgent struct{}

// NewRevenueAgent creates a revenue agent.
func NewRevenueAgent() *RevenueAgent {
	return &RevenueAgent{}
}

// GenerateSequence maps a risk level to an ordered sequence of messaging
// actions.
//
//	low:    1 reminder (24h before)
//	medium: reminder (48h) + confirmation request (24h)
//	high:   reminder (48h) + confirmation (24h) + reschedule offer (2h)
//
// The channel comes from the clinic profile's preferred channel.
func (a *RevenueAgent) GenerateSequence(riskLevel string, profile config.ClinicProfile) models.ActionSequence {
	channel := profile.Messaging.PreferredChannel
	if channel == "" {
		channel = models.ChannelWhatsapp
	}

	switch riskLevel {
	case models.RiskLevelLow:
		return models.ActionSequence{
			Actions: []models.Action{
				{
					ActionType:  models.ActionTypeSendReminder,
					Channel:     channel,
					Template:    "confirm_reminder_v2",
					HoursBefore: 24,
				},
			},
			ExpectedLift: 0.05,
		}
	case models.RiskLevelMedium:
		return models.ActionSequence{
			Actions: []models.Action{
				{
					ActionType:  models.ActionTypeSendReminder,
					Channel:     channel,
					Template:    "confirm_reminder_v2",
					HoursBefore: 48,
				},
				{
					ActionType:  models.ActionTypeSendConfirmation,
					Channel:     channel,
					Template:    "urgency_short",
					HoursBefore: 24,
				},
			},
			ExpectedLift: 0.15,
		}
	default: // high
		return models.ActionSequence{
			Actions: []models.Action{
				{
					ActionType:  models.ActionTypeSendReminder,
					Channel:     channel,
					Template:    "confirm_reminder_v2",
					HoursBefore: 48,
				},
				{
					ActionType:  models.ActionTypeSendConfirmation,
					Channel:     channel,
					Template:    "urgency_short",
					HoursBefore: 24,
				},
				{
					ActionType:  models.ActionTypeReschedule,
					Channel:     channel,
					Template:    "reschedule_offer",
					HoursBefore: 2,
				},
			},
			ExpectedLift: 0.25,
		}
	}
}
