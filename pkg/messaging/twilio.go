package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julian-najas/cacp/pkg/models"
)

const twilioAPIVersion = "2010-04-01"

// maxErrorMessageLen bounds the provider error text recorded on events.
const maxErrorMessageLen = 200

// TwilioAdapter sends SMS through the Twilio REST API. It is only wired in
// when credentials are configured; otherwise the worker uses NoopAdapter.
type TwilioAdapter struct {
	baseURL    string
	httpClient *http.Client
	accountSID string
	authToken  string
	fromNumber string
	logger     *slog.Logger
}

// NewTwilioAdapter creates an SMS adapter for the given Twilio account.
func NewTwilioAdapter(accountSID, authToken, fromNumber string) *TwilioAdapter {
	return &TwilioAdapter{
		baseURL:    "https://api.twilio.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		logger:     slog.With("adapter", "twilio"),
	}
}

// twilioMessageResponse captures the fields we use from Twilio's message
// resource and error bodies.
type twilioMessageResponse struct {
	SID     string `json:"sid"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Execute sends the envelope's message as an SMS.
//
// Missing parameters and provider rejections (HTTP 4xx) return a structured
// failure with a nil error: retrying cannot fix a bad request. Transport
// failures and provider 5xx responses return an error so the worker retries.
func (a *TwilioAdapter) Execute(ctx context.Context, envelope models.Envelope) (map[string]any, error) {
	actionType := envelope.ActionType()
	toNumber := envelope.String("to_number")
	body := envelope.String("message")

	if toNumber == "" || body == "" {
		return a.failure(actionType, "MISSING_PARAMS", "to_number and message are required"), nil
	}

	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", a.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/%s/Accounts/%s/Messages.json", a.baseURL, twilioAPIVersion, a.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create Twilio request: %w", err)
	}
	req.SetBasicAuth(a.accountSID, a.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	var message twilioMessageResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&message); decodeErr != nil && resp.StatusCode < 300 {
		return nil, fmt.Errorf("failed to decode Twilio response: %w", decodeErr)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		a.logger.Info("SMS sent",
			"provider_message_id", message.SID,
			"to", maskNumber(toNumber),
			"action_type", actionType)
		result := a.failure(actionType, "", "")
		result["status"] = "sent"
		result["provider_message_id"] = message.SID
		return result, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		errorMessage := message.Message
		if errorMessage == "" {
			errorMessage = fmt.Sprintf("Twilio rejected the request with HTTP %d", resp.StatusCode)
		}
		if len(errorMessage) > maxErrorMessageLen {
			errorMessage = errorMessage[:maxErrorMessageLen]
		}
		a.logger.Error("Twilio rejected SMS",
			"twilio_code", message.Code,
			"http_status", resp.StatusCode,
			"to", maskNumber(toNumber))
		failure := a.failure(actionType, "TWILIO_ERROR", errorMessage)
		if message.Code != 0 {
			failure["provider_error_code"] = strconv.Itoa(message.Code)
		}
		return failure, nil

	default:
		return nil, fmt.Errorf("Twilio returned HTTP %d", resp.StatusCode)
	}
}

// failure builds the base result map. An empty errorCode yields the success
// skeleton for the caller to finish.
func (a *TwilioAdapter) failure(actionType, errorCode, errorMessage string) map[string]any {
	result := map[string]any{
		"adapter":     "twilio",
		"action_type": actionType,
		"provider":    "twilio",
		"status":      "failed",
	}
	if errorCode != "" {
		result["error_code"] = errorCode
		result["error_message"] = errorMessage
	}
	return result
}

// maskNumber keeps the dialing prefix visible and hides the subscriber part.
func maskNumber(number string) string {
	if len(number) <= 6 {
		return "***"
	}
	return number[:6] + "***"
}
