package services

import (
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioSMSService implements SMSService using Twilio API
type TwilioSMSService struct {
	client      *twilio.RestClient
	fromNumber  string
	logger      *log.Logger
	breaker     *CircuitBreakerService
	rateLimiter RateLimiter
}

// RateLimiter interface for SMS rate limiting
type RateLimiter interface {
	Allow(phoneNumber string) error
}

// NewTwilioSMSService creates a new Twilio SMS service. Sends go
// through the shared circuit breaker under the "twilio" name.
func NewTwilioSMSService(accountSID, authToken, fromNumber string, breaker *CircuitBreakerService, rateLimiter RateLimiter) *TwilioSMSService {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSMSService{
		client:      client,
		fromNumber:  fromNumber,
		logger:      log.Default(),
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}
}

// SendPickReminder sends a missing-pick reminder via Twilio SMS
func (s *TwilioSMSService) SendPickReminder(phoneNumber string, week, missingGames int, firstKickoff time.Time) error {
	return s.SendMessage(phoneNumber, ReminderMessage(week, missingGames, firstKickoff))
}

// SendMessage sends an SMS message via Twilio
func (s *TwilioSMSService) SendMessage(phoneNumber, message string) error {
	// Validate phone number format (E.164)
	normalizedNumber, err := s.normalizePhoneNumber(phoneNumber)
	if err != nil {
		return fmt.Errorf("invalid phone number format: %w", err)
	}

	// Check rate limiting
	if s.rateLimiter != nil {
		if err := s.rateLimiter.Allow(normalizedNumber); err != nil {
			s.logger.Printf("⚠️ Twilio SMS: Rate limited for %s", normalizedNumber)
			return fmt.Errorf("rate limit exceeded: %w", err)
		}
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(normalizedNumber)
	params.SetFrom(s.fromNumber)
	params.SetBody(message)

	s.logger.Printf("📨 Twilio SMS: Sending to %s", normalizedNumber)

	resp, err := s.breaker.Execute("twilio", func() (interface{}, error) {
		return s.client.Api.CreateMessage(params)
	})
	if err != nil {
		s.logger.Printf("❌ Twilio SMS: API error - %v", err)
		return s.mapTwilioError(err)
	}

	if msg, ok := resp.(*twilioApi.ApiV2010Message); ok && msg.Sid != nil {
		s.logger.Printf("✅ Twilio SMS: Message sent successfully (SID: %s)", *msg.Sid)
	} else {
		s.logger.Printf("✅ Twilio SMS: Message sent successfully")
	}

	return nil
}

// normalizePhoneNumber ensures phone number is in E.164 format
func (s *TwilioSMSService) normalizePhoneNumber(phone string) (string, error) {
	// Remove all non-digit characters except +
	re := regexp.MustCompile(`[^\d+]`)
	cleaned := re.ReplaceAllString(phone, "")

	// Add + if not present
	if !regexp.MustCompile(`^\+`).MatchString(cleaned) {
		// Assume US number if no country code
		if regexp.MustCompile(`^\d{10}$`).MatchString(cleaned) {
			cleaned = "+1" + cleaned
		} else {
			return "", fmt.Errorf("invalid phone number format")
		}
	}

	// Validate E.164 format
	if !regexp.MustCompile(`^\+[1-9]\d{1,14}$`).MatchString(cleaned) {
		return "", fmt.Errorf("invalid phone number format")
	}

	return cleaned, nil
}

// mapTwilioError maps Twilio-specific errors to user-friendly messages
func (s *TwilioSMSService) mapTwilioError(err error) error {
	errStr := err.Error()

	// Common Twilio error patterns
	switch {
	case regexp.MustCompile(`(?i)invalid.*phone.*number`).MatchString(errStr):
		return fmt.Errorf("invalid phone number")
	case regexp.MustCompile(`(?i)unverified.*number`).MatchString(errStr):
		return fmt.Errorf("phone number not verified for trial account")
	case regexp.MustCompile(`(?i)insufficient.*funds`).MatchString(errStr):
		return fmt.Errorf("SMS service temporarily unavailable")
	case regexp.MustCompile(`(?i)rate.*limit`).MatchString(errStr):
		return fmt.Errorf("too many SMS requests, please try again later")
	case regexp.MustCompile(`(?i)blocked.*number`).MatchString(errStr):
		return fmt.Errorf("unable to send SMS to this number")
	default:
		return fmt.Errorf("failed to send SMS: %w", err)
	}
}

// GetStats returns circuit breaker and service statistics
func (s *TwilioSMSService) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"circuit_breaker_state": s.breaker.GetState("twilio").String(),
		"service_type":          "twilio",
	}
}
