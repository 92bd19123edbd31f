package services

import (
	"fmt"
	"log"
	"time"
)

// SMSService interface for sending SMS messages
type SMSService interface {
	SendPickReminder(phoneNumber string, week, missingGames int, firstKickoff time.Time) error
	SendMessage(phoneNumber, message string) error
}

// ReminderMessage builds the body of a missing-pick reminder. The
// kickoff should already be converted to the league's timezone so the
// formatted time reads correctly for the recipient.
func ReminderMessage(week, missingGames int, firstKickoff time.Time) string {
	noun := "games"
	if missingGames == 1 {
		noun = "game"
	}
	return fmt.Sprintf("Confidence pool: you still have %d unpicked %s for week %d. First kickoff %s. Get your picks in!",
		missingGames, noun, week, firstKickoff.Format("Mon 3:04 PM MST"))
}

// MockSMSService for development - logs to console instead of sending real SMS
type MockSMSService struct{}

func NewMockSMSService() *MockSMSService {
	return &MockSMSService{}
}

func (s *MockSMSService) SendPickReminder(phoneNumber string, week, missingGames int, firstKickoff time.Time) error {
	log.Printf("📨 MOCK SMS: Week %d reminder to %s (%d unpicked, first kickoff %s)",
		week, phoneNumber, missingGames, firstKickoff.Format(time.RFC1123))
	return nil
}

func (s *MockSMSService) SendMessage(phoneNumber, message string) error {
	log.Printf("📨 MOCK SMS: Send message to %s: %s", phoneNumber, message)
	return nil
}
