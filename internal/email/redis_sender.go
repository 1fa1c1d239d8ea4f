package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/config"
)

// mockEmailTTL bounds how long a captured message stays readable by tests.
const mockEmailTTL = 5 * time.Minute

// RedisSender captures emails in Redis instead of delivering them. Service
// tests read the captured message back by key to assert on notifications.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

// NewRedisSender creates a new RedisSender.
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{client: client, cfg: cfg}
}

// eventFromSubject classifies the notification for the capture key.
func eventFromSubject(subject string) string {
	switch {
	case strings.Contains(subject, "wants to buy"):
		return "buy_request"
	case strings.Contains(subject, "confirmed"):
		return "sale_confirmed"
	case strings.Contains(subject, "declined"):
		return "sale_rejected"
	}
	return "unknown"
}

// Send stores the message under mockemail:<recipient>:<event>.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}
	event := eventFromSubject(subject)

	payload := map[string]interface{}{
		"to":      strings.Join(to, ", "),
		"from":    s.cfg.SmtpFromAddress,
		"subject": subject,
		"body":    string(rawMessage),
		"event":   event,
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := fmt.Sprintf("mockemail:%s:%s", primaryTo, event)
	if err = s.client.Set(ctx, key, jsonData, mockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}
	log.Printf("Mock email stored in Redis key '%s' (To: %s, Subject: %s)", key, primaryTo, subject)
	return nil
}
