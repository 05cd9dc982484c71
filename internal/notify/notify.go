// Package notify pushes admin announcements to subscriber topics over Redis Pub/Sub.
package notify

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/database"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/resilience"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

const (
	TopicUsers   = "all_users"
	TopicVendors = "all_vendors"
	TopicAdmins  = "all_admins"

	defaultTitle    = "New Announcement"
	defaultBody     = "You have a new announcement"
	defaultPriority = "medium"

	pendingBatch = 100
)

// Publisher delivers a message on a channel
type Publisher interface {
	Publish(ctx context.Context, channel string, message []byte) error
}

// RedisPublisher publishes over Redis Pub/Sub
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, message []byte) error {
	return p.client.Publish(ctx, channel, message).Err()
}

// Store is the announcement queue plus the audit trail
type Store interface {
	PendingAnnouncements(ctx context.Context, limit int) ([]types.Announcement, error)
	MarkAnnouncementNotified(ctx context.Context, id, outcome string, now time.Time) error
	InsertAuditLog(ctx context.Context, entry types.AuditLog) error
}

// Payload is the message subscribers receive
type Payload struct {
	AnnouncementID  string `json:"announcement_id"`
	Topic           string `json:"topic"`
	Title           string `json:"title"`
	Body            string `json:"body"`
	Priority        string `json:"priority"`
	TargetAudience  string `json:"target_audience"`
	AndroidPriority string `json:"android_priority"`
	ChannelID       string `json:"channel_id"`
	Sound           string `json:"sound"`
	Type            string `json:"type"`
}

// SweepResult counts the announcements handled by one sweep
type SweepResult struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Service drains the pending announcement queue
type Service struct {
	store     Store
	publisher Publisher
	breaker   *resilience.CircuitBreaker
	prefix    string
	logger    *monitoring.Logger
	now       func() time.Time
}

// NewService creates an announcement pusher. A nil publisher leaves
// announcements pending until a transport is configured.
func NewService(store Store, publisher Publisher, breaker *resilience.CircuitBreaker, prefix string, logger *monitoring.Logger) *Service {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("announcement_push", resilience.CircuitBreakerConfig{})
	}
	if logger == nil {
		logger = monitoring.NewLoggerWithWriter(io.Discard, "error", "json")
	}
	return &Service{
		store:     store,
		publisher: publisher,
		breaker:   breaker,
		prefix:    prefix,
		logger:    logger,
		now:       time.Now,
	}
}

// TopicFor maps an announcement audience to its subscriber topic
func TopicFor(audience string) string {
	switch audience {
	case "vendors":
		return TopicVendors
	case "admins":
		return TopicAdmins
	default:
		return TopicUsers
	}
}

// BuildPayload fills the defaults subscribers rely on
func BuildPayload(a types.Announcement) Payload {
	p := Payload{
		AnnouncementID:  a.ID,
		Topic:           TopicFor(a.TargetAudience),
		Title:           a.Title,
		Body:            a.Message,
		Priority:        a.Priority,
		TargetAudience:  a.TargetAudience,
		AndroidPriority: "normal",
		ChannelID:       "announcements",
		Sound:           "default",
		Type:            "announcement",
	}
	if p.Title == "" {
		p.Title = defaultTitle
	}
	if p.Body == "" {
		p.Body = defaultBody
	}
	if p.Priority == "" {
		p.Priority = defaultPriority
	}
	if p.Priority == "urgent" || p.Priority == "high" {
		p.AndroidPriority = "high"
	}
	if p.Priority == "urgent" {
		p.ChannelID = "urgent_announcements"
	}
	return p
}

// Sweep pushes every pending announcement once. Delivery failures are audited
// and counted; the announcement is still marked so it is not retried forever.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	if s.publisher == nil {
		s.logger.Debug("Announcement push disabled, leaving queue untouched")
		return SweepResult{}, nil
	}

	pending, err := s.store.PendingAnnouncements(ctx, pendingBatch)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Pending: len(pending)}
	for _, a := range pending {
		now := s.now().UTC()
		outcome := s.deliver(ctx, a, now)
		switch outcome {
		case database.OutcomeSent:
			result.Sent++
		case database.OutcomeFailed:
			result.Failed++
		default:
			result.Skipped++
		}
		if err := s.store.MarkAnnouncementNotified(ctx, a.ID, outcome, now); err != nil {
			s.logger.Error("Failed to mark announcement", "announcement_id", a.ID, "error", err)
		}
	}

	monitoring.MaintenanceAffected.WithLabelValues("announcements").Add(float64(result.Sent))
	return result, nil
}

func (s *Service) deliver(ctx context.Context, a types.Announcement, now time.Time) string {
	if !a.IsActive || (a.ExpiresAt != nil && !a.ExpiresAt.After(now)) {
		return database.OutcomeSkipped
	}

	payload := BuildPayload(a)
	message, err := json.Marshal(payload)
	if err == nil {
		channel := s.prefix + payload.Topic
		err = s.breaker.Call(func() error {
			return s.publisher.Publish(ctx, channel, message)
		})
	}

	entry := types.AuditLog{
		EntityType:  "announcement",
		EntityID:    a.ID,
		PerformedBy: database.PerformedBySystem,
		Timestamp:   now,
		Metadata: map[string]string{
			"topic":    payload.Topic,
			"priority": payload.Priority,
		},
	}
	outcome := database.OutcomeSent
	if err != nil {
		outcome = database.OutcomeFailed
		entry.Action = database.AuditAnnouncementFailed
		entry.Reason = fmt.Sprintf("Failed to send notification: %v", err)
		s.logger.Error("Announcement push failed", "announcement_id", a.ID, "topic", payload.Topic, "error", err)
	} else {
		entry.Action = database.AuditAnnouncementSent
		entry.Reason = "Notification sent to topic: " + payload.Topic
		s.logger.Info("Announcement pushed", "announcement_id", a.ID, "topic", payload.Topic)
	}

	if auditErr := s.store.InsertAuditLog(ctx, entry); auditErr != nil {
		s.logger.Error("Failed to write announcement audit log", "announcement_id", a.ID, "error", auditErr)
	}
	return outcome
}
