// Package alerts notifies operators about failed lead deliveries over SMTP.
// It subscribes to delivery failure events on the bus and throttles mail per
// rule so a broken endpoint does not flood the inbox.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	gomail "github.com/wneessen/go-mail"

	"leadrelay_backend/internal/events"
	"leadrelay_backend/platform/config"
	"leadrelay_backend/platform/logger"

	"github.com/google/uuid"
)

// Mailer sends one alert mail. Split out so tests can fake delivery.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// Module listens for delivery failures and mails the operator, at most once
// per rule per cooldown period.
type Module struct {
	mailer   Mailer
	cooldown time.Duration
	log      *logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[uuid.UUID]time.Time
}

// NewModule creates the alerts module. Returns nil when alerting is not
// configured; a nil module registers nothing.
func NewModule(cfg config.AlertConfig, log *logger.Logger) *Module {
	if !cfg.IsAlertingEnabled() {
		log.Info("delivery failure alerting disabled, no SMTP configured")
		return nil
	}
	return &Module{
		mailer:   newSMTPMailer(cfg),
		cooldown: cfg.GetAlertCooldown(),
		log:      log,
		now:      time.Now,
		lastSent: make(map[uuid.UUID]time.Time),
	}
}

// RegisterHandlers subscribes the module to delivery failure events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	if m == nil {
		return
	}
	bus.Subscribe(events.LeadDeliveryFailed{}.EventName(), m)
}

// Handle routes events to the alert sender.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	failed, ok := event.(events.LeadDeliveryFailed)
	if !ok {
		return nil
	}
	if !m.shouldAlert(failed.RuleID) {
		return nil
	}

	subject := fmt.Sprintf("lead delivery failing for rule %q", failed.RuleName)
	body := fmt.Sprintf(
		"Rule: %s (%s)\nLead: %s\nResponse status: %d\nError: %s\nTime: %s\n",
		failed.RuleName, failed.RuleID, failed.LeadSubid,
		failed.ResponseStatus, failed.ErrorDetails,
		failed.OccurredAt().Format(time.RFC3339),
	)

	if err := m.mailer.Send(ctx, subject, body); err != nil {
		m.log.Error("failed to send delivery alert", "rule_id", failed.RuleID.String(), "error", err)
		return err
	}
	m.log.Info("delivery alert sent", "rule_id", failed.RuleID.String())
	return nil
}

// shouldAlert enforces the per-rule cooldown and records the send time.
func (m *Module) shouldAlert(ruleID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if last, ok := m.lastSent[ruleID]; ok && now.Sub(last) < m.cooldown {
		return false
	}
	m.lastSent[ruleID] = now
	return true
}

type smtpMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       string
}

func newSMTPMailer(cfg config.AlertConfig) *smtpMailer {
	return &smtpMailer{
		host:     cfg.GetAlertSMTPHost(),
		port:     cfg.GetAlertSMTPPort(),
		username: cfg.GetAlertSMTPUsername(),
		password: cfg.GetAlertSMTPPassword(),
		from:     cfg.GetAlertFromAddress(),
		to:       cfg.GetAlertToAddress(),
	}
}

func (s *smtpMailer) Send(ctx context.Context, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("alert from: %w", err)
	}
	if err := msg.To(s.to); err != nil {
		return fmt.Errorf("alert to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("alert smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("alert smtp send: %w", err)
	}
	return nil
}
