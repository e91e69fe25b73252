// Package notify delivers new-result digest emails to the notification
// addresses configured on a search rule.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
	"github.com/trialsignal/pharmacovigilance-service/internal/vigilance"
)

// Config holds SMTP delivery settings.
type Config struct {
	// Host is the SMTP server hostname.
	Host string
	// Port is the SMTP server port.
	Port int
	// Username is the SMTP auth username. Empty disables authentication.
	Username string
	// Password is the SMTP auth password.
	Password string
	// From is the sender address.
	From string
}

// sendFunc matches smtp.SendMail, injectable for tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends plain-text digest emails over SMTP.
type SMTPNotifier struct {
	config Config
	send   sendFunc
	logger zerolog.Logger
}

// Compile-time interface verification.
var _ vigilance.Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier creates an SMTP-backed notifier.
func NewSMTPNotifier(cfg Config, logger zerolog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		config: cfg,
		send:   smtp.SendMail,
		logger: logger.With().Str("component", "smtp_notifier").Logger(),
	}
}

// NotifyNewResults sends one digest listing the results a pass created to all
// of the rule's notification addresses.
func (n *SMTPNotifier) NotifyNewResults(ctx context.Context, rule *domain.SearchRule, created []*domain.SearchResult) error {
	if len(created) == 0 || len(rule.NotificationEmails) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body := buildDigest(rule, created)
	msg := buildMessage(n.config.From, rule.NotificationEmails, subject, body)

	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	if err := n.send(addr, auth, n.config.From, rule.NotificationEmails, msg); err != nil {
		return fmt.Errorf("sending digest for rule %s: %w", rule.ID, err)
	}

	n.logger.Info().
		Str("rule_id", rule.ID.String()).
		Int("results", len(created)).
		Int("recipients", len(rule.NotificationEmails)).
		Msg("digest email sent")
	return nil
}

// buildDigest composes the digest subject and plain-text body.
func buildDigest(rule *domain.SearchRule, created []*domain.SearchResult) (subject, body string) {
	subject = fmt.Sprintf("[Pharmacovigilance] %d new result(s) for rule %q", len(created), rule.Name)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search rule %q matched %d new article(s).\r\n\r\n", rule.Name, len(created))
	for _, result := range created {
		fmt.Fprintf(&sb, "- PMID %s (relevance %.2f)", result.ArticlePMID, result.RelevanceScore)
		if len(result.MatchedTerms) > 0 {
			fmt.Fprintf(&sb, ", matched: %s", strings.Join(result.MatchedTerms, ", "))
		}
		sb.WriteString("\r\n")
		fmt.Fprintf(&sb, "  https://pubmed.ncbi.nlm.nih.gov/%s/\r\n", result.ArticlePMID)
	}
	sb.WriteString("\r\nPlease review these results in the pharmacovigilance dashboard.\r\n")
	return subject, sb.String()
}

// buildMessage assembles an RFC 5322 plain-text message.
func buildMessage(from string, to []string, subject, body string) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return []byte(sb.String())
}
