package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/procurehub/marketplace-api/internal/metrics"
	"github.com/procurehub/marketplace-api/internal/queue"
)

// industryPhrases personalizes outreach mail by the buyer's industry. The
// zero value falls through to the generic office wording.
var industryPhrases = map[string]string{
	"legal":        "for their practice",
	"healthcare":   "for their clinic",
	"education":    "for their school",
	"construction": "for their site office",
	"finance":      "for their firm",
	"retail":       "for their stores",
	"charity":      "for their organisation",
}

// Mailer sends transactional mail over SMTP. With no host configured every
// send becomes a logged no-op, which keeps local development working without
// a relay.
type Mailer struct {
	Host           string
	Port           string
	User           string
	Pass           string
	From           string
	FrontendOrigin string
	Logger         *slog.Logger
}

// SendPasswordReset mails the raw reset token as a link. The token is never
// logged.
func (m *Mailer) SendPasswordReset(ctx context.Context, email, rawToken string) error {
	link := strings.TrimRight(m.FrontendOrigin, "/") + "/vendor/reset-password?token=" + rawToken
	body := "A password reset was requested for your supplier account.\r\n\r\n" +
		"Reset your password within the next hour:\r\n" + link + "\r\n\r\n" +
		"If you did not request this, you can ignore this email."
	if err := m.send(ctx, email, "Reset your password", body); err != nil {
		return err
	}
	metrics.MailSent.WithLabelValues("reset").Inc()
	return nil
}

// SendQuoteLead mails one matched vendor a summary of the buyer's quote
// request, phrased for the buyer's industry.
func (m *Mailer) SendQuoteLead(ctx context.Context, vendor queue.MatchedVendor, ev queue.QuoteMatchedEvent) error {
	phrase, ok := industryPhrases[strings.ToLower(ev.Industry)]
	if !ok {
		phrase = "for their office"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s team,\r\n\r\n", vendor.Name)
	fmt.Fprintf(&b, "A buyer is looking for photocopier quotes %s and your listing matched.\r\n\r\n", phrase)
	if ev.UserCompany != "" {
		fmt.Fprintf(&b, "Buyer: %s\r\n", ev.UserCompany)
	}
	fmt.Fprintf(&b, "Reference: quote request #%d\r\n", ev.QuoteID)
	fmt.Fprintf(&b, "Match strength: %.0f%%\r\n\r\n", vendor.Score*100)
	b.WriteString("Respond from your dashboard:\r\n")
	b.WriteString(strings.TrimRight(m.FrontendOrigin, "/") + "/vendor/leads\r\n")

	subject := fmt.Sprintf("New quote request #%d", ev.QuoteID)
	if err := m.send(ctx, vendor.Email, subject, b.String()); err != nil {
		return err
	}
	metrics.MailSent.WithLabelValues("quote_lead").Inc()
	return nil
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	if m.Host == "" {
		m.Logger.Info("mail disabled, skipping send", "to", to, "subject", subject)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}
	addr := m.Host + ":" + m.Port
	if err := smtp.SendMail(addr, auth, m.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
