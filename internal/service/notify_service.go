package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"motorent/internal/config"
	"motorent/internal/entities"
	"motorent/internal/logger"
	"motorent/internal/metrics"
)

// Notifier tells users about admin decisions. Delivery is best effort and
// never fails the operation that triggered it.
type Notifier interface {
	PaymentDecided(ctx context.Context, n entities.PaymentNotice)
	AccountReviewed(ctx context.Context, n entities.AccountNotice)
}

type EmailSender interface {
	SendEmail(ctx context.Context, toEmail, toName, subject, plain, html string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// NotifyService fans notices out to email and SMS in the background.
type NotifyService struct {
	email   EmailSender
	sms     SMSSender
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewNotifyService wires the configured channels; an unconfigured channel
// is skipped.
func NewNotifyService(cfg *config.Config, m *metrics.Metrics) *NotifyService {
	s := &NotifyService{metrics: m}
	if cfg.SendGrid.Enabled() {
		s.email = NewSendGridSender(cfg.SendGrid)
	}
	if cfg.Twilio.Enabled() {
		s.sms = NewTwilioSender(cfg.Twilio)
	}
	return s
}

func (s *NotifyService) PaymentDecided(ctx context.Context, n entities.PaymentNotice) {
	verdict := "verified"
	if n.Status != "verified" {
		verdict = "rejected"
	}
	subject := fmt.Sprintf("Your payment for reservation #%d was %s", n.ReservationID, verdict)

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", n.UserName)
	fmt.Fprintf(&b, "Your payment for reservation #%d (%s, %s to %s, total %d) was %s.\n",
		n.ReservationID, n.MotorName, n.StartDate, n.EndDate, n.TotalPrice, verdict)
	if verdict == "verified" {
		b.WriteString("Your reservation is confirmed.\n")
	} else {
		b.WriteString("Your reservation was cancelled. You can upload a new proof of transfer to reopen it.\n")
	}
	if n.AdminNote != "" {
		fmt.Fprintf(&b, "\nNote from our team: %s\n", n.AdminNote)
	}
	b.WriteString("\nMotorent")

	sms := fmt.Sprintf("Motorent: payment for reservation #%d %s. %s to %s.", n.ReservationID, verdict, n.StartDate, n.EndDate)
	s.dispatch(ctx, n.UserEmail, n.UserName, n.UserPhone, subject, b.String(), sms)
}

func (s *NotifyService) AccountReviewed(ctx context.Context, n entities.AccountNotice) {
	subject := "Your Motorent account was approved"
	body := fmt.Sprintf("Hello %s,\n\nYour identity document was verified. You can now sign in and book a motor.\n\nMotorent", n.UserName)
	sms := "Motorent: your account was approved. You can now sign in."
	if !n.Approved {
		subject = "Your Motorent registration was not approved"
		body = fmt.Sprintf("Hello %s,\n\nWe could not verify your identity document, so your registration was declined. You are welcome to register again.\n\nMotorent", n.UserName)
		sms = "Motorent: your registration was not approved. Check your email for details."
	}
	s.dispatch(ctx, n.UserEmail, n.UserName, n.UserPhone, subject, body, sms)
}

func (s *NotifyService) dispatch(ctx context.Context, email, name, phone, subject, body, sms string) {
	log := logger.WithCtx(ctx)
	// The request context ends with the response; keep its values only.
	bg := context.WithoutCancel(ctx)

	if s.email != nil && email != "" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			err := s.email.SendEmail(bg, email, name, subject, body, "")
			s.metrics.Notification("email", err)
			if err != nil {
				log.Warn("email notification failed", "to", email, "error", err)
			}
		}()
	}
	if s.sms != nil && phone != "" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			err := s.sms.SendSMS(bg, phone, sms)
			s.metrics.Notification("sms", err)
			if err != nil {
				log.Warn("sms notification failed", "to", phone, "error", err)
			}
		}()
	}
}

// Wait blocks until in-flight notifications finish. Used on shutdown.
func (s *NotifyService) Wait() { s.wg.Wait() }

type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridSender(cfg config.SendGridConfig) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
	}
}

func (s *SendGridSender) SendEmail(ctx context.Context, toEmail, toName, subject, plain, html string) error {
	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail(toName, toEmail), plain, html)
	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSender(cfg config.TwilioConfig) *TwilioSender {
	return &TwilioSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username:   cfg.AccountSID,
			Password:   cfg.AuthToken,
			AccountSid: cfg.AccountSID,
		}),
		from: cfg.FromNumber,
	}
}

func (s *TwilioSender) SendSMS(_ context.Context, to, body string) error {
	if !strings.HasPrefix(to, "+") {
		return fmt.Errorf("twilio: %q is not an E.164 number", to)
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	return nil
}
