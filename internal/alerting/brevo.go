package alerting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sendinblue/APIv3-go-library/v2/lib"
)

// EmailOptions configure the Brevo transactional email destination.
type EmailOptions struct {
	APIKey     string
	From       string
	SenderName string
	To         []string
	BaseURL    string
	Timeout    time.Duration
}

// EmailNotifier sends notifications as transactional email through Brevo.
type EmailNotifier struct {
	opts   EmailOptions
	client *lib.APIClient
	logger zerolog.Logger
}

// NewEmailNotifier constructs a Brevo destination.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) (*EmailNotifier, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("brevo api key is empty")
	}
	if opts.From == "" || len(opts.To) == 0 {
		return nil, errors.New("brevo destination needs from and to addresses")
	}
	if opts.SenderName == "" {
		opts.SenderName = "Salmon Run Notifier"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	cfg := lib.NewConfiguration()
	cfg.AddDefaultHeader("api-key", opts.APIKey)
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	if opts.BaseURL != "" {
		cfg.BasePath = strings.TrimRight(opts.BaseURL, "/")
	}

	return &EmailNotifier{
		opts:   opts,
		client: lib.NewAPIClient(cfg),
		logger: logger.With().Str("component", "alert_email").Logger(),
	}, nil
}

// Name implements Destination.
func (n *EmailNotifier) Name() string { return "brevo" }

// Notify sends one email addressed to every recipient.
func (n *EmailNotifier) Notify(ctx context.Context, body string) error {
	recipients := make([]lib.SendSmtpEmailTo, 0, len(n.opts.To))
	for _, to := range n.opts.To {
		recipients = append(recipients, lib.SendSmtpEmailTo{Email: to})
	}

	email := lib.SendSmtpEmail{
		Sender:      &lib.SendSmtpEmailSender{Email: n.opts.From, Name: n.opts.SenderName},
		To:          recipients,
		Subject:     subjectOf(body),
		TextContent: body,
	}

	_, resp, err := n.client.TransactionalEmailsApi.SendTransacEmail(ctx, email)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("brevo api error: %d - %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	n.logger.Debug().Int("recipients", len(recipients)).Msg("email sent")
	return nil
}

var _ Destination = (*EmailNotifier)(nil)
