package alerting

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// BuildOptions carry delivery settings shared by all destinations.
type BuildOptions struct {
	Timeout    time.Duration
	RatePerSec int
	// TelegramURL and BrevoURL override the public API endpoints.
	TelegramURL string
	BrevoURL    string
}

// Build parses every destination URL and wraps them in a Fanout.
func Build(urls []string, opts BuildOptions, logger zerolog.Logger) (*Fanout, error) {
	destinations := make([]Destination, 0, len(urls))
	for _, raw := range urls {
		d, err := ParseDestination(raw, opts, logger)
		if err != nil {
			return nil, err
		}
		destinations = append(destinations, d)
	}
	return NewFanout(destinations, opts.RatePerSec, logger)
}

// ParseDestination turns one destination URL into a Destination. Supported forms:
//
//	tgram://<bot_token>/<chat_id>[/<chat_id>...]
//	brevo://<api_key>?from=<addr>&to=<addr>[,<addr>...][&name=<sender>]
//	json://host/path, jsons://host/path, http://..., https://...
func ParseDestination(raw string, opts BuildOptions, logger zerolog.Logger) (Destination, error) {
	raw = strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || rest == "" {
		return nil, fmt.Errorf("destination %q: missing scheme", redact(raw))
	}

	switch strings.ToLower(scheme) {
	case "tgram", "telegram":
		return parseTelegram(rest, opts, logger)
	case "brevo", "sendinblue":
		return parseBrevo(raw, opts, logger)
	case "json", "http":
		return NewWebhookNotifier("http://"+rest, opts.Timeout, logger), nil
	case "jsons", "https":
		return NewWebhookNotifier("https://"+rest, opts.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("destination %q: unsupported scheme %q", redact(raw), scheme)
	}
}

// Bot tokens contain a colon, so tgram URLs are split by hand rather than
// through url.Parse.
func parseTelegram(rest string, opts BuildOptions, logger zerolog.Logger) (Destination, error) {
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) < 2 {
		return nil, fmt.Errorf("telegram destination needs tgram://<token>/<chat_id>")
	}

	chatIDs := make([]int64, 0, len(parts)-1)
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram chat id %q: %w", p, err)
		}
		chatIDs = append(chatIDs, id)
	}
	return NewTelegramNotifier(parts[0], chatIDs, opts.TelegramURL, opts.Timeout, logger)
}

func parseBrevo(raw string, opts BuildOptions, logger zerolog.Logger) (Destination, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("brevo destination: %w", err)
	}
	q := u.Query()

	var to []string
	for _, addr := range strings.Split(q.Get("to"), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}

	return NewEmailNotifier(EmailOptions{
		APIKey:     u.Host,
		From:       q.Get("from"),
		SenderName: q.Get("name"),
		To:         to,
		BaseURL:    opts.BrevoURL,
		Timeout:    opts.Timeout,
	}, logger)
}

// redact hides credentials embedded in destination URLs before logging.
func redact(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "***"
	}
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		return scheme + "://***" + rest[i:]
	}
	return scheme + "://***"
}
