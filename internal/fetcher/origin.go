package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"salmonrun-notifier/internal/version"
)

// ErrUnexpectedPayload reports a response that is not a schedule document.
var ErrUnexpectedPayload = errors.New("fetcher: unexpected schedules payload")

// OriginOptions parameterise the schedule feed client.
type OriginOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Origin fetches schedules from the public feed.
type Origin struct {
	opts   OriginOptions
	logger zerolog.Logger
	client *http.Client
}

// NewOrigin constructs an origin fetcher.
func NewOrigin(opts OriginOptions, logger zerolog.Logger) *Origin {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(opts.URL) == "" {
		opts.URL = "https://splatoon3.ink/data/schedules.json"
	}

	return &Origin{
		opts:   opts,
		logger: logger.With().Str("component", "origin_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// FetchSchedules downloads the feed and returns its coopGroupingSchedule object.
func (o *Origin) FetchSchedules(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.opts.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(o.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", version.UserAgent())
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch schedules: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read schedules: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var envelope feedResponse
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedPayload, err)
	}
	body := bytes.TrimSpace(envelope.Data.CoopGroupingSchedule)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, fmt.Errorf("%w: missing data.coopGroupingSchedule", ErrUnexpectedPayload)
	}

	o.logger.Info().Int("bytes", len(payload)).Msg("fetched schedules from origin")
	return json.RawMessage(body), nil
}

type feedResponse struct {
	Data struct {
		CoopGroupingSchedule json.RawMessage `json:"coopGroupingSchedule"`
	} `json:"data"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("schedules api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("schedules api error (%d): %s", status, apiErr.Error)
		}
	}
	if text := strings.TrimSpace(string(payload)); text != "" {
		if len(text) > 200 {
			text = text[:200]
		}
		return fmt.Errorf("schedules api error (%d): %s", status, text)
	}
	return fmt.Errorf("schedules api error (%d)", status)
}

var _ ScheduleFetcher = (*Origin)(nil)
