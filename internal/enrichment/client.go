package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/fire-team/ticket-router/internal/models"
)

const (
	testWebhookSegment = "/webhook-test/"
	prodWebhookSegment = "/webhook/"
	maxResponseBytes   = 4 << 20
)

type ClientConfig struct {
	BaseURL       string
	WebhookPath   string
	APIKey        string
	MaxConcurrent int64
	MaxWait       time.Duration
	Timeout       time.Duration
}

// Client calls the classification webhook. At most MaxConcurrent calls are in
// flight; callers wait up to MaxWait for a permit and then give up.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	sem    *semaphore.Weighted
	logger zerolog.Logger
}

func NewClient(cfg ClientConfig, httpClient *http.Client, logger zerolog.Logger) *Client {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 30 * time.Second
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: logger.With().Str("component", "enrichment").Logger(),
	}
}

func (c *Client) Enrich(ctx context.Context, t models.RawTicket) (*models.Enrichment, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.MaxWait)
	err := c.sem.Acquire(waitCtx, 1)
	cancel()
	if err != nil {
		c.logger.Warn().
			Int64("raw_ticket_id", t.ID).
			Int64("max_concurrent", c.cfg.MaxConcurrent).
			Dur("max_wait", c.cfg.MaxWait).
			Msg("enrichment permit wait timed out")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrPermitTimeout
	}
	defer c.sem.Release(1)

	body, contentType, err := buildForm(t, c.logger)
	if err != nil {
		return nil, err
	}

	path := c.cfg.WebhookPath
	isTest := strings.Contains(path, testWebhookSegment)
	if isTest {
		c.logger.Warn().Str("path", path).Msg("using test webhook path")
	}

	rec, status, err := c.post(ctx, c.url(path), body, contentType)
	if err == nil && rec != nil {
		return rec, nil
	}
	if !isTest || (err != nil && status != http.StatusNotFound) {
		return nil, err
	}

	prodURL := c.url(strings.Replace(path, testWebhookSegment, prodWebhookSegment, 1))
	c.logger.Warn().
		Int("status", status).
		Str("url", prodURL).
		Msg("test webhook returned nothing, retrying production webhook")
	rec, _, err = c.post(ctx, prodURL, body, contentType)
	return rec, err
}

func (c *Client) url(path string) string {
	base := strings.TrimRight(strings.TrimSpace(c.cfg.BaseURL), "/")
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// post returns the extracted record (nil when the payload has none), the
// HTTP status and a transport or status error.
func (c *Client) post(ctx context.Context, url string, body []byte, contentType string) (*models.Enrichment, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-api-key", c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", url).Msg("enrichment webhook network error")
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("url", url).
			Str("body", truncate(string(raw), 512)).
			Msg("enrichment webhook error response")
		return nil, resp.StatusCode, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		c.logger.Warn().Str("url", url).Msg("enrichment webhook returned empty body")
		return nil, resp.StatusCode, nil
	}
	tree, err := DecodeTree(raw)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("enrichment webhook returned non-json body")
		return nil, resp.StatusCode, nil
	}
	rec := Extract(tree)
	if rec == nil {
		c.logger.Warn().Str("url", url).Msg("enrichment payload has no recognizable fields")
	}
	c.logger.Debug().
		Str("url", url).
		Dur("latency", time.Since(start)).
		Bool("found", rec != nil).
		Msg("enrichment webhook call")
	return rec, resp.StatusCode, nil
}

func buildForm(t models.RawTicket, logger zerolog.Logger) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	clientID := ""
	if t.ClientID != uuid.Nil {
		clientID = t.ClientID.String()
	}
	ticketJSON, err := json.Marshal(t)
	if err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"clientGuid", clientID},
		{"description", t.Description},
		{"clientSegment", t.Segment},
		{"language", "RU"},
		{"ticket", string(ticketJSON)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if path := strings.TrimSpace(t.Attachments); path != "" {
		if err := attachFile(w, path); err != nil {
			logger.Warn().Err(err).Str("attachment", path).Msg("attachment skipped")
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func attachFile(w *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := w.CreateFormFile("attachment", filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// IsDegraded reports whether err is one of the failures callers absorb with
// a placeholder record.
func IsDegraded(err error) bool {
	return errors.Is(err, ErrPermitTimeout) || errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
