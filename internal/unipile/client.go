package unipile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	logx "chatmate/pkg/logx"
)

const apiPrefix = "/api/v1"

type Config struct {
	BaseURL    string
	APIKey     string
	DSN        string
	AccountID  string
	Timeout    time.Duration
	RatePerSec int
}

// Client is safe for concurrent use.
type Client struct {
	cfg     Config
	base    string
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
	now     func() time.Time
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	switch {
	case cfg.BaseURL == "":
		return nil, errors.New("unipile base url is empty")
	case strings.TrimSpace(cfg.APIKey) == "":
		return nil, errors.New("unipile api key is empty")
	case strings.TrimSpace(cfg.AccountID) == "":
		return nil, errors.New("whatsapp account id is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:     cfg,
		base:    cfg.BaseURL + apiPrefix,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log,
		now:     time.Now,
	}, nil
}

// APIError is a non-2xx answer from Unipile. Body keeps the decoded JSON
// payload when there was one.
type APIError struct {
	Status int
	Body   map[string]any
	Raw    string
}

func (e *APIError) Error() string {
	for _, k := range []string{"detail", "message", "title"} {
		if s, ok := e.Body[k].(string); ok && s != "" {
			return fmt.Sprintf("unipile %d: %s", e.Status, s)
		}
	}
	if raw := strings.TrimSpace(e.Raw); raw != "" {
		return fmt.Sprintf("unipile %d: %s", e.Status, truncate(raw, 200))
	}
	return fmt.Sprintf("unipile %d: %s", e.Status, http.StatusText(e.Status))
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ChatID returns the chat id a failed chat creation may point at.
func (e *APIError) ChatID() string {
	s, _ := e.Body["chat_id"].(string)
	return s
}

type form map[string]string

func (f form) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range f {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// do performs one API call and decodes a JSON object answer into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body form, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var (
		rd          io.Reader
		contentType string
	)
	if body != nil {
		var err error
		if rd, contentType, err = body.encode(); err != nil {
			return errors.Wrap(err, "encode form")
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if c.cfg.DSN != "" {
		req.Header.Set("X-DSN", c.cfg.DSN)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errors.Wrapf(err, "read %s %s", method, path)
	}
	c.log.Debug("unipile call", logx.String("method", method), logx.String("path", path), logx.Int("status", resp.StatusCode), logx.Duration("took", c.now().Sub(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Raw: string(raw)}
		_ = json.Unmarshal(raw, &apiErr.Body)
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}
