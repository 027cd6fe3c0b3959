// Package statsapi calls the external statistics service: one POST per run,
// classified into a result or one of the transport, upstream and
// malformed-response errors.
package statsapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"

	"statwizard/domain/analysis"
	"statwizard/internal/errors"
)

const (
	// MsgTransport is shown when the call produced no response.
	MsgTransport = "Analysis failed. Check your connection and try again."
	// MsgMalformed is shown when the response has no usable message.
	MsgMalformed = "The analysis service returned an unexpected response."

	maxResponseBytes = 32 << 20
)

// Config holds the client settings.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	MaxConcurrent int64
}

// Client implements wizard.Client over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sem        *semaphore.Weighted
	now        func() time.Time
}

// NewClient creates a client. A zero MaxConcurrent means no cap.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.ConfigInvalid("stats API base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
	if cfg.MaxConcurrent > 0 {
		c.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return c, nil
}

// BaseURL returns the configured endpoint root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Analyze issues exactly one POST for the request. It does not retry.
func (c *Client) Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
	raw, err := req.JSON()
	if err != nil {
		return nil, errors.Wrap(err, "marshal analysis request")
	}

	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, errors.Transport(MsgTransport, err)
		}
		defer c.sem.Release(1)
	}

	url := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "build analysis request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("[StatsAPI] POST %s failed after %v: %v", req.Path, time.Since(start), err)
		return nil, errors.Transport(MsgTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Transport(MsgTransport, fmt.Errorf("read response: %w", err))
	}
	log.Printf("[StatsAPI] POST %s -> %d (%d bytes, %v)", req.Path, resp.StatusCode, len(body), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg := errorMessage(body); msg != "" {
			return nil, errors.Upstream(msg)
		}
		return nil, errors.MalformedResponse(MsgMalformed, fmt.Errorf("http %d without error message", resp.StatusCode))
	}
	return c.decode(req, body)
}

func (c *Client) decode(req analysis.Request, body []byte) (*analysis.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.MalformedResponse(MsgMalformed, fmt.Errorf("response is not JSON"))
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, errors.MalformedResponse(MsgMalformed, fmt.Errorf("response is not an object"))
	}
	if e := doc.Get("error"); present(e) {
		if msg := errorMessage(body); msg != "" {
			return nil, errors.Upstream(msg)
		}
		return nil, errors.MalformedResponse(MsgMalformed, fmt.Errorf("error field without message"))
	}

	results := doc.Get("results")
	if !results.IsObject() && !results.IsArray() {
		return nil, errors.MalformedResponse(MsgMalformed, fmt.Errorf("missing results"))
	}
	summary, err := req.Decode([]byte(results.Raw))
	if err != nil {
		return nil, errors.MalformedResponse(MsgMalformed, err)
	}

	return &analysis.Result{
		AnalysisID:     req.AnalysisID,
		Results:        []byte(results.Raw),
		Interpretation: interpretation(doc.Get("interpretation")),
		Plot:           plot(doc.Get("plot")),
		Summary:        summary,
		ReceivedAt:     c.now(),
	}, nil
}

// errorMessage extracts the service's message from "error", "detail" (string
// or a list of {msg} entries) or "message".
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	doc := gjson.ParseBytes(body)
	for _, key := range []string{"error", "detail", "message"} {
		v := doc.Get(key)
		switch {
		case v.Type == gjson.String && strings.TrimSpace(v.Str) != "":
			return strings.TrimSpace(v.Str)
		case v.IsObject():
			if m := v.Get("message"); m.Type == gjson.String && m.Str != "" {
				return m.Str
			}
		case v.IsArray():
			var parts []string
			v.ForEach(func(_, item gjson.Result) bool {
				if item.Type == gjson.String {
					parts = append(parts, item.Str)
				} else if m := item.Get("msg"); m.Exists() {
					parts = append(parts, m.String())
				}
				return true
			})
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
	}
	return ""
}

func present(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return strings.TrimSpace(v.Str) != ""
	}
	return v.Exists()
}

func interpretation(v gjson.Result) []string {
	switch {
	case v.Type == gjson.String:
		if s := strings.TrimSpace(v.Str); s != "" {
			return []string{s}
		}
	case v.IsArray():
		var out []string
		for _, item := range v.Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func plot(v gjson.Result) string {
	if v.Type != gjson.String {
		return ""
	}
	s := strings.TrimSpace(v.Str)
	if i := strings.Index(s, "base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len("base64,"):]
	}
	return s
}
