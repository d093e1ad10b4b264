// Package analyzer OpenAI-compatible chat-completions client for the
// external analysis collaborator.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hollowlog/magpie/business/entity"
	"github.com/hollowlog/magpie/pkg/logger"
)

const systemPrompt = `You are a network diagnostics expert reviewing log files and packet capture metadata collected from a failing system. Identify connectivity, DNS, certificate and authentication problems.

Respond with JSON only:
{"severity": "low" | "medium" | "high", "issues": [{"summary": "...", "evidence": "...", "severity": "..."}], "timeline": [{"at": "...", "event": "..."}], "recommendations": ["..."]}`

type Client struct {
	cfg    *Config
	log    *logger.Logger
	client *http.Client
}

type Config struct {
	Endpoints []*entity.AnalyzerEndpoint
	Timeout   time.Duration
}

func New(cfg *Config, log *logger.Logger) *Client {
	return &Client{
		cfg: cfg,
		log: log,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
	}
}

// SetEndpoints swaps the endpoint fallback chain on config reload
func (c *Client) SetEndpoints(endpoints []*entity.AnalyzerEndpoint) {
	c.cfg.Endpoints = endpoints
}

// Analyze renders the request into a chat message and tries each
// configured endpoint in order. Returns ErrAnalyzerUnavailable only
// when every endpoint failed.
func (c *Client) Analyze(ctx context.Context, req *entity.AnalysisRequest) (string, error) {
	if len(c.cfg.Endpoints) == 0 {
		return "", errors.New("no analyzer endpoints configured")
	}

	prompt := renderRequest(req)

	var lastErr error
	for i, ep := range c.cfg.Endpoints {
		start := time.Now()
		text, err := c.tryEndpoint(ctx, ep, prompt)
		if err == nil {
			c.log.Debug().
				Str("model", ep.Model).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Msg("analyzer response")
			return text, nil
		}

		lastErr = err
		c.log.Warn().
			Err(err).
			Str("model", ep.Model).
			Int("endpoint", i+1).
			Msg("analyzer endpoint failed")
	}

	return "", errors.Wrap(entity.ErrAnalyzerUnavailable, lastErr.Error())
}

func (c *Client) tryEndpoint(ctx context.Context, ep *entity.AnalyzerEndpoint, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": ep.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"max_tokens": ep.MaxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := strings.TrimSuffix(ep.URL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", errors.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", err
	}
	if len(apiResp.Choices) == 0 {
		return "", entity.ErrAnalyzerEmptyResponse
	}

	return apiResp.Choices[0].Message.Content, nil
}

// renderRequest flattens the evidence set into the user message.
// Capture payload bytes are never forwarded, only their metadata.
func renderRequest(req *entity.AnalysisRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Processed %d files: %d logs, %d captures, %d archives, %d skipped.\n\n",
		req.Totals.Total, req.Totals.LogFiles, req.Totals.Captures, req.Totals.Archives, req.Totals.Skipped)

	if req.Capture != nil {
		fmt.Fprintf(&b, "Packet capture %s: %s\n\n", req.Capture.Filename, req.Capture)
	}

	for _, e := range req.Evidence {
		fmt.Fprintf(&b, "=== %s (%s) ===\n%s\n\n", e.Filename, e.Category, e.Content)
	}

	return b.String()
}
