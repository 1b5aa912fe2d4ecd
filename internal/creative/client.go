// Package creative talks to a locally hosted LLM chat-completion endpoint to
// produce CreativeFacts: genre/mood/theme/instrument suggestions, a vocals
// classification, and a short narrative. Every failure mode degrades to a
// default-empty CreativeFacts plus a human-readable creative_status string —
// the phase itself is never reported as errored in the track record.
package creative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Config captures the runtime settings required to talk to the LLM server.
type Config struct {
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

const defaultHTTPTimeout = 15 * time.Second

// Client wraps the local chat-completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (used in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// NewClient constructs a creative client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Status enumerates the creative_status values the phase can surface.
type Status string

const (
	StatusOK          Status = "ok"
	StatusOffline     Status = "Ollama offline - creative analysis skipped"
	StatusModelMissing Status = "model not available on server - creative analysis skipped"
	StatusParseError  Status = "could not parse model response - creative analysis skipped"
)

// Result pairs the parsed facts with the status string persisted alongside them.
type Result struct {
	Facts  Facts
	Status Status
}

// Request carries the inputs the system prompt is built from.
type Request struct {
	Title string
	BPM   *int
	Hints map[string]bool
}

// Analyze runs the full model-precheck -> prompt -> parse-with-repair ->
// normalize pipeline described by C4, never returning an error: any failure
// is folded into a defaulted Result.
func (c *Client) Analyze(ctx context.Context, req Request) Result {
	if c == nil {
		return Result{Facts: DefaultFacts(), Status: StatusOffline}
	}

	if err := c.modelPrecheck(ctx); err != nil {
		if errors.Is(err, errModelMissing) {
			return Result{Facts: DefaultFacts(), Status: StatusModelMissing}
		}
		return Result{Facts: DefaultFacts(), Status: StatusOffline}
	}

	system := buildSystemPrompt(c.cfg.Model)
	user := buildUserPrompt(req)

	content, err := c.complete(ctx, system, user)
	if err != nil {
		return Result{Facts: DefaultFacts(), Status: StatusOffline}
	}

	raw, ok := parseJSON(content)
	if !ok {
		return Result{Facts: DefaultFacts(), Status: StatusParseError}
	}

	return Result{Facts: normalize(raw), Status: StatusOK}
}

var errModelMissing = errors.New("creative: model missing")

// modelPrecheck confirms the configured model is present on the server's
// model listing before spending a completion call on it.
func (c *Client) modelPrecheck(ctx context.Context) error {
	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/api/chat") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("model listing: http %d", resp.StatusCode)
	}

	var listing struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil // tolerate listings the server doesn't support; fall through to completion
	}
	for _, m := range listing.Models {
		if strings.EqualFold(strings.TrimSpace(m.Name), strings.TrimSpace(c.cfg.Model)) {
			return nil
		}
	}
	if len(listing.Models) == 0 {
		return nil
	}
	return errModelMissing
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format"`
	Options  chatOptions   `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type chatResponse struct {
	Message  chatMessage `json:"message"`
	Response string      `json:"response"`
	Content  string      `json:"content"`
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	temperature := 0.7
	if isLargeModel(c.cfg.Model) {
		temperature = 0.3
	}

	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:  false,
		Format:  "json",
		Options: chatOptions{Temperature: temperature, TopP: 0.9},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm request: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", err
	}

	// Preference order per the LLM server contract: message.content, response, content.
	content := firstNonEmpty(decoded.Message.Content, decoded.Response, decoded.Content)
	if content == "" {
		return "", errors.New("llm request: empty content")
	}
	return content, nil
}

func isLargeModel(model string) bool {
	model = strings.ToLower(model)
	for _, marker := range []string{"70b", "72b", "405b", "large", "xl"} {
		if strings.Contains(model, marker) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// parseConfidence accepts either a numeric value (halved when > 1, then
// clamped, so any value above 2 becomes 1) or a percentage string, coercing
// the result to [0,1].
func parseConfidence(raw json.RawMessage) float64 {
	var asFloat float64
	if err := json.Unmarshal(raw, &asFloat); err == nil {
		if asFloat > 1 {
			asFloat /= 2
		}
		return clamp01(asFloat)
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		trimmed := strings.TrimSpace(strings.TrimSuffix(asString, "%"))
		if value, err := strconv.ParseFloat(trimmed, 64); err == nil {
			if strings.HasSuffix(strings.TrimSpace(asString), "%") {
				value /= 100
			} else if value > 1 {
				value /= 2
			}
			return clamp01(value)
		}
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
