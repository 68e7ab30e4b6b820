package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Client talks to a local Ollama API for LLM-powered caption enhancement.
type Client struct {
	base  string
	model string
	http  *http.Client
}

// NewClient creates an Ollama client.
func NewClient(baseURL, model string) *Client {
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		model: model,
		// first call loads the model into VRAM, which can take a minute
		http: &http.Client{Timeout: 120 * time.Second},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Available reports whether Ollama answers on its tags endpoint.
func (c *Client) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Generate sends a prompt with a system message and returns the model's
// reply, trimmed.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"system": system,
		"stream": false,
		"options": map[string]any{
			"temperature":    0.9,
			"top_p":          0.95,
			"num_predict":    128, // captions are short, cap output
			"repeat_penalty": 1.1,
		},
	}

	var reply struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", payload, &reply); err != nil {
		return "", err
	}
	return strings.TrimSpace(reply.Response), nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama %s: status %d: %s", path, resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// WaitForReady polls Ollama until it responds or ctx expires. Ollama is
// optional, so callers treat false as "use static captions".
func (c *Client) WaitForReady(ctx context.Context) bool {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		if c.Available(ctx) {
			log.Printf("ollama: ready (model %s)", c.model)
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
