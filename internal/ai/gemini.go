// Package ai implements the Gemini text-generation collaborator used by the
// chat, analysis and code-generation endpoints.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var baseURL = "https://generativelanguage.googleapis.com/v1beta"

// Options tune a single generation call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Gemini is a client for the Gemini generateContent REST API.
type Gemini struct {
	apiKey     string
	model      string
	codeModel  string
	httpClient *http.Client
	defaults   Options
}

// Option configures a Gemini client.
type Option func(*Gemini)

// WithCodeModel sets the model used for code generation and analysis.
func WithCodeModel(model string) Option {
	return func(g *Gemini) { g.codeModel = model }
}

// WithDefaults sets the default generation options.
func WithDefaults(opts Options) Option {
	return func(g *Gemini) { g.defaults = opts }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gemini) { g.httpClient = c }
}

// New creates a Gemini client for the given API key and chat model.
func New(apiKey, model string, opts ...Option) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	g := &Gemini{
		apiKey:     apiKey,
		model:      model,
		codeModel:  model,
		httpClient: &http.Client{},
		defaults:   Options{Temperature: 0.7, MaxTokens: 500},
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Generate sends a single prompt to the chat model and returns the text reply.
func (g *Gemini) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return g.generate(ctx, g.model, prompt, opts)
}

// GenerateResponse produces a chat reply for the user message, given the
// prior conversation history.
func (g *Gemini) GenerateResponse(ctx context.Context, userMessage string, history []Message) (string, error) {
	return g.generate(ctx, g.model, BuildChatPrompt(history, userMessage), g.defaults)
}

// AnalyzeCode asks the code model for feedback on the given code.
func (g *Gemini) AnalyzeCode(ctx context.Context, code string) (string, error) {
	prompt := fmt.Sprintf(`Analyze the following code and give feedback:
- improvement suggestions
- possible bugs
- best practices

Code:
`+"```python\n%s\n```", code)
	return g.generate(ctx, g.codeModel, prompt, g.defaults)
}

// GenerateCodeAndTests asks the code model for a Python function and its
// pytest tests for the given task, and parses the two code blocks out of
// the reply.
func (g *Gemini) GenerateCodeAndTests(ctx context.Context, task string) (code, tests string, err error) {
	prompt := fmt.Sprintf(
		"Generate a Python function and the matching pytest tests for the following task: %q. "+
			"The output must consist of exactly two code blocks: the first contains the function, "+
			"the second the tests. Both blocks must be fenced with ```python and ```.", task)

	reply, err := g.generate(ctx, g.codeModel, prompt, g.defaults)
	if err != nil {
		return "", "", err
	}

	code, tests, ok := ParseCodeBlocks(reply)
	if !ok {
		return "", "", fmt.Errorf("gemini: could not parse code and tests from response")
	}
	return code, tests, nil
}

// BuildChatPrompt flattens a conversation history and the current message
// into a single prompt.
func BuildChatPrompt(history []Message, current string) string {
	var b strings.Builder
	for _, m := range history {
		if m.Role == "user" {
			b.WriteString("User: " + m.Content + "\n")
		} else {
			b.WriteString("Assistant: " + m.Content + "\n")
		}
	}
	b.WriteString("User: " + current + "\nAssistant:")
	return b.String()
}

// ParseCodeBlocks extracts the first two ```python blocks from a reply.
func ParseCodeBlocks(reply string) (code, tests string, ok bool) {
	parts := strings.Split(reply, "```python")
	if len(parts) < 3 {
		return "", "", false
	}
	code = strings.TrimSpace(strings.ReplaceAll(parts[1], "```", ""))
	tests = strings.TrimSpace(strings.ReplaceAll(parts[2], "```", ""))
	return code, tests, true
}

// --- wire types ---

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// generate performs one generateContent call against the given model.
func (g *Gemini) generate(ctx context.Context, model, prompt string, opts Options) (string, error) {
	if opts.Temperature == 0 && opts.MaxTokens == 0 {
		opts = g.defaults
	}

	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxTokens,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", baseURL, model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gemini: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("gemini: parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("gemini: API error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}

	var text strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}
