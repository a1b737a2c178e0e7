package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAPIBase = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel   = "gemini-2.5-flash"

	defaultMaxRetries = 3
	defaultRetryDelay = 1 * time.Second
)

// Prompts sent with each request.
const (
	RecognizePrompt = "Extract all text from this image. Only provide the extracted text, without any additional comments or formatting."
	translatePrompt = "Translate the following text to %s. Provide only the translated text.\n\nText:\n\"\"\"%s\"\"\""
)

var (
	ErrMissingAPIKey        = errors.New("API key is required")
	ErrTesseractUnavailable = errors.New("built without tesseract support (rebuild with -tags tesseract)")
)

// APIError is a non-2xx response or a blocked prompt.
type APIError struct {
	StatusCode int
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	if e.Message == "" {
		return fmt.Sprintf("Gemini API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("Gemini API error (status %d): %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// TransportError is a failure below HTTP: DNS, refused connection, timeout.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "Gemini API request: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Client talks to the Gemini generateContent endpoint. The API key is passed per
// call so a key change in the UI applies to the next session without rebuilding.
type Client struct {
	Model      string
	BaseURL    string
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// NewClient returns a client with a per-request timeout.
func NewClient(model, baseURL string, timeout time.Duration) *Client {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		Model:      model,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		MaxRetries: defaultMaxRetries,
		RetryDelay: defaultRetryDelay,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type generationConfig struct {
	ThinkingConfig *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	SafetySettings   []safetySetting   `json:"safetySettings,omitempty"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *APIError `json:"error,omitempty"`
}

var safetyOff = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

// Recognize extracts text from a PNG image. An empty string means no text was found.
func (c *Client) Recognize(ctx context.Context, apiKey string, png []byte) (string, error) {
	req := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: RecognizePrompt},
				{InlineData: &inlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(png)}},
			},
		}},
		SafetySettings:   safetyOff,
		GenerationConfig: &generationConfig{ThinkingConfig: &thinkingConfig{ThinkingBudget: 0}},
	}
	return c.generate(ctx, apiKey, req)
}

// Translate renders text in targetLanguage.
func (c *Client) Translate(ctx context.Context, apiKey, text, targetLanguage string) (string, error) {
	req := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: fmt.Sprintf(translatePrompt, targetLanguage, text)}},
		}},
		SafetySettings:   safetyOff,
		GenerationConfig: &generationConfig{ThinkingConfig: &thinkingConfig{ThinkingBudget: 0}},
	}
	return c.generate(ctx, apiKey, req)
}

// Ping checks that the key can see the configured model.
func (c *Client) Ping(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return ErrMissingAPIKey
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/"+c.Model, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return fmt.Errorf("Gemini API request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apiErrorFrom(resp.StatusCode, body)
	}
	return nil
}

func (c *Client) generate(ctx context.Context, apiKey string, req generateRequest) (string, error) {
	if apiKey == "" {
		return "", ErrMissingAPIKey
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	attempts := c.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.RetryDelay * time.Duration(attempt)
			log.Printf("LLM: retrying in %v (attempt %d/%d): %v", delay, attempt+1, attempts, lastErr)
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			}
		}

		text, err := c.do(ctx, apiKey, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			return "", err
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) do(ctx context.Context, apiKey string, body []byte) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent", c.BaseURL, c.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apiErrorFrom(resp.StatusCode, raw)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Error != nil {
		parsed.Error.StatusCode = resp.StatusCode
		return "", parsed.Error
	}
	if parsed.PromptFeedback.BlockReason != "" {
		return "", &APIError{Message: "Gemini blocked: " + parsed.PromptFeedback.BlockReason}
	}
	if len(parsed.Candidates) == 0 {
		return "", nil
	}

	cand := parsed.Candidates[0]
	if cand.FinishReason != "" && cand.FinishReason != "STOP" {
		log.Printf("LLM: finishReason=%s", cand.FinishReason)
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func apiErrorFrom(status int, body []byte) error {
	var wrapped struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil {
		wrapped.Error.StatusCode = status
		return wrapped.Error
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var tErr *TransportError
	return errors.As(err, &tErr)
}
