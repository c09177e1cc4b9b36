package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// systemInstruction is the fixed template describing the structured output
// the provider must produce for every frame.
const systemInstruction = `You are observing a student's screen to understand what they are working on.
Analyze the screenshot and respond with ONLY a JSON object (no markdown fences):
{
  "activity": "short description of what the student is doing",
  "topic": "main topic being worked on",
  "subtopic": "more specific subtopic",
  "mode": "CONCEPTUAL" | "APPLIED" | "CONSOLIDATION",
  "stuck": true | false,
  "work_status": "correct" | "incorrect" | "incomplete" | "unclear",
  "content_type": "code" | "equation" | "text",
  "error_description": null | "specific description of any visible error",
  "natural_pause": true | false,
  "screen_details": "notable details visible on screen"
}`

// AnalysisRequest carries one frame plus the rolling text context for a
// single provider call.
type AnalysisRequest struct {
	Frame        []byte // JPEG
	PriorContext []string
	Transcript   string
}

// Analyzer is the narrow interface to the vision-language provider.
type Analyzer interface {
	// Analyze sends one frame and returns the provider's free-form text,
	// which is expected to contain a JSON object.
	Analyze(ctx context.Context, req AnalysisRequest) (string, error)
	// Validate performs a cheap synchronous check that the provider is
	// reachable and the credentials are accepted.
	Validate(ctx context.Context) error
}

// ProviderErrorKind classifies provider failures by what the user can act on.
type ProviderErrorKind string

const (
	// ProviderErrAuth indicates rejected credentials.
	ProviderErrAuth ProviderErrorKind = "auth"
	// ProviderErrQuota indicates exhausted capacity.
	ProviderErrQuota ProviderErrorKind = "quota"
	// ProviderErrRate indicates rate limiting.
	ProviderErrRate ProviderErrorKind = "rate"
	// ProviderErrOther covers transient network and server failures.
	ProviderErrOther ProviderErrorKind = "other"
)

// ClassifyProviderError buckets a provider error by its message content.
func ClassifyProviderError(err error) ProviderErrorKind {
	if err == nil {
		return ProviderErrOther
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "permission") || strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return ProviderErrAuth
	case strings.Contains(msg, "quota") || strings.Contains(msg, "resource_exhausted"):
		return ProviderErrQuota
	case strings.Contains(msg, "rate") || strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return ProviderErrRate
	default:
		return ProviderErrOther
	}
}

const defaultProviderBaseURL = "https://generativelanguage.googleapis.com"

// GeminiClient calls the Gemini generateContent REST API.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
}

// NewGeminiClient creates a provider client for the given model.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultProviderBaseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL overrides the provider endpoint. Used by tests.
func (c *GeminiClient) SetBaseURL(u string) { c.baseURL = u }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Analyze sends the frame, the fixed instruction, the prior-context window,
// and any pending transcript to the provider.
func (c *GeminiClient) Analyze(ctx context.Context, req AnalysisRequest) (string, error) {
	prompt := buildPrompt(req.PriorContext, req.Transcript)

	body := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: prompt},
				{InlineData: &geminiInlineData{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(req.Frame),
				}},
			},
		}},
	}
	body.GenerationConfig.MaxOutputTokens = 500

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode provider request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build provider request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("provider call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read provider response: %w", err)
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode provider response (status %d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("provider error %d %s: %s", decoded.Error.Code, decoded.Error.Status, decoded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider status %d: %s", resp.StatusCode, string(raw))
	}
	if len(decoded.Candidates) == 0 {
		return "", fmt.Errorf("provider returned no candidates")
	}

	var sb strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// Validate fetches the model metadata to confirm reachability and
// credentials before any loop is started.
func (c *GeminiClient) Validate(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("provider api key not configured")
	}

	url := fmt.Sprintf("%s/v1beta/models/%s?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("provider validation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provider validation status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

// buildPrompt assembles the fixed instruction, the prior-context window,
// and the pending transcript into one text part.
func buildPrompt(prior []string, transcript string) string {
	var sb strings.Builder
	sb.WriteString(systemInstruction)

	if len(prior) > 0 {
		sb.WriteString("\n\nYour previous observations, oldest first:\n")
		for i, p := range prior {
			sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, p))
		}
	}
	if transcript != "" {
		sb.WriteString("\nThe student recently said: ")
		sb.WriteString(transcript)
		sb.WriteString("\n")
	}
	return sb.String()
}
