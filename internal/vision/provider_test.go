package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiClient_AnalyzeRoundTrip(t *testing.T) {
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"activity\":"},{"text":"\"coding\"}"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", "gemini-2.0-flash")
	c.SetBaseURL(srv.URL)

	text, err := c.Analyze(context.Background(), AnalysisRequest{
		Frame:        []byte{0xff, 0xd8},
		PriorContext: []string{"earlier observation"},
		Transcript:   "I'm stuck on this",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// Candidate parts are concatenated in order.
	if text != `{"activity":"coding"}` {
		t.Errorf("text = %q", text)
	}

	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 2 {
		t.Fatalf("Request shape: %+v", gotBody)
	}
	prompt := gotBody.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "earlier observation") {
		t.Error("Prompt should carry prior observations")
	}
	if !strings.Contains(prompt, "I'm stuck on this") {
		t.Error("Prompt should carry the transcript")
	}
	inline := gotBody.Contents[0].Parts[1].InlineData
	if inline == nil || inline.MimeType != "image/jpeg" || inline.Data == "" {
		t.Errorf("Inline frame part: %+v", inline)
	}
	if gotBody.GenerationConfig.MaxOutputTokens != 500 {
		t.Errorf("MaxOutputTokens = %d", gotBody.GenerationConfig.MaxOutputTokens)
	}
}

func TestGeminiClient_AnalyzeSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("bad-key", "gemini-2.0-flash")
	c.SetBaseURL(srv.URL)

	_, err := c.Analyze(context.Background(), AnalysisRequest{Frame: []byte{1}})
	if err == nil {
		t.Fatal("Analyze should fail")
	}
	if ClassifyProviderError(err) != ProviderErrAuth {
		t.Errorf("Classification = %q, want auth", ClassifyProviderError(err))
	}
}

func TestGeminiClient_Validate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s", r.Method)
		}
		w.Write([]byte(`{"name":"models/gemini-2.0-flash"}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", "gemini-2.0-flash")
	c.SetBaseURL(srv.URL)

	if err := c.Validate(context.Background()); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestGeminiClient_ValidateRequiresKey(t *testing.T) {
	c := NewGeminiClient("", "gemini-2.0-flash")
	if err := c.Validate(context.Background()); err == nil {
		t.Error("Validate with empty key should fail")
	}
}
