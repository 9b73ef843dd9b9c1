package answer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bull/lexrag/internal/llm"
	"github.com/bull/lexrag/internal/retriever"
)

// TestTruncateContent verifies truncation works correctly for very long content.
func TestTruncateContent(t *testing.T) {
	g := &Generator{maxTokens: DefaultMaxTokens, logger: discardLogger()}

	longContent := strings.Repeat("This is a test content. ", 4000) // ~100k chars

	truncated := g.truncateContent(longContent)

	expectedMaxChars := DefaultMaxTokens * 4
	if len(truncated) != expectedMaxChars {
		t.Errorf("Expected truncated length %d, got %d", expectedMaxChars, len(truncated))
	}
	if !strings.HasPrefix(longContent, truncated) {
		t.Error("Truncated content should be a prefix of original content")
	}
}

// TestTruncateContent_Short verifies short content is not truncated.
func TestTruncateContent_Short(t *testing.T) {
	g := &Generator{maxTokens: DefaultMaxTokens, logger: discardLogger()}

	shortContent := strings.Repeat("Short. ", 140)

	if truncated := g.truncateContent(shortContent); truncated != shortContent {
		t.Error("Short content should not be truncated")
	}
}

// TestTruncateContent_CustomMaxTokens verifies custom max tokens setting.
func TestTruncateContent_CustomMaxTokens(t *testing.T) {
	g := NewGenerator(nil, "", discardLogger(), 1000)

	content := strings.Repeat("Content. ", 1000) // ~9000 chars

	truncated := g.truncateContent(content)
	if len(truncated) != 4000 {
		t.Errorf("Expected truncated length %d, got %d", 4000, len(truncated))
	}
}

func TestBuildContext(t *testing.T) {
	got := buildContext([]retriever.ScoredDocument{
		{Title: "Fruits", Text: "Apples are red."},
		{Title: "Colors", Text: "Red is warm."},
	})
	want := "[1] Fruits\nApples are red.\n\n[2] Colors\nRed is warm."
	if got != want {
		t.Errorf("buildContext() = %q, want %q", got, want)
	}
}

func TestGenerate(t *testing.T) {
	var request struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &request); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": " Apples can be red [1]. "}}]
		}`)
	}))
	defer srv.Close()

	client, err := llm.NewClient("sk-test", srv.URL+"/")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	g := NewGenerator(client, "", discardLogger())
	got, err := g.Generate(context.Background(), "red apples", []retriever.ScoredDocument{
		{ID: "2", Title: "Fruits", Text: "Apples can be red or green."},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Apples can be red [1]." {
		t.Errorf("Generate() = %q", got)
	}
	if request.Model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", request.Model)
	}
	if len(request.Messages) != 2 || request.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages: %+v", request.Messages)
	}
	if !strings.Contains(request.Messages[1].Content, "Question: red apples") {
		t.Errorf("user prompt missing question: %q", request.Messages[1].Content)
	}
}

func TestGenerate_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":0,"model":"gpt-4o","choices":[]}`)
	}))
	defer srv.Close()

	client, err := llm.NewClient("sk-test", srv.URL+"/")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = NewGenerator(client, "", discardLogger()).Generate(context.Background(), "q", nil)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
