package cloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGroqLLMParsesToolCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message": map[string]interface{}{
						"content": "",
						"tool_calls": []map[string]interface{}{
							{"function": map[string]string{"name": "get_temperature", "arguments": `{"room":"kitchen"}`}},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	l := &GroqLLM{apiKey: "k", url: server.URL, model: "m"}
	result, err := l.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: "user", Content: "how warm is it"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ToolCall == nil {
		t.Fatal("expected a tool call")
	}
	if result.ToolCall.Name != "get_temperature" {
		t.Fatalf("expected get_temperature, got %s", result.ToolCall.Name)
	}
	if result.ToolCall.Arguments["room"] != "kitchen" {
		t.Fatalf("expected room=kitchen, got %v", result.ToolCall.Arguments)
	}
}

func TestGroqLLMParsesTextReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "it's sunny"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	l := &GroqLLM{apiKey: "k", url: server.URL, model: "m"}
	result, err := l.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: "user", Content: "weather?"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ToolCall != nil {
		t.Fatal("expected no tool call")
	}
	if result.Text != "it's sunny" {
		t.Fatalf("expected text reply, got %q", result.Text)
	}
}

func TestGoogleLLMParsesFunctionCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"parts": []map[string]interface{}{
							{"functionCall": map[string]interface{}{
								"name": "get_sensors",
								"args": map[string]string{},
							}},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	l := &GoogleLLM{apiKey: "k", url: server.URL, model: "gemini-1.5-flash"}
	result, err := l.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: "user", Content: "list sensors"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ToolCall == nil || result.ToolCall.Name != "get_sensors" {
		t.Fatalf("expected get_sensors tool call, got %+v", result)
	}
}

func TestGoogleLLMParsesTextReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"parts": []map[string]interface{}{{"text": "it's mild today"}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	l := &GoogleLLM{apiKey: "k", url: server.URL, model: "gemini-1.5-flash"}
	result, err := l.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: "user", Content: "weather?"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ToolCall != nil {
		t.Fatal("expected no tool call")
	}
	if result.Text != "it's mild today" {
		t.Fatalf("expected text reply, got %q", result.Text)
	}
}
