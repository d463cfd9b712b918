package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// GroqLLM completes chat turns via Groq's OpenAI-compatible endpoint:
// a standard chat-completions request/response shape, extended with an
// OpenAI-style "tools" array and function_call parsing so the scheduler
// can route a single tool call back through the executor.
type GroqLLM struct {
	apiKey string
	url    string
	model  string
}

func NewGroqLLM(apiKey, model string) *GroqLLM {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return &GroqLLM{apiKey: apiKey, url: "https://api.groq.com/openai/v1/chat/completions", model: model}
}

func (l *GroqLLM) Name() string { return "groq-llm" }

type openAIToolFunc struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIToolFunc `json:"function"`
}

func toOpenAITools(schemas []ToolSchema) []openAITool {
	if len(schemas) == 0 {
		return nil
	}
	out := make([]openAITool, 0, len(schemas))
	for _, s := range schemas {
		props := make(map[string]interface{}, len(s.Parameters))
		for _, p := range s.Parameters {
			props[p] = map[string]string{"type": "string"}
		}
		out = append(out, openAITool{
			Type: "function",
			Function: openAIToolFunc{
				Name:        s.Name,
				Description: s.Description,
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": props,
				},
			},
		})
	}
	return out
}

func (l *GroqLLM) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	payload := map[string]interface{}{
		"model":    l.model,
		"messages": req.Messages,
	}
	if tools := toOpenAITools(req.Tools); tools != nil {
		payload["tools"] = tools
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return CompletionResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", l.url, bytes.NewReader(body))
	if err != nil {
		return CompletionResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return CompletionResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return CompletionResult{}, fmt.Errorf("groq llm error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return CompletionResult{}, err
	}
	if len(result.Choices) == 0 {
		return CompletionResult{}, fmt.Errorf("no choices returned from groq")
	}

	msg := result.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		var args map[string]string
		_ = json.Unmarshal([]byte(msg.ToolCalls[0].Function.Arguments), &args)
		return CompletionResult{ToolCall: &ToolCall{Name: msg.ToolCalls[0].Function.Name, Arguments: args}}, nil
	}
	return CompletionResult{Text: msg.Content}, nil
}

// AnthropicLLM completes chat turns via Anthropic's Messages API,
// with Anthropic-shaped tool_use blocks parsed back into a ToolCall.
type AnthropicLLM struct {
	apiKey string
	url    string
	model  string
}

func NewAnthropicLLM(apiKey, model string) *AnthropicLLM {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &AnthropicLLM{apiKey: apiKey, url: "https://api.anthropic.com/v1/messages", model: model}
}

func (l *AnthropicLLM) Name() string { return "anthropic-llm" }

func (l *AnthropicLLM) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	var system string
	var messages []map[string]string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
	}

	payload := map[string]interface{}{
		"model":      l.model,
		"messages":   messages,
		"max_tokens": 1024,
	}
	if system != "" {
		payload["system"] = system
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]interface{}, 0, len(req.Tools))
		for _, s := range req.Tools {
			props := make(map[string]interface{}, len(s.Parameters))
			for _, p := range s.Parameters {
				props[p] = map[string]string{"type": "string"}
			}
			tools = append(tools, map[string]interface{}{
				"name":        s.Name,
				"description": s.Description,
				"input_schema": map[string]interface{}{
					"type":       "object",
					"properties": props,
				},
			})
		}
		payload["tools"] = tools
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return CompletionResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", l.url, bytes.NewReader(body))
	if err != nil {
		return CompletionResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", l.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return CompletionResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return CompletionResult{}, fmt.Errorf("anthropic llm error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Content []struct {
			Type  string            `json:"type"`
			Text  string            `json:"text"`
			Name  string            `json:"name"`
			Input map[string]string `json:"input"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return CompletionResult{}, err
	}
	for _, block := range result.Content {
		if block.Type == "tool_use" {
			return CompletionResult{ToolCall: &ToolCall{Name: block.Name, Arguments: block.Input}}, nil
		}
	}
	if len(result.Content) == 0 {
		return CompletionResult{}, fmt.Errorf("no content returned from anthropic")
	}
	return CompletionResult{Text: result.Content[0].Text}, nil
}

// OpenAILLM completes chat turns via OpenAI's chat-completions endpoint,
// sharing GroqLLM's tools/function_call handling since both speak the
// same OpenAI wire shape.
type OpenAILLM struct {
	apiKey string
	url    string
	model  string
}

func NewOpenAILLM(apiKey, model string) *OpenAILLM {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAILLM{apiKey: apiKey, url: "https://api.openai.com/v1/chat/completions", model: model}
}

func (l *OpenAILLM) Name() string { return "openai-llm" }

func (l *OpenAILLM) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	payload := map[string]interface{}{
		"model":    l.model,
		"messages": req.Messages,
	}
	if tools := toOpenAITools(req.Tools); tools != nil {
		payload["tools"] = tools
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return CompletionResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", l.url, bytes.NewReader(body))
	if err != nil {
		return CompletionResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return CompletionResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return CompletionResult{}, fmt.Errorf("openai llm error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return CompletionResult{}, err
	}
	if len(result.Choices) == 0 {
		return CompletionResult{}, fmt.Errorf("no choices returned from openai")
	}

	msg := result.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		var args map[string]string
		_ = json.Unmarshal([]byte(msg.ToolCalls[0].Function.Arguments), &args)
		return CompletionResult{ToolCall: &ToolCall{Name: msg.ToolCalls[0].Function.Name, Arguments: args}}, nil
	}
	return CompletionResult{Text: msg.Content}, nil
}

// GoogleLLM completes chat turns via the Gemini generateContent
// endpoint: a `contents` list of `{role, parts:[{text}]}`, an optional
// `tools` array of `{functionDeclarations:[{name, description,
// parameters}]}`, and a response walked via
// `candidates[0].content.parts[0]` where a `functionCall` part becomes
// a ToolCall and a `text` part becomes the reply.
type GoogleLLM struct {
	apiKey string
	url    string
	model  string
}

func NewGoogleLLM(apiKey, model string) *GoogleLLM {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GoogleLLM{
		apiKey: apiKey,
		url:    "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":generateContent",
		model:  model,
	}
}

func (l *GoogleLLM) Name() string { return "google-llm" }

type googlePart struct {
	Text         string                 `json:"text,omitempty"`
	FunctionCall *googleFunctionCall    `json:"functionCall,omitempty"`
}

type googleFunctionCall struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args"`
}

type googleContent struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googleFunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

func toGoogleTools(schemas []ToolSchema) []map[string]interface{} {
	if len(schemas) == 0 {
		return nil
	}
	decls := make([]googleFunctionDeclaration, 0, len(schemas))
	for _, s := range schemas {
		var params map[string]interface{}
		if len(s.Parameters) > 0 {
			props := make(map[string]interface{}, len(s.Parameters))
			for _, p := range s.Parameters {
				props[p] = map[string]string{"type": "STRING"}
			}
			params = map[string]interface{}{"type": "OBJECT", "properties": props}
		}
		decls = append(decls, googleFunctionDeclaration{Name: s.Name, Description: s.Description, Parameters: params})
	}
	return []map[string]interface{}{{"functionDeclarations": decls}}
}

func (l *GoogleLLM) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	var contents []googleContent
	for _, m := range req.Messages {
		role := m.Role
		switch role {
		case "system":
			// Gemini has no universal system role across models; send
			// the system text as its own user turn in place.
			role = "user"
		case "assistant":
			role = "model"
		case "tool":
			role = "user"
		}
		contents = append(contents, googleContent{Role: role, Parts: []googlePart{{Text: m.Content}}})
	}

	payload := map[string]interface{}{"contents": contents}
	if tools := toGoogleTools(req.Tools); tools != nil {
		payload["tools"] = tools
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return CompletionResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", l.url+"?key="+l.apiKey, bytes.NewReader(body))
	if err != nil {
		return CompletionResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return CompletionResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return CompletionResult{}, fmt.Errorf("google llm error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []googlePart `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return CompletionResult{}, err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return CompletionResult{}, fmt.Errorf("no response from google llm")
	}

	part := result.Candidates[0].Content.Parts[0]
	if part.FunctionCall != nil {
		return CompletionResult{ToolCall: &ToolCall{Name: part.FunctionCall.Name, Arguments: part.FunctionCall.Args}}, nil
	}
	return CompletionResult{Text: part.Text}, nil
}
