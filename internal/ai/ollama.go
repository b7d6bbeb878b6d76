package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

const systemPrompt = "You are the portal's AI assistant. " +
	"Answer the user's questions concisely and helpfully. " +
	"If you do not know something, say so honestly."

// OllamaEngine talks to a local Ollama server through langchaingo.
type OllamaEngine struct {
	llm        *ollama.LLM
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOllamaEngine(baseURL, model string) (*OllamaEngine, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: 60 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
		},
	}

	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	return &OllamaEngine{
		llm:        llm,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: httpClient,
	}, nil
}

// StreamChat sends the conversation to the model and relays each produced
// token through onChunk, ending with a done chunk.
func (e *OllamaEngine) StreamChat(ctx context.Context, message string, history []Turn, onChunk func(Chunk) error) error {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt))
	for _, turn := range history {
		role := schema.ChatMessageTypeHuman
		if turn.Role == "assistant" {
			role = schema.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, message))

	_, err := e.llm.GenerateContent(ctx, messages,
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onChunk(Chunk{Content: string(chunk)})
		}),
	)
	if err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}
	return onChunk(Chunk{Done: true})
}

// Status probes the Ollama tags endpoint and checks the configured model is
// present. Failures degrade to an unreachable report, never an error.
func (e *OllamaEngine) Status(ctx context.Context) *Status {
	status := &Status{Model: e.model}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return status
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return status
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return status
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return status
	}

	status.Reachable = true
	for _, m := range tags.Models {
		if strings.Contains(m.Name, e.model) {
			status.ModelLoaded = true
			break
		}
	}
	return status
}
