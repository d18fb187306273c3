package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/sift/models"
	"github.com/mohammad-safakhou/sift/provider"
)

const defaultBaseURL = "https://api.openai.com/v1"

const relevanceSystemPrompt = `You are an expert AI researcher and editor for a high-signal AI industry digest.
Your job is to evaluate if a piece of content is relevant to AI/GenAI professionals.

Input: Title, Source, Content
Output: JSON with "label", "confidence_score" (0.0-1.0), and "reason".

Allowed Labels:
- FOUNDATION_MODELS
- MULTIMODAL_AI
- AGENTIC_AI
- LLM_INFRASTRUCTURE
- AI_SAFETY_POLICY
- APPLIED_GENAI
- IRRELEVANT

Rules:
1. "IRRELEVANT" if it's general tech news, crypto, web3, or basic tutorials.
2. "IRRELEVANT" if confidence < 0.75.
3. Be strict. Only high-quality research or significant news.
Respond ONLY with valid JSON. Do not include any other text.`

const synthesisSystemPrompt = `You are an expert AI editor.
Synthesize the provided content into a concise insight digest for messaging delivery.

Input: Title, Body
Output: JSON with:
- "headline" (max 120 chars, catchy but factual)
- "tldr" (max 3 sentences)
- "highlights" (list of 3-5 strings)
- "why_it_matters" (1 sentence)

Style: neutral, factual, high-signal. No jargon unless necessary. No emojis.
Respond ONLY with valid JSON. Do not include any other text.`

const critiqueSystemPrompt = `You are a strict quality reviewer for an AI news digest.
Given the original source snippet and a generated summary, judge whether the
summary is faithful, free of hype, and worth sending.

Output: JSON with:
- "score" (integer 0-10, 10 = publish as-is)
- "reason" (1 sentence)
- "flag" (one of OK, HALLUCINATION, HYPE, SPAM)
Respond ONLY with valid JSON. Do not include any other text.`

// client implements provider.Provider using OpenAI's API
type client struct {
	apiKey          string
	baseURL         string
	completionModel string
	embeddingModel  string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a new OpenAI-backed provider
func NewClient(apiKey, baseURL, completionModel, embeddingModel string, temperature float64, maxTokens int, timeout time.Duration) provider.Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &client{
		apiKey:          apiKey,
		baseURL:         strings.TrimRight(baseURL, "/"),
		completionModel: completionModel,
		embeddingModel:  embeddingModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// Classify labels an item's relevance per the digest contract.
func (c *client) Classify(ctx context.Context, in provider.ClassifyInput) (provider.Classification, error) {
	user := fmt.Sprintf("Title: %s\nSource: %s\nContent: %s", in.Title, in.Source, truncate(in.BodySnippet, 2000))
	raw, err := c.sendChat(ctx, relevanceSystemPrompt, user, 0.0)
	if err != nil {
		return provider.Classification{}, err
	}
	var out provider.Classification
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return provider.Classification{}, fmt.Errorf("failed to parse classification: %w", err)
	}
	if _, ok := models.KnownLabels[out.Label]; !ok {
		return provider.Classification{}, fmt.Errorf("classifier returned unknown label %q", out.Label)
	}
	return out, nil
}

// Summarize produces the headline/tldr/highlights digest entry.
func (c *client) Summarize(ctx context.Context, in provider.SummarizeInput) (provider.Summary, error) {
	user := fmt.Sprintf("Title: %s\nBody: %s", in.Title, truncate(in.BodySnippet, 4000))
	raw, err := c.sendChat(ctx, synthesisSystemPrompt, user, 0.3)
	if err != nil {
		return provider.Summary{}, err
	}
	var out provider.Summary
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return provider.Summary{}, fmt.Errorf("failed to parse summary: %w", err)
	}
	return out, nil
}

// Critique scores a generated summary against its source snippet.
func (c *client) Critique(ctx context.Context, in provider.CritiqueInput) (provider.Critique, error) {
	user := fmt.Sprintf("Original: %s\n\nHeadline: %s\nTLDR: %s",
		truncate(in.OriginalSnippet, 2000), in.Headline, in.TLDR)
	raw, err := c.sendChat(ctx, critiqueSystemPrompt, user, 0.0)
	if err != nil {
		return provider.Critique{}, err
	}
	var out provider.Critique
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return provider.Critique{}, fmt.Errorf("failed to parse critique: %w", err)
	}
	if out.Score < 0 || out.Score > 10 {
		return provider.Critique{}, fmt.Errorf("critique score out of range: %d", out.Score)
	}
	return out, nil
}

// Embed generates an embedding vector for the given text.
func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	requestBody := map[string]interface{}{
		"model": c.embeddingModel,
		"input": truncate(text, 8000),
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var openaiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(openaiResp.Data) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return openaiResp.Data[0].Embedding, nil
}

// sendChat sends a JSON-mode chat completion request.
func (c *client) sendChat(ctx context.Context, system, user string, temperature float64) (string, error) {
	requestBody := chatRequest{
		Model: c.completionModel,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var openaiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(openaiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return openaiResp.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
