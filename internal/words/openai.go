package words

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

var ErrEmptyCompletion = errors.New("completion contained no word")

// OpenAI asks a chat-completions endpoint for a word.
type OpenAI struct {
	Client   *http.Client
	Endpoint string
	APIKey   string
	Model    string
}

func NewOpenAI(apiKey, model, endpoint string) *OpenAI {
	if endpoint == "" {
		endpoint = DefaultOpenAIEndpoint
	}
	return &OpenAI{
		Client:   &http.Client{Timeout: 15 * time.Second},
		Endpoint: endpoint,
		APIKey:   apiKey,
		Model:    model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func systemPrompt(req Request) string {
	return fmt.Sprintf(`You are a multilingual word generation assistant.
Generate a single %s word in %s with %d to %d letters (inclusive), suitable for a guessing game.
The word must be a single, common word (not a phrase or compound word), and should not contain numbers, special characters, or punctuation.
Exclude the following words: %s.
Output only the word, and nothing else.`,
		req.Difficulty, req.Language, MinLetters, MaxLetters, strings.Join(req.Exclude, ", "))
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(req)},
			{Role: "user", Content: fmt.Sprintf("Generate a single %s word in %s. Only return the word, no explanation.", req.Difficulty, req.Language)},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("openai status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	word := strings.Trim(strings.TrimSpace(out.Choices[0].Message.Content), `."'`)
	if word == "" {
		return "", ErrEmptyCompletion
	}
	return word, nil
}
