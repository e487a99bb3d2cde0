package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"minecraft-ai/internal/domain"
	"minecraft-ai/internal/infra"
)

const DefaultTextModel = "gemini-3-flash-preview"

type TextOptions struct {
	Model           string
	SystemPrompt    string
	Temperature     float32
	TopP            float32
	MaxOutputTokens int32
	// BaseURL overrides the API endpoint; empty uses the public Gemini API.
	BaseURL string
	Retry   infra.RetryConfig
}

func DefaultTextOptions() TextOptions {
	return TextOptions{
		Model:           DefaultTextModel,
		SystemPrompt:    domain.TextSystemPrompt,
		Temperature:     0.8,
		TopP:            0.9,
		MaxOutputTokens: 500,
		Retry:           infra.DefaultRetryConfig(),
	}
}

// Client answers typed prompts with a single generateContent call.
type Client struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
	retry  infra.RetryConfig
}

func NewClient(ctx context.Context, apiKey string, opts TextOptions) (*Client, error) {
	if opts.Model == "" {
		opts.Model = DefaultTextModel
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(opts.Temperature),
		TopP:            genai.Ptr(opts.TopP),
		MaxOutputTokens: opts.MaxOutputTokens,
	}
	if opts.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(opts.SystemPrompt)},
		}
	}

	return &Client{
		client: client,
		model:  opts.Model,
		config: cfg,
		retry:  opts.Retry,
	}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string, history []domain.ChatTurn) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, genai.NewContentFromText(turn.Content, roleOf(turn.Role)))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	var resp *genai.GenerateContentResponse
	err := infra.WithRetry(ctx, c.retry, func() error {
		var err error
		resp, err = c.client.Models.GenerateContent(ctx, c.model, contents, c.config)
		if err == nil {
			return nil
		}
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && !infra.IsRetryableHTTPStatus(apiErr.Code) {
			return infra.Permanent(fmt.Errorf("gemini API error %d: %s", apiErr.Code, apiErr.Message))
		}
		return fmt.Errorf("generating content: %w", err)
	})
	if err != nil {
		return "", err
	}

	return resp.Text(), nil
}

func roleOf(r domain.Role) genai.Role {
	if r == domain.RoleUser {
		return genai.RoleUser
	}
	return genai.RoleModel
}
