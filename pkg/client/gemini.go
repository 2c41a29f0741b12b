package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bobby-s-dev/species-archive/internal/config"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ErrEmptyGeneration is returned when the model answers with no text.
var ErrEmptyGeneration = errors.New("generator returned empty content")

// GenerateOptions mirrors the knobs the archive needs from the text model.
type GenerateOptions struct {
	SystemInstruction string
	JSONMode          bool
	Temperature       *float32
}

type GeminiConfig struct {
	APIKey     string
	TextModel  string
	ImageModel string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string
	// Zero leaves the call bounded only by the caller's context.
	TextTimeout  time.Duration
	ImageTimeout time.Duration
}

// GeminiClient is the generative source: narrative JSON and a synthesized
// photograph.
type GeminiClient struct {
	client     *genai.Client
	textModel  string
	imageModel string
	textTTL    time.Duration
	imageTTL   time.Duration
	logger     *zap.Logger
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", config.ErrConfigurationMissing)
	}
	if cfg.TextModel == "" {
		cfg.TextModel = "gemini-2.5-flash"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gemini-2.5-flash-image"
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:     client,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		textTTL:    cfg.TextTimeout,
		imageTTL:   cfg.ImageTimeout,
		logger:     logger,
	}, nil
}

// Generate runs one text completion. The caller must still tolerate
// non-JSON output even with JSONMode set.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: opts.Temperature,
	}
	if opts.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.SystemInstruction, genai.RoleUser)
	}
	if opts.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	ctx, cancel := withTimeout(ctx, c.textTTL)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx, c.textModel, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyGeneration
	}
	return text, nil
}

// GenerateImage returns the first inline image as a data URL. A model that
// declines or errors yields no image.
func (c *GeminiClient) GenerateImage(ctx context.Context, prompt string) (string, bool) {
	ctx, cancel := withTimeout(ctx, c.imageTTL)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx, c.imageModel, genai.Text(prompt), nil)
	if err != nil {
		c.logger.Warn("Image generation skipped", zap.Error(err))
		return "", false
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := part.InlineData.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(part.InlineData.Data)), true
	}
	return "", false
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
