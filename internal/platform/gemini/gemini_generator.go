package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/phrazzld/genjobs/internal/config"
	"github.com/phrazzld/genjobs/internal/generation"
	"github.com/phrazzld/genjobs/internal/platform/logger"
	"google.golang.org/genai"
)

// contentClient is the subset of the genai client used by the generator.
type contentClient interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator implements the generation.Generator interface using
// Google's Gemini API.
type GeminiGenerator struct {
	logger *slog.Logger
	config config.LLMConfig
	client contentClient

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

var _ generation.Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newGenerator(client.Models, logger, cfg)
}

func newGenerator(client contentClient, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiGenerator{
		logger: logger.With(slog.String("component", "gemini"), slog.String("model", cfg.ModelName)),
		config: cfg,
		client: client,
		sleep:  sleepContext,
	}, nil
}

// Generate implements generation.Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req generation.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	log := logger.FromContextOrDefault(ctx, g.logger).With(slog.String("purpose", req.Purpose))

	contents := genai.Text(promptText(req))
	cfg := g.contentConfig(req)

	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	// Generate runs on many workers at once; *rand.Rand is not goroutine safe.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		log.Debug("calling Gemini", slog.Int("attempt", attempt+1), slog.Int("max_attempts", maxRetries+1))

		resp, err := g.client.GenerateContent(ctx, g.config.ModelName, contents, cfg)
		if err == nil {
			text, perr := responseText(resp)
			if perr != nil {
				log.Warn("permanent Gemini failure", slog.String("error", perr.Error()))
				return "", perr
			}
			log.Debug("Gemini call succeeded", slog.Int("attempt", attempt+1), slog.Int("chars", len(text)))
			return text, nil
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		log.Warn("Gemini call failed", slog.Int("attempt", attempt+1), slog.String("error", err.Error()))
		if attempt >= maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		delay := g.backoff(rng, attempt)
		if err := g.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

func (g *GeminiGenerator) contentConfig(req generation.Request) *genai.GenerateContentConfig {
	temperature := g.config.Temperature
	cfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	return cfg
}

// backoff returns baseDelay * 2^attempt scaled by a jitter factor in [0.5, 1).
func (g *GeminiGenerator) backoff(rng *rand.Rand, attempt int) time.Duration {
	base := g.config.RetryDelaySeconds
	if base < 1 {
		base = 1
	}
	seconds := float64(base) * math.Pow(2, float64(attempt))
	jitter := 0.5 + rng.Float64()*0.5
	return time.Duration(seconds * jitter * float64(time.Second))
}

func promptText(req generation.Request) string {
	if req.MaxWords > 0 {
		return fmt.Sprintf("%s\n\nRespond in at most %d words.", req.Prompt, req.MaxWords)
	}
	return req.Prompt
}

// responseText extracts the first candidate's text.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%w: no candidates", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: response has no text", generation.ErrInvalidResponse)
	}
	return text, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errors.Join(generation.ErrTransientFailure, ctx.Err())
	}
}
