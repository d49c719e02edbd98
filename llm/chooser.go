package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/sceneflow/internal/tlsutil"
	"github.com/BaSui01/sceneflow/llm/tokenizer"
	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/types"
)

const instrumentationName = "github.com/BaSui01/sceneflow/llm"

// httpTimeout bounds a single API call; the decision timeout usually fires first.
const httpTimeout = 30 * time.Second

// Metrics receives one record per chooser call.
type Metrics interface {
	RecordChooserRequest(model, status string, duration time.Duration, promptTokens, completionTokens int)
}

type nopMetrics struct{}

func (nopMetrics) RecordChooserRequest(string, string, time.Duration, int, int) {}

// Config configures the OpenAI-compatible chooser.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	// RateLimit is requests per second; <= 0 disables limiting.
	RateLimit         float64
	RateBurst         int
	PromptTokenBudget int
	PromptMessages    int
}

// Chooser asks an OpenAI-compatible chat endpoint to pick a scene.
// It makes exactly one request per call; the caller owns the deadline.
type Chooser struct {
	client  *openai.Client
	config  Config
	prompt  *PromptBuilder
	limiter *rate.Limiter
	metrics Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
}

// Option customizes a Chooser.
type Option func(*Chooser)

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Chooser) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTokenizer overrides the prompt tokenizer.
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(c *Chooser) {
		c.prompt = NewPromptBuilder(t, c.config.PromptTokenBudget, c.config.PromptMessages)
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc openai.HTTPDoer) Option {
	return func(c *Chooser) {
		cfg := clientConfig(c.config)
		cfg.HTTPClient = hc
		c.client = openai.NewClientWithConfig(cfg)
	}
}

func clientConfig(cfg Config) openai.ClientConfig {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = tlsutil.SecureHTTPClient(httpTimeout)
	return oc
}

// NewChooser creates a chooser.
func NewChooser(cfg Config, logger *zap.Logger, opts ...Option) (*Chooser, error) {
	if cfg.Model == "" {
		return nil, errors.New("llm: model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 50
	}

	c := &Chooser{
		client:  openai.NewClientWithConfig(clientConfig(cfg)),
		config:  cfg,
		metrics: nopMetrics{},
		tracer:  otel.Tracer(instrumentationName),
		logger:  logger.With(zap.String("component", "llm_chooser"), zap.String("model", cfg.Model)),
	}
	c.prompt = NewPromptBuilder(tokenizer.ForModel(cfg.Model, logger), cfg.PromptTokenBudget, cfg.PromptMessages)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ director.Chooser = (*Chooser)(nil)

// ChooseScene implements director.Chooser.
func (c *Chooser) ChooseScene(ctx context.Context, req director.Request) (code string, err error) {
	ctx, span := c.tracer.Start(ctx, "llm.choose_scene",
		trace.WithAttributes(
			attribute.String("group.id", req.GroupID),
			attribute.String("llm.model", c.config.Model),
			attribute.Int("chooser.candidates", len(req.Candidates)),
		))
	start := time.Now()
	var promptTokens, completionTokens int
	defer func() {
		status := "success"
		if err != nil {
			status = string(types.GetErrorCode(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("chooser.answer", code))
		}
		c.metrics.RecordChooserRequest(c.config.Model, status, time.Since(start), promptTokens, completionTokens)
		span.End()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", classify(ctx, "rate limit wait", err)
		}
	}

	p, err := c.prompt.Build(req)
	if err != nil {
		return "", types.NewError(types.ErrChooserFailed, "build prompt").WithCause(err)
	}
	promptTokens = p.Tokens

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		Temperature: float32(c.config.Temperature),
		MaxTokens:   c.config.MaxTokens,
	})
	if err != nil {
		return "", classify(ctx, "chat completion", err)
	}
	if resp.Usage.PromptTokens > 0 {
		promptTokens = resp.Usage.PromptTokens
	}
	completionTokens = resp.Usage.CompletionTokens

	if len(resp.Choices) == 0 {
		return "", types.NewError(types.ErrChooserOutput, "empty response: no choices")
	}
	answer := resp.Choices[0].Message.Content
	code, err = ParseChoice(answer)
	if err != nil {
		c.logger.Warn("unparseable chooser answer",
			zap.String("group_id", req.GroupID),
			zap.String("answer", truncate(answer, 200)),
			zap.Error(err))
		return "", err
	}

	c.logger.Debug("chooser answered",
		zap.String("group_id", req.GroupID),
		zap.String("code", code),
		zap.Int("prompt_messages", p.Messages),
		zap.Int("prompt_tokens", promptTokens))
	return code, nil
}

// classify maps transport failures to chooser error codes.
func classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.NewError(types.ErrChooserTimeout, op+" timed out").WithCause(err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return types.Errorf(types.ErrChooserFailed, "%s: status %d", op, apiErr.HTTPStatusCode).
			WithCause(err).
			WithRetryable(apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500)
	}
	return types.NewError(types.ErrChooserFailed, op).WithCause(err)
}

// FirstCandidate is an offline chooser that always picks the first
// candidate. Candidates arrive ranked, so this follows the catalog order.
type FirstCandidate struct{}

var _ director.Chooser = FirstCandidate{}

// ChooseScene implements director.Chooser.
func (FirstCandidate) ChooseScene(_ context.Context, req director.Request) (string, error) {
	if len(req.Candidates) == 0 {
		return director.NoScene, nil
	}
	return req.Candidates[0].Code, nil
}
