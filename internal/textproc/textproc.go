package textproc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Mode selects the post-processing applied to transcribed text
type Mode string

const (
	// ModeReformulate cleans the transcript up without changing meaning
	ModeReformulate Mode = "reformulate"
	// ModeTranslate translates the transcript to the target language
	ModeTranslate Mode = "translate"
)

// Config contains text post-processing configuration
type Config struct {
	// APIKey is the chat completion API credential
	APIKey string
	// BaseURL overrides the API base, for compatible servers and tests
	BaseURL string
	// Model is the chat model identifier
	Model string
	// Mode selects the processing applied
	Mode Mode
	// TargetLanguage is the translation target (ModeTranslate only)
	TargetLanguage string
	// RequestTimeout bounds one processing call
	RequestTimeout time.Duration
}

// Processor rewrites final transcripts through a chat completion API.
// Processing is best-effort: any failure returns the input unchanged so
// a transcript is never lost to a post-processing outage.
type Processor struct {
	config Config
	client *openai.Client
	logger *slog.Logger
}

// New creates a text processor
func New(config Config, logger *slog.Logger) (*Processor, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("textproc API key cannot be empty")
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Mode == "" {
		config.Mode = ModeReformulate
	}
	if config.Mode == ModeTranslate && config.TargetLanguage == "" {
		return nil, fmt.Errorf("target language cannot be empty in translate mode")
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Processor{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
	}, nil
}

// systemPrompt returns the instruction for the configured mode
func (p *Processor) systemPrompt() string {
	switch p.config.Mode {
	case ModeTranslate:
		return fmt.Sprintf("Translate the user's text to %s. "+
			"Reply with the translation only, no explanations.", p.config.TargetLanguage)
	default:
		return "The user's text is a raw speech-to-text transcript. " +
			"Fix punctuation, casing and obvious recognition errors without changing the meaning. " +
			"Reply with the corrected text only, no explanations."
	}
}

// Process rewrites one transcript. On any failure the input is
// returned unchanged.
func (p *Processor) Process(ctx context.Context, text string) string {
	if text == "" {
		return text
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	startTime := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		p.logger.Warn("Text processing failed, keeping original transcript",
			slog.String("mode", string(p.config.Mode)),
			slog.String("error", err.Error()),
		)
		return text
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		p.logger.Warn("Text processing returned no content, keeping original transcript",
			slog.String("mode", string(p.config.Mode)),
		)
		return text
	}

	p.logger.Debug("Text processing completed",
		slog.String("mode", string(p.config.Mode)),
		slog.Duration("elapsed", time.Since(startTime)),
	)
	return resp.Choices[0].Message.Content
}
