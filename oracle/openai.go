package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cadencevoice/callpipe/internal/tokens"
	"github.com/cadencevoice/callpipe/obs"
	"github.com/cadencevoice/callpipe/session"
)

const (
	defaultModel       = openai.GPT4oMini
	defaultTemperature = 0.6
	defaultMaxTokens   = 220

	maxAttempts   = 3
	retryBaseWait = 500 * time.Millisecond
)

// OpenAI is an Oracle backed by the chat completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	log         *slog.Logger
}

// OpenAIOption configures an OpenAI oracle.
type OpenAIOption func(*OpenAI)

// WithModel sets the chat model.
func WithModel(model string) OpenAIOption {
	return func(o *OpenAI) {
		o.model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) OpenAIOption {
	return func(o *OpenAI) {
		o.temperature = t
	}
}

// WithMaxTokens caps reply length.
func WithMaxTokens(n int) OpenAIOption {
	return func(o *OpenAI) {
		o.maxTokens = n
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) OpenAIOption {
	return func(o *OpenAI) {
		o.log = log
	}
}

// NewOpenAI creates an oracle from an API key.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	o := &OpenAI{
		client:      openai.NewClient(apiKey),
		model:       defaultModel,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewOpenAIWithClient creates an oracle from a preconfigured client, used for
// custom base URLs and tests.
func NewOpenAIWithClient(client *openai.Client, opts ...OpenAIOption) *OpenAI {
	o := &OpenAI{
		client:      client,
		model:       defaultModel,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Greeting implements Oracle.
func (o *OpenAI) Greeting(ctx context.Context, lead session.LeadInfo) (Reply, error) {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(lead)},
		{Role: openai.ChatMessageRoleUser, Content: "The call just connected. Greet the caller and ask how you can help."},
	}
	return o.complete(ctx, msgs)
}

// Respond implements Oracle.
func (o *OpenAI) Respond(ctx context.Context, lead session.LeadInfo, history []session.TranscriptEntry, userText string) (Reply, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(lead),
	})
	for _, entry := range history {
		role := openai.ChatMessageRoleUser
		if entry.Speaker == session.SpeakerAI {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: entry.Text})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userText})
	return o.complete(ctx, msgs)
}

// WarmUp implements Oracle. A one-token request opens the connection pool so
// the greeting does not pay TLS setup.
func (o *OpenAI) WarmUp(ctx context.Context) error {
	_, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ok"},
		},
	})
	if err != nil {
		o.log.Warn("oracle warm-up failed", "error", err)
	}
	return err
}

// complete runs the chat request with bounded retries. Waits grow
// exponentially with jitter so concurrent calls do not retry in lockstep.
func (o *OpenAI) complete(ctx context.Context, msgs []openai.ChatCompletionMessage) (Reply, error) {
	var lastErr error
	wait := retryBaseWait
	start := time.Now()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       o.model,
			Temperature: o.temperature,
			MaxTokens:   o.maxTokens,
			Messages:    msgs,
		})
		if err == nil {
			if len(resp.Choices) == 0 {
				return Reply{}, fmt.Errorf("oracle: empty completion")
			}
			obs.RecordOracleLatency(ctx, time.Since(start))
			o.log.Debug("oracle completion",
				"model", o.model,
				"attempt", attempt,
				"prompt_tokens_est", estimatePrompt(msgs),
				"latency_ms", time.Since(start).Milliseconds())
			return parseReply(resp.Choices[0].Message.Content), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		o.log.Warn("oracle request failed", "attempt", attempt, "error", err)
		if attempt < maxAttempts {
			jitter := time.Duration(rand.Int63n(int64(wait) / 4))
			select {
			case <-ctx.Done():
				return Reply{}, ctx.Err()
			case <-time.After(wait + jitter):
			}
			wait *= 2
		}
	}
	return Reply{}, fmt.Errorf("oracle: completion failed after %d attempts: %w", maxAttempts, lastErr)
}

func estimatePrompt(msgs []openai.ChatCompletionMessage) int {
	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Content
	}
	return tokens.EstimateTexts(texts...)
}

// systemPrompt frames the assistant for one call.
func systemPrompt(lead session.LeadInfo) string {
	var b strings.Builder
	b.WriteString("You are a friendly real estate assistant on a live phone call. ")
	b.WriteString("Keep replies short and conversational, one or two sentences, no lists or markup in speech. ")
	b.WriteString("When you need the caller's name, email, or phone number, ask them to spell or read it out, then confirm it back. ")
	b.WriteString("When you have captured a field, include it in a <data_extract>{...}</data_extract> block with keys like name, email, phone, preferences; the block is not spoken. ")
	b.WriteString("When the conversation is complete and you have said goodbye, append <end_call/>.\n\n")

	b.WriteString("Caller context:\n")
	fmt.Fprintf(&b, "- Name: %s\n", lead.Name)
	if lead.Phone != "" {
		fmt.Fprintf(&b, "- Phone: %s\n", lead.Phone)
	}
	if lead.Email != "" {
		fmt.Fprintf(&b, "- Email: %s\n", lead.Email)
	}
	if lead.AgentName != "" {
		fmt.Fprintf(&b, "- Their agent: %s\n", lead.AgentName)
	}
	if lead.PropertyAddress != "" {
		fmt.Fprintf(&b, "- Property of interest: %s\n", lead.PropertyAddress)
	}
	if lead.Source != "" {
		fmt.Fprintf(&b, "- Lead source: %s\n", lead.Source)
	}
	return b.String()
}
