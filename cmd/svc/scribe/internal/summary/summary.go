// Package summary derives a structured free-text summary from a transcript
// using a chat completion service.
package summary

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voicescribe/backend/libs/errors"
	"github.com/voicescribe/backend/libs/golog"
)

// Unavailable is the sentinel summary returned to callers when the
// summarization service could not produce one. Results carrying it are never
// persisted so a retry can re-attempt summarization.
const Unavailable = "Summary unavailable."

const instructions = `You summarize meeting and interview transcripts. Respond with exactly four labeled sections, each as free-form text:

Summary:
Participants:
Key Points:
Action Items:

Write "None identified." under any section the transcript gives no information for. Do not add other sections or commentary.`

// Summarizer produces a summary for a transcript. The hint is optional
// caller-provided context passed through to the model.
type Summarizer interface {
	Summarize(ctx context.Context, transcript, hint string) (string, error)
}

// chatCompleter is the subset of the OpenAI client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type summarizer struct {
	client     chatCompleter
	model      string
	maxRetries int
	retryDelay time.Duration
}

// New returns a Summarizer that calls the provided chat completion client.
// Transient failures are retried with capped exponential backoff.
func New(client chatCompleter, model string) Summarizer {
	return &summarizer{
		client:     client,
		model:      model,
		maxRetries: 2,
		retryDelay: time.Second,
	}
}

func (s *summarizer) Summarize(ctx context.Context, transcript, hint string) (string, error) {
	if transcript == "" {
		return "", errors.New("summary: empty transcript")
	}
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: instructions,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userMessage(transcript, hint),
			},
		},
	}

	delay := s.retryDelay
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			golog.Warningf("Retrying summarization after error: %s", lastErr)
			select {
			case <-ctx.Done():
				return "", errors.Trace(ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
		res, err := s.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if len(res.Choices) == 0 {
			lastErr = errors.New("summary: completion returned no choices")
			continue
		}
		text := strings.TrimSpace(res.Choices[0].Message.Content)
		if text == "" {
			lastErr = errors.New("summary: completion returned empty text")
			continue
		}
		return text, nil
	}
	return "", errors.Trace(lastErr)
}

func userMessage(transcript, hint string) string {
	b := &strings.Builder{}
	if hint != "" {
		b.WriteString("Context from the uploader: ")
		b.WriteString(hint)
		b.WriteString("\n\n")
	}
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)
	return b.String()
}
