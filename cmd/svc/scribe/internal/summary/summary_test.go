package summary

import (
	"context"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voicescribe/backend/libs/errors"
	"github.com/voicescribe/backend/test"
)

type fakeCompleter struct {
	reqs     []openai.ChatCompletionRequest
	failures int
	text     string
	err      error
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.failures > 0 {
		f.failures--
		return openai.ChatCompletionResponse{}, errors.New("upstream unavailable")
	}
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.text}},
		},
	}, nil
}

func newTestSummarizer(c chatCompleter) *summarizer {
	return &summarizer{client: c, model: "gpt-4o-mini", maxRetries: 2, retryDelay: time.Millisecond}
}

func TestSummarize(t *testing.T) {
	fc := &fakeCompleter{text: "Summary:\nA standup.\n\nParticipants:\nAlice, Bob\n\nKey Points:\n- status\n\nAction Items:\n- follow up"}
	s := newTestSummarizer(fc)

	out, err := s.Summarize(context.Background(), "we met and talked", "team standup")
	test.OK(t, err)
	for _, section := range []string{"Summary:", "Participants:", "Key Points:", "Action Items:"} {
		test.Assert(t, strings.Contains(out, section), "expected section %q in %q", section, out)
	}

	test.Equals(t, 1, len(fc.reqs))
	req := fc.reqs[0]
	test.Equals(t, 2, len(req.Messages))
	test.Equals(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	for _, section := range []string{"Summary:", "Participants:", "Key Points:", "Action Items:"} {
		test.Assert(t, strings.Contains(req.Messages[0].Content, section), "expected %q in instructions", section)
	}
	test.Assert(t, strings.Contains(req.Messages[1].Content, "team standup"), "expected hint in user message")
	test.Assert(t, strings.Contains(req.Messages[1].Content, "we met and talked"), "expected transcript in user message")
}

func TestSummarizeRetries(t *testing.T) {
	fc := &fakeCompleter{failures: 2, text: "Summary: ok"}
	s := newTestSummarizer(fc)

	out, err := s.Summarize(context.Background(), "transcript", "")
	test.OK(t, err)
	test.Equals(t, "Summary: ok", out)
	test.Equals(t, 3, len(fc.reqs))
}

func TestSummarizeExhaustsRetries(t *testing.T) {
	fc := &fakeCompleter{failures: 3}
	s := newTestSummarizer(fc)

	_, err := s.Summarize(context.Background(), "transcript", "")
	test.Assert(t, err != nil, "expected error after exhausting retries")
	test.Equals(t, 3, len(fc.reqs))
}

func TestSummarizeEmptyTranscript(t *testing.T) {
	s := newTestSummarizer(&fakeCompleter{})
	if _, err := s.Summarize(context.Background(), "", ""); err == nil {
		t.Error("Expected error for empty transcript")
	}
}
