package services

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/ecoalerta/chat-backend/models"
)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type fakeLLM struct {
	mu     sync.Mutex
	answer string
	err    error
	calls  [][]llms.MessageContent
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.answer}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

// lastPrompt joins the text parts of the most recent call.
func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, msg := range f.calls[len(f.calls)-1] {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				sb.WriteString(text.Text)
			}
		}
	}
	return sb.String()
}

type fakeRetriever struct {
	docs    []schema.Document
	err     error
	queries []string
}

func (f *fakeRetriever) GetRelevantDocuments(_ context.Context, query string) ([]schema.Document, error) {
	f.queries = append(f.queries, query)
	return f.docs, f.err
}

type fakeQA struct {
	result  *models.QAResult
	err     error
	queries []string
}

func (f *fakeQA) Answer(_ context.Context, query string) (*models.QAResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeDescriber struct {
	description string
	err         error
	images      []*models.ImageInput
}

func (f *fakeDescriber) DescribeImage(_ context.Context, image *models.ImageInput) (string, error) {
	f.images = append(f.images, image)
	return f.description, f.err
}
