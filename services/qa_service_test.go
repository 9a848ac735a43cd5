package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
)

func TestRetrievalQAPipelineWithTemplate(t *testing.T) {
	llm := &fakeLLM{answer: "Queimadas exigem autorização do órgão ambiental."}
	retriever := &fakeRetriever{docs: []schema.Document{
		{PageContent: "Art. 41. Provocar incêndio em mata ou floresta.", Metadata: map[string]any{"source": "lei9605"}},
		{PageContent: "Queima controlada depende de autorização.", Metadata: map[string]any{"source": "decreto"}},
	}}
	tmpl, err := LoadQAPrompt("")
	require.NoError(t, err)

	pipeline := NewRetrievalQAPipeline(llm, retriever, &tmpl)
	result, err := pipeline.Answer(context.Background(), "Posso queimar o pasto?")
	require.NoError(t, err)

	assert.Equal(t, "Queimadas exigem autorização do órgão ambiental.", result.Text)
	assert.Equal(t, retriever.docs, result.SourceDocuments)
	assert.Equal(t, []string{"Posso queimar o pasto?"}, retriever.queries)

	prompt := llm.lastPrompt()
	assert.Contains(t, prompt, "Pergunta: Posso queimar o pasto?")
	assert.Contains(t, prompt, "Art. 41. Provocar incêndio em mata ou floresta.")
	assert.Contains(t, prompt, "Queima controlada depende de autorização.")
	assert.Contains(t, prompt, "apenas diga que não sabe")
}

func TestRetrievalQAPipelineWithBuiltinPrompt(t *testing.T) {
	llm := &fakeLLM{answer: "answer"}
	retriever := &fakeRetriever{docs: []schema.Document{{PageContent: "context chunk"}}}

	pipeline := NewRetrievalQAPipeline(llm, retriever, nil)
	result, err := pipeline.Answer(context.Background(), "question?")
	require.NoError(t, err)

	assert.Equal(t, "answer", result.Text)
	require.Len(t, result.SourceDocuments, 1)
	prompt := llm.lastPrompt()
	assert.Contains(t, prompt, "context chunk")
	assert.Contains(t, prompt, "question?")
	assert.NotContains(t, prompt, "Pergunta:")
}

func TestRetrievalQAPipelineRetrieverFailure(t *testing.T) {
	boom := errors.New("index unreachable")
	llm := &fakeLLM{answer: "unused"}
	pipeline := NewRetrievalQAPipeline(llm, &fakeRetriever{err: boom}, nil)

	_, err := pipeline.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, llm.calls)
}

func TestRetrievalQAPipelineLLMFailure(t *testing.T) {
	boom := errors.New("model overloaded")
	pipeline := NewRetrievalQAPipeline(&fakeLLM{err: boom}, &fakeRetriever{}, nil)

	_, err := pipeline.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
}
