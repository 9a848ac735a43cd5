package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"github.com/ecoalerta/chat-backend/models"
)

// Keys used by langchaingo's RetrievalQA chain.
const (
	qaInputKey          = "query"
	qaOutputKey         = "text"
	qaSourceDocumentKey = "source_documents"
)

// QAPipeline answers a query from the search index.
type QAPipeline interface {
	Answer(ctx context.Context, query string) (*models.QAResult, error)
}

// RetrievalQAPipeline retrieves documents for the query, stuffs them into a
// prompt and asks the language model for an answer.
type RetrievalQAPipeline struct {
	chain chains.RetrievalQA
}

// NewRetrievalQAPipeline builds the pipeline. A nil prompt selects the
// chain's built-in QA prompt.
func NewRetrievalQAPipeline(llm llms.Model, retriever schema.Retriever, prompt *prompts.PromptTemplate) *RetrievalQAPipeline {
	var combine chains.Chain
	if prompt == nil {
		combine = chains.LoadStuffQA(llm)
	} else {
		combine = chains.NewStuffDocuments(chains.NewLLMChain(llm, *prompt))
	}

	qa := chains.NewRetrievalQA(combine, retriever)
	qa.ReturnSourceDocuments = true
	return &RetrievalQAPipeline{chain: qa}
}

func (p *RetrievalQAPipeline) Answer(ctx context.Context, query string) (*models.QAResult, error) {
	out, err := chains.Call(ctx, p.chain, map[string]any{qaInputKey: query})
	if err != nil {
		return nil, fmt.Errorf("retrieval QA failed: %w", err)
	}

	text, ok := out[qaOutputKey].(string)
	if !ok {
		return nil, fmt.Errorf("retrieval QA returned no %q output", qaOutputKey)
	}
	docs, _ := out[qaSourceDocumentKey].([]schema.Document)

	log.Debugf("SERVICE-HELPER: Retrieval QA used %d source documents", len(docs))
	return &models.QAResult{Text: text, SourceDocuments: docs}, nil
}
