package services

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// Default wording of the deployed assistant. Both can be replaced by files
// through configuration.
var (
	//go:embed prompts/vision_pt.txt
	defaultVisionPrompt string

	//go:embed prompts/qa_pt.tmpl
	defaultQATemplate string
)

// QA templates are rendered with these variables by the stuff-documents chain.
const (
	qaContextVar  = "context"
	qaQuestionVar = "question"
)

// LoadVisionPrompt returns the system instruction sent with every image.
func LoadVisionPrompt(path string) (string, error) {
	text := defaultVisionPrompt
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("could not read vision prompt %s: %w", path, err)
		}
		text = string(raw)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("vision prompt is empty")
	}
	return text, nil
}

// LoadQAPrompt returns the answer-generation template. The template uses Go
// template syntax and must reference {{.context}} and {{.question}}.
func LoadQAPrompt(path string) (prompts.PromptTemplate, error) {
	text := defaultQATemplate
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return prompts.PromptTemplate{}, fmt.Errorf("could not read QA prompt %s: %w", path, err)
		}
		text = string(raw)
	}

	for _, v := range []string{qaContextVar, qaQuestionVar} {
		if !strings.Contains(text, "{{."+v+"}}") {
			return prompts.PromptTemplate{}, fmt.Errorf("QA prompt must reference {{.%s}}", v)
		}
	}

	tmpl := prompts.NewPromptTemplate(text, []string{qaContextVar, qaQuestionVar})
	if _, err := tmpl.Format(map[string]any{qaContextVar: "", qaQuestionVar: ""}); err != nil {
		return prompts.PromptTemplate{}, fmt.Errorf("invalid QA prompt template: %w", err)
	}
	return tmpl, nil
}
