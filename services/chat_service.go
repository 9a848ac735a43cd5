package services

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ecoalerta/chat-backend/models"
)

// imageContextSeparator joins the user's message and the image description
// in the retrieval query.
const imageContextSeparator = " IMAGEM: "

// ChatService interface defines the operations behind the chat endpoints.
type ChatService interface {
	HandleMessage(ctx context.Context, req models.ChatRequest) (*models.ChatResult, error)
}

// chatServiceImpl holds the long-lived collaborators shared by all requests.
type chatServiceImpl struct {
	qa          QAPipeline
	describer   ImageDescriber
	citationKey CitationKeyFunc
}

// NewChatService creates the chat service. describer may be nil, in which
// case requests carrying an image are rejected with ErrVisionDisabled.
func NewChatService(qa QAPipeline, describer ImageDescriber, citationKey CitationKeyFunc) ChatService {
	if citationKey == nil {
		citationKey = CitationKeyByText
	}
	return &chatServiceImpl{
		qa:          qa,
		describer:   describer,
		citationKey: citationKey,
	}
}

// HandleMessage implements ChatService
func (s *chatServiceImpl) HandleMessage(ctx context.Context, req models.ChatRequest) (*models.ChatResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	image, err := ParseImage(req.ImagePayload())
	if err != nil {
		return nil, err
	}

	var imageContext string
	if image != nil {
		if s.describer == nil {
			return nil, ErrVisionDisabled
		}
		imageContext, err = s.describer.DescribeImage(ctx, image)
		if err != nil {
			return nil, fmt.Errorf("could not describe image: %w", err)
		}
		log.Printf("SERVICE: Image described in %d characters", len(imageContext))
	}

	query := BuildQuery(req.Message, imageContext)
	log.WithField("assistant", req.AssistantName).Printf("SERVICE: Querying retrieval QA with: '%s'", query)

	qaResult, err := s.qa.Answer(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not answer query: %w", err)
	}

	sources := DedupCitations(ToCitations(qaResult.SourceDocuments), s.citationKey)
	log.Printf("SERVICE: Answer ready with %d sources (%d retrieved)", len(sources), len(qaResult.SourceDocuments))

	return &models.ChatResult{
		Query:   query,
		Text:    qaResult.Text,
		Sources: sources,
	}, nil
}

// BuildQuery combines the user's message with the description of an attached
// image. Without a description the message is used verbatim.
func BuildQuery(message, imageContext string) string {
	if imageContext == "" {
		return message
	}
	return message + imageContextSeparator + imageContext
}
