package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"nyaysakhi/api/internal/chat"
	"nyaysakhi/api/internal/rbac"
	"nyaysakhi/api/internal/search"
	"nyaysakhi/api/internal/store"
)

type ChatInput struct {
	Message    string         `json:"message"`
	History    []chat.Message `json:"history"`
	DocumentID string         `json:"documentId"`
}

// Chat answers a question using the closest FAQs, and the caller's document
// when one is referenced.
func (s *Service) Chat(ctx context.Context, session Session, input ChatInput) (chat.Reply, error) {
	if !s.Can(session.Role, rbac.ActionChat) {
		return chat.Reply{}, errForbidden()
	}
	message, err := chat.Validate(input.Message)
	if err != nil {
		return chat.Reply{}, domainError(http.StatusBadRequest, "INVALID_MESSAGE", strings.TrimPrefix(err.Error(), "chat: "), nil)
	}

	summary := ""
	if documentID := strings.TrimSpace(input.DocumentID); documentID != "" {
		document, err := s.visibleDocument(ctx, session, documentID)
		if err != nil {
			return chat.Reply{}, err
		}
		if data, ok := decodeExtracted(document); ok {
			summary = data.Summary()
		}
	}

	return s.assistant.Answer(ctx, chat.Request{
		Message:         message,
		History:         chat.TrimHistory(input.History),
		FAQs:            s.contextFAQs(ctx, message),
		DocumentSummary: summary,
	}), nil
}

// contextFAQs retrieves the entries handed to the assistant. Lookup failures
// only reduce the context.
func (s *Service) contextFAQs(ctx context.Context, message string) []chat.FAQ {
	response := s.search.Search(ctx, search.Query{Text: message, Index: search.IndexFAQs, Limit: chat.ContextFAQs})
	faqs, err := s.faqsForHits(ctx, response.Hits)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Warn("load chat context faqs", zap.Error(err))
		return nil
	}
	out := make([]chat.FAQ, 0, len(faqs))
	for _, faq := range faqs {
		out = append(out, chat.FAQ{ID: faq.ID, Question: faq.Question, Answer: faq.Answer})
	}
	return out
}
