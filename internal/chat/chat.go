// Package chat answers legal questions using FAQ context and an optional
// OpenAI-compatible chat model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	MaxMessageChars = 2000
	MaxHistoryTurns = 10
	ContextFAQs     = 3

	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

var (
	ErrEmptyMessage   = errors.New("chat: message is required")
	ErrMessageTooLong = fmt.Errorf("chat: message exceeds %d characters", MaxMessageChars)
)

// GuidanceMessage is the reply when neither the model nor the FAQs can help.
const GuidanceMessage = "I could not find a specific answer to that. For advice on your situation, " +
	"please book a consultation with a lawyer from the directory, or contact your nearest District Legal Services Authority for free legal aid."

const systemPrompt = `You are Nyay Sakhi, an assistant that explains Indian law in plain language.
Answer briefly and accurately. Prefer the reference answers provided below when they apply.
You do not give formal legal advice; suggest consulting a lawyer for case-specific decisions.
Reply in the language the user writes in.`

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FAQ is a knowledge-base entry offered to the model as context.
type FAQ struct {
	ID       string
	Question string
	Answer   string
}

// Request is a validated chat request with its retrieved context.
type Request struct {
	Message         string
	History         []Message
	FAQs            []FAQ
	DocumentSummary string
}

// Reply is returned to the client.
type Reply struct {
	Reply    string   `json:"reply"`
	Sources  []string `json:"sources"`
	Model    string   `json:"model,omitempty"`
	Fallback bool     `json:"fallback"`
}

// Completer produces an assistant message from a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Model() string
}

type Assistant struct {
	completer Completer
	log       *zap.Logger
}

// NewAssistant returns an assistant. A nil completer answers from FAQs only.
func NewAssistant(completer Completer, log *zap.Logger) *Assistant {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assistant{completer: completer, log: log}
}

// Validate trims the message and checks its length.
func Validate(message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > MaxMessageChars {
		return "", ErrMessageTooLong
	}
	return message, nil
}

// TrimHistory keeps the last MaxHistoryTurns user or assistant turns with
// non-empty content.
func TrimHistory(history []Message) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != RoleUser && role != RoleAssistant {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		out = append(out, Message{Role: role, Content: content})
	}
	if len(out) > MaxHistoryTurns {
		out = out[len(out)-MaxHistoryTurns:]
	}
	return out
}

// Answer replies to req. It never fails: model errors fall back to the FAQs.
func (a *Assistant) Answer(ctx context.Context, req Request) Reply {
	faqs := req.FAQs
	if len(faqs) > ContextFAQs {
		faqs = faqs[:ContextFAQs]
	}
	sources := make([]string, 0, len(faqs))
	for _, f := range faqs {
		sources = append(sources, f.ID)
	}

	if a.completer != nil {
		text, err := a.completer.Complete(ctx, BuildMessages(req.Message, TrimHistory(req.History), faqs, req.DocumentSummary))
		if err == nil && strings.TrimSpace(text) != "" {
			return Reply{Reply: strings.TrimSpace(text), Sources: sources, Model: a.completer.Model()}
		}
		if err != nil {
			a.log.Warn("chat model failed, answering from faqs", zap.Error(err))
		}
	}

	if len(faqs) > 0 && strings.TrimSpace(faqs[0].Answer) != "" {
		return Reply{Reply: strings.TrimSpace(faqs[0].Answer), Sources: sources[:1], Fallback: true}
	}
	return Reply{Reply: GuidanceMessage, Sources: []string{}, Fallback: true}
}

// BuildMessages assembles the prompt: system instructions with reference
// material, then history, then the new message.
func BuildMessages(message string, history []Message, faqs []FAQ, documentSummary string) []Message {
	var system strings.Builder
	system.WriteString(systemPrompt)
	if len(faqs) > 0 {
		system.WriteString("\n\nReference answers:")
		for i, f := range faqs {
			fmt.Fprintf(&system, "\n%d. Q: %s\n   A: %s", i+1, strings.TrimSpace(f.Question), strings.TrimSpace(f.Answer))
		}
	}
	if s := strings.TrimSpace(documentSummary); s != "" {
		system.WriteString("\n\nThe user's document: ")
		system.WriteString(s)
	}

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: system.String()})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: message})
	return messages
}
