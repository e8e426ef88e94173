package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"medcure.com/assistant/internal/config"
	"medcure.com/assistant/internal/metrics"
	"medcure.com/assistant/internal/store"
)

const (
	titlePrefixRunes = 50
	maxTitleRunes    = 255
)

// Retriever finds catalog records relevant to a question.
type Retriever interface {
	FindRelevantContent(ctx context.Context, question string, lang Language) ([]DetailedResult, error)
}

type ChatService struct {
	store     store.ConversationStore
	retriever Retriever
	completer Completer
	cfg       config.RetrievalConfig
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewChatService(st store.ConversationStore, retriever Retriever, completer Completer, cfg config.RetrievalConfig, logger *zap.Logger, m *metrics.Metrics) *ChatService {
	return &ChatService{
		store:     st,
		retriever: retriever,
		completer: completer,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
	}
}

type ChatResult struct {
	ConversationID     string         `json:"conversation_id"`
	UserMessageID      int64          `json:"user_message_id"`
	AssistantMessageID int64          `json:"assistant_message_id"`
	Answer             string         `json:"answer"`
	Sources            []store.Source `json:"sources"`
	Language           Language       `json:"language"`
	Model              string         `json:"model"`
}

type ConversationDetail struct {
	store.Conversation
	Messages []store.Message `json:"messages"`
}

// ProcessMessage answers question inside the given conversation, or a new
// one when conversationID is empty. The user message is stored before
// generation runs, so backend failures only affect the assistant reply.
func (s *ChatService) ProcessMessage(ctx context.Context, userID, question, conversationID string) (*ChatResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrQuestionRequired
	}
	lang := DetectLanguage(question)
	model := s.completer.Model()

	conv, err := s.resolveConversation(ctx, userID, question, conversationID, model)
	if err != nil {
		return nil, err
	}

	userMsg := &store.Message{ConversationID: conv.ID, Role: store.RoleUser, Content: question}
	if err := s.store.AppendMessage(ctx, userID, userMsg); err != nil {
		return nil, notFoundAs(err, "failed to store user message")
	}

	results, err := s.retriever.FindRelevantContent(ctx, question, lang)
	if err != nil {
		s.logger.Warn("retrieval failed, continuing without context",
			zap.String("conversation_id", conv.ID), zap.Error(err))
		results = nil
	}

	answer, fallback := s.answer(ctx, question, results, lang)

	sources := make([]store.Source, 0, len(results))
	if fallback == "" {
		for _, r := range results {
			sources = append(sources, r.Source(lang))
		}
	}

	metadata := map[string]any{
		"model":     model,
		"language":  string(lang),
		"retrieved": len(results),
	}
	if fallback != "" {
		metadata["fallback"] = fallback
	}
	reply := &store.Message{
		ConversationID: conv.ID,
		Role:           store.RoleAssistant,
		Content:        answer,
		Metadata:       metadata,
	}
	if len(sources) > 0 {
		reply.Sources = sources
	}
	if err := s.store.AppendMessage(ctx, userID, reply); err != nil {
		return nil, notFoundAs(err, "failed to store assistant message")
	}

	s.metrics.MessageProcessed(string(lang))
	s.logger.Info("message processed",
		zap.String("conversation_id", conv.ID),
		zap.String("language", string(lang)),
		zap.Int("sources", len(sources)),
		zap.String("fallback", fallback))

	return &ChatResult{
		ConversationID:     conv.ID,
		UserMessageID:      userMsg.ID,
		AssistantMessageID: reply.ID,
		Answer:             answer,
		Sources:            sources,
		Language:           lang,
		Model:              model,
	}, nil
}

func (s *ChatService) resolveConversation(ctx context.Context, userID, question, conversationID, model string) (*store.Conversation, error) {
	if conversationID == "" {
		conv := &store.Conversation{
			OwnerUserID: userID,
			Title:       titleFromQuestion(question),
			ModelUsed:   model,
		}
		if err := s.store.CreateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return conv, nil
	}

	conv, err := s.store.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, notFoundAs(err, "failed to load conversation")
	}
	return conv, nil
}

// answer returns the reply text and, when the reply is not a generated
// answer, the reason it fell back.
func (s *ChatService) answer(ctx context.Context, question string, results []DetailedResult, lang Language) (string, string) {
	if len(results) == 0 && !s.cfg.AnswerWithoutContext {
		return NoInformationAnswer(lang), "no_relevant_content"
	}

	prompt := BuildPrompt(question, BuildContext(results, lang), lang)
	answer, err := s.completer.Complete(ctx, prompt)
	if err == nil {
		return answer, ""
	}

	s.logger.Error("generation failed, replying with fallback", zap.Error(err))
	switch {
	case errors.Is(err, ErrGenerationNotConfigured):
		return FallbackAnswer(err, lang), "not_configured"
	case errors.Is(err, ErrEmptyCompletion):
		return FallbackAnswer(err, lang), "empty_completion"
	default:
		return FallbackAnswer(err, lang), "backend_unavailable"
	}
}

func (s *ChatService) GetConversations(ctx context.Context, userID string) ([]store.Conversation, error) {
	conversations, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

func (s *ChatService) GetConversation(ctx context.Context, conversationID, userID string) (*ConversationDetail, error) {
	conv, err := s.store.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, notFoundAs(err, "failed to get conversation")
	}
	messages, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages for conversation: %w", err)
	}
	return &ConversationDetail{Conversation: *conv, Messages: messages}, nil
}

func (s *ChatService) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	if err := s.store.DeleteConversation(ctx, conversationID, userID); err != nil {
		return notFoundAs(err, "failed to delete conversation")
	}
	return nil
}

func (s *ChatService) UpdateConversationTitle(ctx context.Context, conversationID, userID, title string) (*store.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleRunes {
		return nil, ErrInvalidTitle
	}
	if err := s.store.UpdateConversationTitle(ctx, conversationID, userID, title); err != nil {
		return nil, notFoundAs(err, "failed to update conversation title")
	}
	conv, err := s.store.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, notFoundAs(err, "failed to reload conversation")
	}
	return conv, nil
}

func (s *ChatService) TogglePinConversation(ctx context.Context, conversationID, userID string) (bool, error) {
	pinned, err := s.store.ToggleConversationPin(ctx, conversationID, userID)
	if err != nil {
		return false, notFoundAs(err, "failed to toggle conversation pin")
	}
	return pinned, nil
}

// titleFromQuestion keeps the first 50 runes of the question on one line.
func titleFromQuestion(question string) string {
	title := strings.Join(strings.Fields(question), " ")
	if utf8.RuneCountInString(title) <= titlePrefixRunes {
		return title
	}
	return string([]rune(title)[:titlePrefixRunes]) + "..."
}

func notFoundAs(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrConversationNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
