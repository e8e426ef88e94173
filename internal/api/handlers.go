package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"medcure.com/assistant/internal/auth"
	"medcure.com/assistant/internal/core"
	"medcure.com/assistant/internal/store"
)

type contextKey string

const userIDKey contextKey = "userID"

// ChatService is the conversation surface the handlers need.
type ChatService interface {
	ProcessMessage(ctx context.Context, userID, question, conversationID string) (*core.ChatResult, error)
	GetConversations(ctx context.Context, userID string) ([]store.Conversation, error)
	GetConversation(ctx context.Context, conversationID, userID string) (*core.ConversationDetail, error)
	DeleteConversation(ctx context.Context, conversationID, userID string) error
	UpdateConversationTitle(ctx context.Context, conversationID, userID, title string) (*store.Conversation, error)
	TogglePinConversation(ctx context.Context, conversationID, userID string) (bool, error)
}

// TokenValidator resolves a bearer token to the owner user id.
type TokenValidator interface {
	ValidateJWT(token string) (string, error)
}

type APIHandler struct {
	chatService ChatService
	tokens      TokenValidator
	logger      *zap.Logger
}

func NewAPIHandler(cs ChatService, tokens TokenValidator, logger *zap.Logger) *APIHandler {
	return &APIHandler{chatService: cs, tokens: tokens, logger: logger}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			http.Error(w, "Authorization header must be a bearer token", http.StatusUnauthorized)
			return
		}
		userID, err := h.tokens.ValidateJWT(tokenString)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				h.logger.Error("token validation failed", zap.Error(err))
			}
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, core.ErrConversationNotFound):
		http.Error(w, "Conversation not found", http.StatusNotFound)
	case errors.Is(err, core.ErrQuestionRequired), errors.Is(err, core.ErrInvalidTitle):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(msg,
			zap.String("user_id", userIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

type ChatRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.chatService.ProcessMessage(r.Context(), userIDFrom(r.Context()), req.Question, req.ConversationID)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to process message")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.chatService.GetConversations(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (h *APIHandler) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	detail, err := h.chatService.GetConversation(r.Context(), chi.URLParam(r, "conversationID"), userIDFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get conversation")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type UpdateConversationRequest struct {
	Title string `json:"title"`
}

func (h *APIHandler) UpdateConversationHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	conv, err := h.chatService.UpdateConversationTitle(r.Context(), chi.URLParam(r, "conversationID"), userIDFrom(r.Context()), req.Title)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to update conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *APIHandler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.DeleteConversation(r.Context(), chi.URLParam(r, "conversationID"), userIDFrom(r.Context())); err != nil {
		h.writeServiceError(w, r, err, "Failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) TogglePinHandler(w http.ResponseWriter, r *http.Request) {
	pinned, err := h.chatService.TogglePinConversation(r.Context(), chi.URLParam(r, "conversationID"), userIDFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to toggle pin")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"pinned": pinned})
}
