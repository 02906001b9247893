package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	chat "go-directchat/internal/pkg/chat/application/domain"
	"go-directchat/internal/pkg/chat/client"
)

// APIError is a non-2xx answer from the chat API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: status %d: %s", e.Status, e.Message)
}

// HTTPClient talks to the chat HTTP API. It is the Persistence port of the
// client core and also resolves conversations and history.
type HTTPClient struct {
	http *resty.Client
}

var _ client.Persistence = (*HTTPClient)(nil)

// NewHTTPClient builds a client for baseURL (scheme://host[:port]) using a bearer token.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &HTTPClient{http: c}
}

type conversationDTO struct {
	ID            string     `json:"id"`
	Participants  [2]string  `json:"participants"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

func (d conversationDTO) toDomain() chat.Conversation {
	return chat.Conversation{ID: d.ID, Participants: d.Participants, CreatedAt: d.CreatedAt, LastMessageAt: d.LastMessageAt}
}

type messageDTO struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

func (d messageDTO) toDomain() chat.StoredMessage {
	return chat.StoredMessage{ID: d.ID, ConversationID: d.ConversationID, SenderID: d.SenderID, Body: d.Body, CreatedAt: d.CreatedAt}
}

type errorDTO struct {
	Error string `json:"error"`
}

// AppendMessage persists a message. Every failure is a *chat.TransientDeliveryError.
func (c *HTTPClient) AppendMessage(ctx context.Context, conversationID, senderID, body string) (chat.StoredMessage, error) {
	var out messageDTO
	err := c.do(ctx, http.MethodPost, "/api/v1/conversations/"+url.PathEscape(conversationID)+"/messages",
		map[string]string{"sender_id": senderID, "body": body}, &out)
	if err != nil {
		return chat.StoredMessage{}, &chat.TransientDeliveryError{Op: "append message", Err: err}
	}
	return out.toDomain(), nil
}

// ResolveConversation returns the conversation of a and b, creating it if needed.
func (c *HTTPClient) ResolveConversation(ctx context.Context, a, b string) (chat.Conversation, error) {
	var out conversationDTO
	if err := c.do(ctx, http.MethodPost, "/api/v1/conversations",
		map[string]string{"senderId": a, "receiverId": b}, &out); err != nil {
		return chat.Conversation{}, err
	}
	return out.toDomain(), nil
}

// ListConversations returns userID's conversations, most recent activity first.
func (c *HTTPClient) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	var out struct {
		Conversations []conversationDTO `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversations/user/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	convs := make([]chat.Conversation, 0, len(out.Conversations))
	for _, d := range out.Conversations {
		convs = append(convs, d.toDomain())
	}
	return convs, nil
}

// GetMessages returns a history page, oldest first.
func (c *HTTPClient) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]chat.StoredMessage, error) {
	var out struct {
		Messages []messageDTO `json:"messages"`
	}
	path := "/api/v1/conversations/" + url.PathEscape(conversationID) + "/messages?limit=" +
		strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	msgs := make([]chat.StoredMessage, 0, len(out.Messages))
	for _, d := range out.Messages {
		msgs = append(msgs, d.toDomain())
	}
	return msgs, nil
}

// Presence returns the online snapshot.
func (c *HTTPClient) Presence(ctx context.Context) ([]string, error) {
	var out struct {
		Users []string `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/presence", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, result any) error {
	var apiErr errorDTO
	req := c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("chat api: %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		e := &APIError{Status: resp.StatusCode(), Message: apiErr.Error}
		if e.Message == "" {
			e.Message = resp.Status()
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			return fmt.Errorf("%w: %v", chat.ErrUnauthorized, e)
		}
		return e
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var e *APIError
	return errors.As(err, &e) && e.Status == status
}
