package bonzo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lead-responder/internal/domain"
)

const defaultBaseURL = "https://app.getbonzo.com/api/v3"

// HTTPStatusError captures non-2xx responses from the messaging API.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("bonzo: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type replyRequest struct {
	Message string `json:"message"`
}

// Client talks to the conversations and chat endpoints of the Bonzo v3 API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client authorised with the given bearer token.
func NewClient(token string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("bonzo: token must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListConversations returns the active conversations in provider order.
func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	raw, err := c.get(ctx, "/conversations")
	if err != nil {
		return nil, fmt.Errorf("bonzo: list conversations: %w", err)
	}
	convs, shape, err := normalize[domain.Conversation](raw, conversationPaths...)
	if err != nil {
		return nil, fmt.Errorf("bonzo: list conversations: %w", err)
	}
	if shape.Kind == Unrecognized {
		c.logger.Warn("conversations response has no usable collection", "bytes", len(raw))
	}
	for _, skipped := range shape.Skipped {
		c.logger.Warn("skipping undecodable conversation", "index", skipped.Index, "error", skipped.Err)
	}
	return convs, nil
}

// ListMessages returns the message history of a conversation, oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID domain.ID) ([]domain.Message, error) {
	if conversationID.Empty() {
		return nil, errors.New("bonzo: conversation id is required")
	}
	raw, err := c.get(ctx, "/conversations/"+url.PathEscape(conversationID.String()))
	if err != nil {
		return nil, fmt.Errorf("bonzo: list messages %s: %w", conversationID, err)
	}
	msgs, shape, err := normalize[domain.Message](raw, messagePaths...)
	if err != nil {
		return nil, fmt.Errorf("bonzo: list messages %s: %w", conversationID, err)
	}
	if shape.Kind == Unrecognized {
		c.logger.Debug("messages response has no usable collection", "conversation_id", conversationID.String())
	}
	for _, skipped := range shape.Skipped {
		c.logger.Warn("skipping undecodable message",
			"conversation_id", conversationID.String(), "index", skipped.Index, "error", skipped.Err)
	}
	return msgs, nil
}

// SendReply posts text into the conversation's chat. The response body is
// not inspected beyond its status.
func (c *Client) SendReply(ctx context.Context, conversationID domain.ID, text string) error {
	if conversationID.Empty() {
		return errors.New("bonzo: conversation id is required")
	}
	body, err := json.Marshal(replyRequest{Message: text})
	if err != nil {
		return fmt.Errorf("bonzo: marshal reply: %w", err)
	}
	endpoint := c.baseURL + "/chat/" + url.PathEscape(conversationID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("bonzo: create reply request: %w", err)
	}
	c.setHeaders(req)
	if _, err := c.do(req, endpoint); err != nil {
		return fmt.Errorf("bonzo: send reply %s: %w", conversationID, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	return c.do(req, endpoint)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	startedAt := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	c.logger.Debug("bonzo request completed",
		"method", req.Method,
		"path", req.URL.Path,
		"status", res.StatusCode,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        endpoint,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
