// Package telegram is a small client for the Telegram Bot API methods the
// worker needs: sendMessage, sendPhoto and getUpdates.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL      = "https://api.telegram.org"
	defaultTimeout      = 30 * time.Second
	defaultPhotoTimeout = 60 * time.Second

	ParseModeHTML = "HTML"
)

// Client calls the Bot API for a single bot token
type Client struct {
	httpClient  *http.Client
	photoClient *http.Client
	token       string
	baseURL     string
}

type Options struct {
	BaseURL      string
	Timeout      time.Duration
	PhotoTimeout time.Duration
}

func NewClient(token string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.PhotoTimeout <= 0 {
		opts.PhotoTimeout = defaultPhotoTimeout
	}
	return &Client{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		photoClient: &http.Client{Timeout: opts.PhotoTimeout},
		token:       token,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Configured reports whether a bot token is set
func (c *Client) Configured() bool {
	return c.token != ""
}

// --- API types ---

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
}

type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// APIError is a non-OK Bot API reply
type APIError struct {
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error: %s (status: %d, code: %d)", e.Description, e.StatusCode, e.ErrorCode)
}

// IsRetryable reports whether err may succeed on a later attempt. Transport
// failures, 429 and 5xx are retryable; other 4xx replies mean the request
// itself is wrong.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

// --- Methods ---

// SendMessage sends text to chatID. chatID may be a numeric id or @username.
func (c *Client) SendMessage(ctx context.Context, chatID, text, parseMode string) (*Message, error) {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var msg Message
	if err := c.call(ctx, c.httpClient, "sendMessage", "application/json", bytes.NewReader(body), &msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &msg, nil
}

// SendPhoto uploads the image at photoPath as a multipart form
func (c *Client) SendPhoto(ctx context.Context, chatID, photoPath, caption string) (*Message, error) {
	f, err := os.Open(photoPath)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", chatID); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if caption != "" {
		w.WriteField("caption", caption)
		w.WriteField("parse_mode", ParseModeHTML)
	}
	part, err := w.CreateFormFile("photo", filepath.Base(photoPath))
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}

	var msg Message
	if err := c.call(ctx, c.photoClient, "sendPhoto", w.FormDataContentType(), &buf, &msg); err != nil {
		return nil, fmt.Errorf("send photo: %w", err)
	}
	return &msg, nil
}

// GetUpdates returns pending updates starting at offset (0 for all)
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	payload := map[string]interface{}{"timeout": 0}
	if offset != 0 {
		payload["offset"] = offset
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var updates []Update
	if err := c.call(ctx, c.httpClient, "getUpdates", "application/json", bytes.NewReader(body), &updates); err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}
	return updates, nil
}

func (c *Client) call(ctx context.Context, httpClient *http.Client, method, contentType string, body io.Reader, result interface{}) error {
	if c.token == "" {
		return errors.New("bot token not configured")
	}
	startTime := time.Now()

	log.Debug().Str("method", method).Msg("Telegram API request")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	httpResp, err := httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Str("method", method).Dur("duration", duration).Msg("Telegram API request failed")
		// the URL carries the token; report only the cause
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Str("method", method).Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Telegram API response")

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		if httpResp.StatusCode >= 400 {
			return &APIError{StatusCode: httpResp.StatusCode, Description: truncate(string(raw), 200)}
		}
		return fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(raw), 200))
	}

	if !resp.OK || httpResp.StatusCode >= 400 {
		status := httpResp.StatusCode
		if status < 400 {
			status = resp.ErrorCode
		}
		return &APIError{StatusCode: status, ErrorCode: resp.ErrorCode, Description: resp.Description}
	}

	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("parse result: %w", err)
		}
	}
	return nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
