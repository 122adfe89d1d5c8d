package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newTestClient creates a Client pointing at a test HTTP server.
func newTestClient(server *httptest.Server) *Client {
	return &Client{
		httpClient:  server.Client(),
		photoClient: server.Client(),
		token:       "test-token",
		baseURL:     server.URL,
	}
}

func writeResult(w http.ResponseWriter, result interface{}) {
	raw, _ := json.Marshal(result)
	json.NewEncoder(w).Encode(apiResponse{OK: true, Result: raw})
}

func TestSendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["chat_id"] != "4242" || body["parse_mode"] != "HTML" {
			t.Errorf("unexpected body: %v", body)
		}
		writeResult(w, Message{MessageID: 7, Chat: Chat{ID: 4242}})
	}))
	defer server.Close()

	msg, err := newTestClient(server).SendMessage(context.Background(), "4242", "<b>hi</b>", ParseModeHTML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.MessageID != 7 || msg.Chat.ID != 4242 {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestSendMessageAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(apiResponse{OK: false, ErrorCode: 400, Description: "Bad Request: chat not found"})
	}))
	defer server.Close()

	_, err := newTestClient(server).SendMessage(context.Background(), "@nobody", "hi", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 400 || !strings.Contains(apiErr.Description, "chat not found") {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if IsRetryable(err) {
		t.Error("400 must not be retryable")
	}
}

func TestSendPhotoMultipart(t *testing.T) {
	photo := filepath.Join(t.TempDir(), "frame_000001.jpg")
	os.WriteFile(photo, []byte{0xFF, 0xD8, 0xFF, 0xE0}, 0644)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendPhoto") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("chat_id") != "99" {
			t.Errorf("unexpected chat_id: %s", r.FormValue("chat_id"))
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			t.Fatalf("missing photo: %v", err)
		}
		data, _ := io.ReadAll(file)
		if header.Filename != "frame_000001.jpg" || len(data) != 4 {
			t.Errorf("unexpected upload %s (%d bytes)", header.Filename, len(data))
		}
		writeResult(w, Message{MessageID: 8})
	}))
	defer server.Close()

	if _, err := newTestClient(server).SendPhoto(context.Background(), "99", photo, "Frame 1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendPhotoMissingFile(t *testing.T) {
	client := NewClient("token", Options{BaseURL: "http://127.0.0.1:1"})
	_, err := client.SendPhoto(context.Background(), "1", filepath.Join(t.TempDir(), "missing.jpg"), "")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestGetUpdates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, []Update{
			{UpdateID: 1, Message: &Message{From: &User{Username: "Alice"}, Chat: Chat{ID: 11}}},
			{UpdateID: 2},
		})
	}))
	defer server.Close()

	updates, err := newTestClient(server).GetUpdates(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 2 || updates[0].Message.Chat.ID != 11 {
		t.Errorf("unexpected updates %+v", updates)
	}
}

func TestCallWithoutToken(t *testing.T) {
	if _, err := NewClient("", Options{}).SendMessage(context.Background(), "1", "x", ""); err == nil {
		t.Error("expected error without a bot token")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{&APIError{StatusCode: 400}, false},
		{&APIError{StatusCode: 403}, false},
		{&APIError{StatusCode: 429}, true},
		{&APIError{StatusCode: 502}, true},
		{fmt.Errorf("send message: %w", &APIError{StatusCode: 500}), true},
		{errors.New("connection reset"), true},
		{context.Canceled, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.expected {
			t.Errorf("IsRetryable(%v) = %v, expected %v", tt.err, got, tt.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	if truncate("abcdef", 3) != "abc..." || truncate("ab", 3) != "ab" {
		t.Error("unexpected truncate result")
	}
}
