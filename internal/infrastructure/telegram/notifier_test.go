package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"BookmarkScanner/internal/config"
)

func TestPublishDigestPostsForm(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		texts []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("chat_id") != "42" || r.PostForm.Get("parse_mode") != "Markdown" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		mu.Lock()
		texts = append(texts, r.PostForm.Get("text"))
		mu.Unlock()
	}))
	defer server.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "TOKEN", ChatID: "42"}, server.Client()).WithAPIBase(server.URL)
	if err := n.PublishDigest(context.Background(), "*Bookmark batch:* 1 analysed"); err != nil {
		t.Fatalf("PublishDigest returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 1 || texts[0] != "*Bookmark batch:* 1 analysed" {
		t.Fatalf("unexpected texts: %q", texts)
	}
}

func TestPublishDigestErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "T", ChatID: "1"}, server.Client()).WithAPIBase(server.URL)
	if err := n.PublishDigest(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for 400 response")
	}

	if err := NewNotifier(config.TelegramConfig{}, nil).PublishDigest(context.Background(), "hi"); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestSplitKeepsChunksWithinLimit(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("line of digest text\n", 50) + strings.Repeat("x", 25)
	chunks := split(text, 100)

	if strings.Join(chunks, "") != text {
		t.Fatal("chunks do not reassemble the input")
	}
	for _, c := range chunks {
		if utf8.RuneCountInString(c) > 100 {
			t.Fatalf("chunk too long: %d", utf8.RuneCountInString(c))
		}
	}
	if got := split("short", 100); len(got) != 1 {
		t.Fatalf("short text split into %d chunks", len(got))
	}
}
