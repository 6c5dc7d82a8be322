package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/cliprelay/internal/remote"
	"github.com/GriffinCanCode/cliprelay/internal/resilience"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// chatServer records requests and answers with the number of user messages.
type chatServer struct {
	mu       sync.Mutex
	requests []chatRequest
	fail     int
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.requests = append(s.requests, req)
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":"c","object":"chat.completion","created":0,"model":%q,"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"translated %d"}}]}`,
		req.Model, len(req.Messages)-1)
}

func newTestClient(t *testing.T, srv *httptest.Server, limit int) *Client {
	t.Helper()
	api, err := remote.NewClient(remote.Config{Name: "openai", APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	caller := remote.NewCaller("openai").WithRetry(resilience.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	return NewClient(api, caller, "English", Options{HistoryLimit: limit})
}

func TestClientSendsPromptAndHistory(t *testing.T) {
	cs := &chatServer{}
	srv := httptest.NewServer(cs)
	defer srv.Close()
	c := newTestClient(t, srv, 0)

	for i := 1; i <= 2; i++ {
		got, err := c.Translate(context.Background(), fmt.Sprintf("segment %d", i))
		if err != nil {
			t.Fatalf("Translate() = %v", err)
		}
		if want := fmt.Sprintf("translated %d", i); got != want {
			t.Errorf("Translate() = %q, want %q", got, want)
		}
	}

	req := cs.requests[1]
	if req.Model != DefaultModel || req.Temperature != DefaultTemperature {
		t.Errorf("model, temperature = %q, %v", req.Model, req.Temperature)
	}
	if req.Messages[0].Role != "system" || req.Messages[0].Content != SystemPrompt("English") {
		t.Errorf("first message = %+v, want system prompt", req.Messages[0])
	}
	if !strings.Contains(req.Messages[0].Content, "to English.") {
		t.Error("system prompt should name the target language")
	}
	if len(req.Messages) != 3 || req.Messages[1].Content != "segment 1" || req.Messages[2].Content != "segment 2" {
		t.Errorf("messages = %+v, want system + 2 segments", req.Messages)
	}
	for _, m := range req.Messages[1:] {
		if m.Role != "user" {
			t.Errorf("history role = %q, want user", m.Role)
		}
	}
}

func TestHistoryWindow(t *testing.T) {
	cs := &chatServer{}
	srv := httptest.NewServer(cs)
	defer srv.Close()
	c := newTestClient(t, srv, DefaultHistoryLimit)

	for i := 1; i <= 15; i++ {
		if _, err := c.Translate(context.Background(), fmt.Sprintf("s%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	last := cs.requests[len(cs.requests)-1]
	if got := len(last.Messages) - 1; got != DefaultHistoryLimit {
		t.Errorf("segments sent = %d, want %d", got, DefaultHistoryLimit)
	}
	if last.Messages[1].Content != "s6" || last.Messages[len(last.Messages)-1].Content != "s15" {
		t.Errorf("window = %s..%s, want s6..s15", last.Messages[1].Content, last.Messages[len(last.Messages)-1].Content)
	}
	if c.History().Len() != DefaultHistoryLimit-1 {
		t.Errorf("history after reply = %d, want %d", c.History().Len(), DefaultHistoryLimit-1)
	}
}

func TestFailedTranslationKeepsSegment(t *testing.T) {
	cs := &chatServer{fail: 1}
	srv := httptest.NewServer(cs)
	defer srv.Close()
	c := newTestClient(t, srv, 0)

	if _, err := c.Translate(context.Background(), "lost"); err == nil {
		t.Fatal("Translate() = nil, want error")
	}
	if _, err := c.Translate(context.Background(), "next"); err != nil {
		t.Fatal(err)
	}
	if got := len(cs.requests[0].Messages); got != 3 {
		t.Errorf("messages = %d, want system + both segments", got)
	}
}

func TestHistoryAddAndSettle(t *testing.T) {
	h := NewHistory(3)
	h.Add("a")
	h.Add("b")
	h.Add("c")
	if got := h.Add("d"); strings.Join(got, "") != "bcd" {
		t.Errorf("Add() window = %v, want [b c d]", got)
	}
	h.Settle()
	if h.Len() != 2 {
		t.Errorf("Len() after Settle = %d, want 2", h.Len())
	}
	if got := h.Add("e"); strings.Join(got, "") != "cde" {
		t.Errorf("Add() window = %v, want [c d e]", got)
	}
}

type fakeTranslator struct {
	reply string
	err   error
	seen  []string
}

func (f *fakeTranslator) Translate(_ context.Context, text string) (string, error) {
	f.seen = append(f.seen, text)
	return f.reply, f.err
}

func (f *fakeTranslator) Language() string { return "en" }

func TestStageWritesTranslation(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "translations")
	src := filepath.Join(in, "1700000000000.txt")
	if err := os.WriteFile(src, []byte("hej\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ft := &fakeTranslator{reply: "hello"}
	s := NewStage(ft, out)
	var res Result
	s.OnResult = func(r Result) { res = r }

	if err := s.Handle(context.Background(), src); err != nil {
		t.Fatalf("Handle() = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(out, "1700000000000_en.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("translation = %q", data)
	}
	if ft.seen[0] != "hej" {
		t.Errorf("translator got %q, want trimmed transcript", ft.seen[0])
	}
	if res.Source != "1700000000000.txt" || res.Text != "hello" {
		t.Errorf("result = %+v", res)
	}
}

func TestStageFailureWritesNothing(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	src := filepath.Join(in, "2.txt")
	_ = os.WriteFile(src, []byte("hej"), 0o644)

	boom := errors.New("down")
	s := NewStage(&fakeTranslator{err: boom}, out)
	var failed bool
	s.OnError = func(string, error) { failed = true }

	if err := s.Handle(context.Background(), src); !errors.Is(err, boom) {
		t.Fatalf("Handle() = %v, want %v", err, boom)
	}
	if !failed {
		t.Error("OnError not called")
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Error("failed translation should not produce a file")
	}
}

func TestOutputName(t *testing.T) {
	if got := OutputName("/t/1700.txt", "German"); got != "1700_German.txt" {
		t.Errorf("OutputName() = %q", got)
	}
}
