package httpx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/pvasseur/streamsync/internal/errors"
	"github.com/pvasseur/streamsync/internal/retry"
)

func testClient(agents []string) *Client {
	return New(Config{
		UserAgents: agents,
		Retry: retry.Config{
			MaxAttempts:       len(agents),
			InitialBackoff:    1 * time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	})
}

func TestGetRetriesWithNextUserAgent(t *testing.T) {
	var mu sync.Mutex
	var agents []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		attempt := len(agents)
		mu.Unlock()

		if attempt == 1 {
			w.WriteHeader(512)
			w.Write([]byte("rate limit"))
			return
		}
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	client := testClient([]string{"agent-one", "agent-two", "agent-three"})

	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(resp.Body) != "payload" {
		t.Errorf("body = %q, want %q", resp.Body, "payload")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(agents) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(agents))
	}
	if agents[0] != "agent-one" || agents[1] != "agent-two" {
		t.Errorf("user agents = %v, expected rotation from agent-one to agent-two", agents)
	}
}

func TestGetBackoffGrowsBetweenAttempts(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(Config{
		UserAgents: []string{"a", "b", "c"},
		Retry: retry.Config{
			MaxAttempts:       3,
			InitialBackoff:    20 * time.Millisecond,
			MaxBackoff:        500 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	})

	_, err := client.Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(stamps) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(stamps))
	}
	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	if second <= first {
		t.Errorf("backoff did not grow: first gap %v, second gap %v", first, second)
	}
}

func TestGetDoesNotRetryNonRetryableStatus(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := testClient([]string{"a", "b"})

	_, err := client.Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if apperrors.StatusCode(err) != 404 {
		t.Errorf("status = %d, want 404", apperrors.StatusCode(err))
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for 404, got %d", attempts)
	}
}

func TestGetEmptyBodyIsDistinctError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient([]string{"a"})

	_, err := client.Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for empty body")
	}
	if apperrors.GetErrorCode(err) != apperrors.CodeUpstreamEmpty {
		t.Errorf("code = %s, want %s", apperrors.GetErrorCode(err), apperrors.CodeUpstreamEmpty)
	}
}

func TestStreamEmptyBodyIsDistinctError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient([]string{"a"})

	_, err := client.Stream(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for empty body")
	}
	if apperrors.GetErrorCode(err) != apperrors.CodeUpstreamEmpty {
		t.Errorf("code = %s, want %s", apperrors.GetErrorCode(err), apperrors.CodeUpstreamEmpty)
	}
}

func TestStreamEmptyBodyIsRetried(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		first := attempts == 1
		mu.Unlock()

		if first {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer server.Close()

	client := testClient([]string{"a", "b"})

	body, err := client.Stream(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if string(data) != "#EXTM3U\n" {
		t.Errorf("body = %q, want %q", data, "#EXTM3U\n")
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestStreamDeliversFullBody(t *testing.T) {
	payload := strings.Repeat("#EXTINF:-1,Channel\nhttp://host/live/1.m3u8\n", 40)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	client := testClient([]string{"a"})

	body, err := client.Stream(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if string(data) != payload {
		t.Errorf("streamed body differs from payload: got %d bytes, want %d", len(data), len(payload))
	}
}

func TestDecodeTolerant(t *testing.T) {
	type container struct {
		Items map[string][]string `json:"items"`
	}

	t.Run("empty array literal decodes to empty container", func(t *testing.T) {
		var c container
		if err := DecodeTolerant([]byte("[]"), &c); err != nil {
			t.Fatalf("DecodeTolerant([]) error = %v", err)
		}
		if len(c.Items) != 0 {
			t.Errorf("expected empty container, got %v", c.Items)
		}
	})

	t.Run("regular object decodes normally", func(t *testing.T) {
		var c container
		if err := DecodeTolerant([]byte(`{"items":{"a":["b"]}}`), &c); err != nil {
			t.Fatalf("DecodeTolerant(object) error = %v", err)
		}
		if len(c.Items["a"]) != 1 {
			t.Errorf("expected decoded items, got %v", c.Items)
		}
	})

	t.Run("malformed payload is a decode error", func(t *testing.T) {
		var c container
		err := DecodeTolerant([]byte("{nope"), &c)
		if apperrors.GetErrorCode(err) != apperrors.CodeDecode {
			t.Errorf("code = %s, want %s", apperrors.GetErrorCode(err), apperrors.CodeDecode)
		}
	})

	t.Run("empty payload is an empty-response error", func(t *testing.T) {
		var c container
		err := DecodeTolerant(nil, &c)
		if apperrors.GetErrorCode(err) != apperrors.CodeUpstreamEmpty {
			t.Errorf("code = %s, want %s", apperrors.GetErrorCode(err), apperrors.CodeUpstreamEmpty)
		}
	})
}
