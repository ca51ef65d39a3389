package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/pagewatch/pkg/domain"
)

func testAlert() domain.Alert {
	return domain.Alert{
		Keywords:   []string{"match", "announcement"},
		Title:      "Club news",
		URL:        "https://example.com/news",
		DetectedAt: time.Now(),
	}
}

func TestMessage(t *testing.T) {
	msg := Message(testAlert())
	assert.Equal(t, "🔔 The following keywords appeared on the website: announcement, match\n"+
		"📄 **Club news**\n🔗 https://example.com/news", msg)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatDiscord, f)

	f, err = ParseFormat(" TEXT ")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("telegram")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abcd", 3))
	assert.Equal(t, "żó…", truncate("żółć", 3))
	assert.Equal(t, "a", truncate("abc", 1))
}

func TestWebhook_Send(t *testing.T) {
	t.Run("discord payload", func(t *testing.T) {
		var got map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		wh := NewWebhook(WebhookConfig{URL: server.URL, Username: "pagewatch"})
		require.NoError(t, wh.Send(context.Background(), testAlert()))

		assert.Equal(t, Message(testAlert()), got["content"])
		assert.Equal(t, "pagewatch", got["username"])
		embeds := got["embeds"].([]any)
		require.Len(t, embeds, 1)
		embed := embeds[0].(map[string]any)
		assert.Equal(t, "Keywords detected", embed["title"])
		assert.Equal(t, "announcement, match", embed["description"])
		assert.Equal(t, "https://example.com/news", embed["url"])
		assert.Equal(t, map[string]any{"parse": []any{}}, got["allowed_mentions"])
	})

	t.Run("text payload", func(t *testing.T) {
		var body []byte
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var err error
			body, err = io.ReadAll(r.Body)
			require.NoError(t, err)
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		wh := NewWebhook(WebhookConfig{URL: server.URL, Format: FormatText})
		require.NoError(t, wh.Send(context.Background(), testAlert()))

		var got map[string]string
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, map[string]string{"text": Message(testAlert())}, got)
	})

	t.Run("long content truncated for discord", func(t *testing.T) {
		var got discordPayload
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		}))
		defer server.Close()

		alert := testAlert()
		alert.Title = strings.Repeat("ł", 3000)
		require.NoError(t, NewWebhook(WebhookConfig{URL: server.URL}).Send(context.Background(), alert))
		assert.Equal(t, discordContentLimit, utf8.RuneCountInString(got.Content))
		assert.True(t, strings.HasSuffix(got.Content, "…"))
	})

	t.Run("non-2xx is notify error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message": "Invalid Webhook Token"}` + "\n"))
		}))
		defer server.Close()

		err := NewWebhook(WebhookConfig{URL: server.URL}).Send(context.Background(), testAlert())
		require.Error(t, err)
		var ne *domain.NotifyError
		require.True(t, errors.As(err, &ne))
		assert.Equal(t, http.StatusBadRequest, ne.StatusCode)
		assert.Equal(t, `{"message": "Invalid Webhook Token"}`, ne.Body)
	})

	t.Run("transport error", func(t *testing.T) {
		err := NewWebhook(WebhookConfig{URL: "http://localhost:99999/hook"}).Send(context.Background(), testAlert())
		require.Error(t, err)
		var ne *domain.NotifyError
		require.True(t, errors.As(err, &ne))
		assert.Zero(t, ne.StatusCode)
	})

	t.Run("transport error hides webhook url", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		hookURL := "http://" + listener.Addr().String() + "/api/webhooks/123/SECRET-TOKEN"
		require.NoError(t, listener.Close())

		err = NewWebhook(WebhookConfig{URL: hookURL}).Send(context.Background(), testAlert())
		require.Error(t, err)
		var ne *domain.NotifyError
		require.True(t, errors.As(err, &ne))
		assert.Contains(t, err.Error(), "post request")
		assert.NotContains(t, err.Error(), "SECRET-TOKEN")
		assert.NotContains(t, err.Error(), hookURL)
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		err := NewWebhook(WebhookConfig{URL: server.URL + "/SECRET-TOKEN", Timeout: 50 * time.Millisecond}).Send(context.Background(), testAlert())
		require.Error(t, err)
		var ne *domain.NotifyError
		assert.True(t, errors.As(err, &ne))
		assert.NotContains(t, err.Error(), "SECRET-TOKEN")
	})

	t.Run("bad url", func(t *testing.T) {
		err := NewWebhook(WebhookConfig{URL: "http://exa mple.com/SECRET-TOKEN"}).Send(context.Background(), testAlert())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create request")
		assert.NotContains(t, err.Error(), "SECRET-TOKEN")
	})
}

func TestNewWebhook_Defaults(t *testing.T) {
	wh := NewWebhook(WebhookConfig{URL: "http://example.com"})
	assert.Equal(t, FormatDiscord, wh.format)
	assert.Equal(t, DefaultTimeout, wh.client.Timeout)
}
