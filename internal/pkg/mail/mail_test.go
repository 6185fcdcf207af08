package mail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
)

func TestSendHTTPUsesBasicAuthForm(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{Enable: true, Endpoint: srv.URL, Domain: "mg.example.com", APIKey: "key-1", From: "blog@example.com"}, srv.Client())
	err := s.Send(context.Background(), Message{
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "hello",
		Text:    "plain",
		HTML:    "<p>rich</p>",
	})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/v3/mg.example.com/messages", got.URL.Path)
	user, pass, ok := got.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "api", user)
	assert.Equal(t, "key-1", pass)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got.PostForm["to"])
	assert.Equal(t, "plain", got.PostForm.Get("text"))
	assert.Equal(t, "<p>rich</p>", got.PostForm.Get("html"))
	assert.Equal(t, "blog@example.com", got.PostForm.Get("from"))
}

func TestSendHTTPFailureIsInternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden domain", http.StatusForbidden)
	}))
	defer srv.Close()

	s := New(Config{Enable: true, Endpoint: srv.URL, Domain: "d"}, srv.Client())
	err := s.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "x", Text: "y"})
	require.ErrorIs(t, err, apperr.ErrInternal)
	assert.Contains(t, err.Error(), "forbidden domain")
}

func TestSendRequiresConfigAndRecipients(t *testing.T) {
	err := New(Config{}, nil).Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, apperr.ErrNotConfigured)

	err = New(Config{Enable: true}, nil).Send(context.Background(), Message{})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestBuildMIMEHasBothParts(t *testing.T) {
	raw, err := buildMIME("me@example.com", Message{To: []string{"a@example.com"}, Subject: "s", Text: "plain", HTML: "<b>x</b>"})
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "multipart/alternative")
	assert.Contains(t, body, "text/plain")
	assert.Contains(t, body, "<b>x</b>")
	assert.True(t, strings.HasPrefix(body, "MIME-Version: 1.0\r\n"))
}

func TestRenderNewsletter(t *testing.T) {
	html, err := RenderNewsletter(NewsletterData{
		Title:          "Hello <World>",
		Tags:           []string{"go", "blog"},
		Summary:        "<p>intro</p>",
		DetailURL:      "https://example.com/posts/hello",
		UnsubscribeURL: "https://example.com/unsubscribe?token=t",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Hello &lt;World&gt;")
	assert.Contains(t, html, "<p>intro</p>")
	assert.Contains(t, html, "#go · #blog")
	assert.Contains(t, html, "token=t")
}
