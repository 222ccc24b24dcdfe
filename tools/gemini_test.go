package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGemini(t *testing.T, h http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewGeminiClient(GeminiOptions{
		BaseURL:        srv.URL,
		ApiKey:         "test-key",
		Model:          "gemini-test",
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	})
}

func imageAnswer(data []byte) string {
	return `{"candidates":[{"content":{"parts":[{"text":"here you go"},{"inlineData":{"mimeType":"image/png","data":"` +
		base64.StdEncoding.EncodeToString(data) + `"}}]},"finishReason":"STOP"}]}`
}

func TestGenerateImage_Success(t *testing.T) {
	var got map[string]any
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(imageAnswer([]byte("png-bytes"))))
	})

	out, err := g.GenerateImage(context.Background(), GenerateImageRequest{
		Prompt:      "make it rustic",
		Image:       []byte("jpeg-bytes"),
		MimeType:    "image/jpeg",
		AspectRatio: "4:3",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), out.Data)
	assert.Equal(t, "image/png", out.MimeType)
	assert.Equal(t, "here you go", out.Text)

	gen := got["generationConfig"].(map[string]any)
	assert.Equal(t, []any{"TEXT", "IMAGE"}, gen["responseModalities"])
	assert.Equal(t, "4:3", gen["imageConfig"].(map[string]any)["aspectRatio"])
	parts := got["contents"].([]any)[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "image/jpeg", inline["mimeType"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")), inline["data"])
}

func TestGenerateImage_RetriesServerErrors(t *testing.T) {
	var calls int32
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(imageAnswer([]byte("ok"))))
	})

	out, err := g.GenerateImage(context.Background(), GenerateImageRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out.Data)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGenerateImage_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad image"}`))
	})

	_, err := g.GenerateImage(context.Background(), GenerateImageRequest{Prompt: "p"})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateImage_NoImage(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"I can't do that"}]},"finishReason":"STOP"}]}`))
	})

	_, err := g.GenerateImage(context.Background(), GenerateImageRequest{Prompt: "p"})
	require.ErrorIs(t, err, ErrNoImage)
}

func TestGenerateImage_BlockedPrompt(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	})

	_, err := g.GenerateImage(context.Background(), GenerateImageRequest{Prompt: "p"})
	require.ErrorIs(t, err, ErrNoImage)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGenerateImage_MissingKey(t *testing.T) {
	g := NewGeminiClient(GeminiOptions{BaseURL: "http://127.0.0.1:1", Model: "m"})
	_, err := g.GenerateImage(context.Background(), GenerateImageRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}
