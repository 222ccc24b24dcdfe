package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"platestyle/metrics"
	"platestyle/retry"

	"github.com/sony/gobreaker"
)

// ErrNoImage is returned when the model answered without an inlineData part.
var ErrNoImage = errors.New("model returned no image")

// APIError is a non-2xx answer from the model endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini error %d: %s", e.StatusCode, e.Body)
}

type GenerateImageRequest struct {
	Prompt      string
	Image       []byte
	MimeType    string
	AspectRatio string
}

type GeneratedImage struct {
	Data     []byte
	MimeType string
	Text     string
}

// ImageGenerator is implemented by GeminiClient; workers depend on this so tests can stub the model.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req GenerateImageRequest) (GeneratedImage, error)
}

type GeminiClient struct {
	BaseURL    string
	ApiKey     string
	Model      string
	HTTPClient *http.Client

	breaker *gobreaker.CircuitBreaker
	policy  retry.Policy
}

type GeminiOptions struct {
	BaseURL     string
	ApiKey      string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	// InitialBackoff defaults to 1s; tests shrink it.
	InitialBackoff time.Duration
}

func NewGeminiClient(opts GeminiOptions) *GeminiClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = time.Second
	}

	g := &GeminiClient{
		BaseURL:    strings.TrimRight(opts.BaseURL, "/"),
		ApiKey:     strings.TrimSpace(opts.ApiKey),
		Model:      opts.Model,
		HTTPClient: &http.Client{Timeout: opts.Timeout},
	}

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Client errors (bad image, blocked prompt) are the caller's fault and must not open the breaker.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
			}
			return err == nil || errors.Is(err, ErrNoImage)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
	metrics.CircuitBreakerState.WithLabelValues("gemini").Set(0)

	g.policy = retry.Policy{
		MaxAttempts:      opts.MaxAttempts,
		InitialBackoff:   opts.InitialBackoff,
		RateLimitBackoff: 4 * opts.InitialBackoff,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("gemini call failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	return g
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// GenerateImage sends the prompt and the source photo and returns the first image part of the answer.
func (g *GeminiClient) GenerateImage(ctx context.Context, in GenerateImageRequest) (GeneratedImage, error) {
	if g.ApiKey == "" {
		return GeneratedImage{}, &retry.PermanentError{Err: errors.New("GEMINI_API_KEY not set")}
	}

	body, err := json.Marshal(buildGeminiRequest(in))
	if err != nil {
		return GeneratedImage{}, err
	}

	start := time.Now()
	out, err := retry.Do(ctx, g.policy, classifyGeminiError, func() (GeneratedImage, error) {
		res, err := g.breaker.Execute(func() (interface{}, error) {
			return g.call(ctx, body)
		})
		if err != nil {
			return GeneratedImage{}, err
		}
		return res.(GeneratedImage), nil
	})
	metrics.AIRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues("error").Inc()
		return GeneratedImage{}, err
	}
	metrics.AIRequestsTotal.WithLabelValues("success").Inc()
	return out, nil
}

func (g *GeminiClient) call(ctx context.Context, body []byte) (GeneratedImage, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.BaseURL, g.Model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return GeneratedImage{}, err
	}
	req.Header.Set("x-goog-api-key", g.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return GeneratedImage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return GeneratedImage{}, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return GeneratedImage{}, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	return parsed.image()
}

func classifyGeminiError(err error) retry.Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return retry.Stop
	}
	if errors.Is(err, ErrNoImage) {
		return retry.Stop
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return retry.After
		case apiErr.StatusCode >= 500:
			return retry.Retry
		default:
			return retry.Stop
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return retry.Retry
	}
	var permanent *retry.PermanentError
	if errors.As(err, &permanent) {
		return retry.Stop
	}
	return retry.Retry
}

/**** MARK: wire format ****/

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
		ImageConfig        *struct {
			AspectRatio string `json:"aspectRatio"`
		} `json:"imageConfig,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func buildGeminiRequest(in GenerateImageRequest) geminiRequest {
	var r geminiRequest
	parts := []geminiPart{{Text: in.Prompt}}
	if len(in.Image) > 0 {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: in.MimeType,
			Data:     base64.StdEncoding.EncodeToString(in.Image),
		}})
	}
	r.Contents = []geminiContent{{Role: "user", Parts: parts}}
	r.GenerationConfig.ResponseModalities = []string{"TEXT", "IMAGE"}
	if in.AspectRatio != "" {
		r.GenerationConfig.ImageConfig = &struct {
			AspectRatio string `json:"aspectRatio"`
		}{AspectRatio: in.AspectRatio}
	}
	return r
}

func (r geminiResponse) image() (GeneratedImage, error) {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return GeneratedImage{}, fmt.Errorf("%w (blocked: %s)", ErrNoImage, r.PromptFeedback.BlockReason)
	}
	if len(r.Candidates) == 0 {
		return GeneratedImage{}, ErrNoImage
	}

	cand := r.Candidates[0]
	var text strings.Builder
	for _, p := range cand.Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return GeneratedImage{}, fmt.Errorf("failed to decode image data: %w", err)
			}
			mime := p.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return GeneratedImage{Data: data, MimeType: mime, Text: strings.TrimSpace(text.String())}, nil
		}
		if strings.TrimSpace(p.Text) != "" {
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(p.Text)
		}
	}

	if cand.FinishReason != "" && cand.FinishReason != "STOP" {
		return GeneratedImage{}, fmt.Errorf("%w (finish reason: %s)", ErrNoImage, cand.FinishReason)
	}
	return GeneratedImage{}, ErrNoImage
}
