package gemini

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
	"net/url"
	"strings"
	"time"

	"github.com/digkill/productgenius/internal/config"
)

var (
	// ErrUnauthorized means the API key is missing, invalid or not allowed to use the model.
	ErrUnauthorized = errors.New("generator credentials missing or invalid")
	// ErrNoImageReturned means the call succeeded but no part carried image bytes.
	ErrNoImageReturned = errors.New("no image data returned from the model")
)

// APIError is a transport or service failure carrying the raw upstream message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("gemini error: status=%d %s", e.StatusCode, e.Message)
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        *slog.Logger
}

type Request struct {
	Image       []byte
	MimeType    string
	Instruction string
	AspectRatio string
	ImageSize   string
}

type Image struct {
	Bytes []byte
	Mime  string
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		apiKey:  cfg.GeminiAPIKey,
		baseURL: strings.TrimRight(cfg.GeminiBaseURL, "/"),
		model:   cfg.GeminiModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

// Response is the decoded generateContent reply.
type Response struct {
	Candidates []candidate `json:"candidates"`
}

// FirstImage returns the first part carrying image bytes across all candidates.
func (r *Response) FirstImage() (*Image, bool, error) {
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, false, fmt.Errorf("decode inline image: %w", err)
			}
			mime := p.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return &Image{Bytes: data, Mime: mime}, true, nil
		}
	}
	return nil, false, nil
}

// Generate sends the source image with the instruction and returns the first generated image.
func (c *Client) Generate(ctx context.Context, req Request) (*Image, error) {
	if c.apiKey == "" {
		return nil, ErrUnauthorized
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "1:1"
	}
	if req.ImageSize == "" {
		req.ImageSize = "1K"
	}

	resp, err := c.generateContent(ctx, req)
	if err != nil {
		return nil, err
	}
	image, ok, err := resp.FirstImage()
	if err != nil {
		return nil, err
	}
	if !ok {
		if c.log != nil {
			c.log.Warn("gemini returned no image part", "model", c.model, "candidates", len(resp.Candidates))
		}
		return nil, ErrNoImageReturned
	}
	return image, nil
}

func (c *Client) generateContent(ctx context.Context, req Request) (*Response, error) {
	baseURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	endpoint, err := url.Parse("/v1beta/models/" + url.PathEscape(c.model) + ":generateContent")
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	fullURL := baseURL.ResolveReference(endpoint).String()

	payload := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MimeType: req.MimeType, Data: base64.StdEncoding.EncodeToString(req.Image)}},
				{Text: req.Instruction},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig: &imageConfig{
				AspectRatio: req.AspectRatio,
				ImageSize:   req.ImageSize,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	if c.log != nil {
		c.log.Info("calling gemini", "model", c.model, "image_size", req.ImageSize, "source_bytes", len(req.Image))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("post gemini: %w: %v", context.DeadlineExceeded, err)
		}
		return nil, &APIError{Message: fmt.Sprintf("post gemini: %v", err)}
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("read response body: %v", err)}
	}

	if resp.StatusCode >= 300 {
		msg := upstreamMessage(rawBody)
		if c.log != nil {
			c.log.Error("gemini call failed", "status", resp.StatusCode, "body", truncateBody(rawBody))
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
			strings.Contains(msg, "Requested entity was not found") {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	var parsed Response
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v (body=%s)", err, truncateBody(rawBody))}
	}

	if c.log != nil {
		c.log.Info("gemini call completed", "model", c.model, "elapsed", time.Since(started).String())
	}
	return &parsed, nil
}

// upstreamMessage extracts error.message from a Google API error body, falling back to the raw text.
func upstreamMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return truncateBody(body)
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
