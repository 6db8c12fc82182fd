package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mthorvald/audiogen/internal/translate"
	"github.com/mthorvald/audiogen/pkg/log"
)

// maxErrorBodyLen bounds how much of an upstream error body goes into our
// error messages.
const maxErrorBodyLen = 512

// Client talks to the AI gateway that fronts the translation and
// speech-synthesis providers. All calls are JSON over HTTP with bearer auth;
// every request carries a generated request id for cross-service tracing.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

type translateResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Translate implements translate.Provider.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (translate.Result, error) {
	var resp translateResponse
	err := c.postJSON(ctx, "/translate", translateRequest{
		Text:           text,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
	}, &resp)
	if err != nil {
		return translate.Result{}, fmt.Errorf("gateway translate: %w", err)
	}
	return translate.Result{Text: resp.Text, Confidence: resp.Confidence}, nil
}

type enhanceRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type enhanceResponse struct {
	Text string `json:"text"`
}

// Enhance asks the gateway to rewrite translated text for narration flow.
func (c *Client) Enhance(ctx context.Context, text, language string) (string, error) {
	var resp enhanceResponse
	if err := c.postJSON(ctx, "/enhance", enhanceRequest{Text: text, Language: language}, &resp); err != nil {
		return "", fmt.Errorf("gateway enhance: %w", err)
	}
	return resp.Text, nil
}

type speechRequest struct {
	Input string  `json:"input"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

// Synthesize returns the raw audio bytes for one chunk of text.
func (c *Client) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	body, err := json.Marshal(speechRequest{Input: text, Voice: voice, Speed: speed})
	if err != nil {
		return nil, fmt.Errorf("encoding speech request: %w", err)
	}

	resp, err := c.do(ctx, "/speech", body)
	if err != nil {
		return nil, fmt.Errorf("gateway speech: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("gateway speech: %w", err)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("gateway returned empty audio")
	}
	return audio, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	resp, err := c.do(ctx, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	log.Debug("Gateway request %s %s", path, requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling gateway: %w", err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
