package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPProvider sends images to an OCR sidecar service (e.g. an EasyOCR wrapper).
// The service accepts a multipart "file" field and answers {"text": "..."} or {"lines": [...]}.
type HTTPProvider struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewHTTPProvider(url string, timeout time.Duration, logger *slog.Logger) *HTTPProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProvider{url: strings.TrimSpace(url), client: &http.Client{Timeout: timeout}, logger: logger}
}

func (p *HTTPProvider) Name() string { return "remote" }

func (p *HTTPProvider) Available(context.Context) bool { return p.url != "" }

func (p *HTTPProvider) Recognize(ctx context.Context, image []byte) (string, error) {
	reqID := uuid.New().String()
	start := time.Now()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "image")
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if _, err := fw.Write(image); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Request-ID", reqID)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("ocr.remote.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			p.logger.Warn("ocr.remote.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	p.logger.Debug("ocr.remote.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("non-2xx status: %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}

	var out struct {
		Text  string   `json:"text"`
		Lines []string `json:"lines"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	if out.Text == "" && len(out.Lines) > 0 {
		out.Text = strings.Join(out.Lines, "\n")
	}
	return out.Text, nil
}
