package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/segmentio/encoding/json"
)

// GetSettings fetches the current device settings.
func (c *Client) GetSettings(ctx context.Context) (Settings, error) {
	var s Settings
	err := c.doJSON(ctx, http.MethodGet, "/api/get_settings", nil, nil, &s)
	return s, err
}

// UpdateSettings posts a patch of changed fields and returns the settings
// echoed by the backend, if any.
func (c *Client) UpdateSettings(ctx context.Context, patch Settings) (Settings, error) {
	var reply struct {
		Success  bool     `json:"success"`
		Settings Settings `json:"settings"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/update_settings", nil, patch, &reply); err != nil {
		return Settings{}, err
	}
	return reply.Settings, nil
}

// SelectSDR switches the backend to the named radio.
func (c *Client) SelectSDR(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("select sdr: empty name")
	}
	body := map[string]string{"sdr_name": name}
	return c.doJSON(ctx, http.MethodPost, "/api/select_sdr", nil, body, nil)
}

// SweepRequest is the /api/start_sweep body. Frequencies are in Hz.
type SweepRequest struct {
	FrequencyStart float64 `json:"frequencyStart"`
	FrequencyStop  float64 `json:"frequencyStop"`
	Bandwidth      float64 `json:"bandwidth"`
}

// StartSweep begins a frequency sweep.
func (c *Client) StartSweep(ctx context.Context, req SweepRequest) error {
	if req.FrequencyStop <= req.FrequencyStart {
		return fmt.Errorf("start sweep: stop %.0f Hz must be above start %.0f Hz", req.FrequencyStop, req.FrequencyStart)
	}
	return c.doJSON(ctx, http.MethodPost, "/api/start_sweep", nil, req, nil)
}

// Analytics fetches the latest peaks and classifications.
func (c *Client) Analytics(ctx context.Context) (Analytics, error) {
	var a Analytics
	err := c.doJSON(ctx, http.MethodGet, "/api/analytics", nil, nil, &a)
	return a, err
}

// Classifiers lists the classifier band entries.
func (c *Client) Classifiers(ctx context.Context) ([]Classification, error) {
	var out []Classification
	err := c.doJSON(ctx, http.MethodGet, "/api/get_classifiers", nil, nil, &out)
	return out, err
}

// UploadClassifier sends a classifier definition as the multipart field
// "file" and returns the backend's message.
func (c *Client) UploadClassifier(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("read classifier %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload_classifier", nil, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.send(c.http, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var reply struct {
		Message string `json:"message"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(b, &reply) != nil || reply.Message == "" {
		return "Upload complete", nil
	}
	return reply.Message, nil
}

// DownloadAllBands copies the band export blob to w and returns the number
// of bytes written.
func (c *Client) DownloadAllBands(ctx context.Context, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/download_all_bands", nil, nil)
	if err != nil {
		return 0, err
	}
	// Exports can outlast the request timeout.
	resp, err := c.send(c.stream, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download all bands: %w", err)
	}
	return n, nil
}
