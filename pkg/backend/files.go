package backend

import (
	"context"
	"net/http"
	"net/url"
)

// FileEntry is one item of a recordings directory listing.
type FileEntry struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Ext          string  `json:"ext"`
	Size         int64   `json:"size"`
	Date         string  `json:"date"`
	IsDir        bool    `json:"isDir"`
	ThumbnailURL *string `json:"thumbnailUrl"`
}

// Listing is a directory listing.
type Listing struct {
	Files []FileEntry `json:"files"`
	Path  string      `json:"path"`
}

// RecordingMetadata is the content of a recorded file: its capture settings
// and the FFT snapshot taken with it.
type RecordingMetadata struct {
	Metadata map[string]interface{} `json:"metadata"`
	FFTData  []float64              `json:"fft_data"`
}

// ListFiles lists a directory below the backend's recordings root. An empty
// path lists the root.
func (c *Client) ListFiles(ctx context.Context, path string) (Listing, error) {
	var l Listing
	q := url.Values{}
	if path != "" {
		q.Set("path", path)
	}
	err := c.doJSON(ctx, http.MethodGet, "/file_manager/files", q, nil, &l)
	return l, err
}

// FileMetadata reads the metadata of one recording.
func (c *Client) FileMetadata(ctx context.Context, path string) (RecordingMetadata, error) {
	var m RecordingMetadata
	q := url.Values{"path": {path}}
	err := c.doJSON(ctx, http.MethodGet, "/file_manager/files/metadata", q, nil, &m)
	return m, err
}

// CreateDirectory creates name inside path.
func (c *Client) CreateDirectory(ctx context.Context, path, name string) error {
	body := map[string]string{"path": path, "name": name}
	return c.doJSON(ctx, http.MethodPost, "/file_manager/files/create_directory", nil, body, nil)
}

// MoveFile moves src/name into dest.
func (c *Client) MoveFile(ctx context.Context, src, dest, name string) error {
	body := map[string]string{"src": src, "dest": dest, "name": name}
	return c.doJSON(ctx, http.MethodPost, "/file_manager/files/move", nil, body, nil)
}

// RenameFile renames oldPath to newPath.
func (c *Client) RenameFile(ctx context.Context, oldPath, newPath string) error {
	body := map[string]string{"old_path": oldPath, "new_path": newPath}
	return c.doJSON(ctx, http.MethodPost, "/file_manager/files/rename", nil, body, nil)
}

// DeleteFile removes a file or directory.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	body := map[string]string{"path": path}
	return c.doJSON(ctx, http.MethodPost, "/file_manager/files/delete", nil, body, nil)
}
