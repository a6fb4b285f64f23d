package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"smarttracker/internal/models"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	httpTimeoutEnvKey  = "SMARTTRACKER_HTTP_TIMEOUT"
	activitiesPath     = "/api/activities"
)

// ImageUpload is an image file sent with a create or update request.
type ImageUpload struct {
	Filename  string
	MediaType string
	Content   io.Reader
}

// OpenImage opens a local file as an ImageUpload. The caller closes the returned file.
func OpenImage(path string) (*ImageUpload, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return &ImageUpload{Filename: filepath.Base(path), MediaType: mediaType, Content: f}, f, nil
}

// Client is a simple HTTP client for the smarttracker API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) Info(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/", nil, nil, &resp)
	return resp, err
}

func (c *Client) ListActivities(ctx context.Context) ([]models.Activity, error) {
	var resp []models.Activity
	err := c.do(ctx, http.MethodGet, activitiesPath, nil, nil, &resp)
	return resp, err
}

func (c *Client) GetActivity(ctx context.Context, id string) (models.Activity, error) {
	var resp models.Activity
	err := c.do(ctx, http.MethodGet, activitiesPath+"/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) SearchActivities(ctx context.Context, query string) ([]models.Activity, error) {
	var resp []models.Activity
	var q url.Values
	if query != "" {
		q = url.Values{"q": []string{query}}
	}
	err := c.do(ctx, http.MethodGet, activitiesPath+"/search", q, nil, &resp)
	return resp, err
}

// CreateActivity sends JSON, or multipart/form-data when image is set.
func (c *Client) CreateActivity(ctx context.Context, req ActivityRequest, image *ImageUpload) (models.Activity, error) {
	var resp models.Activity
	if image != nil {
		err := c.doMultipart(ctx, http.MethodPost, activitiesPath, req, image, &resp)
		return resp, err
	}
	err := c.do(ctx, http.MethodPost, activitiesPath, nil, req, &resp)
	return resp, err
}

// UpdateActivity sends JSON, or multipart/form-data when image is set.
func (c *Client) UpdateActivity(ctx context.Context, id string, req ActivityRequest, image *ImageUpload) (models.Activity, error) {
	var resp models.Activity
	path := activitiesPath + "/" + url.PathEscape(id)
	if image != nil {
		err := c.doMultipart(ctx, http.MethodPut, path, req, image, &resp)
		return resp, err
	}
	err := c.do(ctx, http.MethodPut, path, nil, req, &resp)
	return resp, err
}

func (c *Client) DeleteActivity(ctx context.Context, id string) (DeleteResponse, error) {
	var resp DeleteResponse
	err := c.do(ctx, http.MethodDelete, activitiesPath+"/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) doMultipart(ctx context.Context, method, path string, fields ActivityRequest, image *ImageUpload, out any) error {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeActivityForm(writer, fields, image))
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, pr)
	if err != nil {
		_ = pr.Close()
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.send(req, out)
}

func writeActivityForm(writer *multipart.Writer, fields ActivityRequest, image *ImageUpload) error {
	values := []struct{ key, value string }{
		{"latitude", fields.Latitude.String()},
		{"longitude", fields.Longitude.String()},
		{"description", fields.Description},
		{"timestamp", fields.Timestamp},
	}
	for _, v := range values {
		if v.value == "" {
			continue
		}
		if err := writer.WriteField(v.key, v.value); err != nil {
			return err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, image.Filename))
	header.Set("Content-Type", image.MediaType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, image.Content); err != nil {
		return err
	}
	return writer.Close()
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{Status: resp.StatusCode, Code: errResp.Code, ErrorCode: errResp.ErrorCode, Message: errResp.Error}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
