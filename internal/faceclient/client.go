// Package faceclient talks to the face recognition microservice. The rest of
// the application only sees its boolean contract: is a template enrolled,
// did enrollment succeed, did the live face match.
package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"campusattend/internal/biometric"
)

// Client calls the face recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

var _ biometric.FaceCapability = (*Client)(nil)

// New creates a client. With skip set, all calls succeed without hitting the
// service; useful for local development.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // Face processing can take time
		},
	}
}

// HasTemplate reports whether a face template is enrolled for the student.
func (c *Client) HasTemplate(ctx context.Context, studentID string) (bool, error) {
	if c.Skip {
		return true, nil
	}
	u := c.BaseURL + "/enrolled?user_id=" + url.QueryEscape(studentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}

	var out struct {
		Enrolled bool `json:"enrolled"`
	}
	if err := c.do(req, &out); err != nil {
		return false, err
	}
	return out.Enrolled, nil
}

// Enroll asks the service to capture and store a face template.
func (c *Client) Enroll(ctx context.Context, studentID string) (bool, error) {
	if c.Skip {
		return true, nil
	}
	req, err := c.postJSON(ctx, "/enroll", map[string]string{"user_id": studentID})
	if err != nil {
		return false, err
	}

	var out struct {
		Success bool `json:"success"`
	}
	if err := c.do(req, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

// Match asks the service to compare a live capture against the enrolled
// template.
func (c *Client) Match(ctx context.Context, studentID string) (bool, error) {
	if c.Skip {
		return true, nil
	}
	req, err := c.postJSON(ctx, "/match", map[string]string{"user_id": studentID})
	if err != nil {
		return false, err
	}

	var out struct {
		Match bool `json:"match"`
	}
	if err := c.do(req, &out); err != nil {
		return false, err
	}
	return out.Match, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
