package cli

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client queries the status server of a running session.
type Client struct {
	baseURL  string
	client   *http.Client
	user     string
	password string
}

func NewClient() *Client {
	return &Client{
		baseURL:  GetServerURL(),
		client:   &http.Client{Timeout: 10 * time.Second},
		user:     user,
		password: password,
	}
}

// Get returns the body and status code of a GET request.
func (c *Client) Get(path string) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	if c.user != "" && c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}
