// Package client provides a Go client for the blog posts API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matt-wil/masterblog/internal/model"
)

// Client is a posts API client bound to one base URL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new client. Trailing slashes on baseURL are dropped so paths join cleanly.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithTimeout creates a client whose requests give up after timeout.
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	c := New(baseURL)
	c.HTTPClient.Timeout = timeout
	return c
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed (%d): %s", e.Op, e.Status, e.Body)
}

// doRequest performs an HTTP request with an optional JSON body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.HTTPClient.Do(req)
}

// decode checks the status and decodes a JSON response into dest.
func decode(op string, resp *http.Response, dest any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// ListPosts fetches every post.
func (c *Client) ListPosts(ctx context.Context) ([]model.Post, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/posts", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var posts []model.Post
	if err := decode("list posts", resp, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// CreatePost adds a new post.
func (c *Client) CreatePost(ctx context.Context, req model.CreatePostRequest) (*model.Post, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/posts", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var post model.Post
	if err := decode("create post", resp, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost replaces the title and content of a post.
func (c *Client) UpdatePost(ctx context.Context, id int64, req model.UpdatePostRequest) (*model.Post, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/posts/%d", id), req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var post model.Post
	if err := decode("update post", resp, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost deletes a post. Any response counts as done; only transport errors are returned.
func (c *Client) DeletePost(ctx context.Context, id int64) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/posts/%d", id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// LikePost registers a like.
func (c *Client) LikePost(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.react(ctx, id, "like")
}

// DislikePost registers a dislike.
func (c *Client) DislikePost(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.react(ctx, id, "dislike")
}

func (c *Client) react(ctx context.Context, id int64, kind string) (json.RawMessage, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/posts/%d/%s", id, kind), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out json.RawMessage
	if err := decode(kind+" post", resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddComment posts a comment. The API may answer with the post or the comment,
// so the raw JSON is returned.
func (c *Client) AddComment(ctx context.Context, id int64, req model.CommentRequest) (json.RawMessage, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/posts/%d/comments", id), req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out json.RawMessage
	if err := decode("add comment", resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}
