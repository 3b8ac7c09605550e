/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	applog "designeditor/internal/log"
)

// Client talks to the asset API: it asks for a pre-signed upload URL, PUTs the bytes
// there and returns the durable public URL. It implements pipeline.Uploader.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the transport, mainly for tests and custom timeouts.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.client = h
	return c
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(method, u.Path, resp)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

func statusError(method, path string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

// PresignRequest asks for an upload slot.
type PresignRequest struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Presigned is the upload slot returned by the API. Headers must be sent with the PUT.
type Presigned struct {
	UploadURL string            `json:"upload_url"`
	PublicURL string            `json:"public_url"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Presign requests a pre-signed URL for key.
func (c *Client) Presign(ctx context.Context, r PresignRequest) (*Presigned, error) {
	var p Presigned
	if err := c.doJSON(ctx, http.MethodPost, "/api/uploads/presign", r, &p); err != nil {
		return nil, err
	}
	if p.UploadURL == "" || p.PublicURL == "" {
		return nil, fmt.Errorf("presign %s: incomplete response", r.Key)
	}
	return &p, nil
}

// Upload stores data under key and returns its durable URL.
func (c *Client) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	log := applog.WithOperation(applog.WithComponent("backend"), "upload")
	p, err := c.Presign(ctx, PresignRequest{Key: key, ContentType: contentType, Size: len(data)})
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", contentType)
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(http.MethodPut, req.URL.Path, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	log.Debug("uploaded", "key", key, "bytes", len(data), "ms", time.Since(start).Milliseconds())
	return p.PublicURL, nil
}
