// Package convert calls the document-conversion service that turns uploaded
// PDFs into markdown with page markers and a chapter outline.
package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrUnavailable means the service could not be reached at all. The
	// pipeline degrades to placeholder content instead of failing.
	ErrUnavailable = errors.New("conversion service unreachable")

	// ErrStatus means the service answered with a non-2xx status. This is
	// treated as transient and retried by the extraction stage.
	ErrStatus = errors.New("conversion service error status")
)

// Result is the conversion service's response for one document.
type Result struct {
	Markdown  string        `json:"markdown"`
	PageCount int           `json:"page_count"`
	Chapters  []ChapterInfo `json:"chapters,omitempty"`
}

// ChapterInfo is a chapter detected by the conversion service.
type ChapterInfo struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	StartPage int    `json:"start_page,omitempty"`
	EndPage   int    `json:"end_page,omitempty"`
}

// Client talks to the conversion service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the service at baseURL (e.g.
// "http://localhost:8000"). The timeout applies per request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Extract asks the service to convert the document at documentURL.
func (c *Client) Extract(ctx context.Context, documentURL string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"document_url": documentURL})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// Health checks the service's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return nil
}

// Placeholder builds deterministic stand-in content for a document whose
// conversion service is unavailable, so downstream stages still run.
func Placeholder(title string) *Result {
	if title == "" {
		title = "Untitled Document"
	}
	markdown := fmt.Sprintf(`<!-- Page 1 -->
# Chapter 1: %s

The content of this document could not be extracted automatically. This
placeholder keeps the document moving through processing; re-run extraction
once the conversion service is available to replace it.

<!-- Page 2 -->
## Overview

The original file remains stored and untouched. All structure below is
synthetic and will be discarded on reprocessing.
`, title)
	return &Result{
		Markdown:  markdown,
		PageCount: 2,
		Chapters:  []ChapterInfo{{Number: 1, Title: title}},
	}
}
