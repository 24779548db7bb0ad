package convert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/extract", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://storage/doc.pdf", req["document_url"])

		json.NewEncoder(w).Encode(Result{
			Markdown:  "<!-- Page 1 -->\n# Chapter 1: Intro\ntext",
			PageCount: 1,
			Chapters:  []ChapterInfo{{Number: 1, Title: "Intro"}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	result, err := client.Extract(context.Background(), "https://storage/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, result.PageCount)
	require.Len(t, result.Chapters, 1)
	assert.Equal(t, "Intro", result.Chapters[0].Title)
}

func TestExtract_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Extract(context.Background(), "https://storage/doc.pdf")
	assert.ErrorIs(t, err, ErrStatus)
}

func TestExtract_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Nothing listens anymore.

	client := NewClient(srv.URL, 2*time.Second)
	_, err := client.Extract(context.Background(), "https://storage/doc.pdf")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	assert.NoError(t, client.Health(context.Background()))
}

func TestPlaceholder_Deterministic(t *testing.T) {
	a := Placeholder("Linear Algebra")
	b := Placeholder("Linear Algebra")
	assert.Equal(t, a, b)

	assert.Contains(t, a.Markdown, "# Chapter 1: Linear Algebra")
	assert.Contains(t, a.Markdown, "<!-- Page 1 -->")
	assert.Equal(t, 2, a.PageCount)
	require.Len(t, a.Chapters, 1)

	untitled := Placeholder("")
	assert.Contains(t, untitled.Markdown, "Untitled Document")
}
