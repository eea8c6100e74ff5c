package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/stash/pkg/types"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		source string
		want   string
		ok     bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/abc123XYZ_-", "abc123XYZ_-", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?v=short", "", false},
		{"https://example.com/video", "", false},
		{"not a url at all", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractVideoID(tc.source)
		assert.Equal(t, tc.ok, ok, "source %q", tc.source)
		assert.Equal(t, tc.want, got, "source %q", tc.source)
	}
}

func TestVideoExtractorTranscript(t *testing.T) {
	transcript := `<?xml version="1.0"?><transcript>
		<text start="0" dur="2">hello everyone</text>
		<text start="2" dur="3">welcome to the talk</text>
	</transcript>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dQw4w9WgXcQ", r.URL.Query().Get("v"))
		_, _ = w.Write([]byte(transcript))
	}))
	defer server.Close()

	e := &VideoExtractor{client: server.Client(), TranscriptBaseURL: server.URL}
	text, err := e.fetchTranscript(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "hello everyone welcome to the talk", text)
}

func TestVideoExtractorNoTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	e := &VideoExtractor{client: server.Client(), TranscriptBaseURL: server.URL}
	_, err := e.fetchTranscript(context.Background(), "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestVideoExtractorEmptyTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?><transcript></transcript>`))
	}))
	defer server.Close()

	e := &VideoExtractor{client: server.Client(), TranscriptBaseURL: server.URL}
	_, err := e.fetchTranscript(context.Background(), "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestVideoExtractDegradesOnUnrecognizedURL(t *testing.T) {
	e := &VideoExtractor{client: http.DefaultClient}
	capture := &types.Capture{ID: "cap-1", Content: "https://example.com/not-a-video"}

	result := e.Extract(context.Background(), capture)
	require.True(t, result.Degraded)
	assert.Equal(t, "Video", result.Analysis.Title)
	assert.Equal(t, "unrecognized video URL", result.Reason)
}
