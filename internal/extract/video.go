package extract

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/scrypster/stash/internal/analyzer"
	"github.com/scrypster/stash/pkg/types"
)

// videoIDPatterns match the URL shapes a platform video identifier can
// arrive in: canonical watch URLs, short URLs, shorts, embeds, and /v/ paths.
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/shorts/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/v/([a-zA-Z0-9_-]{11})`),
}

// bareVideoID matches a bare 11-character video identifier.
var bareVideoID = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// VideoExtractor resolves a platform video ID, fetches its transcript, and
// analyzes the concatenated segments. Any failure degrades to a stub with
// title "Video".
type VideoExtractor struct {
	analyzer *analyzer.Analyzer
	client   *http.Client

	// TranscriptBaseURL overrides the transcript endpoint, for tests.
	TranscriptBaseURL string
}

// Extract runs transcript extraction and analysis.
func (e *VideoExtractor) Extract(ctx context.Context, capture *types.Capture) analyzer.Result {
	source := strings.TrimSpace(capture.Content)

	videoID, ok := ExtractVideoID(source)
	if !ok {
		log.Printf("WARNING: no video id resolvable from capture %s", capture.ID)
		return degradedVideo(source, "unrecognized video URL")
	}

	transcript, err := e.fetchTranscript(ctx, videoID)
	if err != nil {
		log.Printf("WARNING: transcript fetch failed for video %s: %v", videoID, err)
		return degradedVideo(source, err.Error())
	}

	return e.analyzer.Analyze(ctx, truncate(transcript), capture.Context)
}

func degradedVideo(fullText, reason string) analyzer.Result {
	return analyzer.Result{
		Analysis: types.DegradedAnalysis("Video", fullText),
		Degraded: true,
		Reason:   reason,
	}
}

// ExtractVideoID resolves an 11-character video identifier from any of the
// supported URL shapes, or from a bare identifier.
func ExtractVideoID(source string) (string, bool) {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(source); m != nil {
			return m[1], true
		}
	}
	if bareVideoID.MatchString(source) {
		return source, true
	}
	return "", false
}

// transcriptXML is the timedtext transcript document shape.
type transcriptXML struct {
	Texts []struct {
		Content string `xml:",chardata"`
	} `xml:"text"`
}

// fetchTranscript retrieves the video's transcript and concatenates its
// segments into full text. A missing transcript yields ErrNoTranscript.
func (e *VideoExtractor) fetchTranscript(ctx context.Context, videoID string) (string, error) {
	base := e.TranscriptBaseURL
	if base == "" {
		base = "https://video.google.com/timedtext"
	}
	endpoint := fmt.Sprintf("%s?lang=en&v=%s", base, url.QueryEscape(videoID))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNoTranscript
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d fetching transcript", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", ErrNoTranscript
	}

	var doc transcriptXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parse transcript: %w", err)
	}
	if len(doc.Texts) == 0 {
		return "", ErrNoTranscript
	}

	segments := make([]string, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		if s := strings.TrimSpace(t.Content); s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return "", ErrNoTranscript
	}
	return strings.Join(segments, " "), nil
}
