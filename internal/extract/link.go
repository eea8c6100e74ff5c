package extract

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/scrypster/stash/internal/analyzer"
	"github.com/scrypster/stash/pkg/types"
)

// maxPageBytes limits how much of a fetched page is read.
const maxPageBytes = 5 * 1024 * 1024

// LinkExtractor handles link and webhook captures. It classifies the URL
// further (PDF, video, generic page) before delegating.
type LinkExtractor struct {
	analyzer *analyzer.Analyzer
	client   *http.Client
	pdf      *PDFExtractor
	video    *VideoExtractor
}

// Extract classifies the capture's URL and delegates to the matching
// extractor. Fetch or parse failures degrade to a stub analysis.
func (e *LinkExtractor) Extract(ctx context.Context, capture *types.Capture) analyzer.Result {
	rawURL := strings.TrimSpace(capture.Content)

	switch classifyURL(rawURL) {
	case types.CapturePDF:
		return e.pdf.Extract(ctx, capture)
	case types.CaptureVideo:
		return e.video.Extract(ctx, capture)
	}

	text, err := e.fetchPageText(ctx, rawURL)
	if err != nil {
		log.Printf("WARNING: link extraction failed for %s: %v", rawURL, err)
		return analyzer.Result{
			Analysis: types.DegradedAnalysis("Saved Link", rawURL),
			Degraded: true,
			Reason:   err.Error(),
		}
	}

	return e.analyzer.Analyze(ctx, truncate(text), capture.Context)
}

// classifyURL refines a URL into a more specific capture type.
func classifyURL(rawURL string) types.CaptureType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return types.CaptureLink
	}
	if strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return types.CapturePDF
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host == "youtube.com" || host == "youtu.be" || host == "m.youtube.com" {
		return types.CaptureVideo
	}
	return types.CaptureLink
}

// fetchPageText retrieves a page and reduces it to readable text.
func (e *LinkExtractor) fetchPageText(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "stash/1.0 (capture-pipeline)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d fetching page", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	text := pageText(string(body))
	if text == "" {
		return "", fmt.Errorf("no text content found")
	}
	return text, nil
}

// pageText parses HTML and returns readable text content, skipping
// non-content elements.
func pageText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	skipTags := map[string]bool{
		"script": true, "style": true, "nav": true,
		"header": true, "footer": true, "aside": true,
		"noscript": true, "iframe": true,
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(sb.String()), " ")
}
