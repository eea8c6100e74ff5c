package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/scrypster/stash/internal/analyzer"
	"github.com/scrypster/stash/pkg/types"
)

// maxPDFBytes limits how large a fetched PDF may be.
const maxPDFBytes = 20 * 1024 * 1024

// PDFExtractor fetches a PDF, extracts its text, and analyzes it. Fetch
// errors, parse errors, and too-short content all degrade to a stub with
// title "PDF Document" rather than failing the capture.
type PDFExtractor struct {
	analyzer *analyzer.Analyzer
	client   *http.Client
}

// Extract runs the PDF extraction and analysis.
func (e *PDFExtractor) Extract(ctx context.Context, capture *types.Capture) analyzer.Result {
	text, err := e.fetchText(ctx, strings.TrimSpace(capture.Content))
	if err != nil {
		log.Printf("WARNING: pdf extraction failed for capture %s: %v", capture.ID, err)
		return analyzer.Result{
			Analysis: types.DegradedAnalysis("PDF Document", ""),
			Degraded: true,
			Reason:   err.Error(),
		}
	}

	return e.analyzer.Analyze(ctx, truncate(text), capture.Context)
}

// fetchText downloads the PDF and extracts its plain text.
func (e *PDFExtractor) fetchText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch pdf: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d fetching pdf", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
	if err != nil {
		return "", fmt.Errorf("read pdf body: %w", err)
	}

	text, err := pdfText(data)
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	if len(text) < minPDFTextLength {
		return "", ErrExtractionEmpty
	}
	return text, nil
}

// pdfText extracts plain text from raw PDF bytes.
func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}
