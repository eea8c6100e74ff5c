// Package extract provides content-type-specific extractors that turn a
// capture's raw content into a DeepAnalysis. Extraction failures never abort
// the pipeline: every extractor degrades to a safe stub analysis instead.
package extract

import (
	"context"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/scrypster/stash/internal/analyzer"
	"github.com/scrypster/stash/pkg/types"
)

// Sentinel errors for extraction failures. They are recovered locally into
// degraded stubs and logged, never surfaced to the pipeline.
var (
	// ErrExtractionEmpty means the extracted text was below the minimum
	// usable length (e.g. a scanned or unreadable PDF).
	ErrExtractionEmpty = errors.New("EXTRACTION_EMPTY")

	// ErrNoTranscript means the video platform has no transcript for the video.
	ErrNoTranscript = errors.New("NO_TRANSCRIPT")
)

// maxAnalysisChars bounds the text handed to the analyzer. Truncation is a
// deliberate cost/latency tradeoff, not a correctness requirement.
const maxAnalysisChars = 8000

// minPDFTextLength guards against scanned or unreadable documents.
const minPDFTextLength = 100

// Extractor produces a DeepAnalysis for a capture. The returned Result is
// the analyzer's: degraded results carry the stub analysis and a reason.
type Extractor interface {
	Extract(ctx context.Context, capture *types.Capture) analyzer.Result
}

// Registry selects an extractor by capture type.
type Registry struct {
	text  *TextExtractor
	link  *LinkExtractor
	pdf   *PDFExtractor
	video *VideoExtractor
}

// NewRegistry wires the extractors around a shared analyzer and HTTP client.
// A nil httpClient gets a default with a 30s timeout; extraction I/O must
// never hang a worker indefinitely.
func NewRegistry(a *analyzer.Analyzer, httpClient *http.Client) *Registry {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	text := &TextExtractor{analyzer: a}
	pdf := &PDFExtractor{analyzer: a, client: httpClient}
	video := &VideoExtractor{analyzer: a, client: httpClient}
	link := &LinkExtractor{analyzer: a, client: httpClient, pdf: pdf, video: video}
	return &Registry{text: text, link: link, pdf: pdf, video: video}
}

// ForType returns the extractor for the given capture type. Types without a
// specialized extractor (image, audio, other) fall back to text analysis of
// whatever raw content the capture carries.
func (r *Registry) ForType(t types.CaptureType) Extractor {
	switch t {
	case types.CaptureLink:
		return r.link
	case types.CapturePDF, types.CaptureDocument:
		return r.pdf
	case types.CaptureVideo:
		return r.video
	default:
		return r.text
	}
}

// truncate caps text at the size the analysis prompt can carry, cutting on
// a rune boundary so the result stays valid UTF-8.
func truncate(text string) string {
	if len(text) <= maxAnalysisChars {
		return text
	}
	cut := maxAnalysisChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
