// Package featurefile persists analysis results: the .feature file, a JSON
// report, and thumbnail screenshots of the popups the run opened.
package featurefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"

	"github.com/v0xg/bddprobe/internal/detect"
)

const thumbnailWidth = 480

// Result lists what was written.
type Result struct {
	FeaturePath  string
	ReportPath   string
	EvidencePath []string
}

// Writer writes analysis artifacts under a single output directory.
type Writer struct {
	Dir string
}

// Write persists the feature text, the JSON report, and PNG evidence
// thumbnails for the analysis. The base filename comes from the analyzed
// URL's host.
func (w *Writer) Write(analysis *detect.PageAnalysis, featureText string) (*Result, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	base := BaseName(analysis.URL)
	res := &Result{}

	res.FeaturePath = filepath.Join(w.Dir, base+".feature")
	header := fmt.Sprintf("# Generated from %s\n# Run %s at %s\n\n",
		analysis.URL, analysis.RunID, analysis.AnalyzedAt.Format("2006-01-02 15:04:05"))
	if err := os.WriteFile(res.FeaturePath, []byte(header+featureText), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write feature file: %w", err)
	}

	report, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	res.ReportPath = filepath.Join(w.Dir, base+"_report.json")
	if err := os.WriteFile(res.ReportPath, report, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	evidence, err := w.writeEvidence(base, analysis)
	if err != nil {
		return nil, err
	}
	res.EvidencePath = evidence

	return res, nil
}

func (w *Writer) writeEvidence(base string, analysis *detect.PageAnalysis) ([]string, error) {
	var paths []string
	for i, o := range analysis.Popups {
		if len(o.EvidencePNG) == 0 {
			continue
		}
		dir := filepath.Join(w.Dir, "evidence")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create evidence dir: %w", err)
		}

		thumb, err := thumbnail(o.EvidencePNG)
		if err != nil {
			// A bad screenshot loses its thumbnail, not the report.
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_popup_%02d.png", base, i+1))
		if err := os.WriteFile(path, thumb, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write evidence: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func thumbnail(raw []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	small := resize.Resize(thumbnailWidth, 0, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := png.Encode(&buf, small); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BaseName derives a filesystem-safe base name from a page URL.
func BaseName(pageURL string) string {
	u, err := url.Parse(pageURL)
	host := pageURL
	if err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.TrimPrefix(host, "www.")

	var b strings.Builder
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "page"
	}
	return name
}
