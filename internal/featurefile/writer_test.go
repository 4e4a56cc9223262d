package featurefile

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/bddprobe/internal/detect"
)

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"https://www.example.com/pricing": "example_com",
		"https://docs.my-site.io":         "docs_my_site_io",
		"https://EXAMPLE.com":             "example_com",
		"not a url":                       "not_a_url",
		"":                                "page",
	}
	for input, want := range cases {
		assert.Equal(t, want, BaseName(input), input)
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestWriteArtifacts(t *testing.T) {
	analysis := &detect.PageAnalysis{
		RunID:      "run-1",
		URL:        "https://www.example.com",
		Title:      "Example",
		AnalyzedAt: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		Popups: []detect.InteractionOutcome{{
			Kind:        detect.OutcomeRevealed,
			Action:      detect.ActionClick,
			Trigger:     detect.ElementDescriptor{Selector: "#subscribe", Text: "Subscribe"},
			EvidencePNG: testPNG(t, 1280, 720),
		}},
	}

	w := &Writer{Dir: t.TempDir()}
	res, err := w.Write(analysis, "Feature: Example\n\n  Scenario: S\n    Given a step\n")
	require.NoError(t, err)

	feature, err := os.ReadFile(res.FeaturePath)
	require.NoError(t, err)
	assert.Contains(t, string(feature), "# Generated from https://www.example.com")
	assert.Contains(t, string(feature), "Feature: Example")
	assert.Equal(t, "example_com.feature", filepath.Base(res.FeaturePath))

	report, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	var decoded detect.PageAnalysis
	require.NoError(t, json.Unmarshal(report, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Popups, 1)
	assert.Empty(t, decoded.Popups[0].EvidencePNG, "raw screenshots stay out of the report")

	require.Len(t, res.EvidencePath, 1)
	raw, err := os.ReadFile(res.EvidencePath[0])
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 480, img.Bounds().Dx(), "evidence is downscaled")
}

func TestWriteWithoutEvidence(t *testing.T) {
	analysis := &detect.PageAnalysis{
		RunID:      "run-2",
		URL:        "https://example.com",
		AnalyzedAt: time.Now().UTC(),
	}

	dir := t.TempDir()
	w := &Writer{Dir: dir}
	res, err := w.Write(analysis, "Feature: Empty\n")
	require.NoError(t, err)

	assert.Empty(t, res.EvidencePath)
	_, err = os.Stat(filepath.Join(dir, "evidence"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteBadEvidenceSkipsThumbnail(t *testing.T) {
	analysis := &detect.PageAnalysis{
		RunID:      "run-3",
		URL:        "https://example.com",
		AnalyzedAt: time.Now().UTC(),
		Popups: []detect.InteractionOutcome{{
			Kind:        detect.OutcomeRevealed,
			Action:      detect.ActionClick,
			Trigger:     detect.ElementDescriptor{Selector: "#x"},
			EvidencePNG: []byte("not a png"),
		}},
	}

	w := &Writer{Dir: t.TempDir()}
	res, err := w.Write(analysis, "Feature: X\n")
	require.NoError(t, err)
	assert.Empty(t, res.EvidencePath)
}
