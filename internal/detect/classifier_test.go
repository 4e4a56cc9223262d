package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func candidateJSON(selector, tag, text string, roles []string, attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	return map[string]interface{}{
		"selector": selector,
		"tag":      tag,
		"text":     text,
		"attrs":    attrs,
		"box":      map[string]interface{}{"x": 1.0, "y": 2.0, "width": 120.0, "height": 32.0},
		"roles":    roles,
	}
}

func TestClassifyParsesCandidatesInOrder(t *testing.T) {
	drv := &fakeDriver{classify: []interface{}{
		candidateJSON("#nav-products", "a", " Products \n ", []string{"hoverable"},
			map[string]interface{}{"href": "/products"}),
		candidateJSON("button.open-dialog", "button", "Contact us", []string{"clickable", "popup_trigger"},
			map[string]interface{}{"aria-haspopup": "dialog"}),
	}}

	candidates, err := Classify(context.Background(), drv, DefaultThresholds(), zap.NewNop())
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	first := candidates[0]
	assert.Equal(t, "#nav-products", first.Descriptor.Selector)
	assert.Equal(t, "Products", first.Descriptor.Text)
	assert.Equal(t, "/products", first.Descriptor.Href())
	assert.True(t, first.HasRole(RoleHoverable))
	assert.False(t, first.HasRole(RoleClickable))
	assert.Equal(t, 120.0, first.Descriptor.Box.Width)

	second := candidates[1]
	assert.True(t, second.HasRole(RoleClickable))
	assert.True(t, second.HasRole(RolePopupTrigger))
}

func TestClassifyEmptyPageYieldsNoCandidates(t *testing.T) {
	drv := &fakeDriver{classify: []interface{}{}}
	candidates, err := Classify(context.Background(), drv, DefaultThresholds(), zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestClassifyProbeErrorSurfaces(t *testing.T) {
	drv := &fakeDriver{classifyErr: errors.New("page crashed")}
	_, err := Classify(context.Background(), drv, DefaultThresholds(), zap.NewNop())
	assert.Error(t, err)
}
