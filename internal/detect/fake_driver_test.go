package detect

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ysmood/gson"
)

// fakeDriver is a scriptable stand-in for a live browser. Eval dispatches on
// probe identity; each probe kind can be answered with a queue of canned
// values or an error.
type fakeDriver struct {
	mu sync.Mutex

	url          string
	fingerprints []interface{}
	fpCalls      int
	fpErr        error
	classify     interface{}
	classifyErr  error
	popupDetail  interface{}
	navigation   interface{}

	hoverErr   error
	clickErr   error
	hoverDelay time.Duration

	// onClick runs under the mutex, letting a test change the current URL
	// or swap fingerprints mid-simulation.
	onClick func(f *fakeDriver)

	hovered    []string
	clicked    []string
	backCalls  int
	closeCalls int
	screenshot []byte
}

const (
	probeFingerprint = "keyFor"
	probeClassify    = "hoverRules"
	probePopupDetail = "topZ"
	probeClose       = "data-dismiss"
	probeNavigation  = "hasDropdown"
)

func (f *fakeDriver) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	return nil
}

func (f *fakeDriver) Eval(ctx context.Context, script string, args ...interface{}) (gson.JSON, error) {
	if err := ctx.Err(); err != nil {
		return gson.New(nil), err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.Contains(script, probeClassify):
		if f.classifyErr != nil {
			return gson.New(nil), f.classifyErr
		}
		return gson.New(f.classify), nil
	case strings.Contains(script, probePopupDetail):
		return gson.New(f.popupDetail), nil
	case strings.Contains(script, probeClose):
		f.closeCalls++
		return gson.New(true), nil
	case strings.Contains(script, probeNavigation):
		return gson.New(f.navigation), nil
	case strings.Contains(script, probeFingerprint):
		if f.fpErr != nil {
			return gson.New(nil), f.fpErr
		}
		idx := f.fpCalls
		f.fpCalls++
		if idx >= len(f.fingerprints) {
			idx = len(f.fingerprints) - 1
		}
		if idx < 0 {
			return gson.New(emptyFP()), nil
		}
		return gson.New(f.fingerprints[idx]), nil
	}
	return gson.New(nil), nil
}

func (f *fakeDriver) Hover(ctx context.Context, selector string) error {
	if f.hoverDelay > 0 {
		t := time.NewTimer(f.hoverDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hovered = append(f.hovered, selector)
	return f.hoverErr
}

func (f *fakeDriver) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicked = append(f.clicked, selector)
	if f.clickErr != nil {
		return f.clickErr
	}
	if f.onClick != nil {
		f.onClick(f)
	}
	return nil
}

func (f *fakeDriver) WaitStable(ctx context.Context, timeout time.Duration) {}

func (f *fakeDriver) Title(ctx context.Context) (string, error) { return "Example Site", nil }

func (f *fakeDriver) CurrentURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

func (f *fakeDriver) Back(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backCalls++
	f.url = "https://example.com"
	return nil
}

func (f *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	return f.screenshot, nil
}

func (f *fakeDriver) Close() {}

func emptyFP() map[string]interface{} {
	return map[string]interface{}{
		"nodes": []interface{}{},
		"links": []interface{}{},
	}
}

func fpWith(nodes []interface{}, links []interface{}) map[string]interface{} {
	if nodes == nil {
		nodes = []interface{}{}
	}
	if links == nil {
		links = []interface{}{}
	}
	return map[string]interface{}{"nodes": nodes, "links": links}
}

func fpNodeJSON(key, tag, text string) map[string]interface{} {
	return map[string]interface{}{"key": key, "tag": tag, "text": text}
}

func fpLinkJSON(key, text, href string) map[string]interface{} {
	return map[string]interface{}{"key": key, "tag": "a", "text": text, "href": href}
}
