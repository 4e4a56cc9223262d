package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ysmood/gson"
)

// Action errors that are recoverable at the per-element level. Callers are
// expected to record them against the element and keep going.
var (
	// ErrElementDetached means the target element is no longer attached to
	// the document (removed or replaced between detection and action).
	ErrElementDetached = errors.New("element detached")

	// ErrActionTimeout means a hover/click/eval exceeded its time bound.
	ErrActionTimeout = errors.New("action timeout")
)

// NavigationError means the initial page load failed. Unlike action errors it
// is fatal to the whole analysis run.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Driver is the page automation capability the detection engine runs against.
// Implementations own a single browser tab; all methods target that tab.
type Driver interface {
	// Navigate loads url and waits for the page to settle. A failure is
	// returned as *NavigationError.
	Navigate(ctx context.Context, url string) error

	// Eval runs a JS function (`() => ...` form) in the page and returns its
	// JSON-serializable result.
	Eval(ctx context.Context, script string, args ...interface{}) (gson.JSON, error)

	// Hover moves the pointer over the element matched by selector.
	Hover(ctx context.Context, selector string) error

	// Click clicks the element matched by selector.
	Click(ctx context.Context, selector string) error

	// WaitStable waits for in-flight network activity to go quiet, bounded
	// by timeout. It never returns an error on timeout; a busy page is
	// treated as settled enough.
	WaitStable(ctx context.Context, timeout time.Duration)

	// Title returns the current document title.
	Title(ctx context.Context) (string, error)

	// CurrentURL returns the tab's current location.
	CurrentURL() string

	// Back navigates one history entry back (used after a click that turned
	// out to be a navigation instead of a popup).
	Back(ctx context.Context) error

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close releases the tab and browser resources.
	Close()
}
