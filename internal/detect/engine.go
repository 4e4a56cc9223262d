package detect

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0xg/bddprobe/internal/driver"
)

// Options configures one analysis run.
type Options struct {
	Thresholds Thresholds

	IncludeHover  bool
	IncludePopups bool

	MaxParallelHovers  int
	MaxParallelClicks  int
	MaxHoverCandidates int
	MaxClickCandidates int

	HoverSettle time.Duration
	ClickSettle time.Duration

	// RunTimeout bounds the whole run. Zero means the caller's context
	// decides.
	RunTimeout time.Duration

	CaptureEvidence bool
}

// DefaultOptions returns the profile tuned for typical marketing and
// documentation pages: hovers are cheap and parallel, clicks are riskier and
// run tighter.
func DefaultOptions() Options {
	return Options{
		Thresholds:         DefaultThresholds(),
		IncludeHover:       true,
		IncludePopups:      true,
		MaxParallelHovers:  3,
		MaxParallelClicks:  2,
		MaxHoverCandidates: 15,
		MaxClickCandidates: 10,
		HoverSettle:        500 * time.Millisecond,
		ClickSettle:        time.Second,
	}
}

// Engine runs full-page interaction analysis against a live browser.
type Engine struct {
	drv  driver.Driver
	opts Options
	log  *zap.Logger
}

// New builds an Engine. The driver stays owned by the caller.
func New(drv driver.Driver, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{drv: drv, opts: opts, log: log}
}

// Analyze navigates to url, classifies its interactive elements, simulates
// hover and popup interactions, and assembles the de-duplicated result. Only
// navigation failures abort the run; everything after navigation degrades to
// partial results.
func (e *Engine) Analyze(ctx context.Context, url string) (*PageAnalysis, error) {
	runID := uuid.NewString()
	log := e.log.With(zap.String("run_id", runID), zap.String("url", url))

	if e.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RunTimeout)
		defer cancel()
	}

	log.Info("starting analysis")
	if err := e.drv.Navigate(ctx, url); err != nil {
		return nil, err
	}

	if driver.DismissOverlays(ctx, e.drv) {
		log.Debug("dismissed page overlay")
	}

	title, err := e.drv.Title(ctx)
	if err != nil {
		log.Warn("could not read page title", zap.Error(err))
	}

	candidates, err := Classify(ctx, e.drv, e.opts.Thresholds, log)
	if err != nil {
		log.Warn("classification probe failed, producing empty analysis", zap.Error(err))
	}

	sim := &Simulator{
		Driver:          e.drv,
		Thresholds:      e.opts.Thresholds,
		HoverSettle:     e.opts.HoverSettle,
		ClickSettle:     e.opts.ClickSettle,
		CaptureEvidence: e.opts.CaptureEvidence,
		Logger:          log,
	}

	var hoverOutcomes, popupOutcomes []InteractionOutcome
	if e.opts.IncludeHover {
		hoverables := withRole(candidates, RoleHoverable)
		log.Info("simulating hover interactions", zap.Int("candidates", len(hoverables)))
		hoverOutcomes = sim.RunAll(ctx, ActionHover, hoverables, PoolOptions{
			MaxParallel:   e.opts.MaxParallelHovers,
			MaxCandidates: e.opts.MaxHoverCandidates,
		})
	}
	if e.opts.IncludePopups {
		triggers := popupCandidates(candidates)
		log.Info("simulating popup interactions", zap.Int("candidates", len(triggers)))
		popupOutcomes = sim.RunAll(ctx, ActionClick, triggers, PoolOptions{
			MaxParallel:   e.opts.MaxParallelClicks,
			MaxCandidates: e.opts.MaxClickCandidates,
		})
	}

	nav := ExtractNavigation(ctx, e.drv)

	analysis := Assemble(runID, e.drv.CurrentURL(), title, hoverOutcomes, popupOutcomes, nav, log)
	log.Info("analysis complete",
		zap.Int("hover_interactions", len(analysis.Hover)),
		zap.Int("popup_interactions", len(analysis.Popups)),
		zap.Int("nav_links", len(analysis.Navigation)))
	return analysis, nil
}

// QuickScanResult is a classification-only overview of a page: which
// elements look interactive and why, without exercising any of them.
type QuickScanResult struct {
	URL           string      `json:"url"`
	Title         string      `json:"title"`
	Hoverable     []Candidate `json:"hoverable"`
	Clickable     []Candidate `json:"clickable"`
	PopupTriggers []Candidate `json:"popup_triggers"`
	Navigation    []NavLink   `json:"navigation"`
}

// QuickScan classifies the page and returns the candidates bucketed by role.
// Faster but less accurate than Analyze: nothing is simulated, so a
// candidate here is a hypothesis, not an observed behavior.
func (e *Engine) QuickScan(ctx context.Context, url string) (*QuickScanResult, error) {
	log := e.log.With(zap.String("url", url))

	log.Info("starting quick scan")
	if err := e.drv.Navigate(ctx, url); err != nil {
		return nil, err
	}
	driver.DismissOverlays(ctx, e.drv)

	title, err := e.drv.Title(ctx)
	if err != nil {
		log.Warn("could not read page title", zap.Error(err))
	}

	candidates, err := Classify(ctx, e.drv, e.opts.Thresholds, log)
	if err != nil {
		return nil, err
	}

	result := &QuickScanResult{
		URL:           e.drv.CurrentURL(),
		Title:         title,
		Hoverable:     withRole(candidates, RoleHoverable),
		Clickable:     withRole(candidates, RoleClickable),
		PopupTriggers: withRole(candidates, RolePopupTrigger),
		Navigation:    ExtractNavigation(ctx, e.drv),
	}
	log.Info("quick scan complete",
		zap.Int("hoverable", len(result.Hoverable)),
		zap.Int("clickable", len(result.Clickable)),
		zap.Int("popup_triggers", len(result.PopupTriggers)))
	return result, nil
}

func withRole(candidates []Candidate, role Role) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if c.HasRole(role) {
			out = append(out, c)
		}
	}
	return out
}

// popupCandidates orders explicit popup triggers ahead of plain clickables
// so the candidate cap spends its budget on the likeliest popups first.
func popupCandidates(candidates []Candidate) []Candidate {
	var triggers, clickables []Candidate
	for _, c := range candidates {
		switch {
		case c.HasRole(RolePopupTrigger):
			triggers = append(triggers, c)
		case c.HasRole(RoleClickable) && c.Descriptor.Tag == "button":
			clickables = append(clickables, c)
		}
	}
	return append(triggers, clickables...)
}
