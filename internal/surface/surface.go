// Package surface attaches to the monitored browser surface over the
// DevTools protocol. It installs a lightweight in-page hook that records
// raw input events, drains them on a short tick, captures frames for the
// vision loop, and extracts the currently visible content.
package surface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/ambientlearn/watcher/internal/domain"
	"github.com/ambientlearn/watcher/internal/relay"
)

// ErrNoFrameSource indicates no page is attached to capture from.
var ErrNoFrameSource = errors.New("no frame source")

// drainInterval is how often buffered in-page events are pulled out.
const drainInterval = 500 * time.Millisecond

// maxContentLength bounds extracted screen content.
const maxContentLength = 3000

// InputEvent is one raw input event observed in the page.
type InputEvent struct {
	Type string  `json:"type"` // "key" or "scroll"
	Key  string  `json:"key"`
	Y    float64 `json:"y"`
	TS   float64 `json:"ts"` // epoch millis
}

// Options configures the surface attachment.
type Options struct {
	DebuggerURL  string
	FrameWidth   int
	FrameHeight  int
	FrameQuality int
}

// Watcher owns the connection to the monitored page.
type Watcher struct {
	browser *rod.Browser
	page    *rod.Page
	router  *relay.Router
	opts    Options
	logger  *slog.Logger
}

// Connect attaches to a running Chrome via its debugger URL and takes the
// first open page as the monitored surface.
func Connect(ctx context.Context, opts Options, router *relay.Router, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	browser := rod.New().ControlURL(opts.DebuggerURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	pages, err := browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, errors.New("no open pages to monitor")
	}
	page := pages[0]

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.FrameWidth,
		Height:            opts.FrameHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logger.Warn("[SURFACE] Failed to set viewport", "error", err)
	}

	w := &Watcher{
		browser: browser,
		page:    page,
		router:  router,
		opts:    opts,
		logger:  logger,
	}

	if err := w.installHook(ctx); err != nil {
		return nil, fmt.Errorf("install input hook: %w", err)
	}

	logger.Info("[SURFACE] Attached to monitored page", "url", w.URL())
	return w, nil
}

// installHook plants the in-page event recorder. Idempotent: the hook
// guards itself against double installation.
func (w *Watcher) installHook(ctx context.Context) error {
	_, err := w.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `
		() => {
			const w = window;
			if (w.__watcherHooked) return true;
			w.__watcherHooked = true;
			w.__watcherEvents = [];

			document.addEventListener('keydown', (ev) => {
				try {
					w.__watcherEvents.push({ type: 'key', key: ev.key || '', ts: Date.now() });
				} catch (e) {}
			}, true);

			window.addEventListener('scroll', () => {
				try {
					w.__watcherEvents.push({ type: 'scroll', y: window.scrollY || 0, ts: Date.now() });
				} catch (e) {}
			}, true);

			return true;
		}
		`,
		ByValue:      true,
		AwaitPromise: true,
	})
	return err
}

// Run drains buffered input events on a short tick and relays each batch
// from the surface boundary to the host. Returns when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			events, err := w.drainEvents(ctx)
			if err != nil {
				w.logger.Debug("[SURFACE] Event drain failed", "error", err)
				continue
			}
			if len(events) == 0 {
				continue
			}
			w.router.Dispatch(relay.BoundarySurface, relay.Message{
				Kind:    relay.KindActivity,
				Payload: events,
			})
		}
	}
}

// drainEvents pulls and clears the in-page event queue. The hook may have
// been lost to a navigation; reinstall before draining.
func (w *Watcher) drainEvents(ctx context.Context) ([]InputEvent, error) {
	if err := w.installHook(ctx); err != nil {
		return nil, err
	}

	res, err := w.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `
		() => {
			const buf = Array.isArray(window.__watcherEvents) ? window.__watcherEvents : [];
			window.__watcherEvents = [];
			return buf;
		}
		`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, err
	}
	if res == nil || res.Value.Nil() {
		return nil, nil
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var events []InputEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CaptureFrame grabs one JPEG frame of the visible viewport at the
// configured quality.
func (w *Watcher) CaptureFrame(ctx context.Context) ([]byte, error) {
	if w.page == nil {
		return nil, ErrNoFrameSource
	}

	quality := w.opts.FrameQuality
	frame, err := w.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
	})
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}
	return frame, nil
}

// ExtractContent pulls the most relevant visible content from the page.
// Precedence is fixed: code blocks, then rendered math, then the focused
// editable element, then the page's visible text.
func (w *Watcher) ExtractContent(ctx context.Context) (string, domain.ContentType, string, error) {
	res, err := w.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `
		() => {
			const pick = () => {
				const code = document.querySelector('pre code, pre, .CodeMirror, .monaco-editor');
				if (code && code.innerText && code.innerText.trim()) {
					return { text: code.innerText, kind: 'code' };
				}
				const math = document.querySelector('.katex, .MathJax, math, .mq-root-block');
				if (math && math.textContent && math.textContent.trim()) {
					return { text: math.textContent, kind: 'equation' };
				}
				const el = document.activeElement;
				if (el && (el.tagName === 'TEXTAREA' || el.tagName === 'INPUT' || el.isContentEditable)) {
					const v = el.value !== undefined ? el.value : el.innerText;
					if (v && v.trim()) return { text: v, kind: 'text' };
				}
				return { text: (document.body && document.body.innerText) || '', kind: 'text' };
			};
			const r = pick();
			return { text: r.text, kind: r.kind, url: location.href };
		}
		`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return "", domain.ContentTypeText, "", err
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return "", domain.ContentTypeText, "", err
	}

	var out struct {
		Text string `json:"text"`
		Kind string `json:"kind"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", domain.ContentTypeText, "", err
	}

	kind := domain.ContentType(out.Kind)
	switch kind {
	case domain.ContentTypeCode, domain.ContentTypeEquation, domain.ContentTypeText:
	default:
		kind = domain.ContentTypeText
	}

	return TruncateContent(out.Text, maxContentLength), kind, out.URL, nil
}

// URL returns the monitored page's current location, best effort.
func (w *Watcher) URL() string {
	if w.page == nil {
		return ""
	}
	info, err := w.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Close detaches from the browser without closing the user's pages.
func (w *Watcher) Close() error {
	if w.browser == nil {
		return nil
	}
	return w.browser.Close()
}

// TruncateContent bounds extracted content to max runes.
func TruncateContent(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
