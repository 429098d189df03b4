package fetch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpfetch "github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const scrollScript = `window.scrollTo(0, document.body.scrollHeight)`

// DefaultBlockedResources are never downloaded in scripted mode.
var DefaultBlockedResources = []network.ResourceType{
	network.ResourceTypeImage,
	network.ResourceTypeFont,
	network.ResourceTypeMedia,
	network.ResourceTypeStylesheet,
}

// ScriptedOptions configures the headless browser fetcher.
type ScriptedOptions struct {
	ExecPath         string // empty lets chromedp locate Chrome
	UserAgent        string
	PageTimeout      time.Duration
	SettleDelay      time.Duration // wait after DOM ready before snapshotting
	ScrollPasses     int           // scroll-to-bottom passes for lazy lists
	ScrollPause      time.Duration
	BlockedResources []network.ResourceType
}

func (o *ScriptedOptions) setDefaults() {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.PageTimeout <= 0 {
		o.PageTimeout = 45 * time.Second
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 3 * time.Second
	}
	if o.ScrollPause <= 0 {
		o.ScrollPause = time.Second
	}
	if o.BlockedResources == nil {
		o.BlockedResources = DefaultBlockedResources
	}
}

// Scripted renders pages in headless Chrome. Every Open starts a dedicated
// browser process that lives until the session is closed.
type Scripted struct {
	opts ScriptedOptions
}

// NewScripted constructs a scripted fetcher.
func NewScripted(opts ScriptedOptions) *Scripted {
	opts.setDefaults()
	return &Scripted{opts: opts}
}

func (s *Scripted) Mode() Mode { return ModeScripted }

// Open starts a headless browser.
func (s *Scripted) Open(ctx context.Context) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(s.opts.UserAgent),
		chromedp.WindowSize(1366, 768),
	)
	if s.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(s.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run launches the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, &Failure{URL: "about:blank", Kind: KindNetwork, Cause: fmt.Errorf("start browser: %w", err)}
	}

	return &scriptedSession{
		opts:       s.opts,
		browserCtx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}, nil
}

type scriptedSession struct {
	opts       ScriptedOptions
	browserCtx context.Context
	cancel     func()
	closed     atomic.Bool
}

// Fetch renders url in a fresh tab and snapshots the resulting DOM.
func (s *scriptedSession) Fetch(ctx context.Context, url string) (*Page, error) {
	if s.closed.Load() {
		return nil, &Failure{URL: url, Kind: KindNetwork, Cause: fmt.Errorf("session closed")}
	}

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.opts.PageTimeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var status atomic.Int64
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *cdpfetch.EventRequestPaused:
			// Only blocked resource types are intercepted.
			go func(id cdpfetch.RequestID) {
				c := chromedp.FromContext(tabCtx)
				if c == nil || c.Target == nil {
					return
				}
				_ = cdpfetch.FailRequest(id, network.ErrorReasonBlockedByClient).
					Do(cdp.WithExecutor(tabCtx, c.Target))
			}(e.RequestID)
		case *network.EventResponseReceived:
			if e.Type == network.ResourceTypeDocument && e.Response != nil {
				status.CompareAndSwap(0, e.Response.Status)
			}
		}
	})

	patterns := blockPatterns(s.opts.BlockedResources)

	headers := make(network.Headers, len(BrowserHeaders))
	for k, v := range BrowserHeaders {
		headers[k] = v
	}

	var title, html string
	tasks := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
	}
	if len(patterns) > 0 {
		tasks = append(tasks, cdpfetch.Enable().WithPatterns(patterns))
	}
	tasks = append(tasks,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.opts.SettleDelay),
	)
	for i := 0; i < s.opts.ScrollPasses; i++ {
		tasks = append(tasks,
			chromedp.Evaluate(scrollScript, nil),
			chromedp.Sleep(s.opts.ScrollPause),
		)
	}
	tasks = append(tasks,
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(tabCtx, tasks); err != nil {
		return nil, newFailure(url, err)
	}

	// Zero means no document response was observed, e.g. a page served
	// from cache.
	code := int(status.Load())
	if code != 0 {
		if err := checkStatus(url, code); err != nil {
			return nil, err
		}
	}

	page, err := parse(url, code, html)
	if err != nil {
		return nil, err
	}
	if title != "" {
		page.Title = title
	}
	return page, nil
}

// blockPatterns intercepts every request of the given resource types.
func blockPatterns(types []network.ResourceType) []*cdpfetch.RequestPattern {
	patterns := make([]*cdpfetch.RequestPattern, 0, len(types))
	for _, rt := range types {
		patterns = append(patterns, &cdpfetch.RequestPattern{
			URLPattern:   "*",
			ResourceType: rt,
			RequestStage: cdpfetch.RequestStageRequest,
		})
	}
	return patterns
}

// Close terminates the browser. It is safe to call more than once.
func (s *scriptedSession) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.cancel()
	}
	return nil
}
