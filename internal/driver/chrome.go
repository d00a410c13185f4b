package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/rahul/casepilot/internal/artifacts"
)

const elementAttr = "data-casepilot-id"

// snapshotScript tags every visible interactive element with elementAttr and
// returns a description of each.
const snapshotScript = `(() => {
  const attr = "data-casepilot-id";
  const sel = "a, button, input, select, textarea, summary, [role=button], [role=link], [role=checkbox], [role=tab], [role=menuitem], [contenteditable=true], [onclick]";
  const out = [];
  let n = 0;
  document.querySelectorAll("[" + attr + "]").forEach(el => el.removeAttribute(attr));
  document.querySelectorAll(sel).forEach(el => {
    const r = el.getBoundingClientRect();
    const style = window.getComputedStyle(el);
    if (r.width === 0 || r.height === 0 || style.visibility === "hidden" || style.display === "none") { return; }
    const id = String(++n);
    el.setAttribute(attr, id);
    let label = el.getAttribute("aria-label") || "";
    if (!label && el.id) {
      const l = document.querySelector("label[for='" + CSS.escape(el.id) + "']");
      if (l) { label = l.innerText; }
    }
    out.push({
      id: id,
      tag: el.tagName.toLowerCase(),
      role: el.getAttribute("role") || "",
      type: el.getAttribute("type") || "",
      text: (el.innerText || el.value || "").trim().slice(0, 120),
      label: label.trim(),
      placeholder: el.getAttribute("placeholder") || "",
      href: el.getAttribute("href") || ""
    });
  });
  return out;
})()`

// ChromeOptions configures the Chrome session.
type ChromeOptions struct {
	Headless      bool
	ActionTimeout time.Duration // per driver call, default 60s
	PollInterval  time.Duration // ai_wait_for polling, default 1s
}

// ChromeDriver drives a local Chrome through chromedp and asks a Brain to
// interpret the page.
type ChromeDriver struct {
	brain Brain
	sink  artifacts.Sink
	opts  ChromeOptions

	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func NewChromeDriver(brain Brain, sink artifacts.Sink, opts ChromeOptions) *ChromeDriver {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &ChromeDriver{brain: brain, sink: sink, opts: opts}
}

func (c *ChromeDriver) initBrowser() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browserCtx != nil {
		select {
		case <-c.browserCtx.Done():
			c.cleanup()
		default:
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.WindowSize(1280, 900),
	)

	c.allocCtx, c.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	c.browserCtx, c.browserCancel = chromedp.NewContext(c.allocCtx)

	return chromedp.Run(c.browserCtx)
}

func (c *ChromeDriver) cleanup() {
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	c.browserCtx = nil
	c.allocCtx = nil
}

// Close shuts the browser down. The next call starts a new one.
func (c *ChromeDriver) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanup()
}

// run executes actions in the browser, bounded by the action timeout and by
// the caller's context.
func (c *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := c.initBrowser(); err != nil {
		return fmt.Errorf("failed to initialize browser: %v", err)
	}

	actionCtx, cancel := context.WithTimeout(c.browserCtx, c.opts.ActionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(actionCtx, actions...)
}

func (c *ChromeDriver) Goto(ctx context.Context, url string) (any, error) {
	if err := c.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil, nil
}

func (c *ChromeDriver) Input(ctx context.Context, text, locate string) (any, error) {
	sel, err := c.locate(ctx, locate)
	if err != nil {
		return nil, err
	}
	err = c.run(ctx,
		chromedp.Focus(sel, chromedp.ByQuery),
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("type into %q: %w", locate, err)
	}
	return nil, nil
}

func (c *ChromeDriver) Tap(ctx context.Context, prompt string) (any, error) {
	sel, err := c.locate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if err := c.run(ctx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("click %q: %w", prompt, err)
	}
	return nil, nil
}

func (c *ChromeDriver) Query(ctx context.Context, demand string, opts map[string]any) (any, error) {
	return c.extract(ctx, ExtractData, demand, opts)
}

func (c *ChromeDriver) String(ctx context.Context, query string, opts map[string]any) (any, error) {
	return c.extract(ctx, ExtractString, query, opts)
}

func (c *ChromeDriver) Number(ctx context.Context, query string, opts map[string]any) (any, error) {
	return c.extract(ctx, ExtractNumber, query, opts)
}

func (c *ChromeDriver) Boolean(ctx context.Context, query string, opts map[string]any) (any, error) {
	return c.extract(ctx, ExtractBoolean, query, opts)
}

func (c *ChromeDriver) Assert(ctx context.Context, prompt string) (any, error) {
	page, err := c.pageText(ctx)
	if err != nil {
		return nil, err
	}
	verdict, err := c.brain.Judge(ctx, prompt, page)
	if err != nil {
		return nil, err
	}
	if !verdict.Pass {
		return nil, fmt.Errorf("assertion failed: %s: %s", prompt, verdict.Reason)
	}
	return true, nil
}

// WaitFor polls the page until the Brain judges prompt true or timeout
// passes.
func (c *ChromeDriver) WaitFor(ctx context.Context, prompt string, timeout time.Duration) (any, error) {
	deadline := time.Now().Add(timeout)
	var last Verdict
	for {
		page, err := c.pageText(ctx)
		if err == nil {
			last, err = c.brain.Judge(ctx, prompt, page)
			if err == nil && last.Pass {
				return true, nil
			}
		}

		if time.Now().Add(c.opts.PollInterval).After(deadline) {
			reason := last.Reason
			if err != nil {
				reason = err.Error()
			}
			return nil, fmt.Errorf("wait for %q timed out after %s: %s", prompt, timeout, reason)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.opts.PollInterval):
		}
	}
}

func (c *ChromeDriver) Scroll(ctx context.Context, opts ScrollOptions) (any, error) {
	target := "(document.scrollingElement || document.documentElement)"
	if opts.LocatePrompt != "" {
		sel, err := c.locate(ctx, opts.LocatePrompt)
		if err != nil {
			return nil, err
		}
		target = queryExpr(sel)
	}
	script, err := scrollScript(target, opts)
	if err != nil {
		return nil, err
	}
	var pos map[string]any
	if err := c.run(ctx, chromedp.Evaluate(script, &pos)); err != nil {
		return nil, fmt.Errorf("scroll %s: %w", opts.Direction, err)
	}
	return nil, nil
}

// Screenshot captures the viewport and hands it to the artifact sink.
func (c *ChromeDriver) Screenshot(ctx context.Context, stem string) (string, error) {
	if c.sink == nil {
		return "", errors.New("no screenshot sink configured")
	}
	var buf []byte
	if err := c.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	return c.sink.Save(ctx, stem+".png", buf)
}

func (c *ChromeDriver) extract(ctx context.Context, kind ExtractKind, demand string, opts map[string]any) (any, error) {
	page, err := c.pageText(ctx)
	if err != nil {
		return nil, err
	}
	return c.brain.Extract(ctx, kind, demand, page, opts)
}

// locate tags the page's interactive elements and returns a CSS selector for
// the one the Brain picks.
func (c *ChromeDriver) locate(ctx context.Context, prompt string) (string, error) {
	var elements []Element
	if err := c.run(ctx, chromedp.Evaluate(snapshotScript, &elements)); err != nil {
		return "", fmt.Errorf("snapshot elements: %w", err)
	}
	if len(elements) == 0 {
		return "", fmt.Errorf("%w: page has no interactive elements (%s)", ErrElementNotFound, prompt)
	}
	id, err := c.brain.Locate(ctx, prompt, elements)
	if err != nil {
		return "", err
	}
	for _, el := range elements {
		if el.ID == id {
			return elementSelector(id), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrElementNotFound, prompt)
}

func (c *ChromeDriver) pageText(ctx context.Context) (string, error) {
	var html, location string
	err := c.run(ctx,
		chromedp.Location(&location),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	return PageText(html, location)
}
