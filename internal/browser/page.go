package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"adlib/internal/adlib"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const (
	evalTimeout = 5 * time.Second
	htmlTimeout = 10 * time.Second
	idleWindow  = 500 * time.Millisecond
	bodyWait    = 5 * time.Second
)

// Driver launches one browser per page it opens.
type Driver struct {
	cfg Config
}

// NewDriver creates a Driver for cfg.
func NewDriver(cfg Config) *Driver {
	return &Driver{cfg: cfg}
}

// Check reports adlib.ErrBrowserUnavailable when no browser executable exists.
func (d *Driver) Check() error {
	_, err := LookBin(d.cfg)
	return err
}

// Open launches a browser, opens a tab with the given user agent and starts
// recording network responses before anything is loaded.
func (d *Driver) Open(ctx context.Context, userAgent string) (adlib.Page, error) {
	b, err := New(d.cfg)
	if err != nil {
		return nil, err
	}

	page, err := b.NewPage()
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
		page.Close()
		b.Close()
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		page.Close()
		b.Close()
		return nil, fmt.Errorf("failed to enable network events: %w", err)
	}

	p := newPage(b, page)
	wait := page.Context(ctx).EachEvent(p.onResponse, p.onFinished, p.onFailed)
	go wait()

	return p, nil
}

// request tracks one response from its headers until its body is complete.
type request struct {
	resp   adlib.InterceptedResponse
	done   chan struct{}
	closed bool
	err    error
}

// Page is a rod tab that records every response in the order its headers
// arrived. Bodies are read on demand once loading has finished.
type Page struct {
	browser *Browser
	page    *rod.Page

	// fetch reads a finished body from the browser.
	fetch    func(proto.NetworkRequestID) ([]byte, error)
	bodyWait time.Duration

	mu       sync.Mutex
	order    []proto.NetworkRequestID
	requests map[proto.NetworkRequestID]*request
}

func newPage(b *Browser, page *rod.Page) *Page {
	p := &Page{
		browser:  b,
		page:     page,
		bodyWait: bodyWait,
		requests: make(map[proto.NetworkRequestID]*request),
	}
	p.fetch = p.body
	return p
}

func (p *Page) onResponse(e *proto.NetworkResponseReceived) {
	if e.Response == nil {
		return
	}
	id := e.RequestID
	resp := adlib.InterceptedResponse{
		URL:          e.Response.URL,
		Status:       e.Response.Status,
		ContentType:  contentType(e.Response),
		ResourceType: strings.ToLower(string(e.Type)),
		ReadBody:     func() ([]byte, error) { return p.readBody(id) },
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.requests[id]; ok {
		r.resp = resp
		return
	}
	p.requests[id] = &request{resp: resp, done: make(chan struct{})}
	p.order = append(p.order, id)
}

func (p *Page) onFinished(e *proto.NetworkLoadingFinished) {
	p.finish(e.RequestID, nil)
}

func (p *Page) onFailed(e *proto.NetworkLoadingFailed) {
	p.finish(e.RequestID, fmt.Errorf("loading failed: %s", e.ErrorText))
}

func (p *Page) finish(id proto.NetworkRequestID, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.requests[id]
	if !ok || r.closed {
		return
	}
	r.closed = true
	r.err = err
	close(r.done)
}

// readBody waits up to bodyWait for the request to finish loading, then
// fetches its body.
func (p *Page) readBody(id proto.NetworkRequestID) ([]byte, error) {
	p.mu.Lock()
	r, ok := p.requests[id]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown request %s", id)
	}

	t := time.NewTimer(p.bodyWait)
	defer t.Stop()
	select {
	case <-r.done:
	case <-t.C:
		return nil, fmt.Errorf("body of %s still loading after %s", r.resp.URL, p.bodyWait)
	}
	if r.err != nil {
		return nil, r.err
	}
	return p.fetch(id)
}

func (p *Page) body(id proto.NetworkRequestID) ([]byte, error) {
	res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(p.page)
	if err != nil {
		return nil, err
	}
	if res.Base64Encoded {
		return base64.StdEncoding.DecodeString(res.Body)
	}
	return []byte(res.Body), nil
}

func contentType(res *proto.NetworkResponse) string {
	for k, v := range res.Headers {
		if strings.EqualFold(k, "content-type") {
			return v.Str()
		}
	}
	return res.MIMEType
}

// Navigate loads url and waits for the load event, both within timeout.
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

// WaitNetworkIdle blocks until no request has been in flight for a short
// window, ignoring images and media. It returns the context error on timeout.
func (p *Page) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	wait := page.WaitRequestIdle(
		idleWindow, nil, nil,
		[]proto.NetworkResourceType{proto.NetworkResourceTypeImage, proto.NetworkResourceTypeMedia},
	)
	wait()
	return page.GetContext().Err()
}

// Eval runs script against the page.
func (p *Page) Eval(ctx context.Context, script string) error {
	page := p.page.Context(ctx).Timeout(evalTimeout)
	defer page.CancelTimeout()

	_, err := page.Eval(script)
	return err
}

// Responses returns the responses observed so far in arrival order,
// including those whose bodies are still loading.
func (p *Page) Responses() []adlib.InterceptedResponse {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]adlib.InterceptedResponse, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.requests[id].resp)
	}
	return out
}

// HTML returns the rendered document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	page := p.page.Context(ctx).Timeout(htmlTimeout)
	defer page.CancelTimeout()

	return page.HTML()
}

// Close closes the tab and the browser that owns it.
func (p *Page) Close() error {
	return errors.Join(p.page.Close(), p.browser.Close())
}
