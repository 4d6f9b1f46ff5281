package browser

import (
	"fmt"
	"os"

	"adlib/internal/adlib"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config controls how the browser is launched.
type Config struct {
	ProxyURL string
	Headless bool
	Bin      string // browser executable; looked up on PATH when empty
}

// Browser wraps a launched rod.Browser together with its launcher.
type Browser struct {
	browser  *rod.Browser
	launcher process
}

// LookBin resolves the browser executable without downloading one.
func LookBin(cfg Config) (string, error) {
	if cfg.Bin != "" {
		if _, err := os.Stat(cfg.Bin); err != nil {
			return "", fmt.Errorf("%w: %v", adlib.ErrBrowserUnavailable, err)
		}
		return cfg.Bin, nil
	}
	if path, has := launcher.LookPath(); has {
		return path, nil
	}
	return "", fmt.Errorf("%w: no chrome or chromium found, install one or set --browser-bin", adlib.ErrBrowserUnavailable)
}

// New launches a browser and connects to it.
func New(cfg Config) (*Browser, error) {
	bin, err := LookBin(cfg)
	if err != nil {
		return nil, err
	}

	l := launcher.New().Bin(bin).Headless(cfg.Headless)
	if cfg.ProxyURL != "" {
		l = l.Proxy(cfg.ProxyURL)
	}
	return start(l, connect)
}

// process is the part of *launcher.Launcher that New drives.
type process interface {
	Launch() (string, error)
	Kill()
	Cleanup()
}

func connect(u string) (*rod.Browser, error) {
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, err
	}
	return b, nil
}

// start launches l and connects to it. When the connection fails the
// launched process is killed and its user data dir removed.
func start(l process, dial func(string) (*rod.Browser, error)) (*Browser, error) {
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b, err := dial(u)
	if err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{browser: b, launcher: l}, nil
}

// NewPage opens a blank tab.
func (b *Browser) NewPage() (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Close closes the browser and kills the launched process.
func (b *Browser) Close() error {
	var closeErr error
	if b.browser != nil {
		closeErr = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
	return closeErr
}
