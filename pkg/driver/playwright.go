package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// bootstrapJS runs in the page before the web client loads. The client
// build dispatches chatwire:event CustomEvents on window; this script
// relays them into the chatwireEmit binding and mirrors the connection
// state into a global the State query reads.
const bootstrapJS = `(() => {
  window.__chatwire_state = window.__chatwire_state || null;
  window.addEventListener('chatwire:event', (e) => {
    const detail = e.detail || {};
    if (detail.name === 'change_state' && detail.payload) {
      window.__chatwire_state = detail.payload.state || null;
    }
    if (typeof window.chatwireEmit === 'function') {
      window.chatwireEmit(detail.name || 'unknown', detail.payload || {});
    }
  });
})();`

// Runtime owns the shared Playwright process. One runtime serves every
// client in the process; clients only own their browser context.
type Runtime struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	initialized bool
}

// NewRuntime installs (if needed) and starts the Playwright driver.
// Output is discarded so driver chatter never reaches the service logs.
func NewRuntime() (*Runtime, error) {
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	return &Runtime{pw: pw, initialized: true}, nil
}

// Stop shuts down the Playwright process. Clients must be destroyed first.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}
	r.initialized = false
	if err := r.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// NewClient builds a Client backed by this runtime. It satisfies Factory.
func (r *Runtime) NewClient(opts Options) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil, fmt.Errorf("driver runtime not initialized")
	}
	if opts.DataDir == "" {
		return nil, fmt.Errorf("client data dir cannot be empty")
	}
	if opts.ClientURL == "" {
		return nil, fmt.Errorf("client url cannot be empty")
	}

	return &pwClient{
		pw:      r.pw,
		opts:    opts,
		emitter: NewEmitter(),
		state:   StateUnknown,
	}, nil
}

// pwClient is the Playwright-backed Client implementation.
type pwClient struct {
	pw   *playwright.Playwright
	opts Options

	emitter *Emitter

	mu      sync.Mutex
	bctx    playwright.BrowserContext
	page    playwright.Page
	state   State
	started bool
}

func (c *pwClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("client already initialized")
	}
	c.started = true
	c.mu.Unlock()

	launchOpts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(c.opts.Headless),
		Viewport: &playwright.Size{Width: 1280, Height: 900},
	}
	if c.opts.UserAgent != "" {
		launchOpts.UserAgent = playwright.String(c.opts.UserAgent)
	}

	bctx, err := c.pw.Chromium.LaunchPersistentContext(c.opts.DataDir, launchOpts)
	if err != nil {
		return fmt.Errorf("failed to launch browser context: %w", err)
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = bctx.NewPage()
		if err != nil {
			bctx.Close()
			return fmt.Errorf("failed to open page: %w", err)
		}
	}

	if err := page.AddInitScript(playwright.Script{Content: playwright.String(bootstrapJS)}); err != nil {
		bctx.Close()
		return fmt.Errorf("failed to add bootstrap script: %w", err)
	}

	if err := page.ExposeFunction("chatwireEmit", c.binding); err != nil {
		bctx.Close()
		return fmt.Errorf("failed to expose event binding: %w", err)
	}

	page.OnClose(func(playwright.Page) {
		c.emitter.Emit(EventEngineClosed, nil)
	})
	page.OnCrash(func(playwright.Page) {
		c.emitter.Emit(EventEngineError, nil)
	})

	if _, err := page.Goto(c.clientURL(), playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		bctx.Close()
		return fmt.Errorf("failed to open web client: %w", err)
	}

	c.mu.Lock()
	c.bctx = bctx
	c.page = page
	c.mu.Unlock()

	return nil
}

// clientURL appends the pinned client version, when configured.
func (c *pwClient) clientURL() string {
	if c.opts.ClientVersion == "" {
		return c.opts.ClientURL
	}
	sep := "?"
	if u, err := url.Parse(c.opts.ClientURL); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return c.opts.ClientURL + sep + "v=" + url.QueryEscape(c.opts.ClientVersion)
}

// binding receives (name, payload) calls from the page and routes them
// through the dispatch table as typed events.
func (c *pwClient) binding(args ...interface{}) interface{} {
	if len(args) == 0 {
		return nil
	}
	name, _ := args[0].(string)
	var payload any
	if len(args) > 1 {
		payload = args[1]
	}
	c.handleEvent(name, payload)
	return nil
}

func (c *pwClient) handleEvent(name string, payload any) {
	switch name {
	case EventQR:
		code := stringField(payload, "qr")
		if code == "" {
			if s, ok := payload.(string); ok {
				code = s
			}
		}
		c.emitter.Emit(EventQR, code)

	case EventChangeState:
		state := State(stringField(payload, "state"))
		c.setState(state)
		c.emitter.Emit(EventChangeState, state)

	case EventReady:
		c.setState(StateConnected)
		c.emitter.Emit(EventReady, payload)

	case EventDisconnected:
		c.setState(StateUnpaired)
		c.emitter.Emit(EventDisconnected, payload)

	case EventMessage, EventMessageCreate, EventMessageEdit,
		EventMessageCiphertext, EventMessageRevokeEveryone, EventMessageRevokeMe:
		var msg Message
		if decodePayload(payload, &msg) {
			c.emitter.Emit(name, msg)
		} else {
			c.emitter.Emit(name, payload)
		}

	case EventMessageAck:
		var ack AckEvent
		if decodePayload(payload, &ack) {
			c.emitter.Emit(name, ack)
		} else {
			c.emitter.Emit(name, payload)
		}

	default:
		c.emitter.Emit(name, payload)
	}
}

func (c *pwClient) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *pwClient) State(ctx context.Context) (State, error) {
	c.mu.Lock()
	page := c.page
	cached := c.state
	c.mu.Unlock()

	if page == nil {
		return StateUnknown, fmt.Errorf("page not available")
	}

	result, err := page.Evaluate(`() => window.__chatwire_state`)
	if err != nil {
		return StateUnknown, fmt.Errorf("failed to query client state: %w", err)
	}
	if s, ok := result.(string); ok && s != "" {
		state := State(s)
		c.setState(state)
		return state, nil
	}
	return cached, nil
}

func (c *pwClient) Logout(ctx context.Context) error {
	c.mu.Lock()
	page := c.page
	c.mu.Unlock()

	if page == nil {
		return fmt.Errorf("page not available")
	}

	if _, err := page.Evaluate(`() => window.__chatwire_logout && window.__chatwire_logout()`); err != nil {
		return fmt.Errorf("remote logout failed: %w", err)
	}
	return c.Destroy(ctx)
}

func (c *pwClient) Destroy(ctx context.Context) error {
	c.mu.Lock()
	bctx := c.bctx
	c.bctx = nil
	c.page = nil
	c.mu.Unlock()

	if bctx == nil {
		return nil
	}
	if err := bctx.Close(); err != nil {
		return fmt.Errorf("failed to close browser context: %w", err)
	}
	return nil
}

func (c *pwClient) SendSeen(ctx context.Context, chatID string) error {
	c.mu.Lock()
	page := c.page
	c.mu.Unlock()

	if page == nil {
		return fmt.Errorf("page not available")
	}
	if _, err := page.Evaluate(`(chatId) => window.__chatwire_sendSeen && window.__chatwire_sendSeen(chatId)`, chatID); err != nil {
		return fmt.Errorf("failed to send read receipt: %w", err)
	}
	return nil
}

func (c *pwClient) DownloadMedia(ctx context.Context, messageID string) (*Media, error) {
	c.mu.Lock()
	page := c.page
	c.mu.Unlock()

	if page == nil {
		return nil, fmt.Errorf("page not available")
	}

	result, err := page.Evaluate(`(id) => window.__chatwire_downloadMedia && window.__chatwire_downloadMedia(id)`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}

	var media Media
	if !decodePayload(result, &media) {
		return nil, fmt.Errorf("media download returned no data")
	}
	return &media, nil
}

// PageReady reports that the page handle has materialized. A closed page
// still counts as materialized; PageClosed covers that case.
func (c *pwClient) PageReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page != nil
}

func (c *pwClient) PageClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page != nil && c.page.IsClosed()
}

func (c *pwClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bctx == nil {
		return false
	}
	browser := c.bctx.Browser()
	return browser != nil && browser.IsConnected()
}

func (c *pwClient) ClosePages(ctx context.Context) error {
	c.mu.Lock()
	bctx := c.bctx
	c.mu.Unlock()

	if bctx == nil {
		return nil
	}
	for _, p := range bctx.Pages() {
		if err := p.Close(); err != nil {
			return fmt.Errorf("failed to close page: %w", err)
		}
	}
	return nil
}

func (c *pwClient) CloseBrowser(ctx context.Context) error {
	return c.Destroy(ctx)
}

func (c *pwClient) Kill() error {
	c.mu.Lock()
	bctx := c.bctx
	c.bctx = nil
	c.page = nil
	c.mu.Unlock()

	if bctx == nil {
		return nil
	}
	// Best effort: close the browser process directly, ignoring the
	// context's graceful teardown.
	if browser := bctx.Browser(); browser != nil {
		return browser.Close()
	}
	return bctx.Close()
}

func (c *pwClient) On(event string, fn Handler)   { c.emitter.On(event, fn) }
func (c *pwClient) Once(event string, fn Handler) { c.emitter.Once(event, fn) }
func (c *pwClient) Off(event string)              { c.emitter.Off(event) }

// stringField extracts a string member from a JSON-decoded payload map.
func stringField(payload any, key string) string {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// decodePayload converts a JSON-decoded payload into a typed struct.
func decodePayload(payload any, out any) bool {
	if payload == nil {
		return false
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false
	}
	return string(raw) != "null" && string(raw) != "{}"
}
