package session

import (
	"context"
	"sync"
	"time"

	"github.com/chatwire/chatwire/pkg/driver"
)

// fakeClient is a scripted driver.Client for lifecycle tests.
type fakeClient struct {
	*driver.Emitter

	opts driver.Options

	mu         sync.Mutex
	pageReady  bool
	pageClosed bool
	connected  bool
	state      driver.State

	initErr    error
	initDelay  time.Duration
	stateErr   error
	logoutErr  error
	destroyErr error

	closePagesHang bool

	media    *driver.Media
	mediaErr error

	calls []string
	seen  []string
}

func newFakeClient(opts driver.Options) *fakeClient {
	return &fakeClient{
		Emitter: driver.NewEmitter(),
		opts:    opts,
		state:   driver.StateOpening,
	}
}

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeClient) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeClient) setState(s driver.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// crashPage simulates the browser tab dying underneath the session.
func (f *fakeClient) crashPage() {
	f.mu.Lock()
	f.pageClosed = true
	f.mu.Unlock()
	f.Emit(driver.EventEngineClosed, nil)
	f.Emit(driver.EventEngineError, nil)
}

func (f *fakeClient) Initialize(ctx context.Context) error {
	f.record("initialize")
	if f.initDelay > 0 {
		time.Sleep(f.initDelay)
	}
	if f.initErr != nil {
		return f.initErr
	}
	f.mu.Lock()
	f.pageReady = true
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) State(ctx context.Context) (driver.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return driver.StateUnknown, f.stateErr
	}
	return f.state, nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.record("logout")
	if f.logoutErr != nil {
		return f.logoutErr
	}
	f.mu.Lock()
	f.connected = false
	f.pageReady = false
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Destroy(ctx context.Context) error {
	f.record("destroy")
	if f.destroyErr != nil {
		return f.destroyErr
	}
	f.mu.Lock()
	f.connected = false
	f.pageReady = false
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) SendSeen(ctx context.Context, chatID string) error {
	f.mu.Lock()
	f.seen = append(f.seen, chatID)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) seenChats() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func (f *fakeClient) DownloadMedia(ctx context.Context, messageID string) (*driver.Media, error) {
	f.record("download_media")
	if f.mediaErr != nil {
		return nil, f.mediaErr
	}
	return f.media, nil
}

func (f *fakeClient) PageReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageReady
}

func (f *fakeClient) PageClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageClosed
}

func (f *fakeClient) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) ClosePages(ctx context.Context) error {
	f.record("close_pages")
	if f.closePagesHang {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeClient) CloseBrowser(ctx context.Context) error {
	f.record("close_browser")
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Kill() error {
	f.record("kill")
	f.mu.Lock()
	f.connected = false
	f.pageReady = false
	f.mu.Unlock()
	return nil
}

// fakeFactory builds fakeClients and remembers every instance.
type fakeFactory struct {
	mu        sync.Mutex
	clients   []*fakeClient
	configure func(*fakeClient)
}

func (ff *fakeFactory) new(opts driver.Options) (driver.Client, error) {
	c := newFakeClient(opts)
	ff.mu.Lock()
	if ff.configure != nil {
		ff.configure(c)
	}
	ff.clients = append(ff.clients, c)
	ff.mu.Unlock()
	return c, nil
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.clients)
}

func (ff *fakeFactory) client(i int) *fakeClient {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.clients[i]
}
