// Package driver wraps the browser-automation client behind a small
// interface. One Client owns one persistent browser profile, one page
// running the hosted web messaging client, and an event dispatch table
// relaying client events to subscribers. The wire protocol itself lives
// inside the web client; this package only automates it.
package driver

import "context"

// State is the connection state reported by the web client. It is passed
// through opaquely except for StateConnected, the single value meaning
// "fully usable".
type State string

const (
	StateConnected State = "CONNECTED"
	StateOpening   State = "OPENING"
	StatePairing   State = "PAIRING"
	StateTimeout   State = "TIMEOUT"
	StateUnpaired  State = "UNPAIRED"
	StateUnknown   State = ""
)

// Message is an incoming or echoed chat message.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Body      string `json:"body"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	HasMedia  bool   `json:"hasMedia"`
	MediaSize int64  `json:"mediaSize"`
}

// AckEvent is a delivery/read acknowledgment change for a message.
type AckEvent struct {
	Message Message `json:"message"`
	Ack     int     `json:"ack"`
}

// Media is a downloaded message attachment, base64-encoded.
type Media struct {
	MimeType string `json:"mimetype"`
	Filename string `json:"filename"`
	Data     string `json:"data"`
	Size     int64  `json:"size"`
}

// Options configure one client instance.
type Options struct {
	// DataDir is the persistent browser profile directory. Its presence on
	// disk is the durable record that the session was configured.
	DataDir string

	Headless bool

	// ClientURL is the hosted web client location. ClientVersion, when set,
	// pins the served client build via a query parameter.
	ClientURL     string
	ClientVersion string

	UserAgent string
}

// Client is the automation-driven messaging client handle. The lifecycle
// manager treats it as opaque: it never reaches into browser internals.
//
// Initialize is slow (browser launch plus client bootstrap) and is expected
// to be called from a goroutine; the page handle materializes some time
// after the Client value exists, which is why PageReady is polled.
type Client interface {
	// Initialize launches the browser, navigates to the web client, and
	// wires event relaying. Returns once the page is up; pairing and
	// connection continue asynchronously via events.
	Initialize(ctx context.Context) error

	// State queries the web client's connection state.
	State(ctx context.Context) (State, error)

	// Logout signs the paired device out remotely, then tears down locally.
	Logout(ctx context.Context) error

	// Destroy tears down locally without a remote sign-out. Used when the
	// session is not connected, where a remote logout can hang or error.
	Destroy(ctx context.Context) error

	// SendSeen sends a read receipt for a conversation.
	SendSeen(ctx context.Context, chatID string) error

	// DownloadMedia fetches a message attachment.
	DownloadMedia(ctx context.Context, messageID string) (*Media, error)

	// PageReady reports whether the internal page handle has materialized.
	PageReady() bool

	// PageClosed reports whether the page was closed out from under us.
	PageClosed() bool

	// Connected reports whether the underlying browser process is still
	// attached.
	Connected() bool

	// ClosePages gracefully closes all open pages.
	ClosePages(ctx context.Context) error

	// CloseBrowser gracefully closes the browser.
	CloseBrowser(ctx context.Context) error

	// Kill force-terminates the browser, ignoring graceful shutdown.
	Kill() error

	// Event subscription. Events are the names declared in this package;
	// Off removes every handler for the event.
	On(event string, fn Handler)
	Once(event string, fn Handler)
	Off(event string)
}

// Factory builds a Client for a set of options. The lifecycle manager is
// handed a Factory so tests can substitute scripted clients.
type Factory func(opts Options) (Client, error)
