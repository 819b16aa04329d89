package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chatwire/chatwire/pkg/config"
	"github.com/chatwire/chatwire/pkg/driver"
	"github.com/chatwire/chatwire/pkg/logging"
	"github.com/chatwire/chatwire/pkg/storage"
	"github.com/chatwire/chatwire/pkg/webhook"
)

// Sentinel errors surfaced to the HTTP layer as typed failures.
var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// Validation messages. The wording is part of the API contract: callers
// poll status and branch on these strings.
const (
	MsgSessionNotFound     = "session_not_found"
	MsgSessionNotConnected = "session_not_connected"
	MsgSessionConnected    = "session_connected"
	MsgBrowserTabClosed    = "browser tab closed"
	MsgSessionNotReady     = "session not ready yet"
)

// ValidationResult is a point-in-time judgment of whether a session is
// present, reachable, and connected. Never persisted; recomputed on demand.
type ValidationResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	State   driver.State `json:"state,omitempty"`
}

// Default timing bounds. Overridable per manager, mainly for tests.
const (
	defaultPageReadyTimeout  = 20 * time.Second
	defaultPollInterval      = 200 * time.Millisecond
	defaultCloseGrace        = 5 * time.Second
	defaultDisconnectTimeout = 10 * time.Second
	defaultDisconnectPoll    = time.Second
)

// Manager drives the session lifecycle: it creates clients over per-tenant
// persisted credentials, wires their events into the webhook pipeline,
// recovers from browser crashes, and tears sessions down.
type Manager struct {
	cfg        *config.Config
	registry   *Registry
	store      *storage.CredentialStore
	dispatcher *webhook.Dispatcher
	gate       *webhook.Gate
	newClient  driver.Factory
	log        *logging.Logger

	pageReadyTimeout  time.Duration
	pollInterval      time.Duration
	closeGrace        time.Duration
	disconnectTimeout time.Duration
	disconnectPoll    time.Duration
}

// NewManager wires a lifecycle manager over its collaborators.
func NewManager(
	cfg *config.Config,
	registry *Registry,
	store *storage.CredentialStore,
	dispatcher *webhook.Dispatcher,
	gate *webhook.Gate,
	factory driver.Factory,
	log *logging.Logger,
) *Manager {
	return &Manager{
		cfg:               cfg,
		registry:          registry,
		store:             store,
		dispatcher:        dispatcher,
		gate:              gate,
		newClient:         factory,
		log:               log,
		pageReadyTimeout:  defaultPageReadyTimeout,
		pollInterval:      defaultPollInterval,
		closeGrace:        defaultCloseGrace,
		disconnectTimeout: defaultDisconnectTimeout,
		disconnectPoll:    defaultDisconnectPoll,
	}
}

// Registry returns the registry this manager mutates.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// CredentialsExist reports whether a credential directory is on disk for
// the id, independent of whether a session is live.
func (m *Manager) CredentialsExist(id string) bool {
	return m.store.Exists(id)
}

// Start creates a session for id. Fails fast with ErrSessionExists when an
// entry is already registered; the existing session is left untouched.
// The returned session exists before the driver finishes connecting:
// initialization runs in the background and callers poll Validate for
// readiness.
func (m *Manager) Start(id string) (*Session, error) {
	if m.registry.Has(id) {
		return nil, ErrSessionExists
	}

	client, err := m.newClient(driver.Options{
		DataDir:       m.store.Dir(id),
		Headless:      m.cfg.Headless,
		ClientURL:     m.cfg.ClientURL,
		ClientVersion: m.cfg.ClientVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client for session %s: %w", id, err)
	}

	sess := &Session{ID: id, Client: client}
	m.wireEvents(sess)
	m.registry.Set(id, sess)

	go m.initialize(sess)

	m.log.Infof("session %s: started", id)
	return sess, nil
}

// initialize runs the slow driver bootstrap off the Start call path.
// Failure is logged, never surfaced: the session stays registered and a
// later Validate reports it as not ready.
func (m *Manager) initialize(sess *Session) {
	if err := sess.Client.Initialize(context.Background()); err != nil {
		m.log.Errorf("session %s: initialization failed: %v", sess.ID, err)
		return
	}

	if m.cfg.RecoverSessions {
		m.wireRecovery(sess)
	}
}

// wireRecovery attaches one-shot listeners for the page's closed and error
// signals once the page exists. Both signals funnel into a single reload,
// guarded so close+error double-firing triggers exactly one restart.
func (m *Manager) wireRecovery(sess *Session) {
	var once sync.Once
	trigger := func(any) {
		once.Do(func() {
			m.log.Warnf("session %s: browser page lost, restarting", sess.ID)
			go func() {
				if err := m.Reload(sess.ID); err != nil {
					m.log.Errorf("session %s: recovery restart failed: %v", sess.ID, err)
				}
			}()
		})
	}

	sess.Client.Once(driver.EventEngineClosed, trigger)
	sess.Client.Once(driver.EventEngineError, trigger)
}

// detachRecovery removes the crash-recovery listeners so an intentional
// close does not trigger a spurious restart. Idempotent.
func (m *Manager) detachRecovery(c driver.Client) {
	c.Off(driver.EventEngineClosed)
	c.Off(driver.EventEngineError)
}

// Validate reports whether the session is present, reachable, and
// connected. It never returns an error and never panics: every failure
// mode is folded into the result.
func (m *Manager) Validate(id string) (result ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("session %s: validate panicked: %v", id, r)
			result = ValidationResult{Success: false, Message: fmt.Sprintf("%v", r)}
		}
	}()

	sess, ok := m.registry.Get(id)
	if !ok {
		return ValidationResult{Success: false, Message: MsgSessionNotFound}
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.pageReadyTimeout+time.Second)
	defer cancel()

	// Bootstrap race: the client handle exists before its page does.
	if !waitFor(ctx, m.pageReadyTimeout, m.pollInterval, sess.Client.PageReady) {
		return ValidationResult{Success: false, Message: MsgSessionNotReady}
	}

	if sess.Client.PageClosed() {
		return ValidationResult{Success: false, Message: MsgBrowserTabClosed}
	}

	state, err := sess.Client.State(ctx)
	if err != nil {
		return ValidationResult{Success: false, Message: err.Error()}
	}
	if state != driver.StateConnected {
		return ValidationResult{Success: false, Message: MsgSessionNotConnected, State: state}
	}
	return ValidationResult{Success: true, Message: MsgSessionConnected, State: state}
}

// Reload hot-restarts a session in place: same id, fresh client. Missing
// session, page, or browser are expected races on the recovery path and
// downgrade to a warning. Teardown failures fall back to a forced kill;
// anything still failing propagates, since callers already log loudly.
func (m *Manager) Reload(id string) error {
	sess, ok := m.registry.Get(id)
	if !ok {
		m.log.Warnf("session %s: reload skipped, session not found", id)
		return nil
	}

	c := sess.Client
	if !c.PageReady() || !c.Connected() {
		m.log.Warnf("session %s: reload skipped, browser not available", id)
		return nil
	}

	// Detach before closing, or the close below would trigger recovery.
	m.detachRecovery(c)

	if err := runWithTimeout(m.closeGrace, c.ClosePages); err != nil {
		m.log.Warnf("session %s: graceful page close failed (%v), killing browser", id, err)
		if kerr := c.Kill(); kerr != nil {
			return fmt.Errorf("failed to kill browser for session %s: %w", id, kerr)
		}
	} else if err := runWithTimeout(m.closeGrace, c.CloseBrowser); err != nil {
		m.log.Warnf("session %s: graceful browser close failed (%v), killing browser", id, err)
		if kerr := c.Kill(); kerr != nil {
			return fmt.Errorf("failed to kill browser for session %s: %w", id, kerr)
		}
	}

	m.registry.Delete(id)

	if _, err := m.Start(id); err != nil {
		return fmt.Errorf("failed to restart session %s: %w", id, err)
	}
	m.log.Infof("session %s: reloaded", id)
	return nil
}

// Terminate tears a session down using a previously computed validation:
// a connected session gets a remote logout, anything else a local destroy
// (logging out an already-disconnected session can hang). The credential
// directory is deleted and the registry entry removed. Errors propagate.
func (m *Manager) Terminate(id string, v ValidationResult) error {
	sess, ok := m.registry.Get(id)
	if !ok {
		// Orphaned credentials (e.g. after a crash): nothing to tear down,
		// but the directory still goes.
		if err := m.store.Delete(id); err != nil {
			return fmt.Errorf("failed to delete credentials for session %s: %w", id, err)
		}
		return nil
	}

	c := sess.Client
	m.detachRecovery(c)

	ctx := context.Background()
	if v.Success {
		if err := c.Logout(ctx); err != nil {
			return fmt.Errorf("failed to log out session %s: %w", id, err)
		}
	} else {
		if err := c.Destroy(ctx); err != nil {
			return fmt.Errorf("failed to destroy session %s: %w", id, err)
		}
	}

	// Bounded wait for the browser process to let go of the profile
	// directory; proceed regardless once the bound is hit.
	if !waitFor(ctx, m.disconnectTimeout, m.disconnectPoll, func() bool { return !c.Connected() }) {
		m.log.Warnf("session %s: browser still connected after teardown wait", id)
	}

	if err := m.store.Delete(id); err != nil {
		return fmt.Errorf("failed to delete credentials for session %s: %w", id, err)
	}
	m.registry.Delete(id)

	m.log.Infof("session %s: terminated", id)
	return nil
}

// Shutdown destroys every live client without touching credentials, so
// sessions restore on the next start. Used on process exit.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, id := range m.registry.IDs() {
		sess, ok := m.registry.Get(id)
		if !ok {
			continue
		}
		m.detachRecovery(sess.Client)
		if err := sess.Client.Destroy(ctx); err != nil {
			m.log.Errorf("session %s: shutdown destroy failed: %v", id, err)
		}
		m.registry.Delete(id)
	}
}
