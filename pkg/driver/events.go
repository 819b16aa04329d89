package driver

import "sync"

// Event names emitted by a Client. These double as the dataType values of
// the webhook envelope, except the engine_* pair which stays internal to
// crash recovery.
const (
	EventAuthFailure           = "auth_failure"
	EventAuthenticated         = "authenticated"
	EventCall                  = "call"
	EventChangeState           = "change_state"
	EventChatArchived          = "chat_archived"
	EventChatRemoved           = "chat_removed"
	EventContactChanged        = "contact_changed"
	EventDisconnected          = "disconnected"
	EventGroupJoin             = "group_join"
	EventGroupLeave            = "group_leave"
	EventGroupUpdate           = "group_update"
	EventLoadingScreen         = "loading_screen"
	EventMediaUploaded         = "media_uploaded"
	EventMessage               = "message"
	EventMessageAck            = "message_ack"
	EventMessageCiphertext     = "message_ciphertext"
	EventMessageCreate         = "message_create"
	EventMessageEdit           = "message_edit"
	EventMessageReaction       = "message_reaction"
	EventMessageRevokeEveryone = "message_revoke_everyone"
	EventMessageRevokeMe       = "message_revoke_me"
	EventQR                    = "qr"
	EventReady                 = "ready"
	EventUnreadCount           = "unread_count"

	// EventMedia is synthetic: emitted by the session layer after an
	// attachment download, never by the driver itself.
	EventMedia = "media"

	// Engine lifecycle signals used for crash recovery wiring.
	EventEngineClosed = "engine_closed"
	EventEngineError  = "engine_error"
)

// EventNames lists every driver-emitted event that can carry a webhook.
var EventNames = []string{
	EventAuthFailure,
	EventAuthenticated,
	EventCall,
	EventChangeState,
	EventChatArchived,
	EventChatRemoved,
	EventContactChanged,
	EventDisconnected,
	EventGroupJoin,
	EventGroupLeave,
	EventGroupUpdate,
	EventLoadingScreen,
	EventMediaUploaded,
	EventMessage,
	EventMessageAck,
	EventMessageCiphertext,
	EventMessageCreate,
	EventMessageEdit,
	EventMessageReaction,
	EventMessageRevokeEveryone,
	EventMessageRevokeMe,
	EventQR,
	EventReady,
	EventUnreadCount,
}

// Handler receives the event-specific payload.
type Handler func(data any)

type subscription struct {
	fn   Handler
	once bool
}

// Emitter is an explicit dispatch table from event name to handlers.
// It replaces inheritance-style event emitters: handlers are registered
// once at session start and invoked synchronously in registration order.
type Emitter struct {
	mu       sync.Mutex
	handlers map[string][]*subscription
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string][]*subscription)}
}

// On registers a handler for every occurrence of the event.
func (e *Emitter) On(event string, fn Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], &subscription{fn: fn})
}

// Once registers a handler that fires at most one time.
func (e *Emitter) Once(event string, fn Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], &subscription{fn: fn, once: true})
}

// Off removes every handler registered for the event. Safe to call for
// events with no handlers.
func (e *Emitter) Off(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, event)
}

// Emit invokes the event's handlers with data. Once-handlers are removed
// before their invocation, so a handler re-firing the same event cannot
// trigger itself again.
func (e *Emitter) Emit(event string, data any) {
	e.mu.Lock()
	subs := e.handlers[event]
	if len(subs) == 0 {
		e.mu.Unlock()
		return
	}

	toRun := make([]Handler, 0, len(subs))
	remaining := subs[:0]
	for _, s := range subs {
		toRun = append(toRun, s.fn)
		if !s.once {
			remaining = append(remaining, s)
		}
	}
	if len(remaining) == 0 {
		delete(e.handlers, event)
	} else {
		e.handlers[event] = remaining
	}
	e.mu.Unlock()

	for _, fn := range toRun {
		fn(data)
	}
}

// HasListeners reports whether any handler is registered for the event.
func (e *Emitter) HasListeners(event string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[event]) > 0
}
