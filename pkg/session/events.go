package session

import (
	"context"
	"time"

	"github.com/chatwire/chatwire/pkg/driver"
)

// sideEffectTimeout bounds the background driver calls triggered by event
// handlers (read receipts, media downloads).
const sideEffectTimeout = 30 * time.Second

// wireEvents builds the session's dispatch table and attaches a listener
// for every event type the gate allows. The gate is consulted once, here:
// a deny-list change after this point does not affect this session until
// it is restarted.
func (m *Manager) wireEvents(sess *Session) {
	url := m.cfg.WebhookURL(sess.ID)

	forward := func(dataType string, data any) {
		if url == "" {
			m.log.Warnf("session %s: no webhook url configured, dropping %s event", sess.ID, dataType)
			return
		}
		m.dispatcher.Dispatch(url, sess.ID, dataType, data)
	}

	for event, handler := range m.eventHandlers(sess, forward) {
		if !m.gate.IsEnabled(event) {
			m.log.Debugf("session %s: callback %s disabled", sess.ID, event)
			continue
		}
		sess.Client.On(event, handler)
	}
}

type forwardFunc func(dataType string, data any)

// eventHandlers returns the full event-name-to-handler table for a session.
func (m *Manager) eventHandlers(sess *Session, forward forwardFunc) map[string]driver.Handler {
	handlers := map[string]driver.Handler{
		driver.EventQR: func(data any) {
			code, _ := data.(string)
			sess.SetQR(code)
			forward(driver.EventQR, map[string]any{"qr": code})
		},

		driver.EventReady: func(data any) {
			// Pairing is complete; the stored code is stale.
			sess.ClearQR()
			forward(driver.EventReady, map[string]any{"data": data})
		},

		driver.EventAuthenticated: func(data any) {
			sess.ClearQR()
			forward(driver.EventAuthenticated, map[string]any{"data": data})
		},

		driver.EventMessage: func(data any) {
			msg, ok := data.(driver.Message)
			if !ok {
				forward(driver.EventMessage, map[string]any{"message": data})
				return
			}
			forward(driver.EventMessage, map[string]any{"message": msg})
			if m.cfg.MarkSeen {
				go m.sendSeen(sess, msg.ChatID)
			}
			if msg.HasMedia && msg.MediaSize <= m.cfg.MaxAttachmentBytes {
				go m.forwardMedia(sess, forward, msg)
			}
		},

		driver.EventMessageAck: func(data any) {
			ack, ok := data.(driver.AckEvent)
			if !ok {
				forward(driver.EventMessageAck, map[string]any{"ack": data})
				return
			}
			forward(driver.EventMessageAck, map[string]any{"message": ack.Message, "ack": ack.Ack})
			if m.cfg.MarkSeen {
				go m.sendSeen(sess, ack.Message.ChatID)
			}
		},
	}

	// Simple pass-through events: one payload field named after the event's
	// subject.
	passthrough := map[string]string{
		driver.EventAuthFailure:           "data",
		driver.EventCall:                  "call",
		driver.EventChangeState:           "state",
		driver.EventChatArchived:          "chat",
		driver.EventChatRemoved:           "chat",
		driver.EventContactChanged:        "contact",
		driver.EventDisconnected:          "reason",
		driver.EventGroupJoin:             "notification",
		driver.EventGroupLeave:            "notification",
		driver.EventGroupUpdate:           "notification",
		driver.EventLoadingScreen:         "data",
		driver.EventMediaUploaded:         "message",
		driver.EventMessageCiphertext:     "message",
		driver.EventMessageCreate:         "message",
		driver.EventMessageEdit:           "message",
		driver.EventMessageReaction:       "reaction",
		driver.EventMessageRevokeEveryone: "message",
		driver.EventMessageRevokeMe:       "message",
		driver.EventUnreadCount:           "chat",
	}
	for event, field := range passthrough {
		ev, f := event, field
		handlers[ev] = func(data any) {
			forward(ev, map[string]any{f: data})
		}
	}

	return handlers
}

// sendSeen issues a read receipt for a conversation, independent of
// webhook delivery. Failure is logged only.
func (m *Manager) sendSeen(sess *Session, chatID string) {
	if chatID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	if err := sess.Client.SendSeen(ctx, chatID); err != nil {
		m.log.Warnf("session %s: failed to mark chat %s seen: %v", sess.ID, chatID, err)
	}
}

// forwardMedia downloads a message attachment and forwards it as a
// separate media event. A failed download is logged and does not affect
// the original message webhook.
func (m *Manager) forwardMedia(sess *Session, forward forwardFunc, msg driver.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	media, err := sess.Client.DownloadMedia(ctx, msg.ID)
	if err == nil && media == nil {
		return
	}
	if err != nil {
		m.log.Errorf("session %s: failed to download media for message %s: %v", sess.ID, msg.ID, err)
		return
	}
	forward(driver.EventMedia, map[string]any{"messageMedia": media, "message": msg})
}
