// Package router dispatches incoming transport updates to handlers through a
// static registry: a tagged Kind looked up in a map populated at startup.
package router

import (
	"context"
	"strings"
	"sync"

	"kanabot/internal/transport"
	"kanabot/pkg/logx"
)

// Kind identifies the closed set of update kinds the bot understands.
type Kind string

const (
	KindStart    Kind = "start"
	KindSettings Kind = "settings"
	KindAnswer   Kind = "answer"
	KindAccept   Kind = "accept"
	KindUnknown  Kind = "unknown"
)

// acceptPrefix matches telebot's unique-callback encoding for the accept button.
const acceptPrefix = "\faccept"

type HandlerFunc func(ctx context.Context, up transport.Update) error

type Router struct {
	mu       sync.RWMutex
	handlers map[Kind]HandlerFunc
	log      logx.Logger
}

func New(log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{handlers: map[Kind]HandlerFunc{}, log: log}
}

// Handle registers the handler for a kind. Later registrations win.
func (r *Router) Handle(k Kind, fn HandlerFunc) {
	r.mu.Lock()
	r.handlers[k] = fn
	r.mu.Unlock()
}

// Dispatch classifies the update and invokes the registered handler.
// Updates of unknown kind are dropped with a debug log.
func (r *Router) Dispatch(ctx context.Context, up transport.Update) {
	k := Classify(up)

	r.mu.RLock()
	fn := r.handlers[k]
	r.mu.RUnlock()

	if fn == nil {
		r.log.Debug("no handler for update", logx.String("kind", string(k)))
		return
	}
	if err := fn(ctx, up); err != nil {
		r.log.Error("handler failed", logx.String("kind", string(k)), logx.Err(err))
	}
}

// Classify maps an update to its Kind.
func Classify(up transport.Update) Kind {
	switch up.Kind {
	case transport.UpdateCallback:
		if up.Callback != nil && strings.HasPrefix(up.Callback.Data, acceptPrefix) {
			return KindAccept
		}
		return KindUnknown
	case transport.UpdateMessage:
		if up.Message == nil {
			return KindUnknown
		}
		text := strings.TrimSpace(up.Message.Text)
		switch {
		case text == "/start":
			return KindStart
		case strings.HasPrefix(text, "/settings"):
			return KindSettings
		case strings.HasPrefix(text, "/"):
			return KindUnknown
		default:
			return KindAnswer
		}
	default:
		return KindUnknown
	}
}

// CallbackPayload extracts the data payload of an accept callback
// (telebot encodes "\funique|payload").
func CallbackPayload(data string) string {
	if i := strings.IndexByte(data, '|'); i >= 0 {
		return data[i+1:]
	}
	return strings.TrimPrefix(data, acceptPrefix)
}
