// Package router dispatches chat commands and inline-button callbacks onto a
// bounded, supervised worker pool.
package router

import (
	"context"
	"sync/atomic"
	"time"

	kit "gagbot/internal/transport"
	logx "gagbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

type Command struct {
	Name        string   // without the leading '/'
	Aliases     []string // e.g. ["h"] for help
	Description string
	Usage       string
	Hidden      bool // registered but left out of help and the menu

	Timeout time.Duration // zero uses the router default
	Handle  HandlerFunc
}

// CallbackRoute handles data of the form "namespace:action[:payload]".
type CallbackRoute struct {
	Namespace string
	Action    string
	Timeout   time.Duration
	Handle    CallbackHandlerFunc
}

type Request struct {
	Update       kit.Update
	Chat         kit.ChatTarget
	FromID       int64
	FromUsername string
	MessageID    int    // the command message, or the message carrying the button
	CallbackID   string // empty for commands

	Command string // command name or "cb:<ns>:<action>"
	Args    []string
	Payload string
	ReqID   string

	Adapter kit.Adapter
	Logger  logx.Logger

	answered atomic.Bool
}

// Reply sends HTML text to the chat the request came from.
func (r *Request) Reply(ctx context.Context, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{ParseMode: kit.ParseModeHTML, DisablePreview: true}
	}
	return r.Adapter.SendText(ctx, r.Chat, text, opt)
}

// Answer acknowledges the callback once; later calls are no-ops.
func (r *Request) Answer(ctx context.Context, text string) error {
	if r.CallbackID == "" || !r.answered.CompareAndSwap(false, true) {
		return nil
	}
	return r.Adapter.AnswerCallback(ctx, r.CallbackID, text)
}

// MessageRef points at the message carrying the pressed button.
func (r *Request) MessageRef() kit.MessageRef {
	return kit.MessageRef{ChatID: r.Chat.ChatID, ThreadID: r.Chat.ThreadID, MessageID: r.MessageID}
}
