package tmux

import (
	"context"
	"strings"
	"time"

	"github.com/drover-dev/drover/internal/errors"
)

// SendMessage delivers a message to the pane's input line.
//
// The pane is polled until its output is stable across two consecutive
// captures, which is the best available proxy for the agent being idle and
// ready for input. If the wait times out the message is sent anyway
// and the returned error has kind DeliveryAmbiguous so the caller can record
// the uncertainty without treating the send as failed.
func (r *Runtime) SendMessage(ctx context.Context, handle, message string) error {
	const op errors.Op = "tmux.SendMessage"

	ambiguous := !r.waitForIdle(ctx, handle)
	if err := ctx.Err(); err != nil {
		return &errors.Error{Op: op, Kind: errors.KindTimeout, Session: handle, Err: err}
	}

	// Drop any partially-typed input so the message lands on a clean line.
	if _, err := r.executor.CombinedOutput(ctx, "", "tmux", "send-keys", "-t", handle, "C-u"); err != nil {
		return &errors.Error{Op: op, Kind: errors.KindIO, Session: handle, Err: err}
	}

	if err := r.inject(ctx, handle, message); err != nil {
		return &errors.Error{Op: op, Kind: errors.KindIO, Session: handle, Err: err}
	}

	if err := r.confirmSubmit(ctx, handle); err != nil {
		return &errors.Error{Op: op, Kind: errors.KindIO, Session: handle, Err: err}
	}

	if ambiguous {
		r.log.Warn("sent message without observing idle pane", "session", handle)
		return errors.DeliveryAmbiguous(handle)
	}
	r.log.Debug("message delivered", "session", handle, "bytes", len(message))
	return nil
}

// waitForIdle polls the pane until two consecutive captures match, up to
// SendTimeout. Returns false if stability was never observed.
func (r *Runtime) waitForIdle(ctx context.Context, handle string) bool {
	deadline := time.Now().Add(r.SendTimeout)
	var last string
	first := true
	for time.Now().Before(deadline) {
		out, err := r.Output(ctx, handle, paneHeight)
		if err == nil && !first && out == last {
			return true
		}
		last = out
		first = false

		select {
		case <-ctx.Done():
			return false
		case <-time.After(r.PollInterval):
		}
	}
	return false
}

// inject puts the message text on the pane's input line without submitting
// it. Multi-line or long content goes through a tmux paste buffer; short
// single-line content is typed literally.
func (r *Runtime) inject(ctx context.Context, handle, message string) error {
	if strings.Contains(message, "\n") || len(message) > inlineSendLimit {
		if _, err := r.executor.RunInput(ctx, "", message, "tmux", "load-buffer", "-b", "drover-msg", "-"); err != nil {
			return err
		}
		_, err := r.executor.CombinedOutput(ctx, "", "tmux", "paste-buffer", "-d", "-p", "-b", "drover-msg", "-t", handle)
		return err
	}
	_, err := r.executor.CombinedOutput(ctx, "", "tmux", "send-keys", "-t", handle, "-l", "--", message)
	return err
}

// confirmSubmit presses Enter and re-asserts it a bounded number of times if
// the pane shows no sign of accepting the input. Some agents debounce the
// first Enter after a paste.
func (r *Runtime) confirmSubmit(ctx context.Context, handle string) error {
	before, _ := r.Output(ctx, handle, paneHeight)

	for attempt := 0; attempt <= r.ConfirmRetries; attempt++ {
		if _, err := r.executor.CombinedOutput(ctx, "", "tmux", "send-keys", "-t", handle, "Enter"); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.ConfirmDelay):
		}

		after, err := r.Output(ctx, handle, paneHeight)
		if err == nil && after != before {
			return nil
		}
	}
	// The pane never visibly changed. Enter was still sent; treat it as
	// submitted rather than failing a delivery that likely worked.
	r.log.Warn("could not confirm message submission", "session", handle)
	return nil
}
