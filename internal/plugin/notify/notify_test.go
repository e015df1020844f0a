package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/drover-dev/drover/internal/logger"
	"github.com/drover-dev/drover/internal/plugin"
)

type recordedNotify struct {
	titles   []string
	messages []string
	err      error
}

func (r *recordedNotify) notify(title, message string, icon any) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func TestDesktopNotify(t *testing.T) {
	rec := &recordedNotify{}
	d := NewDesktop()
	d.notify = rec.notify

	event := plugin.Event{SessionID: "drover-w1", Title: "CI failed", Message: "drover-w1 needs attention"}
	if err := d.Notify(context.Background(), event, "high"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(rec.titles) != 1 || rec.titles[0] != "CI failed" {
		t.Errorf("titles = %v", rec.titles)
	}
	if rec.messages[0] != "drover-w1 needs attention" {
		t.Errorf("message = %q", rec.messages[0])
	}
}

func TestDesktopNotifyDefaultTitle(t *testing.T) {
	rec := &recordedNotify{}
	d := NewDesktop()
	d.notify = rec.notify

	if err := d.Notify(context.Background(), plugin.Event{Message: "hi"}, "low"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if rec.titles[0] != "drover" {
		t.Errorf("default title = %q", rec.titles[0])
	}
}

func TestDesktopNotifyError(t *testing.T) {
	rec := &recordedNotify{err: errors.New("no notification daemon")}
	d := NewDesktop()
	d.notify = rec.notify

	if err := d.Notify(context.Background(), plugin.Event{Title: "x"}, "low"); err == nil {
		t.Fatal("expected error to surface")
	}
}

func TestLogNotify(t *testing.T) {
	defer logger.Reset()
	l := NewLog()
	if err := l.Notify(context.Background(), plugin.Event{SessionID: "s", Title: "t"}, "high"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}
