package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRingTracerRespectsLevel(t *testing.T) {
	ring := NewRingTracer(8, LevelPhase)

	span := Begin(ring, ScopePass, "populate", 0)
	Begin(ring, ScopeClass, "class:Foo", span.ID()).End("")
	Point(ring, ScopeNode, "expr", "")
	span.End("done")

	events := ring.Snapshot()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (class and node scopes filtered)", len(events))
	}
	if events[0].Kind != KindSpanBegin || events[1].Kind != KindSpanEnd {
		t.Fatalf("unexpected kinds: %v %v", events[0].Kind, events[1].Kind)
	}
	if events[1].Detail != "done" {
		t.Fatalf("detail = %q", events[1].Detail)
	}
}

func TestWarnVisibleAtErrorLevel(t *testing.T) {
	ring := NewRingTracer(4, LevelError)
	Point(ring, ScopeDriver, "ignored", "")
	Warn(ring, "cascade-abort", "step budget exceeded", map[string]string{"steps": "5001"})

	events := ring.Snapshot()
	if len(events) != 1 || !events[0].Warn {
		t.Fatalf("want one warn event, got %+v", events)
	}
}

func TestRingWraps(t *testing.T) {
	ring := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(ring, ScopeNode, name, "")
	}
	events := ring.Snapshot()
	if len(events) != 2 || events[0].Name != "b" || events[1].Name != "c" {
		t.Fatalf("unexpected ring contents: %+v", events)
	}
}

func TestStreamTextFormat(t *testing.T) {
	var buf bytes.Buffer
	st := NewStreamTracer(&buf, LevelDebug, FormatText)
	s := Begin(st, ScopeDriver, "run", 0).WithExtra("files", "3")
	s.End("ok")

	out := buf.String()
	if !strings.Contains(out, "→ run") || !strings.Contains(out, "← run (ok) {files=3}") {
		t.Fatalf("unexpected text output:\n%s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatal("empty context must yield Nop")
	}
	ring := NewRingTracer(1, LevelDebug)
	ctx := WithTracer(context.Background(), ring)
	if FromContext(ctx) != Tracer(ring) {
		t.Fatal("tracer lost in context")
	}
}

func TestParentSpanNesting(t *testing.T) {
	ring := NewRingTracer(8, LevelDebug)
	ctx := WithTracer(context.Background(), ring)
	if ParentID(ctx) != 0 {
		t.Fatal("root context must have no parent")
	}

	run := Begin(ring, ScopeDriver, "run", ParentID(ctx))
	ctx = WithParent(ctx, run)
	pass := Begin(FromContext(ctx), ScopePass, "populate", ParentID(ctx))
	if pass.parentID != run.ID() || run.ID() == 0 {
		t.Fatalf("populate parent = %d, want %d", pass.parentID, run.ID())
	}
	pass.End("")
	run.End("")
}

func TestNewOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("New(off) = %v, %v", tr, err)
	}
}
