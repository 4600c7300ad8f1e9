package diag

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStatusOrder(t *testing.T) {
	if !(OK < Warning && Warning < Error) {
		t.Fatal("statuses out of order")
	}
	if Max(Warning, OK) != Warning || Max(Warning, Error) != Error {
		t.Error("Max does not pick the worse status")
	}
}

func TestSeverityStatus(t *testing.T) {
	tests := []struct {
		sev  Severity
		want Status
	}{
		{SeverityHidden, OK},
		{SeverityWarning, Warning},
		{SeverityError, Error},
	}
	for _, tt := range tests {
		if got := tt.sev.Status(); got != tt.want {
			t.Errorf("%s.Status() = %s, want %s", tt.sev, got, tt.want)
		}
		back, ok := ParseSeverity(tt.sev.String())
		if !ok || back != tt.sev {
			t.Errorf("ParseSeverity(%q) = %v, %v", tt.sev.String(), back, ok)
		}
	}
}

func TestKindNames(t *testing.T) {
	for _, k := range AllKinds() {
		back, ok := ParseKind(k.String())
		if !ok || back != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), back, ok)
		}
	}
	if _, ok := ParseKind("NoSuchKind"); ok {
		t.Error("ParseKind accepted an unknown name")
	}
}

func TestDefaultSeverities(t *testing.T) {
	tests := []struct {
		kind Kind
		want Severity
	}{
		{UndefinedRegister, SeverityWarning},
		{IncompatibleAccumulatorType, SeverityWarning},
		{IncorrectJump, SeverityError},
		{CannotResolveFieldId, SeverityWarning},
		{RedundantCheckCast, SeverityHidden},
		{DeadCode, SeverityWarning},
	}
	for _, tt := range tests {
		if got := tt.kind.DefaultSeverity(); got != tt.want {
			t.Errorf("%s default = %s, want %s", tt.kind, got, tt.want)
		}
	}

	over := Severities{UndefinedRegister: SeverityError}
	if over.Of(UndefinedRegister) != SeverityError {
		t.Error("override ignored")
	}
	if over.Of(DeadCode) != SeverityWarning {
		t.Error("default lost when another kind is overridden")
	}
}

func TestCollectorAndTee(t *testing.T) {
	var a, b Collector
	sink := Tee{&a, &b, Discard}

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Report(Message{Method: "M.m", Offset: i, Kind: DeadCode, Severity: SeverityWarning})
		}()
	}
	wg.Wait()

	if len(a.Messages()) != 10 || len(b.Messages()) != 10 {
		t.Fatalf("collected %d and %d messages, want 10 each", len(a.Messages()), len(b.Messages()))
	}
	if !a.Has(DeadCode) || a.Has(CacheMiss) {
		t.Error("Has mismatch")
	}
	a.Reset()
	if len(a.Messages()) != 0 {
		t.Error("Reset kept messages")
	}
}

func TestMessageString(t *testing.T) {
	got := []string{
		Message{Method: "A.f", Offset: 0x1A, Kind: IncorrectJump, Severity: SeverityError, Text: "bad target"}.String(),
		Message{Method: "A.f", Offset: -1, Kind: DeadCode, Severity: SeverityWarning, Text: "unreached"}.String(),
	}
	want := []string{
		"A.f@001A: error [IncorrectJump]: bad target",
		"A.f: warning [DeadCode]: unreached",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("String mismatch (-want +got):\n%s", diff)
	}
}
