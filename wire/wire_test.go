package wire

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/bcverify/absint"
	"github.com/chazu/bcverify/diag"
)

const program = `
classes:
  - name: A
    methods:
      - {name: m, static: true, vregs: 0, code: return.void}
`

func TestBundleCheck(t *testing.T) {
	b := NewBundle([]byte(program), "A.m")
	if err := b.Check(); err != nil {
		t.Fatalf("fresh bundle: %v", err)
	}
	b.Program = append(b.Program, '\n')
	if err := b.Check(); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("tampered bundle: err = %v, want ErrHashMismatch", err)
	}
}

func TestRequestCBORRoundTrip(t *testing.T) {
	req := &VerifyRequest{
		RunID:  "run-1",
		Bundle: NewBundle([]byte(program)),
		Options: Options{
			ExceptionHandlerErrorsAsWarnings: true,
			Messages:                         map[string]string{"DeadCode": "hidden", "AlwaysNpe": "error"},
		},
	}
	data, err := MarshalRequest(req)
	if err != nil {
		t.Fatalf("MarshalRequest: %v", err)
	}
	got, err := UnmarshalRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalRequest: %v", err)
	}
	if diff := cmp.Diff(req, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
	if err := got.Bundle.Check(); err != nil {
		t.Errorf("decoded bundle: %v", err)
	}
}

func TestCanonicalEncoding(t *testing.T) {
	a := Options{Messages: map[string]string{"DeadCode": "hidden", "AlwaysNpe": "error", "CacheMiss": "error"}}
	first, err := Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	for range 10 {
		again, _ := Marshal(a)
		if !bytes.Equal(first, again) {
			t.Fatal("encoding is not deterministic")
		}
	}
}

func TestReportKeepsTimePrecision(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC)
	r := &Report{
		RunID:   "run-2",
		Started: started,
		Elapsed: 1500 * time.Microsecond,
		Status:  diag.Warning,
		Methods: []MethodReport{
			{Method: "B.n", Status: diag.OK},
			{Method: "A.m", Status: diag.Warning, Warnings: 1, Messages: []Message{
				{Offset: 4, Kind: "DeadCode", Severity: diag.SeverityWarning, Text: "unreachable code"},
			}},
		},
	}
	data, err := MarshalReport(r)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalReport(data)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Started.Equal(started) {
		t.Errorf("Started = %v, want %v", got.Started, started)
	}
	if got.Elapsed != r.Elapsed {
		t.Errorf("Elapsed = %v, want %v", got.Elapsed, r.Elapsed)
	}

	got.SortMethods()
	if got.Methods[0].Method != "A.m" {
		t.Errorf("SortMethods left %s first", got.Methods[0].Method)
	}
	want := map[diag.Status]int{diag.OK: 1, diag.Warning: 1}
	if diff := cmp.Diff(want, got.Counts()); diff != "" {
		t.Errorf("Counts() (-want +got):\n%s", diff)
	}
}

func TestOptionsConversion(t *testing.T) {
	in := absint.Options{
		AllowWrongSubclassing: true,
		Severities:            diag.Severities{diag.DeadCode: diag.SeverityError},
	}
	w := OptionsFrom(in)
	if w.Messages["DeadCode"] != "error" {
		t.Errorf("Messages = %v", w.Messages)
	}
	out, err := w.Verifier()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("options (-want +got):\n%s", diff)
	}

	if _, err := (Options{Messages: map[string]string{"Nope": "error"}}).Verifier(); err == nil {
		t.Error("unknown kind accepted")
	}
	if _, err := (Options{Messages: map[string]string{"DeadCode": "loud"}}).Verifier(); err == nil {
		t.Error("unknown severity accepted")
	}
}

func TestMethodReportFrom(t *testing.T) {
	res := absint.Result{Method: "A.m", Status: diag.Error, Errors: 1, Err: errors.New("boom")}
	msgs := []diag.Message{{Method: "A.m", Offset: 2, Kind: diag.IncorrectJump, Severity: diag.SeverityError, Text: "bad"}}
	got := MethodReportFrom(res, msgs)
	want := MethodReport{
		Method: "A.m", Status: diag.Error, Errors: 1, Err: "boom",
		Messages: []Message{{Offset: 2, Kind: "IncorrectJump", Severity: diag.SeverityError, Text: "bad"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MethodReportFrom (-want +got):\n%s", diff)
	}
}
