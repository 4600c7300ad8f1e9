package wire

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/bcverify/absint"
	"github.com/chazu/bcverify/diag"
)

// ErrHashMismatch is returned when a bundle's program does not match its
// declared hash.
var ErrHashMismatch = errors.New("bundle hash mismatch")

var encMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Marshal encodes v in canonical CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// NewBundle wraps program text and computes its hash.
func NewBundle(program []byte, methods ...string) Bundle {
	return Bundle{Hash: sha256.Sum256(program), Program: program, Methods: methods}
}

// Check verifies that the program matches the declared hash.
func (b *Bundle) Check() error {
	if got := sha256.Sum256(b.Program); got != b.Hash {
		return fmt.Errorf("wire: %w: declared %x, computed %x", ErrHashMismatch, b.Hash[:8], got[:8])
	}
	return nil
}

// MarshalRequest serializes a VerifyRequest to CBOR bytes.
func MarshalRequest(r *VerifyRequest) ([]byte, error) {
	return encMode.Marshal(r)
}

// UnmarshalRequest deserializes a VerifyRequest from CBOR bytes.
func UnmarshalRequest(data []byte) (*VerifyRequest, error) {
	var r VerifyRequest
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("wire: unmarshal request: %w", err)
	}
	return &r, nil
}

// MarshalReport serializes a Report to CBOR bytes.
func MarshalReport(r *Report) ([]byte, error) {
	return encMode.Marshal(r)
}

// UnmarshalReport deserializes a Report from CBOR bytes.
func UnmarshalReport(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("wire: unmarshal report: %w", err)
	}
	return &r, nil
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// OptionsFrom converts verifier options to their wire form.
func OptionsFrom(o absint.Options) Options {
	out := Options{
		AllowWrongSubclassing:            o.AllowWrongSubclassing,
		ExceptionHandlerErrorsAsWarnings: o.ExceptionHandlerErrorsAsWarnings,
	}
	if len(o.Severities) > 0 {
		out.Messages = make(map[string]string, len(o.Severities))
		for k, s := range o.Severities {
			out.Messages[k.String()] = s.String()
		}
	}
	return out
}

// Verifier converts wire options to verifier options.
func (o Options) Verifier() (absint.Options, error) {
	out := absint.Options{
		AllowWrongSubclassing:            o.AllowWrongSubclassing,
		ExceptionHandlerErrorsAsWarnings: o.ExceptionHandlerErrorsAsWarnings,
	}
	if len(o.Messages) == 0 {
		return out, nil
	}
	out.Severities = make(diag.Severities, len(o.Messages))
	for name, sev := range o.Messages {
		k, ok := diag.ParseKind(name)
		if !ok {
			return absint.Options{}, fmt.Errorf("wire: unknown message kind %q", name)
		}
		s, ok := diag.ParseSeverity(sev)
		if !ok {
			return absint.Options{}, fmt.Errorf("wire: message %s: unknown severity %q", name, sev)
		}
		out.Severities[k] = s
	}
	return out, nil
}

// MethodReportFrom builds the report of one method from its result and the
// messages reported for it.
func MethodReportFrom(res absint.Result, msgs []diag.Message) MethodReport {
	mr := MethodReport{
		Method:   res.Method,
		Status:   res.Status,
		Warnings: res.Warnings,
		Errors:   res.Errors,
	}
	if res.Err != nil {
		mr.Err = res.Err.Error()
	}
	for _, m := range msgs {
		mr.Messages = append(mr.Messages, Message{
			Offset:   m.Offset,
			Kind:     m.Kind.String(),
			Severity: m.Severity,
			Text:     m.Text,
		})
	}
	return mr
}

// SortMethods orders method reports by name.
func (r *Report) SortMethods() {
	sort.Slice(r.Methods, func(i, j int) bool { return r.Methods[i].Method < r.Methods[j].Method })
}
