// Package wire defines the CBOR messages exchanged with a verification
// server. Programs travel as YAML text together with a content hash; the
// receiver checks the hash before loading the program.
package wire

import (
	"time"

	"github.com/chazu/bcverify/diag"
)

// Bundle is a program to verify.
type Bundle struct {
	Hash    [32]byte `cbor:"1,keyasint"`
	Program []byte   `cbor:"2,keyasint"`           // YAML program text
	Methods []string `cbor:"3,keyasint,omitempty"` // restrict to these methods
}

// Options mirror absint.Options; Messages maps kind names to severities.
type Options struct {
	AllowWrongSubclassing            bool              `cbor:"1,keyasint,omitempty"`
	ExceptionHandlerErrorsAsWarnings bool              `cbor:"2,keyasint,omitempty"`
	Messages                         map[string]string `cbor:"3,keyasint,omitempty"`
}

// VerifyRequest asks a server to verify a bundle.
type VerifyRequest struct {
	RunID   string  `cbor:"1,keyasint,omitempty"`
	Bundle  Bundle  `cbor:"2,keyasint"`
	Options Options `cbor:"3,keyasint"`
}

// Message is one reported diagnostic.
type Message struct {
	Offset   int           `cbor:"1,keyasint"`
	Kind     string        `cbor:"2,keyasint"`
	Severity diag.Severity `cbor:"3,keyasint"`
	Text     string        `cbor:"4,keyasint"`
}

// MethodReport is the verdict for one method.
type MethodReport struct {
	Method   string      `cbor:"1,keyasint"`
	Status   diag.Status `cbor:"2,keyasint"`
	Warnings int         `cbor:"3,keyasint,omitempty"`
	Errors   int         `cbor:"4,keyasint,omitempty"`
	Err      string      `cbor:"5,keyasint,omitempty"`
	Messages []Message   `cbor:"6,keyasint,omitempty"`
}

// Report is the reply to a VerifyRequest.
type Report struct {
	RunID      string         `cbor:"1,keyasint"`
	BundleHash [32]byte       `cbor:"2,keyasint"`
	Started    time.Time      `cbor:"3,keyasint"`
	Elapsed    time.Duration  `cbor:"4,keyasint"`
	Status     diag.Status    `cbor:"5,keyasint"`
	Methods    []MethodReport `cbor:"6,keyasint,omitempty"`
}

// Counts returns how many methods ended with each status.
func (r *Report) Counts() map[diag.Status]int {
	out := make(map[diag.Status]int, 3)
	for _, m := range r.Methods {
		out[m.Status]++
	}
	return out
}
