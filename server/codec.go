package server

import (
	"connectrpc.com/connect"

	"github.com/chazu/bcverify/wire"
)

// cborCodec carries wire messages over Connect as application/cbor.
type cborCodec struct{}

var _ connect.Codec = cborCodec{}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Marshal(v any) ([]byte, error) { return wire.Marshal(v) }

func (cborCodec) Unmarshal(data []byte, v any) error { return wire.Unmarshal(data, v) }

// WithCBOR is the Connect option clients and handlers of the verifier
// service use.
func WithCBOR() connect.Option {
	return connect.WithCodec(cborCodec{})
}
