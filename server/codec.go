package server

import (
	"fmt"

	"connectrpc.com/connect"
	"github.com/fxamacker/cbor/v2"
)

// cborCodecName is the Connect codec name; clients send
// application/cbor for unary calls and application/connect+cbor for
// streams.
const cborCodecName = "cbor"

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("server: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// cborCodec lets Connect carry the plain Go message structs of this
// package without generated protobuf code.
type cborCodec struct{}

var _ connect.Codec = cborCodec{}

func (cborCodec) Name() string { return cborCodecName }

func (cborCodec) Marshal(msg any) ([]byte, error) {
	return cborEncMode.Marshal(msg)
}

func (cborCodec) Unmarshal(data []byte, msg any) error {
	return cbor.Unmarshal(data, msg)
}

// WithCBOR configures a Connect client or handler to use the CBOR codec.
func WithCBOR() connect.Option {
	return connect.WithCodec(cborCodec{})
}
