package nfs4

import (
	"fmt"
	"io"
)

// PingPortmapper issues an RPC NULL call against the rpcbind/portmapper
// service (RFC 1833) over transport and returns nil if the server replied
// successfully with the empty result a NULL call carries. It is used to verify that a transport actually carries an
// RPC endpoint before attempting NFSv4 traffic over it — the same
// preflight check the protocol's reference client performs before
// issuing its first COMPOUND.
func PingPortmapper(transport io.ReadWriter) error {
	client := NewRPCClient(transport, PortmapProgram, PortmapVersion, DefaultAuthConfig(), 0)
	payload, err := client.Call(procNull, nil)
	if err != nil {
		return err
	}
	if len(payload) != 0 {
		return &DeserializationError{What: "portmapper NULL reply", Err: fmt.Errorf("unexpected %d-byte result payload", len(payload))}
	}
	return nil
}
