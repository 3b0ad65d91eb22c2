// Package nfs4 implements a client for the Network File System version 4.0
// protocol (RFC 7530), layered over SUN-RPC (RFC 5531) with XDR encoding
// (RFC 4506) on a record-marked stream transport.
//
// The package is organized bottom-up:
//
//   - internal/xdrcodec: XDR primitives and RPC record marking.
//   - rpc_message.go / rpc_client.go: SUN-RPC call/reply framing, XID
//     correlation, AUTH_SYS credentials.
//   - nfs4_types.go / attributes.go / compound.go: the NFSv4 COMPOUND
//     message model, including the attribute bitmap codec.
//   - client.go: the high-level filesystem operations (look up, get/set
//     attributes, read a directory, create a file, remove a file, stream
//     a file's contents).
//
// A Client owns one transport and permits at most one outstanding RPC; it
// does not pool connections or cache anything server-supplied, and it
// retries nothing except ReadDir's single restart of a listing on
// NFS4ERR_BAD_COOKIE. The
// caller is responsible for establishing the transport (typically a TCP
// connection to port 2049) and for any authentication the transport itself
// requires.
//
// Basic usage:
//
//	conn, _ := net.Dial("tcp", "fileserver:2049")
//	client := nfs4.NewClient(conn)
//	fh, err := client.LookUp("/export/README")
//	attrs, err := client.GetAttr(fh, nil)
package nfs4

// Version identifies the module for diagnostic logging.
const Version = "0.1.0"
