package nfs4

import (
	"fmt"
	"io"
	"sync"

	"github.com/rbernot/nfs4/internal/xdrcodec"
)

// AuthConfig carries the AUTH_SYS credential this client presents on every
// call. NFSv4 servers generally trust the transport (a privileged source
// port, or nothing at all over a pipe in tests) rather than this
// credential, but RFC 5531 still requires one be sent.
type AuthConfig struct {
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// DefaultAuthConfig is the identity a client presents when no explicit
// identity is configured: uid 0 and gid 0 (root) on machine
// "go-nfs4-client", with no supplementary gids.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{MachineName: "go-nfs4-client", UID: 0, GID: 0}
}

func (a AuthConfig) credential() OpaqueAuth {
	cred, err := encodeAuthSysCredential(AuthSysParams{
		MachineName: a.MachineName,
		UID:         a.UID,
		GID:         a.GID,
		GIDs:        a.GIDs,
	})
	if err != nil {
		// AuthSysParams is a straight field concatenation of bounded-size
		// values; only a degenerate transport could make this fail.
		panic(fmt.Sprintf("nfs4: encoding AUTH_SYS credential: %v", err))
	}
	return cred
}

// RPCClient drives a single SUN-RPC program/version pair over a
// record-marked transport. Call holds a lock from sending a call until its
// reply has been read, so the transport carries one outstanding request at
// a time and concurrent Calls are serialized.
type RPCClient struct {
	reader  *xdrcodec.RecordReader
	writer  *xdrcodec.RecordWriter
	program uint32
	version uint32
	auth    AuthConfig

	mu      sync.Mutex
	nextXid uint32
}

// NewRPCClient creates a client for the given program/version bound to
// transport. xidSeed seeds the XID counter; pass 0 to start from 1.
func NewRPCClient(transport io.ReadWriter, program, version uint32, auth AuthConfig, xidSeed uint32) *RPCClient {
	if xidSeed == 0 {
		xidSeed = 1
	}
	return &RPCClient{
		reader:  xdrcodec.NewRecordReader(transport),
		writer:  xdrcodec.NewRecordWriter(transport),
		program: program,
		version: version,
		auth:    auth,
		nextXid: xidSeed,
	}
}

// Call sends a single RPC call carrying argBytes as the pre-encoded
// procedure arguments, waits for its reply, and returns the reply's raw
// result payload (everything after the accepted-reply body discriminant).
// A non-success discriminant or a denied reply is translated to the
// typed RpcError/RpcDeniedError instead of being returned as payload.
func (c *RPCClient) Call(procedure uint32, argBytes []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	xid := c.nextXid
	c.nextXid++

	callBytes, err := encodeCall(xid, c.program, c.version, procedure, c.auth.credential(), authNoneVerifier(), argBytes)
	if err != nil {
		return nil, &SerializationError{What: "rpc call", Err: err}
	}

	if err := c.writer.WriteRecord(callBytes); err != nil {
		return nil, &IOError{Op: "write rpc call", Err: err}
	}

	replyBytes, err := c.reader.ReadRecord()
	if err != nil {
		return nil, &IOError{Op: "read rpc reply", Err: err}
	}

	return c.parseReply(xid, replyBytes)
}

func (c *RPCClient) parseReply(wantXid uint32, replyBytes []byte) ([]byte, error) {
	r := newByteReader(replyBytes)

	gotXid, body, denied, err := decodeReplyEnvelope(r)
	if err != nil {
		return nil, &DeserializationError{What: "rpc reply envelope", Err: err}
	}
	if gotXid != wantXid {
		return nil, &UnexpectedReplyError{Reason: fmt.Sprintf("reply xid %d does not match outstanding call xid %d", gotXid, wantXid)}
	}
	if denied {
		return nil, &RpcDeniedError{}
	}
	if body.BodyKind != acceptSuccess {
		return nil, rpcErrorForBodyKind(body.BodyKind, body)
	}

	return r.remaining(), nil
}

// byteReader is a minimal io.Reader over an in-memory buffer that also
// exposes whatever bytes have not yet been consumed, so the NFS-level
// decoder can pick up exactly where the RPC envelope decoder left off.
type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(buf []byte) *byteReader { return &byteReader{buf: buf} }

func (b *byteReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.buf) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.pos:])
	b.pos += n
	return n, nil
}

func (b *byteReader) remaining() []byte {
	return b.buf[b.pos:]
}
