package nfs4

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rbernot/nfs4/internal/xdrcodec"
)

// SUN-RPC message type and authentication flavor constants (RFC 5531).
const (
	rpcVersion2 = 2

	msgTypeCall  = 0
	msgTypeReply = 1

	// AuthNone is the null authentication flavor, used as the verifier on
	// every call this client makes.
	AuthNone = 0
	// AuthSys is the AUTH_SYS (historically AUTH_UNIX) flavor, used as the
	// credential on every call this client makes.
	AuthSys = 1
)

const (
	replyAccepted = 0
	replyDenied   = 1
)

// Accepted-reply body discriminants, RFC 5531 §7.
const (
	acceptSuccess      = 0
	acceptProgUnavail  = 1
	acceptProgMismatch = 2
	acceptProcUnavail  = 3
	acceptGarbageArgs  = 4
	acceptSystemErr    = 5
)

// OpaqueAuth is the RPC credential/verifier wire shape: a flavor tag plus
// an opaque, flavor-specific body. A straight field concatenation, so it is
// marshalled mechanically.
type OpaqueAuth struct {
	Flavor uint32
	Body   []byte
}

func authNoneVerifier() OpaqueAuth {
	return OpaqueAuth{Flavor: AuthNone}
}

// AuthSysParams is the AUTH_SYS credential body (RFC 5531 Appendix A).
type AuthSysParams struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

func encodeAuthSysCredential(p AuthSysParams) (OpaqueAuth, error) {
	body, err := xdrcodec.EncodeToBytes(p)
	if err != nil {
		return OpaqueAuth{}, fmt.Errorf("encode AUTH_SYS credential: %w", err)
	}
	return OpaqueAuth{Flavor: AuthSys, Body: body}, nil
}

// callHeader is the fixed-shape preamble common to every RPC call, up to
// and including the procedure number. A straight field concatenation.
type callHeader struct {
	Xid        uint32
	MsgType    uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
}

// encodeCall serializes a full RPC call message: the fixed header, the
// AUTH_SYS credential, the AUTH_NONE verifier, and the caller's pre-encoded
// procedure arguments (the COMPOUND request body, which is itself a
// hand-written union codec and so is assembled independently — see
// compound.go).
func encodeCall(xid uint32, program, version, procedure uint32, cred OpaqueAuth, verifier OpaqueAuth, argBytes []byte) ([]byte, error) {
	var buf bytes.Buffer

	if err := xdrcodec.Marshal(&buf, callHeader{
		Xid:        xid,
		MsgType:    msgTypeCall,
		RPCVersion: rpcVersion2,
		Program:    program,
		Version:    version,
		Procedure:  procedure,
	}); err != nil {
		return nil, fmt.Errorf("encode call header: %w", err)
	}

	if err := xdrcodec.Marshal(&buf, cred); err != nil {
		return nil, fmt.Errorf("encode credential: %w", err)
	}
	if err := xdrcodec.Marshal(&buf, verifier); err != nil {
		return nil, fmt.Errorf("encode verifier: %w", err)
	}

	if _, err := buf.Write(argBytes); err != nil {
		return nil, fmt.Errorf("append call arguments: %w", err)
	}

	return buf.Bytes(), nil
}

// acceptedReply is the decoded envelope of an Accepted reply, up to the
// discriminant identifying which body form follows. The union on body is
// hand-written glue: its payload shape depends on the discriminant, so it
// cannot be a straight field concatenation.
type acceptedReply struct {
	Verifier    OpaqueAuth
	BodyKind    uint32
	ProgMismatch struct{ Low, High uint32 } // only valid when BodyKind == acceptProgMismatch
}

// decodeReplyEnvelope reads the XID, the Call/Reply discriminant, and
// (for replies) the Accepted/Denied and body-kind discriminants, leaving
// the reader positioned at the start of the procedure-specific result
// payload on success. It returns the XID so the caller can validate
// correlation before trusting anything else in the message.
func decodeReplyEnvelope(r io.Reader) (xid uint32, body *acceptedReply, denied bool, err error) {
	xid, err = xdrcodec.ReadUint32(r)
	if err != nil {
		return 0, nil, false, fmt.Errorf("decode xid: %w", err)
	}

	msgType, err := xdrcodec.ReadUint32(r)
	if err != nil {
		return xid, nil, false, fmt.Errorf("decode message type: %w", err)
	}
	if msgType != msgTypeReply {
		return xid, nil, false, fmt.Errorf("expected reply message, got type %d", msgType)
	}

	replyKind, err := xdrcodec.ReadUint32(r)
	if err != nil {
		return xid, nil, false, fmt.Errorf("decode reply discriminant: %w", err)
	}

	if replyKind == replyDenied {
		return xid, nil, true, nil
	}
	if replyKind != replyAccepted {
		return xid, nil, false, fmt.Errorf("unrecognized reply discriminant %d", replyKind)
	}

	var verifier OpaqueAuth
	if err := xdrcodec.Unmarshal(r, &verifier); err != nil {
		return xid, nil, false, fmt.Errorf("decode verifier: %w", err)
	}

	kind, err := xdrcodec.ReadUint32(r)
	if err != nil {
		return xid, nil, false, fmt.Errorf("decode accepted-reply body discriminant: %w", err)
	}

	ar := &acceptedReply{Verifier: verifier, BodyKind: kind}
	if kind == acceptProgMismatch {
		low, err := xdrcodec.ReadUint32(r)
		if err != nil {
			return xid, nil, false, fmt.Errorf("decode program mismatch low version: %w", err)
		}
		high, err := xdrcodec.ReadUint32(r)
		if err != nil {
			return xid, nil, false, fmt.Errorf("decode program mismatch high version: %w", err)
		}
		ar.ProgMismatch.Low, ar.ProgMismatch.High = low, high
	}

	return xid, ar, false, nil
}
