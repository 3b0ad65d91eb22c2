package nfs4

import "fmt"

// IOError wraps a transport read/write failure.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("nfs4: %s: %v", e.Op, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// SerializationError reports an XDR encode failure while building a
// request.
type SerializationError struct {
	What string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("nfs4: failed to serialize %s: %v", e.What, e.Err)
}
func (e *SerializationError) Unwrap() error { return e.Err }

// DeserializationError reports an XDR decode failure while parsing a
// reply: truncated frames, invalid booleans, unknown union tags, or
// attribute-blob length mismatches.
type DeserializationError struct {
	What string
	Err  error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("nfs4: failed to deserialize %s: %v", e.What, e.Err)
}
func (e *DeserializationError) Unwrap() error { return e.Err }

// UnexpectedReplyError is returned when a reply's XID does not match the
// most recently sent call (a stray reply that arrived with no call
// outstanding is read by the next call and fails this check), or when an
// accepted reply's body discriminant is unrecognized. A reply whose
// message type or accepted/denied discriminant is unrecognized is
// reported as a DeserializationError, not as this error. The connection
// is considered desynchronized after this error; callers should not keep
// using the Client it came from.
type UnexpectedReplyError struct {
	Reason string
}

func (e *UnexpectedReplyError) Error() string {
	return fmt.Sprintf("nfs4: unexpected reply: %s", e.Reason)
}

// RpcErrorKind identifies which non-success AcceptedReply discriminant was
// returned by the server, RFC 5531 §7.
type RpcErrorKind int

const (
	RpcProgramUnavailable RpcErrorKind = iota
	RpcProgramMismatch
	RpcProcedureUnavailable
	RpcGarbageArguments
	RpcSystemError
)

func (k RpcErrorKind) String() string {
	switch k {
	case RpcProgramUnavailable:
		return "PROG_UNAVAIL"
	case RpcProgramMismatch:
		return "PROG_MISMATCH"
	case RpcProcedureUnavailable:
		return "PROC_UNAVAIL"
	case RpcGarbageArguments:
		return "GARBAGE_ARGS"
	case RpcSystemError:
		return "SYSTEM_ERR"
	default:
		return "UNKNOWN"
	}
}

// RpcError wraps an AcceptedReply whose body discriminant is not Success.
type RpcError struct {
	Kind RpcErrorKind
	// Low and High carry the server's supported version range; only
	// meaningful when Kind == RpcProgramMismatch.
	Low, High uint32
}

func (e *RpcError) Error() string {
	if e.Kind == RpcProgramMismatch {
		return fmt.Sprintf("nfs4: rpc call rejected: %s (server supports versions %d-%d)", e.Kind, e.Low, e.High)
	}
	return fmt.Sprintf("nfs4: rpc call rejected: %s", e.Kind)
}

func rpcErrorForBodyKind(kind uint32, ar *acceptedReply) error {
	switch kind {
	case acceptProgUnavail:
		return &RpcError{Kind: RpcProgramUnavailable}
	case acceptProgMismatch:
		return &RpcError{Kind: RpcProgramMismatch, Low: ar.ProgMismatch.Low, High: ar.ProgMismatch.High}
	case acceptProcUnavail:
		return &RpcError{Kind: RpcProcedureUnavailable}
	case acceptGarbageArgs:
		return &RpcError{Kind: RpcGarbageArguments}
	case acceptSystemErr:
		return &RpcError{Kind: RpcSystemError}
	default:
		return &UnexpectedReplyError{Reason: fmt.Sprintf("unrecognized accepted-reply body discriminant %d", kind)}
	}
}

// RpcDeniedError is returned when the call was rejected at the
// authentication or RPC-version layer (MSG_DENIED).
type RpcDeniedError struct{}

func (e *RpcDeniedError) Error() string { return "nfs4: rpc call denied by server" }

// NfsError wraps an NFSv4 operation-level status other than NFS4_OK. Op
// names the operation that failed, and Status carries the raw status for
// callers that need the exact wire code.
type NfsError struct {
	Op     string
	Status Nfsstat4
}

func (e *NfsError) Error() string {
	return fmt.Sprintf("nfs4: %s failed: %s", e.Op, e.Status)
}

// Is lets errors.Is(err, nfs4.ErrNotFound) style comparisons match on
// Status alone, ignoring which operation produced the error.
func (e *NfsError) Is(target error) bool {
	t, ok := target.(*NfsError)
	if !ok {
		return false
	}
	return e.Status == t.Status
}

// Sentinel NfsErrors for the commonly-handled statuses.
var (
	ErrNotFound     = &NfsError{Status: NFS4ERR_NOENT}
	ErrAccessDenied = &NfsError{Status: NFS4ERR_ACCESS}
	ErrNotDirectory = &NfsError{Status: NFS4ERR_NOTDIR}
	ErrIsDirectory  = &NfsError{Status: NFS4ERR_ISDIR}
	ErrExists       = &NfsError{Status: NFS4ERR_EXIST}
	ErrInvalid      = &NfsError{Status: NFS4ERR_INVAL}
	ErrStaleHandle  = &NfsError{Status: NFS4ERR_STALE}
	ErrBadCookie    = &NfsError{Status: NFS4ERR_BAD_COOKIE}
)

// nfsErrorFor builds the typed error for a non-OK status returned by op.
func nfsErrorFor(op string, status Nfsstat4) error {
	return &NfsError{Op: op, Status: status}
}
