package nfs4

import "fmt"

// NFSv4 program numbers and version, RFC 7530 §2.
const (
	NFSProgram    = 100003
	NFSVersion    = 4
	NFSPort       = 2049
	minorVersion0 = 0
)

// Portmapper (rpcbind) program numbers, RFC 1833.
const (
	PortmapProgram = 100000
	PortmapVersion = 2
	PortmapPort    = 111
)

// NFSv4 procedure numbers. Only COMPOUND is used; NULL exists for the
// portmapper-style liveness ping.
const (
	procNull     = 0
	procCompound = 1
)

// OpCode identifies an operation within a COMPOUND request, RFC 7530 §17.
type OpCode uint32

// Operation codes this client names. The compoundBuilder emits all of them
// except ACCESS, CREATE and ILLEGAL, which are named only so that
// diagnostics print them readably.
const (
	OpAccess      OpCode = 3
	OpClose       OpCode = 4
	OpCommit      OpCode = 5
	OpCreate      OpCode = 6
	OpGetattr     OpCode = 9
	OpGetfh       OpCode = 10
	OpLookup      OpCode = 15
	OpOpen        OpCode = 18
	OpPutfh       OpCode = 22
	OpPutrootfh   OpCode = 24
	OpRead        OpCode = 25
	OpReaddir     OpCode = 26
	OpRemove      OpCode = 28
	OpSetattr     OpCode = 34
	OpWrite       OpCode = 38
	OpIllegal     OpCode = 10044
)

func (op OpCode) String() string {
	switch op {
	case OpAccess:
		return "ACCESS"
	case OpClose:
		return "CLOSE"
	case OpCommit:
		return "COMMIT"
	case OpCreate:
		return "CREATE"
	case OpGetattr:
		return "GETATTR"
	case OpGetfh:
		return "GETFH"
	case OpLookup:
		return "LOOKUP"
	case OpOpen:
		return "OPEN"
	case OpPutfh:
		return "PUTFH"
	case OpPutrootfh:
		return "PUTROOTFH"
	case OpRead:
		return "READ"
	case OpReaddir:
		return "READDIR"
	case OpRemove:
		return "REMOVE"
	case OpSetattr:
		return "SETATTR"
	case OpWrite:
		return "WRITE"
	case OpIllegal:
		return "ILLEGAL"
	default:
		return fmt.Sprintf("OP(%d)", uint32(op))
	}
}

// Nfsstat4 is the NFSv4 operation status code, RFC 7530 §13.2.
type Nfsstat4 uint32

// Status codes this client recognizes: the RFC 7530 §13.2 nfsstat4 table,
// named so that error messages read naturally. A value outside it still
// round-trips fine through NfsError.Status and prints as
// NFS4ERR_UNKNOWN(n).
const (
	NFS4_OK                  Nfsstat4 = 0
	NFS4ERR_PERM             Nfsstat4 = 1
	NFS4ERR_NOENT            Nfsstat4 = 2
	NFS4ERR_IO               Nfsstat4 = 5
	NFS4ERR_NXIO             Nfsstat4 = 6
	NFS4ERR_ACCESS           Nfsstat4 = 13
	NFS4ERR_EXIST            Nfsstat4 = 17
	NFS4ERR_XDEV             Nfsstat4 = 18
	NFS4ERR_NOTDIR           Nfsstat4 = 20
	NFS4ERR_ISDIR            Nfsstat4 = 21
	NFS4ERR_INVAL            Nfsstat4 = 22
	NFS4ERR_FBIG             Nfsstat4 = 27
	NFS4ERR_NOSPC            Nfsstat4 = 28
	NFS4ERR_ROFS             Nfsstat4 = 30
	NFS4ERR_MLINK            Nfsstat4 = 31
	NFS4ERR_NAMETOOLONG      Nfsstat4 = 63
	NFS4ERR_NOTEMPTY         Nfsstat4 = 66
	NFS4ERR_DQUOT            Nfsstat4 = 69
	NFS4ERR_STALE            Nfsstat4 = 70
	NFS4ERR_BADHANDLE        Nfsstat4 = 10001
	NFS4ERR_BAD_COOKIE       Nfsstat4 = 10003
	NFS4ERR_NOTSUPP          Nfsstat4 = 10004
	NFS4ERR_TOOSMALL         Nfsstat4 = 10005
	NFS4ERR_SERVERFAULT      Nfsstat4 = 10006
	NFS4ERR_BADTYPE          Nfsstat4 = 10007
	NFS4ERR_DELAY            Nfsstat4 = 10008
	NFS4ERR_SAME             Nfsstat4 = 10009
	NFS4ERR_DENIED           Nfsstat4 = 10010
	NFS4ERR_EXPIRED          Nfsstat4 = 10011
	NFS4ERR_LOCKED           Nfsstat4 = 10012
	NFS4ERR_GRACE            Nfsstat4 = 10013
	NFS4ERR_FHEXPIRED        Nfsstat4 = 10014
	NFS4ERR_SHARE_DENIED     Nfsstat4 = 10015
	NFS4ERR_WRONGSEC         Nfsstat4 = 10016
	NFS4ERR_CLID_INUSE       Nfsstat4 = 10017
	NFS4ERR_RESOURCE         Nfsstat4 = 10018
	NFS4ERR_MOVED            Nfsstat4 = 10019
	NFS4ERR_NOFILEHANDLE     Nfsstat4 = 10020
	NFS4ERR_MINOR_VERS_MISMATCH Nfsstat4 = 10021
	NFS4ERR_STALE_CLIENTID   Nfsstat4 = 10022
	NFS4ERR_STALE_STATEID    Nfsstat4 = 10023
	NFS4ERR_OLD_STATEID      Nfsstat4 = 10024
	NFS4ERR_BAD_STATEID      Nfsstat4 = 10025
	NFS4ERR_BAD_SEQID        Nfsstat4 = 10026
	NFS4ERR_NOT_SAME         Nfsstat4 = 10027
	NFS4ERR_LOCK_RANGE       Nfsstat4 = 10028
	NFS4ERR_SYMLINK          Nfsstat4 = 10029
	NFS4ERR_RESTOREFH        Nfsstat4 = 10030
	NFS4ERR_LEASE_MOVED      Nfsstat4 = 10031
	NFS4ERR_ATTRNOTSUPP      Nfsstat4 = 10032
	NFS4ERR_NO_GRACE         Nfsstat4 = 10033
	NFS4ERR_RECLAIM_BAD      Nfsstat4 = 10034
	NFS4ERR_RECLAIM_CONFLICT Nfsstat4 = 10035
	NFS4ERR_BADXDR           Nfsstat4 = 10036
	NFS4ERR_LOCKS_HELD       Nfsstat4 = 10037
	NFS4ERR_OPENMODE         Nfsstat4 = 10038
	NFS4ERR_BADOWNER         Nfsstat4 = 10039
	NFS4ERR_BADCHAR          Nfsstat4 = 10040
	NFS4ERR_BADNAME          Nfsstat4 = 10041
	NFS4ERR_BAD_RANGE        Nfsstat4 = 10042
	NFS4ERR_LOCK_NOTSUPP     Nfsstat4 = 10043
	NFS4ERR_OP_ILLEGAL       Nfsstat4 = 10044
	NFS4ERR_DEADLOCK         Nfsstat4 = 10045
	NFS4ERR_FILE_OPEN        Nfsstat4 = 10046
	NFS4ERR_ADMIN_REVOKED    Nfsstat4 = 10047
	NFS4ERR_CB_PATH_DOWN     Nfsstat4 = 10048
)

var nfsstat4Names = map[Nfsstat4]string{
	NFS4_OK: "NFS4_OK", NFS4ERR_PERM: "NFS4ERR_PERM", NFS4ERR_NOENT: "NFS4ERR_NOENT",
	NFS4ERR_IO: "NFS4ERR_IO", NFS4ERR_NXIO: "NFS4ERR_NXIO", NFS4ERR_ACCESS: "NFS4ERR_ACCESS",
	NFS4ERR_EXIST: "NFS4ERR_EXIST", NFS4ERR_XDEV: "NFS4ERR_XDEV", NFS4ERR_NOTDIR: "NFS4ERR_NOTDIR",
	NFS4ERR_ISDIR: "NFS4ERR_ISDIR", NFS4ERR_INVAL: "NFS4ERR_INVAL", NFS4ERR_FBIG: "NFS4ERR_FBIG",
	NFS4ERR_NOSPC: "NFS4ERR_NOSPC", NFS4ERR_ROFS: "NFS4ERR_ROFS", NFS4ERR_MLINK: "NFS4ERR_MLINK",
	NFS4ERR_NAMETOOLONG: "NFS4ERR_NAMETOOLONG", NFS4ERR_NOTEMPTY: "NFS4ERR_NOTEMPTY",
	NFS4ERR_DQUOT: "NFS4ERR_DQUOT", NFS4ERR_STALE: "NFS4ERR_STALE", NFS4ERR_BADHANDLE: "NFS4ERR_BADHANDLE",
	NFS4ERR_BAD_COOKIE: "NFS4ERR_BAD_COOKIE", NFS4ERR_NOTSUPP: "NFS4ERR_NOTSUPP",
	NFS4ERR_TOOSMALL: "NFS4ERR_TOOSMALL", NFS4ERR_SERVERFAULT: "NFS4ERR_SERVERFAULT",
	NFS4ERR_BADTYPE: "NFS4ERR_BADTYPE", NFS4ERR_DELAY: "NFS4ERR_DELAY", NFS4ERR_SAME: "NFS4ERR_SAME",
	NFS4ERR_DENIED: "NFS4ERR_DENIED", NFS4ERR_EXPIRED: "NFS4ERR_EXPIRED", NFS4ERR_LOCKED: "NFS4ERR_LOCKED",
	NFS4ERR_GRACE: "NFS4ERR_GRACE", NFS4ERR_FHEXPIRED: "NFS4ERR_FHEXPIRED",
	NFS4ERR_SHARE_DENIED: "NFS4ERR_SHARE_DENIED", NFS4ERR_WRONGSEC: "NFS4ERR_WRONGSEC",
	NFS4ERR_CLID_INUSE: "NFS4ERR_CLID_INUSE", NFS4ERR_RESOURCE: "NFS4ERR_RESOURCE",
	NFS4ERR_MOVED: "NFS4ERR_MOVED", NFS4ERR_NOFILEHANDLE: "NFS4ERR_NOFILEHANDLE",
	NFS4ERR_MINOR_VERS_MISMATCH: "NFS4ERR_MINOR_VERS_MISMATCH", NFS4ERR_STALE_CLIENTID: "NFS4ERR_STALE_CLIENTID",
	NFS4ERR_STALE_STATEID: "NFS4ERR_STALE_STATEID", NFS4ERR_OLD_STATEID: "NFS4ERR_OLD_STATEID",
	NFS4ERR_BAD_STATEID: "NFS4ERR_BAD_STATEID", NFS4ERR_BAD_SEQID: "NFS4ERR_BAD_SEQID",
	NFS4ERR_NOT_SAME: "NFS4ERR_NOT_SAME", NFS4ERR_LOCK_RANGE: "NFS4ERR_LOCK_RANGE",
	NFS4ERR_SYMLINK: "NFS4ERR_SYMLINK", NFS4ERR_RESTOREFH: "NFS4ERR_RESTOREFH",
	NFS4ERR_LEASE_MOVED: "NFS4ERR_LEASE_MOVED", NFS4ERR_ATTRNOTSUPP: "NFS4ERR_ATTRNOTSUPP",
	NFS4ERR_NO_GRACE: "NFS4ERR_NO_GRACE", NFS4ERR_RECLAIM_BAD: "NFS4ERR_RECLAIM_BAD",
	NFS4ERR_RECLAIM_CONFLICT: "NFS4ERR_RECLAIM_CONFLICT", NFS4ERR_BADXDR: "NFS4ERR_BADXDR",
	NFS4ERR_LOCKS_HELD: "NFS4ERR_LOCKS_HELD", NFS4ERR_OPENMODE: "NFS4ERR_OPENMODE",
	NFS4ERR_BADOWNER: "NFS4ERR_BADOWNER", NFS4ERR_BADCHAR: "NFS4ERR_BADCHAR",
	NFS4ERR_BADNAME: "NFS4ERR_BADNAME", NFS4ERR_BAD_RANGE: "NFS4ERR_BAD_RANGE",
	NFS4ERR_LOCK_NOTSUPP: "NFS4ERR_LOCK_NOTSUPP", NFS4ERR_OP_ILLEGAL: "NFS4ERR_OP_ILLEGAL",
	NFS4ERR_DEADLOCK: "NFS4ERR_DEADLOCK", NFS4ERR_FILE_OPEN: "NFS4ERR_FILE_OPEN",
	NFS4ERR_ADMIN_REVOKED: "NFS4ERR_ADMIN_REVOKED", NFS4ERR_CB_PATH_DOWN: "NFS4ERR_CB_PATH_DOWN",
}

func (s Nfsstat4) String() string {
	if name, ok := nfsstat4Names[s]; ok {
		return name
	}
	return fmt.Sprintf("NFS4ERR_UNKNOWN(%d)", uint32(s))
}

// FileHandle is an opaque, server-assigned object identifier. Clients must
// never interpret its contents; they only carry it between operations.
type FileHandle []byte

// Stateid identifies an open or lock state on the server. The anonymous
// stateid (all fields zero) is used for this client's READ, WRITE and
// SETATTR operations; CLOSE carries the stateid its OPEN returned.
type Stateid struct {
	Seqid uint32
	Other [12]byte
}

// AnonymousStateid is the all-zero stateid accepted in lieu of a real
// open/lock stateid by operations like READ, WRITE, and SETATTR when a
// client performs them without a preceding OPEN.
var AnonymousStateid = Stateid{}

// Time is an NFSv4 time value, RFC 7530 §2.3.3.
type Time struct {
	Seconds  int64
	Nseconds uint32
}

// DirEntry is one decoded entry from a READDIR reply.
type DirEntry struct {
	Cookie uint64
	Name   string
	Attrs  FileAttributes
}
