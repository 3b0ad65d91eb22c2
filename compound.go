package nfs4

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rbernot/nfs4/internal/xdrcodec"
)

// writeFixedOpaque encodes exactly len(data) bytes followed by zero
// padding to the next 4-byte boundary, with no length prefix — the wire
// form used for fixed-size opaque fields like stateid4 and cookieverf4.
func writeFixedOpaque(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	if pad := (4 - (len(data) % 4)) % 4; pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return err
		}
	}
	return nil
}

func readFixedOpaque(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if pad := (4 - (n % 4)) % 4; pad > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(pad)); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func writeStateid(w io.Writer, s Stateid) error {
	if err := xdrcodec.WriteUint32(w, s.Seqid); err != nil {
		return err
	}
	return writeFixedOpaque(w, s.Other[:])
}

func readStateid(r io.Reader) (Stateid, error) {
	seqid, err := xdrcodec.ReadUint32(r)
	if err != nil {
		return Stateid{}, err
	}
	other, err := readFixedOpaque(r, 12)
	if err != nil {
		return Stateid{}, err
	}
	var s Stateid
	s.Seqid = seqid
	copy(s.Other[:], other)
	return s, nil
}

func writeChangeInfoPlaceholderSkip(r io.Reader) error {
	// change_info4 { bool atomic; uint64 before; uint64 after; }
	if _, err := xdrcodec.ReadBool(r); err != nil {
		return err
	}
	if _, err := xdrcodec.ReadUint64(r); err != nil {
		return err
	}
	if _, err := xdrcodec.ReadUint64(r); err != nil {
		return err
	}
	return nil
}

// pendingOp is one operation queued into a COMPOUND request: its opcode
// and already-encoded argument bytes.
type pendingOp struct {
	code OpCode
	args []byte
}

// compoundBuilder assembles a COMPOUND request while tracking whether the
// current-filehandle register is set, the way the real protocol's builder
// must. This is the runtime-checked alternative: a CFH-discipline
// violation is a bug in this package's own op sequencing, never a
// condition the wire can produce, so it panics instead of returning an
// error.
type compoundBuilder struct {
	ops    []pendingOp
	cfhSet bool
}

func (b *compoundBuilder) requireCFH(op string) {
	if !b.cfhSet {
		panic(fmt.Sprintf("nfs4: internal error: %s emitted with no current filehandle set", op))
	}
}

func (b *compoundBuilder) putRootFH() {
	b.ops = append(b.ops, pendingOp{code: OpPutrootfh})
	b.cfhSet = true
}

func (b *compoundBuilder) putFH(fh FileHandle) {
	var buf bytes.Buffer
	xdrcodec.WriteOpaque(&buf, fh)
	b.ops = append(b.ops, pendingOp{code: OpPutfh, args: buf.Bytes()})
	b.cfhSet = true
}

func (b *compoundBuilder) lookup(name string) {
	b.requireCFH("LOOKUP")
	var buf bytes.Buffer
	xdrcodec.WriteString(&buf, name)
	b.ops = append(b.ops, pendingOp{code: OpLookup, args: buf.Bytes()})
}

func (b *compoundBuilder) getFH() {
	b.requireCFH("GETFH")
	b.ops = append(b.ops, pendingOp{code: OpGetfh})
}

func (b *compoundBuilder) getAttr(ids []FileAttributeId) {
	b.requireCFH("GETATTR")
	var buf bytes.Buffer
	encodeGetAttrArgs(&buf, ids)
	b.ops = append(b.ops, pendingOp{code: OpGetattr, args: buf.Bytes()})
}

func (b *compoundBuilder) setAttr(stateid Stateid, args SetAttrArgs) {
	b.requireCFH("SETATTR")
	var buf bytes.Buffer
	writeStateid(&buf, stateid)
	encodeSetAttrArgs(&buf, args)
	b.ops = append(b.ops, pendingOp{code: OpSetattr, args: buf.Bytes()})
}

func (b *compoundBuilder) readDir(cookie uint64, verifier [8]byte, dircount, maxcount uint32, ids []FileAttributeId) {
	b.requireCFH("READDIR")
	var buf bytes.Buffer
	xdrcodec.WriteUint64(&buf, cookie)
	writeFixedOpaque(&buf, verifier[:])
	xdrcodec.WriteUint32(&buf, dircount)
	xdrcodec.WriteUint32(&buf, maxcount)
	encodeGetAttrArgs(&buf, ids)
	b.ops = append(b.ops, pendingOp{code: OpReaddir, args: buf.Bytes()})
}

// NFSv4 open/share/create constants used by the one openCreate shape this
// client emits, RFC 7530 §14.2.16 / §16.16.
const (
	openShareAccessWrite = 2
	openShareDenyNone    = 0
	openTypeCreate       = 1
	createModeUnchecked  = 0
	claimTypeNull        = 0
)

// openCreate emits OPEN with CLAIM_NULL and an UNCHECKED4 create — the
// only OPEN shape create_file needs.
func (b *compoundBuilder) openCreate(seqid uint32, clientid uint64, owner []byte, name string, mode uint32) {
	b.requireCFH("OPEN")
	var buf bytes.Buffer
	xdrcodec.WriteUint32(&buf, seqid)
	xdrcodec.WriteUint32(&buf, openShareAccessWrite)
	xdrcodec.WriteUint32(&buf, openShareDenyNone)
	xdrcodec.WriteUint64(&buf, clientid)
	xdrcodec.WriteOpaque(&buf, owner)
	xdrcodec.WriteUint32(&buf, openTypeCreate)
	xdrcodec.WriteUint32(&buf, createModeUnchecked)
	modeVal := mode
	encodeSetAttrArgs(&buf, SetAttrArgs{Mode: &modeVal})
	xdrcodec.WriteUint32(&buf, claimTypeNull)
	xdrcodec.WriteString(&buf, name)
	b.ops = append(b.ops, pendingOp{code: OpOpen, args: buf.Bytes()})
	b.cfhSet = true // a successful OPEN replaces the CFH with the opened file
}

func (b *compoundBuilder) closeOp(seqid uint32, stateid Stateid) {
	b.requireCFH("CLOSE")
	var buf bytes.Buffer
	xdrcodec.WriteUint32(&buf, seqid)
	writeStateid(&buf, stateid)
	b.ops = append(b.ops, pendingOp{code: OpClose, args: buf.Bytes()})
}

func (b *compoundBuilder) read(stateid Stateid, offset uint64, count uint32) {
	b.requireCFH("READ")
	var buf bytes.Buffer
	writeStateid(&buf, stateid)
	xdrcodec.WriteUint64(&buf, offset)
	xdrcodec.WriteUint32(&buf, count)
	b.ops = append(b.ops, pendingOp{code: OpRead, args: buf.Bytes()})
}

// FileSync4 requests synchronous, on-disk durability for a WRITE, RFC
// 7530 §14.2.32 — the only stability level this client uses.
const FileSync4 = 2

func (b *compoundBuilder) write(stateid Stateid, offset uint64, stable uint32, data []byte) {
	b.requireCFH("WRITE")
	var buf bytes.Buffer
	writeStateid(&buf, stateid)
	xdrcodec.WriteUint64(&buf, offset)
	xdrcodec.WriteUint32(&buf, stable)
	xdrcodec.WriteOpaque(&buf, data)
	b.ops = append(b.ops, pendingOp{code: OpWrite, args: buf.Bytes()})
}

func (b *compoundBuilder) commit(offset uint64, count uint32) {
	b.requireCFH("COMMIT")
	var buf bytes.Buffer
	xdrcodec.WriteUint64(&buf, offset)
	xdrcodec.WriteUint32(&buf, count)
	b.ops = append(b.ops, pendingOp{code: OpCommit, args: buf.Bytes()})
}

func (b *compoundBuilder) remove(name string) {
	b.requireCFH("REMOVE")
	var buf bytes.Buffer
	xdrcodec.WriteString(&buf, name)
	b.ops = append(b.ops, pendingOp{code: OpRemove, args: buf.Bytes()})
}

// build serializes the queued operations into a COMPOUND4args payload:
// tag, minorversion, then the argarray.
func (b *compoundBuilder) build() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdrcodec.WriteString(&buf, ""); err != nil {
		return nil, err
	}
	if err := xdrcodec.WriteUint32(&buf, minorVersion0); err != nil {
		return nil, err
	}
	if err := xdrcodec.WriteUint32(&buf, uint32(len(b.ops))); err != nil {
		return nil, err
	}
	for _, op := range b.ops {
		if err := xdrcodec.WriteUint32(&buf, uint32(op.code)); err != nil {
			return nil, err
		}
		if _, err := buf.Write(op.args); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// decodedOp is one entry of a decoded COMPOUND reply's resarray.
type decodedOp struct {
	Code   OpCode
	Status Nfsstat4
	Data   any
}

type getfhResult struct{ Handle FileHandle }
type getattrResult struct{ Attrs FileAttributes }
type readdirResult struct {
	Verifier [8]byte
	Entries  []DirEntry
	EOF      bool
}
type openResult struct{ Stateid Stateid }
type closeResult struct{ Stateid Stateid }
type readResult struct {
	EOF  bool
	Data []byte
}
type writeResult struct {
	Count     uint32
	Committed uint32
}

// decodeCompoundReply decodes a COMPOUND4res payload: the overall status,
// the tag (discarded), and the resarray, stopping exactly where the wire
// data ends (the server truncates resarray at the first non-success op,
// so there is nothing further to read after that entry).
func decodeCompoundReply(r io.Reader) (overall Nfsstat4, ops []decodedOp, err error) {
	status, err := xdrcodec.ReadUint32(r)
	if err != nil {
		return 0, nil, fmt.Errorf("decode compound status: %w", err)
	}
	overall = Nfsstat4(status)

	if _, err := xdrcodec.ReadString(r, 256); err != nil {
		return 0, nil, fmt.Errorf("decode compound tag: %w", err)
	}

	count, err := xdrcodec.ReadUint32(r)
	if err != nil {
		return 0, nil, fmt.Errorf("decode compound resarray length: %w", err)
	}

	ops = make([]decodedOp, 0, count)
	for i := uint32(0); i < count; i++ {
		codeWord, err := xdrcodec.ReadUint32(r)
		if err != nil {
			return 0, nil, fmt.Errorf("decode resop %d opcode: %w", i, err)
		}
		code := OpCode(codeWord)

		opStatusWord, err := xdrcodec.ReadUint32(r)
		if err != nil {
			return 0, nil, fmt.Errorf("decode resop %d status: %w", i, err)
		}
		opStatus := Nfsstat4(opStatusWord)

		data, err := decodeOpResult(r, code, opStatus)
		if err != nil {
			return 0, nil, fmt.Errorf("decode resop %d (%s) result: %w", i, code, err)
		}
		ops = append(ops, decodedOp{Code: code, Status: opStatus, Data: data})
	}
	return overall, ops, nil
}

// decodeOpResult decodes the status-dependent payload following one
// resop4's opcode and status word, RFC 7530 §17.
func decodeOpResult(r io.Reader, code OpCode, status Nfsstat4) (any, error) {
	ok := status == NFS4_OK

	switch code {
	case OpPutrootfh, OpPutfh, OpLookup:
		return nil, nil

	case OpGetfh:
		if !ok {
			return nil, nil
		}
		fh, err := xdrcodec.ReadOpaque(r, 0)
		if err != nil {
			return nil, err
		}
		return getfhResult{Handle: FileHandle(fh)}, nil

	case OpGetattr:
		if !ok {
			return nil, nil
		}
		attrs, err := decodeFattr4(r)
		if err != nil {
			return nil, err
		}
		return getattrResult{Attrs: attrs}, nil

	case OpSetattr:
		// attrsset bitmap4 always follows status, success or not.
		if _, err := readBitmap4(r); err != nil {
			return nil, err
		}
		return nil, nil

	case OpReaddir:
		if !ok {
			return nil, nil
		}
		verifier, err := readFixedOpaque(r, 8)
		if err != nil {
			return nil, err
		}
		var entries []DirEntry
		for {
			hasMore, err := xdrcodec.ReadBool(r)
			if err != nil {
				return nil, err
			}
			if !hasMore {
				break
			}
			cookie, err := xdrcodec.ReadUint64(r)
			if err != nil {
				return nil, err
			}
			name, err := xdrcodec.ReadString(r, 0)
			if err != nil {
				return nil, err
			}
			attrs, err := decodeFattr4(r)
			if err != nil {
				return nil, err
			}
			entries = append(entries, DirEntry{Cookie: cookie, Name: name, Attrs: attrs})
		}
		eof, err := xdrcodec.ReadBool(r)
		if err != nil {
			return nil, err
		}
		var res readdirResult
		copy(res.Verifier[:], verifier)
		res.Entries = entries
		res.EOF = eof
		return res, nil

	case OpOpen:
		if !ok {
			return nil, nil
		}
		stateid, err := readStateid(r)
		if err != nil {
			return nil, err
		}
		if err := writeChangeInfoPlaceholderSkip(r); err != nil {
			return nil, err
		}
		if _, err := xdrcodec.ReadUint32(r); err != nil { // rflags
			return nil, err
		}
		if _, err := readBitmap4(r); err != nil { // attrset
			return nil, err
		}
		delegType, err := xdrcodec.ReadUint32(r)
		if err != nil {
			return nil, err
		}
		if delegType != 0 {
			return nil, fmt.Errorf("server granted an open delegation (type %d), which this client cannot decode", delegType)
		}
		return openResult{Stateid: stateid}, nil

	case OpClose:
		if !ok {
			return nil, nil
		}
		stateid, err := readStateid(r)
		if err != nil {
			return nil, err
		}
		return closeResult{Stateid: stateid}, nil

	case OpRead:
		if !ok {
			return nil, nil
		}
		eof, err := xdrcodec.ReadBool(r)
		if err != nil {
			return nil, err
		}
		data, err := xdrcodec.ReadOpaque(r, 1<<25)
		if err != nil {
			return nil, err
		}
		return readResult{EOF: eof, Data: data}, nil

	case OpWrite:
		if !ok {
			return nil, nil
		}
		count, err := xdrcodec.ReadUint32(r)
		if err != nil {
			return nil, err
		}
		committed, err := xdrcodec.ReadUint32(r)
		if err != nil {
			return nil, err
		}
		if _, err := readFixedOpaque(r, 8); err != nil { // writeverf4
			return nil, err
		}
		return writeResult{Count: count, Committed: committed}, nil

	case OpCommit:
		if !ok {
			return nil, nil
		}
		if _, err := readFixedOpaque(r, 8); err != nil { // writeverf4
			return nil, err
		}
		return nil, nil

	case OpRemove:
		if !ok {
			return nil, nil
		}
		if err := writeChangeInfoPlaceholderSkip(r); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("no result decoder registered for opcode %s", code)
	}
}
