package nfs4

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rbernot/nfs4/internal/xdrcodec"
)

// fakeNode is one file or directory in the in-memory filesystem the fake
// server exposes. This mirrors the tree a COMPOUND-driven client walks
// with PUTROOTFH/LOOKUP/PUTFH, not a real on-disk filesystem.
type fakeNode struct {
	fh       FileHandle
	isDir    bool
	data     []byte
	mode     uint32
	children map[string]*fakeNode
}

// fakeNFSServer decodes COMPOUND requests off a transport and answers
// them against an in-memory tree, playing the role the reference
// implementation's test VM harness plays for the original protocol
// client: something real enough to drive the high-level API end to end
// without a live NFS server.
type fakeNFSServer struct {
	root     *fakeNode
	byHandle map[string]*fakeNode
	nextFH   uint64

	// seenSeqids records every OPEN/CLOSE seqid this server has decoded,
	// in arrival order, so tests can assert on open_owner sequencing.
	seenSeqids []uint32
}

func newFakeNFSServer() *fakeNFSServer {
	s := &fakeNFSServer{byHandle: make(map[string]*fakeNode)}
	s.root = s.newNode(true)
	return s
}

func (s *fakeNFSServer) newNode(isDir bool) *fakeNode {
	s.nextFH++
	n := &fakeNode{
		fh:    FileHandle(fmt.Sprintf("fh-%d", s.nextFH)),
		isDir: isDir,
		mode:  0644,
	}
	if isDir {
		n.children = make(map[string]*fakeNode)
		n.mode = 0755
	}
	s.byHandle[string(n.fh)] = n
	return n
}

// serve runs until the transport is closed or a read fails, answering one
// COMPOUND per record.
func (s *fakeNFSServer) serve(transport io.ReadWriter) {
	rr := xdrcodec.NewRecordReader(transport)
	rw := xdrcodec.NewRecordWriter(transport)
	for {
		rec, err := rr.ReadRecord()
		if err != nil {
			return
		}
		reply, err := s.handleCall(rec)
		if err != nil {
			return
		}
		if err := rw.WriteRecord(reply); err != nil {
			return
		}
	}
}

func (s *fakeNFSServer) handleCall(rec []byte) ([]byte, error) {
	r := newByteReader(rec)

	var hdr callHeader
	if err := xdrcodec.Unmarshal(r, &hdr); err != nil {
		return nil, err
	}
	var cred, verifier OpaqueAuth
	if err := xdrcodec.Unmarshal(r, &cred); err != nil {
		return nil, err
	}
	if err := xdrcodec.Unmarshal(r, &verifier); err != nil {
		return nil, err
	}

	if hdr.Procedure == procNull {
		return acceptedSuccessReply(hdr.Xid, nil), nil
	}
	resultBytes := s.handleCompound(r.remaining())
	return acceptedSuccessReply(hdr.Xid, resultBytes), nil
}

func (s *fakeNFSServer) handleCompound(argBytes []byte) []byte {
	r := newByteReader(argBytes)

	tag, _ := xdrcodec.ReadString(r, 256)
	xdrcodec.ReadUint32(r) // minorversion

	count, _ := xdrcodec.ReadUint32(r)

	var resops bytes.Buffer
	var cur *fakeNode
	var overall Nfsstat4 = NFS4_OK
	var nops uint32

	for i := uint32(0); i < count; i++ {
		opWord, _ := xdrcodec.ReadUint32(r)
		code := OpCode(opWord)

		status, resData := s.handleOp(code, r, &cur)

		xdrcodec.WriteUint32(&resops, opWord)
		xdrcodec.WriteUint32(&resops, uint32(status))
		resops.Write(resData)
		nops++
		overall = status
		if status != NFS4_OK {
			break
		}
	}

	var out bytes.Buffer
	xdrcodec.WriteUint32(&out, uint32(overall))
	xdrcodec.WriteString(&out, tag)
	xdrcodec.WriteUint32(&out, nops)
	out.Write(resops.Bytes())
	return out.Bytes()
}

// handleOp decodes the argument payload for one operation from r,
// applies it to the tree, and returns the status and result bytes (not
// including the status word, which the caller already wrote).
func (s *fakeNFSServer) handleOp(code OpCode, r io.Reader, cur **fakeNode) (Nfsstat4, []byte) {
	switch code {
	case OpPutrootfh:
		*cur = s.root
		return NFS4_OK, nil

	case OpPutfh:
		fh, err := xdrcodec.ReadOpaque(r, 0)
		if err != nil {
			return NFS4ERR_BADXDR, nil
		}
		n, ok := s.byHandle[string(fh)]
		if !ok {
			return NFS4ERR_STALE, nil
		}
		*cur = n
		return NFS4_OK, nil

	case OpGetfh:
		var buf bytes.Buffer
		xdrcodec.WriteOpaque(&buf, (*cur).fh)
		return NFS4_OK, buf.Bytes()

	case OpLookup:
		name, _ := xdrcodec.ReadString(r, 0)
		if !(*cur).isDir {
			return NFS4ERR_NOTDIR, nil
		}
		child, ok := (*cur).children[name]
		if !ok {
			return NFS4ERR_NOENT, nil
		}
		*cur = child
		return NFS4_OK, nil

	case OpGetattr:
		ids := s.decodeRequestedIds(r)
		var buf bytes.Buffer
		s.encodeFattr4(&buf, *cur, ids)
		return NFS4_OK, buf.Bytes()

	case OpSetattr:
		readStateid(r)
		s.applySetAttr(r, *cur)
		var buf bytes.Buffer
		writeBitmap4(&buf, bitmap4{}) // attrsset: not tracked precisely by this fixture
		return NFS4_OK, buf.Bytes()

	case OpReaddir:
		return s.handleReaddir(r, *cur)

	case OpOpen:
		return s.handleOpen(r, cur)

	case OpClose:
		seqid, _ := xdrcodec.ReadUint32(r)
		s.seenSeqids = append(s.seenSeqids, seqid)
		readStateid(r)
		var buf bytes.Buffer
		writeStateid(&buf, Stateid{})
		return NFS4_OK, buf.Bytes()

	case OpRead:
		return s.handleRead(r, *cur)

	case OpWrite:
		return s.handleWrite(r, *cur)

	case OpCommit:
		xdrcodec.ReadUint64(r)
		xdrcodec.ReadUint32(r)
		var buf bytes.Buffer
		writeFixedOpaque(&buf, make([]byte, 8))
		return NFS4_OK, buf.Bytes()

	case OpRemove:
		name, _ := xdrcodec.ReadString(r, 0)
		if _, ok := (*cur).children[name]; !ok {
			return NFS4ERR_NOENT, nil
		}
		delete((*cur).children, name)
		var buf bytes.Buffer
		xdrcodec.WriteBool(&buf, true)
		xdrcodec.WriteUint64(&buf, 0)
		xdrcodec.WriteUint64(&buf, 1)
		return NFS4_OK, buf.Bytes()

	default:
		return NFS4ERR_OP_ILLEGAL, nil
	}
}

func (s *fakeNFSServer) decodeRequestedIds(r io.Reader) []FileAttributeId {
	bm, _ := readBitmap4(r)
	return bm.ids()
}

func (s *fakeNFSServer) encodeFattr4(w io.Writer, n *fakeNode, ids []FileAttributeId) {
	writeBitmap4(w, encodeBitmap4(ids))

	var blob bytes.Buffer
	for _, id := range ids {
		switch id {
		case FATTR4_TYPE:
			t := NF4REG
			if n.isDir {
				t = NF4DIR
			}
			xdrcodec.WriteUint32(&blob, uint32(t))
		case FATTR4_SIZE:
			xdrcodec.WriteUint64(&blob, uint64(len(n.data)))
		case FATTR4_FILEHANDLE:
			xdrcodec.WriteOpaque(&blob, n.fh)
		case FATTR4_FILEID:
			xdrcodec.WriteUint64(&blob, s.fileID(n))
		case FATTR4_MODE:
			xdrcodec.WriteUint32(&blob, n.mode)
		case FATTR4_NUMLINKS:
			xdrcodec.WriteUint32(&blob, 1)
		case FATTR4_OWNER:
			xdrcodec.WriteString(&blob, "owner")
		case FATTR4_OWNER_GROUP:
			xdrcodec.WriteString(&blob, "group")
		case FATTR4_TIME_ACCESS, FATTR4_TIME_METADATA, FATTR4_TIME_MODIFY:
			xdrcodec.WriteUint64(&blob, 0)
			xdrcodec.WriteUint32(&blob, 0)
		}
	}
	xdrcodec.WriteOpaque(w, blob.Bytes())
}

func (s *fakeNFSServer) fileID(n *fakeNode) uint64 {
	var id uint64
	for _, c := range n.fh {
		id = id*31 + uint64(c)
	}
	return id
}

func (s *fakeNFSServer) applySetAttr(r io.Reader, n *fakeNode) {
	bm, _ := readBitmap4(r)
	blob, _ := xdrcodec.ReadOpaque(r, 0)
	br := newByteReader(blob)

	for _, id := range bm.ids() {
		switch id {
		case FATTR4_SIZE:
			size, _ := xdrcodec.ReadUint64(br)
			n.data = resize(n.data, int(size))
		case FATTR4_MODE:
			mode, _ := xdrcodec.ReadUint32(br)
			n.mode = mode
		case FATTR4_OWNER:
			xdrcodec.ReadString(br, 0)
		case FATTR4_OWNER_GROUP:
			xdrcodec.ReadString(br, 0)
		case FATTR4_TIME_ACCESS, FATTR4_TIME_MODIFY:
			xdrcodec.ReadUint32(br)
			xdrcodec.ReadUint64(br)
			xdrcodec.ReadUint32(br)
		}
	}
}

func resize(data []byte, size int) []byte {
	if size <= len(data) {
		return data[:size]
	}
	grown := make([]byte, size)
	copy(grown, data)
	return grown
}

// entryOverheadEstimate is a rough per-entry wire cost used only to decide
// how many entries fit in one reply's maxcount budget; real servers make
// this decision against the actual encoded size.
const entryOverheadEstimate = 64

func (s *fakeNFSServer) handleReaddir(r io.Reader, dir *fakeNode) (Nfsstat4, []byte) {
	cookie, _ := xdrcodec.ReadUint64(r)
	readFixedOpaque(r, 8) // cookieverf
	xdrcodec.ReadUint32(r) // dircount
	maxcount, _ := xdrcodec.ReadUint32(r)
	ids := s.decodeRequestedIds(r)

	names := make([]string, 0, len(dir.children))
	for name := range dir.children {
		names = append(names, name)
	}
	// Stable ordering so cookie-based resumption is well-defined.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}

	budget := int(maxcount) / entryOverheadEstimate
	if budget < 1 {
		budget = 1
	}

	var buf bytes.Buffer
	writeFixedOpaque(&buf, make([]byte, 8))

	start := int(cookie)
	end := start + budget
	if end > len(names) {
		end = len(names)
	}
	for i := start; i < end; i++ {
		xdrcodec.WriteBool(&buf, true)
		xdrcodec.WriteUint64(&buf, uint64(i+1))
		xdrcodec.WriteString(&buf, names[i])
		s.encodeFattr4(&buf, dir.children[names[i]], ids)
	}
	xdrcodec.WriteBool(&buf, false) // end of entries list
	xdrcodec.WriteBool(&buf, end >= len(names))
	return NFS4_OK, buf.Bytes()
}

func (s *fakeNFSServer) handleOpen(r io.Reader, cur **fakeNode) (Nfsstat4, []byte) {
	seqid, _ := xdrcodec.ReadUint32(r)
	s.seenSeqids = append(s.seenSeqids, seqid)
	xdrcodec.ReadUint32(r) // share_access
	xdrcodec.ReadUint32(r) // share_deny
	xdrcodec.ReadUint64(r) // clientid
	xdrcodec.ReadOpaque(r, 0) // owner
	xdrcodec.ReadUint32(r) // opentype
	xdrcodec.ReadUint32(r) // createmode

	bm, _ := readBitmap4(r)
	blob, _ := xdrcodec.ReadOpaque(r, 0)
	br := newByteReader(blob)
	fileMode := uint32(0644)
	for _, id := range bm.ids() {
		if id == FATTR4_MODE {
			fileMode, _ = xdrcodec.ReadUint32(br)
		}
	}

	xdrcodec.ReadUint32(r) // claim type
	name, _ := xdrcodec.ReadString(r, 0)

	parent := *cur
	child, existed := parent.children[name]
	if !existed {
		child = s.newNode(false)
		child.mode = fileMode
		parent.children[name] = child
	}
	*cur = child

	var buf bytes.Buffer
	writeStateid(&buf, Stateid{Seqid: 1})
	xdrcodec.WriteBool(&buf, true)   // change_info.atomic
	xdrcodec.WriteUint64(&buf, 0)    // before
	xdrcodec.WriteUint64(&buf, 1)    // after
	xdrcodec.WriteUint32(&buf, 0)    // rflags
	writeBitmap4(&buf, bitmap4{})    // attrset
	xdrcodec.WriteUint32(&buf, 0)    // delegation type NONE
	return NFS4_OK, buf.Bytes()
}

func (s *fakeNFSServer) handleRead(r io.Reader, n *fakeNode) (Nfsstat4, []byte) {
	readStateid(r)
	offset, _ := xdrcodec.ReadUint64(r)
	count, _ := xdrcodec.ReadUint32(r)

	var chunk []byte
	eof := true
	if int(offset) < len(n.data) {
		end := int(offset) + int(count)
		if end > len(n.data) {
			end = len(n.data)
		}
		chunk = n.data[offset:end]
		eof = end >= len(n.data)
	}

	var buf bytes.Buffer
	xdrcodec.WriteBool(&buf, eof)
	xdrcodec.WriteOpaque(&buf, chunk)
	return NFS4_OK, buf.Bytes()
}

func (s *fakeNFSServer) handleWrite(r io.Reader, n *fakeNode) (Nfsstat4, []byte) {
	readStateid(r)
	offset, _ := xdrcodec.ReadUint64(r)
	xdrcodec.ReadUint32(r) // stable
	data, _ := xdrcodec.ReadOpaque(r, 0)

	end := int(offset) + len(data)
	if end > len(n.data) {
		n.data = resize(n.data, end)
	}
	copy(n.data[offset:], data)

	var buf bytes.Buffer
	xdrcodec.WriteUint32(&buf, uint32(len(data)))
	xdrcodec.WriteUint32(&buf, FileSync4)
	writeFixedOpaque(&buf, make([]byte, 8))
	return NFS4_OK, buf.Bytes()
}
