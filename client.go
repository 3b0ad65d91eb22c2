package nfs4

import (
	"fmt"
	"io"
	"strings"
)

// Client is a synchronous NFSv4.0 client bound to one transport and one
// underlying RPC connection. It is not safe for concurrent use: its
// RPCClient serializes single RPCs, but operations that issue several RPCs
// and the open-owner counter are not synchronized.
type Client struct {
	rpc      *RPCClient
	cfg      clientConfig
	ownerSeq uint32
}

// NewClient builds a Client over transport (typically a TCP connection to
// port 2049), applying any supplied options on top of the documented
// defaults.
func NewClient(transport io.ReadWriter, opts ...ClientOption) *Client {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		rpc: NewRPCClient(transport, NFSProgram, NFSVersion, cfg.auth, cfg.xidSeed),
		cfg: cfg,
	}
}

func (c *Client) call(b *compoundBuilder) (Nfsstat4, []decodedOp, error) {
	argBytes, err := b.build()
	if err != nil {
		c.cfg.logger.Error("failed to serialize compound request", LogField{"error", err})
		return 0, nil, &SerializationError{What: "compound request", Err: err}
	}
	replyBytes, err := c.rpc.Call(procCompound, argBytes)
	if err != nil {
		c.cfg.logger.Error("compound call failed", LogField{"error", err})
		return 0, nil, err
	}
	status, ops, err := decodeCompoundReply(newByteReader(replyBytes))
	if err != nil {
		c.cfg.logger.Error("failed to deserialize compound reply", LogField{"error", err})
		return 0, nil, &DeserializationError{What: "compound reply", Err: err}
	}
	c.cfg.logger.Debug("compound call completed", LogField{"status", status}, LogField{"ops", len(ops)})
	return status, ops, nil
}

// splitPath splits an absolute path into non-empty components.
func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// LookUp resolves an absolute path to a filehandle.
func (c *Client) LookUp(path string) (FileHandle, error) {
	c.cfg.logger.Debug("LOOKUP", LogField{"path", path})
	components := splitPath(path)

	b := &compoundBuilder{}
	b.putRootFH()
	for _, name := range components {
		b.lookup(name)
	}
	b.getFH()

	_, ops, err := c.call(b)
	if err != nil {
		return nil, err
	}
	return fhFromLastOp("LOOKUP", ops)
}

func fhFromLastOp(op string, ops []decodedOp) (FileHandle, error) {
	for _, o := range ops {
		if o.Status != NFS4_OK {
			return nil, nfsErrorFor(op, o.Status)
		}
	}
	last := ops[len(ops)-1]
	res, ok := last.Data.(getfhResult)
	if !ok {
		return nil, &DeserializationError{What: "GETFH result", Err: fmt.Errorf("missing filehandle in compound reply")}
	}
	return res.Handle, nil
}

// GetAttr fetches the attributes of an already-resolved filehandle.
func (c *Client) GetAttr(handle FileHandle, requested []FileAttributeId) (FileAttributes, error) {
	if requested == nil {
		requested = DefaultAttrInterest
	}
	b := &compoundBuilder{}
	b.putFH(handle)
	b.getAttr(requested)

	_, ops, err := c.call(b)
	if err != nil {
		return nil, err
	}
	for _, o := range ops {
		if o.Status != NFS4_OK {
			return nil, nfsErrorFor("GETATTR", o.Status)
		}
	}
	res, ok := ops[len(ops)-1].Data.(getattrResult)
	if !ok {
		return nil, &DeserializationError{What: "GETATTR result", Err: fmt.Errorf("missing attributes in compound reply")}
	}
	return res.Attrs, nil
}

// SetAttr applies attrs to an already-resolved filehandle using the
// anonymous stateid.
func (c *Client) SetAttr(handle FileHandle, attrs SetAttrArgs) error {
	b := &compoundBuilder{}
	b.putFH(handle)
	b.setAttr(AnonymousStateid, attrs)

	_, ops, err := c.call(b)
	if err != nil {
		return err
	}
	for _, o := range ops {
		if o.Status != NFS4_OK {
			return nfsErrorFor("SETATTR", o.Status)
		}
	}
	return nil
}

// ReadDir lists every entry of a directory's filehandle, paginating
// internally with the configured dircount/maxcount budgets. A single
// NFS4ERR_BAD_COOKIE mid-listing restarts the whole listing once.
func (c *Client) ReadDir(handle FileHandle, requested []FileAttributeId) ([]DirEntry, error) {
	if requested == nil {
		requested = DefaultAttrInterest
	}

	restarted := false
	for {
		entries, err := c.readDirOnce(handle, requested)
		if err == nil {
			return entries, nil
		}
		if nfsErr, ok := err.(*NfsError); ok && nfsErr.Status == NFS4ERR_BAD_COOKIE && !restarted {
			restarted = true
			continue
		}
		return nil, err
	}
}

func (c *Client) readDirOnce(handle FileHandle, requested []FileAttributeId) ([]DirEntry, error) {
	var all []DirEntry
	var cookie uint64
	var verifier [8]byte

	for {
		b := &compoundBuilder{}
		b.putFH(handle)
		b.readDir(cookie, verifier, c.cfg.dircount, c.cfg.maxcount, requested)

		_, ops, err := c.call(b)
		if err != nil {
			return nil, err
		}
		for _, o := range ops {
			if o.Status != NFS4_OK {
				return nil, nfsErrorFor("READDIR", o.Status)
			}
		}
		res, ok := ops[len(ops)-1].Data.(readdirResult)
		if !ok {
			return nil, &DeserializationError{What: "READDIR result", Err: fmt.Errorf("missing directory listing in compound reply")}
		}

		all = append(all, res.Entries...)
		if res.EOF {
			return all, nil
		}
		if len(res.Entries) == 0 {
			return nil, &DeserializationError{What: "READDIR result", Err: fmt.Errorf("empty page without eof")}
		}
		cookie = res.Entries[len(res.Entries)-1].Cookie
		verifier = res.Verifier
	}
}

// CreateFile creates a regular file named name under parent with mode
// 0644, returning its filehandle. Issues [PUTFH, OPEN(CREATE, UNCHECKED),
// GETFH] in one compound, then CLOSE in a second: NFSv4.0 has no way for
// CLOSE to reference a stateid its own compound's OPEN hasn't returned
// yet, so this operation always costs two RPCs. (LookUp, GetAttr, SetAttr
// and Remove cost one; ReadDir, ReadAll and WriteAll cost one per page or
// chunk.)
func (c *Client) CreateFile(parent FileHandle, name string) (FileHandle, error) {
	const defaultCreateMode = 0644

	c.cfg.logger.Debug("OPEN/CREATE", LogField{"name", name}, LogField{"mode", defaultCreateMode})
	c.ownerSeq++
	owner := []byte(fmt.Sprintf("%s-%d", c.cfg.ownerPrefix, c.ownerSeq))

	b := &compoundBuilder{}
	b.putFH(parent)
	// seqid 0: the first request for a brand-new open_owner, RFC 7530 §9.1.7.
	b.openCreate(0, 0, owner, name, defaultCreateMode)
	b.getFH()

	_, ops, err := c.call(b)
	if err != nil {
		return nil, err
	}
	for _, o := range ops {
		if o.Status != NFS4_OK {
			return nil, nfsErrorFor("OPEN", o.Status)
		}
	}

	var openRes openResult
	var fhRes getfhResult
	for _, o := range ops {
		switch v := o.Data.(type) {
		case openResult:
			openRes = v
		case getfhResult:
			fhRes = v
		}
	}
	if fhRes.Handle == nil {
		return nil, &DeserializationError{What: "OPEN/GETFH result", Err: fmt.Errorf("missing filehandle in compound reply")}
	}

	if err := c.closeFile(fhRes.Handle, openRes.Stateid); err != nil {
		return nil, err
	}
	return fhRes.Handle, nil
}

func (c *Client) closeFile(handle FileHandle, stateid Stateid) error {
	b := &compoundBuilder{}
	b.putFH(handle)
	// seqid 1: the second and last request against this open_owner.
	b.closeOp(1, stateid)

	_, ops, err := c.call(b)
	if err != nil {
		return err
	}
	for _, o := range ops {
		if o.Status != NFS4_OK {
			return nfsErrorFor("CLOSE", o.Status)
		}
	}
	return nil
}

// Remove deletes name from directory parent.
func (c *Client) Remove(parent FileHandle, name string) error {
	c.cfg.logger.Debug("REMOVE", LogField{"name", name})
	b := &compoundBuilder{}
	b.putFH(parent)
	b.remove(name)

	_, ops, err := c.call(b)
	if err != nil {
		return err
	}
	for _, o := range ops {
		if o.Status != NFS4_OK {
			return nfsErrorFor("REMOVE", o.Status)
		}
	}
	return nil
}

// ReadAll streams the entire contents of handle to w, chunked at the
// client's configured chunk size, and returns the number of bytes
// written.
func (c *Client) ReadAll(handle FileHandle, w io.Writer) (int64, error) {
	var offset uint64
	var total int64

	for {
		b := &compoundBuilder{}
		b.putFH(handle)
		b.read(AnonymousStateid, offset, uint32(c.cfg.chunkSize))

		_, ops, err := c.call(b)
		if err != nil {
			return total, err
		}
		for _, o := range ops {
			if o.Status != NFS4_OK {
				return total, nfsErrorFor("READ", o.Status)
			}
		}
		res, ok := ops[len(ops)-1].Data.(readResult)
		if !ok {
			return total, &DeserializationError{What: "READ result", Err: fmt.Errorf("missing data in compound reply")}
		}

		if len(res.Data) == 0 && !res.EOF {
			return total, &DeserializationError{What: "READ result", Err: fmt.Errorf("zero-byte chunk without eof")}
		}

		if len(res.Data) > 0 {
			n, err := w.Write(res.Data)
			total += int64(n)
			if err != nil {
				return total, &IOError{Op: "write read_all destination", Err: err}
			}
		}

		offset += uint64(len(res.Data))
		if res.EOF {
			return total, nil
		}
	}
}

// WriteAll streams r to handle, chunked at the client's configured chunk
// size, using FILE_SYNC4 stability so no trailing COMMIT is required.
func (c *Client) WriteAll(handle FileHandle, r io.Reader) error {
	var offset uint64
	chunk := make([]byte, c.cfg.chunkSize)

	for {
		n, readErr := io.ReadFull(r, chunk)
		if n > 0 {
			if err := c.writeChunk(handle, offset, chunk[:n]); err != nil {
				return err
			}
			offset += uint64(n)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return nil
		}
		if readErr != nil {
			return &IOError{Op: "read write_all source", Err: readErr}
		}
	}
}

func (c *Client) writeChunk(handle FileHandle, offset uint64, data []byte) error {
	for len(data) > 0 {
		b := &compoundBuilder{}
		b.putFH(handle)
		b.write(AnonymousStateid, offset, FileSync4, data)

		_, ops, err := c.call(b)
		if err != nil {
			return err
		}
		for _, o := range ops {
			if o.Status != NFS4_OK {
				return nfsErrorFor("WRITE", o.Status)
			}
		}
		res, ok := ops[len(ops)-1].Data.(writeResult)
		if !ok {
			return &DeserializationError{What: "WRITE result", Err: fmt.Errorf("missing count in compound reply")}
		}
		if res.Count == 0 {
			return &DeserializationError{What: "WRITE result", Err: fmt.Errorf("server accepted zero bytes")}
		}
		data = data[res.Count:]
		offset += uint64(res.Count)
	}
	return nil
}
