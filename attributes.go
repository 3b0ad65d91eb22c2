package nfs4

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rbernot/nfs4/internal/xdrcodec"
)

// FileAttributeId is one bit position in an NFSv4 attribute bitmap,
// RFC 7530 §5.
type FileAttributeId uint32

// Attributes this client can request and decode. Not the full RFC 7530
// table: only the subset a filesystem-browsing client needs.
const (
	FATTR4_SUPPORTED_ATTRS   FileAttributeId = 0
	FATTR4_TYPE              FileAttributeId = 1
	FATTR4_CHANGE            FileAttributeId = 3
	FATTR4_SIZE              FileAttributeId = 4
	FATTR4_FSID              FileAttributeId = 8
	FATTR4_LEASE_TIME        FileAttributeId = 10
	FATTR4_FILEHANDLE        FileAttributeId = 19
	FATTR4_FILEID            FileAttributeId = 20
	FATTR4_MODE              FileAttributeId = 33
	FATTR4_NUMLINKS          FileAttributeId = 35
	FATTR4_OWNER             FileAttributeId = 36
	FATTR4_OWNER_GROUP       FileAttributeId = 37
	FATTR4_SPACE_USED        FileAttributeId = 45
	FATTR4_TIME_ACCESS       FileAttributeId = 47
	FATTR4_TIME_METADATA     FileAttributeId = 52
	FATTR4_TIME_MODIFY       FileAttributeId = 53
	FATTR4_MOUNTED_ON_FILEID FileAttributeId = 55
)

// NfsFileType is the wire value of a decoded FATTR4_TYPE attribute,
// RFC 7530 §4.1.
type NfsFileType uint32

const (
	NF4REG       NfsFileType = 1
	NF4DIR       NfsFileType = 2
	NF4BLK       NfsFileType = 3
	NF4CHR       NfsFileType = 4
	NF4LNK       NfsFileType = 5
	NF4SOCK      NfsFileType = 6
	NF4FIFO      NfsFileType = 7
	NF4ATTRDIR   NfsFileType = 8
	NF4NAMEDATTR NfsFileType = 9
)

// DefaultAttrInterest is the bitmap this client requests on GETATTR and
// READDIR when the caller hasn't asked for anything more specific: enough
// to populate a conventional stat-like view of a file.
var DefaultAttrInterest = []FileAttributeId{
	FATTR4_TYPE, FATTR4_SIZE, FATTR4_FILEHANDLE, FATTR4_FILEID, FATTR4_MODE,
	FATTR4_NUMLINKS, FATTR4_OWNER, FATTR4_OWNER_GROUP,
	FATTR4_TIME_ACCESS, FATTR4_TIME_MODIFY, FATTR4_TIME_METADATA,
}

// FileAttributes is the decoded result of a fattr4 value: a sparse set of
// attribute id -> Go value, populated only for the bits the server
// actually returned (which may be fewer than requested).
type FileAttributes map[FileAttributeId]any

func (a FileAttributes) has(id FileAttributeId) bool {
	_, ok := a[id]
	return ok
}

// Type returns FATTR4_TYPE if present.
func (a FileAttributes) Type() (NfsFileType, bool) {
	v, ok := a[FATTR4_TYPE]
	if !ok {
		return 0, false
	}
	return v.(NfsFileType), true
}

// Size returns FATTR4_SIZE if present.
func (a FileAttributes) Size() (uint64, bool) {
	v, ok := a[FATTR4_SIZE]
	if !ok {
		return 0, false
	}
	return v.(uint64), true
}

// Mode returns FATTR4_MODE if present.
func (a FileAttributes) Mode() (uint32, bool) {
	v, ok := a[FATTR4_MODE]
	if !ok {
		return 0, false
	}
	return v.(uint32), true
}

// FileId returns FATTR4_FILEID if present.
func (a FileAttributes) FileId() (uint64, bool) {
	v, ok := a[FATTR4_FILEID]
	if !ok {
		return 0, false
	}
	return v.(uint64), true
}

// TimeModify returns FATTR4_TIME_MODIFY if present.
func (a FileAttributes) TimeModify() (Time, bool) {
	v, ok := a[FATTR4_TIME_MODIFY]
	if !ok {
		return Time{}, false
	}
	return v.(Time), true
}

// FileHandle returns FATTR4_FILEHANDLE if present.
func (a FileAttributes) FileHandle() (FileHandle, bool) {
	v, ok := a[FATTR4_FILEHANDLE]
	if !ok {
		return nil, false
	}
	return v.(FileHandle), true
}

// bitmap4 is a variable-length array of 32-bit words; bit i of word w
// represents attribute id w*32+i, RFC 7530 §2.3.8.
type bitmap4 []uint32

// encodeBitmap4 builds a bitmap4 from a set of attribute ids.
func encodeBitmap4(ids []FileAttributeId) bitmap4 {
	var words bitmap4
	for _, id := range ids {
		word, bit := uint32(id)/32, uint32(id)%32
		for uint32(len(words)) <= word {
			words = append(words, 0)
		}
		words[word] |= 1 << bit
	}
	return words
}

func writeBitmap4(w io.Writer, bm bitmap4) error {
	return xdrcodec.WriteUint32Array(w, []uint32(bm))
}

func readBitmap4(r io.Reader) (bitmap4, error) {
	words, err := xdrcodec.ReadUint32Array(r, 64)
	if err != nil {
		return nil, err
	}
	return bitmap4(words), nil
}

func (bm bitmap4) isSet(id FileAttributeId) bool {
	word, bit := uint32(id)/32, uint32(id)%32
	if word >= uint32(len(bm)) {
		return false
	}
	return bm[word]&(1<<bit) != 0
}

// ids returns every attribute id set in bm, in ascending order.
func (bm bitmap4) ids() []FileAttributeId {
	var out []FileAttributeId
	for word, w := range bm {
		for bit := uint32(0); bit < 32; bit++ {
			if w&(1<<bit) != 0 {
				out = append(out, FileAttributeId(uint32(word)*32+bit))
			}
		}
	}
	return out
}

// encodeGetAttrArgs builds the bitmap4 argument GETATTR takes.
func encodeGetAttrArgs(w io.Writer, ids []FileAttributeId) error {
	return writeBitmap4(w, encodeBitmap4(ids))
}

// decodeFattr4 decodes an fattr4 value (a bitmap naming which attributes
// follow, then an opaque blob holding their encoded values in ascending
// attribute-id order) into a FileAttributes map. An attribute id this
// client doesn't decode into a Go value is skipped by consuming its known
// wire width (attrFixedWidth) when that width is fixed regardless of
// content; an attribute id whose width this client has no way to
// determine without decoding it (RFC 7530 §5's variable-width attributes:
// ACL, FS_LOCATIONS, MIMETYPE, the two *_SET union attributes) desyncs the
// rest of the blob if skipped blindly, so that case is a
// DeserializationError instead of a silent truncation. Bytes left in the
// blob after the last attribute are an error as well.
func decodeFattr4(r io.Reader) (FileAttributes, error) {
	bm, err := readBitmap4(r)
	if err != nil {
		return nil, fmt.Errorf("decode attribute bitmap: %w", err)
	}

	blob, err := xdrcodec.ReadOpaque(r, 0)
	if err != nil {
		return nil, fmt.Errorf("decode attribute values: %w", err)
	}
	br := newByteReader(blob)

	attrs := make(FileAttributes)
	for _, id := range bm.ids() {
		if decode, ok := attrDecoders[id]; ok {
			v, err := decode(br)
			if err != nil {
				return nil, fmt.Errorf("decode attribute %d: %w", id, err)
			}
			attrs[id] = v
			continue
		}
		if width, ok := attrFixedWidth[id]; ok {
			if _, err := io.CopyN(io.Discard, br, int64(width)); err != nil {
				return nil, fmt.Errorf("skip fixed-width attribute %d: %w", id, err)
			}
			continue
		}
		return nil, fmt.Errorf("decode attribute values: server returned unrecognized variable-width attribute %d", id)
	}
	if n := len(br.remaining()); n != 0 {
		return nil, fmt.Errorf("decode attribute values: %d bytes left over after the last attribute", n)
	}
	return attrs, nil
}

type attrDecodeFunc func(io.Reader) (any, error)

// attrFixedWidth lists the RFC 7530 §5 attributes this client has no
// decoder for but whose on-wire width never varies with content, so a
// server response naming one can be skipped by byte count instead of
// rejected outright.
var attrFixedWidth = map[FileAttributeId]int{
	2:  4, // FH_EXPIRE_TYPE (uint32)
	5:  4, // LINK_SUPPORT (bool)
	6:  4, // SYMLINK_SUPPORT (bool)
	7:  4, // NAMED_ATTR (bool)
	9:  4, // UNIQUE_HANDLES (bool)
	11: 4, // RDATTR_ERROR (enum)
	13: 4, // ACLSUPPORT (uint32)
	14: 4, // ARCHIVE (bool)
	15: 4, // CANSETTIME (bool)
	16: 4, // CASE_INSENSITIVE (bool)
	17: 4, // CASE_PRESERVING (bool)
	18: 4, // CHOWN_RESTRICTED (bool)
	21: 8, // FILES_AVAIL (uint64)
	22: 8, // FILES_FREE (uint64)
	23: 8, // FILES_TOTAL (uint64)
	25: 4, // HIDDEN (bool)
	26: 4, // HOMOGENEOUS (bool)
	27: 8, // MAXFILESIZE (uint64)
	28: 4, // MAXLINK (uint32)
	29: 4, // MAXNAME (uint32)
	30: 8, // MAXREAD (uint64)
	31: 8, // MAXWRITE (uint64)
	34: 4, // NO_TRUNC (bool)
	38: 8, // QUOTA_AVAIL_HARD (uint64)
	39: 8, // QUOTA_AVAIL_SOFT (uint64)
	40: 8, // QUOTA_USED (uint64)
	41: 8, // RAWDEV (specdata4: 2 uint32)
	42: 8, // SPACE_AVAIL (uint64)
	43: 8, // SPACE_FREE (uint64)
	44: 8, // SPACE_TOTAL (uint64)
	46: 4,  // SYSTEM (bool)
	49: 12, // TIME_BACKUP (nfstime4)
	50: 12, // TIME_CREATE (nfstime4)
	51: 12, // TIME_DELTA (nfstime4)
}

var attrDecoders = map[FileAttributeId]attrDecodeFunc{
	FATTR4_SUPPORTED_ATTRS: func(r io.Reader) (any, error) {
		bm, err := readBitmap4(r)
		return bm, err
	},
	FATTR4_TYPE: func(r io.Reader) (any, error) {
		v, err := xdrcodec.ReadUint32(r)
		return NfsFileType(v), err
	},
	FATTR4_CHANGE: func(r io.Reader) (any, error) {
		return xdrcodec.ReadUint64(r)
	},
	FATTR4_SIZE: func(r io.Reader) (any, error) {
		return xdrcodec.ReadUint64(r)
	},
	FATTR4_FSID: func(r io.Reader) (any, error) {
		major, err := xdrcodec.ReadUint64(r)
		if err != nil {
			return nil, err
		}
		minor, err := xdrcodec.ReadUint64(r)
		return [2]uint64{major, minor}, err
	},
	FATTR4_LEASE_TIME: func(r io.Reader) (any, error) {
		return xdrcodec.ReadUint32(r)
	},
	FATTR4_FILEHANDLE: func(r io.Reader) (any, error) {
		fh, err := xdrcodec.ReadOpaque(r, 0)
		return FileHandle(fh), err
	},
	FATTR4_FILEID: func(r io.Reader) (any, error) {
		return xdrcodec.ReadUint64(r)
	},
	FATTR4_MODE: func(r io.Reader) (any, error) {
		return xdrcodec.ReadUint32(r)
	},
	FATTR4_NUMLINKS: func(r io.Reader) (any, error) {
		return xdrcodec.ReadUint32(r)
	},
	FATTR4_OWNER: func(r io.Reader) (any, error) {
		return xdrcodec.ReadString(r, 0)
	},
	FATTR4_OWNER_GROUP: func(r io.Reader) (any, error) {
		return xdrcodec.ReadString(r, 0)
	},
	FATTR4_SPACE_USED: func(r io.Reader) (any, error) {
		return xdrcodec.ReadUint64(r)
	},
	FATTR4_TIME_ACCESS:   decodeNfstime4,
	FATTR4_TIME_METADATA: decodeNfstime4,
	FATTR4_TIME_MODIFY:   decodeNfstime4,
	FATTR4_MOUNTED_ON_FILEID: func(r io.Reader) (any, error) {
		return xdrcodec.ReadUint64(r)
	},
}

func decodeNfstime4(r io.Reader) (any, error) {
	seconds, err := xdrcodec.ReadUint64(r)
	if err != nil {
		return nil, err
	}
	nseconds, err := xdrcodec.ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if nseconds >= 1_000_000_000 {
		return nil, fmt.Errorf("nfstime4 nseconds %d out of range", nseconds)
	}
	return Time{Seconds: int64(seconds), Nseconds: nseconds}, nil
}

// encodeSetAttrArgs encodes the subset of writable attributes this client
// can set through SETATTR: size, mode, owner, owner_group, and the two
// timestamps (set-to-client-time form, carrying the given value).
type SetAttrArgs struct {
	Size       *uint64
	Mode       *uint32
	Owner      *string
	OwnerGroup *string
	TimeAccess *Time
	TimeModify *Time
}

// ids returns the attribute ids this value sets, in ascending order —
// the order fattr4 encoding requires.
func (s SetAttrArgs) ids() []FileAttributeId {
	var ids []FileAttributeId
	if s.Size != nil {
		ids = append(ids, FATTR4_SIZE)
	}
	if s.Mode != nil {
		ids = append(ids, FATTR4_MODE)
	}
	if s.Owner != nil {
		ids = append(ids, FATTR4_OWNER)
	}
	if s.OwnerGroup != nil {
		ids = append(ids, FATTR4_OWNER_GROUP)
	}
	if s.TimeAccess != nil {
		ids = append(ids, FATTR4_TIME_ACCESS)
	}
	if s.TimeModify != nil {
		ids = append(ids, FATTR4_TIME_MODIFY)
	}
	return ids
}

// setTimeHow values distinguish a client-supplied timestamp from
// set-to-server-time, RFC 7530 §4.3.
const setToClientTime4 = 1

func encodeNfstime4(w io.Writer, t Time) error {
	if err := xdrcodec.WriteUint64(w, uint64(t.Seconds)); err != nil {
		return err
	}
	return xdrcodec.WriteUint32(w, t.Nseconds)
}

func encodeSetAttrArgs(w io.Writer, args SetAttrArgs) error {
	ids := args.ids()
	if err := writeBitmap4(w, encodeBitmap4(ids)); err != nil {
		return err
	}

	var blob bytes.Buffer
	for _, id := range ids {
		switch id {
		case FATTR4_SIZE:
			if err := xdrcodec.WriteUint64(&blob, *args.Size); err != nil {
				return err
			}
		case FATTR4_MODE:
			if err := xdrcodec.WriteUint32(&blob, *args.Mode); err != nil {
				return err
			}
		case FATTR4_OWNER:
			if err := xdrcodec.WriteString(&blob, *args.Owner); err != nil {
				return err
			}
		case FATTR4_OWNER_GROUP:
			if err := xdrcodec.WriteString(&blob, *args.OwnerGroup); err != nil {
				return err
			}
		case FATTR4_TIME_ACCESS:
			if err := xdrcodec.WriteUint32(&blob, setToClientTime4); err != nil {
				return err
			}
			if err := encodeNfstime4(&blob, *args.TimeAccess); err != nil {
				return err
			}
		case FATTR4_TIME_MODIFY:
			if err := xdrcodec.WriteUint32(&blob, setToClientTime4); err != nil {
				return err
			}
			if err := encodeNfstime4(&blob, *args.TimeModify); err != nil {
				return err
			}
		}
	}
	return xdrcodec.WriteOpaque(w, blob.Bytes())
}
