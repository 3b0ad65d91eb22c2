package nfs4

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"testing"
)

// newTestClient wires a Client against a freshly started fake NFSv4 server
// over an in-process pipe, returning the client and that server's root
// filehandle-bearing node tree for setup shortcuts.
func newTestClient(t *testing.T) (*Client, *fakeNFSServer) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })

	server := newFakeNFSServer()
	go server.serve(serverConn)

	client := NewClient(clientConn, WithXIDSeed(1))
	return client, server
}

func mustMkdir(t *testing.T, server *fakeNFSServer, parent *fakeNode, name string) *fakeNode {
	t.Helper()
	child := server.newNode(true)
	parent.children[name] = child
	return child
}

// Scenario 1: create_file then look_up succeeds and returns a non-empty
// filehandle.
func TestEndToEndCreateThenLookUp(t *testing.T) {
	client, server := newTestClient(t)
	filesDir := mustMkdir(t, server, server.root, "files")
	_ = filesDir

	handle, err := client.CreateFile(filesDir.fh, "a_file")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if len(handle) == 0 {
		t.Fatalf("CreateFile returned empty filehandle")
	}

	got, err := client.LookUp("/files/a_file")
	if err != nil {
		t.Fatalf("LookUp: %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("LookUp returned empty filehandle")
	}
}

// A new open_owner's first request (OPEN) must carry seqid 0 and its
// second (CLOSE) must carry seqid 1, per RFC 7530 §9.1.7; CreateFile
// mints a brand-new owner on every call, so this must hold on every call,
// not just the first.
func TestCreateFileUsesFreshOpenOwnerSeqids(t *testing.T) {
	client, server := newTestClient(t)
	filesDir := mustMkdir(t, server, server.root, "files")

	for _, name := range []string{"a", "b"} {
		if _, err := client.CreateFile(filesDir.fh, name); err != nil {
			t.Fatalf("CreateFile(%s): %v", name, err)
		}
	}

	want := []uint32{0, 1, 0, 1}
	if len(server.seenSeqids) != len(want) {
		t.Fatalf("seenSeqids = %v, want %v", server.seenSeqids, want)
	}
	for i, w := range want {
		if server.seenSeqids[i] != w {
			t.Errorf("seenSeqids[%d] = %d, want %d", i, server.seenSeqids[i], w)
		}
	}
}

// Scenario 2: write_all then read_all round-trips the content, and
// get_attr reports the matching size.
func TestEndToEndWriteAllReadAllRoundTrip(t *testing.T) {
	client, server := newTestClient(t)
	filesDir := mustMkdir(t, server, server.root, "files")

	handle, err := client.CreateFile(filesDir.fh, "a_file")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	const size = 100_000
	src := make([]byte, size)
	for i := range src {
		src[i] = byte(i % 255)
	}

	if err := client.WriteAll(handle, bytes.NewReader(src)); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	var out bytes.Buffer
	n, err := client.ReadAll(handle, &out)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if n != size {
		t.Fatalf("ReadAll returned %d bytes, want %d", n, size)
	}
	if !bytes.Equal(out.Bytes(), src) {
		t.Fatalf("read_all content does not match write_all source")
	}

	attrs, err := client.GetAttr(handle, []FileAttributeId{FATTR4_SIZE})
	if err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	gotSize, ok := attrs.Size()
	if !ok {
		t.Fatalf("GetAttr reply missing size")
	}
	if gotSize != size {
		t.Errorf("get_attr Size = %d, want %d", gotSize, size)
	}
}

// Scenario 3: create_file then set_attr(Size=100) then get_attr reports
// Size == 100.
func TestEndToEndSetAttrSize(t *testing.T) {
	client, server := newTestClient(t)
	filesDir := mustMkdir(t, server, server.root, "files")

	handle, err := client.CreateFile(filesDir.fh, "a_file")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	size := uint64(100)
	if err := client.SetAttr(handle, SetAttrArgs{Size: &size}); err != nil {
		t.Fatalf("SetAttr: %v", err)
	}

	attrs, err := client.GetAttr(handle, nil)
	if err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	gotSize, ok := attrs.Size()
	if !ok {
		t.Fatalf("GetAttr reply missing size")
	}
	if gotSize != 100 {
		t.Errorf("get_attr Size = %d, want 100", gotSize)
	}
}

// Scenario 4: creating 100 files and reading the directory back returns
// the same name set, exercising multi-page READDIR pagination via a small
// dircount/maxcount budget.
func TestEndToEndReadDirManyEntries(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })
	server := newFakeNFSServer()
	go server.serve(serverConn)
	client := NewClient(clientConn, WithXIDSeed(1), WithDirReadSize(256, 512))

	filesDir := mustMkdir(t, server, server.root, "files")

	const count = 100
	want := make(map[string]bool, count)
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("a_file%d", i)
		if _, err := client.CreateFile(filesDir.fh, name); err != nil {
			t.Fatalf("CreateFile(%s): %v", name, err)
		}
		want[name] = true
	}

	entries, err := client.ReadDir(filesDir.fh, nil)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	got := make(map[string]bool, len(entries))
	for _, e := range entries {
		got[e.Name] = true
	}
	if len(got) != len(want) {
		t.Fatalf("ReadDir returned %d distinct names, want %d", len(got), len(want))
	}
	for name := range want {
		if !got[name] {
			t.Errorf("ReadDir missing %q", name)
		}
	}
}

// Scenario 5: create_file then remove then look_up fails with NotFound.
func TestEndToEndRemoveThenLookUpNotFound(t *testing.T) {
	client, server := newTestClient(t)
	filesDir := mustMkdir(t, server, server.root, "files")

	if _, err := client.CreateFile(filesDir.fh, "a_file"); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := client.Remove(filesDir.fh, "a_file"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	_, err := client.LookUp("/files/a_file")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("LookUp after remove: got %v, want ErrNotFound", err)
	}
}

// Scenario 6: a NULL procedure call to the portmapper program receives an
// empty success reply.
func TestEndToEndPortmapperPing(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })

	go func() {
		server := newFakeNFSServer()
		server.serve(serverConn)
	}()

	if err := PingPortmapper(clientConn); err != nil {
		t.Fatalf("PingPortmapper: %v", err)
	}
}

// Boundary: reading an empty file returns zero bytes with eof=true on the
// first READ.
func TestEndToEndReadAllEmptyFile(t *testing.T) {
	client, server := newTestClient(t)
	filesDir := mustMkdir(t, server, server.root, "files")

	handle, err := client.CreateFile(filesDir.fh, "empty")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	var out bytes.Buffer
	n, err := client.ReadAll(handle, &out)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if n != 0 {
		t.Errorf("ReadAll on empty file returned %d bytes, want 0", n)
	}
}

// Boundary: a write_all source whose size crosses a chunk boundary at an
// arbitrary byte still reads back identically.
func TestEndToEndWriteAllCrossesChunkBoundary(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })
	server := newFakeNFSServer()
	go server.serve(serverConn)
	client := NewClient(clientConn, WithXIDSeed(1), WithChunkSize(64))

	filesDir := mustMkdir(t, server, server.root, "files")
	handle, err := client.CreateFile(filesDir.fh, "odd_size")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	const size = 64*3 + 17 // three full chunks plus a partial one
	src := make([]byte, size)
	for i := range src {
		src[i] = byte(i)
	}
	if err := client.WriteAll(handle, bytes.NewReader(src)); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	var out bytes.Buffer
	if _, err := client.ReadAll(handle, &out); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(out.Bytes(), src) {
		t.Fatalf("readback does not match write_all source across a chunk boundary")
	}
}
