package blk

import (
	"bytes"
	"sync"
	"testing"

	"github.com/Veneto723/Illinux/ioc"
	"github.com/Veneto723/Illinux/kerr"
)

// memBacking is an in-memory Backing for tests.
type memBacking struct {
	mu   sync.Mutex
	data []byte
}

func newMemBacking(nblocks int64) *memBacking {
	return &memBacking{data: make([]byte, nblocks*BlockSize)}
}

func (m *memBacking) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copy(p, m.data[off:off+int64(len(p))]), nil
}

func (m *memBacking) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copy(m.data[off:off+int64(len(p))], p), nil
}

func TestDeviceReadWriteRoundTrip(t *testing.T) {
	backing := newMemBacking(4)
	dev := NewDevice(backing)

	want := bytes.Repeat([]byte{0xAB}, BlockSize)
	if errno := dev.Write(1, want); errno != kerr.EOK {
		t.Fatalf("write errno %v", errno)
	}
	got := make([]byte, BlockSize)
	if errno := dev.Read(1, got); errno != kerr.EOK {
		t.Fatalf("read errno %v", errno)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("round trip mismatch")
	}

	st := dev.Stats()
	if st.Reads != 1 || st.Writes != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestDeviceSerializesConcurrentRequests(t *testing.T) {
	backing := newMemBacking(1)
	dev := NewDevice(backing)

	var wg sync.WaitGroup
	const n = 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buf := bytes.Repeat([]byte{byte(i)}, BlockSize)
			dev.Write(0, buf)
		}(i)
	}
	wg.Wait()

	st := dev.Stats()
	if st.Writes != n {
		t.Fatalf("expected %d writes matched to requests, got %d", n, st.Writes)
	}

	// Whatever the last writer wrote, every byte in the block must be
	// uniform: a torn write would indicate overlapping in-flight
	// requests against a queue depth of one.
	got := make([]byte, BlockSize)
	dev.Read(0, got)
	first := got[0]
	for _, b := range got {
		if b != first {
			t.Fatal("torn write detected: requests were not serialized")
		}
	}
}

func TestRawDiskCursor(t *testing.T) {
	backing := newMemBacking(2)
	dev := NewDevice(backing)
	rd := NewRawDisk(dev, 2)

	n, errno := rd.Write([]byte("hello"))
	if errno != kerr.EOK || n != 5 {
		t.Fatalf("write n=%d errno=%v", n, errno)
	}
	if _, errno := rd.Ioctl(ioc.IoctlGetPos, 0); errno != kerr.EOK {
		t.Fatalf("ioctl errno %v", errno)
	}
	rd.Ioctl(ioc.IoctlSetPos, 0)
	got := make([]byte, 5)
	n, errno = rd.Read(got)
	if errno != kerr.EOK || n != 5 || string(got) != "hello" {
		t.Fatalf("read n=%d errno=%v got=%q", n, errno, got)
	}
}
