package unixtransport

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

// newTestPipe returns the two ends of a pipe and registers cleanup for
// descriptors still open when the test ends.
func newTestPipe(t *testing.T) (r, w int) {
	t.Helper()

	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		_ = unix.Close(p[0])
		_ = unix.Close(p[1])
	})
	return p[0], p[1]
}

func TestFDBatch_AppendCapacity(t *testing.T) {
	var b FDBatch
	for i := 0; i < MaxFDs; i++ {
		if err := b.Append(i); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	if err := b.Append(MaxFDs); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument past capacity, got %v", err)
	}
}

func TestNewFDBatch_TooMany(t *testing.T) {
	_, err := NewFDBatch(make([]int, MaxFDs+1)...)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestFDBatch_Clone(t *testing.T) {
	r, w := newTestPipe(t)

	batch, err := NewFDBatch(w)
	if err != nil {
		t.Fatalf("NewFDBatch failed: %v", err)
	}

	clone, err := batch.Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	if clone.Len() != 1 {
		t.Fatalf("clone holds %d descriptors, want 1", clone.Len())
	}
	if clone.FDs()[0] == w {
		t.Error("clone holds the original descriptor, not a duplicate")
	}

	// The duplicate must stay usable after the original is closed.
	_ = unix.Close(w)
	if _, err := unix.Write(clone.FDs()[0], []byte("x")); err != nil {
		t.Fatalf("write through cloned descriptor failed: %v", err)
	}
	buf := make([]byte, 1)
	if n, err := unix.Read(r, buf); err != nil || n != 1 || buf[0] != 'x' {
		t.Fatalf("read through pipe: n=%d err=%v", n, err)
	}

	if err := clone.Close(); err != nil {
		t.Errorf("clone Close failed: %v", err)
	}
}

func TestFDBatch_CloseIdempotent(t *testing.T) {
	_, w := newTestPipe(t)

	dup, err := unix.FcntlInt(uintptr(w), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("dup: %v", err)
	}

	batch, err := NewFDBatch(dup)
	if err != nil {
		t.Fatalf("NewFDBatch failed: %v", err)
	}
	if err := batch.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := batch.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if batch.Len() != 0 {
		t.Errorf("batch not empty after Close: %d", batch.Len())
	}
}

func TestFDBatch_TransferTo(t *testing.T) {
	src, err := NewFDBatch(10, 11)
	if err != nil {
		t.Fatalf("NewFDBatch failed: %v", err)
	}
	var dst FDBatch
	if err := dst.Append(9); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := src.TransferTo(&dst); err != nil {
		t.Fatalf("TransferTo failed: %v", err)
	}
	if src.Len() != 0 {
		t.Errorf("source still holds %d descriptors", src.Len())
	}
	got := dst.FDs()
	want := []int{9, 10, 11}
	if len(got) != len(want) {
		t.Fatalf("dst holds %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dst[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFDBatch_NilReceiver(t *testing.T) {
	var b *FDBatch
	if b.Len() != 0 {
		t.Error("nil batch has non-zero length")
	}
	if b.FDs() != nil {
		t.Error("nil batch returned descriptors")
	}
	if err := b.Close(); err != nil {
		t.Errorf("nil batch Close failed: %v", err)
	}
}
