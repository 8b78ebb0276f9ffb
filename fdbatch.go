package unixtransport

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MaxFDs is the largest number of file descriptors one frame can carry,
// matching the Linux kernel's per-message limit (SCM_MAX_FD).
const MaxFDs = 253

// FDBatch is an ordered collection of open file descriptors owned by the
// batch. A batch queued for send is cloned first, so the caller may close
// its own descriptors as soon as the send is issued; a batch filled on
// receive owns the freshly delivered descriptors until they are
// transferred or closed.
type FDBatch struct {
	fds []int
}

// NewFDBatch creates a batch holding the given descriptors. The batch
// takes ownership of them.
func NewFDBatch(fds ...int) (*FDBatch, error) {
	if len(fds) > MaxFDs {
		return nil, errors.Wrapf(ErrInvalidArgument, "%d descriptors exceed the batch limit of %d", len(fds), MaxFDs)
	}
	b := &FDBatch{fds: make([]int, len(fds))}
	copy(b.fds, fds)
	return b, nil
}

// Len returns the number of descriptors in the batch.
func (b *FDBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.fds)
}

// FDs returns a copy of the descriptor numbers. Ownership stays with the
// batch.
func (b *FDBatch) FDs() []int {
	if b == nil {
		return nil
	}
	out := make([]int, len(b.fds))
	copy(out, b.fds)
	return out
}

// Append adds one descriptor to the batch, taking ownership of it.
func (b *FDBatch) Append(fd int) error {
	if len(b.fds) >= MaxFDs {
		return errors.Wrapf(ErrInvalidArgument, "batch already holds %d descriptors", MaxFDs)
	}
	b.fds = append(b.fds, fd)
	return nil
}

// Clone duplicates every descriptor with F_DUPFD_CLOEXEC and returns a
// new batch owning the duplicates. On failure the partially built clone
// is closed before returning, so a clone either owns a full set or
// nothing.
func (b *FDBatch) Clone() (*FDBatch, error) {
	clone := &FDBatch{fds: make([]int, 0, len(b.fds))}
	for _, fd := range b.fds {
		dup, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
		if err != nil {
			_ = clone.Close()
			return nil, errors.Wrapf(err, "duplicate descriptor %d", fd)
		}
		clone.fds = append(clone.fds, dup)
	}
	return clone, nil
}

// TransferTo moves every descriptor from b into dst, leaving b empty.
// Fails without moving anything if dst cannot hold them all.
func (b *FDBatch) TransferTo(dst *FDBatch) error {
	if len(dst.fds)+len(b.fds) > MaxFDs {
		return errors.Wrapf(ErrInvalidArgument, "transfer would exceed the batch limit of %d", MaxFDs)
	}
	dst.fds = append(dst.fds, b.fds...)
	b.fds = nil
	return nil
}

// Close closes every descriptor in the batch and empties it. Safe to call
// more than once; the first close error is kept.
func (b *FDBatch) Close() error {
	if b == nil {
		return nil
	}
	var first error
	for _, fd := range b.fds {
		if err := unix.Close(fd); err != nil && first == nil {
			first = errors.Wrapf(err, "close descriptor %d", fd)
		}
	}
	b.fds = nil
	return first
}
