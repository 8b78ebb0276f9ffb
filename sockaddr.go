package unixtransport

import (
	"encoding/binary"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// hostOrder is the byte order the kernel expects for native struct fields
// (sockaddr family, cmsg header fields). Resolved once so every encoder
// writes through an explicit binary.ByteOrder instead of pointer casts.
var hostOrder binary.ByteOrder = func() binary.ByteOrder {
	probe := uint16(1)
	if *(*byte)(unsafe.Pointer(&probe)) == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// maxSunPath is the size of sockaddr_un.sun_path on Linux, including the
// trailing NUL (pathname form) or the leading NUL (abstract form).
const maxSunPath = 108

// sockaddr_un layout: [family:2][sun_path]. The family field always comes
// first; the two address forms differ only in how the path bytes are laid
// out after it.
const familyLen = 2

// buildPathAddress encodes a pathname socket address:
// two family bytes, the path, and a terminating zero byte.
func buildPathAddress(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "empty socket path")
	}
	if len(path)+1 > maxSunPath {
		return nil, errors.Wrapf(ErrInvalidArgument, "socket path longer than %d bytes", maxSunPath-1)
	}

	sa := make([]byte, familyLen+len(path)+1)
	hostOrder.PutUint16(sa, unix.AF_UNIX)
	copy(sa[familyLen:], path)
	// Trailing NUL is already zero from make.
	return sa, nil
}

// buildAbstractAddress encodes a Linux abstract-namespace socket address:
// two family bytes, a single zero byte, and the name with no terminator.
// Abstract names are not NUL-terminated; the address length alone bounds
// the name.
func buildAbstractAddress(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "empty socket path")
	}
	if len(path)+1 > maxSunPath {
		return nil, errors.Wrapf(ErrInvalidArgument, "socket path longer than %d bytes", maxSunPath-1)
	}

	sa := make([]byte, familyLen+1+len(path))
	hostOrder.PutUint16(sa, unix.AF_UNIX)
	sa[familyLen] = 0
	copy(sa[familyLen+1:], path)
	return sa, nil
}

// connectRaw connects fd to a raw socket-address image built by one of the
// encoders above. The kernel reads the bytes directly, so the address is
// passed exactly as encoded.
func connectRaw(fd int, sa []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_CONNECT, uintptr(fd), uintptr(unsafe.Pointer(&sa[0])), uintptr(len(sa)))
	if errno != 0 {
		return errno
	}
	return nil
}
