// Package unixtransport is the Unix-domain-socket transport of a local
// message-bus protocol. It moves framed messages between a client and a
// bus daemon, carrying open file descriptors out of band via SCM_RIGHTS
// ancillary data. The layer above supplies serialized frames and parses
// received bytes; this package only guarantees that frames reach the wire
// whole, in order, with each frame's descriptor batch attached exactly
// once.
//
// The package is Linux-only: it relies on the abstract socket namespace
// and on SCM_RIGHTS semantics as implemented by the Linux kernel.
package unixtransport

import (
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// sendmsgFunc issues one scatter/gather send on fd. Empty buffers are
// not passed. oob may be nil.
type sendmsgFunc func(fd int, buffers [][]byte, oob []byte, flags int) (int, error)

// recvmsgFunc issues one receive on fd, filling p and, when oob is
// non-nil, the control buffer.
type recvmsgFunc func(fd int, p, oob []byte, flags int) (n, oobn, recvflags int, err error)

// Transport is a connected Unix-domain stream socket carrying bus frames.
// Writes from multiple goroutines are serialized internally; reads assume
// a single dedicated reader. All socket operations block until the kernel
// completes them; the only way to unblock a pending call is Close from
// another goroutine.
type Transport struct {
	fd     int
	path   string
	logger Logger

	opts options

	// writeMu serializes whole frames so two writers never interleave
	// bytes on the wire.
	writeMu sync.Mutex
	closed  atomic.Bool
	unixFDs atomic.Bool

	sendmsg sendmsgFunc
	recvmsg recvmsgFunc
}

// Open connects to the Unix-domain socket at path and returns the
// transport. With AbstractOption the path names a Linux abstract-namespace
// socket instead of a filesystem one. Connecting to a path nobody listens
// on fails with ErrTransportClosed.
func Open(path string, opt ...Option) (*Transport, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	var sa []byte
	var err error
	if opts.abstract {
		sa, err = buildAbstractAddress(path)
	} else {
		sa, err = buildPathAddress(path)
	}
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "socket")
	}

	if err := connectRaw(fd, sa); err != nil {
		_ = unix.Close(fd)
		if err == unix.ECONNREFUSED || err == unix.ENOENT {
			return nil, errors.Wrapf(ErrTransportClosed, "connect %s: %v", path, err)
		}
		return nil, errors.Wrapf(err, "connect %s", path)
	}

	t := newTransport(fd, opts)
	t.path = path
	t.logger.Info("transport connected", "path", path, "abstract", opts.abstract)
	return t, nil
}

// FromFD wraps an already connected Unix-domain socket, for example one
// returned by accept on the daemon side or by socketpair in tests. The
// transport takes ownership of fd.
func FromFD(fd int, opt ...Option) (*Transport, error) {
	if fd < 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "negative file descriptor")
	}

	var opts options
	for _, o := range opt {
		o(&opts)
	}
	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	return newTransport(fd, opts), nil
}

func newTransport(fd int, opts options) *Transport {
	t := &Transport{
		fd:      fd,
		logger:  opts.logger,
		opts:    opts,
		sendmsg: defaultSendmsg,
		recvmsg: defaultRecvmsg,
	}
	t.unixFDs.Store(opts.unixFDs)
	return t
}

// SetUnixFDSupport records whether descriptor passing was negotiated for
// this connection. Until enabled, reads take the plain byte path and any
// ancillary data the peer sends is not looked for.
func (t *Transport) SetUnixFDSupport(enabled bool) {
	t.unixFDs.Store(enabled)
}

// AuthString returns the caller's effective uid as a decimal string, the
// identity the authentication handshake announces to the bus daemon.
func (t *Transport) AuthString() string {
	return strconv.Itoa(os.Geteuid())
}

// Close closes the socket. Safe to call multiple times and concurrently
// with blocked reads or writes, which then fail.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil // already closed
	}
	t.logger.Info("transport closed", "path", t.path)
	return unix.Close(t.fd)
}

// IsClosed returns true if the transport has been closed.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

// Read receives plain bytes into p, implementing io.Reader so the
// dispatch loop above can buffer the stream. Descriptors are never
// extracted on this path; use ReadWithFDs for that.
func (t *Transport) Read(p []byte) (int, error) {
	n, err := t.ReadWithFDs(p, nil)
	if err != nil {
		return n, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// defaultSendmsg sends the buffers in one vectored sendmsg call,
// retrying on EINTR. MSG_NOSIGNAL keeps a dead peer from killing the
// process with SIGPIPE.
func defaultSendmsg(fd int, buffers [][]byte, oob []byte, flags int) (int, error) {
	for {
		n, err := unix.SendmsgBuffers(fd, buffers, oob, nil, flags|unix.MSG_NOSIGNAL)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// defaultRecvmsg receives one segment, retrying on EINTR.
func defaultRecvmsg(fd int, p, oob []byte, flags int) (int, int, int, error) {
	for {
		n, oobn, recvflags, _, err := unix.Recvmsg(fd, p, oob, flags)
		if err == unix.EINTR {
			continue
		}
		return n, oobn, recvflags, err
	}
}
