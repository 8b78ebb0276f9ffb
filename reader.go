package unixtransport

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ReadWithFDs receives into p, extracting any descriptor batch carried in
// the same stream segment into out. When descriptor passing is not
// negotiated, or out is nil, this is a plain byte receive with no control
// buffer.
//
// Returns the number of payload bytes received, which may be less than
// len(p); filling the buffer across segments is the caller's framing
// responsibility. On success received descriptors are appended to out in
// wire order and out owns them. If the kernel truncated the control data
// the read fails with ErrProtocolViolation and out is left unchanged:
// the layer above assumes every descriptor referenced by a message
// arrives, so losing some cannot be papered over.
func (t *Transport) ReadWithFDs(p []byte, out *FDBatch) (int, error) {
	if t.closed.Load() {
		return 0, ErrConnectionClosed
	}

	if out == nil || !t.unixFDs.Load() {
		n, _, _, err := t.recvmsg(t.fd, p, nil, 0)
		if err != nil {
			t.logger.Debug("receive error", "path", t.path, "error", err)
			return 0, errors.Wrap(err, "recvmsg")
		}
		return n, nil
	}

	// Sized for a full kernel batch so a well-behaved peer can never
	// overflow it.
	oob := make([]byte, cmsgSpace(fdSize*MaxFDs))
	n, oobn, recvflags, err := t.recvmsg(t.fd, p, oob, 0)
	if err != nil {
		t.logger.Debug("receive error", "path", t.path, "error", err)
		return 0, errors.Wrap(err, "recvmsg")
	}

	if recvflags&unix.MSG_CTRUNC != 0 {
		// Some descriptors were dropped by the kernel. Close whatever
		// did arrive so they don't leak, then fail the read.
		leaked := &FDBatch{}
		_ = decodeRights(oob[:oobn], leaked)
		_ = leaked.Close()
		return n, errors.Wrap(ErrProtocolViolation, "control data truncated, descriptors lost")
	}

	if oobn > 0 {
		// Decode into a scratch batch first so out stays untouched when
		// the chain turns out to be malformed.
		scratch := &FDBatch{}
		if err := decodeRights(oob[:oobn], scratch); err != nil {
			_ = scratch.Close()
			return n, err
		}
		if err := scratch.TransferTo(out); err != nil {
			_ = scratch.Close()
			return n, err
		}
	}
	return n, nil
}
