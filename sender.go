package unixtransport

import (
	"github.com/pkg/errors"
)

// Frame is one logical protocol message as the transport sees it: a
// serialized header, an optional body, and an optional descriptor batch.
// The batch rides along with the first byte sent for the frame so the
// receiver associates it with the frame start.
type Frame struct {
	Header []byte
	Body   []byte
	FDs    *FDBatch
}

// WriteFrame sends one frame, blocking until every byte is on the wire.
// Concurrent callers are serialized; the peer always observes complete,
// ordered frames. The caller keeps ownership of f.FDs and may close it as
// soon as WriteFrame returns, since the descriptors actually sent are
// operation-scoped duplicates.
//
// Returns the number of payload bytes written, which on success always
// equals len(f.Header)+len(f.Body).
func (t *Transport) WriteFrame(f Frame) (int, error) {
	if t.closed.Load() {
		return 0, ErrConnectionClosed
	}
	if len(f.Header) == 0 && len(f.Body) == 0 {
		return 0, errors.Wrap(ErrInvalidArgument, "frame has no header and no body")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	return t.sendFrame(f.Header, f.Body, f.FDs)
}

// sendFrame is the short-write retry loop. Each iteration issues one
// scatter/gather send covering the unsent suffix of the frame. The
// descriptor batch is attached only on the very first send; a retry after
// a short write must never re-attach it or the peer would receive the
// same descriptors twice.
func (t *Transport) sendFrame(header, body []byte, fds *FDBatch) (int, error) {
	total := len(header) + len(body)
	written := 0

	for written < total {
		// Attachment is keyed to the first send of the frame, not to the
		// header: a frame may legally have no header bytes at all.
		var attach *FDBatch
		if written == 0 {
			attach = fds
		}

		var n int
		var err error
		if written < len(header) {
			n, err = t.sendSegments(header[written:], body, attach)
		} else {
			n, err = t.sendSegments(body[written-len(header):], nil, attach)
		}
		if err != nil {
			return written, err
		}
		written += n
	}

	if written != total {
		return written, errors.Wrapf(ErrInternalInvariant, "wrote %d bytes of a %d-byte frame", written, total)
	}
	return written, nil
}

// sendSegments issues one vectored send over up to two buffers, attaching
// fds as SCM_RIGHTS ancillary data when non-empty. The batch is cloned
// for the duration of the call and the clone released on every exit path,
// so the caller's descriptors are never raced by the kernel.
func (t *Transport) sendSegments(first, second []byte, fds *FDBatch) (int, error) {
	buffers := make([][]byte, 0, 2)
	if len(first) > 0 {
		buffers = append(buffers, first)
	}
	if len(second) > 0 {
		buffers = append(buffers, second)
	}

	var oob []byte
	if fds.Len() > 0 {
		clone, err := fds.Clone()
		if err != nil {
			return 0, err
		}
		defer clone.Close()
		oob = encodeRights(clone.fds)
	}

	n, err := t.sendmsg(t.fd, buffers, oob, 0)
	if err != nil {
		t.logger.Debug("send error", "path", t.path, "error", err)
		return 0, errors.Wrap(err, "sendmsg")
	}
	if n == 0 {
		// The kernel accepted nothing; the peer will never make progress.
		return 0, errors.Wrap(ErrTransportClosed, "zero-byte send")
	}
	return n, nil
}
