package unixtransport

import (
	"math/bits"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Control-message (cmsghdr) codec. The kernel's layout is
//
//	[len:word][level:int32][type:int32][payload...]
//
// with every message padded to the platform word size. All access goes
// through offsets into the caller's buffer with explicit bounds checks;
// a malformed or truncated chain ends the walk instead of reading past
// the buffer.

const (
	// wordSize is the platform word size, the alignment unit for
	// control messages (CMSG_ALIGN rounds to sizeof(long)).
	wordSize = bits.UintSize / 8
	// cmsgHdrLen is the aligned size of a cmsghdr: a word-sized length
	// field followed by two 32-bit ints.
	cmsgHdrLen = (wordSize + 8 + wordSize - 1) &^ (wordSize - 1)
	// fdSize is the wire size of one file descriptor in an SCM_RIGHTS
	// payload.
	fdSize = 4
)

// cmsgAlign rounds n up to the platform word size.
func cmsgAlign(n int) int {
	return (n + wordSize - 1) &^ (wordSize - 1)
}

// cmsgLen is the value recorded in a message's length field: header plus
// payload, without trailing padding. Mirrors CMSG_LEN.
func cmsgLen(payload int) int {
	return cmsgHdrLen + payload
}

// cmsgSpace is the buffer space one message occupies, trailing padding
// included. Mirrors CMSG_SPACE.
func cmsgSpace(payload int) int {
	return cmsgHdrLen + cmsgAlign(payload)
}

// cmsgRef locates one control message inside a buffer.
type cmsgRef struct {
	off    int   // offset of the header within the buffer
	length int   // declared cmsg_len (header + payload, unpadded)
	level  int32 // originating protocol
	typ    int32 // protocol-specific type
}

func putCmsgLen(b []byte, n int) {
	if wordSize == 8 {
		hostOrder.PutUint64(b, uint64(n))
	} else {
		hostOrder.PutUint32(b, uint32(n))
	}
}

func getCmsgLen(b []byte) int {
	if wordSize == 8 {
		return int(hostOrder.Uint64(b))
	}
	return int(hostOrder.Uint32(b))
}

// parseCmsg reads the header at off. The caller guarantees a full header
// fits at off.
func parseCmsg(buf []byte, off int) cmsgRef {
	return cmsgRef{
		off:    off,
		length: getCmsgLen(buf[off:]),
		level:  int32(hostOrder.Uint32(buf[off+wordSize:])),
		typ:    int32(hostOrder.Uint32(buf[off+wordSize+4:])),
	}
}

// firstCmsg returns the first control message in buf, or false if buf is
// too short to hold a header.
func firstCmsg(buf []byte) (cmsgRef, bool) {
	if len(buf) < cmsgHdrLen {
		return cmsgRef{}, false
	}
	return parseCmsg(buf, 0), true
}

// nextCmsg advances past cur to the following control message. It returns
// false when cur's declared length is smaller than a header (malformed) or
// when another full header does not fit inside buf. The bounds check is
// mandatory: a declared length pointing past the buffer must end the walk,
// not be followed.
func nextCmsg(buf []byte, cur cmsgRef) (cmsgRef, bool) {
	if cur.length < cmsgHdrLen {
		return cmsgRef{}, false
	}
	next := cur.off + cmsgAlign(cur.length)
	if next < cur.off || next+cmsgHdrLen > len(buf) {
		return cmsgRef{}, false
	}
	return parseCmsg(buf, next), true
}

// cmsgData returns the payload bytes of c, the region between the aligned
// header and the declared length. Fails when the declared length is
// undersized or runs past the buffer.
func cmsgData(buf []byte, c cmsgRef) ([]byte, error) {
	if c.length < cmsgHdrLen {
		return nil, errors.Wrapf(ErrProtocolViolation, "control message length %d shorter than header", c.length)
	}
	end := c.off + c.length
	if end > len(buf) {
		return nil, errors.Wrapf(ErrProtocolViolation, "control message length %d exceeds buffer", c.length)
	}
	return buf[c.off+cmsgHdrLen : end], nil
}

// encodeRights packs fds into a single SOL_SOCKET/SCM_RIGHTS control
// message. Returns nil for an empty list so callers can pass the result
// straight to sendmsg.
func encodeRights(fds []int) []byte {
	if len(fds) == 0 {
		return nil
	}

	payload := fdSize * len(fds)
	buf := make([]byte, cmsgSpace(payload))
	putCmsgLen(buf, cmsgLen(payload))
	hostOrder.PutUint32(buf[wordSize:], unix.SOL_SOCKET)
	hostOrder.PutUint32(buf[wordSize+4:], unix.SCM_RIGHTS)
	for i, fd := range fds {
		hostOrder.PutUint32(buf[cmsgHdrLen+fdSize*i:], uint32(fd))
	}
	return buf
}

// decodeRights walks the control messages in oob and appends every
// descriptor carried by SCM_RIGHTS messages to out, in encounter order.
// Messages of any other level or type are skipped. A message whose
// declared length is undersized or runs past the buffer fails the decode.
func decodeRights(oob []byte, out *FDBatch) error {
	for c, ok := firstCmsg(oob); ok; c, ok = nextCmsg(oob, c) {
		if c.level != unix.SOL_SOCKET || c.typ != unix.SCM_RIGHTS {
			continue
		}

		data, err := cmsgData(oob, c)
		if err != nil {
			return err
		}
		if len(data)%fdSize != 0 {
			return errors.Wrapf(ErrProtocolViolation, "SCM_RIGHTS payload of %d bytes is not a whole number of descriptors", len(data))
		}
		for i := 0; i < len(data); i += fdSize {
			fd := int(int32(hostOrder.Uint32(data[i:])))
			if err := out.Append(fd); err != nil {
				return err
			}
		}
	}
	return nil
}
