package unixtransport

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

func TestBuildPathAddress(t *testing.T) {
	path := "/run/bus/system_bus_socket"

	sa, err := buildPathAddress(path)
	if err != nil {
		t.Fatalf("buildPathAddress failed: %v", err)
	}

	if len(sa) != 2+len(path)+1 {
		t.Errorf("len = %d, want %d", len(sa), 2+len(path)+1)
	}
	if sa[len(sa)-1] != 0 {
		t.Error("last byte is not the NUL terminator")
	}
	if hostOrder.Uint16(sa) != unix.AF_UNIX {
		t.Errorf("family = %d, want %d", hostOrder.Uint16(sa), unix.AF_UNIX)
	}
	if !bytes.Equal(sa[2:len(sa)-1], []byte(path)) {
		t.Error("path bytes do not match")
	}
}

func TestBuildPathAddress_Empty(t *testing.T) {
	_, err := buildPathAddress("")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestBuildPathAddress_TooLong(t *testing.T) {
	_, err := buildPathAddress("/" + strings.Repeat("x", maxSunPath))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestBuildAbstractAddress(t *testing.T) {
	path := "/tmp/dbus-EiSfw0a"

	sa, err := buildAbstractAddress(path)
	if err != nil {
		t.Fatalf("buildAbstractAddress failed: %v", err)
	}

	if len(sa) != 2+1+len(path) {
		t.Errorf("len = %d, want %d", len(sa), 2+1+len(path))
	}
	if sa[2] != 0 {
		t.Error("byte at index 2 is not zero")
	}
	if hostOrder.Uint16(sa) != unix.AF_UNIX {
		t.Errorf("family = %d, want %d", hostOrder.Uint16(sa), unix.AF_UNIX)
	}
	// Abstract names carry no terminator: the last byte is the last
	// byte of the name itself.
	if !bytes.Equal(sa[3:], []byte(path)) {
		t.Error("name bytes do not match")
	}
}

func TestBuildAbstractAddress_Empty(t *testing.T) {
	_, err := buildAbstractAddress("")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
