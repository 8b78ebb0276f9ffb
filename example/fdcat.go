package main

import (
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	unixtransport "github.com/ipcbus/unixtransport"
)

// This example wires both ends of the transport over a socketpair: one
// side sends a frame carrying an open file descriptor, the other receives
// the frame and reads the file through the descriptor it was handed.
func main() {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		slog.Error("socketpair failed", "error", err)
		return
	}

	client, err := unixtransport.FromFD(fds[0], unixtransport.UnixFDOption(true))
	if err != nil {
		slog.Error("client transport failed", "error", err)
		return
	}
	defer client.Close()

	daemon, err := unixtransport.FromFD(fds[1], unixtransport.UnixFDOption(true))
	if err != nil {
		slog.Error("daemon transport failed", "error", err)
		return
	}
	defer daemon.Close()

	var group errgroup.Group

	group.Go(func() error {
		file, err := os.CreateTemp("", "fdcat-*")
		if err != nil {
			return err
		}
		defer os.Remove(file.Name())
		defer file.Close()

		if _, err := file.WriteString("hello through SCM_RIGHTS\n"); err != nil {
			return err
		}

		batch, err := unixtransport.NewFDBatch(int(file.Fd()))
		if err != nil {
			return err
		}
		// WriteFrame sends duplicates; closing file via the deferred
		// Close above is safe as soon as this returns.
		_, err = client.WriteFrame(unixtransport.Frame{
			Header: []byte("fdcat"),
			FDs:    batch,
		})
		return err
	})

	group.Go(func() error {
		var fds unixtransport.FDBatch
		buf := make([]byte, 64)

		n, err := daemon.ReadWithFDs(buf, &fds)
		if err != nil {
			return err
		}
		defer fds.Close()

		slog.Info("received frame", "header", string(buf[:n]), "fds", fds.Len())

		for _, fd := range fds.FDs() {
			if _, err := unix.Seek(fd, 0, 0); err != nil {
				return err
			}
			content := make([]byte, 128)
			m, err := unix.Read(fd, content)
			if err != nil {
				return err
			}
			slog.Info("file content", "data", string(content[:m]))
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		slog.Error("example failed", "error", err)
	}
}
