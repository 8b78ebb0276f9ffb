// Command fdpass passes an open file across a Unix domain socket.
//
// "fdpass recv" listens on a socket and writes the content of every file
// descriptor it receives to stdout; "fdpass send" connects, sends the
// named file's descriptor in a single frame, and exits. The two halves
// demonstrate the transport end to end, ancillary data included.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	unixtransport "github.com/ipcbus/unixtransport"
)

var (
	socketPath string
	abstract   bool

	rootCmd = &cobra.Command{
		Use:   "fdpass",
		Short: "pass open file descriptors across a Unix domain socket",
	}

	sendCmd = &cobra.Command{
		Use:   "send FILE",
		Short: "connect to the socket and send FILE's descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(args[0])
		},
	}

	recvCmd = &cobra.Command{
		Use:   "recv",
		Short: "listen on the socket and print received files to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecv()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/tmp/fdpass.sock", "socket path or abstract name")
	rootCmd.PersistentFlags().BoolVar(&abstract, "abstract", false, "use the Linux abstract socket namespace")
	rootCmd.AddCommand(sendCmd, recvCmd)
}

func transportOptions() []unixtransport.Option {
	opts := []unixtransport.Option{unixtransport.UnixFDOption(true)}
	if abstract {
		opts = append(opts, unixtransport.AbstractOption())
	}
	return opts
}

func runSend(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	tr, err := unixtransport.Open(socketPath, transportOptions()...)
	if err != nil {
		return err
	}
	defer tr.Close()

	batch, err := unixtransport.NewFDBatch(int(file.Fd()))
	if err != nil {
		return err
	}

	if _, err := tr.WriteFrame(unixtransport.Frame{
		Header: []byte(file.Name()),
		FDs:    batch,
	}); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "sent %s as uid %s\n", file.Name(), tr.AuthString())
	return nil
}

func runRecv() error {
	name := socketPath
	if abstract {
		name = "@" + socketPath
	} else {
		// A stale socket file from an earlier run blocks bind.
		_ = os.Remove(socketPath)
	}

	lfd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(lfd)

	if err := unix.Bind(lfd, &unix.SockaddrUnix{Name: name}); err != nil {
		return err
	}
	if err := unix.Listen(lfd, 1); err != nil {
		return err
	}

	conn, _, err := unix.Accept(lfd)
	if err != nil {
		return err
	}

	tr, err := unixtransport.FromFD(conn, transportOptions()...)
	if err != nil {
		_ = unix.Close(conn)
		return err
	}
	defer tr.Close()

	var fds unixtransport.FDBatch
	header := make([]byte, 256)
	n, err := tr.ReadWithFDs(header, &fds)
	if err != nil {
		return err
	}
	defer fds.Close()

	fmt.Fprintf(os.Stderr, "received %q with %d descriptor(s)\n", header[:n], fds.Len())

	for _, fd := range fds.FDs() {
		if _, err := unix.Seek(fd, 0, 0); err != nil {
			return err
		}
		// Duplicate before handing the descriptor to os.File so the
		// batch keeps sole ownership of the original.
		dup, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
		if err != nil {
			return err
		}
		file := os.NewFile(uintptr(dup), "received")
		if _, err := io.Copy(os.Stdout, file); err != nil {
			file.Close()
			return err
		}
		file.Close()
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
