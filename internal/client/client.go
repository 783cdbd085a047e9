// Package client sends one request to the daemon socket and returns the
// response.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/qhal-nas/qhal/internal/daemon"
)

// ErrNoDaemon is returned when nothing is listening on the socket.
var ErrNoDaemon = errors.New("no response from daemon")

const timeout = 5 * time.Second

// Send writes request to the daemon at socket and reads the response until
// the daemon closes the connection.
func Send(ctx context.Context, socket, request string) (string, error) {
	if len(request) > daemon.MaxRequest {
		return "", fmt.Errorf("request longer than %d bytes", daemon.MaxRequest)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", socket)
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w (%w)", ErrNoDaemon, err)
	}
	if err != nil {
		return "", err
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write([]byte(request)); err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	resp, err := io.ReadAll(io.LimitReader(conn, daemon.MaxRequest))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(resp), nil
}
