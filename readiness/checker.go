package readiness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// A Checker performs one health check attempt against addr.
type Checker interface {
	Check(ctx context.Context, addr string) error
}

// The CheckFunc type is an adapter to allow the use of ordinary functions as
// Checkers.
type CheckFunc func(ctx context.Context, addr string) error

func (f CheckFunc) Check(ctx context.Context, addr string) error {
	return f(ctx, addr)
}

const maxResponseBytes = 100

/*
WordChecker speaks a plaintext command/response protocol over a fresh TCP
connection per attempt, such as ZooKeeper's four letter words.  The check
passes when the response starts with Expect.
*/
type WordChecker struct {
	Command string
	Expect  string
}

// ZooKeeper's "are you ok" check.
var RUOK = WordChecker{Command: "ruok\n", Expect: "imok"}

func (c WordChecker) Check(ctx context.Context, addr string) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := io.WriteString(conn, c.Command); err != nil {
		return fmt.Errorf("sending %q: %w", c.Command, err)
	}

	limit := max(maxResponseBytes, len(c.Expect))
	response := make([]byte, 0, limit)
	buf := make([]byte, limit)
	for len(response) < len(c.Expect) {
		n, err := conn.Read(buf[:limit-len(response)])
		response = append(response, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("reading response: %w", err)
		}
	}

	if !bytes.HasPrefix(response, []byte(c.Expect)) {
		return fmt.Errorf("unexpected response %q, wanted %q", response, c.Expect)
	}
	return nil
}

/*
GRPCHealthChecker asks a grpc.health.v1 server whether Service is serving.
An empty Service checks the server as a whole.
*/
type GRPCHealthChecker struct {
	Service string
}

func (c GRPCHealthChecker) Check(ctx context.Context, addr string) error {
	conn, err := grpc.DialContext(ctx, addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: c.Service})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("health status is %s", resp.GetStatus())
	}
	return nil
}

// DialChecker passes as soon as a TCP connection can be established.
type DialChecker struct{}

func (DialChecker) Check(ctx context.Context, addr string) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

const minAttemptTimeout = 50 * time.Millisecond

func attemptContext(ctx context.Context, remaining, limit time.Duration) (context.Context, context.CancelFunc) {
	if remaining < minAttemptTimeout {
		remaining = minAttemptTimeout
	}
	if remaining < limit {
		limit = remaining
	}
	return context.WithTimeout(ctx, limit)
}
