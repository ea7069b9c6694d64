// Package source implements the packet-source contract the clock inspector
// pipeline consumes: an opaque "read(buffer) -> bytes_read | would_block |
// eof | error" interface over either a plain file or a UDP/RTP endpoint,
// per §1's "out of scope (external collaborators)" framing — this is a
// minimal, spec-faithful implementation of that contract rather than a
// general-purpose transport library.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// Result classifies the outcome of a single Read call.
type Result int

const (
	ResultOK Result = iota
	ResultWouldBlock
	ResultEOF
	ResultError
)

// Source is the opaque byte-stream producer the ingest task polls.
type Source interface {
	// Read attempts to fill buf. On ResultOK, n is the number of bytes
	// read. On ResultWouldBlock, the caller should back off and retry. On
	// ResultEOF, the stream has ended cleanly. On ResultError, err
	// describes a non-recoverable failure.
	Read(buf []byte) (n int, result Result, err error)
	Close() error
}

// Open builds a Source from a CLI-style input spec: a plain file path, or a
// "udp://host:port" URL for a multicast UDP/RTP endpoint, mirroring the
// scheme switch in the teacher's cmd/astits-probe buildReader.
func Open(ctx context.Context, input string) (Source, error) {
	u, err := url.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("source: parsing input %q failed: %w", input, err)
	}

	switch u.Scheme {
	case "udp":
		return newUDPSource(ctx, u)
	default:
		return newFileSource(input)
	}
}

// fileSource adapts a plain file to the Source contract: reads never would-
// block, EOF is reported once the file is exhausted.
type fileSource struct {
	f *os.File
}

func newFileSource(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: opening %s failed: %w", path, err)
	}
	return &fileSource{f: f}, nil
}

func (s *fileSource) Read(buf []byte) (int, Result, error) {
	n, err := s.f.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, ResultEOF, nil
		}
		return n, ResultError, err
	}
	return n, ResultOK, nil
}

func (s *fileSource) Close() error { return s.f.Close() }

// udpWouldBlockTimeout bounds a single UDP read attempt; a timeout maps to
// ResultWouldBlock rather than ResultError, since the stream is simply idle.
const udpWouldBlockTimeout = 200 * time.Millisecond

// udpSource adapts a multicast UDP socket to the Source contract.
type udpSource struct {
	conn    *net.UDPConn
	ctx     context.Context
	limiter *rate.Limiter
}

func newUDPSource(ctx context.Context, u *url.URL) (*udpSource, error) {
	addr, err := net.ResolveUDPAddr("udp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("source: resolving udp addr %s failed: %w", u.Host, err)
	}

	conn, err := net.ListenMulticastUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("source: listening on multicast udp addr %s failed: %w", u.Host, err)
	}
	if err := conn.SetReadBuffer(4 << 20); err != nil {
		logger.Errorf("source: setting read buffer on %s failed: %v", u.Host, err)
	}

	return &udpSource{
		ctx:  ctx,
		conn: conn,
		// At most 5 retry attempts/second while the socket is idle: a
		// rate-gated back-off instead of an unconditional fixed sleep, so
		// bursts of would_block results can't spin the ingest loop.
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}, nil
}

func (s *udpSource) Read(buf []byte) (int, Result, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, ResultError, fmt.Errorf("source: context error: %w", err)
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(udpWouldBlockTimeout)); err != nil {
		return 0, ResultError, fmt.Errorf("source: setting read deadline failed: %w", err)
	}

	n, err := s.conn.Read(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			_ = s.limiter.Wait(s.ctx)
			return 0, ResultWouldBlock, nil
		}
		if errors.Is(err, net.ErrClosed) {
			return 0, ResultEOF, nil
		}
		return 0, ResultError, fmt.Errorf("source: reading from udp socket failed: %w", err)
	}
	return n, ResultOK, nil
}

func (s *udpSource) Close() error { return s.conn.Close() }
