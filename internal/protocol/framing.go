// Package protocol implements the chat wire format: UTF-8 payloads
// terminated by "\r\n\r\n" over a raw byte stream.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

// Terminator ends every framed message on the wire
const Terminator = "\r\n\r\n"

// DefaultPollInterval is how long a non-blocking read waits before retrying
const DefaultPollInterval = 100 * time.Millisecond

// nonBlockingWindow is the read deadline armed by NonBlocking before each read
const nonBlockingWindow = time.Millisecond

var (
	// ErrNoData signals that a non-blocking source has nothing to read yet
	ErrNoData = errors.New("no data available")

	// ErrConnectionReset signals that the peer reset the connection
	ErrConnectionReset = errors.New("connection reset by peer")
)

// Reader reassembles framed messages from a byte stream.
// It keeps no frame state between calls.
type Reader struct {
	src          io.Reader
	pollInterval time.Duration
	one          [1]byte
}

// ReaderOption configures a Reader
type ReaderOption func(*Reader)

// WithPollInterval sets the wait between retries when the source has no data
func WithPollInterval(d time.Duration) ReaderOption {
	return func(r *Reader) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// NewReader creates a Reader over src
func NewReader(src io.Reader, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:          src,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PollInterval returns the configured retry wait
func (r *Reader) PollInterval() time.Duration {
	return r.pollInterval
}

// ReadFrame reads until the terminator and appends the payload, without the
// terminator, to dst[:0]. Any returned error is terminal for the stream.
func (r *Reader) ReadFrame(ctx context.Context, dst []byte) ([]byte, error) {
	buf := dst[:0]
	// matched counts how many terminator bytes are tentatively held
	matched := 0
	read := 0

	for {
		b, err := r.readByte(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) && read > 0 {
				return buf, io.ErrUnexpectedEOF
			}
			return buf, err
		}
		read++

		if b == Terminator[matched] {
			matched++
			if matched == len(Terminator) {
				return buf, nil
			}
			continue
		}

		// Mismatch: release held bytes. The only self-overlap of the
		// terminator is a lone '\r', so b restarts a match or is payload.
		buf = append(buf, Terminator[:matched]...)
		if b == '\r' {
			matched = 1
		} else {
			buf = append(buf, b)
			matched = 0
		}
	}
}

// ReadMessage reads one frame and decodes it as UTF-8, replacing invalid
// sequences with U+FFFD
func (r *Reader) ReadMessage(ctx context.Context) (string, error) {
	buf, err := r.ReadFrame(ctx, nil)
	if err != nil {
		return "", err
	}
	return Decode(buf), nil
}

// readByte reads exactly one byte, polling while the source has no data
func (r *Reader) readByte(ctx context.Context) (byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		n, err := r.src.Read(r.one[:])
		if n == 1 {
			return r.one[0], nil
		}

		switch {
		case err == nil:
			// Zero-byte read without error; treat like no data
		case isNoData(err):
		case errors.Is(err, io.EOF):
			return 0, io.EOF
		case errors.Is(err, syscall.ECONNRESET):
			return 0, fmt.Errorf("%w: %w", ErrConnectionReset, err)
		default:
			return 0, fmt.Errorf("read frame: %w", err)
		}

		timer := time.NewTimer(r.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}
}

// isNoData reports whether err is a transient "nothing to read yet" condition
func isNoData(err error) bool {
	if errors.Is(err, ErrNoData) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsConnectionReset reports whether err means the peer reset the connection
func IsConnectionReset(err error) bool {
	return errors.Is(err, ErrConnectionReset) || errors.Is(err, syscall.ECONNRESET)
}

// Decode converts a payload to a string, replacing invalid UTF-8
func Decode(payload []byte) string {
	return strings.ToValidUTF8(string(payload), "\uFFFD")
}

// WriteFrame writes payload followed by the terminator in a single Write
func WriteFrame(w io.Writer, payload []byte) error {
	frame := make([]byte, 0, len(payload)+len(Terminator))
	frame = append(frame, payload...)
	frame = append(frame, Terminator...)
	if _, err := w.Write(frame); err != nil {
		if errors.Is(err, syscall.ECONNRESET) {
			return fmt.Errorf("%w: %w", ErrConnectionReset, err)
		}
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// WriteMessage writes a string payload as one frame
func WriteMessage(w io.Writer, msg string) error {
	return WriteFrame(w, []byte(msg))
}

// deadlineReader is the subset of net.Conn needed for non-blocking reads
type deadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

type nonBlockingReader struct {
	conn deadlineReader
}

// NonBlocking adapts a connection so a Read with nothing pending fails
// quickly with a timeout, which Reader treats as "no data yet"
func NonBlocking(conn deadlineReader) io.Reader {
	return &nonBlockingReader{conn: conn}
}

// Read still reads when the deadline can't be armed: a conn whose peer
// already closed rejects deadlines, and its Read reports the real EOF.
func (r *nonBlockingReader) Read(p []byte) (int, error) {
	_ = r.conn.SetReadDeadline(time.Now().Add(nonBlockingWindow))
	return r.conn.Read(p)
}
