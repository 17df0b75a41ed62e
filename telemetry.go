package linefollow

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// TelemetrySender streams line tracking records to the chassis MCU, one
// short ASCII line per frame.
type TelemetrySender struct {
	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

// NewTelemetrySender wraps an already open stream.
func NewTelemetrySender(w io.WriteCloser) *TelemetrySender {
	return &TelemetrySender{w: w}
}

// DialTelemetry opens the serial device at the given baud rate, 8N1.
func DialTelemetry(device string, baud int) (*TelemetrySender, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	return NewTelemetrySender(port), nil
}

// SendLine writes one record of the form "L,<lk>,<valid>\n" with lk at
// three decimals and valid as 0 or 1.
func (t *TelemetrySender) SendLine(lk float64, valid bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("telemetry sender closed")
	}
	v := 0
	if valid {
		v = 1
	}
	_, err := fmt.Fprintf(t.w, "L,%.3f,%d\n", lk, v)
	return err
}

// Close is idempotent.
func (t *TelemetrySender) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.w.Close()
}
