package gps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"

	"platecam/internal/logger"
	"platecam/internal/model"
)

// Reader keeps the latest valid fix decoded from an NMEA stream.
type Reader struct {
	port   io.ReadCloser
	logger *logger.Logger

	mu  sync.RWMutex
	fix *model.Geo
}

// Open opens the serial port of a GPS receiver.
func Open(portName string, baud int, logger *logger.Logger) (*Reader, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPS port %s: %w", portName, err)
	}
	return NewReader(port, logger), nil
}

// NewReader reads NMEA sentences from r.
func NewReader(r io.ReadCloser, logger *logger.Logger) *Reader {
	return &Reader{port: r, logger: logger}
}

// Position returns the latest fix, nil until one has been received.
func (r *Reader) Position() *model.Geo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fix
}

// Close releases the port of a reader that is not running.
func (r *Reader) Close() error {
	return r.port.Close()
}

// Run reads sentences until ctx is cancelled or the port fails.
func (r *Reader) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.port.Close()
		case <-done:
		}
	}()

	scan := bufio.NewScanner(r.port)
	for scan.Scan() {
		geo, ok := ParseRMC(scan.Text())
		if !ok {
			continue
		}
		r.mu.Lock()
		r.fix = geo
		r.mu.Unlock()
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scan.Err(); err != nil {
		return fmt.Errorf("failed to read GPS port: %w", err)
	}
	return io.EOF
}

// ParseRMC decodes a $GPRMC or $GNRMC sentence carrying an active fix.
func ParseRMC(line string) (*model.Geo, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$GPRMC,") && !strings.HasPrefix(line, "$GNRMC,") {
		return nil, false
	}
	if i := strings.IndexByte(line, '*'); i >= 0 {
		if !validChecksum(line[1:i], line[i+1:]) {
			return nil, false
		}
		line = line[:i]
	}

	fields := strings.Split(line, ",")
	if len(fields) < 7 || fields[2] != "A" {
		return nil, false
	}
	lat, ok := degrees(fields[3], fields[4], "S", 2)
	if !ok {
		return nil, false
	}
	lon, ok := degrees(fields[5], fields[6], "W", 3)
	if !ok {
		return nil, false
	}
	return &model.Geo{Latitude: lat, Longitude: lon}, true
}

// degrees converts (d)ddmm.mmmm plus hemisphere into signed decimal degrees.
func degrees(value, hemisphere, negative string, degreeDigits int) (float64, bool) {
	if len(value) < degreeDigits+2 {
		return 0, false
	}
	deg, err := strconv.ParseFloat(value[:degreeDigits], 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(value[degreeDigits:], 64)
	if err != nil || minutes >= 60 {
		return 0, false
	}
	out := deg + minutes/60
	if hemisphere == negative {
		out = -out
	}
	return out, true
}

func validChecksum(body, sum string) bool {
	want, err := strconv.ParseUint(strings.TrimSpace(sum), 16, 8)
	if err != nil {
		return false
	}
	var got byte
	for i := 0; i < len(body); i++ {
		got ^= body[i]
	}
	return byte(want) == got
}
