package gps

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platecam/internal/logger"
)

// withChecksum appends the NMEA checksum to a sentence body.
func withChecksum(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, sum)
}

func TestParseRMC(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		ok       bool
		lat, lon float64
	}{
		{
			name: "north east",
			line: withChecksum("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"),
			ok:   true, lat: 48.1173, lon: 11.516666666,
		},
		{
			name: "south west, GNSS talker",
			line: withChecksum("GNRMC,081836,A,3751.65,S,14507.36,W,000.0,360.0,130998,011.3,E"),
			ok:   true, lat: -37.860833333, lon: -145.122666666,
		},
		{
			name: "no checksum",
			line: "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W",
			ok:   true, lat: 48.1173, lon: 11.516666666,
		},
		{name: "void fix", line: withChecksum("GPRMC,123519,V,4807.038,N,01131.000,E,,,230394,,")},
		{name: "bad checksum", line: "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*00"},
		{name: "other sentence", line: withChecksum("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")},
		{name: "empty coordinates", line: withChecksum("GPRMC,123519,A,,N,,E,,,230394,,")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geo, ok := ParseRMC(tt.line)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.InDelta(t, tt.lat, geo.Latitude, 1e-6)
			assert.InDelta(t, tt.lon, geo.Longitude, 1e-6)
		})
	}
}

func TestReader_KeepsLatestFix(t *testing.T) {
	stream := strings.Join([]string{
		withChecksum("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"),
		"garbage",
		withChecksum("GPRMC,123520,V,,,,,,,230394,,"),
		withChecksum("GPRMC,123521,A,4807.000,N,01131.000,E,022.4,084.4,230394,003.1,W"),
	}, "\r\n")

	r := NewReader(io.NopCloser(strings.NewReader(stream)), logger.NewWriter(io.Discard))
	assert.Nil(t, r.Position())

	err := r.Run(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	require.NotNil(t, r.Position())
	assert.InDelta(t, 48.116666666, r.Position().Latitude, 1e-6)
}
