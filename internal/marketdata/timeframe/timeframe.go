// Package timeframe maps tick timestamps onto candle buckets.
//
// A bucket is the half-open interval [BucketStart, BucketStart+Duration).
// Sub-hour frames split each hour into 60/frame slots; multi-hour frames
// split each day into 24/frame slots. Buckets never straddle an hour
// (or a day) boundary.
package timeframe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Timeframe is a candle width in minutes.
type Timeframe int

const (
	M1  Timeframe = 1
	M5  Timeframe = 5
	M15 Timeframe = 15
	M30 Timeframe = 30
	H1  Timeframe = 60
	H2  Timeframe = 120
)

// ErrUnsupported is returned by Parse for any label outside M1..H2.
var ErrUnsupported = errors.New("timeframe: unsupported timeframe")

// All lists the supported timeframes, narrowest first.
var All = []Timeframe{M1, M5, M15, M30, H1, H2}

// Parse converts a label such as "M15" or "H1" into a Timeframe.
func Parse(s string) (Timeframe, error) {
	label := strings.ToUpper(strings.TrimSpace(s))
	for _, tf := range All {
		if tf.String() == label {
			return tf, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupported, s)
}

func (tf Timeframe) String() string {
	switch tf {
	case M1, M5, M15, M30:
		return fmt.Sprintf("M%d", int(tf))
	case H1, H2:
		return fmt.Sprintf("H%d", int(tf)/60)
	}
	return fmt.Sprintf("Timeframe(%d)", int(tf))
}

// Valid reports whether tf is one of the supported widths.
func (tf Timeframe) Valid() bool {
	switch tf {
	case M1, M5, M15, M30, H1, H2:
		return true
	}
	return false
}

// Duration returns the bucket width.
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf) * time.Minute
}

// BucketStart returns the start of the bucket containing ts, in ts's location.
// tf must be valid; Parse is the only way configuration produces one.
func (tf Timeframe) BucketStart(ts time.Time) time.Time {
	y, mo, d := ts.Date()
	h, m := ts.Hour(), ts.Minute()
	if tf < H1 {
		width := int(tf)
		return time.Date(y, mo, d, h, m-m%width, 0, 0, ts.Location())
	}
	width := int(tf) / 60
	return time.Date(y, mo, d, h-h%width, 0, 0, 0, ts.Location())
}
