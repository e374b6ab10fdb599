package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ServiceTime is a wall-clock time expressed in seconds after the start of
// the service day. Values past 24:00:00 denote post-midnight service.
type ServiceTime int

var errTimeFormat = errors.New("expected HH:MM or HH:MM:SS")

// ParseServiceTime parses GTFS style times such as "08:05", "8:05:30" or
// "25:10:00".
func ParseServiceTime(s string) (ServiceTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%q: %w", s, errTimeFormat)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%q: %w", s, errTimeFormat)
		}
		if i > 0 && n > 59 {
			return 0, fmt.Errorf("%q: minutes and seconds must be below 60", s)
		}
		vals[i] = n
	}
	return ServiceTime(vals[0]*3600 + vals[1]*60 + vals[2]), nil
}

// MustServiceTime is ParseServiceTime for literals known to be valid.
func MustServiceTime(s string) ServiceTime {
	t, err := ParseServiceTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String formats the time as HH:MM:SS, hours may exceed 23.
func (t ServiceTime) String() string {
	sign := ""
	v := int(t)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, v/3600, (v/60)%60, v%60)
}

// MarshalText implements encoding.TextMarshaler.
func (t ServiceTime) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ServiceTime) UnmarshalText(b []byte) error {
	v, err := ParseServiceTime(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Minutes converts a minute count to whole seconds.
func Minutes(m float64) int { return int(m * 60) }
