package httpconfig

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Duration wraps time.Duration with YAML-friendly marshalling (a plain
// number is nanoseconds in YAML; this accepts Go duration strings like
// "30s" instead), generalizing the config.Duration pattern from the
// teacher's own config package.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// ByteSize parses sizes like "64MB" into a byte count, adapted from
// config/types.go's ByteSize.
type ByteSize int64

const (
	_              = iota
	KB    ByteSize = 1 << (10 * iota)
	MB
	GB
)

var (
	bytesPattern = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)([KMG]B?|B)?$`)
	errBadSize   = errors.New("httpconfig: size must look like \"64MB\", \"2GB\", or a plain byte count")
)

// UnmarshalYAML implements yaml.Unmarshaler.
func (bs *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parts := bytesPattern.FindStringSubmatch(strings.TrimSpace(s))
	if len(parts) < 2 {
		return errBadSize
	}
	value, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || value < 0 {
		return errBadSize
	}
	unit := strings.ToUpper(parts[2])
	switch {
	case strings.HasPrefix(unit, "G"):
		*bs = ByteSize(value * float64(GB))
	case strings.HasPrefix(unit, "M"):
		*bs = ByteSize(value * float64(MB))
	case strings.HasPrefix(unit, "K"):
		*bs = ByteSize(value * float64(KB))
	default:
		*bs = ByteSize(value)
	}
	return nil
}
