package apps

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML either as a bare
// number of seconds or as a duration string. On top of time.ParseDuration
// syntax it accepts a "d" suffix for days, since token lifetimes are usually
// expressed that way ("7d", "30d").
type Duration time.Duration

// Std converts back to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return errors.Wrap(err, "invalid duration")
	}
	parsed, err := ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDuration parses a duration string, accepting a trailing "d" day
// suffix that time.ParseDuration does not know about.
func ParseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err == nil {
			return Duration(time.Duration(n * 24 * float64(time.Hour))), nil
		}
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration %q", raw)
	}
	return Duration(parsed), nil
}
