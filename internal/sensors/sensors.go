// Package sensors reads temperatures and fan speeds through the lm-sensors
// command line tool.
package sensors

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/qhal-nas/qhal/internal/catalog"
	"github.com/qhal-nas/qhal/internal/proc"
)

// DefaultBinary is the lm-sensors executable.
const DefaultBinary = "sensors"

var (
	// ErrNoValue is returned when the chip output does not contain the key.
	ErrNoValue = errors.New("no such sensor value")
	// ErrToolFailed is returned when the sensors tool exits non-zero.
	ErrToolFailed = errors.New("sensors tool failed")
)

// Reader runs the sensors tool once per read.
type Reader struct {
	bin string
	log logrus.FieldLogger
	run func(ctx context.Context, argv ...string) (proc.Output, error)
}

// NewReader creates a Reader. An empty bin uses DefaultBinary from PATH.
func NewReader(bin string, log logrus.FieldLogger) *Reader {
	if bin == "" {
		bin = DefaultBinary
	}
	return &Reader{bin: bin, log: log, run: proc.Run}
}

// Read returns the raw value of s, e.g. "45.000".
func (r *Reader) Read(ctx context.Context, s catalog.Sensor) (string, error) {
	log := r.log.WithFields(logrus.Fields{"sensor": s.Name, "chip": s.Chip})

	out, err := r.run(ctx, r.bin, "-u", s.Chip)
	if err != nil {
		return "", fmt.Errorf("running %s: %w", r.bin, err)
	}
	if out.ExitCode != 0 {
		log.WithFields(logrus.Fields{
			"exit_code": out.ExitCode,
			"stderr":    strings.TrimSpace(string(out.Stderr)),
		}).Error("failed to read sensor")
		return "", fmt.Errorf("%w: exit code %d", ErrToolFailed, out.ExitCode)
	}
	log.Debugf("sensor output: %s", out.Stdout)

	v, ok := Parse(out.Stdout)[s.Key]
	if !ok {
		return "", fmt.Errorf("%w: %s %s", ErrNoValue, s.Chip, s.Key)
	}
	return v, nil
}

// Parse collects every "key: value" line of `sensors -u` output. Lines
// without exactly one colon are ignored.
func Parse(out []byte) map[string]string {
	values := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(sc.Text(), ":")
		if len(parts) != 2 {
			continue
		}
		values[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return values
}

// FormatTemp renders a raw temperature value as "+45.000°C".
func FormatTemp(v string) string {
	return "+" + v + "°C"
}

// FormatFan renders a raw fan value as "1234 RPM", dropping the fraction.
func FormatFan(v string) string {
	whole, _, _ := strings.Cut(v, ".")
	return whole + " RPM"
}
