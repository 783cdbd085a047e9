// Package logging configures the logrus logger shared by the daemon and
// the CLI.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arduino/go-paths-helper"
	"github.com/sirupsen/logrus"

	"github.com/qhal-nas/qhal/internal/config"
)

const timeLayout = "2006-01-02 15:04:05"

// numericLevels maps the LOG_LEVEL scale used by the shell tooling.
var numericLevels = map[int]logrus.Level{
	3: logrus.DebugLevel,
	4: logrus.InfoLevel,
	5: logrus.WarnLevel,
	6: logrus.ErrorLevel,
	7: logrus.FatalLevel,
}

// ParseLevel accepts either a logrus level name or a number from 3 (debug)
// to 7 (fatal).
func ParseLevel(s string) (logrus.Level, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if l, ok := numericLevels[n]; ok {
			return l, nil
		}
		return 0, fmt.Errorf("log level %d out of range 3-7", n)
	}
	return logrus.ParseLevel(s)
}

// Formatter writes "2006-01-02 15:04:05 [INFO   ] message key=value".
type Formatter struct{}

// Format implements logrus.Formatter.
func (Formatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s [%-7s] %s", e.Time.Format(timeLayout), strings.ToUpper(e.Level.String()), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := e.Data[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		s := fmt.Sprint(v)
		if strings.ContainsAny(s, " \t\"=") {
			s = strconv.Quote(s)
		}
		fmt.Fprintf(&b, " %s=%s", k, s)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// FileName returns the log file name for a program started at t.
func FileName(program string, t time.Time) string {
	return program + "_" + t.Format("2006-01-02_150405") + ".log"
}

// New creates a logger writing to a fresh file under cfg.Dir, and to stderr
// as well when cfg.Console is set. The returned closer closes the file.
func New(cfg config.Log, program string, now time.Time) (*logrus.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(Formatter{})

	dir := paths.New(cfg.Dir)
	if dir == nil {
		log.SetOutput(os.Stderr)
		return log, io.NopCloser(nil), nil
	}
	if err := dir.MkdirAll(); err != nil {
		return nil, nil, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := dir.Join(FileName(program, now)).Append()
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	var out io.Writer = f
	if cfg.Console {
		out = io.MultiWriter(f, os.Stderr)
	}
	log.SetOutput(out)
	return log, f, nil
}

// Discard returns a logger that drops everything. It is used when the log
// file cannot be opened and console output was not requested.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
