// Package logging configures the process logger: human readable lines on
// stdout and, optionally, the same lines appended to a log file.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// TimeFormat renders timestamps like "2006-01-02 15:04:05,000".
const TimeFormat = "2006-01-02 15:04:05,000"

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// New returns a debug level logger writing to out and, when file is not
// empty, appending to file. The returned closer closes the log file.
func New(out io.Writer, file string) (zerolog.Logger, io.Closer, error) {
	writers := []io.Writer{consoleWriter(out)}
	var closer io.Closer = nopCloser{}
	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, errors.Wrapf(err, "opening log file %s", file)
		}
		writers = append(writers, Writer(f, false))
		closer = f
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()
	return logger, closer, nil
}

func consoleWriter(out io.Writer) io.Writer {
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return Writer(colorable.NewColorable(f), true)
	}
	return Writer(out, false)
}

// Writer formats events as "<timestamp>: <LEVEL>: <message> <fields>" with the
// level right-aligned to seven characters.
func Writer(out io.Writer, color bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    !color,
		TimeFormat: TimeFormat,
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			zerolog.MessageFieldName,
		},
		FormatTimestamp: func(i interface{}) string {
			return formatTimestamp(i) + ":"
		},
		FormatLevel: func(i interface{}) string {
			return fmt.Sprintf("%7s:", levelName(i))
		},
	}
}

func formatTimestamp(i interface{}) string {
	var t time.Time
	switch v := i.(type) {
	case json.Number:
		ms, err := v.Int64()
		if err != nil {
			return v.String()
		}
		t = time.UnixMilli(ms)
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return v
		}
		t = parsed
	default:
		return fmt.Sprint(i)
	}
	return t.Local().Format(TimeFormat)
}

func levelName(i interface{}) string {
	s, _ := i.(string)
	switch s {
	case zerolog.LevelWarnValue:
		return "WARNING"
	case zerolog.LevelFatalValue:
		return "CRITICAL"
	case "":
		return "???"
	}
	return strings.ToUpper(s)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Sink hands engine log messages to a zerolog logger.
type Sink struct {
	log zerolog.Logger
}

func NewSink(log zerolog.Logger) *Sink {
	return &Sink{log: log}
}

func (s *Sink) Warning(msg string) { s.log.Warn().Msg(msg) }
func (s *Sink) Info(msg string)    { s.log.Info().Msg(msg) }
func (s *Sink) Debug(msg string)   { s.log.Debug().Msg(msg) }
