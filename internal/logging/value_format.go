package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const logTimestampLayout = "2006-01-02 15:04:05.000"

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(logTimestampLayout)
}

// formatValue renders an attribute for the console. Stage durations are
// rounded to milliseconds and scores to three significant digits. With quote
// set, text that would be ambiguous on a "key: value" line is quoted.
func formatValue(v slog.Value, quote bool) string {
	var s string
	switch v = v.Resolve(); v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'g', 3, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if quote && needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

// needsQuotes reports empty text, line breaks, and padding that a reader
// would otherwise miss. Inner spaces are fine; item paths often have them.
func needsQuotes(s string) bool {
	return s == "" || strings.ContainsAny(s, "\n\r\t\"") || strings.TrimSpace(s) != s
}

var levelLabels = map[slog.Level]string{
	slog.LevelDebug: "DEBUG",
	slog.LevelInfo:  "INFO",
	slog.LevelWarn:  "WARN",
	slog.LevelError: "ERROR",
}

func levelLabel(level slog.Level) string {
	for _, candidate := range []slog.Level{slog.LevelError, slog.LevelWarn, slog.LevelInfo} {
		if level >= candidate {
			return levelLabels[candidate]
		}
	}
	return levelLabels[slog.LevelDebug]
}
