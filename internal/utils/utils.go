package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9]+`)
	multiScore  = regexp.MustCompile(`_{2,}`)
)

// SanitizeFilename makes a string safe for use as a file name. Keeps
// alphanumerics, collapses everything else into single underscores and
// trims to maxlen. An empty result falls back to a timestamp.
func SanitizeFilename(name string, maxlen int) string {
	s := strings.TrimSpace(name)
	s = unsafeChars.ReplaceAllString(s, "_")
	s = multiScore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if maxlen > 0 && len(s) > maxlen {
		s = strings.TrimRight(s[:maxlen], "_")
	}
	if s == "" {
		return strconv.FormatInt(time.Now().Unix(), 10)
	}
	return s
}

// ParseIDList parses a comma-separated list of numeric IDs.
// Empty elements are skipped; a non-numeric element is an error.
func ParseIDList(csv string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
