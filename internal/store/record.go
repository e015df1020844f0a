package store

import (
	"sort"
	"strings"

	"github.com/drover-dev/drover/internal/session"
)

// Record is the flat persisted form of one session: string fields keyed by
// name. Values may contain '='; keys may not.
type Record = map[string]string

// Marshal renders a record in the on-disk format: one key=value per line,
// well-known fields first in a stable order, anything else after, sorted.
// Empty-valued fields are omitted.
func Marshal(rec Record) []byte {
	var b strings.Builder

	written := make(map[string]bool, len(rec))
	for _, key := range session.FieldOrder {
		if v, ok := rec[key]; ok && v != "" {
			b.WriteString(key)
			b.WriteByte('=')
			b.WriteString(v)
			b.WriteByte('\n')
			written[key] = true
		}
	}

	var rest []string
	for key, v := range rec {
		if !written[key] && v != "" {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(rec[key])
		b.WriteByte('\n')
	}

	return []byte(b.String())
}

// Unmarshal parses the on-disk format. Lines starting with '#' are comments;
// only the first '=' on a line delimits key from value; blank or unparseable
// lines are skipped.
func Unmarshal(data []byte) Record {
	rec := make(Record)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			continue
		}
		rec[key] = value
	}
	return rec
}
