package db

import (
	"strings"

	"github.com/lib/pq"
)

// Describe returns the non-secret connection settings of dsn as slog
// key/value pairs. Both URL and key=value DSNs are accepted.
func Describe(dsn string) []any {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		converted, err := pq.ParseURL(dsn)
		if err != nil {
			return []any{"dsn", "unparseable"}
		}
		dsn = converted
	}

	attrs := []any{}
	for _, field := range strings.Fields(dsn) {
		key, val, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "host", "port", "dbname", "user", "sslmode":
			attrs = append(attrs, key, strings.Trim(val, "'"))
		}
	}
	return attrs
}
