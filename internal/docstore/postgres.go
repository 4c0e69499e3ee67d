package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"docbase/internal/domain"

	_ "github.com/lib/pq"
)

// buildPostgresDSN renders the keyword/value connection string lib/pq
// expects. Values are quoted so passwords with spaces or quotes
// survive, and ExtraJSON entries become additional parameters.
func buildPostgresDSN(conn *domain.StoreConnection, password string) string {
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	pairs := []string{
		"host=" + pqValue(conn.Host),
		fmt.Sprintf("port=%d", port),
		"user=" + pqValue(conn.Username),
		"password=" + pqValue(password),
		"dbname=" + pqValue(conn.Database),
		"sslmode=" + sslMode,
	}

	var extra map[string]string
	if conn.ExtraJSON != "" && json.Unmarshal([]byte(conn.ExtraJSON), &extra) == nil {
		keys := make([]string, 0, len(extra))
		for k := range extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			pairs = append(pairs, k+"="+pqValue(extra[k]))
		}
	}
	return strings.Join(pairs, " ")
}

// pqValue quotes a connection-string value when it contains characters
// the keyword/value format cannot carry bare.
func pqValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
