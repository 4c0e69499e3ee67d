package docstore

import (
	"fmt"

	"docbase/internal/domain"

	"github.com/go-sql-driver/mysql"
)

// buildMySQLDSN renders the DSN through the driver's own config type,
// which handles escaping and parameter formatting. parseTime is always
// on so DATETIME columns scan into time.Time.
func buildMySQLDSN(conn *domain.StoreConnection, password string) string {
	port := conn.Port
	if port == 0 {
		port = 3306
	}

	cfg := mysql.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", conn.Host, port)
	cfg.DBName = conn.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	if conn.SSLMode == "require" {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}
