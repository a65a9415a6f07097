package datastore

import (
	"net"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"

	"github.com/tphakala/go-porcupine/internal/conf"
)

const mysqlMaxOpenConns = 10

// OpenMySQL connects to a MySQL server and migrates the schema.
func OpenMySQL(settings *conf.MySQLSettings, opts ...StoreOption) (*Store, error) {
	name := net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port)) + "/" + settings.Database
	return open(mysql.Open(mysqlDSN(settings)), name, mysqlMaxOpenConns, opts...)
}

// mysqlDSN builds a driver DSN; FormatDSN escapes credentials.
func mysqlDSN(settings *conf.MySQLSettings) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = settings.Username
	cfg.Passwd = settings.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port))
	cfg.DBName = settings.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Timeout = 10 * time.Second
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}
