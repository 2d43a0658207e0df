package results

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// MySQLSink inserts every record into a MySQL table, creating the table
// if needed. Unparsed values are stored as NULL.
type MySQLSink struct {
	db     *sql.DB
	table  string
	insert string
}

func NewMySQLSink(ctx context.Context, dsn, table string) (*MySQLSink, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid mysql table name: %q", table)
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure mysql: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	s := &MySQLSink{db: db, table: table, insert: insertQuery(table)}
	if _, err := db.ExecContext(ctx, createQuery(table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return s, nil
}

// ParseDSN validates a DSN and forces time parsing on.
func ParseDSN(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg, nil
}

func createQuery(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	recorded_at DATETIME(6) NOT NULL,
	app VARCHAR(16) NOT NULL,
	cpu_ghz DOUBLE NOT NULL,
	gpu_mhz INT NOT NULL,
	gflops DOUBLE NULL,
	power_w DOUBLE NULL,
	gflops_per_w DOUBLE NOT NULL,
	exec_seconds DOUBLE NULL,
	n INT NOT NULL,
	nb INT NOT NULL
)`, table)
}

func insertQuery(table string) string {
	return fmt.Sprintf("INSERT INTO %s (recorded_at, app, cpu_ghz, gpu_mhz, gflops, power_w, gflops_per_w, exec_seconds, n, nb) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", table)
}

func (s *MySQLSink) Write(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, s.insert,
		r.Time, r.App, r.CPUGHz, r.GPUMHz,
		nullable(r.Gflops), nullable(r.PowerW), r.GflopsPerW, nullable(r.ExecSeconds),
		r.N, r.NB,
	)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", s.table, err)
	}
	return nil
}

func (s *MySQLSink) Close() error {
	return s.db.Close()
}

// nullable maps the unparsed sentinels to NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v == -1 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
