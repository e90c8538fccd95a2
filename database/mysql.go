package database

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLConfig holds MySQL connection configuration
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	TLSEnabled    bool
	TLSSkipVerify bool
	TLSCACert     string // Path to CA certificate file

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultMySQLConfig returns a MySQLConfig with sensible defaults
func DefaultMySQLConfig() MySQLConfig {
	return MySQLConfig{
		Host:            "localhost",
		Port:            3306,
		Database:        "meetup_client",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

const tlsConfigName = "meetup"

var registerTLS sync.Once

// driverConfig builds the go-sql-driver config; dbName may be empty to
// connect to the server without selecting a schema.
func driverConfig(cfg MySQLConfig, dbName string) (*mysql.Config, error) {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	c.DBName = dbName
	c.ParseTime = true
	c.Loc = time.UTC
	// golang-migrate runs each migration file as one Exec
	c.MultiStatements = true

	if cfg.TLSEnabled {
		var regErr error
		registerTLS.Do(func() {
			tlsConfig, err := buildTLSConfig(cfg)
			if err != nil {
				regErr = fmt.Errorf("failed to configure TLS: %w", err)
				return
			}
			regErr = mysql.RegisterTLSConfig(tlsConfigName, tlsConfig)
		})
		if regErr != nil {
			return nil, regErr
		}
		c.TLSConfig = tlsConfigName
	}
	return c, nil
}

// initMySQL initializes a MySQL database connection
func initMySQL(cfg MySQLConfig) error {
	if cfg.Database == "" {
		return fmt.Errorf("MySQL database name is required")
	}
	if err := ensureMySQLDatabaseExists(cfg); err != nil {
		return fmt.Errorf("failed to ensure database exists: %w", err)
	}

	mysqlCfg, err := driverConfig(cfg, cfg.Database)
	if err != nil {
		return err
	}

	db, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to open MySQL database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	DB = db
	dbType = DBTypeMySQL

	// Log connection info (without password)
	logInit("MySQL database initialized: %s@%s:%d/%s (TLS: %v)",
		cfg.User, cfg.Host, cfg.Port, cfg.Database, cfg.TLSEnabled)
	return nil
}

// ensureMySQLDatabaseExists connects without a database and creates it if necessary
func ensureMySQLDatabaseExists(cfg MySQLConfig) error {
	mysqlCfg, err := driverConfig(cfg, "")
	if err != nil {
		return err
	}

	db, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping MySQL server: %w", err)
	}

	createDBSQL := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", cfg.Database)
	if _, err := db.Exec(createDBSQL); err != nil {
		return fmt.Errorf("failed to create database '%s': %w", cfg.Database, err)
	}

	logInit("Ensured MySQL database '%s' exists", cfg.Database)
	return nil
}

// buildTLSConfig creates a TLS configuration for MySQL
func buildTLSConfig(cfg MySQLConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.TLSSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.TLSCACert != "" {
		caCert, err := os.ReadFile(cfg.TLSCACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}
