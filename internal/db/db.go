package db

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/educlass/portal/internal/models"
)

// Open connects with the configured driver and migrates the tables the
// portal owns.
func Open(driver, dsn string, log logrus.FieldLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if driver == "" || driver == "sqlite" {
		// SQLite works best with a single writer; cap the pool accordingly.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}

	if err := Migrate(conn); err != nil {
		return nil, err
	}

	log.WithField("driver", driverName(driver)).Info("database ready")
	return conn, nil
}

func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&models.Account{},
		&models.IdentitySession{},
		&models.KVEntry{},
	); err != nil {
		return errors.Wrap(err, "auto-migrate")
	}
	return nil
}

func driverName(d string) string {
	if d == "" {
		return "sqlite"
	}
	return d
}
