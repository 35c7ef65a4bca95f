package database

import (
	"errors"
	"io/fs"
	"os"
	"path"

	"github.com/trojan-ui/trojan-ui/config"
	"github.com/trojan-ui/trojan-ui/database/model"
	"github.com/trojan-ui/trojan-ui/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var db *gorm.DB

func initModels() error {
	models := []any{
		&model.User{},
		&model.Node{},
		&model.UserNode{},
		&model.Setting{},
	}
	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			logger.Errorf("Error auto migrating model: %v", err)
			return err
		}
	}
	return nil
}

// InitDB opens (creating if needed) the sqlite database at dbPath and
// migrates the schema. Unlike the first-admin seeding of other panels, no
// user is created here: the first registration bootstraps the super-admin.
func InitDB(dbPath string) error {
	dir := path.Dir(dbPath)
	err := os.MkdirAll(dir, fs.ModePerm)
	if err != nil {
		return err
	}

	var gormLogger gormlogger.Interface

	if config.IsDebug() {
		gormLogger = gormlogger.Default
	} else {
		gormLogger = gormlogger.Discard
	}

	c := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}

	dsn := dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
	db, err = gorm.Open(sqlite.Open(dsn), c)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	_, err = sqlDB.Exec("PRAGMA cache_size = -64000;")
	if err != nil {
		return err
	}
	_, err = sqlDB.Exec("PRAGMA temp_store = MEMORY;")
	if err != nil {
		return err
	}

	return initModels()
}

func CloseDB() error {
	if db != nil {
		if err := Checkpoint(); err != nil {
			logger.Warningf("error executing checkpoint: %v", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

func GetDB() *gorm.DB {
	return db
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func Checkpoint() error {
	return db.Exec("PRAGMA wal_checkpoint;").Error
}
