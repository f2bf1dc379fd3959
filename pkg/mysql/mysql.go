package mysql

import (
	"errors"
	"fmt"
	"log"
	"os"

	"ChatRelay/config"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

var global *gorm.DB

// DB 返回全局 gorm 实例（未初始化时为 nil）。
func DB() *gorm.DB { return global }

// ReplaceGlobal 设置全局 gorm 实例。
func ReplaceGlobal(db *gorm.DB) { global = db }

// Build 根据配置创建 gorm 连接。
// - mysql：主库写、Replicas 只读，经 dbresolver 自动分流；
// - sqlite：本地调试与单元测试。
func Build(cfg config.MySQLConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver: %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("db dsn is empty")
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(log.New(os.Stdout, "", log.LstdFlags), gormlogger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true, // 唯一键冲突翻译为 gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if cfg.Driver == config.DriverMySQL && len(cfg.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.Replicas))
		for _, dsn := range cfg.Replicas {
			replicas = append(replicas, mysql.Open(dsn))
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}).
			SetMaxOpenConns(cfg.MaxOpenConns).
			SetMaxIdleConns(cfg.MaxIdleConns).
			SetConnMaxLifetime(cfg.ConnMaxLifetime)
		if err := db.Use(resolver); err != nil {
			return nil, fmt.Errorf("register dbresolver: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == config.DriverSQLite {
		// sqlite 单写者，避免 database is locked
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Close 关闭底层连接池。
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
