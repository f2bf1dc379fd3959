package config

import (
	"os"
	"strings"
	"time"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMemory = "memory" // 不落库，仓储使用进程内实现
)

// MySQLConfig 数据库配置。
// Driver 为 sqlite 时 DSN 是文件路径（本地调试与测试用），为 memory 时不建立连接。
type MySQLConfig struct {
	Driver          string        `json:"driver" yaml:"driver"`
	DSN             string        `json:"dsn" yaml:"dsn"`                         // 主库
	Replicas        []string      `json:"replicas" yaml:"replicas"`               // 只读从库，经 dbresolver 分流
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`       // 最大连接数
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`       // 最大空闲连接数
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"` // 连接最长存活时间
	SlowThreshold   time.Duration `json:"slowThreshold" yaml:"slowThreshold"`     // 慢 SQL 阈值
	AutoMigrate     bool          `json:"autoMigrate" yaml:"autoMigrate"`         // 启动时自动建表
}

// DefaultMySQLConfig 返回默认配置（与 docker-compose.yml 对齐）。
// DB_DRIVER / DB_DSN / DB_REPLICAS（逗号分隔）可覆盖。
func DefaultMySQLConfig() MySQLConfig {
	cfg := MySQLConfig{
		Driver:          DriverMySQL,
		DSN:             "root:root@tcp(mysql:3306)/chatrelay?charset=utf8mb4&parseTime=True&loc=Local",
		MaxOpenConns:    50,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		SlowThreshold:   500 * time.Millisecond,
		AutoMigrate:     true,
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DSN = v
	} else if cfg.Driver == DriverSQLite {
		cfg.DSN = "chatrelay.db"
	}
	if v := os.Getenv("DB_REPLICAS"); v != "" {
		for _, dsn := range strings.Split(v, ",") {
			if dsn = strings.TrimSpace(dsn); dsn != "" {
				cfg.Replicas = append(cfg.Replicas, dsn)
			}
		}
	}
	return cfg
}
