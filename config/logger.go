package config

import "os"

// LoggerConfig 日志配置。
type LoggerConfig struct {
	Level            string   `json:"level" yaml:"level"`                       // debug/info/warn/error
	Encoding         string   `json:"encoding" yaml:"encoding"`                 // json 或 console
	EnableColor      bool     `json:"enableColor" yaml:"enableColor"`           // console 模式下是否彩色输出
	OutputPaths      []string `json:"outputPaths" yaml:"outputPaths"`           // 普通日志输出
	ErrorOutputPaths []string `json:"errorOutputPaths" yaml:"errorOutputPaths"` // zap 内部错误输出
	Development      bool     `json:"development" yaml:"development"`           // 开发模式（error 级别带堆栈）
}

// DefaultLoggerConfig 返回默认日志配置，LOG_LEVEL / LOG_ENCODING 可覆盖。
func DefaultLoggerConfig() LoggerConfig {
	cfg := LoggerConfig{
		Level:            "info",
		Encoding:         "json",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = v
	}
	if v := os.Getenv("LOG_ENCODING"); v != "" {
		cfg.Encoding = v
		cfg.EnableColor = v == "console"
	}
	cfg.Development = os.Getenv("APP_ENV") == "dev"
	return cfg
}
