package database

import (
	"gorm.io/gorm"

	"github.com/customeros/mailnotify/config"
)

func InitCursorDatabase(cfg *config.CursorDatabaseConfig) (*gorm.DB, error) {
	return NewConnection(&DatabaseConfig{
		DBName:          cfg.DBName,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		MaxConn:         cfg.MaxConn,
		MaxIdleConn:     cfg.MaxIdleConn,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		LogLevel:        cfg.LogLevel,
		SSLMode:         cfg.SSLMode,
	})
}
