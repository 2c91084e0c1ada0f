package model

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filebox/backend/common"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// openDialector 根据 DSN 选择数据库驱动，未设置 SQL_DSN 时使用 SQLite
func openDialector(dsn string, sqlitePath string) (gorm.Dialector, string) {
	switch {
	case dsn == "":
		return sqlite.Open(sqlitePath), "sqlite"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return postgres.Open(dsn), "postgres"
	default:
		return mysql.Open(dsn), "mysql"
	}
}

func InitDB() (err error) {
	dialector, driver := openDialector(common.SQLDSN, common.SQLitePath)
	if driver == "sqlite" {
		common.SysLog("SQL_DSN not set, using SQLite as database: " + common.SQLitePath)
		if dir := filepath.Dir(common.SQLitePath); dir != "." && !strings.HasPrefix(common.SQLitePath, ":memory:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create sqlite directory %s: %w", dir, err)
			}
		}
	} else {
		common.SysLog("Using " + driver + " database")
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	if driver == "sqlite" {
		// SQLite 需要显式开启外键约束
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}

	if err = db.AutoMigrate(&User{}, &File{}); err != nil {
		return fmt.Errorf("failed to auto migrate database schema: %w", err)
	}

	DB = db
	common.SysLog("Database initialized successfully.")
	return nil
}

func CloseDB() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	common.SysLog("Closing database connection.")
	return sqlDB.Close()
}

// PingDB 执行一次轻量查询，返回耗时
func PingDB(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var one int
	if err := DB.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
