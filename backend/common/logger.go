package common

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger     = zap.NewNop()
	loggerLock sync.RWMutex
)

// SetupLogger 初始化全局 zap logger，GIN_MODE=debug 时使用开发模式输出
func SetupLogger() error {
	var config zap.Config
	if os.Getenv("GIN_MODE") == "debug" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	l, err := config.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	SetLogger(l)
	return nil
}

func SetLogger(l *zap.Logger) {
	loggerLock.Lock()
	defer loggerLock.Unlock()
	logger = l
}

// Logger returns the process logger for structured fields.
func Logger() *zap.Logger {
	loggerLock.RLock()
	defer loggerLock.RUnlock()
	return logger
}

func SyncLogger() {
	_ = Logger().Sync()
}

func sysLogger() *zap.Logger {
	return Logger().WithOptions(zap.AddCallerSkip(1))
}

func SysLog(s string) {
	sysLogger().Info(s, zap.String("source", "SYS"))
}

func SysError(s string) {
	sysLogger().Error(s, zap.String("source", "SYS"))
}

func FatalLog(v ...any) {
	sysLogger().Fatal(fmt.Sprint(v...), zap.String("source", "FATAL"))
}
