package main

import (
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// File paths for logs
	DEBUG_LOG_FILE_PATH = "./tokutalkd.log"
	LOG_FILE_PATH       = "/var/log/tokutalkd/tokutalkd.log"
)

func logFilePath(debug bool) string {
	if debug {
		return DEBUG_LOG_FILE_PATH
	}
	return LOG_FILE_PATH
}

func newLogger(debug bool) (*zap.Logger, error) {
	var config zap.Config
	fp := logFilePath(debug)
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	if err := os.MkdirAll(filepath.Dir(fp), 0755); err != nil {
		return nil, err
	}

	config.EncoderConfig.StacktraceKey = ""
	config.EncoderConfig.TimeKey = ""
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(config.EncoderConfig)

	// No colors in the file
	fileEncoderConfig := config.EncoderConfig
	fileEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	fileEncoderConfig.TimeKey = "ts"
	fileEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	fileEncoder := zapcore.NewConsoleEncoder(fileEncoderConfig)

	logRotator := &lumberjack.Logger{
		Filename:   fp,
		MaxSize:    32,   // megabytes
		MaxBackups: 3,    // number of backups to keep
		MaxAge:     30,   // days to keep backups
		Compress:   true, // compress backups
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), config.Level),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(logRotator), config.Level),
	)

	return zap.New(core, zap.AddCaller()), nil
}
