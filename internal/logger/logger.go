// Package logger реализует структурированное логирование поверх zap
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger контракт логгера, который получают компоненты сервиса
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Info(args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Error(args ...interface{})
	Fatalf(format string, args ...interface{})
	With(args ...interface{}) Logger
	Flush() error
}

type zapLogger struct {
	log *zap.SugaredLogger
}

// New создает JSON логгер с уровнем logLevel и полем svc=appID
func New(appID, logLevel string) Logger {
	atom := zap.NewAtomicLevel()

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	log := zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		atom,
	))

	atom.SetLevel(zap.InfoLevel)
	if logLevel != "" {
		if err := atom.UnmarshalText([]byte(strings.ToLower(logLevel))); err != nil {
			log.Error("invalid log level", zap.String("level", logLevel))
		}
	}

	return &zapLogger{log: log.Sugar().With("svc", appID)}
}

// NewNop логгер без вывода, для тестов
func NewNop() Logger {
	return &zapLogger{log: zap.NewNop().Sugar()}
}

func (l *zapLogger) Debugf(format string, args ...interface{}) { l.log.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...interface{})  { l.log.Infof(format, args...) }
func (l *zapLogger) Info(args ...interface{})                  { l.log.Info(args...) }
func (l *zapLogger) Warnf(format string, args ...interface{})  { l.log.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...interface{}) { l.log.Errorf(format, args...) }
func (l *zapLogger) Error(args ...interface{})                 { l.log.Error(args...) }
func (l *zapLogger) Fatalf(format string, args ...interface{}) { l.log.Fatalf(format, args...) }

// With возвращает логгер с дополнительными полями
func (l *zapLogger) With(args ...interface{}) Logger {
	return &zapLogger{log: l.log.With(args...)}
}

// Flush сбрасывает буферы
func (l *zapLogger) Flush() error {
	return l.log.Sync()
}
