package logsvc

import (
	"go.uber.org/zap"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/user"
)

// ZapLogger logs locally through zap. It is the local sink of RollbarLogger.
type ZapLogger struct {
	z *zap.Logger
}

var _ core.Logger = (*ZapLogger)(nil)

func NewZapLogger(z *zap.Logger) *ZapLogger {
	return &ZapLogger{z: z}
}

// NewLocalLogger returns a development (console) logger in debug mode and a production (JSON) one otherwise.
func NewLocalLogger(conf *core.Config) (*ZapLogger, error) {
	var (
		z   *zap.Logger
		err error
	)
	if conf.Debug {
		z, err = zap.NewDevelopment()
	} else {
		z, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return NewZapLogger(z.With(zap.String("app", conf.AppName), zap.String("env", conf.Env), zap.String("build", conf.Build))), nil
}

func NewNopLogger() *ZapLogger {
	return NewZapLogger(zap.NewNop())
}

// fields maps the logger args: error | map[string]interface{} | user.User
func fields(args []interface{}) []zap.Field {
	flds := make([]zap.Field, 0, len(args))
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			flds = append(flds, zap.Error(a))
		case map[string]interface{}:
			for k, v := range a {
				flds = append(flds, zap.Any(k, v))
			}
		case user.User:
			flds = append(flds, zap.Int("user_id", a.ID), zap.String("username", a.Username))
		default:
			flds = append(flds, zap.Any("arg", a))
		}
	}
	return flds
}

func (l *ZapLogger) Debug(msg string, args ...interface{}) { l.z.Debug(msg, fields(args)...) }
func (l *ZapLogger) Info(msg string, args ...interface{})  { l.z.Info(msg, fields(args)...) }
func (l *ZapLogger) Warn(msg string, args ...interface{})  { l.z.Warn(msg, fields(args)...) }
func (l *ZapLogger) Error(msg string, args ...interface{}) { l.z.Error(msg, fields(args)...) }
func (l *ZapLogger) Fatal(msg string, args ...interface{}) { l.z.Fatal(msg, fields(args)...) }

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.z.Sync()
}
