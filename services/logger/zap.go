package logsvc

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/user"
)

// ZapLogger writes log entries locally through zap.
type ZapLogger struct {
	z *zap.SugaredLogger
}

var _ core.Logger = (*ZapLogger)(nil)

// NewZap builds the process zap logger: human readable in debug, JSON otherwise.
func NewZap(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func NewZapLogger(z *zap.Logger) *ZapLogger {
	return &ZapLogger{z: z.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// expected fmt: msg | error, map[string]interface{}, user.User
func fields(args []interface{}) []interface{} {
	kvs := make([]interface{}, 0, len(args)*2)
	for i, arg := range args {
		switch v := arg.(type) {
		case error:
			kvs = append(kvs, "error", fmt.Sprintf("%+v", v))
		case user.User:
			kvs = append(kvs, "user_id", v.ID, "username", v.Username)
		case map[string]interface{}:
			for k, val := range v {
				kvs = append(kvs, k, val)
			}
		default:
			kvs = append(kvs, fmt.Sprintf("arg%d", i), v)
		}
	}
	return kvs
}

func (l ZapLogger) Debug(msg string, args ...interface{}) { l.z.Debugw(msg, fields(args)...) }
func (l ZapLogger) Info(msg string, args ...interface{})  { l.z.Infow(msg, fields(args)...) }
func (l ZapLogger) Warn(msg string, args ...interface{})  { l.z.Warnw(msg, fields(args)...) }
func (l ZapLogger) Error(msg string, args ...interface{}) { l.z.Errorw(msg, fields(args)...) }
func (l ZapLogger) Fatal(msg string, args ...interface{}) { l.z.Fatalw(msg, fields(args)...) }

func (l ZapLogger) Sync() error {
	return l.z.Sync()
}
