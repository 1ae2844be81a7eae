package logsvc

import (
	"context"
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/learntube/backend/core"
	"github.com/learntube/backend/core/user"
)

// RollbarLogger reports warnings and worse to Rollbar and writes every entry locally through zap.
type RollbarLogger struct {
	zl     *zap.SugaredLogger
	report bool
}

var _ core.Logger = (*RollbarLogger)(nil)

// InitRollbar configures the process wide Rollbar client. Call it once from main,
// before any logger reports. Reporting is off in debug mode.
func InitRollbar(conf *core.Config) {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	if host, err := os.Hostname(); err == nil {
		rollbar.SetServerHost(host)
	}
	rollbar.SetEnabled(!conf.Debug && conf.RollbarToken != "")
}

// NewRollbarLogger returns a logger named name (e.g. "API", "DB").
// It does not touch the Rollbar client configuration, see InitRollbar.
func NewRollbarLogger(name string, conf *core.Config) (*RollbarLogger, error) {
	zconf := zap.NewProductionConfig()
	if conf.Debug {
		zconf = zap.NewDevelopmentConfig()
	}
	zl, err := zconf.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &RollbarLogger{zl: zl.Named(name).Sugar(), report: true}, nil
}

// NewNopLogger returns a logger that neither reports nor writes anything. Used in tests.
func NewNopLogger() *RollbarLogger {
	return &RollbarLogger{zl: zap.NewNop().Sugar()}
}

func (l *RollbarLogger) Sync() {
	_ = l.zl.Sync()
	rollbar.Wait()
}

// entry is a log call split into its Rollbar & zap parts.
type entry struct {
	ctx    context.Context // carries the person, if any
	err    error           // first error arg
	extras map[string]interface{}
	kvs    []interface{}
}

// prepare splits args into rollbar extras & zap key-values.
// expected fmt: error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(args []interface{}) entry {
	e := entry{
		ctx:    context.Background(),
		extras: make(map[string]interface{}),
		kvs:    make([]interface{}, 0, 2*len(args)),
	}
	var usrSet bool
	var extra []interface{}

	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if !usrSet { // only set one User
				e.ctx = rollbar.NewPersonContext(e.ctx, &rollbar.Person{Id: a.ID, Username: a.Name, Email: a.Email})
				e.kvs = append(e.kvs, "user", a.ID)
				usrSet = true
			}
		case error:
			if e.err == nil {
				e.err = a
			} else {
				e.extras["other_error"] = a.Error()
			}
			e.kvs = append(e.kvs, "error", a)
		case map[string]interface{}:
			for k, v := range a {
				e.extras[k] = v
				e.kvs = append(e.kvs, k, v)
			}
		default:
			extra = append(extra, a)
			e.kvs = append(e.kvs, "extra", a)
		}
	}
	if len(extra) > 0 {
		e.extras["extra"] = extra
	}
	return e
}

func (l *RollbarLogger) send(level, msg string, e entry) {
	if !l.report {
		return
	}
	if e.err == nil {
		rollbar.MessageWithExtrasAndContext(e.ctx, level, msg, e.extras)
		return
	}
	e.extras["message"] = msg
	rollbar.ErrorWithExtrasAndContext(e.ctx, level, e.err, e.extras)
}

// Debug and Info entries are local only.

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	l.zl.Debugw(msg, l.prepare(args).kvs...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	l.zl.Infow(msg, l.prepare(args).kvs...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	e := l.prepare(args)
	l.send(rollbar.WARN, msg, e)
	l.zl.Warnw(msg, e.kvs...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	e := l.prepare(args)
	l.send(rollbar.ERR, msg, e)
	l.zl.Errorw(msg, e.kvs...)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := l.prepare(args)
	l.send(rollbar.CRIT, msg, e)
	rollbar.Wait()
	l.zl.Fatalw(msg, e.kvs...)
}
