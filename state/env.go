// Package state defines shared program state.
package state

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"jrr/config"
	"jrr/settings"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg   *config.Config
	Rpt   *config.Report
	Log   *zap.Logger
	Store settings.Store

	// command line switches
	Overwrite bool
	Token     string

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, &LocalEnv{start: time.Now()})
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

// OpenStore opens settings database configured for the program. Subsequent
// calls return the same store.
func (e *LocalEnv) OpenStore() (settings.Store, error) {
	if e.Store != nil {
		return e.Store, nil
	}
	path, err := e.Cfg.Library.ResolveSettingsDB()
	if err != nil {
		return nil, err
	}
	s, err := settings.OpenSQLite(path, e.Log.Named("settings"))
	if err != nil {
		return nil, err
	}
	e.Store = s
	return s, nil
}

// ResolveToken returns access token from command line, configuration or
// settings store, in that order. Empty token is not an error, books without
// header do not need it.
func (e *LocalEnv) ResolveToken(ctx context.Context) (string, error) {
	if e.Token != "" {
		return e.Token, nil
	}
	if e.Cfg != nil && e.Cfg.Session.AccessToken != "" {
		return string(e.Cfg.Session.AccessToken), nil
	}
	s, err := e.OpenStore()
	if err != nil {
		return "", err
	}
	var token string
	if _, err := s.Get(ctx, settings.KeyToken, &token); err != nil {
		return "", err
	}
	return token, nil
}

// Close releases resources held by environment.
func (e *LocalEnv) Close() (err error) {
	if e.Store != nil {
		err = multierr.Append(err, e.Store.Close())
		e.Store = nil
	}
	return err
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
