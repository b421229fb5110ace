package dblog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yadunandan004/dblogger/config"
	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/logger"
	"github.com/yadunandan004/dblogger/metrics"
	"github.com/yadunandan004/dblogger/singleton"
)

// Registry owns named loggers. Removing a logger shuts it down.
type Registry struct {
	mu sync.Mutex
	// a nil value reserves a name while its logger is being opened
	loggers map[string]*Logger
	opts    []Option
	metrics *metrics.PipelineMetrics
	log     *zap.Logger
}

// NewRegistry returns an empty registry. opts are applied to every logger it
// creates, before the per-call options.
func NewRegistry(opts ...Option) *Registry {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	r := &Registry{
		loggers: make(map[string]*Logger),
		opts:    opts,
		metrics: o.metrics,
		log:     o.zap,
	}
	if r.metrics == nil {
		r.metrics = metrics.Pipeline()
	}
	if r.log == nil {
		r.log = logger.L()
	}
	r.log = r.log.Named("dblog.registry")
	return r
}

type registryBuilder struct{}

func (registryBuilder) Build() *Registry {
	return NewRegistry()
}

// DefaultRegistry is the process-wide registry.
func DefaultRegistry() *Registry {
	return singleton.Inject[registryBuilder, *Registry]()
}

// CreateLogger opens a logger for cfg under name. Names are unique.
func (r *Registry) CreateLogger(ctx context.Context, name string, cfg config.LoggerConfig, opts ...Option) (*Logger, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, logerr.Errorf(logerr.KindInvalidArgument, "registry.create", "logger name is required")
	}
	cfg.Name = name

	r.mu.Lock()
	if _, exists := r.loggers[name]; exists {
		r.mu.Unlock()
		return nil, logerr.Errorf(logerr.KindInvalidArgument, "registry.create", "logger %q already exists", name)
	}
	r.loggers[name] = nil
	r.mu.Unlock()

	all := append(append([]Option{WithMetrics(r.metrics)}, r.opts...), opts...)
	l, err := Open(ctx, cfg, all...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		delete(r.loggers, name)
		return nil, err
	}
	r.loggers[name] = l
	r.metrics.LoggerOpened(ctx, name)
	r.log.Info("logger created", zap.String("logger", name), zap.Stringer("database_type", cfg.DatabaseType))
	return l, nil
}

// CreateFromFile opens every logger declared in a config file.
func (r *Registry) CreateFromFile(ctx context.Context, path string, opts ...Option) ([]*Logger, error) {
	configs, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	created := make([]*Logger, 0, len(configs))
	for _, cfg := range configs {
		l, err := r.CreateLogger(ctx, cfg.Name, cfg, opts...)
		if err != nil {
			return created, err
		}
		created = append(created, l)
	}
	return created, nil
}

func (r *Registry) GetLogger(name string) (*Logger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l := r.loggers[name]; l != nil {
		return l, nil
	}
	return nil, logerr.Errorf(logerr.KindInvalidArgument, "registry.get", "logger %q not found; known loggers: [%s]", name, strings.Join(r.namesLocked(), ", "))
}

// Names lists the registered loggers in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.loggers))
	for name, l := range r.loggers {
		if l != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// RemoveLogger shuts the named logger down and forgets it.
func (r *Registry) RemoveLogger(name string) error {
	r.mu.Lock()
	l := r.loggers[name]
	if l == nil {
		r.mu.Unlock()
		return logerr.Errorf(logerr.KindInvalidArgument, "registry.remove", "logger %q not found", name)
	}
	delete(r.loggers, name)
	r.mu.Unlock()
	return r.shutdown(l)
}

// RemoveAllLoggers shuts every logger down concurrently.
func (r *Registry) RemoveAllLoggers() error {
	return r.shutdownAll(r.take(func(string, *Logger) bool { return true }))
}

// RemoveIf shuts down and removes every logger pred selects, returning how
// many were removed.
func (r *Registry) RemoveIf(pred func(name string, l *Logger) bool) (int, error) {
	taken := r.take(pred)
	return len(taken), r.shutdownAll(taken)
}

func (r *Registry) take(pred func(string, *Logger) bool) []*Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	var taken []*Logger
	for name, l := range r.loggers {
		if l != nil && pred(name, l) {
			taken = append(taken, l)
			delete(r.loggers, name)
		}
	}
	return taken
}

// shutdownAll stops loggers concurrently and joins every failure, not only
// the first.
func (r *Registry) shutdownAll(loggers []*Logger) error {
	var g errgroup.Group
	errs := make([]error, len(loggers))
	for i, l := range loggers {
		g.Go(func() error {
			errs[i] = r.shutdown(l)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (r *Registry) shutdown(l *Logger) error {
	err := l.Shutdown()
	r.metrics.LoggerClosed(context.Background(), l.Name())
	if err != nil {
		r.log.Warn("logger shutdown failed", zap.String("logger", l.Name()), zap.Error(err))
		return err
	}
	r.log.Info("logger removed", zap.String("logger", l.Name()))
	return nil
}

func (r *Registry) GetLoggerConfig(name string) (config.LoggerConfig, error) {
	l, err := r.GetLogger(name)
	if err != nil {
		return config.LoggerConfig{}, err
	}
	return l.Config(), nil
}

// GetAllLoggersConfigs returns a copy of every logger's configuration, keyed by name.
func (r *Registry) GetAllLoggersConfigs() map[string]config.LoggerConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]config.LoggerConfig, len(r.loggers))
	for name, l := range r.loggers {
		if l != nil {
			out[name] = l.Config()
		}
	}
	return out
}
