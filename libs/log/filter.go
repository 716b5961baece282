package log

import "fmt"

type level byte

const (
	levelTrace level = 1 << iota
	levelDebug
	levelInfo
	levelError
)

type filter struct {
	next             Logger
	allowed          level            // XOR'd levels for default case
	initiallyAllowed level            // XOR'd levels for initial case
	allowedKeyvals   map[keyval]level // When key-value match, use this level
}

type keyval struct {
	key   interface{}
	value interface{}
}

// NewFilter wraps next and implements filtering. See the commentary on the
// Option functions for a detailed description of how to configure levels. If
// no options are provided, all leveled log events created with Trace, Debug,
// Info or Error helper methods are squelched.
func NewFilter(next Logger, options ...Option) Logger {
	l := &filter{
		next:           next,
		allowedKeyvals: make(map[keyval]level),
	}
	for _, option := range options {
		option(l)
	}
	l.initiallyAllowed = l.allowed
	return l
}

func (l *filter) Trace(msg string, keyvals ...interface{}) {
	levelAllowed := l.allowed&levelTrace != 0
	if !levelAllowed {
		return
	}
	l.next.Trace(msg, keyvals...)
}

func (l *filter) Debug(msg string, keyvals ...interface{}) {
	levelAllowed := l.allowed&levelDebug != 0
	if !levelAllowed {
		return
	}
	l.next.Debug(msg, keyvals...)
}

func (l *filter) Info(msg string, keyvals ...interface{}) {
	levelAllowed := l.allowed&levelInfo != 0
	if !levelAllowed {
		return
	}
	l.next.Info(msg, keyvals...)
}

func (l *filter) Error(msg string, keyvals ...interface{}) {
	levelAllowed := l.allowed&levelError != 0
	if !levelAllowed {
		return
	}
	l.next.Error(msg, keyvals...)
}

// With implements Logger by constructing a new filter with a delegate that is
// the result of applying keyvals to the delegate of this filter.
//
// The map of allowed keyvals is used to check whether a log message is
// allowed.
func (l *filter) With(keyvals ...interface{}) Logger {
	keyInAllowedKeyvals := false

	for i := len(keyvals) - 2; i >= 0; i -= 2 {
		for kv, allowed := range l.allowedKeyvals {
			if keyvals[i] == kv.key {
				keyInAllowedKeyvals = true
				// Example:
				//		logger = log.NewFilter(logger, log.AllowError(), log.AllowInfoWith("module", "mempool"))
				//		logger.With("module", "mempool")
				if keyvals[i+1] == kv.value {
					return &filter{
						next:             l.next.With(keyvals...),
						allowed:          allowed, // set the desired level
						allowedKeyvals:   l.allowedKeyvals,
						initiallyAllowed: l.initiallyAllowed,
					}
				}
			}
		}
	}

	// Example:
	//		logger = log.NewFilter(logger, log.AllowError(), log.AllowInfoWith("module", "mempool"))
	//		logger.With("module", "executor")
	if keyInAllowedKeyvals {
		return &filter{
			next:             l.next.With(keyvals...),
			allowed:          l.initiallyAllowed, // return back to initially allowed
			allowedKeyvals:   l.allowedKeyvals,
			initiallyAllowed: l.initiallyAllowed,
		}
	}

	return &filter{
		next:             l.next.With(keyvals...),
		allowed:          l.allowed, // simply continue with the current level
		allowedKeyvals:   l.allowedKeyvals,
		initiallyAllowed: l.initiallyAllowed,
	}
}

//--------------------------------------------------------------------------------

// Option sets a parameter for the filter.
type Option func(*filter)

// AllowLevel returns an option for the given level or error if no option exist
// for such level.
func AllowLevel(lvl string) (Option, error) {
	switch lvl {
	case "trace":
		return AllowTrace(), nil
	case "debug":
		return AllowDebug(), nil
	case "info":
		return AllowInfo(), nil
	case "error":
		return AllowError(), nil
	case "none":
		return AllowNone(), nil
	default:
		return nil, fmt.Errorf("expected either \"trace\", \"debug\", \"info\", \"error\" or \"none\" level, given %s", lvl)
	}
}

// AllowAll is an alias for AllowTrace.
func AllowAll() Option {
	return AllowTrace()
}

// AllowTrace allows error, info, debug and trace level log events to pass.
func AllowTrace() Option {
	return allowed(levelError | levelInfo | levelDebug | levelTrace)
}

// AllowDebug allows error, info and debug level log events to pass.
func AllowDebug() Option {
	return allowed(levelError | levelInfo | levelDebug)
}

// AllowInfo allows error and info level log events to pass.
func AllowInfo() Option {
	return allowed(levelError | levelInfo)
}

// AllowError allows only error level log events to pass.
func AllowError() Option {
	return allowed(levelError)
}

// AllowNone allows no leveled log events to pass.
func AllowNone() Option {
	return allowed(0)
}

func allowed(allowed level) Option {
	return func(l *filter) { l.allowed = allowed }
}

// AllowDebugWith allows error, info and debug level log events to pass for a
// specific key value pair.
func AllowDebugWith(key interface{}, value interface{}) Option {
	return func(l *filter) {
		l.allowedKeyvals[keyval{key, value}] = levelError | levelInfo | levelDebug
	}
}

// AllowInfoWith allows error and info level log events to pass for a specific
// key value pair.
func AllowInfoWith(key interface{}, value interface{}) Option {
	return func(l *filter) {
		l.allowedKeyvals[keyval{key, value}] = levelError | levelInfo
	}
}

// AllowErrorWith allows only error level log events to pass for a specific
// key value pair.
func AllowErrorWith(key interface{}, value interface{}) Option {
	return func(l *filter) {
		l.allowedKeyvals[keyval{key, value}] = levelError
	}
}

// AllowNoneWith allows no leveled log events to pass for a specific key value
// pair.
func AllowNoneWith(key interface{}, value interface{}) Option {
	return func(l *filter) {
		l.allowedKeyvals[keyval{key, value}] = 0
	}
}
