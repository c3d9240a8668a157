package reva

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrGetterPanic wraps a panic raised by a user-supplied getter (data
// producer, computed getter, watch expression). The watcher that was
// evaluating keeps its previous value and the evaluator stack stays balanced.
var ErrGetterPanic = errors.New("reva: getter panicked")

// ErrCallbackPanic wraps a panic raised by a user watch callback.
// The notification pass continues with the remaining subscribers.
var ErrCallbackPanic = errors.New("reva: watch callback panicked")

// ErrComputedNoSetter is reported when a value is written to a computed
// property that declared no setter. The write is dropped.
var ErrComputedNoSetter = errors.New("reva: computed property has no setter")

// ErrKeyCollision is reported when the same key is declared in more than one
// namespace (props, methods, data, computed). The higher-priority namespace
// wins and the shadowed declaration is discarded.
var ErrKeyCollision = errors.New("reva: key declared in multiple namespaces")

// ErrNotCallable is reported when a method or computed getter declaration is
// nil. The entry is skipped.
var ErrNotCallable = errors.New("reva: declaration is not callable")

// ErrReservedKey is reported when a declared key shadows a reserved instance
// member (keys starting with '$' or '_'). The entry is skipped.
var ErrReservedKey = errors.New("reva: key shadows a reserved instance member")

// ErrUnknownMethod is reported when a watch handler references a method name
// that was never declared. The watch entry is skipped.
var ErrUnknownMethod = errors.New("reva: watch handler references unknown method")

// ErrBadData is reported when a data producer returns something other than a
// string-keyed map. The instance falls back to an empty data set.
var ErrBadData = errors.New("reva: data must be a map[string]any")

// ErrUnwatchable is reported when $watch is given an expression that is
// neither a dotted path nor a getter function.
var ErrUnwatchable = errors.New("reva: expression is not watchable")

// ErrBadTarget is reported when Set or Delete is called on a value that is
// not a reactive container.
var ErrBadTarget = errors.New("reva: target is not a reactive Object or Array")

// ErrorReporter receives user-code failures downgraded to warnings.
// Implementations must never panic; reporting a failure must not abort the
// initialization or notification pass that observed it.
type ErrorReporter interface {
	// Report records err raised inside comp (may be nil for free watchers)
	// while executing the step named by context, e.g. "data producer" or
	// "watcher callback".
	Report(err error, comp *Component, context string)
}

// slogReporter is the default ErrorReporter. It logs through log/slog at
// warn level and swallows nothing else.
type slogReporter struct {
	logger *slog.Logger
}

// NewSlogReporter returns an ErrorReporter backed by the given slog logger.
// A nil logger falls back to slog.Default().
func NewSlogReporter(logger *slog.Logger) ErrorReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogReporter{logger: logger}
}

func (r *slogReporter) Report(err error, comp *Component, context string) {
	name := "<anonymous>"
	if comp != nil && comp.name != "" {
		name = comp.name
	}
	r.logger.Warn("reva: recovered user-code failure",
		slog.String("component", name),
		slog.String("context", context),
		slog.Any("error", err),
	)
}

// recovered converts a recover() result into an error wrapping sentinel.
func recovered(sentinel error, r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return fmt.Errorf("%w: %v", sentinel, r)
}
