package coordinator

import (
	"time"

	"github.com/isrc101/crew/internal/budget"
	"github.com/isrc101/crew/internal/bus"
	"github.com/isrc101/crew/internal/roles"
)

// Defaults for optional configuration.
const (
	DefaultMaxParallel    = 2
	DefaultTokenBudget    = 200_000
	DefaultPerAgentBudget = 200_000
	DefaultMaxRework      = 2
	DefaultMessageTimeout = 60 * time.Second
	DefaultTaskTimeout    = 300 * time.Second
	DefaultJoinGrace      = 10 * time.Second
	defaultEventBuffer    = 100
)

// DefaultWarningThresholds are the per-agent spend percentages that fire
// budget warnings, ascending.
var DefaultWarningThresholds = []int{50, 80, 95}

// Option configures a Coordinator. Use With* functions to create Options.
type Option func(*coordinatorOptions)

// coordinatorOptions holds all optional configuration.
type coordinatorOptions struct {
	maxParallel       int
	tokenBudget       int64
	perAgentBudget    int64
	autoReview        bool
	maxRework         int
	messageTimeout    time.Duration
	taskTimeout       time.Duration
	joinGrace         time.Duration
	warningThresholds []int
	projectRoot       string
	logger            *DebugLogger

	// Injectable dependencies, mainly for testing.
	bus    *bus.MessageBus
	budget *budget.SharedTokenBudget
	roles  *roles.Registry
}

func defaultOptions() *coordinatorOptions {
	return &coordinatorOptions{
		maxParallel:       DefaultMaxParallel,
		tokenBudget:       DefaultTokenBudget,
		perAgentBudget:    DefaultPerAgentBudget,
		autoReview:        true,
		maxRework:         DefaultMaxRework,
		messageTimeout:    DefaultMessageTimeout,
		taskTimeout:       DefaultTaskTimeout,
		joinGrace:         DefaultJoinGrace,
		warningThresholds: DefaultWarningThresholds,
	}
}

// WithMaxParallel sets the maximum worker instances per role.
func WithMaxParallel(n int) Option {
	return func(o *coordinatorOptions) {
		if n > 0 {
			o.maxParallel = n
		}
	}
}

// WithTokenBudget sets the global token ceiling. Zero means unlimited.
func WithTokenBudget(tokens int64) Option {
	return func(o *coordinatorOptions) { o.tokenBudget = tokens }
}

// WithPerAgentBudget sets the per-agent base token ceiling before role
// multipliers. Zero means unlimited.
func WithPerAgentBudget(tokens int64) Option {
	return func(o *coordinatorOptions) { o.perAgentBudget = tokens }
}

// WithAutoReview toggles the automatic review cycle for coder tasks.
func WithAutoReview(enabled bool) Option {
	return func(o *coordinatorOptions) { o.autoReview = enabled }
}

// WithMaxRework sets how many reviewer rejections a task may accumulate
// before its last output is accepted as-is.
func WithMaxRework(n int) Option {
	return func(o *coordinatorOptions) { o.maxRework = n }
}

// WithMessageTimeout bounds each coordinator mailbox wait. A timed-out wait
// triggers the task timeout sweep.
func WithMessageTimeout(d time.Duration) Option {
	return func(o *coordinatorOptions) {
		if d > 0 {
			o.messageTimeout = d
		}
	}
}

// WithTaskTimeout sets the per-task wall-clock timeout. Zero disables the
// timeout sweep.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *coordinatorOptions) { o.taskTimeout = d }
}

// WithJoinGrace sets how long shutdown waits for each worker to exit.
func WithJoinGrace(d time.Duration) Option {
	return func(o *coordinatorOptions) {
		if d > 0 {
			o.joinGrace = d
		}
	}
}

// WithWarningThresholds sets the ascending per-agent spend percentages that
// fire budget warnings.
func WithWarningThresholds(thresholds []int) Option {
	return func(o *coordinatorOptions) { o.warningThresholds = thresholds }
}

// WithProjectRoot sets the project directory agents operate in; it also
// anchors the debug log location.
func WithProjectRoot(root string) Option {
	return func(o *coordinatorOptions) { o.projectRoot = root }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *coordinatorOptions) { o.logger = l }
}

// WithBus sets a custom message bus (mainly for testing).
func WithBus(b *bus.MessageBus) Option {
	return func(o *coordinatorOptions) { o.bus = b }
}

// WithBudget sets a custom shared budget, overriding the token budget
// options (mainly for testing).
func WithBudget(b *budget.SharedTokenBudget) Option {
	return func(o *coordinatorOptions) { o.budget = b }
}

// WithRoles sets a custom role registry.
func WithRoles(r *roles.Registry) Option {
	return func(o *coordinatorOptions) { o.roles = r }
}
