// Package reconcile confirms a payment after the customer returns from the
// gateway by polling the verification path a bounded number of times.
package reconcile

import (
	"context"
	"sync"
	"time"
)

// State of a reconciliation run
type State string

const (
	StateProcessing State = "processing"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

const (
	DefaultMaxAttempts = 6
	DefaultInterval    = 5 * time.Second
)

const (
	ReasonOrderNotFound  = "order number not found"
	ReasonTimeout        = "payment confirmation timed out, please contact support"
	ReasonGatewayFailure = "payment was not completed"
	ReasonCancelled      = "reconciliation cancelled"
)

// CheckFunc reports whether orderNumber is paid. Errors count as a used attempt.
type CheckFunc func(ctx context.Context, orderNumber string) (bool, error)

// Outcome is the terminal result of Run
type Outcome struct {
	State       State  `json:"state"`
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason,omitempty"`
	Attempts    int    `json:"attempts"`
	LastError   error  `json:"-"`
}

type Option func(*Poller)

func WithMaxAttempts(n int) Option {
	return func(p *Poller) { p.maxAttempts = n }
}

func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithAfter replaces time.After, mainly for tests
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(p *Poller) { p.after = after }
}

// Poller runs the processing -> success | failed state machine for one order.
// Once it reaches success no further checks are issued.
type Poller struct {
	check       CheckFunc
	maxAttempts int
	interval    time.Duration
	after       func(time.Duration) <-chan time.Time

	mu        sync.Mutex
	state     State
	attempts  int
	succeeded bool
	retry     chan struct{}
}

func NewPoller(check CheckFunc, opts ...Option) *Poller {
	p := &Poller{
		check:       check,
		maxAttempts: DefaultMaxAttempts,
		interval:    DefaultInterval,
		after:       time.After,
		state:       StateProcessing,
		retry:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = 1
	}
	return p
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// RetryNow resets the attempt counter and triggers an immediate check in a running Run
func (p *Poller) RetryNow() {
	select {
	case p.retry <- struct{}{}:
	default:
	}
}

func (p *Poller) finish(out Outcome) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = out.State
	if out.State == StateSuccess {
		p.succeeded = true
	}
	out.Attempts = p.attempts
	return out
}

// Run polls until the order is confirmed, the attempts run out or ctx is done.
// An empty orderNumber fails immediately without any check.
func (p *Poller) Run(ctx context.Context, orderNumber string) Outcome {
	p.mu.Lock()
	if p.succeeded {
		attempts := p.attempts
		p.mu.Unlock()
		return Outcome{State: StateSuccess, OrderNumber: orderNumber, Attempts: attempts}
	}
	p.state = StateProcessing
	p.attempts = 0
	p.mu.Unlock()

	// a retry requested after the previous run ended must not leak into this one
	select {
	case <-p.retry:
	default:
	}

	if orderNumber == "" {
		return p.finish(Outcome{State: StateFailed, Reason: ReasonOrderNotFound})
	}

	var lastErr error
	for {
		p.mu.Lock()
		if p.succeeded {
			p.mu.Unlock()
			return p.finish(Outcome{State: StateSuccess, OrderNumber: orderNumber})
		}
		p.attempts++
		attempts := p.attempts
		p.mu.Unlock()

		paid, err := p.check(ctx, orderNumber)
		if ctx.Err() != nil {
			return p.finish(Outcome{State: StateFailed, OrderNumber: orderNumber, Reason: ReasonCancelled, LastError: ctx.Err()})
		}
		if err != nil {
			lastErr = err
		} else if paid {
			return p.finish(Outcome{State: StateSuccess, OrderNumber: orderNumber})
		}

		if attempts >= p.maxAttempts {
			return p.finish(Outcome{State: StateFailed, OrderNumber: orderNumber, Reason: ReasonTimeout, LastError: lastErr})
		}

		select {
		case <-ctx.Done():
			return p.finish(Outcome{State: StateFailed, OrderNumber: orderNumber, Reason: ReasonCancelled, LastError: ctx.Err()})
		case <-p.retry:
			p.mu.Lock()
			p.attempts = 0
			p.mu.Unlock()
		case <-p.after(p.interval):
		}
	}
}
