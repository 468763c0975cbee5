package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/poller"
)

const (
	defaultVerifyTimeout = 10 * time.Second
	sinkTimeout          = 5 * time.Second
)

// OrderGateway is the part of the store API the checkout drives.
type OrderGateway interface {
	CreateOrder(ctx context.Context, items []clients.LineItem) (int64, error)
	FetchOrder(ctx context.Context, orderID int64) (clients.Order, error)
	UpdateShipping(ctx context.Context, orderID int64, email string, info clients.ShippingInformation) error
	SubmitPayment(ctx context.Context, orderID int64, card clients.CreditCard) (string, error)
}

// Cart is locked while its order is being created and stays locked once
// the order exists.
type Cart interface {
	Items() []cart.Item
	Lock()
	Unlock()
}

type JobPoller interface {
	Start(ctx context.Context, onTerminal func(poller.Outcome)) error
	Cancel()
	Done() <-chan struct{}
}

// PollerFactory builds a poller for a freshly submitted payment job.
type PollerFactory func(jobID string) JobPoller

type Deps struct {
	Cart          Cart
	Gateway       OrderGateway
	NewPoller     PollerFactory
	Sinks         []Sink
	Logger        *log.Logger
	VerifyTimeout time.Duration
}

// View is what the UI renders for a session.
type View struct {
	SessionID string         `json:"sessionId"`
	State     State          `json:"state"`
	OrderID   int64          `json:"orderId,omitempty"`
	JobID     string         `json:"jobId,omitempty"`
	Order     *clients.Order `json:"order,omitempty"`
	Failure   *Failure       `json:"failure,omitempty"`
	Busy      bool           `json:"busy"`
}

// Orchestrator drives one checkout from cart review to a confirmed or failed
// payment. Steps are strictly sequential: a step started while another is in
// flight fails with ErrBusy.
type Orchestrator struct {
	id     string
	deps   Deps
	logger *log.Logger

	baseCtx context.Context
	stop    context.CancelFunc

	mu        sync.Mutex
	state     State
	orderID   int64
	jobID     string
	order     *clients.Order
	failure   *Failure
	busy      bool
	closed    bool
	poller    JobPoller
	settled   chan struct{}
	payStart  time.Time
	attemptNo int
}

func New(id string, deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.VerifyTimeout <= 0 {
		deps.VerifyTimeout = defaultVerifyTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	settled := make(chan struct{})
	close(settled)
	return &Orchestrator{
		id:      id,
		deps:    deps,
		logger:  deps.Logger,
		baseCtx: ctx,
		stop:    cancel,
		state:   StateCartReview,
		settled: settled,
	}
}

func (o *Orchestrator) ID() string { return o.id }

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	v := View{
		SessionID: o.id,
		State:     o.state,
		OrderID:   o.orderID,
		JobID:     o.jobID,
		Failure:   o.failure,
		Busy:      o.busy,
	}
	if o.order != nil {
		order := *o.order
		v.Order = &order
	}
	return v
}

// SubmitCart creates the order from the cart. An empty cart fails without
// contacting the server.
func (o *Orchestrator) SubmitCart(ctx context.Context) error {
	if err := o.begin(StateCartReview); err != nil {
		return err
	}
	defer o.end()

	o.deps.Cart.Lock()
	items := o.deps.Cart.Items()
	if len(items) == 0 {
		o.deps.Cart.Unlock()
		return o.fail(clients.ErrEmptyCart)
	}
	lineItems := make([]clients.LineItem, 0, len(items))
	for _, it := range items {
		lineItems = append(lineItems, clients.LineItem{ID: it.ProductID, Quantity: it.Quantity})
	}

	orderID, err := o.deps.Gateway.CreateOrder(ctx, lineItems)
	if err != nil {
		o.deps.Cart.Unlock()
		return o.fail(err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.orderID = orderID
	o.failure = nil
	o.transitionLocked(StateOrderCreated)
	return nil
}

// SubmitShipping sends email and shipping address. It may be repeated to
// correct the address until a payment is confirmed.
func (o *Orchestrator) SubmitShipping(ctx context.Context, email string, info clients.ShippingInformation) error {
	if err := o.begin(StateOrderCreated, StateShippingCaptured, StatePaymentFailed); err != nil {
		return err
	}
	defer o.end()

	if err := info.Validate(email); err != nil {
		return o.fail(err)
	}
	if err := o.deps.Gateway.UpdateShipping(ctx, o.currentOrderID(), email, info); err != nil {
		return o.fail(err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.failure = nil
	o.transitionLocked(StateShippingCaptured)
	return nil
}

// SubmitPayment sends the card and starts polling the returned job. The
// returned job id is empty when the server reports the order as already paid.
func (o *Orchestrator) SubmitPayment(ctx context.Context, card clients.CreditCard) (string, error) {
	// Refused while polling, so no earlier poller can still be running: both
	// allowed states are only entered once the previous poller has settled.
	if err := o.begin(StateShippingCaptured, StatePaymentFailed); err != nil {
		return "", err
	}
	defer o.end()

	if err := card.Validate(); err != nil {
		return "", o.fail(err)
	}

	o.mu.Lock()
	o.jobID = ""
	o.attemptNo++
	o.payStart = time.Now()
	o.transitionLocked(StatePaymentSubmitted)
	orderID := o.orderID
	o.mu.Unlock()

	jobID, err := o.deps.Gateway.SubmitPayment(ctx, orderID, card)
	if err != nil {
		if clients.IsAPICode(err, clients.CodeAlreadyPaid) {
			return "", o.reconcileAlreadyPaid(ctx, err)
		}
		o.mu.Lock()
		o.transitionLocked(StateShippingCaptured)
		o.mu.Unlock()
		return "", o.fail(err)
	}

	p := o.deps.NewPoller(jobID)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return "", ErrClosed
	}
	o.jobID = jobID
	o.failure = nil
	o.poller = p
	o.settled = make(chan struct{})
	o.transitionLocked(StatePollingPayment)

	if err := p.Start(o.baseCtx, func(out poller.Outcome) { o.onPollTerminal(p, jobID, out) }); err != nil {
		o.poller = nil
		close(o.settled)
		o.transitionLocked(StatePaymentFailed)
		o.failure = failureOf(err)
		return "", err
	}
	o.logger.Printf("session %s: order %d polling job %s", o.id, orderID, jobID)
	return jobID, nil
}

// RefreshOrder re-fetches the order snapshot for display. It never changes
// the checkout state.
func (o *Orchestrator) RefreshOrder(ctx context.Context) (clients.Order, error) {
	orderID := o.currentOrderID()
	if orderID == 0 {
		return clients.Order{}, ErrNoOrder
	}
	order, err := o.deps.Gateway.FetchOrder(ctx, orderID)
	if err != nil {
		return clients.Order{}, err
	}

	o.mu.Lock()
	o.order = &order
	o.mu.Unlock()
	return order, nil
}

// Wait blocks until the checkout is not polling a payment job.
func (o *Orchestrator) Wait(ctx context.Context) (View, error) {
	o.mu.Lock()
	settled := o.settled
	o.mu.Unlock()

	select {
	case <-settled:
		return o.View(), nil
	case <-ctx.Done():
		return o.View(), ctx.Err()
	}
}

// Close stops any running poller. Further steps fail with ErrClosed.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	if o.poller != nil {
		o.poller.Cancel()
		o.poller = nil
		close(o.settled)
	}
	o.stop()
}

func (o *Orchestrator) begin(allowed ...State) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.busy {
		return ErrBusy
	}
	for _, s := range allowed {
		if o.state == s {
			o.busy = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrIllegalTransition, o.state)
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

func (o *Orchestrator) currentOrderID() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.orderID
}

// fail records err as the displayed failure and returns it unchanged.
func (o *Orchestrator) fail(err error) error {
	f := failureOf(err)
	o.mu.Lock()
	o.failure = f
	state := o.state
	o.mu.Unlock()

	o.logger.Printf("session %s: %s failure in %s: %v", o.id, f.Kind, state, err)
	return err
}

func (o *Orchestrator) transitionLocked(next State) {
	if !o.state.CanTransitionTo(next) {
		// Every caller is gated by begin; reaching this is a bug.
		panic(fmt.Sprintf("checkout %s: illegal transition %s -> %s", o.id, o.state, next))
	}
	o.logger.Printf("session %s: %s -> %s", o.id, o.state, next)
	o.state = next
}

func (o *Orchestrator) reconcileAlreadyPaid(ctx context.Context, cause error) error {
	order, err := o.deps.Gateway.FetchOrder(ctx, o.currentOrderID())

	o.mu.Lock()
	if err != nil || !order.Paid {
		o.transitionLocked(StateShippingCaptured)
		o.mu.Unlock()
		if err != nil {
			return o.fail(err)
		}
		return o.fail(cause)
	}
	o.order = &order
	o.failure = nil
	o.transitionLocked(StatePaymentConfirmed)
	res := o.resultLocked(0)
	o.mu.Unlock()

	o.record(res)
	return nil
}

// onPollTerminal settles a finished polling run. A finished job only counts
// once the re-fetched order says it is paid.
func (o *Orchestrator) onPollTerminal(p JobPoller, jobID string, out poller.Outcome) {
	if !o.isCurrent(p) {
		return
	}

	var (
		next    = StatePaymentFailed
		order   *clients.Order
		failure *Failure
	)
	switch out.State {
	case poller.StateFinished:
		ctx, cancel := context.WithTimeout(o.baseCtx, o.deps.VerifyTimeout)
		fetched, err := o.deps.Gateway.FetchOrder(ctx, o.currentOrderID())
		cancel()
		switch {
		case err != nil:
			failure = failureOf(fmt.Errorf("%w: %w", ErrPaymentUnverified, err))
			failure.Message = ErrPaymentUnverified.Error()
		case fetched.Paid:
			next = StatePaymentConfirmed
			order = &fetched
		default:
			order = &fetched
			failure = failureOf(ErrPaymentDeclined)
		}
	case poller.StateFailed:
		failure = failureOf(ErrPaymentDeclined)
	default:
		err := out.Err
		if err == nil {
			err = poller.ErrPollingTimeout
		}
		failure = failureOf(err)
	}

	o.mu.Lock()
	if o.poller != p || o.closed {
		o.mu.Unlock()
		return
	}
	o.poller = nil
	if order != nil {
		o.order = order
	}
	o.failure = failure
	o.transitionLocked(next)
	settled := o.settled
	res := o.resultLocked(out.Attempts)
	o.mu.Unlock()

	o.logger.Printf("session %s: job %s ended %s after %d polls", o.id, jobID, out.State, out.Attempts)
	// Waiters see the outcome only once every sink has it.
	o.record(res)
	close(settled)
}

func (o *Orchestrator) isCurrent(p JobPoller) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.poller == p && !o.closed
}

func (o *Orchestrator) record(res Result) {
	if len(o.deps.Sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(o.baseCtx), sinkTimeout)
	defer cancel()

	for _, s := range o.deps.Sinks {
		if err := s.Record(ctx, res); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Printf("session %s: record outcome: %v", o.id, err)
		}
	}
}
