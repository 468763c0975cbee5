package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/poller"
)

type fakeGateway struct {
	CreateOrderFn    func(ctx context.Context, items []clients.LineItem) (int64, error)
	FetchOrderFn     func(ctx context.Context, orderID int64) (clients.Order, error)
	UpdateShippingFn func(ctx context.Context, orderID int64, email string, info clients.ShippingInformation) error
	SubmitPaymentFn  func(ctx context.Context, orderID int64, card clients.CreditCard) (string, error)

	creates  atomic.Int32
	fetches  atomic.Int32
	updates  atomic.Int32
	payments atomic.Int32
}

func (f *fakeGateway) CreateOrder(ctx context.Context, items []clients.LineItem) (int64, error) {
	f.creates.Add(1)
	if f.CreateOrderFn == nil {
		return 1, nil
	}
	return f.CreateOrderFn(ctx, items)
}

func (f *fakeGateway) FetchOrder(ctx context.Context, orderID int64) (clients.Order, error) {
	f.fetches.Add(1)
	if f.FetchOrderFn == nil {
		return clients.Order{ID: orderID, Paid: true}, nil
	}
	return f.FetchOrderFn(ctx, orderID)
}

func (f *fakeGateway) UpdateShipping(ctx context.Context, orderID int64, email string, info clients.ShippingInformation) error {
	f.updates.Add(1)
	if f.UpdateShippingFn == nil {
		return nil
	}
	return f.UpdateShippingFn(ctx, orderID, email, info)
}

func (f *fakeGateway) SubmitPayment(ctx context.Context, orderID int64, card clients.CreditCard) (string, error) {
	n := f.payments.Add(1)
	if f.SubmitPaymentFn == nil {
		return fmt.Sprintf("job-%d", n), nil
	}
	return f.SubmitPaymentFn(ctx, orderID, card)
}

type fakeJobs struct {
	mu       sync.Mutex
	statuses map[string][]clients.JobStatus
	calls    map[string]int
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{statuses: map[string][]clients.JobStatus{}, calls: map[string]int{}}
}

func (f *fakeJobs) set(jobID string, ss ...clients.JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[jobID] = ss
}

func (f *fakeJobs) FetchJob(_ context.Context, jobID string) (clients.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[jobID]++
	ss := f.statuses[jobID]
	if len(ss) == 0 {
		return clients.Job{ID: jobID, Status: clients.JobQueued}, nil
	}
	i := f.calls[jobID] - 1
	if i >= len(ss) {
		i = len(ss) - 1
	}
	return clients.Job{ID: jobID, Status: ss[i]}, nil
}

func (f *fakeJobs) callsFor(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[jobID]
}

type recordingSink struct {
	mu      sync.Mutex
	results []Result
}

func (s *recordingSink) Record(_ context.Context, res Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return nil
}

func (s *recordingSink) all() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.results...)
}

type harness struct {
	cart    *cart.Store
	gateway *fakeGateway
	jobs    *fakeJobs
	sink    *recordingSink
	pollCfg poller.Config
	orch    *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		cart:    cart.NewStore(),
		gateway: &fakeGateway{},
		jobs:    newFakeJobs(),
		sink:    &recordingSink{},
		pollCfg: poller.Config{Interval: 2 * time.Millisecond, MaxAttempts: 500, Timeout: 5 * time.Second},
	}
	h.orch = New("sess-1", Deps{
		Cart:    h.cart,
		Gateway: h.gateway,
		NewPoller: func(jobID string) JobPoller {
			return poller.New(h.jobs, jobID, h.pollCfg)
		},
		Sinks:  []Sink{h.sink},
		Logger: log.New(io.Discard, "", 0),
	})
	t.Cleanup(h.orch.Close)
	return h
}

func shipping() clients.ShippingInformation {
	return clients.ShippingInformation{Country: "Canada", Address: "555 boul. de l'Université", PostalCode: "G7H 2B1", City: "Chicoutimi", Province: "QC"}
}

func card() clients.CreditCard {
	return clients.CreditCard{Name: "John Doe", Number: "4242 4242 4242 4242", ExpirationMonth: "9", ExpirationYear: "2030", CVV: "123"}
}

func product(id int64) catalog.Product {
	return catalog.Product{ID: id, Name: "p", Price: decimal.NewFromInt(10), InStock: true}
}

func (h *harness) fillCart(t *testing.T) {
	t.Helper()
	require.NoError(t, h.cart.Add(product(3)))
}

// toShipping drives the checkout up to ShippingCaptured.
func (h *harness) toShipping(t *testing.T) {
	t.Helper()
	h.fillCart(t)
	require.NoError(t, h.orch.SubmitCart(context.Background()))
	require.NoError(t, h.orch.SubmitShipping(context.Background(), "a@b.c", shipping()))
	require.Equal(t, StateShippingCaptured, h.orch.State())
}

func (h *harness) wait(t *testing.T) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	v, err := h.orch.Wait(ctx)
	require.NoError(t, err)
	return v
}

func TestSubmitCart_EmptyCartStaysWithoutNetwork(t *testing.T) {
	h := newHarness(t)

	err := h.orch.SubmitCart(context.Background())
	require.ErrorIs(t, err, clients.ErrEmptyCart)
	assert.Zero(t, h.gateway.creates.Load())

	v := h.orch.View()
	assert.Equal(t, StateCartReview, v.State)
	require.NotNil(t, v.Failure)
	assert.Equal(t, FailureValidation, v.Failure.Kind)
	assert.False(t, v.Busy)
	assert.False(t, h.cart.Locked())
}

func TestSubmitCart_SendsCartItems(t *testing.T) {
	h := newHarness(t)
	var got []clients.LineItem
	h.gateway.CreateOrderFn = func(_ context.Context, items []clients.LineItem) (int64, error) {
		got = items
		return 42, nil
	}
	require.NoError(t, h.cart.Add(product(3)))
	require.NoError(t, h.cart.Add(product(3)))
	require.NoError(t, h.cart.Add(product(5)))

	require.NoError(t, h.orch.SubmitCart(context.Background()))

	assert.Equal(t, []clients.LineItem{{ID: 3, Quantity: 2}, {ID: 5, Quantity: 1}}, got)
	v := h.orch.View()
	assert.Equal(t, StateOrderCreated, v.State)
	assert.Equal(t, int64(42), v.OrderID)
}

func TestSubmitCart_LocksCartToCreatedOrder(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t)
	h.gateway.CreateOrderFn = func(context.Context, []clients.LineItem) (int64, error) {
		assert.ErrorIs(t, h.cart.Add(product(9)), cart.ErrLocked, "cart must not change while the order is created")
		return 42, nil
	}

	require.NoError(t, h.orch.SubmitCart(context.Background()))

	assert.True(t, h.cart.Locked())
	require.ErrorIs(t, h.cart.SetQuantity(3, 5), cart.ErrLocked)
	require.ErrorIs(t, h.cart.Remove(3), cart.ErrLocked)
	assert.Equal(t, []cart.Item{{ProductID: 3, Quantity: 1}}, h.cart.Items())
}

func TestSubmitCart_TransportFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t)
	h.gateway.CreateOrderFn = func(context.Context, []clients.LineItem) (int64, error) {
		return 0, &clients.RequestError{Kind: clients.ErrOrderSubmission, Op: "create order", Err: errors.New("connection refused")}
	}

	err := h.orch.SubmitCart(context.Background())
	require.ErrorIs(t, err, clients.ErrOrderSubmission)

	v := h.orch.View()
	assert.Equal(t, StateCartReview, v.State)
	assert.Equal(t, FailureTransport, v.Failure.Kind)
	assert.False(t, h.cart.Locked(), "cart is editable again after a failed order")
	require.NoError(t, h.cart.Add(product(4)))
}

func TestSubmitShipping_ValidationBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t)
	require.NoError(t, h.orch.SubmitCart(context.Background()))

	info := shipping()
	info.PostalCode = ""
	err := h.orch.SubmitShipping(context.Background(), "a@b.c", info)
	require.ErrorIs(t, err, clients.ErrValidation)
	assert.Zero(t, h.gateway.updates.Load())

	v := h.orch.View()
	assert.Equal(t, StateOrderCreated, v.State)
	assert.Equal(t, []string{"postal_code"}, v.Failure.Fields)
}

func TestSubmitShipping_ServerFailureStays(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t)
	require.NoError(t, h.orch.SubmitCart(context.Background()))
	h.gateway.UpdateShippingFn = func(context.Context, int64, string, clients.ShippingInformation) error {
		return &clients.RequestError{Kind: clients.ErrOrderUpdate, Op: "update shipping", Err: &clients.APIError{StatusCode: 422, Code: "missing-fields", Message: "Shipping info & email required"}}
	}

	require.ErrorIs(t, h.orch.SubmitShipping(context.Background(), "a@b.c", shipping()), clients.ErrOrderUpdate)
	v := h.orch.View()
	assert.Equal(t, StateOrderCreated, v.State)
	assert.Equal(t, "Shipping info & email required", v.Failure.Message)

	h.gateway.UpdateShippingFn = nil
	require.NoError(t, h.orch.SubmitShipping(context.Background(), "a@b.c", shipping()))
	assert.Equal(t, StateShippingCaptured, h.orch.State())
	assert.Nil(t, h.orch.View().Failure)
}

func TestSubmitShipping_CorrectionAllowed(t *testing.T) {
	h := newHarness(t)
	h.toShipping(t)

	require.NoError(t, h.orch.SubmitShipping(context.Background(), "other@b.c", shipping()))
	assert.Equal(t, StateShippingCaptured, h.orch.State())
	assert.Equal(t, int32(2), h.gateway.updates.Load())
}

func TestPayment_ConfirmedOnlyWhenOrderPaid(t *testing.T) {
	h := newHarness(t)
	h.toShipping(t)
	h.jobs.set("job-1", clients.JobQueued, clients.JobStarted, clients.JobFinished)

	jobID, err := h.orch.SubmitPayment(context.Background(), card())
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)

	v := h.wait(t)
	assert.Equal(t, StatePaymentConfirmed, v.State)
	require.NotNil(t, v.Order)
	assert.True(t, v.Order.Paid)
	assert.Nil(t, v.Failure)

	polls := h.jobs.callsFor("job-1")
	assert.Equal(t, 3, polls)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, polls, h.jobs.callsFor("job-1"), "no job fetch after termination")

	results := h.sink.all()
	require.Len(t, results, 1)
	assert.True(t, results[0].Paid)
	assert.Equal(t, StatePaymentConfirmed, results[0].State)
	assert.Equal(t, 3, results[0].Polls)
	assert.Equal(t, "job-1", results[0].JobID)
}

func TestPayment_FinishedButUnpaidIsFailure(t *testing.T) {
	h := newHarness(t)
	h.toShipping(t)
	h.jobs.set("job-1", clients.JobFinished)
	h.gateway.FetchOrderFn = func(_ context.Context, id int64) (clients.Order, error) {
		return clients.Order{ID: id, Paid: false}, nil
	}

	_, err := h.orch.SubmitPayment(context.Background(), card())
	require.NoError(t, err)

	v := h.wait(t)
	assert.Equal(t, StatePaymentFailed, v.State)
	require.NotNil(t, v.Failure)
	assert.Equal(t, FailurePayment, v.Failure.Kind)
	assert.Equal(t, int32(1), h.gateway.fetches.Load())

	results := h.sink.all()
	require.Len(t, results, 1)
	assert.False(t, results[0].Paid)
}

func TestPayment_RetryAfterFailureUsesNewJob(t *testing.T) {
	h := newHarness(t)
	h.toShipping(t)
	h.jobs.set("job-1", clients.JobFailed)
	h.jobs.set("job-2", clients.JobFinished)

	_, err := h.orch.SubmitPayment(context.Background(), card())
	require.NoError(t, err)
	v := h.wait(t)
	require.Equal(t, StatePaymentFailed, v.State)
	assert.Equal(t, FailurePayment, v.Failure.Kind)
	assert.Zero(t, h.gateway.fetches.Load(), "failed job needs no verification")

	jobID, err := h.orch.SubmitPayment(context.Background(), card())
	require.NoError(t, err)
	assert.Equal(t, "job-2", jobID)

	v = h.wait(t)
	assert.Equal(t, StatePaymentConfirmed, v.State)
	assert.Equal(t, "job-2", v.JobID)

	results := h.sink.all()
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Attempt)
	assert.Equal(t, 2, results[1].Attempt)
}

func TestPayment_MissingJobIDReturnsToPaymentForm(t *testing.T) {
	h := newHarness(t)
	h.toShipping(t)
	h.gateway.SubmitPaymentFn = func(context.Context, int64, clients.CreditCard) (string, error) {
		return "", &clients.RequestError{Kind: clients.ErrPaymentSubmission, Op: "submit payment", Err: fmt.Errorf("%w: no job_id", clients.ErrContract)}
	}

	_, err := h.orch.SubmitPayment(context.Background(), card())
	require.ErrorIs(t, err, clients.ErrPaymentSubmission)

	v := h.orch.View()
	assert.Equal(t, StateShippingCaptured, v.State)
	assert.Equal(t, FailureContract, v.Failure.Kind)
	assert.Empty(t, v.JobID)
	assert.Empty(t, h.sink.all())
}

func TestPayment_CardValidation(t *testing.T) {
	h := newHarness(t)
	h.toShipping(t)
	c := card()
	c.ExpirationYear = " "

	_, err := h.orch.SubmitPayment(context.Background(), c)
	require.ErrorIs(t, err, clients.ErrValidation)
	assert.Zero(t, h.gateway.payments.Load())
	assert.Equal(t, StateShippingCaptured, h.orch.State())
}

func TestPayment_PollingTimeout(t *testing.T) {
	h := newHarness(t)
	h.pollCfg.MaxAttempts = 3
	h.toShipping(t)

	_, err := h.orch.SubmitPayment(context.Background(), card())
	require.NoError(t, err)

	v := h.wait(t)
	assert.Equal(t, StatePaymentFailed, v.State)
	assert.Equal(t, FailureTimeout, v.Failure.Kind)
	assert.Zero(t, h.gateway.fetches.Load())
}

func TestPayment_VerificationFetchFails(t *testing.T) {
	h := newHarness(t)
	h.toShipping(t)
	h.jobs.set("job-1", clients.JobFinished)
	h.gateway.FetchOrderFn = func(context.Context, int64) (clients.Order, error) {
		return clients.Order{}, &clients.RequestError{Kind: clients.ErrOrderFetch, Op: "fetch order", Err: errors.New("timeout")}
	}

	_, err := h.orch.SubmitPayment(context.Background(), card())
	require.NoError(t, err)

	v := h.wait(t)
	assert.Equal(t, StatePaymentFailed, v.State)
	assert.Equal(t, FailureTransport, v.Failure.Kind)
	assert.Equal(t, ErrPaymentUnverified.Error(), v.Failure.Message)
}

func TestPayment_AlreadyPaidReconciles(t *testing.T) {
	h := newHarness(t)
	h.toShipping(t)
	h.gateway.SubmitPaymentFn = func(context.Context, int64, clients.CreditCard) (string, error) {
		return "", &clients.RequestError{Kind: clients.ErrOrderUpdate, Op: "submit payment",
			Err: &clients.APIError{StatusCode: 409, Field: "order", Code: clients.CodeAlreadyPaid}}
	}

	jobID, err := h.orch.SubmitPayment(context.Background(), card())
	require.NoError(t, err)
	assert.Empty(t, jobID)

	v := h.orch.View()
	assert.Equal(t, StatePaymentConfirmed, v.State)
	require.Len(t, h.sink.all(), 1)
}

func TestPayment_AlreadyPaidButOrderUnpaid(t *testing.T) {
	h := newHarness(t)
	h.toShipping(t)
	h.gateway.SubmitPaymentFn = func(context.Context, int64, clients.CreditCard) (string, error) {
		return "", &clients.RequestError{Kind: clients.ErrOrderUpdate, Op: "submit payment",
			Err: &clients.APIError{StatusCode: 409, Field: "order", Code: clients.CodeAlreadyPaid}}
	}
	h.gateway.FetchOrderFn = func(_ context.Context, id int64) (clients.Order, error) {
		return clients.Order{ID: id}, nil
	}

	_, err := h.orch.SubmitPayment(context.Background(), card())
	require.ErrorIs(t, err, clients.ErrOrderUpdate)
	assert.Equal(t, StateShippingCaptured, h.orch.State())
}

func TestIllegalTransitions(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.SubmitPayment(context.Background(), card())
	require.ErrorIs(t, err, ErrIllegalTransition)
	require.ErrorIs(t, h.orch.SubmitShipping(context.Background(), "a@b.c", shipping()), ErrIllegalTransition)

	h.toShipping(t)
	require.ErrorIs(t, h.orch.SubmitCart(context.Background()), ErrIllegalTransition)
}

func TestPayment_RejectedWhilePolling(t *testing.T) {
	h := newHarness(t)
	h.toShipping(t)

	_, err := h.orch.SubmitPayment(context.Background(), card())
	require.NoError(t, err)
	require.Equal(t, StatePollingPayment, h.orch.State())

	_, err = h.orch.SubmitPayment(context.Background(), card())
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, int32(1), h.gateway.payments.Load())

	// The running poller keeps ownership of the order.
	assert.Equal(t, "job-1", h.orch.View().JobID)
	seen := h.jobs.callsFor("job-1")
	require.Eventually(t, func() bool { return h.jobs.callsFor("job-1") > seen }, time.Second, 2*time.Millisecond)
	assert.Equal(t, StatePollingPayment, h.orch.State())
}

func TestBusyGuard(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	h.gateway.CreateOrderFn = func(context.Context, []clients.LineItem) (int64, error) {
		close(entered)
		<-release
		return 9, nil
	}

	errCh := make(chan error, 1)
	go func() { errCh <- h.orch.SubmitCart(context.Background()) }()
	<-entered

	assert.True(t, h.orch.View().Busy)
	require.ErrorIs(t, h.orch.SubmitCart(context.Background()), ErrBusy)

	close(release)
	require.NoError(t, <-errCh)
	assert.Equal(t, int32(1), h.gateway.creates.Load())
	assert.Equal(t, StateOrderCreated, h.orch.State())
}

func TestClose_StopsPollingSilently(t *testing.T) {
	h := newHarness(t)
	h.toShipping(t)

	_, err := h.orch.SubmitPayment(context.Background(), card())
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	h.orch.Close()
	v := h.wait(t)
	assert.Equal(t, StatePollingPayment, v.State)

	calls := h.jobs.callsFor("job-1")
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, h.jobs.callsFor("job-1"), calls+1)
	assert.Empty(t, h.sink.all())

	require.ErrorIs(t, h.orch.SubmitCart(context.Background()), ErrClosed)
}

func TestRefreshOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.RefreshOrder(context.Background())
	require.ErrorIs(t, err, ErrNoOrder)

	h.fillCart(t)
	require.NoError(t, h.orch.SubmitCart(context.Background()))
	order, err := h.orch.RefreshOrder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), order.ID)
	assert.Equal(t, StateOrderCreated, h.orch.State())
	assert.NotNil(t, h.orch.View().Order)
}

func TestSinkErrorsDoNotChangeState(t *testing.T) {
	h := newHarness(t)
	h.orch.deps.Sinks = []Sink{SinkFunc(func(context.Context, Result) error { return errors.New("broker down") })}
	h.toShipping(t)
	h.jobs.set("job-1", clients.JobFinished)

	_, err := h.orch.SubmitPayment(context.Background(), card())
	require.NoError(t, err)
	assert.Equal(t, StatePaymentConfirmed, h.wait(t).State)
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, StateCartReview.CanTransitionTo(StateOrderCreated))
	assert.True(t, StatePollingPayment.CanTransitionTo(StatePaymentConfirmed))
	assert.True(t, StatePaymentFailed.CanTransitionTo(StatePaymentSubmitted))
	assert.False(t, StateCartReview.CanTransitionTo(StatePaymentConfirmed))
	assert.False(t, StateShippingCaptured.CanTransitionTo(StatePaymentConfirmed))
	assert.False(t, StateOrderCreated.CanTransitionTo(StatePollingPayment))
	for _, s := range []State{StateCartReview, StateShippingCaptured, StatePaymentFailed} {
		assert.False(t, StatePaymentConfirmed.CanTransitionTo(s))
	}
	assert.True(t, StatePaymentConfirmed.IsTerminal())
	assert.False(t, StatePaymentFailed.IsTerminal())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, FailureValidation, classify(&clients.ValidationError{Fields: []string{"cvv"}}))
	assert.Equal(t, FailureValidation, classify(clients.ErrEmptyCart))
	assert.Equal(t, FailureContract, classify(fmt.Errorf("x: %w", clients.ErrContract)))
	assert.Equal(t, FailureTimeout, classify(poller.ErrPollingTimeout))
	assert.Equal(t, FailurePayment, classify(ErrPaymentDeclined))
	assert.Equal(t, FailureTransport, classify(errors.New("dial tcp: refused")))
}
