package application

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"sentinel/internal/service/trust/domain"
)

func noopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("test")
}

// fakeOrderRepo 是带乐观并发语义的内存订单仓储
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order

	// 注入的钩子，用于模拟查询失败或在写入前抢先修改状态
	findErr             error
	beforeCondUpdate    func(o *domain.Order)
	conditionalFailures int
}

func newFakeOrderRepo(orders ...*domain.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		copied := *o
		r.orders[o.ID] = &copied
	}
	return r
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "order", ID: id}
	}
	copied := *o
	return &copied, nil
}

func (r *fakeOrderRepo) ListEligibleForAutomation(ctx context.Context, now time.Time) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []*domain.Order
	for _, o := range r.orders {
		switch o.State {
		case domain.StatePaid, domain.StateShipped, domain.StateDelivered:
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) ConditionalUpdate(ctx context.Context, order *domain.Order, expectedState domain.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.beforeCondUpdate != nil {
		r.beforeCondUpdate(r.orders[order.ID])
	}
	stored, ok := r.orders[order.ID]
	if !ok {
		return &domain.NotFoundError{Entity: "order", ID: order.ID}
	}
	if stored.State != expectedState {
		r.conditionalFailures++
		return &domain.ConflictError{Entity: "order", ID: order.ID}
	}
	copied := *order
	r.orders[order.ID] = &copied
	return nil
}

func (r *fakeOrderRepo) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *order
	r.orders[order.ID] = &copied
	return nil
}

func (r *fakeOrderRepo) stored(id string) *domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id]
}

// fakeFraudRepo 是内存风控事件仓储
type fakeFraudRepo struct {
	mu     sync.Mutex
	events map[string]*domain.FraudEvent

	findErr error
}

func newFakeFraudRepo(events ...*domain.FraudEvent) *fakeFraudRepo {
	r := &fakeFraudRepo{events: make(map[string]*domain.FraudEvent)}
	for _, e := range events {
		copied := *e
		r.events[e.ID] = &copied
	}
	return r
}

func (r *fakeFraudRepo) Save(ctx context.Context, event *domain.FraudEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *event
	r.events[event.ID] = &copied
	return nil
}

func (r *fakeFraudRepo) FindByID(ctx context.Context, id string) (*domain.FraudEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "fraud_event", ID: id}
	}
	copied := *e
	return &copied, nil
}

func (r *fakeFraudRepo) FindOpenByOrderID(ctx context.Context, orderID string) (*domain.FraudEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, e := range r.events {
		if e.OrderID == orderID && e.IsOpen() {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeFraudRepo) FindBlockingByOrderID(ctx context.Context, orderID string) (*domain.FraudEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, e := range r.events {
		if e.OrderID == orderID && e.BlocksAutomation() {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeFraudRepo) countByOrder(orderID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.OrderID == orderID {
			n++
		}
	}
	return n
}

// fakeReturnRepo 是内存退货申请仓储
type fakeReturnRepo struct {
	mu       sync.Mutex
	requests map[string]*domain.ReturnRequest

	findErr error
}

func newFakeReturnRepo(requests ...*domain.ReturnRequest) *fakeReturnRepo {
	r := &fakeReturnRepo{requests: make(map[string]*domain.ReturnRequest)}
	for _, req := range requests {
		copied := *req
		r.requests[req.ID] = &copied
	}
	return r
}

func (r *fakeReturnRepo) Save(ctx context.Context, req *domain.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *req
	r.requests[req.ID] = &copied
	return nil
}

func (r *fakeReturnRepo) FindByID(ctx context.Context, id string) (*domain.ReturnRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "return_request", ID: id}
	}
	copied := *req
	return &copied, nil
}

func (r *fakeReturnRepo) FindOpenByOrderID(ctx context.Context, orderID string) (*domain.ReturnRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, req := range r.requests {
		if req.OrderID == orderID && req.IsOpen() {
			copied := *req
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeReturnRepo) ConditionalUpdate(ctx context.Context, req *domain.ReturnRequest, expectedStatus domain.ReturnStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[req.ID]
	if !ok {
		return &domain.NotFoundError{Entity: "return_request", ID: req.ID}
	}
	if stored.Status != expectedStatus {
		return &domain.ConflictError{Entity: "return_request", ID: req.ID}
	}
	copied := *req
	r.requests[req.ID] = &copied
	return nil
}

func (r *fakeReturnRepo) stored(id string) *domain.ReturnRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[id]
}

// fakeNotifier 收集发出的通知事件
type fakeNotifier struct {
	mu     sync.Mutex
	events []*domain.NotificationEvent
	err    error
}

func (n *fakeNotifier) Send(ctx context.Context, event *domain.NotificationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) Close() error { return nil }

func (n *fakeNotifier) eventTypes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		out = append(out, e.EventType)
	}
	return out
}

// fakeLedger 记录退款调用，可注入失败
type fakeLedger struct {
	mu      sync.Mutex
	refunds []float64
	err     error
}

func (l *fakeLedger) Refund(ctx context.Context, orderID string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.refunds = append(l.refunds, amount)
	return nil
}

func (l *fakeLedger) refundCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.refunds)
}

// fakeRisk 返回固定的风险信号
type fakeRisk struct {
	signal domain.RiskSignal
	err    error
}

func (r *fakeRisk) Evaluate(order *domain.Order) (domain.RiskSignal, error) {
	if r.err != nil {
		return domain.RiskSignal{}, r.err
	}
	return r.signal, nil
}
