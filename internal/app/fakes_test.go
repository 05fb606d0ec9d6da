package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/refundly/webhooks/pkg/domain/refund"
	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/vendor"
	"github.com/refundly/webhooks/pkg/domain/webhook"
)

var errStore = errors.New("store unavailable")

// memorySubscriptions is an in-memory webhook.SubscriptionRepository.
type memorySubscriptions struct {
	mu        sync.Mutex
	seq       shared.ID
	rows      map[shared.ID]*webhook.Subscription
	getErr    error
	createErr error
}

func newMemorySubscriptions() *memorySubscriptions {
	return &memorySubscriptions{rows: make(map[shared.ID]*webhook.Subscription)}
}

func (m *memorySubscriptions) Create(_ context.Context, s *webhook.Subscription, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	held := 0
	for _, row := range m.rows {
		if row.VendorID() != s.VendorID() {
			continue
		}
		if row.URL() == s.URL() {
			return webhook.ErrSubscriptionExists
		}
		held++
	}
	if limit > 0 && held+1 > limit {
		return webhook.ErrSubscriptionLimitReached
	}
	m.seq++
	s.SetID(m.seq)
	m.rows[s.ID()] = s
	return nil
}

// add inserts an enabled subscription directly and returns it.
func (m *memorySubscriptions) add(vendorID shared.ID, url, key string) *webhook.Subscription {
	s, err := webhook.NewSubscription(vendorID, url, key)
	if err != nil {
		panic(err)
	}
	if err := m.Create(context.Background(), s, 0); err != nil {
		panic(err)
	}
	return s
}

func (m *memorySubscriptions) GetByID(_ context.Context, id shared.ID) (*webhook.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.rows[id]
	if !ok {
		return nil, webhook.ErrSubscriptionNotFound
	}
	return s, nil
}

func (m *memorySubscriptions) ListByVendor(_ context.Context, vendorID shared.ID) ([]*webhook.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*webhook.Subscription
	for _, s := range m.rows {
		if s.VendorID() == vendorID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (m *memorySubscriptions) Update(_ context.Context, s *webhook.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[s.ID()]; !ok {
		return webhook.ErrSubscriptionNotFound
	}
	m.rows[s.ID()] = s
	return nil
}

func (m *memorySubscriptions) Delete(_ context.Context, id shared.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return webhook.ErrSubscriptionNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memorySubscriptions) vendorOf(id shared.ID) (shared.ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return 0, false
	}
	return s.VendorID(), true
}

func (m *memorySubscriptions) enabledVendorOf(id shared.ID) (shared.ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok || !s.Enabled() {
		return 0, false
	}
	return s.VendorID(), true
}

func matchesRetention(a webhook.Attempt, createdAt time.Time, f webhook.RetentionFilter) bool {
	var old bool
	if a.LastTrialAt != nil {
		old = !a.LastTrialAt.After(f.Cutoff)
	} else {
		old = !createdAt.After(f.Cutoff)
	}
	if !old {
		return false
	}
	return !f.SettledOnly || a.Settled()
}

func pendingAt(a webhook.Attempt, notAfter time.Time) bool {
	return a.Eligible() && (a.LastTrialAt == nil || !a.LastTrialAt.After(notAfter))
}

// memoryEvents is an in-memory webhook.EventRepository.
type memoryEvents struct {
	mu        sync.Mutex
	seq       shared.ID
	rows      map[shared.ID]*webhook.Event
	subs      *memorySubscriptions
	createErr map[shared.ID]error // keyed by subscription id
	getErr    error
	recordErr error
	recorded  int
}

func newMemoryEvents(subs *memorySubscriptions) *memoryEvents {
	return &memoryEvents{rows: make(map[shared.ID]*webhook.Event), subs: subs, createErr: map[shared.ID]error{}}
}

func (m *memoryEvents) Create(_ context.Context, e *webhook.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createErr[e.SubscriptionID]; err != nil {
		return err
	}
	m.seq++
	e.ID = m.seq
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}

func (m *memoryEvents) put(e *webhook.Event) *webhook.Event {
	if err := m.Create(context.Background(), e); err != nil {
		panic(err)
	}
	return e
}

func (m *memoryEvents) get(id shared.ID) webhook.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memoryEvents) GetByID(_ context.Context, id shared.ID) (*webhook.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.rows[id]
	if !ok {
		return nil, webhook.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memoryEvents) RecordAttempt(_ context.Context, id shared.ID, success bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	e, ok := m.rows[id]
	if !ok {
		return webhook.ErrEventNotFound
	}
	e.Record(success, at)
	m.recorded++
	return nil
}

func (m *memoryEvents) ListPending(_ context.Context, notAfter time.Time) ([]webhook.PendingEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []webhook.PendingEvent
	for _, e := range m.rows {
		if !pendingAt(e.Attempt, notAfter) {
			continue
		}
		vendorID, ok := m.subs.enabledVendorOf(e.SubscriptionID)
		if !ok {
			continue
		}
		out = append(out, webhook.PendingEvent{EventID: e.ID, VendorID: vendorID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

func (m *memoryEvents) List(_ context.Context, f webhook.EventFilter) ([]*webhook.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*webhook.Event
	for _, e := range m.rows {
		if f.Sent != nil && e.Sent != *f.Sent {
			continue
		}
		if f.VendorID != nil {
			vendorID, ok := m.subs.vendorOf(e.SubscriptionID)
			if !ok || vendorID != *f.VendorID {
				continue
			}
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memoryEvents) CountForRetention(_ context.Context, f webhook.RetentionFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.rows {
		if matchesRetention(e.Attempt, e.CreatedAt, f) {
			n++
		}
	}
	return n, nil
}

func (m *memoryEvents) DeleteForRetention(_ context.Context, f webhook.RetentionFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.rows {
		if matchesRetention(e.Attempt, e.CreatedAt, f) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

// memoryRefundEvents is an in-memory webhook.RefundEventRepository.
type memoryRefundEvents struct {
	mu        sync.Mutex
	seq       shared.ID
	rows      map[shared.ID]*webhook.RefundEvent
	createErr error
	deleteErr error
}

func newMemoryRefundEvents() *memoryRefundEvents {
	return &memoryRefundEvents{rows: make(map[shared.ID]*webhook.RefundEvent)}
}

func (m *memoryRefundEvents) Create(_ context.Context, e *webhook.RefundEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	e.ID = m.seq
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}

func (m *memoryRefundEvents) put(e *webhook.RefundEvent) *webhook.RefundEvent {
	if err := m.Create(context.Background(), e); err != nil {
		panic(err)
	}
	return e
}

func (m *memoryRefundEvents) get(id shared.ID) webhook.RefundEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memoryRefundEvents) GetByID(_ context.Context, id shared.ID) (*webhook.RefundEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return nil, webhook.ErrRefundEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memoryRefundEvents) RecordAttempt(_ context.Context, id shared.ID, success bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return webhook.ErrRefundEventNotFound
	}
	e.Record(success, at)
	return nil
}

func (m *memoryRefundEvents) ListPending(_ context.Context, notAfter time.Time) ([]shared.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []shared.ID
	for _, e := range m.rows {
		if pendingAt(e.Attempt, notAfter) {
			out = append(out, e.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memoryRefundEvents) CountForRetention(_ context.Context, f webhook.RetentionFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.rows {
		if matchesRetention(e.Attempt, e.CreatedAt, f) {
			n++
		}
	}
	return n, nil
}

func (m *memoryRefundEvents) DeleteForRetention(_ context.Context, f webhook.RetentionFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	var n int64
	for id, e := range m.rows {
		if matchesRetention(e.Attempt, e.CreatedAt, f) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

// memoryRefunds is an in-memory refund.Repository.
type memoryRefunds struct {
	rows map[shared.ID]*refund.Details
	err  error
}

func newMemoryRefunds(details ...*refund.Details) *memoryRefunds {
	m := &memoryRefunds{rows: make(map[shared.ID]*refund.Details)}
	for _, d := range details {
		m.rows[d.ID] = d
	}
	return m
}

func (m *memoryRefunds) GetDetails(_ context.Context, id shared.ID) (*refund.Details, error) {
	if m.err != nil {
		return nil, m.err
	}
	d, ok := m.rows[id]
	if !ok {
		return nil, refund.ErrRefundNotFound
	}
	return d, nil
}

// memoryVendors is an in-memory vendor.Repository.
type memoryVendors struct {
	mu   sync.Mutex
	seq  shared.ID
	rows map[shared.ID]*vendor.Vendor
}

func newMemoryVendors(ids ...shared.ID) *memoryVendors {
	m := &memoryVendors{rows: make(map[shared.ID]*vendor.Vendor)}
	for _, id := range ids {
		m.rows[id] = vendor.Reconstruct(id, "vendor", time.Now())
		if id > m.seq {
			m.seq = id
		}
	}
	return m
}

func (m *memoryVendors) Create(_ context.Context, v *vendor.Vendor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	v.SetID(m.seq)
	m.rows[v.ID()] = v
	return nil
}

func (m *memoryVendors) GetByID(_ context.Context, id shared.ID) (*vendor.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[id]
	if !ok {
		return nil, vendor.ErrVendorNotFound
	}
	return v, nil
}

func (m *memoryVendors) ListIDs(_ context.Context) ([]shared.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]shared.ID, 0, len(m.rows))
	for id := range m.rows {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

type publishCall struct {
	queue  string
	bodies [][]byte
}

// fakeBroker records declarations and publishes.
type fakeBroker struct {
	mu        sync.Mutex
	declared  []string
	published []publishCall
	failQueue map[string]error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{failQueue: make(map[string]error)}
}

func (b *fakeBroker) DeclareQueue(_ context.Context, queue string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.declared = append(b.declared, queue)
	return nil
}

func (b *fakeBroker) Publish(_ context.Context, queue string, bodies ...[]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failQueue[queue]; err != nil {
		return err
	}
	b.published = append(b.published, publishCall{queue: queue, bodies: bodies})
	return nil
}

func (b *fakeBroker) calls() []publishCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]publishCall(nil), b.published...)
	sort.Slice(out, func(i, j int) bool { return out[i].queue < out[j].queue })
	return out
}

// fakeConsumers records registered queues.
type fakeConsumers struct {
	mu       sync.Mutex
	handlers map[string]func(context.Context, []byte)
	calls    int
	err      error
}

func newFakeConsumers() *fakeConsumers {
	return &fakeConsumers{handlers: make(map[string]func(context.Context, []byte))}
}

func (c *fakeConsumers) Register(queue string, handle func(context.Context, []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return c.err
	}
	c.handlers[queue] = handle
	return nil
}

// stubRegistrar satisfies vendorQueueRegistrar.
type stubRegistrar struct {
	mu      sync.Mutex
	vendors []shared.ID
	err     error
}

func (r *stubRegistrar) RegisterVendor(_ context.Context, vendorID shared.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.vendors = append(r.vendors, vendorID)
	return nil
}

type staticQueues []string

func (q staticQueues) List(context.Context) ([]string, error) { return q, nil }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func ptrTime(t time.Time) *time.Time { return &t }
