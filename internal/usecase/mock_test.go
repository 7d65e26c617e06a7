//go:build !integration

package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/adapter"
	"earlykickoff-backend/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func now() time.Time { return time.Now().Truncate(time.Millisecond) }

func ptr[T any](v T) *T { return &v }

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu     sync.Mutex
	Pushes []adapter.STKPushRequest
	Sim    bool

	InitiateSTKPushFunc func(ctx context.Context, req adapter.STKPushRequest) (adapter.STKPushResult, error)
	QuerySTKPushFunc    func(ctx context.Context, checkoutRequestID string) (adapter.STKQueryResult, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string    { return "mock" }
func (m *MockPaymentGateway) Simulated() bool { return m.Sim }

func (m *MockPaymentGateway) InitiateSTKPush(ctx context.Context, req adapter.STKPushRequest) (adapter.STKPushResult, error) {
	m.mu.Lock()
	m.Pushes = append(m.Pushes, req)
	n := len(m.Pushes)
	m.mu.Unlock()
	if m.InitiateSTKPushFunc != nil {
		return m.InitiateSTKPushFunc(ctx, req)
	}
	return adapter.STKPushResult{
		MerchantRequestID: fmt.Sprintf("MR-%d", n),
		CheckoutRequestID: fmt.Sprintf("ws_CO_%d", n),
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

func (m *MockPaymentGateway) QuerySTKPush(ctx context.Context, checkoutRequestID string) (adapter.STKQueryResult, error) {
	if m.QuerySTKPushFunc != nil {
		return m.QuerySTKPushFunc(ctx, checkoutRequestID)
	}
	return adapter.STKQueryResult{Final: false}, nil
}

// ---- Mock ObjectStorage ----

type MockStorage struct {
	mu      sync.Mutex
	Objects map[string][]byte // bucket/key -> bytes
	Puts    int

	PutFunc        func(ctx context.Context, bucket, key string, body []byte, contentType string) error
	PresignGetFunc func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

var _ adapter.ObjectStorage = (*MockStorage)(nil)

func NewMockStorage() *MockStorage {
	return &MockStorage{Objects: map[string][]byte{}}
}

func (s *MockStorage) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	if s.PutFunc != nil {
		return s.PutFunc(ctx, bucket, key, body, contentType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Puts++
	s.Objects[bucket+"/"+key] = body
	return nil
}

func (s *MockStorage) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if s.PresignGetFunc != nil {
		return s.PresignGetFunc(ctx, bucket, key, ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Objects[bucket+"/"+key]; !ok {
		return "", domain.ErrNotFound
	}
	return "https://s3.test/" + bucket + "/" + key + "?X-Amz-Signature=abc", nil
}

// ---- Mock QREncoder ----

type MockQREncoder struct {
	EncodePNGFunc func(payload string, size int) ([]byte, error)
	Payloads      []string
}

var _ adapter.QREncoder = (*MockQREncoder)(nil)

func (e *MockQREncoder) EncodePNG(payload string, size int) ([]byte, error) {
	if e.EncodePNGFunc != nil {
		return e.EncodePNGFunc(payload, size)
	}
	e.Payloads = append(e.Payloads, payload)
	return []byte("\x89PNG" + payload), nil
}

// ---- Mock ImageFetcher ----

type MockFetcher struct {
	URLs      []string
	FetchFunc func(ctx context.Context, url string) (*adapter.FetchedImage, error)
}

var _ adapter.ImageFetcher = (*MockFetcher)(nil)

func (f *MockFetcher) Fetch(ctx context.Context, url string) (*adapter.FetchedImage, error) {
	f.URLs = append(f.URLs, url)
	if f.FetchFunc != nil {
		return f.FetchFunc(ctx, url)
	}
	return &adapter.FetchedImage{
		Body:        io.NopCloser(bytes.NewReader([]byte("img"))),
		ContentType: "image/webp",
	}, nil
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	byID map[int64]*model.User

	FindByAuthIDFunc func(ctx context.Context, tx repository.Tx, authID string) (*model.User, error)
	SetVIPFunc       func(ctx context.Context, tx repository.Tx, id int64, expiresAt time.Time) error
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{byID: map[int64]*model.User{}}
}

func (r *MockUserRepo) Seed(u *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.byID[u.ID] = &cp
}

func (r *MockUserRepo) Get(id int64) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	if u := r.Get(id); u != nil {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) FindByAuthID(ctx context.Context, tx repository.Tx, authID string) (*model.User, error) {
	if r.FindByAuthIDFunc != nil {
		return r.FindByAuthIDFunc(ctx, tx, authID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.AuthID == authID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) SetVIP(ctx context.Context, tx repository.Tx, id int64, expiresAt time.Time) error {
	if r.SetVIPFunc != nil {
		return r.SetVIPFunc(ctx, tx, id, expiresAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if u.Role != model.RoleAdmin {
		u.Role = model.RoleVIP
	}
	exp := expiresAt
	u.VIPExpiresAt = &exp
	return nil
}

func (r *MockUserRepo) ClearExpiredVIP(ctx context.Context, tx repository.Tx, ids []int64, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		u, ok := r.byID[id]
		if !ok || u.Role != model.RoleVIP {
			continue
		}
		if u.VIPExpiresAt == nil || !u.VIPExpiresAt.After(at) {
			u.Role = model.RoleUser
			n++
		}
	}
	return n, nil
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu     sync.Mutex
	rows   map[int64]*model.Subscription
	nextID int64

	SaveFunc func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{rows: map[int64]*model.Subscription{}}
}

func (r *MockSubscriptionRepo) All() []*model.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Subscription, 0, len(r.rows))
	for _, s := range r.rows {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == 0 {
		r.nextID++
		s.ID = r.nextID
	} else if _, ok := r.rows[s.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *s
	r.rows[s.ID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) FindLatestPending(ctx context.Context, tx repository.Tx, userID int64) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.Subscription
	for _, s := range r.rows {
		if s.UserID != userID || s.Status != model.SubscriptionStatusPending {
			continue
		}
		if best == nil || s.ID > best.ID {
			best = s
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *MockSubscriptionRepo) FindByLastPayment(ctx context.Context, tx repository.Tx, paymentID int64) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.LastPaymentID != nil && *s.LastPaymentID == paymentID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) FindCurrent(ctx context.Context, tx repository.Tx, userID int64) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) ExpireEnded(ctx context.Context, tx repository.Tx, at time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, s := range r.rows {
		if s.Status == model.SubscriptionStatusActive && s.EndDate != nil && !s.EndDate.After(at) {
			s.Status = model.SubscriptionStatusExpired
			ids = append(ids, s.UserID)
		}
	}
	return ids, nil
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu     sync.Mutex
	data   map[int64]*model.Payment
	nextID int64

	CreateFunc              func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	TransitionIfPendingFunc func(ctx context.Context, tx repository.Tx, id int64, t model.PaymentTransition) (bool, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[int64]*model.Payment{}}
}

func (r *MockPaymentRepo) Seed(p *model.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		r.nextID++
		p.ID = r.nextID
	}
	cp := *p
	r.data[p.ID] = &cp
}

func (r *MockPaymentRepo) Get(id int64) *model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (r *MockPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, p)
	}
	if _, err := model.EncodeIntent(p.Intent); err != nil {
		return err
	}
	r.Seed(p)
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Payment, error) {
	if p := r.Get(id); p != nil {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, ref string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.data {
		if (p.ProviderTransactionID != nil && *p.ProviderTransactionID == ref) ||
			(p.CheckoutRequestID != nil && *p.CheckoutRequestID == ref) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) SetCheckoutRequestID(ctx context.Context, tx repository.Tx, id int64, checkoutRequestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.CheckoutRequestID = ptr(checkoutRequestID)
	if p.ProviderTransactionID == nil {
		p.ProviderTransactionID = ptr(checkoutRequestID)
	}
	return nil
}

func (r *MockPaymentRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, id int64, t model.PaymentTransition) (bool, error) {
	if r.TransitionIfPendingFunc != nil {
		return r.TransitionIfPendingFunc(ctx, tx, id, t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = t.Status
	if t.ProviderTransactionID != nil {
		p.ProviderTransactionID = t.ProviderTransactionID
	}
	if t.RawPayload != nil {
		p.RawPayload = t.RawPayload
	}
	if t.PaidAt != nil {
		p.PaidAt = t.PaidAt
	}
	if p.Intent == nil {
		p.Intent = t.Intent
	}
	return true, nil
}

func (r *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Mock WebhookEventRepository ----

type MockWebhookEventRepo struct {
	mu    sync.Mutex
	Saved []*model.WebhookEvent
}

var _ repository.WebhookEventRepository = (*MockWebhookEventRepo)(nil)

func (r *MockWebhookEventRepo) Save(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Saved = append(r.Saved, e)
	return nil
}

// ---- Mock FulfillmentTaskRepository ----

type MockTaskRepo struct {
	mu     sync.Mutex
	tasks  map[int64]*model.FulfillmentTask
	nextID int64

	EnqueueFunc func(ctx context.Context, tx repository.Tx, kind model.TaskKind, subjectID string, maxAttempts int) (*model.FulfillmentTask, error)
}

var _ repository.FulfillmentTaskRepository = (*MockTaskRepo)(nil)

func NewMockTaskRepo() *MockTaskRepo {
	return &MockTaskRepo{tasks: map[int64]*model.FulfillmentTask{}}
}

func (r *MockTaskRepo) All() []*model.FulfillmentTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.FulfillmentTask, 0, len(r.tasks))
	for _, t := range r.tasks {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MockTaskRepo) ByKind(kind model.TaskKind) []*model.FulfillmentTask {
	var out []*model.FulfillmentTask
	for _, t := range r.All() {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

func (r *MockTaskRepo) Enqueue(ctx context.Context, tx repository.Tx, kind model.TaskKind, subjectID string, maxAttempts int) (*model.FulfillmentTask, error) {
	if r.EnqueueFunc != nil {
		return r.EnqueueFunc(ctx, tx, kind, subjectID, maxAttempts)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	for _, t := range r.tasks {
		if t.Kind != kind || t.SubjectID != subjectID {
			continue
		}
		if t.Status == model.TaskStatusDone || t.Status == model.TaskStatusDead {
			t.Status, t.Attempts, t.LastError = model.TaskStatusQueued, 0, nil
		}
		cp := *t
		return &cp, nil
	}
	r.nextID++
	t := &model.FulfillmentTask{
		ID:          r.nextID,
		Kind:        kind,
		SubjectID:   subjectID,
		Status:      model.TaskStatusQueued,
		MaxAttempts: maxAttempts,
		NextRunAt:   time.Now(),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	r.tasks[t.ID] = t
	cp := *t
	return &cp, nil
}

func (r *MockTaskRepo) ClaimDue(ctx context.Context, tx repository.Tx, at, stuckBefore time.Time, limit int) ([]*model.FulfillmentTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.FulfillmentTask
	for _, t := range r.tasks {
		due := t.Status == model.TaskStatusQueued && !t.NextRunAt.After(at)
		stuck := t.Status == model.TaskStatusRunning && t.UpdatedAt.Before(stuckBefore)
		if !due && !stuck {
			continue
		}
		t.Status = model.TaskStatusRunning
		t.Attempts++
		t.UpdatedAt = at
		cp := *t
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *MockTaskRepo) ClaimByID(ctx context.Context, tx repository.Tx, id int64) (*model.FulfillmentTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if t.Status != model.TaskStatusQueued {
		return nil, domain.ErrTaskNotClaimable
	}
	t.Status = model.TaskStatusRunning
	t.Attempts++
	cp := *t
	return &cp, nil
}

func (r *MockTaskRepo) MarkDone(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status, t.LastError = model.TaskStatusDone, nil
	return nil
}

func (r *MockTaskRepo) MarkFailed(ctx context.Context, tx repository.Tx, id int64, errMsg string, nextRunAt time.Time, dead bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = model.TaskStatusQueued
	if dead {
		t.Status = model.TaskStatusDead
	}
	t.LastError = ptr(errMsg)
	t.NextRunAt = nextRunAt
	return nil
}

func (r *MockTaskRepo) Requeue(ctx context.Context, tx repository.Tx, id int64) (*model.FulfillmentTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if t.Status == model.TaskStatusRunning {
		return nil, domain.ErrTaskNotClaimable
	}
	t.Status, t.Attempts, t.LastError, t.NextRunAt = model.TaskStatusQueued, 0, nil, time.Now()
	cp := *t
	return &cp, nil
}

func (r *MockTaskRepo) List(ctx context.Context, tx repository.Tx, status model.TaskStatus, limit int) ([]*model.FulfillmentTask, error) {
	var out []*model.FulfillmentTask
	for _, t := range r.All() {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

// ---- Mock OrderRepository ----

type MockOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]*model.Order

	AttachQRFunc func(ctx context.Context, tx repository.Tx, id int64, objectPath, friendlyURL string) error
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: map[int64]*model.Order{}}
}

func (r *MockOrderRepo) Seed(o *model.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	if cp.Metadata == nil {
		cp.Metadata = map[string]any{}
	}
	r.orders[o.ID] = &cp
}

func (r *MockOrderRepo) Get(id int64) *model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		cp := *o
		return &cp
	}
	return nil
}

func (r *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Order, error) {
	if o := r.Get(id); o != nil {
		return o, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockOrderRepo) MarkPaid(ctx context.Context, tx repository.Tx, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || (o.Status != model.OrderStatusPending && o.Status != model.OrderStatusFailed) {
		return false, nil
	}
	o.Status = model.OrderStatusPaid
	return true, nil
}

func (r *MockOrderRepo) AttachQR(ctx context.Context, tx repository.Tx, id int64, objectPath, friendlyURL string) error {
	if r.AttachQRFunc != nil {
		return r.AttachQRFunc(ctx, tx, id, objectPath, friendlyURL)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	meta := map[string]any{}
	for k, v := range o.Metadata {
		meta[k] = v
	}
	meta["qr_object_path"] = objectPath
	o.Metadata = meta
	o.QRCode = ptr(objectPath)
	o.QRImageURL = ptr(friendlyURL)
	return nil
}

// ---- Mock TicketRepository ----

type MockTicketRepo struct {
	mu      sync.Mutex
	tickets []*model.Ticket
	nextID  int64

	CreateBatchFunc func(ctx context.Context, tx repository.Tx, tickets []*model.Ticket) error
}

var _ repository.TicketRepository = (*MockTicketRepo)(nil)

func NewMockTicketRepo() *MockTicketRepo { return &MockTicketRepo{} }

func (r *MockTicketRepo) All() []*model.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

func (r *MockTicketRepo) CreateBatch(ctx context.Context, tx repository.Tx, tickets []*model.Ticket) error {
	if r.CreateBatchFunc != nil {
		return r.CreateBatchFunc(ctx, tx, tickets)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	for _, t := range r.tickets {
		seen[t.TicketUID] = true
	}
	for _, t := range tickets {
		if seen[t.TicketUID] {
			return domain.ErrAlreadyExists
		}
		seen[t.TicketUID] = true
	}
	for _, t := range tickets {
		r.nextID++
		t.ID = r.nextID
		cp := *t
		r.tickets = append(r.tickets, &cp)
	}
	return nil
}

func (r *MockTicketRepo) FindByUID(ctx context.Context, tx repository.Tx, uid string) (*model.Ticket, error) {
	for _, t := range r.All() {
		if t.TicketUID == uid {
			return t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockTicketRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID int64) ([]*model.Ticket, error) {
	var out []*model.Ticket
	for _, t := range r.All() {
		if t.PaymentID != nil && *t.PaymentID == paymentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *MockTicketRepo) AttachQR(ctx context.Context, tx repository.Tx, uid, objectPath, friendlyURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.TicketUID == uid {
			t.QRObjectPath = ptr(objectPath)
			t.QRCodeURL = ptr(friendlyURL)
			return nil
		}
	}
	return domain.ErrNotFound
}

// ---- Mock CatalogRepository ----

type MockCatalogRepo struct {
	Events   map[int64]*model.Event
	Products map[int64]*model.Product
}

var _ repository.CatalogRepository = (*MockCatalogRepo)(nil)

func NewMockCatalogRepo() *MockCatalogRepo {
	return &MockCatalogRepo{Events: map[int64]*model.Event{}, Products: map[int64]*model.Product{}}
}

func (r *MockCatalogRepo) FindEvent(ctx context.Context, tx repository.Tx, id int64) (*model.Event, error) {
	if e, ok := r.Events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockCatalogRepo) FindProduct(ctx context.Context, tx repository.Tx, id int64) (*model.Product, error) {
	if p, ok := r.Products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

var errBoom = errors.New("boom")

func seedBuyer(users *MockUserRepo, id int64) *model.User {
	u := &model.User{ID: id, AuthID: "auth-" + strconv.FormatInt(id, 10), Role: model.RoleUser}
	users.Seed(u)
	return u
}

func seedEvent(catalog *MockCatalogRepo, id int64, price string) *model.Event {
	ev := &model.Event{ID: id, Name: "Derby Night", TicketPrice: decimal.RequireFromString(price)}
	catalog.Events[id] = ev
	return ev
}
