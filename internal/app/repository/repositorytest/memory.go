// Package repositorytest provides an in-memory repository.Repository for
// service tests.
package repositorytest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/pkg/tool"
	"github.com/fatflowers/matchpay/pkg/types"

	"gorm.io/datatypes"
)

type state struct {
	subjects    map[string]*models.Subject
	payments    map[string]*models.PaymentRecord
	members     map[string]*models.SubjectMember
	customers   map[string]*models.GatewayCustomer
	events      map[string]*models.ProcessedWebhookEvent
	paymentLogs []*models.PaymentLog
}

func newState() *state {
	return &state{
		subjects:  map[string]*models.Subject{},
		payments:  map[string]*models.PaymentRecord{},
		members:   map[string]*models.SubjectMember{},
		customers: map[string]*models.GatewayCustomer{},
		events:    map[string]*models.ProcessedWebhookEvent{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.subjects {
		c.subjects[k] = cloneSubject(v)
	}
	for k, v := range s.payments {
		cp := *v
		c.payments[k] = &cp
	}
	for k, v := range s.members {
		cp := *v
		c.members[k] = &cp
	}
	for k, v := range s.customers {
		cp := *v
		c.customers[k] = &cp
	}
	for k, v := range s.events {
		cp := *v
		c.events[k] = &cp
	}
	c.paymentLogs = slices.Clone(s.paymentLogs)
	return c
}

func cloneSubject(s *models.Subject) *models.Subject {
	cp := *s
	cp.Features = datatypes.NewJSONType(s.FeatureMap())
	return &cp
}

func memberKey(subjectID, userID string) string { return subjectID + "/" + userID }

// Memory is a repository.Repository kept in process memory. Transactions
// are serialized and roll back to a snapshot on error, and the unique
// constraints of the SQL schema are enforced on writes.
type Memory struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *state

	// deliveryLogs are written outside transactions and survive rollbacks.
	deliveryLogs map[string]*models.WebhookDeliveryLog
	// hooks run before the named operation and may inject a failure.
	hooks map[string]func() error
}

var _ repository.Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{st: newState(), deliveryLogs: map[string]*models.WebhookDeliveryLog{}, hooks: map[string]func() error{}}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.hooks, op)
		return
	}
	m.hooks[op] = func() error { return err }
}

func (m *Memory) hook(op string) error {
	if h, ok := m.hooks[op]; ok {
		return h()
	}
	return nil
}

func (m *Memory) Transaction(ctx context.Context, fn func(tx repository.Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	if err := m.hook("Transaction"); err != nil {
		m.mu.Unlock()
		return err
	}
	snapshot := m.st.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// PutSubject stores a copy of s.
func (m *Memory) PutSubject(s *models.Subject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.subjects[s.ID] = cloneSubject(s)
}

// PutPayment stores a copy of p without constraint checks.
func (m *Memory) PutPayment(p *models.PaymentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	if cp.ID == "" {
		cp.ID = tool.GenerateUUIDV7()
	}
	m.st.payments[cp.ID] = &cp
}

// Payments returns copies of every payment record of subjectID.
func (m *Memory) Payments(subjectID string) []*models.PaymentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PaymentRecord
	for _, p := range m.st.payments {
		if p.SubjectID == subjectID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) PaymentLogs() []*models.PaymentLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.st.paymentLogs)
}

func (m *Memory) DeliveryLog(id string) *models.WebhookDeliveryLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.deliveryLogs[id]
	if !ok {
		return nil
	}
	cp := *l
	return &cp
}

func (m *Memory) DeliveryLogs() []*models.WebhookDeliveryLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.WebhookDeliveryLog, 0, len(m.deliveryLogs))
	for _, l := range m.deliveryLogs {
		cp := *l
		out = append(out, &cp)
	}
	return out
}

func (m *Memory) GetSubject(ctx context.Context, subjectID string) (*models.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("GetSubject"); err != nil {
		return nil, err
	}
	s, ok := m.st.subjects[subjectID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSubject(s), nil
}

func (m *Memory) FindSubjectBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subscriptionID == "" {
		return nil, repository.ErrNotFound
	}
	for _, id := range m.subjectIDs() {
		if s := m.st.subjects[id]; s.Billing.GatewaySubscriptionID == subscriptionID {
			return cloneSubject(s), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Memory) ListSubjectsByCustomerID(ctx context.Context, customerID string) ([]*models.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("ListSubjectsByCustomerID"); err != nil {
		return nil, err
	}
	if customerID == "" {
		return nil, nil
	}
	var out []*models.Subject
	for _, id := range m.subjectIDs() {
		if s := m.st.subjects[id]; s.Billing.GatewayCustomerID == customerID {
			out = append(out, cloneSubject(s))
		}
	}
	return out, nil
}

// subjectIDs returns the subject ids in order. Callers hold m.mu.
func (m *Memory) subjectIDs() []string {
	ids := make([]string, 0, len(m.st.subjects))
	for id := range m.st.subjects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Memory) UpdateSubjectBilling(ctx context.Context, s *models.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("UpdateSubjectBilling"); err != nil {
		return err
	}
	cur, ok := m.st.subjects[s.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Plan = s.Plan
	cur.Features = datatypes.NewJSONType(s.FeatureMap())
	cur.Billing = s.Billing
	cur.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) AddVirtualAttendees(ctx context.Context, subjectID string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("AddVirtualAttendees"); err != nil {
		return err
	}
	cur, ok := m.st.subjects[subjectID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.VirtualAttendeesCount = max(cur.VirtualAttendeesCount+delta, 0)
	return nil
}

func (m *Memory) SetVirtualAttendees(ctx context.Context, subjectID string, count int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.st.subjects[subjectID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.VirtualAttendeesCount = count
	return nil
}

func (m *Memory) GetPayment(ctx context.Context, paymentID string) (*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.payments[paymentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) findPayment(match func(*models.PaymentRecord) bool) (*models.PaymentRecord, error) {
	for _, p := range m.sortedPayments() {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Memory) sortedPayments() []*models.PaymentRecord {
	out := make([]*models.PaymentRecord, 0, len(m.st.payments))
	for _, p := range m.st.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("GetPaymentByGatewayID"); err != nil {
		return nil, err
	}
	return m.findPayment(func(p *models.PaymentRecord) bool { return p.GatewayPaymentID == gatewayPaymentID })
}

func (m *Memory) FindActivePayment(ctx context.Context, subjectID, userID string) (*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findPayment(func(p *models.PaymentRecord) bool {
		return p.SubjectID == subjectID && p.UserID == userID && p.Status.Active()
	})
}

func (m *Memory) FindCompletedPayment(ctx context.Context, subjectID, userID string) (*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findPayment(func(p *models.PaymentRecord) bool {
		return p.SubjectID == subjectID && p.UserID == userID && p.Status == types.PaymentStatusCompleted
	})
}

func (m *Memory) ListCompletedPayments(ctx context.Context, subjectID string) ([]*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("ListCompletedPayments"); err != nil {
		return nil, err
	}
	var out []*models.PaymentRecord
	for _, p := range m.sortedPayments() {
		if p.SubjectID == subjectID && p.Status == types.PaymentStatusCompleted {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// checkPayment enforces the unique indexes of payment_record for p.
func (m *Memory) checkPayment(p *models.PaymentRecord) error {
	for id, other := range m.st.payments {
		if id == p.ID {
			continue
		}
		if other.GatewayPaymentID == p.GatewayPaymentID {
			return fmt.Errorf("%w: gateway_payment_id %s", repository.ErrDuplicate, p.GatewayPaymentID)
		}
		if p.Status.Active() && other.Status.Active() && other.SubjectID == p.SubjectID && other.UserID == p.UserID {
			return fmt.Errorf("%w: active payment for %s/%s", repository.ErrDuplicate, p.SubjectID, p.UserID)
		}
	}
	return nil
}

func (m *Memory) CreatePayment(ctx context.Context, p *models.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("CreatePayment"); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	if _, ok := m.st.payments[p.ID]; ok {
		return fmt.Errorf("%w: payment %s", repository.ErrDuplicate, p.ID)
	}
	if err := m.checkPayment(p); err != nil {
		return err
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	cp := *p
	m.st.payments[p.ID] = &cp
	return nil
}

func (m *Memory) UpdatePayment(ctx context.Context, p *models.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("UpdatePayment"); err != nil {
		return err
	}
	cur, ok := m.st.payments[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	next := *cur
	next.Status = p.Status
	next.RefundID = p.RefundID
	next.RefundReason = p.RefundReason
	next.FailureReason = p.FailureReason
	next.CompletedAt = p.CompletedAt
	next.RefundedAt = p.RefundedAt
	next.UpdatedAt = time.Now()
	if err := m.checkPayment(&next); err != nil {
		return err
	}
	m.st.payments[p.ID] = &next
	return nil
}

// ScanPayments supports eq and in filters, which is what the admin tests use.
func (m *Memory) ScanPayments(ctx context.Context, req *repository.ScanPaymentsRequest) ([]*models.PaymentRecord, int64, error) {
	if err := repository.NormalizeScan(req); err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.PaymentRecord
	for _, p := range m.sortedPayments() {
		if matchFilters(p, req.Filters) {
			cp := *p
			matched = append(matched, &cp)
		}
	}
	if req.SortOrder != "asc" {
		slices.Reverse(matched)
	}
	total := int64(len(matched))
	if req.From >= len(matched) {
		return nil, total, nil
	}
	end := min(req.From+req.Size, len(matched))
	return matched[req.From:end], total, nil
}

func paymentColumn(p *models.PaymentRecord, column string) string {
	switch column {
	case "id":
		return p.ID
	case "subject_id":
		return p.SubjectID
	case "user_id":
		return p.UserID
	case "product_id":
		return p.ProductID
	case "status":
		return string(p.Status)
	case "gateway_payment_id":
		return p.GatewayPaymentID
	case "currency":
		return p.Currency
	case "amount":
		return fmt.Sprint(p.Amount)
	default:
		return ""
	}
}

func matchFilters(p *models.PaymentRecord, filters []*types.CommonFilter) bool {
	for _, f := range filters {
		got := paymentColumn(p, f.Field)
		switch f.Operator {
		case types.CommonFilterOperatorEq:
			if got != fmt.Sprint(f.Values[0]) {
				return false
			}
		case types.CommonFilterOperatorIn:
			if !slices.ContainsFunc(f.Values, func(v any) bool { return fmt.Sprint(v) == got }) {
				return false
			}
		case types.CommonFilterOperatorNotEq:
			if got == fmt.Sprint(f.Values[0]) {
				return false
			}
		default:
			panic("repositorytest: unsupported operator " + string(f.Operator))
		}
	}
	return true
}

func (m *Memory) SummarizePayments(ctx context.Context, subjectID string) ([]*repository.PaymentStatusTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byStatus := map[types.PaymentStatus]*repository.PaymentStatusTotal{}
	for _, p := range m.st.payments {
		if p.SubjectID != subjectID {
			continue
		}
		t, ok := byStatus[p.Status]
		if !ok {
			t = &repository.PaymentStatusTotal{Status: p.Status}
			byStatus[p.Status] = t
		}
		t.Count++
		t.Amount += p.Amount
	}
	out := make([]*repository.PaymentStatusTotal, 0, len(byStatus))
	for _, t := range byStatus {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(string(out[i].Status), string(out[j].Status)) < 0 })
	return out, nil
}

func (m *Memory) CreatePaymentLog(ctx context.Context, l *models.PaymentLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = tool.GenerateUUIDV7()
	}
	cp := *l
	m.st.paymentLogs = append(m.st.paymentLogs, &cp)
	return nil
}

func (m *Memory) GetMember(ctx context.Context, subjectID, userID string) (*models.SubjectMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.st.members[memberKey(subjectID, userID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *Memory) MarkMemberPaid(ctx context.Context, subjectID, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("MarkMemberPaid"); err != nil {
		return err
	}
	key := memberKey(subjectID, userID)
	mem, ok := m.st.members[key]
	if !ok {
		mem = &models.SubjectMember{ID: tool.GenerateUUIDV7(), SubjectID: subjectID, UserID: userID, CreatedAt: at}
		m.st.members[key] = mem
	}
	mem.HasPaid = true
	mem.PaidAt = &at
	mem.RefundedAt = nil
	mem.UpdatedAt = at
	return nil
}

func (m *Memory) MarkMemberRefunded(ctx context.Context, subjectID, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("MarkMemberRefunded"); err != nil {
		return err
	}
	if mem, ok := m.st.members[memberKey(subjectID, userID)]; ok {
		mem.HasPaid = false
		mem.RefundedAt = &at
		mem.UpdatedAt = at
	}
	return nil
}

func (m *Memory) GetGatewayCustomer(ctx context.Context, userID string) (*models.GatewayCustomer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.st.customers[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) SaveGatewayCustomer(ctx context.Context, c *models.GatewayCustomer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, other := range m.st.customers {
		if uid != c.UserID && other.CustomerID == c.CustomerID {
			return fmt.Errorf("%w: customer %s", repository.ErrDuplicate, c.CustomerID)
		}
	}
	cp := *c
	m.st.customers[c.UserID] = &cp
	return nil
}

func (m *Memory) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("IsEventProcessed"); err != nil {
		return false, err
	}
	_, ok := m.st.events[eventID]
	return ok, nil
}

func (m *Memory) RecordProcessedEvent(ctx context.Context, e *models.ProcessedWebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("RecordProcessedEvent"); err != nil {
		return err
	}
	if _, ok := m.st.events[e.EventID]; ok {
		return fmt.Errorf("%w: event %s", repository.ErrDuplicate, e.EventID)
	}
	cp := *e
	m.st.events[e.EventID] = &cp
	return nil
}

// ProcessedEvents returns the ids in the ledger.
func (m *Memory) ProcessedEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.st.events))
	for id := range m.st.events {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) SaveWebhookDeliveryLog(ctx context.Context, l *models.WebhookDeliveryLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.deliveryLogs[l.ID] = &cp
	return nil
}
