package approvals

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/workflow"
)

type stubApprovalRepo struct {
	mu       sync.Mutex
	requests map[string]ApprovalRequest
}

func newStubApprovalRepo(requests ...ApprovalRequest) *stubApprovalRepo {
	repo := &stubApprovalRepo{requests: map[string]ApprovalRequest{}}
	for _, r := range requests {
		repo.requests[r.ID] = r
	}
	return repo
}

func (s *stubApprovalRepo) Get(ctx context.Context, id string) (ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return ApprovalRequest{}, shared.ErrNotFound
	}
	return r, nil
}

func (s *stubApprovalRepo) GetForTenant(ctx context.Context, tenantID, id string) (ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.TenantID != tenantID {
		return ApprovalRequest{}, shared.ErrNotFound
	}
	return r, nil
}

func (s *stubApprovalRepo) ListPending(ctx context.Context, tenantID string, page, perPage int) ([]ApprovalRequest, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ApprovalRequest
	for _, r := range s.requests {
		if r.TenantID == tenantID && r.Status == StatusPending {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

// Decide mirrors the production conditional update: the status predicate is
// evaluated atomically against the stored row, not a caller-held copy.
func (s *stubApprovalRepo) Decide(ctx context.Context, id, status, deciderID string, decidedAt time.Time, rejectionReason *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.Status != StatusPending {
		return false, nil
	}
	r.Status = status
	r.DecidedBy = &deciderID
	r.DecidedAt = &decidedAt
	r.RejectionReason = rejectionReason
	s.requests[id] = r
	return true, nil
}

type entityKey struct {
	entity workflow.EntityType
	id     string
}

type stubEntityStore struct {
	mu         sync.Mutex
	tenantID   string
	states     map[entityKey]string
	lostReason map[entityKey]*string
}

func newStubEntityStore(tenantID string) *stubEntityStore {
	return &stubEntityStore{
		tenantID:   tenantID,
		states:     map[entityKey]string{},
		lostReason: map[entityKey]*string{},
	}
}

func (s *stubEntityStore) set(entity workflow.EntityType, id, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[entityKey{entity, id}] = state
}

func (s *stubEntityStore) GetEntityState(ctx context.Context, tenantID string, entity workflow.EntityType, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tenantID != s.tenantID {
		return "", shared.ErrNotFound
	}
	state, ok := s.states[entityKey{entity, id}]
	if !ok {
		return "", shared.ErrNotFound
	}
	return state, nil
}

func (s *stubEntityStore) ApplyEntityState(ctx context.Context, tenantID string, entity workflow.EntityType, id, state string, lostReason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tenantID != s.tenantID {
		return shared.ErrNotFound
	}
	key := entityKey{entity, id}
	if _, ok := s.states[key]; !ok {
		return shared.ErrNotFound
	}
	s.states[key] = state
	if lostReason != nil {
		s.lostReason[key] = lostReason
	}
	return nil
}

type stubAccess struct {
	users map[string]authz.ActingUser
	deny  map[string]bool
}

func (s *stubAccess) ActingUser(ctx context.Context, userID string) (authz.ActingUser, error) {
	u, ok := s.users[userID]
	if !ok {
		return authz.ActingUser{}, shared.ErrNotFound
	}
	return u, nil
}

func (s *stubAccess) HasPermission(ctx context.Context, userID, moduleCode string, action authz.Action) (bool, error) {
	if s.deny[userID] {
		return false, nil
	}
	_, ok := s.users[userID]
	return ok, nil
}

type recordedNotification struct {
	tenantID, userID, title, message string
	relatedTo                        workflow.EntityType
	relatedID                        string
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []recordedNotification
}

func (s *stubNotifier) Notify(ctx context.Context, tenantID, userID, title, message string, relatedTo workflow.EntityType, relatedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, recordedNotification{tenantID, userID, title, message, relatedTo, relatedID})
	return nil
}

type stubMailer struct {
	mu     sync.Mutex
	queued []DecisionEmail
}

func (s *stubMailer) EnqueueDecisionEmail(ctx context.Context, email DecisionEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, email)
	return nil
}

type stubAuditor struct {
	mu      sync.Mutex
	entries []shared.AuditLog
}

func (s *stubAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, log)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	service  *Service
	repo     *stubApprovalRepo
	entities *stubEntityStore
	access   *stubAccess
	notifier *stubNotifier
	mailer   *stubMailer
	auditor  *stubAuditor
}

func newFixture(requests ...ApprovalRequest) *fixture {
	repo := newStubApprovalRepo(requests...)
	entities := newStubEntityStore("t1")
	access := &stubAccess{
		users: map[string]authz.ActingUser{
			"approver": {ID: "approver", TenantID: "t1", RoleKind: authz.RoleKindStandard},
			"other":    {ID: "other", TenantID: "t1", RoleKind: authz.RoleKindStandard},
			"outsider": {ID: "outsider", TenantID: "t2", RoleKind: authz.RoleKindAdmin},
			"root":     {ID: "root", TenantID: "t9", RoleKind: authz.RoleKindSuperAdmin},
		},
		deny: map[string]bool{},
	}
	notifier := &stubNotifier{}
	mailer := &stubMailer{}
	auditor := &stubAuditor{}
	svc := NewService(discardLogger(), repo, entities, access, auditor, notifier, mailer,
		shared.NewBestEffort(discardLogger(), time.Second), nil)
	return &fixture{
		service:  svc,
		repo:     repo,
		entities: entities,
		access:   access,
		notifier: notifier,
		mailer:   mailer,
		auditor:  auditor,
	}
}

func pendingRequest(id string, entity workflow.EntityType, relatedID string) ApprovalRequest {
	return ApprovalRequest{
		ID:          id,
		TenantID:    "t1",
		RelatedTo:   entity,
		RelatedID:   relatedID,
		Status:      StatusPending,
		RequestedBy: "requester",
		CreatedAt:   time.Now(),
	}
}

func TestApproveQuoteAcceptsItExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(pendingRequest("req-1", workflow.EntityQuote, "quote-1"))
	f.entities.set(workflow.EntityQuote, "quote-1", workflow.QuoteStatusSent)

	decided, err := f.service.Decide(ctx, "req-1", "approver", DecisionApprove, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, "approver", *decided.DecidedBy)
	assert.NotNil(t, decided.DecidedAt)

	state, err := f.entities.GetEntityState(ctx, "t1", workflow.EntityQuote, "quote-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.QuoteStatusAccepted, state)

	// A second approve attempt conflicts and leaves the quote untouched.
	_, err = f.service.Decide(ctx, "req-1", "approver", DecisionApprove, nil)
	require.ErrorIs(t, err, shared.ErrStateConflict)
	state, err = f.entities.GetEntityState(ctx, "t1", workflow.EntityQuote, "quote-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.QuoteStatusAccepted, state)
}

func TestRejectDealRecordsLostReason(t *testing.T) {
	ctx := context.Background()
	f := newFixture(pendingRequest("req-1", workflow.EntityDeal, "deal-1"))
	f.entities.set(workflow.EntityDeal, "deal-1", workflow.DealStageProposal)

	reason := "budget cut"
	decided, err := f.service.Decide(ctx, "req-1", "approver", DecisionReject, &reason)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, decided.Status)
	require.NotNil(t, decided.RejectionReason)
	assert.Equal(t, reason, *decided.RejectionReason)

	state, err := f.entities.GetEntityState(ctx, "t1", workflow.EntityDeal, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.DealStageLost, state)

	lost := f.entities.lostReason[entityKey{workflow.EntityDeal, "deal-1"}]
	require.NotNil(t, lost)
	assert.Equal(t, "Approval rejected: budget cut", *lost)
}

func TestRejectWithoutReasonFailsValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(pendingRequest("req-1", workflow.EntityQuote, "quote-1"))
	f.entities.set(workflow.EntityQuote, "quote-1", workflow.QuoteStatusSent)

	_, err := f.service.Decide(ctx, "req-1", "approver", DecisionReject, nil)
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)

	stored, getErr := f.repo.Get(ctx, "req-1")
	require.NoError(t, getErr)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestApproveIgnoresSuppliedReason(t *testing.T) {
	ctx := context.Background()
	f := newFixture(pendingRequest("req-1", workflow.EntityInvoice, "inv-1"))
	f.entities.set(workflow.EntityInvoice, "inv-1", workflow.InvoiceStatusPendingApproval)

	reason := "looks good"
	decided, err := f.service.Decide(ctx, "req-1", "approver", DecisionApprove, &reason)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, decided.Status)
	assert.Nil(t, decided.RejectionReason)
}

func TestApproverListEnforcement(t *testing.T) {
	ctx := context.Background()

	t.Run("user outside the list is denied despite module permission", func(t *testing.T) {
		request := pendingRequest("req-1", workflow.EntityQuote, "quote-1")
		request.ApproverIDs = []string{"approver"}
		f := newFixture(request)
		f.entities.set(workflow.EntityQuote, "quote-1", workflow.QuoteStatusSent)

		_, err := f.service.Decide(ctx, "req-1", "other", DecisionApprove, nil)
		require.ErrorIs(t, err, shared.ErrForbidden)

		stored, getErr := f.repo.Get(ctx, "req-1")
		require.NoError(t, getErr)
		assert.Equal(t, StatusPending, stored.Status)
	})

	t.Run("super user bypasses the list", func(t *testing.T) {
		request := pendingRequest("req-1", workflow.EntityQuote, "quote-1")
		request.ApproverIDs = []string{"approver"}
		f := newFixture(request)
		f.entities.set(workflow.EntityQuote, "quote-1", workflow.QuoteStatusSent)

		decided, err := f.service.Decide(ctx, "req-1", "root", DecisionApprove, nil)
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, decided.Status)
	})

	t.Run("listed user passes", func(t *testing.T) {
		request := pendingRequest("req-1", workflow.EntityQuote, "quote-1")
		request.ApproverIDs = []string{"approver"}
		f := newFixture(request)
		f.entities.set(workflow.EntityQuote, "quote-1", workflow.QuoteStatusSent)

		decided, err := f.service.Decide(ctx, "req-1", "approver", DecisionApprove, nil)
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, decided.Status)
	})
}

func TestDecideRequiresModulePermission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(pendingRequest("req-1", workflow.EntityQuote, "quote-1"))
	f.entities.set(workflow.EntityQuote, "quote-1", workflow.QuoteStatusSent)
	f.access.deny["approver"] = true

	_, err := f.service.Decide(ctx, "req-1", "approver", DecisionApprove, nil)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDecideCrossTenantIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(pendingRequest("req-1", workflow.EntityQuote, "quote-1"))
	f.entities.set(workflow.EntityQuote, "quote-1", workflow.QuoteStatusSent)

	// An admin from another tenant cannot even see the row.
	_, err := f.service.Decide(ctx, "req-1", "outsider", DecisionApprove, nil)
	require.ErrorIs(t, err, shared.ErrNotFound)

	// A super user can.
	decided, err := f.service.Decide(ctx, "req-1", "root", DecisionApprove, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, decided.Status)
}

func TestConcurrentDecideHasExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(pendingRequest("req-1", workflow.EntityQuote, "quote-1"))
	f.entities.set(workflow.EntityQuote, "quote-1", workflow.QuoteStatusSent)

	const callers = 8
	reason := "beaten to it"
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.service.Decide(ctx, "req-1", "approver", DecisionApprove, nil)
			} else {
				_, err = f.service.Decide(ctx, "req-1", "other", DecisionReject, &reason)
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, shared.ErrStateConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, conflicts)

	stored, err := f.repo.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Contains(t, []string{StatusApproved, StatusRejected}, stored.Status)
}

func TestDecisionOutcomeTable(t *testing.T) {
	ctx := context.Background()
	reason := "not this quarter"

	cases := []struct {
		name      string
		entity    workflow.EntityType
		fromState string
		decision  Decision
		reason    *string
		wantState string
	}{
		{"quote approve", workflow.EntityQuote, workflow.QuoteStatusSent, DecisionApprove, nil, workflow.QuoteStatusAccepted},
		{"quote reject", workflow.EntityQuote, workflow.QuoteStatusSent, DecisionReject, &reason, workflow.QuoteStatusRejected},
		{"deal approve", workflow.EntityDeal, workflow.DealStageProposal, DecisionApprove, nil, workflow.DealStageNegotiation},
		{"deal reject", workflow.EntityDeal, workflow.DealStageProposal, DecisionReject, &reason, workflow.DealStageLost},
		{"invoice approve", workflow.EntityInvoice, workflow.InvoiceStatusPendingApproval, DecisionApprove, nil, workflow.InvoiceStatusApproved},
		{"invoice reject", workflow.EntityInvoice, workflow.InvoiceStatusPendingApproval, DecisionReject, &reason, workflow.InvoiceStatusDraft},
		{"contract approve", workflow.EntityContract, workflow.ContractStatusPendingApproval, DecisionApprove, nil, workflow.ContractStatusActive},
		{"contract reject", workflow.EntityContract, workflow.ContractStatusPendingApproval, DecisionReject, &reason, workflow.ContractStatusDraft},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(pendingRequest("req-1", tc.entity, "ent-1"))
			f.entities.set(tc.entity, "ent-1", tc.fromState)

			decided, err := f.service.Decide(ctx, "req-1", "approver", tc.decision, tc.reason)
			require.NoError(t, err)
			assert.Equal(t, tc.decision.Status(), decided.Status)

			state, err := f.entities.GetEntityState(ctx, "t1", tc.entity, "ent-1")
			require.NoError(t, err)
			assert.Equal(t, tc.wantState, state)
		})
	}
}

func TestIllegalOutcomeLeavesEntityAloneButDecisionStands(t *testing.T) {
	ctx := context.Background()
	f := newFixture(pendingRequest("req-1", workflow.EntityDeal, "deal-1"))
	// NEGOTIATION is not reachable from LEAD, so the table entry cannot apply.
	f.entities.set(workflow.EntityDeal, "deal-1", workflow.DealStageLead)

	decided, err := f.service.Decide(ctx, "req-1", "approver", DecisionApprove, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, decided.Status)

	state, err := f.entities.GetEntityState(ctx, "t1", workflow.EntityDeal, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.DealStageLead, state)
}

func TestDecideDispatchesSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(pendingRequest("req-1", workflow.EntityQuote, "quote-1"))
	f.entities.set(workflow.EntityQuote, "quote-1", workflow.QuoteStatusSent)

	_, err := f.service.Decide(ctx, "req-1", "approver", DecisionApprove, nil)
	require.NoError(t, err)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "requester", f.notifier.sent[0].userID)
	assert.Equal(t, "Quote approved", f.notifier.sent[0].title)

	require.Len(t, f.mailer.queued, 1)
	assert.Equal(t, DecisionApprove, f.mailer.queued[0].Decision)

	require.Len(t, f.auditor.entries, 1)
	assert.Equal(t, "approval.APPROVE", f.auditor.entries[0].Action)
	assert.Equal(t, "t1", f.auditor.entries[0].TenantID)
}
