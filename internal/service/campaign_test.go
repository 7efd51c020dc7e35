package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapcampaign/zapcampaign/internal/dispatcher"
	"github.com/zapcampaign/zapcampaign/internal/domain"
	"github.com/zapcampaign/zapcampaign/internal/resolver"
	"github.com/zapcampaign/zapcampaign/internal/transport"
)

// fakeRepo is an in-memory record store.
type fakeRepo struct {
	mu         sync.Mutex
	messages   map[string]*domain.Message
	deliveries []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{messages: map[string]*domain.Message{}}
}

func (r *fakeRepo) CreateMessageRecord(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	cp.Recipients = append([]domain.RecipientOutcome(nil), msg.Recipients...)
	r.messages[msg.ID] = &cp
	return nil
}

func (r *fakeRepo) RecordRecipientOutcome(_ context.Context, messageID, address string, outcome domain.OutcomeStatus, deliveryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[messageID]
	if !ok {
		return fmt.Errorf("message %s not found", messageID)
	}
	for i := range msg.Recipients {
		if msg.Recipients[i].Address == address {
			msg.Recipients[i].Outcome = int(outcome)
			msg.Recipients[i].DeliveryID = deliveryID
		}
	}
	return nil
}

func (r *fakeRepo) UpdateMessageStatus(_ context.Context, messageID string, status domain.MessageStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[messageID]
	if !ok {
		return fmt.Errorf("message %s not found", messageID)
	}
	msg.Status = int(status)
	return nil
}

func (r *fakeRepo) ListMessages(_ context.Context, _ string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, msg := range r.messages {
		out = append(out, *msg)
	}
	return out, nil
}

func (r *fakeRepo) CacheDelivery(_ context.Context, deliveryID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, deliveryID)
	return nil
}

func (r *fakeRepo) messageStatus(id string) domain.MessageStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := r.messages[id]; ok {
		return domain.MessageStatus(msg.Status)
	}
	return -1
}

func (r *fakeRepo) outcomes(id string) map[string]domain.OutcomeStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]domain.OutcomeStatus{}
	if msg, ok := r.messages[id]; ok {
		for _, rec := range msg.Recipients {
			out[rec.Address] = domain.OutcomeStatus(rec.Outcome)
		}
	}
	return out
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// fakeTransport counts calls and fails configured addresses.
type fakeTransport struct {
	mu            sync.Mutex
	state         transport.ConnectionState
	failAddresses map[string]bool
	calls         int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		state:         transport.ConnectionState{Ready: true, Authenticated: true},
		failAddresses: map[string]bool{},
	}
}

func (f *fakeTransport) ConnectionState() transport.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) send(target string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAddresses[target] {
		return "", fmt.Errorf("send to %s: rejected", target)
	}
	return "d-" + target, nil
}

func (f *fakeTransport) SendOne(_ context.Context, address, _ string) (string, error) {
	return f.send(address)
}

func (f *fakeTransport) SendToGroup(_ context.Context, groupID, _ string) (string, error) {
	return f.send(groupID)
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDirectory struct {
	contacts map[string]domain.Contact
	groups   map[string]domain.Group
}

func (d *fakeDirectory) ResolveContacts(_ context.Context, _ string, ids []string) ([]domain.Contact, error) {
	var out []domain.Contact
	for _, id := range ids {
		if c, ok := d.contacts[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *fakeDirectory) ResolveGroups(_ context.Context, _ string, ids []string) ([]domain.Group, error) {
	var out []domain.Group
	for _, id := range ids {
		if g, ok := d.groups[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, repo *fakeRepo, ft *fakeTransport, dir resolver.Directory) CampaignService {
	t.Helper()
	if dir == nil {
		dir = &fakeDirectory{}
	}
	logger := slog.New(slog.DiscardHandler)
	maxRetry := 1
	svc, err := NewCampaignService(
		repo,
		resolver.New("55", dir),
		dispatcher.New(ft, time.Millisecond, logger),
		ft,
		logger,
		&maxRetry,
	)
	require.NoError(t, err)
	t.Cleanup(svc.Shutdown)
	return svc
}

func TestSubmitSendImmediateAllSucceed(t *testing.T) {
	repo := newFakeRepo()
	ft := newFakeTransport()
	svc := newTestService(t, repo, ft, nil)

	receipt, err := svc.SubmitSend(context.Background(), SubmitInput{
		OwnerID:       "owner",
		RawRecipients: "11987654321, 11987654322, 11987654323",
		Content:       "Hello",
	})
	require.NoError(t, err)
	assert.False(t, receipt.Scheduled)
	assert.Equal(t, 3, receipt.Targets)
	assert.Equal(t, receipt.MessageID, receipt.JobID)

	require.Eventually(t, func() bool {
		return repo.messageStatus(receipt.MessageID) == domain.StatusSent
	}, 2*time.Second, 5*time.Millisecond)

	outcomes := repo.outcomes(receipt.MessageID)
	require.Len(t, outcomes, 3)
	for _, addr := range []string{"+5511987654321", "+5511987654322", "+5511987654323"} {
		assert.Equal(t, domain.OutcomeSuccess, outcomes[addr], addr)
	}
	assert.Equal(t, 3, ft.callCount())
	assert.Len(t, repo.deliveries, 3)
}

func TestSubmitSendGroupFanoutPartialFailure(t *testing.T) {
	repo := newFakeRepo()
	ft := newFakeTransport()
	ft.failAddresses["groupB"] = true
	dir := &fakeDirectory{groups: map[string]domain.Group{
		"groupA": {ID: "groupA", Address: "groupA"},
		"groupB": {ID: "groupB", Address: "groupB"},
	}}
	svc := newTestService(t, repo, ft, dir)

	receipt, err := svc.SubmitSend(context.Background(), SubmitInput{
		OwnerID:  "owner",
		GroupIDs: []string{"groupA", "groupB"},
		Content:  "Hello groups",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return repo.messageStatus(receipt.MessageID) == domain.StatusPartial
	}, 2*time.Second, 5*time.Millisecond)

	outcomes := repo.outcomes(receipt.MessageID)
	assert.Equal(t, domain.OutcomeSuccess, outcomes["groupA"])
	assert.Equal(t, domain.OutcomeFailed, outcomes["groupB"])
}

func TestSubmitSendTransportNotReady(t *testing.T) {
	repo := newFakeRepo()
	ft := newFakeTransport()
	ft.state = transport.ConnectionState{}
	svc := newTestService(t, repo, ft, nil)

	receipt, err := svc.SubmitSend(context.Background(), SubmitInput{
		OwnerID:       "owner",
		RawRecipients: "11987654321, 11987654322",
		Content:       "Hello",
	})
	require.NoError(t, err, "submission is accepted; the batch fails at dispatch time")

	require.Eventually(t, func() bool {
		return repo.messageStatus(receipt.MessageID) == domain.StatusFailed
	}, 2*time.Second, 5*time.Millisecond)

	// pre-check aborted the batch before any send attempt
	assert.Zero(t, ft.callCount())
	for _, outcome := range repo.outcomes(receipt.MessageID) {
		assert.Equal(t, domain.OutcomeFailed, outcome)
	}
}

func TestSubmitSendScheduledFiresLater(t *testing.T) {
	repo := newFakeRepo()
	ft := newFakeTransport()
	svc := newTestService(t, repo, ft, nil)

	fireAt := time.Now().Add(30 * time.Millisecond)
	receipt, err := svc.SubmitSend(context.Background(), SubmitInput{
		OwnerID:       "owner",
		RawRecipients: "11987654321",
		Content:       "Later",
		ScheduledAt:   &fireAt,
	})
	require.NoError(t, err)
	assert.True(t, receipt.Scheduled)
	assert.Equal(t, domain.StatusScheduled, repo.messageStatus(receipt.MessageID))

	require.Eventually(t, func() bool {
		return repo.messageStatus(receipt.MessageID) == domain.StatusSent
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, ft.callCount())
}

func TestSubmitSendScheduleInPastRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, newFakeTransport(), nil)

	past := time.Now().Add(-time.Minute)
	_, err := svc.SubmitSend(context.Background(), SubmitInput{
		OwnerID:       "owner",
		RawRecipients: "11987654321",
		Content:       "Too late",
		ScheduledAt:   &past,
	})

	assert.ErrorIs(t, err, domain.ErrScheduleInPast)
	assert.Zero(t, repo.count(), "rejected submissions must not be persisted")
}

func TestCancelScheduled(t *testing.T) {
	repo := newFakeRepo()
	ft := newFakeTransport()
	svc := newTestService(t, repo, ft, nil)

	fireAt := time.Now().Add(time.Hour)
	receipt, err := svc.SubmitSend(context.Background(), SubmitInput{
		OwnerID:       "owner",
		RawRecipients: "11987654321",
		Content:       "Never sent",
		ScheduledAt:   &fireAt,
	})
	require.NoError(t, err)

	assert.True(t, svc.CancelScheduled(context.Background(), receipt.JobID))
	assert.Equal(t, domain.StatusCancelled, repo.messageStatus(receipt.MessageID))

	assert.False(t, svc.CancelScheduled(context.Background(), receipt.JobID))
	assert.False(t, svc.CancelScheduled(context.Background(), "unknown-job"))
	assert.Zero(t, ft.callCount())
}

func TestSubmitSendValidation(t *testing.T) {
	repo := newFakeRepo()
	dir := &fakeDirectory{contacts: map[string]domain.Contact{
		"c1": {ID: "c1", Address: "+5511987654321"},
	}}
	svc := newTestService(t, repo, newFakeTransport(), dir)
	ctx := context.Background()

	_, err := svc.SubmitSend(ctx, SubmitInput{OwnerID: "owner", RawRecipients: "11987654321"})
	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	_, err = svc.SubmitSend(ctx, SubmitInput{OwnerID: "owner", Content: "hi"})
	assert.ErrorIs(t, err, domain.ErrAmbiguousRecipientMode)

	_, err = svc.SubmitSend(ctx, SubmitInput{
		OwnerID:       "owner",
		Content:       "hi",
		RawRecipients: "11987654321",
		GroupIDs:      []string{"g1"},
	})
	assert.ErrorIs(t, err, domain.ErrAmbiguousRecipientMode)

	_, err = svc.SubmitSend(ctx, SubmitInput{OwnerID: "owner", Content: "hi", RawRecipients: "123"})
	assert.ErrorIs(t, err, domain.ErrNoValidRecipients)

	_, err = svc.SubmitSend(ctx, SubmitInput{OwnerID: "owner", Content: "hi", ContactIDs: []string{"c1", "cX"}})
	var unresolved *domain.UnresolvedRecipientsError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"cX"}, unresolved.IDs)

	assert.Zero(t, repo.count())
}
