package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aniladanir/retry"
	"github.com/google/uuid"

	"github.com/zapcampaign/zapcampaign/internal/dispatcher"
	"github.com/zapcampaign/zapcampaign/internal/domain"
	messageRepo "github.com/zapcampaign/zapcampaign/internal/repository/message"
	"github.com/zapcampaign/zapcampaign/internal/resolver"
	"github.com/zapcampaign/zapcampaign/internal/scheduler"
	"github.com/zapcampaign/zapcampaign/internal/transport"
)

// SubmitInput carries one send request. Exactly one of RawRecipients,
// ContactIDs and GroupIDs must be set.
type SubmitInput struct {
	OwnerID       string
	RawRecipients string
	ContactIDs    []string
	GroupIDs      []string
	Content       string
	ScheduledAt   *time.Time
}

// SubmitReceipt is the synchronous acceptance of a send; delivery
// happens asynchronously.
type SubmitReceipt struct {
	MessageID string
	JobID     string
	Scheduled bool
	Targets   int
	Dropped   int
}

type CampaignService interface {
	SubmitSend(ctx context.Context, input SubmitInput) (SubmitReceipt, error)
	CancelScheduled(ctx context.Context, jobID string) bool
	MessageReport(ctx context.Context, ownerID string) ([]domain.Message, error)
	// Shutdown drops pending scheduled jobs. They are not recoverable.
	Shutdown()
}

type service struct {
	repo       messageRepo.Repository
	resolver   *resolver.Resolver
	dispatcher *dispatcher.Dispatcher
	scheduler  *scheduler.Scheduler
	retrier    *retry.Retrier
	logger     *slog.Logger
}

func NewCampaignService(
	repo messageRepo.Repository,
	rslv *resolver.Resolver,
	disp *dispatcher.Dispatcher,
	t transport.Transport,
	logger *slog.Logger,
	outcomeWriteMaxRetry *int,
) (CampaignService, error) {
	// initialize retrier for outcome persistence writes
	retrierOpts := make([]retry.Option, 0)
	if outcomeWriteMaxRetry != nil {
		retrierOpts = append(retrierOpts, retry.WithMaxAttemps(*outcomeWriteMaxRetry))
	}
	retrier, err := retry.New(retrierOpts...)
	if err != nil {
		return nil, fmt.Errorf("encountered error when initializing retrier: %w", err)
	}

	svc := &service{
		repo:       repo,
		resolver:   rslv,
		dispatcher: disp,
		retrier:    retrier,
		logger:     logger,
	}
	svc.scheduler = scheduler.New(t, svc.RunDispatch, logger.With(slog.String("component", "scheduler")))
	return svc, nil
}

// Shutdown stops the delay scheduler, dropping pending timers.
func (s *service) Shutdown() {
	s.scheduler.Stop()
}

// RunDispatch executes a job and records its outcome. Exposed as the
// scheduler's DispatchFunc; also used for immediate sends.
func (s *service) RunDispatch(ctx context.Context, job domain.DispatchJob) {
	if err := s.repo.UpdateMessageStatus(ctx, job.JobID, domain.StatusSending); err != nil {
		s.logger.Error("failed to mark message as sending", "job", job.JobID, "error", err.Error())
	}

	result, err := s.dispatcher.Dispatch(ctx, job)
	if err != nil {
		// Whole-batch failure: nothing was attempted.
		s.logger.Error("dispatch aborted", "job", job.JobID, "error", err.Error())
		for _, target := range job.Targets {
			s.recordOutcome(ctx, job.JobID, target.Address, domain.OutcomeFailed, "")
		}
		if err := s.repo.UpdateMessageStatus(ctx, job.JobID, domain.StatusFailed); err != nil {
			s.logger.Error("failed to mark message as failed", "job", job.JobID, "error", err.Error())
		}
		return
	}

	for _, address := range result.Successful {
		s.recordOutcome(ctx, job.JobID, address, domain.OutcomeSuccess, result.DeliveryIDs[address])
		if deliveryID := result.DeliveryIDs[address]; deliveryID != "" {
			if err := s.repo.CacheDelivery(ctx, deliveryID, time.Now().UTC()); err != nil {
				s.logger.Error("failed to cache delivery id", "deliveryId", deliveryID, "error", err.Error())
			}
		}
	}
	for _, address := range result.Failed {
		s.recordOutcome(ctx, job.JobID, address, domain.OutcomeFailed, "")
	}

	status := domain.StatusSent
	switch {
	case len(result.Successful) == 0:
		status = domain.StatusFailed
	case len(result.Failed) > 0:
		status = domain.StatusPartial
	}
	if err := s.repo.UpdateMessageStatus(ctx, job.JobID, status); err != nil {
		s.logger.Error("failed to update final message status", "job", job.JobID, "error", err.Error())
	}
}

// SubmitSend validates and resolves the request, persists the message
// record and either parks the job on the scheduler or dispatches it in
// the background. Validation failures reject synchronously before any
// transport interaction.
func (s *service) SubmitSend(ctx context.Context, input SubmitInput) (SubmitReceipt, error) {
	if strings.TrimSpace(input.Content) == "" {
		return SubmitReceipt{}, domain.ErrEmptyContent
	}

	resolved, groupFanout, err := s.resolve(ctx, input)
	if err != nil {
		return SubmitReceipt{}, err
	}

	if input.ScheduledAt != nil && !input.ScheduledAt.After(time.Now()) {
		return SubmitReceipt{}, domain.ErrScheduleInPast
	}

	messageID := uuid.NewString()
	job := domain.DispatchJob{
		JobID:       messageID,
		OwnerID:     input.OwnerID,
		Targets:     resolved.Targets,
		Content:     input.Content,
		GroupFanout: groupFanout,
	}

	msg := &domain.Message{
		ID:          messageID,
		OwnerID:     input.OwnerID,
		Content:     input.Content,
		GroupFanout: groupFanout,
		Status:      int(domain.StatusPending),
		ScheduledAt: input.ScheduledAt,
	}
	if input.ScheduledAt != nil {
		msg.Status = int(domain.StatusScheduled)
	}
	for _, target := range resolved.Targets {
		msg.Recipients = append(msg.Recipients, domain.RecipientOutcome{
			MessageID: messageID,
			Address:   target.Address,
			Kind:      string(target.Kind),
			Outcome:   int(domain.OutcomePending),
		})
	}
	if err := s.repo.CreateMessageRecord(ctx, msg); err != nil {
		return SubmitReceipt{}, fmt.Errorf("failed to persist message record: %w", err)
	}

	if input.ScheduledAt != nil {
		if err := s.scheduler.Schedule(job, *input.ScheduledAt); err != nil {
			// The pre-validation above makes this a near-boundary race.
			if updErr := s.repo.UpdateMessageStatus(ctx, messageID, domain.StatusFailed); updErr != nil {
				s.logger.Error("failed to mark unschedulable message as failed", "job", messageID, "error", updErr.Error())
			}
			return SubmitReceipt{}, err
		}
		return SubmitReceipt{
			MessageID: messageID,
			JobID:     messageID,
			Scheduled: true,
			Targets:   len(resolved.Targets),
			Dropped:   resolved.Dropped,
		}, nil
	}

	go s.RunDispatch(context.Background(), job)

	return SubmitReceipt{
		MessageID: messageID,
		JobID:     messageID,
		Targets:   len(resolved.Targets),
		Dropped:   resolved.Dropped,
	}, nil
}

// CancelScheduled stops a pending scheduled job. Returns false when the
// job already fired, was already cancelled or never existed.
func (s *service) CancelScheduled(ctx context.Context, jobID string) bool {
	if !s.scheduler.Cancel(jobID) {
		return false
	}
	if err := s.repo.UpdateMessageStatus(ctx, jobID, domain.StatusCancelled); err != nil {
		s.logger.Error("failed to mark message as cancelled", "job", jobID, "error", err.Error())
	}
	return true
}

// MessageReport returns an owner's messages with per-recipient outcomes.
func (s *service) MessageReport(ctx context.Context, ownerID string) ([]domain.Message, error) {
	return s.repo.ListMessages(ctx, ownerID)
}

func (s *service) resolve(ctx context.Context, input SubmitInput) (resolver.Result, bool, error) {
	modes := 0
	if strings.TrimSpace(input.RawRecipients) != "" {
		modes++
	}
	if len(input.ContactIDs) > 0 {
		modes++
	}
	if len(input.GroupIDs) > 0 {
		modes++
	}
	if modes != 1 {
		return resolver.Result{}, false, domain.ErrAmbiguousRecipientMode
	}

	switch {
	case len(input.GroupIDs) > 0:
		res, err := s.resolver.ResolveGroups(ctx, input.OwnerID, input.GroupIDs)
		return res, true, err
	case len(input.ContactIDs) > 0:
		res, err := s.resolver.ResolveContacts(ctx, input.OwnerID, input.ContactIDs)
		return res, false, err
	default:
		res, err := s.resolver.ResolvePhones(input.RawRecipients)
		return res, false, err
	}
}

// recordOutcome persists one recipient outcome, retrying transient
// store errors. The send itself already happened; losing its outcome
// would desync the report from what went over the wire.
func (s *service) recordOutcome(ctx context.Context, messageID, address string, outcome domain.OutcomeStatus, deliveryID string) {
	outcomeLogger := s.logger.With(slog.String("job", messageID), slog.String("target", address))

	retryFunc := func(attempt int) (terminate bool) {
		if err := s.repo.RecordRecipientOutcome(ctx, messageID, address, outcome, deliveryID); err != nil {
			outcomeLogger.Error("failed to record recipient outcome", "attempt", attempt, "error", err.Error())
			return false
		}
		return true
	}

	if success := <-s.retrier.Retry(ctx, retryFunc, true); !success {
		outcomeLogger.Error("giving up on recording recipient outcome")
	}
}
