package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/zapcampaign/zapcampaign/internal/domain"
	"github.com/zapcampaign/zapcampaign/internal/transport"
)

// Dispatcher executes a dispatch job against the messaging transport,
// one target at a time. Sequential on purpose: it keeps the supplied
// target order and avoids hammering the messaging network.
type Dispatcher struct {
	transport transport.Transport
	limiter   *rate.Limiter
	logger    *slog.Logger
}

func New(t transport.Transport, paceInterval time.Duration, logger *slog.Logger) *Dispatcher {
	if paceInterval <= 0 {
		paceInterval = 600 * time.Millisecond
	}
	return &Dispatcher{
		transport: t,
		limiter:   rate.NewLimiter(rate.Every(paceInterval), 1),
		logger:    logger,
	}
}

// Dispatch runs the job to completion and partitions its targets into
// acknowledged and failed addresses. Per-target errors never abort the
// batch; the only whole-batch failures are an unusable transport
// (checked before any send) and an empty target list, which resolution
// should have caught.
func (d *Dispatcher) Dispatch(ctx context.Context, job domain.DispatchJob) (domain.DispatchResult, error) {
	if len(job.Targets) == 0 {
		return domain.DispatchResult{}, domain.ErrNoTargets
	}
	if !d.transport.ConnectionState().Usable() {
		return domain.DispatchResult{}, domain.ErrTransportNotReady
	}

	start := time.Now()
	result := domain.DispatchResult{
		DeliveryIDs: make(map[string]string),
	}

	d.logger.Info("dispatch started",
		slog.String("job", job.JobID),
		slog.Int("targets", len(job.Targets)),
		slog.Bool("groupFanout", job.GroupFanout),
	)

	for i, target := range job.Targets {
		if err := d.limiter.Wait(ctx); err != nil {
			// Context gone mid-batch; account for every remaining target
			// so the partition invariant holds.
			for _, rest := range job.Targets[i:] {
				result.Failed = append(result.Failed, rest.Address)
			}
			d.logger.Warn("dispatch interrupted",
				slog.String("job", job.JobID),
				slog.Int("remaining", len(job.Targets)-i),
				slog.Any("err", err),
			)
			break
		}

		deliveryID, err := d.send(ctx, job, target)
		if err != nil {
			result.Failed = append(result.Failed, target.Address)
			d.logger.Warn("send failed",
				slog.String("job", job.JobID),
				slog.String("target", target.Address),
				slog.Any("err", err),
			)
			continue
		}
		result.Successful = append(result.Successful, target.Address)
		result.DeliveryIDs[target.Address] = deliveryID
	}

	fields := []any{
		slog.String("job", job.JobID),
		slog.Int("successful", len(result.Successful)),
		slog.Int("failed", len(result.Failed)),
		slog.Duration("dur", time.Since(start)),
	}
	if len(result.Failed) > 0 {
		d.logger.Warn("dispatch finished with failures", fields...)
	} else {
		d.logger.Info("dispatch finished", fields...)
	}

	return result, nil
}

func (d *Dispatcher) send(ctx context.Context, job domain.DispatchJob, target domain.TargetDescriptor) (string, error) {
	if job.GroupFanout || target.Kind == domain.TargetGroup {
		return d.transport.SendToGroup(ctx, target.Address, job.Content)
	}
	return d.transport.SendOne(ctx, target.Address, job.Content)
}
