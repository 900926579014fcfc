// Package control executes resolved device actions against the hub,
// sequentially and without rollback, aggregating per-device outcomes.
package control

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/hubgate/internal/actions"
	"github.com/HerbHall/hubgate/internal/audit"
	"github.com/HerbHall/hubgate/internal/metrics"
)

// ValidationError reports a caller mistake: a missing field or an action
// name outside the vocabulary. Never logged as a bridge failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Request targets one device with one action.
type Request struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Value  any    `json:"value"`
}

// Result is the per-device outcome. Batch results preserve request order.
type Result struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Writer is the hub write capability the dispatcher drives. Implemented by
// hub.Bridge.
type Writer interface {
	WriteCharacteristic(ctx context.Context, deviceID, characteristicType string, value any) error
}

// Dispatcher composes the pure action resolver with the hub's write
// capability. Devices and their sub-operations run strictly sequentially:
// ordering guarantees are worth more here than throughput.
type Dispatcher struct {
	writer Writer
	audit  *audit.Store
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher. auditStore may be nil; auditing is
// best-effort either way.
func NewDispatcher(writer Writer, auditStore *audit.Store, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		writer: writer,
		audit:  auditStore,
		logger: logger,
	}
}

// ControlOne resolves and executes one action against one device. The
// first failing characteristic write aborts the remaining operations for
// this device; writes already applied stay applied.
func (d *Dispatcher) ControlOne(ctx context.Context, req Request) (Result, error) {
	ops, ok := actions.Resolve(req.Action, req.Value)
	if !ok {
		err := &ValidationError{Message: fmt.Sprintf("unknown action %q", req.Action)}
		return d.finish(ctx, req, err), err
	}

	for _, op := range ops {
		if err := d.writer.WriteCharacteristic(ctx, req.ID, op.Characteristic, op.Value); err != nil {
			d.logger.Warn("characteristic write failed",
				zap.String("device", req.ID),
				zap.String("characteristic", op.Characteristic),
				zap.Error(err))
			return d.finish(ctx, req, err), err
		}
	}

	return d.finish(ctx, req, nil), nil
}

// ControlBatch runs each request in input order. One device's failure
// never aborts later devices; the result slice maps one-to-one onto the
// input.
func (d *Dispatcher) ControlBatch(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, 0, len(reqs))
	for _, req := range reqs {
		res, _ := d.ControlOne(ctx, req)
		results = append(results, res)
	}
	return results
}

// finish builds the result, bumps metrics, and records the audit entry.
func (d *Dispatcher) finish(ctx context.Context, req Request, opErr error) Result {
	res := Result{ID: req.ID, Success: opErr == nil}
	outcome := metrics.OutcomeOK
	if opErr != nil {
		res.Error = opErr.Error()
		outcome = metrics.OutcomeError
	}
	metrics.ControlResults.WithLabelValues(outcome).Inc()

	if d.audit != nil {
		entry := &audit.Entry{
			DeviceID: req.ID,
			Action:   req.Action,
			Success:  res.Success,
			Error:    res.Error,
		}
		if err := d.audit.Insert(ctx, entry); err != nil {
			d.logger.Warn("audit insert failed", zap.Error(err))
		}
	}
	return res
}
