package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/till/internal/audit"
)

// Stage is the commit step an allocation performs.
type Stage string

const (
	// StageReserve holds units for a sale in progress: available → reserved.
	StageReserve Stage = "reserve"

	// StageSell commits units straight to a finalized sale: available → sold.
	StageSell Stage = "sell"

	// StageFinalize completes a reservation: reserved → sold.
	StageFinalize Stage = "finalize"

	// StageRelease gives a reservation back: reserved → available.
	StageRelease Stage = "release"
)

// Transition returns the expected and target status of the stage.
func (s Stage) Transition() (from, to UnitStatus, err error) {
	switch s {
	case StageReserve:
		return StatusAvailable, StatusReserved, nil
	case StageSell:
		return StatusAvailable, StatusSold, nil
	case StageFinalize:
		return StatusReserved, StatusSold, nil
	case StageRelease:
		return StatusReserved, StatusAvailable, nil
	}
	return "", "", fmt.Errorf("unknown allocation stage %q", s)
}

// ParseStage converts a stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if _, _, err := st.Transition(); err != nil {
		return "", err
	}
	return st, nil
}

// Outcome labels reported to the Recorder.
const (
	OutcomeCommitted              = "committed"
	OutcomeStaleUnit              = "stale_unit"
	OutcomeCountMismatch          = "count_mismatch"
	OutcomeInsufficientCandidates = "insufficient_candidates"
	OutcomeRejected               = "rejected"
	OutcomeError                  = "error"
)

// Recorder observes allocation outcomes.
type Recorder interface {
	ObserveAllocation(outcome string)
}

// IDGenerator produces allocation ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 allocation ids.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Allocation is a committed binding of units to a line.
type Allocation struct {
	ID        string    `json:"id"`
	Line      LineItem  `json:"line"`
	Stage     Stage     `json:"stage"`
	Units     []Unit    `json:"units"`
	CreatedAt time.Time `json:"created_at"`

	// Digest fingerprints the line, stage and unit ids.
	Digest string `json:"digest"`
}

// UnitIDs returns the ids of the allocated units.
func (a Allocation) UnitIDs() []string {
	ids := make([]string, len(a.Units))
	for i, u := range a.Units {
		ids[i] = u.ID
	}
	return ids
}

// Allocator commits unit selections against an inventory collaborator.
// It is safe for concurrent use as long as the collaborator is.
type Allocator struct {
	inv      Collaborator
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
	ids      IDGenerator
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) AllocatorOption {
	return func(a *Allocator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) AllocatorOption {
	return func(a *Allocator) { a.recorder = r }
}

// WithClock overrides time.Now for allocation timestamps.
func WithClock(now func() time.Time) AllocatorOption {
	return func(a *Allocator) { a.now = now }
}

// WithIDGenerator overrides the UUIDv7 allocation ids.
func WithIDGenerator(g IDGenerator) AllocatorOption {
	return func(a *Allocator) { a.ids = g }
}

// NewAllocator returns an allocator over inv.
func NewAllocator(inv Collaborator, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		inv:    inv,
		logger: zap.NewNop(),
		now:    time.Now,
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Candidates queries the collaborator for the line's available units. Units
// that do not belong to the line or are no longer available are dropped.
func (a *Allocator) Candidates(ctx context.Context, line LineItem) ([]Unit, error) {
	units, err := a.inv.QueryAvailableUnits(ctx, line.ProductID, line.VariantID)
	if err != nil {
		return nil, fmt.Errorf("query available units for %s: %w", line, err)
	}
	out := units[:0:0]
	for _, u := range units {
		if line.Matches(u) && u.Status == StatusAvailable {
			out = append(out, u)
		}
	}
	return out, nil
}

// Select queries candidates for line and opens a selection of requested units.
func (a *Allocator) Select(ctx context.Context, line LineItem, requested int) (*Selection, error) {
	units, err := a.Candidates(ctx, line)
	if err != nil {
		return nil, err
	}
	sel, err := NewSelection(line, requested, units)
	if err != nil {
		a.observe(err)
		return nil, err
	}
	return sel, nil
}

// Confirm commits a complete selection at the reserve or sell stage.
func (a *Allocator) Confirm(ctx context.Context, sel *Selection, stage Stage) (Allocation, error) {
	if stage != StageReserve && stage != StageSell {
		err := fmt.Errorf("confirm supports %s and %s stages, got %q", StageReserve, StageSell, stage)
		a.observe(err)
		return Allocation{}, err
	}
	if !sel.Complete() {
		err := &AllocationError{
			Code:      CodeCountMismatch,
			Message:   fmt.Sprintf("picked %d of %d units", len(sel.picked), sel.requested),
			Line:      sel.line,
			Requested: sel.requested,
			Selected:  len(sel.picked),
		}
		a.observe(err)
		return Allocation{}, err
	}
	return a.commit(ctx, sel.line, stage, sel.Picked())
}

// Allocate selects and commits requested units in one call. With no picks the
// first requested candidates are taken in order.
func (a *Allocator) Allocate(ctx context.Context, line LineItem, requested int, candidates []Unit, picks []string, stage Stage) (Allocation, error) {
	sel, err := NewSelection(line, requested, candidates)
	if err != nil {
		a.observe(err)
		return Allocation{}, err
	}
	if len(picks) == 0 {
		sel.PickFirst()
	}
	for _, id := range picks {
		if err := sel.Pick(id); err != nil {
			a.observe(err)
			return Allocation{}, err
		}
	}
	return a.Confirm(ctx, sel, stage)
}

// Finalize moves reserved units of line to sold.
func (a *Allocator) Finalize(ctx context.Context, line LineItem, unitIDs []string) (Allocation, error) {
	return a.transition(ctx, line, StageFinalize, unitIDs)
}

// Release returns reserved units of line to available.
func (a *Allocator) Release(ctx context.Context, line LineItem, unitIDs []string) (Allocation, error) {
	return a.transition(ctx, line, StageRelease, unitIDs)
}

func (a *Allocator) transition(ctx context.Context, line LineItem, stage Stage, unitIDs []string) (Allocation, error) {
	if len(unitIDs) == 0 {
		err := &AllocationError{Code: CodeCountMismatch, Message: "no units given", Line: line}
		a.observe(err)
		return Allocation{}, err
	}
	reader, ok := a.inv.(UnitReader)
	if !ok {
		err := fmt.Errorf("%s for %s: inventory cannot read units by id", stage, line)
		a.observe(err)
		return Allocation{}, err
	}
	seen := make(map[string]bool, len(unitIDs))
	units := make([]Unit, 0, len(unitIDs))
	for _, id := range unitIDs {
		key := normalizeID(id)
		if key == "" || seen[key] {
			err := &AllocationError{
				Code:    CodeInvalidCandidate,
				Message: fmt.Sprintf("unit %q is empty or listed twice", id),
				Line:    line,
				UnitIDs: []string{id},
			}
			a.observe(err)
			return Allocation{}, err
		}
		seen[key] = true

		u, err := reader.Unit(ctx, id)
		if errors.Is(err, ErrUnitNotFound) {
			err = &AllocationError{
				Code:    CodeUnknownUnit,
				Message: fmt.Sprintf("unit %s does not exist", id),
				Line:    line,
				UnitIDs: []string{id},
			}
		} else if err == nil && !line.Matches(u) {
			err = &AllocationError{
				Code:    CodeInvalidCandidate,
				Message: fmt.Sprintf("unit %s belongs to %s/%s", u.ID, u.ProductID, u.VariantID),
				Line:    line,
				UnitIDs: []string{u.ID},
			}
		} else if err != nil {
			err = fmt.Errorf("read unit %s: %w", id, err)
		}
		if err != nil {
			a.observe(err)
			return Allocation{}, err
		}
		units = append(units, u)
	}
	return a.commit(ctx, line, stage, units)
}

// commit applies the stage transition to every unit, or to none.
func (a *Allocator) commit(ctx context.Context, line LineItem, stage Stage, units []Unit) (Allocation, error) {
	from, to, err := stage.Transition()
	if err == nil && !CanTransition(from, to) {
		err = fmt.Errorf("transition %s → %s is not allowed", from, to)
	}
	if err != nil {
		a.observe(err)
		return Allocation{}, err
	}

	ids := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}

	if bc, ok := a.inv.(BatchCommitter); ok {
		conflicts, err := bc.CommitBatch(ctx, ids, from, to)
		if err != nil {
			err = fmt.Errorf("commit %s for %s: %w", stage, line, err)
			a.observe(err)
			return Allocation{}, err
		}
		if len(conflicts) > 0 {
			return Allocation{}, a.stale(line, stage, len(units), conflicts, nil)
		}
	} else {
		for i, id := range ids {
			ok, err := a.inv.CommitReservation(ctx, id, from, to)
			if err == nil && ok {
				continue
			}
			revertErr := a.revert(ctx, ids[:i], to, from)
			if err != nil {
				err = errors.Join(fmt.Errorf("commit %s of unit %s: %w", stage, id, err), revertErr)
				a.observe(err)
				return Allocation{}, err
			}
			return Allocation{}, a.stale(line, stage, len(units), []string{id}, revertErr)
		}
	}

	for i := range units {
		units[i].Status = to
	}
	alloc := Allocation{
		ID:        a.ids.Generate(),
		Line:      line,
		Stage:     stage,
		Units:     units,
		CreatedAt: a.now().UTC(),
	}
	alloc.Digest, err = audit.Fingerprint(audit.DomainAllocation, struct {
		Line  LineItem `json:"line"`
		Stage Stage    `json:"stage"`
		Units []string `json:"units"`
	}{line, stage, ids})
	if err != nil {
		return Allocation{}, err
	}

	a.logger.Info("allocation committed",
		zap.String("allocation_id", alloc.ID),
		zap.String("line", line.String()),
		zap.String("stage", string(stage)),
		zap.Strings("units", ids),
	)
	a.record(OutcomeCommitted)
	return alloc, nil
}

// revert undoes units already moved by a failed attempt. Each step is itself
// conditional, so a unit changed again in the meantime is left alone.
func (a *Allocator) revert(ctx context.Context, ids []string, from, to UnitStatus) error {
	var errs []error
	for _, id := range ids {
		ok, err := a.inv.CommitReservation(ctx, id, from, to)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("revert unit %s: %w", id, err))
		case !ok:
			errs = append(errs, fmt.Errorf("revert unit %s: status changed concurrently", id))
		}
	}
	if len(errs) > 0 {
		a.logger.Error("allocation revert incomplete",
			zap.Strings("units", ids),
			zap.Error(errors.Join(errs...)),
		)
	}
	return errors.Join(errs...)
}

func (a *Allocator) stale(line LineItem, stage Stage, requested int, conflicts []string, revertErr error) error {
	ae := &AllocationError{
		Code:      CodeStaleUnit,
		Message:   fmt.Sprintf("%d unit(s) changed status before %s; select again", len(conflicts), stage),
		Line:      line,
		Requested: requested,
		Selected:  requested,
		UnitIDs:   conflicts,
	}
	a.logger.Warn("allocation conflict",
		zap.String("line", line.String()),
		zap.String("stage", string(stage)),
		zap.Strings("conflicts", conflicts),
	)
	a.record(OutcomeStaleUnit)
	if revertErr != nil {
		return errors.Join(ae, revertErr)
	}
	return ae
}

func (a *Allocator) observe(err error) {
	switch CodeOf(err) {
	case CodeStaleUnit:
		a.record(OutcomeStaleUnit)
	case CodeCountMismatch:
		a.record(OutcomeCountMismatch)
	case CodeInsufficientCandidates:
		a.record(OutcomeInsufficientCandidates)
	case CodeInvalidCandidate, CodeUnknownUnit:
		a.record(OutcomeRejected)
	default:
		a.record(OutcomeError)
	}
}

func (a *Allocator) record(outcome string) {
	if a.recorder != nil {
		a.recorder.ObserveAllocation(outcome)
	}
}
