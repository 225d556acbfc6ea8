package task

import (
	"fmt"

	"github.com/san-kum/bottlecap/internal/config"
	"github.com/san-kum/bottlecap/internal/control"
)

// Transition moves the machine from From to To when the active law
// reports On. Message is logged when the transition fires.
type Transition struct {
	From    Phase
	On      control.Verdict
	To      Phase
	Message string
}

type Table []Transition

// Next returns the transition for the pair, if any. A missing entry means
// the machine stays in its phase.
func (t Table) Next(from Phase, v control.Verdict) (Transition, bool) {
	for _, tr := range t {
		if tr.From == from && tr.On == v {
			return tr, true
		}
	}
	return Transition{}, false
}

// Validate rejects duplicate entries and transitions into phases the
// machine cannot run.
func (t Table) Validate() error {
	seen := map[[2]int]bool{}
	for _, tr := range t {
		key := [2]int{int(tr.From), int(tr.On)}
		if seen[key] {
			return fmt.Errorf("%w: duplicate transition from %s on %s", config.ErrInvalid, tr.From, tr.On)
		}
		seen[key] = true
		if tr.To < Synchronizing || tr.To >= Invalid {
			return fmt.Errorf("%w: transition from %s into %s", config.ErrInvalid, tr.From, tr.To)
		}
	}
	return nil
}

func common() Table {
	return Table{
		{Synchronizing, control.Finished, JointInit, "Redis synchronized. Switching to joint space controller."},
		{JointInit, control.Finished, Align, "Joint position initialized. Switching to align bottle cap."},
		{Align, control.Finished, CheckAlign, "Bottle cap aligned. Switching to check alignment."},
		{CheckAlign, control.Failed, Align, "Bottle cap not aligned. Switching back to align bottle cap."},
		{Rewind, control.Finished, Screw, "Bottle cap rewound. Switching to screw bottle cap."},
	}
}

// DeployedTable loops CHECK_ALIGN back into ALIGN once the dwell elapses,
// leaving REWIND and SCREW unreachable.
func DeployedTable() Table {
	return append(common(), Transition{CheckAlign, control.Finished, Align, "Bottle cap aligned. Switching back to align bottle cap."})
}

// RewindTable proceeds from a confirmed alignment to REWIND and SCREW.
func RewindTable() Table {
	return append(common(), Transition{CheckAlign, control.Finished, Rewind, "Bottle cap aligned. Switching to rewind bottle cap."})
}

func TableFor(checkAlignFinished string) (Table, error) {
	switch checkAlignFinished {
	case config.CheckAlignToAlign:
		return DeployedTable(), nil
	case config.CheckAlignToRewind:
		return RewindTable(), nil
	}
	return nil, fmt.Errorf("%w: unknown check_align_finished target %q", config.ErrInvalid, checkAlignFinished)
}
