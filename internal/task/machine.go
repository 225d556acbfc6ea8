package task

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bottlecap/internal/control"
)

// Result is the outcome of one Step.
type Result struct {
	Output control.Output
	From   Phase
	Phase  Phase
	// Changed is set when a transition fired this tick.
	Changed bool
	// Stop asks the loop to terminate; Err says why.
	Stop bool
	Err  error
}

// Machine dispatches each tick to the law of the active phase and applies
// the transition table to the law's verdict.
type Machine struct {
	phase    Phase
	table    Table
	aligner  control.Aligner
	setpoint control.Setpoint
	// held is the last alignment command, repeated while checking the seat.
	held control.Output
	log  *zap.Logger
}

func NewMachine(table Table, aligner control.Aligner, home []float64, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		phase:    Synchronizing,
		table:    table,
		aligner:  aligner,
		setpoint: control.Setpoint{Joints: mat.NewVecDense(len(home), append([]float64(nil), home...))},
		log:      log,
	}
}

func (m *Machine) Phase() Phase { return m.phase }

// Force moves the machine to p without consulting the table.
func (m *Machine) Force(p Phase) { m.phase = p }

func (m *Machine) Setpoint() control.Setpoint { return m.setpoint }

// Step runs the law of the active phase. uiDone is the operator's request
// to end joint-space initialization early.
func (m *Machine) Step(in control.Input, uiDone bool) Result {
	from := m.phase
	in.Setpoint = m.setpoint

	var out control.Output
	switch m.phase {
	case Synchronizing:
		out = control.Synchronize(in)
	case JointInit:
		out = control.JointSpaceInit(in)
		if uiDone {
			out.Verdict = control.Finished
		}
	case Align:
		out = m.aligner.Compute(in)
		m.hold(out)
	case CheckAlign:
		out = m.holding(in.DOF)
		out.Verdict = control.CheckAlignment(in)
	case Rewind:
		out = control.Rewind(in)
	case Screw:
		out = control.Screw(in)
	default:
		m.log.Error("Invalid controller state. Stopping controller.", zap.Stringer("phase", m.phase))
		m.phase = Invalid
		return Result{
			Output: control.Output{Torque: mat.NewVecDense(in.DOF, nil), Verdict: control.Failed},
			From:   from,
			Phase:  Invalid,
			Stop:   true,
			Err:    ErrInvalidPhase,
		}
	}

	res := Result{Output: out, From: from, Phase: from}
	if tr, ok := m.table.Next(from, out.Verdict); ok {
		m.enter(tr, in)
		res.Phase = tr.To
		res.Changed = true
	}
	return res
}

func (m *Machine) enter(tr Transition, in control.Input) {
	m.log.Info(tr.Message, zap.Stringer("from", tr.From), zap.Stringer("to", tr.To))

	switch {
	case tr.From == JointInit && tr.To == Align:
		m.setpoint.RewindTarget, m.setpoint.ScrewTarget = control.LastJointTargets(
			in.Task.LastJointLimit(), in.Task.ScrewMargin())
	case tr.To == CheckAlign:
		m.setpoint.AlignEntered = in.Elapsed
	}
	m.phase = tr.To
}

func (m *Machine) hold(out control.Output) {
	m.held = control.Output{Torque: mat.VecDenseCopyOf(out.Torque), DesiredPosition: out.DesiredPosition}
}

// holding returns a copy of the held alignment command. The aligner is not
// run, so its integral state does not advance.
func (m *Machine) holding(dof int) control.Output {
	if m.held.Torque == nil || m.held.Torque.Len() != dof {
		return control.Output{Torque: mat.NewVecDense(dof, nil)}
	}
	return control.Output{Torque: mat.VecDenseCopyOf(m.held.Torque), DesiredPosition: m.held.DesiredPosition}
}
