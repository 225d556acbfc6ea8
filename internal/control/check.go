package control

// CheckAlignment fails as soon as the alignment predicate breaks and
// finishes once the phase has lasted the configured wait.
func CheckAlignment(in Input) Verdict {
	if !Aligned(in.Wrench.Moment, in.State.W, in.Wrench.Force.Z, in.Task) {
		return Failed
	}
	if in.Elapsed-in.Setpoint.AlignEntered >= in.Task.AlignmentWait {
		return Finished
	}
	return Running
}
