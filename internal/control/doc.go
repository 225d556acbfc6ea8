// Package control provides the operational-space control laws of the
// capping task.
//
// Every law maps one tick of [Input] to an [Output] holding the joint
// torques and a [Verdict] on the phase that invoked it:
//
//   - [Synchronize]: waits for finite joint feedback
//   - [JointSpaceInit]: saturated joint PD to the home configuration
//   - [Aligner]: cap alignment strategies ([Baseline], [Exponential], [Simple], [Force])
//   - [CheckAlignment]: dwell check on the alignment predicate
//   - [Rewind], [Screw]: last-joint rotation with position hold
//
// # Usage
//
//	aligner, _ := control.NewAligner(config.VariantForce, 1000)
//	out := aligner.Compute(in)
//	if out.Verdict == control.Finished { ... }
//
// Laws are pure functions of their input except [Exponential], which owns
// an [IntegralWindow] and must not be shared between loops.
package control
