// Package task sequences the capping phases. Transitions are data: a
// [Table] maps (phase, verdict) to the next phase, so alternative
// topologies are chosen by configuration.
package task

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPhase = errors.New("task: invalid controller phase")

type Phase int

const (
	Synchronizing Phase = iota
	JointInit
	Align
	CheckAlign
	Rewind
	Screw
	Invalid
)

var phaseNames = [...]string{
	Synchronizing: "SYNCHRONIZING",
	JointInit:     "JOINT_INIT",
	Align:         "ALIGN",
	CheckAlign:    "CHECK_ALIGN",
	Rewind:        "REWIND",
	Screw:         "SCREW",
	Invalid:       "INVALID",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

func ParsePhase(s string) (Phase, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), nil
		}
	}
	return Invalid, fmt.Errorf("%w: %q", ErrInvalidPhase, s)
}
