package telemetry

import "github.com/san-kum/bottlecap/internal/config"

// Keys names every store entry the controller touches.
type Keys struct {
	JointPositions  string
	JointVelocities string
	Sensor          string
	UIFlag          string

	CommandTorques   string
	EEPos            string
	EEPosDes         string
	SensorController string
	Pivot            string
	Theta            string
	Phase            string

	prefix string
	gains  string
}

// NewKeys derives the key layout "<prefix><robot>::..." used by the
// simulator and the operator UI.
func NewKeys(store config.Store, robot string) Keys {
	base := store.KeyPrefix + robot + "::"
	return Keys{
		JointPositions:  base + "sensors::q",
		JointVelocities: base + "sensors::dq",
		Sensor:          store.SensorKey,
		UIFlag:          base + "ui::flag",

		CommandTorques:   base + "actuators::fgc",
		EEPos:            base + "tasks::ee_pos",
		EEPosDes:         base + "tasks::ee_pos_des",
		SensorController: store.SensorKey + "_controller",
		Pivot:            base + "tasks::op_point",
		Theta:            base + "tasks::theta",
		Phase:            base + "controller::phase",

		prefix: base,
		gains:  base + "tasks::",
	}
}

// Gain returns the key of a gain by its config name.
func (k Keys) Gain(name string) string { return k.gains + name }

// Diagnostic returns the key of a law diagnostic such as "dPhi".
func (k Keys) Diagnostic(name string) string { return k.prefix + name }
