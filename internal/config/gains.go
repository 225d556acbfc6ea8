package config

import "fmt"

// Gains is the full set of tunable controller gains. Every gain is also
// mirrored in the key-value store under its yaml name.
type Gains struct {
	KpPos       float64 `yaml:"kp_pos"`
	KvPos       float64 `yaml:"kv_pos"`
	KpOri       float64 `yaml:"kp_ori"`
	KvOri       float64 `yaml:"kv_ori"`
	KpJoint     float64 `yaml:"kp_joint"`
	KvJoint     float64 `yaml:"kv_joint"`
	KpJointInit float64 `yaml:"kp_joint_init"`
	KvJointInit float64 `yaml:"kv_joint_init"`
	KpScrew     float64 `yaml:"kp_screw"`
	KvScrew     float64 `yaml:"kv_screw"`
	KpSliding   float64 `yaml:"kp_sliding"`
	KpBias      float64 `yaml:"kp_bias"`

	ExpMoreSpeed   float64 `yaml:"exp_more_speed"`
	ExpLessDamping float64 `yaml:"exp_less_damping"`
	KpOriExp       float64 `yaml:"kp_ori_exp"`
	KvOriExp       float64 `yaml:"kv_ori_exp"`
	KiOriExp       float64 `yaml:"ki_ori_exp"`
	KpPosExp       float64 `yaml:"kp_pos_exp"`
}

func DefaultGains() Gains {
	return Gains{
		KpPos:       30,
		KvPos:       0,
		KpOri:       4,
		KvOri:       0.5,
		KpJoint:     15,
		KvJoint:     0,
		KpJointInit: 10,
		KvJointInit: 4,
		KpScrew:     15,
		KvScrew:     4,
		KpSliding:   1.5,
		KpBias:      1.2,

		ExpMoreSpeed:   5,
		ExpLessDamping: 5,
		KpOriExp:       4,
		KvOriExp:       0.5,
		KiOriExp:       0.5,
		KpPosExp:       30,
	}
}

// GainField binds a store key suffix to one gain.
type GainField struct {
	Name  string
	Value *float64
}

func (g *Gains) Fields() []GainField {
	return []GainField{
		{"kp_pos", &g.KpPos},
		{"kv_pos", &g.KvPos},
		{"kp_ori", &g.KpOri},
		{"kv_ori", &g.KvOri},
		{"kp_joint", &g.KpJoint},
		{"kv_joint", &g.KvJoint},
		{"kp_joint_init", &g.KpJointInit},
		{"kv_joint_init", &g.KvJointInit},
		{"kp_screw", &g.KpScrew},
		{"kv_screw", &g.KvScrew},
		{"kp_sliding", &g.KpSliding},
		{"kp_bias", &g.KpBias},
		{"exp_more_speed", &g.ExpMoreSpeed},
		{"exp_less_damping", &g.ExpLessDamping},
		{"kp_ori_exp", &g.KpOriExp},
		{"kv_ori_exp", &g.KvOriExp},
		{"ki_ori_exp", &g.KiOriExp},
		{"kp_pos_exp", &g.KpPosExp},
	}
}

// Set assigns the named gain. It reports false for unknown names.
func (g *Gains) Set(name string, v float64) bool {
	for _, f := range g.Fields() {
		if f.Name == name {
			*f.Value = v
			return true
		}
	}
	return false
}

func (g Gains) Validate() error {
	for _, f := range g.Fields() {
		if *f.Value < 0 {
			return fmt.Errorf("%w: gain %s is negative (%g)", ErrInvalid, f.Name, *f.Value)
		}
	}
	return nil
}
