package config

import "sort"

type preset struct {
	description string
	apply       func(*Config)
}

var presets = map[string]preset{
	"deployed": {
		description: "force-guided align, CHECK_ALIGN loops back to ALIGN",
		apply: func(c *Config) {
			c.Task.AlignVariant = VariantForce
			c.Task.CheckAlignFinished = CheckAlignToAlign
		},
	},
	"rewind": {
		description: "force-guided align, CHECK_ALIGN proceeds to REWIND and SCREW",
		apply: func(c *Config) {
			c.Task.AlignVariant = VariantForce
			c.Task.CheckAlignFinished = CheckAlignToRewind
		},
	},
	"exponential": {
		description: "sliding align tuned by kp_pos_exp, kp_ori_exp, kv_ori_exp and ki_ori_exp, not kp_pos/kp_ori/kv_ori",
		apply: func(c *Config) {
			c.Task.AlignVariant = VariantExponential
			c.Task.CheckAlignFinished = CheckAlignToRewind
		},
	},
	"simple": {
		description: "push along the sensed force once it exceeds the threshold",
		apply: func(c *Config) {
			c.Task.AlignVariant = VariantSimple
		},
	},
	"baseline": {
		description: "sliding align with fixed orientation gains",
		apply: func(c *Config) {
			c.Task.AlignVariant = VariantBaseline
		},
	},
}

// GetPreset returns a default config with the named preset applied, or nil.
func GetPreset(name string) *Config {
	p, ok := presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	p.apply(cfg)
	return cfg
}

// ApplyPreset applies the named preset on top of cfg.
func ApplyPreset(cfg *Config, name string) bool {
	p, ok := presets[name]
	if ok {
		p.apply(cfg)
	}
	return ok
}

func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func PresetDescription(name string) string {
	return presets[name].description
}
