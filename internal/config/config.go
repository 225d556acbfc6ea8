package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid value")

const (
	DefaultRedisAddr   = "127.0.0.1:6379"
	DefaultKeyPrefix   = "cs225a::"
	DefaultSensorKey   = "cs225a::optoforce::6Dsensor::force"
	DefaultFrequencyHz = 1000
	DefaultWindow      = 1000

	DefaultToleranceInitQ  = 0.5
	DefaultToleranceInitDq = 0.1
	DefaultMaxVelocity     = 3.0
	DefaultScrewTolerance  = 0.1
	DefaultLastJointLimit  = 175.0
	DefaultScrewMargin     = 15.0
	DefaultForceThreshold  = 5.0
	DefaultPushDistance    = 0.025

	EnvRedisAddr = "BOTTLECAP_REDIS_ADDR"
)

const (
	VariantBaseline    = "baseline"
	VariantExponential = "exponential"
	VariantSimple      = "simple"
	VariantForce       = "force"

	CheckAlignToAlign  = "align"
	CheckAlignToRewind = "rewind"
)

// Vec3 is a 3-vector stored as a yaml sequence.
type Vec3 [3]float64

func (v Vec3) R3() r3.Vector { return r3.Vector{X: v[0], Y: v[1], Z: v[2]} }

type Config struct {
	Store       Store       `yaml:"store"`
	Loop        Loop        `yaml:"loop"`
	Gains       Gains       `yaml:"gains"`
	Calibration Calibration `yaml:"calibration"`
	Task        Task        `yaml:"task"`
	Logging     Logging     `yaml:"logging"`
	Record      Record      `yaml:"record"`
}

type Store struct {
	Addr        string        `yaml:"addr"`
	DB          int           `yaml:"db"`
	KeyPrefix   string        `yaml:"key_prefix"`
	SensorKey   string        `yaml:"sensor_key"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	IOTimeout   time.Duration `yaml:"io_timeout"`
}

type Loop struct {
	FrequencyHz int           `yaml:"frequency_hz"`
	InitPause   time.Duration `yaml:"init_pause"`
	SyncBackoff time.Duration `yaml:"sync_backoff"`
}

func (l Loop) Period() time.Duration {
	return time.Second / time.Duration(l.FrequencyHz)
}

type Calibration struct {
	ForceBias  Vec3    `yaml:"force_bias"`
	MomentBias Vec3    `yaml:"moment_bias"`
	SensorToEE [3]Vec3 `yaml:"sensor_to_ee"`
}

// Task holds the geometry, thresholds and phase options of the capping task.
// Angles are in degrees; offsets are in the end-effector frame, in meters.
type Task struct {
	ToolOffset      Vec3    `yaml:"tool_offset"`
	AlignPushOffset Vec3    `yaml:"align_push_offset"`
	AlignBias       Vec3    `yaml:"align_bias"`
	ForceThreshold  float64 `yaml:"force_threshold"`
	PushDistance    float64 `yaml:"push_distance"`
	ForceOffset     Vec3    `yaml:"force_offset"`
	ScrewOffset     Vec3    `yaml:"screw_offset"`

	LastJointLimitDeg float64 `yaml:"last_joint_limit_deg"`
	ScrewMarginDeg    float64 `yaml:"screw_margin_deg"`
	ScrewTolerance    float64 `yaml:"screw_tolerance"`

	ToleranceInitQ  float64 `yaml:"tolerance_init_q"`
	ToleranceInitDq float64 `yaml:"tolerance_init_dq"`
	MaxVelocity     float64 `yaml:"max_velocity"`

	AlignmentWait        time.Duration `yaml:"alignment_wait"`
	IntegralWindow       int           `yaml:"integral_window"`
	AlignMoment          float64       `yaml:"align_moment"`
	AlignAngularVelocity float64       `yaml:"align_angular_velocity"`
	AlignForceZ          float64       `yaml:"align_force_z"`

	HomeJointsDeg      []float64 `yaml:"home_joints_deg"`
	AlignVariant       string    `yaml:"align_variant"`
	CheckAlignFinished string    `yaml:"check_align_finished"`
}

// HomeJoints returns the joint-space initialization target in radians.
func (t Task) HomeJoints() []float64 {
	q := make([]float64, len(t.HomeJointsDeg))
	for i, d := range t.HomeJointsDeg {
		q[i] = d * math.Pi / 180
	}
	return q
}

func (t Task) LastJointLimit() float64 { return t.LastJointLimitDeg * math.Pi / 180 }

func (t Task) ScrewMargin() float64 { return t.ScrewMarginDeg * math.Pi / 180 }

type Logging struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type Record struct {
	Dir   string `yaml:"dir"`
	Every int    `yaml:"every"`
}

func DefaultConfig() *Config {
	s := 1 / math.Sqrt2
	return &Config{
		Store: Store{
			Addr:        DefaultRedisAddr,
			KeyPrefix:   DefaultKeyPrefix,
			SensorKey:   DefaultSensorKey,
			DialTimeout: 2 * time.Second,
			IOTimeout:   50 * time.Millisecond,
		},
		Loop: Loop{
			FrequencyHz: DefaultFrequencyHz,
			InitPause:   time.Millisecond,
			SyncBackoff: time.Second,
		},
		Gains: DefaultGains(),
		Calibration: Calibration{
			ForceBias:  Vec3{0.05, -0.59, -5.0},
			MomentBias: Vec3{-0.168, 0.043, -0.016},
			SensorToEE: [3]Vec3{
				{-s, -s, 0},
				{s, -s, 0},
				{0, 0, 1},
			},
		},
		Task: Task{
			ToolOffset:      Vec3{0, 0, 0.11},
			AlignPushOffset: Vec3{0, 0, 0.025},
			AlignBias:       Vec3{0, 0.005, 0},
			ForceThreshold:  DefaultForceThreshold,
			PushDistance:    DefaultPushDistance,
			ForceOffset:     Vec3{0, 0, 0.135},
			ScrewOffset:     Vec3{0, 0, 0.16},

			LastJointLimitDeg: DefaultLastJointLimit,
			ScrewMarginDeg:    DefaultScrewMargin,
			ScrewTolerance:    DefaultScrewTolerance,

			ToleranceInitQ:  DefaultToleranceInitQ,
			ToleranceInitDq: DefaultToleranceInitDq,
			MaxVelocity:     DefaultMaxVelocity,

			AlignmentWait:        time.Second,
			IntegralWindow:       DefaultWindow,
			AlignMoment:          0.1,
			AlignAngularVelocity: 0.01,
			AlignForceZ:          -1.0,

			HomeJointsDeg:      []float64{90, -30, 0, 60, 0, -90, -90},
			AlignVariant:       VariantForce,
			CheckAlignFinished: CheckAlignToAlign,
		},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Record: Record{
			Dir:   "runs",
			Every: 10,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv() {
	if addr := os.Getenv(EnvRedisAddr); addr != "" {
		c.Store.Addr = addr
	}
}

func (c *Config) Validate() error {
	if c.Store.Addr == "" {
		return fmt.Errorf("%w: store.addr is empty", ErrInvalid)
	}
	if c.Loop.FrequencyHz <= 0 {
		return fmt.Errorf("%w: loop.frequency_hz must be positive, got %d", ErrInvalid, c.Loop.FrequencyHz)
	}
	if err := c.Gains.Validate(); err != nil {
		return err
	}
	t := c.Task
	switch t.AlignVariant {
	case VariantBaseline, VariantExponential, VariantSimple, VariantForce:
	default:
		return fmt.Errorf("%w: unknown align variant %q", ErrInvalid, t.AlignVariant)
	}
	switch t.CheckAlignFinished {
	case CheckAlignToAlign, CheckAlignToRewind:
	default:
		return fmt.Errorf("%w: unknown check_align_finished target %q", ErrInvalid, t.CheckAlignFinished)
	}
	if t.IntegralWindow <= 0 {
		return fmt.Errorf("%w: task.integral_window must be positive", ErrInvalid)
	}
	if t.MaxVelocity <= 0 {
		return fmt.Errorf("%w: task.max_velocity must be positive", ErrInvalid)
	}
	if len(t.HomeJointsDeg) == 0 {
		return fmt.Errorf("%w: task.home_joints_deg is empty", ErrInvalid)
	}
	if t.ScrewMarginDeg < 0 || t.ScrewMarginDeg > t.LastJointLimitDeg {
		return fmt.Errorf("%w: task.screw_margin_deg %.1f outside [0, %.1f]", ErrInvalid, t.ScrewMarginDeg, t.LastJointLimitDeg)
	}
	return nil
}
