// Package telemetry is the controller's view of the Redis key-value store
// it shares with the simulator, the robot driver and the operator UI.
//
// Values are plain strings: scalars in strconv form, vectors space
// separated. Each tick's reads are independent pipelined GETs, not a
// transaction, so a sample may mix values written at different times.
package telemetry

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bottlecap/internal/config"
)

var (
	ErrKeyMissing = errors.New("telemetry: key not set")
	ErrMalformed  = errors.New("telemetry: malformed value")
)

// Read is the outcome of fetching one value. OK is false when Err is set.
type Read[T any] struct {
	Value T
	OK    bool
	Err   error
}

func (r Read[T]) Missing() bool   { return errors.Is(r.Err, ErrKeyMissing) }
func (r Read[T]) Malformed() bool { return errors.Is(r.Err, ErrMalformed) }

// Sample is everything the controller reads in one tick.
type Sample struct {
	Q      Read[[]float64]
	DQ     Read[[]float64]
	Wrench Read[[]float64]
	Gains  map[string]Read[float64]
	UIFlag Read[float64]
}

// SensorErr reports the first unusable sensor value: missing, malformed
// or of the wrong length.
func (s Sample) SensorErr(dof int) error {
	checks := []struct {
		name string
		read Read[[]float64]
		n    int
	}{
		{"joint positions", s.Q, dof},
		{"joint velocities", s.DQ, dof},
		{"force sensor", s.Wrench, 6},
	}
	for _, c := range checks {
		if !c.read.OK {
			return c.read.Err
		}
		if len(c.read.Value) != c.n {
			return errors.Wrapf(ErrMalformed, "%s: got %d values, want %d", c.name, len(c.read.Value), c.n)
		}
	}
	return nil
}

// Publication is everything the controller writes in one tick.
type Publication struct {
	Torque      []float64
	EEPos       r3.Vector
	EEPosDes    r3.Vector
	Wrench      []float64
	Theta       float64
	Pivot       r3.Vector
	Phase       string
	Diagnostics map[string][]float64
	Matrices    map[string]mat.Matrix
}

// Status is the controller state as seen by a monitor.
type Status struct {
	Phase    string
	Theta    float64
	Torque   []float64
	EEPos    r3.Vector
	EEPosDes r3.Vector
	Pivot    r3.Vector
	Wrench   []float64
}

type Store struct {
	rdb  *redis.Client
	keys Keys
	log  *zap.Logger
}

func New(rdb *redis.Client, keys Keys, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{rdb: rdb, keys: keys, log: log}
}

// Dial connects to the configured server and checks it responds.
func Dial(ctx context.Context, cfg config.Store, keys Keys, log *zap.Logger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.IOTimeout,
		WriteTimeout: cfg.IOTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrapf(err, "connect to %s", cfg.Addr)
	}
	return New(rdb, keys, log), nil
}

func (s *Store) Keys() Keys { return s.keys }

func (s *Store) Close() error { return s.rdb.Close() }

// SeedGains writes every gain that has no value yet and returns the names
// it wrote. Existing values are left for the operator.
func (s *Store) SeedGains(ctx context.Context, g config.Gains) ([]string, error) {
	fields := g.Fields()
	cmds := make([]*redis.BoolCmd, len(fields))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, f := range fields {
			cmds[i] = pipe.SetNX(ctx, s.keys.Gain(f.Name), FormatFloat(*f.Value), 0)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "seed gains")
	}

	var seeded []string
	for i, cmd := range cmds {
		if cmd.Val() {
			seeded = append(seeded, fields[i].Name)
		}
	}
	s.log.Debug("seeded gains", zap.Strings("gains", seeded))
	return seeded, nil
}

func (s *Store) ResetUIFlag(ctx context.Context) error {
	return errors.Wrap(s.rdb.Set(ctx, s.keys.UIFlag, "0", 0).Err(), "reset ui flag")
}

// Fetch reads one tick's sample. Missing or malformed values are reported
// per field; only a failed round trip is returned as an error.
func (s *Store) Fetch(ctx context.Context) (Sample, error) {
	var g config.Gains
	fields := g.Fields()

	pipe := s.rdb.Pipeline()
	q := pipe.Get(ctx, s.keys.JointPositions)
	dq := pipe.Get(ctx, s.keys.JointVelocities)
	w := pipe.Get(ctx, s.keys.Sensor)
	ui := pipe.Get(ctx, s.keys.UIFlag)
	gains := make([]*redis.StringCmd, len(fields))
	for i, f := range fields {
		gains[i] = pipe.Get(ctx, s.keys.Gain(f.Name))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Sample{}, errors.Wrap(err, "fetch sample")
	}

	sample := Sample{
		Q:      vectorRead(q, s.keys.JointPositions),
		DQ:     vectorRead(dq, s.keys.JointVelocities),
		Wrench: vectorRead(w, s.keys.Sensor),
		UIFlag: scalarRead(ui, s.keys.UIFlag),
		Gains:  make(map[string]Read[float64], len(fields)),
	}
	for i, f := range fields {
		sample.Gains[f.Name] = scalarRead(gains[i], s.keys.Gain(f.Name))
	}
	return sample, nil
}

func vectorRead(cmd *redis.StringCmd, key string) Read[[]float64] {
	raw, err := cmd.Result()
	if err != nil {
		return Read[[]float64]{Err: getErr(err, key)}
	}
	v, err := DecodeVector(raw)
	if err != nil {
		return Read[[]float64]{Err: errors.Wrapf(err, "key %s", key)}
	}
	return Read[[]float64]{Value: v, OK: true}
}

func scalarRead(cmd *redis.StringCmd, key string) Read[float64] {
	raw, err := cmd.Result()
	if err != nil {
		return Read[float64]{Err: getErr(err, key)}
	}
	v, err := ParseFloat(raw)
	if err != nil {
		return Read[float64]{Err: errors.Wrapf(err, "key %s", key)}
	}
	return Read[float64]{Value: v, OK: true}
}

func getErr(err error, key string) error {
	if errors.Is(err, redis.Nil) {
		return errors.Wrapf(ErrKeyMissing, "key %s", key)
	}
	return errors.Wrapf(err, "get %s", key)
}

// Publish writes one tick's outputs in a single round trip.
func (s *Store) Publish(ctx context.Context, p Publication) error {
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.keys.CommandTorques, EncodeVector(p.Torque), 0)
		pipe.Set(ctx, s.keys.EEPos, encodeR3(p.EEPos), 0)
		pipe.Set(ctx, s.keys.EEPosDes, encodeR3(p.EEPosDes), 0)
		pipe.Set(ctx, s.keys.Pivot, encodeR3(p.Pivot), 0)
		pipe.Set(ctx, s.keys.Theta, FormatFloat(p.Theta), 0)
		pipe.Set(ctx, s.keys.Phase, p.Phase, 0)
		if len(p.Wrench) > 0 {
			pipe.Set(ctx, s.keys.SensorController, EncodeVector(p.Wrench), 0)
		}
		for name, v := range p.Diagnostics {
			pipe.Set(ctx, s.keys.Diagnostic(name), EncodeVector(v), 0)
		}
		for name, m := range p.Matrices {
			pipe.Set(ctx, s.keys.Diagnostic(name), EncodeMatrix(m), 0)
		}
		return nil
	})
	return errors.Wrap(err, "publish")
}

func (s *Store) PublishTorque(ctx context.Context, tau []float64) error {
	return errors.Wrap(s.rdb.Set(ctx, s.keys.CommandTorques, EncodeVector(tau), 0).Err(), "publish torque")
}

// Status reads the published controller state. Unset entries stay zero.
func (s *Store) Status(ctx context.Context) (Status, error) {
	pipe := s.rdb.Pipeline()
	phase := pipe.Get(ctx, s.keys.Phase)
	theta := pipe.Get(ctx, s.keys.Theta)
	tau := pipe.Get(ctx, s.keys.CommandTorques)
	pos := pipe.Get(ctx, s.keys.EEPos)
	des := pipe.Get(ctx, s.keys.EEPosDes)
	pivot := pipe.Get(ctx, s.keys.Pivot)
	wrench := pipe.Get(ctx, s.keys.SensorController)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Status{}, errors.Wrap(err, "read status")
	}

	st := Status{Phase: phase.Val()}
	if r := scalarRead(theta, s.keys.Theta); r.OK {
		st.Theta = r.Value
	}
	if r := vectorRead(tau, s.keys.CommandTorques); r.OK {
		st.Torque = r.Value
	}
	if r := vectorRead(wrench, s.keys.SensorController); r.OK {
		st.Wrench = r.Value
	}
	st.EEPos = decodeR3(pos)
	st.EEPosDes = decodeR3(des)
	st.Pivot = decodeR3(pivot)
	return st, nil
}

func encodeR3(v r3.Vector) string {
	return EncodeVector([]float64{v.X, v.Y, v.Z})
}

func decodeR3(cmd *redis.StringCmd) r3.Vector {
	v, err := DecodeVector(cmd.Val())
	if err != nil || len(v) != 3 {
		return r3.Vector{}
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}
