package input

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/meltforce/repflow/internal/clock"
)

// Profile configures a simulated athlete: reaction-time range, per-rep
// cadence, how long they linger in manual rests, and the probability of
// injected pauses/skips. PauseRule/SkipRule optionally replace the plain
// probabilities with expr expressions evaluated against live session fields
// (e.g. "step_index > 3 && step_type == 'reps'").
type Profile struct {
	ReactionMinSec    float64 `json:"reaction_min_sec"`
	ReactionMaxSec    float64 `json:"reaction_max_sec"`
	SecondsPerRep     float64 `json:"seconds_per_rep"`
	RestMultiplierMin float64 `json:"rest_multiplier_min"`
	RestMultiplierMax float64 `json:"rest_multiplier_max"`
	PauseProbability  float64 `json:"pause_probability"`
	SkipProbability   float64 `json:"skip_probability"`
	PauseRule         string  `json:"pause_rule,omitempty"`
	SkipRule          string  `json:"skip_rule,omitempty"`
}

// DefaultProfile returns a steady athlete: quick reactions, honest rests,
// no injected pauses or skips.
func DefaultProfile() Profile {
	return Profile{
		ReactionMinSec:    1,
		ReactionMaxSec:    3,
		SecondsPerRep:     3,
		RestMultiplierMin: 1.0,
		RestMultiplierMax: 1.5,
	}
}

// SimProvider synthesizes user behavior from a Profile, resolving each wait
// after a virtual-time delay via the clock. Used for automated end-to-end
// runs and demos, never by the engine's own transition logic.
type SimProvider struct {
	clk     clock.Clock
	profile Profile
	env     func() map[string]any // live session fields for rule evaluation

	mu    sync.Mutex
	rng   *rand.Rand
	cache map[string]*vm.Program
}

// NewSimProvider creates a simulated provider. env supplies the session
// fields visible to rule expressions and may be nil; seed fixes the random
// sequence so a simulation replays deterministically.
func NewSimProvider(clk clock.Clock, profile Profile, seed int64, env func() map[string]any) *SimProvider {
	return &SimProvider{
		clk:     clk,
		profile: profile,
		env:     env,
		rng:     rand.New(rand.NewSource(seed)),
		cache:   make(map[string]*vm.Program),
	}
}

// WaitForAdvance resolves after a sampled reaction delay.
func (p *SimProvider) WaitForAdvance(ctx context.Context) error {
	return p.clk.Sleep(ctx, p.reaction())
}

// WaitForRepsEntry resolves after reaction plus per-rep cadence time and
// reports the full target as completed.
func (p *SimProvider) WaitForRepsEntry(ctx context.Context, target int) (int, error) {
	d := p.reaction() + time.Duration(float64(target)*p.profile.SecondsPerRep*float64(time.Second))
	if err := p.clk.Sleep(ctx, d); err != nil {
		return 0, err
	}
	return target, nil
}

// WaitForReadyAfterRest resolves after reaction scaled by a sampled rest
// multiplier, modeling an athlete who over- or under-stays manual rests.
func (p *SimProvider) WaitForReadyAfterRest(ctx context.Context) error {
	d := time.Duration(float64(p.reaction()) * p.sample(p.profile.RestMultiplierMin, p.profile.RestMultiplierMax))
	return p.clk.Sleep(ctx, d)
}

// ShouldInjectPause consults PauseRule when set, otherwise PauseProbability.
func (p *SimProvider) ShouldInjectPause() bool {
	if p.profile.PauseRule != "" {
		return p.evalRule(p.profile.PauseRule)
	}
	return p.roll(p.profile.PauseProbability)
}

// ShouldInjectSkip consults SkipRule when set, otherwise SkipProbability.
func (p *SimProvider) ShouldInjectSkip() bool {
	if p.profile.SkipRule != "" {
		return p.evalRule(p.profile.SkipRule)
	}
	return p.roll(p.profile.SkipProbability)
}

func (p *SimProvider) reaction() time.Duration {
	secs := p.sample(p.profile.ReactionMinSec, p.profile.ReactionMaxSec)
	return time.Duration(secs * float64(time.Second))
}

func (p *SimProvider) sample(min, max float64) float64 {
	if max <= min {
		return min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return min + p.rng.Float64()*(max-min)
}

func (p *SimProvider) roll(probability float64) bool {
	if probability <= 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < probability
}

// evalRule compiles (with caching) and evaluates a rule expression against
// the session env. Any compile/run error or non-bool result reads as false:
// a bad rule must never wedge a simulation.
func (p *SimProvider) evalRule(rule string) bool {
	env := map[string]any{}
	if p.env != nil {
		env = p.env()
	}

	prg, err := p.getOrCompile(rule, env)
	if err != nil {
		return false
	}
	out, err := vm.Run(prg, env)
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

func (p *SimProvider) getOrCompile(rule string, env map[string]any) (*vm.Program, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prg, ok := p.cache[rule]; ok {
		return prg, nil
	}
	prg, err := expr.Compile(rule, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	p.cache[rule] = prg
	return prg, nil
}
