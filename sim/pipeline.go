package sim

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// StepFunc is one model step. It reads and mutates the table store
// through the passed context and returns an error to abort the run.
// Param carries the step's opaque key=value suffix, if any.
type StepFunc func(ctx context.Context, rc *StepContext) error

// StepContext is everything a model step may touch while it runs. The
// store reference is only valid for the duration of the step.
type StepContext struct {
	Store    *TableStore
	Engine   *InteractionEngine
	Skims    *SkimMatrix
	Config   *RunConfig
	StepName string // full step string, including parameter suffix
	Param    Param  // parsed key=value suffix, zero when absent
}

// Param is a step name's optional single key=value parameterization,
// e.g. annotate_table.model_name=annotate_tours. Opaque to the
// orchestrator; steps interpret it.
type Param struct {
	Key   string
	Value string
}

// splitStepName separates "base.key=value" into base and param. A dot
// without a key=value suffix stays part of the base name.
func splitStepName(step string) (base string, p Param) {
	i := strings.IndexByte(step, '.')
	if i < 0 {
		return step, Param{}
	}
	suffix := step[i+1:]
	j := strings.IndexByte(suffix, '=')
	if j < 0 {
		return step, Param{}
	}
	return step[:i], Param{Key: suffix[:j], Value: suffix[j+1:]}
}

// runState tracks orchestrator progress.
type runState int

const (
	stateNotStarted runState = iota
	stateRunning
	stateCompleted
)

// Pipeline owns the ordered model list, the live table store, and the
// checkpoint log. Steps run strictly in sequence; a checkpoint is
// recorded after each successful step, and a run can resume after any
// recorded checkpoint.
type Pipeline struct {
	steps     map[string]StepFunc
	store     *TableStore
	log       *CheckpointLog
	engine    *InteractionEngine
	skims     *SkimMatrix
	config    *RunConfig
	state     runState
	stepIndex int
}

// NewPipeline creates a pipeline over an empty table store.
func NewPipeline(cfg *RunConfig, skims *SkimMatrix) *Pipeline {
	return &Pipeline{
		steps:  make(map[string]StepFunc),
		store:  NewTableStore(),
		log:    NewCheckpointLog(),
		engine: NewInteractionEngine(NewRunKey(cfg.Seed), cfg.Workers),
		skims:  skims,
		config: cfg,
	}
}

// Register binds a step implementation to a base step name.
func (p *Pipeline) Register(name string, fn StepFunc) {
	p.steps[name] = fn
}

// Store exposes the live table store. Callers outside a running step
// use it to inspect results after Run returns.
func (p *Pipeline) Store() *TableStore { return p.store }

// Checkpoints exposes the checkpoint log for querying by name.
func (p *Pipeline) Checkpoints() *CheckpointLog { return p.log }

// Run executes the configured model list. With ResumeAfter set, the
// store is restored to that checkpoint, later checkpoints are
// discarded, and execution starts at the following step. Cancellation
// is honored between steps only: the last checkpoint stays intact and
// the run stops before the next step begins. A pipeline runs one list
// at a time; calling Run again while a run is in progress fails.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	if p.state == stateRunning {
		return errors.New("pipeline run already in progress")
	}
	p.state = stateRunning
	defer func() {
		if err != nil {
			p.state = stateNotStarted
		} else {
			p.state = stateCompleted
		}
	}()

	for _, step := range p.config.Models {
		base, _ := splitStepName(step)
		if _, ok := p.steps[base]; !ok {
			return errors.Wrap(ErrUnknownStep, base)
		}
	}

	p.stepIndex = 0
	if p.config.ResumeAfter != "" {
		// Validate the resume target fully before touching the store or
		// the checkpoint log; a failed resume leaves the pipeline as it
		// was.
		next := stepAfter(p.config.Models, p.config.ResumeAfter)
		if next < 0 {
			return errors.Wrapf(ErrUnknownResumeTarget,
				"%s not in model list", p.config.ResumeAfter)
		}
		store, idx, err := p.log.Restore(p.config.ResumeAfter)
		if err != nil {
			return err
		}
		p.log.TruncateAfter(idx)
		p.store = store
		p.stepIndex = next
		logrus.Infof("resuming after %s at step %d of %d",
			p.config.ResumeAfter, p.stepIndex, len(p.config.Models))
	}

	for ; p.stepIndex < len(p.config.Models); p.stepIndex++ {
		if err := ctx.Err(); err != nil {
			logrus.Warnf("run cancelled before step %s; last checkpoint intact",
				p.config.Models[p.stepIndex])
			return err
		}
		step := p.config.Models[p.stepIndex]
		if err := p.runStep(ctx, step); err != nil {
			return errors.Wrapf(err, "step %s", step)
		}
	}
	logrus.Infof("pipeline completed: %d steps, %d checkpoints",
		len(p.config.Models), p.log.Len())
	return nil
}

func (p *Pipeline) runStep(ctx context.Context, step string) error {
	base, param := splitStepName(step)
	fn := p.steps[base]

	start := time.Now()
	logrus.Infof("[step %d/%d] running %s", p.stepIndex+1, len(p.config.Models), step)

	sc := &StepContext{
		Store:    p.store,
		Engine:   p.engine,
		Skims:    p.skims,
		Config:   p.config,
		StepName: step,
		Param:    param,
	}
	if err := fn(ctx, sc); err != nil {
		return err
	}

	// Checkpoint only after full success: checkpoints are all-or-nothing
	// per step.
	p.log.Append(step, p.store)
	logrus.Infof("[step %d/%d] %s checkpointed in %v",
		p.stepIndex+1, len(p.config.Models), step, time.Since(start).Round(time.Millisecond))
	return nil
}

// stepAfter returns the index of the step following the named one in
// the model list, or -1 when absent.
func stepAfter(models []string, name string) int {
	for i, m := range models {
		if m == name {
			return i + 1
		}
	}
	return -1
}
