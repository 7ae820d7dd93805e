// Package processor runs a unit of per-repository work across a set of
// source repositories, either one at a time or on a bounded local queue,
// and funnels the results through an optional postprocessing hook.
package processor

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/metrics"
	"github.com/evergreen-ci/bomtool/model"
	"github.com/evergreen-ci/bomtool/scm"
	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/queue"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// State names a phase in a processor's lifecycle.
type State string

const (
	StateCreated       State = "CREATED"
	StatePreprocessed  State = "PREPROCESSED"
	StateExecuting     State = "EXECUTING"
	StatePostprocessed State = "POSTPROCESSED"
	StateFailed        State = "FAILED"
)

const waitInterval = 10 * time.Millisecond

// PreprocessFunc runs once before any repository work starts.
type PreprocessFunc func(ctx context.Context) error

// PostprocessFunc combines the per-repository results, keyed by repository
// name, into the command's final result. It runs on the calling goroutine
// only after every repository succeeded.
type PostprocessFunc func(ctx context.Context, results map[string]interface{}) (interface{}, error)

// Options configures a Processor.
type Options struct {
	// Name labels the command for logging and metrics.
	Name string

	Settings  *bomtool.Settings
	Manager   scm.SourceCodeManager
	Collector *metrics.Collector

	// Repositories, when non-empty, names the target repositories
	// explicitly. Otherwise targets come from the manager's database
	// entries passing Filter.
	Repositories []string
	Filter       scm.Predicate

	// Work is applied to every target repository after its working copy
	// is ensured.
	Work scm.RepositoryFunc

	Preprocess  PreprocessFunc
	Postprocess PostprocessFunc

	// Workers bounds queue concurrency; zero means the default.
	Workers int
}

func (opts *Options) validate() error {
	if opts.Name == "" {
		return errors.New("processor options require a command name")
	}
	if opts.Settings == nil {
		return errors.New("processor options require settings")
	}
	if opts.Manager == nil {
		return errors.New("processor options require a source code manager")
	}
	if opts.Collector == nil {
		return errors.New("processor options require a metrics collector")
	}
	if opts.Work == nil {
		return errors.New("processor options require a work function")
	}
	if opts.Filter == nil {
		opts.Filter = scm.InBOMFilter
	}
	if opts.Workers <= 0 {
		opts.Workers = bomtool.DefaultWorkers
	}
	return nil
}

// Processor applies one command's repository work across its resolved
// targets. Construct one per command invocation; Run may be called once.
type Processor struct {
	opts  Options
	repos []model.RepositorySpec
	state State
}

// NewProcessor resolves the target repositories and returns a processor
// ready to run. The only-repositories restriction from the settings
// narrows both explicit and filtered targets.
func NewProcessor(opts Options) (*Processor, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var repos []model.RepositorySpec
	var err error
	if len(opts.Repositories) > 0 {
		for _, name := range opts.Repositories {
			repo, specErr := opts.Manager.MakeRepositorySpec(name)
			if specErr != nil {
				return nil, specErr
			}
			repos = append(repos, repo)
		}
	} else {
		repos, err = opts.Manager.FilterSourceRepositories(opts.Filter)
		if err != nil {
			return nil, err
		}
	}

	if len(opts.Settings.OnlyRepositories) > 0 {
		only := map[string]bool{}
		for _, name := range opts.Settings.OnlyRepositories {
			only[name] = true
		}
		narrowed := []model.RepositorySpec{}
		for _, repo := range repos {
			if only[repo.Name] {
				narrowed = append(narrowed, repo)
			}
		}
		repos = narrowed
	}

	return &Processor{opts: opts, repos: repos, state: StateCreated}, nil
}

// State reports the processor's current lifecycle phase.
func (p *Processor) State() State { return p.state }

// Repositories returns the resolved target specs.
func (p *Processor) Repositories() []model.RepositorySpec { return p.repos }

// Run executes the command across every target repository. Every target
// is attempted even when earlier ones fail; any failure fails the whole
// run and skips postprocessing.
func (p *Processor) Run(ctx context.Context) (interface{}, error) {
	if p.state != StateCreated {
		return nil, errors.Errorf("processor for command '%s' has already run (state %s)", p.opts.Name, p.state)
	}

	start := time.Now()
	result, err := p.run(ctx)
	if err != nil {
		p.state = StateFailed
	}
	p.opts.Collector.ObserveCommand(p.opts.Name, err == nil, time.Since(start))
	return result, err
}

func (p *Processor) run(ctx context.Context) (interface{}, error) {
	if p.opts.Preprocess != nil {
		if err := p.opts.Preprocess(ctx); err != nil {
			return nil, errors.Wrapf(err, "preprocessing command '%s'", p.opts.Name)
		}
	}
	p.state = StatePreprocessed

	grip.Info(message.Fields{
		"message":       "processing repositories",
		"command":       p.opts.Name,
		"repositories":  len(p.repos),
		"one_at_a_time": p.opts.Settings.OneAtATime,
	})

	p.state = StateExecuting
	var results map[string]interface{}
	var failed []string
	var err error
	if p.opts.Settings.OneAtATime {
		results, failed, err = p.runSerial(ctx)
	} else {
		results, failed, err = p.runQueue(ctx)
	}
	if err != nil {
		sort.Strings(failed)
		return nil, errors.Wrapf(err, "command '%s' failed for repositories [%s]",
			p.opts.Name, strings.Join(failed, ", "))
	}

	if p.opts.Postprocess == nil {
		p.state = StatePostprocessed
		return results, nil
	}
	final, err := p.opts.Postprocess(ctx, results)
	if err != nil {
		return nil, errors.Wrapf(err, "postprocessing command '%s'", p.opts.Name)
	}
	p.state = StatePostprocessed
	return final, nil
}

// attemptRepository ensures one working copy and applies the work
// function, recording a per-repository outcome observation either way.
func (p *Processor) attemptRepository(ctx context.Context, repo model.RepositorySpec) (interface{}, error) {
	start := time.Now()
	result, err := p.attempt(ctx, repo)
	p.opts.Collector.ObserveRepository(p.opts.Name, repo.Name, err == nil, time.Since(start))
	if err != nil {
		grip.Error(message.WrapError(err, message.Fields{
			"message":    "repository attempt failed",
			"command":    p.opts.Name,
			"repository": repo.Name,
		}))
	}
	return result, err
}

func (p *Processor) attempt(ctx context.Context, repo model.RepositorySpec) (interface{}, error) {
	if err := p.opts.Manager.EnsureLocalRepository(ctx, repo); err != nil {
		return nil, errors.Wrapf(err, "ensuring local repository '%s'", repo.Name)
	}
	return p.opts.Work(ctx, repo)
}

func (p *Processor) runSerial(ctx context.Context) (map[string]interface{}, []string, error) {
	results := map[string]interface{}{}
	failed := []string{}
	catcher := grip.NewBasicCatcher()
	for _, repo := range p.repos {
		result, err := p.attemptRepository(ctx, repo)
		if err != nil {
			failed = append(failed, repo.Name)
			catcher.Add(errors.Wrapf(err, "repository '%s'", repo.Name))
			continue
		}
		results[repo.Name] = result
	}
	return results, failed, catcher.Resolve()
}

func (p *Processor) runQueue(ctx context.Context) (map[string]interface{}, []string, error) {
	q := queue.NewLocalLimitedSize(p.opts.Workers, len(p.repos)+1)
	if err := q.Start(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "starting local queue")
	}
	defer q.Close(ctx)

	catcher := grip.NewBasicCatcher()
	for _, repo := range p.repos {
		catcher.Add(q.Put(ctx, newRepositoryJob(p, repo)))
	}
	if catcher.HasErrors() {
		return nil, nil, errors.Wrap(catcher.Resolve(), "enqueueing repository jobs")
	}

	amboy.WaitInterval(ctx, q, waitInterval)

	results := map[string]interface{}{}
	failed := []string{}
	for job := range q.Results(ctx) {
		j, ok := job.(*repositoryJob)
		if !ok {
			continue
		}
		if err := j.Error(); err != nil {
			failed = append(failed, j.repo.Name)
			catcher.Add(errors.Wrapf(err, "repository '%s'", j.repo.Name))
			continue
		}
		results[j.repo.Name] = j.result
	}
	return results, failed, catcher.Resolve()
}
