package processor

import (
	"context"
	"fmt"

	"github.com/evergreen-ci/bomtool/model"
	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/job"
	"github.com/mongodb/amboy/registry"
)

const repositoryJobName = "repository-command"

func init() {
	registry.AddJobType(repositoryJobName,
		func() amboy.Job { return makeRepositoryJob() })
}

// repositoryJob applies one processor's work function to one repository.
// It only runs on local queues, so it carries live pointers rather than
// serializable state.
type repositoryJob struct {
	job.Base `bson:"job_base" json:"job_base" yaml:"job_base"`

	proc   *Processor
	repo   model.RepositorySpec
	result interface{}
}

func makeRepositoryJob() *repositoryJob {
	return &repositoryJob{
		Base: job.Base{
			JobType: amboy.JobType{
				Name:    repositoryJobName,
				Version: 0,
			},
		},
	}
}

func newRepositoryJob(proc *Processor, repo model.RepositorySpec) *repositoryJob {
	j := makeRepositoryJob()
	j.proc = proc
	j.repo = repo
	j.SetID(fmt.Sprintf("%s.%s.%s", repositoryJobName, proc.opts.Name, repo.Name))
	return j
}

func (j *repositoryJob) Run(ctx context.Context) {
	defer j.MarkComplete()

	result, err := j.proc.attemptRepository(ctx, j.repo)
	if err != nil {
		j.AddError(err)
		return
	}
	j.result = result
}
