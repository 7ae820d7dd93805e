// Package metrics tracks the outcome and duration of command invocations.
// Collectors are constructed once per process and passed explicitly to the
// components that record observations; there is no global registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/mongodb/grip/message"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	commandOutcomeName    = "bomtool_command_outcome_seconds"
	repositoryOutcomeName = "bomtool_repository_command_outcome_seconds"
)

// Collector records timer-style outcome observations for whole commands and
// for per-repository command invocations.
type Collector struct {
	registry          *prometheus.Registry
	commandOutcome    *prometheus.HistogramVec
	repositoryOutcome *prometheus.HistogramVec
}

// NewCollector constructs a Collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		commandOutcome: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: commandOutcomeName,
			Help: "Outcome and duration of command invocations.",
		}, []string{"command", "success"}),
		repositoryOutcome: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: repositoryOutcomeName,
			Help: "Outcome and duration of command invocations scoped to one repository.",
		}, []string{"command", "repository", "success"}),
	}
	c.registry.MustRegister(c.commandOutcome, c.repositoryOutcome)
	return c
}

// ObserveCommand records the outcome of one whole command invocation.
func (c *Collector) ObserveCommand(command string, success bool, d time.Duration) {
	c.commandOutcome.WithLabelValues(command, strconv.FormatBool(success)).Observe(d.Seconds())
}

// ObserveRepository records the outcome of a command's work on one
// repository.
func (c *Collector) ObserveRepository(command, repository string, success bool, d time.Duration) {
	c.repositoryOutcome.WithLabelValues(command, repository, strconv.FormatBool(success)).Observe(d.Seconds())
}

// Registry exposes the underlying registry, e.g. to export the collected
// observations at process exit.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Report renders every collected observation as loggable fields, one set
// per recorded label combination.
func (c *Collector) Report() []message.Fields {
	families, err := c.registry.Gather()
	if err != nil {
		return []message.Fields{{"message": "gathering collected metrics", "error": err.Error()}}
	}

	var out []message.Fields
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			fields := message.Fields{
				"metric":  family.GetName(),
				"count":   metric.GetHistogram().GetSampleCount(),
				"seconds": metric.GetHistogram().GetSampleSum(),
			}
			for _, label := range metric.GetLabel() {
				fields[label.GetName()] = label.GetValue()
			}
			out = append(out, fields)
		}
	}
	return out
}

// CommandOutcomes returns the collected whole-command observations.
func (c *Collector) CommandOutcomes() []*dto.Metric {
	return c.gather(commandOutcomeName)
}

// RepositoryOutcomes returns the collected per-repository observations.
func (c *Collector) RepositoryOutcomes() []*dto.Metric {
	return c.gather(repositoryOutcomeName)
}

func (c *Collector) gather(name string) []*dto.Metric {
	families, err := c.registry.Gather()
	if err != nil {
		return nil
	}
	for _, family := range families {
		if family.GetName() == name {
			return family.GetMetric()
		}
	}
	return nil
}
