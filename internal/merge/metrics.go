package merge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/logfields"
)

const metricNamespace = "prmerger"

const (
	candidatesMetricName  = "candidates_total"
	mergesMetricName      = "merges_total"
	conflictsMetricName   = "conflicts_total"
	bumpCommitsMetricName = "bump_commits_total"
)

const (
	repositoryLabel = "repository"
	outcomeLabel    = "outcome"
)

type candidateOutcomeLabelVal string

const (
	candidateOutcomeSelected candidateOutcomeLabelVal = "selected"
	candidateOutcomeExcluded candidateOutcomeLabelVal = "excluded"
)

type metricCollector struct {
	logger      *zap.Logger
	candidates  *prometheus.CounterVec
	merges      *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	bumpCommits *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		candidates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      candidatesMetricName,
				Help:      "count of evaluated pull requests by selection outcome",
			},
			[]string{repositoryLabel, outcomeLabel},
		),
		merges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      mergesMetricName,
				Help:      "count of successfully merged pull requests and branches",
			},
			[]string{repositoryLabel},
		),
		conflicts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      conflictsMetricName,
				Help:      "count of pull requests and branches that could not be merged",
			},
			[]string{repositoryLabel},
		),
		bumpCommits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      bumpCommitsMetricName,
				Help:      "count of created bump commits",
			},
			[]string{repositoryLabel},
		),
	}
}

func (m *metricCollector) logGetMetricFailed(metricName string, err error) {
	m.logger.Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

func (m *metricCollector) CandidatesInc(repository string, outcome candidateOutcomeLabelVal) {
	cnt, err := m.candidates.GetMetricWith(prometheus.Labels{
		repositoryLabel: repository,
		outcomeLabel:    string(outcome),
	})
	if err != nil {
		m.logGetMetricFailed(candidatesMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) inc(vec *prometheus.CounterVec, metricName, repository string) {
	cnt, err := vec.GetMetricWith(prometheus.Labels{repositoryLabel: repository})
	if err != nil {
		m.logGetMetricFailed(metricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) MergesInc(repository string) {
	m.inc(m.merges, mergesMetricName, repository)
}

func (m *metricCollector) ConflictsInc(repository string) {
	m.inc(m.conflicts, conflictsMetricName, repository)
}

func (m *metricCollector) BumpCommitsInc(repository string) {
	m.inc(m.bumpCommits, bumpCommitsMetricName, repository)
}

// WriteMetrics writes all registered metrics in the Prometheus text
// format to the file at path.
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
