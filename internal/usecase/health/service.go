package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openprogramia/propuestas/internal/logger"
)

// Status is the overall verdict reported by GET /health.
type Status string

const (
	// Healthy means every probe passed.
	Healthy Status = "ok"
	// Degraded means retrieval works but queries cannot be embedded.
	Degraded Status = "degraded"
	// Unhealthy means the retrieval backend is down.
	Unhealthy Status = "error"
)

// CheckResult is one probe's outcome.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Component names in Report.Checks.
const (
	ComponentRetrieval = "retrieval"
	ComponentEmbedding = "embedding"
)

const defaultCheckTimeout = 3 * time.Second

// Report is the aggregated probe outcome.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

type probe struct {
	name string
	// critical probes turn the report Unhealthy, the rest only Degraded
	critical bool
	run      func(context.Context) error
}

// Service probes the search dependencies.
type Service struct {
	probes  []probe
	timeout time.Duration
}

// New creates a Service. embedding may be nil.
func New(retrieval RetrievalPinger, embedding EmbeddingChecker) *Service {
	s := &Service{timeout: defaultCheckTimeout}
	s.probes = append(s.probes, probe{name: ComponentRetrieval, critical: true, run: retrieval.Ping})
	if embedding != nil {
		s.probes = append(s.probes, probe{name: ComponentEmbedding, run: embedding.HealthCheck})
	}
	return s
}

// Check runs all probes concurrently, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu  sync.Mutex
		rep = Report{Status: Healthy, Checks: make(map[string]CheckResult, len(s.probes))}
		g   errgroup.Group
	)
	for _, p := range s.probes {
		g.Go(func() error {
			res := s.probe(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			rep.Checks[p.name] = res
			if res == CheckError {
				rep.Status = worse(rep.Status, p.critical)
			}
			return nil
		})
	}
	_ = g.Wait()
	return rep
}

func (s *Service) probe(ctx context.Context, p probe) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := p.run(ctx); err != nil {
		logger.FromContext(ctx).Warn("health probe failed",
			zap.String("component", p.name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return CheckError
	}
	return CheckOK
}

func worse(current Status, critical bool) Status {
	if critical {
		return Unhealthy
	}
	if current == Healthy {
		return Degraded
	}
	return current
}
