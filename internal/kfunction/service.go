package kfunction

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/banshee-data/crash-analysis/internal/monitoring"
	"github.com/banshee-data/crash-analysis/internal/netk"
	"github.com/banshee-data/crash-analysis/internal/permutation"
	"github.com/banshee-data/crash-analysis/internal/timeutil"
)

// ResultWriter receives the results of a run as they are produced. WriteRun
// is called first and CompleteRun last; the methods are never called
// concurrently.
type ResultWriter interface {
	WriteRun(ctx context.Context, run Run) error
	WriteODCM(ctx context.Context, runID string, iteration int, records []netk.DistanceRecord) error
	WriteRaw(ctx context.Context, runID string, rows []RawRow) error
	WriteSummary(ctx context.Context, runID string, rows []SummaryRow) error
	CompleteRun(ctx context.Context, run Run) error
}

// Options describes one analysis.
type Options struct {
	AnalysisType netk.AnalysisType
	Network      permutation.Network
	Sources      permutation.PointSet
	// Destinations is only used by a cross analysis.
	Destinations permutation.PointSet

	// NumBands is the requested band count; 0 derives it from the observed
	// distances.
	NumBands          int
	BeginDistance     float64
	DistanceIncrement float64
	SnapDistance      float64

	// NumPoints is the point count behind the density: the crashes of a
	// global analysis, the destinations of a cross analysis. 0 asks the
	// point set when it is a permutation.CountedPoints, and otherwise
	// counts the distinct points of the observed distances.
	NumPoints int

	NumPermutations  int
	ConfidenceLevels []float64 // default DefaultConfidenceLevels

	CoordinateSystem string
	NumPointsField   string

	// NetworkLength skips the LengthProvider when positive.
	NetworkLength float64

	// DiscountBelowBegin drops distances below BeginDistance from global
	// bands.
	DiscountBelowBegin bool
}

func (o Options) confidenceLevels() []float64 {
	if len(o.ConfidenceLevels) == 0 {
		return DefaultConfidenceLevels
	}
	return o.ConfidenceLevels
}

// policy returns the band count policy for a requested band count: global
// analyses never report bands past the data, cross analyses keep what the
// user asked for.
func (o Options) policy() netk.BandCountPolicy {
	if o.AnalysisType == netk.Cross {
		return netk.UserExact
	}
	return netk.ClampToData
}

// densityPoints returns the set whose size feeds the density.
func (o Options) densityPoints() permutation.PointSet {
	if o.AnalysisType == netk.Cross {
		return o.Destinations
	}
	return o.Sources
}

func (o Options) numPoints() int {
	if o.NumPoints > 0 {
		return o.NumPoints
	}
	if cp, ok := o.densityPoints().(permutation.CountedPoints); ok {
		return cp.Count()
	}
	return 0
}

func (o Options) validate() error {
	if o.AnalysisType != netk.Global && o.AnalysisType != netk.Cross {
		return fmt.Errorf("%w: unknown analysis type %q", netk.ErrInvalidInput, o.AnalysisType)
	}
	if !(o.DistanceIncrement > 0) || math.IsInf(o.DistanceIncrement, 0) {
		return fmt.Errorf("%w: distance increment must be positive, got %v", netk.ErrInvalidInput, o.DistanceIncrement)
	}
	if o.BeginDistance < 0 {
		return fmt.Errorf("%w: beginning distance must be non-negative, got %v", netk.ErrInvalidInput, o.BeginDistance)
	}
	if o.NumBands < 0 {
		return fmt.Errorf("%w: number of distance bands must be non-negative, got %d", netk.ErrInvalidInput, o.NumBands)
	}
	if o.NumPoints < 0 {
		return fmt.Errorf("%w: number of points must be non-negative, got %d", netk.ErrInvalidInput, o.NumPoints)
	}
	if o.NumPermutations < 0 {
		return fmt.Errorf("%w: number of permutations must be non-negative, got %d", netk.ErrInvalidInput, o.NumPermutations)
	}
	if o.NumPermutations > 0 {
		for _, c := range o.confidenceLevels() {
			if _, _, _, err := netk.EnvelopeIndices(o.NumPermutations, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Envelope is the confidence envelope at one confidence level.
type Envelope struct {
	Confidence float64
	Lower      []netk.DistanceBand
	Upper      []netk.DistanceBand
}

// Report is the in-memory result of a run.
type Report struct {
	Run      Run
	Observed *netk.Calculation
	// Trials holds the bands of every iteration; Trials[0] is observed.
	Trials    [][]netk.DistanceBand
	Envelopes []Envelope
	Raw       []RawRow
	Summary   []SummaryRow
}

// Config controls a Service.
type Config struct {
	Orchestrator permutation.Config
	// Writer is optional.
	Writer ResultWriter
	Clock  timeutil.Clock
}

// Service runs K-function analyses against a set of providers.
type Service struct {
	lengths permutation.LengthProvider
	orch    *permutation.Orchestrator
	writer  ResultWriter
	clock   timeutil.Clock
}

// NewService creates a Service.
func NewService(lengths permutation.LengthProvider, distances permutation.DistanceProvider, points permutation.PointGenerator, cfg Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.Orchestrator.Clock == nil {
		cfg.Orchestrator.Clock = clock
	}
	return &Service{
		lengths: lengths,
		orch:    permutation.NewOrchestrator(distances, points, cfg.Orchestrator),
		writer:  cfg.Writer,
		clock:   clock,
	}
}

// trialState carries what the observed trial fixes for the permutations.
type trialState struct {
	analysisType netk.AnalysisType
	params       netk.Params
	trials       [][]netk.DistanceBand
	obs          *netk.Calculation
}

// Run executes one analysis.
func (s *Service) Run(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	length := opts.NetworkLength
	if !(length > 0) {
		if s.lengths == nil {
			return nil, fmt.Errorf("%w: no network length and no length provider", netk.ErrInvalidInput)
		}
		var err error
		length, err = s.lengths.NetworkLength(ctx, opts.Network, opts.CoordinateSystem)
		if err != nil {
			return nil, &permutation.ProviderError{Op: "measure network length", Err: err}
		}
	}

	run := Run{
		ID:                uuid.New().String(),
		AnalysisType:      opts.AnalysisType,
		Network:           string(opts.Network),
		NetworkLength:     length,
		BeginDistance:     opts.BeginDistance,
		DistanceIncrement: opts.DistanceIncrement,
		SnapDistance:      opts.SnapDistance,
		NumBands:          opts.NumBands,
		NumPermutations:   opts.NumPermutations,
		ConfidenceLevels:  opts.confidenceLevels(),
		StartedAt:         s.clock.Now(),
	}
	if s.writer != nil {
		if err := s.writer.WriteRun(ctx, run); err != nil {
			return nil, fmt.Errorf("write run %s: %w", run.ID, err)
		}
	}
	monitoring.Logf("[kfunction] run %s: %s on %q, %d permutations", run.ID, opts.AnalysisType.Description(), opts.Network, opts.NumPermutations)

	st := &trialState{
		analysisType: opts.AnalysisType,
		params: netk.Params{
			NetworkLength:      length,
			BeginDistance:      opts.BeginDistance,
			DistanceIncrement:  opts.DistanceIncrement,
			NumBands:           opts.NumBands,
			NumPoints:          opts.numPoints(),
			Policy:             opts.policy(),
			DiscountBelowBegin: opts.DiscountBelowBegin,
		},
	}

	req := permutation.Request{
		AnalysisType:     opts.AnalysisType,
		Network:          opts.Network,
		Sources:          opts.Sources,
		Destinations:     opts.Destinations,
		SnapDistance:     opts.SnapDistance,
		Cutoff:           permutation.Cutoff(opts.NumBands, opts.DistanceIncrement, opts.BeginDistance),
		NumPermutations:  opts.NumPermutations,
		CoordinateSystem: opts.CoordinateSystem,
		NumPointsField:   opts.NumPointsField,
		NumPoints:        opts.numPoints(),
	}

	stats, err := s.orch.Run(ctx, req, func(records []netk.DistanceRecord, iteration int) error {
		return s.iteration(ctx, run.ID, st, records, iteration)
	})
	if err != nil {
		return nil, err
	}

	report := &Report{Observed: st.obs, Trials: st.trials}
	for i, bands := range st.trials {
		report.Raw = append(report.Raw, rawRows(i, bands)...)
	}
	report.Summary = summaryRows(ObservedDescription, st.obs.DistanceBands())
	if opts.NumPermutations > 0 {
		for _, c := range run.ConfidenceLevels {
			a, err := netk.NewNetworkKAnalysis(c, st.trials)
			if err != nil {
				return nil, err
			}
			env := Envelope{Confidence: c, Lower: a.LowerConfidenceEnvelope(), Upper: a.UpperConfidenceEnvelope()}
			report.Envelopes = append(report.Envelopes, env)
			report.Summary = append(report.Summary, summaryRows(EnvelopeDescription(c, false), env.Lower)...)
			report.Summary = append(report.Summary, summaryRows(EnvelopeDescription(c, true), env.Upper)...)
		}
	}

	run.NumBands = st.obs.NumberOfDistanceBands()
	run.NumPoints = st.obs.NumberOfPoints()
	run.Iterations = stats.Iterations
	run.Elapsed = s.clock.Since(run.StartedAt)
	report.Run = run

	if s.writer != nil {
		if err := s.writer.WriteRaw(ctx, run.ID, report.Raw); err != nil {
			return nil, fmt.Errorf("write raw rows: %w", err)
		}
		if err := s.writer.WriteSummary(ctx, run.ID, report.Summary); err != nil {
			return nil, fmt.Errorf("write summary rows: %w", err)
		}
		if err := s.writer.CompleteRun(ctx, run); err != nil {
			return nil, fmt.Errorf("complete run %s: %w", run.ID, err)
		}
	}
	monitoring.Logf("[kfunction] run %s: %d iterations, %d bands", run.ID, run.Iterations, run.NumBands)
	return report, nil
}

// iteration handles one trial. The observed trial fixes the band count and
// the point count, so every permutation has the same bands.
func (s *Service) iteration(ctx context.Context, runID string, st *trialState, records []netk.DistanceRecord, iteration int) error {
	if s.writer != nil {
		if err := s.writer.WriteODCM(ctx, runID, iteration, records); err != nil {
			return fmt.Errorf("write OD cost matrix: %w", err)
		}
	}

	if iteration == 0 && st.params.NumPoints == 0 && st.analysisType == netk.Cross {
		st.params.NumPoints = netk.CountDistinctDestinations(records)
	}
	calc, err := netk.NewCalculation(st.analysisType, st.params, records)
	if err != nil {
		return fmt.Errorf("k-function: %w", err)
	}
	if iteration == 0 {
		st.obs = calc
		st.params.NumBands = calc.NumberOfDistanceBands()
		st.params.Policy = netk.UserExact
		st.params.NumPoints = calc.NumberOfPoints()
	}

	bands := calc.DistanceBands()
	if iteration >= len(st.trials) {
		grown := make([][]netk.DistanceBand, iteration+1)
		copy(grown, st.trials)
		st.trials = grown
	}
	st.trials[iteration] = bands
	return nil
}
