package replay_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/crash-analysis/internal/db"
	"github.com/banshee-data/crash-analysis/internal/kfunction"
	"github.com/banshee-data/crash-analysis/internal/monitoring"
	"github.com/banshee-data/crash-analysis/internal/netk"
	"github.com/banshee-data/crash-analysis/internal/permutation"
	"github.com/banshee-data/crash-analysis/internal/replay"
	"github.com/banshee-data/crash-analysis/internal/testutil"
)

const exported = `Iteration_Number,OriginID,DestinationID,Total_Length
0,1,2,10
0,2,1,10
0,1,3,35.5
0,3,1,35.5
1,1,2,4
1,2,1,4
2,1,1,0
2,1,2,80
`

func quiet(t *testing.T) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = prev })
}

func TestReadCSV(t *testing.T) {
	table, err := replay.ReadCSV(strings.NewReader(exported))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, table.Iterations())
	assert.Equal(t, 2, table.Permutations())

	recs, ok := table.Records(0)
	require.True(t, ok)
	assert.Len(t, recs, 4)
	assert.Equal(t, netk.DistanceRecord{Distance: 35.5, OriginID: 1, DestinationID: 3}, recs[2])

	_, ok = table.Records(7)
	assert.False(t, ok)
}

func TestReadCSVColumnOrder(t *testing.T) {
	in := "total_length, destinationid, originid, iteration_number, note\n12.5, 4, 3, 0, x\n"
	table, err := replay.ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	recs, _ := table.Records(0)
	assert.Equal(t, []netk.DistanceRecord{{Distance: 12.5, OriginID: 3, DestinationID: 4}}, recs)
}

func TestReadCSVErrors(t *testing.T) {
	testCases := []struct {
		name string
		in   string
	}{
		{"missing column", "Iteration_Number,OriginID,Total_Length\n0,1,2\n"},
		{"bad iteration", "Iteration_Number,OriginID,DestinationID,Total_Length\nfirst,1,2,3\n"},
		{"negative iteration", "Iteration_Number,OriginID,DestinationID,Total_Length\n-1,1,2,3\n"},
		{"bad origin", "Iteration_Number,OriginID,DestinationID,Total_Length\n0,a,2,3\n"},
		{"bad destination", "Iteration_Number,OriginID,DestinationID,Total_Length\n0,1,b,3\n"},
		{"negative length", "Iteration_Number,OriginID,DestinationID,Total_Length\n0,1,2,-3\n"},
		{"no observed", "Iteration_Number,OriginID,DestinationID,Total_Length\n1,1,2,3\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := replay.ReadCSV(strings.NewReader(tc.in))
			assert.ErrorIs(t, err, netk.ErrInvalidInput)
		})
	}

	_, err := replay.ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	table, err := replay.ReadCSV(strings.NewReader(exported))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))
	assert.Equal(t, exported, buf.String())
}

func TestComputeDistancesFilters(t *testing.T) {
	table, err := replay.ReadCSV(strings.NewReader(exported))
	require.NoError(t, err)
	ctx := context.Background()

	cutoff := 20.0
	recs, err := table.ComputeDistances(ctx, permutation.DistanceRequest{
		Sources:      permutation.NamedPoints("crashes"),
		Destinations: permutation.NamedPoints("crashes"),
		Self:         true,
		Cutoff:       &cutoff,
	})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	points, err := table.Generate(ctx, permutation.GenerateRequest{Iteration: 2})
	require.NoError(t, err)
	assert.Equal(t, "TEMP_RANDOM_POINTS_2", points.Name())
	assert.Equal(t, 1, table.Outstanding())

	recs, err = table.ComputeDistances(ctx, permutation.DistanceRequest{Sources: points, Destinations: points, Self: true})
	require.NoError(t, err)
	assert.Equal(t, []netk.DistanceRecord{{Distance: 80, OriginID: 1, DestinationID: 2}}, recs)

	require.NoError(t, points.Release(ctx))
	assert.Error(t, points.Release(ctx))
	assert.Zero(t, table.Outstanding())

	_, err = table.Generate(ctx, permutation.GenerateRequest{Iteration: 3})
	assert.ErrorIs(t, err, replay.ErrIterationMissing)
	_, err = table.Generate(ctx, permutation.GenerateRequest{Iteration: 0})
	assert.ErrorIs(t, err, replay.ErrIterationMissing)
}

func TestNetworkLength(t *testing.T) {
	table := replay.NewTable()
	_, err := table.NetworkLength(context.Background(), "streets", "")
	assert.Error(t, err)

	table.SetNetworkLength(1500)
	length, err := table.NetworkLength(context.Background(), "streets", "")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, length)
}

func TestReplayTooManyPermutations(t *testing.T) {
	quiet(t)
	table, err := replay.ReadCSV(strings.NewReader(exported))
	require.NoError(t, err)
	table.SetNetworkLength(100)

	svc := kfunction.NewService(table, table, table, kfunction.Config{
		Orchestrator: permutation.Config{Progress: permutation.ProgressFunc(func(string) {})},
	})
	_, err = svc.Run(context.Background(), kfunction.Options{
		AnalysisType:      netk.Global,
		Network:           "streets",
		Sources:           permutation.NamedPoints("crashes"),
		DistanceIncrement: 10,
		NumPermutations:   9,
	})
	assert.ErrorIs(t, err, netk.ErrProviderFailure)
	assert.True(t, errors.Is(err, replay.ErrIterationMissing))
	assert.Zero(t, table.Outstanding())
}

// TestReplayRecordedRun records a run in the store, loads it back and
// checks that the replay reproduces every trial.
func TestReplayRecordedRun(t *testing.T) {
	quiet(t)
	ctx := context.Background()

	store, err := db.Open(filepath.Join(t.TempDir(), "netk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	net := testutil.NewLineNetwork(300, 21)
	progress := permutation.Config{Progress: permutation.ProgressFunc(func(string) {})}
	opts := kfunction.Options{
		AnalysisType:      netk.Global,
		Network:           "streets",
		Sources:           testutil.NewLinePoints("crashes", 10, 25, 70, 150, 155),
		DistanceIncrement: 25,
		NumPermutations:   9,
	}
	recorded, err := kfunction.NewService(net, net, net, kfunction.Config{Writer: store, Orchestrator: progress}).Run(ctx, opts)
	require.NoError(t, err)

	table, run, err := replay.LoadRun(ctx, store, recorded.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, table.Permutations())
	assert.Equal(t, 300.0, run.NetworkLength)

	opts.Sources = permutation.NamedPoints("crashes")
	replayed, err := kfunction.NewService(table, table, table, kfunction.Config{Orchestrator: progress}).Run(ctx, opts)
	require.NoError(t, err)

	if diff := cmp.Diff(recorded.Trials, replayed.Trials); diff != "" {
		t.Errorf("replayed trials mismatch (-recorded +replayed):\n%s", diff)
	}
	assert.Equal(t, recorded.Summary, replayed.Summary)

	// Re-binning the same recording with wider bands.
	opts.DistanceIncrement = 50
	rebinned, err := kfunction.NewService(table, table, table, kfunction.Config{Orchestrator: progress}).Run(ctx, opts)
	require.NoError(t, err)
	assert.Less(t, rebinned.Run.NumBands, recorded.Run.NumBands)

	_, _, err = replay.LoadRun(ctx, store, "missing")
	assert.ErrorIs(t, err, db.ErrRunNotFound)
}

func TestReadCSVFillsEmptyPermutations(t *testing.T) {
	// Iteration 2 had no pair inside the cutoff and wrote no rows.
	in := `Iteration_Number,OriginID,DestinationID,Total_Length
0,1,2,10
0,2,1,10
1,1,2,30
1,2,1,30
3,1,2,5
3,2,1,5
`
	table, err := replay.ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 3, table.Permutations())
	assert.Equal(t, []int{0, 1, 2, 3}, table.Iterations())

	recs, ok := table.Records(2)
	require.True(t, ok)
	assert.Empty(t, recs)

	quiet(t)
	table.SetNetworkLength(100)
	report, err := kfunction.NewService(table, table, table, kfunction.Config{
		Orchestrator: permutation.Config{Progress: permutation.ProgressFunc(func(string) {})},
	}).Run(context.Background(), kfunction.Options{
		AnalysisType:      netk.Global,
		Network:           "streets",
		Sources:           permutation.NamedPoints("crashes"),
		DistanceIncrement: 10,
		NumPermutations:   table.Permutations(),
		ConfidenceLevels:  []float64{0.5},
	})
	require.NoError(t, err)
	require.Len(t, report.Trials, 4)
	assert.Equal(t, []int{0, 0}, testutil.BandCounts(report.Trials[2]))
}

func TestReplayCrossCountsDestinations(t *testing.T) {
	quiet(t)
	// One bridge (1) to three crashes (2, 3, 4).
	in := `Iteration_Number,OriginID,DestinationID,Total_Length
0,1,2,5
0,1,3,15
0,1,4,25
`
	table, err := replay.ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	table.SetNetworkLength(600)

	report, err := kfunction.NewService(table, table, table, kfunction.Config{
		Orchestrator: permutation.Config{Progress: permutation.ProgressFunc(func(string) {})},
	}).Run(context.Background(), kfunction.Options{
		AnalysisType:      netk.Cross,
		Network:           "streets",
		Sources:           permutation.NamedPoints("bridges"),
		Destinations:      permutation.NamedPoints("crashes"),
		DistanceIncrement: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Run.NumPoints)
	assert.InDelta(t, 600.0/6, report.Observed.PointNetworkDensity(), 1e-9)
	assert.Equal(t, []int{1, 1, 1, 0}, testutil.BandCounts(report.Observed.DistanceBands()))
}
