package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/crash-analysis/internal/monitoring"
)

const odcm = `Iteration_Number,OriginID,DestinationID,Total_Length
0,1,2,40
0,2,1,40
0,1,3,90
0,3,1,90
0,2,3,130
0,3,2,130
1,1,2,300
1,2,1,300
1,1,3,20
1,3,1,20
2,1,2,75
2,2,1,75
`

func setup(t *testing.T) (dir string) {
	t.Helper()
	prev := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = prev })

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "odcm.csv"), []byte(odcm), 0644))
	return dir
}

func TestAnalyzeCSV(t *testing.T) {
	dir := setup(t)
	dbPath := filepath.Join(dir, "netk.db")
	htmlPath := filepath.Join(dir, "k.html")
	pngPath := filepath.Join(dir, "k.png")

	var out bytes.Buffer
	err := handleAnalyze(context.Background(), []string{
		"--quiet",
		"--odcm", filepath.Join(dir, "odcm.csv"),
		"--network-length", "1000",
		"--increment", "50",
		"--permutations", "2",
		"--db", dbPath,
		"--html", htmlPath,
		"--png", pngPath,
	}, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Global Analysis")
	assert.Contains(t, text, "1,000 length units")
	// 40, 90 and 130 need bands 0..150.
	assert.Contains(t, text, "4 bands")

	for _, p := range []string{htmlPath, pngPath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	out.Reset()
	require.NoError(t, handleRuns(context.Background(), []string{"--db", dbPath}, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	runID := strings.Fields(lines[1])[0]

	out.Reset()
	require.NoError(t, handleExport(context.Background(), []string{"--db", dbPath, "--run", runID}, &out))
	assert.Equal(t, odcm, out.String())

	out.Reset()
	err = handleAnalyze(context.Background(), []string{
		"--quiet",
		"--db", dbPath,
		"--replay-run", runID,
		"--increment", "100",
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "3 bands")
	assert.Contains(t, out.String(), "2 permutations")
}

func TestAnalyzePointsOverride(t *testing.T) {
	dir := setup(t)

	var out bytes.Buffer
	err := handleAnalyze(context.Background(), []string{
		"--quiet",
		"--odcm", filepath.Join(dir, "odcm.csv"),
		"--network-length", "1000",
		"--permutations", "0",
		"--points", "5",
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "5 points, 6 observed distances")
}

func TestAnalyzeFlagErrors(t *testing.T) {
	dir := setup(t)
	csvPath := filepath.Join(dir, "odcm.csv")

	testCases := []struct {
		name string
		args []string
	}{
		{"no source", []string{"--quiet"}},
		{"two sources", []string{"--quiet", "--odcm", csvPath, "--replay-run", "abc", "--db", filepath.Join(dir, "x.db")}},
		{"replay without db", []string{"--quiet", "--replay-run", "abc"}},
		{"missing csv", []string{"--quiet", "--odcm", filepath.Join(dir, "nope.csv")}},
		{"no network length", []string{"--quiet", "--odcm", csvPath}},
		{"too many permutations", []string{"--quiet", "--odcm", csvPath, "--network-length", "10", "--permutations", "9"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, handleAnalyze(context.Background(), tc.args, &out))
		})
	}
}

func TestRunsAndExportRequireFlags(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, handleRuns(context.Background(), nil, &out))
	assert.Error(t, handleExport(context.Background(), []string{"--db", "x.db"}, &out))
}
