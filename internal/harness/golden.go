package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares its trace snapshot against
// the golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) {
	t.Helper()

	runner, closeStore, err := NewRunner(t.TempDir())
	if err != nil {
		t.Fatalf("creating runner: %v", err)
	}
	defer closeStore()

	result, err := runner.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("running scenario %s: %v", sc.Name, err)
	}
	for _, failure := range result.Failures {
		t.Errorf("scenario %s: %s", sc.Name, failure)
	}

	data, err := json.MarshalIndent(result.Snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshaling snapshot: %v", err)
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	g.Assert(t, sc.Name, append(data, '\n'))
}
