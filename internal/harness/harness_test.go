package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			RunWithGolden(t, sc)
		})
	}
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "reserve_release.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "reserve_release", sc.Name)
	require.Len(t, sc.Setup, 1)
	assert.Equal(t, "p1", sc.Setup[0].Item)
	assert.Equal(t, int64(5), sc.Setup[0].Stock)
	assert.Len(t, sc.Steps, 4)
	assert.Equal(t, int64(5), sc.FinalStocks["p1"])
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "scenarios", "nope.yaml"))
	require.Error(t, err)
}
