package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: initial stock, a sequence
// of operations with expected outcomes, and assertions on final stock.
type Scenario struct {
	// Name uniquely identifies this scenario; the golden trace file is
	// named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Setup lists absolute stock values written before the flow runs.
	Setup []StockStep `yaml:"setup,omitempty"`

	// Steps is the main flow. Each step runs one core operation and
	// optionally asserts its outcome.
	Steps []Step `yaml:"steps"`

	// FinalStocks asserts per-item stock after the flow completes.
	FinalStocks map[string]int64 `yaml:"final_stocks,omitempty"`
}

// StockStep sets one item's absolute stock during setup.
type StockStep struct {
	Item  string `yaml:"item"`
	Stock int64  `yaml:"stock"`
}

// ItemSpec is one reservation line in a reserve step.
type ItemSpec struct {
	Item     string `yaml:"item"`
	Quantity int64  `yaml:"quantity"`
}

// Step operations.
const (
	OpReserve = "reserve" // items against a reservation id
	OpRelease = "release" // undo a reservation
	OpLink    = "link"    // attach session to reservation
	OpCommit  = "commit"  // finalize by session
	OpFind    = "find"    // resolve session to reservation
	OpCheck   = "check"   // rate limit check
	OpAdvance = "advance" // move the harness clock forward
)

// Step is one operation in a scenario flow.
type Step struct {
	Op string `yaml:"op"`

	// Reservation / Session identify the subject, depending on Op.
	Reservation string `yaml:"reservation,omitempty"`
	Session     string `yaml:"session,omitempty"`

	// Items parameterizes reserve.
	Items []ItemSpec `yaml:"items,omitempty"`

	// Key and the bucket shape parameterize check.
	Key              string `yaml:"key,omitempty"`
	Capacity         int64  `yaml:"capacity,omitempty"`
	RefillAmount     int64  `yaml:"refill_amount,omitempty"`
	RefillIntervalMs int64  `yaml:"refill_interval_ms,omitempty"`

	// Ms parameterizes advance.
	Ms int64 `yaml:"ms,omitempty"`

	// Expect asserts the step outcome when non-empty (ok,
	// insufficient_stock, invalid_quantity, allowed, denied, found, none).
	Expect string `yaml:"expect,omitempty"`
}

// LoadScenario reads one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("load scenario: parse %s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("load scenario: %s has no name", path)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("load scenario: %s has no steps", path)
	}
	return &sc, nil
}

// LoadScenarios reads every scenario under dir, sorted by file name for
// deterministic test ordering.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load scenarios: %w", err)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		sc, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}
