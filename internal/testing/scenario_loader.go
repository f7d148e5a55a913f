package testing

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// scenarioLoader implements the TestScenarioLoader interface
type scenarioLoader struct {
	debug  bool
	logger TestLogger
}

// NewTestScenarioLoader creates a new test scenario loader
func NewTestScenarioLoader(debug bool) TestScenarioLoader {
	return &scenarioLoader{
		debug:  debug,
		logger: NewStdoutLogger(false, debug),
	}
}

// NewTestScenarioLoaderWithLogger creates a new test scenario loader with custom logger
func NewTestScenarioLoaderWithLogger(debug bool, logger TestLogger) TestScenarioLoader {
	return &scenarioLoader{
		debug:  debug,
		logger: logger,
	}
}

// LoadScenarios loads test scenarios from files, directories and glob
// patterns such as "scenarios/**/*.yaml". Scenario names must be unique
// across all paths.
func (l *scenarioLoader) LoadScenarios(paths ...string) ([]TestScenario, error) {
	var scenarios []TestScenario

	for _, path := range paths {
		loaded, err := l.loadPath(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, loaded...)
	}

	seen := make(map[string]string, len(scenarios))
	for _, scenario := range scenarios {
		if previous, ok := seen[scenario.Name]; ok {
			return nil, fmt.Errorf("duplicate scenario name %q in %s and %s", scenario.Name, previous, scenario.SourceFile)
		}
		seen[scenario.Name] = scenario.SourceFile
	}

	l.logger.Debug("📋 Loaded %d test scenarios\n", len(scenarios))
	for _, scenario := range scenarios {
		l.logger.Debug("  • %s - %d classes\n", scenario.Name, len(scenario.Classes))
	}

	return scenarios, nil
}

func (l *scenarioLoader) loadPath(path string) ([]TestScenario, error) {
	if hasMeta(path) {
		return l.loadScenariosFromGlob(path)
	}

	l.logger.Debug("📁 Loading test scenarios from: %s\n", path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("scenario path does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat scenario path: %w", err)
	}

	if info.IsDir() {
		scenarios, err := l.loadScenariosFromDirectory(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenarios from directory: %w", err)
		}
		return scenarios, nil
	}

	scenario, err := l.loadScenarioFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario from file: %w", err)
	}
	return []TestScenario{scenario}, nil
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, "*?[{")
}

// loadScenariosFromGlob loads every YAML file matching pattern
func (l *scenarioLoader) loadScenariosFromGlob(pattern string) ([]TestScenario, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid scenario pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no scenario files match %s", pattern)
	}
	slices.Sort(matches)

	var scenarios []TestScenario
	for _, path := range matches {
		if !l.isYAMLFile(path) {
			continue
		}
		l.logger.Debug("📄 Loading scenario file: %s\n", path)
		scenario, err := l.loadScenarioFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenario from %s: %w", path, err)
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, nil
}

// loadScenariosFromDirectory loads all YAML scenario files from a directory
func (l *scenarioLoader) loadScenariosFromDirectory(dirPath string) ([]TestScenario, error) {
	var scenarios []TestScenario

	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !l.isYAMLFile(path) {
			return nil
		}

		l.logger.Debug("📄 Loading scenario file: %s\n", path)

		scenario, err := l.loadScenarioFromFile(path)
		if err != nil {
			return fmt.Errorf("failed to load scenario from %s: %w", path, err)
		}

		scenarios = append(scenarios, scenario)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}

	return scenarios, nil
}

// loadScenarioFromFile loads a single scenario from a YAML file
func (l *scenarioLoader) loadScenarioFromFile(filePath string) (TestScenario, error) {
	var scenario TestScenario

	content, err := os.ReadFile(filePath)
	if err != nil {
		return scenario, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	if err := yaml.Unmarshal(content, &scenario); err != nil {
		return scenario, fmt.Errorf("failed to parse YAML in %s: %w", filePath, err)
	}
	scenario.SourceFile = filePath

	if errs := ValidateScenario(scenario); errs.HasErrors() {
		return scenario, fmt.Errorf("invalid scenario in %s: %w", filePath, errs)
	}

	return scenario, nil
}

// isYAMLFile checks if a file has a YAML extension
func (l *scenarioLoader) isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// FilterScenarios filters scenarios by name and tags. A scenario name filter
// matches by substring, as the CLI's --scenario flag does.
func (l *scenarioLoader) FilterScenarios(scenarios []TestScenario, config TestConfiguration) []TestScenario {
	var filtered []TestScenario

	for _, scenario := range scenarios {
		if config.Scenario != "" && !strings.Contains(scenario.Name, config.Scenario) {
			continue
		}
		if len(config.Tags) > 0 && !hasAnyTag(scenario.Tags, config.Tags) {
			continue
		}
		filtered = append(filtered, scenario)
	}

	if l.debug {
		l.logger.Debug("🔍 Filtered to %d scenarios (from %d total)\n", len(filtered), len(scenarios))
	}

	return filtered
}

func hasAnyTag(tags, wanted []string) bool {
	for _, tag := range wanted {
		if slices.Contains(tags, tag) {
			return true
		}
	}
	return false
}
