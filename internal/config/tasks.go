// Package config loads tequio task files and runner settings.
//
// Task files come in two formats, chosen by extension: INI (the classic
// format, one section per task) and YAML (a tasks: mapping with the same
// keys). Both produce the same TaskDefinition records; graph-level
// validation happens later in internal/graph.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"tequio/pkg/models"
)

// LoadTasks reads a task file and returns its task definitions. The format
// is picked from the file extension: .yaml/.yml parse as YAML, everything
// else as INI.
func LoadTasks(path string) ([]*models.TaskDefinition, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAMLTasks(path)
	default:
		return loadINITasks(path)
	}
}

// loadINITasks parses the INI form. Each named section is a task; the
// section name is the task name, and command, work_dir, depends_on, and
// ready_check are read from the section's keys.
func loadINITasks(path string) ([]*models.TaskDefinition, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file %s: %w", path, err)
	}

	var defs []*models.TaskDefinition
	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		def := &models.TaskDefinition{
			Name:       section.Name(),
			Command:    section.Key("command").String(),
			WorkDir:    section.Key("work_dir").String(),
			ReadyCheck: section.Key("ready_check").String(),
		}
		if deps := section.Key("depends_on").String(); deps != "" {
			def.DependsOn = splitDeps(deps)
		}
		if err := validateDefinition(def); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// yamlTaskFile is the YAML task file shape.
type yamlTaskFile struct {
	Tasks map[string]*models.TaskDefinition `yaml:"tasks"`
}

// loadYAMLTasks parses the YAML form. Task names are the keys of the tasks
// mapping; depends_on is a YAML sequence rather than a comma list.
func loadYAMLTasks(path string) ([]*models.TaskDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file %s: %w", path, err)
	}

	var file yamlTaskFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing task file %s: %w", path, err)
	}

	// Map iteration order is random; sort names so load order is stable.
	names := make([]string, 0, len(file.Tasks))
	for name := range file.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]*models.TaskDefinition, 0, len(names))
	for _, name := range names {
		def := file.Tasks[name]
		if def == nil {
			def = &models.TaskDefinition{}
		}
		def.Name = name
		if err := validateDefinition(def); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// splitDeps splits a comma-separated dependency list, trimming whitespace
// and dropping empty entries.
func splitDeps(s string) []string {
	var deps []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			deps = append(deps, d)
		}
	}
	return deps
}

// validateDefinition checks required-field presence. Graph invariants
// (unknown deps, cycles, duplicates) are validated by internal/graph.
func validateDefinition(def *models.TaskDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("task with empty name")
	}
	if strings.TrimSpace(def.Command) == "" {
		return fmt.Errorf("task %q has no command", def.Name)
	}
	return nil
}
