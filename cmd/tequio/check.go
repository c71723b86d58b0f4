package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tequio/internal/config"
	"tequio/internal/graph"
)

var checkCmd = &cobra.Command{
	Use:   "check [taskfile]",
	Short: "Validate a task file and print the execution plan",
	Long: `Check parses the task file, validates the dependency graph, and
prints the order tasks would start in, without running anything.

Reports duplicate task names, references to undefined tasks, and
dependency cycles.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := DefaultTaskFile
	if len(args) == 1 {
		path = args[0]
	}

	defs, err := config.LoadTasks(path)
	if err != nil {
		return err
	}
	g, err := graph.Build(defs)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d tasks, plan:\n", path, g.Size())
	for i, name := range g.TopologicalSort() {
		def := g.Definition(name)
		var details []string
		if deps := g.Dependencies(name); len(deps) > 0 {
			details = append(details, "after "+strings.Join(deps, ", "))
		}
		if def.ReadyCheck != "" {
			details = append(details, fmt.Sprintf("ready on %q", def.ReadyCheck))
		}
		suffix := ""
		if len(details) > 0 {
			suffix = "  (" + strings.Join(details, "; ") + ")"
		}
		fmt.Printf("  %2d. %s%s\n", i+1, name, suffix)
	}
	return nil
}
