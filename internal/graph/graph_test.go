package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tequio/pkg/models"
)

func defs(pairs ...*models.TaskDefinition) []*models.TaskDefinition {
	return pairs
}

func TestBuildSimple(t *testing.T) {
	g, err := Build(defs(
		&models.TaskDefinition{Name: "build", Command: "make"},
		&models.TaskDefinition{Name: "serve", Command: "./serve", DependsOn: []string{"build"}},
		&models.TaskDefinition{Name: "test", Command: "make test", DependsOn: []string{"build"}},
	))
	require.NoError(t, err)
	assert.Equal(t, 3, g.Size())

	assert.Equal(t, []string{"build"}, g.Dependencies("serve"))
	assert.ElementsMatch(t, []string{"serve", "test"}, g.Dependents("build"))
	assert.True(t, g.Exists("build"))
	assert.False(t, g.Exists("ghost"))
	assert.Nil(t, g.Definition("ghost"))
}

func TestBuildDuplicateName(t *testing.T) {
	_, err := Build(defs(
		&models.TaskDefinition{Name: "build", Command: "make"},
		&models.TaskDefinition{Name: "build", Command: "make again"},
	))
	require.Error(t, err)

	var dup *DuplicateTaskError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "build", dup.Name)
}

func TestBuildUnknownDependency(t *testing.T) {
	_, err := Build(defs(
		&models.TaskDefinition{Name: "serve", Command: "./serve", DependsOn: []string{"ghost"}},
	))
	require.Error(t, err)

	var unknown *UnknownDependencyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "serve", unknown.Task)
	assert.Equal(t, "ghost", unknown.Missing)
}

func TestBuildDirectCycle(t *testing.T) {
	_, err := Build(defs(
		&models.TaskDefinition{Name: "a", Command: "true", DependsOn: []string{"b"}},
		&models.TaskDefinition{Name: "b", Command: "true", DependsOn: []string{"a"}},
	))
	require.Error(t, err)

	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	// Path starts and ends at the same task.
	require.GreaterOrEqual(t, len(cycle.Path), 3)
	assert.Equal(t, cycle.Path[0], cycle.Path[len(cycle.Path)-1])
}

func TestBuildLongerCycle(t *testing.T) {
	_, err := Build(defs(
		&models.TaskDefinition{Name: "a", Command: "true", DependsOn: []string{"b"}},
		&models.TaskDefinition{Name: "b", Command: "true", DependsOn: []string{"c"}},
		&models.TaskDefinition{Name: "c", Command: "true", DependsOn: []string{"a"}},
		&models.TaskDefinition{Name: "d", Command: "true"},
	))
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Len(t, cycle.Path, 4)
}

func TestBuildSelfDependency(t *testing.T) {
	_, err := Build(defs(
		&models.TaskDefinition{Name: "a", Command: "true", DependsOn: []string{"a"}},
	))
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "a"}, cycle.Path)
}

func TestTopologicalSort(t *testing.T) {
	g, err := Build(defs(
		&models.TaskDefinition{Name: "db", Command: "postgres"},
		&models.TaskDefinition{Name: "migrate", Command: "migrate up", DependsOn: []string{"db"}},
		&models.TaskDefinition{Name: "api", Command: "./api", DependsOn: []string{"db", "migrate"}},
		&models.TaskDefinition{Name: "web", Command: "./web", DependsOn: []string{"api"}},
	))
	require.NoError(t, err)

	order := g.TopologicalSort()
	require.Len(t, order, 4)

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	for _, name := range g.Names() {
		for _, dep := range g.Dependencies(name) {
			assert.Less(t, pos[dep], pos[name], "%s must sort before %s", dep, name)
		}
	}
}

func TestNamesSorted(t *testing.T) {
	g, err := Build(defs(
		&models.TaskDefinition{Name: "zeta", Command: "true"},
		&models.TaskDefinition{Name: "alpha", Command: "true"},
		&models.TaskDefinition{Name: "mid", Command: "true"},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, g.Names())
}

func TestEmptyGraph(t *testing.T) {
	g, err := Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Size())
	assert.Empty(t, g.TopologicalSort())
}
