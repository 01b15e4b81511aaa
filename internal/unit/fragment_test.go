package unit

import (
	"testing"

	"github.com/shinygold/unitengine/internal/depgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFragmentYAML = `
name: web.service
type: service
description: the web frontend
requires:
  - network.target
wants:
  - cache.service
before:
  - shutdown.target
conditions:
  - path-exists:/etc/web.conf
allow_isolate: true
collect_mode: inactive-or-failed
failure_action: reboot
`

func TestParseFragmentDecodesScalarsAndLists(t *testing.T) {
	frag, err := ParseFragment([]byte(testFragmentYAML))
	require.NoError(t, err)

	assert.Equal(t, "web.service", frag.Name)
	assert.Equal(t, "the web frontend", frag.Description)
	assert.Equal(t, []string{"network.target"}, frag.Requires)
	assert.Equal(t, []string{"cache.service"}, frag.Wants)
	assert.True(t, frag.AllowIsolate)
}

func TestApplyFragmentSetsFieldsAndReturnsDependencies(t *testing.T) {
	frag, err := ParseFragment([]byte(testFragmentYAML))
	require.NoError(t, err)

	graph := depgraph.New()
	u := New(TypeService, graph, 1)
	u.ID = "web.service"

	deps := ApplyFragment(u, frag)

	assert.Equal(t, "the web frontend", u.Description)
	assert.True(t, u.AllowIsolate)
	assert.Equal(t, CollectInactiveOrFailed, u.CollectMode)
	assert.Equal(t, ActionReboot, u.FailureAction)

	assert.Contains(t, deps, FragmentDependency{Kind: depgraph.Requires, Name: "network.target"})
	assert.Contains(t, deps, FragmentDependency{Kind: depgraph.Wants, Name: "cache.service"})
	assert.Contains(t, deps, FragmentDependency{Kind: depgraph.Before, Name: "shutdown.target"})
}

func TestParseFragmentRejectsInvalidYAML(t *testing.T) {
	_, err := ParseFragment([]byte("not: [valid"))
	assert.Error(t, err)
}
