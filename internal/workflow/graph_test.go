package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
)

func TestBuild_RejectsBrokenDefinitions(t *testing.T) {
	testCases := []struct {
		name string
		wf   models.Workflow
	}{
		{
			name: "missing initial status",
			wf:   models.Workflow{Transitions: edges("a", "b")},
		},
		{
			name: "self transition",
			wf:   models.Workflow{InitialStatus: "a", Transitions: edges("a", "a")},
		},
		{
			name: "duplicate pair",
			wf:   models.Workflow{InitialStatus: "a", Transitions: edges("a", "b", "a", "b")},
		},
		{
			name: "blank status",
			wf:   models.Workflow{InitialStatus: "a", Transitions: edges("a", "")},
		},
		{
			name: "unreachable island",
			wf:   models.Workflow{InitialStatus: "a", Transitions: edges("a", "b", "x", "y")},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(&tc.wf)
			var ve *apperr.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestGraph_Validate(t *testing.T) {
	g, err := Build(&models.Workflow{
		InitialStatus: "new",
		Transitions:   edges("new", "contacted", "contacted", "won", "new", "lost", "lost", "new"),
	})
	require.NoError(t, err)

	assert.NoError(t, g.Validate("new", "contacted"))
	assert.NoError(t, g.Validate("lost", "new"))
	assert.ErrorIs(t, g.Validate("new", "won"), apperr.ErrInvalidTransition)
	assert.ErrorIs(t, g.Validate("won", "new"), apperr.ErrInvalidTransition)

	err = g.Validate("new", "archived")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestGraph_EmptyWorkflowAllowsNothing(t *testing.T) {
	g, err := Build(&models.Workflow{InitialStatus: "open"})
	require.NoError(t, err)

	assert.ErrorIs(t, g.Validate("open", "closed"), apperr.ErrInvalidTransition)
	assert.Equal(t, []string{"open"}, g.Terminal())
	assert.Empty(t, g.Reachable("open"))
}

func TestGraph_Reachability(t *testing.T) {
	g, err := Build(&Defaults()[3]) // employee lifecycle
	require.NoError(t, err)

	assert.Equal(t, []string{"active", "on_leave", "terminated"}, g.Reachable("onboarding"))
	// the active <-> on_leave cycle brings active back to itself
	assert.Equal(t, []string{"active", "on_leave", "terminated"}, g.Reachable("active"))
	assert.Empty(t, g.Reachable("terminated"))
	assert.Equal(t, []string{"terminated"}, g.Terminal())
	assert.Equal(t, []string{"on_leave", "terminated"}, g.Next("active"))
	assert.Equal(t, "onboarding", g.Initial())
}

func TestDefaults_AreValid(t *testing.T) {
	seen := map[string]bool{}
	for _, wf := range Defaults() {
		wf := wf
		_, err := Build(&wf)
		assert.NoError(t, err, wf.EntityType)
		_, err = lookup(wf.EntityType)
		assert.NoError(t, err, wf.EntityType)
		seen[wf.EntityType] = true
	}
	for _, et := range EntityTypes() {
		assert.True(t, seen[et], "no default workflow for %s", et)
	}
}
