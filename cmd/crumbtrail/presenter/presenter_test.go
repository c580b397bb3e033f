package presenter

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/trail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTrail(n int) trail.Trail {
	t := trail.Trail{{Name: trail.HomeName, Target: trail.HomeTarget}}
	for i := 1; i < n; i++ {
		t = append(t, trail.Crumb{Name: fmt.Sprintf("crumb-%d", i), Target: fmt.Sprintf("/%d", i)})
	}
	return t
}

func TestShortTrailsAreNeverCollapsed(t *testing.T) {
	p := New()
	for n := 1; n <= 2; n++ {
		full := makeTrail(n)
		view := p.Render(full)
		assert.False(t, view.Collapsed(), "length %d", n)
		assert.Empty(t, view.Overflow)
		assert.Equal(t, full, view.Crumbs())
		assert.Equal(t, Collapsed, view.State)
	}
}

func TestCollapsedOverflowHoldsMiddleCrumbs(t *testing.T) {
	p := New()
	for n := 3; n <= 8; n++ {
		full := makeTrail(n)
		view := p.Render(full)

		require.True(t, view.Collapsed())
		assert.Len(t, view.Overflow, n-2)
		assert.Equal(t, full[0], view.Head)
		assert.Equal(t, []trail.Crumb(full[1:n-1]), view.Overflow)
		assert.Equal(t, []trail.Crumb{full[n-1]}, view.Tail)
		assert.Equal(t, full, view.Crumbs())
	}
}

func TestExpandShowsEveryCrumbInline(t *testing.T) {
	p := New()
	full := makeTrail(5)
	assert.Equal(t, Collapsed, p.State())

	p.Expand()
	view := p.Render(full)
	assert.Equal(t, Expanded, view.State)
	assert.Empty(t, view.Overflow)
	assert.Equal(t, []trail.Crumb(full[1:]), view.Tail)

	p.Expand()
	assert.Equal(t, Expanded, p.State())
}

func TestRenderKeepsStateAcrossUpdates(t *testing.T) {
	p := New()
	full := makeTrail(4)
	p.Expand()

	full[2].Name = "General Hospital"
	view := p.Render(full)
	assert.Equal(t, Expanded, view.State)
	assert.Equal(t, "General Hospital", view.Tail[1].Name)
}

func TestRenderEmptyTrail(t *testing.T) {
	view := New().Render(nil)
	assert.Equal(t, trail.HomeName, view.Head.Name)
	assert.Empty(t, view.Tail)
}

func TestViewJSON(t *testing.T) {
	view := New().Render(makeTrail(3))
	data, err := json.Marshal(view)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "collapsed", decoded["state"])
	assert.Len(t, decoded["overflow"], 1)
	assert.Len(t, decoded["tail"], 1)
}
