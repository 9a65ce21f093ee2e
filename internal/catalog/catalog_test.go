package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/predtext/internal/event"
)

func taskNames(t *testing.T, c *Catalog, login event.Event) []string {
	t.Helper()
	screens, err := c.Screens(login)
	require.NoError(t, err)
	var names []string
	for _, s := range screens {
		if s.PreEvent != nil {
			names = append(names, s.PreEvent.Name)
		}
	}
	return names
}

func TestScreensFollowAssignment(t *testing.T) {
	c := Default()

	got := taskNames(t, c, event.Login("p1", 0))
	assert.Equal(t, []string{"practice", "final-0-norecs", "final-1-phrases", "final-2-gated"}, got)

	got = taskNames(t, c, event.Login("p1", 1))
	assert.Equal(t, []string{"practice", "final-0-phrases", "final-1-gated", "final-2-norecs"}, got)
}

func TestScreensDeterministic(t *testing.T) {
	c := Default()
	login := event.Login("participant-xyz", -1)

	first, err := c.Screens(login)
	require.NoError(t, err)
	second, err := c.Screens(login)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTaskScreensCarryTimerAndPrompt(t *testing.T) {
	screens, err := Default().Screens(event.Login("p1", 0))
	require.NoError(t, err)

	var tasks int
	for _, s := range screens {
		if s.PreEvent == nil || s.PreEvent.Name == "practice" {
			continue
		}
		tasks++
		assert.Equal(t, 5*time.Minute, s.Timer)
		assert.NotEmpty(t, s.PreEvent.Flags["promptID"])
		assert.Equal(t, event.TypeSetupTrial, s.PreEvent.Type)
	}
	assert.Equal(t, 3, tasks)
	assert.Equal(t, "consent", screens[0].Name)
	assert.Equal(t, "done", screens[len(screens)-1].Name)
}

func TestFlagsNotShared(t *testing.T) {
	c := Default()
	a, err := c.Screens(event.Login("p1", 0))
	require.NoError(t, err)
	b, err := c.Screens(event.Login("p2", 0))
	require.NoError(t, err)

	for i := range a {
		if a[i].PreEvent != nil {
			a[i].PreEvent.Flags["mutated"] = true
		}
	}
	for _, s := range b {
		if s.PreEvent != nil {
			assert.NotContains(t, s.PreEvent.Flags, "mutated")
		}
	}
	assert.NotContains(t, c.Variants[DefaultVariant].Conditions[0].Flags, "mutated")
}

func TestAssignment(t *testing.T) {
	assert.Equal(t, 2, Assignment(event.Login("p", 5), 3))
	assert.Equal(t, 0, Assignment(event.Login("p", 4), 1))

	neg := event.Login("p", 0)
	neg.Assignment = event.Int(-1)
	assert.Equal(t, 2, Assignment(neg, 3))

	h1 := Assignment(event.Login("alice", -1), 6)
	h2 := Assignment(event.Login("alice", -1), 6)
	assert.Equal(t, h1, h2)
	assert.GreaterOrEqual(t, h1, 0)
	assert.Less(t, h1, 6)

	seen := map[int]bool{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		seen[Assignment(event.Login(id, -1), 3)] = true
	}
	assert.Greater(t, len(seen), 1, "hash assignment should spread participants")
}

func TestUnknownVariant(t *testing.T) {
	login := event.Login("p1", 0)
	login.Config = "nope"
	_, err := Default().Screens(login)
	assert.True(t, errors.Is(err, ErrUnknownVariant))
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := `
variants:
  default:
    before: [consent]
    conditions:
      - name: off
        flags: {useSuggestions: false}
      - name: on
        flags: {useSuggestions: true, confidenceThreshold: 0.25}
    prompts: [p1]
    taskTimer: 90s
    after: [done]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	v := c.Variants[DefaultVariant]
	assert.Equal(t, 90*time.Second, v.TaskTimer)
	require.Len(t, v.Conditions, 2)
	assert.Equal(t, 0.25, v.Conditions[1].Flags["confidenceThreshold"])

	screens, err := c.Screens(event.Login("x", 1))
	require.NoError(t, err)
	assert.Len(t, screens, 1+3*2+1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", `variants: {}`},
		{"no conditions", "variants:\n  default:\n    before: [a]\n"},
		{"duplicate", "variants:\n  default:\n    conditions: [{name: a}, {name: a}]\n"},
		{"unnamed", "variants:\n  default:\n    conditions: [{flags: {}}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
