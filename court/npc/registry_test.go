package npc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, 4, r.Count())

	all := r.All()
	ids := make([]string, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"baron", "duchess", "jester", "knight"}, ids)
	for _, p := range all {
		assert.GreaterOrEqual(t, p.Brain.LeadHigh, 0.6, p.ID)
		assert.LessOrEqual(t, p.Brain.LeadHigh, 0.7, p.ID)
		assert.False(t, p.Brain.PowerLead, p.ID)
	}
}

func TestLoadFromJSON_DefaultsAndClamp(t *testing.T) {
	r := NewRegistry()
	err := r.LoadFromJSON([]byte(`[
		{"id":"plain"},
		{"id":"wild","name":"Wild","brain":{"leadHigh":3}},
		{"name":"no id"}
	]`))
	require.NoError(t, err)
	require.Equal(t, 2, r.Count())
	assert.Equal(t, DefaultLeadHigh, r.Get("plain").Brain.LeadHigh)
	assert.Equal(t, "plain", r.Get("plain").Name)
	assert.Equal(t, 1.0, r.Get("wild").Brain.LeadHigh)

	assert.Error(t, r.LoadFromJSON([]byte(`{`)))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"x","name":"X"}]`), 0o600))
	r := NewRegistry()
	require.NoError(t, r.LoadFromFile(path))
	assert.Equal(t, "X", r.Get("x").Name)
	assert.Error(t, r.LoadFromFile(filepath.Join(t.TempDir(), "missing.json")))
}

func TestManagerPoolAndDelay(t *testing.T) {
	m := NewManager(nil, ManagerConfig{BaseDelay: time.Second, Jitter: 500 * time.Millisecond, Seed: 1}, nil)
	pool := m.BotPool()
	require.Len(t, pool, 4)
	assert.Equal(t, "Baron", pool[0].Name)
	assert.Equal(t, "baron", pool[0].Persona)

	for i := 0; i < 20; i++ {
		d := m.ThinkDelay()
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1500*time.Millisecond)
	}
	assert.Same(t, m.Brain("duchess"), m.Brain("duchess"))
	assert.Equal(t, "Bot", m.Brain("nobody").Name())
}
