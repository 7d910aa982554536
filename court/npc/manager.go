package npc

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"royalcourt/card"
	"royalcourt/court"
)

const DefaultThinkDelay = 1200 * time.Millisecond

type ManagerConfig struct {
	BaseDelay time.Duration // fixed think time before a bot move
	Jitter    time.Duration // extra random think time in [0, Jitter)
	Seed      int64         // 0 => time-based
}

// Manager owns persona brains and bot pacing for every room in the process.
type Manager struct {
	registry *PersonaRegistry
	cfg      ManagerConfig
	log      logrus.FieldLogger

	mu     sync.Mutex
	rng    *rand.Rand
	brains map[string]BrainDecider // keyed by persona ID
}

// NewManager creates an NPC manager with the given persona registry.
func NewManager(registry *PersonaRegistry, cfg ManagerConfig, log logrus.FieldLogger) *Manager {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Manager{
		registry: registry,
		cfg:      cfg,
		log:      log.WithField("component", "npc"),
		rng:      rand.New(rand.NewSource(seed)),
		brains:   make(map[string]BrainDecider),
	}
}

// Registry returns the underlying PersonaRegistry.
func (m *Manager) Registry() *PersonaRegistry {
	return m.registry
}

// BotPool lists the personas as bot seats in registry order.
func (m *Manager) BotPool() []court.BotSeat {
	all := m.registry.All()
	out := make([]court.BotSeat, 0, len(all))
	for _, p := range all {
		out = append(out, court.BotSeat{Name: p.Name, Persona: p.ID})
	}
	return out
}

// Brain returns the brain for a persona, creating it on first use. Unknown
// IDs get a default-profile brain.
func (m *Manager) Brain(personaID string) BrainDecider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brainLocked(personaID)
}

func (m *Manager) brainLocked(personaID string) BrainDecider {
	if b, ok := m.brains[personaID]; ok {
		return b
	}
	b := NewRuleBrain(m.registry.Get(personaID), m.rng.Int63())
	m.brains[personaID] = b
	return b
}

// Decide picks a card for the bot in seat. ok is false when the seat has
// nothing legal to play.
func (m *Manager) Decide(s *court.Session, seat int) (c card.Card, ok bool) {
	p := s.Seat(seat)
	if p == nil {
		return card.CardInvalid, false
	}
	view := ViewFor(s, seat)
	if len(view.Legal) == 0 {
		return card.CardInvalid, false
	}

	m.mu.Lock()
	brain := m.brainLocked(p.Persona)
	d := brain.Decide(view)
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"room": s.Code,
		"seat": seat,
		"bot":  brain.Name(),
		"card": d.Card.String(),
	}).Debug("bot decided")
	return d.Card, true
}

// ThinkDelay returns the simulated thinking time for the next bot move.
func (m *Manager) ThinkDelay() time.Duration {
	if m.cfg.Jitter <= 0 {
		return m.cfg.BaseDelay
	}
	m.mu.Lock()
	j := time.Duration(m.rng.Int63n(int64(m.cfg.Jitter)))
	m.mu.Unlock()
	return m.cfg.BaseDelay + j
}
