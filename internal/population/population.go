// Package population owns the set of autonomous agents: seeding them with
// randomized wealth and personalities, and choosing who is active on a tick.
package population

import (
	"time"

	"github.com/google/uuid"

	"github.com/atmx/amm-market/internal/agent"
	"github.com/atmx/amm-market/internal/model"
)

const (
	// DefaultInitialTokens is every agent's starting token balance.
	DefaultInitialTokens = 1000.0
	// DefaultParticipationScale multiplies aggression in DefaultParticipation.
	DefaultParticipationScale = 0.4
)

// ParticipationFunc maps an agent's aggression to the probability that it
// is active on a tick.
type ParticipationFunc func(aggression float64) float64

// DefaultParticipation returns aggression*scale.
func DefaultParticipation(scale float64) ParticipationFunc {
	return func(aggression float64) float64 { return aggression * scale }
}

// Option configures a Population.
type Option func(*Population)

// WithInitialTokens overrides DefaultInitialTokens.
func WithInitialTokens(tokens float64) Option {
	return func(p *Population) { p.initialTokens = tokens }
}

// WithIDFunc overrides uuid agent IDs.
func WithIDFunc(fn func() string) Option {
	return func(p *Population) { p.newID = fn }
}

// Population is the ordered set of agents. Order is insertion order and is
// stable across Restore. It is not safe for concurrent use.
type Population struct {
	r             agent.Rand
	initialTokens float64
	newID         func() string

	agents []model.Agent
	index  map[string]int
}

// New creates an empty population drawing randomness from r.
func New(r agent.Rand, opts ...Option) *Population {
	p := &Population{
		r:             r,
		initialTokens: DefaultInitialTokens,
		newID:         uuid.NewString,
		index:         make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InitialTokens returns the starting token balance for new agents.
func (p *Population) InitialTokens() float64 { return p.initialTokens }

// Initialize replaces the population with n freshly seeded agents.
func (p *Population) Initialize(n int, names NameSource, wealth WealthDistribution, now time.Time) {
	p.Reset()
	if names == nil {
		names = DefaultNames()
	}
	if len(wealth) == 0 {
		wealth = DefaultWealth()
	}
	for i := 0; i < n; i++ {
		a := model.Agent{
			ID:            p.newID(),
			Name:          names.Name(p.r),
			Balances:      model.Balances{Cash: wealth.Draw(p.r), Tokens: p.initialTokens},
			InitialTokens: p.initialTokens,
			Personality: model.Personality{
				Aggression:     p.r.Float64(),
				Greed:          p.r.Float64(),
				Fear:           p.r.Float64(),
				Patience:       p.r.Float64(),
				TrendFollowing: p.r.Float64(),
				Contrarian:     p.r.Float64(),
			},
			LastTradeTime: now.Add(-time.Duration(p.r.Float64() * float64(time.Hour))),
		}
		p.index[a.ID] = len(p.agents)
		p.agents = append(p.agents, a)
	}
}

// SelectActive returns the IDs of agents that are off cooldown and pass a
// participation draw, in population order. Agents whose last trade is within
// cooldown of now never consume a draw.
func (p *Population) SelectActive(now time.Time, cooldown time.Duration, participation ParticipationFunc) []string {
	if participation == nil {
		participation = DefaultParticipation(DefaultParticipationScale)
	}
	var out []string
	for i := range p.agents {
		a := &p.agents[i]
		if now.Sub(a.LastTradeTime) <= cooldown {
			continue
		}
		if p.r.Float64() < participation(a.Personality.Aggression) {
			out = append(out, a.ID)
		}
	}
	return out
}

// Get returns the live agent with id. The pointer is only valid until the
// next Reset, Initialize or Restore, and callers must hold whatever lock
// guards the population.
func (p *Population) Get(id string) (*model.Agent, bool) {
	i, ok := p.index[id]
	if !ok {
		return nil, false
	}
	return &p.agents[i], true
}

// All returns a copy of every agent in population order.
func (p *Population) All() []model.Agent {
	out := make([]model.Agent, len(p.agents))
	copy(out, p.agents)
	return out
}

// Len returns the number of agents.
func (p *Population) Len() int { return len(p.agents) }

// Reset removes every agent.
func (p *Population) Reset() {
	p.agents = nil
	p.index = make(map[string]int)
}

// Restore replaces the population with agents, keeping their order. Agents
// with a duplicate or empty ID are dropped.
func (p *Population) Restore(agents []model.Agent) {
	p.Reset()
	for _, a := range agents {
		if a.ID == "" {
			continue
		}
		if _, dup := p.index[a.ID]; dup {
			continue
		}
		if a.InitialTokens == 0 {
			a.InitialTokens = p.initialTokens
		}
		p.index[a.ID] = len(p.agents)
		p.agents = append(p.agents, a)
	}
}
