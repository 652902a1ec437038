package population

import "github.com/atmx/amm-market/internal/agent"

// NameSource produces display names for new agents. Names need not be
// unique; agents are keyed by ID.
type NameSource interface {
	Name(r agent.Rand) string
}

// NameGenerator concatenates a random prefix, suffix and number.
type NameGenerator struct {
	Prefixes []string
	Suffixes []string
	Numbers  []string
}

// DefaultNames returns the stock trader-handle generator.
func DefaultNames() NameGenerator {
	return NameGenerator{
		Prefixes: []string{
			"Crypto", "Moon", "Diamond", "Rocket", "Whale", "Bull", "Bear", "Degen", "Chad", "Ape",
			"Sigma", "Alpha", "Beta", "Gamma", "Laser", "Turbo", "Ultra", "Mega", "Giga", "Meta",
		},
		Suffixes: []string{
			"Trader", "Hunter", "Master", "King", "Lord", "God", "Beast", "Machine", "Pro", "X",
			"2000", "420", "69", "AI", "Bot", "Dude", "Guy", "Bro", "Fam", "Ninja",
		},
		Numbers: []string{"", "1", "2", "3", "7", "88", "100", "420", "777", "999"},
	}
}

func (g NameGenerator) Name(r agent.Rand) string {
	return pick(r, g.Prefixes) + pick(r, g.Suffixes) + pick(r, g.Numbers)
}

func pick(r agent.Rand, from []string) string {
	if len(from) == 0 {
		return ""
	}
	return from[r.Intn(len(from))]
}

// WealthBand is one tier of the starting-cash distribution: with relative
// probability Weight, cash is uniform in [Min, Max).
type WealthBand struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// WealthDistribution is a weighted list of bands.
type WealthDistribution []WealthBand

// DefaultWealth is mostly small holders with a thin tail of whales.
func DefaultWealth() WealthDistribution {
	return WealthDistribution{
		{Name: "small", Weight: 0.60, Min: 25, Max: 75},
		{Name: "medium", Weight: 0.25, Min: 75, Max: 250},
		{Name: "large", Weight: 0.10, Min: 250, Max: 1000},
		{Name: "whale", Weight: 0.05, Min: 1000, Max: 5000},
	}
}

// Draw picks a band by weight, then a uniform amount inside it. It always
// consumes exactly two draws from r.
func (w WealthDistribution) Draw(r agent.Rand) float64 {
	var total float64
	for _, b := range w {
		total += b.Weight
	}
	roll := r.Float64() * total
	frac := r.Float64()
	if len(w) == 0 {
		return 0
	}
	band := w[len(w)-1]
	for _, b := range w {
		if roll < b.Weight {
			band = b
			break
		}
		roll -= b.Weight
	}
	return band.Min + frac*(band.Max-band.Min)
}
