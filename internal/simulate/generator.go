package simulate

import (
	"math/rand/v2"
	"strings"
	"sync"
)

const (
	hexChars      = "0123456789abcdef"
	base36Chars   = "0123456789abcdefghijklmnopqrstuvwxyz"
	alphanumChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Generator fabricates the identifiers a real payment gateway, chain and
// document store would return. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rng: rng}
}

// PaymentLink returns a hosted checkout URL.
func (g *Generator) PaymentLink() string {
	return "https://rzp.io/i/mock" + g.random(base36Chars, 6)
}

// BlockchainHash returns 0x followed by 64 hex characters.
func (g *Generator) BlockchainHash() string {
	return "0x" + g.random(hexChars, 64)
}

// DocumentCID returns a 46 character IPFS-style content id.
func (g *Generator) DocumentCID() string {
	return "Qm" + g.random(alphanumChars, 44)
}

func (g *Generator) TransactionHash() string {
	return "0x" + g.random(hexChars, 64)
}

// Float64 draws from the generator's source.
func (g *Generator) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

// IntN draws from the generator's source.
func (g *Generator) IntN(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}

func (g *Generator) random(alphabet string, n int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[g.rng.IntN(len(alphabet))])
	}
	return b.String()
}
