package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyCatalog is returned when a catalog has no descriptors.
var ErrEmptyCatalog = errors.New("catalog is empty")

// Catalog is the ordered, immutable list of tracked currencies.
type Catalog struct {
	descriptors []Descriptor
	byID        map[string]int
}

// NewCatalog validates descriptors and builds a lookup index.
func NewCatalog(descriptors []Descriptor) (*Catalog, error) {
	if len(descriptors) == 0 {
		return nil, ErrEmptyCatalog
	}

	byID := make(map[string]int, len(descriptors))
	list := make([]Descriptor, 0, len(descriptors))
	for i, d := range descriptors {
		if strings.TrimSpace(d.ID) == "" {
			return nil, fmt.Errorf("descriptor %d: id is required", i)
		}
		if !d.Class.Valid() {
			return nil, fmt.Errorf("descriptor %s: unknown class %q", d.ID, d.Class)
		}
		if d.Priority < 1 {
			return nil, fmt.Errorf("descriptor %s: priority must be positive", d.ID)
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("descriptor %s: duplicate id", d.ID)
		}
		byID[d.ID] = len(list)
		list = append(list, d)
	}

	return &Catalog{descriptors: list, byID: byID}, nil
}

// All returns every descriptor in insertion order.
func (c *Catalog) All() []Descriptor {
	out := make([]Descriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Len returns the number of tracked currencies.
func (c *Catalog) Len() int {
	return len(c.descriptors)
}

// ByClass returns descriptors of one class in insertion order.
func (c *Catalog) ByClass(class Class) []Descriptor {
	out := make([]Descriptor, 0, len(c.descriptors))
	for _, d := range c.descriptors {
		if d.Class == class {
			out = append(out, d)
		}
	}
	return out
}

// Lookup finds a descriptor by identifier.
func (c *Catalog) Lookup(id string) (Descriptor, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return c.descriptors[idx], true
}

// Split partitions a class into the priority tier (priority <= cutoff) and the rest.
func (c *Catalog) Split(class Class, cutoff int) (priority, deferred []Descriptor) {
	for _, d := range c.ByClass(class) {
		if d.Priority <= cutoff {
			priority = append(priority, d)
			continue
		}
		deferred = append(deferred, d)
	}
	return priority, deferred
}

// IDs extracts identifiers preserving order.
func IDs(descriptors []Descriptor) []string {
	ids := make([]string, len(descriptors))
	for i, d := range descriptors {
		ids[i] = d.ID
	}
	return ids
}

// DefaultCatalog returns the stock list of tracked currencies.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultDescriptors)
	if err != nil {
		panic("default catalog is invalid: " + err.Error())
	}
	return c
}

var defaultDescriptors = []Descriptor{
	{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", Class: ClassCrypto, Priority: 1},
	{ID: "ethereum", Name: "Ethereum", Symbol: "ETH", Class: ClassCrypto, Priority: 1},
	{ID: "tether", Name: "Tether", Symbol: "USDT", Class: ClassCrypto, Priority: 1},
	{ID: "binancecoin", Name: "BNB", Symbol: "BNB", Class: ClassCrypto, Priority: 1},
	{ID: "solana", Name: "Solana", Symbol: "SOL", Class: ClassCrypto, Priority: 1},
	{ID: "usd-coin", Name: "USD Coin", Symbol: "USDC", Class: ClassCrypto, Priority: 1},
	{ID: "cardano", Name: "Cardano", Symbol: "ADA", Class: ClassCrypto, Priority: 1},
	{ID: "avalanche-2", Name: "Avalanche", Symbol: "AVAX", Class: ClassCrypto, Priority: 1},
	{ID: "dogecoin", Name: "Dogecoin", Symbol: "DOGE", Class: ClassCrypto, Priority: 1},
	{ID: "polkadot", Name: "Polkadot", Symbol: "DOT", Class: ClassCrypto, Priority: 1},

	{ID: "chainlink", Name: "Chainlink", Symbol: "LINK", Class: ClassCrypto, Priority: 2},
	{ID: "polygon", Name: "Polygon", Symbol: "MATIC", Class: ClassCrypto, Priority: 2},
	{ID: "litecoin", Name: "Litecoin", Symbol: "LTC", Class: ClassCrypto, Priority: 2},
	{ID: "shiba-inu", Name: "Shiba Inu", Symbol: "SHIB", Class: ClassCrypto, Priority: 2},
	{ID: "uniswap", Name: "Uniswap", Symbol: "UNI", Class: ClassCrypto, Priority: 2},
	{ID: "ethereum-classic", Name: "Ethereum Classic", Symbol: "ETC", Class: ClassCrypto, Priority: 2},
	{ID: "stellar", Name: "Stellar", Symbol: "XLM", Class: ClassCrypto, Priority: 2},
	{ID: "cosmos", Name: "Cosmos", Symbol: "ATOM", Class: ClassCrypto, Priority: 2},
	{ID: "algorand", Name: "Algorand", Symbol: "ALGO", Class: ClassCrypto, Priority: 2},
	{ID: "vechain", Name: "VeChain", Symbol: "VET", Class: ClassCrypto, Priority: 2},

	// DeFi
	{ID: "aave", Name: "Aave", Symbol: "AAVE", Class: ClassCrypto, Priority: 3},
	{ID: "compound-governance-token", Name: "Compound", Symbol: "COMP", Class: ClassCrypto, Priority: 3},
	{ID: "sushiswap", Name: "SushiSwap", Symbol: "SUSHI", Class: ClassCrypto, Priority: 3},
	{ID: "yearn-finance", Name: "Yearn Finance", Symbol: "YFI", Class: ClassCrypto, Priority: 3},
	{ID: "pancakeswap-token", Name: "PancakeSwap", Symbol: "CAKE", Class: ClassCrypto, Priority: 3},
	{ID: "curve-dao-token", Name: "Curve DAO", Symbol: "CRV", Class: ClassCrypto, Priority: 3},

	// Metaverse
	{ID: "decentraland", Name: "Decentraland", Symbol: "MANA", Class: ClassCrypto, Priority: 3},
	{ID: "the-sandbox", Name: "The Sandbox", Symbol: "SAND", Class: ClassCrypto, Priority: 3},
	{ID: "axie-infinity", Name: "Axie Infinity", Symbol: "AXS", Class: ClassCrypto, Priority: 3},
	{ID: "enjincoin", Name: "Enjin Coin", Symbol: "ENJ", Class: ClassCrypto, Priority: 3},

	{ID: "aptos", Name: "Aptos", Symbol: "APT", Class: ClassCrypto, Priority: 3},
	{ID: "sui", Name: "Sui", Symbol: "SUI", Class: ClassCrypto, Priority: 3},
	{ID: "arbitrum", Name: "Arbitrum", Symbol: "ARB", Class: ClassCrypto, Priority: 3},
	{ID: "optimism", Name: "Optimism", Symbol: "OP", Class: ClassCrypto, Priority: 3},
	{ID: "immutable-x", Name: "Immutable X", Symbol: "IMX", Class: ClassCrypto, Priority: 3},

	{ID: "pepe", Name: "Pepe", Symbol: "PEPE", Class: ClassCrypto, Priority: 4},
	{ID: "bonk", Name: "Bonk", Symbol: "BONK", Class: ClassCrypto, Priority: 4},
	{ID: "floki", Name: "FLOKI", Symbol: "FLOKI", Class: ClassCrypto, Priority: 4},

	// Stablecoins
	{ID: "dai", Name: "Dai", Symbol: "DAI", Class: ClassCrypto, Priority: 2},
	{ID: "true-usd", Name: "TrueUSD", Symbol: "TUSD", Class: ClassCrypto, Priority: 4},
	{ID: "paxos-standard", Name: "Pax Dollar", Symbol: "USDP", Class: ClassCrypto, Priority: 4},

	// Fiat, priced against USD
	{ID: "EUR", Name: "Euro", Symbol: "EUR", Class: ClassFiat, Priority: 1},
	{ID: "GBP", Name: "British Pound", Symbol: "GBP", Class: ClassFiat, Priority: 1},
	{ID: "JPY", Name: "Japanese Yen", Symbol: "JPY", Class: ClassFiat, Priority: 1},
	{ID: "RUB", Name: "Russian Ruble", Symbol: "RUB", Class: ClassFiat, Priority: 1},
	{ID: "CNY", Name: "Chinese Yuan", Symbol: "CNY", Class: ClassFiat, Priority: 1},
	{ID: "CAD", Name: "Canadian Dollar", Symbol: "CAD", Class: ClassFiat, Priority: 1},
	{ID: "AUD", Name: "Australian Dollar", Symbol: "AUD", Class: ClassFiat, Priority: 2},
	{ID: "CHF", Name: "Swiss Franc", Symbol: "CHF", Class: ClassFiat, Priority: 2},
	{ID: "INR", Name: "Indian Rupee", Symbol: "INR", Class: ClassFiat, Priority: 2},
	{ID: "KRW", Name: "South Korean Won", Symbol: "KRW", Class: ClassFiat, Priority: 2},
}
