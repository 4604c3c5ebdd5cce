package domain

import (
	"fmt"
	"time"
)

// Class separates the two data classes that are cached and fetched independently.
type Class string

const (
	ClassCrypto Class = "crypto"
	ClassFiat   Class = "fiat"
)

// Classes lists every class in snapshot order.
var Classes = []Class{ClassCrypto, ClassFiat}

// Valid reports whether c is a known class.
func (c Class) Valid() bool {
	return c == ClassCrypto || c == ClassFiat
}

// ParseClass converts user input into a Class.
func ParseClass(v string) (Class, error) {
	c := Class(v)
	if !c.Valid() {
		return "", fmt.Errorf("unknown currency class %q", v)
	}
	return c, nil
}

// Descriptor is a static catalog entry. Descriptors never change after start.
type Descriptor struct {
	ID       string
	Name     string
	Symbol   string
	Class    Class
	Priority int
}

// Quote is a single observation for a tracked currency, priced in USD.
type Quote struct {
	ID          string
	Price       float64
	Change24h   float64
	LastUpdated int64
}

// Placeholder stands in for a currency the upstream did not report.
func Placeholder(id string, now time.Time) Quote {
	return Quote{ID: id, LastUpdated: now.Unix()}
}

// PricePoint is one sample of a price history series.
type PricePoint struct {
	Time  time.Time
	Price float64
}
