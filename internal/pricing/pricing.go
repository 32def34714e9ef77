// Package pricing maps a petition purpose to its fixed price in SAR.
package pricing

import "strings"

// DefaultPrice applies to purposes outside the catalogue.
const DefaultPrice = 150

// Currency of every amount in the catalogue.
const Currency = "SAR"

// Purpose is one entry of the service catalogue offered by the request form.
type Purpose struct {
	Slug  string `json:"slug"`
	Label string `json:"label"`
	Price int    `json:"price"`
}

var catalogue = []Purpose{
	{Slug: "treatment", Label: "طلب علاج", Price: 150},
	{Slug: "employment", Label: "طلب توظيف", Price: 150},
	{Slug: "transfer", Label: "طلب نقل", Price: 150},
	{Slug: "financial-aid", Label: "طلب مساعدة مالية", Price: 200},
	{Slug: "debt-relief", Label: "طلب إعفاء من دين", Price: 250},
	{Slug: "housing", Label: "طلب سكن", Price: 200},
	{Slug: "grievance", Label: "تظلم", Price: 300},
	{Slug: "royal-petition", Label: "معروض للديوان الملكي", Price: 350},
	{Slug: "other", Label: "أخرى", Price: DefaultPrice},
}

var byKey = func() map[string]int {
	m := make(map[string]int, len(catalogue)*2)
	for _, p := range catalogue {
		m[p.Slug] = p.Price
		m[p.Label] = p.Price
	}
	return m
}()

// Lookup returns the price for a purpose label or service slug.
func Lookup(purposeOrSlug string) int {
	key := strings.TrimSpace(purposeOrSlug)
	if price, ok := byKey[key]; ok {
		return price
	}
	if price, ok := byKey[strings.ToLower(key)]; ok {
		return price
	}
	return DefaultPrice
}

// Known reports whether the purpose is part of the catalogue.
func Known(purposeOrSlug string) bool {
	key := strings.TrimSpace(purposeOrSlug)
	_, ok := byKey[key]
	if !ok {
		_, ok = byKey[strings.ToLower(key)]
	}
	return ok
}

// Label resolves a slug to its Arabic label. Labels and unknown values pass through.
func Label(purposeOrSlug string) string {
	key := strings.ToLower(strings.TrimSpace(purposeOrSlug))
	for _, p := range catalogue {
		if p.Slug == key {
			return p.Label
		}
	}
	return strings.TrimSpace(purposeOrSlug)
}

// Purposes returns a copy of the catalogue in display order.
func Purposes() []Purpose {
	out := make([]Purpose, len(catalogue))
	copy(out, catalogue)
	return out
}
