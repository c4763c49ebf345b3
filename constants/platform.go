package constants

import (
	"strings"
	"unicode"
)

type Platform string

const (
	Uber      Platform = "uber"
	Ola       Platform = "ola"
	Swiggy    Platform = "swiggy"
	Zomato    Platform = "zomato"
	Deliveroo Platform = "deliveroo"
	DoorDash  Platform = "doordash"
	Lyft      Platform = "lyft"
	Rapido    Platform = "rapido"
	Dunzo     Platform = "dunzo"
	Other     Platform = "other"
)

var allPlatforms = []Platform{
	Uber,
	Ola,
	Swiggy,
	Zomato,
	Deliveroo,
	DoorDash,
	Lyft,
	Rapido,
	Dunzo,
	Other,
}

func PlatformsAsStringSlice() []string {
	result := make([]string, len(allPlatforms))
	for i, p := range allPlatforms {
		result[i] = string(p)
	}
	return result
}

// CanonicalizePlatform maps free text ("Uber Eats", "DoorDash Dasher") to a known
// platform. Unknown names return (Other, false).
func CanonicalizePlatform(input string) (Platform, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Other, false
	}

	synonyms := map[string]Platform{
		"uber eats":        Uber,
		"ubereats":         Uber,
		"uber driver":      Uber,
		"ola cabs":         Ola,
		"swiggy instamart": Swiggy,
		"roo":              Deliveroo,
		"dasher":           DoorDash,
		"door dash":        DoorDash,
	}
	if p, ok := synonyms[normalized]; ok {
		return p, true
	}

	for _, p := range allPlatforms {
		if normalized == string(p) {
			return p, true
		}
	}
	// "Deliveroo Rider Summary" and the like; whole words only, so
	// "Coca-Cola Delivery" is not Ola
	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		if i+1 < len(words) {
			if p, ok := synonyms[w+" "+words[i+1]]; ok {
				return p, true
			}
		}
		if p, ok := synonyms[w]; ok {
			return p, true
		}
		for _, p := range allPlatforms {
			if p != Other && w == string(p) {
				return p, true
			}
		}
	}

	return Other, false
}
