package generator

import (
	"math/rand"
	"strings"
	"time"
)

// AdventurerName generates a fantasy adventurer name by combining randomly
// selected elements. Used to seed the dev server and as the CLI default
// when no name is given.
func AdventurerName() string {
	prefixes := []string{
		"Gor'", "Thal'", "Vae'", "Mor'", "Kel'",
		"Ryn'", "Zan'", "Bram'", "Fen'", "Orl'",
	}

	suffixes := []string{
		"'dun", "'mir", "'eth", "'gar", "'wyn",
		"'dor", "'vash", "'rik", "'mund", "'lis",
	}

	adjectives := []string{
		"Brave", "Fierce", "Shadowed", "Burning", "Silent",
		"Radiant", "Wandering", "Ironclad", "Moonlit", "Stormborn",
		"Gilded", "Restless", "Oathbound", "Frostbitten", "Emberwrought",
		"Thornmarked", "Dawnblessed", "Grim", "Stalwart", "Farstriding",
	}
	nouns := []string{
		"Ranger", "Warden", "Squire", "Knight", "Bard",
		"Alchemist", "Pathfinder", "Sellsword", "Cartographer", "Herald",
		"Outrider", "Chronicler", "Tracker", "Vagabond", "Lorekeeper",
		"Shieldbearer", "Wayfarer", "Torchbearer", "Gravewalker", "Questgiver",
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	// Randomly decide if we should add a prefix or suffix to either word
	usePrefix := r.Float64() < 0.3
	useSuffix := r.Float64() < 0.3
	applyToAdjective := r.Float64() < 0.5

	adj := adjectives[r.Intn(len(adjectives))]
	noun := nouns[r.Intn(len(nouns))]
	if usePrefix {
		prefix := prefixes[r.Intn(len(prefixes))]
		if applyToAdjective {
			adj = prefix + adj
		} else {
			noun = prefix + noun
		}
	}
	if useSuffix {
		suffix := suffixes[r.Intn(len(suffixes))]
		if applyToAdjective {
			adj = adj + suffix
		} else {
			noun = noun + suffix
		}
	}

	return strings.TrimSpace(adj + " " + noun)
}
