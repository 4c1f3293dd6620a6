package controller

import "math/rand"

// Seed prompts offered when the user leaves the prompt empty.
var seeds = []string{
	"a photo of a cat sitting on a windowsill",
	"a cozy wooden cabin in a snowy forest",
	"a hot air balloon over the mountains at sunrise",
	"a lighthouse on a rocky coast, oil painting",
	"a bowl of ramen, studio lighting",
	"a robot watering plants in a greenhouse",
	"a castle on a hill, watercolor",
	"an owl perched on a branch at night",
	"a sailboat on a calm lake, golden hour",
	"a steaming cup of coffee on a rainy day",
	"a treehouse with a rope ladder, children's book illustration",
	"a sports car on a desert highway",
}

// RandomSeed returns a random prompt from the seed list.
func RandomSeed(r *rand.Rand) string {
	if r == nil {
		return seeds[rand.Intn(len(seeds))]
	}
	return seeds[r.Intn(len(seeds))]
}
