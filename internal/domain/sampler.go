package domain

import "math/rand/v2"

// Sampler draws points uniformly inside a bounding box, independently per axis.
type Sampler struct {
	box BoundingBox
	rng *rand.Rand
}

// NewSampler creates a sampler over box. A nil source draws a fresh random
// seed, so results differ between runs.
func NewSampler(box BoundingBox, src rand.Source) *Sampler {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Sampler{box: box, rng: rand.New(src)}
}

// NewSeededSampler creates a sampler whose sequence is fixed by seed.
func NewSeededSampler(box BoundingBox, seed uint64) *Sampler {
	return NewSampler(box, rand.NewPCG(seed, seed))
}

// Point returns a latitude/longitude pair inside the sampler's box.
func (s *Sampler) Point() (lat, lon float64) {
	lat = s.box.South + s.rng.Float64()*(s.box.North-s.box.South)
	lon = s.box.West + s.rng.Float64()*(s.box.East-s.box.West)
	return lat, lon
}
