package member

import (
	"math"
	"sort"
)

// Progress describes how far a user is from the next level.
type Progress struct {
	Experience int
	Current    *Level
	Next       *Level
	Needed     int
	Percent    float64
	Highest    bool
}

func sortLevels(levels []Level) {
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].MinExperience < levels[j].MinExperience
	})
}

// LevelFor returns the highest level whose threshold is <= exp, or nil.
// levels must be sorted by MinExperience.
func LevelFor(levels []Level, exp int) *Level {
	var found *Level
	for i := range levels {
		if levels[i].MinExperience <= exp {
			found = &levels[i]
		}
	}
	return found
}

// LevelProgress computes the progress of exp through sorted levels.
// Below the lowest threshold the first level is the next one and progress
// counts from zero. Percent is in [0, 100] with two decimals.
func LevelProgress(levels []Level, exp int) Progress {
	p := Progress{Experience: exp}
	if len(levels) == 0 {
		return p
	}

	idx := -1
	for i := range levels {
		if levels[i].MinExperience <= exp {
			idx = i
		}
	}
	if idx+1 >= len(levels) {
		p.Current = &levels[idx]
		p.Highest = true
		return p
	}

	floor := 0
	if idx >= 0 {
		p.Current = &levels[idx]
		floor = p.Current.MinExperience
	}
	p.Next = &levels[idx+1]

	span := p.Next.MinExperience - floor
	gained := exp - floor
	p.Needed = max(0, p.Next.MinExperience-exp)
	if span > 0 {
		pct := float64(gained) / float64(span) * 100
		pct = math.Min(100, math.Max(0, pct))
		p.Percent = math.Round(pct*100) / 100
	}
	return p
}
