// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package processor

import "github.com/ManuGH/epgsnoop/internal/program"

// SkyRatings translates SKY NZ rating and advisory codes.
type SkyRatings struct{}

const skyRatingSystem = "SKY-NZ"

var skyRatings = map[string]string{
	"2":  "G",
	"4":  "PG",
	"6":  "M",
	"8":  "R16",
	"10": "18+",
	"12": "R18",
	"13": "R20",
}

// advisories travel in the second user nibble
var skyAdvisories = map[string]string{
	"1": "V",
	"2": "S",
	"3": "VS",
	"4": "L",
	"5": "VL",
	"6": "LS",
	"7": "VLS",
	"8": "C",
}

func (SkyRatings) Name() string { return "sky_ratings" }

func (SkyRatings) Process(p *program.Program) {
	p.RatingSystem = skyRatingSystem
	if r, ok := skyRatings[p.RatingNum]; ok {
		p.Rating = r
	}
	if p.User2 != "" && p.User2 != "0" {
		if a, ok := skyAdvisories[p.User2]; ok {
			p.RatingAdvisory = a
		}
	}
}
