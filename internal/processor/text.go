// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package processor

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/epgsnoop/internal/log"
	"github.com/ManuGH/epgsnoop/internal/program"
)

const aspectWidescreen = "16:9"

func debugMatch(name string, p *program.Program, msg string) {
	logger := log.WithComponent("processor")
	logger.Debug().
		Str(log.FieldProcessor, name).
		Str(log.FieldTitle, p.Title).
		Msg(msg)
}

// StripHTML removes markup tags from titles.
type StripHTML struct{}

var htmlTag = regexp.MustCompile(`<.*?>`)

func (StripHTML) Name() string { return "strip_html" }

func (StripHTML) Process(p *program.Program) {
	p.Title = htmlTag.ReplaceAllString(p.Title, "")
}

// HD flags programs whose description ends in "HD".
type HD struct{}

var hdSuffix = regexp.MustCompile(`HD$`)

func (HD) Name() string { return "hd" }

func (h HD) Process(p *program.Program) {
	if !hdSuffix.MatchString(p.Description) {
		return
	}
	debugMatch(h.Name(), p, "found HD program")
	p.Video = true
	p.HD = true
	p.Aspect = aspectWidescreen
	p.Description = hdSuffix.ReplaceAllString(p.Description, "")
}

// Widescreen flags programs marked " (WS)" in their description.
type Widescreen struct{}

var wsMarker = regexp.MustCompile(` \(WS\)`)

func (Widescreen) Name() string { return "widescreen" }

func (w Widescreen) Process(p *program.Program) {
	if !wsMarker.MatchString(p.Description) {
		return
	}
	debugMatch(w.Name(), p, "found widescreen program")
	p.Video = true
	p.Aspect = aspectWidescreen
	p.Description = wsMarker.ReplaceAllString(p.Description, "")
}

// Credits extracts the cast and director from the description. The
// description is left as is.
type Credits struct{}

var (
	starring   = regexp.MustCompile(`\. Starring: (.*?)\.`)
	directedBy = regexp.MustCompile(`Directed by (([A-Za-z'\-]+(\s|.))+)`)
)

func (Credits) Name() string { return "credits" }

func (c Credits) Process(p *program.Program) {
	if m := starring.FindStringSubmatch(p.Description); m != nil {
		debugMatch(c.Name(), p, "found actors")
		p.Actors = strings.Split(m[1], ", ")
	}
	if m := directedBy.FindStringSubmatch(p.Description); m != nil {
		debugMatch(c.Name(), p, "found director")
		p.Director = strings.Trim(m[1], " .")
	}
}

// Year picks up a trailing " (1999)." production year.
type Year struct{}

var trailingYear = regexp.MustCompile(` \((\d{4})\)\.$`)

func (Year) Name() string { return "year" }

func (y Year) Process(p *program.Program) {
	if m := trailingYear.FindStringSubmatch(p.Description); m != nil {
		debugMatch(y.Name(), p, "found year")
		p.Year = m[1]
	}
}

// MovieTitle recognises broadcaster movie slots prefixed to the title.
type MovieTitle struct{}

var movieSlot = regexp.MustCompile(`^(?:` + strings.Join([]string{
	`Movie`,
	`Saturday\sBlockbuster`,
	`Blockbuster\sTuesday`,
	`Sunday\sPremiere\sMovie`,
	`Sunday\sBlockbuster\sPremiere`,
	`Sunday\sPremier\sMovie`,
	`Mid-Week\sMovi?e`,
	`The\sSol\sSunday\sNight\sMovie`,
	`Saturday\sComedy\sBlockbuster`,
}, "|") + `):\s?`)

func (MovieTitle) Name() string { return "movie_title" }

func (m MovieTitle) Process(p *program.Program) {
	loc := movieSlot.FindStringIndex(p.Title)
	if loc == nil {
		return
	}
	debugMatch(m.Name(), p, "found movie from title")
	p.CategoryType = "movie"
	p.Title = p.Title[loc[1]:]
}

// Subtitle moves a leading episode title out of the description. The first
// matching pattern wins.
type Subtitle struct{}

var subtitlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:Today|Tonight)?:? ?'(?P<subtitle>.*?)'\.\s?`),
	regexp.MustCompile(`^'(?P<subtitle>.{2,60}?)'\s`),
	regexp.MustCompile(`^(?P<subtitle>.{2,60}?):\s`),
}

func (Subtitle) Name() string { return "subtitle" }

func (s Subtitle) Process(p *program.Program) {
	if p.Description == "" {
		return
	}
	for _, re := range subtitlePatterns {
		m := re.FindStringSubmatchIndex(p.Description)
		if m == nil {
			continue
		}
		i := re.SubexpIndex("subtitle")
		debugMatch(s.Name(), p, "found subtitle")
		p.CategoryType = "series"
		p.Subtitle = p.Description[m[2*i]:m[2*i+1]]
		p.Description = p.Description[m[1]:]
		return
	}
}

// MovieDesc recognises a genre (and optional year) prefix in the description.
type MovieDesc struct{}

var movieGenre = regexp.MustCompile(`^(` + strings.Join([]string{
	`Action`,
	`Adventure`,
	`Animated`,
	`Comedy`,
	`Crime`,
	`Documentary`,
	`Drama`,
	`Family`,
	`Horror`,
	`Magazine`,
	`Musical`,
	`Romantic\sComedy`,
	`Rom\sCom`,
	`Thriller`,
	`Biography/Drama`,
}, "|") + `)(?:, (\d{4}))?:\s?`)

func (MovieDesc) Name() string { return "movie_desc" }

func (md MovieDesc) Process(p *program.Program) {
	m := movieGenre.FindStringSubmatchIndex(p.Description)
	if m == nil {
		return
	}
	debugMatch(md.Name(), p, "found movie from description")
	p.CategoryName = p.Description[m[2]:m[3]]
	if m[4] >= 0 {
		p.Year = p.Description[m[4]:m[5]]
	}
	p.CategoryType = "movie"
	p.Description = p.Description[m[1]:]
}

// NormalizeTitle composes titles to Unicode NFC and squeezes whitespace, so
// equal titles compare equal in later lookups.
type NormalizeTitle struct{}

func (NormalizeTitle) Name() string { return "normalize_title" }

func (NormalizeTitle) Process(p *program.Program) {
	p.Title = strings.Join(strings.Fields(norm.NFC.String(p.Title)), " ")
	if p.Subtitle != "" {
		p.Subtitle = strings.Join(strings.Fields(norm.NFC.String(p.Subtitle)), " ")
	}
}
