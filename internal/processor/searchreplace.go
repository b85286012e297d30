// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ManuGH/epgsnoop/internal/log"
	"github.com/ManuGH/epgsnoop/internal/program"
)

const (
	defaultSearchReplaceTimeout = 10 * time.Second
	maxReplacementsBody         = 4 << 20
)

// Replacement is one entry of the published search/replace list.
type Replacement struct {
	Search  string `json:"search"`
	Replace string `json:"replace"`
}

type compiledReplacement struct {
	re      *regexp.Regexp
	replace string
}

// SearchReplaceTitle applies a remotely maintained list of title fixes.
type SearchReplaceTitle struct {
	rules []compiledReplacement
}

// Published replacements use \1 and \g<name> group references and treat $
// literally.
var pyGroupRef = regexp.MustCompile(`^\\(?:(\d{1,2})|g<(\w+)>)`)

func expandTemplate(py string) string {
	var b strings.Builder
	for i := 0; i < len(py); i++ {
		switch c := py[i]; c {
		case '$':
			b.WriteString("$$")
		case '\\':
			if m := pyGroupRef.FindStringSubmatch(py[i:]); m != nil {
				b.WriteString("${" + m[1] + m[2] + "}")
				i += len(m[0]) - 1
				continue
			}
			if i+1 < len(py) && py[i+1] == '\\' {
				i++
			}
			b.WriteByte('\\')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// NewSearchReplaceTitle fetches the replacement list. The processor is
// inactive when no URL is configured or the list cannot be fetched or parsed.
func NewSearchReplaceTitle(ctx context.Context, cfg Config) Outcome {
	const name = "search_replace_title"
	if cfg.SearchReplaceURL == "" {
		return Inactive(name, "no searchReplaceTitle.url configured")
	}

	timeout := cfg.SearchReplaceTimeout
	if timeout <= 0 {
		timeout = defaultSearchReplaceTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	list, err := fetchReplacements(reqCtx, client, cfg.SearchReplaceURL)
	if err != nil {
		return Inactive(name, err.Error())
	}

	p, err := CompileReplacements(list)
	if err != nil {
		return Inactive(name, err.Error())
	}
	logger := log.WithComponentFromContext(ctx, "processor")
	logger.Debug().
		Str(log.FieldProcessor, name).
		Int("rules", len(p.rules)).
		Msg("loaded title replacements")
	return Active(p)
}

func fetchReplacements(ctx context.Context, client *http.Client, url string) ([]Replacement, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching data failed: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching data failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching data failed: %s", resp.Status)
	}
	var list []Replacement
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplacementsBody)).Decode(&list); err != nil {
		return nil, fmt.Errorf("JSON parse failed: %w", err)
	}
	return list, nil
}

// CompileReplacements validates every search pattern up front.
func CompileReplacements(list []Replacement) (*SearchReplaceTitle, error) {
	rules := make([]compiledReplacement, 0, len(list))
	for i, r := range list {
		re, err := regexp.Compile(r.Search)
		if err != nil {
			return nil, fmt.Errorf("replacement %d: %w", i, err)
		}
		rules = append(rules, compiledReplacement{
			re:      re,
			replace: expandTemplate(r.Replace),
		})
	}
	return &SearchReplaceTitle{rules: rules}, nil
}

func (*SearchReplaceTitle) Name() string { return "search_replace_title" }

func (s *SearchReplaceTitle) Process(p *program.Program) {
	for _, r := range s.rules {
		old := p.Title
		p.Title = r.re.ReplaceAllString(p.Title, r.replace)
		if old != p.Title {
			logger := log.WithComponent("processor")
			logger.Debug().
				Str(log.FieldProcessor, s.Name()).
				Str("from", old).
				Str("to", p.Title).
				Msg("changed title")
		}
	}
}
