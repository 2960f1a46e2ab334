package analyzer

import (
	"log/slog"
	"regexp"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/merchantsafe/kyc-screener/internal/htmlutil"
	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
)

// legalSuffixes are stripped before name comparison, longest first.
var legalSuffixes = []string{
	"private limited company", "public limited company", "private limited",
	"proprietary limited", "limited liability partnership", "limited liability company",
	"incorporated", "corporation", "company", "limited", "pvt ltd", "pte ltd",
	"pvt. ltd.", "pte. ltd.", "l.l.c.", "llc", "llp", "inc.", "inc", "ltd.", "ltd",
	"gmbh", "s.a.", "b.v.", "a.g.", "co.", "plc", "corp.", "corp", "oy", "ab", "sarl",
}

// nameStopwords are dropped from extracted candidates.
var nameStopwords = []string{
	"all rights reserved", "copyright", "official site", "official website",
	"home", "welcome to",
}

// nameRun captures a run of capitalized tokens, which keeps trailing sentence
// fragments out of extracted names.
const nameRun = `((?:[A-Z][\w&'-]*,?\s+){0,5}[A-Z][\w&'-]*\.?)`

var (
	copyrightRe  = regexp.MustCompile(`(?:©|\(c\)|(?i:copyright))\s*(?:\d{4}(?:\s*[-–]\s*\d{4})?)?\s*` + nameRun)
	operatedByRe = regexp.MustCompile(`(?i:operated by|provided by|owned by|a service of)\s+` + nameRun)
	yearRangeRe  = regexp.MustCompile(`\b\d{4}(\s*[-–]\s*\d{4})?\b`)
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9 ]+`)
)

// Score blend weights for the four similarity ratios.
const (
	weightRatio     = 0.2
	weightPartial   = 0.2
	weightTokenSort = 0.3
	weightTokenSet  = 0.3
)

// EntityMatcher compares the declared legal name with names extracted from
// the site.
type EntityMatcher struct {
	logger *slog.Logger
}

// NewEntityMatcher creates an entity matcher.
func NewEntityMatcher(logger *slog.Logger) *EntityMatcher {
	return &EntityMatcher{logger: logger.With("component", "entity_matcher")}
}

// Match extracts candidate business names from the page graph and scores the
// best one against the declared name. NO_MATCH is returned only when no names
// could be extracted at all.
func (m *EntityMatcher) Match(graph *pagegraph.Graph, declaredName, registeredAddress string) *models.EntityMatchResult {
	result := &models.EntityMatchResult{
		DeclaredName: declaredName,
	}

	candidates := m.extractNames(graph)
	result.ExtractedNames = candidates
	if len(candidates) == 0 {
		result.MatchStatus = models.MatchStatusNoMatch
		return result
	}

	normDeclared := normalizeEntityName(declaredName)
	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		score := blendedScore(normDeclared, normalizeEntityName(c))
		if score > bestScore {
			bestScore = score
			best = c
		}
	}

	result.BestMatch = best
	result.MatchScore = bestScore
	result.MatchStatus = statusForScore(bestScore)

	if registeredAddress != "" {
		if matched, ok := m.matchAddress(graph, registeredAddress); ok {
			result.AddressMatch = &matched
		}
	}

	m.logger.Debug("entity match completed",
		"declared", declaredName,
		"best", best,
		"score", bestScore,
		"status", result.MatchStatus,
	)
	return result
}

// extractNames collects candidate names from site metadata, titles,
// copyright lines, and terms-of-service operator statements.
func (m *EntityMatcher) extractNames(graph *pagegraph.Graph) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		name = cleanEntityName(name)
		if name == "" || len(name) < 2 {
			return
		}
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}

	if home, ok := graph.Home(); ok && home.OK() && home.HTML != "" {
		if doc, err := htmlutil.Parse(home.HTML); err == nil {
			add(htmlutil.MetaContent(doc, "og:site_name"))
			// Title left of the first separator usually names the business.
			title := htmlutil.Title(doc)
			for _, sep := range []string{" - ", " | ", " – "} {
				if i := strings.Index(title, sep); i > 0 {
					title = title[:i]
					break
				}
			}
			add(title)
		}
	}

	for _, page := range graph.FetchedPages() {
		for _, match := range copyrightRe.FindAllStringSubmatch(page.VisibleText, 2) {
			add(match[1])
		}
		if page.Type == pagegraph.PageTermsConditions {
			for _, match := range operatedByRe.FindAllStringSubmatch(page.VisibleText, 2) {
				add(match[1])
			}
		}
	}
	return out
}

// matchAddress compares the registered address against contact and about
// page text. Returns ok=false when no comparable text exists.
func (m *EntityMatcher) matchAddress(graph *pagegraph.Graph, address string) (matched, ok bool) {
	var text string
	for _, pt := range []pagegraph.PageType{pagegraph.PageContact, pagegraph.PageAbout} {
		if page, found := graph.Get(pt); found && page.OK() {
			text += " " + page.VisibleText
		}
	}
	if strings.TrimSpace(text) == "" {
		return false, false
	}
	score := float64(fuzzy.PartialRatio(strings.ToLower(address), strings.ToLower(text)))
	return score >= 60, true
}

// blendedScore combines the four similarity ratios with fixed weights.
func blendedScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return weightRatio*float64(fuzzy.Ratio(a, b)) +
		weightPartial*float64(fuzzy.PartialRatio(a, b)) +
		weightTokenSort*float64(fuzzy.TokenSortRatio(a, b)) +
		weightTokenSet*float64(fuzzy.TokenSetRatio(a, b))
}

func statusForScore(score float64) models.MatchStatus {
	switch {
	case score >= 80:
		return models.MatchStatusMatch
	case score >= 60:
		return models.MatchStatusPartialMatch
	default:
		return models.MatchStatusMismatch
	}
}

// cleanEntityName removes boilerplate from an extracted candidate.
func cleanEntityName(name string) string {
	name = strings.TrimSpace(name)
	lower := strings.ToLower(name)
	for _, stop := range nameStopwords {
		if i := strings.Index(lower, stop); i >= 0 {
			name = name[:i] + name[i+len(stop):]
			lower = strings.ToLower(name)
		}
	}
	name = yearRangeRe.ReplaceAllString(name, "")
	return strings.Trim(strings.TrimSpace(name), ".,-–| ")
}

// normalizeEntityName lowers, strips legal suffixes and punctuation, and
// collapses whitespace.
func normalizeEntityName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range legalSuffixes {
		s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
	}
	s = nonAlnumRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
