package catalog

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// costPredicate is a single numeric constraint extracted from a query,
// e.g. "cost>=3" or "cmc=1".
type costPredicate struct {
	op  string
	val int
}

func (p costPredicate) match(cost int) bool {
	switch p.op {
	case ">":
		return cost > p.val
	case "<":
		return cost < p.val
	case ">=":
		return cost >= p.val
	case "<=":
		return cost <= p.val
	default:
		return cost == p.val
	}
}

var costPattern = regexp.MustCompile(`(?i)\b(mana|cost|cmc)\s*(>=|<=|>|<|=)?\s*(\d+)\b`)

// extractCostPredicates strips every mana/cost/cmc numeric constraint
// out of needle and returns the remaining text plus the predicates
// found, per spec §4.4.1's "each match is removed from the needle and
// converted into a predicate on the catalog card's integer cost".
func extractCostPredicates(needle string) (string, []costPredicate) {
	var preds []costPredicate
	rest := costPattern.ReplaceAllStringFunc(needle, func(m string) string {
		sub := costPattern.FindStringSubmatch(m)
		op := sub[2]
		if op == "" {
			op = "="
		}
		n, _ := strconv.Atoi(sub[3])
		preds = append(preds, costPredicate{op: op, val: n})
		return " "
	})
	return rest, preds
}

// splitTokens splits s on whitespace, honoring single/double quoted
// substrings as one token (shell-quoting rules), falling back to a
// plain whitespace split if the quoting is unbalanced.
func splitTokens(s string) []string {
	var out []string
	var cur strings.Builder
	var quote rune
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	if quote != 0 {
		// Unbalanced quoting: fall back to a plain split of the original.
		return strings.Fields(s)
	}
	return out
}

var colorWords = map[string]string{
	"white": "white", "blue": "blue", "black": "black", "red": "red", "green": "green",
	"w": "white", "u": "blue", "b": "black", "r": "red", "g": "green",
}

var arityWords = map[string]bool{
	"mono": true, "single": true, "dual": true, "two": true, "tri": true, "three": true,
	"quad": true, "four": true, "five": true, "all": true, "multi": true, "multicolor": true,
	"colored": true, "colorless": true, "rainbow": true,
}

// expandQuery recognizes color and arity words among tokens and
// returns them alongside the unrecognized tokens, so scoring can treat
// "mono red" as a combined color-arity query rather than two unrelated
// literal-text tokens.
func expandQuery(tokens []string) (colors []string, arity string, rest []string) {
	seen := make(map[string]bool)
	for _, t := range tokens {
		lt := strings.ToLower(t)
		if col, ok := colorWords[lt]; ok {
			if !seen[col] {
				seen[col] = true
				colors = append(colors, col)
			}
			continue
		}
		if arityWords[lt] {
			arity = lt
			continue
		}
		rest = append(rest, lt)
	}
	if arity == "" && len(colors) > 0 {
		if len(colors) == 1 {
			arity = "mono"
		} else {
			arity = "dual"
		}
	}
	return colors, arity, rest
}

func hasColor(e *Entry, color string) bool {
	for _, c := range e.Colors {
		if c == color {
			return true
		}
	}
	return false
}

// scored pairs an Entry with its ranking score for one Search call.
type scored struct {
	entry Entry
	score float64
}

// Search ranks every catalog entry against needle per spec §4.4.1:
// numeric cost predicates are extracted first and must all hold; an
// exact slug match is a strong signal; remaining tokens score against
// the slug, search type, token pool and search text, with a penalty
// for tokens that match nowhere at all. limit <= 0 returns every
// matching entry.
func (c *Catalog) Search(needle string, limit int) []Entry {
	rest, preds := extractCostPredicates(needle)
	colors, arity, tokens := expandQuery(splitTokens(rest))
	needleSlug := Normalize(needle)

	var results []scored
	for _, e := range c.entries {
		ok := true
		for _, p := range preds {
			if !p.match(e.Cost) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if len(colors) > 0 {
			anyMatch := false
			for _, col := range colors {
				if hasColor(&e, col) {
					anyMatch = true
					break
				}
			}
			if !anyMatch {
				continue
			}
		}
		switch arity {
		case "mono":
			if len(e.Colors) > 1 {
				continue
			}
		case "dual":
			if len(e.Colors) != 2 {
				continue
			}
		case "colorless":
			if len(e.Colors) != 0 {
				continue
			}
		case "multi", "multicolor", "rainbow":
			if len(e.Colors) < 2 {
				continue
			}
		}

		var score float64
		if e.Slug == needleSlug {
			score += 20
		}
		if e.GoodQuality {
			score += 0.5
		}
		for _, tok := range tokens {
			found := false
			if strings.Contains(e.Slug, tok) || strings.Contains(e.SearchType, tok) {
				score += 1
				found = true
			}
			for _, et := range e.Tokens {
				if et == tok {
					score += 1
					found = true
					break
				}
			}
			if strings.Contains(e.SearchText, tok) {
				score += float64(len(strings.Fields(tok)))
				found = true
			}
			if !found {
				score -= 3
			}
		}
		results = append(results, scored{entry: e, score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		bi, bj := bucket(results[i].score), bucket(results[j].score)
		if bi != bj {
			return bi > bj
		}
		return false
	})

	out := make([]Entry, 0, len(results))
	for _, r := range results {
		out = append(out, r.entry)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// bucket rounds a score down into an integer bucket so near-tied
// entries rank in stable, original-order groups rather than by
// fractional score noise (e.g. the 0.5 goodQuality bonus).
func bucket(score float64) int {
	if score < 0 && float64(int(score)) != score {
		return int(score) - 1
	}
	return int(score)
}
