package planner

import (
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// predicate decides whether an item passes one rule. now is captured
// once per plan so age rules are stable across the whole run.
type predicate func(item types.Item, now time.Time) bool

// compileRule turns a filter rule into a predicate. Patterns that do
// not compile are configuration errors; config validation catches
// them before a service starts, so hitting one here means the rule
// bypassed validation.
func compileRule(rule types.FilterRule) (predicate, error) {
	switch rule.Type {
	case types.FilterGlob:
		g, err := glob.Compile(rule.Pattern)
		if err != nil {
			return nil, errdefs.Wrapf(errdefs.ClassConfiguration, err, "invalid glob %q", rule.Pattern)
		}
		return func(item types.Item, _ time.Time) bool {
			return g.Match(item.Name)
		}, nil

	case types.FilterRegex:
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, errdefs.Wrapf(errdefs.ClassConfiguration, err, "invalid regex %q", rule.Pattern)
		}
		return func(item types.Item, _ time.Time) bool {
			return re.MatchString(item.Name)
		}, nil

	case types.FilterExtension:
		allowed := normalizeExtensions(rule.Extensions)
		return func(item types.Item, _ time.Time) bool {
			return allowed[strings.ToLower(path.Ext(item.Name))]
		}, nil

	case types.FilterMinSize:
		return func(item types.Item, _ time.Time) bool {
			return item.SizeBytes >= rule.Value
		}, nil

	case types.FilterMaxSize:
		return func(item types.Item, _ time.Time) bool {
			return item.SizeBytes <= rule.Value
		}, nil

	case types.FilterMaxAge:
		return func(item types.Item, now time.Time) bool {
			return now.Sub(item.ModifiedAt) <= rule.Window
		}, nil

	case types.FilterMinAge:
		return func(item types.Item, now time.Time) bool {
			return now.Sub(item.ModifiedAt) >= rule.Window
		}, nil

	default:
		return nil, errdefs.Newf(errdefs.ClassConfiguration, "unknown filter type %q", rule.Type)
	}
}

// compileChain compiles a content type's ordered filters plus its
// extension allow-list
func compileChain(ct types.ContentType) ([]predicate, error) {
	var chain []predicate

	if len(ct.AllowedExtensions) > 0 {
		allowed := normalizeExtensions(ct.AllowedExtensions)
		chain = append(chain, func(item types.Item, _ time.Time) bool {
			return allowed[strings.ToLower(path.Ext(item.Name))]
		})
	}

	for i, rule := range ct.Filters {
		p, err := compileRule(rule)
		if err != nil {
			return nil, errdefs.Wrapf(errdefs.ClassConfiguration, err, "content type %q: filters[%d]", ct.Name, i)
		}
		chain = append(chain, p)
	}
	return chain, nil
}

// scorer computes an item's priority score from weighted rules
type scorer struct {
	weights    []float64
	predicates []predicate
}

func compileScorer(ct types.ContentType) (*scorer, error) {
	s := &scorer{}
	for i, rule := range ct.PriorityRules {
		p, err := compileRule(rule.Rule)
		if err != nil {
			return nil, errdefs.Wrapf(errdefs.ClassConfiguration, err, "content type %q: priority_rules[%d]", ct.Name, i)
		}
		s.weights = append(s.weights, rule.Weight)
		s.predicates = append(s.predicates, p)
	}
	return s, nil
}

// score sums the weights of every matching rule
func (s *scorer) score(item types.Item, now time.Time) float64 {
	var total float64
	for i, p := range s.predicates {
		if p(item, now) {
			total += s.weights[i]
		}
	}
	return total
}

func normalizeExtensions(exts []string) map[string]bool {
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		e := strings.ToLower(strings.TrimSpace(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		allowed[e] = true
	}
	return allowed
}
