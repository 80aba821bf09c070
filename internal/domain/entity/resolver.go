package entity

import (
	"context"
	"strings"
	"time"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"
)

const (
	fuzzyCandidateLimit = 25
	// maxTokenEdits bounds the edit distance accepted per name token.
	maxTokenEdits = 2
)

// Resolver turns free text into a Reference.
type Resolver struct {
	dir Directory
	now func() time.Time
}

// NewResolver builds a resolver. now defaults to time.Now.
func NewResolver(dir Directory, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{dir: dir, now: now}
}

// Resolve never fails: when nothing in the query resolves, the current user
// is returned so the pipeline is never blocked on resolution.
func (r *Resolver) Resolve(ctx context.Context, query string, current User) Reference {
	period := ExtractPeriod(query, r.now())
	self := Reference{
		Kind:        KindAdvisor,
		ID:          current.ID,
		DisplayName: current.FullName(),
		Period:      period,
		Source:      "self",
	}

	if IsFirstPerson(query) {
		return self
	}

	for _, c := range ExtractCandidates(query) {
		ref, ok := r.lookup(ctx, c)
		if !ok {
			continue
		}
		ref.Period = period
		zap.L().Debug("resolve: matched",
			zap.String("pattern", c.Pattern),
			zap.String("confidence", string(c.Confidence)),
			zap.String("kind", string(ref.Kind)),
			zap.String("id", ref.ID),
		)
		return ref
	}

	zap.L().Info("resolve: falling back to current user",
		zap.Error(ErrNotResolved),
		zap.String("user_id", current.ID),
	)
	self.Source = "fallback"
	return self
}

func (r *Resolver) lookup(ctx context.Context, c Candidate) (Reference, bool) {
	if c.Kind == KindStore || c.Kind == KindMarket {
		for _, v := range c.Variants {
			u, err := r.dir.FindUnitByName(ctx, c.Kind, v)
			if err != nil {
				zap.L().Warn("resolve: unit lookup failed", zap.String("name", v), zap.Error(err))
				continue
			}
			if u != nil {
				return Reference{Kind: u.Kind, ID: u.ID, DisplayName: u.Name, Source: c.Pattern}, true
			}
		}
		return Reference{}, false
	}

	// Exact matches for every variant before any fuzzy attempt.
	for _, v := range c.Variants {
		first, last := splitName(v)
		users, err := r.dir.FindActiveUsersByName(ctx, first, last)
		if err != nil {
			zap.L().Warn("resolve: exact lookup failed", zap.String("name", v), zap.Error(err))
			continue
		}
		if len(users) > 0 {
			return userRef(users[0], c.Pattern), true
		}
	}

	for _, v := range c.Variants {
		if u, ok := r.fuzzy(ctx, v); ok {
			return userRef(u, c.Pattern+"+fuzzy"), true
		}
	}
	return Reference{}, false
}

// fuzzy pulls prefix candidates and keeps the one with the smallest bounded
// edit distance over name tokens, in either order.
func (r *Resolver) fuzzy(ctx context.Context, name string) (User, bool) {
	first, last := splitName(name)
	users, err := r.dir.FindActiveUsersByPrefix(ctx, prefix(first), prefix(last), fuzzyCandidateLimit)
	if err != nil {
		zap.L().Warn("resolve: fuzzy lookup failed", zap.String("name", name), zap.Error(err))
		return User{}, false
	}

	best, bestScore := -1, -1
	for i, u := range users {
		score, ok := NameDistance(first, last, strings.ToLower(u.FirstName), strings.ToLower(u.LastName))
		if !ok {
			continue
		}
		if best < 0 || score < bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return User{}, false
	}
	return users[best], true
}

// NameDistance scores a query name against a directory name. A single-token
// query (first == "") is compared against both stored names. ok is false when
// any compared token exceeds the per-token edit bound.
func NameDistance(first, last, candFirst, candLast string) (int, bool) {
	if first == "" {
		d := min(tokenDistance(last, candLast), tokenDistance(last, candFirst))
		return d, d <= maxTokenEdits
	}

	straight := pairDistance(first, candFirst, last, candLast)
	swapped := pairDistance(first, candLast, last, candFirst)
	d := min(straight, swapped)
	return d, d <= 2*maxTokenEdits
}

func pairDistance(a1, b1, a2, b2 string) int {
	d1, d2 := tokenDistance(a1, b1), tokenDistance(a2, b2)
	if d1 > maxTokenEdits || d2 > maxTokenEdits {
		return 1 << 20
	}
	return d1 + d2
}

func tokenDistance(a, b string) int {
	if a == "" || b == "" {
		return 1 << 20
	}
	return levenshtein.Distance(foldName(a), foldName(b), nil)
}

func userRef(u User, source string) Reference {
	return Reference{Kind: KindAdvisor, ID: u.ID, DisplayName: u.FullName(), Source: source}
}

// splitName returns ("", token) for single names and first/last otherwise.
func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[0], parts[len(parts)-1]
	}
}

func prefix(s string) string {
	if len(s) > 3 {
		return s[:3]
	}
	return s
}
