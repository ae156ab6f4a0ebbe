package store

import (
	"context"
	"sort"
	"strings"

	apperrors "github.com/pvasseur/streamsync/internal/errors"
	"github.com/pvasseur/streamsync/internal/models"
	"github.com/pvasseur/streamsync/internal/normalizer"
)

// minMatchConfidence is the similarity floor for fuzzy title candidates
const minMatchConfidence = 0.8

// FindMatches is the reverse lookup used for trending-to-local matching:
// given external display titles, return stored entries whose canonical title
// matches. Exact canonical matches rank first, then fuzzy candidates above
// the confidence floor, best first.
func (c *Catalog) FindMatches(ctx context.Context, titles []string, limit int) ([]models.CatalogEntry, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	norm := normalizer.New()
	wanted := make([]string, 0, len(titles))
	for _, title := range titles {
		canonical := strings.ToLower(norm.Normalize(title).Title)
		if canonical == "" {
			canonical = strings.ToLower(strings.TrimSpace(title))
		}
		if canonical != "" {
			wanted = append(wanted, canonical)
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	var exact []models.CatalogEntry
	err := c.db.WithContext(ctx).
		Where("LOWER(canonical_title) IN ?", wanted).
		Where("content_type <> ?", models.ContentTypeLive).
		Limit(limit).
		Find(&exact).Error
	if err != nil {
		return nil, apperrors.DatabaseError("failed to find exact title matches", err)
	}
	if len(exact) >= limit {
		return exact[:limit], nil
	}

	fuzzy, err := c.fuzzyCandidates(ctx, wanted, exact, limit-len(exact))
	if err != nil {
		return nil, err
	}
	return append(exact, fuzzy...), nil
}

// fuzzyCandidates pulls prefix candidates per wanted title and keeps those
// above the confidence floor, ranked by similarity.
func (c *Catalog) fuzzyCandidates(ctx context.Context, wanted []string, exclude []models.CatalogEntry, limit int) ([]models.CatalogEntry, error) {
	seen := make(map[uint]struct{}, len(exclude))
	for _, e := range exclude {
		seen[e.ID] = struct{}{}
	}

	type scored struct {
		entry models.CatalogEntry
		score float64
	}
	var candidates []scored

	for _, title := range wanted {
		// slice on rune boundaries; a byte cut through a multi-byte rune
		// would make an invalid-UTF-8 LIKE pattern that matches nothing
		prefix := title
		if runes := []rune(prefix); len(runes) > 4 {
			prefix = string(runes[:4])
		}

		var rows []models.CatalogEntry
		err := c.db.WithContext(ctx).
			Where("LOWER(canonical_title) LIKE ?", prefix+"%").
			Where("content_type <> ?", models.ContentTypeLive).
			Limit(50).
			Find(&rows).Error
		if err != nil {
			return nil, apperrors.DatabaseError("failed to load fuzzy title candidates", err)
		}

		for _, row := range rows {
			if _, dup := seen[row.ID]; dup {
				continue
			}
			score := similarity(title, strings.ToLower(row.CanonicalTitle))
			if score < minMatchConfidence {
				continue
			}
			seen[row.ID] = struct{}{}
			candidates = append(candidates, scored{entry: row, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	result := make([]models.CatalogEntry, len(candidates))
	for i, cand := range candidates {
		result[i] = cand.entry
	}
	return result, nil
}

// similarity scores two canonical titles on Levenshtein distance, 1.0 for identical
func similarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

func levenshteinDistance(s1, s2 string) int {
	len1 := len(s1)
	len2 := len(s2)

	matrix := make([][]int, len1+1)
	for i := range matrix {
		matrix[i] = make([]int, len2+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len2; j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len1; i++ {
		for j := 1; j <= len2; j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			deletion := matrix[i-1][j] + 1
			insertion := matrix[i][j-1] + 1
			substitution := matrix[i-1][j-1] + cost

			best := deletion
			if insertion < best {
				best = insertion
			}
			if substitution < best {
				best = substitution
			}
			matrix[i][j] = best
		}
	}

	return matrix[len1][len2]
}
