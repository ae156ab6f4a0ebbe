package filter

import (
	"fmt"
	"regexp"

	"github.com/pvasseur/streamsync/internal/config"
	"github.com/pvasseur/streamsync/internal/models"
)

// Filter represents a compiled filter
type Filter struct {
	Name            string
	Attribute       string // "group_title" or "title"
	IncludePatterns []*regexp.Regexp
	ExcludePatterns []*regexp.Regexp
}

// Manager applies configured include/exclude filters to fetched entries
// before they reach storage.
type Manager struct {
	filters []Filter
}

// NewManager creates a new filter manager
func NewManager() *Manager {
	return &Manager{
		filters: make([]Filter, 0),
	}
}

// LoadFromConfig loads filters from configuration
func (m *Manager) LoadFromConfig() error {
	cfg := config.Get()

	if err := m.loadFilterSet("group_title", cfg.Filter.GroupTitle.IncludePatterns, cfg.Filter.GroupTitle.ExcludePatterns); err != nil {
		return fmt.Errorf("failed to load group-title filters: %w", err)
	}

	if err := m.loadFilterSet("title", cfg.Filter.Title.IncludePatterns, cfg.Filter.Title.ExcludePatterns); err != nil {
		return fmt.Errorf("failed to load title filters: %w", err)
	}

	return nil
}

// Matches checks if a value passes the filters for one attribute
func (m *Manager) Matches(attribute, value string) bool {
	var applicableFilters []Filter
	for _, filter := range m.filters {
		if filter.Attribute == attribute {
			applicableFilters = append(applicableFilters, filter)
		}
	}

	if len(applicableFilters) == 0 {
		// No filters for this attribute, allow all
		return true
	}

	for _, filter := range applicableFilters {
		// Check exclude patterns first
		for _, excludePattern := range filter.ExcludePatterns {
			if excludePattern.MatchString(value) {
				return false
			}
		}

		// If there are include patterns, at least one must match
		if len(filter.IncludePatterns) > 0 {
			matched := false
			for _, includePattern := range filter.IncludePatterns {
				if includePattern.MatchString(value) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}

	return true
}

// ShouldKeep checks if a fetched entry passes the group and title filters
func (m *Manager) ShouldKeep(entry *models.CatalogEntry) bool {
	if !m.Matches("group_title", entry.GroupTitle) {
		return false
	}
	if !m.Matches("title", entry.RawTitle) {
		return false
	}
	return true
}

// Apply returns only the entries that pass the filters
func (m *Manager) Apply(entries []models.CatalogEntry) []models.CatalogEntry {
	if len(m.filters) == 0 {
		return entries
	}

	kept := entries[:0]
	for i := range entries {
		if m.ShouldKeep(&entries[i]) {
			kept = append(kept, entries[i])
		}
	}
	return kept
}

// loadFilterSet loads and compiles a set of filter patterns
func (m *Manager) loadFilterSet(attribute string, includePatterns, excludePatterns []string) error {
	filter := Filter{
		Name:            fmt.Sprintf("%s_filter", attribute),
		Attribute:       attribute,
		IncludePatterns: make([]*regexp.Regexp, 0),
		ExcludePatterns: make([]*regexp.Regexp, 0),
	}

	for _, pattern := range includePatterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("failed to compile include pattern '%s': %w", pattern, err)
		}
		filter.IncludePatterns = append(filter.IncludePatterns, compiled)
	}

	for _, pattern := range excludePatterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("failed to compile exclude pattern '%s': %w", pattern, err)
		}
		filter.ExcludePatterns = append(filter.ExcludePatterns, compiled)
	}

	// Only add filter if it has patterns
	if len(filter.IncludePatterns) > 0 || len(filter.ExcludePatterns) > 0 {
		m.filters = append(m.filters, filter)
	}

	return nil
}

// ValidatePattern validates a regex pattern
func ValidatePattern(pattern string) error {
	_, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid regex pattern: %w", err)
	}
	return nil
}

// GetFilterCount returns the number of loaded filters
func (m *Manager) GetFilterCount() int {
	return len(m.filters)
}
