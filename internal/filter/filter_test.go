package filter

import (
	"testing"

	"github.com/pvasseur/streamsync/internal/models"
)

func TestValidatePattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		wantErr bool
	}{
		{
			name:    "Valid simple pattern",
			pattern: "^Movies",
			wantErr: false,
		},
		{
			name:    "Valid complex pattern",
			pattern: "^(Movies|TV Shows).*HD$",
			wantErr: false,
		},
		{
			name:    "Invalid pattern - unclosed group",
			pattern: "^(Movies",
			wantErr: true,
		},
		{
			name:    "Invalid pattern - bad escape",
			pattern: "\\k",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePattern(tt.pattern)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePattern() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestManager_Matches(t *testing.T) {
	tests := []struct {
		name            string
		includePatterns []string
		excludePatterns []string
		attribute       string
		value           string
		want            bool
	}{
		{
			name:            "No filters - allow all",
			includePatterns: []string{},
			excludePatterns: []string{},
			attribute:       "group_title",
			value:           "Movies HD",
			want:            true,
		},
		{
			name:            "Include pattern matches",
			includePatterns: []string{"^Movies"},
			excludePatterns: []string{},
			attribute:       "group_title",
			value:           "Movies HD",
			want:            true,
		},
		{
			name:            "Include pattern doesn't match",
			includePatterns: []string{"^TV Shows"},
			excludePatterns: []string{},
			attribute:       "group_title",
			value:           "Movies HD",
			want:            false,
		},
		{
			name:            "Exclude pattern matches",
			includePatterns: []string{},
			excludePatterns: []string{"XXX"},
			attribute:       "group_title",
			value:           "Movies XXX",
			want:            false,
		},
		{
			name:            "Exclude pattern doesn't match",
			includePatterns: []string{},
			excludePatterns: []string{"XXX"},
			attribute:       "group_title",
			value:           "Movies HD",
			want:            true,
		},
		{
			name:            "Include and exclude - include matches, exclude doesn't",
			includePatterns: []string{"^Movies"},
			excludePatterns: []string{"XXX"},
			attribute:       "group_title",
			value:           "Movies HD",
			want:            true,
		},
		{
			name:            "Include and exclude - both match (exclude wins)",
			includePatterns: []string{"^Movies"},
			excludePatterns: []string{"XXX"},
			attribute:       "group_title",
			value:           "Movies XXX",
			want:            false,
		},
		{
			name:            "Multiple include patterns - one matches",
			includePatterns: []string{"^TV Shows", "^Movies"},
			excludePatterns: []string{},
			attribute:       "group_title",
			value:           "Movies HD",
			want:            true,
		},
		{
			name:            "Multiple exclude patterns - one matches",
			includePatterns: []string{},
			excludePatterns: []string{"XXX", "Adult"},
			attribute:       "group_title",
			value:           "Movies Adult",
			want:            false,
		},
		{
			name:            "Case sensitive matching",
			includePatterns: []string{"^movies"},
			excludePatterns: []string{},
			attribute:       "group_title",
			value:           "Movies HD",
			want:            false,
		},
		{
			name:            "Case insensitive pattern",
			includePatterns: []string{"(?i)^movies"},
			excludePatterns: []string{},
			attribute:       "group_title",
			value:           "Movies HD",
			want:            true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			if err := m.loadFilterSet(tt.attribute, tt.includePatterns, tt.excludePatterns); err != nil {
				t.Fatalf("Failed to load filter set: %v", err)
			}

			got := m.Matches(tt.attribute, tt.value)
			if got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManager_ShouldKeep(t *testing.T) {
	tests := []struct {
		name         string
		groupInclude []string
		groupExclude []string
		titleInclude []string
		titleExclude []string
		entry        models.CatalogEntry
		want         bool
	}{
		{
			name: "No filters - allow all",
			entry: models.CatalogEntry{
				GroupTitle: "Movies HD",
				RawTitle:   "The Matrix",
			},
			want: true,
		},
		{
			name:         "Group title filter matches",
			groupInclude: []string{"^Movies"},
			entry: models.CatalogEntry{
				GroupTitle: "Movies HD",
				RawTitle:   "The Matrix",
			},
			want: true,
		},
		{
			name:         "Group title filter doesn't match",
			groupInclude: []string{"^TV Shows"},
			entry: models.CatalogEntry{
				GroupTitle: "Movies HD",
				RawTitle:   "The Matrix",
			},
			want: false,
		},
		{
			name:         "Title filter matches",
			titleInclude: []string{"Matrix"},
			entry: models.CatalogEntry{
				GroupTitle: "Movies HD",
				RawTitle:   "The Matrix",
			},
			want: true,
		},
		{
			name:         "Group matches but title excluded",
			groupInclude: []string{"^Movies"},
			titleExclude: []string{"Trailer"},
			entry: models.CatalogEntry{
				GroupTitle: "Movies HD",
				RawTitle:   "The Matrix Trailer",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()

			if err := m.loadFilterSet("group_title", tt.groupInclude, tt.groupExclude); err != nil {
				t.Fatalf("Failed to load group_title filter: %v", err)
			}
			if err := m.loadFilterSet("title", tt.titleInclude, tt.titleExclude); err != nil {
				t.Fatalf("Failed to load title filter: %v", err)
			}

			got := m.ShouldKeep(&tt.entry)
			if got != tt.want {
				t.Errorf("ShouldKeep() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManager_Apply(t *testing.T) {
	m := NewManager()
	if err := m.loadFilterSet("group_title", nil, []string{"Adult"}); err != nil {
		t.Fatalf("Failed to load filter: %v", err)
	}

	entries := []models.CatalogEntry{
		{GroupTitle: "News", RawTitle: "CNN"},
		{GroupTitle: "Adult", RawTitle: "Excluded"},
		{GroupTitle: "Movies", RawTitle: "Heat"},
	}

	kept := m.Apply(entries)
	if len(kept) != 2 {
		t.Fatalf("Apply() kept %d entries, want 2", len(kept))
	}
	if kept[0].RawTitle != "CNN" || kept[1].RawTitle != "Heat" {
		t.Errorf("Apply() kept wrong entries: %+v", kept)
	}
}

func TestManager_GetFilterCount(t *testing.T) {
	m := NewManager()

	if m.GetFilterCount() != 0 {
		t.Errorf("Expected 0 filters, got %d", m.GetFilterCount())
	}

	m.loadFilterSet("group_title", []string{"^Movies"}, []string{})

	if m.GetFilterCount() != 1 {
		t.Errorf("Expected 1 filter, got %d", m.GetFilterCount())
	}

	m.loadFilterSet("title", []string{"Matrix"}, []string{})

	if m.GetFilterCount() != 2 {
		t.Errorf("Expected 2 filters, got %d", m.GetFilterCount())
	}
}

func BenchmarkMatches(b *testing.B) {
	m := NewManager()
	m.loadFilterSet("group_title", []string{"^Movies.*HD$"}, []string{"XXX", "Adult"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Matches("group_title", "Movies Action HD")
	}
}

func BenchmarkShouldKeep(b *testing.B) {
	m := NewManager()
	m.loadFilterSet("group_title", []string{"^Movies"}, []string{})
	m.loadFilterSet("title", []string{".*"}, []string{"Trailer"})

	entry := models.CatalogEntry{
		GroupTitle: "Movies HD",
		RawTitle:   "The Matrix (1999)",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.ShouldKeep(&entry)
	}
}
