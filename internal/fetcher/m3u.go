package fetcher

import (
	"bufio"
	"context"
	"io"
	"regexp"
	"strings"

	apperrors "github.com/pvasseur/streamsync/internal/errors"
	"github.com/pvasseur/streamsync/internal/httpx"
	"github.com/pvasseur/streamsync/internal/logger"
	"github.com/pvasseur/streamsync/internal/models"
	"github.com/pvasseur/streamsync/internal/normalizer"
)

// maxLineBytes bounds a single playlist line; some panels emit very long
// directive lines with dozens of attributes.
const maxLineBytes = 1024 * 1024

// M3UFetcher downloads and parses an M3U playlist. Parsing is line-by-line
// over the response stream, so playlist size does not drive memory use.
type M3UFetcher struct {
	client     *httpx.Client
	normalizer *normalizer.Normalizer
	logger     *logger.Logger

	quotedAttrPatterns   map[string]*regexp.Regexp
	unquotedAttrPatterns map[string]*regexp.Regexp
}

// m3uAttrKeys are the EXTINF attributes the pipeline consumes
var m3uAttrKeys = []string{"group-title", "tvg-logo", "tvg-id"}

// NewM3U creates an M3U playlist fetcher
func NewM3U(client *httpx.Client, log *logger.Logger) *M3UFetcher {
	quoted := make(map[string]*regexp.Regexp, len(m3uAttrKeys))
	unquoted := make(map[string]*regexp.Regexp, len(m3uAttrKeys))
	for _, key := range m3uAttrKeys {
		quoted[key] = regexp.MustCompile(key + `="([^"]*)"`)
		unquoted[key] = regexp.MustCompile(key + `=([^ ,"]+)`)
	}

	return &M3UFetcher{
		client:               client,
		normalizer:           normalizer.New(),
		logger:               log,
		quotedAttrPatterns:   quoted,
		unquotedAttrPatterns: unquoted,
	}
}

// Kind implements Fetcher
func (f *M3UFetcher) Kind() models.SourceKind {
	return models.SourceKindM3U
}

// Fetch downloads the playlist and parses it into catalog entries
func (f *M3UFetcher) Fetch(ctx context.Context, source *models.PlaylistSource) ([]models.CatalogEntry, error) {
	body, err := f.client.Stream(ctx, source.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	entries, err := f.Parse(body, source)
	if err != nil {
		return nil, err
	}

	f.logger.WithFields(map[string]interface{}{
		"source":  source.Name,
		"entries": len(entries),
	}).Info("parsed M3U playlist")

	return entries, nil
}

// directive holds the state of a pending #EXTINF line awaiting its URL line
type directive struct {
	title      string
	groupTitle string
	logoURL    string
	tvgID      string
}

// Parse reads an M3U playlist line by line. A directive with no following URL
// line is discarded; any comment line between a directive and its URL resets
// the dangling state.
func (f *M3UFetcher) Parse(r io.Reader, source *models.PlaylistSource) ([]models.CatalogEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var entries []models.CatalogEntry
	var pending *directive

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			pending = f.parseDirective(line)

		case strings.HasPrefix(line, "#"):
			// Comment or unrecognized directive; a dangling #EXTINF is dropped
			pending = nil

		default:
			if pending == nil {
				continue
			}
			entries = append(entries, f.buildM3UEntry(source, pending, line))
			pending = nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMalformedData, "failed to read playlist stream")
	}

	return entries, nil
}

// parseDirective extracts attributes and the display title from an #EXTINF line
func (f *M3UFetcher) parseDirective(line string) *directive {
	d := &directive{
		groupTitle: f.attrValue(line, "group-title"),
		logoURL:    f.attrValue(line, "tvg-logo"),
		tvgID:      f.attrValue(line, "tvg-id"),
		title:      displayTitle(line),
	}
	return d
}

// attrValue extracts one key=value attribute, trying the quoted form first and
// then the unquoted form terminated by space or comma.
func (f *M3UFetcher) attrValue(line, key string) string {
	if m := f.quotedAttrPatterns[key].FindStringSubmatch(line); m != nil {
		return m[1]
	}
	if m := f.unquotedAttrPatterns[key].FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return ""
}

// displayTitle returns the comma-separated suffix of the directive line. The
// comma that ends the attribute section is the first one outside quotes.
func displayTitle(line string) string {
	inQuotes := false
	for i := len("#EXTINF:"); i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				return strings.TrimSpace(line[i+1:])
			}
		}
	}
	return ""
}

func (f *M3UFetcher) buildM3UEntry(source *models.PlaylistSource, d *directive, streamURL string) models.CatalogEntry {
	contentType := inferContentType(streamURL)

	info := f.normalizer.Normalize(d.title)
	return buildEntry(source, streamURL, d.title, d.groupTitle, contentType, d.logoURL, info)
}
