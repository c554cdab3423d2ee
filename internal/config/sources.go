package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"proxyfinder/internal/domain"
)

//go:embed default_sources.json
var defaultSources []byte

var ErrNoSources = errors.New("config: source list is empty")

// LoadSources reads the source descriptor list from path, or the embedded list when path
// is empty. Any unreadable file or malformed entry rejects the whole list.
func LoadSources(path string) ([]domain.Source, error) {
	data := defaultSources
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read sources: %w", err)
		}
		data = raw
	}

	return ParseSources(data)
}

func ParseSources(data []byte) ([]domain.Source, error) {
	var sources []domain.Source
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("config: parse sources: %w", err)
	}
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	for i := range sources {
		if err := normalizeSource(&sources[i]); err != nil {
			return nil, fmt.Errorf("config: source %d: %w", i, err)
		}
	}

	return sources, nil
}

func normalizeSource(source *domain.Source) error {
	source.URL = strings.TrimSpace(source.URL)
	u, err := url.ParseRequestURI(source.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid url %q", source.URL)
	}

	source.ParserType = strings.ToLower(strings.TrimSpace(source.ParserType))
	switch source.ParserType {
	case "":
		source.ParserType = domain.ParserTable
	case domain.ParserTable, domain.ParserPlain:
	default:
		return fmt.Errorf("unknown parser_type %q for %s", source.ParserType, source.URL)
	}

	return nil
}
