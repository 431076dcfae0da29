// Package seed loads source registries from YAML, TOML or JSON files.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/regwatch/internal/model"
)

// Entry is one source as written in a seed file
type Entry struct {
	Name         string `yaml:"name" toml:"name" json:"name"`
	URL          string `yaml:"url" toml:"url" json:"url"`
	SourceType   string `yaml:"source_type" toml:"source_type" json:"source_type"`
	Jurisdiction string `yaml:"jurisdiction" toml:"jurisdiction" json:"jurisdiction"`
	Category     string `yaml:"category" toml:"category" json:"category"`
	CSSSelector  string `yaml:"css_selector" toml:"css_selector" json:"css_selector"`
	Active       *bool  `yaml:"active" toml:"active" json:"active"` // Defaults to true
}

// File is the seed document layout
type File struct {
	Sources []Entry `yaml:"sources" toml:"sources" json:"sources"`
}

// Registry is the part of the store seeding writes through
type Registry interface {
	SourceByURL(ctx context.Context, url string) (*model.Source, error)
	InsertSource(ctx context.Context, src model.Source) (model.Source, error)
}

// Result summarizes a seeding run
type Result struct {
	Inserted int
	Skipped  int
}

// Load reads a seed file, picking the format from its extension
func Load(path string) ([]model.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	sources, err := Parse(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sources, nil
}

// Parse decodes seed data in the given format (yaml, yml, toml or json)
func Parse(data []byte, format string) ([]model.Source, error) {
	var file File
	var err error
	switch format {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &file)
	case "toml":
		err = toml.Unmarshal(data, &file)
	case "json":
		err = json.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("unsupported seed format %q (want yaml, toml or json)", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}

	sources := make([]model.Source, 0, len(file.Sources))
	for i, e := range file.Sources {
		src, err := e.toSource()
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i+1, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (e Entry) toSource() (model.Source, error) {
	rawURL := strings.TrimSpace(e.URL)
	if rawURL == "" {
		return model.Source{}, fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.Source{}, fmt.Errorf("invalid url %q", rawURL)
	}

	docType, err := model.ParseDocType(e.SourceType)
	if err != nil {
		return model.Source{}, err
	}

	active := true
	if e.Active != nil {
		active = *e.Active
	}

	return model.Source{
		Name:         strings.TrimSpace(e.Name),
		URL:          rawURL,
		DocType:      docType,
		Selector:     strings.TrimSpace(e.CSSSelector),
		Jurisdiction: strings.TrimSpace(e.Jurisdiction),
		Category:     strings.TrimSpace(e.Category),
		Active:       active,
	}, nil
}

// Apply inserts every source whose URL is not yet registered
func Apply(ctx context.Context, reg Registry, sources []model.Source) (Result, error) {
	var res Result
	for _, src := range sources {
		existing, err := reg.SourceByURL(ctx, src.URL)
		if err != nil {
			return res, fmt.Errorf("look up %s: %w", src.URL, err)
		}
		if existing != nil {
			log.Debug().Str("url", src.URL).Msg("source already registered")
			res.Skipped++
			continue
		}

		inserted, err := reg.InsertSource(ctx, src)
		if err != nil {
			return res, fmt.Errorf("insert %s: %w", src.URL, err)
		}
		log.Info().Str("source", inserted.Label()).Str("id", inserted.ID).Msg("source added")
		res.Inserted++
	}
	return res, nil
}
