package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourcesConfig holds per-adapter query settings. It can be overridden by a
// YAML file named in SOURCES_CONFIG; API keys come from the environment.
type SourcesConfig struct {
	Eventbrite  EventbriteConfig  `yaml:"eventbrite"`
	SerpAPI     SerpAPIConfig     `yaml:"serpapi"`
	SDTechScene SDTechSceneConfig `yaml:"sdtechscene"`
}

type EventbriteConfig struct {
	Disabled bool   `yaml:"disabled"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Query    string `yaml:"query"`
	Address  string `yaml:"address"`
	Within   string `yaml:"within"`
}

type SerpAPIConfig struct {
	Disabled bool     `yaml:"disabled"`
	APIKey   string   `yaml:"api_key"`
	BaseURL  string   `yaml:"base_url"`
	Queries  []string `yaml:"queries"`
	Location string   `yaml:"location"`
	Chips    string   `yaml:"chips"` // htichips, e.g. date:month
}

type SDTechSceneConfig struct {
	Disabled  bool   `yaml:"disabled"`
	BaseURL   string `yaml:"base_url"`
	MaxPages  int    `yaml:"max_pages"`
	UserAgent string `yaml:"user_agent"`
}

// DefaultSources returns the San Diego settings the site ships with.
func DefaultSources() SourcesConfig {
	return SourcesConfig{
		Eventbrite: EventbriteConfig{
			BaseURL: "https://www.eventbriteapi.com/v3/events/search/",
			Query:   "tech AI machine learning startup",
			Address: "San Diego, CA",
			Within:  "25mi",
		},
		SerpAPI: SerpAPIConfig{
			BaseURL: "https://serpapi.com/search.json",
			Queries: []string{
				"AI machine learning tech events San Diego",
				"startup founder tech events San Diego",
				"developer software tech events San Diego",
			},
			Location: "San Diego, California, United States",
			Chips:    "date:month",
		},
		SDTechScene: SDTechSceneConfig{
			BaseURL:   "https://sdtechscene.org/events/",
			MaxPages:  5,
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
	}
}

// LoadSources reads a YAML sources file on top of DefaultSources; keys the
// file omits keep their defaults.
func LoadSources(path string) (SourcesConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return SourcesConfig{}, err
	}

	sources := DefaultSources()
	if err := yaml.Unmarshal(b, &sources); err != nil {
		return SourcesConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if sources.SDTechScene.MaxPages <= 0 {
		return SourcesConfig{}, fmt.Errorf("sdtechscene.max_pages must be positive")
	}
	if !sources.SerpAPI.Disabled && len(sources.SerpAPI.Queries) == 0 {
		return SourcesConfig{}, fmt.Errorf("serpapi.queries must not be empty")
	}
	return sources, nil
}
