package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/devricklin/feishu-request-relay/internal/biz/usecase"
)

// TagsConfig is the keyword→tag table loaded from YAML.
// Rules are evaluated in file order.
type TagsConfig struct {
	MaxTags int       `yaml:"max_tags"`
	Rules   []TagRule `yaml:"rules"`

	// Source is the file the table was loaded from, empty for defaults
	Source string `yaml:"-"`
}

// TagRule maps a set of keywords to one tag
type TagRule struct {
	Tag      string   `yaml:"tag"`
	Keywords []string `yaml:"keywords"`
}

// LoadTagsConfig loads the tag table from YAML file
func LoadTagsConfig(configPath string) (*TagsConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/tags.yaml",
			"/etc/feishu-request-relay/tags.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "tags.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data = b
			loadedPath = p
			break
		}
	}

	if data == nil {
		// Return default table if no file found
		return DefaultTagsConfig(), nil
	}

	var config TagsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return DefaultTagsConfig(), fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	config.Source = loadedPath

	// Fill in defaults for empty values
	defaults := DefaultTagsConfig()
	if config.MaxTags <= 0 {
		config.MaxTags = defaults.MaxTags
	}
	if len(config.Rules) == 0 {
		config.Rules = defaults.Rules
	}

	return &config, nil
}

// Table flattens the rules into the inferencer's ordered table
func (c *TagsConfig) Table() []usecase.KeywordTag {
	var table []usecase.KeywordTag
	for _, r := range c.Rules {
		for _, kw := range r.Keywords {
			table = append(table, usecase.KeywordTag{Keyword: kw, Tag: r.Tag})
		}
	}
	return table
}

// DefaultTagsConfig returns the built-in tag table
func DefaultTagsConfig() *TagsConfig {
	return &TagsConfig{
		MaxTags: 5,
		Rules: []TagRule{
			{Tag: "hoodie", Keywords: []string{"hoodie", "felpa", "sweatshirt"}},
			{Tag: "sneakers", Keywords: []string{"sneaker", "scarpe", "shoes", "trainers"}},
			{Tag: "jacket", Keywords: []string{"jacket", "giacca", "giubbotto", "coat", "piumino"}},
			{Tag: "jeans", Keywords: []string{"jeans", "denim"}},
			{Tag: "tshirt", Keywords: []string{"t-shirt", "tshirt", "maglietta"}},
			{Tag: "pants", Keywords: []string{"pants", "pantaloni", "trousers", "joggers"}},
			{Tag: "bag", Keywords: []string{"handbag", "backpack", "borsa", "zaino"}},
			{Tag: "hat", Keywords: []string{"beanie", "cappello", "baseball cap"}},
			{Tag: "watch", Keywords: []string{"watch", "orologio"}},
			{Tag: "jewelry", Keywords: []string{"necklace", "collana", "bracelet", "bracciale", "anello"}},
			{Tag: "dress", Keywords: []string{"dress", "vestito", "skirt", "gonna"}},
		},
	}
}
