// Package config defines arbor's configuration schema: storage mode,
// indexer field options, analyzer normalization knobs, and search
// behavior. It is a single YAML-tagged struct with a NewConfig() default
// constructor and a Load(dir) entry point that layers a project file over
// hardcoded defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for one arbor index.
type Config struct {
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Indexer  IndexerConfig  `yaml:"indexer" json:"indexer"`
	Analyzer AnalyzerConfig `yaml:"analyzer" json:"analyzer"`
	Search   SearchConfig   `yaml:"search" json:"search"`
}

// StorageConfig selects the on-disk (or in-memory) storage mode.
type StorageConfig struct {
	// Path is the SQLite database file path; ":memory:" for an ephemeral,
	// process-local index.
	Path string `yaml:"path" json:"path"`
	// ExternalContent selects the FTS5 schema mode for newly created
	// indices: external-content tables avoid duplicating stored field text
	// inside the FTS index at the cost of a join on lookup.
	ExternalContent bool `yaml:"external_content" json:"external_content"`
}

// FieldConfig configures per-field indexer behavior.
type FieldConfig struct {
	Boost  float64 `yaml:"boost" json:"boost"`
	Store  bool    `yaml:"store" json:"store"`
	Index  bool    `yaml:"index" json:"index"`
}

// FTSConfig configures the FTS5 virtual table shape.
type FTSConfig struct {
	// MultiColumn gives each field named in IndexerConfig.Fields its own
	// FTS5 column; when false, or when Fields is empty, all fields are
	// concatenated into a single column. Ranking calls bm25() without
	// per-column weights, so FieldConfig.Boost does not affect scores.
	MultiColumn bool `yaml:"multi_column" json:"multi_column"`
	// Prefix declares which prefix-index lengths FTS5 should materialize,
	// a subset of {2,3,4}.
	Prefix []int `yaml:"prefix" json:"prefix"`
}

// IndexerConfig configures chunking, batching, and field-level behavior.
type IndexerConfig struct {
	ChunkSize    int                    `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int                    `yaml:"chunk_overlap" json:"chunk_overlap"`
	AutoFlush    bool                   `yaml:"auto_flush" json:"auto_flush"`
	BatchSize    int                    `yaml:"batch_size" json:"batch_size"`
	Fields       map[string]FieldConfig `yaml:"fields" json:"fields"`
	FTS          FTSConfig              `yaml:"fts" json:"fts"`
}

// AnalyzerConfig configures text normalization.
type AnalyzerConfig struct {
	MinWordLength      int      `yaml:"min_word_length" json:"min_word_length"`
	MaxWordLength      int      `yaml:"max_word_length" json:"max_word_length"`
	RemoveNumbers      bool     `yaml:"remove_numbers" json:"remove_numbers"`
	Lowercase          bool     `yaml:"lowercase" json:"lowercase"`
	StripHTML          bool     `yaml:"strip_html" json:"strip_html"`
	StripPunctuation   bool     `yaml:"strip_punctuation" json:"strip_punctuation"`
	ExpandContractions bool     `yaml:"expand_contractions" json:"expand_contractions"`
	CustomStopWords    []string `yaml:"custom_stop_words" json:"custom_stop_words"`
	DisableStopWords   bool     `yaml:"disable_stop_words" json:"disable_stop_words"`
}

// SearchConfig configures query-time behavior: fuzzy matching, caching,
// highlighting, facets, synonyms, and scoring.
type SearchConfig struct {
	EnableFuzzy          bool    `yaml:"enable_fuzzy" json:"enable_fuzzy"`
	FuzzyAlgorithm       string  `yaml:"fuzzy_algorithm" json:"fuzzy_algorithm"`
	Fuzziness            int     `yaml:"fuzziness" json:"fuzziness"`
	FuzzyLastTokenOnly   bool    `yaml:"fuzzy_last_token_only" json:"fuzzy_last_token_only"`
	PrefixLastToken      bool    `yaml:"prefix_last_token" json:"prefix_last_token"`
	FuzzyScorePenalty    float64 `yaml:"fuzzy_score_penalty" json:"fuzzy_score_penalty"`
	MaxFuzzyVariations   int     `yaml:"max_fuzzy_variations" json:"max_fuzzy_variations"`
	FuzzyTotalMaxVariations int  `yaml:"fuzzy_total_max_variations" json:"fuzzy_total_max_variations"`
	MinTermFrequency     int     `yaml:"min_term_frequency" json:"min_term_frequency"`
	MaxIndexedTerms      int     `yaml:"max_indexed_terms" json:"max_indexed_terms"`
	IndexedTermsCacheTTL string  `yaml:"indexed_terms_cache_ttl" json:"indexed_terms_cache_ttl"`
	CacheTTL             string  `yaml:"cache_ttl" json:"cache_ttl"`
	MinScore             float64 `yaml:"min_score" json:"min_score"`
	HighlightTag         string  `yaml:"highlight_tag" json:"highlight_tag"`
	HighlightTagClose    string  `yaml:"highlight_tag_close" json:"highlight_tag_close"`
	SnippetLength        int     `yaml:"snippet_length" json:"snippet_length"`
	MaxResults           int     `yaml:"max_results" json:"max_results"`
	EnableSynonyms       bool    `yaml:"enable_synonyms" json:"enable_synonyms"`
	Synonyms             map[string][]string `yaml:"synonyms" json:"synonyms"`
	SynonymsMaxExpansions int    `yaml:"synonyms_max_expansions" json:"synonyms_max_expansions"`
	EnableSuggestions    bool    `yaml:"enable_suggestions" json:"enable_suggestions"`
	ResultFields         []string `yaml:"result_fields" json:"result_fields"`
	FacetMinCount        int     `yaml:"facet_min_count" json:"facet_min_count"`
	JaroWinklerThreshold float64 `yaml:"jaro_winkler_threshold" json:"jaro_winkler_threshold"`
	JaroWinklerPrefixScale float64 `yaml:"jaro_winkler_prefix_scale" json:"jaro_winkler_prefix_scale"`
	TrigramThreshold     float64 `yaml:"trigram_threshold" json:"trigram_threshold"`
	TrigramSize          int     `yaml:"trigram_size" json:"trigram_size"`
	LevenshteinThreshold int     `yaml:"levenshtein_threshold" json:"levenshtein_threshold"`
	FieldWeights         map[string]float64 `yaml:"field_weights" json:"field_weights"`
	PrimaryFields        []string `yaml:"primary_fields" json:"primary_fields"`
	TwoPassSearch        bool    `yaml:"two_pass_search" json:"two_pass_search"`
}

// NewConfig returns a Config populated with spec-stated defaults.
func NewConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:            "arbor.db",
			ExternalContent: true,
		},
		Indexer: IndexerConfig{
			ChunkSize:    1000,
			ChunkOverlap: 100,
			AutoFlush:    true,
			BatchSize:    100,
			Fields:       map[string]FieldConfig{},
			FTS: FTSConfig{
				MultiColumn: true,
				Prefix:      []int{2, 3},
			},
		},
		Analyzer: AnalyzerConfig{
			MinWordLength:      2,
			MaxWordLength:      50,
			RemoveNumbers:      false,
			Lowercase:          true,
			StripHTML:          true,
			StripPunctuation:   true,
			ExpandContractions: true,
			DisableStopWords:   false,
		},
		Search: SearchConfig{
			EnableFuzzy:             true,
			FuzzyAlgorithm:          "trigram",
			Fuzziness:               2,
			FuzzyLastTokenOnly:      true,
			PrefixLastToken:         true,
			FuzzyScorePenalty:       0.8,
			MaxFuzzyVariations:      5,
			FuzzyTotalMaxVariations: 20,
			MinTermFrequency:        1,
			MaxIndexedTerms:         50000,
			IndexedTermsCacheTTL:    "5m",
			CacheTTL:                "60s",
			MinScore:                0,
			HighlightTag:            "<mark>",
			HighlightTagClose:       "</mark>",
			SnippetLength:           200,
			MaxResults:              100,
			EnableSynonyms:          false,
			Synonyms:                map[string][]string{},
			SynonymsMaxExpansions:   3,
			EnableSuggestions:       true,
			FacetMinCount:           1,
			JaroWinklerThreshold:    0.92,
			JaroWinklerPrefixScale:  0.1,
			TrigramThreshold:        0.4,
			TrigramSize:             3,
			LevenshteinThreshold:    2,
			FieldWeights:            map[string]float64{},
			TwoPassSearch:           false,
		},
	}
}

// Load reads a YAML configuration file from dir (".arbor.yaml" then
// ".arbor.yml"), merging its values over NewConfig()'s defaults (only the
// options mergeWith overlays are taken from the file). A missing file is
// not an error — the defaults apply.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	for _, name := range []string{".arbor.yaml", ".arbor.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
		break
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays the options handled below from other onto c, each
// only when set to a non-zero value, so a partial config file leaves the
// other defaults alone. Boolean options other than
// Storage.ExternalContent, and search options not named below (for example
// MaxFuzzyVariations, FuzzyScorePenalty and FacetMinCount), keep their
// defaults whatever other holds; ExternalContent can be switched on by
// other but not off.
func (c *Config) mergeWith(other *Config) {
	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}
	c.Storage.ExternalContent = other.Storage.ExternalContent || c.Storage.ExternalContent

	if other.Indexer.ChunkSize != 0 {
		c.Indexer.ChunkSize = other.Indexer.ChunkSize
	}
	if other.Indexer.ChunkOverlap != 0 {
		c.Indexer.ChunkOverlap = other.Indexer.ChunkOverlap
	}
	if other.Indexer.BatchSize != 0 {
		c.Indexer.BatchSize = other.Indexer.BatchSize
	}
	if len(other.Indexer.Fields) > 0 {
		for k, v := range other.Indexer.Fields {
			c.Indexer.Fields[k] = v
		}
	}
	if len(other.Indexer.FTS.Prefix) > 0 {
		c.Indexer.FTS.Prefix = other.Indexer.FTS.Prefix
	}

	if other.Analyzer.MinWordLength != 0 {
		c.Analyzer.MinWordLength = other.Analyzer.MinWordLength
	}
	if other.Analyzer.MaxWordLength != 0 {
		c.Analyzer.MaxWordLength = other.Analyzer.MaxWordLength
	}
	if len(other.Analyzer.CustomStopWords) > 0 {
		c.Analyzer.CustomStopWords = other.Analyzer.CustomStopWords
	}

	if other.Search.FuzzyAlgorithm != "" {
		c.Search.FuzzyAlgorithm = other.Search.FuzzyAlgorithm
	}
	if other.Search.Fuzziness != 0 {
		c.Search.Fuzziness = other.Search.Fuzziness
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.MinScore != 0 {
		c.Search.MinScore = other.Search.MinScore
	}
	if other.Search.CacheTTL != "" {
		c.Search.CacheTTL = other.Search.CacheTTL
	}
	if other.Search.HighlightTag != "" {
		c.Search.HighlightTag = other.Search.HighlightTag
	}
	if other.Search.HighlightTagClose != "" {
		c.Search.HighlightTagClose = other.Search.HighlightTagClose
	}
	if other.Search.SnippetLength != 0 {
		c.Search.SnippetLength = other.Search.SnippetLength
	}
	if len(other.Search.Synonyms) > 0 {
		for k, v := range other.Search.Synonyms {
			c.Search.Synonyms[k] = v
		}
	}
	if len(other.Search.ResultFields) > 0 {
		c.Search.ResultFields = other.Search.ResultFields
	}
	if len(other.Search.PrimaryFields) > 0 {
		c.Search.PrimaryFields = other.Search.PrimaryFields
	}
	if len(other.Search.FieldWeights) > 0 {
		for k, v := range other.Search.FieldWeights {
			c.Search.FieldWeights[k] = v
		}
	}
	if other.Search.JaroWinklerThreshold != 0 {
		c.Search.JaroWinklerThreshold = other.Search.JaroWinklerThreshold
	}
	if other.Search.TrigramThreshold != 0 {
		c.Search.TrigramThreshold = other.Search.TrigramThreshold
	}
	if other.Search.LevenshteinThreshold != 0 {
		c.Search.LevenshteinThreshold = other.Search.LevenshteinThreshold
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("config: storage.path must not be empty")
	}
	if c.Indexer.ChunkSize <= 0 {
		return fmt.Errorf("config: indexer.chunk_size must be positive")
	}
	if c.Indexer.ChunkOverlap < 0 || c.Indexer.ChunkOverlap >= c.Indexer.ChunkSize {
		return fmt.Errorf("config: indexer.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Analyzer.MinWordLength <= 0 || c.Analyzer.MaxWordLength < c.Analyzer.MinWordLength {
		return fmt.Errorf("config: analyzer min/max word length misconfigured")
	}
	switch c.Search.FuzzyAlgorithm {
	case "basic", "jaro_winkler", "trigram", "levenshtein":
	default:
		return fmt.Errorf("config: unsupported search.fuzzy_algorithm %q", c.Search.FuzzyAlgorithm)
	}
	if c.Search.MinScore < 0 {
		return fmt.Errorf("config: search.min_score must be non-negative")
	}
	for _, n := range c.Indexer.FTS.Prefix {
		if n < 2 || n > 4 {
			return fmt.Errorf("config: indexer.fts.prefix values must be in {2,3,4}, got %d", n)
		}
	}
	return nil
}
