// Package config loads and validates retriever configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dadassist/legal-retriever/internal/extractor"
	"github.com/dadassist/legal-retriever/internal/logging"
	"github.com/dadassist/legal-retriever/internal/relevance"
	"github.com/dadassist/legal-retriever/internal/retriever"
	"github.com/dadassist/legal-retriever/internal/rotation"
	"github.com/dadassist/legal-retriever/internal/telemetry"
)

// Output backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging   logging.Config   `mapstructure:"logging"`
	Retriever RetrieverConfig  `mapstructure:"retriever"`
	Extractor ExtractorConfig  `mapstructure:"extractor"`
	Relevance RelevanceConfig  `mapstructure:"relevance"`
	Quality   QualityConfig    `mapstructure:"quality"`
	Exclusion ExclusionConfig  `mapstructure:"exclusion"`
	Rotation  RotationConfig   `mapstructure:"rotation"`
	Output    OutputConfig     `mapstructure:"output"`
	DB        DBConfig         `mapstructure:"db"`
	PubSub    PubSubConfig     `mapstructure:"pubsub"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Tracing   telemetry.Config `mapstructure:"tracing"`
}

// RetrieverConfig governs the fallback chain.
type RetrieverConfig struct {
	UserAgents           []string      `mapstructure:"user_agents"`
	DirectTimeout        time.Duration `mapstructure:"direct_timeout"`
	ArchiveLookupTimeout time.Duration `mapstructure:"archive_lookup_timeout"`
	AgentPause           time.Duration `mapstructure:"agent_pause"`
	CacheMirrorPrefix    string        `mapstructure:"cache_mirror_prefix"`
	ArchiveLookupURL     string        `mapstructure:"archive_lookup_url"`
	MaxBodyBytes         int           `mapstructure:"max_body_bytes"`
}

// ExtractorConfig controls main-content selection.
type ExtractorConfig struct {
	Selectors        []string `mapstructure:"selectors"`
	MinSelectorChars int      `mapstructure:"min_selector_chars"`
}

// RelevanceConfig controls candidate filtering.
type RelevanceConfig struct {
	TrustedDomains []string `mapstructure:"trusted_domains"`
	DomainMode     string   `mapstructure:"domain_mode"`
	LooseSignals   []string `mapstructure:"loose_signals"`
	Keywords       []string `mapstructure:"keywords"`
	MinTitleLength int      `mapstructure:"min_title_length"`
	MaxCandidates  int      `mapstructure:"max_candidates"`
	Selection      string   `mapstructure:"selection"`
	Seed           uint64   `mapstructure:"seed"`
}

// QualityConfig sets the minimum size of an article worth handing off.
type QualityConfig struct {
	MinWords int `mapstructure:"min_words"`
	MinChars int `mapstructure:"min_chars"`
}

// ExclusionConfig locates the processed-URL file.
type ExclusionConfig struct {
	Path    string `mapstructure:"path"`
	MaxSize int    `mapstructure:"max_size"`
}

// RotationConfig lists the queries cycled by -next-query.
type RotationConfig struct {
	Queries   []string `mapstructure:"queries"`
	StatePath string   `mapstructure:"state_path"`
}

// OutputConfig selects where handoff files are written.
type OutputConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	Prefix    string `mapstructure:"prefix"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// DBConfig controls the optional article ledger.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for the articles-ready notification.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig points at an optional Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RETRIEVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("retriever.user_agents", retriever.DefaultUserAgents)
	v.SetDefault("retriever.direct_timeout", retriever.DefaultDirectTimeout)
	v.SetDefault("retriever.archive_lookup_timeout", retriever.DefaultArchiveLookupTimeout)
	v.SetDefault("retriever.agent_pause", retriever.DefaultAgentPause)
	v.SetDefault("retriever.cache_mirror_prefix", retriever.DefaultCacheMirrorPrefix)
	v.SetDefault("retriever.archive_lookup_url", retriever.DefaultArchiveLookupURL)
	v.SetDefault("retriever.max_body_bytes", 10<<20)
	v.SetDefault("extractor.selectors", extractor.DefaultSelectors)
	v.SetDefault("extractor.min_selector_chars", extractor.DefaultMinSelectorChars)
	v.SetDefault("relevance.trusted_domains", relevance.DefaultTrustedDomains)
	v.SetDefault("relevance.domain_mode", string(relevance.DomainStrict))
	v.SetDefault("relevance.loose_signals", relevance.DefaultLooseSignals)
	v.SetDefault("relevance.keywords", relevance.DefaultKeywords)
	v.SetDefault("relevance.min_title_length", relevance.DefaultMinTitleLength)
	v.SetDefault("relevance.max_candidates", 0)
	v.SetDefault("relevance.selection", string(relevance.SelectFirst))
	v.SetDefault("relevance.seed", 0)
	v.SetDefault("quality.min_words", 100)
	v.SetDefault("quality.min_chars", 500)
	v.SetDefault("exclusion.path", "downloads/scraped_urls.json")
	v.SetDefault("exclusion.max_size", 0)
	v.SetDefault("rotation.queries", rotation.DefaultQueries)
	v.SetDefault("rotation.state_path", "downloads/query_state.json")
	v.SetDefault("output.backend", BackendLocal)
	v.SetDefault("output.dir", "downloads")
	v.SetDefault("output.prefix", "runs")
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "extracted_articles")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "legal-retriever")
	v.SetDefault("tracing.exporter", telemetry.ExporterNone)
	v.SetDefault("tracing.project_id", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.RetrieverSettings().Validate(); err != nil {
		return err
	}
	if c.Retriever.MaxBodyBytes < 0 {
		return fmt.Errorf("retriever.max_body_bytes must be >= 0")
	}
	if c.Extractor.MinSelectorChars < 0 {
		return fmt.Errorf("extractor.min_selector_chars must be >= 0")
	}
	if _, err := relevance.New(c.RelevanceSettings()); err != nil {
		return fmt.Errorf("relevance: %w", err)
	}
	if c.Quality.MinWords < 0 || c.Quality.MinChars < 0 {
		return fmt.Errorf("quality thresholds must be >= 0")
	}
	if strings.TrimSpace(c.Exclusion.Path) == "" {
		return fmt.Errorf("exclusion.path is required")
	}
	if c.Exclusion.MaxSize < 0 {
		return fmt.Errorf("exclusion.max_size must be >= 0")
	}
	switch c.Output.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Output.Dir) == "" {
			return fmt.Errorf("output.dir is required for the local backend")
		}
	case BackendGCS:
		if strings.TrimSpace(c.Output.GCSBucket) == "" {
			return fmt.Errorf("output.gcs_bucket is required for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("output.backend must be one of local, gcs, memory; got %q", c.Output.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Metrics.PushgatewayURL != "" && c.Metrics.Job == "" {
		return fmt.Errorf("metrics.job is required when metrics.pushgateway_url is set")
	}
	if err := c.Tracing.Validate(); err != nil {
		return err
	}
	return nil
}

// RetrieverSettings converts the retriever section into retriever.Config.
func (c Config) RetrieverSettings() retriever.Config {
	return retriever.Config{
		UserAgents:           c.Retriever.UserAgents,
		DirectTimeout:        c.Retriever.DirectTimeout,
		ArchiveLookupTimeout: c.Retriever.ArchiveLookupTimeout,
		AgentPause:           c.Retriever.AgentPause,
		CacheMirrorPrefix:    c.Retriever.CacheMirrorPrefix,
		ArchiveLookupURL:     c.Retriever.ArchiveLookupURL,
	}
}

// ExtractorSettings converts the extractor section into extractor.Config.
func (c Config) ExtractorSettings() extractor.Config {
	return extractor.Config{
		Selectors:        c.Extractor.Selectors,
		MinSelectorChars: c.Extractor.MinSelectorChars,
	}
}

// RelevanceSettings converts the relevance section into relevance.Config.
func (c Config) RelevanceSettings() relevance.Config {
	return relevance.Config{
		TrustedDomains: c.Relevance.TrustedDomains,
		DomainMode:     relevance.DomainMode(c.Relevance.DomainMode),
		LooseSignals:   c.Relevance.LooseSignals,
		Keywords:       c.Relevance.Keywords,
		MinTitleLength: c.Relevance.MinTitleLength,
		MaxCandidates:  c.Relevance.MaxCandidates,
		Selection:      relevance.SelectionMode(c.Relevance.Selection),
		Seed:           c.Relevance.Seed,
	}
}
