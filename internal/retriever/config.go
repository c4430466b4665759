package retriever

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Default values observed in production runs.
const (
	DefaultDirectTimeout        = 30 * time.Second
	DefaultArchiveLookupTimeout = 10 * time.Second
	DefaultAgentPause           = time.Second
	DefaultCacheMirrorPrefix    = "https://webcache.googleusercontent.com/search?q=cache:"
	DefaultArchiveLookupURL     = "https://archive.org/wayback/available"
)

// DefaultUserAgents holds the primary agent first, then the alternates.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
}

// Config controls the strategy chain.
type Config struct {
	// UserAgents[0] is the default agent; the rest are tried by the alternate-agent strategy.
	UserAgents           []string
	DirectTimeout        time.Duration
	ArchiveLookupTimeout time.Duration
	AgentPause           time.Duration
	CacheMirrorPrefix    string
	ArchiveLookupURL     string
}

// withDefaults fills zero values. A negative AgentPause disables the pause.
func (c Config) withDefaults() Config {
	if len(c.UserAgents) == 0 {
		c.UserAgents = DefaultUserAgents
	}
	if c.DirectTimeout <= 0 {
		c.DirectTimeout = DefaultDirectTimeout
	}
	if c.ArchiveLookupTimeout <= 0 {
		c.ArchiveLookupTimeout = DefaultArchiveLookupTimeout
	}
	switch {
	case c.AgentPause == 0:
		c.AgentPause = DefaultAgentPause
	case c.AgentPause < 0:
		c.AgentPause = 0
	}
	if strings.TrimSpace(c.CacheMirrorPrefix) == "" {
		c.CacheMirrorPrefix = DefaultCacheMirrorPrefix
	}
	if strings.TrimSpace(c.ArchiveLookupURL) == "" {
		c.ArchiveLookupURL = DefaultArchiveLookupURL
	}
	return c
}

// Validate rejects configurations the chain cannot run with.
func (c Config) Validate() error {
	c = c.withDefaults()
	for i, ua := range c.UserAgents {
		if strings.TrimSpace(ua) == "" {
			return fmt.Errorf("retriever.user_agents[%d] must not be empty", i)
		}
	}
	if _, err := url.ParseRequestURI(c.ArchiveLookupURL); err != nil {
		return errors.New("retriever.archive_lookup_url must be an absolute URL")
	}
	if !strings.HasPrefix(c.CacheMirrorPrefix, "http://") && !strings.HasPrefix(c.CacheMirrorPrefix, "https://") {
		return errors.New("retriever.cache_mirror_prefix must start with http:// or https://")
	}
	return nil
}
