package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// ScriptConfig describes one traversal-policy script: an external program
// spawned as a child process that receives fetched pages and answers with
// extracted links and an archive/skip decision.
type ScriptConfig struct {
	// Command is the program to execute.
	Command string `yaml:"command"`

	// Args are the program's arguments.
	Args []string `yaml:"args,omitempty"`

	// Workers is the number of concurrent instances of this script.
	// Zero means one instance.
	Workers int `yaml:"workers,omitempty"`

	// URLPattern is a regular expression limiting which pages this script
	// sees. Empty matches every URL.
	URLPattern string `yaml:"url_pattern,omitempty"`

	// MIMETypes limits which content types this script sees, matched as
	// "type/subtype" with "type/*" wildcards. Empty matches every type.
	MIMETypes []string `yaml:"mime_types,omitempty"`
}

// Policy is the YAML crawl-policy file. Every field is optional; set fields
// override the corresponding Config values, unset fields leave flag/default
// values in place (hence the pointer types for scalars whose zero value is
// meaningful).
type Policy struct {
	MaxDepth        *int                    `yaml:"max_depth,omitempty"`
	Workers         *int                    `yaml:"workers,omitempty"`
	Timeout         Duration                `yaml:"timeout,omitempty"`
	HostDelay       *Duration               `yaml:"host_delay,omitempty"`
	HostConcurrency *int                    `yaml:"host_concurrency,omitempty"`
	MaxRetries      *int                    `yaml:"max_retries,omitempty"`
	MaxRedirects    *int                    `yaml:"max_redirects,omitempty"`
	MaxBodySize     *int64                  `yaml:"max_body_size,omitempty"`
	UserAgent       string                  `yaml:"user_agent,omitempty"`
	AllowedHosts    []string                `yaml:"allowed_hosts,omitempty"`
	ExcludePatterns []string                `yaml:"exclude_patterns,omitempty"`
	Headers         map[string]string       `yaml:"headers,omitempty"`
	Scripts         map[string]ScriptConfig `yaml:"scripts,omitempty"`
}

// LoadPolicy reads and parses a policy file. A missing file returns
// ErrPolicyNotFound so callers can distinguish "no policy" from a broken one.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided policy path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPolicyNotFound
		}
		return nil, err
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	// Validate script URL patterns up front so a broken regexp fails before
	// the crawl starts rather than on the first matching page.
	for name, sc := range p.Scripts {
		if sc.URLPattern != "" {
			if _, err := regexp.Compile(sc.URLPattern); err != nil {
				return nil, &ScriptConfigError{Name: name, Reason: fmt.Sprintf("invalid url_pattern: %v", err)}
			}
		}
	}

	return &p, nil
}

// Apply overlays the policy's set fields onto cfg.
func (p *Policy) Apply(cfg *Config) {
	if p.MaxDepth != nil {
		cfg.MaxDepth = *p.MaxDepth
	}
	if p.Workers != nil {
		cfg.Workers = *p.Workers
	}
	if !p.Timeout.IsZero() {
		cfg.Timeout = p.Timeout.Duration
	}
	if p.HostDelay != nil {
		cfg.HostDelay = p.HostDelay.Duration
	}
	if p.HostConcurrency != nil {
		cfg.HostConcurrency = *p.HostConcurrency
	}
	if p.MaxRetries != nil {
		cfg.MaxRetries = *p.MaxRetries
	}
	if p.MaxRedirects != nil {
		cfg.MaxRedirects = *p.MaxRedirects
	}
	if p.MaxBodySize != nil {
		cfg.MaxBodySize = *p.MaxBodySize
	}
	if p.UserAgent != "" {
		cfg.UserAgent = p.UserAgent
	}
	if len(p.AllowedHosts) > 0 {
		cfg.AllowedHosts = p.AllowedHosts
	}
	if len(p.ExcludePatterns) > 0 {
		cfg.ExcludePatterns = p.ExcludePatterns
	}
	if len(p.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(p.Headers))
		}
		for k, v := range p.Headers {
			cfg.Headers[k] = v
		}
	}
	if len(p.Scripts) > 0 {
		cfg.Scripts = p.Scripts
	}
}

// Duration wraps time.Duration to support human-readable YAML values such as
// "500ms" or "2m", as well as bare numbers meaning seconds.
type Duration struct {
	time.Duration
}

// IsZero reports whether the duration is zero.
func (d Duration) IsZero() bool { return d.Duration == 0 }

// MarshalYAML emits the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// UnmarshalYAML accepts either a duration string or numeric seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		d.Duration = parsed
		return nil
	case int:
		d.Duration = time.Duration(v) * time.Second
		return nil
	case float64:
		d.Duration = time.Duration(v * float64(time.Second))
		return nil
	default:
		return fmt.Errorf("unsupported duration type %T", raw)
	}
}
