package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brogergvhs/mangasrc/internal/browser"
	"github.com/brogergvhs/mangasrc/internal/providers/generic"
	"github.com/brogergvhs/mangasrc/internal/transport"
)

type BrowserConfig struct {
	Headless       bool          `yaml:"headless"`
	ExecPath       string        `yaml:"exec_path"`
	ProxyServer    string        `yaml:"proxy_server"`
	AcceptLanguage string        `yaml:"accept_language"`
	BlockImages    bool          `yaml:"block_images"`
	Blocklist      []string      `yaml:"blocklist"`
	NavigateBudget time.Duration `yaml:"navigate_budget"`
	SettleBudget   time.Duration `yaml:"settle_budget"`
	PollInterval   time.Duration `yaml:"poll_interval"`
}

type TransportConfig struct {
	Relays         []transport.Relay `yaml:"relays"`
	AttemptTimeout time.Duration     `yaml:"attempt_timeout"`
	RatePerSecond  float64           `yaml:"rate_per_second"`
	Burst          int               `yaml:"burst"`
}

type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	SourceTimeout time.Duration `yaml:"source_timeout"`
	ImageTimeout  time.Duration `yaml:"image_timeout"`
	Concurrency   int           `yaml:"concurrency"`
	// AllowPrivate lets /image reach hosts on the local network.
	AllowPrivate bool `yaml:"allow_private"`
}

type Config struct {
	Output         string `yaml:"output"`
	ImageWorkers   int    `yaml:"image_workers"`
	ChapterWorkers int    `yaml:"chapter_workers"`
	KeepFolders    bool   `yaml:"keep_folders"`
	Debug          bool   `yaml:"debug"`
	SkipBroken     bool   `yaml:"skip_broken"`

	DefaultSource string `yaml:"default_source"`
	DefaultRange  string `yaml:"default_range"`
	DefaultList   string `yaml:"default_list"`

	Cookie     string `yaml:"cookie"`
	CookieFile string `yaml:"cookie_file"`
	UserAgent  string `yaml:"user_agent"`

	Browser   BrowserConfig         `yaml:"browser"`
	Transport TransportConfig       `yaml:"transport"`
	Ceilings  generic.Ceilings      `yaml:"ceilings"`
	Server    ServerConfig          `yaml:"server"`
	Sources   []generic.SiteProfile `yaml:"sources"`
}

type Options struct {
	IgnoreConfig   bool
	Debug          bool
	Output         string
	ImageWorkers   int
	ChapterWorkers int
	KeepFolders    bool
	DefaultSource  string
	DefaultRange   string
	DefaultList    string
	Cookie         string
	CookieFile     string
	UserAgent      string
	SkipBroken     bool
	Headful        bool
	ExecPath       string
	Addr           string
}

func DefaultConfig() *Config {
	budget := browser.DefaultBudget()

	return &Config{
		Output:         ".",
		ImageWorkers:   5,
		ChapterWorkers: 2,
		Browser: BrowserConfig{
			Headless:       true,
			AcceptLanguage: "en-US,en;q=0.9",
			Blocklist:      browser.DefaultBlocklist(),
			NavigateBudget: budget.Navigate,
			SettleBudget:   budget.Settle,
			PollInterval:   budget.Poll,
		},
		Transport: TransportConfig{
			Relays:         transport.DefaultRelays(),
			AttemptTimeout: 15 * time.Second,
			RatePerSecond:  2,
			Burst:          1,
		},
		Ceilings: generic.DefaultCeilings(),
		Server: ServerConfig{
			Addr:          ":8080",
			SourceTimeout: 90 * time.Second,
			ImageTimeout:  30 * time.Second,
		},
		Sources: generic.DefaultProfiles(),
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	c.Sources = nil
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

func LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		return cfg, "(ignored config)", normalizeDefaults(cfg)
	}

	activePath, err := ActiveConfigPath()
	if err == ErrNoConfig || activePath == "" {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		return cfg, "(default config in memory)\nRun `mangasrc config init` to create an actual config\n", normalizeDefaults(cfg)
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeConfig(cfg, opts)
	if err := normalizeDefaults(cfg); err != nil {
		return nil, "", fmt.Errorf("config %s: %w", activePath, err)
	}

	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.ImageWorkers != 0 {
		c.ImageWorkers = o.ImageWorkers
	}
	if o.ChapterWorkers != 0 {
		c.ChapterWorkers = o.ChapterWorkers
	}
	if o.KeepFolders {
		c.KeepFolders = true
	}
	if o.Debug {
		c.Debug = true
	}
	if o.DefaultSource != "" {
		c.DefaultSource = o.DefaultSource
	}
	if o.DefaultRange != "" {
		c.DefaultRange = o.DefaultRange
	}
	if o.DefaultList != "" {
		c.DefaultList = o.DefaultList
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.SkipBroken {
		c.SkipBroken = true
	}
	if o.Headful {
		c.Browser.Headless = false
	}
	if o.ExecPath != "" {
		c.Browser.ExecPath = o.ExecPath
	}
	if o.Addr != "" {
		c.Server.Addr = o.Addr
	}
}

// normalizeDefaults fills zero values and validates the source profiles.
func normalizeDefaults(c *Config) error {
	if c.Output == "" {
		c.Output = "."
	}
	if c.ImageWorkers == 0 {
		c.ImageWorkers = 5
	}
	if c.ChapterWorkers == 0 {
		c.ChapterWorkers = 2
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if len(c.Sources) == 0 {
		c.Sources = generic.DefaultProfiles()
	}

	seen := map[string]bool{}
	for _, p := range c.Sources {
		if err := p.Validate(); err != nil {
			return err
		}
		name := strings.ToLower(p.Name)
		if seen[name] {
			return fmt.Errorf("source %q defined twice", p.Name)
		}
		seen[name] = true
	}

	return nil
}

// Budget converts the browser timings into a navigation budget.
func (c *Config) Budget() browser.Budget {
	return browser.Budget{
		Navigate: c.Browser.NavigateBudget,
		Settle:   c.Browser.SettleBudget,
		Poll:     c.Browser.PollInterval,
	}
}

// Source returns the profile named name.
func (c *Config) Source(name string) (generic.SiteProfile, bool) {
	for _, p := range c.Sources {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}

	return generic.SiteProfile{}, false
}

func (c *Config) Print() {
	if c.Output != "" {
		fmt.Printf(" -output: %s\n", c.Output)
	}
	fmt.Printf(" -image_workers: %d\n", c.ImageWorkers)
	fmt.Printf(" -chapter_workers: %d\n", c.ChapterWorkers)
	if c.KeepFolders {
		fmt.Printf(" -keep_folders: %t\n", c.KeepFolders)
	}
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
	if c.DefaultSource != "" {
		fmt.Printf(" -source: %s\n", c.DefaultSource)
	}
	if c.DefaultRange != "" {
		fmt.Printf(" -range: %s\n", c.DefaultRange)
	}
	if c.DefaultList != "" {
		fmt.Printf(" -list: %s\n", c.DefaultList)
	}
	if c.CookieFile != "" {
		fmt.Printf(" -cookie_file: %s\n", c.CookieFile)
	}
	if c.SkipBroken {
		fmt.Printf(" -skip_broken: %t\n", c.SkipBroken)
	}

	fmt.Printf(" -browser: headless=%t", c.Browser.Headless)
	if c.Browser.ExecPath != "" {
		fmt.Printf(" exec=%s", c.Browser.ExecPath)
	}
	fmt.Printf(" navigate=%s settle=%s\n", c.Browser.NavigateBudget, c.Browser.SettleBudget)

	relays := make([]string, 0, len(c.Transport.Relays))
	for _, r := range c.Transport.Relays {
		relays = append(relays, r.Name)
	}
	fmt.Printf(" -relays: %s\n", strings.Join(relays, ", "))
	fmt.Printf(" -server: %s\n", c.Server.Addr)

	names := make([]string, 0, len(c.Sources))
	for _, p := range c.Sources {
		names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.Transport))
	}
	fmt.Printf(" -sources: %s\n", strings.Join(names, ", "))
}
