package config

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/DomeLiquid/federation/core"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const envPrefix = "federation"

type Config struct {
	Chain               string `yaml:"chain"`
	ContractName        string `yaml:"contractName"        split_words:"true"`
	ContractDescription string `yaml:"contractDescription" split_words:"true"`
	ContractImageUrl    string `yaml:"contractImageUrl"    split_words:"true"`
	ContractExternalUrl string `yaml:"contractExternalUrl" split_words:"true"`

	TransactionPollInterval time.Duration `yaml:"transactionPollInterval" split_words:"true"`
	MaxTransactionPollCount int           `yaml:"maxTransactionPollCount" split_words:"true"`
	DelayAfterConfirmation  time.Duration `yaml:"delayAfterConfirmation"  split_words:"true"`
	ContractPollInterval    time.Duration `yaml:"contractPollInterval"    split_words:"true"`
	ContractConfirmTimeout  time.Duration `yaml:"contractConfirmTimeout"  split_words:"true"`

	ChainApiUrl       string `yaml:"chainApiUrl"       split_words:"true"`
	ChainAuthUrl      string `yaml:"chainAuthUrl"      split_words:"true"`
	ChainClientId     string `yaml:"chainClientId"     split_words:"true"`
	ChainClientSecret string `yaml:"chainClientSecret" split_words:"true"`
	InventoryUrl      string `yaml:"inventoryUrl"      split_words:"true"`
	InventoryToken    string `yaml:"inventoryToken"    split_words:"true"`
	// player wallet pins are derived from it
	RealmSecret string `yaml:"realmSecret" envconfig:"SECRET"`

	DatabasePath       string `yaml:"databasePath"       split_words:"true"`
	ContentCatalogPath string `yaml:"contentCatalogPath" split_words:"true"`
	BindAddr           string `yaml:"bindAddr"           split_words:"true"`
}

func Default() *Config {
	return &Config{
		Chain:                   string(core.DEFAULT_CHAIN),
		ContractName:            core.DEFAULT_CONTRACT_NAME,
		ContractDescription:     core.DEFAULT_CONTRACT_DESCRIPTION,
		TransactionPollInterval: core.DEFAULT_TRANSACTION_POLL_INTERVAL,
		MaxTransactionPollCount: core.DEFAULT_MAX_TRANSACTION_POLL_COUNT,
		DelayAfterConfirmation:  core.DEFAULT_DELAY_AFTER_CONFIRMATION,
		ContractPollInterval:    core.DEFAULT_CONTRACT_POLL_INTERVAL,
		ContractConfirmTimeout:  core.DEFAULT_CONTRACT_CONFIRM_TIMEOUT,
		DatabasePath:            ".federation",
		ContentCatalogPath:      "content.yaml",
		BindAddr:                ":8080",
	}
}

// Load reads the optional YAML file over the defaults, then applies
// FEDERATION_* environment variables on top.
func Load(configFile string) (*Config, error) {
	cfg := Default()
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, errors.Wrap(err, "error reading config file")
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, errors.Wrap(err, "error parsing config file")
		}
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "error processing environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.ParseChain(); err != nil {
		return err
	}
	if c.ContractName == "" {
		return errors.New("contractName must not be empty")
	}
	if c.MaxTransactionPollCount <= 0 {
		return errors.Errorf("maxTransactionPollCount must be positive, got %d", c.MaxTransactionPollCount)
	}
	if c.TransactionPollInterval < 0 || c.DelayAfterConfirmation < 0 || c.ContractConfirmTimeout < 0 {
		return errors.New("intervals must not be negative")
	}
	if c.ContractPollInterval <= 0 {
		return errors.Errorf("contractPollInterval must be positive, got %s", c.ContractPollInterval)
	}
	return nil
}

func (c *Config) ParseChain() (core.Chain, error) {
	return core.ParseChain(c.Chain)
}

// WalletPin is the six digit pin for player wallets.
func (c *Config) WalletPin() string {
	sum := sha256.Sum256([]byte(c.RealmSecret))
	pin := binary.LittleEndian.Uint32(sum[:4])
	return fmt.Sprintf("%06d", pin)[:6]
}

// Provider hands out the current configuration and tells subscribers when
// it changes.
type Provider struct {
	mu          sync.RWMutex
	configFile  string
	cfg         *Config
	subscribers []func(cfg *Config)
}

func NewProvider(configFile string, cfg *Config) *Provider {
	return &Provider{
		configFile: configFile,
		cfg:        cfg,
	}
}

func (p *Provider) Current() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Subscribe registers fn to run after every successful reload.
func (p *Provider) Subscribe(fn func(cfg *Config)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

func (p *Provider) Reload() error {
	cfg, err := Load(p.configFile)
	if err != nil {
		return err
	}
	p.Update(cfg)
	return nil
}

// Update swaps the configuration and notifies subscribers.
func (p *Provider) Update(cfg *Config) {
	p.mu.Lock()
	p.cfg = cfg
	subscribers := make([]func(cfg *Config), len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.Unlock()

	for _, fn := range subscribers {
		fn(cfg)
	}
}
