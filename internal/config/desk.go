package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DeskConfig holds the operational policy of the ticket desk. It lives in
// desk.yml and is reloaded without restarting the process.
type DeskConfig struct {
	Documents  DocumentConfig   `mapstructure:"documents"`
	Claim      ClaimConfig      `mapstructure:"claim"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
}

type DocumentConfig struct {
	MaxSizeBytes       int64    `mapstructure:"max_size_bytes"`
	AcceptedTypes      []string `mapstructure:"accepted_types"`
	AcceptedExtensions []string `mapstructure:"accepted_extensions"`
}

// ClaimConfig tolerates read-after-write lag of the ticket backend.
type ClaimConfig struct {
	LookupAttempts int           `mapstructure:"lookup_attempts"`
	LookupDelay    time.Duration `mapstructure:"lookup_delay"`
}

type SubmissionConfig struct {
	// ChargeDuplicates consumes a credit before checking for an open ticket
	// with the same VIN.
	ChargeDuplicates   bool `mapstructure:"charge_duplicates"`
	RateLimitPerMinute int  `mapstructure:"rate_limit_per_minute"`
}

type DispatchConfig struct {
	Workers int `mapstructure:"workers"`
}

func DefaultDeskConfig() DeskConfig {
	return DeskConfig{
		Documents: DocumentConfig{
			MaxSizeBytes:       50 * 1024 * 1024,
			AcceptedTypes:      []string{"application/pdf"},
			AcceptedExtensions: []string{".pdf"},
		},
		Claim: ClaimConfig{
			LookupAttempts: 3,
			LookupDelay:    200 * time.Millisecond,
		},
		Submission: SubmissionConfig{
			ChargeDuplicates:   false,
			RateLimitPerMinute: 10,
		},
		Dispatch: DispatchConfig{
			Workers: 16,
		},
	}
}

type DeskConfigHolder struct {
	current atomic.Value // holds DeskConfig
}

// NewStaticDeskConfig wraps a fixed config, mostly for tests.
func NewStaticDeskConfig(cfg DeskConfig) *DeskConfigHolder {
	holder := &DeskConfigHolder{}
	holder.current.Store(withDefaults(cfg))
	return holder
}

func NewDeskConfigHolder(log *zap.Logger) (*DeskConfigHolder, error) {
	log = log.Named("desk.config")
	v := viper.New()

	v.SetConfigName("desk")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/vindesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VINDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeDeskConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &DeskConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		log.Info("desk.yml not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeDeskConfig(v)
		if err != nil {
			log.Warn("desk config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("desk config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *DeskConfigHolder) Get() DeskConfig {
	return h.current.Load().(DeskConfig)
}

func decodeDeskConfig(v *viper.Viper) (DeskConfig, error) {
	var cfg DeskConfig
	if v.IsSet("desk") {
		if err := v.UnmarshalKey("desk", &cfg); err != nil {
			return DeskConfig{}, err
		}
	}
	cfg = withDefaults(cfg)
	if err := validateDeskConfig(cfg); err != nil {
		return DeskConfig{}, err
	}
	return cfg, nil
}

func withDefaults(cfg DeskConfig) DeskConfig {
	def := DefaultDeskConfig()
	if cfg.Documents.MaxSizeBytes == 0 {
		cfg.Documents.MaxSizeBytes = def.Documents.MaxSizeBytes
	}
	if len(cfg.Documents.AcceptedTypes) == 0 {
		cfg.Documents.AcceptedTypes = def.Documents.AcceptedTypes
	}
	if len(cfg.Documents.AcceptedExtensions) == 0 {
		cfg.Documents.AcceptedExtensions = def.Documents.AcceptedExtensions
	}
	if cfg.Claim.LookupAttempts == 0 {
		cfg.Claim.LookupAttempts = def.Claim.LookupAttempts
	}
	if cfg.Claim.LookupDelay == 0 {
		cfg.Claim.LookupDelay = def.Claim.LookupDelay
	}
	if cfg.Submission.RateLimitPerMinute == 0 {
		cfg.Submission.RateLimitPerMinute = def.Submission.RateLimitPerMinute
	}
	if cfg.Dispatch.Workers == 0 {
		cfg.Dispatch.Workers = def.Dispatch.Workers
	}
	return cfg
}

func validateDeskConfig(cfg DeskConfig) error {
	if cfg.Documents.MaxSizeBytes < 0 {
		return errors.New("desk.documents.max_size_bytes must be positive")
	}
	if cfg.Claim.LookupAttempts < 1 {
		return fmt.Errorf("desk.claim.lookup_attempts must be >= 1, got %d", cfg.Claim.LookupAttempts)
	}
	if cfg.Claim.LookupDelay < 0 {
		return errors.New("desk.claim.lookup_delay must not be negative")
	}
	if cfg.Submission.RateLimitPerMinute < 0 {
		return errors.New("desk.submission.rate_limit_per_minute must not be negative")
	}
	if cfg.Dispatch.Workers < 1 {
		return errors.New("desk.dispatch.workers must be >= 1")
	}
	return nil
}
