package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RedemptionPolicy holds the runtime knobs of the redeem flow. It is loaded
// from voucher.yml and swapped atomically when the file changes.
type RedemptionPolicy struct {
	EnforceExpiration bool          `mapstructure:"enforceExpiration"`
	RateLimit         RedeemLimiter `mapstructure:"rateLimit"`
}

type RedeemLimiter struct {
	Enabled bool    `mapstructure:"enabled"`
	Rate    float64 `mapstructure:"rate"`
	Burst   int     `mapstructure:"burst"`
}

func DefaultRedemptionPolicy() RedemptionPolicy {
	return RedemptionPolicy{
		EnforceExpiration: false,
		RateLimit: RedeemLimiter{
			Enabled: true,
			Rate:    1,
			Burst:   5,
		},
	}
}

type PolicyHolder struct {
	current atomic.Value // holds RedemptionPolicy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(policy RedemptionPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewPolicyHolder(cfg Config, log *zap.Logger) (*PolicyHolder, error) {
	log = log.Named("config.policy")

	v := viper.New()
	v.SetConfigName("voucher")
	v.SetConfigType("yml")
	for _, path := range cfg.PolicyConfigPaths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("VOUCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRedemptionPolicy()
	v.SetDefault("redemption.enforceExpiration", defaults.EnforceExpiration)
	v.SetDefault("redemption.rateLimit.enabled", defaults.RateLimit.Enabled)
	v.SetDefault("redemption.rateLimit.rate", defaults.RateLimit.Rate)
	v.SetDefault("redemption.rateLimit.burst", defaults.RateLimit.Burst)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var policy RedemptionPolicy
	if err := v.UnmarshalKey("redemption", &policy); err != nil {
		return nil, err
	}
	if err := validateRedemptionPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !fileFound {
		log.Info("voucher.yml not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RedemptionPolicy
		if err := v.UnmarshalKey("redemption", &updated); err != nil {
			log.Warn("policy reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := validateRedemptionPolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() RedemptionPolicy {
	if h == nil {
		return DefaultRedemptionPolicy()
	}
	return h.current.Load().(RedemptionPolicy)
}

func validateRedemptionPolicy(policy RedemptionPolicy) error {
	if !policy.RateLimit.Enabled {
		return nil
	}
	if policy.RateLimit.Rate <= 0 {
		return errors.New("redemption.rateLimit.rate must be positive")
	}
	if policy.RateLimit.Burst <= 0 {
		return errors.New("redemption.rateLimit.burst must be positive")
	}
	return nil
}
