package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PlanIntervalMonth = "month"
	PlanIntervalYear  = "year"
)

// Plan maps a public plan id to the processor price that backs it.
type Plan struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	PriceID  string `mapstructure:"priceId"`
	Interval string `mapstructure:"interval"`
}

type PlanCatalog struct {
	Plans []Plan `mapstructure:"plans"`
}

// Lookup returns the plan with the given id.
func (c PlanCatalog) Lookup(id string) (Plan, bool) {
	id = strings.TrimSpace(id)
	for _, plan := range c.Plans {
		if plan.ID == id {
			return plan, true
		}
	}
	return Plan{}, false
}

func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{Plans: []Plan{}}
}

// PlanCatalogHolder serves the latest valid plan catalog and reloads it when
// the backing file changes.
type PlanCatalogHolder struct {
	current atomic.Value // holds PlanCatalog
}

func NewPlanCatalogHolder(cfg Config, log *zap.Logger) (*PlanCatalogHolder, error) {
	log = log.Named("config.plans")

	v := viper.New()
	if path := strings.TrimSpace(cfg.PlansConfigPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("plans")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/coursepass")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("COURSEPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PlanCatalogHolder{}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
		log.Info("plan catalog not found, subscription checkout disabled")
		holder.current.Store(DefaultPlanCatalog())
		return holder, nil
	}

	var catalog PlanCatalog
	if err := v.Unmarshal(&catalog); err != nil {
		return nil, err
	}
	if err := validatePlanCatalog(catalog); err != nil {
		return nil, err
	}
	holder.current.Store(catalog)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlanCatalog
		if err := v.Unmarshal(&updated); err != nil {
			log.Warn("plan catalog reload failed", zap.Error(err))
			return
		}
		if err := validatePlanCatalog(updated); err != nil {
			log.Warn("invalid plan catalog ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("plan catalog reloaded", zap.String("file", filepath.Base(e.Name)), zap.Int("plans", len(updated.Plans)))
	})

	return holder, nil
}

// NewStaticPlanCatalogHolder returns a holder that never reloads.
func NewStaticPlanCatalogHolder(catalog PlanCatalog) *PlanCatalogHolder {
	holder := &PlanCatalogHolder{}
	holder.current.Store(catalog)
	return holder
}

func (h *PlanCatalogHolder) Get() PlanCatalog {
	if h == nil {
		return DefaultPlanCatalog()
	}
	catalog, ok := h.current.Load().(PlanCatalog)
	if !ok {
		return DefaultPlanCatalog()
	}
	return catalog
}

func validatePlanCatalog(catalog PlanCatalog) error {
	seen := make(map[string]struct{}, len(catalog.Plans))
	for i, plan := range catalog.Plans {
		if strings.TrimSpace(plan.ID) == "" {
			return fmt.Errorf("plans[%d].id is required", i)
		}
		if strings.TrimSpace(plan.PriceID) == "" {
			return fmt.Errorf("plans[%d].priceId is required", i)
		}
		switch plan.Interval {
		case PlanIntervalMonth, PlanIntervalYear:
		default:
			return fmt.Errorf("plans[%d].interval must be month or year", i)
		}
		if _, ok := seen[plan.ID]; ok {
			return fmt.Errorf("duplicate plan id %q", plan.ID)
		}
		seen[plan.ID] = struct{}{}
	}
	return nil
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
