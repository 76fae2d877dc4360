package transform

import (
	"context"
	"fmt"

	appcfg "github.com/timmydarcy44/lms-beyond-v3-sub006/internal/config"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/models"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/money"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// usageSink prices an invocation and emits its usage event.
type usageSink interface {
	Cost(action Action, speech bool) money.Amount
	Emit(ctx context.Context, ev *models.UsageEventModel)
}

// usageMeter reflects actual provider spend, not notional value. The
// pricing table is parsed once at construction and injected; no ambient
// global state.
type usageMeter struct {
	db              *gorm.DB
	defaultPrice    money.Amount
	actionPrices    map[Action]money.Amount
	speechSurcharge money.Amount
	logger          *zap.Logger
}

func newUsageMeter(db *gorm.DB, cfg appcfg.PricingConfig, logger *zap.Logger) (*usageMeter, error) {
	def, err := money.Parse(cfg.Default)
	if err != nil {
		return nil, fmt.Errorf("pricing default: %w", err)
	}
	surcharge, err := money.Parse(cfg.SpeechSurcharge)
	if err != nil {
		return nil, fmt.Errorf("pricing speech surcharge: %w", err)
	}

	prices := make(map[Action]money.Amount, len(cfg.Actions))
	for raw, priceStr := range cfg.Actions {
		action, ok := ParseAction(raw)
		if !ok {
			return nil, fmt.Errorf("pricing: unknown action %q", raw)
		}
		price, err := money.Parse(priceStr)
		if err != nil {
			return nil, fmt.Errorf("pricing %s: %w", raw, err)
		}
		prices[action] = price
	}

	return &usageMeter{
		db:              db,
		defaultPrice:    def,
		actionPrices:    prices,
		speechSurcharge: surcharge,
		logger:          logger,
	}, nil
}

// Cost returns base(action) plus the speech surcharge when a speech
// artifact was actually produced.
func (m *usageMeter) Cost(action Action, speech bool) money.Amount {
	price, ok := m.actionPrices[action]
	if !ok {
		price = m.defaultPrice
	}
	if speech {
		price = price.Add(m.speechSurcharge)
	}
	return price
}

// Emit appends one usage event. Metering is observability: a write failure
// is logged, never propagated into the already-computed response.
func (m *usageMeter) Emit(ctx context.Context, ev *models.UsageEventModel) {
	if err := m.db.WithContext(ctx).Create(ev).Error; err != nil {
		if isTableMissing(err) {
			m.logger.Warn("usage table missing, event dropped", zap.String("user", ev.UserID))
		} else {
			m.logger.Error("usage event write failed", zap.Error(err))
		}
	}
	m.logger.Info("usage",
		zap.String("user", ev.UserID),
		zap.String("action", ev.Action),
		zap.String("cost", ev.Cost),
		zap.Bool("cached", ev.Cached),
		zap.Bool("coalesced", ev.Coalesced),
		zap.Bool("speech", ev.Speech),
	)
}
