package bot

import (
	"fmt"
	"sort"
	"time"

	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// CheckEligible проверяет, можно ли входить по возможности при текущем конфиге
//
// Возвращает ошибку, оборачивающую ErrNotEligible, с причиной отказа.
func CheckEligible(opp *models.Opportunity, cfg *models.RiskConfig, now time.Time) error {
	switch {
	case opp.Status != models.OpportunityStatusActive:
		return fmt.Errorf("opportunity %d status %s: %w", opp.ID, opp.Status, ErrNotEligible)
	case opp.IsExpired(now):
		return fmt.Errorf("opportunity %d expired: %w", opp.ID, ErrNotEligible)
	}
	return checkPreconditions(opp, cfg)
}

// checkPreconditions - условия, которые исполнитель перепроверяет перед отправкой ордера
func checkPreconditions(opp *models.Opportunity, cfg *models.RiskConfig) error {
	switch {
	case !cfg.PlatformEnabled(opp.Platform):
		return fmt.Errorf("platform %s disabled: %w", opp.Platform, ErrNotEligible)
	case !cfg.CategoryEnabled(opp.Category):
		return fmt.Errorf("category %s disabled: %w", opp.Category, ErrNotEligible)
	case opp.Confidence < cfg.MinConfidence:
		return fmt.Errorf("confidence %.2f < %.2f: %w", opp.Confidence, cfg.MinConfidence, ErrNotEligible)
	case utils.Abs(opp.Edge) < cfg.MinEdge:
		return fmt.Errorf("edge %.4f below %.4f: %w", opp.Edge, cfg.MinEdge, ErrNotEligible)
	case !models.IsBuyAction(opp.RecommendedAction):
		return fmt.Errorf("action %s: %w", opp.RecommendedAction, ErrNotEligible)
	}
	return nil
}

// FilterEligible оставляет только возможности, прошедшие CheckEligible
func FilterEligible(opps []*models.Opportunity, cfg *models.RiskConfig, now time.Time) []*models.Opportunity {
	out := make([]*models.Opportunity, 0, len(opps))
	for _, opp := range opps {
		if CheckEligible(opp, cfg, now) == nil {
			out = append(out, opp)
		}
	}
	return out
}

// RankOpportunities сортирует по |edge| desc, затем confidence desc, затем меньший ID
//
// Сортирует копию, исходный слайс не меняется.
func RankOpportunities(opps []*models.Opportunity) []*models.Opportunity {
	ranked := make([]*models.Opportunity, len(opps))
	copy(ranked, opps)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if ea, eb := utils.Abs(a.Edge), utils.Abs(b.Edge); ea != eb {
			return ea > eb
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.ID < b.ID
	})
	return ranked
}
