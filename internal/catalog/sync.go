package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"brewsync/internal"
	"brewsync/internal/logger"
	"brewsync/internal/pipeline"
	"brewsync/internal/util"
)

const (
	readOnlyKeyMessage = "API key has read-only permissions. Please generate a new API key with read/write permissions in Brewfather Settings → API Keys."
	notFoundMessage    = "Item not found in Brewfather inventory. Add it manually first, then run this tool to update quantities."

	responseUpdated         = "Updated"
	responseNothingToUpdate = "Nothing to update"
)

// InventoryAPI is the part of the Brewfather client the sync needs.
type InventoryAPI interface {
	InventoryReader
	AdjustInventory(ctx context.Context, t internal.IngredientType, id string, adj Adjustment) (string, error)
}

type SyncService struct {
	api      InventoryAPI
	matcher  *pipeline.Matcher
	costUnit string
	log      *logger.Logger
}

func NewSyncService(api InventoryAPI, costUnit string, log *logger.Logger) *SyncService {
	if log == nil {
		log = logger.Nop()
	}
	return &SyncService{
		api:      api,
		matcher:  pipeline.NewMatcher(pipeline.SyncPrefixLen),
		costUnit: util.FirstNonEmpty(costUnit, "GBP"),
		log:      log,
	}
}

// Apply syncs every category that has ingredients, in the fixed category
// order. A category whose catalog read fails is reported through its Err and
// the remaining categories still run.
func (s *SyncService) Apply(ctx context.Context, ings []internal.CanonicalIngredient) []internal.CategorySyncResult {
	grouped := GroupByType(ings)
	out := []internal.CategorySyncResult{}
	for _, t := range internal.IngredientTypes {
		items := grouped[t]
		if len(items) == 0 {
			continue
		}
		res, err := s.ApplyCategory(ctx, t, items)
		if err != nil {
			s.log.Error().Err(err).Str("category", string(t)).Msg("category sync failed")
		}
		out = append(out, res)
	}
	return out
}

// ApplyCategory fetches the category once, then matches and adjusts each
// ingredient in input order. Per-item failures are recorded, not returned.
func (s *SyncService) ApplyCategory(ctx context.Context, t internal.IngredientType, ings []internal.CanonicalIngredient) (internal.CategorySyncResult, error) {
	res := internal.CategorySyncResult{Type: t, Items: []internal.SyncItemResult{}}

	entries, err := s.api.ListInventory(ctx, t)
	if err != nil {
		res.Err = err
		return res, err
	}

	for _, ing := range ings {
		res.Items = append(res.Items, s.applyOne(ctx, t, ing, entries))
	}
	return res, nil
}

func (s *SyncService) applyOne(ctx context.Context, t internal.IngredientType, ing internal.CanonicalIngredient, entries []internal.CatalogEntry) internal.SyncItemResult {
	match := s.matcher.Match(ing, entries)
	if !match.Found {
		s.log.Warn().Str("category", string(t)).Str("name", ing.Name).Msg("not in catalog")
		return internal.SyncItemResult{Name: ing.Name, Success: false, Action: internal.ActionNotFound, Error: notFoundMessage}
	}

	adj := Adjustment{InventoryAdjust: ing.Amount}
	if ing.Cost > 0 {
		cost := ing.Cost
		adj.Cost = &cost
		adj.CostUnit = s.costUnit
	}

	text, err := s.api.AdjustInventory(ctx, t, match.Entry.ID, adj)
	if err != nil {
		s.log.Error().Err(err).Str("category", string(t)).Str("name", ing.Name).Msg("inventory update failed")
		return internal.SyncItemResult{Name: ing.Name, Success: false, Action: internal.ActionError, ID: match.Entry.ID, Error: err.Error()}
	}

	switch text {
	case responseUpdated:
		unit := ing.Unit
		if unit == "" {
			unit = t.CatalogUnit()
		}
		current := match.Entry.CurrentAmount
		newAmount := decimal.NewFromFloat(current).Add(decimal.NewFromFloat(ing.Amount)).InexactFloat64()
		s.log.Info().
			Str("category", string(t)).
			Str("name", ing.Name).
			Str("catalogName", match.Entry.Name).
			Float64("current", current).
			Float64("new", newAmount).
			Msg("inventory adjusted")
		return internal.SyncItemResult{
			Name:          ing.Name,
			Success:       true,
			Action:        internal.ActionAdjusted,
			ID:            match.Entry.ID,
			CurrentAmount: current,
			AdjustedBy:    ing.Amount,
			NewAmount:     newAmount,
			Unit:          unit,
		}
	case responseNothingToUpdate:
		return internal.SyncItemResult{Name: ing.Name, Success: false, Action: internal.ActionError, ID: match.Entry.ID, Error: readOnlyKeyMessage}
	default:
		err := fmt.Errorf("%w: %q", ErrUnexpectedResponse, text)
		return internal.SyncItemResult{Name: ing.Name, Success: false, Action: internal.ActionError, ID: match.Entry.ID, Error: err.Error()}
	}
}

// GroupByType buckets ingredients by type keeping their input order.
func GroupByType(ings []internal.CanonicalIngredient) map[internal.IngredientType][]internal.CanonicalIngredient {
	out := map[internal.IngredientType][]internal.CanonicalIngredient{}
	for _, ing := range ings {
		out[ing.Type] = append(out[ing.Type], ing)
	}
	return out
}

// Summarize counts outcomes per category.
func Summarize(results []internal.CategorySyncResult) map[internal.IngredientType]internal.CategorySummary {
	out := map[internal.IngredientType]internal.CategorySummary{}
	for _, cat := range results {
		sum := out[cat.Type]
		for _, item := range cat.Items {
			switch {
			case item.Success:
				sum.Successful++
			case item.Action == internal.ActionNotFound:
				sum.NotFound++
			default:
				sum.Errors++
			}
		}
		out[cat.Type] = sum
	}
	return out
}
