package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"decal_manager/internal/models"
	"decal_manager/internal/repository"

	"go.uber.org/zap"
)

// StageProgress summarises where an order is in its lifecycle.
type StageProgress struct {
	OrderID              uint               `json:"order_id"`
	Stage                *models.OrderStage `json:"stage"`
	Description          string             `json:"description"`
	CompletionPercentage int                `json:"completion_percentage"`
	NextStage            *models.OrderStage `json:"next_stage"`
}

type StageService interface {
	// CreateHistoryEntry appends an entry without enforcing the transition rule.
	CreateHistoryEntry(ctx context.Context, orderID uint, stage models.OrderStage, actorID *uint, notes string) (*models.OrderStageHistory, error)
	TransitionToNextStage(ctx context.Context, orderID uint, actorID *uint, notes string) (*models.OrderStageHistory, error)
	CanTransitionToStage(ctx context.Context, orderID uint, stage models.OrderStage) (bool, error)
	// GetCurrentStage returns nil when the order has no history.
	GetCurrentStage(ctx context.Context, orderID uint) (*models.OrderStage, error)
	ListHistory(ctx context.Context, orderID uint) ([]models.OrderStageHistory, error)
	CorrectHistoryNotes(ctx context.Context, entryID uint, notes string) (*models.OrderStageHistory, error)
	GetProgress(ctx context.Context, orderID uint) (*StageProgress, error)
	GetStages() []models.StageDefinition
}

type stageService struct {
	deps Deps
}

func NewStageService(deps Deps) StageService {
	return &stageService{deps: deps.withDefaults()}
}

func (s *stageService) CreateHistoryEntry(ctx context.Context, orderID uint, stage models.OrderStage, actorID *uint, notes string) (*models.OrderStageHistory, error) {
	if !stage.Valid() {
		return nil, validationf("unknown stage %q", stage)
	}
	return s.appendEntry(ctx, orderID, actorID, notes, func(*models.OrderStage) (models.OrderStage, error) {
		return stage, nil
	})
}

func (s *stageService) TransitionToNextStage(ctx context.Context, orderID uint, actorID *uint, notes string) (*models.OrderStageHistory, error) {
	return s.appendEntry(ctx, orderID, actorID, notes, func(current *models.OrderStage) (models.OrderStage, error) {
		if current != nil && !current.Valid() {
			return "", fmt.Errorf("%w: order %d is at unknown stage %q", ErrIllegalTransition, orderID, *current)
		}
		next, ok := models.NextStage(current)
		if !ok {
			return "", fmt.Errorf("%w: order %d is %s", ErrTerminalStage, orderID, *current)
		}
		return next, nil
	})
}

// appendEntry writes one history entry for the stage chosen by pick, which sees the current
// stage under the order lock.
func (s *stageService) appendEntry(ctx context.Context, orderID uint, actorID *uint, notes string, pick func(current *models.OrderStage) (models.OrderStage, error)) (*models.OrderStageHistory, error) {
	notes = strings.TrimSpace(notes)

	var entry *models.OrderStageHistory
	var order *models.Order
	err := s.deps.withLocks(ctx, []string{orderLockKey(orderID)}, func() error {
		err := s.deps.transaction(ctx, func(ctx context.Context, tx repository.Store) error {
			var err error
			order, err = tx.Orders().GetForUpdate(ctx, orderID)
			if err != nil {
				return lookupErr(err, "order", orderID)
			}
			if actorID != nil {
				if _, err := tx.Employees().GetByID(ctx, *actorID); err != nil {
					return lookupErr(err, "employee", *actorID)
				}
			}

			latest, err := latestEntry(ctx, tx, orderID)
			if err != nil {
				return err
			}
			var current *models.OrderStage
			if latest != nil {
				current = &latest.Stage
			}
			stage, err := pick(current)
			if err != nil {
				return err
			}

			// Keep the new entry the latest even if the clock stepped back.
			changedAt := s.deps.now()
			if latest != nil && latest.ChangedAt.After(changedAt) {
				changedAt = latest.ChangedAt
			}
			entry = &models.OrderStageHistory{
				OrderID:   orderID,
				Stage:     stage,
				ChangedAt: changedAt,
				ActorID:   actorID,
				Notes:     notes,
			}
			if err := tx.StageHistory().Append(ctx, entry); err != nil {
				return fmt.Errorf("failed to append stage history: %w", err)
			}

			order.CurrentStage = &stage
			if err := tx.Orders().UpdateDerived(ctx, order); err != nil {
				return fmt.Errorf("failed to update stage of order %d: %w", orderID, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		// Still under the order lock so cache writes land in commit order.
		s.cacheStage(ctx, orderID, entry.Stage)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
			s.deps.log(ctx).Info("stage change rejected", zap.Uint("order_id", orderID), zap.Error(err))
		} else {
			s.deps.log(ctx).Error("stage change failed", zap.Uint("order_id", orderID), zap.Error(err))
		}
		return nil, err
	}

	s.deps.log(ctx).Info("order stage changed",
		zap.Uint("order_id", orderID),
		zap.String("stage", string(entry.Stage)),
		zap.Uint("history_id", entry.ID),
	)
	if def, ok := entry.Stage.Definition(); ok {
		s.deps.Notifier.StageChanged(ctx, order, def)
	}
	return entry, nil
}

func (s *stageService) cacheStage(ctx context.Context, orderID uint, stage models.OrderStage) {
	if s.deps.StageCache == nil {
		return
	}
	err := s.deps.StageCache.SetOrderStage(ctx, orderID, string(stage), s.deps.StageCacheTTL)
	if err == nil {
		return
	}
	s.deps.log(ctx).Warn("failed to cache order stage", zap.Uint("order_id", orderID), zap.Error(err))

	// A previous value may still be cached; readers must fall back to history instead.
	if err := s.deps.StageCache.DeleteOrderStage(ctx, orderID); err != nil {
		s.deps.log(ctx).Error("failed to evict stale order stage",
			zap.Uint("order_id", orderID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
	}
}

func (s *stageService) CanTransitionToStage(ctx context.Context, orderID uint, stage models.OrderStage) (bool, error) {
	if !stage.Valid() {
		return false, validationf("unknown stage %q", stage)
	}
	current, err := s.currentFromHistory(ctx, orderID)
	if err != nil {
		return false, err
	}
	return models.CanTransition(current, stage), nil
}

func (s *stageService) GetCurrentStage(ctx context.Context, orderID uint) (*models.OrderStage, error) {
	if s.deps.StageCache != nil {
		cached, err := s.deps.StageCache.GetOrderStage(ctx, orderID)
		if err == nil {
			if stage := models.OrderStage(cached); stage.Valid() {
				return &stage, nil
			}
		}
	}
	return s.currentFromHistory(ctx, orderID)
}

func (s *stageService) currentFromHistory(ctx context.Context, orderID uint) (*models.OrderStage, error) {
	if _, err := s.deps.Store.Orders().GetByID(ctx, orderID); err != nil {
		return nil, lookupErr(err, "order", orderID)
	}
	latest, err := latestEntry(ctx, s.deps.Store, orderID)
	if err != nil || latest == nil {
		return nil, err
	}
	stage := latest.Stage
	return &stage, nil
}

func (s *stageService) ListHistory(ctx context.Context, orderID uint) ([]models.OrderStageHistory, error) {
	if _, err := s.deps.Store.Orders().GetByID(ctx, orderID); err != nil {
		return nil, lookupErr(err, "order", orderID)
	}
	history, err := s.deps.Store.StageHistory().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage history of order %d: %w", orderID, err)
	}
	return history, nil
}

func (s *stageService) CorrectHistoryNotes(ctx context.Context, entryID uint, notes string) (*models.OrderStageHistory, error) {
	var entry *models.OrderStageHistory
	err := s.deps.transaction(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		entry, err = tx.StageHistory().GetByID(ctx, entryID)
		if err != nil {
			return lookupErr(err, "stage history entry", entryID)
		}
		entry.Notes = strings.TrimSpace(notes)
		if err := tx.StageHistory().UpdateNotes(ctx, entryID, entry.Notes); err != nil {
			return fmt.Errorf("failed to correct stage history entry %d: %w", entryID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.deps.log(ctx).Info("stage history notes corrected", zap.Uint("history_id", entryID), zap.Uint("order_id", entry.OrderID))
	return entry, nil
}

func (s *stageService) GetProgress(ctx context.Context, orderID uint) (*StageProgress, error) {
	current, err := s.GetCurrentStage(ctx, orderID)
	if err != nil {
		return nil, err
	}
	progress := &StageProgress{OrderID: orderID, Stage: current}
	if current != nil {
		if def, ok := current.Definition(); ok {
			progress.Description = def.Description
			progress.CompletionPercentage = def.CompletionPercentage
		}
	}
	if next, ok := models.NextStage(current); ok {
		progress.NextStage = &next
	}
	return progress, nil
}

func (s *stageService) GetStages() []models.StageDefinition {
	return models.Stages()
}

func latestEntry(ctx context.Context, store repository.Store, orderID uint) (*models.OrderStageHistory, error) {
	latest, err := store.StageHistory().Latest(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest stage of order %d: %w", orderID, err)
	}
	return latest, nil
}
