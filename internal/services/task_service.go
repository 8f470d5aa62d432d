package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blockforge/internal/models"
)

// TaskService wraps a billable unit of work in a deduct-once lifecycle.
// The charge flag lives on the task row and flips in the same transaction
// as the debit, which is what makes retried charge calls safe.
type TaskService struct {
	db        *gorm.DB
	logger    *zap.Logger
	ledger    *LedgerService
	referrals *ReferralService
}

func NewTaskService(db *gorm.DB, logger *zap.Logger, ledger *LedgerService, referrals *ReferralService) *TaskService {
	return &TaskService{
		db:        db,
		logger:    logger,
		ledger:    ledger,
		referrals: referrals,
	}
}

// ChargeResult is the outcome of a ChargeTask call.
type ChargeResult struct {
	Task           *models.Task `json:"task"`
	AlreadyCharged bool         `json:"already_charged"`
	NewBalance     int64        `json:"new_balance"`
}

// CompleteResult is the outcome of a CompleteTask call.
type CompleteResult struct {
	Task     *models.Task `json:"task"`
	Refunded bool         `json:"refunded"`
}

// StartTask creates a pending task with the charge flag unset.
func (s *TaskService) StartTask(ctx context.Context, userID uint, taskType string, cost int64) (*models.Task, error) {
	if cost < 0 {
		return nil, ErrNonPositiveAmount
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	task := models.Task{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        taskType,
		CreditsCost: cost,
		Status:      models.TaskStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("task started",
		zap.String("task_id", task.ID.String()),
		zap.Uint("user_id", userID),
		zap.String("type", taskType),
		zap.Int64("cost", cost),
	)
	return &task, nil
}

// ChargeTask attempts the one-and-only deduction for a task. Repeat calls
// observe the flipped flag and return AlreadyCharged without touching the
// ledger. Insufficient funds leave both the task and the balance unchanged.
func (s *TaskService) ChargeTask(ctx context.Context, taskID uuid.UUID) (*ChargeResult, error) {
	result := &ChargeResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := lockTask(tx, taskID)
		if err != nil {
			return err
		}

		if task.CreditsDeducted {
			result.Task = task
			result.AlreadyCharged = true
			balance, err := balanceOf(tx, task.UserID)
			if err != nil {
				return err
			}
			result.NewBalance = balance
			return nil
		}

		// Zero-cost tasks bypass the ledger entirely: no entry is written.
		if task.CreditsCost > 0 {
			newBalance, err := s.ledger.DebitTx(tx, task.UserID, task.CreditsCost, "task:"+task.Type, &task.ID)
			if err != nil {
				return err
			}
			result.NewBalance = newBalance
		} else {
			balance, err := balanceOf(tx, task.UserID)
			if err != nil {
				return err
			}
			result.NewBalance = balance
		}

		// Compare-and-set on the flag, even though the row is locked: the
		// unflipped state is the precondition for the debit above.
		res := tx.Model(&models.Task{}).
			Where("id = ? AND credits_deducted = ?", taskID, false).
			Update("credits_deducted", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("charge flag raced for task %s", taskID)
		}

		task.CreditsDeducted = true
		result.Task = task
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// CompleteTask records the outcome of the billed work. A nil workErr marks
// the task completed; a non-nil one marks it failed. The ledger is only
// touched on the failed-after-charge path, where the full cost is refunded
// with a compensating entry tagged with the same task id. The refund is
// issued exactly once because it rides the pending->failed transition.
func (s *TaskService) CompleteTask(ctx context.Context, taskID uuid.UUID, workErr error) (*CompleteResult, error) {
	result := &CompleteResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := lockTask(tx, taskID)
		if err != nil {
			return err
		}

		// Terminal statuses are sticky: completing twice is a no-op.
		if task.Status != models.TaskStatusPending {
			result.Task = task
			return nil
		}

		now := time.Now()
		updates := map[string]interface{}{
			"completed_at": now,
		}

		if workErr == nil {
			updates["status"] = models.TaskStatusCompleted
		} else {
			msg := workErr.Error()
			updates["status"] = models.TaskStatusFailed
			updates["error_message"] = msg
			task.ErrorMessage = &msg
		}

		res := tx.Model(&models.Task{}).
			Where("id = ? AND status = ?", taskID, models.TaskStatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to another completer; reload and report theirs.
			reloaded, err := lockTask(tx, taskID)
			if err != nil {
				return err
			}
			result.Task = reloaded
			return nil
		}

		task.Status = updates["status"].(string)
		task.CompletedAt = &now

		if workErr == nil {
			if err := tx.Model(&models.User{}).Where("id = ?", task.UserID).
				Update("tasks_completed", gorm.Expr("tasks_completed + 1")).Error; err != nil {
				return err
			}
			// First completed billable task by a referred user pays the
			// referrer's task bonus. Already-awarded is a clean no-op.
			if task.CreditsCost > 0 {
				if err := s.referrals.awardFirstTaskBonusTx(tx, task.UserID); err != nil && err != ErrAlreadyAwarded {
					return err
				}
			}
		} else if task.CreditsDeducted && task.CreditsCost > 0 {
			if _, err := s.ledger.CreditTx(tx, task.UserID, task.CreditsCost, "refund:"+task.Type, &task.ID); err != nil {
				return err
			}
			result.Refunded = true
		}

		result.Task = task
		return nil
	})

	if err != nil {
		return nil, err
	}

	if result.Refunded {
		s.logger.Info("task refunded after failure",
			zap.String("task_id", taskID.String()),
			zap.Int64("amount", result.Task.CreditsCost),
		)
	}
	return result, nil
}

// GetTask returns a task by id.
func (s *TaskService) GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func lockTask(tx *gorm.DB, taskID uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", taskID).First(&task).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func balanceOf(tx *gorm.DB, userID uint) (int64, error) {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return user.CreditsBalance, nil
}
