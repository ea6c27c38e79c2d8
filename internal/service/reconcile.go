package service

import (
	"context"
	"fmt"

	"github.com/marcus/dispatch/internal/tasks"
)

// AssignByReference makes the reference carry exactly one ASSIGNED task per
// registry slot, owned by assigneeID. For each slot the lowest-id candidate
// survives, other candidates are cancelled, and a missing slot is created.
// COMPLETED tasks are never candidates. CANCELLED ones are unless the
// service was built WithSkipCancelled.
//
// Slots are reconciled in registry order and are not rolled back: a store
// error leaves earlier slots reconciled. The whole sequence runs under a
// per-reference lock.
func (s *Service) AssignByReference(ctx context.Context, refID int64, refType tasks.ReferenceType, assigneeID int64) (string, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(refID, refType))
	if err != nil {
		return "", fmt.Errorf("lock reference %s/%d: %w", refType, refID, err)
	}
	defer unlock()

	existing, err := s.store.FindByReference(ctx, refID, refType)
	if err != nil {
		return "", fmt.Errorf("find tasks for reference %s/%d: %w", refType, refID, err)
	}

	var assigned, cancelled, created int
	for _, slot := range s.registry.SlotsFor(refType) {
		candidates := s.candidates(existing, slot)

		if len(candidates) == 0 {
			t, err := s.store.Save(ctx, &tasks.Task{
				ReferenceID:   refID,
				ReferenceType: refType,
				Type:          slot,
				AssigneeID:    assigneeID,
				Priority:      tasks.PriorityMedium,
				Status:        tasks.StatusAssigned,
				Description:   DefaultDescription,
			})
			if err != nil {
				return "", fmt.Errorf("create %s task: %w", slot, err)
			}
			s.logger.Debugf("reference %s/%d: created task %d for slot %s", refType, refID, t.ID, slot)
			if err := s.record(ctx, t.ID, "Created by reference reconciliation."); err != nil {
				return "", err
			}
			created++
			continue
		}

		survivor := candidates[0]
		survivor.AssigneeID = assigneeID
		survivor.Status = tasks.StatusAssigned
		if _, err := s.store.Save(ctx, survivor); err != nil {
			return "", fmt.Errorf("assign task %d: %w", survivor.ID, err)
		}
		s.logger.Debugf("reference %s/%d: task %d survives for slot %s", refType, refID, survivor.ID, slot)
		if err := s.record(ctx, survivor.ID, fmt.Sprintf("Assigned to %d by reference reconciliation.", assigneeID)); err != nil {
			return "", err
		}
		assigned++

		for _, dup := range candidates[1:] {
			alreadyCancelled := dup.Status == tasks.StatusCancelled
			dup.Status = tasks.StatusCancelled
			if _, err := s.store.Save(ctx, dup); err != nil {
				return "", fmt.Errorf("cancel task %d: %w", dup.ID, err)
			}
			if alreadyCancelled {
				continue
			}
			s.logger.Debugf("reference %s/%d: cancelled duplicate task %d", refType, refID, dup.ID)
			if err := s.record(ctx, dup.ID, fmt.Sprintf("Cancelled as duplicate of task %d.", survivor.ID)); err != nil {
				return "", err
			}
			cancelled++
		}
	}

	s.logger.InfoCtx("reference reconciled", map[string]any{
		"reference_id":   refID,
		"reference_type": string(refType),
		"assignee_id":    assigneeID,
		"assigned":       assigned,
		"cancelled":      cancelled,
		"created":        created,
	})
	return fmt.Sprintf("Tasks assigned successfully for reference %d", refID), nil
}

// candidates returns the slot's tasks eligible to survive, in id order.
func (s *Service) candidates(existing []*tasks.Task, slot tasks.TaskType) []*tasks.Task {
	var out []*tasks.Task
	for _, t := range existing {
		if t.Type != slot || t.Status == tasks.StatusCompleted {
			continue
		}
		if s.skipCancelled && t.Status == tasks.StatusCancelled {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *Service) record(ctx context.Context, taskID int64, description string) error {
	if _, err := s.log.AddActivity(ctx, taskID, description); err != nil {
		return fmt.Errorf("record activity for task %d: %w", taskID, err)
	}
	return nil
}

func lockKey(refID int64, refType tasks.ReferenceType) string {
	return fmt.Sprintf("%s:%d", refType, refID)
}
