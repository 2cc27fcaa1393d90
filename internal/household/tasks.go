package household

import (
	"context"

	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/models"
	"github.com/lalith-99/familyhub/internal/repository"
	"go.uber.org/zap"
)

// NewTask is the input for AddTask. Priority defaults to medium.
type NewTask struct {
	Title    string          `json:"title" validate:"required"`
	DueDate  string          `json:"dueDate" validate:"required"`
	Assignee string          `json:"assignee" validate:"required"`
	Priority models.Priority `json:"priority" validate:"oneof=high medium low"`
}

// AddTask creates a pending task in the caller's family. assignedBy is
// the caller's display name.
func (s *Service) AddTask(ctx context.Context, uid string, in NewTask) (*models.Task, error) {
	user, err := s.member(ctx, uid)
	if err != nil {
		return nil, err
	}

	trim(&in.Title, &in.DueDate, &in.Assignee)
	in.Priority = priorityOrDefault(in.Priority)
	if err := models.Validate(&in); err != nil {
		return nil, invalid(err)
	}

	key, err := s.create(ctx, models.CollectionTasks, docstore.Fields{
		"title":               in.Title,
		"dueDate":             in.DueDate,
		"assignee":            in.Assignee,
		"assignedBy":          user.DisplayName(),
		models.FieldCompleted: false,
		"priority":            string(in.Priority),
		models.FieldFamilyID:  *user.FamilyID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("task added", zap.String("task_id", key), zap.String("family_id", *user.FamilyID))
	return s.loadTask(ctx, key)
}

// ListTasks returns the family's tasks. A non-nil completed narrows the
// list to done or pending tasks.
func (s *Service) ListTasks(ctx context.Context, uid string, completed *bool) ([]models.Task, error) {
	user, err := s.member(ctx, uid)
	if err != nil {
		return nil, err
	}

	var where []repository.Condition
	if completed != nil {
		where = append(where, repository.Condition{Field: models.FieldCompleted, Value: *completed})
	}
	tasks, err := s.tasks.ListByFamily(ctx, *user.FamilyID, where...)
	if err != nil {
		return nil, s.storageError("list tasks", err)
	}
	return tasks, nil
}

// SetTaskCompleted marks a task done, or returns it to the active list.
func (s *Service) SetTaskCompleted(ctx context.Context, uid, taskID string, completed bool) (*models.Task, error) {
	if _, err := s.ownTask(ctx, uid, taskID); err != nil {
		return nil, err
	}
	if err := s.update(ctx, models.CollectionTasks, taskID, docstore.Fields{models.FieldCompleted: completed}); err != nil {
		return nil, err
	}
	return s.loadTask(ctx, taskID)
}

func (s *Service) DeleteTask(ctx context.Context, uid, taskID string) error {
	if _, err := s.ownTask(ctx, uid, taskID); err != nil {
		return err
	}
	return s.delete(ctx, models.CollectionTasks, taskID)
}

func (s *Service) ownTask(ctx context.Context, uid, taskID string) (*models.Task, error) {
	user, err := s.member(ctx, uid)
	if err != nil {
		return nil, err
	}
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, s.storageError("load task", err)
	}
	if task == nil || task.FamilyID != *user.FamilyID {
		return nil, notFound(models.CollectionTasks)
	}
	return task, nil
}

func (s *Service) loadTask(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, s.storageError("load task", err)
	}
	if task == nil {
		return nil, notFound(models.CollectionTasks)
	}
	return task, nil
}
