package interaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/lalith-99/leaddesk/internal/errs"
	"github.com/lalith-99/leaddesk/internal/workflow"
	"go.uber.org/zap"
)

// execute performs one effect. stop is true when the rest of the sequence
// must be skipped.
func (r *Router) execute(ctx context.Context, effect workflow.Effect) (bool, error) {
	switch e := effect.(type) {
	case workflow.PersistAssignment:
		created, err := r.deps.Assignments.CreateAssignment(ctx, e.Assignment)
		if err != nil {
			// Nothing was recorded; announcing the assignment would lie.
			return true, err
		}
		if !created {
			r.logger.Info("assignment already recorded",
				zap.String("channel", e.Assignment.Channel),
				zap.String("message_ts", e.Assignment.MessageTS),
			)
			return true, nil
		}
		return false, nil

	case workflow.PersistPreferences:
		_, err := r.deps.Users.UpsertUserPreferences(ctx, e.UserID, e.Preferences)
		return err != nil, err

	case workflow.UpdateView:
		return false, r.deps.Notifier.UpdateLead(ctx, e.State)

	case workflow.DirectMessage:
		return false, r.deps.Notifier.DirectMessage(ctx, e.UserID, e.Text)

	case workflow.ThreadReply:
		return false, r.deps.Notifier.ThreadReply(ctx, e.Ref, e.Text)

	case workflow.Ephemeral:
		return false, r.deps.Notifier.Ephemeral(ctx, e.Channel, e.UserID, e.Text)

	case workflow.OpenModal:
		return false, r.deps.Notifier.OpenModal(ctx, e.TriggerID, e.Modal)

	case workflow.PublishHome:
		if r.deps.Home == nil {
			return false, nil
		}
		return false, r.deps.Home.Publish(ctx, e.UserID)

	case workflow.ForwardAssignment:
		if r.deps.Website != nil {
			r.deps.Website.ForwardAssignment(ctx, e.Assignment)
		}
		return false, nil

	case workflow.NotifyApplicant:
		err := r.deps.Notifier.NotifyByEmail(ctx, e.Email, e.Text)
		if errors.Is(err, errs.ErrNotFound) {
			r.logger.Info("applicant is not a workspace member", zap.String("email", e.Email))
			return false, nil
		}
		return false, err
	}
	return false, fmt.Errorf("unknown effect %T", effect)
}
