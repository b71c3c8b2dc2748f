package triggers

import (
	"context"
	"fmt"

	"github.com/anonto42/ideafeed/backend/internal/events"
	"github.com/anonto42/ideafeed/backend/internal/models"
)

// OnUserImageChange copies a changed profile image onto every idea the user
// authored. Updates that leave imageUrl alone write nothing.
func (t *Triggers) OnUserImageChange(ctx context.Context, ev events.Event) error {
	if ev.Before == nil || ev.After == nil {
		t.logger.Warn("user update without both images, skipping", "id", ev.ID)
		return nil
	}

	var before, after models.User
	if err := decode(ev.Before, &before); err != nil {
		return err
	}
	if err := decode(ev.After, &after); err != nil {
		return err
	}
	if before.ImageURL == after.ImageURL {
		return nil
	}

	handle := before.Handle
	if handle == "" {
		handle = ev.Params["userId"]
	}

	n, err := t.ideas.UpdateUserImage(ctx, handle, after.ImageURL)
	if err != nil {
		return fmt.Errorf("propagate image of %s: %w", handle, err)
	}
	t.logger.Info("user image propagated", "handle", handle, "ideas", n)
	return nil
}
