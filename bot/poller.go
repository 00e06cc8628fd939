package bot

import (
	"context"
	"time"

	"github.com/The-Earth/catbot/telegram"
)

// transport is the slice of the Telegram client the poll loop needs.
// Tests substitute a fake.
type transport interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration, limit int) ([]telegram.Update, error)
}

// poller fetches batches of updates strictly after the cursor.
type poller struct {
	api     transport
	timeout time.Duration
	limit   int
}

// poll blocks up to the long-poll timeout and returns the next batch,
// possibly empty. An empty batch on timeout is not an error.
func (p *poller) poll(ctx context.Context, cursor int64) ([]telegram.Update, error) {
	return p.api.GetUpdates(ctx, cursor+1, p.timeout, p.limit)
}

// drainBacklog consumes whatever updates accumulated before the bot
// had a cursor and returns the newest update id seen. Used when the
// store holds no cursor: old updates are skipped, not replayed.
func (p *poller) drainBacklog(ctx context.Context) (int64, error) {
	var cursor int64
	for {
		updates, err := p.api.GetUpdates(ctx, cursor+1, 0, p.limit)
		if err != nil {
			return cursor, err
		}
		if len(updates) == 0 {
			return cursor, nil
		}
		cursor = updates[len(updates)-1].UpdateID
	}
}
