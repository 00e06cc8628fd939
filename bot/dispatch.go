package bot

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/The-Earth/catbot/internal/logger"
	"github.com/The-Earth/catbot/internal/timeutil"
	"github.com/The-Earth/catbot/pkg/constants"
	"github.com/The-Earth/catbot/telegram"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// run drives the poll/dispatch loop. Shutdown is checked at loop
// boundaries only, so stopping waits at most one in-flight batch.
func (b *Bot) run(ctx context.Context) error {
	defer func() {
		if err := b.cursor.Close(); err != nil {
			logger.WithField("error", err).Error("cursor-store-close-failed")
		}
	}()

	cursor, err := b.cursor.Load()
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	if cursor == 0 {
		// No usable cursor: skip the accumulated backlog instead of
		// replaying events from before this bot existed.
		cursor, err = b.poller.drainBacklog(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("drain backlog: %w", err)
		}
		logger.WithField("cursor", cursor).Info("starting-from-latest-update")
	} else {
		logger.WithField("cursor", cursor).Info("resuming-from-stored-cursor")
	}

	backoff := constants.PollBackoffInitial
	for ctx.Err() == nil {
		updates, err := b.poller.poll(ctx, cursor)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.WithFields(logrus.Fields{
				"error":   err,
				"backoff": backoff,
			}).Warn("poll-failed-backing-off")
			if sleepErr := timeutil.Sleep(ctx, backoff); sleepErr != nil {
				break
			}
			backoff *= 2
			if backoff > constants.PollBackoffMax {
				backoff = constants.PollBackoffMax
			}
			continue
		}
		backoff = constants.PollBackoffInitial

		if len(updates) == 0 {
			continue
		}

		cursor = b.dispatchBatch(updates, cursor)
		if err := b.cursor.Save(cursor); err != nil {
			logger.WithFields(logrus.Fields{
				"cursor": cursor,
				"error":  err,
			}).Error("cursor-save-failed")
		}
	}

	if err := b.cursor.Save(cursor); err != nil {
		return fmt.Errorf("flush cursor on shutdown: %w", err)
	}
	logger.WithField("cursor", cursor).Info("dispatch-loop-stopped")
	return nil
}

// dispatchBatch hands off every update in ascending update_id order
// and returns the advanced cursor. The cursor moves past an update
// only after all its matched actions were handed off, so a crash
// mid-batch loses at most the unhandled tail.
func (b *Bot) dispatchBatch(updates []telegram.Update, cursor int64) int64 {
	for i := range updates {
		u := &updates[i]
		if u.UpdateID <= cursor {
			// Late or duplicate delivery of an already-committed
			// update; the server-side offset is the primary dedup,
			// this guards the restart window.
			logger.WithField("update_id", u.UpdateID).Debug("duplicate-update-skipped")
			continue
		}
		b.dispatchUpdate(u)
		cursor = u.UpdateID
	}
	return cursor
}

// dispatchUpdate routes one update to its category's tasks. Malformed
// updates are logged and counted as handled, so the cursor still
// advances past them.
func (b *Bot) dispatchUpdate(u *telegram.Update) {
	switch kind := u.Kind(); kind {
	case telegram.KindMessage:
		dispatchTasks(b, kind, u.UpdateID, snapshot(&b.registry, &b.registry.messages), u.Message)
	case telegram.KindCallbackQuery:
		if u.CallbackQuery.Message == nil {
			// Queries from messages too old for the API to include
			// carry no context a handler could act on.
			logger.WithField("update_id", u.UpdateID).Debug("callback-without-message-skipped")
			return
		}
		dispatchTasks(b, kind, u.UpdateID, snapshot(&b.registry, &b.registry.callbacks), u.CallbackQuery)
	case telegram.KindChatMember:
		dispatchTasks(b, kind, u.UpdateID, snapshot(&b.registry, &b.registry.members), u.ChatMember)
	case telegram.KindMyChatMember:
		dispatchTasks(b, kind, u.UpdateID, snapshot(&b.registry, &b.registry.myMembers), u.MyChatMember)
	case telegram.KindChatJoinRequest:
		dispatchTasks(b, kind, u.UpdateID, snapshot(&b.registry, &b.registry.joinRequests), u.ChatJoinRequest)
	default:
		logger.WithField("update_id", u.UpdateID).Warn("unhandled-update-payload")
	}
}

// dispatchTasks evaluates predicates in registration order and hands
// off every matched action. All matching tasks run, not just the
// first. Concurrent actions take a slot in the bounded worker
// semaphore; when the pool is saturated the hand-off blocks, which is
// the backpressure policy under event bursts.
func dispatchTasks[T any](b *Bot, kind telegram.UpdateKind, updateID int64, tasks []task[T], event T) {
	for _, t := range tasks {
		if !evalPredicate(t.predicate, event, kind, updateID) {
			continue
		}
		if t.inline {
			b.runTask(kind, updateID, func() { t.action(event) })
			continue
		}

		b.sem <- struct{}{}
		action := t.action
		go func() {
			defer func() { <-b.sem }()
			b.runTask(kind, updateID, func() { action(event) })
		}()
	}
}

// evalPredicate applies a predicate, treating a panic as a non-match
// so one broken predicate cannot take down the dispatch loop.
func evalPredicate[T any](predicate func(T) bool, event T, kind telegram.UpdateKind, updateID int64) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"kind":      kind,
				"update_id": updateID,
				"panic":     r,
			}).Error("predicate-panic-recovered")
			matched = false
		}
	}()
	return predicate(event)
}

// runTask executes one action in isolation: a panic in the action body
// is caught here, reported and never propagated to the dispatcher,
// sibling actions or the poll loop.
func (b *Bot) runTask(kind telegram.UpdateKind, updateID int64, fn func()) {
	runID := uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"kind":      kind,
				"update_id": updateID,
				"run_id":    runID,
				"panic":     r,
				"stack":     string(debug.Stack()),
			}).Error("handler-panic-recovered")
		}
	}()
	fn()
}
