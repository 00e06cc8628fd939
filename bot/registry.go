package bot

import (
	"sync"

	"github.com/The-Earth/catbot/telegram"
)

// TaskOption adjusts how a registered task executes.
type TaskOption func(*taskSettings)

type taskSettings struct {
	inline bool
}

// Inline makes the action run on the dispatch loop itself instead of
// its own goroutine. Only for actions that are fast and never block:
// an inline action stalls every later event until it returns.
func Inline() TaskOption {
	return func(s *taskSettings) {
		s.inline = true
	}
}

// task pairs a predicate with an action for one event category.
//
// Predicates must be fast, synchronous and side-effect-free: they run
// on the dispatch loop for every event of their category. This is a
// documented contract, not mechanically enforced.
type task[T any] struct {
	predicate func(T) bool
	action    func(T)
	inline    bool
}

func newTask[T any](predicate func(T) bool, action func(T), opts []TaskOption) task[T] {
	var settings taskSettings
	for _, opt := range opts {
		opt(&settings)
	}
	return task[T]{predicate: predicate, action: action, inline: settings.inline}
}

// registry holds the registered tasks per event category. Registration
// is append-only; mutating the registry concurrently with a running
// dispatch loop is not supported.
type registry struct {
	mu           sync.RWMutex
	messages     []task[*telegram.Message]
	callbacks    []task[*telegram.CallbackQuery]
	members      []task[*telegram.ChatMemberUpdated]
	myMembers    []task[*telegram.ChatMemberUpdated]
	joinRequests []task[*telegram.ChatJoinRequest]
}

func appendTask[T any](r *registry, list *[]task[T], t task[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*list = append(*list, t)
}

func snapshot[T any](r *registry, list *[]task[T]) []task[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// OnMessage registers a task for incoming messages. Every task whose
// predicate matches an event runs, in registration order. Register all
// tasks before calling Start.
func (b *Bot) OnMessage(predicate func(*telegram.Message) bool, action func(*telegram.Message), opts ...TaskOption) {
	appendTask(&b.registry, &b.registry.messages, newTask(predicate, action, opts))
}

// OnCallback registers a task for callback queries.
func (b *Bot) OnCallback(predicate func(*telegram.CallbackQuery) bool, action func(*telegram.CallbackQuery), opts ...TaskOption) {
	appendTask(&b.registry, &b.registry.callbacks, newTask(predicate, action, opts))
}

// OnChatMember registers a task for membership changes of other users.
func (b *Bot) OnChatMember(predicate func(*telegram.ChatMemberUpdated) bool, action func(*telegram.ChatMemberUpdated), opts ...TaskOption) {
	appendTask(&b.registry, &b.registry.members, newTask(predicate, action, opts))
}

// OnMyChatMember registers a task for membership changes of the bot
// itself.
func (b *Bot) OnMyChatMember(predicate func(*telegram.ChatMemberUpdated) bool, action func(*telegram.ChatMemberUpdated), opts ...TaskOption) {
	appendTask(&b.registry, &b.registry.myMembers, newTask(predicate, action, opts))
}

// OnChatJoinRequest registers a task for pending chat join requests.
func (b *Bot) OnChatJoinRequest(predicate func(*telegram.ChatJoinRequest) bool, action func(*telegram.ChatJoinRequest), opts ...TaskOption) {
	appendTask(&b.registry, &b.registry.joinRequests, newTask(predicate, action, opts))
}
