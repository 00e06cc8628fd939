package telegram

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler captures each API call's method path and query.
type recordingHandler struct {
	mu      sync.Mutex
	methods []string
	queries []url.Values
	respond func(method string, w http.ResponseWriter)
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	h.mu.Lock()
	h.methods = append(h.methods, method)
	h.queries = append(h.queries, r.URL.Query())
	h.mu.Unlock()

	if h.respond != nil {
		h.respond(method, w)
		return
	}
	writeResult(w, sampleMessage(1))
}

func sampleMessage(id int) map[string]interface{} {
	return map[string]interface{}{
		"message_id": id,
		"date":       100,
		"chat":       map[string]interface{}{"id": 5, "type": "private", "first_name": "u"},
		"text":       "ok",
	}
}

func TestGetMe(t *testing.T) {
	h := &recordingHandler{respond: func(method string, w http.ResponseWriter) {
		writeResult(w, map[string]interface{}{
			"id":              9,
			"is_bot":          true,
			"first_name":      "cat",
			"username":        "catbot",
			"can_join_groups": true,
		})
	}}
	client, _ := newTestClient(t, h)

	me, err := client.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), me.ID)
	assert.Equal(t, "catbot", me.Username)
	assert.True(t, me.CanJoinGroups)
}

func TestSendMessage_Short(t *testing.T) {
	h := &recordingHandler{}
	client, _ := newTestClient(t, h)

	msg, err := client.SendMessage(context.Background(), 5, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, msg.ID)

	require.Len(t, h.queries, 1)
	assert.Equal(t, "5", h.queries[0].Get("chat_id"))
	assert.Equal(t, "hello", h.queries[0].Get("text"))
}

func TestSendMessage_SplitsLongPlainText(t *testing.T) {
	h := &recordingHandler{}
	client, _ := newTestClient(t, h)

	text := strings.Repeat("a", 9000)
	_, err := client.SendMessage(context.Background(), 5, text, nil)
	require.NoError(t, err)

	require.Len(t, h.queries, 3)
	assert.True(t, strings.HasSuffix(h.queries[0].Get("text"), "(1 / 3)"))
	assert.True(t, strings.HasSuffix(h.queries[2].Get("text"), "(3 / 3)"))
	for _, q := range h.queries {
		assert.LessOrEqual(t, len([]rune(q.Get("text"))), 4096)
	}
}

func TestSendMessage_PacesSplitParts(t *testing.T) {
	h := &recordingHandler{}
	client, _ := newTestClient(t, h)

	start := time.Now()
	_, err := client.SendMessage(context.Background(), 5, strings.Repeat("a", 9000), nil)
	require.NoError(t, err)

	require.Len(t, h.queries, 3)
	// Two gaps between three parts, half a second each.
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestSendMessage_SplitAbandonedOnCancel(t *testing.T) {
	h := &recordingHandler{}
	client, _ := newTestClient(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := client.SendMessage(ctx, 5, strings.Repeat("a", 9000), nil)
	require.Error(t, err)
	assert.Less(t, len(h.queries), 3, "cancel must stop the part sequence")
}

func TestSendMessage_NoSplitWithParseMode(t *testing.T) {
	h := &recordingHandler{}
	client, _ := newTestClient(t, h)

	text := strings.Repeat("b", 9000)
	_, err := client.SendMessage(context.Background(), 5, text, &SendOptions{ParseMode: "MarkdownV2"})
	require.NoError(t, err)

	// Splitting formatted text could cut an entity in half, so it is
	// sent whole and the server decides.
	require.Len(t, h.queries, 1)
	assert.Equal(t, "MarkdownV2", h.queries[0].Get("parse_mode"))
}

func TestSendMessage_SerializesMarkupAndReply(t *testing.T) {
	h := &recordingHandler{}
	client, _ := newTestClient(t, h)

	opts := &SendOptions{
		ReplyParameters: &ReplyParameters{MessageID: 77},
		ReplyMarkup: &InlineKeyboardMarkup{
			InlineKeyboard: [][]InlineKeyboardButton{
				{{Text: "yes", CallbackData: "y"}},
			},
		},
	}
	_, err := client.SendMessage(context.Background(), 5, "choose", opts)
	require.NoError(t, err)

	q := h.queries[0]
	assert.Contains(t, q.Get("reply_markup"), `"callback_data":"y"`)
	assert.Contains(t, q.Get("reply_parameters"), `"message_id":77`)
}

func TestEditMessageText_NotModifiedIsNotAnError(t *testing.T) {
	h := &recordingHandler{respond: func(method string, w http.ResponseWriter) {
		writeAPIError(w, 400, "Bad Request: message is not modified")
	}}
	client, _ := newTestClient(t, h)

	msg, err := client.EditMessageText(context.Background(), 5, 1, "same", nil)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestEditMessageText_MissingMessage(t *testing.T) {
	h := &recordingHandler{respond: func(method string, w http.ResponseWriter) {
		writeAPIError(w, 400, "Bad Request: message to edit not found")
	}}
	client, _ := newTestClient(t, h)

	_, err := client.EditMessageText(context.Background(), 5, 1, "new", nil)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestForwardMessage(t *testing.T) {
	h := &recordingHandler{}
	client, _ := newTestClient(t, h)

	_, err := client.ForwardMessage(context.Background(), 10, 20, 3, true)
	require.NoError(t, err)

	q := h.queries[0]
	assert.Equal(t, "forwardMessage", h.methods[0])
	assert.Equal(t, "10", q.Get("from_chat_id"))
	assert.Equal(t, "20", q.Get("chat_id"))
	assert.Equal(t, "3", q.Get("message_id"))
	assert.Equal(t, "true", q.Get("disable_notification"))
}

func TestAnswerCallbackQuery(t *testing.T) {
	h := &recordingHandler{respond: func(method string, w http.ResponseWriter) {
		writeResult(w, true)
	}}
	client, _ := newTestClient(t, h)

	err := client.AnswerCallbackQuery(context.Background(), "q1", &CallbackAnswer{Text: "done", ShowAlert: true})
	require.NoError(t, err)

	q := h.queries[0]
	assert.Equal(t, "q1", q.Get("callback_query_id"))
	assert.Equal(t, "done", q.Get("text"))
	assert.Equal(t, "true", q.Get("show_alert"))
}

func TestRestrictChatMember_EncodesPermissions(t *testing.T) {
	h := &recordingHandler{respond: func(method string, w http.ResponseWriter) {
		writeResult(w, true)
	}}
	client, _ := newTestClient(t, h)

	err := client.SilenceChatMember(context.Background(), -100123, 42, 0)
	require.NoError(t, err)

	q := h.queries[0]
	assert.Equal(t, "restrictChatMember", h.methods[0])
	assert.Contains(t, q.Get("permissions"), `"can_send_messages":false`)
}

func TestLiftRestrictions_GrantsEverything(t *testing.T) {
	h := &recordingHandler{respond: func(method string, w http.ResponseWriter) {
		writeResult(w, true)
	}}
	client, _ := newTestClient(t, h)

	err := client.LiftRestrictions(context.Background(), -100123, 42)
	require.NoError(t, err)

	perms := h.queries[0].Get("permissions")
	assert.Contains(t, perms, `"can_send_messages":true`)
	assert.Contains(t, perms, `"can_add_web_page_previews":true`)
}

// memberHandler answers getChatMember with the given status and lets
// restriction calls through.
func memberHandler(status string, restrictDescription string) *recordingHandler {
	return &recordingHandler{respond: func(method string, w http.ResponseWriter) {
		switch method {
		case "getChatMember":
			writeResult(w, map[string]interface{}{
				"user":   map[string]interface{}{"id": 42, "is_bot": false, "first_name": "u"},
				"status": status,
			})
		case "restrictChatMember":
			if restrictDescription != "" {
				writeAPIError(w, 400, restrictDescription)
				return
			}
			writeResult(w, true)
		default:
			writeResult(w, true)
		}
	}}
}

func TestLiftAndPreserveRestriction_ExpiredRestrictionIsLifted(t *testing.T) {
	h := memberHandler("restricted", "")
	client, _ := newTestClient(t, h)

	until := time.Now().Unix() + 10
	require.NoError(t, client.LiftAndPreserveRestriction(context.Background(), -100123, 42, until))

	require.Equal(t, []string{"getChatMember", "restrictChatMember"}, h.methods)
	assert.Contains(t, h.queries[1].Get("permissions"), `"can_send_messages":true`)
}

func TestLiftAndPreserveRestriction_OngoingRestrictionIsReapplied(t *testing.T) {
	h := memberHandler("restricted", "")
	client, _ := newTestClient(t, h)

	until := time.Now().Unix() + 3600
	require.NoError(t, client.LiftAndPreserveRestriction(context.Background(), -100123, 42, until))

	require.Equal(t, []string{"getChatMember", "restrictChatMember"}, h.methods)
	q := h.queries[1]
	assert.Contains(t, q.Get("permissions"), `"can_send_messages":false`)
	assert.Equal(t, strconv.FormatInt(until, 10), q.Get("until_date"))
}

func TestLiftAndPreserveRestriction_ZeroMeansForever(t *testing.T) {
	h := memberHandler("restricted", "")
	client, _ := newTestClient(t, h)

	require.NoError(t, client.LiftAndPreserveRestriction(context.Background(), -100123, 42, 0))

	// No expiry on record: the silence is reapplied open-ended rather
	// than lifted.
	q := h.queries[1]
	assert.Contains(t, q.Get("permissions"), `"can_send_messages":false`)
	assert.Equal(t, "0", q.Get("until_date"))
}

func TestLiftAndPreserveRestriction_KickedUserLeftAlone(t *testing.T) {
	h := memberHandler("kicked", "")
	client, _ := newTestClient(t, h)

	require.NoError(t, client.LiftAndPreserveRestriction(context.Background(), -100123, 42, 0))
	assert.Equal(t, []string{"getChatMember"}, h.methods)
}

func TestLiftAndPreserveRestriction_SwallowsAdminTargets(t *testing.T) {
	h := memberHandler("administrator", "Bad Request: user is an administrator of the chat")
	client, _ := newTestClient(t, h)

	assert.NoError(t, client.LiftAndPreserveRestriction(context.Background(), -100123, 42, 0))
}

func TestKickChatMember_UsesUnban(t *testing.T) {
	h := &recordingHandler{respond: func(method string, w http.ResponseWriter) {
		writeResult(w, true)
	}}
	client, _ := newTestClient(t, h)

	// A kick without a lasting ban is expressed as unban on a current
	// member, mirroring the remote API.
	require.NoError(t, client.KickChatMember(context.Background(), -100123, 42))
	assert.Equal(t, "unbanChatMember", h.methods[0])
	assert.Empty(t, h.queries[0].Get("only_if_banned"))

	require.NoError(t, client.UnbanChatMember(context.Background(), -100123, 42))
	assert.Equal(t, "unbanChatMember", h.methods[1])
	assert.Equal(t, "true", h.queries[1].Get("only_if_banned"))
}

func TestJoinRequestDecisions(t *testing.T) {
	h := &recordingHandler{respond: func(method string, w http.ResponseWriter) {
		writeResult(w, true)
	}}
	client, _ := newTestClient(t, h)

	require.NoError(t, client.ApproveChatJoinRequest(context.Background(), -100123, 42))
	require.NoError(t, client.DeclineChatJoinRequest(context.Background(), -100123, 43))

	assert.Equal(t, []string{"approveChatJoinRequest", "declineChatJoinRequest"}, h.methods)
}

func TestGetFile(t *testing.T) {
	h := &recordingHandler{respond: func(method string, w http.ResponseWriter) {
		writeResult(w, map[string]interface{}{
			"file_id":        "f1",
			"file_unique_id": "u1",
			"file_path":      "docs/a.txt",
		})
	}}
	client, _ := newTestClient(t, h)

	file, err := client.GetFile(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "docs/a.txt", file.FilePath)
}
