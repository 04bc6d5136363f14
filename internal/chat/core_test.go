package chat_test

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/whismur/whismur/internal/chat"
)

// push records one outbound event captured by the fake delivery layer.
type push struct {
	conn    uuid.UUID
	event   string
	payload any
	exclude []uuid.UUID
}

// pushRecorder implements chat.Delivery and captures everything the core
// tries to send.
type pushRecorder struct {
	delivered  []push
	broadcasts []push
}

func (r *pushRecorder) Deliver(connID uuid.UUID, event string, payload any) {
	r.delivered = append(r.delivered, push{conn: connID, event: event, payload: payload})
}

func (r *pushRecorder) Broadcast(event string, payload any, exclude ...uuid.UUID) {
	r.broadcasts = append(r.broadcasts, push{event: event, payload: payload, exclude: exclude})
}

func (r *pushRecorder) deliveredTo(conn uuid.UUID, event string) []push {
	var matches []push
	for _, p := range r.delivered {
		if p.conn == conn && p.event == event {
			matches = append(matches, p)
		}
	}
	return matches
}

func (r *pushRecorder) reset() {
	r.delivered = nil
	r.broadcasts = nil
}

func newTestCore(t *testing.T) (*chat.Core, *pushRecorder) {
	t.Helper()
	recorder := &pushRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return chat.NewCore(recorder, logger), recorder
}

// signUp opens a connection and registers a fresh user on it.
func signUp(t *testing.T, core *chat.Core, name, secret string) uuid.UUID {
	t.Helper()
	conn := uuid.New()
	core.Connect(conn)
	displayName, err := core.Authenticate(conn, name, secret, true)
	require.NoError(t, err)
	require.Equal(t, name, displayName)
	return conn
}

func TestSignupStartDMAndFirstMessage(t *testing.T) {
	req := require.New(t)
	core, recorder := newTestCore(t)

	alice := signUp(t, core, "alice", "pass1")
	bob := signUp(t, core, "bob", "pass1")

	dm, err := core.StartDM(bob, "alice")
	req.NoError(err)
	req.Equal("alice:bob", dm.Key)
	req.Equal("alice", dm.Target)
	req.Empty(dm.Messages)

	// Alice opens her side too, so she is a live delivery target.
	dmAlice, err := core.StartDM(alice, "bob")
	req.NoError(err)
	req.Equal("alice:bob", dmAlice.Key)

	msg, err := core.SendMessage(bob, "hi")
	req.NoError(err)
	req.Equal(int64(1), msg.ID)
	req.Equal("bob", msg.From)
	req.Equal("hi", msg.Text)
	req.Equal("alice:bob", msg.ConversationKey)
	req.Equal(1, msg.ViewerCount())
	req.Equal(1, msg.SeenCount)

	req.Len(recorder.deliveredTo(alice, chat.EventPrivateMessage), 1)
	req.Len(recorder.deliveredTo(bob, chat.EventPrivateMessage), 1)
}

func TestSignupTakenHandle(t *testing.T) {
	core, _ := newTestCore(t)

	signUp(t, core, "bob", "pass1")

	conn := uuid.New()
	core.Connect(conn)
	_, err := core.Authenticate(conn, "bob", "pass2", true)
	require.ErrorIs(t, err, chat.ErrUsernameTaken)
}

func TestStartDMFailures(t *testing.T) {
	req := require.New(t)
	core, _ := newTestCore(t)

	bob := signUp(t, core, "bob", "pass1")

	_, err := core.StartDM(bob, "bob")
	req.ErrorIs(err, chat.ErrSelfDM)

	_, err = core.StartDM(bob, "nobody")
	req.ErrorIs(err, chat.ErrUserNotFound)
}

func TestSeenCountAndIdempotence(t *testing.T) {
	req := require.New(t)
	core, recorder := newTestCore(t)

	alice := signUp(t, core, "alice", "pass1")
	bob := signUp(t, core, "bob", "pass1")

	_, err := core.StartDM(bob, "alice")
	req.NoError(err)
	msg, err := core.SendMessage(bob, "hi")
	req.NoError(err)

	recorder.reset()
	core.MarkSeen(alice, msg.ID)

	req.Len(recorder.broadcasts, 1)
	req.Equal(chat.EventMessageSeenUpdate, recorder.broadcasts[0].event)
	req.Equal(chat.SeenUpdate{MessageID: msg.ID, Count: 2}, recorder.broadcasts[0].payload)

	// Re-marking by the same viewer must not grow the count.
	core.MarkSeen(alice, msg.ID)
	req.Equal(chat.SeenUpdate{MessageID: msg.ID, Count: 2}, recorder.broadcasts[1].payload)
	req.Equal(2, msg.ViewerCount())
}

func TestHistoryCarriesSeenCounts(t *testing.T) {
	req := require.New(t)
	core, _ := newTestCore(t)

	alice := signUp(t, core, "alice", "pass1")
	bob := signUp(t, core, "bob", "pass1")

	_, err := core.StartDM(bob, "alice")
	req.NoError(err)
	msg, err := core.SendMessage(bob, "hi")
	req.NoError(err)
	core.MarkSeen(alice, msg.ID)

	// A client reopening the conversation can reconstruct read state
	// from the history alone.
	dm, err := core.StartDM(alice, "bob")
	req.NoError(err)
	req.Len(dm.Messages, 1)
	req.Equal(2, dm.Messages[0].SeenCount)
}

func TestMarkSeenNoOps(t *testing.T) {
	core, recorder := newTestCore(t)

	alice := signUp(t, core, "alice", "pass1")

	// Unknown message id.
	core.MarkSeen(alice, 42)

	// Unauthenticated connection.
	stranger := uuid.New()
	core.Connect(stranger)
	core.MarkSeen(stranger, 1)

	require.Empty(t, recorder.broadcasts)
}

func TestMessageIDsMonotonicAcrossConversations(t *testing.T) {
	req := require.New(t)
	core, _ := newTestCore(t)

	alice := signUp(t, core, "alice", "pass1")
	bob := signUp(t, core, "bob", "pass1")
	carol := signUp(t, core, "carol", "pass1")

	var lastID int64
	for i := 0; i < 3; i++ {
		_, err := core.StartDM(alice, "bob")
		req.NoError(err)
		msg, err := core.SendMessage(alice, fmt.Sprintf("to bob %d", i))
		req.NoError(err)
		req.Greater(msg.ID, lastID)
		lastID = msg.ID

		_, err = core.StartDM(alice, "carol")
		req.NoError(err)
		msg, err = core.SendMessage(alice, fmt.Sprintf("to carol %d", i))
		req.NoError(err)
		req.Greater(msg.ID, lastID)
		lastID = msg.ID

		_, err = core.StartDM(bob, "carol")
		req.NoError(err)
		msg, err = core.SendMessage(bob, fmt.Sprintf("bob to carol %d", i))
		req.NoError(err)
		req.Greater(msg.ID, lastID)
		lastID = msg.ID
	}

	// A third sender continues the same global sequence.
	_, err := core.StartDM(carol, "alice")
	req.NoError(err)
	msg, err := core.SendMessage(carol, "carol to alice")
	req.NoError(err)
	req.Greater(msg.ID, lastID)
}

func TestEchoWhenRecipientOffline(t *testing.T) {
	req := require.New(t)
	core, recorder := newTestCore(t)

	alice := signUp(t, core, "alice", "pass1")
	bobConn := signUp(t, core, "bob", "pass1")
	core.Disconnect(bobConn)

	_, err := core.StartDM(alice, "bob")
	req.NoError(err)

	recorder.reset()
	msg, err := core.SendMessage(alice, "you there?")
	req.NoError(err)

	// Echo to the sender, nothing to the offline recipient.
	req.Len(recorder.delivered, 1)
	req.Equal(alice, recorder.delivered[0].conn)

	// The message is durable: bob finds it when he next opens the DM.
	bobAgain := uuid.New()
	core.Connect(bobAgain)
	_, err = core.Authenticate(bobAgain, "bob", "pass1", false)
	req.NoError(err)

	dm, err := core.StartDM(bobAgain, "alice")
	req.NoError(err)
	req.Len(dm.Messages, 1)
	req.Equal(msg.ID, dm.Messages[0].ID)
}

func TestSendMessageSilentDropVariants(t *testing.T) {
	req := require.New(t)
	core, recorder := newTestCore(t)

	alice := signUp(t, core, "alice", "pass1")
	recorder.reset()

	_, err := core.SendMessage(alice, "hello?")
	req.ErrorIs(err, chat.ErrNoActiveConversation)

	signUp(t, core, "bob", "pass1")
	_, err = core.StartDM(alice, "bob")
	req.NoError(err)
	recorder.reset()

	_, err = core.SendMessage(alice, "   \t  ")
	req.ErrorIs(err, chat.ErrEmptyText)
	req.Empty(recorder.delivered)
}

func TestTypingBroadcastExcludesSender(t *testing.T) {
	req := require.New(t)
	core, recorder := newTestCore(t)

	alice := signUp(t, core, "alice", "pass1")
	recorder.reset()

	core.Typing(alice, true)
	req.Len(recorder.broadcasts, 1)
	req.Equal(chat.EventTyping, recorder.broadcasts[0].event)
	req.Equal(chat.TypingUpdate{User: "alice", IsTyping: true}, recorder.broadcasts[0].payload)
	req.Equal([]uuid.UUID{alice}, recorder.broadcasts[0].exclude)

	// Unauthenticated connections produce nothing.
	stranger := uuid.New()
	core.Connect(stranger)
	core.Typing(stranger, true)
	req.Len(recorder.broadcasts, 1)
}

func TestRenameKeepsExistingConversationKeys(t *testing.T) {
	req := require.New(t)
	core, recorder := newTestCore(t)

	alice := signUp(t, core, "alice", "pass1")
	bob := signUp(t, core, "bob", "pass1")
	carol := signUp(t, core, "carol", "pass1")

	_, err := core.StartDM(bob, "alice")
	req.NoError(err)
	_, err = core.SendMessage(bob, "before rename")
	req.NoError(err)

	recorder.reset()
	newName, err := core.Rename(bob, "Wanderer")
	req.NoError(err)
	req.Equal("Wanderer", newName)

	pushes := recorder.deliveredTo(bob, chat.EventYourDisplayName)
	req.Len(pushes, 1)
	req.Equal(chat.NameUpdate{Name: "Wanderer"}, pushes[0].payload)

	// Typing the old name still resolves the user through the reverse
	// index, but the key is minted under his current name: the
	// pre-rename thread is left behind under its old key.
	dm, err := core.StartDM(alice, "bob")
	req.NoError(err)
	req.Equal("Wanderer:alice", dm.Key)
	req.Empty(dm.Messages)

	// Bob's own context still points at the old thread, which keeps
	// accepting messages under its original key.
	msg, err := core.SendMessage(bob, "after rename")
	req.NoError(err)
	req.Equal("alice:bob", msg.ConversationKey)

	// A conversation with a new peer is minted under the new name.
	dm, err = core.StartDM(carol, "Wanderer")
	req.NoError(err)
	req.Equal("Wanderer:carol", dm.Key)
}

func TestReauthenticateReleasesPreviousIdentity(t *testing.T) {
	req := require.New(t)
	core, recorder := newTestCore(t)

	conn := signUp(t, core, "alice", "pass1")
	carol := signUp(t, core, "carol", "pass1")

	// The same connection signs up again as a different user. Traffic
	// addressed to the first identity must not reach it anymore.
	_, err := core.Authenticate(conn, "bob", "pass1", true)
	req.NoError(err)

	_, err = core.StartDM(carol, "alice")
	req.NoError(err)
	recorder.reset()
	_, err = core.SendMessage(carol, "hi alice")
	req.NoError(err)

	req.Empty(recorder.deliveredTo(conn, chat.EventPrivateMessage))
	req.Len(recorder.deliveredTo(carol, chat.EventPrivateMessage), 1)
}

func TestDisplacedLoginRedirectsDelivery(t *testing.T) {
	req := require.New(t)
	core, recorder := newTestCore(t)

	alice := signUp(t, core, "alice", "pass1")
	bobOld := signUp(t, core, "bob", "pass1")

	// Bob authenticates again from a second connection; it becomes the
	// delivery target.
	bobNew := uuid.New()
	core.Connect(bobNew)
	_, err := core.Authenticate(bobNew, "bob", "pass1", false)
	req.NoError(err)

	_, err = core.StartDM(alice, "bob")
	req.NoError(err)
	recorder.reset()
	_, err = core.SendMessage(alice, "hi")
	req.NoError(err)

	req.Len(recorder.deliveredTo(bobNew, chat.EventPrivateMessage), 1)
	req.Empty(recorder.deliveredTo(bobOld, chat.EventPrivateMessage))
}
