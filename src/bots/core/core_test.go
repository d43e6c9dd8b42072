package core

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/ibots/src/bots/bid"
	"github.com/stake-plus/ibots/src/bots/waiter"
	"github.com/stake-plus/ibots/src/graphql"
	"github.com/stake-plus/ibots/src/state"
)

type sentCall struct {
	op   string
	vars map[string]any
}

type fakeTransport struct {
	mu      sync.Mutex
	userID  string
	calls   []sentCall
	reply   func(op string, vars map[string]any) (map[string]any, error)
	raw     func(query string, vars map[string]any) (*graphql.Response, error)
	appLink string
}

func (f *fakeTransport) UserID() string { return f.userID }

func (f *fakeTransport) Execute(_ context.Context, op *graphql.Operation, vars map[string]any) (*graphql.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sentCall{op: op.Name, vars: vars})
	reply := f.reply
	f.mu.Unlock()
	if reply == nil {
		return &graphql.Response{Data: map[string]any{}}, nil
	}
	data, err := reply(op.Name, vars)
	if err != nil {
		return nil, err
	}
	return &graphql.Response{Data: data}, nil
}

func (f *fakeTransport) ExecuteRaw(_ context.Context, query string, vars map[string]any) (*graphql.Response, error) {
	if f.raw == nil {
		return nil, errors.New("unreachable")
	}
	return f.raw(query, vars)
}

func (f *fakeTransport) AppLink(_ context.Context, id string) (string, error) {
	return f.appLink + id, nil
}

func (f *fakeTransport) sent() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeTransport) count(op string) int {
	n := 0
	for _, c := range f.sent() {
		if c.op == op {
			n++
		}
	}
	return n
}

type countingStore struct {
	mu    sync.Mutex
	docs  map[string][]byte
	saves int
}

func newCountingStore() *countingStore { return &countingStore{docs: map[string][]byte{}} }

func (s *countingStore) Load(_ context.Context, bot string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[bot]
	if !ok {
		return nil, state.ErrNotExist
	}
	return d, nil
}

func (s *countingStore) Save(_ context.Context, bot string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[bot] = append([]byte(nil), data...)
	s.saves++
	return nil
}

func (s *countingStore) Delete(_ context.Context, bot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, bot)
	return nil
}

func (s *countingStore) doc(t *testing.T, bot string) map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out map[string]any
	require.NoError(t, json.Unmarshal(s.docs[bot], &out))
	return out
}

func (s *countingStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func newTestBot(t *testing.T, tr *fakeTransport, store state.Store, w *waiter.Waiter) *Bot {
	t.Helper()
	if tr.userID == "" {
		tr.userID = "7"
	}
	b, err := New(context.Background(), Options{
		Name:      "greeter",
		Class:     "hello",
		Transport: tr,
		Store:     store,
		Waiter:    w,
		WaitSlice: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return b
}

func TestUnsupportedVariableFailsBeforeAnyCall(t *testing.T) {
	tr := &fakeTransport{}
	b := newTestBot(t, tr, newCountingStore(), nil)

	_, err := b.QueryPostList(context.Background(), Vars{"colour": "red"})
	assert.ErrorIs(t, err, graphql.ErrUnsupportedVariable)
	assert.Empty(t, tr.sent())

	_, err = b.Create(context.Background(), "create_like", Vars{"target": "1", "weight": 3})
	assert.ErrorIs(t, err, graphql.ErrUnsupportedVariable)
	assert.Empty(t, tr.sent())

	_, err = b.QueryPostList(context.Background(), Vars{"by_usr": nil})
	assert.ErrorIs(t, err, graphql.ErrUnsupportedVariable)
	assert.Empty(t, tr.sent())
}

func TestUnknownOperationFailsFast(t *testing.T) {
	tr := &fakeTransport{}
	b := newTestBot(t, tr, newCountingStore(), nil)

	_, err := b.List(context.Background(), "query_widget_list", nil, nil)
	assert.ErrorIs(t, err, graphql.ErrUnknownOperation)
	_, err = b.QueryList(context.Background(), bid.EntityType("widget"), nil)
	assert.ErrorIs(t, err, bid.ErrInvalidType)
	assert.Empty(t, tr.sent())
}

func TestListInjectsPageSizeAndUnwrapsHandles(t *testing.T) {
	tr := &fakeTransport{reply: func(op string, vars map[string]any) (map[string]any, error) {
		return map[string]any{"comments": map[string]any{"edges": []any{
			map[string]any{"node": map[string]any{
				"id":          "c1",
				"description": "Hi there",
				"likeCount":   json.Number("0"),
				"user":        map[string]any{"id": "9", "person": map[string]any{"isBot": false}},
				"parent":      map[string]any{"id": "12", "post": map[string]any{"id": "12"}},
			}},
		}}}, nil
	}}
	b := newTestBot(t, tr, newCountingStore(), nil)

	post := bid.MustNew("12", bid.Post)
	recs, err := b.QueryCommentList(context.Background(), Vars{"has_parent": post, "by_user": nil})
	require.NoError(t, err)

	sent := tr.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "query_comment_list", sent[0].op)
	assert.Equal(t, map[string]any{"has_parent": "12", "first": DefaultPageSize}, sent[0].vars)

	require.Len(t, recs, 1)
	assert.Equal(t, bid.MustNew("c1", bid.Comment), recs[0]["bid"])
	assert.Equal(t, bid.MustNew("9", bid.Person), recs[0]["user"])
	assert.Equal(t, post, recs[0]["parent"])
	assert.Equal(t, "Hi there", recs[0].String("description"))

	_, err = b.QueryCommentList(context.Background(), Vars{"first": 5, "has_parent": "bid:post:12"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"has_parent": "12", "first": 5}, tr.sent()[1].vars)
}

func TestNodeUnwrapsIDAndHandlesNull(t *testing.T) {
	tr := &fakeTransport{reply: func(op string, vars map[string]any) (map[string]any, error) {
		if vars["id"] == "404" {
			return map[string]any{"post": nil}, nil
		}
		return map[string]any{"post": map[string]any{
			"id": vars["id"], "title": "Hello, world!",
			"user": map[string]any{"id": "7", "person": map[string]any{"isBot": true}},
		}}, nil
	}}
	b := newTestBot(t, tr, newCountingStore(), nil)

	rec, err := b.QueryPost(context.Background(), bid.MustNew("12", bid.Post))
	require.NoError(t, err)
	assert.Equal(t, "bid:post:12", rec.String("bid"))
	assert.Equal(t, b.BID, rec["user"])

	rec, err = b.QueryPost(context.Background(), "404")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCreateInjectsUserAndReportsRemoteFailureAsFalse(t *testing.T) {
	fail := false
	tr := &fakeTransport{reply: func(op string, vars map[string]any) (map[string]any, error) {
		if fail {
			return nil, &graphql.RemoteError{Operation: op, Errors: []graphql.ErrorItem{{Message: "already liked"}}}
		}
		return map[string]any{"createLike": map[string]any{"ok": true}}, nil
	}}
	b := newTestBot(t, tr, newCountingStore(), nil)

	ok, err := b.CreateLike(context.Background(), bid.MustNew("3", bid.Post))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"user": "7", "target": "3"}, tr.sent()[0].vars)

	fail = true
	ok, err = b.DeleteFollow(context.Background(), "bid:person:4")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = b.Create(context.Background(), "create_like", Vars{"user": "8", "target": "3"})
	assert.ErrorIs(t, err, ErrImplicitUser)
}

func TestCreatePostReturnsHandle(t *testing.T) {
	tr := &fakeTransport{reply: func(op string, vars map[string]any) (map[string]any, error) {
		return map[string]any{"createPost": map[string]any{"post": map[string]any{"id": "55"}}}, nil
	}}
	b := newTestBot(t, tr, newCountingStore(), nil)

	h, err := b.CreatePost(context.Background(), "Hello, world!", "Nice to meet everyone.")
	require.NoError(t, err)
	assert.Equal(t, bid.MustNew("55", bid.Post), h)
	assert.Equal(t, "7", tr.sent()[0].vars["user"])
}

func TestCreateReturningPrefersID(t *testing.T) {
	tr := &fakeTransport{reply: func(op string, vars map[string]any) (map[string]any, error) {
		return map[string]any{"createComment": map[string]any{"comment": map[string]any{
			"createdAt": "2026-01-02T03:04:05Z",
			"id":        "88",
		}}}, nil
	}}
	b := newTestBot(t, tr, newCountingStore(), nil)

	h, err := b.CreateComment(context.Background(), bid.MustNew("55", bid.Post), "Hi")
	require.NoError(t, err)
	assert.Equal(t, bid.MustNew("88", bid.Comment), h)
}

func TestUpdateRequiresIDAndForbidsUser(t *testing.T) {
	tr := &fakeTransport{}
	b := newTestBot(t, tr, newCountingStore(), nil)

	_, err := b.Update(context.Background(), "update_bot", Vars{"description": "x"})
	assert.ErrorIs(t, err, ErrUpdateRequiresID)
	_, err = b.Update(context.Background(), "update_bot", Vars{"id": "7", "user": "7"})
	assert.ErrorIs(t, err, ErrImplicitUser)
	assert.Empty(t, tr.sent())

	ok, err := b.UpdateBot(context.Background(), "I say hello")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"id": "7", "description": "I say hello"}, tr.sent()[0].vars)
}

func TestNewPersistsEmptyStateOnce(t *testing.T) {
	store := newCountingStore()
	b := newTestBot(t, &fakeTransport{}, store, nil)

	assert.Equal(t, 1, store.saveCount())
	assert.Empty(t, store.doc(t, "greeter"))
	assert.Empty(t, b.State)

	require.NoError(t, b.SaveState(context.Background()))
	assert.Equal(t, 1, store.saveCount())
}

func TestSaveTwiceWritesOnce(t *testing.T) {
	store := newCountingStore()
	b := newTestBot(t, &fakeTransport{}, store, nil)

	b.State["post_bid"] = bid.MustNew("12", bid.Post)
	require.NoError(t, b.SaveState(context.Background()))
	require.NoError(t, b.SaveState(context.Background()))
	assert.Equal(t, 2, store.saveCount())
	assert.Equal(t, "bid:post:12", store.doc(t, "greeter")["post_bid"])
}

func TestNewLoadsStoredStateWithoutWriting(t *testing.T) {
	store := newCountingStore()
	store.docs["greeter"] = []byte(`{"post_bid":"bid:post:12","greeted":["9"]}`)

	b := newTestBot(t, &fakeTransport{}, store, nil)
	assert.Equal(t, 0, store.saveCount())
	assert.Equal(t, "bid:post:12", b.State["post_bid"])

	require.NoError(t, b.SaveState(context.Background()))
	assert.Equal(t, 0, store.saveCount())
}

func TestWaitStopSavesStateAndReturnsErrStopped(t *testing.T) {
	store := newCountingStore()
	b := newTestBot(t, &fakeTransport{}, store, nil)

	b.State["counter"] = 3
	b.RequestStop()
	err := b.Wait(context.Background(), WaitOptions{})
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, float64(3), store.doc(t, "greeter")["counter"])
}

func TestWaitTimeout(t *testing.T) {
	b := newTestBot(t, &fakeTransport{}, newCountingStore(), nil)

	start := time.Now()
	require.NoError(t, b.Wait(context.Background(), WaitOptions{Timeout: 30 * time.Millisecond}))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWaitCancelledContextStops(t *testing.T) {
	b := newTestBot(t, &fakeTransport{}, newCountingStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Wait(ctx, WaitOptions{}), ErrStopped)
}

// keepTriggering fires the waiter until the returned stop func is called.
func keepTriggering(w *waiter.Waiter) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				w.Trigger()
			}
		}
	}()
	return func() { close(done) }
}

func notifierTransport(unseen int) *fakeTransport {
	return &fakeTransport{reply: func(op string, vars map[string]any) (map[string]any, error) {
		switch op {
		case "_notifier":
			return map[string]any{"notifier": map[string]any{"unseenCount": json.Number(strconv.Itoa(unseen))}}, nil
		case "_notifier_update":
			return map[string]any{"updateNotifier": map[string]any{"notifier": map[string]any{"unseenCount": json.Number("0")}}}, nil
		}
		return map[string]any{}, nil
	}}
}

func TestWaitReturnsOnUnseenNotifications(t *testing.T) {
	w := waiter.New(nil, 0)
	tr := notifierTransport(2)
	b := newTestBot(t, tr, newCountingStore(), w)

	stop := keepTriggering(w)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, b.Wait(ctx, WaitOptions{}))

	assert.Equal(t, 1, tr.count("_notifier"))
	require.Equal(t, 1, tr.count("_notifier_update"))
	for _, c := range tr.sent() {
		if c.op == "_notifier_update" {
			assert.Equal(t, "7", c.vars["id"])
			assert.NotEmpty(t, c.vars["last_seen"])
		}
	}
}

func TestWaitIgnoresActivityForOtherBots(t *testing.T) {
	w := waiter.New(nil, 0)
	tr := notifierTransport(0)
	b := newTestBot(t, tr, newCountingStore(), w)

	stop := keepTriggering(w)
	defer stop()

	require.NoError(t, b.Wait(context.Background(), WaitOptions{Timeout: 40 * time.Millisecond}))
	assert.GreaterOrEqual(t, tr.count("_notifier"), 1)
	assert.Equal(t, 0, tr.count("_notifier_update"))
}

func TestWaitExitAny(t *testing.T) {
	w := waiter.New(nil, 0)
	tr := notifierTransport(0)
	b := newTestBot(t, tr, newCountingStore(), w)

	stop := keepTriggering(w)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, b.Wait(ctx, WaitOptions{ExitAny: true}))
	assert.Equal(t, 0, tr.count("_notifier"))
}

func TestInteractRecordsInspection(t *testing.T) {
	b := newTestBot(t, &fakeTransport{}, newCountingStore(), nil)
	b.State["post_bid"] = "bid:post:12"

	b.RequestInteract()
	require.NoError(t, b.Wait(context.Background(), WaitOptions{Timeout: 20 * time.Millisecond}))

	got := b.Inspections()
	require.Len(t, got, 1)
	assert.Equal(t, "greeter", got[0].Bot)
	assert.Equal(t, "bid:post:12", got[0].State["post_bid"])
	assert.NotEmpty(t, got[0].ID)

	require.NoError(t, b.Wait(context.Background(), WaitOptions{Timeout: 10 * time.Millisecond}))
	assert.Len(t, b.Inspections(), 1, "flag is cleared after one inspection")
}

func TestStatus(t *testing.T) {
	tr := &fakeTransport{raw: func(query string, vars map[string]any) (*graphql.Response, error) {
		return &graphql.Response{Data: map[string]any{"person": map[string]any{
			"id": "7", "username": "greeter", "name": "Greeter Bot", "balance": json.Number("1234"),
		}}}, nil
	}}
	b := newTestBot(t, tr, newCountingStore(), nil)

	rep := b.Status(context.Background())
	assert.Equal(t, ConnectionConnected, rep.Connection)
	assert.Equal(t, "greeter (Greeter Bot)", rep.Identity)
	assert.Equal(t, "$12.34", rep.Balance)
	assert.Empty(t, tr.sent(), "status bypasses the catalog path")

	tr.raw = nil
	rep = b.Status(context.Background())
	assert.Equal(t, ConnectionDisconnected, rep.Connection)
	assert.Empty(t, rep.Identity)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$0.05", FormatCents(5))
	assert.Equal(t, "$100.00", FormatCents(10000))
	assert.Equal(t, "-$1.50", FormatCents(-150))
}

func TestCommentChain(t *testing.T) {
	comments := map[string]map[string]any{
		"c2": {"id": "c2", "description": "reply", "parent": map[string]any{"id": "c1", "comment": map[string]any{"id": "c1"}}},
		"c1": {"id": "c1", "description": "first", "parent": map[string]any{"id": "p1", "post": map[string]any{"id": "p1"}}},
	}
	tr := &fakeTransport{reply: func(op string, vars map[string]any) (map[string]any, error) {
		switch op {
		case "query_comment":
			return map[string]any{"comment": comments[vars["id"].(string)]}, nil
		case "query_post":
			return map[string]any{"post": map[string]any{"id": "p1", "title": "Hello"}}, nil
		}
		return nil, errors.New("unexpected " + op)
	}}
	b := newTestBot(t, tr, newCountingStore(), nil)

	chain, err := b.CommentChain(context.Background(), "bid:comment:c2")
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, "bid:post:p1", chain[0].String("bid"))
	assert.Equal(t, "bid:comment:c1", chain[1].String("bid"))
	assert.Equal(t, "bid:comment:c2", chain[2].String("bid"))
}

func TestCommentTree(t *testing.T) {
	children := map[string][]any{
		"p1": {map[string]any{"node": map[string]any{"id": "c1", "parent": map[string]any{"id": "p1", "post": map[string]any{"id": "p1"}}}}},
		"c1": {map[string]any{"node": map[string]any{"id": "c2", "parent": map[string]any{"id": "c1", "comment": map[string]any{"id": "c1"}}}}},
	}
	tr := &fakeTransport{reply: func(op string, vars map[string]any) (map[string]any, error) {
		parent, _ := vars["has_parent"].(string)
		return map[string]any{"comments": map[string]any{"edges": children[parent]}}, nil
	}}
	b := newTestBot(t, tr, newCountingStore(), nil)

	tree, err := b.CommentTree(context.Background(), bid.MustNew("p1", bid.Post))
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "bid:comment:c1", tree[0].Comment.String("bid"))
	require.Len(t, tree[0].Replies, 1)
	assert.Equal(t, "bid:comment:c2", tree[0].Replies[0].Comment.String("bid"))
	assert.Empty(t, tree[0].Replies[0].Replies)
}

func TestAppLink(t *testing.T) {
	b := newTestBot(t, &fakeTransport{appLink: "app://"}, newCountingStore(), nil)
	link, err := b.AppLink(context.Background(), bid.MustNew("12", bid.Post))
	require.NoError(t, err)
	assert.Equal(t, "app://12", link)
}

func TestJournalRecordsCalls(t *testing.T) {
	tr := &fakeTransport{reply: func(op string, vars map[string]any) (map[string]any, error) {
		return map[string]any{"createLike": map[string]any{"ok": true}}, nil
	}}
	b := newTestBot(t, tr, newCountingStore(), nil)
	_, err := b.CreateLike(context.Background(), "bid:post:1")
	require.NoError(t, err)

	entries := b.journal.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "create_like", entries[0].Operation)
	assert.Equal(t, "create", entries[0].Kind)
	assert.True(t, entries[0].OK)
}

type scriptedLogic struct {
	started map[string]any
	ran     bool
}

func (l *scriptedLogic) Start(_ context.Context, _ *Bot, args map[string]any) error {
	l.started = args
	return nil
}

func (l *scriptedLogic) Run(ctx context.Context, b *Bot) error {
	l.ran = true
	b.State["ran"] = true
	for {
		if err := b.Wait(ctx, WaitOptions{}); err != nil {
			return err
		}
	}
}

func (l *scriptedLogic) Command(_ context.Context, _ *Bot, instruction string) (any, error) {
	return "ack " + instruction, nil
}

func TestRunStartsLogicAndStopsCleanly(t *testing.T) {
	store := newCountingStore()
	logic := &scriptedLogic{}
	b, err := New(context.Background(), Options{
		Name: "greeter", Class: "scripted", Logic: logic,
		Transport: &fakeTransport{userID: "7"}, Store: store, WaitSlice: 2 * time.Millisecond,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background(), map[string]any{"greeting": "hi"}) }()

	out, err := b.Command(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "ack ping", out)

	b.RequestStop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
	assert.True(t, logic.ran)
	assert.Equal(t, map[string]any{"greeting": "hi"}, logic.started)
	assert.Equal(t, true, store.doc(t, "greeter")["ran"])
}

func TestClassRegistry(t *testing.T) {
	RegisterClass("scripted-test", func() Logic { return &scriptedLogic{} }, "Scripted.Alias")
	l, err := NewLogic("scripted.alias")
	require.NoError(t, err)
	assert.IsType(t, &scriptedLogic{}, l)
	assert.Contains(t, Classes(), "scripted-test")

	_, err = NewLogic("nope")
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestClassRegistryDottedName(t *testing.T) {
	RegisterClass("dotted-test", func() Logic { return &scriptedLogic{} }, "DottedBot")
	l, err := NewLogic("ibots.bots.dotted_bot.DottedBot")
	require.NoError(t, err)
	assert.IsType(t, &scriptedLogic{}, l)
}
