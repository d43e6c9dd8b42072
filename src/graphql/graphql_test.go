package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsComplete(t *testing.T) {
	cat, err := DefaultCatalog()
	require.NoError(t, err)
	ns := cat.Namespace(DefaultNamespace)

	want := []string{"_notifier", "_notifier_update", "update_bot",
		"create_post", "create_comment", "create_donation", "create_transaction",
		"create_like", "delete_like", "create_follow", "delete_follow"}
	for _, typ := range []string{"user", "person", "bot", "nonprofit", "donation", "transaction", "news", "event", "post", "comment"} {
		want = append(want, "query_"+typ, "query_"+typ+"_list")
	}
	for _, name := range want {
		op, err := ns.Lookup(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, op.OperationName, name)
	}
	assert.Len(t, ns.Names(), len(want))

	list, err := ns.Lookup("query_post_list")
	require.NoError(t, err)
	assert.Equal(t, []string{"by_user", "first", "order_by", "search"}, list.DeclaredVariables())

	upd, err := ns.Lookup("_notifier_update")
	require.NoError(t, err)
	assert.True(t, upd.Accepts("last_seen"))
	assert.False(t, upd.Accepts("lastSeen"))
}

func TestLookupFailsFast(t *testing.T) {
	cat, err := DefaultCatalog()
	require.NoError(t, err)

	_, err = cat.Namespace(DefaultNamespace).Lookup("query_widget_list")
	assert.ErrorIs(t, err, ErrUnknownOperation)

	_, err = cat.Namespace("game").Lookup("query_post_list")
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestLoadCatalogRejectsMultipleDefinitions(t *testing.T) {
	fsys := fstest.MapFS{
		"ops/bot/two.graphql": {Data: []byte("query A { a } query B { b }")},
	}
	_, err := LoadCatalog(fsys, "ops")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	op, err := ParseOperation("x", `query X($byUser: ID, $first: Int) { posts(byUser: $byUser, first: $first) { edges { node { id } } } }`)
	require.NoError(t, err)

	assert.NoError(t, op.Validate(map[string]any{"by_user": "1", "first": 25}))
	err = op.Validate(map[string]any{"by_user": "1", "color": "red"})
	assert.ErrorIs(t, err, ErrUnsupportedVariable)
	assert.Contains(t, err.Error(), "color")

	assert.Equal(t, map[string]any{"byUser": "1"}, op.wireVariables(map[string]any{"by_user": "1"}))
}

type fakeRemote struct {
	srv      *httptest.Server
	requests atomic.Int32
	lastBody atomic.Value
}

func newFakeRemote(t *testing.T, userID any, reply func(body map[string]any) (int, any)) *fakeRemote {
	t.Helper()
	f := &fakeRemote{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ibis/login-pass/", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("password") != "secret" {
			_ = json.NewEncoder(w).Encode(map[string]any{"user_id": nil})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "s1", Path: "/"})
		_ = json.NewEncoder(w).Encode(map[string]any{"user_id": userID})
	})
	mux.HandleFunc("/graphql/", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		if _, err := r.Cookie("sessionid"); err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastBody.Store(body)
		status, out := reply(body)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/tracker/wait/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("42"))
	})
	mux.HandleFunc("/notifications/app_link/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("app://" + r.URL.Path[len("/notifications/app_link/"):]))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func TestLogin(t *testing.T) {
	remote := newFakeRemote(t, 17, nil)

	c, err := Login(context.Background(), Config{Endpoint: remote.srv.URL, Username: "hello", Password: "secret", MaxRPS: -1})
	require.NoError(t, err)
	assert.Equal(t, "17", c.UserID())

	_, err = Login(context.Background(), Config{Endpoint: remote.srv.URL, Username: "hello", Password: "wrong"})
	assert.ErrorIs(t, err, ErrAuthenticate)
}

func TestExecute(t *testing.T) {
	remote := newFakeRemote(t, "5", func(body map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"data": map[string]any{"posts": map[string]any{"edges": []any{}}}}
	})
	c, err := Login(context.Background(), Config{Endpoint: remote.srv.URL, Username: "u", Password: "secret", MaxRPS: -1})
	require.NoError(t, err)

	cat, err := DefaultCatalog()
	require.NoError(t, err)
	op, err := cat.Namespace(DefaultNamespace).Lookup("query_post_list")
	require.NoError(t, err)

	resp, err := c.Execute(context.Background(), op, map[string]any{"by_user": "5", "first": 25})
	require.NoError(t, err)
	assert.Contains(t, resp.Data, "posts")

	sent := remote.lastBody.Load().(map[string]any)
	assert.Equal(t, "QueryPostList", sent["operationName"])
	assert.Equal(t, map[string]any{"byUser": "5", "first": float64(25)}, sent["variables"])
}

func TestExecuteRejectsUnknownVariablesWithoutRequest(t *testing.T) {
	remote := newFakeRemote(t, "5", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"data": map[string]any{}}
	})
	c, err := Login(context.Background(), Config{Endpoint: remote.srv.URL, Username: "u", Password: "secret", MaxRPS: -1})
	require.NoError(t, err)
	cat, _ := DefaultCatalog()
	op, _ := cat.Namespace(DefaultNamespace).Lookup("query_post_list")

	_, err = c.Execute(context.Background(), op, map[string]any{"colour": "red"})
	assert.ErrorIs(t, err, ErrUnsupportedVariable)
	assert.Equal(t, int32(0), remote.requests.Load())
}

func TestExecuteErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	remote := newFakeRemote(t, "5", func(map[string]any) (int, any) {
		if s := int(status.Load()); s != http.StatusOK {
			return s, map[string]any{"detail": "boom"}
		}
		return http.StatusOK, map[string]any{"data": nil, "errors": []any{map[string]any{"message": "already liked"}}}
	})
	c, err := Login(context.Background(), Config{Endpoint: remote.srv.URL, Username: "u", Password: "secret", MaxRPS: -1})
	require.NoError(t, err)

	_, err = c.ExecuteRaw(context.Background(), "mutation { x }", nil)
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "already liked", remoteErr.Errors[0].Message)
	assert.True(t, IsRemote(err))

	status.Store(http.StatusBadGateway)
	_, err = c.ExecuteRaw(context.Background(), "query { x }", nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.Status)
}

func TestTrackerAndAppLink(t *testing.T) {
	remote := newFakeRemote(t, "5", nil)
	body, err := NewTracker(remote.srv.URL, 0).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", body)

	c, err := Login(context.Background(), Config{Endpoint: remote.srv.URL, Username: "u", Password: "secret"})
	require.NoError(t, err)
	link, err := c.AppLink(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "app://abc", link)
}
