package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"Food_Share/internal/model"
	"Food_Share/internal/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateRequest_Pending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	donor := e.user(t, "dora", model.RoleDonor)
	receiver := e.user(t, "rick", model.RoleReceiver)
	post := e.food(t, donor)

	req, err := e.requests.CreateRequest(ctx, receiver, CreateRequestInput{
		Target:        post.Ref(),
		Message:       "for the shelter",
		SelectedItems: []string{"rice"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, req.Status)
	assert.Equal(t, receiver.ID, req.ReceiverID)
	assert.Equal(t, post.Ref(), req.Target)

	stored, err := e.store.Posts.Find(ctx, post.Ref())
	require.NoError(t, err)
	assert.Equal(t, model.PostAvailable, stored.CurrentStatus(), "creating a request does not claim")
	assert.Equal(t, []string{model.EventRequestCreated}, e.outboxTypes(t))
}

func TestCreateRequest_Twice(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	donor := e.user(t, "dora", model.RoleDonor)
	receiver := e.user(t, "rick", model.RoleReceiver)
	post := e.food(t, donor)

	_, err := e.requests.CreateRequest(ctx, receiver, CreateRequestInput{Target: post.Ref()})
	require.NoError(t, err)
	_, err = e.requests.CreateRequest(ctx, receiver, CreateRequestInput{Target: post.Ref()})
	requireKind(t, err, pkg.KindConflict)

	mine, err := e.requests.ListMyRequests(ctx, receiver)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Equal(t, []string{model.EventRequestCreated}, e.outboxTypes(t), "the failed insert leaves no event")
}

func TestCreateRequest_Rules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	donor := e.user(t, "dora", model.RoleDonor)
	receiver := e.user(t, "rick", model.RoleReceiver)
	food := e.food(t, donor)
	res := e.resource(t, donor)

	_, err := e.requests.CreateRequest(ctx, donor, CreateRequestInput{Target: food.Ref()})
	requireKind(t, err, pkg.KindUnauthorized)

	_, err = e.requests.CreateRequest(ctx, nil, CreateRequestInput{Target: food.Ref()})
	requireKind(t, err, pkg.KindUnauthorized)

	_, err = e.requests.CreateRequest(ctx, receiver, CreateRequestInput{Target: model.PostRef{Kind: "car", ID: 1}})
	requireKind(t, err, pkg.KindValidation)

	_, err = e.requests.CreateRequest(ctx, receiver, CreateRequestInput{Target: model.PostRef{Kind: model.KindFood, ID: 999}})
	requireKind(t, err, pkg.KindNotFound)

	_, err = e.requests.CreateRequest(ctx, receiver, CreateRequestInput{Target: res.Ref(), SelectedItems: []string{"rice"}})
	requireKind(t, err, pkg.KindValidation)
	assert.Equal(t, []string{"selectedItems"}, pkg.FieldsOf(err))

	_, err = e.requests.CreateRequest(ctx, receiver, CreateRequestInput{Target: food.Ref(), SelectedItems: []string{"cake"}})
	requireKind(t, err, pkg.KindValidation)

	_, err = e.requests.CreateRequest(ctx, receiver, CreateRequestInput{Target: res.Ref(), Message: "please"})
	assert.NoError(t, err)
}

func TestCreateRequest_ExpiredFood(t *testing.T) {
	e := newEnv(t)
	donor := e.user(t, "dora", model.RoleDonor)
	receiver := e.user(t, "rick", model.RoleReceiver)
	post := e.food(t, donor)

	e.now = e.now.Add(5 * time.Hour)
	_, err := e.requests.CreateRequest(context.Background(), receiver, CreateRequestInput{Target: post.Ref()})
	requireKind(t, err, pkg.KindConflict)
}

// D posts P; R1 and R2 request it; D accepts Q1; accepting Q2 must fail.
func TestResolveRequest_AcceptClaimsAndBlocksSecondAccept(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	donor := e.user(t, "dora", model.RoleDonor)
	r1 := e.user(t, "rick", model.RoleReceiver)
	r2 := e.user(t, "rose", model.RoleReceiver)
	post := e.food(t, donor)

	q1, err := e.requests.CreateRequest(ctx, r1, CreateRequestInput{Target: post.Ref()})
	require.NoError(t, err)
	q2, err := e.requests.CreateRequest(ctx, r2, CreateRequestInput{Target: post.Ref()})
	require.NoError(t, err)

	got, err := e.requests.ResolveRequest(ctx, donor, q1.ID, model.RequestAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.RequestAccepted, got.Status)

	stored, err := e.store.Posts.Find(ctx, post.Ref())
	require.NoError(t, err)
	assert.Equal(t, model.PostClaimed, stored.CurrentStatus())

	// the competing request was closed in the same transaction
	other, err := e.store.Requests.FindByID(ctx, q2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, other.Status)

	_, err = e.requests.ResolveRequest(ctx, donor, q2.ID, model.RequestAccepted)
	requireKind(t, err, pkg.KindConflict)

	assert.Equal(t, []string{
		model.EventRequestCreated,
		model.EventRequestCreated,
		model.EventRequestResolved,
		model.EventPostClaimed,
		model.EventRequestResolved,
	}, e.outboxTypes(t))
}

func TestResolveRequest_RejectLeavesPost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	donor := e.user(t, "dora", model.RoleDonor)
	receiver := e.user(t, "rick", model.RoleReceiver)
	post := e.resource(t, donor)

	q, err := e.requests.CreateRequest(ctx, receiver, CreateRequestInput{Target: post.Ref()})
	require.NoError(t, err)

	got, err := e.requests.ResolveRequest(ctx, donor, q.ID, model.RequestRejected)
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, got.Status)

	stored, err := e.store.Posts.Find(ctx, post.Ref())
	require.NoError(t, err)
	assert.Equal(t, model.PostAvailable, stored.CurrentStatus())

	// a resolved request is terminal either way
	_, err = e.requests.ResolveRequest(ctx, donor, q.ID, model.RequestAccepted)
	requireKind(t, err, pkg.KindConflict)
	_, err = e.requests.ResolveRequest(ctx, donor, q.ID, model.RequestRejected)
	requireKind(t, err, pkg.KindConflict)

	stored, err = e.store.Posts.Find(ctx, post.Ref())
	require.NoError(t, err)
	assert.Equal(t, model.PostAvailable, stored.CurrentStatus())
}

func TestResolveRequest_Guards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	donor := e.user(t, "dora", model.RoleDonor)
	stranger := e.user(t, "dan", model.RoleDonor)
	receiver := e.user(t, "rick", model.RoleReceiver)
	post := e.food(t, donor)
	q, err := e.requests.CreateRequest(ctx, receiver, CreateRequestInput{Target: post.Ref()})
	require.NoError(t, err)

	_, err = e.requests.ResolveRequest(ctx, donor, q.ID, model.RequestPending)
	requireKind(t, err, pkg.KindValidation)

	_, err = e.requests.ResolveRequest(ctx, donor, q.ID, "Maybe")
	requireKind(t, err, pkg.KindValidation)

	_, err = e.requests.ResolveRequest(ctx, donor, 12345, model.RequestAccepted)
	requireKind(t, err, pkg.KindNotFound)

	_, err = e.requests.ResolveRequest(ctx, stranger, q.ID, model.RequestAccepted)
	requireKind(t, err, pkg.KindUnauthorized)

	_, err = e.requests.ResolveRequest(ctx, receiver, q.ID, model.RequestAccepted)
	requireKind(t, err, pkg.KindUnauthorized)

	stored, err := e.store.Requests.FindByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, stored.Status, "failed attempts change nothing")
}

func TestResolveRequest_MissingPost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	donor := e.user(t, "dora", model.RoleDonor)
	receiver := e.user(t, "rick", model.RoleReceiver)

	orphan := &model.Request{ReceiverID: receiver.ID, Target: model.PostRef{Kind: model.KindFood, ID: 77}, Status: model.RequestPending}
	require.NoError(t, e.store.Requests.Create(ctx, orphan))

	_, err := e.requests.ResolveRequest(ctx, donor, orphan.ID, model.RequestAccepted)
	requireKind(t, err, pkg.KindNotFound)
}

func TestListRequests_Views(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	donor := e.user(t, "dora", model.RoleDonor)
	other := e.user(t, "dan", model.RoleDonor)
	receiver := e.user(t, "rick", model.RoleReceiver)
	food := e.food(t, donor)
	res := e.resource(t, donor)
	foreign := e.food(t, other)

	for _, ref := range []model.PostRef{food.Ref(), res.Ref(), foreign.Ref()} {
		_, err := e.requests.CreateRequest(ctx, receiver, CreateRequestInput{Target: ref})
		require.NoError(t, err)
	}

	mine, err := e.requests.ListMyRequests(ctx, receiver)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	for _, v := range mine {
		assert.True(t, (v.FoodPost == nil) != (v.ResourcePost == nil), "exactly one post is attached")
		assert.Nil(t, v.Receiver)
	}

	incoming, err := e.requests.ListDonorRequests(ctx, donor)
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	for _, v := range incoming {
		require.NotNil(t, v.Receiver)
		assert.Equal(t, "rick", v.Receiver.Name)
		assert.Equal(t, "555-rick", v.Receiver.Phone)
		assert.Equal(t, "rick street", v.Receiver.Address)

		body, err := json.Marshal(v)
		require.NoError(t, err)
		assert.NotContains(t, string(body), "rick@example.com")
		assert.NotContains(t, string(body), `"role"`)
	}

	_, err = e.requests.ListMyRequests(ctx, donor)
	requireKind(t, err, pkg.KindUnauthorized)
	_, err = e.requests.ListDonorRequests(ctx, receiver)
	requireKind(t, err, pkg.KindUnauthorized)
}

// lockedTables records the table of every SELECT carrying a locking clause.
func lockedTables(t *testing.T, db *gorm.DB) func() []string {
	t.Helper()
	var (
		mu     sync.Mutex
		tables []string
	)
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:record_locks", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Clauses["FOR"]; ok {
			mu.Lock()
			tables = append(tables, tx.Statement.Table)
			mu.Unlock()
		}
	}))
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		out := tables
		tables = nil
		return out
	}
}

func TestWritesLockThePostRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	donor := e.user(t, "dora", model.RoleDonor)
	receiver := e.user(t, "rick", model.RoleReceiver)
	take := lockedTables(t, e.store.DB)

	post := e.food(t, donor)
	assert.Empty(t, take())

	req, err := e.requests.CreateRequest(ctx, receiver, CreateRequestInput{Target: post.Ref()})
	require.NoError(t, err)
	assert.Equal(t, []string{"food_posts"}, take())

	_, err = e.requests.ResolveRequest(ctx, donor, req.ID, model.RequestAccepted)
	require.NoError(t, err)
	assert.Equal(t, []string{"food_posts", "requests"}, take(), "post lock first, then the pending scan")

	other := e.resource(t, donor)
	take()
	require.NoError(t, e.posts.DeletePost(ctx, donor, other.Ref()))
	assert.Equal(t, []string{"resource_posts", "requests"}, take())

	_, err = e.store.Posts.Find(ctx, post.Ref())
	require.NoError(t, err)
	assert.Empty(t, take(), "plain reads stay unlocked")
}
