package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"Food_Share/internal/model"
	"Food_Share/internal/pkg"
	"Food_Share/internal/repository/mysql"
	"Food_Share/internal/testutil"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type env struct {
	store    *mysql.Store
	posts    *PostService
	requests *RequestService
	images   *fakeImages
	log      *test.Hook
	now      time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := mysql.NewStore(testutil.NewDB(t))
	logger, hook := test.NewNullLogger()
	images := &fakeImages{}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	e := &env{
		store:    store,
		posts:    NewPostService(store, images, nil, logger),
		requests: NewRequestService(store, nil, logger),
		images:   images,
		log:      hook,
		now:      now,
	}
	e.posts.now = func() time.Time { return e.now }
	e.requests.now = func() time.Time { return e.now }
	return e
}

func (e *env) user(t *testing.T, name, role string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: name + "@example.com", Password: "x", Role: role, Phone: "555-" + name, Address: name + " street"}
	require.NoError(t, e.store.Users.Create(context.Background(), u))
	return u
}

func (e *env) food(t *testing.T, donor *model.User) *model.FoodPost {
	t.Helper()
	p, err := e.posts.CreateFood(context.Background(), donor, FoodInput{
		FoodType:     "Vegetarian",
		FoodItems:    []string{"rice", "dal", "roti"},
		Quantity:     "10 plates",
		CookedTime:   e.now.Add(-time.Hour),
		ExpiryTime:   e.now.Add(4 * time.Hour),
		Location:     "Community hall",
		ContactPhone: "555-0100",
	})
	require.NoError(t, err)
	return p
}

func (e *env) resource(t *testing.T, donor *model.User, files ...ImageUpload) *model.ResourcePost {
	t.Helper()
	p, err := e.posts.CreateResource(context.Background(), donor, ResourceInput{
		Category:     "Books",
		ItemName:     "Textbooks",
		Quantity:     "3",
		Location:     "Library",
		ContactPhone: "555-0101",
	}, files)
	require.NoError(t, err)
	return p
}

func (e *env) outboxTypes(t *testing.T) []string {
	t.Helper()
	var rows []model.OutboxEvent
	require.NoError(t, e.store.DB.Order("id ASC").Find(&rows).Error)
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.EventType)
	}
	return out
}

func requireKind(t *testing.T, err error, kind pkg.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, pkg.KindOf(err), err.Error())
}

// fakeImages records uploads and deletions in memory.
type fakeImages struct {
	mu        sync.Mutex
	uploaded  []string
	deleted   []string
	failAfter int // fail the upload after this many successes; 0 never fails
}

func (f *fakeImages) Upload(_ context.Context, name string, r io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter > 0 && len(f.uploaded) >= f.failAfter {
		return "", errors.New("upload refused")
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	url := "https://res.cloudinary.com/demo/image/upload/resources/" + name + ".jpg"
	f.uploaded = append(f.uploaded, url)
	return url, nil
}

func (f *fakeImages) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return nil
}
