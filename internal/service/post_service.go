package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"Food_Share/internal/metrics"
	"Food_Share/internal/model"
	"Food_Share/internal/pkg"
	"Food_Share/internal/repository/mysql"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const MaxResourceImages = 5

var imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// ImageStore holds resource images and hands back public URLs.
type ImageStore interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// ImageUpload is one file attached to a resource post.
type ImageUpload struct {
	Filename string
	Reader   io.Reader
}

type FoodInput struct {
	FoodType     string    `json:"foodType" validate:"required"`
	FoodItems    []string  `json:"foodItems" validate:"required,min=1,dive,required"`
	Quantity     string    `json:"quantity" validate:"required"`
	CookedTime   time.Time `json:"cookedTime" validate:"required"`
	ExpiryTime   time.Time `json:"expiryTime" validate:"required,gtfield=CookedTime"`
	Location     string    `json:"location" validate:"required"`
	ContactPhone string    `json:"contactPhone" validate:"required"`
}

type ResourceInput struct {
	Category     string `form:"category" json:"category" validate:"required,oneof=Clothes Toys Books Others"`
	ItemName     string `form:"itemName" json:"itemName" validate:"required"`
	Description  string `form:"description" json:"description"`
	Quantity     string `form:"quantity" json:"quantity" validate:"required"`
	Location     string `form:"location" json:"location" validate:"required"`
	ContactPhone string `form:"contactPhone" json:"contactPhone" validate:"required"`
}

type PostService struct {
	store   *mysql.Store
	images  ImageStore
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewPostService(store *mysql.Store, images ImageStore, m *metrics.Metrics, log logrus.FieldLogger) *PostService {
	return &PostService{
		store:   store,
		images:  images,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

func (s *PostService) CreateFood(ctx context.Context, actor *model.User, in FoodInput) (*model.FoodPost, error) {
	if !actor.IsDonor() {
		return nil, pkg.Unauthorized("only donors can create posts")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	post := &model.FoodPost{
		DonorID:      actor.ID,
		FoodType:     in.FoodType,
		FoodItems:    in.FoodItems,
		Quantity:     in.Quantity,
		CookedTime:   in.CookedTime.UTC(),
		ExpiryTime:   in.ExpiryTime.UTC(),
		Location:     in.Location,
		ContactPhone: in.ContactPhone,
		Status:       model.PostAvailable,
	}
	if err := s.store.Posts.CreateFood(ctx, post); err != nil {
		return nil, pkg.Internal("create food post", err)
	}
	s.metrics.PostCreated(string(model.KindFood))
	return post, nil
}

// CreateResource uploads the images and inserts the post. Either all of it
// lands or the uploaded images are removed again.
func (s *PostService) CreateResource(ctx context.Context, actor *model.User, in ResourceInput, files []ImageUpload) (*model.ResourcePost, error) {
	if !actor.IsDonor() {
		return nil, pkg.Unauthorized("only donors can create posts")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := checkImages(files); err != nil {
		return nil, err
	}
	if len(files) > 0 && s.images == nil {
		return nil, pkg.Internal("upload images", errors.New("image store not configured"))
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		name := "resource-" + uuid.NewString()
		url, err := s.images.Upload(ctx, name, f.Reader)
		if err != nil {
			s.removeImages(ctx, urls)
			return nil, pkg.Internal("upload image", err)
		}
		urls = append(urls, url)
	}

	post := &model.ResourcePost{
		DonorID:      actor.ID,
		Category:     in.Category,
		ItemName:     in.ItemName,
		Description:  in.Description,
		Quantity:     in.Quantity,
		Location:     in.Location,
		ContactPhone: in.ContactPhone,
		Images:       urls,
		Status:       model.PostAvailable,
	}
	if err := s.store.Posts.CreateResource(ctx, post); err != nil {
		s.removeImages(ctx, urls)
		return nil, pkg.Internal("create resource post", err)
	}
	s.metrics.PostCreated(string(model.KindResource))
	return post, nil
}

func checkImages(files []ImageUpload) error {
	if len(files) > MaxResourceImages {
		return pkg.Validation(fmt.Sprintf("at most %d images are allowed", MaxResourceImages), "images")
	}
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Filename))
		if !slices.Contains(imageExts, ext) || f.Reader == nil {
			return pkg.Validation("unsupported image file "+f.Filename, "images")
		}
	}
	return nil
}

func (s *PostService) removeImages(ctx context.Context, urls []string) {
	if s.images == nil {
		return
	}
	for _, u := range urls {
		if err := s.images.Delete(ctx, u); err != nil {
			s.log.WithError(err).WithField("url", u).Warn("remove image failed")
		}
	}
}

// DeletePost removes an Available post owned by actor. Its Pending requests
// are rejected in the same transaction; Claimed posts stay.
func (s *PostService) DeletePost(ctx context.Context, actor *model.User, ref model.PostRef) error {
	if !ref.Kind.Valid() || ref.ID == 0 {
		return pkg.Validation("invalid post id", "id")
	}

	var deleted model.Post
	err := s.store.InTx(ctx, func(tx *mysql.Store) error {
		post, err := lockPost(ctx, tx, ref, "post not found")
		if err != nil {
			return err
		}
		if actor == nil || post.OwnerID() != actor.ID {
			return pkg.Unauthorized("not authorized")
		}
		if post.CurrentStatus() != model.PostAvailable {
			return pkg.Conflict("claimed posts cannot be deleted")
		}
		ok, err := tx.Posts.DeleteAvailable(ctx, ref)
		if err != nil {
			return pkg.Internal("delete post", err)
		}
		if !ok {
			return pkg.Conflict("claimed posts cannot be deleted")
		}
		rejected, err := tx.Requests.RejectPendingForPost(ctx, ref, 0)
		if err != nil {
			return pkg.Internal("reject pending requests", err)
		}
		for _, id := range rejected {
			if err = tx.Outbox.Insert(ctx, model.EventRequestResolved, model.EventPayload{
				RequestID: id,
				Post:      ref,
				DonorID:   actor.ID,
				Status:    model.RequestRejected,
			}); err != nil {
				return pkg.Internal("write outbox", err)
			}
		}
		if err = tx.Outbox.Insert(ctx, model.EventPostDeleted, model.EventPayload{Post: ref, DonorID: actor.ID}); err != nil {
			return pkg.Internal("write outbox", err)
		}
		deleted = post
		return nil
	})
	if err != nil {
		return err
	}

	if rp, ok := deleted.(*model.ResourcePost); ok {
		s.removeImages(ctx, rp.Images)
	}
	s.log.WithFields(logrus.Fields{"post": ref.String(), "donor_id": actor.ID}).Info("post deleted")
	return nil
}

// ListAvailableFood hides claimed and expired food.
func (s *PostService) ListAvailableFood(ctx context.Context, foodType string) ([]model.FoodPost, error) {
	list, err := s.store.Posts.ListAvailableFood(ctx, s.now().UTC(), foodType)
	if err != nil {
		return nil, pkg.Internal("list food posts", err)
	}
	return list, nil
}

func (s *PostService) ListAvailableResources(ctx context.Context, category string) ([]model.ResourcePost, error) {
	list, err := s.store.Posts.ListAvailableResources(ctx, category)
	if err != nil {
		return nil, pkg.Internal("list resource posts", err)
	}
	return list, nil
}

func (s *PostService) ListMyFood(ctx context.Context, actor *model.User) ([]model.FoodPost, error) {
	if !actor.IsDonor() {
		return nil, pkg.Unauthorized("only donors have posts")
	}
	list, err := s.store.Posts.ListFoodByDonor(ctx, actor.ID)
	if err != nil {
		return nil, pkg.Internal("list my food posts", err)
	}
	return list, nil
}

func (s *PostService) ListMyResources(ctx context.Context, actor *model.User) ([]model.ResourcePost, error) {
	if !actor.IsDonor() {
		return nil, pkg.Unauthorized("only donors have posts")
	}
	list, err := s.store.Posts.ListResourcesByDonor(ctx, actor.ID)
	if err != nil {
		return nil, pkg.Internal("list my resource posts", err)
	}
	return list, nil
}
