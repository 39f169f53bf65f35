package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"Food_Share/internal/metrics"
	"Food_Share/internal/model"
	"Food_Share/internal/pkg"
	"Food_Share/internal/repository/mysql"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type CreateRequestInput struct {
	Target        model.PostRef
	Message       string
	SelectedItems []string
}

type RequestService struct {
	store   *mysql.Store
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewRequestService(store *mysql.Store, m *metrics.Metrics, log logrus.FieldLogger) *RequestService {
	return &RequestService{
		store:   store,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// lockPost loads the post a write depends on and row-locks it until the
// transaction ends.
func lockPost(ctx context.Context, tx *mysql.Store, ref model.PostRef, msg string) (model.Post, error) {
	post, err := tx.Posts.FindForUpdate(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkg.NotFound(msg)
		}
		return nil, pkg.Internal("find post", err)
	}
	return post, nil
}

// CreateRequest files a Pending request from a receiver against an
// Available post. Duplicates are caught by the unique index.
func (s *RequestService) CreateRequest(ctx context.Context, actor *model.User, in CreateRequestInput) (*model.Request, error) {
	if !actor.IsReceiver() {
		return nil, pkg.Unauthorized("only receivers can request items")
	}
	if !in.Target.Kind.Valid() || in.Target.ID == 0 {
		return nil, pkg.Validation("exactly one of foodPostId or resourcePostId is required", "foodPostId", "resourcePostId")
	}
	if len(in.SelectedItems) > 0 && in.Target.Kind != model.KindFood {
		return nil, pkg.Validation("selected items only apply to food posts", "selectedItems")
	}

	req := &model.Request{
		ReceiverID:    actor.ID,
		Target:        in.Target,
		Message:       in.Message,
		SelectedItems: in.SelectedItems,
		Status:        model.RequestPending,
	}
	if req.SelectedItems == nil {
		req.SelectedItems = []string{}
	}

	err := s.store.InTx(ctx, func(tx *mysql.Store) error {
		post, err := lockPost(ctx, tx, in.Target, "post not found")
		if err != nil {
			return err
		}
		if post.CurrentStatus() != model.PostAvailable {
			return pkg.Conflict("item is not available")
		}
		if fp, ok := post.(*model.FoodPost); ok {
			if fp.Expired(s.now()) {
				return pkg.Conflict("item is not available")
			}
			for _, item := range in.SelectedItems {
				if !slices.Contains(fp.FoodItems, item) {
					return pkg.Validation("selected item "+item+" is not part of this post", "selectedItems")
				}
			}
		}

		if err = tx.Requests.Create(ctx, req); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return pkg.Conflict("you have already requested this item")
			}
			return pkg.Internal("create request", err)
		}
		return writeEvent(ctx, tx, model.EventRequestCreated, req, post.OwnerID())
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RequestCreated(string(in.Target.Kind))
	s.log.WithFields(logrus.Fields{
		"request_id":  req.ID,
		"post":        in.Target.String(),
		"receiver_id": actor.ID,
	}).Info("request created")
	return req, nil
}

// ResolveRequest applies the donor's decision. Accepting claims the post and
// rejects every other Pending request on it, all in one transaction.
func (s *RequestService) ResolveRequest(ctx context.Context, actor *model.User, requestID uint64, decision model.RequestStatus) (*model.Request, error) {
	if !decision.Terminal() {
		return nil, pkg.Validation("status must be Accepted or Rejected", "status")
	}
	if actor == nil {
		return nil, pkg.Unauthorized("not authorized")
	}

	var (
		req      *model.Request
		rejected []uint64
	)
	err := s.store.InTx(ctx, func(tx *mysql.Store) error {
		var err error
		req, err = tx.Requests.FindByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkg.NotFound("request not found")
			}
			return pkg.Internal("find request", err)
		}
		post, err := lockPost(ctx, tx, req.Target, "associated post not found")
		if err != nil {
			return err
		}
		if post.OwnerID() != actor.ID {
			return pkg.Unauthorized("not authorized")
		}
		if req.Status != model.RequestPending {
			return pkg.Conflict("request is already " + string(req.Status))
		}
		if decision == model.RequestAccepted && post.CurrentStatus() != model.PostAvailable {
			return pkg.Conflict("item is no longer available")
		}

		ok, err := tx.Requests.TransitionStatus(ctx, req.ID, model.RequestPending, decision)
		if err != nil {
			return pkg.Internal("update request", err)
		}
		if !ok {
			return pkg.Conflict("request was resolved concurrently")
		}
		req.Status = decision
		if err = writeEvent(ctx, tx, model.EventRequestResolved, req, actor.ID); err != nil {
			return err
		}
		if decision != model.RequestAccepted {
			return nil
		}

		if ok, err = tx.Posts.MarkClaimed(ctx, req.Target); err != nil {
			return pkg.Internal("claim post", err)
		}
		if !ok {
			return pkg.Conflict("item is no longer available")
		}
		if err = tx.Outbox.Insert(ctx, model.EventPostClaimed, model.EventPayload{
			RequestID:  req.ID,
			Post:       req.Target,
			DonorID:    actor.ID,
			ReceiverID: req.ReceiverID,
			Status:     decision,
		}); err != nil {
			return pkg.Internal("write outbox", err)
		}

		rejected, err = tx.Requests.RejectPendingForPost(ctx, req.Target, req.ID)
		if err != nil {
			return pkg.Internal("reject pending requests", err)
		}
		for _, id := range rejected {
			if err = tx.Outbox.Insert(ctx, model.EventRequestResolved, model.EventPayload{
				RequestID: id,
				Post:      req.Target,
				DonorID:   actor.ID,
				Status:    model.RequestRejected,
			}); err != nil {
				return pkg.Internal("write outbox", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RequestResolved(string(decision))
	for range rejected {
		s.metrics.RequestResolved(string(model.RequestRejected))
	}
	s.log.WithFields(logrus.Fields{
		"request_id":    req.ID,
		"post":          req.Target.String(),
		"decision":      decision,
		"auto_rejected": len(rejected),
	}).Info("request resolved")
	return req, nil
}

func writeEvent(ctx context.Context, tx *mysql.Store, event string, req *model.Request, donorID uint64) error {
	err := tx.Outbox.Insert(ctx, event, model.EventPayload{
		RequestID:  req.ID,
		Post:       req.Target,
		DonorID:    donorID,
		ReceiverID: req.ReceiverID,
		Status:     req.Status,
	})
	if err != nil {
		return pkg.Internal("write outbox", err)
	}
	return nil
}

// ListMyRequests returns the receiver's requests with their posts attached.
func (s *RequestService) ListMyRequests(ctx context.Context, actor *model.User) ([]model.RequestView, error) {
	if !actor.IsReceiver() {
		return nil, pkg.Unauthorized("only receivers have requests")
	}
	reqs, err := s.store.Requests.ListByReceiver(ctx, actor.ID)
	if err != nil {
		return nil, pkg.Internal("list requests", err)
	}
	return s.views(ctx, reqs, false)
}

// ListDonorRequests returns requests against the donor's posts together with
// each receiver's contact details.
func (s *RequestService) ListDonorRequests(ctx context.Context, actor *model.User) ([]model.RequestView, error) {
	if !actor.IsDonor() {
		return nil, pkg.Unauthorized("only donors receive requests")
	}
	reqs, err := s.store.Requests.ListByDonor(ctx, actor.ID)
	if err != nil {
		return nil, pkg.Internal("list donor requests", err)
	}
	return s.views(ctx, reqs, true)
}

func (s *RequestService) views(ctx context.Context, reqs []model.Request, withReceiver bool) ([]model.RequestView, error) {
	var foodIDs, resourceIDs, receiverIDs []uint64
	for _, r := range reqs {
		switch r.Target.Kind {
		case model.KindFood:
			foodIDs = append(foodIDs, r.Target.ID)
		case model.KindResource:
			resourceIDs = append(resourceIDs, r.Target.ID)
		}
		receiverIDs = append(receiverIDs, r.ReceiverID)
	}

	food, err := s.store.Posts.FoodByIDs(ctx, foodIDs)
	if err != nil {
		return nil, pkg.Internal("load food posts", err)
	}
	resources, err := s.store.Posts.ResourcesByIDs(ctx, resourceIDs)
	if err != nil {
		return nil, pkg.Internal("load resource posts", err)
	}
	receivers := map[uint64]*model.Contact{}
	if withReceiver {
		if receivers, err = s.store.Users.ContactsByIDs(ctx, receiverIDs); err != nil {
			return nil, pkg.Internal("load receivers", err)
		}
	}

	out := make([]model.RequestView, 0, len(reqs))
	for _, r := range reqs {
		v := model.RequestView{Request: r}
		switch r.Target.Kind {
		case model.KindFood:
			v.FoodPost = food[r.Target.ID]
		case model.KindResource:
			v.ResourcePost = resources[r.Target.ID]
		}
		if withReceiver {
			v.Receiver = receivers[r.ReceiverID]
		}
		out = append(out, v)
	}
	return out, nil
}
