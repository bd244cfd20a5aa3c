package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
)

const moderationUnavailableReason = "Moderation unavailable"

type WishUseCase struct {
	repo      interfaces.Repository
	moderator interfaces.Moderator
}

// NewWishUseCase creates the submission use case. A nil moderator accepts
// every submission.
func NewWishUseCase(repo interfaces.Repository, moderator interfaces.Moderator) *WishUseCase {
	return &WishUseCase{
		repo:      repo,
		moderator: moderator,
	}
}

// Submit validates and moderates content, then stores it as a new wish.
// Refused content is kept as a RejectedWish and ErrWishRejected is returned.
// A moderation error refuses the submission too.
func (uc *WishUseCase) Submit(ctx context.Context, content string) (*model.Wish, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, goerr.Wrap(ErrInvalidWish, "wish content is empty")
	}
	if n := utf8.RuneCountInString(content); n > model.MaxWishLength {
		return nil, goerr.Wrap(ErrInvalidWish, "wish content is too long",
			goerr.V("length", n),
			goerr.V("max_length", model.MaxWishLength))
	}

	if uc.moderator != nil {
		result, err := uc.moderator.Check(ctx, content)
		if err != nil {
			logging.From(ctx).Warn("moderation failed, rejecting wish", "error", err)
			result = &model.ModerationResult{Allowed: false, Reason: moderationUnavailableReason}
		}
		if !result.Allowed {
			rejected, err := uc.repo.RejectedWish().Create(ctx, &model.RejectedWish{
				Content:         content,
				RejectionReason: result.Reason,
				ModerationModel: result.Model,
			})
			if err != nil {
				return nil, goerr.Wrap(err, "failed to store rejected wish")
			}
			return nil, goerr.Wrap(ErrWishRejected, result.Reason, goerr.V("rejected_id", rejected.ID))
		}
	}

	wish, err := uc.repo.Wish().Create(ctx, &model.Wish{Content: content})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create wish")
	}
	logging.From(ctx).Info("wish submitted", "wish_id", wish.ID)
	return wish, nil
}

func (uc *WishUseCase) Get(ctx context.Context, id model.WishID) (*model.Wish, error) {
	wish, err := uc.repo.Wish().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get wish", goerr.V("id", id))
	}
	return wish, nil
}

// Delete soft-deletes a wish. It keeps its assignments but is excluded from
// training and topic membership.
func (uc *WishUseCase) Delete(ctx context.Context, id model.WishID) error {
	if err := uc.repo.Wish().Delete(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete wish", goerr.V("id", id))
	}
	return nil
}

// WishTopic is the current topic of a wish. Topic and Assignment are nil
// while the wish is unassigned.
type WishTopic struct {
	Wish       *model.Wish
	Topic      *model.Topic
	Assignment *model.Assignment
}

func (uc *WishUseCase) GetTopic(ctx context.Context, id model.WishID) (*WishTopic, error) {
	wish, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &WishTopic{Wish: wish}
	if !wish.HasTopic() {
		return result, nil
	}

	assignment, err := uc.repo.Assignment().GetPrimary(ctx, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, goerr.Wrap(err, "failed to get primary assignment", goerr.V("id", id))
	}
	result.Assignment = assignment

	t, err := uc.repo.Topic().Get(ctx, *wish.TopicID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, goerr.Wrap(err, "failed to get topic", goerr.V("topic_id", *wish.TopicID))
	}
	result.Topic = t
	return result, nil
}

// ListRejected returns rejected submissions, newest first
func (uc *WishUseCase) ListRejected(ctx context.Context, limit int) ([]*model.RejectedWish, error) {
	rejected, err := uc.repo.RejectedWish().List(ctx, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list rejected wishes")
	}
	return rejected, nil
}

// List returns a page of non-deleted wishes, newest first, and the total count
func (uc *WishUseCase) List(ctx context.Context, offset, limit int) ([]*model.Wish, int, error) {
	wishes, err := uc.repo.Wish().ListActive(ctx)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to list wishes")
	}
	slices.Reverse(wishes)

	total := len(wishes)
	offset = min(max(offset, 0), total)
	end := total
	if limit > 0 {
		end = min(offset+limit, total)
	}
	return wishes[offset:end], total, nil
}

// Related returns up to limit other wishes sharing the current topic of wish
func (uc *WishUseCase) Related(ctx context.Context, wish *model.Wish, limit int) ([]*model.Wish, error) {
	if !wish.HasTopic() {
		return nil, nil
	}
	members, err := uc.repo.Wish().ListByTopic(ctx, *wish.TopicID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list related wishes", goerr.V("topic_id", *wish.TopicID))
	}

	related := make([]*model.Wish, 0, limit)
	for _, w := range members {
		if w.ID == wish.ID {
			continue
		}
		if limit > 0 && len(related) >= limit {
			break
		}
		related = append(related, w)
	}
	return related, nil
}
