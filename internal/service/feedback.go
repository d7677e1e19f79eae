package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/spillr/internal/apperror"
	"github.com/sakif/spillr/internal/mail"
	"github.com/sakif/spillr/internal/model"
	"github.com/sakif/spillr/internal/repository"
)

// Feedback validation constants. Question lengths apply to the trimmed,
// pre-escape input; the stored (escaped) text can be longer.
const (
	MinQuestionLength = 3
	MaxQuestionLength = 1000
	MaxAnswerLength   = 2000
	MaxEmojiLength    = 16 // bytes; enough for any multi-codepoint emoji

	DefaultPageLimit = 10
	MaxPageLimit     = 100
	PublicFeedLimit  = 50
)

// Pagination is the page metadata returned alongside an owner listing.
type Pagination struct {
	CurrentPage    int  `json:"currentPage"`
	TotalPages     int  `json:"totalPages"`
	TotalFeedbacks int  `json:"totalFeedbacks"`
	HasNextPage    bool `json:"hasNextPage"`
	HasPrevPage    bool `json:"hasPrevPage"`
}

// ListResult is one page of the owner dashboard.
type ListResult struct {
	Feedback   []model.Feedback `json:"feedback"`
	Pagination Pagination       `json:"pagination"`
}

// FeedbackService manages the feedback lifecycle: anonymous submission,
// owner listing/answer/archive, public reactions, and the public feed.
type FeedbackService struct {
	feedback repository.FeedbackRepository
	walls    repository.WallRepository
	users    repository.UserRepository
	mailer   mail.Mailer
	logger   *slog.Logger
}

func NewFeedbackService(
	feedback repository.FeedbackRepository,
	walls repository.WallRepository,
	users repository.UserRepository,
	mailer mail.Mailer,
	logger *slog.Logger,
) *FeedbackService {
	return &FeedbackService{
		feedback: feedback,
		walls:    walls,
		users:    users,
		mailer:   mailer,
		logger:   logger,
	}
}

// Submit handles an anonymous feedback submission to a wall.
//
// The question is validated against the raw trimmed input, then
// HTML-escaped before it is persisted — stored questions are always safe
// to render directly. submitterIP is checked against the wall owner's
// blocked-IP list.
func (s *FeedbackService) Submit(ctx context.Context, wallSlug, question, submitterIP string) (*model.Feedback, error) {
	question = strings.TrimSpace(question)

	if utf8.RuneCountInString(question) < MinQuestionLength {
		return nil, apperror.ValidationFailed("question",
			fmt.Sprintf("question must be at least %d characters", MinQuestionLength))
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return nil, apperror.ValidationFailed("question",
			fmt.Sprintf("question must be %d characters or less", MaxQuestionLength))
	}

	wall, err := s.walls.GetBySlug(ctx, wallSlug)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.GetByID(ctx, wall.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("loading wall owner: %w", err)
	}
	if submitterIP != "" && owner.HasBlockedIP(submitterIP) {
		return nil, apperror.Forbidden("you are blocked from posting to this wall")
	}

	fb := &model.Feedback{
		WallID:   wall.ID,
		Question: html.EscapeString(question),
	}

	if err := s.feedback.Create(ctx, fb); err != nil {
		s.logger.Error("failed to create feedback",
			slog.String("wallID", wall.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating feedback: %w", err)
	}

	s.logger.Info("feedback submitted",
		slog.String("feedbackID", fb.ID),
		slog.String("wallID", wall.ID),
	)

	s.notifyOwner(owner, wall)

	return fb, nil
}

// notifyOwner emails the wall owner about a new submission, if they opted
// in. Fire-and-forget: a mail failure never fails the submission.
func (s *FeedbackService) notifyOwner(owner *model.User, wall *model.Wall) {
	if !owner.Notifications.NewFeedback || owner.Email == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()

		body := fmt.Sprintf(
			"<p>Your wall <b>%s</b> just received a new anonymous question.</p>",
			wall.Slug)
		if err := s.mailer.Send(ctx, owner.Email, "New feedback on your wall", body); err != nil {
			s.logger.Warn("failed to send new-feedback notification",
				slog.String("userID", owner.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// ListForOwner returns one page of the owner dashboard for a wall.
//
// sort defaults to "active"; page to 1; limit to 10 (capped at 100). The
// requester must own the wall — a mismatch is Forbidden, indistinguishable
// from the caller's perspective whether the wall has any feedback.
func (s *FeedbackService) ListForOwner(ctx context.Context, requester *model.User, wallID, sort string, page, limit int) (*ListResult, error) {
	if sort == "" {
		sort = model.SortActive
	}
	if !model.ValidSort(sort) {
		return nil, apperror.ValidationFailed("sort",
			"sort must be one of: active, answered, archived")
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	wall, err := s.walls.GetByID(ctx, wallID)
	if err != nil {
		return nil, err
	}
	if wall.OwnerID != requester.ID {
		return nil, apperror.Forbidden("you do not own this wall")
	}

	items, total, err := s.feedback.ListForWall(ctx, wall.ID, repository.FeedbackListOptions{
		Sort:  sort,
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		s.logger.Error("failed to list feedback",
			slog.String("wallID", wall.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing feedback: %w", err)
	}

	totalPages := (total + limit - 1) / limit

	return &ListResult{
		Feedback: items,
		Pagination: Pagination{
			CurrentPage:    page,
			TotalPages:     totalPages,
			TotalFeedbacks: total,
			HasNextPage:    page < totalPages,
			HasPrevPage:    page > 1,
		},
	}, nil
}

// Answer records the owner's answer on a feedback item.
//
// Ownership is resolved through the feedback's wall. Re-answering is
// allowed and overwrites the previous answer (last write wins). Unlike
// anonymous questions, the answer comes from the authenticated owner and
// is stored exactly as typed.
func (s *FeedbackService) Answer(ctx context.Context, requester *model.User, feedbackID, answer string) (*model.Feedback, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, apperror.ValidationFailed("answer", "answer is required")
	}
	if utf8.RuneCountInString(answer) > MaxAnswerLength {
		return nil, apperror.ValidationFailed("answer",
			fmt.Sprintf("answer must be %d characters or less", MaxAnswerLength))
	}

	fb, err := s.ownedFeedback(ctx, requester, feedbackID)
	if err != nil {
		return nil, err
	}

	if err := s.feedback.SetAnswer(ctx, fb.ID, answer); err != nil {
		return nil, fmt.Errorf("answering feedback: %w", err)
	}

	s.logger.Info("feedback answered", slog.String("feedbackID", fb.ID))

	return s.feedback.GetByID(ctx, fb.ID)
}

// Archive sets or clears the archive flag on a feedback item. Works from
// any state; the answered flag is untouched.
func (s *FeedbackService) Archive(ctx context.Context, requester *model.User, feedbackID string, archived bool) (*model.Feedback, error) {
	fb, err := s.ownedFeedback(ctx, requester, feedbackID)
	if err != nil {
		return nil, err
	}

	if err := s.feedback.SetArchived(ctx, fb.ID, archived); err != nil {
		return nil, fmt.Errorf("archiving feedback: %w", err)
	}

	s.logger.Info("feedback archive flag set",
		slog.String("feedbackID", fb.ID),
		slog.Bool("archived", archived),
	)

	return s.feedback.GetByID(ctx, fb.ID)
}

// React increments the reaction counter for an emoji on a feedback item.
// Public — no identity required, and repeat reactions from the same client
// all count.
func (s *FeedbackService) React(ctx context.Context, feedbackID, emoji string) (map[string]int, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > MaxEmojiLength {
		return nil, apperror.ValidationFailed("emoji", "emoji is required")
	}

	if _, err := s.feedback.AddReaction(ctx, feedbackID, emoji); err != nil {
		return nil, err
	}

	fb, err := s.feedback.GetByID(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	return fb.Reactions, nil
}

// PublicForWall returns the anonymous visitor's view of a wall: answered,
// unarchived items only, capped at 50.
func (s *FeedbackService) PublicForWall(ctx context.Context, wallSlug string) ([]model.PublicFeedback, error) {
	wall, err := s.walls.GetBySlug(ctx, wallSlug)
	if err != nil {
		return nil, err
	}

	items, err := s.feedback.PublicForWall(ctx, wall.ID, PublicFeedLimit)
	if err != nil {
		return nil, fmt.Errorf("listing public feedback: %w", err)
	}

	public := make([]model.PublicFeedback, 0, len(items))
	for i := range items {
		public = append(public, items[i].Public())
	}
	return public, nil
}

// ownedFeedback loads a feedback item and verifies the requester owns the
// wall it belongs to.
func (s *FeedbackService) ownedFeedback(ctx context.Context, requester *model.User, feedbackID string) (*model.Feedback, error) {
	feedbackID = strings.TrimSpace(feedbackID)
	if feedbackID == "" {
		return nil, apperror.ValidationFailed("id", "feedback ID is required")
	}

	fb, err := s.feedback.GetByID(ctx, feedbackID)
	if err != nil {
		return nil, err
	}

	wall, err := s.walls.GetByID(ctx, fb.WallID)
	if err != nil {
		return nil, err
	}
	if wall.OwnerID != requester.ID {
		return nil, apperror.Forbidden("you do not own this feedback's wall")
	}

	return fb, nil
}
