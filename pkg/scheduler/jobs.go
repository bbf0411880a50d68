package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/pollen-club/backoffice/pkg/notify"
	"github.com/pollen-club/backoffice/pkg/rotation"
)

const (
	JobDismissal  = "dismissal"
	JobReview     = "promotion_review"
	JobAllocation = "allocation"
)

// Evaluator is the part of the rotation evaluator the jobs use.
type Evaluator interface {
	MarkDismissalCandidates(ctx context.Context) ([]models.User, error)
	Review(ctx context.Context) (rotation.Review, error)
}

// Allocator calculates the allocation of the current period.
type Allocator interface {
	Allocate(ctx context.Context) ([]models.AllocationRecord, error)
}

// Schedules holds the cron expressions of the jobs. An empty expression disables the job.
type Schedules struct {
	Dismissal  string
	Review     string
	Allocation string
}

// Jobs returns the rotation and allocation jobs.
func Jobs(schedules Schedules, e Evaluator, a Allocator, n notify.Notifier) []Job {
	return []Job{
		{
			Name:     JobDismissal,
			Schedule: schedules.Dismissal,
			Run: func(ctx context.Context) error {
				marked, err := e.MarkDismissalCandidates(ctx)
				if err != nil {
					return err
				}

				for _, u := range marked {
					notify.Send(n, notify.Event{
						Kind:    notify.KindDismissalMarked,
						UserID:  u.ID,
						Message: fmt.Sprintf("%s is marked for dismissal", u.Name),
					})
				}
				return nil
			},
		},
		{
			Name:     JobReview,
			Schedule: schedules.Review,
			Run: func(ctx context.Context) error {
				review, err := e.Review(ctx)
				if err != nil {
					return err
				}

				if review.Triggerable {
					notify.Send(n, notify.Event{
						Kind:    notify.KindReviewTriggered,
						UserID:  uuid.Nil,
						Message: fmt.Sprintf("promotion review: %d eligible interns, %d demotion candidates", len(review.Eligible), len(review.Candidates)),
					})
				}
				return nil
			},
		},
		{
			Name:     JobAllocation,
			Schedule: schedules.Allocation,
			Run: func(ctx context.Context) error {
				_, err := a.Allocate(ctx)
				return err
			},
			OnFailure: func(err error) {
				notify.Send(n, notify.Event{
					Kind:    notify.KindAllocationFailed,
					UserID:  uuid.Nil,
					Message: err.Error(),
				})
			},
		},
	}
}
