package task

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

type Service struct {
	repo  Repository
	clock clockwork.Clock
}

func NewService(repo Repository, clock clockwork.Clock) *Service {
	return &Service{repo: repo, clock: clock}
}

// MarkOverdue flags every open task whose due date has passed.
func (svc *Service) MarkOverdue(ctx context.Context) (int64, error) {
	n, err := svc.repo.MarkOverdue(ctx, svc.clock.Now().UTC())
	if err != nil {
		return 0, errors.Wrap(err, "marking overdue tasks")
	}
	return n, nil
}
