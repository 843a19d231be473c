// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/repository"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/stats"
)

// HitSink accepts view hits for asynchronous delivery.
type HitSink interface {
	Record(hit stats.Hit)
}

// wrap passes domain errors and lock timeouts through untouched and adds
// the operation name to anything else.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *model.Error
	if errors.As(err, &de) || errors.Is(err, repository.ErrLockTimeout) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// missing converts a repository miss into a NotFound domain error naming
// the entity.
func missing(op, entity, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return model.Errorf(model.ErrNotFound, op, "%s with id=%s was not found", entity, id)
	}
	return wrap(op, err)
}

func requireUser(ctx context.Context, store repository.Store, op, id string) (*model.User, error) {
	u, err := store.GetUser(ctx, id)
	if err != nil {
		return nil, missing(op, "User", id, err)
	}
	return u, nil
}

// checkEventDate enforces the minimum lead time of an event date.
func checkEventDate(op string, date, now time.Time) error {
	if date.Before(now.Add(model.MinLeadTime)) {
		return model.Errorf(model.ErrIncorrectRequest, op,
			"Field: eventDate. Error: must be at least %s in the future. Value: %s",
			model.MinLeadTime, date.Format(time.RFC3339))
	}
	return nil
}

func checkRange(op string, start, end *time.Time) error {
	if start != nil && end != nil && start.After(*end) {
		return model.Errorf(model.ErrIncorrectRequest, op, "start time cannot be after end time")
	}
	return nil
}
