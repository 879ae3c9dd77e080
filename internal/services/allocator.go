package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/metrics"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/repository"

	"gorm.io/gorm"
)

const aliasTakenMessage = "This custom alias already exists. Please choose another one."

var errCodeTaken = errors.New("short code taken")

// allocate assigns link.ShortCode and inserts the row. A custom alias is used
// verbatim or rejected with a conflict; otherwise random codes are tried up
// to maxAttempts times.
func (s *ShortenerService) allocate(ctx context.Context, link *models.URL) error {
	if link.CustomAlias != nil {
		return s.allocateAlias(ctx, link, *link.CustomAlias)
	}
	return s.allocateGenerated(ctx, link)
}

func (s *ShortenerService) allocateAlias(ctx context.Context, link *models.URL, alias string) error {
	link.ShortCode = alias

	err := s.insertIfFree(ctx, link)
	switch {
	case err == nil:
		metrics.Allocations.WithLabelValues("alias").Inc()
		return nil
	case errors.Is(err, errCodeTaken):
		metrics.Allocations.WithLabelValues("conflict").Inc()
		return NewConflictError(aliasTakenMessage)
	default:
		metrics.Allocations.WithLabelValues("error").Inc()
		return NewStoreError("create short link", err)
	}
}

func (s *ShortenerService) allocateGenerated(ctx context.Context, link *models.URL) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.codeGenerator(s.codeLength)
		if err != nil {
			metrics.Allocations.WithLabelValues("error").Inc()
			return NewStoreError("generate short code", err)
		}
		link.ShortCode = code

		err = s.insertIfFree(ctx, link)
		if err == nil {
			metrics.Allocations.WithLabelValues("generated").Inc()
			metrics.AllocationAttempts.Observe(float64(attempt))
			return nil
		}
		if !errors.Is(err, errCodeTaken) {
			metrics.Allocations.WithLabelValues("error").Inc()
			return NewStoreError("create short link", err)
		}
		s.logger.Debug("Short code collision, retrying", "attempt", attempt)
	}

	metrics.Allocations.WithLabelValues("exhausted").Inc()
	return &Error{
		Kind: KindAllocationExhausted,
		Msg:  "Could not allocate a unique short code",
		Err:  fmt.Errorf("no free code after %d attempts", s.maxAttempts),
	}
}

// insertIfFree checks the shared code/alias namespace and inserts in one
// transaction. The UNIQUE constraints catch writers that race past the check.
func (s *ShortenerService) insertIfFree(ctx context.Context, link *models.URL) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.URL{}).
			Where("short_code = ? OR custom_alias = ?", link.ShortCode, link.ShortCode).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errCodeTaken
		}
		return tx.Create(link).Error
	})
	if repository.IsUniqueViolation(err) {
		link.ID = 0
		return errCodeTaken
	}
	return err
}
