// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

var testStart = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate",
		filepath.Join(t.TempDir(), "recurring-events.db"))
	db, err := OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestSeries(orgID string) (*models.RecurringEventTemplate, *models.RecurrenceRule) {
	template := &models.RecurringEventTemplate{
		ID:                  uuid.NewString(),
		Name:                "Daily standup",
		IsRecurringTemplate: true,
		IsRegisterable:      true,
		OrganizationID:      orgID,
		CreatorID:           "user-1",
		StartAt:             testStart,
		EndAt:               testStart.Add(time.Hour),
	}
	end := time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)
	rule := &models.RecurrenceRule{
		ID:                   uuid.NewString(),
		BaseRecurringEventID: template.ID,
		OriginalSeriesID:     uuid.NewString(),
		Frequency:            models.FrequencyDaily,
		Interval:             1,
		RecurrenceStartDate:  testStart,
		RecurrenceEndDate:    &end,
		RecurrenceRuleString: "FREQ=DAILY;INTERVAL=1",
		OrganizationID:       orgID,
		CreatorID:            "user-1",
	}
	return template, rule
}

func newTestInstances(rule *models.RecurrenceRule, firstSequence, n int) []*models.RecurringEventInstance {
	instances := make([]*models.RecurringEventInstance, 0, n)
	for i := 0; i < n; i++ {
		start := testStart.AddDate(0, 0, firstSequence-1+i)
		instances = append(instances, &models.RecurringEventInstance{
			ID:                        uuid.NewString(),
			BaseRecurringEventID:      rule.BaseRecurringEventID,
			RecurrenceRuleID:          rule.ID,
			OriginalSeriesID:          rule.OriginalSeriesID,
			OrganizationID:            rule.OrganizationID,
			OriginalInstanceStartTime: start,
			ActualStartTime:           start,
			ActualEndTime:             start.Add(time.Hour),
			SequenceNumber:            firstSequence + i,
			GeneratedAt:               testStart,
			LastUpdatedAt:             testStart,
		})
	}
	return instances
}

type testRepos struct {
	templates *SQLTemplateRepository
	rules     *SQLRecurrenceRuleRepository
	instances *SQLRecurringEventInstanceRepository
}

func setupRepos(t *testing.T) testRepos {
	db := newTestDB(t)
	return testRepos{
		templates: NewSQLTemplateRepository(db),
		rules:     NewSQLRecurrenceRuleRepository(db),
		instances: NewSQLRecurringEventInstanceRepository(db),
	}
}

func TestSQLTemplateRepository(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)

	template, _ := newTestSeries("org-1")
	template.StartAt = testStart.Add(500 * time.Millisecond)
	require.NoError(t, repos.templates.CreateTemplate(ctx, template))

	got, err := repos.templates.GetTemplate(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, "Daily standup", got.Name)
	assert.True(t, got.IsRecurringTemplate)
	assert.True(t, got.StartAt.Equal(testStart), "stored at second precision")
	assert.Equal(t, time.Hour, got.Duration())

	err = repos.templates.CreateTemplate(ctx, template)
	assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))

	_, err = repos.templates.GetTemplate(ctx, "missing")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestSQLRecurrenceRuleRepository_Create(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)

	template, rule := newTestSeries("org-1")
	require.NoError(t, repos.rules.CreateSeries(ctx, template, rule))

	byID, err := repos.rules.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FrequencyDaily, byID.Frequency)
	assert.Equal(t, 1, byID.Interval)
	assert.Nil(t, byID.LatestInstanceDate)
	require.NotNil(t, byID.RecurrenceEndDate)
	assert.True(t, byID.RecurrenceEndDate.Equal(*rule.RecurrenceEndDate))

	byTemplate, err := repos.rules.GetRuleByTemplate(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.ID, byTemplate.ID)

	t.Run("second rule for the same template", func(t *testing.T) {
		_, other := newTestSeries("org-1")
		other.BaseRecurringEventID = template.ID
		err := repos.rules.CreateRule(ctx, other)
		assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
		assert.True(t, errors.Is(err, domain.ErrRuleAlreadyExists))
		assert.False(t, domain.IsRetryable(err))
	})

	t.Run("rule for an unknown template", func(t *testing.T) {
		_, orphan := newTestSeries("org-1")
		err := repos.rules.CreateRule(ctx, orphan)
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})

	t.Run("series with a duplicate template leaves nothing behind", func(t *testing.T) {
		_, other := newTestSeries("org-1")
		err := repos.rules.CreateSeries(ctx, template, other)
		assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))

		_, err = repos.rules.GetRule(ctx, other.ID)
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})

	t.Run("list by organization", func(t *testing.T) {
		otherTemplate, otherRule := newTestSeries("org-2")
		require.NoError(t, repos.rules.CreateSeries(ctx, otherTemplate, otherRule))

		rules, err := repos.rules.ListRulesByOrganization(ctx, "org-1")
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, rule.ID, rules[0].ID)
	})

	_, err = repos.rules.GetRule(ctx, "missing")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestSQLRecurrenceRuleRepository_AdvanceHorizon(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)

	template, rule := newTestSeries("org-1")
	require.NoError(t, repos.rules.CreateSeries(ctx, template, rule))

	first := testStart.AddDate(0, 0, 2)
	require.NoError(t, repos.rules.AdvanceHorizon(ctx, rule.ID, nil, first))

	got, err := repos.rules.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LatestInstanceDate)
	assert.True(t, got.LatestInstanceDate.Equal(first))

	// A writer that still believes the horizon is unset loses.
	err = repos.rules.AdvanceHorizon(ctx, rule.ID, nil, testStart.AddDate(0, 0, 5))
	assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
	assert.True(t, domain.IsRetryable(err))
	assert.True(t, errors.Is(err, domain.ErrHorizonMoved))

	require.NoError(t, repos.rules.AdvanceHorizon(ctx, rule.ID, got.LatestInstanceDate, testStart.AddDate(0, 0, 5)))

	err = repos.rules.AdvanceHorizon(ctx, "missing", nil, first)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestSQLRecurringEventInstanceRepository_CommitMaterialization(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)

	template, rule := newTestSeries("org-1")
	require.NoError(t, repos.rules.CreateSeries(ctx, template, rule))

	batch := newTestInstances(rule, 1, 3)
	require.NoError(t, repos.instances.CommitMaterialization(ctx, rule.ID, nil, batch))

	maxSequence, err := repos.instances.MaxSequenceNumber(ctx, rule.OriginalSeriesID)
	require.NoError(t, err)
	assert.Equal(t, 3, maxSequence)

	stored, err := repos.rules.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LatestInstanceDate)
	assert.True(t, stored.LatestInstanceDate.Equal(batch[2].OriginalInstanceStartTime))

	t.Run("stale horizon rolls back the whole batch", func(t *testing.T) {
		next := newTestInstances(rule, 4, 2)
		err := repos.instances.CommitMaterialization(ctx, rule.ID, nil, next)
		assert.True(t, domain.IsRetryable(err))

		maxSequence, err := repos.instances.MaxSequenceNumber(ctx, rule.OriginalSeriesID)
		require.NoError(t, err)
		assert.Equal(t, 3, maxSequence)
	})

	t.Run("sequence gap is rejected", func(t *testing.T) {
		gapped := newTestInstances(rule, 5, 1)
		err := repos.instances.CommitMaterialization(ctx, rule.ID, stored.LatestInstanceDate, gapped)
		assert.True(t, domain.IsRetryable(err))
		assert.True(t, errors.Is(err, domain.ErrSequenceOutOfStep))
	})

	t.Run("duplicate original start is rejected", func(t *testing.T) {
		duplicate := newTestInstances(rule, 4, 1)
		duplicate[0].OriginalInstanceStartTime = batch[0].OriginalInstanceStartTime
		err := repos.instances.CommitMaterialization(ctx, rule.ID, stored.LatestInstanceDate, duplicate)
		assert.True(t, domain.IsRetryable(err))
		assert.True(t, errors.Is(err, domain.ErrUniqueViolation))

		// The horizon update in the same transaction was rolled back.
		after, err := repos.rules.GetRule(ctx, rule.ID)
		require.NoError(t, err)
		assert.True(t, after.LatestInstanceDate.Equal(*stored.LatestInstanceDate))
	})

	t.Run("continuation commits", func(t *testing.T) {
		next := newTestInstances(rule, 4, 2)
		require.NoError(t, repos.instances.CommitMaterialization(ctx, rule.ID, stored.LatestInstanceDate, next))

		maxSequence, err := repos.instances.MaxSequenceNumber(ctx, rule.OriginalSeriesID)
		require.NoError(t, err)
		assert.Equal(t, 5, maxSequence)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		assert.NoError(t, repos.instances.CommitMaterialization(ctx, rule.ID, nil, nil))
	})
}

func TestSQLRecurringEventInstanceRepository_Queries(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)

	template, rule := newTestSeries("org-1")
	require.NoError(t, repos.rules.CreateSeries(ctx, template, rule))
	batch := newTestInstances(rule, 1, 5)
	require.NoError(t, repos.instances.CommitMaterialization(ctx, rule.ID, nil, batch))

	cancelled := *batch[1]
	require.True(t, cancelled.Cancel(testStart))
	require.NoError(t, repos.instances.UpdateInstanceException(ctx, &cancelled, 0))

	filter := models.InstanceFilter{
		OrganizationID: "org-1",
		StartDate:      testStart,
		EndDate:        testStart.AddDate(0, 0, 10),
	}

	t.Run("cancelled excluded by default", func(t *testing.T) {
		instances, err := repos.instances.ListInstancesInRange(ctx, filter)
		require.NoError(t, err)
		assert.Len(t, instances, 4)
		for _, instance := range instances {
			assert.False(t, instance.IsCancelled)
		}
	})

	t.Run("include cancelled", func(t *testing.T) {
		f := filter
		f.IncludeCancelled = true
		instances, err := repos.instances.ListInstancesInRange(ctx, f)
		require.NoError(t, err)
		require.Len(t, instances, 5)
		for i, instance := range instances {
			assert.Equal(t, i+1, instance.SequenceNumber, "ordered by original start")
		}
	})

	t.Run("exclude ids and limit", func(t *testing.T) {
		f := filter
		f.ExcludeInstanceIDs = []string{batch[0].ID}
		f.Limit = 2
		instances, err := repos.instances.ListInstancesInRange(ctx, f)
		require.NoError(t, err)
		require.Len(t, instances, 2)
		assert.Equal(t, batch[2].ID, instances[0].ID)
		assert.Equal(t, batch[3].ID, instances[1].ID)
	})

	t.Run("range bounds are inclusive", func(t *testing.T) {
		f := filter
		f.StartDate = batch[2].ActualStartTime
		f.EndDate = batch[3].ActualStartTime
		instances, err := repos.instances.ListInstancesInRange(ctx, f)
		require.NoError(t, err)
		assert.Len(t, instances, 2)
	})

	t.Run("other organization sees nothing", func(t *testing.T) {
		f := filter
		f.OrganizationID = "org-2"
		instances, err := repos.instances.ListInstancesInRange(ctx, f)
		require.NoError(t, err)
		assert.Empty(t, instances)
	})

	t.Run("batch get skips unknown ids", func(t *testing.T) {
		instances, err := repos.instances.GetInstancesByIDs(ctx, []string{batch[4].ID, "missing", batch[1].ID})
		require.NoError(t, err)
		require.Len(t, instances, 2)
		assert.Equal(t, batch[1].ID, instances[0].ID)
		assert.True(t, instances[0].IsCancelled)

		empty, err := repos.instances.GetInstancesByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestSQLRecurringEventInstanceRepository_UpdateInstanceException(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)

	template, rule := newTestSeries("org-1")
	require.NoError(t, repos.rules.CreateSeries(ctx, template, rule))
	batch := newTestInstances(rule, 1, 2)
	require.NoError(t, repos.instances.CommitMaterialization(ctx, rule.ID, nil, batch))

	moved := *batch[0]
	newStart := moved.ActualStartTime.Add(2 * time.Hour)
	require.True(t, moved.Reschedule(newStart, newStart.Add(time.Hour), testStart))
	require.NoError(t, repos.instances.UpdateInstanceException(ctx, &moved, 0))

	got, err := repos.instances.GetInstance(ctx, moved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStateModified, got.State())
	assert.Equal(t, 1, got.Version)
	assert.True(t, got.ActualStartTime.Equal(newStart))
	assert.True(t, got.OriginalInstanceStartTime.Equal(batch[0].OriginalInstanceStartTime))

	t.Run("stale version is retryable", func(t *testing.T) {
		stale := *batch[0]
		require.True(t, stale.Cancel(testStart))
		err := repos.instances.UpdateInstanceException(ctx, &stale, 0)
		assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
		assert.True(t, domain.IsRetryable(err))
	})

	t.Run("cancelled instance is terminal", func(t *testing.T) {
		current, err := repos.instances.GetInstance(ctx, moved.ID)
		require.NoError(t, err)
		expected := current.Version
		require.True(t, current.Cancel(testStart))
		require.NoError(t, repos.instances.UpdateInstanceException(ctx, current, expected))

		again, err := repos.instances.GetInstance(ctx, moved.ID)
		require.NoError(t, err)
		expected = again.Version
		again.IsCancelled = false
		require.True(t, again.Cancel(testStart))
		err = repos.instances.UpdateInstanceException(ctx, again, expected)
		assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
		assert.False(t, domain.IsRetryable(err))
		assert.True(t, errors.Is(err, domain.ErrInstanceCancelled))
	})

	t.Run("sibling untouched", func(t *testing.T) {
		sibling, err := repos.instances.GetInstance(ctx, batch[1].ID)
		require.NoError(t, err)
		assert.Equal(t, models.InstanceStateScheduled, sibling.State())
		assert.Equal(t, 0, sibling.Version)
	})

	t.Run("unknown instance", func(t *testing.T) {
		ghost := *batch[1]
		ghost.ID = "missing"
		err := repos.instances.UpdateInstanceException(ctx, &ghost, 0)
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})
}

func TestSQLBaseRepository_NotReady(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRecurringEventInstanceRepository(nil)

	assert.False(t, repo.IsReady(ctx))
	_, err := repo.GetInstance(ctx, "any")
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
}
