// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/infrastructure/store"
	servicemocks "github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/service/mocks"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/utils"
)

type sqlStores struct {
	templates *store.SQLTemplateRepository
	rules     *store.SQLRecurrenceRuleRepository
	instances *store.SQLRecurringEventInstanceRepository
}

func newSQLStores(t *testing.T) sqlStores {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate",
		filepath.Join(t.TempDir(), "recurring-events.db"))
	db, err := store.OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return sqlStores{
		templates: store.NewSQLTemplateRepository(db),
		rules:     store.NewSQLRecurrenceRuleRepository(db),
		instances: store.NewSQLRecurringEventInstanceRepository(db),
	}
}

// newDailySeries creates a DAILY series from 2024-01-01 to 2024-01-31.
func newDailySeries(t *testing.T, stores sqlStores) *models.RecurrenceRule {
	t.Helper()
	rules := NewRecurrenceRuleService(stores.templates, stores.rules, NewOccurrenceService())
	template := &models.RecurringEventTemplate{
		Name:           "Daily standup",
		OrganizationID: "org-1",
		CreatorID:      "user-1",
		StartAt:        date(1, 1),
		EndAt:          date(1, 1).Add(15 * time.Minute),
	}
	_, rule, err := rules.CreateSeries(context.Background(), template, &models.RecurrenceRule{
		Frequency:         models.FrequencyDaily,
		Interval:          1,
		RecurrenceEndDate: utils.Ptr(date(1, 31)),
	})
	require.NoError(t, err)
	return rule
}

func newSQLMaterializer(stores sqlStores, config ServiceConfig) *MaterializerService {
	return NewMaterializerService(stores.templates, stores.rules, stores.instances, NewOccurrenceService(), nil, config)
}

func TestMaterializerService_DailyScenario(t *testing.T) {
	ctx := context.Background()
	stores := newSQLStores(t)
	rule := newDailySeries(t, stores)
	materializer := newSQLMaterializer(stores, DefaultServiceConfig())

	first, err := materializer.Materialize(ctx, rule.ID, date(1, 3))
	require.NoError(t, err)
	require.Len(t, first, 3)
	for i, instance := range first {
		assert.Equal(t, i+1, instance.SequenceNumber)
		assert.True(t, instance.OriginalInstanceStartTime.Equal(date(1, i+1)))
		assert.True(t, instance.ActualEndTime.Equal(date(1, i+1).Add(15*time.Minute)))
		assert.Equal(t, models.InstanceStateScheduled, instance.State())
	}

	stored, err := stores.rules.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LatestInstanceDate)
	assert.True(t, stored.LatestInstanceDate.Equal(date(1, 3)))

	// Repeating the call generates nothing.
	again, err := materializer.Materialize(ctx, rule.ID, date(1, 3))
	require.NoError(t, err)
	assert.Empty(t, again)

	cancelled, err := stores.instances.GetInstance(ctx, first[1].ID)
	require.NoError(t, err)
	expected := cancelled.Version
	require.True(t, cancelled.Cancel(time.Now().UTC()))
	require.NoError(t, stores.instances.UpdateInstanceException(ctx, cancelled, expected))

	second, err := materializer.Materialize(ctx, rule.ID, date(1, 5))
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, 4, second[0].SequenceNumber)
	assert.Equal(t, 5, second[1].SequenceNumber)
	assert.True(t, second[0].OriginalInstanceStartTime.Equal(date(1, 4)))

	still, err := stores.instances.GetInstance(ctx, first[1].ID)
	require.NoError(t, err)
	assert.True(t, still.IsCancelled)

	stored, err = stores.rules.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, stored.LatestInstanceDate.Equal(date(1, 5)))
}

func TestMaterializerService_RespectsEndAndCap(t *testing.T) {
	ctx := context.Background()
	stores := newSQLStores(t)
	rule := newDailySeries(t, stores)

	capped := newSQLMaterializer(stores, ServiceConfig{MaterializeMaxInstances: 10})
	batch, err := capped.Materialize(ctx, rule.ID, date(12, 31))
	require.NoError(t, err)
	require.Len(t, batch, 10)

	stored, err := stores.rules.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, stored.LatestInstanceDate.Equal(date(1, 10)), "horizon stops at the last generated instance")

	rest, err := capped.Materialize(ctx, rule.ID, date(12, 31))
	require.NoError(t, err)
	require.Len(t, rest, 10)
	assert.Equal(t, 11, rest[0].SequenceNumber)

	third, err := capped.Materialize(ctx, rule.ID, date(12, 31))
	require.NoError(t, err)
	require.Len(t, third, 10)

	last, err := capped.Materialize(ctx, rule.ID, date(12, 31))
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, 31, last[0].SequenceNumber)
	assert.True(t, last[0].OriginalInstanceStartTime.Equal(date(1, 31)))

	done, err := capped.Materialize(ctx, rule.ID, date(12, 31))
	require.NoError(t, err)
	assert.Empty(t, done, "nothing is generated past the end date")
}

func TestMaterializerService_ConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	stores := newSQLStores(t)
	rule := newDailySeries(t, stores)
	materializer := newSQLMaterializer(stores, DefaultServiceConfig())

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = materializer.Materialize(ctx, rule.ID, date(1, 10))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.True(t, domain.IsRetryable(err), "losers get a retryable conflict: %v", err)
		}
	}

	instances, err := stores.instances.ListInstancesInRange(ctx, models.InstanceFilter{
		OrganizationID:   "org-1",
		StartDate:        date(1, 1),
		EndDate:          date(1, 31),
		IncludeCancelled: true,
	})
	require.NoError(t, err)
	require.Len(t, instances, 10)
	for i, instance := range instances {
		assert.Equal(t, i+1, instance.SequenceNumber)
	}
}

func TestMaterializerService_Validation(t *testing.T) {
	ctx := context.Background()
	materializer := NewMaterializerService(
		&mocks.MockTemplateRepository{},
		&mocks.MockRecurrenceRuleRepository{},
		&mocks.MockRecurringEventInstanceRepository{},
		NewOccurrenceService(), nil, DefaultServiceConfig())

	_, err := materializer.Materialize(ctx, "", date(1, 1))
	assert.Equal(t, "rule_id", domain.GetArgument(err))

	_, err = materializer.Materialize(ctx, "rule-1", time.Time{})
	assert.Equal(t, "until", domain.GetArgument(err))

	materializer = NewMaterializerService(nil, nil, nil, nil, nil, DefaultServiceConfig())
	_, err = materializer.Materialize(ctx, "rule-1", date(1, 1))
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
}

func TestMaterializerService_WithMocks(t *testing.T) {
	ctx := context.Background()
	template := testTemplate()
	rule := &models.RecurrenceRule{
		ID:                   "rule-1",
		BaseRecurringEventID: template.ID,
		OriginalSeriesID:     "series-1",
		OrganizationID:       "org-1",
		Frequency:            models.FrequencyWeekly,
		Interval:             1,
		RecurrenceStartDate:  date(1, 1),
	}

	t.Run("sends an indexer message per instance", func(t *testing.T) {
		templateRepo := &mocks.MockTemplateRepository{}
		ruleRepo := &mocks.MockRecurrenceRuleRepository{}
		instanceRepo := &mocks.MockRecurringEventInstanceRepository{}
		messageBuilder := &mocks.MockMessageBuilder{}

		ruleRepo.On("GetRule", mock.Anything, "rule-1").Return(rule, nil)
		templateRepo.On("GetTemplate", mock.Anything, template.ID).Return(template, nil)
		instanceRepo.On("MaxSequenceNumber", mock.Anything, "series-1").Return(7, nil)
		instanceRepo.On("CommitMaterialization", mock.Anything, "rule-1", (*time.Time)(nil),
			mock.MatchedBy(func(instances []*models.RecurringEventInstance) bool {
				return len(instances) == 3 && instances[0].SequenceNumber == 8 && instances[2].SequenceNumber == 10
			})).Return(nil)
		messageBuilder.On("SendIndexRecurringEventInstance", mock.Anything, models.ActionCreated,
			mock.MatchedBy(func(data models.ResolvedInstance) bool {
				return data.Name == template.Name && data.State == models.InstanceStateScheduled
			})).Return(nil).Times(3)

		materializer := NewMaterializerService(templateRepo, ruleRepo, instanceRepo,
			NewOccurrenceService(), messageBuilder, DefaultServiceConfig())

		instances, err := materializer.Materialize(ctx, "rule-1", date(1, 15))
		require.NoError(t, err)
		assert.Len(t, instances, 3)
		instanceRepo.AssertExpectations(t)
		messageBuilder.AssertExpectations(t)
	})

	t.Run("indexer failures do not fail the call", func(t *testing.T) {
		templateRepo := &mocks.MockTemplateRepository{}
		ruleRepo := &mocks.MockRecurrenceRuleRepository{}
		instanceRepo := &mocks.MockRecurringEventInstanceRepository{}
		messageBuilder := &mocks.MockMessageBuilder{}

		ruleRepo.On("GetRule", mock.Anything, "rule-1").Return(rule, nil)
		templateRepo.On("GetTemplate", mock.Anything, template.ID).Return(template, nil)
		instanceRepo.On("MaxSequenceNumber", mock.Anything, "series-1").Return(0, nil)
		instanceRepo.On("CommitMaterialization", mock.Anything, "rule-1", (*time.Time)(nil), mock.Anything).Return(nil)
		messageBuilder.On("SendIndexRecurringEventInstance", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("nats down"))

		materializer := NewMaterializerService(templateRepo, ruleRepo, instanceRepo,
			NewOccurrenceService(), messageBuilder, DefaultServiceConfig())

		instances, err := materializer.Materialize(ctx, "rule-1", date(1, 1))
		require.NoError(t, err)
		assert.Len(t, instances, 1)
	})

	t.Run("conflict is returned untouched", func(t *testing.T) {
		templateRepo := &mocks.MockTemplateRepository{}
		ruleRepo := &mocks.MockRecurrenceRuleRepository{}
		instanceRepo := &mocks.MockRecurringEventInstanceRepository{}

		ruleRepo.On("GetRule", mock.Anything, "rule-1").Return(rule, nil)
		templateRepo.On("GetTemplate", mock.Anything, template.ID).Return(template, nil)
		instanceRepo.On("MaxSequenceNumber", mock.Anything, "series-1").Return(0, nil)
		instanceRepo.On("CommitMaterialization", mock.Anything, "rule-1", (*time.Time)(nil), mock.Anything).
			Return(domain.NewRetryableConflictError("horizon moved", domain.ErrHorizonMoved))

		materializer := NewMaterializerService(templateRepo, ruleRepo, instanceRepo,
			NewOccurrenceService(), nil, DefaultServiceConfig())

		_, err := materializer.Materialize(ctx, "rule-1", date(1, 1))
		assert.True(t, domain.IsRetryable(err))
		assert.True(t, errors.Is(err, domain.ErrHorizonMoved))
	})

	t.Run("occurrence errors stop before the commit", func(t *testing.T) {
		templateRepo := &mocks.MockTemplateRepository{}
		ruleRepo := &mocks.MockRecurrenceRuleRepository{}
		instanceRepo := &mocks.MockRecurringEventInstanceRepository{}
		occurrences := &servicemocks.MockOccurrenceService{}

		ruleRepo.On("GetRule", mock.Anything, "rule-1").Return(rule, nil)
		templateRepo.On("GetTemplate", mock.Anything, template.ID).Return(template, nil)
		occurrences.On("CalculateSteps", rule, (*time.Time)(nil), date(1, 1), DefaultServiceConfig().MaterializeMaxInstances).
			Return(nil, domain.NewValidationError("unsupported frequency", domain.ErrUnsupportedFreq))

		materializer := NewMaterializerService(templateRepo, ruleRepo, instanceRepo,
			occurrences, nil, DefaultServiceConfig())

		_, err := materializer.Materialize(ctx, "rule-1", date(1, 1))
		assert.True(t, errors.Is(err, domain.ErrUnsupportedFreq))
		instanceRepo.AssertNotCalled(t, "CommitMaterialization", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		occurrences.AssertExpectations(t)
	})

	t.Run("no steps commits nothing", func(t *testing.T) {
		templateRepo := &mocks.MockTemplateRepository{}
		ruleRepo := &mocks.MockRecurrenceRuleRepository{}
		instanceRepo := &mocks.MockRecurringEventInstanceRepository{}
		occurrences := &servicemocks.MockOccurrenceService{}

		ruleRepo.On("GetRule", mock.Anything, "rule-1").Return(rule, nil)
		templateRepo.On("GetTemplate", mock.Anything, template.ID).Return(template, nil)
		occurrences.On("CalculateSteps", rule, (*time.Time)(nil), mock.Anything, mock.Anything).Return([]time.Time{}, nil)

		materializer := NewMaterializerService(templateRepo, ruleRepo, instanceRepo,
			occurrences, nil, DefaultServiceConfig())

		instances, err := materializer.Materialize(ctx, "rule-1", date(1, 1))
		require.NoError(t, err)
		assert.Empty(t, instances)
		instanceRepo.AssertNotCalled(t, "MaxSequenceNumber", mock.Anything, mock.Anything)
	})

	t.Run("unknown rule", func(t *testing.T) {
		ruleRepo := &mocks.MockRecurrenceRuleRepository{}
		ruleRepo.On("GetRule", mock.Anything, "missing").Return(nil, domain.NewNotFoundError("rule not found"))

		materializer := NewMaterializerService(&mocks.MockTemplateRepository{}, ruleRepo,
			&mocks.MockRecurringEventInstanceRepository{}, NewOccurrenceService(), nil, DefaultServiceConfig())

		_, err := materializer.Materialize(ctx, "missing", date(1, 1))
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})
}

func TestMaterializerService_MaterializeOrganization(t *testing.T) {
	ctx := context.Background()
	stores := newSQLStores(t)
	first := newDailySeries(t, stores)
	second := newDailySeries(t, stores)
	materializer := newSQLMaterializer(stores, DefaultServiceConfig())

	generated, failed, err := materializer.MaterializeOrganization(ctx, "org-1", date(1, 7))
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, map[string]int{first.ID: 7, second.ID: 7}, generated)

	generated, failed, err = materializer.MaterializeOrganization(ctx, "org-1", date(1, 7))
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, map[string]int{first.ID: 0, second.ID: 0}, generated)

	_, _, err = materializer.MaterializeOrganization(ctx, "", date(1, 7))
	assert.Equal(t, "organization_id", domain.GetArgument(err))
}

func TestMaterializerService_MaterializeOrganization_PartialFailure(t *testing.T) {
	ctx := context.Background()
	template := testTemplate()
	templateRepo := &mocks.MockTemplateRepository{}
	ruleRepo := &mocks.MockRecurrenceRuleRepository{}
	instanceRepo := &mocks.MockRecurringEventInstanceRepository{}

	good := &models.RecurrenceRule{
		ID:                   "rule-good",
		BaseRecurringEventID: template.ID,
		OriginalSeriesID:     "series-good",
		OrganizationID:       "org-1",
		Frequency:            models.FrequencyDaily,
		Interval:             1,
		RecurrenceStartDate:  date(1, 1),
	}
	bad := &models.RecurrenceRule{ID: "rule-bad"}

	ruleRepo.On("ListRulesByOrganization", mock.Anything, "org-1").Return([]*models.RecurrenceRule{good, bad}, nil)
	ruleRepo.On("GetRule", mock.Anything, "rule-good").Return(good, nil)
	ruleRepo.On("GetRule", mock.Anything, "rule-bad").Return(nil, domain.NewInternalError("boom"))
	templateRepo.On("GetTemplate", mock.Anything, template.ID).Return(template, nil)
	instanceRepo.On("MaxSequenceNumber", mock.Anything, "series-good").Return(0, nil)
	instanceRepo.On("CommitMaterialization", mock.Anything, "rule-good", (*time.Time)(nil), mock.Anything).Return(nil)

	materializer := NewMaterializerService(templateRepo, ruleRepo, instanceRepo,
		NewOccurrenceService(), nil, DefaultServiceConfig())

	generated, failed, err := materializer.MaterializeOrganization(ctx, "org-1", date(1, 2))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"rule-good": 2}, generated)
	require.Contains(t, failed, "rule-bad")
	assert.Equal(t, domain.ErrorTypeInternal, domain.GetErrorType(failed["rule-bad"]))
}
