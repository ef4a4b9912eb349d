package service

import (
	"context"
	"testing"
	"time"

	"rent360-scheduling-be/internal/dto"
	"rent360-scheduling-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepMissed_MarksOverdueAndRollsForward(t *testing.T) {
	f := newFixture(t, SchedulingOptions{})
	started := f.start(t)
	f.notifier.Reset()

	f.clock.Set(time.Date(2024, time.January, 3, 0, 30, 0, 0, time.UTC))

	report, err := f.svc.SweepMissed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03", report.Today)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Missed)
	assert.Equal(t, 1, report.Materialized)
	assert.Empty(t, report.Failures)

	list := f.instances(t, started.Agreement.Id)
	require.Len(t, list, 2)
	assert.Equal(t, "missed", list[0].Status)
	assert.NotNil(t, list[0].MissedAt)
	assert.Equal(t, "scheduled", list[1].Status)
	assert.Equal(t, "2024-01-08", list[1].ScheduledDate)

	agreement, err := f.svc.GetAgreement(context.Background(), started.Agreement.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, agreement.MissedInstances)
	assert.Equal(t, 2, agreement.TotalInstances)

	assert.Equal(t, []string{events.InstanceMissed, events.InstanceScheduled}, f.notifier.Types())

	// A second run finds nothing to do.
	again, err := f.svc.SweepMissed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Checked)
	assert.Equal(t, 0, again.Missed)
	assert.Len(t, f.instances(t, started.Agreement.Id), 2)
}

func TestSweepMissed_SkipsWholePeriodsWhenFarBehind(t *testing.T) {
	f := newFixture(t, SchedulingOptions{})
	started := f.start(t)

	f.clock.Set(time.Date(2024, time.January, 20, 8, 0, 0, 0, time.UTC))

	report, err := f.svc.SweepMissed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Missed)

	list := f.instances(t, started.Agreement.Id)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-01-22", list[1].ScheduledDate)
}

func TestSweepMissed_SameDayIsNotOverdue(t *testing.T) {
	f := newFixture(t, SchedulingOptions{})
	f.start(t)

	f.clock.Set(time.Date(2024, time.January, 1, 23, 59, 0, 0, time.UTC))

	report, err := f.svc.SweepMissed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)
}

func TestSweepMissed_HonoursGraceDays(t *testing.T) {
	f := newFixture(t, SchedulingOptions{MissedGraceDays: 2})
	started := f.start(t)

	f.clock.Set(time.Date(2024, time.January, 3, 12, 0, 0, 0, time.UTC))
	report, err := f.svc.SweepMissed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Missed)

	f.clock.Set(time.Date(2024, time.January, 4, 12, 0, 0, 0, time.UTC))
	report, err = f.svc.SweepMissed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Missed)

	list := f.instances(t, started.Agreement.Id)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-01-08", list[1].ScheduledDate)
}

func TestSweepMissed_PausedAgreementIsNotRolledForward(t *testing.T) {
	f := newFixture(t, SchedulingOptions{})
	started := f.start(t)

	_, err := f.svc.PauseService(context.Background(), started.Agreement.Id)
	require.NoError(t, err)

	f.clock.Set(time.Date(2024, time.January, 5, 12, 0, 0, 0, time.UTC))
	report, err := f.svc.SweepMissed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Missed)
	assert.Equal(t, 0, report.Materialized)

	list := f.instances(t, started.Agreement.Id)
	require.Len(t, list, 1)
	assert.Equal(t, "missed", list[0].Status)

	res, err := f.svc.ResumeService(context.Background(), started.Agreement.Id)
	require.NoError(t, err)
	require.NotNil(t, res.Instance)
	assert.Equal(t, "2024-01-12", res.Instance.ScheduledDate)
}

func TestSweepMissed_InProgressIsNeverMissed(t *testing.T) {
	f := newFixture(t, SchedulingOptions{})
	started := f.start(t)

	_, err := f.svc.StartInstance(context.Background(), started.CurrentInstance.Id)
	require.NoError(t, err)

	f.clock.Set(time.Date(2024, time.February, 1, 12, 0, 0, 0, time.UTC))
	report, err := f.svc.SweepMissed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)
}

func TestMarkMissedIfOverdue_IsIdempotent(t *testing.T) {
	f := newFixture(t, SchedulingOptions{})
	started := f.start(t)
	ctx := context.Background()
	instanceID := started.CurrentInstance.Id

	notYet, err := f.svc.MarkMissedIfOverdue(ctx, instanceID)
	require.NoError(t, err)
	assert.False(t, notYet.Marked)
	assert.Equal(t, "scheduled", notYet.Instance.Status)

	f.clock.Set(time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC))

	first, err := f.svc.MarkMissedIfOverdue(ctx, instanceID)
	require.NoError(t, err)
	assert.True(t, first.Marked)
	assert.Equal(t, "missed", first.Instance.Status)
	require.NotNil(t, first.NextInstance)
	assert.Equal(t, "2024-01-08", first.NextInstance.ScheduledDate)

	second, err := f.svc.MarkMissedIfOverdue(ctx, instanceID)
	require.NoError(t, err)
	assert.False(t, second.Marked)
	assert.Equal(t, "missed", second.Instance.Status)
	assert.Nil(t, second.NextInstance)

	assert.Len(t, f.instances(t, started.Agreement.Id), 2)

	_, err = f.svc.MarkMissedIfOverdue(ctx, uuid.New())
	assert.Error(t, err)
}

func TestRemindUpcoming_EmitsDueSoonForLookaheadDay(t *testing.T) {
	f := newFixture(t, SchedulingOptions{ReminderLookaheadDays: 1})
	ctx := context.Background()

	tomorrow := weeklyRequest()
	tomorrow.FirstOccurrenceDate = "2024-01-02"
	_, err := f.svc.StartRecurringService(ctx, tomorrow)
	require.NoError(t, err)

	later := weeklyRequest()
	later.FirstOccurrenceDate = "2024-01-05"
	_, err = f.svc.StartRecurringService(ctx, later)
	require.NoError(t, err)
	f.notifier.Reset()

	count, err := f.svc.RemindUpcoming(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	evts := f.notifier.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, events.InstanceDueSoon, evts[0].Type)
	assert.Equal(t, "2024-01-02", evts[0].Payload["scheduled_date"])
	assert.Equal(t, 1, evts[0].Payload["days_until"])
}

func TestRemindUpcoming_DisabledWithoutLookahead(t *testing.T) {
	f := newFixture(t, SchedulingOptions{})
	req := weeklyRequest()
	req.FirstOccurrenceDate = "2024-01-02"
	_, err := f.svc.StartRecurringService(context.Background(), req)
	require.NoError(t, err)

	count, err := f.svc.RemindUpcoming(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSweepMissed_ManyAgreements(t *testing.T) {
	f := newFixture(t, SchedulingOptions{SweepConcurrency: 3})
	ctx := context.Background()

	ids := make([]uuid.UUID, 0, 6)
	for i := 0; i < 6; i++ {
		res, err := f.svc.StartRecurringService(ctx, weeklyRequest())
		require.NoError(t, err)
		ids = append(ids, res.Agreement.Id)
	}

	f.clock.Set(time.Date(2024, time.January, 4, 1, 0, 0, 0, time.UTC))
	report, err := f.svc.SweepMissed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Missed)
	assert.Equal(t, 6, report.Materialized)

	for _, id := range ids {
		list := f.instances(t, id)
		assert.Len(t, list, 2)
		assert.Equal(t, 1, openCount(list))
	}

	list, err := f.svc.ListAgreements(ctx, &dto.ListAgreementsRequest{Status: "active"})
	require.NoError(t, err)
	assert.Len(t, list, 6)
}
