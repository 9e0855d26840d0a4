package licensing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonthlyPriceWithModules(t *testing.T) {
	base := BasePrice(TypeStandard, nil)
	require.Equal(t, 299, base)

	price99 := 99
	total := MonthlyPrice(base, []*int{&price99})
	require.Equal(t, 398, total)
}

func TestMonthlyPriceSkipsBundledModules(t *testing.T) {
	price50 := 50
	total := MonthlyPrice(100, []*int{nil, &price50, nil})
	require.Equal(t, 150, total)
}

func TestBasePriceOverrideWins(t *testing.T) {
	override := 349
	require.Equal(t, 349, BasePrice(TypeStandard, &override))

	zero := 0
	require.Equal(t, 0, BasePrice(TypePremium, &zero))
}

func TestLimitsForTierDefaults(t *testing.T) {
	l := LimitsFor(TypeStandard, nil, nil)
	require.Equal(t, 50, l.MaxUsers)
	require.Equal(t, 10, l.MaxResources)
}

func TestLimitsForOrganizationOverride(t *testing.T) {
	maxUsers := 75
	l := LimitsFor(TypeStandard, &maxUsers, nil)
	require.Equal(t, 75, l.MaxUsers)
	require.Equal(t, 10, l.MaxResources)
}

func TestDaysUntilRoundsUp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.Equal(t, 1, DaysUntil(now.Add(1*time.Hour), now))
	require.Equal(t, 5, DaysUntil(now.Add(5*24*time.Hour), now))
	require.Equal(t, 6, DaysUntil(now.Add(5*24*time.Hour+time.Minute), now))
	require.Equal(t, -5, DaysUntil(now.Add(-5*24*time.Hour), now))
}

func TestGraceDaysLeftFloorsAtZero(t *testing.T) {
	now := time.Now()
	past := now.Add(-48 * time.Hour)
	require.Equal(t, 0, GraceDaysLeft(&past, now))
	require.Equal(t, 0, GraceDaysLeft(nil, now))
}

func TestTierTableValues(t *testing.T) {
	require.Equal(t, "Pilotkunde", Types[TypePilot].Name)
	require.Equal(t, 100, Types[TypePilot].MaxUsers)
	require.Equal(t, 0, Types[TypePilot].Price)
	require.True(t, Types[TypePilot].Features.PrioritySupport)

	require.Equal(t, "Prøveperiode", Types[TypeFree].Name)
	require.Equal(t, 0, Types[TypeFree].GracePeriodDays)
	require.False(t, Types[TypeFree].Features.EmailNotifications)

	require.Equal(t, 30, Types[TypePremium].GracePeriodDays)
	require.Equal(t, 599, Types[TypePremium].Price)
}

func TestValid(t *testing.T) {
	require.True(t, Valid(TypeStandard))
	require.False(t, Valid(Type("enterprise")))
}
