package licensing

import (
	"fmt"
	"time"
)

// Status is the effective license state at a point in time. It is always
// recomputed from the organization row, never cached.
type Status string

const (
	StatusActive    Status = "active"
	StatusGrace     Status = "grace"
	StatusExpired   Status = "expired"
	StatusSuspended Status = "suspended"
	StatusInvalid   Status = "invalid"
)

// Snapshot carries the organization fields the resolver needs.
type Snapshot struct {
	IsActive      bool
	IsSuspended   bool
	SuspendReason string
	LicenseType   Type
	ExpiresAt     time.Time
	GraceEndsAt   *time.Time
}

// Resolution is the outcome of resolving a snapshot.
type Resolution struct {
	Status  Status
	Valid   bool
	Message string
	// GraceEndsAt is the effective grace deadline: the stored value, or
	// expiresAt plus the tier's grace period when unset.
	GraceEndsAt *time.Time
	// DaysLeft is remaining grace days when Status is grace.
	DaysLeft int
	// DaysUntilExpiry is set when Status is active.
	DaysUntilExpiry int
}

// Resolve evaluates the license state in strict order: suspended, then
// deactivated, then expired (with grace window), then active. First match
// wins.
func Resolve(s Snapshot, now time.Time) Resolution {
	graceEndsAt := s.GraceEndsAt
	if graceEndsAt == nil {
		if days := GracePeriodDays(s.LicenseType); days > 0 {
			end := s.ExpiresAt.Add(time.Duration(days) * 24 * time.Hour)
			graceEndsAt = &end
		}
	}

	if s.IsSuspended {
		message := s.SuspendReason
		if message == "" {
			message = "Lisensen er suspendert. Kontakt support."
		}
		return Resolution{
			Status:      StatusSuspended,
			Valid:       false,
			Message:     message,
			GraceEndsAt: graceEndsAt,
		}
	}

	if !s.IsActive {
		return Resolution{
			Status:      StatusSuspended,
			Valid:       false,
			Message:     "Lisensen er deaktivert. Kontakt support.",
			GraceEndsAt: graceEndsAt,
		}
	}

	if s.ExpiresAt.Before(now) {
		if graceEndsAt != nil && !now.After(*graceEndsAt) {
			daysLeft := GraceDaysLeft(graceEndsAt, now)
			return Resolution{
				Status:      StatusGrace,
				Valid:       true,
				Message:     fmt.Sprintf("Abonnementet har utløpt. %d dager igjen av grace period.", daysLeft),
				GraceEndsAt: graceEndsAt,
				DaysLeft:    daysLeft,
			}
		}
		return Resolution{
			Status:      StatusExpired,
			Valid:       false,
			Message:     "Lisensen har utløpt. Kontakt support for å fornye.",
			GraceEndsAt: graceEndsAt,
		}
	}

	return Resolution{
		Status:          StatusActive,
		Valid:           true,
		GraceEndsAt:     graceEndsAt,
		DaysUntilExpiry: DaysUntil(s.ExpiresAt, now),
	}
}
