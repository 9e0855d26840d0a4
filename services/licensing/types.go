package licensing

import (
	"math"
	"time"
)

// Type is a license tier. The tier decides base price, seat and resource
// limits, feature flags and the grace period applied after expiry.
type Type string

const (
	TypeInactive Type = "inactive"
	TypePilot    Type = "pilot"
	TypeFree     Type = "free"
	TypeStandard Type = "standard"
	TypePremium  Type = "premium"
)

type Features struct {
	EmailNotifications bool `json:"emailNotifications"`
	CustomBranding     bool `json:"customBranding"`
	PrioritySupport    bool `json:"prioritySupport"`
}

type Limits struct {
	MaxUsers     int `json:"maxUsers"`
	MaxResources int `json:"maxResources"`
}

// Definition is the built-in configuration of a license tier. Prices are in
// NOK per month; a TypePrice row may override Price per tier.
type Definition struct {
	Name            string
	MaxUsers        int
	MaxResources    int
	GracePeriodDays int
	Features        Features
	Price           int
}

var Types = map[Type]Definition{
	TypeInactive: {
		Name:            "Inaktiv",
		MaxUsers:        0,
		MaxResources:    0,
		GracePeriodDays: 0,
		Features:        Features{},
		Price:           0,
	},
	TypePilot: {
		Name:            "Pilotkunde",
		MaxUsers:        100,
		MaxResources:    20,
		GracePeriodDays: 14,
		Features: Features{
			EmailNotifications: true,
			CustomBranding:     true,
			PrioritySupport:    true,
		},
		Price: 0, // gratis for pilotkunder
	},
	TypeFree: {
		Name:            "Prøveperiode",
		MaxUsers:        10,
		MaxResources:    2,
		GracePeriodDays: 0,
		Features:        Features{},
		Price:           0,
	},
	TypeStandard: {
		Name:            "Standard",
		MaxUsers:        50,
		MaxResources:    10,
		GracePeriodDays: 14,
		Features: Features{
			EmailNotifications: true,
			CustomBranding:     true,
		},
		Price: 299, // kr/mnd
	},
	TypePremium: {
		Name:            "Premium",
		MaxUsers:        200,
		MaxResources:    50,
		GracePeriodDays: 30,
		Features: Features{
			EmailNotifications: true,
			CustomBranding:     true,
			PrioritySupport:    true,
		},
		Price: 599, // kr/mnd
	},
}

// TypeOrder lists the tiers in presentation order.
var TypeOrder = []Type{TypeInactive, TypePilot, TypeFree, TypeStandard, TypePremium}

// Valid reports whether t names a known license tier.
func Valid(t Type) bool {
	_, ok := Types[t]
	return ok
}

// TypeName returns the display name for t, falling back to the raw value for
// unknown tiers.
func TypeName(t Type) string {
	if def, ok := Types[t]; ok {
		return def.Name
	}
	return string(t)
}

// LimitsFor resolves effective limits. A non-nil per-organization override
// always wins over the tier default.
func LimitsFor(t Type, maxUsers, maxResources *int) Limits {
	def := Types[t]
	l := Limits{MaxUsers: def.MaxUsers, MaxResources: def.MaxResources}
	if maxUsers != nil {
		l.MaxUsers = *maxUsers
	}
	if maxResources != nil {
		l.MaxResources = *maxResources
	}
	return l
}

// FeaturesFor returns the tier's feature flags.
func FeaturesFor(t Type) Features {
	return Types[t].Features
}

// GracePeriodDays returns the grace window length for the tier.
func GracePeriodDays(t Type) int {
	return Types[t].GracePeriodDays
}

// BasePrice resolves the monthly base price: an explicit override row wins
// over the built-in tier default.
func BasePrice(t Type, override *int) int {
	if override != nil {
		return *override
	}
	return Types[t].Price
}

// MonthlyPrice totals the base price plus every active module's price. A nil
// module price means the module is bundled and contributes nothing.
func MonthlyPrice(basePrice int, modulePrices []*int) int {
	total := basePrice
	for _, p := range modulePrices {
		if p != nil {
			total += *p
		}
	}
	return total
}

// DaysUntil returns the number of whole days from now until t, rounded up.
func DaysUntil(t time.Time, now time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

// GraceDaysLeft returns remaining grace days, floored at zero.
func GraceDaysLeft(graceEndsAt *time.Time, now time.Time) int {
	if graceEndsAt == nil {
		return 0
	}
	days := DaysUntil(*graceEndsAt, now)
	if days < 0 {
		return 0
	}
	return days
}
