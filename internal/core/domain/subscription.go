package domain

import "time"

// ProductArea is one independently subscribed software offering.
type ProductArea string

const (
	ProductHospitalPMS       ProductArea = "hospital-pms"
	ProductPharmacyPOS       ProductArea = "pharmacy-pos"
	ProductLabReporting      ProductArea = "lab-reporting"
	ProductQuickInvoice      ProductArea = "quick-invoice"
	ProductPrivateClinicLite ProductArea = "private-clinic-lite"
)

var productAreas = map[ProductArea]struct{}{
	ProductHospitalPMS:       {},
	ProductPharmacyPOS:       {},
	ProductLabReporting:      {},
	ProductQuickInvoice:      {},
	ProductPrivateClinicLite: {},
}

// Valid reports whether p is a known product area.
func (p ProductArea) Valid() bool {
	_, ok := productAreas[p]
	return ok
}

type PlanKind string

const (
	PlanTrial   PlanKind = "trial"
	PlanMonthly PlanKind = "monthly"
	PlanYearly  PlanKind = "yearly"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription grants an account access to one product area. There is at most
// one per (AccountID, ProductArea).
type Subscription struct {
	ID          string             `json:"id"`
	AccountID   string             `json:"accountId"`
	ProductArea ProductArea        `json:"productSlug"`
	PlanKind    PlanKind           `json:"planType"`
	Status      SubscriptionStatus `json:"status"`
	StartDate   time.Time          `json:"startDate"`
	EndDate     time.Time          `json:"endDate"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// Accessible reports whether the subscription grants access at now.
func (s *Subscription) Accessible(now time.Time) bool {
	return s.Status == SubscriptionActive && now.Before(s.EndDate)
}

// Overdue reports whether the subscription is still marked active although
// its end date has passed. Overdue records must be persisted as expired.
func (s *Subscription) Overdue(now time.Time) bool {
	return s.Status == SubscriptionActive && !now.Before(s.EndDate)
}

// SubscriptionSummary is what the subscription gate attaches to a request.
type SubscriptionSummary struct {
	ProductArea ProductArea        `json:"productArea"`
	PlanKind    PlanKind           `json:"planKind"`
	Status      SubscriptionStatus `json:"status"`
	EndDate     time.Time          `json:"endDate"`
}

func (s *Subscription) Summary() SubscriptionSummary {
	return SubscriptionSummary{
		ProductArea: s.ProductArea,
		PlanKind:    s.PlanKind,
		Status:      s.Status,
		EndDate:     s.EndDate,
	}
}
