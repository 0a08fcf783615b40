package booking

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CommissionRate is the decorator's share of a booking's service cost.
var CommissionRate = decimal.RequireFromString("0.30")

const moneyScale int32 = 2

type Earnings struct {
	DecoratorEmail  string          `json:"decoratorEmail"`
	CommissionRate  decimal.Decimal `json:"commissionRate"`
	CompletedCount  int             `json:"completedCount"`
	ActiveCount     int             `json:"activeCount"`
	Earned          decimal.Decimal `json:"earned"`
	PendingEarnings decimal.Decimal `json:"pendingEarnings"`
	Completed       []Booking       `json:"completed"`
	Active          []Booking       `json:"active"`
}

// ComputeEarnings splits the decorator's bookings into completed work (earned)
// and work still in flight (pending). Cancelled and unassigned bookings count for nothing.
func ComputeEarnings(bookings []Booking, decoratorEmail string) Earnings {
	out := Earnings{
		DecoratorEmail:  decoratorEmail,
		CommissionRate:  CommissionRate,
		Earned:          decimal.Zero,
		PendingEarnings: decimal.Zero,
		Completed:       []Booking{},
		Active:          []Booking{},
	}
	for _, b := range bookings {
		if !b.AssignedTo(decoratorEmail) {
			continue
		}
		share := b.ServiceCost.Mul(CommissionRate)
		switch {
		case b.Status == StatusCompleted:
			out.CompletedCount++
			out.Earned = out.Earned.Add(share)
			out.Completed = append(out.Completed, b)
		case b.Status.IsActive():
			out.ActiveCount++
			out.PendingEarnings = out.PendingEarnings.Add(share)
			out.Active = append(out.Active, b)
		}
	}
	out.Earned = out.Earned.Round(moneyScale)
	out.PendingEarnings = out.PendingEarnings.Round(moneyScale)
	return out
}

type ServiceDemand struct {
	ServiceID   string          `json:"serviceId"`
	ServiceName string          `json:"serviceName"`
	Bookings    int             `json:"bookings"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type RevenueSummary struct {
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	TotalBookings int             `json:"totalBookings"`
	PaidCount     int             `json:"paidCount"`
	UnpaidCount   int             `json:"unpaidCount"`
	ByStatus      map[Status]int  `json:"byStatus"`
	ServiceDemand []ServiceDemand `json:"serviceDemand"`
}

// ComputeRevenueSummary sums service cost over paid bookings. Demand counts every
// booking of a service; its revenue only the paid ones.
func ComputeRevenueSummary(bookings []Booking) RevenueSummary {
	out := RevenueSummary{
		TotalRevenue:  decimal.Zero,
		TotalBookings: len(bookings),
		ByStatus:      make(map[Status]int, len(allowedTransitions)),
		ServiceDemand: []ServiceDemand{},
	}
	for s := range allowedTransitions {
		out.ByStatus[s] = 0
	}

	demand := map[string]*ServiceDemand{}
	for _, b := range bookings {
		out.ByStatus[b.Status]++

		d, ok := demand[b.ServiceID]
		if !ok {
			d = &ServiceDemand{ServiceID: b.ServiceID, ServiceName: b.ServiceName, Revenue: decimal.Zero}
			demand[b.ServiceID] = d
		}
		d.Bookings++

		if b.IsPaid() {
			out.PaidCount++
			out.TotalRevenue = out.TotalRevenue.Add(b.ServiceCost)
			d.Revenue = d.Revenue.Add(b.ServiceCost)
		} else {
			out.UnpaidCount++
		}
	}
	out.TotalRevenue = out.TotalRevenue.Round(moneyScale)

	for _, d := range demand {
		d.Revenue = d.Revenue.Round(moneyScale)
		out.ServiceDemand = append(out.ServiceDemand, *d)
	}
	sort.Slice(out.ServiceDemand, func(i, j int) bool {
		a, b := out.ServiceDemand[i], out.ServiceDemand[j]
		if a.Bookings != b.Bookings {
			return a.Bookings > b.Bookings
		}
		return a.ServiceName < b.ServiceName
	})
	return out
}
