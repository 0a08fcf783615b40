package booking

import "decorbook/internal/apperr"

type Status string

const (
	StatusPending           Status = "pending"
	StatusAssigned          Status = "assigned"
	StatusPlanning          Status = "planning"
	StatusMaterialsPrepared Status = "materials_prepared"
	StatusOnTheWay          Status = "on_the_way"
	StatusSetupInProgress   Status = "setup_in_progress"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
)

// Lifecycle is the ordered happy path. Cancelled sits outside it.
var Lifecycle = []Status{
	StatusPending,
	StatusAssigned,
	StatusPlanning,
	StatusMaterialsPrepared,
	StatusOnTheWay,
	StatusSetupInProgress,
	StatusCompleted,
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusAssigned, StatusPlanning, StatusMaterialsPrepared,
		StatusOnTheWay, StatusSetupInProgress, StatusCompleted, StatusCancelled:
		return Status(s), nil
	default:
		return "", apperr.Validation("unknown status: %s", s)
	}
}

// allowedTransitions is the single transition table. pending has two exits and
// neither is a decorator step: cancel (owner) and assign (admin).
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending:           {StatusAssigned: true, StatusCancelled: true},
	StatusAssigned:          {StatusPlanning: true},
	StatusPlanning:          {StatusMaterialsPrepared: true},
	StatusMaterialsPrepared: {StatusOnTheWay: true},
	StatusOnTheWay:          {StatusSetupInProgress: true},
	StatusSetupInProgress:   {StatusCompleted: true},
	StatusCompleted:         {},
	StatusCancelled:         {},
}

var decoratorNext = map[Status]Status{
	StatusAssigned:          StatusPlanning,
	StatusPlanning:          StatusMaterialsPrepared,
	StatusMaterialsPrepared: StatusOnTheWay,
	StatusOnTheWay:          StatusSetupInProgress,
	StatusSetupInProgress:   StatusCompleted,
}

func CanTransition(from, to Status) bool {
	m, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return m[to]
}

// NextStage returns the single decorator-driven step after s, if any.
func NextStage(s Status) (Status, bool) {
	n, ok := decoratorNext[s]
	return n, ok
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsActive reports whether a decorator is on the booking and work is not finished.
func (s Status) IsActive() bool {
	_, ok := decoratorNext[s]
	return ok
}

// ActiveStatuses lists every status with a decorator at work, in lifecycle order.
func ActiveStatuses() []Status {
	var out []Status
	for _, s := range Lifecycle {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	return out
}

// HasDecorator reports whether a booking in status s must carry an assigned decorator.
func (s Status) HasDecorator() bool {
	return s != StatusPending && s != StatusCancelled
}

// Step is the 1-based position of s on the lifecycle, 0 for cancelled.
func (s Status) Step() int {
	for i, l := range Lifecycle {
		if l == s {
			return i + 1
		}
	}
	return 0
}

var labels = map[Status]string{
	StatusPending:           "Pending",
	StatusAssigned:          "Assigned",
	StatusPlanning:          "Planning",
	StatusMaterialsPrepared: "Materials Prepared",
	StatusOnTheWay:          "On the Way",
	StatusSetupInProgress:   "Setup in Progress",
	StatusCompleted:         "Completed",
	StatusCancelled:         "Cancelled",
}

func (s Status) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// StatusInfo is what clients render for a status so they never hardcode the table.
type StatusInfo struct {
	Status   Status  `json:"status"`
	Label    string  `json:"label"`
	Step     int     `json:"step"`
	Terminal bool    `json:"terminal"`
	Next     *Status `json:"next,omitempty"`
}

func Describe(s Status) StatusInfo {
	info := StatusInfo{Status: s, Label: s.Label(), Step: s.Step(), Terminal: s.IsTerminal()}
	if n, ok := NextStage(s); ok {
		info.Next = &n
	}
	return info
}

func DescribeAll() []StatusInfo {
	out := make([]StatusInfo, 0, len(Lifecycle)+1)
	for _, s := range Lifecycle {
		out = append(out, Describe(s))
	}
	return append(out, Describe(StatusCancelled))
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)
