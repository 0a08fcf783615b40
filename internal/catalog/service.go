package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"decorbook/internal/apperr"
)

type Category string

const (
	CategoryHome     Category = "home"
	CategoryWedding  Category = "wedding"
	CategoryOffice   Category = "office"
	CategorySeminar  Category = "seminar"
	CategoryMeeting  Category = "meeting"
	CategoryBirthday Category = "birthday"
)

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryHome, CategoryWedding, CategoryOffice, CategorySeminar, CategoryMeeting, CategoryBirthday:
		return c, nil
	default:
		return "", apperr.Validation("unknown category: %s", s)
	}
}

// Service is a catalog item. Bookings copy name, image and cost at creation time,
// so edits here never affect existing bookings.
type Service struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Category       Category        `json:"category"`
	Cost           decimal.Decimal `json:"cost"`
	Unit           string          `json:"unit"`
	Description    string          `json:"description"`
	Image          string          `json:"image"`
	CreatedByEmail string          `json:"createdByEmail,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Input is the admin-editable part of a Service.
type Input struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Category    string          `json:"category" validate:"required"`
	Cost        decimal.Decimal `json:"cost"`
	Unit        string          `json:"unit" validate:"required,max=60"`
	Description string          `json:"description" validate:"max=4000"`
	Image       string          `json:"image" validate:"omitempty,url"`
}

// Normalize trims free-text fields and checks the business rules the tags can't express.
func (in Input) Normalize() (Input, Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	in.Description = strings.TrimSpace(in.Description)
	in.Image = strings.TrimSpace(in.Image)

	if in.Name == "" {
		return in, "", apperr.Validation("name is required")
	}
	if in.Unit == "" {
		return in, "", apperr.Validation("unit is required")
	}
	cat, err := ParseCategory(in.Category)
	if err != nil {
		return in, "", err
	}
	if in.Cost.LessThanOrEqual(decimal.Zero) {
		return in, "", apperr.Validation("cost must be > 0")
	}
	in.Cost = in.Cost.Round(2)
	return in, cat, nil
}

// Filter mirrors the public services listing query string.
type Filter struct {
	Search   string
	Category Category
	MinCost  *decimal.Decimal
	MaxCost  *decimal.Decimal
	Limit    int
}
