package task

import (
	"math"
	"slices"
	"strings"
	"time"
)

// DefaultCategories are the task categories accepted when none are configured.
var DefaultCategories = []string{
	"Web Development",
	"Graphic Design",
	"Content Writing",
	"Tech Support",
}

// Content holds the owner-editable fields of a task.
type Content struct {
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	Deadline     time.Time `json:"deadline"`
	Requirements []string  `json:"requirements"`
}

// Patch is a partial update of task content. Nil fields stay unchanged.
type Patch struct {
	Title        *string    `json:"title,omitempty"`
	Category     *string    `json:"category,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Price        *float64   `json:"price,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Requirements []string   `json:"requirements,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Category == nil && p.Description == nil &&
		p.Price == nil && p.Deadline == nil && p.Requirements == nil
}

// ValidateContent checks the fields required to post a task.
// Requirements are returned trimmed with blank lines dropped.
func ValidateContent(c Content, now time.Time) (Content, error) {
	c.Title = strings.TrimSpace(c.Title)
	c.Category = strings.TrimSpace(c.Category)
	c.Description = strings.TrimSpace(c.Description)

	if c.Title == "" {
		return c, invalid("title is required")
	}
	if c.Category == "" {
		return c, invalid("category is required")
	}
	if c.Description == "" {
		return c, invalid("description is required")
	}
	if err := validateAmount("price", c.Price); err != nil {
		return c, err
	}
	if err := validateDeadline(c.Deadline, now); err != nil {
		return c, err
	}
	reqs := cleanRequirements(c.Requirements)
	if len(reqs) == 0 {
		return c, invalid("at least one requirement is required")
	}
	c.Requirements = reqs
	return c, nil
}

// ValidateCategory checks category against the allowed list. An empty list allows any category.
func ValidateCategory(category string, allowed []string) error {
	if len(allowed) == 0 || slices.Contains(allowed, category) {
		return nil
	}
	return invalid("unknown category %q", category)
}

// ValidateAmount rejects non-positive or non-finite bid amounts.
func ValidateAmount(amount float64) error {
	return validateAmount("bid amount", amount)
}

func validateAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid("%s must be a number", field)
	}
	if v <= 0 {
		return invalid("%s must be greater than zero", field)
	}
	return nil
}

// validateDeadline accepts any deadline from the start of today onwards.
func validateDeadline(deadline, now time.Time) error {
	if deadline.IsZero() {
		return invalid("deadline is required")
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if deadline.Before(today) {
		return invalid("deadline must be in the future")
	}
	return nil
}

func cleanRequirements(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// applyPatch validates p and writes it onto t's content fields.
func applyPatch(t *Task, p Patch, now time.Time) error {
	if p.Empty() {
		return invalid("no fields to update")
	}
	if p.Title != nil {
		v := strings.TrimSpace(*p.Title)
		if v == "" {
			return invalid("title is required")
		}
		t.Title = v
	}
	if p.Category != nil {
		v := strings.TrimSpace(*p.Category)
		if v == "" {
			return invalid("category is required")
		}
		t.Category = v
	}
	if p.Description != nil {
		v := strings.TrimSpace(*p.Description)
		if v == "" {
			return invalid("description is required")
		}
		t.Description = v
	}
	if p.Price != nil {
		if err := validateAmount("price", *p.Price); err != nil {
			return err
		}
		t.Price = *p.Price
	}
	if p.Deadline != nil {
		if err := validateDeadline(*p.Deadline, now); err != nil {
			return err
		}
		t.Deadline = *p.Deadline
	}
	if p.Requirements != nil {
		reqs := cleanRequirements(p.Requirements)
		if len(reqs) == 0 {
			return invalid("at least one requirement is required")
		}
		t.Requirements = reqs
	}
	return nil
}
