package services

import (
  "fmt"
  "strings"
  "github.com/dueday/dueday-backend/internal/types"
)

const defaultCategory = "General"

// CategoryPerformance aggregates the graded assignments of one assignment
// group. Average is nil, never zero, when the group has no graded item with
// positive possible points.
type CategoryPerformance struct {
  Category       string    `json:"category"`
  GradedCount    int       `json:"graded_count"`
  PointsEarned   float64   `json:"points_earned"`
  PointsPossible float64   `json:"points_possible"`
  Percentages    []float64 `json:"percentages"`
  Average        *float64  `json:"average,omitempty"`
}

// CoursePerformance groups category aggregates for one course.
type CoursePerformance struct {
  CourseCode string                `json:"course_code"`
  CourseName string                `json:"course_name"`
  Categories []CategoryPerformance `json:"categories"`
}

// DerivePerformance computes the per-category grade aggregates over the full
// snapshot. It always runs on the complete current state, not the delta:
// spotting historically weak categories needs every graded item the user has,
// not just this run's new ones. Pure; category order follows first appearance.
func DerivePerformance(courses []types.CourseSnapshot) []CoursePerformance {
  out := make([]CoursePerformance, 0, len(courses))
  for _, course := range courses {
    perf := CoursePerformance{
      CourseCode: course.CourseCode,
      CourseName: course.Name,
    }

    order := []string{}
    byCategory := map[string]*CategoryPerformance{}
    for _, a := range course.Assignments {
      category := a.GroupName
      if category == "" {
        category = defaultCategory
      }
      group, ok := byCategory[category]
      if !ok {
        group = &CategoryPerformance{Category: category}
        byCategory[category] = group
        order = append(order, category)
      }
      if !a.Graded() || a.PointsPossible == nil {
        continue
      }
      group.GradedCount++
      group.PointsEarned += *a.Submission.Score
      group.PointsPossible += *a.PointsPossible
      if *a.PointsPossible > 0 {
        group.Percentages = append(group.Percentages, (*a.Submission.Score / *a.PointsPossible) * 100)
      }
    }

    for _, category := range order {
      group := byCategory[category]
      if group.PointsPossible > 0 {
        avg := group.PointsEarned / group.PointsPossible * 100
        group.Average = &avg
      }
      perf.Categories = append(perf.Categories, *group)
    }
    out = append(out, perf)
  }
  return out
}

// FormatPerformanceSummary renders the aggregates as the human-readable block
// the enrichment prompt leads with.
func FormatPerformanceSummary(summaries []CoursePerformance) string {
  var b strings.Builder
  for _, course := range summaries {
    if len(course.Categories) == 0 {
      continue
    }
    fmt.Fprintf(&b, "%s (%s):\n", course.CourseName, course.CourseCode)
    for _, cat := range course.Categories {
      if cat.Average == nil {
        fmt.Fprintf(&b, "  - %s: no graded work yet\n", cat.Category)
        continue
      }
      fmt.Fprintf(&b, "  - %s: %.1f%% (%d graded, %.1f/%.1f points)\n",
        cat.Category, *cat.Average, cat.GradedCount, cat.PointsEarned, cat.PointsPossible)
    }
  }
  if b.Len() == 0 {
    return "No graded work recorded yet."
  }
  return strings.TrimRight(b.String(), "\n")
}
