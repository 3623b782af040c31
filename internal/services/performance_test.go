package services

import (
  "strings"
  "testing"

  "github.com/dueday/dueday-backend/internal/types"
)

func fptr(v float64) *float64 { return &v }

func gradedAssignment(group string, score, possible float64) types.AssignmentItem {
  return types.AssignmentItem{
    Name:           "graded",
    GroupName:      group,
    PointsPossible: fptr(possible),
    Submission:     &types.SubmissionInfo{Score: fptr(score), WorkflowState: "graded"},
  }
}

func TestDerivePerformance(t *testing.T) {
  cases := []struct {
    name   string
    course types.CourseSnapshot
    check  func(t *testing.T, got CoursePerformance)
  }{
    {
      name: "averages_by_category",
      course: types.CourseSnapshot{
        Name:       "Chemistry",
        CourseCode: "CHEM-201",
        Assignments: []types.AssignmentItem{
          gradedAssignment("Quizzes", 8, 10),
          gradedAssignment("Quizzes", 6, 10),
          gradedAssignment("Labs", 45, 50),
        },
      },
      check: func(t *testing.T, got CoursePerformance) {
        if len(got.Categories) != 2 {
          t.Fatalf("got %d categories, want 2", len(got.Categories))
        }
        quizzes := got.Categories[0]
        if quizzes.Category != "Quizzes" || quizzes.GradedCount != 2 {
          t.Fatalf("unexpected first category: %+v", quizzes)
        }
        if quizzes.Average == nil || *quizzes.Average != 70 {
          t.Fatalf("quizzes average = %v, want 70", quizzes.Average)
        }
        labs := got.Categories[1]
        if labs.Average == nil || *labs.Average != 90 {
          t.Fatalf("labs average = %v, want 90", labs.Average)
        }
      },
    },
    {
      name: "no_graded_work_means_nil_average",
      course: types.CourseSnapshot{
        Name:       "History",
        CourseCode: "HIST-110",
        Assignments: []types.AssignmentItem{
          {Name: "Essay", GroupName: "Essays", PointsPossible: fptr(100)},
        },
      },
      check: func(t *testing.T, got CoursePerformance) {
        if len(got.Categories) != 1 {
          t.Fatalf("ungraded category was dropped")
        }
        if got.Categories[0].Average != nil {
          t.Fatalf("average = %v, want nil for ungraded category", *got.Categories[0].Average)
        }
        if got.Categories[0].GradedCount != 0 {
          t.Fatalf("graded count = %d, want 0", got.Categories[0].GradedCount)
        }
      },
    },
    {
      name: "zero_possible_points_means_nil_average",
      course: types.CourseSnapshot{
        Name:       "Seminar",
        CourseCode: "SEM-300",
        Assignments: []types.AssignmentItem{
          gradedAssignment("Participation", 0, 0),
        },
      },
      check: func(t *testing.T, got CoursePerformance) {
        cat := got.Categories[0]
        if cat.Average != nil {
          t.Fatalf("average = %v, want nil when no positive possible points", *cat.Average)
        }
        if cat.GradedCount != 1 {
          t.Fatalf("graded count = %d, want 1", cat.GradedCount)
        }
      },
    },
    {
      name: "missing_group_uses_default_category",
      course: types.CourseSnapshot{
        Name:       "Writing",
        CourseCode: "WRI-100",
        Assignments: []types.AssignmentItem{
          gradedAssignment("", 9, 10),
        },
      },
      check: func(t *testing.T, got CoursePerformance) {
        if got.Categories[0].Category != "General" {
          t.Fatalf("category = %q, want General", got.Categories[0].Category)
        }
      },
    },
    {
      name: "ungraded_submission_excluded",
      course: types.CourseSnapshot{
        Name:       "Math",
        CourseCode: "MATH-120",
        Assignments: []types.AssignmentItem{
          {
            Name:           "Homework 1",
            GroupName:      "Homework",
            PointsPossible: fptr(20),
            Submission:     &types.SubmissionInfo{Score: fptr(15), WorkflowState: "submitted"},
          },
        },
      },
      check: func(t *testing.T, got CoursePerformance) {
        if got.Categories[0].GradedCount != 0 {
          t.Fatalf("submitted-but-ungraded work was counted as graded")
        }
      },
    },
  }

  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      out := DerivePerformance([]types.CourseSnapshot{tc.course})
      if len(out) != 1 {
        t.Fatalf("got %d course summaries, want 1", len(out))
      }
      tc.check(t, out[0])
    })
  }
}

func TestFormatPerformanceSummary(t *testing.T) {
  avg := 85.0
  summaries := []CoursePerformance{{
    CourseCode: "CHEM-201",
    CourseName: "Chemistry",
    Categories: []CategoryPerformance{
      {Category: "Quizzes", GradedCount: 2, PointsEarned: 17, PointsPossible: 20, Average: &avg},
      {Category: "Labs"},
    },
  }}

  got := FormatPerformanceSummary(summaries)
  if !strings.Contains(got, "Chemistry (CHEM-201):") {
    t.Fatalf("missing course header in %q", got)
  }
  if !strings.Contains(got, "Quizzes: 85.0%") {
    t.Fatalf("missing quizzes average in %q", got)
  }
  if !strings.Contains(got, "Labs: no graded work yet") {
    t.Fatalf("missing nil-average line in %q", got)
  }

  if got := FormatPerformanceSummary(nil); got != "No graded work recorded yet." {
    t.Fatalf("empty summary = %q", got)
  }
}
