package services

import (
  "testing"
  "time"

  "go.uber.org/zap"
  "go.uber.org/zap/zapcore"
  "go.uber.org/zap/zaptest/observer"

  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  return log
}

func TestAssignCourseStableIDs(t *testing.T) {
  due := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
  posted := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

  cases := []struct {
    name   string
    course types.CourseSnapshot
    check  func(t *testing.T, got types.CourseSnapshot)
  }{
    {
      name: "assignment_native_id",
      course: types.CourseSnapshot{
        CourseID:    7,
        Assignments: []types.AssignmentItem{{AssignmentID: 56, Name: "Problem Set 4"}},
      },
      check: func(t *testing.T, got types.CourseSnapshot) {
        if got.Assignments[0].StableID != "assignment-56" {
          t.Fatalf("stable id = %q, want assignment-56", got.Assignments[0].StableID)
        }
      },
    },
    {
      name: "assignment_fallback_due_and_name",
      course: types.CourseSnapshot{
        CourseID:    7,
        Assignments: []types.AssignmentItem{{Name: "Problem Set 4", DueAt: &due}},
      },
      check: func(t *testing.T, got types.CourseSnapshot) {
        want := "assignment-1773187140-ProblemSet4"
        if got.Assignments[0].StableID != want {
          t.Fatalf("stable id = %q, want %q", got.Assignments[0].StableID, want)
        }
      },
    },
    {
      name: "assignment_fallback_course_and_name",
      course: types.CourseSnapshot{
        CourseID:    7,
        Assignments: []types.AssignmentItem{{Name: "  Final   Essay "}},
      },
      check: func(t *testing.T, got types.CourseSnapshot) {
        want := "assignment-7-FinalEssay"
        if got.Assignments[0].StableID != want {
          t.Fatalf("stable id = %q, want %q", got.Assignments[0].StableID, want)
        }
      },
    },
    {
      name: "announcement_fallback_posted",
      course: types.CourseSnapshot{
        CourseID:      7,
        Announcements: []types.AnnouncementItem{{Title: "Midterm moved", PostedAt: &posted}},
      },
      check: func(t *testing.T, got types.CourseSnapshot) {
        want := "announcement-1772355600-Midtermmoved"
        if got.Announcements[0].StableID != want {
          t.Fatalf("stable id = %q, want %q", got.Announcements[0].StableID, want)
        }
      },
    },
    {
      name: "module_entry_native_and_fallback",
      course: types.CourseSnapshot{
        CourseID: 7,
        Modules: []types.ModuleSection{{
          ModuleID: 3,
          Entries: []types.ModuleEntry{
            {EntryID: 91, Title: "Week 5 Reading"},
            {Title: "Week 6 Reading"},
          },
        }},
      },
      check: func(t *testing.T, got types.CourseSnapshot) {
        if got.Modules[0].Entries[0].StableID != "module-item-91" {
          t.Fatalf("entry 0 stable id = %q", got.Modules[0].Entries[0].StableID)
        }
        if got.Modules[0].Entries[1].StableID != "module-item-3-Week6Reading" {
          t.Fatalf("entry 1 stable id = %q", got.Modules[0].Entries[1].StableID)
        }
      },
    },
  }

  assigner := NewStableIDAssigner(testLogger(t))
  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      tc.check(t, assigner.AssignCourse(tc.course))
    })
  }
}

func TestAssignCourseIsDeterministic(t *testing.T) {
  assigner := NewStableIDAssigner(testLogger(t))
  due := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
  course := types.CourseSnapshot{
    CourseID:      11,
    Assignments:   []types.AssignmentItem{{Name: "Lab Report", DueAt: &due}},
    Announcements: []types.AnnouncementItem{{Title: "Office hours"}},
  }

  first := assigner.AssignCourse(course)
  second := assigner.AssignCourse(course)
  if first.Assignments[0].StableID != second.Assignments[0].StableID {
    t.Fatalf("assignment ids differ: %q vs %q", first.Assignments[0].StableID, second.Assignments[0].StableID)
  }
  if first.Announcements[0].StableID != second.Announcements[0].StableID {
    t.Fatalf("announcement ids differ: %q vs %q", first.Announcements[0].StableID, second.Announcements[0].StableID)
  }
}

func TestAssignCourseLeavesExistingIDs(t *testing.T) {
  assigner := NewStableIDAssigner(testLogger(t))
  course := types.CourseSnapshot{
    CourseID:    9,
    Assignments: []types.AssignmentItem{{StableID: "assignment-already-set", AssignmentID: 123, Name: "Quiz"}},
  }
  got := assigner.AssignCourse(course)
  if got.Assignments[0].StableID != "assignment-already-set" {
    t.Fatalf("existing stable id was reassigned to %q", got.Assignments[0].StableID)
  }
}

func TestAssignCourseDoesNotMutateInput(t *testing.T) {
  assigner := NewStableIDAssigner(testLogger(t))
  course := types.CourseSnapshot{
    CourseID:    9,
    Assignments: []types.AssignmentItem{{AssignmentID: 5, Name: "Quiz"}},
  }
  _ = assigner.AssignCourse(course)
  if course.Assignments[0].StableID != "" {
    t.Fatalf("input assignment gained stable id %q", course.Assignments[0].StableID)
  }
}

func TestAssignMailboxStableIDs(t *testing.T) {
  assigner := NewStableIDAssigner(testLogger(t))
  received := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

  box := types.MailboxSnapshot{
    LabelID:   "INBOX",
    LabelName: "Inbox",
    Messages: []types.MailMessage{
      {MessageID: "18f2ab9cd", Subject: "Advising appointment"},
      {Subject: "Career fair next week", ReceivedAt: &received},
      {Subject: "No id no timestamp"},
    },
  }
  got := assigner.AssignMailbox(box)

  if got.Messages[0].StableID != "message-18f2ab9cd" {
    t.Fatalf("message 0 stable id = %q", got.Messages[0].StableID)
  }
  if got.Messages[1].StableID != "message-1777624200-Careerfairnextweek" {
    t.Fatalf("message 1 stable id = %q", got.Messages[1].StableID)
  }
  if got.Messages[2].StableID != "message-INBOX-Noidnotimestamp" {
    t.Fatalf("message 2 stable id = %q", got.Messages[2].StableID)
  }
}

func observedAssigner(t *testing.T) (*StableIDAssigner, *observer.ObservedLogs) {
  t.Helper()
  core, logs := observer.New(zapcore.WarnLevel)
  log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}
  return NewStableIDAssigner(log), logs
}

func TestAssignMailboxFlagsCollisions(t *testing.T) {
  assigner, logs := observedAssigner(t)

  box := types.MailboxSnapshot{
    LabelID: "INBOX",
    Messages: []types.MailMessage{
      {Subject: "Office hours"},
      {Subject: " Office  hours "},
      {Subject: "Career fair", MessageID: "18f2ab9cd"},
    },
  }
  got := assigner.AssignMailbox(box)

  if got.Messages[0].StableID != got.Messages[1].StableID {
    t.Fatalf("expected fallback ids to collide, got %q and %q",
      got.Messages[0].StableID, got.Messages[1].StableID)
  }

  warns := logs.FilterMessage("Stable ID collision within container").All()
  if len(warns) != 1 {
    t.Fatalf("collision warnings = %d, want 1", len(warns))
  }
  fields := warns[0].ContextMap()
  if fields["container"] != "mailbox-INBOX" {
    t.Fatalf("container = %v, want mailbox-INBOX", fields["container"])
  }
  if fields["stable_id"] != "message-INBOX-Officehours" {
    t.Fatalf("stable_id = %v, want message-INBOX-Officehours", fields["stable_id"])
  }
  if fields["count"] != int64(2) {
    t.Fatalf("count = %v, want 2", fields["count"])
  }
}

func TestAssignMailboxNoCollisionNoWarning(t *testing.T) {
  assigner, logs := observedAssigner(t)

  assigner.AssignMailbox(types.MailboxSnapshot{
    LabelID: "INBOX",
    Messages: []types.MailMessage{
      {Subject: "Office hours", MessageID: "a1"},
      {Subject: "Office hours", MessageID: "a2"},
    },
  })

  if n := logs.FilterMessage("Stable ID collision within container").Len(); n != 0 {
    t.Fatalf("collision warnings = %d, want 0", n)
  }
}

func TestAssignCourseFlagsCollisions(t *testing.T) {
  assigner, logs := observedAssigner(t)

  assigner.AssignCourse(types.CourseSnapshot{
    CourseID: 9,
    Assignments: []types.AssignmentItem{
      {Name: "Final Essay"},
      {Name: "Final  Essay"},
    },
  })

  warns := logs.FilterMessage("Stable ID collision within container").All()
  if len(warns) != 1 {
    t.Fatalf("collision warnings = %d, want 1", len(warns))
  }
  if got := warns[0].ContextMap()["container"]; got != "course-9" {
    t.Fatalf("container = %v, want course-9", got)
  }
}
