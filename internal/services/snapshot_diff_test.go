package services

import (
  "testing"
  "time"

  "github.com/dueday/dueday-backend/internal/types"
)

func TestComputeCanvasDeltaFirstSync(t *testing.T) {
  current := types.CanvasSnapshot{
    FetchedAt: time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC),
    Courses: []types.CourseSnapshot{{
      CourseID:      1,
      Name:          "Biology",
      CourseCode:    "BIO-101",
      Assignments:   []types.AssignmentItem{{StableID: "assignment-55", AssignmentID: 55, Name: "Cell Quiz"}},
      Announcements: []types.AnnouncementItem{{StableID: "announcement-9", Title: "Welcome"}},
      Modules: []types.ModuleSection{{
        ModuleID: 2,
        Entries:  []types.ModuleEntry{{StableID: "module-item-4", Title: "Syllabus"}},
      }},
    }},
  }

  delta := ComputeCanvasDelta(current, nil)

  if len(delta.Courses) != 1 {
    t.Fatalf("delta has %d courses, want 1", len(delta.Courses))
  }
  course := delta.Courses[0]
  if len(course.Assignments) != 1 || len(course.Announcements) != 1 {
    t.Fatalf("first sync dropped items: %d assignments, %d announcements", len(course.Assignments), len(course.Announcements))
  }
  if len(course.Modules) != 1 || len(course.Modules[0].Entries) != 1 {
    t.Fatalf("first sync dropped module entries")
  }
  if CanvasDeltaEmpty(delta) {
    t.Fatalf("first-sync delta reported empty")
  }
}

func TestComputeCanvasDeltaFiltersSeenItems(t *testing.T) {
  tomorrow := time.Date(2026, 2, 2, 23, 59, 0, 0, time.UTC)

  old := types.CanvasSnapshot{
    Courses: []types.CourseSnapshot{{
      CourseID:    1,
      CourseCode:  "BIO-101",
      Assignments: []types.AssignmentItem{{StableID: "assignment-55", AssignmentID: 55, Name: "Cell Quiz"}},
    }},
  }
  current := types.CanvasSnapshot{
    Courses: []types.CourseSnapshot{{
      CourseID:   1,
      CourseCode: "BIO-101",
      Assignments: []types.AssignmentItem{
        {StableID: "assignment-55", AssignmentID: 55, Name: "Cell Quiz"},
        {StableID: "assignment-56", AssignmentID: 56, Name: "Genetics Essay", DueAt: &tomorrow},
      },
    }},
  }

  delta := ComputeCanvasDelta(current, &old)

  if len(delta.Courses) != 1 {
    t.Fatalf("delta has %d courses, want 1", len(delta.Courses))
  }
  got := delta.Courses[0].Assignments
  if len(got) != 1 {
    t.Fatalf("delta has %d assignments, want 1", len(got))
  }
  if got[0].StableID != "assignment-56" {
    t.Fatalf("delta kept %q, want assignment-56", got[0].StableID)
  }
  if got[0].DueAt == nil || !got[0].DueAt.Equal(tomorrow) {
    t.Fatalf("delta mangled due date: %v", got[0].DueAt)
  }
}

func TestComputeCanvasDeltaKeepsEmptyCourses(t *testing.T) {
  old := types.CanvasSnapshot{
    Courses: []types.CourseSnapshot{{
      CourseID:    3,
      Assignments: []types.AssignmentItem{{StableID: "assignment-1"}},
    }},
  }
  current := old

  delta := ComputeCanvasDelta(current, &old)

  if len(delta.Courses) != 1 {
    t.Fatalf("fully-seen course was dropped from delta")
  }
  if !CanvasDeltaEmpty(delta) {
    t.Fatalf("delta with no new items reported non-empty")
  }
}

func TestComputeCanvasDeltaDoesNotAliasInput(t *testing.T) {
  current := types.CanvasSnapshot{
    Courses: []types.CourseSnapshot{{
      CourseID: 1,
      Assignments: []types.AssignmentItem{
        {StableID: "assignment-1", Name: "A"},
        {StableID: "assignment-2", Name: "B"},
      },
    }},
  }

  delta := ComputeCanvasDelta(current, nil)
  delta.Courses[0].Assignments[0].Name = "mutated"

  if current.Courses[0].Assignments[0].Name != "A" {
    t.Fatalf("mutating the delta reached the input snapshot")
  }
}

func TestComputeMailDelta(t *testing.T) {
  old := types.MailSnapshot{
    Mailboxes: []types.MailboxSnapshot{{
      LabelID:  "INBOX",
      Messages: []types.MailMessage{{StableID: "message-a"}},
    }},
  }
  current := types.MailSnapshot{
    Mailboxes: []types.MailboxSnapshot{{
      LabelID: "INBOX",
      Messages: []types.MailMessage{
        {StableID: "message-a", Subject: "old"},
        {StableID: "message-b", Subject: "new"},
      },
    }},
  }

  delta := ComputeMailDelta(current, &old)

  if len(delta.Mailboxes) != 1 || len(delta.Mailboxes[0].Messages) != 1 {
    t.Fatalf("unexpected delta shape: %+v", delta)
  }
  if delta.Mailboxes[0].Messages[0].StableID != "message-b" {
    t.Fatalf("delta kept %q, want message-b", delta.Mailboxes[0].Messages[0].StableID)
  }
  if MailDeltaEmpty(delta) {
    t.Fatalf("delta with one new message reported empty")
  }

  empty := ComputeMailDelta(old, &old)
  if !MailDeltaEmpty(empty) {
    t.Fatalf("unchanged mailbox produced non-empty delta")
  }
}
