package services

import (
  "fmt"
  "strings"
  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/types"
)

// Stable ID type tags. The tag plus the upstream native id (or a type-specific
// fallback) uniquely identifies a sub-item across runs, which is what the
// delta engine and the task uniqueness constraint key on.
const (
  StableTypeAssignment   = "assignment"
  StableTypeAnnouncement = "announcement"
  StableTypeModuleEntry  = "module-item"
  StableTypeMessage      = "message"
)

// StableIDAssigner tags every sub-item of a fetched container with its stable
// identifier. Assignment is deterministic and happens exactly once per fetch:
// an item that already carries a stable ID is left untouched, so a later
// change to the fallback normalization can never churn IDs mid-lifecycle.
type StableIDAssigner struct {
  log *logger.Logger
}

func NewStableIDAssigner(baseLog *logger.Logger) *StableIDAssigner {
  return &StableIDAssigner{log: baseLog.With("service", "StableIDAssigner")}
}

// AssignCourse returns a copy of the course with every assignment,
// announcement and module entry tagged. The input is never mutated.
func (sa *StableIDAssigner) AssignCourse(course types.CourseSnapshot) types.CourseSnapshot {
  out := course

  out.Assignments = make([]types.AssignmentItem, len(course.Assignments))
  for i, a := range course.Assignments {
    if a.StableID == "" {
      a.StableID = sa.assignmentID(course, a)
    }
    out.Assignments[i] = a
  }

  out.Announcements = make([]types.AnnouncementItem, len(course.Announcements))
  for i, an := range course.Announcements {
    if an.StableID == "" {
      an.StableID = sa.announcementID(course, an)
    }
    out.Announcements[i] = an
  }

  out.Modules = make([]types.ModuleSection, len(course.Modules))
  for i, mod := range course.Modules {
    modCopy := mod
    modCopy.Entries = make([]types.ModuleEntry, len(mod.Entries))
    for j, e := range mod.Entries {
      if e.StableID == "" {
        e.StableID = sa.moduleEntryID(mod, e)
      }
      modCopy.Entries[j] = e
    }
    out.Modules[i] = modCopy
  }

  seen := map[string]int{}
  for _, a := range out.Assignments {
    seen[a.StableID]++
  }
  for _, an := range out.Announcements {
    seen[an.StableID]++
  }
  for _, mod := range out.Modules {
    for _, e := range mod.Entries {
      seen[e.StableID]++
    }
  }
  sa.flagCollisions(fmt.Sprintf("course-%d", course.CourseID), seen)
  return out
}

// AssignMailbox tags every message in the mailbox. Gmail message ids are
// immutable, so the fallback path only fires on malformed upstream payloads.
func (sa *StableIDAssigner) AssignMailbox(box types.MailboxSnapshot) types.MailboxSnapshot {
  out := box
  out.Messages = make([]types.MailMessage, len(box.Messages))
  for i, m := range box.Messages {
    if m.StableID == "" {
      m.StableID = sa.messageID(box, m)
    }
    out.Messages[i] = m
  }

  seen := map[string]int{}
  for _, m := range out.Messages {
    seen[m.StableID]++
  }
  sa.flagCollisions(fmt.Sprintf("mailbox-%s", box.LabelID), seen)
  return out
}

func (sa *StableIDAssigner) assignmentID(course types.CourseSnapshot, a types.AssignmentItem) string {
  if a.AssignmentID > 0 {
    return fmt.Sprintf("%s-%d", StableTypeAssignment, a.AssignmentID)
  }
  if a.DueAt != nil {
    return fmt.Sprintf("%s-%d-%s", StableTypeAssignment, a.DueAt.UTC().Unix(), stripWhitespace(a.Name))
  }
  return fmt.Sprintf("%s-%d-%s", StableTypeAssignment, course.CourseID, stripWhitespace(a.Name))
}

func (sa *StableIDAssigner) announcementID(course types.CourseSnapshot, an types.AnnouncementItem) string {
  if an.AnnouncementID > 0 {
    return fmt.Sprintf("%s-%d", StableTypeAnnouncement, an.AnnouncementID)
  }
  if an.PostedAt != nil {
    return fmt.Sprintf("%s-%d-%s", StableTypeAnnouncement, an.PostedAt.UTC().Unix(), stripWhitespace(an.Title))
  }
  return fmt.Sprintf("%s-%d-%s", StableTypeAnnouncement, course.CourseID, stripWhitespace(an.Title))
}

func (sa *StableIDAssigner) moduleEntryID(mod types.ModuleSection, e types.ModuleEntry) string {
  if e.EntryID > 0 {
    return fmt.Sprintf("%s-%d", StableTypeModuleEntry, e.EntryID)
  }
  return fmt.Sprintf("%s-%d-%s", StableTypeModuleEntry, mod.ModuleID, stripWhitespace(e.Title))
}

func (sa *StableIDAssigner) messageID(box types.MailboxSnapshot, m types.MailMessage) string {
  if m.MessageID != "" {
    return fmt.Sprintf("%s-%s", StableTypeMessage, m.MessageID)
  }
  if m.ReceivedAt != nil {
    return fmt.Sprintf("%s-%d-%s", StableTypeMessage, m.ReceivedAt.UTC().Unix(), stripWhitespace(m.Subject))
  }
  return fmt.Sprintf("%s-%s-%s", StableTypeMessage, box.LabelID, stripWhitespace(m.Subject))
}

// flagCollisions warns when two sub-items of the same container derive the
// same stable ID. The fallback derivation from titles and timestamps is a
// known approximation; colliding items are kept rather than silently merged.
func (sa *StableIDAssigner) flagCollisions(container string, seen map[string]int) {
  for id, n := range seen {
    if n > 1 {
      sa.log.Warn("Stable ID collision within container", "container", container, "stable_id", id, "count", n)
    }
  }
}

func stripWhitespace(s string) string {
  return strings.Join(strings.Fields(s), "")
}
