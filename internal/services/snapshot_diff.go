package services

import (
  "github.com/dueday/dueday-backend/internal/types"
)

// stableItem is any snapshot sub-item addressable by a stable ID.
type stableItem interface {
  StableKey() string
}

// filterNew builds a fresh slice holding only items whose stable ID is absent
// from seen. Input ordering is preserved; the input slice is never aliased.
func filterNew[T stableItem](items []T, seen map[string]struct{}) []T {
  out := make([]T, 0, len(items))
  for _, it := range items {
    if _, ok := seen[it.StableKey()]; ok {
      continue
    }
    out = append(out, it)
  }
  return out
}

func addKeys[T stableItem](set map[string]struct{}, items []T) {
  for _, it := range items {
    set[it.StableKey()] = struct{}{}
  }
}

// canvasStableIDSet collects every stable ID present in the snapshot.
func canvasStableIDSet(snap *types.CanvasSnapshot) map[string]struct{} {
  set := map[string]struct{}{}
  if snap == nil {
    return set
  }
  for _, course := range snap.Courses {
    addKeys(set, course.Assignments)
    addKeys(set, course.Announcements)
    for _, mod := range course.Modules {
      addKeys(set, mod.Entries)
    }
  }
  return set
}

func mailStableIDSet(snap *types.MailSnapshot) map[string]struct{} {
  set := map[string]struct{}{}
  if snap == nil {
    return set
  }
  for _, box := range snap.Mailboxes {
    addKeys(set, box.Messages)
  }
  return set
}

// ComputeCanvasDelta returns a new snapshot holding only the sub-items whose
// stable IDs were absent from previous. A nil previous is the first-sync case
// and yields the whole current snapshot. Courses are retained even when all
// their collections filter down to empty; the orchestrator decides relevance,
// not the diff. The result shares no slices with either input.
func ComputeCanvasDelta(current types.CanvasSnapshot, previous *types.CanvasSnapshot) types.CanvasSnapshot {
  seen := canvasStableIDSet(previous)

  delta := types.CanvasSnapshot{
    FetchedAt: current.FetchedAt,
    Courses:   make([]types.CourseSnapshot, 0, len(current.Courses)),
  }
  for _, course := range current.Courses {
    filtered := course
    filtered.Assignments = filterNew(course.Assignments, seen)
    filtered.Announcements = filterNew(course.Announcements, seen)
    filtered.Modules = make([]types.ModuleSection, 0, len(course.Modules))
    for _, mod := range course.Modules {
      modCopy := mod
      modCopy.Entries = filterNew(mod.Entries, seen)
      filtered.Modules = append(filtered.Modules, modCopy)
    }
    delta.Courses = append(delta.Courses, filtered)
  }
  return delta
}

// ComputeMailDelta is the mail-side counterpart of ComputeCanvasDelta.
func ComputeMailDelta(current types.MailSnapshot, previous *types.MailSnapshot) types.MailSnapshot {
  seen := mailStableIDSet(previous)

  delta := types.MailSnapshot{
    FetchedAt: current.FetchedAt,
    Mailboxes: make([]types.MailboxSnapshot, 0, len(current.Mailboxes)),
  }
  for _, box := range current.Mailboxes {
    filtered := box
    filtered.Messages = filterNew(box.Messages, seen)
    delta.Mailboxes = append(delta.Mailboxes, filtered)
  }
  return delta
}

// CanvasDeltaEmpty reports whether the delta carries no new sub-items at all.
func CanvasDeltaEmpty(delta types.CanvasSnapshot) bool {
  for _, course := range delta.Courses {
    if len(course.Assignments) > 0 || len(course.Announcements) > 0 {
      return false
    }
    for _, mod := range course.Modules {
      if len(mod.Entries) > 0 {
        return false
      }
    }
  }
  return true
}

func MailDeltaEmpty(delta types.MailSnapshot) bool {
  for _, box := range delta.Mailboxes {
    if len(box.Messages) > 0 {
      return false
    }
  }
  return true
}
