package types

import (
  "time"
)

// CanvasSnapshot is the point-in-time capture of one user's Canvas state,
// JSON-serialized to the snapshot bucket as the user's last known state.
// Snapshots are value objects: a new fetch builds a new snapshot and never
// mutates a previously stored one.
type CanvasSnapshot struct {
  FetchedAt time.Time        `json:"fetched_at"`
  Courses   []CourseSnapshot `json:"courses"`
}

// CourseSnapshot is one container within a snapshot: a single active course
// with its assignment, announcement and module-entry collections.
type CourseSnapshot struct {
  CourseID      int64              `json:"course_id"`
  Name          string             `json:"name"`
  CourseCode    string             `json:"course_code"`
  Assignments   []AssignmentItem   `json:"assignments"`
  Announcements []AnnouncementItem `json:"announcements"`
  Modules       []ModuleSection    `json:"modules"`
}

// SubmissionInfo is the optional grading sub-object Canvas returns on
// assignments when the user has a graded submission.
type SubmissionInfo struct {
  Score         *float64 `json:"score,omitempty"`
  Grade         string   `json:"grade,omitempty"`
  WorkflowState string   `json:"workflow_state,omitempty"`
}

type AssignmentItem struct {
  StableID       string          `json:"stable_id"`
  AssignmentID   int64           `json:"assignment_id"`
  Name           string          `json:"name"`
  Description    string          `json:"description,omitempty"`
  GroupName      string          `json:"group_name,omitempty"`
  DueAt          *time.Time      `json:"due_at,omitempty"`
  PointsPossible *float64        `json:"points_possible,omitempty"`
  Submission     *SubmissionInfo `json:"submission,omitempty"`
}

// Graded reports whether the assignment has a scored submission.
func (a AssignmentItem) Graded() bool {
  return a.Submission != nil && a.Submission.WorkflowState == "graded" && a.Submission.Score != nil
}

func (a AssignmentItem) StableKey() string { return a.StableID }

type AnnouncementItem struct {
  StableID       string     `json:"stable_id"`
  AnnouncementID int64      `json:"announcement_id"`
  Title          string     `json:"title"`
  Message        string     `json:"message,omitempty"`
  PostedAt       *time.Time `json:"posted_at,omitempty"`
}

func (a AnnouncementItem) StableKey() string { return a.StableID }

type ModuleSection struct {
  ModuleID int64         `json:"module_id"`
  Name     string        `json:"name"`
  Position int           `json:"position"`
  Entries  []ModuleEntry `json:"entries"`
}

type ModuleEntry struct {
  StableID string `json:"stable_id"`
  EntryID  int64  `json:"entry_id"`
  Title    string `json:"title"`
  Type     string `json:"type,omitempty"`
  HTMLURL  string `json:"html_url,omitempty"`
}

func (m ModuleEntry) StableKey() string { return m.StableID }
