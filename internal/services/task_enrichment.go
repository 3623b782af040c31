package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"
  "time"
  "unicode/utf8"

  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/types"
)

// Bounds on the raw JSON context shipped with the enrichment prompt. The
// truncation is lossy on purpose: the human-readable summary sections are the
// primary signal, the JSON snippet is supporting detail.
const (
  enrichMaxContextItems = 20
  enrichMaxTextLen      = 280
)

const enrichSystemPrompt = `You are a study planning assistant. You receive a student's newly ` +
  `appeared coursework and messages plus a summary of their graded performance so far. ` +
  `For each input item, write a short actionable to-do description (2-3 sentences) that tells ` +
  `the student what to do and, where the performance summary shows a weak category, why it ` +
  `deserves extra attention. Echo each item's stable_id unchanged. Suggest a due_date in ` +
  `RFC 3339 format only when the item itself implies one; otherwise leave it empty. ` +
  `Do not invent items that were not in the input.`

// EnrichedItem is one generated to-do coming back from the model, keyed to
// its originating sub-item. Titles are deliberately absent: they are derived
// locally and deterministically, never asked of the model.
type EnrichedItem struct {
  StableID    string
  Description string
  DueDate     *time.Time
}

type TaskEnrichmentService interface {
  EnrichCanvas(ctx context.Context, delta types.CanvasSnapshot, performance []CoursePerformance) ([]EnrichedItem, error)
  EnrichMail(ctx context.Context, delta types.MailSnapshot) ([]EnrichedItem, error)
}

type taskEnrichmentService struct {
  log    *logger.Logger
  openai OpenAIClient
}

func NewTaskEnrichmentService(log *logger.Logger, openai OpenAIClient) TaskEnrichmentService {
  return &taskEnrichmentService{
    log:    log.With("service", "TaskEnrichmentService"),
    openai: openai,
  }
}

// contextItem is the bounded per-item entry of the JSON context snippet.
type contextItem struct {
  StableID string `json:"stable_id"`
  Type     string `json:"type"`
  Title    string `json:"title"`
  Course   string `json:"course,omitempty"`
  Detail   string `json:"detail,omitempty"`
  DueAt    string `json:"due_at,omitempty"`
}

func (tes *taskEnrichmentService) EnrichCanvas(ctx context.Context, delta types.CanvasSnapshot, performance []CoursePerformance) ([]EnrichedItem, error) {
  index := BuildCanvasIndex(delta)
  if len(index) == 0 {
    return nil, nil
  }

  var listing strings.Builder
  items := make([]contextItem, 0, len(index))
  for _, course := range delta.Courses {
    courseLabel := fmt.Sprintf("%s (%s)", course.CourseCode, course.Name)
    for _, a := range course.Assignments {
      due := ""
      if a.DueAt != nil {
        due = a.DueAt.UTC().Format(time.RFC3339)
        fmt.Fprintf(&listing, "- [assignment] %s - %s, due %s\n", a.Name, courseLabel, due)
      } else {
        fmt.Fprintf(&listing, "- [assignment] %s - %s, no due date\n", a.Name, courseLabel)
      }
      items = append(items, contextItem{
        StableID: a.StableID,
        Type:     StableTypeAssignment,
        Title:    truncateText(a.Name),
        Course:   courseLabel,
        Detail:   truncateText(a.Description),
        DueAt:    due,
      })
    }
    for _, an := range course.Announcements {
      fmt.Fprintf(&listing, "- [announcement] %s - %s\n", an.Title, courseLabel)
      items = append(items, contextItem{
        StableID: an.StableID,
        Type:     StableTypeAnnouncement,
        Title:    truncateText(an.Title),
        Course:   courseLabel,
        Detail:   truncateText(an.Message),
      })
    }
    for _, mod := range course.Modules {
      for _, e := range mod.Entries {
        fmt.Fprintf(&listing, "- [module item] %s - %s\n", e.Title, courseLabel)
        items = append(items, contextItem{
          StableID: e.StableID,
          Type:     StableTypeModuleEntry,
          Title:    truncateText(e.Title),
          Course:   courseLabel,
        })
      }
    }
  }

  user := fmt.Sprintf(
    "Performance so far:\n%s\n\nNewly appeared items:\n%s\nContext (truncated JSON):\n%s",
    FormatPerformanceSummary(performance),
    listing.String(),
    mustContextJSON(items),
  )

  return tes.requestItems(ctx, user, index)
}

func (tes *taskEnrichmentService) EnrichMail(ctx context.Context, delta types.MailSnapshot) ([]EnrichedItem, error) {
  index := BuildMailIndex(delta)
  if len(index) == 0 {
    return nil, nil
  }

  var listing strings.Builder
  items := make([]contextItem, 0, len(index))
  for _, box := range delta.Mailboxes {
    for _, m := range box.Messages {
      fmt.Fprintf(&listing, "- [email] %q from %s (%s)\n", m.Subject, m.From, box.LabelName)
      items = append(items, contextItem{
        StableID: m.StableID,
        Type:     StableTypeMessage,
        Title:    truncateText(m.Subject),
        Course:   box.LabelName,
        Detail:   truncateText(m.Snippet),
      })
    }
  }

  user := fmt.Sprintf(
    "Newly arrived email:\n%s\nContext (truncated JSON):\n%s",
    listing.String(),
    mustContextJSON(items),
  )

  return tes.requestItems(ctx, user, index)
}

// requestItems sends the prompt and validates the structured response against
// the stable IDs that were actually in the delta. Validation failures are
// recoverable: the caller's cycle keeps its persisted snapshot and simply
// skips task creation this run.
func (tes *taskEnrichmentService) requestItems(ctx context.Context, user string, known map[string]ItemRef) ([]EnrichedItem, error) {
  raw, err := tes.openai.GenerateJSON(ctx, enrichSystemPrompt, user, "todo_items", enrichmentSchema())
  if err != nil {
    return nil, fmt.Errorf("enrichment request failed: %w", err)
  }

  return parseEnrichedItems(raw, known, tes.log)
}

func enrichmentSchema() map[string]any {
  return map[string]any{
    "type": "object",
    "properties": map[string]any{
      "items": map[string]any{
        "type": "array",
        "items": map[string]any{
          "type": "object",
          "properties": map[string]any{
            "stable_id":   map[string]any{"type": "string"},
            "description": map[string]any{"type": "string"},
            "due_date":    map[string]any{"type": "string"},
          },
          "required":             []string{"stable_id", "description", "due_date"},
          "additionalProperties": false,
        },
      },
    },
    "required":             []string{"items"},
    "additionalProperties": false,
  }
}

// parseEnrichedItems enforces the only accepted response shape: a list where
// every element names a stable ID from the delta exactly once. Unknown IDs
// are dropped; a non-list or a duplicated ID fails the whole response.
func parseEnrichedItems(raw map[string]any, known map[string]ItemRef, log *logger.Logger) ([]EnrichedItem, error) {
  listAny, ok := raw["items"]
  if !ok {
    return nil, fmt.Errorf("enrichment response missing items list")
  }
  list, ok := listAny.([]any)
  if !ok {
    return nil, fmt.Errorf("enrichment response items is not a list")
  }

  out := make([]EnrichedItem, 0, len(list))
  seen := map[string]struct{}{}
  for _, entryAny := range list {
    entry, ok := entryAny.(map[string]any)
    if !ok {
      return nil, fmt.Errorf("enrichment response entry is not an object")
    }
    stableID, _ := entry["stable_id"].(string)
    if stableID == "" {
      return nil, fmt.Errorf("enrichment response entry missing stable_id")
    }
    if _, dup := seen[stableID]; dup {
      return nil, fmt.Errorf("enrichment response repeats stable_id %q", stableID)
    }
    seen[stableID] = struct{}{}
    if _, recognized := known[stableID]; !recognized {
      if log != nil {
        log.Warn("Dropping enrichment entry with unrecognized stable ID", "stable_id", stableID)
      }
      continue
    }
    description, _ := entry["description"].(string)
    item := EnrichedItem{
      StableID:    stableID,
      Description: description,
      DueDate:     parseModelDate(entry["due_date"]),
    }
    out = append(out, item)
  }
  return out, nil
}

func parseModelDate(v any) *time.Time {
  s, _ := v.(string)
  s = strings.TrimSpace(s)
  if s == "" {
    return nil
  }
  if t, err := time.Parse(time.RFC3339, s); err == nil {
    utc := t.UTC()
    return &utc
  }
  if t, err := time.Parse("2006-01-02", s); err == nil {
    utc := t.UTC()
    return &utc
  }
  return nil
}

func mustContextJSON(items []contextItem) string {
  if len(items) > enrichMaxContextItems {
    items = items[:enrichMaxContextItems]
  }
  raw, err := json.Marshal(items)
  if err != nil {
    return "[]"
  }
  return string(raw)
}

func truncateText(s string) string {
  s = strings.TrimSpace(s)
  if len(s) <= enrichMaxTextLen {
    return s
  }
  // Never cut through a multi-byte rune.
  cut := enrichMaxTextLen
  for cut > 0 && !utf8.RuneStart(s[cut]) {
    cut--
  }
  return s[:cut]
}

// ---- Local title resolution ----

// ItemRef points back at the original sub-item of a delta so titles and due
// dates can be resolved locally by stable ID after enrichment.
type ItemRef struct {
  Kind       string
  Title      string
  CourseCode string
  CourseName string
  DueAt      *time.Time
}

// TaskTitle formats the deterministic task title for the item. Graded work
// gets the bare name-first form; informational items get the Review form.
func (r ItemRef) TaskTitle() string {
  if r.Kind == StableTypeAssignment {
    return fmt.Sprintf("%s: %s (%s)", r.Title, r.CourseCode, r.CourseName)
  }
  return fmt.Sprintf("Review: %q - %s (%s)", r.Title, r.CourseCode, r.CourseName)
}

func BuildCanvasIndex(delta types.CanvasSnapshot) map[string]ItemRef {
  index := map[string]ItemRef{}
  for _, course := range delta.Courses {
    for _, a := range course.Assignments {
      index[a.StableID] = ItemRef{
        Kind:       StableTypeAssignment,
        Title:      a.Name,
        CourseCode: course.CourseCode,
        CourseName: course.Name,
        DueAt:      a.DueAt,
      }
    }
    for _, an := range course.Announcements {
      index[an.StableID] = ItemRef{
        Kind:       StableTypeAnnouncement,
        Title:      an.Title,
        CourseCode: course.CourseCode,
        CourseName: course.Name,
      }
    }
    for _, mod := range course.Modules {
      for _, e := range mod.Entries {
        index[e.StableID] = ItemRef{
          Kind:       StableTypeModuleEntry,
          Title:      e.Title,
          CourseCode: course.CourseCode,
          CourseName: course.Name,
        }
      }
    }
  }
  return index
}

func BuildMailIndex(delta types.MailSnapshot) map[string]ItemRef {
  index := map[string]ItemRef{}
  for _, box := range delta.Mailboxes {
    for _, m := range box.Messages {
      index[m.StableID] = ItemRef{
        Kind:       StableTypeMessage,
        Title:      m.Subject,
        CourseCode: box.LabelID,
        CourseName: box.LabelName,
      }
    }
  }
  return index
}

// FilterRelevantCanvas narrows a delta to the items worth turning into tasks:
// assignments still actionable (future-dated or undated) plus every new
// announcement and module entry. Feeds the enrichment gate; the full delta
// was already diffed against the stored snapshot, so dropped items stay seen.
func FilterRelevantCanvas(delta types.CanvasSnapshot, now time.Time) types.CanvasSnapshot {
  out := types.CanvasSnapshot{FetchedAt: delta.FetchedAt}
  for _, course := range delta.Courses {
    filtered := course
    filtered.Assignments = nil
    for _, a := range course.Assignments {
      if a.DueAt == nil || a.DueAt.After(now) {
        filtered.Assignments = append(filtered.Assignments, a)
      }
    }
    out.Courses = append(out.Courses, filtered)
  }
  return out
}

// PriorityForDue maps due-date proximity onto task priority.
func PriorityForDue(due *time.Time, now time.Time) string {
  if due == nil {
    return types.TaskPriorityNormal
  }
  until := due.Sub(now)
  switch {
  case until <= 48*time.Hour:
    return types.TaskPriorityUrgent
  case until <= 7*24*time.Hour:
    return types.TaskPriorityHigh
  default:
    return types.TaskPriorityNormal
  }
}
