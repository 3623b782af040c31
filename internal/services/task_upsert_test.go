package services

import (
  "context"
  "errors"
  "testing"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/dueday/dueday-backend/internal/types"
)

type fakeTaskRepo struct {
  inserted []*types.Task
  seen     map[string]struct{}
  failOn   string
}

func newFakeTaskRepo() *fakeTaskRepo {
  return &fakeTaskRepo{seen: map[string]struct{}{}}
}

func (f *fakeTaskRepo) InsertIgnore(ctx context.Context, tx *gorm.DB, task *types.Task) (bool, error) {
  if task.ExternalRef != nil && f.failOn == *task.ExternalRef {
    return false, errors.New("insert failed")
  }
  if task.ExternalRef != nil {
    key := task.UserID.String() + "/" + *task.ExternalRef
    if _, dup := f.seen[key]; dup {
      return false, nil
    }
    f.seen[key] = struct{}{}
  }
  f.inserted = append(f.inserted, task)
  return true, nil
}

func (f *fakeTaskRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Task, error) {
  return f.inserted, nil
}

func (f *fakeTaskRepo) GetByUserAndExternalRefs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, externalRefs []string) ([]*types.Task, error) {
  return nil, nil
}

func TestTaskUpsertWriter(t *testing.T) {
  userID := uuid.New()
  due := time.Now().UTC().Add(24 * time.Hour)

  index := map[string]ItemRef{
    "assignment-56": {Kind: StableTypeAssignment, Title: "Genetics Essay", CourseCode: "BIO-101", CourseName: "Biology", DueAt: &due},
    "announcement-9": {Kind: StableTypeAnnouncement, Title: "Midterm moved", CourseCode: "BIO-101", CourseName: "Biology"},
  }
  items := []EnrichedItem{
    {StableID: "assignment-56", Description: "Start tonight."},
    {StableID: "announcement-9", Description: "Note the new date."},
    {StableID: "", Description: "no id"},
    {StableID: "assignment-999", Description: "not in the delta"},
  }

  repo := newFakeTaskRepo()
  writer := NewTaskUpsertWriter(testLogger(t), repo)

  created := writer.Upsert(context.Background(), userID, types.TaskSourceCanvas, items, index)
  if created != 2 {
    t.Fatalf("created = %d, want 2", created)
  }

  first := repo.inserted[0]
  if first.Title != "Genetics Essay: BIO-101 (Biology)" {
    t.Fatalf("title = %q", first.Title)
  }
  if first.Priority != types.TaskPriorityUrgent {
    t.Fatalf("priority = %q, want urgent for a due-tomorrow assignment", first.Priority)
  }
  if first.DueDate == nil || !first.DueDate.Equal(due) {
    t.Fatalf("due date = %v, want upstream %v", first.DueDate, due)
  }
  if first.Source != types.TaskSourceCanvas || first.ExternalRef == nil || *first.ExternalRef != "assignment-56" {
    t.Fatalf("unexpected task row: %+v", first)
  }

  second := repo.inserted[1]
  if second.Priority != types.TaskPriorityNormal {
    t.Fatalf("undated item priority = %q, want normal", second.Priority)
  }
}

func TestTaskUpsertWriterIdempotent(t *testing.T) {
  userID := uuid.New()
  index := map[string]ItemRef{
    "message-a": {Kind: StableTypeMessage, Title: "Advising", CourseCode: "INBOX", CourseName: "Inbox"},
  }
  items := []EnrichedItem{{StableID: "message-a", Description: "Book it."}}

  repo := newFakeTaskRepo()
  writer := NewTaskUpsertWriter(testLogger(t), repo)

  if created := writer.Upsert(context.Background(), userID, types.TaskSourceGmail, items, index); created != 1 {
    t.Fatalf("first pass created = %d, want 1", created)
  }
  if created := writer.Upsert(context.Background(), userID, types.TaskSourceGmail, items, index); created != 0 {
    t.Fatalf("second pass created = %d, want 0", created)
  }
  if len(repo.inserted) != 1 {
    t.Fatalf("repo holds %d rows, want 1", len(repo.inserted))
  }
}

func TestTaskUpsertWriterContinuesPastFailures(t *testing.T) {
  userID := uuid.New()
  index := map[string]ItemRef{
    "message-a": {Kind: StableTypeMessage, Title: "First", CourseCode: "INBOX", CourseName: "Inbox"},
    "message-b": {Kind: StableTypeMessage, Title: "Second", CourseCode: "INBOX", CourseName: "Inbox"},
  }
  items := []EnrichedItem{
    {StableID: "message-a", Description: "fails"},
    {StableID: "message-b", Description: "succeeds"},
  }

  repo := newFakeTaskRepo()
  repo.failOn = "message-a"
  writer := NewTaskUpsertWriter(testLogger(t), repo)

  if created := writer.Upsert(context.Background(), userID, types.TaskSourceGmail, items, index); created != 1 {
    t.Fatalf("created = %d, want 1 past the failing row", created)
  }
  if len(repo.inserted) != 1 || *repo.inserted[0].ExternalRef != "message-b" {
    t.Fatalf("surviving row wrong: %+v", repo.inserted)
  }
}
