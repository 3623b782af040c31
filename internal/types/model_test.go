package types

import (
  "strings"
  "sync"
  "testing"

  "github.com/google/uuid"
  "gorm.io/gorm/schema"
)

// Function-call defaults like uuid_generate_v4() or now() only parse under
// postgres; sqlite rejects them during AutoMigrate. UUIDs and timestamps are
// set in code instead, so the DDL must stay free of them.
func TestModelDefaultsPortable(t *testing.T) {
  models := map[string]interface{}{
    "User":      &User{},
    "UserToken": &UserToken{},
    "Task":      &Task{},
    "SyncRun":   &SyncRun{},
  }
  for name, model := range models {
    t.Run(name, func(t *testing.T) {
      parsed, err := schema.Parse(model, &sync.Map{}, schema.NamingStrategy{})
      if err != nil {
        t.Fatalf("schema.Parse(%s): %v", name, err)
      }
      for _, field := range parsed.Fields {
        if strings.Contains(field.DefaultValue, "(") {
          t.Errorf("%s.%s carries function default %q", name, field.Name, field.DefaultValue)
        }
      }
    })
  }
}

func TestBeforeCreateAssignsID(t *testing.T) {
  user := &User{}
  if err := user.BeforeCreate(nil); err != nil {
    t.Fatalf("BeforeCreate: %v", err)
  }
  if user.ID == uuid.Nil {
    t.Fatal("expected a generated user id")
  }

  token := &UserToken{}
  if err := token.BeforeCreate(nil); err != nil {
    t.Fatalf("BeforeCreate: %v", err)
  }
  if token.ID == uuid.Nil {
    t.Fatal("expected a generated token id")
  }

  task := &Task{}
  if err := task.BeforeCreate(nil); err != nil {
    t.Fatalf("BeforeCreate: %v", err)
  }
  if task.ID == uuid.Nil {
    t.Fatal("expected a generated task id")
  }

  run := &SyncRun{}
  if err := run.BeforeCreate(nil); err != nil {
    t.Fatalf("BeforeCreate: %v", err)
  }
  if run.ID == uuid.Nil {
    t.Fatal("expected a generated run id")
  }
}

func TestBeforeCreateKeepsExistingID(t *testing.T) {
  id := uuid.New()
  task := &Task{ID: id}
  if err := task.BeforeCreate(nil); err != nil {
    t.Fatalf("BeforeCreate: %v", err)
  }
  if task.ID != id {
    t.Fatalf("expected id %s to survive BeforeCreate, got %s", id, task.ID)
  }
}
