package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "io"
  "os"
  "time"
  "cloud.google.com/go/storage"
  "github.com/google/uuid"
  "google.golang.org/api/option"
  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/types"
)

// ErrSnapshotNotFound marks the expected first-sync case: no last-known
// snapshot exists for the user yet. Every other retrieval error is a storage
// failure and must abort the diff stage, because falling back to first-sync
// semantics would resurface every already-seen item.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists at most one last-known snapshot per user per source,
// overwritten wholesale after every successful fetch.
type SnapshotStore interface {
  GetCanvas(ctx context.Context, userID uuid.UUID) (*types.CanvasSnapshot, error)
  PutCanvas(ctx context.Context, userID uuid.UUID, snap types.CanvasSnapshot) error
  GetMail(ctx context.Context, userID uuid.UUID) (*types.MailSnapshot, error)
  PutMail(ctx context.Context, userID uuid.UUID, snap types.MailSnapshot) error
}

type snapshotStore struct {
  log           *logger.Logger
  storageClient *storage.Client
  bucketName    string
}

func NewSnapshotStore(log *logger.Logger) (SnapshotStore, error) {
  serviceLog := log.With("service", "SnapshotStore")
  bucket := os.Getenv("GCS_SNAPSHOT_BUCKET")
  if bucket == "" {
    return nil, fmt.Errorf("missing env var GCS_SNAPSHOT_BUCKET")
  }
  saPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")
  if saPath == "" {
    serviceLog.Warn("The storage client may rely on other ADC or fail because GOOGLE_APPLICATION_CREDENTIALS_JSON env var missing...")
  }
  ctx := context.Background()
  var stClient *storage.Client
  var err error
  if saPath != "" {
    stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
  } else {
    stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
  }
  if err != nil {
    return nil, fmt.Errorf("Failed to create storage client: %w", err)
  }
  return &snapshotStore{
    log:           serviceLog,
    storageClient: stClient,
    bucketName:    bucket,
  }, nil
}

func canvasSnapshotKey(userID uuid.UUID) string {
  return fmt.Sprintf("snapshots/%s/canvas.json", userID)
}

func mailSnapshotKey(userID uuid.UUID) string {
  return fmt.Sprintf("snapshots/%s/mail.json", userID)
}

func (ss *snapshotStore) GetCanvas(ctx context.Context, userID uuid.UUID) (*types.CanvasSnapshot, error) {
  var snap types.CanvasSnapshot
  if err := ss.getJSON(ctx, canvasSnapshotKey(userID), &snap); err != nil {
    return nil, err
  }
  return &snap, nil
}

func (ss *snapshotStore) PutCanvas(ctx context.Context, userID uuid.UUID, snap types.CanvasSnapshot) error {
  return ss.putJSON(ctx, canvasSnapshotKey(userID), snap)
}

func (ss *snapshotStore) GetMail(ctx context.Context, userID uuid.UUID) (*types.MailSnapshot, error) {
  var snap types.MailSnapshot
  if err := ss.getJSON(ctx, mailSnapshotKey(userID), &snap); err != nil {
    return nil, err
  }
  return &snap, nil
}

func (ss *snapshotStore) PutMail(ctx context.Context, userID uuid.UUID, snap types.MailSnapshot) error {
  return ss.putJSON(ctx, mailSnapshotKey(userID), snap)
}

func (ss *snapshotStore) getJSON(ctx context.Context, key string, out any) error {
  ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
  defer cancel()
  r, err := ss.storageClient.Bucket(ss.bucketName).Object(key).NewReader(ctx)
  if err != nil {
    if errors.Is(err, storage.ErrObjectNotExist) {
      return ErrSnapshotNotFound
    }
    return fmt.Errorf("Failed to open GCS object %q: %w", key, err)
  }
  defer r.Close()
  raw, err := io.ReadAll(r)
  if err != nil {
    return fmt.Errorf("Failed to read GCS object %q: %w", key, err)
  }
  if err := json.Unmarshal(raw, out); err != nil {
    return fmt.Errorf("Failed to decode snapshot %q: %w", key, err)
  }
  return nil
}

func (ss *snapshotStore) putJSON(ctx context.Context, key string, in any) error {
  ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
  defer cancel()
  raw, err := json.Marshal(in)
  if err != nil {
    return fmt.Errorf("Failed to encode snapshot %q: %w", key, err)
  }
  w := ss.storageClient.Bucket(ss.bucketName).Object(key).NewWriter(ctx)
  w.ContentType = "application/json"
  if _, err := w.Write(raw); err != nil {
    _ = w.Close()
    return fmt.Errorf("Failed to write data to GCS: %w", err)
  }
  if err := w.Close(); err != nil {
    return fmt.Errorf("Failed to close GCS writer: %w", err)
  }
  return nil
}
