package services

import (
  "context"
  "errors"
  "time"

  "github.com/google/uuid"

  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/repos"
  "github.com/dueday/dueday-backend/internal/types"
)

// Stage labels used in per-user sync results and batch reports.
const (
  SyncStageCredentials   = "credentials"
  SyncStageFetch         = "fetch"
  SyncStageSnapshotRead  = "snapshot_read"
  SyncStageSnapshotWrite = "snapshot_write"
  SyncStageEnrichment    = "enrichment"
)

// UserSyncResult is the per-user outcome the batch report aggregates. A
// failed enrichment still counts the snapshot as persisted; Failed marks
// which stage gave up.
type UserSyncResult struct {
  UserID            uuid.UUID `json:"user_id"`
  Skipped           bool      `json:"skipped,omitempty"`
  FailedStage       string    `json:"failed_stage,omitempty"`
  Error             string    `json:"error,omitempty"`
  NewItems          int       `json:"new_items"`
  TasksCreated      int       `json:"tasks_created"`
  SnapshotPersisted bool      `json:"snapshot_persisted"`
}

func (r UserSyncResult) Succeeded() bool {
  return !r.Skipped && r.FailedStage == ""
}

// UserSyncService runs one source's full cycle for one user.
type UserSyncService interface {
  Job() string
  SyncUser(ctx context.Context, user *types.User) UserSyncResult
}

type canvasSyncService struct {
  log       *logger.Logger
  tokens    repos.UserTokenRepo
  snapshots SnapshotStore
  canvas    CanvasClient
  assigner  *StableIDAssigner
  enricher  TaskEnrichmentService
  writer    TaskUpsertWriter
  now       func() time.Time
}

func NewCanvasSyncService(
  log *logger.Logger,
  tokens repos.UserTokenRepo,
  snapshots SnapshotStore,
  canvas CanvasClient,
  assigner *StableIDAssigner,
  enricher TaskEnrichmentService,
  writer TaskUpsertWriter,
) UserSyncService {
  return &canvasSyncService{
    log:       log.With("service", "CanvasSyncService"),
    tokens:    tokens,
    snapshots: snapshots,
    canvas:    canvas,
    assigner:  assigner,
    enricher:  enricher,
    writer:    writer,
    now:       func() time.Time { return time.Now().UTC() },
  }
}

func (cs *canvasSyncService) Job() string {
  return types.TaskSourceCanvas
}

// SyncUser walks one user's cycle: fetch, assign IDs, read old snapshot,
// diff, derive analytics, persist the new snapshot, then (when the gate lets
// anything through) enrich and upsert. Failures downstream of the snapshot
// write never undo it.
func (cs *canvasSyncService) SyncUser(ctx context.Context, user *types.User) UserSyncResult {
  result := UserSyncResult{UserID: user.ID}
  log := cs.log.With("user_id", user.ID)

  token, err := cs.tokens.GetByUserAndProvider(ctx, nil, user.ID, types.TokenProviderCanvas)
  if err != nil {
    if errors.Is(err, repos.ErrTokenNotFound) {
      log.Debug("No Canvas credentials, skipping user")
      result.Skipped = true
      result.FailedStage = SyncStageCredentials
      return result
    }
    return failures(result, SyncStageCredentials, err)
  }

  snap, rotated, fetchErr := cs.canvas.FetchSnapshot(ctx, CanvasCredentials{
    BaseURL:      token.BaseURL,
    AccessToken:  token.AccessToken,
    RefreshToken: token.RefreshToken,
  })
  // A rotated token is persisted no matter how the rest of the cycle goes,
  // so the next run starts from valid credentials.
  if rotated != nil {
    if rotErr := cs.tokens.Rotate(ctx, nil, token.ID, rotated.AccessToken, "", rotated.ExpiresAt); rotErr != nil {
      log.Error("Failed to persist rotated Canvas token", "error", rotErr)
    }
  }
  if fetchErr != nil {
    return failures(result, SyncStageFetch, fetchErr)
  }

  for i, course := range snap.Courses {
    snap.Courses[i] = cs.assigner.AssignCourse(course)
  }

  old, err := cs.snapshots.GetCanvas(ctx, user.ID)
  if err != nil && !errors.Is(err, ErrSnapshotNotFound) {
    // A storage failure here must not degrade into first-sync semantics:
    // diffing against "nothing" would resurface every already-seen item.
    return failures(result, SyncStageSnapshotRead, err)
  }

  delta := ComputeCanvasDelta(snap, old)
  result.NewItems = countCanvasItems(delta)
  performance := DerivePerformance(snap.Courses)

  if putErr := cs.snapshots.PutCanvas(ctx, user.ID, snap); putErr != nil {
    // The fetch still succeeded; next cycle just re-diffs against the stale
    // snapshot, which at worst re-surfaces items the task uniqueness
    // constraint already absorbs.
    log.Error("Snapshot persist failed", "error", putErr)
    result.FailedStage = SyncStageSnapshotWrite
    result.Error = putErr.Error()
  } else {
    result.SnapshotPersisted = true
  }

  relevant := FilterRelevantCanvas(delta, cs.now())
  if CanvasDeltaEmpty(relevant) {
    log.Debug("No relevant new items, skipping enrichment")
    return result
  }

  enriched, err := cs.enricher.EnrichCanvas(ctx, relevant, performance)
  if err != nil {
    log.Warn("Enrichment failed, tasks skipped this cycle", "error", err)
    result.FailedStage = SyncStageEnrichment
    result.Error = err.Error()
    return result
  }

  index := BuildCanvasIndex(relevant)
  result.TasksCreated = cs.writer.Upsert(ctx, user.ID, types.TaskSourceCanvas, enriched, index)
  log.Info("Canvas sync complete", "new_items", result.NewItems, "tasks_created", result.TasksCreated)
  return result
}

func failures(result UserSyncResult, stage string, err error) UserSyncResult {
  result.FailedStage = stage
  result.Error = err.Error()
  return result
}

func countCanvasItems(snap types.CanvasSnapshot) int {
  n := 0
  for _, course := range snap.Courses {
    n += len(course.Assignments) + len(course.Announcements)
    for _, mod := range course.Modules {
      n += len(mod.Entries)
    }
  }
  return n
}
