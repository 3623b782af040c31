package services

import (
  "context"
  "errors"
  "time"

  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/repos"
  "github.com/dueday/dueday-backend/internal/types"
)

type mailSyncService struct {
  log       *logger.Logger
  tokens    repos.UserTokenRepo
  snapshots SnapshotStore
  gmail     GmailClient
  assigner  *StableIDAssigner
  enricher  TaskEnrichmentService
  writer    TaskUpsertWriter
  now       func() time.Time
}

func NewMailSyncService(
  log *logger.Logger,
  tokens repos.UserTokenRepo,
  snapshots SnapshotStore,
  gmail GmailClient,
  assigner *StableIDAssigner,
  enricher TaskEnrichmentService,
  writer TaskUpsertWriter,
) UserSyncService {
  return &mailSyncService{
    log:       log.With("service", "MailSyncService"),
    tokens:    tokens,
    snapshots: snapshots,
    gmail:     gmail,
    assigner:  assigner,
    enricher:  enricher,
    writer:    writer,
    now:       func() time.Time { return time.Now().UTC() },
  }
}

func (ms *mailSyncService) Job() string {
  return types.TaskSourceGmail
}

// SyncUser mirrors the Canvas cycle for the mail source, minus the
// performance derivation (there is nothing graded in a mailbox).
func (ms *mailSyncService) SyncUser(ctx context.Context, user *types.User) UserSyncResult {
  result := UserSyncResult{UserID: user.ID}
  log := ms.log.With("user_id", user.ID)

  token, err := ms.tokens.GetByUserAndProvider(ctx, nil, user.ID, types.TokenProviderGoogle)
  if err != nil {
    if errors.Is(err, repos.ErrTokenNotFound) {
      log.Debug("No Google credentials, skipping user")
      result.Skipped = true
      result.FailedStage = SyncStageCredentials
      return result
    }
    return failures(result, SyncStageCredentials, err)
  }

  snap, rotated, fetchErr := ms.gmail.FetchSnapshot(ctx, GmailCredentials{
    AccessToken:  token.AccessToken,
    RefreshToken: token.RefreshToken,
    Expiry:       token.ExpiresAt,
  })
  if rotated != nil {
    if rotErr := ms.tokens.Rotate(ctx, nil, token.ID, rotated.AccessToken, "", rotated.ExpiresAt); rotErr != nil {
      log.Error("Failed to persist rotated Google token", "error", rotErr)
    }
  }
  if fetchErr != nil {
    return failures(result, SyncStageFetch, fetchErr)
  }

  for i, box := range snap.Mailboxes {
    snap.Mailboxes[i] = ms.assigner.AssignMailbox(box)
  }

  old, err := ms.snapshots.GetMail(ctx, user.ID)
  if err != nil && !errors.Is(err, ErrSnapshotNotFound) {
    return failures(result, SyncStageSnapshotRead, err)
  }

  delta := ComputeMailDelta(snap, old)
  result.NewItems = countMailItems(delta)

  if putErr := ms.snapshots.PutMail(ctx, user.ID, snap); putErr != nil {
    log.Error("Snapshot persist failed", "error", putErr)
    result.FailedStage = SyncStageSnapshotWrite
    result.Error = putErr.Error()
  } else {
    result.SnapshotPersisted = true
  }

  if MailDeltaEmpty(delta) {
    log.Debug("No new mail, skipping enrichment")
    return result
  }

  enriched, err := ms.enricher.EnrichMail(ctx, delta)
  if err != nil {
    log.Warn("Enrichment failed, tasks skipped this cycle", "error", err)
    result.FailedStage = SyncStageEnrichment
    result.Error = err.Error()
    return result
  }

  index := BuildMailIndex(delta)
  result.TasksCreated = ms.writer.Upsert(ctx, user.ID, types.TaskSourceGmail, enriched, index)
  log.Info("Mail sync complete", "new_items", result.NewItems, "tasks_created", result.TasksCreated)
  return result
}

func countMailItems(snap types.MailSnapshot) int {
  n := 0
  for _, box := range snap.Mailboxes {
    n += len(box.Messages)
  }
  return n
}
