package services

import (
  "context"
  "encoding/json"
  "fmt"
  "sync"
  "time"

  "go.opentelemetry.io/otel"
  "go.opentelemetry.io/otel/attribute"
  "go.opentelemetry.io/otel/codes"
  "go.opentelemetry.io/otel/trace"
  "golang.org/x/sync/semaphore"

  redisclient "github.com/dueday/dueday-backend/internal/clients/redis"
  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/repos"
  "github.com/dueday/dueday-backend/internal/types"
  "github.com/dueday/dueday-backend/internal/utils"
)

// BatchReport is the partial-success summary of one job's batch run. The
// batch never fails as a whole: every outcome, including a fully failed
// user list, lands here.
type BatchReport struct {
  Job        string           `json:"job"`
  StartedAt  time.Time        `json:"started_at"`
  FinishedAt time.Time        `json:"finished_at"`
  Attempted  int              `json:"attempted"`
  Succeeded  int              `json:"succeeded"`
  Failed     int              `json:"failed"`
  Skipped    int              `json:"skipped"`
  Results    []UserSyncResult `json:"results"`
}

// SyncBatchService fans one or more sync jobs out over every sync-enabled
// user with bounded parallelism and strict per-user isolation.
type SyncBatchService interface {
  RunAll(ctx context.Context) []BatchReport
}

type syncBatchService struct {
  log      *logger.Logger
  users    repos.UserRepo
  syncRuns repos.SyncRunRepo
  jobs     []UserSyncService
  locker   redisclient.SyncLocker

  concurrency int64
  userTimeout time.Duration
  leaseTTL    time.Duration

  running sync.Mutex
}

func NewSyncBatchService(
  log *logger.Logger,
  users repos.UserRepo,
  syncRuns repos.SyncRunRepo,
  locker redisclient.SyncLocker,
  jobs ...UserSyncService,
) SyncBatchService {
  serviceLog := log.With("service", "SyncBatchService")
  concurrency := utils.GetEnvAsInt("SYNC_CONCURRENCY", 4, log)
  if concurrency < 1 {
    concurrency = 1
  }
  userTimeoutMin := utils.GetEnvAsInt("SYNC_USER_TIMEOUT_MINUTES", 5, log)

  return &syncBatchService{
    log:         serviceLog,
    users:       users,
    syncRuns:    syncRuns,
    jobs:        jobs,
    locker:      locker,
    concurrency: int64(concurrency),
    userTimeout: time.Duration(userTimeoutMin) * time.Minute,
    leaseTTL:    2 * time.Duration(userTimeoutMin) * time.Minute,
  }
}

// RunAll executes every configured job sequentially; users within a job run
// with bounded parallelism. Only one batch runs at a time; overlapping
// invocations queue behind the mutex rather than doubling the load.
func (sb *syncBatchService) RunAll(ctx context.Context) []BatchReport {
  sb.running.Lock()
  defer sb.running.Unlock()

  reports := make([]BatchReport, 0, len(sb.jobs))
  for _, job := range sb.jobs {
    reports = append(reports, sb.runJob(ctx, job))
  }
  return reports
}

func (sb *syncBatchService) runJob(ctx context.Context, job UserSyncService) BatchReport {
  report := BatchReport{Job: job.Job(), StartedAt: time.Now().UTC()}
  log := sb.log.With("job", job.Job())

  users, err := sb.users.ListSyncEnabled(ctx, nil)
  if err != nil {
    // No user list means nothing to attempt; the report records the run.
    log.Error("Could not list users for sync batch", "error", err)
    report.FinishedAt = time.Now().UTC()
    sb.persistReport(ctx, report)
    return report
  }

  report.Attempted = len(users)
  log.Info("Sync batch starting", "users", len(users))

  sem := semaphore.NewWeighted(sb.concurrency)
  var mu sync.Mutex
  var wg sync.WaitGroup

  for _, user := range users {
    if err := sem.Acquire(ctx, 1); err != nil {
      mu.Lock()
      report.Results = append(report.Results, UserSyncResult{
        UserID:      user.ID,
        FailedStage: SyncStageFetch,
        Error:       fmt.Sprintf("batch canceled: %v", err),
      })
      mu.Unlock()
      continue
    }
    wg.Add(1)
    go func(u *types.User) {
      defer wg.Done()
      defer sem.Release(1)
      result := sb.syncOne(ctx, job, u)
      mu.Lock()
      report.Results = append(report.Results, result)
      mu.Unlock()
    }(user)
  }
  wg.Wait()

  for _, r := range report.Results {
    switch {
    case r.Skipped:
      report.Skipped++
    case r.FailedStage != "":
      report.Failed++
    default:
      report.Succeeded++
    }
  }

  report.FinishedAt = time.Now().UTC()
  log.Info("Sync batch finished",
    "attempted", report.Attempted,
    "succeeded", report.Succeeded,
    "failed", report.Failed,
    "skipped", report.Skipped,
  )
  sb.persistReport(ctx, report)
  return report
}

// syncOne isolates a single user cycle: its own timeout, its own lease, and
// a panic guard so nothing one user does can reach the next user's cycle.
func (sb *syncBatchService) syncOne(ctx context.Context, job UserSyncService, user *types.User) (result UserSyncResult) {
  defer func() {
    if r := recover(); r != nil {
      sb.log.Error("Sync cycle panicked", "job", job.Job(), "user_id", user.ID, "panic", r)
      result = UserSyncResult{
        UserID:      user.ID,
        FailedStage: SyncStageFetch,
        Error:       fmt.Sprintf("panic: %v", r),
      }
    }
  }()

  if sb.locker != nil {
    release, acquired, err := sb.locker.TryAcquire(ctx, job.Job(), user.ID, sb.leaseTTL)
    if err != nil {
      sb.log.Warn("Sync lease unavailable, proceeding without it", "user_id", user.ID, "error", err)
    } else if !acquired {
      sb.log.Info("Sync cycle already in flight elsewhere, skipping", "job", job.Job(), "user_id", user.ID)
      return UserSyncResult{UserID: user.ID, Skipped: true, Error: "lease held by another instance"}
    } else {
      defer release()
    }
  }

  userCtx, cancel := context.WithTimeout(ctx, sb.userTimeout)
  defer cancel()

  userCtx, span := otel.Tracer("dueday/sync").Start(userCtx, "sync.user",
    trace.WithAttributes(
      attribute.String("sync.job", job.Job()),
      attribute.String("user.id", user.ID.String()),
    ))
  defer span.End()

  result = job.SyncUser(userCtx, user)
  if result.FailedStage != "" {
    span.SetStatus(codes.Error, result.FailedStage)
  }
  return result
}

func (sb *syncBatchService) persistReport(ctx context.Context, report BatchReport) {
  detail, err := json.Marshal(report.Results)
  if err != nil {
    detail = []byte("[]")
  }
  run := &types.SyncRun{
    Job:            report.Job,
    StartedAt:      report.StartedAt,
    FinishedAt:     report.FinishedAt,
    UsersAttempted: report.Attempted,
    UsersSucceeded: report.Succeeded,
    UsersFailed:    report.Failed,
    Detail:         detail,
  }
  if _, err := sb.syncRuns.Create(ctx, nil, run); err != nil {
    sb.log.Error("Could not persist sync run report", "job", report.Job, "error", err)
  }
}
