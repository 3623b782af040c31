package services

import (
  "context"
  "errors"
  "fmt"
  "os"
  "strconv"
  "strings"
  "time"

  "github.com/go-resty/resty/v2"

  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/types"
)

// CanvasCredentials is everything the fetcher needs for one user's cycle.
// BaseURL is per user because every institution runs its own Canvas instance.
type CanvasCredentials struct {
  BaseURL      string
  AccessToken  string
  RefreshToken string
}

// RotatedCredential is handed back when the fetch had to refresh the access
// token mid-cycle. The orchestrator persists it after the fetch returns;
// nothing mutates shared state from inside an in-flight call.
type RotatedCredential struct {
  AccessToken string
  ExpiresAt   *time.Time
}

// CanvasClient retrieves the raw nested snapshot for one user. The courses
// listing failing is a total fetch failure; each per-course sub-resource call
// degrades to an empty collection instead.
type CanvasClient interface {
  FetchSnapshot(ctx context.Context, creds CanvasCredentials) (types.CanvasSnapshot, *RotatedCredential, error)
}

type canvasClient struct {
  log          *logger.Logger
  rest         *resty.Client
  clientID     string
  clientSecret string
  pageSize     int
}

func NewCanvasClient(log *logger.Logger) CanvasClient {
  serviceLog := log.With("service", "CanvasClient")

  timeoutSec := 30
  if v := os.Getenv("CANVAS_TIMEOUT_SECONDS"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
      timeoutSec = parsed
    }
  }

  rest := resty.New().
    SetTimeout(time.Duration(timeoutSec) * time.Second).
    SetRetryCount(2).
    SetRetryWaitTime(500 * time.Millisecond).
    AddRetryCondition(func(r *resty.Response, err error) bool {
      if err != nil {
        return true
      }
      return r.StatusCode() == 429 || r.StatusCode() >= 500
    })

  return &canvasClient{
    log:          serviceLog,
    rest:         rest,
    clientID:     os.Getenv("CANVAS_CLIENT_ID"),
    clientSecret: os.Getenv("CANVAS_CLIENT_SECRET"),
    pageSize:     50,
  }
}

// Raw wire shapes. Kept private; the fetch normalizes into snapshot types
// before anything downstream sees them.

type canvasCourse struct {
  ID         int64  `json:"id"`
  Name       string `json:"name"`
  CourseCode string `json:"course_code"`
}

type canvasSubmission struct {
  Score         *float64 `json:"score"`
  Grade         string   `json:"grade"`
  WorkflowState string   `json:"workflow_state"`
}

type canvasAssignment struct {
  ID             int64             `json:"id"`
  Name           string            `json:"name"`
  Description    string            `json:"description"`
  DueAt          *time.Time        `json:"due_at"`
  PointsPossible *float64          `json:"points_possible"`
  Submission     *canvasSubmission `json:"submission"`
}

type canvasAssignmentGroup struct {
  ID          int64              `json:"id"`
  Name        string             `json:"name"`
  Assignments []canvasAssignment `json:"assignments"`
}

type canvasDiscussion struct {
  ID       int64      `json:"id"`
  Title    string     `json:"title"`
  Message  string     `json:"message"`
  PostedAt *time.Time `json:"posted_at"`
}

type canvasModuleItem struct {
  ID      int64  `json:"id"`
  Title   string `json:"title"`
  Type    string `json:"type"`
  HTMLURL string `json:"html_url"`
}

type canvasModule struct {
  ID       int64              `json:"id"`
  Name     string             `json:"name"`
  Position int                `json:"position"`
  Items    []canvasModuleItem `json:"items"`
}

// subResource is the explicit outcome of one degradable per-course call. The
// assembly step matches on Err to choose collection-vs-empty; no control flow
// hides in exception-style fallthrough.
type subResource[T any] struct {
  Items []T
  Err   error
}

func (cc *canvasClient) FetchSnapshot(ctx context.Context, creds CanvasCredentials) (types.CanvasSnapshot, *RotatedCredential, error) {
  snap := types.CanvasSnapshot{FetchedAt: time.Now().UTC()}

  if creds.BaseURL == "" || creds.AccessToken == "" {
    return snap, nil, fmt.Errorf("canvas credentials incomplete")
  }
  baseURL := strings.TrimRight(creds.BaseURL, "/")

  session := &canvasSession{client: cc, baseURL: baseURL, creds: creds}

  courses, err := pagedGet[canvasCourse](ctx, session, "/api/v1/courses", map[string]string{
    "enrollment_state": "active",
  })
  if err != nil {
    return snap, session.rotated, fmt.Errorf("canvas courses listing failed: %w", err)
  }

  for _, course := range courses {
    container := types.CourseSnapshot{
      CourseID:   course.ID,
      Name:       course.Name,
      CourseCode: course.CourseCode,
    }

    groups := fetchSub[canvasAssignmentGroup](ctx, session,
      fmt.Sprintf("/api/v1/courses/%d/assignment_groups", course.ID),
      map[string]string{"include[]": "assignments,submission"})
    announcements := fetchSub[canvasDiscussion](ctx, session,
      fmt.Sprintf("/api/v1/courses/%d/discussion_topics", course.ID),
      map[string]string{"only_announcements": "true"})
    modules := fetchSub[canvasModule](ctx, session,
      fmt.Sprintf("/api/v1/courses/%d/modules", course.ID),
      map[string]string{"include[]": "items"})

    if groups.Err != nil {
      cc.log.Warn("Canvas assignments fetch degraded to empty", "course_id", course.ID, "error", groups.Err)
    } else {
      for _, g := range groups.Items {
        for _, a := range g.Assignments {
          container.Assignments = append(container.Assignments, types.AssignmentItem{
            AssignmentID:   a.ID,
            Name:           a.Name,
            Description:    a.Description,
            GroupName:      g.Name,
            DueAt:          a.DueAt,
            PointsPossible: a.PointsPossible,
            Submission:     normalizeSubmission(a.Submission),
          })
        }
      }
    }

    if announcements.Err != nil {
      cc.log.Warn("Canvas announcements fetch degraded to empty", "course_id", course.ID, "error", announcements.Err)
    } else {
      for _, d := range announcements.Items {
        container.Announcements = append(container.Announcements, types.AnnouncementItem{
          AnnouncementID: d.ID,
          Title:          d.Title,
          Message:        d.Message,
          PostedAt:       d.PostedAt,
        })
      }
    }

    if modules.Err != nil {
      cc.log.Warn("Canvas modules fetch degraded to empty", "course_id", course.ID, "error", modules.Err)
    } else {
      for _, m := range modules.Items {
        section := types.ModuleSection{
          ModuleID: m.ID,
          Name:     m.Name,
          Position: m.Position,
        }
        for _, it := range m.Items {
          section.Entries = append(section.Entries, types.ModuleEntry{
            EntryID: it.ID,
            Title:   it.Title,
            Type:    it.Type,
            HTMLURL: it.HTMLURL,
          })
        }
        container.Modules = append(container.Modules, section)
      }
    }

    snap.Courses = append(snap.Courses, container)
  }

  return snap, session.rotated, nil
}

func normalizeSubmission(s *canvasSubmission) *types.SubmissionInfo {
  if s == nil {
    return nil
  }
  return &types.SubmissionInfo{
    Score:         s.Score,
    Grade:         s.Grade,
    WorkflowState: s.WorkflowState,
  }
}

// canvasSession carries the per-cycle token state so a mid-cycle refresh is
// visible to every later call of the same cycle and surfaces in rotated.
type canvasSession struct {
  client  *canvasClient
  baseURL string
  creds   CanvasCredentials
  rotated *RotatedCredential
}

func (s *canvasSession) token() string {
  if s.rotated != nil {
    return s.rotated.AccessToken
  }
  return s.creds.AccessToken
}

var errCanvasUnauthorized = errors.New("canvas unauthorized")

// getPage performs one GET, refreshing the token once on a 401 when a refresh
// token is available.
func (s *canvasSession) getPage(ctx context.Context, url string, query map[string]string, out any) (*resty.Response, error) {
  resp, err := s.doGet(ctx, url, query, out)
  if err == nil {
    return resp, nil
  }
  if !errors.Is(err, errCanvasUnauthorized) || s.creds.RefreshToken == "" || s.rotated != nil {
    return resp, err
  }
  if refreshErr := s.refresh(ctx); refreshErr != nil {
    return resp, fmt.Errorf("canvas token refresh failed: %w", refreshErr)
  }
  return s.doGet(ctx, url, query, out)
}

func (s *canvasSession) doGet(ctx context.Context, url string, query map[string]string, out any) (*resty.Response, error) {
  req := s.client.rest.R().
    SetContext(ctx).
    SetAuthToken(s.token()).
    SetQueryParam("per_page", strconv.Itoa(s.client.pageSize)).
    SetResult(out)
  for k, v := range query {
    req.SetQueryParam(k, v)
  }
  resp, err := req.Get(url)
  if err != nil {
    return resp, err
  }
  if resp.StatusCode() == 401 {
    return resp, errCanvasUnauthorized
  }
  if resp.IsError() {
    return resp, fmt.Errorf("canvas http %d: %s", resp.StatusCode(), resp.String())
  }
  return resp, nil
}

type canvasTokenResponse struct {
  AccessToken string `json:"access_token"`
  ExpiresIn   int    `json:"expires_in"`
}

func (s *canvasSession) refresh(ctx context.Context) error {
  if s.client.clientID == "" || s.client.clientSecret == "" {
    return fmt.Errorf("missing CANVAS_CLIENT_ID / CANVAS_CLIENT_SECRET")
  }
  var tok canvasTokenResponse
  resp, err := s.client.rest.R().
    SetContext(ctx).
    SetFormData(map[string]string{
      "grant_type":    "refresh_token",
      "client_id":     s.client.clientID,
      "client_secret": s.client.clientSecret,
      "refresh_token": s.creds.RefreshToken,
    }).
    SetResult(&tok).
    Post(s.baseURL + "/login/oauth2/token")
  if err != nil {
    return err
  }
  if resp.IsError() || tok.AccessToken == "" {
    return fmt.Errorf("canvas token endpoint http %d", resp.StatusCode())
  }
  rotated := &RotatedCredential{AccessToken: tok.AccessToken}
  if tok.ExpiresIn > 0 {
    exp := time.Now().UTC().Add(time.Duration(tok.ExpiresIn) * time.Second)
    rotated.ExpiresAt = &exp
  }
  s.rotated = rotated
  s.client.log.Info("Canvas access token rotated mid-cycle")
  return nil
}

// pagedGet walks Canvas Link-header pagination until no rel="next" remains.
func pagedGet[T any](ctx context.Context, s *canvasSession, path string, query map[string]string) ([]T, error) {
  var all []T
  url := s.baseURL + path
  for url != "" {
    var page []T
    resp, err := s.getPage(ctx, url, query, &page)
    if err != nil {
      return nil, err
    }
    all = append(all, page...)
    url = nextLink(resp.Header().Get("Link"))
    // Query params ride along in the next link itself.
    query = nil
  }
  return all, nil
}

func fetchSub[T any](ctx context.Context, s *canvasSession, path string, query map[string]string) subResource[T] {
  items, err := pagedGet[T](ctx, s, path, query)
  return subResource[T]{Items: items, Err: err}
}

// nextLink extracts the rel="next" URL from a Canvas Link header, or "".
func nextLink(header string) string {
  for _, part := range strings.Split(header, ",") {
    section := strings.Split(part, ";")
    if len(section) < 2 {
      continue
    }
    if strings.TrimSpace(section[1]) == `rel="next"` {
      u := strings.TrimSpace(section[0])
      return strings.Trim(u, "<>")
    }
  }
  return ""
}
