package services

import (
  "context"
  "fmt"
  "os"
  "strconv"
  "strings"
  "time"

  "golang.org/x/oauth2"
  "golang.org/x/oauth2/google"
  gmail "google.golang.org/api/gmail/v1"
  "google.golang.org/api/option"

  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/types"
)

type GmailCredentials struct {
  AccessToken  string
  RefreshToken string
  Expiry       *time.Time
}

// GmailClient retrieves the mail snapshot for one user: the recent messages
// under each watched label. The profile call failing aborts the fetch; a
// single label degrading to empty does not.
type GmailClient interface {
  FetchSnapshot(ctx context.Context, creds GmailCredentials) (types.MailSnapshot, *RotatedCredential, error)
}

type gmailClient struct {
  log        *logger.Logger
  oauthCfg   *oauth2.Config
  labels     []string
  maxPerBox  int64
  lookback   string
}

func NewGmailClient(log *logger.Logger) (GmailClient, error) {
  serviceLog := log.With("service", "GmailClient")

  clientID := os.Getenv("GOOGLE_CLIENT_ID")
  clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
  if clientID == "" || clientSecret == "" {
    return nil, fmt.Errorf("missing GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET")
  }

  labels := []string{"INBOX"}
  if v := os.Getenv("GMAIL_SYNC_LABELS"); v != "" {
    labels = nil
    for _, l := range strings.Split(v, ",") {
      if trimmed := strings.TrimSpace(l); trimmed != "" {
        labels = append(labels, trimmed)
      }
    }
  }

  maxPerBox := int64(50)
  if v := os.Getenv("GMAIL_MAX_MESSAGES"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
      maxPerBox = int64(parsed)
    }
  }

  lookbackDays := 14
  if v := os.Getenv("GMAIL_LOOKBACK_DAYS"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
      lookbackDays = parsed
    }
  }

  return &gmailClient{
    log: serviceLog,
    oauthCfg: &oauth2.Config{
      ClientID:     clientID,
      ClientSecret: clientSecret,
      Endpoint:     google.Endpoint,
      Scopes:       []string{gmail.GmailReadonlyScope},
    },
    labels:    labels,
    maxPerBox: maxPerBox,
    lookback:  fmt.Sprintf("newer_than:%dd", lookbackDays),
  }, nil
}

func (gc *gmailClient) FetchSnapshot(ctx context.Context, creds GmailCredentials) (types.MailSnapshot, *RotatedCredential, error) {
  snap := types.MailSnapshot{FetchedAt: time.Now().UTC()}

  if creds.RefreshToken == "" && creds.AccessToken == "" {
    return snap, nil, fmt.Errorf("gmail credentials incomplete")
  }

  seed := &oauth2.Token{
    AccessToken:  creds.AccessToken,
    RefreshToken: creds.RefreshToken,
    TokenType:    "Bearer",
  }
  if creds.Expiry != nil {
    seed.Expiry = *creds.Expiry
  }
  // The token source refreshes transparently; the rotated token is read back
  // off it after the fetch and returned as a value, never pushed through a
  // callback mid-call.
  tokenSource := gc.oauthCfg.TokenSource(ctx, seed)

  svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
  if err != nil {
    return snap, nil, fmt.Errorf("gmail service init failed: %w", err)
  }

  // Primary reachability+auth check; failure here is a total fetch failure.
  if _, err := svc.Users.GetProfile("me").Context(ctx).Do(); err != nil {
    return snap, gc.rotatedFrom(tokenSource, creds), fmt.Errorf("gmail profile fetch failed: %w", err)
  }

  for _, label := range gc.labels {
    box := types.MailboxSnapshot{LabelID: label, LabelName: label}

    listed, listErr := svc.Users.Messages.List("me").
      LabelIds(label).
      Q(gc.lookback).
      MaxResults(gc.maxPerBox).
      Context(ctx).Do()
    if listErr != nil {
      gc.log.Warn("Gmail label listing degraded to empty", "label", label, "error", listErr)
      snap.Mailboxes = append(snap.Mailboxes, box)
      continue
    }

    for _, ref := range listed.Messages {
      msg, getErr := svc.Users.Messages.Get("me", ref.Id).
        Format("metadata").
        MetadataHeaders("Subject", "From").
        Context(ctx).Do()
      if getErr != nil {
        gc.log.Warn("Gmail message fetch skipped", "label", label, "message_id", ref.Id, "error", getErr)
        continue
      }
      box.Messages = append(box.Messages, normalizeMessage(msg))
    }

    snap.Mailboxes = append(snap.Mailboxes, box)
  }

  return snap, gc.rotatedFrom(tokenSource, creds), nil
}

func (gc *gmailClient) rotatedFrom(ts oauth2.TokenSource, creds GmailCredentials) *RotatedCredential {
  tok, err := ts.Token()
  if err != nil || tok == nil {
    return nil
  }
  if tok.AccessToken == "" || tok.AccessToken == creds.AccessToken {
    return nil
  }
  rotated := &RotatedCredential{AccessToken: tok.AccessToken}
  if !tok.Expiry.IsZero() {
    exp := tok.Expiry.UTC()
    rotated.ExpiresAt = &exp
  }
  return rotated
}

func normalizeMessage(msg *gmail.Message) types.MailMessage {
  out := types.MailMessage{
    MessageID: msg.Id,
    ThreadID:  msg.ThreadId,
    Snippet:   msg.Snippet,
  }
  if msg.InternalDate > 0 {
    t := time.UnixMilli(msg.InternalDate).UTC()
    out.ReceivedAt = &t
  }
  if msg.Payload != nil {
    for _, h := range msg.Payload.Headers {
      switch h.Name {
      case "Subject":
        out.Subject = h.Value
      case "From":
        out.From = h.Value
      }
    }
  }
  return out
}
