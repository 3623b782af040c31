package types

import (
  "time"
)

// MailSnapshot is the point-in-time capture of the inbox scopes the mail sync
// watches for one user. Same lifecycle as CanvasSnapshot.
type MailSnapshot struct {
  FetchedAt time.Time         `json:"fetched_at"`
  Mailboxes []MailboxSnapshot `json:"mailboxes"`
}

// MailboxSnapshot is one container within a mail snapshot: a single Gmail
// label scope and the messages currently visible under it.
type MailboxSnapshot struct {
  LabelID   string        `json:"label_id"`
  LabelName string        `json:"label_name"`
  Messages  []MailMessage `json:"messages"`
}

type MailMessage struct {
  StableID   string     `json:"stable_id"`
  MessageID  string     `json:"message_id"`
  ThreadID   string     `json:"thread_id,omitempty"`
  Subject    string     `json:"subject"`
  From       string     `json:"from,omitempty"`
  Snippet    string     `json:"snippet,omitempty"`
  ReceivedAt *time.Time `json:"received_at,omitempty"`
}

func (m MailMessage) StableKey() string { return m.StableID }
