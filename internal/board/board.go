// Package board is the public announcement channel. Approved decisions are
// posted here under ULID identifiers, and users receive direct
// notifications through it.
package board

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/verify"
)

// Announcement is a posted decision.
type Announcement struct {
	ID       string         `json:"id"`
	Channel  string         `json:"channel"`
	Summary  verify.Summary `json:"summary"`
	Text     string         `json:"text"`
	PostedAt time.Time      `json:"posted_at"`
}

// Notification is a direct message to a user.
type Notification struct {
	UserID  string    `json:"user_id"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// Board implements verify.Announcer in memory.
type Board struct {
	channel string
	now     func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	posts   []Announcement
	inbox   map[string][]Notification
}

// New creates a board posting to channel.
func New(channel string) *Board {
	return &Board{
		channel: channel,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
		inbox:   make(map[string][]Notification),
	}
}

// Post publishes a decision and returns its identifier.
func (b *Board) Post(ctx context.Context, s verify.Summary) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	id, err := ulid.New(ulid.Timestamp(now), b.entropy)
	if err != nil {
		return "", fmt.Errorf("generate announcement id: %w", err)
	}
	b.posts = append(b.posts, Announcement{
		ID:       id.String(),
		Channel:  b.channel,
		Summary:  s,
		Text:     Format(s),
		PostedAt: now,
	})
	return id.String(), nil
}

// Delete removes an announcement.
func (b *Board) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, a := range b.posts {
		if a.ID == id {
			b.posts = append(b.posts[:i], b.posts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: announcement %s", internalerr.ErrNotFound, id)
}

// NotifyUser queues a direct message for userID.
func (b *Board) NotifyUser(ctx context.Context, userID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inbox[userID] = append(b.inbox[userID], Notification{
		UserID:  userID,
		Message: message,
		SentAt:  b.now(),
	})
	return nil
}

// Announcements returns every live announcement, oldest first.
func (b *Board) Announcements() []Announcement {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Announcement, len(b.posts))
	copy(out, b.posts)
	return out
}

// Get returns one announcement.
func (b *Board) Get(id string) (Announcement, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, a := range b.posts {
		if a.ID == id {
			return a, true
		}
	}
	return Announcement{}, false
}

// Notifications returns the messages sent to userID.
func (b *Board) Notifications(userID string) []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Notification, len(b.inbox[userID]))
	copy(out, b.inbox[userID])
	return out
}

// Format renders a summary as announcement text.
func Format(s verify.Summary) string {
	var sb strings.Builder
	sb.WriteString(s.Title)
	if s.Reaction != "" {
		sb.WriteString(" " + s.Reaction)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Status: %s\n", s.Status)
	fmt.Fprintf(&sb, "Average: %s\n", s.Average)
	fmt.Fprintf(&sb, "Date: %s\n", s.Date)
	fmt.Fprintf(&sb, "Applicant Type: %s\n", s.ApplicantType)
	if s.Note != "" {
		fmt.Fprintf(&sb, "Note: %s\n", s.Note)
	}
	fmt.Fprintf(&sb, "Submitted by %s", s.Submitter)
	return sb.String()
}
