package tracker

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"promptguard/internal/config"
)

type Attachment struct {
	Filename    string
	Size        int
	URL         string
	ContentType string
}

type TrackedMessage struct {
	ChannelID string
	MessageID string
	SeenAt    time.Time
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Tracker remembers recent message fingerprints per author so the
// pipeline can detect the same payload posted across channels.
type Tracker struct {
	mu      sync.Mutex
	cfg     config.SecurityConfig
	clock   Clock
	history map[string]map[string][]TrackedMessage
}

func New(cfg config.SecurityConfig) *Tracker {
	return &Tracker{
		cfg:     cfg,
		clock:   realClock{},
		history: make(map[string]map[string][]TrackedMessage),
	}
}

func (t *Tracker) WithClock(clock Clock) {
	t.clock = clock
}

// Fingerprint digests the trimmed content plus each attachment's
// filename and size. Identical payloads always collide; the digest is
// not required to be collision-resistant against adversaries.
func Fingerprint(content string, attachments []Attachment) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(content))
	for _, att := range attachments {
		b.WriteString("|")
		b.WriteString(att.Filename)
		b.WriteString("|")
		b.WriteString(strconv.Itoa(att.Size))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

func (t *Tracker) Record(authorID, fingerprint, channelID, messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	byFingerprint := t.history[authorID]
	if byFingerprint == nil {
		byFingerprint = make(map[string][]TrackedMessage)
		t.history[authorID] = byFingerprint
	}

	byFingerprint[fingerprint] = append(byFingerprint[fingerprint], TrackedMessage{
		ChannelID: channelID,
		MessageID: messageID,
		SeenAt:    now,
	})

	t.pruneLocked(authorID, now)
}

// CrossPostChannels reports how many distinct channels the author has
// posted this fingerprint to within the tracking window. The current
// message must be recorded before calling, so a single post returns 1.
func (t *Tracker) CrossPostChannels(authorID, fingerprint string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pruneLocked(authorID, t.clock.Now())

	byFingerprint := t.history[authorID]
	if byFingerprint == nil {
		return 0
	}
	channels := make(map[string]struct{})
	for _, msg := range byFingerprint[fingerprint] {
		channels[msg.ChannelID] = struct{}{}
	}
	return len(channels)
}

func (t *Tracker) pruneLocked(authorID string, now time.Time) {
	window := time.Duration(t.cfg.CrossPostWindowSeconds) * time.Second
	cutoff := now.Add(-window)

	byFingerprint := t.history[authorID]
	total := 0
	for fingerprint, msgs := range byFingerprint {
		kept := msgs[:0]
		for _, msg := range msgs {
			if msg.SeenAt.After(cutoff) {
				kept = append(kept, msg)
			}
		}
		if len(kept) == 0 {
			delete(byFingerprint, fingerprint)
			continue
		}
		byFingerprint[fingerprint] = kept
		total += len(kept)
	}

	if t.cfg.MaxTrackedPerUser > 0 && total > t.cfg.MaxTrackedPerUser {
		t.evictOldestLocked(authorID, total-t.cfg.MaxTrackedPerUser)
	}
	if len(byFingerprint) == 0 {
		delete(t.history, authorID)
	}
}

func (t *Tracker) evictOldestLocked(authorID string, excess int) {
	byFingerprint := t.history[authorID]
	for excess > 0 {
		oldestFingerprint := ""
		oldestAt := time.Time{}
		for fingerprint, msgs := range byFingerprint {
			if len(msgs) == 0 {
				delete(byFingerprint, fingerprint)
				continue
			}
			if oldestFingerprint == "" || msgs[0].SeenAt.Before(oldestAt) {
				oldestFingerprint = fingerprint
				oldestAt = msgs[0].SeenAt
			}
		}
		if oldestFingerprint == "" {
			return
		}
		msgs := byFingerprint[oldestFingerprint]
		if len(msgs) == 1 {
			delete(byFingerprint, oldestFingerprint)
		} else {
			byFingerprint[oldestFingerprint] = msgs[1:]
		}
		excess--
	}
}
