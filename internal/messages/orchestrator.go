// Package messages serves bounded pages of a chat's history, optionally
// asking the session to backfill older messages first, and enriches
// each message with resolved names and quoted-message context. The two
// load-bearing steps (chat lookup, message fetch) fail the request;
// everything else degrades per message.
package messages

import (
	"context"
	"regexp"
	"time"

	"github.com/wabridge/wabridge/internal/client"
	"github.com/wabridge/wabridge/internal/contacts"
	"github.com/wabridge/wabridge/internal/fault"
	"github.com/wabridge/wabridge/internal/timeout"
	"go.uber.org/zap"
)

const (
	// DefaultLimit and MaxLimit bound the page size.
	DefaultLimit = 20
	MaxLimit     = 50

	// DefaultFetchTimeout caps the raw message fetch when the caller
	// does not supply one.
	DefaultFetchTimeout = 30 * time.Second

	chatLookupTimeout  = 10 * time.Second
	historySyncTimeout = 15 * time.Second
)

// Options control one page request.
type Options struct {
	Limit        int
	Before       int64 // exclusive upper-bound timestamp; 0 = most recent page
	Sync         bool  // request history backfill before reading
	ResolveNames bool  // resolve names via the session vs. cache-only
	Timeout      time.Duration
}

// QuotedSummary is the flattened view of a replied-to message.
type QuotedSummary struct {
	Body       string `json:"body"`
	Type       string `json:"type"`
	HasMedia   bool   `json:"hasMedia"`
	FromMe     bool   `json:"fromMe"`
	SenderName string `json:"senderName"`
}

// Record is one fully rendered message.
type Record struct {
	MsgID        string         `json:"msgId"`
	Body         string         `json:"body"`
	From         string         `json:"from"`
	FromMe       bool           `json:"fromMe"`
	Timestamp    int64          `json:"timestamp"`
	Type         string         `json:"type"`
	HasMedia     bool           `json:"hasMedia"`
	MentionedIDs []string       `json:"mentionedIds"`
	SenderID     string         `json:"senderId,omitempty"`
	SenderName   string         `json:"senderName,omitempty"`
	SenderPic    string         `json:"senderPic,omitempty"`
	IsAdmin      bool           `json:"isAdmin,omitempty"`
	IsSuperAdmin bool           `json:"isSuperAdmin,omitempty"`
	Quoted       *QuotedSummary `json:"quotedMsg,omitempty"`
}

// Page is the response for one page request.
type Page struct {
	Messages         []Record `json:"messages"`
	HasMore          bool     `json:"hasMore"`
	OldestTimestamp  *int64   `json:"oldestTimestamp"`
	IsGroup          bool     `json:"isGroup"`
	ParticipantCount int      `json:"participantCount,omitempty"`
}

// Orchestrator coordinates pagination, backfill, and enrichment.
type Orchestrator struct {
	resolver *contacts.Resolver
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator using the given resolver.
func NewOrchestrator(resolver *contacts.Resolver, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{resolver: resolver, logger: logger}
}

// Fetch returns one page of chatID's messages per opts.
func (o *Orchestrator) Fetch(ctx context.Context, sess client.Session, chatID string, opts Options) (*Page, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	fetchTimeout := opts.Timeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}

	chat, err := timeout.Do(ctx, chatLookupTimeout, "getting chat", func(ctx context.Context) (*client.Chat, error) {
		return sess.ChatByID(ctx, chatID)
	})
	if err != nil {
		if fault.KindOf(err) == fault.UpstreamTimeout {
			return nil, fault.Wrap(fault.UpstreamTimeout, err, "failed to get chat")
		}
		return nil, fault.Wrap(fault.UpstreamFailure, err, "failed to get chat")
	}

	participants := make(map[string]client.Participant, len(chat.Participants))
	for _, p := range chat.Participants {
		participants[p.ID] = p
	}

	// Paginating backward implies older messages may not be loaded yet,
	// so ask for a backfill. Failures here are non-fatal: serve whatever
	// is already available. The wait is capped at half the caller's
	// remaining budget so a slow backfill cannot starve the message
	// fetch that follows.
	if opts.Before > 0 || opts.Sync {
		wait := historySyncTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if rem := time.Until(deadline) / 2; rem < wait {
				wait = rem
			}
		}
		_, err := timeout.Do(ctx, wait, "syncing history", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, sess.RequestHistory(ctx, chatID)
		})
		if err != nil {
			o.logger.Warn("history sync failed, continuing with available messages",
				zap.String("chat", chatID), zap.Error(err))
		}
	}

	// Over-fetch by one on the first page so a chat holding exactly
	// limit messages reports hasMore false. When filtering by cursor,
	// over-fetch enough that the post-filter tail can still fill a page.
	fetchLimit := limit + 1
	if opts.Before > 0 {
		fetchLimit = 2 * limit
	}
	raw, err := timeout.Do(ctx, fetchTimeout, "fetching messages", func(ctx context.Context) ([]client.Message, error) {
		return sess.Messages(ctx, chatID, fetchLimit)
	})
	if err != nil {
		if fault.KindOf(err) == fault.UpstreamTimeout {
			return nil, fault.Wrap(fault.UpstreamTimeout, err, "failed to fetch messages")
		}
		return nil, fault.Wrap(fault.UpstreamFailure, err, "failed to fetch messages")
	}

	window := raw
	if opts.Before > 0 {
		window = window[:0:0]
		for _, m := range raw {
			if m.Timestamp < opts.Before {
				window = append(window, m)
			}
		}
	}
	if len(window) > limit {
		window = window[len(window)-limit:]
	}

	// First pages know exactly whether older messages exist thanks to
	// the one-extra fetch. Cursor pages fall back to the full-page
	// heuristic, which callers treat as a hint.
	hasMore := len(raw) > limit
	if opts.Before > 0 {
		hasMore = len(window) == limit
	}

	page := &Page{
		Messages: []Record{},
		HasMore:  hasMore,
		IsGroup:  chat.IsGroup,
	}
	if chat.IsGroup {
		page.ParticipantCount = len(chat.Participants)
	}
	if len(window) > 0 {
		ts := window[0].Timestamp
		page.OldestTimestamp = &ts
	}

	infoByID := o.resolveParticipants(ctx, sess, chat.IsGroup, window, opts.ResolveNames)

	for _, m := range window {
		page.Messages = append(page.Messages, o.render(ctx, sess, chat, m, infoByID, participants))
	}
	return page, nil
}

// resolveParticipants collects every author and mention in the window
// and resolves them in one batch.
func (o *Orchestrator) resolveParticipants(ctx context.Context, sess client.Session, isGroup bool, window []client.Message, resolveNames bool) map[string]contacts.Info {
	idSet := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := idSet[id]; !ok {
			idSet[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, m := range window {
		for _, id := range m.MentionedIDs {
			add(id)
		}
		if isGroup && !m.FromMe {
			add(m.AuthorID)
		}
	}
	if len(ids) == 0 {
		return map[string]contacts.Info{}
	}
	if resolveNames {
		return o.resolver.Resolve(ctx, sess, ids)
	}
	return o.resolver.CachedOnly(ids)
}

// render builds one Record. Enrichment is defensive: a quoted-message
// lookup failure leaves Quoted unset and never fails the page.
func (o *Orchestrator) render(ctx context.Context, sess client.Session, chat *client.Chat, m client.Message, infoByID map[string]contacts.Info, participants map[string]client.Participant) Record {
	rec := Record{
		MsgID:        m.ID,
		Body:         substituteMentions(m.Body, m.MentionedIDs, infoByID),
		From:         m.ChatID,
		FromMe:       m.FromMe,
		Timestamp:    m.Timestamp,
		Type:         m.Kind,
		HasMedia:     m.HasMedia,
		MentionedIDs: m.MentionedIDs,
	}

	if chat.IsGroup && !m.FromMe && m.AuthorID != "" {
		rec.SenderID = m.AuthorID
		rec.SenderName = displayName(m.NotifyName, m.AuthorID, infoByID)
		rec.SenderPic = infoByID[m.AuthorID].AvatarURL
		if p, ok := participants[m.AuthorID]; ok {
			rec.IsAdmin = p.IsAdmin
			rec.IsSuperAdmin = p.IsSuperAdmin
		}
	}

	if m.QuotedID != "" {
		if quoted, err := sess.MessageByID(ctx, m.ChatID, m.QuotedID); err == nil && quoted != nil {
			rec.Quoted = o.summarizeQuoted(quoted, infoByID)
		} else if err != nil {
			o.logger.Debug("quoted message lookup failed",
				zap.String("msg", m.ID), zap.Error(err))
		}
	}
	return rec
}

func (o *Orchestrator) summarizeQuoted(q *client.Message, infoByID map[string]contacts.Info) *QuotedSummary {
	senderName := "You"
	if !q.FromMe {
		author := q.AuthorID
		if author == "" {
			author = q.ChatID
		}
		senderName = displayName(q.NotifyName, author, infoByID)
	}
	return &QuotedSummary{
		Body:       q.Body,
		Type:       q.Kind,
		HasMedia:   q.HasMedia,
		FromMe:     q.FromMe,
		SenderName: senderName,
	}
}

// displayName prefers the name declared on the message itself, then the
// resolved identity, then the bare phone number.
func displayName(notifyName, id string, infoByID map[string]contacts.Info) string {
	if notifyName != "" {
		return notifyName
	}
	if info, ok := infoByID[id]; ok && info.Name != "" {
		return info.Name
	}
	return contacts.PhoneFallback(id)
}

// substituteMentions rewrites literal @<digits> tokens to @<name> for
// every mention that resolved to a known name.
func substituteMentions(body string, mentionedIDs []string, infoByID map[string]contacts.Info) string {
	if body == "" || len(mentionedIDs) == 0 {
		return body
	}
	for _, id := range mentionedIDs {
		name := infoByID[id].Name
		if name == "" {
			continue
		}
		phone := contacts.PhoneFallback(id)
		re, err := regexp.Compile(`@` + regexp.QuoteMeta(phone) + `\b`)
		if err != nil {
			continue
		}
		body = re.ReplaceAllString(body, "@"+name)
	}
	return body
}
