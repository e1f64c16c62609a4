package httpapi

import (
	"net/http"
	"strings"

	"github.com/wabridge/wabridge/internal/client"
	"github.com/wabridge/wabridge/internal/contacts"
	"github.com/wabridge/wabridge/internal/fault"
	"go.uber.org/zap"
)

const inviteLinkBase = "https://chat.whatsapp.com/"

type groupParticipant struct {
	ID           string  `json:"id"`
	IsAdmin      bool    `json:"isAdmin"`
	IsSuperAdmin bool    `json:"isSuperAdmin"`
	Name         *string `json:"name"`
	ProfilePic   *string `json:"profilePic"`
}

type groupDetail struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Description      *string            `json:"description"`
	Owner            *string            `json:"owner"`
	CreatedAt        *int64             `json:"createdAt"`
	Participants     []groupParticipant `json:"participants"`
	ParticipantCount int                `json:"participantCount"`
	UnreadCount      int                `json:"unreadCount"`
	IsReadOnly       bool               `json:"isReadOnly"`
	IsMuted          bool               `json:"isMuted"`
	MuteExpiration   *int64             `json:"muteExpiration"`
}

// groupChatID extracts and validates the group identifier, answering
// 400 for anything that is not a group JID.
func (s *Server) groupChatID(w http.ResponseWriter, r *http.Request) (string, bool) {
	chatID := normalizeChatID(r.PathValue("id"))
	if !strings.HasSuffix(chatID, "@g.us") {
		s.writeError(w, fault.New(fault.InvalidInput, "not a group chat"))
		return "", false
	}
	return chatID, true
}

func (s *Server) handleGroupInfo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}
	chatID, ok := s.groupChatID(w, r)
	if !ok {
		return
	}

	g, err := sess.GroupInfo(r.Context(), chatID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ids := make([]string, 0, len(g.Participants))
	for _, p := range g.Participants {
		ids = append(ids, p.ID)
	}

	var infos map[string]contacts.Info
	if boolQuery(r, "fetchNames") {
		infos = s.resolver.Resolve(r.Context(), sess, ids)
	} else {
		infos = s.resolver.CachedOnly(ids)
	}

	participants := make([]groupParticipant, 0, len(g.Participants))
	for _, p := range g.Participants {
		info := infos[p.ID]
		participants = append(participants, groupParticipant{
			ID:           p.ID,
			IsAdmin:      p.IsAdmin,
			IsSuperAdmin: p.IsSuperAdmin,
			Name:         nullable(info.Name),
			ProfilePic:   nullable(info.AvatarURL),
		})
	}

	s.writeJSON(w, http.StatusOK, groupDetail{
		ID:               g.ID,
		Name:             g.Name,
		Description:      nullable(g.Description),
		Owner:            nullable(g.OwnerID),
		CreatedAt:        nullableInt64(g.CreatedAt),
		Participants:     participants,
		ParticipantCount: len(participants),
		UnreadCount:      g.UnreadCount,
		IsReadOnly:       g.IsReadOnly,
		IsMuted:          g.IsMuted,
		MuteExpiration:   nullableInt64(g.MuteExpiration),
	})
}

func (s *Server) handleGroupInviteCode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}
	chatID, ok := s.groupChatID(w, r)
	if !ok {
		return
	}

	code, err := sess.GroupInviteCode(r.Context(), chatID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var link *string
	if code != "" {
		l := inviteLinkBase + code
		link = &l
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"code": code, "inviteLink": link})
}

func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}
	chatID, ok := s.groupChatID(w, r)
	if !ok {
		return
	}

	if err := sess.LeaveGroup(r.Context(), chatID); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("left group", zap.String("chat", chatID))
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// participantHandler builds the handler for one membership mutation.
// All four share the request shape {participants: [...]}.
func (s *Server) participantHandler(change client.ParticipantChange) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(w)
		if !ok {
			return
		}
		chatID, ok := s.groupChatID(w, r)
		if !ok {
			return
		}

		var body struct {
			Participants []string `json:"participants"`
		}
		if !s.decode(w, r, &body) {
			return
		}
		if len(body.Participants) == 0 {
			s.writeError(w, fault.New(fault.InvalidInput, "participants array required"))
			return
		}

		ids := make([]string, 0, len(body.Participants))
		for _, p := range body.Participants {
			ids = append(ids, normalizeParticipantID(p))
		}

		if err := sess.UpdateParticipants(r.Context(), chatID, ids, change); err != nil {
			s.writeError(w, err)
			return
		}
		s.logger.Info("group membership updated",
			zap.String("chat", chatID),
			zap.String("change", string(change)),
			zap.Int("count", len(ids)))
		s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (s *Server) handleSetSubject(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}
	chatID, ok := s.groupChatID(w, r)
	if !ok {
		return
	}

	var body struct {
		Subject string `json:"subject"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.Subject == "" {
		s.writeError(w, fault.New(fault.InvalidInput, "subject required"))
		return
	}

	if err := sess.SetGroupSubject(r.Context(), chatID, body.Subject); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleSetDescription(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}
	chatID, ok := s.groupChatID(w, r)
	if !ok {
		return
	}

	// An empty description is a valid request: it clears the topic.
	var body struct {
		Description string `json:"description"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	if err := sess.SetGroupDescription(r.Context(), chatID, body.Description); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// normalizeParticipantID accepts bare phone numbers alongside full JIDs.
func normalizeParticipantID(raw string) string {
	if strings.Contains(raw, "@") {
		return normalizeChatID(raw)
	}
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String() + "@s.whatsapp.net"
}
