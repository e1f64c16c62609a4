package wa

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/wabridge/wabridge/internal/client"
)

// parseLiveMessage normalizes a live whatsmeow message event into the
// session's message shape.
func parseLiveMessage(evt *events.Message) client.Message {
	return parseMessage(evt.Message, types.MessageInfo{
		MessageSource: evt.Info.MessageSource,
		ID:            evt.Info.ID,
		PushName:      evt.Info.PushName,
		Timestamp:     evt.Info.Timestamp,
	})
}

// parseMessage normalizes a raw payload plus its delivery info.
func parseMessage(msg *waE2E.Message, info types.MessageInfo) client.Message {
	authorID := ""
	if info.IsGroup {
		authorID = info.Sender.ToNonAD().String()
	}
	return client.Message{
		ID:           info.ID,
		ChatID:       info.Chat.String(),
		AuthorID:     authorID,
		Body:         extractTextBody(msg),
		FromMe:       info.IsFromMe,
		Timestamp:    info.Timestamp.Unix(),
		Kind:         detectKind(msg),
		HasMedia:     hasMedia(msg),
		MentionedIDs: mentionedIDs(msg),
		NotifyName:   info.PushName,
		QuotedID:     quotedID(msg),
	}
}

// extractTextBody returns the user-visible text: plain body, extended
// text, or a media caption.
func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetCaption()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetCaption()
	}
	return ""
}

// detectKind classifies a payload with the wire type names clients
// expect ("chat" for plain text).
func detectKind(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "chat"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		if msg.GetAudioMessage().GetPTT() {
			return "ptt"
		}
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "vcard"
	case msg.GetLocationMessage() != nil:
		return "location"
	case msg.GetProtocolMessage() != nil && msg.GetProtocolMessage().GetType() == waE2E.ProtocolMessage_REVOKE:
		return "revoked"
	default:
		return "unknown"
	}
}

func hasMedia(msg *waE2E.Message) bool {
	if msg == nil {
		return false
	}
	return msg.GetImageMessage() != nil ||
		msg.GetVideoMessage() != nil ||
		msg.GetAudioMessage() != nil ||
		msg.GetDocumentMessage() != nil ||
		msg.GetStickerMessage() != nil
}

// contextInfo digs the ContextInfo out of whichever sub-message carries
// it. Only the types that can mention or quote are checked.
func contextInfo(msg *waE2E.Message) *waE2E.ContextInfo {
	if msg == nil {
		return nil
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetContextInfo()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetContextInfo()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetContextInfo()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetContextInfo()
	}
	if aud := msg.GetAudioMessage(); aud != nil {
		return aud.GetContextInfo()
	}
	return nil
}

func mentionedIDs(msg *waE2E.Message) []string {
	ci := contextInfo(msg)
	if ci == nil {
		return nil
	}
	return ci.GetMentionedJID()
}

func quotedID(msg *waE2E.Message) string {
	ci := contextInfo(msg)
	if ci == nil {
		return ""
	}
	return ci.GetStanzaID()
}

// revokedMessageID returns the id of the message a revoke payload
// retracts, or empty when msg is not a revoke.
func revokedMessageID(msg *waE2E.Message) string {
	proto := msg.GetProtocolMessage()
	if proto == nil || proto.GetType() != waE2E.ProtocolMessage_REVOKE {
		return ""
	}
	return proto.GetKey().GetID()
}
