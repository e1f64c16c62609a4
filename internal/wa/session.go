// Package wa implements the WhatsApp session on top of whatsmeow. One
// Adapter is one connection attempt: the connection manager builds a
// fresh one per cycle while the sqlstore container, holding the device
// credentials, is shared across attempts.
package wa

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/wabridge/wabridge/internal/client"
	"github.com/wabridge/wabridge/internal/fault"

	_ "github.com/mattn/go-sqlite3"
)

const (
	eventBuffer = 256

	// historyPageSize is how many older messages one backfill request
	// asks the phone for.
	historyPageSize = 50
)

// NewContainer opens the whatsmeow credential store at dbPath. Shared
// by every Adapter built for the same session.
func NewContainer(ctx context.Context, dbPath string) (*sqlstore.Container, error) {
	wastore.SetOSInfo("WABridge", [3]uint32{0, 1, 0})
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}
	return container, nil
}

// Adapter is the production client.Session.
type Adapter struct {
	client  *whatsmeow.Client
	archive *Archive
	logger  *zap.Logger

	events    chan any
	closeOnce sync.Once
}

// NewAdapter builds an Adapter on the container's first device.
func NewAdapter(ctx context.Context, container *sqlstore.Container, retention int, logger *zap.Logger) (*Adapter, error) {
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	a := &Adapter{
		client:  whatsmeow.NewClient(deviceStore, nil),
		archive: NewArchive(retention),
		logger:  logger,
		events:  make(chan any, eventBuffer),
	}
	// Reconnection is owned by the connection manager, which replaces
	// the whole adapter. Two clients on one credential store would
	// stream-replace each other.
	a.client.EnableAutoReconnect = false
	a.client.AddEventHandler(a.handleEvent)
	return a, nil
}

var _ client.Session = (*Adapter)(nil)

// emit delivers an event without ever blocking the whatsmeow handler
// goroutine.
func (a *Adapter) emit(evt any) {
	select {
	case a.events <- evt:
	default:
		a.logger.Warn("event channel full, dropping event",
			zap.String("type", fmt.Sprintf("%T", evt)))
	}
}

func (a *Adapter) Events() <-chan any { return a.events }

// Connect starts the connection. Without stored credentials it opens
// the QR channel first and streams pairing progress on Events.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.client.Store.ID == nil {
		qrChan, err := a.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get QR channel: %w", err)
		}
		if err := a.client.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		go a.pumpQR(qrChan)
		return nil
	}
	a.logger.Info("connecting with stored credentials")
	return a.client.Connect()
}

func (a *Adapter) pumpQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			a.emit(client.QRCodeEvent{Code: item.Code})
		case "success":
			a.emit(client.AuthenticatedEvent{})
			return
		case "timeout":
			a.emit(client.AuthFailureEvent{Reason: "pairing window expired"})
			return
		default:
			if item.Error != nil {
				a.emit(client.AuthFailureEvent{Reason: item.Error.Error()})
				return
			}
		}
	}
}

func (a *Adapter) Disconnect() {
	a.client.Disconnect()
	a.closeOnce.Do(func() { close(a.events) })
}

func (a *Adapter) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	code, err := a.client.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
	if err != nil {
		return "", fault.Wrap(fault.UpstreamFailure, err, "request pairing code")
	}
	return code, nil
}

// handleEvent translates whatsmeow's event stream into the session's.
func (a *Adapter) handleEvent(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Connected:
		a.logger.Info("whatsapp connected")
		a.emit(client.ReadyEvent{})
	case *events.Disconnected:
		a.logger.Warn("whatsapp disconnected")
		a.emit(client.DisconnectedEvent{Reason: "connection closed"})
	case *events.LoggedOut:
		a.logger.Warn("whatsapp logged out", zap.String("reason", evt.Reason.String()))
		a.emit(client.AuthFailureEvent{Reason: evt.Reason.String()})
	case *events.Message:
		a.handleMessage(evt)
	case *events.Receipt:
		a.handleReceipt(evt)
	case *events.ChatPresence:
		a.emit(client.TypingEvent{
			ChatID:   evt.Chat.String(),
			IsTyping: evt.State == types.ChatPresenceComposing,
		})
	case *events.HistorySync:
		a.handleHistorySync(evt)
	}
}

func (a *Adapter) handleMessage(evt *events.Message) {
	if revoked := revokedMessageID(evt.Message); revoked != "" {
		chatID := evt.Info.Chat.String()
		a.archive.Remove(chatID, revoked)
		a.emit(client.MessageDeletedEvent{MessageID: revoked, ChatID: chatID})
		return
	}

	msg := parseLiveMessage(evt)
	if !evt.Info.IsGroup && !msg.FromMe {
		a.archive.Observe(msg.ChatID, evt.Info.PushName, false)
	} else {
		a.archive.Observe(msg.ChatID, "", evt.Info.IsGroup)
	}
	if !a.archive.Put(msg, evt.Message) {
		return
	}

	if msg.FromMe {
		a.emit(client.MessageSentEvent{Message: msg})
		return
	}

	unread := a.archive.BumpUnread(msg.ChatID, a.mentionsSelf(msg.MentionedIDs))
	meta, _ := a.archive.Chat(msg.ChatID)
	a.emit(client.MessageEvent{
		Message:  msg,
		ChatName: meta.Name,
		IsGroup:  evt.Info.IsGroup,
	})
	a.emit(client.ChatUpdateEvent{ChatID: msg.ChatID, UnreadCount: unread})
}

func (a *Adapter) mentionsSelf(mentioned []string) bool {
	self := a.selfJID()
	if self.IsEmpty() {
		return false
	}
	for _, id := range mentioned {
		jid, err := types.ParseJID(id)
		if err != nil {
			continue
		}
		if jid.ToNonAD().User == self.User {
			return true
		}
	}
	return false
}

func (a *Adapter) selfJID() types.JID {
	if a.client.Store.ID == nil {
		return types.EmptyJID
	}
	return a.client.Store.ID.ToNonAD()
}

func (a *Adapter) handleReceipt(evt *events.Receipt) {
	var level int
	switch evt.Type {
	case types.ReceiptTypeDelivered:
		level = client.AckDelivered
	case types.ReceiptTypeRead:
		level = client.AckRead
	case types.ReceiptTypePlayed:
		level = client.AckPlayed
	default:
		return
	}
	chatID := evt.Chat.String()
	for _, id := range evt.MessageIDs {
		a.emit(client.AckEvent{MessageID: id, ChatID: chatID, Level: level})
	}
}

// handleHistorySync folds a history batch into the archive. The batch
// format mirrors what the phone pushes: conversations with embedded web
// message blobs, unordered.
func (a *Adapter) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	self := a.selfJID()
	ingested := 0
	for _, conv := range data.GetConversations() {
		chatJID, err := types.ParseJID(conv.GetID())
		if err != nil {
			continue
		}
		isGroup := chatJID.Server == types.GroupServer
		a.archive.Observe(chatJID.String(), conv.GetName(), isGroup)

		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			key := wmsg.GetKey()
			sender := chatJID
			if isGroup {
				if p, err := types.ParseJID(key.GetParticipant()); err == nil {
					sender = p
				}
			}
			if key.GetFromMe() {
				sender = self
			}
			info := types.MessageInfo{
				MessageSource: types.MessageSource{
					Chat:     chatJID,
					Sender:   sender,
					IsFromMe: key.GetFromMe(),
					IsGroup:  isGroup,
				},
				ID:        key.GetID(),
				PushName:  wmsg.GetPushName(),
				Timestamp: time.Unix(int64(wmsg.GetMessageTimestamp()), 0),
			}
			if a.archive.Put(parseMessage(wmsg.GetMessage(), info), wmsg.GetMessage()) {
				ingested++
			}
		}
	}
	if ingested > 0 {
		a.logger.Info("history sync ingested", zap.Int("messages", ingested))
	}
}

func parseJID(id string) (types.JID, error) {
	jid, err := types.ParseJID(id)
	if err != nil || jid.User == "" {
		return types.EmptyJID, fault.New(fault.InvalidInput, "invalid chat id %q", id)
	}
	return jid, nil
}

func (a *Adapter) Chats(ctx context.Context) ([]client.Chat, error) {
	chats := a.archive.Chats()

	// Fill in names for direct chats the archive only knows by number.
	known, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("failed to load contacts for chat names", zap.Error(err))
		return chats, nil
	}
	for i := range chats {
		if chats[i].Name != "" || chats[i].IsGroup {
			continue
		}
		jid, err := types.ParseJID(chats[i].ID)
		if err != nil {
			continue
		}
		if info, ok := known[jid.ToNonAD()]; ok {
			if info.FullName != "" {
				chats[i].Name = info.FullName
			} else if info.PushName != "" {
				chats[i].Name = info.PushName
			}
		}
	}
	return chats, nil
}

func (a *Adapter) ChatByID(ctx context.Context, chatID string) (*client.Chat, error) {
	jid, err := parseJID(chatID)
	if err != nil {
		return nil, err
	}

	chat, ok := a.archive.Chat(jid.String())
	if !ok {
		if jid.Server == types.GroupServer {
			// Unseen group: the server still knows it if we are a member.
			return a.groupChat(ctx, jid)
		}
		// Any valid user JID is an addressable chat even before the
		// first message.
		chat = client.Chat{ID: jid.String()}
	}
	if chat.IsGroup {
		info, err := a.client.GetGroupInfo(ctx, jid)
		if err != nil {
			return nil, fault.Wrap(fault.UpstreamFailure, err, "get group info")
		}
		chat.Name = info.GroupName.Name
		chat.Participants = groupParticipants(info)
	}
	return &chat, nil
}

func (a *Adapter) groupChat(ctx context.Context, jid types.JID) (*client.Chat, error) {
	info, err := a.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fault.Wrap(fault.NotFound, err, "chat %s not found", jid)
	}
	return &client.Chat{
		ID:           jid.String(),
		Name:         info.GroupName.Name,
		IsGroup:      true,
		Participants: groupParticipants(info),
	}, nil
}

func groupParticipants(info *types.GroupInfo) []client.Participant {
	out := make([]client.Participant, 0, len(info.Participants))
	for _, p := range info.Participants {
		out = append(out, client.Participant{
			ID:           p.JID.ToNonAD().String(),
			IsAdmin:      p.IsAdmin,
			IsSuperAdmin: p.IsSuperAdmin,
		})
	}
	return out
}

func (a *Adapter) Messages(_ context.Context, chatID string, limit int) ([]client.Message, error) {
	jid, err := parseJID(chatID)
	if err != nil {
		return nil, err
	}
	return a.archive.Messages(jid.String(), limit), nil
}

func (a *Adapter) MessageByID(_ context.Context, chatID, messageID string) (*client.Message, error) {
	jid, err := parseJID(chatID)
	if err != nil {
		return nil, err
	}
	msg, ok := a.archive.Message(jid.String(), messageID)
	if !ok {
		return nil, fault.New(fault.NotFound, "message %s not found in %s", messageID, chatID)
	}
	return &msg, nil
}

// RequestHistory asks the phone for messages older than the oldest one
// retained. Without an anchor message there is nothing to request.
func (a *Adapter) RequestHistory(ctx context.Context, chatID string) error {
	jid, err := parseJID(chatID)
	if err != nil {
		return err
	}
	oldest, ok := a.archive.Oldest(jid.String())
	if !ok {
		return nil
	}

	sender := a.selfJID()
	if !oldest.FromMe && oldest.AuthorID != "" {
		if p, err := types.ParseJID(oldest.AuthorID); err == nil {
			sender = p
		}
	} else if !oldest.FromMe && jid.Server != types.GroupServer {
		sender = jid
	}

	anchor := &types.MessageInfo{
		MessageSource: types.MessageSource{
			Chat:     jid,
			Sender:   sender,
			IsFromMe: oldest.FromMe,
		},
		ID:        oldest.ID,
		Timestamp: time.Unix(oldest.Timestamp, 0),
	}
	req := a.client.BuildHistorySyncRequest(anchor, historyPageSize)
	_, err = a.client.SendMessage(ctx, a.selfJID(), req, whatsmeow.SendRequestExtra{Peer: true})
	if err != nil {
		return fault.Wrap(fault.UpstreamFailure, err, "request history")
	}
	return nil
}

func (a *Adapter) Contact(ctx context.Context, contactID string) (client.Contact, error) {
	jid, err := parseJID(contactID)
	if err != nil {
		return client.Contact{}, err
	}
	info, err := a.client.Store.Contacts.GetContact(ctx, jid.ToNonAD())
	if err != nil {
		return client.Contact{}, fault.Wrap(fault.UpstreamFailure, err, "get contact")
	}
	return client.Contact{
		PushName:  info.PushName,
		FullName:  info.FullName,
		ShortName: info.FirstName,
	}, nil
}

func (a *Adapter) AvatarURL(ctx context.Context, contactID string) (string, error) {
	jid, err := parseJID(contactID)
	if err != nil {
		return "", err
	}
	pic, err := a.client.GetProfilePictureInfo(ctx, jid, &whatsmeow.GetProfilePictureParams{Preview: true})
	if err != nil {
		return "", fault.Wrap(fault.UpstreamFailure, err, "get profile picture")
	}
	if pic == nil {
		return "", nil
	}
	return pic.URL, nil
}

func (a *Adapter) SendText(ctx context.Context, chatID, body, quotedID string) error {
	jid, err := parseJID(chatID)
	if err != nil {
		return err
	}

	var payload *waE2E.Message
	if quotedID != "" {
		payload = a.quotedTextPayload(jid.String(), body, quotedID)
	} else {
		payload = &waE2E.Message{Conversation: proto.String(body)}
	}

	resp, err := a.client.SendMessage(ctx, jid, payload)
	if err != nil {
		return fault.Wrap(fault.UpstreamFailure, err, "send message")
	}

	echo := client.Message{
		ID:        resp.ID,
		ChatID:    jid.String(),
		Body:      body,
		FromMe:    true,
		Timestamp: resp.Timestamp.Unix(),
		Kind:      "chat",
		QuotedID:  quotedID,
	}
	a.archive.Put(echo, payload)
	a.emit(client.MessageSentEvent{Message: echo})
	return nil
}

// quotedTextPayload builds a reply. When the quoted message is no
// longer retained the reply degrades to a plain send.
func (a *Adapter) quotedTextPayload(chatID, body, quotedID string) *waE2E.Message {
	raw, ok := a.archive.Raw(chatID, quotedID)
	if !ok {
		a.logger.Debug("quoted message not retained, sending plain",
			zap.String("quoted", quotedID))
		return &waE2E.Message{Conversation: proto.String(body)}
	}
	quoted, _ := a.archive.Message(chatID, quotedID)
	participant := quoted.AuthorID
	if participant == "" {
		if quoted.FromMe {
			participant = a.selfJID().String()
		} else {
			participant = chatID
		}
	}
	return &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(body),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:      proto.String(quotedID),
				Participant:   proto.String(participant),
				QuotedMessage: raw,
			},
		},
	}
}

func (a *Adapter) SendMedia(ctx context.Context, chatID string, media client.Media, caption string) error {
	jid, err := parseJID(chatID)
	if err != nil {
		return err
	}

	payload, kind, err := a.buildMediaPayload(ctx, media, caption)
	if err != nil {
		return err
	}
	resp, err := a.client.SendMessage(ctx, jid, payload)
	if err != nil {
		return fault.Wrap(fault.UpstreamFailure, err, "send media")
	}

	echo := client.Message{
		ID:        resp.ID,
		ChatID:    jid.String(),
		Body:      caption,
		FromMe:    true,
		Timestamp: resp.Timestamp.Unix(),
		Kind:      kind,
		HasMedia:  true,
	}
	a.archive.Put(echo, payload)
	a.emit(client.MessageSentEvent{Message: echo})
	return nil
}

func (a *Adapter) buildMediaPayload(ctx context.Context, media client.Media, caption string) (*waE2E.Message, string, error) {
	var mediaType whatsmeow.MediaType
	var kind string
	switch {
	case strings.HasPrefix(media.Mimetype, "image/"):
		mediaType, kind = whatsmeow.MediaImage, "image"
	case strings.HasPrefix(media.Mimetype, "video/"):
		mediaType, kind = whatsmeow.MediaVideo, "video"
	case strings.HasPrefix(media.Mimetype, "audio/"):
		mediaType, kind = whatsmeow.MediaAudio, "audio"
	default:
		mediaType, kind = whatsmeow.MediaDocument, "document"
	}

	up, err := a.client.Upload(ctx, media.Data, mediaType)
	if err != nil {
		return nil, "", fault.Wrap(fault.UpstreamFailure, err, "upload media")
	}

	length := proto.Uint64(uint64(len(media.Data)))
	msg := &waE2E.Message{}
	switch mediaType {
	case whatsmeow.MediaImage:
		msg.ImageMessage = &waE2E.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(media.Mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    length,
		}
	case whatsmeow.MediaVideo:
		msg.VideoMessage = &waE2E.VideoMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(media.Mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    length,
		}
	case whatsmeow.MediaAudio:
		msg.AudioMessage = &waE2E.AudioMessage{
			Mimetype:      proto.String(media.Mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    length,
		}
	default:
		msg.DocumentMessage = &waE2E.DocumentMessage{
			Caption:       proto.String(caption),
			Title:         proto.String(media.Filename),
			FileName:      proto.String(media.Filename),
			Mimetype:      proto.String(media.Mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    length,
		}
	}
	return msg, kind, nil
}

func (a *Adapter) DownloadMedia(ctx context.Context, chatID, messageID string) (client.Media, error) {
	jid, err := parseJID(chatID)
	if err != nil {
		return client.Media{}, err
	}
	raw, ok := a.archive.Raw(jid.String(), messageID)
	if !ok {
		return client.Media{}, fault.New(fault.NotFound, "message %s not retained", messageID)
	}

	var part whatsmeow.DownloadableMessage
	var mimetype, filename string
	switch {
	case raw.GetImageMessage() != nil:
		part, mimetype = raw.GetImageMessage(), raw.GetImageMessage().GetMimetype()
	case raw.GetVideoMessage() != nil:
		part, mimetype = raw.GetVideoMessage(), raw.GetVideoMessage().GetMimetype()
	case raw.GetAudioMessage() != nil:
		part, mimetype = raw.GetAudioMessage(), raw.GetAudioMessage().GetMimetype()
	case raw.GetDocumentMessage() != nil:
		doc := raw.GetDocumentMessage()
		part, mimetype, filename = doc, doc.GetMimetype(), doc.GetFileName()
	case raw.GetStickerMessage() != nil:
		part, mimetype = raw.GetStickerMessage(), raw.GetStickerMessage().GetMimetype()
	default:
		return client.Media{}, fault.New(fault.NotFound, "message %s has no media", messageID)
	}

	data, err := a.client.Download(ctx, part)
	if err != nil {
		return client.Media{}, fault.Wrap(fault.UpstreamFailure, err, "download media")
	}
	return client.Media{Data: data, Mimetype: mimetype, Filename: filename}, nil
}

// MarkRead acks the chat's unread inbound messages and clears the local
// counters.
func (a *Adapter) MarkRead(ctx context.Context, chatID string) error {
	jid, err := parseJID(chatID)
	if err != nil {
		return err
	}

	for sender, ids := range receiptBatches(jid, a.archive.Messages(jid.String(), 0)) {
		if err := a.client.MarkRead(ctx, ids, time.Now(), jid, sender); err != nil {
			return fault.Wrap(fault.UpstreamFailure, err, "mark read")
		}
	}

	a.archive.ClearUnread(jid.String())
	a.emit(client.ChatUpdateEvent{ChatID: jid.String(), UnreadCount: 0})
	return nil
}

// receiptBatches groups incoming message IDs by author. Read receipts
// are addressed to the sender, so a group chat with several authors
// needs one batch each; direct chats fall back to the chat JID.
func receiptBatches(chat types.JID, msgs []client.Message) map[types.JID][]types.MessageID {
	bySender := make(map[types.JID][]types.MessageID)
	for _, m := range msgs {
		if m.FromMe {
			continue
		}
		sender := chat
		if m.AuthorID != "" {
			if p, err := types.ParseJID(m.AuthorID); err == nil {
				sender = p
			}
		}
		bySender[sender] = append(bySender[sender], m.ID)
	}
	return bySender
}

func (a *Adapter) Search(_ context.Context, query, chatID string, limit int) ([]client.Message, error) {
	if chatID != "" {
		jid, err := parseJID(chatID)
		if err != nil {
			return nil, err
		}
		chatID = jid.String()
	}
	return a.archive.Search(query, chatID, limit), nil
}

func (a *Adapter) GroupInfo(ctx context.Context, chatID string) (*client.Group, error) {
	jid, err := parseJID(chatID)
	if err != nil {
		return nil, err
	}
	info, err := a.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fault.Wrap(fault.UpstreamFailure, err, "get group info")
	}

	meta, _ := a.archive.Chat(jid.String())
	return &client.Group{
		ID:           jid.String(),
		Name:         info.GroupName.Name,
		Description:  info.GroupTopic.Topic,
		OwnerID:      info.OwnerJID.ToNonAD().String(),
		CreatedAt:    info.GroupCreated.Unix(),
		Participants: groupParticipants(info),
		UnreadCount:  meta.UnreadCount,
		IsReadOnly:   info.GroupAnnounce.IsAnnounce,
	}, nil
}

func (a *Adapter) GroupInviteCode(ctx context.Context, chatID string) (string, error) {
	jid, err := parseJID(chatID)
	if err != nil {
		return "", err
	}
	link, err := a.client.GetGroupInviteLink(ctx, jid, false)
	if err != nil {
		return "", fault.Wrap(fault.UpstreamFailure, err, "get invite link")
	}
	return link, nil
}

func (a *Adapter) LeaveGroup(ctx context.Context, chatID string) error {
	jid, err := parseJID(chatID)
	if err != nil {
		return err
	}
	if err := a.client.LeaveGroup(ctx, jid); err != nil {
		return fault.Wrap(fault.UpstreamFailure, err, "leave group")
	}
	return nil
}

func (a *Adapter) UpdateParticipants(ctx context.Context, chatID string, participantIDs []string, change client.ParticipantChange) error {
	jid, err := parseJID(chatID)
	if err != nil {
		return err
	}
	jids := make([]types.JID, 0, len(participantIDs))
	for _, id := range participantIDs {
		pj, err := parseJID(id)
		if err != nil {
			return err
		}
		jids = append(jids, pj)
	}

	var action whatsmeow.ParticipantChange
	switch change {
	case client.ParticipantAdd:
		action = whatsmeow.ParticipantChangeAdd
	case client.ParticipantRemove:
		action = whatsmeow.ParticipantChangeRemove
	case client.ParticipantPromote:
		action = whatsmeow.ParticipantChangePromote
	case client.ParticipantDemote:
		action = whatsmeow.ParticipantChangeDemote
	default:
		return fault.New(fault.InvalidInput, "unknown participant change %q", change)
	}

	if _, err := a.client.UpdateGroupParticipants(ctx, jid, jids, action); err != nil {
		return fault.Wrap(fault.UpstreamFailure, err, "update participants")
	}
	return nil
}

func (a *Adapter) SetGroupSubject(ctx context.Context, chatID, subject string) error {
	jid, err := parseJID(chatID)
	if err != nil {
		return err
	}
	if err := a.client.SetGroupName(ctx, jid, subject); err != nil {
		return fault.Wrap(fault.UpstreamFailure, err, "set group subject")
	}
	return nil
}

func (a *Adapter) SetGroupDescription(ctx context.Context, chatID, description string) error {
	jid, err := parseJID(chatID)
	if err != nil {
		return err
	}
	if err := a.client.SetGroupTopic(ctx, jid, "", "", description); err != nil {
		return fault.Wrap(fault.UpstreamFailure, err, "set group description")
	}
	return nil
}
