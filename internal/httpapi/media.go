package httpapi

import (
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/wabridge/wabridge/internal/client"
	"github.com/wabridge/wabridge/internal/fault"
	"go.uber.org/zap"
)

// maxMediaFetchBytes bounds how much a caller-supplied URL may hand us.
const maxMediaFetchBytes = 64 << 20

func (s *Server) handleSendMedia(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}
	chatID := normalizeChatID(r.PathValue("id"))

	var body struct {
		Data     string `json:"data"`
		Mimetype string `json:"mimetype"`
		Filename string `json:"filename"`
		Caption  string `json:"caption"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.Data == "" || body.Mimetype == "" {
		s.writeError(w, fault.New(fault.InvalidInput, "data and mimetype required"))
		return
	}

	data, err := base64.StdEncoding.DecodeString(stripDataURLPrefix(body.Data))
	if err != nil {
		s.writeError(w, fault.New(fault.InvalidInput, "invalid base64 data"))
		return
	}

	sendID := uuid.NewString()
	s.logger.Info("sending media",
		zap.String("sendId", sendID),
		zap.String("chat", chatID),
		zap.String("mimetype", body.Mimetype),
		zap.Int("bytes", len(data)))

	media := client.Media{Data: data, Mimetype: body.Mimetype, Filename: body.Filename}
	if err := sess.SendMedia(r.Context(), chatID, media, body.Caption); err != nil {
		s.logger.Warn("media send failed", zap.String("sendId", sendID), zap.Error(err))
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleSendMediaURL(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}
	chatID := normalizeChatID(r.PathValue("id"))

	var body struct {
		URL     string `json:"url"`
		Caption string `json:"caption"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.URL == "" {
		s.writeError(w, fault.New(fault.InvalidInput, "url required"))
		return
	}

	media, err := s.fetchMedia(body.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sendID := uuid.NewString()
	s.logger.Info("sending media from URL",
		zap.String("sendId", sendID),
		zap.String("chat", chatID),
		zap.String("mimetype", media.Mimetype),
		zap.Int("bytes", len(media.Data)))

	if err := sess.SendMedia(r.Context(), chatID, media, body.Caption); err != nil {
		s.logger.Warn("media send failed", zap.String("sendId", sendID), zap.Error(err))
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// fetchMedia downloads a URL and sniffs its content type when the
// response carries none worth trusting.
func (s *Server) fetchMedia(rawURL string) (client.Media, error) {
	resp, err := s.fetch.Get(rawURL)
	if err != nil {
		return client.Media{}, fault.Wrap(fault.UpstreamFailure, err, "fetch media")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return client.Media{}, fault.New(fault.UpstreamFailure, "fetch media: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaFetchBytes+1))
	if err != nil {
		return client.Media{}, fault.Wrap(fault.UpstreamFailure, err, "read media body")
	}
	if len(data) > maxMediaFetchBytes {
		return client.Media{}, fault.New(fault.InvalidInput, "media exceeds %d bytes", maxMediaFetchBytes)
	}

	mime, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	mime = strings.TrimSpace(mime)
	if mime == "" || mime == "application/octet-stream" {
		mime = mimetype.Detect(data).String()
	}

	return client.Media{Data: data, Mimetype: mime, Filename: filenameFromURL(rawURL)}, nil
}

func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// handleDownloadMedia returns a message's media payload as a data URL.
func (s *Server) handleDownloadMedia(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}
	chatID := normalizeChatID(r.PathValue("chatId"))
	msgID := r.PathValue("msgId")

	msg, err := sess.MessageByID(r.Context(), chatID, msgID)
	if err != nil {
		s.writeError(w, fault.Wrap(fault.NotFound, err, "message not found"))
		return
	}
	if !msg.HasMedia {
		s.writeError(w, fault.New(fault.InvalidInput, "message has no media"))
		return
	}

	media, err := sess.DownloadMedia(r.Context(), chatID, msgID)
	if err != nil {
		s.writeError(w, fault.Wrap(fault.NotFound, err, "media not available"))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"mimetype": media.Mimetype,
		"data":     "data:" + media.Mimetype + ";base64," + base64.StdEncoding.EncodeToString(media.Data),
		"filename": nullable(media.Filename),
	})
}

// stripDataURLPrefix drops a leading "data:<mime>;base64," so callers
// can send either form.
func stripDataURLPrefix(data string) string {
	if !strings.HasPrefix(data, "data:") {
		return data
	}
	if i := strings.Index(data, ";base64,"); i >= 0 {
		return data[i+len(";base64,"):]
	}
	return data
}
