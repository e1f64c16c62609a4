package httpapi

import (
	"encoding/base64"
	"net/http"

	"github.com/skip2/go-qrcode"
	"github.com/wabridge/wabridge/internal/fault"
	"go.uber.org/zap"
)

// qrImageSize is the side length in pixels of the rendered QR PNG.
const qrImageSize = 256

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.Snapshot())
}

// handleQR renders the current QR challenge as a PNG data URL so a
// browser can drop it straight into an img tag.
func (s *Server) handleQR(w http.ResponseWriter, _ *http.Request) {
	payload, ok := s.manager.QR()
	if !ok {
		s.writeError(w, fault.New(fault.NotFound, "no QR available"))
		return
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, qrImageSize)
	if err != nil {
		s.writeError(w, fault.Wrap(fault.UpstreamFailure, err, "render QR"))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"qr": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

func (s *Server) handleRequestPairingCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.PhoneNumber == "" {
		s.writeError(w, fault.New(fault.InvalidInput, "phoneNumber required"))
		return
	}

	code, err := s.manager.RequestPairingCode(r.Context(), body.PhoneNumber)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("pairing code served", zap.Int("length", len(code)))
	s.writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

func (s *Server) handlePairingCode(w http.ResponseWriter, _ *http.Request) {
	code, ok := s.manager.PairingCode()
	if !ok {
		s.writeError(w, fault.New(fault.NotFound, "no pairing code available"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"code": code})
}
