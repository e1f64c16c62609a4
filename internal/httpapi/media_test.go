package httpapi

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wabridge/wabridge/internal/client"
)

func TestSendMedia(t *testing.T) {
	e := newEnv(t, true)
	payload := base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes"))

	var got map[string]bool
	rec := e.do(t, http.MethodPost, "/api/chats/111@s.whatsapp.net/media",
		`{"data":"`+payload+`","mimetype":"image/jpeg","filename":"pic.jpg","caption":"look"}`, &got)
	if rec.Code != http.StatusOK || !got["success"] {
		t.Fatalf("send media = %d %v", rec.Code, got)
	}

	if len(e.fake.SentMedia) != 1 {
		t.Fatalf("recorded %d media sends, want 1", len(e.fake.SentMedia))
	}
	sent := e.fake.SentMedia[0]
	if string(sent.Media.Data) != "fake-jpeg-bytes" {
		t.Errorf("data = %q", sent.Media.Data)
	}
	if sent.Media.Mimetype != "image/jpeg" || sent.Media.Filename != "pic.jpg" || sent.Caption != "look" {
		t.Errorf("sent = %+v", sent)
	}
}

func TestSendMediaAcceptsDataURL(t *testing.T) {
	e := newEnv(t, true)
	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))

	e.do(t, http.MethodPost, "/api/chats/111@s.whatsapp.net/media",
		`{"data":"`+payload+`","mimetype":"image/png"}`, nil)
	if len(e.fake.SentMedia) != 1 || string(e.fake.SentMedia[0].Media.Data) != "png-bytes" {
		t.Errorf("sends = %+v", e.fake.SentMedia)
	}
}

func TestSendMediaValidation(t *testing.T) {
	e := newEnv(t, true)

	cases := []string{
		`{"mimetype":"image/jpeg"}`,
		`{"data":"aGk="}`,
		`{"data":"!!not-base64!!","mimetype":"image/jpeg"}`,
	}
	for _, body := range cases {
		rec := e.do(t, http.MethodPost, "/api/chats/111@s.whatsapp.net/media", body, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s = %d, want 400", body, rec.Code)
		}
	}
}

func TestSendMediaFromURL(t *testing.T) {
	e := newEnv(t, true)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG\r\n\x1a\nrest"))
	}))
	defer upstream.Close()

	var got map[string]bool
	rec := e.do(t, http.MethodPost, "/api/chats/111@s.whatsapp.net/media-url",
		`{"url":"`+upstream.URL+`/shot.png","caption":"from web"}`, &got)
	if rec.Code != http.StatusOK || !got["success"] {
		t.Fatalf("media-url = %d %v (body %s)", rec.Code, got, rec.Body.String())
	}

	if len(e.fake.SentMedia) != 1 {
		t.Fatalf("recorded %d media sends, want 1", len(e.fake.SentMedia))
	}
	sent := e.fake.SentMedia[0]
	if sent.Media.Mimetype != "image/png" || sent.Media.Filename != "shot.png" || sent.Caption != "from web" {
		t.Errorf("sent = %+v", sent)
	}
}

func TestSendMediaFromURLSniffsType(t *testing.T) {
	e := newEnv(t, true)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("\x89PNG\r\n\x1a\n" + "0000IHDR"))
	}))
	defer upstream.Close()

	e.do(t, http.MethodPost, "/api/chats/111@s.whatsapp.net/media-url",
		`{"url":"`+upstream.URL+`"}`, nil)
	if len(e.fake.SentMedia) != 1 {
		t.Fatalf("recorded %d media sends, want 1", len(e.fake.SentMedia))
	}
	if got := e.fake.SentMedia[0].Media.Mimetype; got != "image/png" {
		t.Errorf("sniffed mimetype = %q, want image/png", got)
	}
}

func TestSendMediaFromURLUpstreamError(t *testing.T) {
	e := newEnv(t, true)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	rec := e.do(t, http.MethodPost, "/api/chats/111@s.whatsapp.net/media-url",
		`{"url":"`+upstream.URL+`"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("upstream 404 = %d, want 500", rec.Code)
	}
	if len(e.fake.SentMedia) != 0 {
		t.Errorf("media sent despite fetch failure: %+v", e.fake.SentMedia)
	}
}

func TestSendMediaFromURLRequiresURL(t *testing.T) {
	e := newEnv(t, true)

	rec := e.do(t, http.MethodPost, "/api/chats/111@s.whatsapp.net/media-url", `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing url = %d, want 400", rec.Code)
	}
}

func TestDownloadMedia(t *testing.T) {
	e := newEnv(t, true)
	chatID := "111@s.whatsapp.net"
	e.fake.MessagesData[chatID] = []client.Message{
		{ID: "m1", ChatID: chatID, Timestamp: 1, Kind: "image", HasMedia: true},
		{ID: "m2", ChatID: chatID, Timestamp: 2, Kind: "chat", Body: "plain"},
	}
	e.fake.MediaData["m1"] = client.Media{
		Data:     []byte("jpeg-bytes"),
		Mimetype: "image/jpeg",
		Filename: "photo.jpg",
	}

	var got struct {
		Mimetype string  `json:"mimetype"`
		Data     string  `json:"data"`
		Filename *string `json:"filename"`
	}
	rec := e.do(t, http.MethodGet, "/api/media/"+chatID+"/m1", "", &got)
	if rec.Code != http.StatusOK {
		t.Fatalf("media = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	want := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	if got.Data != want {
		t.Errorf("data = %q, want %q", got.Data, want)
	}
	if got.Mimetype != "image/jpeg" || got.Filename == nil || *got.Filename != "photo.jpg" {
		t.Errorf("metadata = %+v", got)
	}
}

func TestDownloadMediaMessageNotFound(t *testing.T) {
	e := newEnv(t, true)

	rec := e.do(t, http.MethodGet, "/api/media/111@s.whatsapp.net/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing message = %d, want 404", rec.Code)
	}
}

func TestDownloadMediaMessageWithoutMedia(t *testing.T) {
	e := newEnv(t, true)
	chatID := "111@s.whatsapp.net"
	e.fake.MessagesData[chatID] = []client.Message{
		{ID: "m2", ChatID: chatID, Timestamp: 2, Kind: "chat", Body: "plain"},
	}

	rec := e.do(t, http.MethodGet, "/api/media/"+chatID+"/m2", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("text message media = %d, want 400", rec.Code)
	}
}
