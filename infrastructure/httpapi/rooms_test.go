package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"ember-chat/repositories"
	"ember-chat/runtime"
	"ember-chat/runtime/workers"
	"ember-chat/services"
)

var codePattern = regexp.MustCompile(`^[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{6}$`)

type apiFixture struct {
	server *httptest.Server
	rooms  *services.RoomService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	roomRepo := repositories.NewRoomRepository(db, log)
	msgRepo, err := repositories.NewMessageRepository(db, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = msgRepo.Close() })

	registry := runtime.NewRegistry(log)
	relay := runtime.NewRelay(msgRepo, registry, log)
	rooms := services.NewRoomService(roomRepo, registry, relay, services.NewCodeGenerator(roomRepo, log), log)
	chat := services.NewChatService(rooms, msgRepo, registry, relay, log)

	handler := New(log, rooms, chat, Options{
		AllowedOrigins:     []string{"http://client.test"},
		MaxCiphertextBytes: 16384,
		SessionBufferSize:  64,
	})
	server := httptest.NewServer(handler.SetupRouter())
	t.Cleanup(server.Close)

	return &apiFixture{server: server, rooms: rooms}
}

// sweep runs one expiry pass the way the background worker would.
func (f *apiFixture) sweep(t *testing.T) {
	t.Helper()
	workers.NewSweeperWorker(f.rooms, time.Minute, slog.Default()).Sweep(context.Background())
}

func (f *apiFixture) createRoom(t *testing.T, kind, expiry string) (int, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"kind": kind, "expiry": expiry})
	require.NoError(t, err)
	resp, err := http.Post(f.server.URL+"/rooms", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return decodeBody(t, resp)
}

func (f *apiFixture) checkRoom(t *testing.T, code string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("%s/rooms/%s", f.server.URL, code))
	require.NoError(t, err)
	return decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) (int, map[string]any) {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func Test_Create_Room_With_Preset_Expiry(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	before := time.Now().UTC()
	status, body := f.createRoom(t, "group", "1h")

	req.Equal(http.StatusCreated, status)
	req.Equal("group", body["kind"])
	req.Regexp(codePattern, body["code"])

	expiresAt, err := time.Parse(time.RFC3339, body["expiresAt"].(string))
	req.NoError(err)
	req.WithinDuration(before.Add(time.Hour), expiresAt, 5*time.Second)
}

func Test_Create_Room_With_Explicit_Instant(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	instant := time.Now().UTC().Add(45 * time.Minute).Truncate(time.Second)
	status, body := f.createRoom(t, "single", instant.Format(time.RFC3339))

	req.Equal(http.StatusCreated, status)
	req.Equal("single", body["kind"])
	expiresAt, err := time.Parse(time.RFC3339, body["expiresAt"].(string))
	req.NoError(err)
	req.True(instant.Equal(expiresAt))
}

func Test_Create_Room_Rejects_Bad_Requests(t *testing.T) {
	f := newAPIFixture(t)

	cases := map[string]struct {
		kind   string
		expiry string
	}{
		"unknown kind":        {"broadcast", "1h"},
		"missing kind":        {"", "1h"},
		"missing expiry":      {"group", ""},
		"unparseable expiry":  {"group", "soonish"},
		"expiry in the past":  {"group", time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)},
		"expiry past ceiling": {"group", time.Now().UTC().Add(31 * 24 * time.Hour).Format(time.RFC3339)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			status, body := f.createRoom(t, tc.kind, tc.expiry)
			require.Equal(t, http.StatusBadRequest, status)
			require.NotEmpty(t, body["error"])
		})
	}
}

func Test_Create_Room_Rejects_Malformed_Body(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	resp, err := http.Post(f.server.URL+"/rooms", "application/json", bytes.NewReader([]byte("{not json")))
	req.NoError(err)
	status, _ := decodeBody(t, resp)
	req.Equal(http.StatusBadRequest, status)
}

func Test_Check_Room_Distinguishes_Live_Missing_And_Expired(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	// A live room answers 200 with its details
	_, created := f.createRoom(t, "group", "10m")
	code := created["code"].(string)
	status, body := f.checkRoom(t, code)
	req.Equal(http.StatusOK, status)
	req.Equal(code, body["code"])

	// An unknown but well-formed code answers 404
	status, _ = f.checkRoom(t, "ZZZZZ9")
	req.Equal(http.StatusNotFound, status)

	// A malformed code answers 404 without reaching the store
	status, _ = f.checkRoom(t, "not-a-code")
	req.Equal(http.StatusNotFound, status)
}

func Test_Check_Expired_Room_Answers_Gone_Then_Not_Found(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	expiry := time.Now().UTC().Add(200 * time.Millisecond).Format(time.RFC3339Nano)
	status, created := f.createRoom(t, "group", expiry)
	req.Equal(http.StatusCreated, status)
	code := created["code"].(string)

	time.Sleep(300 * time.Millisecond)

	// The first check reports the expiry and reclaims the room
	status, _ = f.checkRoom(t, code)
	req.Equal(http.StatusGone, status)

	// The room is gone afterwards, indistinguishable from never existing
	status, _ = f.checkRoom(t, code)
	req.Equal(http.StatusNotFound, status)
}
