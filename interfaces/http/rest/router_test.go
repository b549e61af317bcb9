package rest_test

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ping/application/fanout"
	"ping/application/services"
	"ping/domain/events"
	"ping/infrastructure/config"
	infraevents "ping/infrastructure/events"
	"ping/infrastructure/persistence/memory"
	"ping/interfaces/http/rest"
	"ping/interfaces/http/rest/handlers"
	"ping/interfaces/ws"
	"ping/pkg/auth"
	"ping/pkg/observability"
)

// testApp wires the whole stack over the in-memory store and in-process
// bus, the same shape the container builds in development mode.
type testApp struct {
	router http.Handler
	store  *memory.Store
	bus    *infraevents.LocalBus
	tokens *auth.TokenService
	hub    *ws.Hub
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := &config.Config{
		ServerAddress: ":0",
		Environment:   "development",
		JWTIssuer:     "ping-backend",
		JWTTTL:        time.Hour,
		IPRateLimit:   10000,
		UserRateLimit: 10000,
		UploadsDir:    t.TempDir(),
	}

	secret := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	tokens, err := auth.NewTokenService(secret, cfg.JWTIssuer, cfg.JWTTTL)
	require.NoError(t, err)

	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	store := memory.NewStore()

	hub := ws.NewHub(logger, metrics)
	go hub.Run()
	t.Cleanup(hub.Stop)

	engine := fanout.NewEngine(store, store, hub, logger, metrics)
	consumer := fanout.NewConsumer(engine, logger, metrics)
	bus := infraevents.NewLocalBus()
	for _, topic := range events.Topics() {
		bus.Subscribe(topic, consumer.Dispatch)
	}
	producer := services.NewEventProducer(bus, logger, metrics)

	router := rest.NewRouter(cfg, tokens, registry, rest.Handlers{
		Auth:          handlers.NewAuthHandler(store, tokens, logger),
		Friends:       handlers.NewFriendsHandler(store, store, producer, logger),
		Posts:         handlers.NewPostsHandler(store, store, producer, logger),
		Notifications: handlers.NewNotificationsHandler(store, logger),
		Admin:         handlers.NewAdminHandler(store, logger),
		WebSocket:     ws.NewServer(hub, tokens, nil, logger),
	}, logger)

	return &testApp{router: router, store: store, bus: bus, tokens: tokens, hub: hub}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) register(t *testing.T, username string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthIsPublic(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "alice")

	rec := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice",
		"password": "correct-horse",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Wrong password and unknown user fail identically.
	for _, creds := range []map[string]string{
		{"username": "alice", "password": "wrong-password"},
		{"username": "nobody", "password": "correct-horse"},
	} {
		rec = app.do(t, http.MethodPost, "/api/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeJSON[map[string]any](t, rec)
		assert.Equal(t, "invalid credentials", body["message"])
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "alice")
	rec := app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"password": "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/api/me", "/api/friends/", "/api/notifications/"} {
		rec := app.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestMe(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "alice")

	rec := app.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, "alice", body["username"])
}

func TestFriendRequestLifecycle(t *testing.T) {
	app := newTestApp(t)
	aliceToken := app.register(t, "alice")
	bobToken := app.register(t, "bob")

	// Alice sends, the pipeline notifies bob.
	rec := app.do(t, http.MethodPost, "/api/friends/requests", aliceToken, map[string]string{"receiver": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	edge := decodeJSON[map[string]any](t, rec)
	edgeID := edge["id"].(string)
	assert.Equal(t, "PENDING", edge["state"])
	app.bus.Wait()

	rec = app.do(t, http.MethodGet, "/api/notifications/", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bobNotifications := decodeJSON[[]map[string]any](t, rec)
	require.Len(t, bobNotifications, 1)
	assert.Equal(t, "New friend request from: alice", bobNotifications[0]["text"])

	// A second request for the same pair conflicts, in either direction.
	rec = app.do(t, http.MethodPost, "/api/friends/requests", bobToken, map[string]string{"receiver": "alice"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Only bob may respond.
	rec = app.do(t, http.MethodPost, "/api/friends/requests/"+edgeID+"/respond", aliceToken, map[string]bool{"accept": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/friends/requests/"+edgeID+"/respond", bobToken, map[string]bool{"accept": true})
	require.Equal(t, http.StatusOK, rec.Code)
	accepted := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, "ACCEPTED", accepted["state"])

	// Both sides now list the friendship.
	for _, token := range []string{aliceToken, bobToken} {
		rec = app.do(t, http.MethodGet, "/api/friends/", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeJSON[[]map[string]any](t, rec), 1)
	}
}

func TestDeclineDeletesEdge(t *testing.T) {
	app := newTestApp(t)
	aliceToken := app.register(t, "alice")
	bobToken := app.register(t, "bob")

	rec := app.do(t, http.MethodPost, "/api/friends/requests", aliceToken, map[string]string{"receiver": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code)
	edgeID := decodeJSON[map[string]any](t, rec)["id"].(string)

	rec = app.do(t, http.MethodPost, "/api/friends/requests/"+edgeID+"/respond", bobToken, map[string]bool{"accept": false})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The pair is free to try again.
	rec = app.do(t, http.MethodPost, "/api/friends/requests", bobToken, map[string]string{"receiver": "alice"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPostFansOutToFriends(t *testing.T) {
	app := newTestApp(t)
	aliceToken := app.register(t, "alice")
	bobToken := app.register(t, "bob")
	carolToken := app.register(t, "carol")
	daveToken := app.register(t, "dave")

	befriend := func(fromToken, toUser, toToken string) {
		rec := app.do(t, http.MethodPost, "/api/friends/requests", fromToken, map[string]string{"receiver": toUser})
		require.Equal(t, http.StatusCreated, rec.Code)
		edgeID := decodeJSON[map[string]any](t, rec)["id"].(string)
		rec = app.do(t, http.MethodPost, "/api/friends/requests/"+edgeID+"/respond", toToken, map[string]bool{"accept": true})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	befriend(aliceToken, "bob", bobToken)
	befriend(aliceToken, "carol", carolToken)
	// Dave's request stays pending.
	rec := app.do(t, http.MethodPost, "/api/friends/requests", aliceToken, map[string]string{"receiver": "dave"})
	require.Equal(t, http.StatusCreated, rec.Code)
	app.bus.Wait()

	rec = app.do(t, http.MethodPost, "/api/posts/", aliceToken, map[string]string{"description": "sunset"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	app.bus.Wait()

	count := func(token string, text string) int {
		rec := app.do(t, http.MethodGet, "/api/notifications/", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		n := 0
		for _, record := range decodeJSON[[]map[string]any](t, rec) {
			if record["text"] == text {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, count(bobToken, "New post arrived from:alice"))
	assert.Equal(t, 1, count(carolToken, "New post arrived from:alice"))
	assert.Equal(t, 0, count(daveToken, "New post arrived from:alice"))
	assert.Equal(t, 0, count(aliceToken, "New post arrived from:alice"))
}

func TestCommentNotifiesPostOwner(t *testing.T) {
	app := newTestApp(t)
	aliceToken := app.register(t, "alice")
	bobToken := app.register(t, "bob")

	rec := app.do(t, http.MethodPost, "/api/posts/", aliceToken, map[string]string{"description": "pic"})
	require.Equal(t, http.StatusCreated, rec.Code)
	postID := decodeJSON[map[string]any](t, rec)["id"].(string)
	app.bus.Wait()

	rec = app.do(t, http.MethodPost, "/api/posts/"+postID+"/comments", bobToken, map[string]string{"text": "nice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	app.bus.Wait()

	rec = app.do(t, http.MethodGet, "/api/notifications/unread", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decodeJSON[[]map[string]any](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, "New comment arrived from:bob", records[0]["text"])
}

func TestNotificationOwnershipEnforced(t *testing.T) {
	app := newTestApp(t)
	aliceToken := app.register(t, "alice")
	bobToken := app.register(t, "bob")

	rec := app.do(t, http.MethodPost, "/api/friends/requests", aliceToken, map[string]string{"receiver": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code)
	app.bus.Wait()

	rec = app.do(t, http.MethodGet, "/api/notifications/", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decodeJSON[[]map[string]any](t, rec)
	require.Len(t, records, 1)
	id := records[0]["id"].(string)

	// Alice cannot read, mark or delete bob's record; it reads as missing.
	rec = app.do(t, http.MethodPatch, "/api/notifications/"+id+"/read", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = app.do(t, http.MethodDelete, "/api/notifications/"+id, aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodPatch, "/api/notifications/"+id+"/read", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeJSON[map[string]any](t, rec)["isRead"])

	rec = app.do(t, http.MethodGet, "/api/notifications/unread", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON[[]map[string]any](t, rec))

	rec = app.do(t, http.MethodDelete, "/api/notifications/"+id, bobToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// The upgrade must survive the full middleware chain, logging wrapper
// included, and the handshake plus a live push must work end to end.
func TestWebSocketThroughRouter(t *testing.T) {
	app := newTestApp(t)
	aliceToken := app.register(t, "alice")
	bobToken := app.register(t, "bob")

	server := httptest.NewServer(app.router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	connectFrame, err := json.Marshal(ws.Frame{
		Type:    ws.FrameConnect,
		Headers: map[string]string{"Authorization": "Bearer " + bobToken},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, connectFrame))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var connected ws.Frame
	require.NoError(t, json.Unmarshal(data, &connected))
	require.Equal(t, ws.FrameConnected, connected.Type)
	assert.Equal(t, "bob", connected.Headers["user"])

	require.Eventually(t, func() bool {
		return app.hub.ConnectionCount("bob") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Alice's friend request reaches bob's live connection.
	rec := app.do(t, http.MethodPost, "/api/friends/requests", aliceToken, map[string]string{"receiver": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code)
	app.bus.Wait()

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	var message ws.Frame
	require.NoError(t, json.Unmarshal(data, &message))
	assert.Equal(t, ws.FrameMessage, message.Type)
	assert.Equal(t, "/topic/notifications/bob", message.Destination)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(message.Payload, &payload))
	assert.Equal(t, "New friend request from: alice", payload["text"])
	assert.Equal(t, "FRIEND_REQUEST", payload["type"])
}

func TestAdminRouteRequiresAdminRole(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "alice")

	rec := app.do(t, http.MethodGet, "/api/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken, err := app.tokens.Issue(auth.Identity{Username: "alice", Roles: []auth.Role{auth.RoleUser, auth.RoleAdmin}})
	require.NoError(t, err)
	rec = app.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
