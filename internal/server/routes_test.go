package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	adactor "github.com/berfenger/yeelightpro2mqtt/internal/adapter/actor"
	coreactor "github.com/berfenger/yeelightpro2mqtt/internal/core/actor"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/metrics"
	"github.com/berfenger/yeelightpro2mqtt/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *eventstream.EventStream, func()) {
	cfg := util.LoadTestConfig()
	logger := zap.NewNop()
	as := actor.NewActorSystem()
	es := &eventstream.EventStream{}
	m := metrics.New()
	props := actor.PropsFromProducer(func() actor.Actor {
		return coreactor.NewMasterOfPuppetsActor(cfg, nil, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, es, m, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	s := &Server{
		rootContext: as.Root,
		masterActor: pid,
		metrics:     m,
		hub:         NewHub(es, logger),
		logger:      logger,
	}
	return s, es, func() {
		s.hub.Close()
		as.Shutdown()
	}
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, req)
	return rec
}

func TestRoutesDevices(t *testing.T) {

	assert := assert.New(t)

	s, _, stop := newTestServer(t)
	defer stop()

	rec := serve(s, http.MethodGet, "/healthcheck", "")
	assert.Equal(http.StatusOK, rec.Code)

	rec = serve(s, http.MethodGet, "/api/devices", "")
	assert.Equal(http.StatusOK, rec.Code)
	var devices []domain.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &devices))
	assert.Len(devices, 2)

	rec = serve(s, http.MethodGet, "/api/devices/living_room", "")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), `"curtain"`)

	rec = serve(s, http.MethodGet, "/api/devices/garage", "")
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestRoutesEntityCommand(t *testing.T) {

	assert := assert.New(t)

	s, _, stop := newTestServer(t)
	defer stop()

	rec := serve(s, http.MethodPost, "/api/devices/living_room/entities/ceiling_fan/commands", `{"command":"set_percentage","value":50}`)
	assert.Equal(http.StatusOK, rec.Code)
	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal("ceiling_fan", snapshot["attr"])

	rec = serve(s, http.MethodPost, "/api/devices/living_room/entities/ceiling_fan/commands", `{"command":"fly"}`)
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = serve(s, http.MethodPost, "/api/devices/living_room/entities/lamp/commands", `{"command":"turn_on"}`)
	assert.Equal(http.StatusNotFound, rec.Code)

	rec = serve(s, http.MethodPost, "/api/devices/living_room/entities/curtain/commands", `{"command":"set_position","value":"abc"}`)
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = serve(s, http.MethodGet, "/metrics", "")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), "yeelightpro_commands_total")
}

func TestWebSocketRelaysEvents(t *testing.T) {

	assert := assert.New(t)

	s, es, stop := newTestServer(t)
	defer stop()

	ts := httptest.NewServer(s.RegisterRoutes())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	es.Publish(domain.EntityStateEvent{
		DeviceEventMixIn: domain.DeviceEventMixIn{DeviceId: "living_room"},
		Snapshot:         domain.EntitySnapshot{DeviceId: "living_room", Attr: "curtain", Kind: domain.KindCover},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(WS_TYPE_EVENT, msg.Type)
	assert.Equal(WS_CHANNEL_ENTITY_STATE, msg.Channel)
}
