package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"PoscoMonitorAPI/internal/config"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/telegram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	chatID int64
	text   string
	markup *telegram.InlineKeyboardMarkup
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sentMessage
	edits    []sentMessage
	answered []string
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, markup: markup})
	return &telegram.Message{MessageID: int64(len(f.sent)), Chat: telegram.Chat{ID: chatID}}, nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, chatID, _ int64, text string, markup *telegram.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentMessage{chatID: chatID, text: text, markup: markup})
	return nil
}

func (f *fakeMessenger) AnswerCallbackQuery(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeMessenger) GetUpdates(context.Context, int64, int) ([]telegram.Update, error) {
	return nil, nil
}

func (f *fakeMessenger) lastEdit() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return ""
	}
	return f.edits[len(f.edits)-1].text
}

type apiCall struct {
	method string
	path   string
	query  url.Values
	body   map[string]string
}

// fakeAPI stands in for the monitor API.
type fakeAPI struct {
	mu        sync.Mutex
	alerts    []models.StoredAlert
	equipment []models.Equipment
	failPuts  bool
	failGets  bool
	calls     []apiCall
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := apiCall{method: r.Method, path: r.URL.Path, query: r.URL.Query()}
	if r.Method == http.MethodPut {
		json.NewDecoder(r.Body).Decode(&call.body)
	}
	f.calls = append(f.calls, call)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && f.failGets:
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"detail": "db down"})
	case r.Method == http.MethodGet && r.URL.Path == "/alerts":
		json.NewEncoder(w).Encode(f.alerts)
	case r.Method == http.MethodGet && r.URL.Path == "/equipment":
		json.NewEncoder(w).Encode(f.equipment)
	case r.Method == http.MethodPut && f.failPuts:
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "alert not found"})
	case r.Method == http.MethodPut:
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeAPI) puts() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.method == http.MethodPut {
			out = append(out, c)
		}
	}
	return out
}

var botStart = time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)

type harness struct {
	bot  *Bot
	tg   *fakeMessenger
	api  *fakeAPI
	subs *SubscriberStore
	now  time.Time
}

func newHarness(t *testing.T, chats ...int64) *harness {
	t.Helper()

	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	subs, err := LoadSubscribers(filepath.Join(t.TempDir(), "subscribers.json"))
	require.NoError(t, err)
	for _, c := range chats {
		_, err := subs.Add(c)
		require.NoError(t, err)
	}

	cfg := &config.BotConfig{
		APIBaseURL:   srv.URL,
		APITimeout:   2 * time.Second,
		PollInterval: 5 * time.Second,
		ErrorBackoff: 10 * time.Second,
		FetchLimit:   10,
		ProcessedTTL: time.Hour,
		Alerting:     config.DefaultBotAlerting(),
	}

	h := &harness{tg: &fakeMessenger{}, api: api, subs: subs, now: botStart}
	h.bot = New(cfg, h.tg, NewAPIClient(srv.URL, cfg.APITimeout), subs, logger.NewNop())
	h.bot.now = func() time.Time { return h.now }
	h.bot.startedAt = botStart
	return h
}

func storedAlert(ts string, value float64, sev models.Severity) models.StoredAlert {
	return models.StoredAlert{
		Equipment:  "press_001",
		SensorType: "temperature",
		Value:      value,
		Threshold:  85,
		Severity:   sev,
		Timestamp:  ts,
	}
}

func callback(data string, chatID int64) telegram.Update {
	return telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:      "cb-1",
		Data:    data,
		Message: &telegram.Message{MessageID: 55, Chat: telegram.Chat{ID: chatID}},
	}}
}

func command(text string, chatID int64) telegram.Update {
	return telegram.Update{Message: &telegram.Message{Text: text, Chat: telegram.Chat{ID: chatID}}}
}

func TestPollPushesNewAlertsOnce(t *testing.T) {
	h := newHarness(t, 100, 200)
	h.api.alerts = []models.StoredAlert{
		storedAlert("2024-01-15T14:31:00", 87, models.SeverityError),
		storedAlert("2024-01-15T13:00:00", 90, models.SeverityError),
	}
	h.now = botStart.Add(time.Minute)

	require.NoError(t, h.bot.Poll(context.Background()))
	require.Len(t, h.tg.sent, 2)

	msg := h.tg.sent[0]
	assert.Equal(t, int64(100), msg.chatID)
	assert.Contains(t, msg.text, "press_001")
	require.NotNil(t, msg.markup)
	assert.Equal(t, "interlock_alert_1", msg.markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "bypass_alert_1", msg.markup.InlineKeyboard[0][1].CallbackData)

	require.NoError(t, h.bot.Poll(context.Background()))
	assert.Len(t, h.tg.sent, 2)
	assert.Equal(t, 1, h.bot.mirror.Len())
}

func TestPollAppliesCooldown(t *testing.T) {
	h := newHarness(t, 100)
	h.api.alerts = []models.StoredAlert{storedAlert("2024-01-15T14:30:10", 87, models.SeverityError)}
	require.NoError(t, h.bot.Poll(context.Background()))

	h.now = botStart.Add(time.Minute)
	h.api.alerts = []models.StoredAlert{storedAlert("2024-01-15T14:31:00", 120, models.SeverityError)}
	require.NoError(t, h.bot.Poll(context.Background()))
	assert.Len(t, h.tg.sent, 1, "error cooldown is five minutes")

	h.now = botStart.Add(6 * time.Minute)
	h.api.alerts = []models.StoredAlert{storedAlert("2024-01-15T14:36:00", 130, models.SeverityError)}
	require.NoError(t, h.bot.Poll(context.Background()))
	require.Len(t, h.tg.sent, 2)
	assert.Contains(t, h.tg.sent[1].text, "재발생")
}

func TestInfoAlertsOnlyGetDetailButton(t *testing.T) {
	h := newHarness(t, 100)
	h.api.alerts = []models.StoredAlert{storedAlert("2024-01-15T14:30:10", 87, models.SeverityInfo)}
	require.NoError(t, h.bot.Poll(context.Background()))

	require.Len(t, h.tg.sent, 1)
	kb := h.tg.sent[0].markup.InlineKeyboard
	require.Len(t, kb, 1)
	assert.Equal(t, "status_alert_1", kb[0][0].CallbackData)
}

func TestPollReportsAPIErrors(t *testing.T) {
	h := newHarness(t, 100)
	h.api.failGets = true

	err := h.bot.Poll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestInterlockCallback(t *testing.T) {
	h := newHarness(t, 100, 200)
	h.api.alerts = []models.StoredAlert{storedAlert("2024-01-15T14:30:10", 87, models.SeverityError)}
	require.NoError(t, h.bot.Poll(context.Background()))

	h.bot.HandleUpdate(context.Background(), callback("interlock_alert_1", 100))

	puts := h.api.puts()
	require.Len(t, puts, 1, "the server stops the equipment itself")
	assert.Equal(t, "/alerts/status", puts[0].path)
	assert.Equal(t, map[string]string{
		"equipment":   "press_001",
		"sensor_type": "temperature",
		"timestamp":   "2024-01-15T14:30:10",
		"status":      string(models.StatusInterlock),
		"assigned_to": "chat_100",
		"action_type": "interlock",
	}, puts[0].body)

	assert.Equal(t, []string{"cb-1"}, h.tg.answered)
	assert.Contains(t, h.tg.lastEdit(), "인터락 실행 완료")

	last := h.tg.sent[len(h.tg.sent)-1]
	assert.Equal(t, int64(200), last.chatID)
	assert.Contains(t, last.text, "인터락 실행 알림")

	a, ok := h.bot.mirror.Get("alert_1")
	require.True(t, ok)
	assert.Equal(t, models.StatusInterlock, a.Status)
	assert.Equal(t, "chat_100", a.AssignedTo)
}

func TestStatusUpdateKeepsUnderscoredEquipment(t *testing.T) {
	h := newHarness(t, 100)
	a := storedAlert("2024-01-15T14:30:10", 87, models.SeverityWarning)
	a.Equipment = "line_a_press_01"
	a.SensorType = "oil_temp"
	h.api.alerts = []models.StoredAlert{a}
	require.NoError(t, h.bot.Poll(context.Background()))

	h.bot.HandleUpdate(context.Background(), callback("bypass_alert_1", 100))

	puts := h.api.puts()
	require.Len(t, puts, 1)
	assert.Equal(t, "/alerts/status", puts[0].path)
	assert.Empty(t, puts[0].query)
	assert.Equal(t, "line_a_press_01", puts[0].body["equipment"])
	assert.Equal(t, "oil_temp", puts[0].body["sensor_type"])
	assert.Equal(t, "2024-01-15T14:30:10", puts[0].body["timestamp"])
	assert.Equal(t, string(models.StatusBypass), puts[0].body["status"])
	assert.Equal(t, "bypass", puts[0].body["action_type"])
}

func TestInterlockFailureLeavesAlertInProgress(t *testing.T) {
	h := newHarness(t, 100)
	h.api.alerts = []models.StoredAlert{storedAlert("2024-01-15T14:30:10", 87, models.SeverityError)}
	require.NoError(t, h.bot.Poll(context.Background()))
	h.api.failPuts = true

	h.bot.HandleUpdate(context.Background(), callback("interlock_alert_1", 100))

	assert.Contains(t, h.tg.lastEdit(), "인터락 처리 중 오류 발생")
	a, _ := h.bot.mirror.Get("alert_1")
	assert.Equal(t, models.StatusInProgress, a.Status)
}

func TestBypassSurvivesAPIFailure(t *testing.T) {
	h := newHarness(t, 100)
	h.api.alerts = []models.StoredAlert{storedAlert("2024-01-15T14:30:10", 87, models.SeverityWarning)}
	require.NoError(t, h.bot.Poll(context.Background()))
	h.api.failPuts = true

	h.bot.HandleUpdate(context.Background(), callback("bypass_alert_1", 100))

	assert.Contains(t, h.tg.lastEdit(), "바이패스 적용 완료")
	a, _ := h.bot.mirror.Get("alert_1")
	assert.Equal(t, models.StatusBypass, a.Status)
}

func TestCallbackForUnknownAlert(t *testing.T) {
	h := newHarness(t, 100)

	h.bot.HandleUpdate(context.Background(), callback("status_alert_9", 100))
	assert.Equal(t, notFoundText, h.tg.lastEdit())
	assert.Empty(t, h.api.puts())
}

func TestDetailShowsHistory(t *testing.T) {
	h := newHarness(t, 100)
	h.api.alerts = []models.StoredAlert{storedAlert("2024-01-15T14:30:10", 87, models.SeverityError)}
	require.NoError(t, h.bot.Poll(context.Background()))

	h.bot.HandleUpdate(context.Background(), callback("status_alert_1", 100))

	text := h.tg.lastEdit()
	assert.Contains(t, text, "알림 상세 정보")
	assert.Contains(t, text, "총 발생 횟수: 1회")
	assert.Contains(t, text, "미지정")
}

func TestSubscribeCommands(t *testing.T) {
	h := newHarness(t)

	h.bot.HandleUpdate(context.Background(), command("/subscribe", 300))
	assert.True(t, h.subs.Contains(300))
	require.Len(t, h.tg.sent, 1)
	assert.Contains(t, h.tg.sent[0].text, "5분~30분")

	reloaded, err := LoadSubscribers(h.subs.path)
	require.NoError(t, err)
	assert.Equal(t, []int64{300}, reloaded.List())

	h.bot.HandleUpdate(context.Background(), command("/unsubscribe@posco_bot", 300))
	assert.False(t, h.subs.Contains(300))
}

func TestStatusAndHelpCommands(t *testing.T) {
	h := newHarness(t)
	h.api.equipment = []models.Equipment{
		{ID: "press_001", Name: "자동차부품 프레스 1호기", Status: models.EquipmentStopped, Efficiency: 0, LastMaintenance: "2024-01-10"},
		{ID: "weld_001", Name: "용접기 1호기", Status: models.EquipmentNormal, Efficiency: 95.5, LastMaintenance: "2024-01-12"},
	}

	h.bot.HandleUpdate(context.Background(), command("/status", 100))
	h.bot.HandleUpdate(context.Background(), command("/help", 100))
	h.bot.HandleUpdate(context.Background(), command("/alerts", 100))
	h.bot.HandleUpdate(context.Background(), command("hello", 100))

	require.Len(t, h.tg.sent, 3)
	assert.Contains(t, h.tg.sent[0].text, "🔴 <b>자동차부품 프레스 1호기</b>")
	assert.Contains(t, h.tg.sent[0].text, "95.5% (높음)")
	assert.Contains(t, h.tg.sent[1].text, "/unsubscribe")
	assert.Contains(t, h.tg.sent[2].text, "현재 활성 알림이 없습니다")
}

func TestStatsCommand(t *testing.T) {
	h := newHarness(t, 100)
	h.api.alerts = []models.StoredAlert{
		storedAlert("2024-01-15T14:30:10", 87, models.SeverityError),
		{Equipment: "weld_001", SensorType: "voltage", Value: 250, Threshold: 240, Severity: models.SeverityWarning, Timestamp: "2024-01-15T14:30:20"},
	}
	require.NoError(t, h.bot.Poll(context.Background()))

	h.bot.HandleUpdate(context.Background(), command("/stats", 100))
	text := h.tg.sent[len(h.tg.sent)-1].text
	assert.Contains(t, text, "고유 알림 타입: 2개")
	assert.Contains(t, text, "Error: 1건")
	assert.Contains(t, text, "Warning: 1건")
	assert.Contains(t, text, "weld_001")
}

func TestSubscriberStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.json")

	s, err := LoadSubscribers(path)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	added, err := s.Add(7)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.Add(7)
	require.NoError(t, err)
	assert.False(t, added)
	_, err = s.Add(3)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var ids []int64
	require.NoError(t, json.Unmarshal(data, &ids))
	assert.Equal(t, []int64{3, 7}, ids)

	removed, err := s.Remove(3)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []int64{7}, s.List())

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))
	_, err = LoadSubscribers(path)
	assert.Error(t, err)
}

func TestMirrorCapsAndActive(t *testing.T) {
	m := NewMirror(2)
	ev := models.AlertEvent{Equipment: "press_001", SensorType: "temperature", Severity: models.SeverityError}

	m.Add(ev, "a", botStart)
	m.Add(ev, "b", botStart)
	third := m.Add(ev, "c", botStart)

	assert.Equal(t, "alert_3", third.ID)
	assert.Equal(t, 2, m.Len())
	_, ok := m.Get("alert_1")
	assert.False(t, ok)

	m.SetStatus("alert_2", models.StatusCompleted, "kim")
	active := m.Active(10)
	require.Len(t, active, 1)
	assert.Equal(t, "alert_3", active[0].ID)
	assert.True(t, strings.HasPrefix(active[0].ID, "alert_"))
}
