package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/ingamehud/internal/dependencies/mocks"
	"github.com/mcoot/ingamehud/internal/mainloop"
	"github.com/mcoot/ingamehud/internal/model"
	"github.com/mcoot/ingamehud/internal/services/router"
	"github.com/mcoot/ingamehud/internal/testutil"
)

type ControllerSuite struct {
	suite.Suite
	provider   *mocks.MockProvider
	router     *router.Router
	loop       *mainloop.Loop
	display    *mocks.MockDisplay
	clock      *mocks.MockClock
	logs       *testutil.RecordingHandler
	opts       Options
	controller *Controller
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.ctx = context.Background()
	s.provider = mocks.NewMockProvider("primary")
	s.loop = mainloop.New()
	s.display = mocks.NewMockDisplay()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	s.opts = Options{
		DefaultLanguage:      "en",
		SupportedLanguages:   []string{"en", "zh"},
		DisconnectTimeout:    200 * time.Millisecond,
		SaveAttempts:         3,
		RetryInterval:        time.Millisecond,
		RefreshEveryTicks:    2,
		CustomDataEveryTicks: 4,
	}
	s.build(s.provider)
}

func (s *ControllerSuite) build(provider *mocks.MockProvider) {
	var logger *slog.Logger
	logger, s.logs = testutil.NewRecordingLogger()

	s.router = router.New(router.Options{OpTimeout: 50 * time.Millisecond, DefaultLanguage: "en"}, logger, provider)
	s.router.Initialize(s.ctx)
	s.controller = New(s.router, s.loop, s.display, s.clock, s.opts, logger)
}

// drive runs frames until done is closed, then one more frame for any
// follow-up work
func (s *ControllerSuite) drive(done <-chan struct{}) {
	s.T().Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.loop.RunPending()
		select {
		case <-done:
			s.loop.RunPending()
			return
		default:
		}
		if time.Now().After(deadline) {
			s.FailNow("timed out waiting for task")
		}
		time.Sleep(time.Millisecond)
	}
}

// until runs frames until cond holds
func (s *ControllerSuite) until(cond func() bool) {
	s.T().Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			s.FailNow("condition not met")
		}
		s.loop.RunPending()
		time.Sleep(time.Millisecond)
	}
}

func (s *ControllerSuite) connect(id model.PlayerID) model.PlayerSettings {
	s.T().Helper()
	t := s.controller.OnPlayerConnect(id)
	s.drive(t.Done())
	settings, err := t.Wait(s.ctx)
	s.Require().NoError(err)
	return settings
}

func (s *ControllerSuite) command(id model.PlayerID, m model.Mutation) (model.PlayerSettings, router.SaveResult) {
	s.T().Helper()
	settings, t, err := s.controller.OnSettingsCommand(id, m)
	s.Require().NoError(err)
	s.drive(t.Done())
	res, _ := t.Wait(s.ctx)
	return settings, res
}

func (s *ControllerSuite) disconnect(id model.PlayerID) router.SaveResult {
	s.T().Helper()
	t := s.controller.OnPlayerDisconnect(id)
	s.drive(t.Done())
	res, _ := t.Wait(s.ctx)
	return res
}

func (s *ControllerSuite) seed(settings model.PlayerSettings) {
	s.Require().NoError(s.provider.Memory().SaveSettings(s.ctx, settings))
}

func (s *ControllerSuite) stored(id model.PlayerID) model.PlayerSettings {
	settings, err := s.provider.Memory().LoadSettings(s.ctx, id)
	s.Require().NoError(err)
	return settings
}

// Connect tests

func (s *ControllerSuite) TestConnectWithoutRecordGetsDefaults() {
	settings := s.connect("100")

	s.True(settings.HUDEnabled)
	s.Equal(model.PositionTopRight, settings.HUDPosition)
	s.Equal("en", settings.Language)
	s.Equal(PhaseReady, s.controller.Phase("100"))
	s.Equal(settings, s.controller.CurrentSettings("100"))
}

func (s *ControllerSuite) TestConnectLoadsSavedSettings() {
	saved := model.DefaultSettings("100", "zh")
	saved.HUDPosition = model.PositionBottomLeft
	s.seed(saved)

	settings := s.connect("100")

	s.True(saved.SamePreferences(settings))
}

func (s *ControllerSuite) TestConnectMergesCustomData() {
	s.provider.Memory().SetCustomData("100", map[string]string{
		model.CustomDataCredits:  "500",
		model.CustomDataPlaytime: "not a number",
	})

	settings := s.connect("100")

	s.Equal(int64(500), settings.Credits)
	s.Equal(int64(0), settings.PlaytimeSeconds)
}

func (s *ControllerSuite) TestDisplayRefreshWaitsForFollowingFrame() {
	t := s.controller.OnPlayerConnect("100")
	for {
		s.loop.RunPending()
		if _, _, ok := t.Result(); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	s.Equal(0, s.display.Shows("100"))

	s.loop.RunPending()
	s.Equal(1, s.display.Shows("100"))
}

func (s *ControllerSuite) TestConnectWithHUDDisabledDoesNotShow() {
	saved := model.DefaultSettings("100", "en")
	saved.HUDEnabled = false
	s.seed(saved)

	s.connect("100")

	s.Equal(0, s.display.Shows("100"))
}

func (s *ControllerSuite) TestConnectTwiceIsIdempotent() {
	first := s.connect("100")
	second := s.connect("100")

	s.Equal(first, second)
	s.Equal(1, s.controller.Cached())
	s.Equal(2, s.provider.LoadCalls())
}

func (s *ControllerSuite) TestConnectRejectsEmptyID() {
	_, err := s.controller.OnPlayerConnect("").Wait(s.ctx)
	s.ErrorIs(err, model.ErrEmptyPlayerID)
	s.Equal(0, s.controller.Cached())
}

// Command tests

func (s *ControllerSuite) TestPlayerToggleDisconnectReconnect() {
	settings := s.connect("100")
	s.True(settings.HUDEnabled)
	s.Equal(model.PositionTopRight, settings.HUDPosition)

	toggled, res := s.command("100", model.ToggleHUD())
	s.False(toggled.HUDEnabled)
	s.True(res.OK())
	s.False(s.controller.CurrentSettings("100").HUDEnabled)
	s.False(s.stored("100").HUDEnabled)
	s.Equal(1, s.display.Removes("100"))

	s.True(s.disconnect("100").OK())
	s.Equal(0, s.controller.Cached())
	s.Equal(PhaseDisconnected, s.controller.Phase("100"))

	again := s.connect("100")
	s.False(again.HUDEnabled)
}

func (s *ControllerSuite) TestCommandStampsLastUpdated() {
	s.connect("100")
	s.clock.Advance(time.Hour)

	settings, _ := s.command("100", model.SetLanguage("ZH"))

	s.Equal("zh", settings.Language)
	s.Equal(s.clock.Now(), settings.LastUpdated)
}

func (s *ControllerSuite) TestCommandShowsUpdatedPosition() {
	s.connect("100")

	s.command("100", model.SetPosition(model.PositionCenter))

	shown, ok := s.display.Visible("100")
	s.True(ok)
	s.Equal(model.PositionCenter, shown.HUDPosition)
}

func (s *ControllerSuite) TestInvalidPositionChangesNothing() {
	s.connect("100")

	_, t, err := s.controller.OnSettingsCommand("100", model.SetPosition(9))

	s.ErrorIs(err, model.ErrInvalidPosition)
	s.Nil(t)
	s.Equal(model.PositionTopRight, s.controller.CurrentSettings("100").HUDPosition)
	s.Equal(0, s.provider.SaveCalls())
}

func (s *ControllerSuite) TestUnsupportedLanguageChangesNothing() {
	s.connect("100")

	_, _, err := s.controller.OnSettingsCommand("100", model.SetLanguage("fr"))

	s.ErrorIs(err, model.ErrUnsupportedLanguage)
	s.Equal("en", s.controller.CurrentSettings("100").Language)
	s.Equal(0, s.provider.SaveCalls())
}

func (s *ControllerSuite) TestCommandBeforeConnectCreatesDefaultEntry() {
	settings, res := s.command("100", model.SetPosition(model.PositionBottomRight))

	s.True(res.OK())
	s.Equal(model.PositionBottomRight, settings.HUDPosition)
	s.Equal(1, s.controller.Cached())
	s.Equal(PhaseReady, s.controller.Phase("100"))
}

func (s *ControllerSuite) TestCommandWhileLoadingKeepsLocalChange() {
	saved := model.DefaultSettings("100", "zh")
	saved.HUDPosition = model.PositionCenter
	s.seed(saved)

	connect := s.controller.OnPlayerConnect("100")
	preview, save, err := s.controller.OnSettingsCommand("100", model.ToggleHUD())
	s.Require().NoError(err)
	s.False(preview.HUDEnabled)

	s.drive(connect.Done())
	s.drive(save.Done())

	res, _, _ := save.Result()
	s.True(res.OK())

	current := s.controller.CurrentSettings("100")
	s.False(current.HUDEnabled)
	s.Equal(model.PositionCenter, current.HUDPosition)
	s.Equal("zh", current.Language)

	stored := s.stored("100")
	s.False(stored.HUDEnabled)
	s.Equal(model.PositionCenter, stored.HUDPosition)
	s.Equal("zh", stored.Language)
	s.Equal(PhaseReady, s.controller.Phase("100"))
}

func (s *ControllerSuite) TestCommandsWhileLoadingReplayInOrder() {
	saved := model.DefaultSettings("100", "zh")
	saved.HUDPosition = model.PositionCenter
	s.seed(saved)

	connect := s.controller.OnPlayerConnect("100")
	_, first, err := s.controller.OnSettingsCommand("100", model.SetPosition(model.PositionTopLeft))
	s.Require().NoError(err)
	_, second, err := s.controller.OnSettingsCommand("100", model.SetPosition(model.PositionBottomRight))
	s.Require().NoError(err)

	s.drive(connect.Done())
	s.drive(first.Done())
	s.drive(second.Done())

	s.Equal(model.PositionBottomRight, s.controller.CurrentSettings("100").HUDPosition)
	s.Equal(model.PositionBottomRight, s.stored("100").HUDPosition)
	s.Equal("zh", s.stored("100").Language)
	s.Equal(1, s.provider.SaveCalls())
}

func (s *ControllerSuite) TestCommandWhileLoadingThenDisconnectKeepsStoredFields() {
	saved := model.DefaultSettings("100", "zh")
	saved.HUDPosition = model.PositionCenter
	s.seed(saved)

	connect := s.controller.OnPlayerConnect("100")
	_, save, err := s.controller.OnSettingsCommand("100", model.ToggleHUD())
	s.Require().NoError(err)
	disconnect := s.controller.OnPlayerDisconnect("100")

	s.drive(connect.Done())
	s.drive(disconnect.Done())
	s.drive(save.Done())

	res, _, _ := save.Result()
	s.True(res.OK())
	s.Equal(0, s.controller.Cached())

	stored := s.stored("100")
	s.False(stored.HUDEnabled)
	s.Equal(model.PositionCenter, stored.HUDPosition)
	s.Equal("zh", stored.Language)
}

func (s *ControllerSuite) TestShutdownResolvesCommandsWaitingOnLoad() {
	s.controller.OnPlayerConnect("100")
	_, save, err := s.controller.OnSettingsCommand("100", model.ToggleHUD())
	s.Require().NoError(err)

	s.controller.OnShutdown(s.ctx)

	res, _, ok := save.Result()
	s.Require().True(ok)
	s.ErrorIs(res.Err, ErrShutdown)
}

func (s *ControllerSuite) TestSaveFailureKeepsCacheChange() {
	s.connect("100")
	s.provider.SetSaveErr(mocks.ErrInjected)

	settings, res := s.command("100", model.ToggleHUD())

	s.False(res.OK())
	s.False(settings.HUDEnabled)
	s.False(s.controller.CurrentSettings("100").HUDEnabled)
	s.Len(s.logs.AtLevel(slog.LevelWarn), 1)
	s.Equal(PhaseReady, s.controller.Phase("100"))
}

// Disconnect tests

func (s *ControllerSuite) TestDisconnectSavesAfterQueuedMutation() {
	s.connect("100")

	_, _, err := s.controller.OnSettingsCommand("100", model.SetPosition(model.PositionCenter))
	s.Require().NoError(err)
	res := s.disconnect("100")

	s.True(res.OK())
	s.Equal(model.PositionCenter, s.stored("100").HUDPosition)
	s.Equal(0, s.controller.Cached())
}

func (s *ControllerSuite) TestDisconnectRetriesSave() {
	s.connect("100")
	s.provider.FailNextSaves(2)

	res := s.disconnect("100")

	s.True(res.OK())
	s.Equal(3, s.provider.SaveCalls())
	s.Empty(s.logs.AtLevel(slog.LevelError))
}

func (s *ControllerSuite) TestDisconnectGivesUpAfterAttempts() {
	s.connect("100")
	s.provider.SetSaveErr(mocks.ErrInjected)

	res := s.disconnect("100")

	s.False(res.OK())
	s.Equal(3, s.provider.SaveCalls())
	s.Equal(0, s.controller.Cached())
	s.Len(s.logs.AtLevel(slog.LevelError), 1)
}

func (s *ControllerSuite) TestDisconnectSaveTimeoutStillEvicts() {
	s.connect("100")
	s.provider.SetBlockSaves(true)

	start := time.Now()
	res := s.disconnect("100")
	elapsed := time.Since(start)

	s.False(res.OK())
	s.Equal(0, s.controller.Cached())
	s.Less(elapsed, s.opts.DisconnectTimeout+500*time.Millisecond)
	s.Len(s.logs.AtLevel(slog.LevelError), 1)
}

// stuckStore never returns from Save until released, whatever its context says
type stuckStore struct {
	*router.Router
	release chan struct{}
}

func (st stuckStore) Save(ctx context.Context, settings model.PlayerSettings) router.SaveResult {
	<-st.release
	return router.SaveResult{}
}

func (s *ControllerSuite) TestDisconnectEvictsWhenSaveIgnoresDeadline() {
	s.connect("100")
	release := make(chan struct{})
	defer close(release)
	s.controller.store = stuckStore{Router: s.router, release: release}

	start := time.Now()
	res := s.disconnect("100")
	elapsed := time.Since(start)

	s.ErrorIs(res.Err, context.DeadlineExceeded)
	s.Equal(0, s.controller.Cached())
	s.Equal(PhaseDisconnected, s.controller.Phase("100"))
	s.Less(elapsed, s.opts.DisconnectTimeout+500*time.Millisecond)
	s.Len(s.logs.AtLevel(slog.LevelError), 1)
}

func (s *ControllerSuite) TestDisconnectRemovesDisplay() {
	s.connect("100")

	t := s.controller.OnPlayerDisconnect("100")
	s.Equal(1, s.display.Removes("100"))
	s.Equal(PhaseDisconnecting, s.controller.Phase("100"))
	s.drive(t.Done())
}

func (s *ControllerSuite) TestDisconnectUnknownPlayerIsNoOp() {
	res := s.disconnect("100")

	s.True(res.OK())
	s.Equal(0, s.provider.SaveCalls())
}

func (s *ControllerSuite) TestDisconnectDuringLoadDoesNotSaveDefaults() {
	saved := model.DefaultSettings("100", "en")
	saved.HUDEnabled = false
	s.seed(saved)

	connect := s.controller.OnPlayerConnect("100")
	disconnect := s.controller.OnPlayerDisconnect("100")
	s.drive(connect.Done())
	s.drive(disconnect.Done())

	s.Equal(0, s.provider.SaveCalls())
	s.Equal(0, s.controller.Cached())
	s.False(s.stored("100").HUDEnabled)
}

func (s *ControllerSuite) TestReconnectDuringDisconnectKeepsEntry() {
	s.connect("100")
	_, _, err := s.controller.OnSettingsCommand("100", model.ToggleHUD())
	s.Require().NoError(err)

	disconnect := s.controller.OnPlayerDisconnect("100")
	connect := s.controller.OnPlayerConnect("100")
	s.drive(disconnect.Done())
	s.drive(connect.Done())

	s.Equal(1, s.controller.Cached())
	s.Equal(PhaseReady, s.controller.Phase("100"))
	s.False(s.controller.CurrentSettings("100").HUDEnabled)
}

func (s *ControllerSuite) TestAtMostOneEntryPerPlayer() {
	for range 3 {
		s.connect("100")
		s.connect("200")
	}
	s.disconnect("100")
	s.connect("100")

	s.Equal(2, s.controller.Cached())
	s.Equal([]model.PlayerID{"100", "200"}, s.controller.Connected())
}

// Disconnected storage tests

func (s *ControllerSuite) TestDisconnectedStorageKeepsWorking() {
	failing := mocks.NewMockProvider("failing")
	failing.InitErr = mocks.ErrInjected
	s.build(failing)
	s.Require().False(s.router.Connected())
	warnings := len(s.logs.AtLevel(slog.LevelWarn))
	errs := len(s.logs.AtLevel(slog.LevelError))

	settings := s.connect("100")
	s.True(settings.HUDEnabled)

	toggled, res := s.command("100", model.ToggleHUD())
	s.False(toggled.HUDEnabled)
	s.ErrorIs(res.Err, router.ErrDisconnected)

	s.disconnect("100")
	s.Equal(0, s.controller.Cached())

	s.True(s.connect("100").HUDEnabled)
	s.Len(s.logs.AtLevel(slog.LevelWarn), warnings)
	s.Len(s.logs.AtLevel(slog.LevelError), errs)
}

// Tick tests

func (s *ControllerSuite) TestTickRefreshesEnabledPlayers() {
	s.connect("100")
	s.connect("200")
	s.command("200", model.ToggleHUD())
	shown := s.display.Shows("100")

	s.controller.OnTick()
	s.Equal(shown, s.display.Shows("100"))

	s.controller.OnTick()
	s.Equal(shown+1, s.display.Shows("100"))
	_, visible := s.display.Visible("200")
	s.False(visible)
}

func (s *ControllerSuite) TestTickReloadsCustomData() {
	s.connect("100")
	calls := s.provider.CustomCalls()
	s.provider.Memory().SetCustomData("100", map[string]string{model.CustomDataCredits: "900"})

	for range 4 {
		s.controller.OnTick()
	}

	s.until(func() bool { return s.controller.CurrentSettings("100").Credits == 900 })
	s.Equal(calls+1, s.provider.CustomCalls())
}

func (s *ControllerSuite) TestTickKeepsOneReloadInFlight() {
	s.connect("100")
	calls := s.provider.CustomCalls()

	for range 8 {
		s.controller.OnTick()
	}

	s.until(func() bool { return s.controller.Pending() == 0 })
	s.loop.RunPending()
	s.Equal(calls+1, s.provider.CustomCalls())
}

func (s *ControllerSuite) TestMissingCustomDataKeepsPreviousValues() {
	s.provider.Memory().SetCustomData("100", map[string]string{model.CustomDataCredits: "500"})
	s.connect("100")

	s.provider.Memory().SetCustomData("100", map[string]string{})
	for range 4 {
		s.controller.OnTick()
	}
	s.until(func() bool { return s.controller.Pending() == 0 })
	s.loop.RunPending()

	s.Equal(int64(500), s.controller.CurrentSettings("100").Credits)
}

// Shutdown tests

func (s *ControllerSuite) TestShutdownFlushesEveryEntry() {
	s.connect("100")
	s.connect("200")
	_, _, err := s.controller.OnSettingsCommand("100", model.SetPosition(model.PositionTopLeft))
	s.Require().NoError(err)
	_, _, err = s.controller.OnSettingsCommand("200", model.ToggleHUD())
	s.Require().NoError(err)

	res := s.controller.OnShutdown(s.ctx)

	s.True(res.OK())
	s.Equal(2, res.Saved)
	s.Equal(0, s.controller.Cached())
	s.Empty(s.controller.Connected())
	s.Equal(model.PositionTopLeft, s.stored("100").HUDPosition)
	s.False(s.stored("200").HUDEnabled)
}

func (s *ControllerSuite) TestShutdownProceedsOnFailure() {
	s.connect("100")
	s.provider.SetSaveErr(mocks.ErrInjected)

	res := s.controller.OnShutdown(s.ctx)

	s.False(res.OK())
	s.Equal([]model.PlayerID{"100"}, res.Failed)
	s.Equal(0, s.controller.Cached())
	s.Len(s.logs.AtLevel(slog.LevelError), 1)
}

func (s *ControllerSuite) TestLateCompletionAfterShutdownIsIgnored() {
	t := s.controller.OnPlayerConnect("100")
	s.controller.OnShutdown(s.ctx)

	s.drive(t.Done())
	s.Equal(0, s.controller.Cached())
}

func (s *ControllerSuite) TestHotReloadReconnectsPlayers() {
	s.connect("100")
	s.connect("200")
	_, _, err := s.controller.OnSettingsCommand("100", model.ToggleHUD())
	s.Require().NoError(err)

	res := s.controller.OnHotReload(s.ctx, []model.PlayerID{"100", "200"})
	s.True(res.OK())

	s.until(func() bool {
		return s.controller.Phase("100") == PhaseReady && s.controller.Phase("200") == PhaseReady
	})
	s.False(s.controller.CurrentSettings("100").HUDEnabled)
	s.True(s.controller.CurrentSettings("200").HUDEnabled)
}

// CurrentSettings tests

func (s *ControllerSuite) TestCurrentSettingsForUnknownPlayer() {
	settings := s.controller.CurrentSettings("999")

	s.Equal(model.DefaultSettings("999", "en"), settings)
	s.Equal(0, s.controller.Cached())
}
