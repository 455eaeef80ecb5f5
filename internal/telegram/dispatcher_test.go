package telegram

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/inyogeshwar/YTMusicLabBot/internal/domain"
	"github.com/inyogeshwar/YTMusicLabBot/internal/lyrics"
	"github.com/inyogeshwar/YTMusicLabBot/internal/roles"
	"github.com/inyogeshwar/YTMusicLabBot/internal/youtube"
)

const (
	testPrimaryID   int64 = 7176592290
	testSecondaryID int64 = 555
	testUserID      int64 = 42
	testChatID      int64 = 42
)

type fakeMessenger struct {
	mu sync.Mutex

	sent    []*bot.SendMessageParams
	edits   []*bot.EditMessageTextParams
	audio   []*bot.SendAudioParams
	video   []*bot.SendVideoParams
	photos  []*bot.SendPhotoParams
	deletes []*bot.DeleteMessageParams

	memberType models.ChatMemberType
	memberErr  error
	failChats  map[int64]bool

	nextID int
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{memberType: models.ChatMemberTypeMember}
}

func (f *fakeMessenger) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if chatID, ok := params.ChatID.(int64); ok && f.failChats[chatID] {
		return nil, errors.New("forbidden: bot was blocked by the user")
	}

	f.sent = append(f.sent, params)
	f.nextID++
	return &models.Message{ID: f.nextID}, nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.edits = append(f.edits, params)
	return &models.Message{ID: params.MessageID}, nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, params *bot.DeleteMessageParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes = append(f.deletes, params)
	return true, nil
}

func (f *fakeMessenger) SendAudio(_ context.Context, params *bot.SendAudioParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.audio = append(f.audio, params)
	f.nextID++
	return &models.Message{ID: f.nextID}, nil
}

func (f *fakeMessenger) SendVideo(_ context.Context, params *bot.SendVideoParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.video = append(f.video, params)
	f.nextID++
	return &models.Message{ID: f.nextID}, nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, params *bot.SendPhotoParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.photos = append(f.photos, params)
	f.nextID++
	return &models.Message{ID: f.nextID}, nil
}

func (f *fakeMessenger) GetChatMember(_ context.Context, _ *bot.GetChatMemberParams) (*models.ChatMember, error) {
	if f.memberErr != nil {
		return nil, f.memberErr
	}
	return &models.ChatMember{Type: f.memberType}, nil
}

func (f *fakeMessenger) AnswerCallbackQuery(_ context.Context, _ *bot.AnswerCallbackQueryParams) (bool, error) {
	return true, nil
}

func (f *fakeMessenger) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Text
}

type fakeDataStore struct {
	mu sync.Mutex

	admins     []domain.AdminRole
	userIDs    []int64
	userStats  domain.UserStats
	downStats  domain.DownloadStats
	channel    string
	channelErr error
	promo      *domain.Promo

	recorded []domain.DownloadRecord
}

func (f *fakeDataStore) ListAdmins(context.Context) ([]domain.AdminRole, error) {
	return f.admins, nil
}

func (f *fakeDataStore) ListUserIDs(context.Context) ([]int64, error) {
	return f.userIDs, nil
}

func (f *fakeDataStore) CountUsers(context.Context) (domain.UserStats, error) {
	return f.userStats, nil
}

func (f *fakeDataStore) DownloadStats(context.Context) (domain.DownloadStats, error) {
	return f.downStats, nil
}

func (f *fakeDataStore) RecordDownload(_ context.Context, rec domain.DownloadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.recorded = append(f.recorded, rec)
	return nil
}

func (f *fakeDataStore) Settings(context.Context) (domain.Settings, error) {
	return domain.Settings{ForcedChannel: f.channel}, f.channelErr
}

func (f *fakeDataStore) GetPromo(context.Context) (*domain.Promo, error) {
	return f.promo, nil
}

type mutatorCall struct {
	op  string
	arg string
}

type fakeMutator struct {
	calls []mutatorCall
	err   error
}

func (f *fakeMutator) SetForcedChannel(_ context.Context, ref string) (string, error) {
	f.calls = append(f.calls, mutatorCall{op: "set_channel", arg: ref})
	return ref, f.err
}

func (f *fakeMutator) ClearForcedChannel(context.Context) error {
	f.calls = append(f.calls, mutatorCall{op: "clear_channel"})
	return f.err
}

func (f *fakeMutator) SetPromo(_ context.Context, fileID, _ string) error {
	f.calls = append(f.calls, mutatorCall{op: "set_promo", arg: fileID})
	return f.err
}

func (f *fakeMutator) ClearPromo(context.Context) error {
	f.calls = append(f.calls, mutatorCall{op: "clear_promo"})
	return f.err
}

func (f *fakeMutator) AddAdmin(_ context.Context, userID int64) error {
	f.calls = append(f.calls, mutatorCall{op: "add_admin", arg: strconv.FormatInt(userID, 10)})
	return f.err
}

func (f *fakeMutator) RemoveAdmin(_ context.Context, userID int64) error {
	f.calls = append(f.calls, mutatorCall{op: "remove_admin", arg: strconv.FormatInt(userID, 10)})
	return f.err
}

type fakeRegistrar struct {
	mu    sync.Mutex
	calls []int64
}

func (f *fakeRegistrar) EnsureUser(_ context.Context, u domain.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, u.UserID)
	return len(f.calls) == 1, nil
}

type fakeFetcher struct {
	t      *testing.T
	tracks []youtube.Track
	err    error
}

func (f *fakeFetcher) Search(context.Context, string, int) ([]youtube.Track, error) {
	return f.tracks, f.err
}

func (f *fakeFetcher) FetchAudio(_ context.Context, _ string) (*youtube.Media, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.mediaFile(domain.MediaAudio, "song.mp3")
}

func (f *fakeFetcher) FetchVideo(_ context.Context, _ string) (*youtube.Media, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.mediaFile(domain.MediaVideo, "clip.mp4")
}

func (f *fakeFetcher) mediaFile(kind domain.MediaKind, name string) (*youtube.Media, error) {
	path := filepath.Join(f.t.TempDir(), name)
	if err := os.WriteFile(path, []byte("media-bytes"), 0o644); err != nil {
		return nil, err
	}

	return &youtube.Media{
		Path:      path,
		Title:     "Test Song",
		Performer: "Test Artist",
		Kind:      kind,
		SizeBytes: int64(len("media-bytes")),
	}, nil
}

type fakeLyrics struct {
	info lyrics.SongInfo
	err  error
}

func (f *fakeLyrics) Lookup(context.Context, string) (lyrics.SongInfo, error) {
	return f.info, f.err
}

type testEnv struct {
	d         *dispatcher
	m         *fakeMessenger
	store     *fakeDataStore
	mutator   *fakeMutator
	registrar *fakeRegistrar
	fetcher   *fakeFetcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger, _ := logtest.NewNullLogger()

	env := &testEnv{
		m: newFakeMessenger(),
		store: &fakeDataStore{
			admins: []domain.AdminRole{
				{UserID: testPrimaryID, Tier: domain.TierPrimary},
				{UserID: testSecondaryID, Tier: domain.TierSecondary},
			},
		},
		mutator:   &fakeMutator{},
		registrar: &fakeRegistrar{},
		fetcher:   &fakeFetcher{t: t},
	}

	env.d = &dispatcher{
		store:        env.store,
		mutator:      env.mutator,
		registrar:    env.registrar,
		resolver:     roles.NewResolver(testPrimaryID),
		fetcher:      env.fetcher,
		lyrics:       &fakeLyrics{info: lyrics.SongInfo{Title: "Test Song", Artist: "Test Artist"}},
		sessions:     newSessionStore(),
		processStart: time.Now(),
		logger:       logger.WithField("test", t.Name()),
	}

	return env
}

func msgUpdate(userID, chatID int64, text string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:   1,
			From: &models.User{ID: userID, Username: "tester"},
			Chat: models.Chat{ID: chatID},
			Text: text,
		},
	}
}

func cbUpdate(userID, chatID int64, data string) *models.Update {
	return &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-1",
			From: models.User{ID: userID, Username: "tester"},
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Type:    models.MaybeInaccessibleMessageTypeMessage,
				Message: &models.Message{ID: 2, Chat: models.Chat{ID: chatID}},
			},
		},
	}
}

func TestStartRegistersUserAndReplies(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleStart(context.Background(), env.m, msgUpdate(testUserID, testChatID, "/start"))

	if len(env.registrar.calls) != 1 || env.registrar.calls[0] != testUserID {
		t.Fatalf("expected registration for %d, got %v", testUserID, env.registrar.calls)
	}
	if !strings.Contains(env.m.lastText(), "Welcome") {
		t.Fatalf("unexpected reply %q", env.m.lastText())
	}
}

func TestGatedUserGetsJoinPromptAndNothingElse(t *testing.T) {
	env := newTestEnv(t)
	env.store.channel = "@musiclab"
	env.m.memberType = models.ChatMemberTypeLeft
	env.fetcher.tracks = []youtube.Track{{ID: "abc", Title: "Song"}}

	env.d.handleText(context.Background(), env.m, msgUpdate(testUserID, testChatID, "some song"))

	// The user is still registered even though the interaction was gated.
	if len(env.registrar.calls) != 1 {
		t.Fatalf("expected registration despite gating, got %v", env.registrar.calls)
	}

	if len(env.m.sent) != 1 {
		t.Fatalf("expected only the join prompt, got %d messages", len(env.m.sent))
	}
	prompt := env.m.sent[0]
	if !strings.Contains(prompt.Text, "join") {
		t.Fatalf("unexpected prompt %q", prompt.Text)
	}
	markup, ok := prompt.ReplyMarkup.(*models.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) == 0 {
		t.Fatal("expected a join button")
	}
	if url := markup.InlineKeyboard[0][0].URL; url != "https://t.me/musiclab" {
		t.Fatalf("unexpected join url %q", url)
	}

	if len(env.store.recorded) != 0 {
		t.Fatalf("gated interaction must not record downloads, got %v", env.store.recorded)
	}
}

func TestGatingFailsOpenOnLookupError(t *testing.T) {
	env := newTestEnv(t)
	env.store.channel = "@musiclab"
	env.m.memberErr = errors.New("chat not found")
	env.fetcher.tracks = []youtube.Track{{ID: "abc", Title: "Song"}}

	env.d.handleText(context.Background(), env.m, msgUpdate(testUserID, testChatID, "some song"))

	if got := env.m.lastText(); !strings.Contains(got, "Results") {
		t.Fatalf("expected search to proceed on lookup error, got %q", got)
	}
}

func TestAdminBypassesGate(t *testing.T) {
	env := newTestEnv(t)
	env.store.channel = "@musiclab"
	env.m.memberType = models.ChatMemberTypeLeft

	env.d.handleUsers(context.Background(), env.m, msgUpdate(testSecondaryID, testChatID, "/users"))

	if got := env.m.lastText(); !strings.Contains(got, "Users") {
		t.Fatalf("expected admin to bypass the gate, got %q", got)
	}
}

func TestStartExemptFromGate(t *testing.T) {
	env := newTestEnv(t)
	env.store.channel = "@musiclab"
	env.m.memberType = models.ChatMemberTypeLeft

	env.d.handleStart(context.Background(), env.m, msgUpdate(testUserID, testChatID, "/start"))

	if got := env.m.lastText(); !strings.Contains(got, "Welcome") {
		t.Fatalf("expected /start to pass the gate, got %q", got)
	}
}

func TestNonAdminRejectedFromAdminCommand(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleUsers(context.Background(), env.m, msgUpdate(testUserID, testChatID, "/users"))

	if got := env.m.lastText(); got != adminOnlyText {
		t.Fatalf("expected rejection, got %q", got)
	}
}

func TestSecondaryCannotManageRoster(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleAddAdmin(context.Background(), env.m, msgUpdate(testSecondaryID, testChatID, "/addadmin 777"))

	if got := env.m.lastText(); got != primaryOnlyText {
		t.Fatalf("expected explicit primary-only denial, got %q", got)
	}
	if len(env.mutator.calls) != 0 {
		t.Fatalf("roster must be untouched, got %v", env.mutator.calls)
	}
}

func TestPrimaryAddsAdmin(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleAddAdmin(context.Background(), env.m, msgUpdate(testPrimaryID, testChatID, "/addadmin 777"))

	if len(env.mutator.calls) != 1 || env.mutator.calls[0].op != "add_admin" {
		t.Fatalf("expected add_admin call, got %v", env.mutator.calls)
	}
	if got := env.m.lastText(); !strings.Contains(got, "777") {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestPrimaryRemoveAdminNotAnAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.mutator.err = domain.ErrNotAnAdmin

	env.d.handleDelAdmin(context.Background(), env.m, msgUpdate(testPrimaryID, testChatID, "/deladmin 888"))

	if got := env.m.lastText(); !strings.Contains(got, "not an admin") {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestSearchStoresSessionAndPickLeadsToChooser(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.tracks = []youtube.Track{
		{ID: "abc", Title: "Song A", Duration: 3 * time.Minute},
		{ID: "def", Title: "Song B"},
	}
	ctx := context.Background()

	env.d.handleSearchCommand(ctx, env.m, msgUpdate(testUserID, testChatID, "/search test query"))

	results := env.m.sent[len(env.m.sent)-1]
	markup, ok := results.ReplyMarkup.(*models.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) != 2 {
		t.Fatalf("expected two result buttons, got %+v", results.ReplyMarkup)
	}
	if data := markup.InlineKeyboard[0][0].CallbackData; data != "pick:0" {
		t.Fatalf("unexpected callback data %q", data)
	}

	env.d.handleCallback(ctx, env.m, cbUpdate(testUserID, testChatID, "pick:0"))

	chooser := env.m.sent[len(env.m.sent)-1]
	if !strings.Contains(chooser.Text, "Song A") {
		t.Fatalf("expected chooser for Song A, got %q", chooser.Text)
	}
	chooserMarkup := chooser.ReplyMarkup.(*models.InlineKeyboardMarkup)
	if data := chooserMarkup.InlineKeyboard[0][0].CallbackData; data != "fmt:mp3" {
		t.Fatalf("unexpected chooser data %q", data)
	}
}

func TestCallbackWithoutSessionExpires(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleCallback(context.Background(), env.m, cbUpdate(testUserID, testChatID, "pick:0"))

	if got := env.m.lastText(); got != sessionExpired {
		t.Fatalf("expected session expired reply, got %q", got)
	}

	env.d.handleCallback(context.Background(), env.m, cbUpdate(testUserID, testChatID, "fmt:mp3"))

	if got := env.m.lastText(); got != sessionExpired {
		t.Fatalf("expected session expired reply, got %q", got)
	}
}

func TestAudioDownloadRecordsAndSendsPromo(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.tracks = []youtube.Track{{ID: "abc", Title: "Song A"}}
	env.store.promo = &domain.Promo{FileID: "promo-file", Caption: "promo caption"}
	ctx := context.Background()

	env.d.handleSearchCommand(ctx, env.m, msgUpdate(testUserID, testChatID, "/search song"))
	env.d.handleCallback(ctx, env.m, cbUpdate(testUserID, testChatID, "pick:0"))
	env.d.handleCallback(ctx, env.m, cbUpdate(testUserID, testChatID, "fmt:mp3"))

	if len(env.m.audio) != 1 {
		t.Fatalf("expected one audio delivery, got %d", len(env.m.audio))
	}
	audio := env.m.audio[0]
	if audio.Title != "Test Song" || audio.Performer != "Test Artist" {
		t.Fatalf("unexpected audio params %+v", audio)
	}

	if len(env.store.recorded) != 1 {
		t.Fatalf("expected one recorded download, got %v", env.store.recorded)
	}
	rec := env.store.recorded[0]
	if rec.UserID != testUserID || rec.Kind != domain.MediaAudio {
		t.Fatalf("unexpected download record %+v", rec)
	}

	// The promo follows the download: separator text then the photo.
	if got := env.m.lastText(); got != promoSeparator {
		t.Fatalf("expected promo separator, got %q", got)
	}
	if len(env.m.photos) != 1 {
		t.Fatalf("expected one promo photo, got %d", len(env.m.photos))
	}
	if env.m.photos[0].Caption != "promo caption" {
		t.Fatalf("unexpected promo caption %q", env.m.photos[0].Caption)
	}
}

func TestDirectURLGoesToChooser(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleText(context.Background(), env.m, msgUpdate(testUserID, testChatID, "https://youtu.be/abc123"))

	chooser := env.m.sent[len(env.m.sent)-1]
	markup, ok := chooser.ReplyMarkup.(*models.InlineKeyboardMarkup)
	if !ok || markup.InlineKeyboard[0][0].CallbackData != "fmt:mp3" {
		t.Fatalf("expected format chooser for direct link, got %+v", chooser.ReplyMarkup)
	}

	track, ok := env.d.sessions.Pending(testUserID)
	if !ok {
		t.Fatal("expected pending track for direct link")
	}
	if got := trackURL(track); got != "https://youtu.be/abc123" {
		t.Fatalf("expected raw url preserved, got %q", got)
	}
}

func TestDownloadFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "too large", err: domain.ErrMediaTooLarge, want: "too large"},
		{name: "unavailable", err: domain.ErrMediaUnavailable, want: "unavailable"},
		{name: "generic", err: errors.New("boom"), want: "Download failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.d.sessions.SetPending(testUserID, youtube.Track{ID: "abc", Title: "Song"})
			env.fetcher.err = tc.err

			env.d.handleCallback(context.Background(), env.m, cbUpdate(testUserID, testChatID, "fmt:mp3"))

			if got := env.m.lastText(); !strings.Contains(got, tc.want) {
				t.Fatalf("expected %q in reply, got %q", tc.want, got)
			}
			if len(env.store.recorded) != 0 {
				t.Fatalf("failed download must not be recorded, got %v", env.store.recorded)
			}
		})
	}
}

func TestBroadcastAggregatesOutcomes(t *testing.T) {
	env := newTestEnv(t)
	env.store.userIDs = []int64{101, 102, 103}
	env.m.failChats = map[int64]bool{102: true}

	env.d.handleBroadcast(context.Background(), env.m,
		msgUpdate(testPrimaryID, testChatID, "/broadcast hello everyone"))

	if len(env.m.edits) == 0 {
		t.Fatal("expected the progress message to be edited with the final report")
	}
	report := env.m.edits[len(env.m.edits)-1].Text
	if !strings.Contains(report, "2 delivered") || !strings.Contains(report, "1 failed") {
		t.Fatalf("unexpected report %q", report)
	}

	// Two recipients got the text; the progress message went to the admin.
	delivered := 0
	for _, sent := range env.m.sent {
		if sent.Text == "hello everyone" {
			delivered++
		}
	}
	if delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}
}

func TestBroadcastRequiresText(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleBroadcast(context.Background(), env.m, msgUpdate(testPrimaryID, testChatID, "/broadcast"))

	if got := env.m.lastText(); !strings.Contains(got, "Usage") {
		t.Fatalf("expected usage reply, got %q", got)
	}
}

func TestSetChannelThroughMutator(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleSetChannel(context.Background(), env.m,
		msgUpdate(testSecondaryID, testChatID, "/setchannel @musiclab"))

	if len(env.mutator.calls) != 1 || env.mutator.calls[0].op != "set_channel" {
		t.Fatalf("expected set_channel call, got %v", env.mutator.calls)
	}
	if got := env.m.lastText(); !strings.Contains(got, "@musiclab") {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestAddPromoRequiresPhotoReply(t *testing.T) {
	env := newTestEnv(t)

	update := msgUpdate(testSecondaryID, testChatID, "/addpromo new caption")
	update.Message.ReplyToMessage = &models.Message{Text: "not a photo"}

	env.d.handleAddPromo(context.Background(), env.m, update)

	if got := env.m.lastText(); !strings.Contains(got, "reply to a photo") {
		t.Fatalf("expected usage reply, got %q", got)
	}
	if len(env.mutator.calls) != 0 {
		t.Fatalf("promo must be untouched, got %v", env.mutator.calls)
	}
}

func panelCallbackData(markup *models.InlineKeyboardMarkup) []string {
	var data []string
	for _, row := range markup.InlineKeyboard {
		for _, button := range row {
			data = append(data, button.CallbackData)
		}
	}
	return data
}

func TestBareAddPromoShowsControlPanel(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleAddPromo(context.Background(), env.m,
		msgUpdate(testPrimaryID, testChatID, "/addpromo"))

	if len(env.m.sent) != 1 {
		t.Fatalf("expected the control panel, got %d messages", len(env.m.sent))
	}
	panel := env.m.sent[0]
	if !strings.Contains(panel.Text, "Admin Control Panel") {
		t.Fatalf("unexpected panel text %q", panel.Text)
	}

	markup, ok := panel.ReplyMarkup.(*models.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("expected inline keyboard, got %T", panel.ReplyMarkup)
	}

	data := panelCallbackData(markup)
	for _, want := range []string{"adm:users", "adm:stats", "adm:broadcast", "adm:admins",
		"adm:setchannel", "adm:clearchannel", "adm:addpromo", "adm:delpromo",
		"adm:addadmin", "adm:deladmin"} {
		found := false
		for _, got := range data {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected panel button %q, got %v", want, data)
		}
	}
}

func TestControlPanelOmitsRosterRowForSecondary(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleAddPromo(context.Background(), env.m,
		msgUpdate(testSecondaryID, testChatID, "/addpromo"))

	panel := env.m.sent[len(env.m.sent)-1]
	markup, ok := panel.ReplyMarkup.(*models.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("expected inline keyboard, got %T", panel.ReplyMarkup)
	}

	for _, data := range panelCallbackData(markup) {
		if data == "adm:addadmin" || data == "adm:deladmin" {
			t.Fatalf("secondary admin must not see roster buttons, got %v", panelCallbackData(markup))
		}
	}
}

func TestControlPanelRosterButtonIsPrimaryOnly(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleCallback(context.Background(), env.m, cbUpdate(testSecondaryID, testChatID, "adm:addadmin"))

	if got := env.m.lastText(); got != primaryOnlyText {
		t.Fatalf("expected primary-only denial, got %q", got)
	}

	env.d.handleCallback(context.Background(), env.m, cbUpdate(testPrimaryID, testChatID, "adm:addadmin"))

	if got := env.m.lastText(); !strings.Contains(got, "/addadmin") {
		t.Fatalf("expected usage hint for primary, got %q", got)
	}
}

func TestControlPanelClearChannelButtonActs(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleCallback(context.Background(), env.m, cbUpdate(testSecondaryID, testChatID, "adm:clearchannel"))

	if len(env.mutator.calls) != 1 || env.mutator.calls[0].op != "clear_channel" {
		t.Fatalf("expected clear_channel call, got %v", env.mutator.calls)
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		tier    domain.Tier
		need    domain.Tier
		allowed bool
	}{
		{name: "user needs admin", tier: domain.TierNone, need: domain.TierSecondary, allowed: false},
		{name: "secondary is admin", tier: domain.TierSecondary, need: domain.TierSecondary, allowed: true},
		{name: "secondary needs primary", tier: domain.TierSecondary, need: domain.TierPrimary, allowed: false},
		{name: "primary passes both", tier: domain.TierPrimary, need: domain.TierPrimary, allowed: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := authorize(interaction{tier: tc.tier}, tc.need)
			if tc.allowed && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tc.allowed && !errors.Is(err, domain.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestAddPromoFromPhotoReply(t *testing.T) {
	env := newTestEnv(t)

	update := msgUpdate(testSecondaryID, testChatID, "/addpromo check this out")
	update.Message.ReplyToMessage = &models.Message{
		Photo: []models.PhotoSize{
			{FileID: "small"},
			{FileID: "large"},
		},
	}

	env.d.handleAddPromo(context.Background(), env.m, update)

	if len(env.mutator.calls) != 1 || env.mutator.calls[0].op != "set_promo" {
		t.Fatalf("expected set_promo call, got %v", env.mutator.calls)
	}
	if env.mutator.calls[0].arg != "large" {
		t.Fatalf("expected the largest photo size, got %q", env.mutator.calls[0].arg)
	}
}

func TestLyricsCommand(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleLyricsCommand(context.Background(), env.m,
		msgUpdate(testUserID, testChatID, "/lyrics test song"))

	reply := env.m.sent[len(env.m.sent)-1]
	if !strings.Contains(reply.Text, "Test Song") {
		t.Fatalf("unexpected lyrics reply %q", reply.Text)
	}

	markup, ok := reply.ReplyMarkup.(*models.InlineKeyboardMarkup)
	if !ok || markup.InlineKeyboard[0][0].CallbackData != "lyr:dl" {
		t.Fatalf("expected download button, got %+v", reply.ReplyMarkup)
	}
}

func TestLyricsDownloadButtonFetchesAudio(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.tracks = []youtube.Track{{ID: "abc", Title: "Test Song"}}
	ctx := context.Background()

	env.d.handleLyricsCommand(ctx, env.m, msgUpdate(testUserID, testChatID, "/lyrics test song"))
	env.d.handleCallback(ctx, env.m, cbUpdate(testUserID, testChatID, "lyr:dl"))

	if len(env.m.audio) != 1 {
		t.Fatalf("expected one audio delivery, got %d", len(env.m.audio))
	}
	if len(env.store.recorded) != 1 || env.store.recorded[0].Kind != domain.MediaAudio {
		t.Fatalf("expected a recorded audio download, got %v", env.store.recorded)
	}
}

func TestLyricsDownloadButtonWithoutSessionExpires(t *testing.T) {
	env := newTestEnv(t)

	env.d.handleCallback(context.Background(), env.m, cbUpdate(testUserID, testChatID, "lyr:dl"))

	if got := env.m.lastText(); got != sessionExpired {
		t.Fatalf("expected session expired reply, got %q", got)
	}
}

func TestLyricsNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.d.lyrics = &fakeLyrics{err: domain.ErrLyricsNotFound}

	env.d.handleLyricsCommand(context.Background(), env.m,
		msgUpdate(testUserID, testChatID, "/lyrics unknown"))

	if got := env.m.lastText(); !strings.Contains(got, "No lyrics found") {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestChannelChatRef(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "@musiclab", want: "@musiclab"},
		{input: "musiclab", want: "@musiclab"},
		{input: "https://t.me/musiclab", want: "@musiclab"},
		{input: "https://t.me/musiclab/", want: "@musiclab"},
	}

	for _, tc := range tests {
		if got := channelChatRef(tc.input); got != tc.want {
			t.Fatalf("channelChatRef(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
