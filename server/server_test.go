package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"blogmusic/cache"
	"blogmusic/config"
	"blogmusic/core/auth"
	"blogmusic/core/dedup"
	"blogmusic/core/playback"
	"blogmusic/db"
	"blogmusic/model"
	"blogmusic/repository"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// acceptMedia accepts every url synchronously, like a media element that loads instantly.
type acceptMedia struct{}

func (acceptMedia) Load(_ context.Context, _ string, done func(playback.LoadResult)) {
	done(playback.LoadResult{Accepted: true, Duration: 200})
}

type fakeUploader struct {
	objects map[string]string
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, objectName string, r io.Reader, _ int64, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.objects[objectName] = contentType
	return "http://cdn.test/blog-music/" + objectName, nil
}

type testEnv struct {
	router   *mux.Router
	handler  *APIHandler
	music    repository.MusicRepository
	users    repository.UserRepository
	tokens   *auth.TokenManager
	uploader *fakeUploader
	dedup    *dedup.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), db.GormConfig(false))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{ProbeTimeout: time.Second, MaxPlayerSessions: 10, PlayerSessionTTL: time.Hour}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	players := playback.NewRegistry(cfg.MaxPlayerSessions, cfg.PlayerSessionTTL, func(id string) *playback.Coordinator {
		return playback.NewCoordinator(nil, acceptMedia{}, nil, playback.WithObserver(metrics), playback.WithName(id))
	})
	metrics.WatchSessions(players.Len)

	env := &testEnv{
		music:    repository.NewGormMusicRepository(gormDB),
		users:    repository.NewGormUserRepository(gormDB),
		tokens:   auth.NewTokenManager("test-secret", time.Hour),
		uploader: &fakeUploader{objects: map[string]string{}},
		dedup:    dedup.New(1000, 0.001),
	}
	env.handler = NewAPIHandler(Deps{
		Config:        cfg,
		Music:         env.music,
		Users:         env.users,
		Banners:       repository.NewGormBannerRepository(gormDB),
		Announcements: repository.NewGormAnnouncementRepository(gormDB),
		Popups:        repository.NewGormPopupRepository(gormDB),
		Sources:       cache.NewSourceCache(nil, 0, nil),
		Dedup:         env.dedup,
		Uploader:      env.uploader,
		Tokens:        env.tokens,
		Players:       players,
		Metrics:       metrics,
		Now:           func() time.Time { return testNow },
	})
	env.router = NewRouter(env.handler, reg, map[string]HealthCheck{
		"database": func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// token creates a user with the given role and returns a signed token for it.
func (e *testEnv) token(t *testing.T, username, role string) string {
	t.Helper()
	hash, err := auth.HashPassword("secret123")
	if err != nil {
		t.Fatal(err)
	}
	u := &model.User{Username: username, Email: username + "@example.com", PasswordHash: hash, Role: role}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	tok, err := e.tokens.GenerateToken(u.ID, u.Username, u.Role)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

// approved inserts a catalog entry that is already visible.
func (e *testEnv) approved(t *testing.T, title, src string) *model.Music {
	t.Helper()
	ctx := context.Background()
	m := model.NewMusic(model.SubmitMusicRequest{Title: title, Artist: "Artist", SourceURL: src}, nil)
	if err := e.music.Create(ctx, m); err != nil {
		t.Fatalf("create music: %v", err)
	}
	if err := e.music.SetStatus(ctx, m.ID, model.MusicApproved, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	e.dedup.Add(dedup.Key(m.SourceURL, m.Platform))
	return m
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) testResponse {
	t.Helper()
	var resp testResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if v != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, v); err != nil {
			t.Fatalf("decode data %s: %v", resp.Data, err)
		}
	}
	return resp
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register",
		model.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret123"}, "")
	expectStatus(t, rec, http.StatusCreated)
	var reg authResponse
	decode(t, rec, &reg)
	if reg.Token == "" || reg.User == nil || reg.User.Role != model.RoleUser {
		t.Fatalf("register response = %+v", reg)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/register",
		model.RegisterRequest{Username: "alice", Email: "other@example.com", Password: "secret123"}, "")
	expectStatus(t, rec, http.StatusConflict)

	tests := []struct {
		name     string
		username string
		password string
		want     int
	}{
		{"by username", "alice", "secret123", http.StatusOK},
		{"by email", "alice@example.com", "secret123", http.StatusOK},
		{"wrong password", "alice", "nope", http.StatusUnauthorized},
		{"unknown user", "bob", "secret123", http.StatusUnauthorized},
		{"missing fields", "", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/auth/login",
				model.LoginRequest{Username: tt.username, Password: tt.password}, "")
			expectStatus(t, rec, tt.want)
		})
	}

	rec = env.do(t, http.MethodGet, "/api/auth/me", nil, reg.Token)
	expectStatus(t, rec, http.StatusOK)
	var me model.User
	decode(t, rec, &me)
	if me.Username != "alice" {
		t.Errorf("me = %+v", me)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/auth/me", nil, ""), http.StatusUnauthorized)
	expectStatus(t, env.do(t, http.MethodGet, "/api/auth/me", nil, "garbage"), http.StatusUnauthorized)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	tests := []model.RegisterRequest{
		{Username: "", Email: "a@b.c", Password: "secret123"},
		{Username: "a@b", Email: "a@b.c", Password: "secret123"},
		{Username: "carol", Email: "not-an-email", Password: "secret123"},
		{Username: "carol", Email: "c@b.c", Password: "123"},
		{Username: "carol", Email: "c@b.c", Password: strings.Repeat("p", 80)},
	}
	for _, req := range tests {
		expectStatus(t, env.do(t, http.MethodPost, "/api/auth/register", req, ""), http.StatusBadRequest)
	}
}

func TestSubmitMusic(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.token(t, "dave", model.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/music/submit", model.SubmitMusicRequest{
		Title: "Song", Artist: "Band", SourceURL: "https://www.dropbox.com/s/xyz/song.mp3?dl=0",
	}, userToken)
	expectStatus(t, rec, http.StatusCreated)
	var m model.Music
	decode(t, rec, &m)
	if m.Status != model.MusicPending || m.Platform != "dropbox" || m.SubmittedBy == nil {
		t.Fatalf("submitted = %+v", m)
	}

	// 同一文件的另一种分享形式
	rec = env.do(t, http.MethodPost, "/api/music/submit", model.SubmitMusicRequest{
		Title: "Song again", Artist: "Band", SourceURL: "https://www.dropbox.com/s/xyz/song.mp3?dl=1",
	}, "")
	expectStatus(t, rec, http.StatusConflict)

	rec = env.do(t, http.MethodPost, "/api/music/submit", model.SubmitMusicRequest{
		Title: "", Artist: "Band", SourceURL: "https://example.com/a.mp3",
	}, "")
	expectStatus(t, rec, http.StatusBadRequest)

	// 待审核条目不出现在公开列表
	var page model.MusicPage
	decode(t, env.do(t, http.MethodGet, "/api/music", nil, ""), &page)
	if page.Total != 0 {
		t.Errorf("public list total = %d, want 0", page.Total)
	}
}

func TestSubmitMusic_LongLink(t *testing.T) {
	env := newTestEnv(t)
	src := "https://www.dropbox.com/scl/fi/" + strings.Repeat("k", 300) + "/song.mp3?rlkey=" + strings.Repeat("r", 60) + "&st=abc&dl=0"

	rec := env.do(t, http.MethodPost, "/api/music/submit", model.SubmitMusicRequest{
		Title: "Long", Artist: "Band", SourceURL: "  " + src,
	}, "")
	expectStatus(t, rec, http.StatusCreated)
	var m model.Music
	decode(t, rec, &m)

	stored, err := env.music.GetByID(context.Background(), m.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID = %v, %v", stored, err)
	}
	if len(stored.DedupKey) != 64 {
		t.Errorf("stored dedup key has %d chars, want 64", len(stored.DedupKey))
	}

	rec = env.do(t, http.MethodPost, "/api/music/submit", model.SubmitMusicRequest{
		Title: "Long again", Artist: "Band", SourceURL: src,
	}, "")
	expectStatus(t, rec, http.StatusConflict)

	rec = env.do(t, http.MethodPost, "/api/music/submit", model.SubmitMusicRequest{
		Title: "Too long", Artist: "Band", SourceURL: "https://example.com/" + strings.Repeat("x", model.MaxSourceURLLen),
	}, "")
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestSubmitMusic_DatabaseIsAuthoritative(t *testing.T) {
	env := newTestEnv(t)
	m := model.NewMusic(model.SubmitMusicRequest{Title: "A", Artist: "B", SourceURL: "https://example.com/a.mp3"}, nil)
	if err := env.music.Create(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	// 内存索引未预热时仍由唯一索引拒绝
	rec := env.do(t, http.MethodPost, "/api/music/submit", model.SubmitMusicRequest{
		Title: "A", Artist: "B", SourceURL: "https://example.com/a.mp3",
	}, "")
	expectStatus(t, rec, http.StatusConflict)
	if !env.dedup.Seen(dedup.Key(m.SourceURL, m.Platform)) {
		t.Error("conflict from the database should warm the dedup index")
	}
}

func TestCatalog_ListDetailSourceDownload(t *testing.T) {
	env := newTestEnv(t)
	const driveID = "1AbCdEfGhIjKlMnOp"
	drive := env.approved(t, "Drive Song", "https://drive.google.com/file/d/"+driveID+"/view?usp=sharing")
	env.approved(t, "Café del Mar", "https://example.com/cafe.mp3")

	var page model.MusicPage
	decode(t, env.do(t, http.MethodGet, "/api/music?q=cafe", nil, ""), &page)
	if page.Total != 1 || page.Items[0].Title != "Café del Mar" {
		t.Fatalf("search page = %+v", page)
	}

	rec := env.do(t, http.MethodGet, "/api/music/999", nil, "")
	expectStatus(t, rec, http.StatusNotFound)

	path := "/api/music/" + itoa(drive.ID)
	expectStatus(t, env.do(t, http.MethodGet, path, nil, ""), http.StatusOK)

	var src struct {
		Platform     string   `json:"platform"`
		PrimaryURL   string   `json:"primaryUrl"`
		FallbackURLs []string `json:"fallbackUrls"`
	}
	decode(t, env.do(t, http.MethodGet, path+"/source", nil, ""), &src)
	wantPrimary := "https://drive.google.com/uc?export=download&id=" + driveID
	if src.Platform != "googledrive" || src.PrimaryURL != wantPrimary || len(src.FallbackURLs) == 0 {
		t.Fatalf("source = %+v", src)
	}

	rec = env.do(t, http.MethodGet, path+"/download", nil, "")
	expectStatus(t, rec, http.StatusFound)
	if loc := rec.Header().Get("Location"); loc != wantPrimary {
		t.Errorf("Location = %q, want %q", loc, wantPrimary)
	}
	got, err := env.music.GetByID(context.Background(), drive.ID)
	if err != nil || got.Downloads != 1 {
		t.Errorf("downloads = %v (err %v), want 1", got, err)
	}
}

func TestAdmin_Authorization(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.token(t, "erin", model.RoleUser)

	expectStatus(t, env.do(t, http.MethodGet, "/api/admin/music", nil, ""), http.StatusUnauthorized)
	expectStatus(t, env.do(t, http.MethodGet, "/api/admin/music", nil, userToken), http.StatusForbidden)
	expectStatus(t, env.do(t, http.MethodGet, "/api/admin/stats", nil, userToken), http.StatusForbidden)
}

func TestAdmin_ReviewUpdateDelete(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", model.RoleAdmin)

	var m model.Music
	rec := env.do(t, http.MethodPost, "/api/music/submit", model.SubmitMusicRequest{
		Title: "Pending", Artist: "X", SourceURL: "https://example.com/p.mp3",
	}, "")
	expectStatus(t, rec, http.StatusCreated)
	decode(t, rec, &m)
	path := "/api/admin/music/" + itoa(m.ID)

	var page model.MusicPage
	decode(t, env.do(t, http.MethodGet, "/api/admin/music?status=pending", nil, admin), &page)
	if page.Total != 1 {
		t.Fatalf("pending total = %d, want 1", page.Total)
	}
	expectStatus(t, env.do(t, http.MethodGet, "/api/admin/music?status=bogus", nil, admin), http.StatusBadRequest)

	rec = env.do(t, http.MethodPost, path+"/reject", model.ReviewRequest{Note: "bad audio"}, admin)
	expectStatus(t, rec, http.StatusOK)
	var reviewed model.Music
	decode(t, rec, &reviewed)
	if reviewed.Status != model.MusicRejected || reviewed.ReviewNote != "bad audio" {
		t.Fatalf("rejected = %+v", reviewed)
	}

	expectStatus(t, env.do(t, http.MethodPost, path+"/approve", nil, admin), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/music/999/approve", nil, admin), http.StatusNotFound)

	decode(t, env.do(t, http.MethodGet, "/api/music", nil, ""), &page)
	if page.Total != 1 {
		t.Fatalf("public total after approve = %d, want 1", page.Total)
	}

	title := "Renamed"
	rec = env.do(t, http.MethodPut, path, model.UpdateMusicRequest{Title: &title}, admin)
	expectStatus(t, rec, http.StatusOK)
	var updated model.Music
	decode(t, rec, &updated)
	if updated.Title != "Renamed" || updated.SourceURL != "https://example.com/p.mp3" {
		t.Errorf("updated = %+v", updated)
	}

	empty := ""
	expectStatus(t, env.do(t, http.MethodPut, path, model.UpdateMusicRequest{Artist: &empty}, admin), http.StatusBadRequest)

	expectStatus(t, env.do(t, http.MethodDelete, path, nil, admin), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodDelete, path, nil, admin), http.StatusNotFound)

	// 删除后可以重新投稿
	rec = env.do(t, http.MethodPost, "/api/music/submit", model.SubmitMusicRequest{
		Title: "Pending", Artist: "X", SourceURL: "https://example.com/p.mp3",
	}, "")
	expectStatus(t, rec, http.StatusCreated)
}

func TestAdmin_UpdateSourceMovesDedupKey(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", model.RoleAdmin)
	m := env.approved(t, "Song", "https://example.com/old.mp3")

	src := "https://example.com/new.mp3"
	rec := env.do(t, http.MethodPut, "/api/admin/music/"+itoa(m.ID), model.UpdateMusicRequest{SourceURL: &src}, admin)
	expectStatus(t, rec, http.StatusOK)

	if env.dedup.Seen(dedup.Key("https://example.com/old.mp3", "direct")) {
		t.Error("old source still marked as submitted")
	}
	if !env.dedup.Seen(dedup.Key(src, "direct")) {
		t.Error("new source not marked as submitted")
	}
}

func TestUploadCover(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "frank", model.RoleUser)

	upload := func(contentType string, token string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="cover"; filename="cover.PNG"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte("\x89PNG fake image"))
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/uploads/cover", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("image/png", tok)
	expectStatus(t, rec, http.StatusCreated)
	var out map[string]string
	decode(t, rec, &out)
	if !strings.HasPrefix(out["url"], "http://cdn.test/blog-music/covers/") || !strings.HasSuffix(out["url"], ".png") {
		t.Errorf("url = %q", out["url"])
	}
	if len(env.uploader.objects) != 1 {
		t.Errorf("uploaded objects = %d, want 1", len(env.uploader.objects))
	}

	expectStatus(t, upload("text/plain", tok), http.StatusBadRequest)
	expectStatus(t, upload("image/png", ""), http.StatusUnauthorized)

	env.uploader.err = errors.New("bucket gone")
	expectStatus(t, upload("image/png", tok), http.StatusBadGateway)

	env.handler.uploader = nil
	expectStatus(t, upload("image/png", tok), http.StatusServiceUnavailable)
}

func TestContent_BannersAnnouncementsPopups(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", model.RoleAdmin)
	off := false

	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/banners",
		model.BannerRequest{Title: "Second", ImageURL: "http://img/2.png", Position: 2}, admin), http.StatusCreated)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/banners",
		model.BannerRequest{Title: "First", ImageURL: "http://img/1.png", Position: 1}, admin), http.StatusCreated)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/banners",
		model.BannerRequest{Title: "Hidden", ImageURL: "http://img/3.png", Active: &off}, admin), http.StatusCreated)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/banners",
		model.BannerRequest{Title: "No image"}, admin), http.StatusBadRequest)

	var banners []model.Banner
	decode(t, env.do(t, http.MethodGet, "/api/banners", nil, ""), &banners)
	if len(banners) != 2 || banners[0].Title != "First" || banners[1].Title != "Second" {
		t.Fatalf("public banners = %+v", banners)
	}
	decode(t, env.do(t, http.MethodGet, "/api/admin/banners", nil, admin), &banners)
	if len(banners) != 3 {
		t.Fatalf("admin banners = %d, want 3", len(banners))
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/announcements",
		model.AnnouncementRequest{Title: "Low", Content: "x", Priority: 1}, admin), http.StatusCreated)
	rec := env.do(t, http.MethodPost, "/api/admin/announcements",
		model.AnnouncementRequest{Title: "High", Content: "y", Priority: 9}, admin)
	expectStatus(t, rec, http.StatusCreated)
	var high model.Announcement
	decode(t, rec, &high)

	var anns []model.Announcement
	decode(t, env.do(t, http.MethodGet, "/api/announcements", nil, ""), &anns)
	if len(anns) != 2 || anns[0].Title != "High" {
		t.Fatalf("announcements = %+v", anns)
	}
	expectStatus(t, env.do(t, http.MethodPut, "/api/admin/announcements/"+high.ID,
		model.AnnouncementRequest{Title: "High", Content: "y", Priority: 9, IsActive: &off}, admin), http.StatusOK)
	decode(t, env.do(t, http.MethodGet, "/api/announcements", nil, ""), &anns)
	if len(anns) != 1 {
		t.Fatalf("active announcements = %d, want 1", len(anns))
	}
	expectStatus(t, env.do(t, http.MethodDelete, "/api/admin/announcements/missing", nil, admin), http.StatusNotFound)

	past, future := testNow.Add(-time.Hour), testNow.Add(time.Hour)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/popups",
		model.PopupRequest{Title: "Now", StartAt: &past, EndAt: &future}, admin), http.StatusCreated)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/popups",
		model.PopupRequest{Title: "Later", StartAt: &future}, admin), http.StatusCreated)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/popups",
		model.PopupRequest{Title: "Backwards", StartAt: &future, EndAt: &past}, admin), http.StatusBadRequest)

	var popups []model.Popup
	decode(t, env.do(t, http.MethodGet, "/api/popups/active", nil, ""), &popups)
	if len(popups) != 1 || popups[0].Title != "Now" {
		t.Fatalf("active popups = %+v", popups)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", model.RoleAdmin)
	env.approved(t, "A", "https://example.com/a.mp3")
	expectStatus(t, env.do(t, http.MethodPost, "/api/music/submit", model.SubmitMusicRequest{
		Title: "B", Artist: "X", SourceURL: "https://example.com/b.mp3",
	}, ""), http.StatusCreated)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/banners",
		model.BannerRequest{ImageURL: "http://img/1.png"}, admin), http.StatusCreated)

	var stats model.Stats
	decode(t, env.do(t, http.MethodGet, "/api/admin/stats", nil, admin), &stats)
	want := model.Stats{MusicTotal: 2, MusicPending: 1, MusicApproved: 1, Users: 1, Banners: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"database":"ok"`) {
		t.Errorf("healthz body = %s", rec.Body.String())
	}

	env.do(t, http.MethodPost, "/api/music/submit", model.SubmitMusicRequest{
		Title: "A", Artist: "B", SourceURL: "https://example.com/a.mp3",
	}, "")
	rec = env.do(t, http.MethodGet, "/metrics", nil, "")
	expectStatus(t, rec, http.StatusOK)
	for _, want := range []string{
		`blogmusic_submissions_total{result="accepted"} 1`,
		"blogmusic_http_request_duration_seconds",
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestHealth_Degraded(t *testing.T) {
	h := healthHandler(map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	expectStatus(t, rec, http.StatusServiceUnavailable)
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodOptions, "/api/music/submit", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
