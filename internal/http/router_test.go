package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tally/internal/auth"
	"tally/internal/cache"
	"tally/internal/calendar"
	"tally/internal/config"
	"tally/internal/db/dbtest"
	httpx "tally/internal/http"
	"tally/internal/logx"
)

type client struct {
	t     *testing.T
	srv   *httptest.Server
	token string
}

func newClient(t *testing.T) *client {
	t.Helper()
	gdb := dbtest.New(t)
	log := logx.Discard()
	svc := httpx.NewServices(gdb, cache.NewMemory(), log, true)
	jwtSvc := auth.NewJWT("test-secret", time.Hour)
	srv := httptest.NewServer(httpx.NewRouter(config.Config{}, svc, jwtSvc, log))
	t.Cleanup(srv.Close)
	return &client{t: t, srv: srv}
}

// do sends body as JSON and decodes the response into out when out is set.
func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rd)
	if err != nil {
		c.t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.srv.Client().Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if out != nil && res.StatusCode < 300 {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return res.StatusCode
}

func (c *client) login(email string) {
	c.t.Helper()
	var tok struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": "correct-horse"}
	if code := c.do(http.MethodPost, "/auth/register", body, &tok); code != http.StatusCreated {
		c.t.Fatalf("register = %d", code)
	}
	if tok.Token == "" {
		c.t.Fatalf("register returned no token")
	}
	c.token = tok.Token
}

type sessionResp struct {
	ID         string  `json:"id"`
	MaxScore   float64 `json:"maxScore"`
	Categories []struct {
		ID         string  `json:"id"`
		Name       string  `json:"name"`
		Importance float64 `json:"importance"`
	} `json:"categories"`
	Data []dayResp `json:"data"`
}

type dayResp struct {
	ID              string  `json:"id"`
	TotalScore      float64 `json:"totalScore"`
	MaxScore        float64 `json:"maxScore"`
	PercentageScore float64 `json:"percentageScore"`
}

func TestRouter_Health(t *testing.T) {
	c := newClient(t)
	if code := c.do(http.MethodGet, "/health", nil, nil); code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	c := newClient(t)
	if code := c.do(http.MethodGet, "/sessions", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("sessions without token = %d", code)
	}
	c.token = "garbage"
	if code := c.do(http.MethodPost, "/auth/validate", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("validate garbage = %d", code)
	}
}

func TestRouter_AuthFlow(t *testing.T) {
	c := newClient(t)
	c.login("ada@example.com")

	var me auth.User
	if code := c.do(http.MethodGet, "/me", nil, &me); code != http.StatusOK || me.Email != "ada@example.com" || me.Username != "ada" {
		t.Fatalf("me = %d %+v", code, me)
	}
	var valid struct {
		Valid bool        `json:"valid"`
		User  auth.Claims `json:"user"`
	}
	if code := c.do(http.MethodPost, "/auth/validate", nil, &valid); code != http.StatusOK || !valid.Valid || valid.User.UserID != me.ID {
		t.Fatalf("validate = %d %+v", code, valid)
	}
	if code := c.do(http.MethodPost, "/auth/refresh", nil, nil); code != http.StatusOK {
		t.Fatalf("refresh = %d", code)
	}

	c.token = ""
	dup := map[string]string{"email": "ada@example.com", "password": "correct-horse"}
	if code := c.do(http.MethodPost, "/auth/register", dup, nil); code != http.StatusConflict {
		t.Fatalf("duplicate register = %d", code)
	}
	bad := map[string]string{"email": "ada@example.com", "password": "wrong-password"}
	if code := c.do(http.MethodPost, "/auth/login", bad, nil); code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", code)
	}
}

func TestRouter_SessionDayStatsFlow(t *testing.T) {
	c := newClient(t)
	c.login("grace@example.com")

	today := calendar.DateOf(time.Now())
	start := today.AddDate(0, 0, -14)

	var sess sessionResp
	code := c.do(http.MethodPost, "/sessions/configure", map[string]any{
		"title": "Spring",
		"start": calendar.YMD(start),
		"categories": []map[string]any{
			{"name": "Exercise", "importance": 1},
			{"name": "Reading", "importance": 2},
		},
	}, &sess)
	if code != http.StatusCreated || sess.MaxScore != 30 || len(sess.Categories) != 2 {
		t.Fatalf("configure = %d %+v", code, sess)
	}
	exercise, reading := sess.Categories[0].ID, sess.Categories[1].ID

	scores := []map[string]any{
		{"category": exercise, "score": 5},
		{"category": reading, "score": 8},
	}
	var d dayResp
	code = c.do(http.MethodPost, "/days", map[string]any{
		"session":    sess.ID,
		"date":       calendar.YMD(today),
		"categories": scores,
	}, &d)
	if code != http.StatusCreated || d.TotalScore != 21 || d.MaxScore != 30 || d.PercentageScore != 70 {
		t.Fatalf("create day = %d %+v", code, d)
	}

	dup := map[string]any{"session": sess.ID, "date": calendar.YMD(today), "categories": scores}
	if code := c.do(http.MethodPost, "/days", dup, nil); code != http.StatusConflict {
		t.Fatalf("duplicate day = %d", code)
	}

	var dash struct {
		WeekBars []struct {
			TotalScore float64 `json:"totalScore"`
		} `json:"weekBars"`
		IsFirstWeek bool `json:"isFirstWeek"`
	}
	if code := c.do(http.MethodGet, "/dashboard/"+sess.ID, nil, &dash); code != http.StatusOK || len(dash.WeekBars) != 7 || !dash.IsFirstWeek {
		t.Fatalf("dashboard = %d %+v", code, dash)
	}
	if dash.WeekBars[calendar.WeekdayIndex(today)].TotalScore != 21 {
		t.Fatalf("today's bar = %+v", dash.WeekBars)
	}

	var rep struct {
		Status string `json:"status"`
	}
	if code := c.do(http.MethodGet, "/stats/day/"+sess.ID+"/"+calendar.YMD(today), nil, &rep); code != http.StatusOK || rep.Status != "exists" {
		t.Fatalf("day report = %d %+v", code, rep)
	}
	if code := c.do(http.MethodGet, "/stats/day/"+sess.ID+"/not-a-date", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad date = %d", code)
	}

	var updated dayResp
	partial := []map[string]any{{"category": exercise, "score": 10}}
	if code := c.do(http.MethodPut, "/days/"+d.ID, partial, &updated); code != http.StatusOK || updated.TotalScore != 26 {
		t.Fatalf("update day = %d %+v", code, updated)
	}

	var all map[string]dayResp
	if code := c.do(http.MethodGet, "/days/session/"+sess.ID+"/all", nil, &all); code != http.StatusOK || all[calendar.YMD(today)].TotalScore != 26 {
		t.Fatalf("all days = %d %+v", code, all)
	}
	var month map[string]dayResp
	if code := c.do(http.MethodGet, "/days/session/"+sess.ID+"?monthOffset=0", nil, &month); code != http.StatusOK || len(month) != 1 {
		t.Fatalf("month = %d %+v", code, month)
	}
	if code := c.do(http.MethodGet, "/days/session/"+sess.ID+"?monthOffset=x", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad monthOffset = %d", code)
	}

	var detail struct {
		Category struct {
			Name string `json:"name"`
		} `json:"category"`
	}
	if code := c.do(http.MethodGet, "/categories/"+reading, nil, &detail); code != http.StatusOK || detail.Category.Name != "Reading" {
		t.Fatalf("category detail = %d %+v", code, detail)
	}

	var reweighed struct {
		Importance float64 `json:"importance"`
	}
	if code := c.do(http.MethodPut, "/categories/"+reading, map[string]any{"importance": 3}, &reweighed); code != http.StatusOK || reweighed.Importance != 3 {
		t.Fatalf("reweigh = %d %+v", code, reweighed)
	}
	var got sessionResp
	if code := c.do(http.MethodGet, "/sessions/"+sess.ID, nil, &got); code != http.StatusOK || got.MaxScore != 40 || len(got.Data) != 1 || got.Data[0].MaxScore != 30 {
		t.Fatalf("session after reweigh = %d %+v", code, got)
	}

	if code := c.do(http.MethodDelete, "/sessions/"+sess.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete session = %d", code)
	}
	if code := c.do(http.MethodGet, "/sessions/"+sess.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("deleted session = %d", code)
	}
}

func TestRouter_OtherUserSeesNothing(t *testing.T) {
	c := newClient(t)
	c.login("owner@example.com")
	var sess sessionResp
	if code := c.do(http.MethodPost, "/sessions", nil, &sess); code != http.StatusCreated {
		t.Fatalf("create session = %d", code)
	}

	c.login("intruder@example.com")
	if code := c.do(http.MethodGet, "/sessions/"+sess.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("foreign session = %d", code)
	}
	if code := c.do(http.MethodGet, "/dashboard/"+sess.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("foreign dashboard = %d", code)
	}
	if code := c.do(http.MethodGet, "/sessions/not-a-uuid", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad id = %d", code)
	}
}

func TestRouter_CreateCategories(t *testing.T) {
	c := newClient(t)
	c.login("cat@example.com")

	var one struct {
		Name  string `json:"name"`
		Color struct {
			Hex string `json:"hex"`
		} `json:"color"`
	}
	if code := c.do(http.MethodPost, "/categories", map[string]any{"name": "Sleep"}, &one); code != http.StatusCreated || one.Color.Hex != "#9ca3af" {
		t.Fatalf("create one = %d %+v", code, one)
	}

	batch := []map[string]any{{"name": "Diet"}, {"name": "", "importance": 1}}
	if code := c.do(http.MethodPost, "/categories", batch, nil); code != http.StatusBadRequest {
		t.Fatalf("invalid batch = %d", code)
	}
	var list []map[string]any
	if code := c.do(http.MethodGet, "/categories", nil, &list); code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list after rolled back batch = %d %v", code, list)
	}
	if code := c.do(http.MethodPut, "/categories/"+uuidOf(t, list[0]), map[string]any{}, nil); code != http.StatusBadRequest {
		t.Fatalf("empty update = %d", code)
	}
}

func TestRouter_BackfillEmptySession(t *testing.T) {
	c := newClient(t)
	c.login("late@example.com")
	today := calendar.DateOf(time.Now())

	var sess sessionResp
	if code := c.do(http.MethodPost, "/sessions", nil, &sess); code != http.StatusCreated {
		t.Fatalf("create session = %d", code)
	}
	var cat map[string]any
	if code := c.do(http.MethodPost, "/categories", map[string]any{"name": "Focus", "session": sess.ID}, &cat); code != http.StatusCreated {
		t.Fatalf("create category = %d", code)
	}
	var updated sessionResp
	if code := c.do(http.MethodPut, "/sessions/"+sess.ID, map[string]any{"categories": []string{uuidOf(t, cat)}}, &updated); code != http.StatusOK || updated.MaxScore != 10 {
		t.Fatalf("set categories = %d %+v", code, updated)
	}

	scores := []map[string]any{{"category": uuidOf(t, cat), "score": 6}}
	var d dayResp
	past := map[string]any{"session": sess.ID, "date": calendar.YMD(today.AddDate(0, 0, -3)), "categories": scores}
	if code := c.do(http.MethodPost, "/days", past, &d); code != http.StatusCreated || d.TotalScore != 6 {
		t.Fatalf("backfill day = %d %+v", code, d)
	}

	if code := c.do(http.MethodPut, "/sessions/"+sess.ID, map[string]any{"end": calendar.YMD(today)}, nil); code != http.StatusOK {
		t.Fatalf("set end = %d", code)
	}
	late := map[string]any{"session": sess.ID, "date": calendar.YMD(today.AddDate(0, 0, 1)), "categories": scores}
	if code := c.do(http.MethodPost, "/days", late, nil); code != http.StatusBadRequest {
		t.Fatalf("day after end = %d", code)
	}
}

func TestRouter_DeleteSessionSharingItsCategory(t *testing.T) {
	c := newClient(t)
	c.login("share@example.com")

	var first, second sessionResp
	if code := c.do(http.MethodPost, "/sessions/configure", map[string]any{
		"categories": []map[string]any{{"name": "Exercise"}},
	}, &first); code != http.StatusCreated {
		t.Fatalf("configure first = %d", code)
	}
	if code := c.do(http.MethodPost, "/sessions/configure", map[string]any{
		"categories": []map[string]any{{"name": "Reading"}},
	}, &second); code != http.StatusCreated {
		t.Fatalf("configure second = %d", code)
	}
	a, b := first.Categories[0].ID, second.Categories[0].ID

	if code := c.do(http.MethodPut, "/sessions/"+second.ID, map[string]any{"categories": []string{b, a}}, nil); code != http.StatusOK {
		t.Fatalf("share category = %d", code)
	}
	var dash struct {
		WeekCategoryData map[string]any `json:"weekCategoryData"`
	}
	if code := c.do(http.MethodGet, "/dashboard/"+second.ID, nil, &dash); code != http.StatusOK || len(dash.WeekCategoryData) != 2 {
		t.Fatalf("dashboard before delete = %d %+v", code, dash)
	}

	if code := c.do(http.MethodDelete, "/sessions/"+first.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete first = %d", code)
	}

	var got sessionResp
	if code := c.do(http.MethodGet, "/sessions/"+second.ID, nil, &got); code != http.StatusOK || got.MaxScore != 10 || len(got.Categories) != 1 || got.Categories[0].ID != b {
		t.Fatalf("second session after delete = %d %+v", code, got)
	}
	dash.WeekCategoryData = nil
	if code := c.do(http.MethodGet, "/dashboard/"+second.ID, nil, &dash); code != http.StatusOK || len(dash.WeekCategoryData) != 1 {
		t.Fatalf("dashboard after delete = %d %+v", code, dash)
	}
	day := map[string]any{
		"session":    second.ID,
		"date":       calendar.YMD(calendar.DateOf(time.Now())),
		"categories": []map[string]any{{"category": b, "score": 4}},
	}
	if code := c.do(http.MethodPost, "/days", day, nil); code != http.StatusCreated {
		t.Fatalf("day in second session = %d", code)
	}
}

func TestRouter_CategoryEditsRefreshCachedStats(t *testing.T) {
	c := newClient(t)
	c.login("rename@example.com")
	today := calendar.YMD(calendar.DateOf(time.Now()))

	var sess sessionResp
	if code := c.do(http.MethodPost, "/sessions/configure", map[string]any{
		"categories": []map[string]any{{"name": "Exercise"}, {"name": "Reading"}},
	}, &sess); code != http.StatusCreated {
		t.Fatalf("configure = %d", code)
	}
	exercise, reading := sess.Categories[0].ID, sess.Categories[1].ID

	var dash struct {
		WeekCategoryData map[string]any `json:"weekCategoryData"`
	}
	if code := c.do(http.MethodGet, "/dashboard/"+sess.ID, nil, &dash); code != http.StatusOK || len(dash.WeekCategoryData) != 2 {
		t.Fatalf("dashboard = %d %+v", code, dash)
	}
	if code := c.do(http.MethodDelete, "/categories/"+reading, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete category = %d", code)
	}
	dash.WeekCategoryData = nil
	if code := c.do(http.MethodGet, "/dashboard/"+sess.ID, nil, &dash); code != http.StatusOK || len(dash.WeekCategoryData) != 1 {
		t.Fatalf("dashboard after category delete = %d %+v", code, dash)
	}
	if _, ok := dash.WeekCategoryData[exercise]; !ok {
		t.Fatalf("remaining category missing: %+v", dash)
	}

	day := map[string]any{
		"session":    sess.ID,
		"date":       today,
		"categories": []map[string]any{{"category": exercise, "score": 7}},
	}
	if code := c.do(http.MethodPost, "/days", day, nil); code != http.StatusCreated {
		t.Fatalf("create day = %d", code)
	}
	var rep struct {
		CategoryBars []struct {
			Category string `json:"category"`
		} `json:"categoryBars"`
	}
	path := "/stats/day/" + sess.ID + "/" + today
	if code := c.do(http.MethodGet, path, nil, &rep); code != http.StatusOK || len(rep.CategoryBars) != 1 || rep.CategoryBars[0].Category != "Exercise" {
		t.Fatalf("day report = %d %+v", code, rep)
	}
	if code := c.do(http.MethodPut, "/categories/"+exercise, map[string]any{"name": "Running"}, nil); code != http.StatusOK {
		t.Fatalf("rename = %d", code)
	}
	rep.CategoryBars = nil
	if code := c.do(http.MethodGet, path, nil, &rep); code != http.StatusOK || len(rep.CategoryBars) != 1 || rep.CategoryBars[0].Category != "Running" {
		t.Fatalf("day report after rename = %d %+v", code, rep)
	}
}

func TestRouter_CategoryUpdateAllOrNothing(t *testing.T) {
	c := newClient(t)
	c.login("atomic@example.com")

	var cat map[string]any
	if code := c.do(http.MethodPost, "/categories", map[string]any{"name": "Sleep"}, &cat); code != http.StatusCreated {
		t.Fatalf("create = %d", code)
	}
	id := uuidOf(t, cat)
	if code := c.do(http.MethodPut, "/categories/"+id, map[string]any{"name": "Nap", "importance": -1}, nil); code != http.StatusBadRequest {
		t.Fatalf("update with bad importance = %d", code)
	}
	var detail struct {
		Category struct {
			Name       string  `json:"name"`
			Importance float64 `json:"importance"`
		} `json:"category"`
	}
	if code := c.do(http.MethodGet, "/categories/"+id, nil, &detail); code != http.StatusOK || detail.Category.Name != "Sleep" || detail.Category.Importance != 1 {
		t.Fatalf("category after rejected update = %d %+v", code, detail)
	}
	if code := c.do(http.MethodPut, "/categories/"+id, map[string]any{"name": "Nap", "importance": 2}, nil); code != http.StatusOK {
		t.Fatalf("valid update = %d", code)
	}
	if code := c.do(http.MethodGet, "/categories/"+id, nil, &detail); code != http.StatusOK || detail.Category.Name != "Nap" || detail.Category.Importance != 2 {
		t.Fatalf("category after update = %d %+v", code, detail)
	}
}

func uuidOf(t *testing.T, m map[string]any) string {
	t.Helper()
	id, ok := m["id"].(string)
	if !ok {
		t.Fatalf("no id in %v", m)
	}
	return id
}
