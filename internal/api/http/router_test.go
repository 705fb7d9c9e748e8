package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	auth "github.com/mind-engage/mindengage-grader/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grader/internal/exercise"
	"github.com/mind-engage/mindengage-grader/internal/grading"
)

type fakeSyncer struct {
	store exercise.Store
	err   error
	calls []string
}

func (f *fakeSyncer) SyncAttempt(ctx context.Context, id string) error {
	f.calls = append(f.calls, id)
	if f.err != nil {
		_ = f.store.MarkSync(ctx, id, exercise.SyncFailed, f.err.Error())
		return f.err
	}
	return f.store.MarkSync(ctx, id, exercise.SyncOK, "")
}

type testServer struct {
	t      *testing.T
	h      http.Handler
	authn  *auth.AuthService
	store  exercise.Store
	syncer *fakeSyncer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	g := grading.NewDefaultGrader()
	store := exercise.NewInMemoryStore(g)
	a := auth.NewAuthService("test-secret")
	sy := &fakeSyncer{store: store}
	h := NewRouter(Deps{
		Auth:        a,
		Login:       auth.LoginOptions{DevLogin: true},
		EnableLogin: true,
		Grader:      g,
		Store:       store,
		Positions:   exercise.NewPositionIndex(store, 0),
		Syncer:      sy,
		CORSOrigins: []string{"http://localhost:3000"},
	})
	return &testServer{t: t, h: h, authn: a, store: store, syncer: sy}
}

func (s *testServer) do(method, path, user, role string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		tok, err := s.authn.IssueJWT(user, role)
		if err != nil {
			s.t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func ptr(s string) *string { return &s }

func translateExercise(id string, pos int) exercise.Exercise {
	return exercise.Exercise{
		ID: id, UnitID: "u1", Position: pos, Title: "Greetings", Type: grading.TypeTranslate,
		Items: []exercise.ItemDef{
			{ID: "q1", Prompt: "hola", AnswerKey: grading.Key("hello", "hi")},
			{ID: "q2", Prompt: "adiós", AnswerKey: grading.Key("goodbye")},
		},
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	for _, p := range []string{"/healthz", "/readyz"} {
		if rec := s.do(http.MethodGet, p, "", "", nil); rec.Code != http.StatusOK {
			t.Fatalf("%s = %d", p, rec.Code)
		}
	}
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("down") }

func TestReadyzReportsDB(t *testing.T) {
	rec := httptest.NewRecorder()
	ReadyHandler(failingPinger{})(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestLoginRoute(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/auth/login", "", "", map[string]string{
		"username": "ana", "password": "ana", "role": "student",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d %s", rec.Code, rec.Body.String())
	}
	out := decode[map[string]string](t, rec)
	c, err := s.authn.Parse(out["access_token"])
	if err != nil || c.Role != "student" {
		t.Fatalf("token: %+v %v", c, err)
	}
}

func TestGradeEndpoint(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(http.MethodPost, "/grade", "", "", grading.Attempt{}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous = %d", rec.Code)
	}

	rec := s.do(http.MethodPost, "/grade", "ana", "student", grading.Attempt{
		ExerciseType: grading.TypeSelect,
		Items: []grading.Item{
			{ID: "a", Response: ptr("Hola"), Key: grading.Key("hola")},
			{ID: "b", Response: ptr("x"), Key: grading.Key("y")},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("grade = %d %s", rec.Code, rec.Body.String())
	}
	res := decode[grading.Result](t, rec)
	if res.Grade != 0.5 || res.Percent != 50 {
		t.Fatalf("result = %+v", res)
	}

	rec = s.do(http.MethodPost, "/grade", "ana", "student", grading.Attempt{ExerciseType: "essay"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown type = %d", rec.Code)
	}
}

func TestGradeBatchEndpoint(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{"attempts": []grading.Attempt{
		{ExerciseType: grading.TypeFillBlank, Items: []grading.Item{{ID: "a", Response: ptr("cat"), Key: grading.Key("cat")}}},
		{ExerciseType: grading.TypeDictation, Items: []grading.Item{{ID: "a", Response: ptr("the cat"), Key: grading.Key("the cat")}}},
	}}
	rec := s.do(http.MethodPost, "/grade/batch", "t1", "teacher", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("batch = %d %s", rec.Code, rec.Body.String())
	}
	out := decode[struct {
		Results []grading.Result `json:"results"`
	}](t, rec)
	if len(out.Results) != 2 || out.Results[0].Percent != 100 || out.Results[1].Percent != 100 {
		t.Fatalf("results = %+v", out.Results)
	}
}

func TestExerciseRoutes(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(http.MethodPost, "/exercises", "ana", "student", translateExercise("e1", 1)); rec.Code != http.StatusForbidden {
		t.Fatalf("student upload = %d", rec.Code)
	}
	for i, id := range []string{"e1", "e2", "e3"} {
		if rec := s.do(http.MethodPost, "/exercises", "t1", "teacher", translateExercise(id, i+1)); rec.Code != http.StatusOK {
			t.Fatalf("upload %s = %d %s", id, rec.Code, rec.Body.String())
		}
	}
	bad := translateExercise("bad", 9)
	bad.Type = "essay"
	if rec := s.do(http.MethodPost, "/exercises", "t1", "teacher", bad); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid exercise = %d", rec.Code)
	}

	// learners never see answer keys
	e := decode[exercise.Exercise](t, s.do(http.MethodGet, "/exercises/e1", "ana", "student", nil))
	if len(e.Items) != 2 || e.Items[0].AnswerKey != nil {
		t.Fatalf("student view = %+v", e.Items)
	}
	e = decode[exercise.Exercise](t, s.do(http.MethodGet, "/exercises/e1", "t1", "teacher", nil))
	if len(e.Items[0].AnswerKey) != 2 {
		t.Fatalf("teacher view = %+v", e.Items)
	}
	if rec := s.do(http.MethodGet, "/exercises/nope", "ana", "student", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing = %d", rec.Code)
	}

	p := decode[exercise.Position](t, s.do(http.MethodGet, "/exercises/e2/position", "ana", "student", nil))
	if p.PrevID != "e1" || p.NextID != "e3" || p.Index != 1 || p.Total != 3 {
		t.Fatalf("position = %+v", p)
	}

	list := decode[[]exercise.ExerciseSummary](t, s.do(http.MethodGet, "/units/u1/exercises", "ana", "student", nil))
	if len(list) != 3 || list[0].ID != "e1" {
		t.Fatalf("unit = %+v", list)
	}
}

func TestAttemptFlow(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/exercises", "t1", "teacher", translateExercise("e1", 1))

	rec := s.do(http.MethodPost, "/attempts", "ana", "student", map[string]string{"exercise_id": "e1", "user_id": "someone-else"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	a := decode[exercise.Attempt](t, rec)
	if a.UserID != "ana" {
		t.Fatalf("student attempt owner = %q", a.UserID)
	}
	base := "/attempts/" + a.ID

	// another student cannot touch it
	if rec := s.do(http.MethodPost, base+"/responses", "bob", "student", map[string]string{"q1": "x"}); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign save = %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, base, "bob", "student", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign view = %d", rec.Code)
	}

	if rec := s.do(http.MethodPost, base+"/responses", "ana", "student", map[string]string{"q1": "Hello", "q2": "good bye"}); rec.Code != http.StatusOK {
		t.Fatalf("save = %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(http.MethodPost, base+"/responses", "ana", "student", map[string]string{"q9": "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown item = %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, base+"/shown/q2", "ana", "student", nil); rec.Code != http.StatusOK {
		t.Fatalf("shown = %d", rec.Code)
	}

	rec = s.do(http.MethodPost, base+"/submit", "ana", "student", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit = %d %s", rec.Code, rec.Body.String())
	}
	a = decode[exercise.Attempt](t, rec)
	// q1 matches, q2 was shown and counts as full credit under force_shown
	if a.Status != exercise.StatusSubmitted || a.Grade != 1 || a.Percent != 100 {
		t.Fatalf("submitted = %+v", a)
	}
	if a.SyncStatus != exercise.SyncOK || len(s.syncer.calls) != 1 {
		t.Fatalf("sync = %q calls=%v", a.SyncStatus, s.syncer.calls)
	}

	if rec := s.do(http.MethodPost, base+"/responses", "ana", "student", map[string]string{"q1": "x"}); rec.Code != http.StatusConflict {
		t.Fatalf("save after submit = %d", rec.Code)
	}

	// teacher sees it, student list is scoped
	if rec := s.do(http.MethodGet, base, "t1", "teacher", nil); rec.Code != http.StatusOK {
		t.Fatalf("teacher view = %d", rec.Code)
	}
	s.do(http.MethodPost, "/attempts", "bob", "student", map[string]string{"exercise_id": "e1"})
	mine := decode[[]exercise.Attempt](t, s.do(http.MethodGet, "/attempts?user_id=bob", "ana", "student", nil))
	if len(mine) != 1 || mine[0].UserID != "ana" {
		t.Fatalf("student list = %+v", mine)
	}
	all := decode[[]exercise.Attempt](t, s.do(http.MethodGet, "/attempts?exercise_id=e1", "t1", "teacher", nil))
	if len(all) != 2 {
		t.Fatalf("teacher list = %d", len(all))
	}

	if rec := s.do(http.MethodGet, "/attempts/missing", "ana", "student", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing attempt = %d", rec.Code)
	}
}

func TestSubmitKeepsGradeWhenSyncFails(t *testing.T) {
	s := newTestServer(t)
	s.syncer.err = errors.New("gradebook down")
	s.do(http.MethodPost, "/exercises", "t1", "teacher", translateExercise("e1", 1))
	a := decode[exercise.Attempt](t, s.do(http.MethodPost, "/attempts", "ana", "student", map[string]string{"exercise_id": "e1"}))

	rec := s.do(http.MethodPost, "/attempts/"+a.ID+"/submit", "ana", "student", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit = %d", rec.Code)
	}
	a = decode[exercise.Attempt](t, rec)
	if a.SyncStatus != exercise.SyncFailed || a.SyncError != "gradebook down" {
		t.Fatalf("sync state = %q %q", a.SyncStatus, a.SyncError)
	}

	if rec := s.do(http.MethodPost, "/attempts/"+a.ID+"/sync", "ana", "student", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("student sync = %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/attempts/"+a.ID+"/sync", "t1", "teacher", nil); rec.Code != http.StatusBadGateway {
		t.Fatalf("teacher sync while down = %d", rec.Code)
	}
	s.syncer.err = nil
	rec = s.do(http.MethodPost, "/attempts/"+a.ID+"/sync", "t1", "teacher", nil)
	if rec.Code != http.StatusOK || decode[exercise.Attempt](t, rec).SyncStatus != exercise.SyncOK {
		t.Fatalf("retry sync = %d", rec.Code)
	}
}

func TestGradeRecording(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/exercises", "t1", "teacher", translateExercise("e1", 1))

	rec := s.do(http.MethodPost, "/exercises/e1/grades", "ana", "student", map[string]any{"user_id": "bob", "grade": 0.756})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record = %d %s", rec.Code, rec.Body.String())
	}
	g := decode[exercise.GradeRecord](t, rec)
	if g.UserID != "ana" || g.Grade != 0.76 || g.Percent != 76 {
		t.Fatalf("grade = %+v", g)
	}
	if rec := s.do(http.MethodPost, "/exercises/e1/grades", "ana", "student", map[string]any{"grade": 1.5}); rec.Code != http.StatusBadRequest {
		t.Fatalf("out of range = %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/exercises/nope/grades", "ana", "student", map[string]any{"grade": 0.5}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown exercise = %d", rec.Code)
	}
	s.do(http.MethodPost, "/exercises/e1/grades", "t1", "teacher", map[string]any{"user_id": "bob", "grade": 0.2})

	mine := decode[[]exercise.GradeRecord](t, s.do(http.MethodGet, "/grades", "ana", "student", nil))
	if len(mine) != 1 || mine[0].UserID != "ana" {
		t.Fatalf("student grades = %+v", mine)
	}
	bobs := decode[[]exercise.GradeRecord](t, s.do(http.MethodGet, "/grades?user_id=bob", "t1", "teacher", nil))
	if len(bobs) != 1 || bobs[0].Percent != 20 {
		t.Fatalf("teacher grades = %+v", bobs)
	}
}
