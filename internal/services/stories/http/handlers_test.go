package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	perr "newswire/internal/platform/errors"
	phttp "newswire/internal/platform/net/http"
	"newswire/internal/services/stories/domain"
)

type fakeQuery struct {
	lastList domain.ListQuery
	listRes  domain.ListResult
	listErr  error
	storyErr error
}

func (f *fakeQuery) TopStories(context.Context) ([]int64, error) { return nil, nil }

func (f *fakeQuery) Story(_ context.Context, id int64) (domain.Story, error) {
	if f.storyErr != nil {
		return domain.Story{}, f.storyErr
	}
	return domain.Story{ID: id, Title: "cached", Type: "story"}, nil
}

func (f *fakeQuery) List(_ context.Context, q domain.ListQuery) (domain.ListResult, error) {
	f.lastList = q
	return f.listRes, f.listErr
}

func newTestRouter(q domain.QueryPort) stdhttp.Handler {
	mux := chi.NewRouter()
	r := phttp.AdaptChi(mux)
	r.Route("/stories", func(sub phttp.Router) {
		Register(sub, q)
	})
	return mux
}

func do(t *testing.T, h stdhttp.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, path, nil))
	return rec
}

func TestList_BindsQueryParams(t *testing.T) {
	t.Parallel()

	q := &fakeQuery{listRes: domain.ListResult{
		Stories: []domain.Story{{ID: 1, Title: "t", Type: "story"}},
		HasMore: true,
		Total:   45,
	}}
	h := newTestRouter(q)

	rec := do(t, h, "/stories?page=2&limit=20&search=go&sort=score&identifier=u1")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if q.lastList.Page != 2 || q.lastList.Limit != 20 || q.lastList.Search != "go" ||
		q.lastList.Sort != "score" || q.lastList.Identifier != "u1" {
		t.Fatalf("bound query = %+v", q.lastList)
	}

	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data, _ := json.Marshal(env.Data)
	var res domain.ListResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !res.HasMore || res.Total != 45 || len(res.Stories) != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestList_DefaultsIdentifierToRemoteAddr(t *testing.T) {
	t.Parallel()

	q := &fakeQuery{}
	h := newTestRouter(q)
	do(t, h, "/stories")
	if q.lastList.Identifier == "" {
		t.Fatalf("identifier not defaulted")
	}
}

func TestList_RejectsBadParams(t *testing.T) {
	t.Parallel()

	h := newTestRouter(&fakeQuery{})
	cases := []string{
		"/stories?limit=abc",
		"/stories?limit=500",
		"/stories?page=-1",
		"/stories?sort=upvotes",
	}
	for _, path := range cases {
		if rec := do(t, h, path); rec.Code != stdhttp.StatusBadRequest {
			t.Fatalf("%s status = %d, want 400", path, rec.Code)
		}
	}
}

func TestList_LimiterDenialIs429(t *testing.T) {
	t.Parallel()

	q := &fakeQuery{listErr: perr.TooManyRequestsf("rate limit exceeded")}
	h := newTestRouter(q)
	if rec := do(t, h, "/stories"); rec.Code != stdhttp.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestByID_ReturnsStory(t *testing.T) {
	t.Parallel()

	h := newTestRouter(&fakeQuery{})
	rec := do(t, h, "/stories/42")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestByID_RejectsNonNumericID(t *testing.T) {
	t.Parallel()

	h := newTestRouter(&fakeQuery{})
	if rec := do(t, h, "/stories/abc"); rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestByID_MissingStoryIs404(t *testing.T) {
	t.Parallel()

	q := &fakeQuery{storyErr: perr.NotFoundf("story 7 missing")}
	h := newTestRouter(q)
	if rec := do(t, h, "/stories/7"); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
