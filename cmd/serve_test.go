package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fightcard/internal/analysis"
	"github.com/sells-group/fightcard/internal/model"
)

type analyzerFunc func(ctx context.Context, card *model.Card) (*analysis.Run, error)

func (f analyzerFunc) Run(ctx context.Context, card *model.Card) (*analysis.Run, error) {
	return f(ctx, card)
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHandler_Index(t *testing.T) {
	h := newHandler(nil, []string{"*"})
	rr := serve(t, h, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "UFC Card Analysis API", body["message"])
	assert.Equal(t, "/analyze-card", body["endpoint"])
}

func TestHandler_Health(t *testing.T) {
	h := newHandler(nil, []string{"*"})
	rr := serve(t, h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestHandler_AnalyzeCard(t *testing.T) {
	h := newHandler(testPipeline(t, &stubInvoker{analyses: twoPicks()}), []string{"*"})
	rr := serve(t, h, http.MethodPost, "/analyze-card", twoFightJSON)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	_, err := uuid.Parse(rr.Header().Get(headerRunID))
	assert.NoError(t, err)
	assert.Empty(t, rr.Header().Get(headerDegraded))

	var result model.CardAnalysis
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.Len(t, result.Analyses, 2)
	byID := result.ByFightID()
	assert.Equal(t, "A", byID["f1"].Pick)
	assert.Equal(t, "D", byID["f2"].Pick)
}

func TestHandler_AnalyzeCard_JudgeFailure(t *testing.T) {
	h := newHandler(testPipeline(t, &stubInvoker{failJudge: true}), []string{"*"})
	rr := serve(t, h, http.MethodPost, "/analyze-card", twoFightJSON)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "judge", rr.Header().Get(headerDegraded))
	assert.JSONEq(t, `{"analyses":[]}`, rr.Body.String())
}

func TestHandler_AnalyzeCard_InvalidBody(t *testing.T) {
	h := newHandler(testPipeline(t, &stubInvoker{}), []string{"*"})
	rr := serve(t, h, http.MethodPost, "/analyze-card", `{"fights": [`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeError(t, rr)
	assert.Equal(t, "invalid request body", body.Detail)
	assert.NotEmpty(t, body.Errors)
}

func TestHandler_AnalyzeCard_UnknownRole(t *testing.T) {
	h := newHandler(testPipeline(t, &stubInvoker{}), []string{"*"})
	rr := serve(t, h, http.MethodPost, "/analyze-card",
		`{"fights":[{"fight_id":"f1","fighter1":"A","fighter2":"B","weight_class":"Lightweight"}],"agent_models":{"referee":"gpt-5"}}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_AnalyzeCard_ValidationError(t *testing.T) {
	h := newHandler(testPipeline(t, &stubInvoker{}), []string{"*"})
	rr := serve(t, h, http.MethodPost, "/analyze-card",
		`{"fights":[{"fight_id":"f1","fighter1":"Jon Jones","fighter2":"jon jones","weight_class":"Heavyweight"}]}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeError(t, rr)
	assert.Equal(t, "invalid card", body.Detail)
	require.NotEmpty(t, body.Errors)
	assert.Contains(t, body.Errors[0], "fighters cannot be the same person")
}

func TestHandler_AnalyzeCard_UnsupportedModelOverride(t *testing.T) {
	h := newHandler(testPipeline(t, &stubInvoker{}), []string{"*"})
	rr := serve(t, h, http.MethodPost, "/analyze-card",
		`{"fights":[{"fight_id":"f1","fighter1":"A","fighter2":"B","weight_class":"Lightweight"}],"agent_models":{"judge":"llama-3"}}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeError(t, rr)
	require.NotEmpty(t, body.Errors)
	assert.Contains(t, body.Errors[0], "agent_models.judge")
}

func TestHandler_AnalyzeCard_NoPredictions(t *testing.T) {
	h := newHandler(analyzerFunc(func(context.Context, *model.Card) (*analysis.Run, error) {
		return nil, analysis.ErrNoPredictions
	}), []string{"*"})
	rr := serve(t, h, http.MethodPost, "/analyze-card", twoFightJSON)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, decodeError(t, rr).Detail, "no predictions")
}

func TestHandler_AnalyzeCard_PipelineError(t *testing.T) {
	id := uuid.New()
	h := newHandler(analyzerFunc(func(context.Context, *model.Card) (*analysis.Run, error) {
		return nil, &analysis.PipelineError{RunID: id, Stage: "judge", Err: eris.New("panic: boom")}
	}), []string{"*"})
	rr := serve(t, h, http.MethodPost, "/analyze-card", twoFightJSON)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, id.String(), rr.Header().Get(headerRunID))
	body := decodeError(t, rr)
	assert.Equal(t, "analysis failed", body.Detail)
	assert.NotContains(t, rr.Body.String(), "boom")
}

func TestHandler_AnalyzeCard_DegradedHeaderOrder(t *testing.T) {
	h := newHandler(analyzerFunc(func(context.Context, *model.Card) (*analysis.Run, error) {
		return &analysis.Run{
			ID:       uuid.New(),
			Analysis: model.NewCardAnalysis(nil),
			Stages: []analysis.StageReport{
				{Role: model.RoleTapeStudy, Outcome: analysis.Degraded},
				{Role: model.RoleStatsTrends, Outcome: analysis.Succeeded},
				{Role: model.RoleJudge, Outcome: analysis.Failed},
			},
		}, nil
	}), []string{"*"})
	rr := serve(t, h, http.MethodPost, "/analyze-card", twoFightJSON)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "tape_study,judge", rr.Header().Get(headerDegraded))
}

func TestHandler_AnalyzeCard_BodyTooLarge(t *testing.T) {
	called := false
	h := newHandler(analyzerFunc(func(context.Context, *model.Card) (*analysis.Run, error) {
		called = true
		return nil, nil
	}), []string{"*"})
	big := `{"fights":[],"pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rr := serve(t, h, http.MethodPost, "/analyze-card", big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.False(t, called)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := newHandler(nil, []string{"*"})
	rr := serve(t, h, http.MethodGet, "/analyze-card", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandler_CORSPreflight(t *testing.T) {
	h := newHandler(nil, []string{"*"})
	req := httptest.NewRequest(http.MethodOptions, "/analyze-card", nil)
	req.Header.Set("Origin", "http://localhost:8501")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoleList(t *testing.T) {
	assert.Equal(t, "", roleList(nil))
	assert.Equal(t, "judge,risk_scorer", roleList([]model.Role{model.RoleJudge, model.RoleRiskScorer}))
}
