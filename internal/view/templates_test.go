package view

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquee-ott/marquee/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderNavigationFollowsPrincipal(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, engine.Render(rec, "pages/landing.html", TemplateData{Title: "Marquee"}))
	assert.Contains(t, rec.Body.String(), `href="/auth/login"`)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	require.NoError(t, engine.Render(rec, "pages/landing.html", TemplateData{
		Title:     "Marquee",
		CSRFToken: "tok",
		Principal: &shared.Principal{ID: 1, Email: "staff@example.com", IsStaff: true},
	}))
	body := rec.Body.String()
	assert.Contains(t, body, `href="/admin/dashboard"`)
	assert.True(t, strings.Contains(body, `action="/auth/logout"`))
}

func TestRenderNilEngine(t *testing.T) {
	var engine *Engine
	assert.Error(t, engine.Render(httptest.NewRecorder(), "pages/landing.html", TemplateData{}))
}
