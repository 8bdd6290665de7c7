package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/kingston-civic/civicsim/pkg/agents"
	"github.com/kingston-civic/civicsim/pkg/cache"
	"github.com/kingston-civic/civicsim/pkg/jobs"
	"github.com/kingston-civic/civicsim/pkg/ledger"
	"github.com/kingston-civic/civicsim/pkg/session"
	"github.com/kingston-civic/civicsim/pkg/simulation"
	"github.com/kingston-civic/civicsim/pkg/store"
)

const (
	interpretReply = `{
		"ok": true,
		"proposal": {
			"type": "policy",
			"title": "Free Transit Pilot",
			"summary": "Fare-free buses for six months.",
			"location": {"kind": "none"},
			"parameters": {"scale": 1.0}
		},
		"assumptions": ["Existing fleet capacity"],
		"confidence": 0.9
	}`
	reactionReply = `{"stance": "support", "intensity": 0.6, "quote": "Works for me."}`
	townhallReply = `{
		"moderator_summary": "Lively but civil.",
		"turns": [
			{"speaker": "Moderator", "text": "Welcome."},
			{"speaker": "Marcus Chen", "text": "Good for foot traffic."},
			{"speaker": "Patricia Lawson", "text": "Who pays for it?"},
			{"speaker": "Jordan Okafor", "text": "Students are all in."},
			{"speaker": "Moderator", "text": "Closing."}
		],
		"compromise_options": ["Start with weekends"]
	}`
	dmReply         = "I hear you, but my neighbours come first."
	dmAssessment    = `{"relationship_delta": 0.2, "stance_changed": false, "reason": "Common ground on transit"}`
	clarifyingReply = `{"ok": false, "clarifying_questions": ["Which routes?"]}`
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeGateway answers by first matching substring rule and records every
// message it receives.
type fakeGateway struct {
	mu    sync.Mutex
	rules [][2]string
	errOn string
	sent  []string

	threadSeq int32
}

func (g *fakeGateway) on(contains, reply string) *fakeGateway {
	g.rules = append(g.rules, [2]string{contains, reply})
	return g
}

func (g *fakeGateway) CreateAssistant(context.Context, string, string) (string, error) {
	return "asst", nil
}

func (g *fakeGateway) CreateThread(context.Context, string) (string, error) {
	return fmt.Sprintf("thread-%d", atomic.AddInt32(&g.threadSeq, 1)), nil
}

func (g *fakeGateway) SendMessage(_ context.Context, _, content, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, content)
	if g.errOn != "" && strings.Contains(content, g.errOn) {
		return "", fmt.Errorf("fake upstream failure")
	}
	for _, rule := range g.rules {
		if strings.Contains(content, rule[0]) {
			return rule[1], nil
		}
	}
	return "", fmt.Errorf("no scripted reply")
}

func (g *fakeGateway) sentMessages() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.sent...)
}

func happyGateway() *fakeGateway {
	return (&fakeGateway{}).
		on("USER MESSAGE:", interpretReply).
		on("A civic proposal has been made", reactionReply).
		on("town hall meeting", townhallReply).
		on("[DIRECT MESSAGE]", dmReply).
		on("Respond with ONLY valid JSON", dmAssessment)
}

type testEnv struct {
	server   *Server
	gateway  *fakeGateway
	sessions *session.Store
	jobStore *jobs.Store
	repos    *store.Store
}

// newTestEnv wires a server over the fake gateway. db may be nil; the
// database-backed endpoints are only exercised by tests that supply one.
func newTestEnv(t *testing.T, gw *fakeGateway, db *sql.DB) *testEnv {
	t.Helper()
	logger := slog.Default()

	sessions := session.NewStore()

	var repos *store.Store
	var jobRepo *store.JobRepo
	if db != nil {
		repos = store.New(db)
		jobRepo = repos.Jobs
	}
	jobStore := jobs.NewStore(jobRepo, time.Hour, logger)

	deps := Deps{
		Orchestrator: simulation.New(gw, sessions, jobStore, logger),
		DM:           agents.NewDirectMessenger(gw, logger),
		Adopter:      agents.NewAdopter(gw, logger),
		Sessions:     sessions,
		JobStore:     jobStore,
		Ledger:       ledger.NewService(nil, false, logger),
		DB:           db,
		Logger:       logger,
	}
	if repos != nil {
		deps.Cache = cache.NewService(repos.Cache, logger)
		deps.Overrides = repos.Overrides
		deps.Ledger = ledger.NewService(repos.Ledger, true, logger)
	}

	return &testEnv{
		server:   NewServer(deps),
		gateway:  gw,
		sessions: sessions,
		jobStore: jobStore,
		repos:    repos,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), out),
		"body: %s", recorder.Body.String())
}
