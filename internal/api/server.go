// SPDX-License-Identifier: MIT

// Package api implements the HTTP surface of the platform: knowledge
// tracing, adaptive practice, engagement, live polls, project-based
// learning and institution analytics.
package api

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/insight-platform/insightd/internal/api/middleware"
	"github.com/insight-platform/insightd/internal/bus"
	"github.com/insight-platform/insightd/internal/cache"
	"github.com/insight-platform/insightd/internal/config"
	"github.com/insight-platform/insightd/internal/engagement"
	"github.com/insight-platform/insightd/internal/eventlog"
	"github.com/insight-platform/insightd/internal/health"
	"github.com/insight-platform/insightd/internal/kt"
	"github.com/insight-platform/insightd/internal/log"
	"github.com/insight-platform/insightd/internal/practice"
	"github.com/insight-platform/insightd/internal/store"
)

// Deps carries everything the server needs. All fields except Cache and
// Health are required.
type Deps struct {
	Config config.AppConfig
	Store  *store.Store
	Events *eventlog.Log
	Bus    bus.Bus
	Cache  cache.Cache
	Health *health.Manager
}

// Server holds the handler dependencies and the derived engines. The
// config snapshot and engines are guarded by mu so reloaded tunables
// can be swapped in while requests are in flight.
type Server struct {
	store  *store.Store
	events *eventlog.Log
	bus    bus.Bus
	cache  cache.Cache
	health *health.Manager
	votes  *voteLimiter

	mu       sync.RWMutex
	cfg      config.AppConfig
	hybrid   *kt.Hybrid
	practice *practice.Engine
	engage   *engagement.Engine

	logger zerolog.Logger
}

// New constructs the API server from its dependencies.
func New(d Deps) *Server {
	c := d.Cache
	if c == nil {
		c = cache.NewNoOpCache()
	}

	hybrid, practiceEngine, engageEngine := buildEngines(d.Config)

	return &Server{
		store:    d.Store,
		events:   d.Events,
		bus:      d.Bus,
		cache:    c,
		health:   d.Health,
		votes:    newVoteLimiter(d.Config.Polls.ResponsesPerMin),
		cfg:      d.Config,
		hybrid:   hybrid,
		practice: practiceEngine,
		engage:   engageEngine,
		logger:   log.WithComponent("api"),
	}
}

func buildEngines(cfg config.AppConfig) (*kt.Hybrid, *practice.Engine, *engagement.Engine) {
	hybrid := kt.NewHybrid(kt.Params{
		BKT: kt.BKTParams{
			PriorMastery: cfg.KT.PriorMastery,
			LearnRate:    cfg.KT.LearnRate,
			GuessRate:    cfg.KT.GuessRate,
			SlipRate:     cfg.KT.SlipRate,
		},
		SequenceLength: cfg.KT.SequenceLength,
		HistoryWeight:  cfg.KT.HistoryWeight,
		TrendWeight:    cfg.KT.TrendWeight,
	})
	practiceEngine := practice.NewEngine(practice.Config{
		LoadMin:        cfg.Practice.LoadMin,
		LoadOptimal:    cfg.Practice.LoadOptimal,
		LoadMax:        cfg.Practice.LoadMax,
		Gamma:          cfg.Practice.Gamma,
		SkipThreshold:  cfg.Practice.SkipThreshold,
		LightThreshold: cfg.Practice.LightThreshold,
	})
	engageEngine := engagement.NewEngine(engagement.Config{
		QuickGuessSeconds: cfg.Engagement.QuickGuessSeconds,
		MaxHints:          cfg.Engagement.MaxHints,
		ManyAttempts:      cfg.Engagement.ManyAttempts,
		MinLogins:         cfg.Engagement.MinLogins,
		MinSessionMinutes: cfg.Engagement.MinSessionMinutes,
		ImplicitWeight:    cfg.Engagement.ImplicitWeight,
		ExplicitWeight:    cfg.Engagement.ExplicitWeight,
		AtRiskThreshold:   cfg.Engagement.AtRiskThreshold,
		CriticalThreshold: cfg.Engagement.CriticalThreshold,
	})
	return hybrid, practiceEngine, engageEngine
}

// ApplyConfig swaps in reloaded tunables: engine parameters, cache TTL,
// poll limits and the per-student vote rate. Listen addresses and
// storage paths are pinned by the config manager and never change here.
func (s *Server) ApplyConfig(cfg config.AppConfig) {
	hybrid, practiceEngine, engageEngine := buildEngines(cfg)

	s.mu.Lock()
	s.cfg = cfg
	s.hybrid = hybrid
	s.practice = practiceEngine
	s.engage = engageEngine
	s.mu.Unlock()

	s.votes.setRate(cfg.Polls.ResponsesPerMin)

	s.logger.Info().
		Str("event", "config.applied").
		Msg("reloaded tunables applied")
}

func (s *Server) config() config.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Server) ktEngine() *kt.Hybrid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hybrid
}

func (s *Server) practiceEngine() *practice.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.practice
}

func (s *Server) engagementEngine() *engagement.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engage
}

// Routes builds the full router with the canonical middleware stack.
// The stack is wired once at startup; reloads touch tunables only.
func (s *Server) Routes() *chi.Mux {
	cfg := s.config()

	tracingService := ""
	if cfg.Tracing.Enabled {
		tracingService = "insightd-api"
	}

	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        cfg.CORSOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracingService,
		EnableLogging:         true,
		EnableRateLimit:       cfg.RateLimitEnabled,
		RequestsPerMinute:     cfg.RateLimitRPM,
	})

	if s.health != nil {
		r.Get("/healthz", s.health.ServeHealth)
		r.Get("/readyz", s.health.ServeReady)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", s.handleVersion)

		// Roster
		r.Post("/students", s.handleCreateStudent)
		r.Get("/students/{studentID}", s.handleGetStudent)
		r.Get("/classes/{classID}/students", s.handleListStudents)

		// Knowledge graph
		r.Post("/concepts", s.handleUpsertConcept)
		r.Get("/concepts", s.handleListConcepts)
		r.Get("/concepts/{conceptID}", s.handleGetConcept)

		// Knowledge tracing
		r.Post("/responses", s.handleSubmitResponse)
		r.Get("/students/{studentID}/mastery", s.handleListMastery)
		r.Get("/students/{studentID}/mastery/{conceptID}", s.handleGetMastery)
		r.Get("/classes/{classID}/concepts/{conceptID}/summary", s.handleClassSummary)
		r.Get("/students/{studentID}/events", s.handleListEvents)

		// Adaptive practice
		r.Post("/practice/sessions", s.handleGenerateSession)
		r.Post("/practice/difficulty", s.handleAdjustDifficulty)

		// Engagement
		r.Post("/engagement/evaluate", s.handleEvaluateEngagement)
		r.Post("/engagement/events", s.handleIngestEvent)
		r.Get("/students/{studentID}/engagement", s.handleStudentEngagement)
		r.Get("/classes/{classID}/engagement", s.handleClassEngagement)
		r.Get("/classes/{classID}/alerts", s.handleListAlerts)
		r.Post("/alerts/{alertID}/ack", s.handleAckAlert)

		// Live polls
		r.Post("/polls", s.handleCreatePoll)
		r.Get("/polls/{pollID}", s.handleGetPoll)
		r.Get("/classes/{classID}/polls", s.handleListPolls)
		r.Post("/polls/{pollID}/votes", s.handleVote)
		r.Post("/polls/{pollID}/close", s.handleClosePoll)
		r.Get("/polls/{pollID}/results", s.handlePollResults)

		// Project-based learning
		r.Post("/projects", s.handleCreateProject)
		r.Get("/projects/{projectID}", s.handleGetProject)
		r.Get("/classes/{classID}/projects", s.handleListProjects)
		r.Patch("/projects/{projectID}/status", s.handleProjectStatus)
		r.Post("/projects/{projectID}/milestones", s.handleCreateMilestone)
		r.Get("/projects/{projectID}/milestones", s.handleListMilestones)
		r.Patch("/milestones/{milestoneID}/status", s.handleMilestoneStatus)
		r.Post("/projects/{projectID}/teams", s.handleCreateTeam)
		r.Get("/teams/{teamID}", s.handleGetTeam)
		r.Get("/projects/{projectID}/teams", s.handleListTeams)

		// Soft skills
		r.Post("/softskills/assessments", s.handleSubmitAssessment)
		r.Get("/teams/{teamID}/softskills", s.handleTeamSoftSkills)
		r.Get("/students/{studentID}/assessments", s.handleListAssessments)

		// Templates
		r.Post("/templates", s.handleUpsertTemplate)
		r.Get("/templates/{templateID}", s.handleGetTemplate)
		r.Get("/templates", s.handleSearchTemplates)

		// Analytics
		r.Get("/analytics/overview", s.handleOverview)
		r.Get("/analytics/interventions/impact", s.handleInterventionImpact)
		r.Post("/interventions", s.handleCreateIntervention)
		r.Patch("/interventions/{interventionID}/followup", s.handleInterventionFollowup)
		r.Get("/students/{studentID}/interventions", s.handleListInterventions)
		r.Post("/analytics/export", s.handleExportReport)

		// Realtime
		r.Get("/events/stream", s.handleEventStream)
	})

	return r
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.Routes()
}
