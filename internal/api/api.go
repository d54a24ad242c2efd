package api

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// @title           Interim365 — staffing core
// @version         1.0
// @description     Remplacement interim: scoring de candidats, workflow de validation multi-niveaux, synchronisation Kelio.
//
// @BasePath  /
// @schemes   http
// @accept    json
// @produce   json

type Scorer interface {
	ScoreCandidate(ctx context.Context, matricule string, requestID int64) (dto.ScoreResult, error)
}

type Workflow interface {
	CreateRequest(ctx context.Context, req dto.StaffingRequest) (*dto.StaffingRequest, error)
	Decide(ctx context.Context, requestID int64, level int, decision dto.StepDecision, comment string) (*dto.StaffingRequest, error)
	Escalate(ctx context.Context, requestID int64, level, targetLevel int, motif string) (*dto.StaffingRequest, error)
	Cancel(ctx context.Context, requestID int64, motif string) (*dto.StaffingRequest, error)
}

type Proposals interface {
	Add(ctx context.Context, requestID int64, matricule string, origin dto.ProposalOrigin, justification string) (*dto.Proposal, error)
	Retain(ctx context.Context, proposalID int64, justification string) (*dto.Proposal, error)
	Reject(ctx context.Context, proposalID int64, reasonCode, justification string) (*dto.Proposal, error)
	ListByRequest(ctx context.Context, requestID int64) ([]dto.Proposal, error)
}

type Synchronizer interface {
	Run(ctx context.Context, opts dto.SyncOptions) (dto.SyncRunResult, error)
	Start(opts dto.SyncOptions) (uuid.UUID, error)
	Status(runID uuid.UUID) (*dto.SyncRunResult, error)
	Cancel(runID uuid.UUID) error
}

type RequestRepository interface {
	Get(ctx context.Context, id int64) (*dto.StaffingRequest, error)
	ListSteps(ctx context.Context, requestID int64) ([]dto.ValidationStep, error)
}

type EmployeeRepository interface {
	Get(ctx context.Context, matricule string) (*dto.EmployeeRecord, error)
	List(ctx context.Context, department string, activeOnly bool) ([]dto.EmployeeRecord, error)
	Create(ctx context.Context, rec dto.EmployeeRecord) error
	Update(ctx context.Context, rec dto.EmployeeRecord) error
	Deactivate(ctx context.Context, matricule string) error
}

type EventsRepository interface {
	ListDLQ(ctx context.Context) ([]dto.FeedDLQ, error)
}

type ServiceDeps struct {
	Port int

	Scorer    Scorer
	Workflow  Workflow
	Proposals Proposals
	Sync      Synchronizer

	RequestRepo  RequestRepository
	EmployeeRepo EmployeeRepository
	EventsRepo   EventsRepository
}

type Service struct {
	r    *router.Router
	port int

	scorer    Scorer
	workflow  Workflow
	proposals Proposals
	sync      Synchronizer

	requests  RequestRepository
	employees EmployeeRepository
	events    EventsRepository
}

func NewService(d ServiceDeps) *Service {
	rt := router.New()
	rt.SaveMatchedRoutePath = true

	s := &Service{
		r:         rt,
		port:      d.Port,
		scorer:    d.Scorer,
		workflow:  d.Workflow,
		proposals: d.Proposals,
		sync:      d.Sync,
		requests:  d.RequestRepo,
		employees: d.EmployeeRepo,
		events:    d.EventsRepo,
	}

	s.mountRoutes()

	return s
}

func (s *Service) Start(ctx context.Context) error {
	mainHandler := RecoveryMiddleware(MetricsMiddleware(LoggingMiddleware(CORS(s.r.Handler))))

	server := fasthttp.Server{
		Handler:            mainHandler,
		Name:               "interim365-api",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       15 * time.Second,
		MaxRequestBodySize: 2 << 20, // 2 MiB
	}

	log.Info().Int("port", s.port).Msg("Starting staffing API")

	emergencyShutdown := make(chan error)
	go func() {
		err := server.ListenAndServe(fmt.Sprintf(":%d", s.port))
		emergencyShutdown <- err
	}()

	select {
	case <-ctx.Done():
		return server.Shutdown()
	case e := <-emergencyShutdown:
		return e
	}
}

func (s *Service) mountRoutes() {
	// Scoring
	s.r.POST("/score", s.scoreCandidate)

	// Staffing requests
	s.r.POST("/requests", s.createRequest)
	s.r.GET("/requests/{id}", s.getRequest)
	s.r.GET("/requests/{id}/steps", s.listSteps)
	s.r.GET("/requests/{id}/proposals", s.listProposals)

	// Proposals
	s.r.POST("/proposals", s.addProposal)
	s.r.POST("/proposals/{id}/decision", s.decideProposal)

	// Validation workflow
	s.r.POST("/workflow/{request_id}/validate", s.validateRequest)
	s.r.POST("/workflow/{request_id}/escalate", s.escalateRequest)
	s.r.POST("/workflow/{request_id}/cancel", s.cancelRequest)

	// Kelio sync
	s.r.POST("/sync/run", s.startSync)
	s.r.GET("/sync/{run_id}/status", s.syncStatus)
	s.r.POST("/sync/{run_id}/cancel", s.cancelSync)

	// Employee directory
	s.r.GET("/employees", s.listEmployees)
	s.r.GET("/employees/{matricule}", s.getEmployee)
	s.r.POST("/employees", s.createEmployee)
	s.r.PUT("/employees/{matricule}", s.updateEmployee)
	s.r.DELETE("/employees/{matricule}", s.deactivateEmployee)

	// Feed DLQ, Admin & Health
	s.r.GET("/dlq", s.listDLQ)
	s.r.GET("/health", s.healthHandler)
	s.r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
}
