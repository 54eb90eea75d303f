package api

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"floodcv/app"
	"floodcv/domain/core"
	"floodcv/domain/group"
	"floodcv/domain/search"
	"floodcv/internal/config"
	"floodcv/internal/errors"
	"floodcv/internal/evaluation"
	"floodcv/internal/forest"
	"floodcv/internal/metrics"
	"floodcv/internal/tuning"
	"floodcv/ports"

	"github.com/gin-gonic/gin"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type sessionResponse struct {
	Key      core.Hash           `json:"key"`
	Groups   []string            `json:"groups"`
	Features []string            `json:"features"`
	Folds    []group.FoldSummary `json:"folds"`
}

func describeSession(session *app.Session) sessionResponse {
	resp := sessionResponse{Key: session.Key, Features: session.Features, Folds: session.FoldSummaries()}
	for _, g := range session.Groups {
		resp.Groups = append(resp.Groups, g.Name())
	}
	return resp
}

// loadSession samples the configured groups, loads their feature tables and
// makes the result the current session.
func (s *Server) loadSession(c *gin.Context) {
	session, err := s.service.Load(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to load session: %v", err)
		respondError(c, err)
		return
	}
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	c.JSON(http.StatusOK, describeSession(session))
}

func (s *Server) getSession(c *gin.Context) {
	session, err := s.currentSession()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, describeSession(session))
}

func (s *Server) listFolds(c *gin.Context) {
	session, err := s.currentSession()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folds": session.FoldSummaries()})
}

func (s *Server) innerSplits(c *gin.Context) {
	session, err := s.currentSession()
	if err != nil {
		respondError(c, err)
		return
	}
	k := s.service.Config().KFolds
	if v := c.Query("k"); v != "" {
		if k, err = strconv.Atoi(v); err != nil || k < 2 {
			respondError(c, errors.InvalidInput("k must be an integer of at least 2"))
			return
		}
	}
	splits, err := session.InnerSplits(k)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"k": k, "outer_folds": splits})
}

// queryFeatures reads a comma separated features parameter.
func queryFeatures(c *gin.Context) []string {
	var out []string
	for _, name := range strings.Split(c.Query("features"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func (s *Server) featureCorrelation(c *gin.Context) {
	session, err := s.currentSession()
	if err != nil {
		respondError(c, err)
		return
	}
	corr, err := s.service.Correlation(session, queryFeatures(c), c.Query("method"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, corr)
}

func (s *Server) featureRanges(c *gin.Context) {
	session, err := s.currentSession()
	if err != nil {
		respondError(c, err)
		return
	}
	ranges, err := s.service.Ranges(session, queryFeatures(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ranges)
}

// bindJSON decodes an optional body over the defaults already in dst.
func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.InvalidInput("invalid request body: " + err.Error())
	}
	return nil
}

// startExperiment runs search, evaluation and importance in the background.
func (s *Server) startExperiment(c *gin.Context) {
	session, err := s.currentSession()
	if err != nil {
		respondError(c, err)
		return
	}
	exp := config.DefaultExperiment(s.service.Config())
	if err := bindJSON(c, exp); err != nil {
		respondError(c, err)
		return
	}
	if err := exp.Validate(); err != nil {
		respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	snap := s.runs.Start(c.Request.Context(), "experiment", func(ctx context.Context, progress tuning.ProgressFunc) (interface{}, error) {
		return s.service.Run(ctx, session, exp, progress)
	})
	c.JSON(http.StatusAccepted, snap)
}

type paramsRequest struct {
	Features []string          `json:"features"`
	StudyID  string            `json:"study_id"`
	Params   search.Assignment `json:"params"`
	Seed     *int64            `json:"seed"`
}

func (s *Server) resolveParams(ctx context.Context, req paramsRequest) (forest.Params, int64, error) {
	seed := s.service.Config().Seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	if req.StudyID == "" {
		p, err := forest.ParamsFromAssignment(req.Params, s.service.BaseParams(seed))
		return p, seed, err
	}
	studies := s.service.Studies()
	if studies == nil {
		return forest.Params{}, seed, errors.Conflict("study store is not configured")
	}
	id, err := core.ParseStudyID(req.StudyID)
	if err != nil {
		return forest.Params{}, seed, errors.WithCode(errors.CodeInvalidInput, err)
	}
	study, err := studies.GetStudy(ctx, id)
	if err != nil {
		return forest.Params{}, seed, err
	}
	p, err := s.service.BestParams(study, seed)
	return p, seed, err
}

// EvaluationReport is the result of an evaluation run.
type EvaluationReport struct {
	Params     forest.Params        `json:"params"`
	Evaluation *evaluation.Result   `json:"evaluation"`
	Metrics    []metrics.Comparison `json:"metrics"`
	Confusion  app.ConfusionReport  `json:"confusion"`
}

func (s *Server) startEvaluation(c *gin.Context) {
	session, err := s.currentSession()
	if err != nil {
		respondError(c, err)
		return
	}
	var req paramsRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	params, _, err := s.resolveParams(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	snap := s.runs.Start(c.Request.Context(), "evaluation", func(ctx context.Context, _ tuning.ProgressFunc) (interface{}, error) {
		result, err := s.service.Evaluate(ctx, session, req.Features, params)
		if err != nil {
			return nil, err
		}
		summary, err := result.Summary()
		if err != nil {
			return nil, err
		}
		best, def, err := result.Confusion()
		if err != nil {
			return nil, err
		}
		return &EvaluationReport{
			Params:     params,
			Evaluation: result,
			Metrics:    summary,
			Confusion:  app.ConfusionReport{Best: best, Default: def},
		}, nil
	})
	c.JSON(http.StatusAccepted, snap)
}

type importanceRequest struct {
	paramsRequest
	Importance config.ImportanceExperiment `json:"importance"`
}

func (s *Server) startImportance(c *gin.Context) {
	session, err := s.currentSession()
	if err != nil {
		respondError(c, err)
		return
	}
	exp := config.DefaultExperiment(s.service.Config())
	req := importanceRequest{Importance: exp.Importance}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	params, seed, err := s.resolveParams(c.Request.Context(), req.paramsRequest)
	if err != nil {
		respondError(c, err)
		return
	}
	exp.Seed = seed
	exp.Importance = req.Importance
	cfg, err := s.service.ImportanceConfig(exp)
	if err != nil {
		respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}
	cfg.Params = params

	snap := s.runs.Start(c.Request.Context(), "importance", func(ctx context.Context, _ tuning.ProgressFunc) (interface{}, error) {
		return s.service.Importance(ctx, session, req.Features, cfg)
	})
	c.JSON(http.StatusAccepted, snap)
}

func (s *Server) studyStore(c *gin.Context) (ports.StudyRepository, core.StudyID, bool) {
	studies := s.service.Studies()
	if studies == nil {
		respondError(c, errors.Conflict("study store is not configured"))
		return nil, "", false
	}
	id, err := core.ParseStudyID(c.Param("id"))
	if err != nil {
		respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return nil, "", false
	}
	return studies, id, true
}

func (s *Server) listStudies(c *gin.Context) {
	studies := s.service.Studies()
	if studies == nil {
		respondError(c, errors.Conflict("study store is not configured"))
		return
	}
	filters := ports.StudyFilters{Objective: c.Query("objective")}
	for name, dst := range map[string]*int{"limit": &filters.Limit, "offset": &filters.Offset} {
		if v := c.Query(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				respondError(c, errors.InvalidInput(name+" must be a non-negative integer"))
				return
			}
			*dst = n
		}
	}
	list, err := studies.ListStudies(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"studies": list})
}

func (s *Server) getStudy(c *gin.Context) {
	studies, id, ok := s.studyStore(c)
	if !ok {
		return
	}
	study, err := studies.GetStudy(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, study)
}

func (s *Server) getStudyFolds(c *gin.Context) {
	studies, id, ok := s.studyStore(c)
	if !ok {
		return
	}
	folds, err := studies.GetFoldSummaries(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folds": folds})
}

func (s *Server) getStudyAnalytics(c *gin.Context) {
	_, id, ok := s.studyStore(c)
	if !ok {
		return
	}
	analytics, err := s.service.StudyAnalytics(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (s *Server) deleteStudy(c *gin.Context) {
	studies, id, ok := s.studyStore(c)
	if !ok {
		return
	}
	if err := studies.DeleteStudy(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": s.runs.List()})
}

func (s *Server) getRun(c *gin.Context) {
	snap, ok := s.runs.Get(core.RunID(c.Param("id")))
	if !ok {
		respondError(c, errors.NotFound("run"))
		return
	}
	c.JSON(http.StatusOK, snap)
}

// cancelRun stops a run at its next trial boundary.
func (s *Server) cancelRun(c *gin.Context) {
	if err := s.runs.Cancel(core.RunID(c.Param("id"))); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
