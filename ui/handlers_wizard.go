package ui

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"statwizard/app"
	"statwizard/domain/analysis"
	"statwizard/domain/core"
	apperrors "statwizard/internal/errors"
	"statwizard/internal/wizard"
	"statwizard/ui/templates/fragments"

	"github.com/gin-gonic/gin"
)

// analysisSession resolves the wizard named in the path. It writes the error
// response itself and returns nil when there is no wizard to work on.
func (s *Server) analysisSession(c *gin.Context) *app.AnalysisSession {
	id, err := core.ParseAnalysisID(c.Param("analysis"))
	if err != nil {
		s.renderError(c, http.StatusNotFound, "Unknown analysis.")
		return nil
	}
	ws := s.workspace(c)
	sess, err := ws.Session(id)
	switch {
	case err == nil:
		return sess
	case errors.Is(err, core.ErrNoDataset):
		if c.Request.Method == http.MethodGet && !isHTMX(c) {
			s.toasts.Push(ws.ID(), Toast{Level: ToastWarning, Title: "No dataset", Message: "Load a dataset before starting an analysis."})
			redirect(c, "/")
			return nil
		}
		s.renderError(c, http.StatusConflict, "Load a dataset before starting an analysis.")
	case core.IsNotFound(err):
		s.renderError(c, http.StatusNotFound, "Unknown analysis.")
	default:
		log.Printf("[Wizard] Mount %s failed: %v", id, err)
		s.renderError(c, http.StatusInternalServerError, "The analysis could not be started.")
	}
	return nil
}

func (s *Server) panelData(sess *app.AnalysisSession, pending bool, flash string) gin.H {
	v := sess.View()
	return gin.H{
		"View":     v,
		"Analysis": string(v.Definition.ID),
		"Pending":  pending,
		"Flash":    flash,
		"Polling":  pending || v.Phase == wizard.PhaseRunning,
	}
}

func (s *Server) renderPanel(c *gin.Context, sess *app.AnalysisSession, pending bool, flash string) {
	s.renderTemplate(c, http.StatusOK, fragments.WizardPanel, s.panelData(sess, pending, flash))
}

// handleWizardPage renders the full wizard page for one analysis.
func (s *Server) handleWizardPage(c *gin.Context) {
	sess := s.analysisSession(c)
	if sess == nil {
		return
	}
	data := s.panelData(sess, false, "")
	data["Title"] = sess.Definition().Title
	s.renderTemplate(c, http.StatusOK, fragments.WizardPage, data)
}

// handleWizardPanel re-renders the panel; the running state polls it.
func (s *Server) handleWizardPanel(c *gin.Context) {
	sess := s.analysisSession(c)
	if sess == nil {
		return
	}
	s.renderPanel(c, sess, false, "")
}

// handleSelect replaces the values of one field.
func (s *Server) handleSelect(c *gin.Context) {
	sess := s.analysisSession(c)
	if sess == nil {
		return
	}
	key := c.PostForm("field")
	var values []string
	for _, v := range c.PostFormArray("value") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if err := sess.Select(key, values...); err != nil {
		s.renderError(c, http.StatusBadRequest, apperrors.UserMessage(err))
		return
	}
	s.renderPanel(c, sess, false, "")
}

// handleResetSelections restores the default selections.
func (s *Server) handleResetSelections(c *gin.Context) {
	sess := s.analysisSession(c)
	if sess == nil {
		return
	}
	sess.ResetSelections()
	s.renderPanel(c, sess, false, "")
}

// handleNext advances one step. On the validation step it starts the run.
func (s *Server) handleNext(c *gin.Context) {
	sess := s.analysisSession(c)
	if sess == nil {
		return
	}
	st := sess.Controller().State()
	if st.CurrentStep == sess.Controller().Config().RunStep {
		s.startRun(c, sess)
		return
	}
	_, err := sess.Next(c.Request.Context())
	s.renderPanel(c, sess, false, navigationFlash(err))
}

func (s *Server) handlePrev(c *gin.Context) {
	sess := s.analysisSession(c)
	if sess == nil {
		return
	}
	_, err := sess.Prev()
	s.renderPanel(c, sess, false, navigationFlash(err))
}

// handleGoTo jumps to a reached step from the step indicator.
func (s *Server) handleGoTo(c *gin.Context) {
	sess := s.analysisSession(c)
	if sess == nil {
		return
	}
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, "Invalid step.")
		return
	}
	_, err = sess.GoTo(step)
	s.renderPanel(c, sess, false, navigationFlash(err))
}

// handleRun starts the analysis from the validation step or reruns it from
// a result step.
func (s *Server) handleRun(c *gin.Context) {
	sess := s.analysisSession(c)
	if sess == nil {
		return
	}
	s.startRun(c, sess)
}

// startRun answers immediately with the running panel and performs the
// remote call in the background; the panel polls until it settles.
// Blocked validation is answered synchronously since no call is made.
func (s *Server) startRun(c *gin.Context, sess *app.AnalysisSession) {
	st := sess.Controller().State()
	if st.IsRunning {
		s.renderPanel(c, sess, false, "An analysis is already running.")
		return
	}
	if !st.CanRun(sess.Controller().Config()) {
		s.renderPanel(c, sess, false, runFlash(wizard.ErrNotRunStep))
		return
	}
	if blocking := analysis.BlockingChecks(sess.Checks()); len(blocking) > 0 {
		_, err := sess.Run(c.Request.Context())
		s.renderPanel(c, sess, false, runFlash(err))
		return
	}

	go func() {
		if _, err := sess.Run(s.runCtx); err != nil && !errors.Is(err, wizard.ErrStaleRun) {
			log.Printf("[Wizard] %s run ended: %v", sess.Definition().ID, err)
		}
	}()
	s.renderPanel(c, sess, true, "")
}

// handleWizardJSON returns the wizard state for scripts.
func (s *Server) handleWizardJSON(c *gin.Context) {
	sess := s.analysisSession(c)
	if sess == nil {
		return
	}
	v := sess.View()
	c.JSON(http.StatusOK, gin.H{
		"analysis":         v.Definition.ID,
		"dataset_id":       v.State.DatasetID,
		"current_step":     v.State.CurrentStep,
		"max_reached_step": v.State.MaxReachedStep,
		"step_label":       v.StepLabel,
		"phase":            v.Phase,
		"is_running":       v.State.IsRunning,
		"last_error":       v.State.LastError,
		"checks":           v.Checks,
		"blocked":          v.Blocked,
		"selections":       sess.Selections(),
		"result":           v.Result,
	})
}

func navigationFlash(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, wizard.ErrRunInProgress):
		return "Wait for the running analysis to finish."
	case errors.Is(err, wizard.ErrStepLocked):
		return "That step has not been reached yet."
	default:
		return runFlash(err)
	}
}

func runFlash(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, wizard.ErrValidationBlocked):
		return "Resolve the critical checks before running the analysis."
	case errors.Is(err, wizard.ErrRunInProgress):
		return "An analysis is already running."
	case errors.Is(err, wizard.ErrNotRunStep):
		return "Review the settings and validation steps before running the analysis."
	case errors.Is(err, wizard.ErrStaleRun):
		return "The inputs changed while the analysis ran; run it again."
	default:
		// Failures are shown from LastError next to the run control.
		return ""
	}
}
