// internal/handlers/opportunity/opportunity_handler.go
package opportunity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"crm-service/internal/domain/lead"
	"crm-service/internal/middleware"
	xerrors "crm-service/internal/pkg/errors"
	"crm-service/internal/pkg/response"
	leadUsecase "crm-service/internal/service/lead"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	thanksPath  = "/sales/opportunity/thanks"
	formInvalid = "Please correct the errors below."
)

type OpportunityHandler struct {
	intake   *leadUsecase.IntakeService
	triage   *leadUsecase.TriageService
	workflow *leadUsecase.Workflow
	logger   *zap.Logger
}

func NewOpportunityHandler(
	intake *leadUsecase.IntakeService,
	triage *leadUsecase.TriageService,
	workflow *leadUsecase.Workflow,
	logger *zap.Logger,
) *OpportunityHandler {
	return &OpportunityHandler{
		intake:   intake,
		triage:   triage,
		workflow: workflow,
		logger:   logger,
	}
}

// ========== Public Intake ==========

// NewLeadForm renders the contact form.
func (h *OpportunityHandler) NewLeadForm(c *gin.Context) {
	h.renderForm(c, http.StatusOK, lead.IntakeRequest{}, nil)
}

// SubmitLead stores a contact form submission as a new lead.
func (h *OpportunityHandler) SubmitLead(c *gin.Context) {
	var req lead.IntakeRequest
	if err := c.ShouldBind(&req); err != nil {
		h.rejectForm(c, req, bindErrors(err))
		return
	}

	req.RemoteIP = c.ClientIP()
	if identityID, ok := middleware.GetIdentityID(c); ok {
		req.Requester = &lead.Requester{
			IdentityID:  identityID,
			EmployeeID:  middleware.GetEmployeeID(c),
			DisplayName: middleware.GetDisplayName(c),
		}
	}

	result, err := h.intake.Submit(c.Request.Context(), &req)
	if err != nil {
		if fields, ok := xerrors.AsValidation(err); ok {
			h.rejectForm(c, req, fields)
			return
		}

		h.logger.Error("lead intake failed", zap.String("email", req.Email), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "failed to submit lead", err)
		return
	}

	if middleware.WantsJSON(c) {
		response.Ack(c, http.StatusOK, true, "Thank you for contacting us. We will get back to you soon.", gin.H{
			"lead_id": result.LeadID,
		})
		return
	}
	c.Redirect(http.StatusFound, safeRedirect(c.Query("next"), thanksPath))
}

// rejectForm answers an intake submission that failed validation. The
// request itself succeeded, so both JSON and browser clients get a 200.
func (h *OpportunityHandler) rejectForm(c *gin.Context, req lead.IntakeRequest, fields xerrors.ValidationErrors) {
	if middleware.WantsJSON(c) {
		response.FormRejected(c, formInvalid, fields)
		return
	}
	h.renderForm(c, http.StatusOK, req, fields)
}

// bindErrors turns a binding failure into field errors the form can show.
func bindErrors(err error) xerrors.ValidationErrors {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return xerrors.ValidationErrors{typeErr.Field: "Not a valid value."}
	}
	return xerrors.ValidationErrors{"form": "The submitted form could not be read."}
}

func (h *OpportunityHandler) Thanks(c *gin.Context) {
	h.render(c, http.StatusOK, "thanks.html", "Thank you", nil)
}

func (h *OpportunityHandler) renderForm(c *gin.Context, status int, form lead.IntakeRequest, errs xerrors.ValidationErrors) {
	if errs == nil {
		errs = xerrors.ValidationErrors{}
	}
	h.render(c, status, "lead_form.html", "Contact us", gin.H{
		"Form":           form,
		"Errors":         errs,
		"Countries":      h.intake.Countries(),
		"CaptchaSiteKey": h.intake.CaptchaSiteKey(),
		"Next":           c.Query("next"),
	})
}

// ========== Admin Pages ==========

// Home shows how many leads sit in each state.
func (h *OpportunityHandler) Home(c *gin.Context) {
	counts, err := h.triage.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to count leads")
		return
	}

	if middleware.WantsJSON(c) {
		response.Success(c, http.StatusOK, "lead counts", counts)
		return
	}
	h.render(c, http.StatusOK, "home.html", "Dashboard", gin.H{"Counts": counts})
}

// Leads lists leads ten per page, filtered by the query string.
func (h *OpportunityHandler) Leads(c *gin.Context) {
	var f lead.ListFilters
	if err := c.ShouldBindQuery(&f); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid filters", err)
		return
	}

	page, err := h.triage.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err, "failed to list leads")
		return
	}

	if middleware.WantsJSON(c) {
		response.Success(c, http.StatusOK, "leads retrieved", page)
		return
	}
	h.render(c, http.StatusOK, "leads.html", "Leads", gin.H{"Page": page})
}

// LeadDetail shows one lead with its assignee and comments.
func (h *OpportunityHandler) LeadDetail(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	h.showDetail(c, id, http.StatusOK, nil)
}

func (h *OpportunityHandler) showDetail(c *gin.Context, id int64, status int, errs xerrors.ValidationErrors) {
	detail, err := h.triage.Detail(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to load lead")
		return
	}

	if middleware.WantsJSON(c) {
		response.Success(c, http.StatusOK, "lead retrieved", detail)
		return
	}
	if errs == nil {
		errs = xerrors.ValidationErrors{}
	}
	h.render(c, status, "lead_detail.html", detail.Lead.PartyName, gin.H{
		"Detail": detail,
		"Errors": errs,
	})
}

// ========== Admin Actions ==========

type revenueForm struct {
	Probability string `form:"probability"`
	Amount      string `form:"amount"`
}

// Revenue shows the lead on GET and records probability and amount on POST.
func (h *OpportunityHandler) Revenue(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	if c.Request.Method != http.MethodPost {
		h.showDetail(c, id, http.StatusOK, nil)
		return
	}

	req, err := bindRevenue(c)
	if err == nil {
		_, err = h.triage.SetRevenue(c.Request.Context(), id, req)
	}
	if err != nil {
		if fields, ok := xerrors.AsValidation(err); ok && !middleware.WantsJSON(c) {
			h.showDetail(c, id, http.StatusBadRequest, fields)
			return
		}
		h.fail(c, err, "failed to update revenue")
		return
	}

	h.logger.Info("lead revenue updated",
		zap.Int64("lead_id", id),
		zap.String("actor", middleware.GetDisplayName(c)),
	)

	const notice = "Lead has been updated."
	if middleware.WantsJSON(c) {
		response.Ack(c, http.StatusOK, true, notice, nil)
		return
	}
	setFlash(c, notice)
	c.Redirect(http.StatusFound, fmt.Sprintf("/sales/opportunity/lead/%d#tab-revenue", id))
}

func bindRevenue(c *gin.Context) (lead.RevenueRequest, error) {
	var req lead.RevenueRequest
	if c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, fmt.Errorf("%w: %v", xerrors.ErrBadRequest, err)
		}
		return req, nil
	}

	var form revenueForm
	if err := c.ShouldBind(&form); err != nil {
		return req, fmt.Errorf("%w: %v", xerrors.ErrBadRequest, err)
	}
	req.Amount = form.Amount
	if raw := strings.TrimSpace(form.Probability); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return req, xerrors.ValidationErrors{"probability": "Not a valid integer value."}
		}
		req.Probability = &p
	}
	return req, nil
}

// Assign hands the lead to the employee behind the chosen staff user.
func (h *OpportunityHandler) Assign(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	var req lead.AssignRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.triage.Assign(c.Request.Context(), id, req.UserID, middleware.GetDisplayName(c))
	if err != nil {
		h.fail(c, err, "failed to assign lead")
		return
	}

	if middleware.WantsJSON(c) {
		response.Ack(c, http.StatusOK, true, result.Notice, gin.H{
			"changed":  result.Changed,
			"assignee": result.Assignee,
		})
		return
	}
	setFlash(c, result.Notice)
	c.Redirect(http.StatusFound, referrerOr(c, detailPath(id)))
}

// AddComment appends a comment to the lead named in the body.
func (h *OpportunityHandler) AddComment(c *gin.Context) {
	var req lead.CommentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	authorID := middleware.MustGetIdentityID(c)
	if _, err := h.triage.AddComment(c.Request.Context(), req, authorID, middleware.GetDisplayName(c)); err != nil {
		h.fail(c, err, "failed to add comment")
		return
	}

	const notice = "The comment has been added."
	if middleware.WantsJSON(c) {
		response.Ack(c, http.StatusOK, true, notice, nil)
		return
	}
	setFlash(c, notice)
	c.Redirect(http.StatusFound, referrerOr(c, detailPath(req.LeadID))+"#tab-comment")
}

// ========== State Transitions ==========

func (h *OpportunityHandler) MarkOpportunity(c *gin.Context) {
	h.transition(c, h.workflow.Opportunity, "Good Work! This lead is an opportunity now.")
}

func (h *OpportunityHandler) MarkLost(c *gin.Context) {
	h.transition(c, h.workflow.Lost, "The lead is marked as lost.")
}

func (h *OpportunityHandler) MarkLead(c *gin.Context) {
	h.transition(c, h.workflow.Lead, "The lead is marked back to open.")
}

func (h *OpportunityHandler) MarkConverted(c *gin.Context) {
	h.transition(c, h.workflow.Convert, "Awesome! The Opportunity is converted.")
}

func (h *OpportunityHandler) MarkCancelled(c *gin.Context) {
	h.transition(c, h.workflow.Cancel, "The lead is cancelled.")
}

type transitionFunc func(ctx context.Context, ids ...int64) (int64, error)

func (h *OpportunityHandler) transition(c *gin.Context, move transitionFunc, notice string) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	if _, err := move(c.Request.Context(), id); err != nil {
		h.fail(c, err, "failed to change lead state")
		return
	}

	if middleware.WantsJSON(c) {
		response.Ack(c, http.StatusOK, true, notice, nil)
		return
	}
	setFlash(c, notice)
	c.Redirect(http.StatusFound, referrerOr(c, detailPath(id)))
}

// ========== Helpers ==========

func (h *OpportunityHandler) render(c *gin.Context, status int, name, title string, data gin.H) {
	page := gin.H{
		"Title":  title,
		"Flash":  takeFlash(c),
		"Errors": xerrors.ValidationErrors{},
	}
	for k, v := range data {
		page[k] = v
	}
	c.HTML(status, name, page)
}

// fail maps service errors onto HTTP statuses.
func (h *OpportunityHandler) fail(c *gin.Context, err error, message string) {
	if fields, ok := xerrors.AsValidation(err); ok {
		response.ValidationFailed(c, formInvalid, fields)
		return
	}

	switch {
	case errors.Is(err, leadUsecase.ErrUserNotFound):
		response.NotFound(c, "user not found")
	case errors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, "lead not found")
	case errors.Is(err, xerrors.ErrBadRequest), errors.Is(err, xerrors.ErrInvalidInput), errors.Is(err, xerrors.ErrInvalidState):
		response.Error(c, http.StatusBadRequest, "invalid request", err)
	default:
		h.logger.Error(message, zap.String("path", c.Request.URL.Path), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, message, err)
	}
}

func leadID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid lead id", err)
		return 0, false
	}
	return id, true
}

func detailPath(id int64) string {
	return fmt.Sprintf("/sales/opportunity/lead/%d", id)
}
