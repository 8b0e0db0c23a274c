package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/GoPolymarket/fundgate/internal/middleware"
	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/GoPolymarket/fundgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/fundgate/internal/service"
	"github.com/GoPolymarket/fundgate/internal/validate"
	"github.com/gin-gonic/gin"
)

const maxSettingsBody = 1 << 20

type FundHandler struct {
	svc       *service.FundService
	inspector *service.ChainInspector
}

func NewFundHandler(svc *service.FundService, inspector *service.ChainInspector) *FundHandler {
	return &FundHandler{svc: svc, inspector: inspector}
}

// Validate is a dry run: the report is returned with 200 whether or not the
// document passes.
func (h *FundHandler) Validate(c *gin.Context) {
	raw, ok := readBody(c)
	if !ok {
		return
	}
	_, err := h.svc.Validate(c.Request.Context(), raw)
	if err == nil {
		c.JSON(http.StatusOK, model.ValidationReport{Valid: true})
		return
	}
	var vErr *validate.ValidationError
	if !errors.As(err, &vErr) {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "invalid_fields", vErr.Fields())
	c.JSON(http.StatusOK, model.ValidationReport{Valid: false, Errors: vErr.Errors()})
}

func (h *FundHandler) Create(c *gin.Context) {
	raw, ok := readBody(c)
	if !ok {
		return
	}
	rec, err := h.svc.Create(c.Request.Context(), raw, submission(c))
	if err != nil {
		h.auditFailure(c, err)
		c.Error(err)
		return
	}
	auditRecord(c, rec)
	c.JSON(http.StatusCreated, rec)
}

func (h *FundHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	offset := queryInt(c, "offset", 0)
	records, err := h.svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *FundHandler) Get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("address"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *FundHandler) Replace(c *gin.Context) {
	raw, ok := readBody(c)
	if !ok {
		return
	}
	rec, err := h.svc.Replace(c.Request.Context(), c.Param("address"), raw, submission(c))
	if err != nil {
		h.auditFailure(c, err)
		c.Error(err)
		return
	}
	auditRecord(c, rec)
	c.JSON(http.StatusOK, rec)
}

func (h *FundHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("address")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Digest returns the EIP-712 digest a signer must sign to store the body as
// the given revision. Without ?revision the next one is assumed.
func (h *FundHandler) Digest(c *gin.Context) {
	var revision int64
	if raw := c.Query("revision"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			c.Error(apperrors.NewInvalidRequest("revision must be a positive integer"))
			return
		}
		revision = parsed
	}
	raw, ok := readBody(c)
	if !ok {
		return
	}
	resp, err := h.svc.UpdateDigest(c.Request.Context(), c.Param("address"), raw, revision)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FundHandler) Fees(c *gin.Context) {
	addr := c.Param("address")
	sched, err := h.svc.FeeSchedule(c.Request.Context(), addr)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sched.Response(addr))
}

func (h *FundHandler) Quote(c *gin.Context) {
	var req model.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	addr := c.Param("address")
	quote, err := h.svc.Quote(c.Request.Context(), addr, req)
	if err != nil {
		if isQuoteInputError(err) {
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, quote.Response(addr))
}

func (h *FundHandler) DepositEligibility(c *gin.Context) {
	depositor := strings.TrimSpace(c.Query("address"))
	if depositor == "" {
		c.Error(apperrors.NewInvalidRequest("address query parameter required"))
		return
	}
	resp, err := h.svc.DepositEligibility(c.Request.Context(), c.Param("address"), depositor)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FundHandler) ManagerCheck(c *gin.Context) {
	resp, err := h.svc.ManagerCheck(c.Request.Context(), c.Param("address"), c.Param("manager"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// OnChain compares the stored record with the contracts it names.
func (h *FundHandler) OnChain(c *gin.Context) {
	if h.inspector == nil || !h.inspector.Configured() {
		c.Error(apperrors.New(apperrors.ErrUpstream, "chain RPC not configured", service.ErrRPCNotConfigured))
		return
	}
	rec, err := h.svc.Get(c.Request.Context(), c.Param("address"))
	if err != nil {
		c.Error(err)
		return
	}
	checks, err := h.inspector.Inspect(c.Request.Context(), rec.Settings)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrUpstream, "chain inspection failed", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fund_address": rec.Settings.FundAddress,
		"revision":     rec.Revision,
		"checks":       checks,
	})
}

func (h *FundHandler) auditFailure(c *gin.Context, err error) {
	var vErr *validate.ValidationError
	if errors.As(err, &vErr) {
		middleware.AddAuditContext(c, "invalid_fields", vErr.Fields())
	}
}

func auditRecord(c *gin.Context, rec *model.FundRecord) {
	middleware.AddAuditContext(c, "revision", rec.Revision)
	if rec.Signer != "" {
		middleware.AddAuditContext(c, "signer", rec.Signer)
	}
}

func submission(c *gin.Context) service.Submission {
	sub := service.Submission{
		Signer:    strings.TrimSpace(c.GetHeader(middleware.HeaderFundSigner)),
		Signature: strings.TrimSpace(c.GetHeader(middleware.HeaderFundSignature)),
	}
	if op, ok := middleware.GetOperator(c); ok {
		sub.OperatorID = op.ID
	}
	return sub
}

func readBody(c *gin.Context) ([]byte, bool) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSettingsBody+1))
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("failed to read request body"))
		return nil, false
	}
	if len(raw) > maxSettingsBody {
		c.Error(apperrors.NewInvalidRequest("request body too large"))
		return nil, false
	}
	return raw, true
}

func queryInt(c *gin.Context, key string, def int) int {
	if raw := c.Query(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return def
}

func isQuoteInputError(err error) bool {
	return errors.Is(err, service.ErrInvalidAmount) ||
		errors.Is(err, service.ErrNegativeAmount) ||
		errors.Is(err, service.ErrUnknownQuoteKind)
}
