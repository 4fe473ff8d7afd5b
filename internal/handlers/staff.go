package handlers

import (
	"errors"
	"net/http"
	"waitline/internal/auth"
	"waitline/internal/queue"
	"waitline/internal/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreateQueue godoc
//
//	@Summary		Create a queue
//	@Tags			staff
//	@Accept			json
//	@Produce		json
//	@Param			queue	body		CreateQueueRequest		true	"Queue settings"
//	@Security		BearerAuth
//	@Success		201		{object}	QueueResponse			"Created queue"
//	@Failure		400		{object}	response.ErrorResponse	"Validation error (VALIDATION_ERROR)"
//	@Failure		403		{object}	response.ErrorResponse	"Manager role required (FORBIDDEN)"
//	@Router			/api/staff/queues [post]
func (h *QueueHandler) CreateQueue(c *gin.Context) {
	var req CreateQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}
	q, err := h.svc.CreateQueue(c.Request.Context(), auth.CapabilityFrom(c), queue.NewQueueParams{
		ID:                         req.ID,
		LocationID:                 req.LocationID,
		Name:                       req.Name,
		MaxSize:                    req.MaxSize,
		LateClientCapTimeInMinutes: req.LateClientCapTimeInMinutes,
	}, h.now())
	if err != nil {
		queueError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newQueueResponse(q))
}

// SetActive godoc
//
//	@Summary		Enable or disable a queue
//	@Description	A disabled queue keeps serving its entries but admits nobody new
//	@Tags			staff
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Queue ID"
//	@Param			state	body		SetActiveRequest		true	"New state"
//	@Security		BearerAuth
//	@Success		200		{object}	QueueResponse			"Queue"
//	@Failure		403		{object}	response.ErrorResponse	"Manager role required (FORBIDDEN)"
//	@Failure		404		{object}	response.ErrorResponse	"Queue not found (QUEUE_NOT_FOUND)"
//	@Router			/api/staff/queues/{id}/active [patch]
func (h *QueueHandler) SetActive(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}
	q, err := h.svc.SetActive(c.Request.Context(), auth.CapabilityFrom(c), c.Param("id"), *req.IsActive, h.now())
	if err != nil {
		queueError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newQueueResponse(q))
}

// QRToken godoc
//
//	@Summary		Issue a QR join token
//	@Description	Returns a signed token to encode in the QR code displayed at the location
//	@Tags			staff
//	@Produce		json
//	@Param			id	path		string					true	"Queue ID"
//	@Security		BearerAuth
//	@Success		200	{object}	QRTokenResponse			"Token"
//	@Failure		403	{object}	response.ErrorResponse	"Manager role required (FORBIDDEN)"
//	@Failure		404	{object}	response.ErrorResponse	"Queue not found (QUEUE_NOT_FOUND)"
//	@Router			/api/staff/queues/{id}/qr-token [get]
func (h *QueueHandler) QRToken(c *gin.Context) {
	if !auth.CapabilityFrom(c).Grants(queue.PermManage) {
		queueError(c, h.log, queue.ErrForbidden)
		return
	}
	queueID := c.Param("id")
	if _, err := h.svc.Status(c.Request.Context(), queueID); err != nil {
		queueError(c, h.log, err)
		return
	}
	token, expires, err := h.issuer.IssueQR(queueID)
	if err != nil {
		queueError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, QRTokenResponse{QueueID: queueID, Token: token, ExpiresAt: expires})
}

// StaffJoin godoc
//
//	@Summary		Add a customer at the desk
//	@Tags			staff
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Queue ID"
//	@Param			entry	body		JoinRequest				true	"Customer"
//	@Security		BearerAuth
//	@Success		201		{object}	EntryResponse			"Created entry"
//	@Failure		400		{object}	response.ErrorResponse	"Validation error (VALIDATION_ERROR) or queue disabled (QUEUE_INACTIVE)"
//	@Failure		403		{object}	response.ErrorResponse	"Not permitted (FORBIDDEN)"
//	@Failure		409		{object}	response.ErrorResponse	"Queue full (QUEUE_FULL) or customer already waiting (ALREADY_IN_QUEUE)"
//	@Router			/api/staff/queues/{id}/entries [post]
func (h *QueueHandler) StaffJoin(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}
	view, err := h.svc.AddCustomerByStaff(c.Request.Context(), auth.CapabilityFrom(c), c.Param("id"), req.params(queue.SourceStaff), h.now())
	if err != nil {
		queueError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newEntryViewResponse(*view))
}

// CallNext godoc
//
//	@Summary		Call the next customer
//	@Description	Calls the first waiting customer for the authenticated staff member; entry is null when nobody waits
//	@Tags			staff
//	@Produce		json
//	@Param			id	path		string					true	"Queue ID"
//	@Security		BearerAuth
//	@Success		200	{object}	CallNextResponse		"Called entry or null"
//	@Failure		403	{object}	response.ErrorResponse	"Not permitted (FORBIDDEN)"
//	@Failure		404	{object}	response.ErrorResponse	"Queue not found (QUEUE_NOT_FOUND)"
//	@Failure		503	{object}	response.ErrorResponse	"Concurrent updates, retry (CONCURRENCY_CONFLICT)"
//	@Router			/api/staff/queues/{id}/call [post]
func (h *QueueHandler) CallNext(c *gin.Context) {
	entry, err := h.svc.CallNext(c.Request.Context(), auth.CapabilityFrom(c), c.Param("id"), h.now())
	if errors.Is(err, queue.ErrEmptyQueue) {
		c.JSON(http.StatusOK, CallNextResponse{})
		return
	}
	if err != nil {
		queueError(c, h.log, err)
		return
	}
	resp := newEntryResponse(*entry)
	c.JSON(http.StatusOK, CallNextResponse{Entry: &resp})
}

// Complete godoc
//
//	@Summary		Complete a called entry
//	@Tags			staff
//	@Produce		json
//	@Param			id		path		string					true	"Queue ID"
//	@Param			entryId	path		string					true	"Entry ID"
//	@Security		BearerAuth
//	@Success		200		{object}	EntryResponse			"Completed entry"
//	@Failure		403		{object}	response.ErrorResponse	"Not permitted (FORBIDDEN)"
//	@Failure		404		{object}	response.ErrorResponse	"Queue or entry not found (QUEUE_NOT_FOUND, ENTRY_NOT_FOUND)"
//	@Failure		409		{object}	response.ErrorResponse	"Entry was not called (INVALID_TRANSITION)"
//	@Router			/api/staff/queues/{id}/entries/{entryId}/complete [post]
func (h *QueueHandler) Complete(c *gin.Context) {
	entry, err := h.svc.CompleteEntry(c.Request.Context(), auth.CapabilityFrom(c), c.Param("id"), c.Param("entryId"), h.now())
	if err != nil {
		queueError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newEntryResponse(*entry))
}

// Cancel godoc
//
//	@Summary		Cancel an entry
//	@Tags			staff
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Queue ID"
//	@Param			entryId	path		string					true	"Entry ID"
//	@Param			reason	body		CancelRequest			false	"Reason"
//	@Security		BearerAuth
//	@Success		200		{object}	EntryResponse			"Cancelled entry"
//	@Failure		403		{object}	response.ErrorResponse	"Not permitted (FORBIDDEN)"
//	@Failure		404		{object}	response.ErrorResponse	"Queue or entry not found (QUEUE_NOT_FOUND, ENTRY_NOT_FOUND)"
//	@Failure		409		{object}	response.ErrorResponse	"Entry already finished (INVALID_TRANSITION)"
//	@Router			/api/staff/queues/{id}/entries/{entryId}/cancel [post]
func (h *QueueHandler) Cancel(c *gin.Context) {
	var req CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			validationError(c, err)
			return
		}
	}
	entry, err := h.svc.CancelEntry(c.Request.Context(), auth.CapabilityFrom(c), c.Param("id"), c.Param("entryId"), req.Reason, h.now())
	if err != nil {
		queueError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newEntryResponse(*entry))
}

// Heartbeat godoc
//
//	@Summary		Staff presence heartbeat
//	@Description	Marks the staff member as serving the queue; feeds the wait estimate
//	@Tags			staff
//	@Param			id	path	string	true	"Queue ID"
//	@Security		BearerAuth
//	@Success		204
//	@Failure		500	{object}	response.ErrorResponse	"Server error (INTERNAL_ERROR)"
//	@Router			/api/staff/queues/{id}/presence [post]
func (h *QueueHandler) Heartbeat(c *gin.Context) {
	capability := auth.CapabilityFrom(c)
	if !capability.Grants(queue.PermCall) {
		queueError(c, h.log, queue.ErrForbidden)
		return
	}
	if h.presence != nil {
		if err := h.presence.Heartbeat(c.Request.Context(), c.Param("id"), capability.StaffID); err != nil {
			h.log.Warn("presence heartbeat failed", zap.String("queue_id", c.Param("id")), zap.Error(err))
			queueError(c, h.log, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// StopServing godoc
//
//	@Summary		Stop serving a queue
//	@Description	Drops the staff member from the queue's active staff right away instead of waiting for the heartbeat to expire
//	@Tags			staff
//	@Produce		json
//	@Param			id	path	string	true	"Queue ID"
//	@Security		BearerAuth
//	@Success		200	{object}	response.SuccessResponse
//	@Failure		403	{object}	response.ErrorResponse	"Missing call permission (FORBIDDEN)"
//	@Failure		500	{object}	response.ErrorResponse	"Server error (INTERNAL_ERROR)"
//	@Router			/api/staff/queues/{id}/presence [delete]
func (h *QueueHandler) StopServing(c *gin.Context) {
	capability := auth.CapabilityFrom(c)
	if !capability.Grants(queue.PermCall) {
		queueError(c, h.log, queue.ErrForbidden)
		return
	}
	if h.presence != nil {
		if err := h.presence.Leave(c.Request.Context(), c.Param("id"), capability.StaffID); err != nil {
			h.log.Warn("presence leave failed", zap.String("queue_id", c.Param("id")), zap.Error(err))
			queueError(c, h.log, err)
			return
		}
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Stopped serving the queue"})
}
