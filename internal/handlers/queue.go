package handlers

import (
	"context"
	"net/http"
	"time"
	"waitline/internal/auth"
	"waitline/internal/queue"
	"waitline/internal/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Presence records staff heartbeats
type Presence interface {
	Heartbeat(ctx context.Context, queueID, staffID string) error
	Leave(ctx context.Context, queueID, staffID string) error
}

// QueueHandler exposes the queue service to every channel: kiosks, QR
// codes, the public web page and the staff dashboard.
type QueueHandler struct {
	svc      *queue.Service
	entries  queue.EntryFinder
	issuer   *auth.Issuer
	presence Presence
	log      *zap.Logger
	now      func() time.Time
}

// NewQueueHandler creates the handler. presence may be nil, in which case
// heartbeats are accepted and dropped.
func NewQueueHandler(svc *queue.Service, entries queue.EntryFinder, issuer *auth.Issuer, presence Presence, log *zap.Logger) *QueueHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueueHandler{
		svc:      svc,
		entries:  entries,
		issuer:   issuer,
		presence: presence,
		log:      log,
		now:      time.Now,
	}
}

// KioskJoin godoc
//
//	@Summary		Join from a kiosk
//	@Description	Admits a walk-in customer registered at an in-store kiosk
//	@Tags			queue
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Queue ID"
//	@Param			entry	body		JoinRequest				true	"Customer"
//	@Security		KioskKey
//	@Success		201		{object}	EntryResponse			"Created entry with its position and estimated wait"
//	@Failure		400		{object}	response.ErrorResponse	"Validation error (VALIDATION_ERROR) or queue disabled (QUEUE_INACTIVE)"
//	@Failure		401		{object}	response.ErrorResponse	"Unknown kiosk (INVALID_KIOSK_KEY)"
//	@Failure		404		{object}	response.ErrorResponse	"Queue not found (QUEUE_NOT_FOUND)"
//	@Failure		409		{object}	response.ErrorResponse	"Queue full (QUEUE_FULL) or customer already waiting (ALREADY_IN_QUEUE)"
//	@Failure		503		{object}	response.ErrorResponse	"Concurrent updates, retry (CONCURRENCY_CONFLICT)"
//	@Router			/api/kiosk/queues/{id}/entries [post]
func (h *QueueHandler) KioskJoin(c *gin.Context) {
	h.join(c, c.Param("id"), queue.SourceKiosk)
}

// PublicJoin godoc
//
//	@Summary		Join from the web
//	@Description	Admits a customer from the public queue page
//	@Tags			queue
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Queue ID"
//	@Param			entry	body		JoinRequest				true	"Customer"
//	@Success		201		{object}	EntryResponse			"Created entry with its position and estimated wait"
//	@Failure		400		{object}	response.ErrorResponse	"Validation error (VALIDATION_ERROR) or queue disabled (QUEUE_INACTIVE)"
//	@Failure		404		{object}	response.ErrorResponse	"Queue not found (QUEUE_NOT_FOUND)"
//	@Failure		409		{object}	response.ErrorResponse	"Queue full (QUEUE_FULL) or customer already waiting (ALREADY_IN_QUEUE)"
//	@Failure		503		{object}	response.ErrorResponse	"Concurrent updates, retry (CONCURRENCY_CONFLICT)"
//	@Router			/api/public/queues/{id}/join [post]
func (h *QueueHandler) PublicJoin(c *gin.Context) {
	h.join(c, c.Param("id"), queue.SourcePublic)
}

func (h *QueueHandler) join(c *gin.Context, queueID string, source queue.Source) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}
	view, err := h.svc.AddCustomer(c.Request.Context(), queueID, req.params(source), h.now())
	if err != nil {
		queueError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newEntryViewResponse(*view))
}

// QRJoin godoc
//
//	@Summary		Join by QR code
//	@Description	Admits a customer who scanned the queue's signed QR code
//	@Tags			queue
//	@Accept			json
//	@Produce		json
//	@Param			entry	body		QRJoinRequest			true	"QR token and customer"
//	@Success		201		{object}	EntryResponse			"Created entry with its position and estimated wait"
//	@Failure		400		{object}	response.ErrorResponse	"Validation error (VALIDATION_ERROR) or queue disabled (QUEUE_INACTIVE)"
//	@Failure		401		{object}	response.ErrorResponse	"Invalid or expired QR code (INVALID_TOKEN)"
//	@Failure		404		{object}	response.ErrorResponse	"Queue not found (QUEUE_NOT_FOUND)"
//	@Failure		409		{object}	response.ErrorResponse	"Queue full (QUEUE_FULL) or customer already waiting (ALREADY_IN_QUEUE)"
//	@Router			/api/qr/join [post]
func (h *QueueHandler) QRJoin(c *gin.Context) {
	var req QRJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}
	queueID, err := h.issuer.ParseQR(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{
			Code:    response.CodeInvalidToken,
			Message: "Invalid or expired QR code",
		})
		return
	}
	view, err := h.svc.AddCustomer(c.Request.Context(), queueID, req.params(queue.SourceQR), h.now())
	if err != nil {
		queueError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newEntryViewResponse(*view))
}

// Leave godoc
//
//	@Summary		Leave the queue
//	@Description	Cancels the customer's own entry; everyone behind moves up
//	@Tags			queue
//	@Produce		json
//	@Param			id		path		string					true	"Queue ID"
//	@Param			entryId	path		string					true	"Entry ID"
//	@Success		200		{object}	EntryResponse			"Cancelled entry"
//	@Failure		404		{object}	response.ErrorResponse	"Queue or entry not found (QUEUE_NOT_FOUND, ENTRY_NOT_FOUND)"
//	@Failure		409		{object}	response.ErrorResponse	"Entry already finished (INVALID_TRANSITION)"
//	@Router			/api/public/queues/{id}/entries/{entryId} [delete]
func (h *QueueHandler) Leave(c *gin.Context) {
	entry, err := h.svc.Leave(c.Request.Context(), c.Param("id"), c.Param("entryId"), h.now())
	if err != nil {
		queueError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newEntryResponse(*entry))
}

// Status godoc
//
//	@Summary		Queue status
//	@Description	Returns the queue and every active entry in position order with estimated waits
//	@Tags			queue
//	@Produce		json
//	@Param			id	path		string					true	"Queue ID"
//	@Success		200	{object}	QueueStatusResponse		"Queue status"
//	@Failure		404	{object}	response.ErrorResponse	"Queue not found (QUEUE_NOT_FOUND)"
//	@Router			/api/queues/{id}/status [get]
func (h *QueueHandler) Status(c *gin.Context) {
	snap, err := h.svc.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		queueError(c, h.log, err)
		return
	}
	resp := QueueStatusResponse{
		QueueID:     snap.QueueID,
		LocationID:  snap.LocationID,
		Name:        snap.Name,
		IsActive:    snap.IsActive,
		MaxSize:     snap.MaxSize,
		ActiveStaff: snap.ActiveStaff,
		Entries:     make([]EntryResponse, 0, len(snap.Entries)),
	}
	for _, v := range snap.Entries {
		resp.Entries = append(resp.Entries, newEntryViewResponse(v))
	}
	c.JSON(http.StatusOK, resp)
}

// EntryStatus godoc
//
//	@Summary		Ticket status
//	@Description	Returns one entry with its current position and estimated wait (-1 when unknown)
//	@Tags			queue
//	@Produce		json
//	@Param			id		path		string					true	"Queue ID"
//	@Param			entryId	path		string					true	"Entry ID"
//	@Success		200		{object}	EntryResponse			"Entry"
//	@Failure		404		{object}	response.ErrorResponse	"Queue or entry not found (QUEUE_NOT_FOUND, ENTRY_NOT_FOUND)"
//	@Router			/api/queues/{id}/entries/{entryId} [get]
func (h *QueueHandler) EntryStatus(c *gin.Context) {
	view, err := h.svc.EntryStatus(c.Request.Context(), c.Param("id"), c.Param("entryId"))
	if err != nil {
		queueError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newEntryViewResponse(*view))
}

// CustomerEntries godoc
//
//	@Summary		Customer's entries
//	@Description	Lists the active entries a known customer holds across all queues
//	@Tags			queue
//	@Produce		json
//	@Param			customerId	path		string					true	"Customer ID"
//	@Success		200			{array}		EntryResponse			"Active entries"
//	@Failure		500			{object}	response.ErrorResponse	"Server error (INTERNAL_ERROR)"
//	@Router			/api/customers/{customerId}/entries [get]
func (h *QueueHandler) CustomerEntries(c *gin.Context) {
	ctx := c.Request.Context()
	entries, err := h.entries.FindActiveByCustomer(ctx, c.Param("customerId"))
	if err != nil {
		queueError(c, h.log, err)
		return
	}

	items := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		view, err := h.svc.EntryStatus(ctx, e.QueueID, e.ID)
		if err != nil {
			// the entry moved on between the two reads
			h.log.Debug("skip customer entry", zap.String("entry_id", e.ID), zap.Error(err))
			continue
		}
		if !view.Status.IsActive() {
			continue
		}
		items = append(items, newEntryViewResponse(*view))
	}
	c.JSON(http.StatusOK, items)
}
