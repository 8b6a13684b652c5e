package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/transport/http/middleware"
	"github.com/abelngansop-dot/studio-sub000/internal/usecase"
)

const watchKeepAlive = 25 * time.Second

// WatchHandler streams live subscription state as server-sent events. Each state change becomes
// a "snapshot" event; a failed subscription sends one "error" event and ends the stream.
type WatchHandler struct {
	services  *usecase.ServiceProvider
	keepAlive time.Duration
}

// NewWatchHandler constructs a watch handler.
func NewWatchHandler(services *usecase.ServiceProvider) *WatchHandler {
	return &WatchHandler{services: services, keepAlive: watchKeepAlive}
}

// RegisterRoutes binds the watch routes to the provided router group.
func (h *WatchHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/:collection", h.Collection)
	r.GET("/:collection/:id", h.Document)
}

type watchEvent struct {
	name    string
	payload any
	final   bool
}

// latest keeps only the newest pending event so a slow client never blocks store callbacks.
func latest(events chan watchEvent, ev watchEvent) {
	for {
		select {
		case events <- ev:
			return
		default:
		}
		select {
		case <-events:
		default:
		}
	}
}

func errorEvent(err error) watchEvent {
	message := "subscription failed"
	if domain.IsPermissionDenied(err) {
		message = "permission denied"
	}
	return watchEvent{name: "error", payload: ErrorResponse{Error: message}, final: true}
}

// Collection godoc
// @Summary Watch a collection query
// @Tags Documents
// @Security BearerAuth
// @Produce text/event-stream
// @Router /api/v1/watch/{collection} [get]
func (h *WatchHandler) Collection(c *gin.Context) {
	deps, ok := h.deps(c)
	if !ok {
		return
	}

	query, err := parseQuery(c.Param("collection"), c.QueryArray("where"), c.QueryArray("order"), c.Query("limit"))
	if err != nil {
		respondStoreError(c, err, "invalid query")
		return
	}
	query.MarkMemoized()

	events := make(chan watchEvent, 1)
	sub := usecase.NewCollectionSubscription(deps, func(state usecase.CollectionState) {
		switch {
		case state.IsLoading:
		case state.Err != nil:
			latest(events, errorEvent(state.Err))
		default:
			items := recordsToItems(state.Data)
			latest(events, watchEvent{name: "snapshot", payload: ListResponse{Items: items, Count: len(items)}})
		}
	})
	defer sub.Close()

	h.stream(c, events, func() { sub.Bind(query) })
}

// Document godoc
// @Summary Watch one document
// @Tags Documents
// @Security BearerAuth
// @Produce text/event-stream
// @Router /api/v1/watch/{collection}/{id} [get]
func (h *WatchHandler) Document(c *gin.Context) {
	deps, ok := h.deps(c)
	if !ok {
		return
	}
	ref, ok := documentRef(c)
	if !ok {
		return
	}
	ref.MarkMemoized()

	events := make(chan watchEvent, 1)
	sub := usecase.NewDocumentSubscription(deps, func(state usecase.DocumentState) {
		switch {
		case state.IsLoading:
		case state.Err != nil:
			latest(events, errorEvent(state.Err))
		case state.Data == nil:
			latest(events, watchEvent{name: "snapshot", payload: map[string]any{"id": ref.ID(), "exists": false}})
		default:
			latest(events, watchEvent{name: "snapshot", payload: state.Data.Data()})
		}
	})
	defer sub.Close()

	h.stream(c, events, func() { sub.Bind(ref) })
}

func (h *WatchHandler) deps(c *gin.Context) (usecase.Deps, bool) {
	deps, err := h.services.DepsFor(middleware.RequestIdentity(c))
	if err != nil {
		respondStoreError(c, err, "document store unavailable")
		return usecase.Deps{}, false
	}
	return deps, true
}

func (h *WatchHandler) stream(c *gin.Context, events chan watchEvent, start func()) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	start()

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			c.Writer.Flush()
		case ev := <-events:
			c.SSEvent(ev.name, ev.payload)
			c.Writer.Flush()
			if ev.final {
				return
			}
		}
	}
}
