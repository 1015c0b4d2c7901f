package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cpuguy83/agenda/internal/attendance"
	"github.com/cpuguy83/agenda/internal/calendar"
	"github.com/cpuguy83/agenda/internal/current"
	"github.com/cpuguy83/agenda/internal/filter"
	"github.com/cpuguy83/agenda/internal/layout"
	"github.com/cpuguy83/agenda/internal/links"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"events":  s.deps.Board.Len(),
		"clients": s.deps.Hub.Clients(),
	})
}

// query is the parsed filter state of a request.
type query struct {
	criteria filter.Criteria
	year     int
}

// parseQuery reads month (1-12), year, weekdays (csv 0-6 or preset) and window.
func (s *Server) parseQuery(c *gin.Context, now time.Time) (query, error) {
	q := query{year: now.Year()}

	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return q, fmt.Errorf("%w: invalid month %q", errBadRequest, v)
		}
		q.criteria.Month = time.Month(m)
	}
	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return q, fmt.Errorf("%w: invalid year %q", errBadRequest, v)
		}
		q.year = y
	}

	days, err := weekdays(c)
	if err != nil {
		return q, err
	}
	q.criteria.Weekdays = days

	window, err := filter.ParseWindow(c.Query("window"))
	if err != nil {
		return q, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	q.criteria.Window = window
	return q, nil
}

// publicScope marks requests served to the public page.
const publicScope = "public"

func markPublic(c *gin.Context) {
	c.Set(publicScope, true)
	c.Next()
}

// weekdays reads the weekday selection. The public page must keep at least one day.
func weekdays(c *gin.Context) (filter.WeekdaySet, error) {
	sel, err := filter.ParseSelection(c.Query("weekdays"), c.GetBool(publicScope))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return sel.Set, nil
}

// filtering reports whether the request narrows the agenda at all.
func filtering(c *gin.Context) bool {
	for _, k := range []string{"month", "weekdays", "window"} {
		if _, ok := c.GetQuery(k); ok {
			return true
		}
	}
	return false
}

// ensureLoaded refetches when a request needs months the snapshot does not cover.
// A failed refetch is logged and the request is served from what is loaded.
func (s *Server) ensureLoaded(c *gin.Context, months ...layout.YearMonth) {
	r := s.deps.Refresher
	if r == nil || len(months) == 0 {
		return
	}
	watched := r.Watched()
	missing := false
	for _, m := range months {
		if !slices.Contains(watched, m) {
			missing = true
			break
		}
	}
	if !missing {
		return
	}
	if _, err := r.Refresh(c.Request.Context(), months...); err != nil {
		slog.Warn("refetch for request failed", "months", months, "error", err)
	}
}

// filtered returns the snapshot narrowed by the request's filter state.
func (s *Server) filtered(c *gin.Context) ([]calendar.Event, time.Time, error) {
	now := s.now().In(s.loc)
	q, err := s.parseQuery(c, now)
	if err != nil {
		return nil, now, err
	}
	if q.criteria.Month != 0 {
		s.ensureLoaded(c, layout.YearMonth{Year: q.year, Month: q.criteria.Month})
	}
	return filter.Apply(s.deps.Board.All(), q.criteria, now), now, nil
}

func (s *Server) handleEvents(c *gin.Context) {
	events, now, err := s.filtered(c)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": s.toDTOs(events, now)})
}

func (s *Server) handleDays(c *gin.Context) {
	events, now, err := s.filtered(c)
	if err != nil {
		writeError(c, err)
		return
	}

	days := layout.GroupByDay(events)
	out := make([]dayDTO, 0, len(days))
	for _, key := range days.Keys() {
		dayEvents := days[key]
		day := dayDTO{
			Date:   key,
			Label:  dayLabel(dayEvents[0].Start, now),
			Events: s.toDTOs(dayEvents, now),
		}
		buckets := layout.GroupBy15MinuteBucket(dayEvents)
		for _, bk := range buckets.Keys() {
			day.Buckets = append(day.Buckets, bucketDTO{Key: bk, Events: s.toDTOs(buckets[bk], now)})
		}
		out = append(out, day)
	}
	c.JSON(http.StatusOK, gin.H{"days": out, "count": len(events)})
}

func (s *Server) handleWeek(c *gin.Context) {
	now := s.now().In(s.loc)
	day := now
	if v := c.Query("date"); v != "" {
		d, err := time.ParseInLocation(calendar.DateLayout, v, s.loc)
		if err != nil {
			writeError(c, fmt.Errorf("%w: invalid date %q", errBadRequest, v))
			return
		}
		day = d
	}
	days, err := weekdays(c)
	if err != nil {
		writeError(c, err)
		return
	}

	start := layout.StartOfWeek(day, s.weekStart)
	s.ensureLoaded(c, layout.Months(start, start.AddDate(0, 0, 7))...)

	events := filter.Apply(s.deps.Board.All(), filter.Criteria{Weekdays: days}, now)
	week := layout.BuildWeek(events, day, s.weekStart, s.grid, s.strategy)
	c.JSON(http.StatusOK, s.weekToDTO(week, now))
}

// handleCurrent reports the meeting in progress. With filter parameters it is
// looked up in the filtered agenda; otherwise the locator's value is used.
func (s *Server) handleCurrent(c *gin.Context) {
	var (
		e   calendar.Event
		ok  bool
		now = s.now()
	)
	switch {
	case filtering(c):
		events, at, err := s.filtered(c)
		if err != nil {
			writeError(c, err)
			return
		}
		now = at
		e, ok = current.Find(events, now)
	case s.deps.Current != nil:
		e, ok = s.deps.Current.Current()
	default:
		e, ok = current.Find(s.deps.Board.All(), now)
	}

	var out currentDTO
	if ok {
		dto := s.toDTO(e, now)
		out.Event = &dto
		out.Remaining = remaining(&e, now)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleAttendance(c *gin.Context) {
	now := s.now()
	b := s.deps.Board
	counts := b.Counts()
	out := attendanceDTO{
		Pending:  s.toDTOs(b.Bucket(calendar.KindPending), now),
		Accepted: s.toDTOs(b.Bucket(calendar.KindAccepted), now),
		Declined: s.toDTOs(b.Bucket(calendar.KindDeclined), now),
		Counts:   make(map[string]int, len(counts)),
	}
	for k, n := range counts {
		out.Counts[k.String()] = n
	}
	c.JSON(http.StatusOK, out)
}

// handleStatus is the dashboard transition; the caller must confirm it.
func (s *Server) handleStatus(c *gin.Context) {
	var body statusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	to, err := calendar.ParseStatus(body.Status)
	if err != nil {
		writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	req := attendance.Request{EventID: c.Param("id"), To: to, Flow: attendance.Dashboard}
	if body.Confirm {
		req.Confirmer = attendance.AutoConfirm
	}
	s.transition(c, req)
}

// handlePublic answers a pending invitation from the public page.
func (s *Server) handlePublic(to calendar.Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Confirm bool `json:"confirm"`
		}
		// The body is optional, but one that is sent must be valid.
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}

		req := attendance.Request{EventID: c.Param("id"), To: to, Flow: attendance.Public}
		if body.Confirm {
			req.Confirmer = attendance.AutoConfirm
		}
		s.transition(c, req)
	}
}

func (s *Server) transition(c *gin.Context, req attendance.Request) {
	e, err := s.deps.Attendance.RequestTransition(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": s.toDTO(e, s.now())})
}

func (s *Server) handleDocument(c *gin.Context) {
	e, ok := s.deps.Board.Get(c.Param("id"))
	if !ok {
		writeError(c, fmt.Errorf("%w: %s", attendance.ErrUnknownEvent, c.Param("id")))
		return
	}
	if !e.HasDocument() {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "event has no document"})
		return
	}
	c.Redirect(http.StatusFound, links.DocumentURL(s.storageBase, e.DocumentRef))
}

func (s *Server) handleICS(c *gin.Context) {
	events, _, err := s.filtered(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := calendar.EncodeICS(&buf, events); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="agenda.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}
