package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/infra/report"
)

type archiveHandler struct {
	svc *archive.Service
}

func filterFrom(c *gin.Context) (archive.Filter, error) {
	f := archive.Filter{No: c.Query("no")}
	var err error
	if f.StartDate, err = dateQuery(c, "startDate"); err != nil {
		return f, err
	}
	if f.EndDate, err = dateQuery(c, "endDate"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *archiveHandler) list(c *gin.Context) {
	f, err := filterFrom(c)
	if err != nil {
		fail(c, err)
		return
	}
	limit, offset, err := paging(c)
	if err != nil {
		fail(c, err)
		return
	}
	items, total, err := h.svc.Query(c.Request.Context(), f, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	if items == nil {
		items = []archive.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "total": total})
}

func (h *archiveHandler) get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sap": rec})
}

func (h *archiveHandler) export(c *gin.Context) {
	f, err := filterFrom(c)
	if err != nil {
		fail(c, err)
		return
	}
	items, _, err := h.svc.Query(c.Request.Context(), f, 0, 0)
	if err != nil {
		fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := report.ExportArchive(&buf, items); err != nil {
		fail(c, err)
		return
	}
	name := fmt.Sprintf("sap_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}
