package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Spok95/batch-weighing/internal/apperr"
	"github.com/Spok95/batch-weighing/internal/domain/catalog"
	"github.com/Spok95/batch-weighing/internal/infra/report"
)

const maxImportSize = 10 << 20

type catalogHandler struct {
	svc *catalog.Service
	log *slog.Logger
}

type productRequest struct {
	No          string   `json:"no"`
	MaterialNos []string `json:"materialNos"`
}

func (h *catalogHandler) create(c *gin.Context) {
	var req productRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.Register(c.Request.Context(), req.No, req.MaterialNos)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Product successfully created.", "product": p})
}

func (h *catalogHandler) list(c *gin.Context) {
	limit, offset, err := paging(c)
	if err != nil {
		fail(c, err)
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), catalog.Filter{No: c.Query("no")}, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	if items == nil {
		items = []catalog.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "total": total})
}

func (h *catalogHandler) get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("no"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}

func (h *catalogHandler) update(c *gin.Context) {
	var req productRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.Update(c.Request.Context(), c.Param("id"), req.No, req.MaterialNos)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product successfully updated.", "product": p})
}

func (h *catalogHandler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *catalogHandler) deleteMaterialLink(c *gin.Context) {
	if err := h.svc.DeleteMaterialLink(c.Request.Context(), c.Param("id"), c.Param("materialId")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *catalogHandler) materials(c *gin.Context) {
	items, err := h.svc.Materials(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if items == nil {
		items = []catalog.Material{}
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

type importError struct {
	Line    int    `json:"line"`
	No      string `json:"no"`
	Message string `json:"message"`
}

// importXLSX registers every product row of an uploaded workbook. Rows are
// independent: a rejected row does not undo the others.
func (h *catalogHandler) importXLSX(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, msgMissingField)
		return
	}
	if fh.Size > maxImportSize {
		badRequest(c, "file is too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, err)
		return
	}
	rows, err := report.ParseProducts(data)
	if err != nil {
		badRequest(c, "cannot read workbook: "+err.Error())
		return
	}

	created := []catalog.Product{}
	failed := []importError{}
	for _, row := range rows {
		p, err := h.svc.Register(c.Request.Context(), row.No, row.MaterialNos)
		if err != nil {
			if apperr.IsInternal(err) {
				h.log.Error("import row failed", "line", row.Line, "no", row.No, "err", err)
			}
			failed = append(failed, importError{Line: row.Line, No: row.No, Message: apperr.Public(err)})
			continue
		}
		created = append(created, *p)
	}
	h.log.Info("products imported", "file", fh.Filename, "created", len(created), "failed", len(failed))
	c.JSON(http.StatusOK, gin.H{"created": created, "errors": failed})
}
