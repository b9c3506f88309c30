package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Spok95/batch-weighing/internal/domain/process"
)

type processHandler struct {
	svc *process.Service
}

func (h *processHandler) start(c *gin.Context) {
	var req struct {
		No        string `json:"no"`
		BatchNo   string `json:"batchNo"`
		ProductNo string `json:"productNo"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.No == "" || req.BatchNo == "" || req.ProductNo == "" {
		badRequest(c, msgMissingField)
		return
	}
	p, err := h.svc.Open(c.Request.Context(), req.No, req.BatchNo, req.ProductNo)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Process successfully started.", "process": p})
}

func (h *processHandler) stop(c *gin.Context) {
	var req struct {
		ID      string     `json:"id"`
		EndTime *time.Time `json:"endTime"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.ID == "" {
		badRequest(c, msgMissingField)
		return
	}
	var end time.Time
	if req.EndTime != nil {
		end = *req.EndTime
	}
	res, err := h.svc.Close(c.Request.Context(), req.ID, end)
	if err != nil {
		fail(c, err)
		return
	}
	body := gin.H{"message": res.Message}
	if res.Archive != nil {
		body["sap"] = res.Archive
	}
	c.JSON(http.StatusOK, body)
}

func (h *processHandler) beginWeighing(c *gin.Context) {
	var req struct {
		ID         string `json:"id"`
		MaterialNo string `json:"materialNo"`
		Packaging  string `json:"packaging"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.ID == "" || req.MaterialNo == "" || req.Packaging == "" {
		badRequest(c, msgMissingField)
		return
	}
	p, w, err := h.svc.BeginWeighing(c.Request.Context(), req.ID, req.MaterialNo, req.Packaging)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"process": p, "material": w})
}

func (h *processHandler) endWeighing(c *gin.Context) {
	var req struct {
		ID         string     `json:"id"`
		MaterialID string     `json:"materialId"`
		Quantity   float64    `json:"quantity"`
		EndTime    *time.Time `json:"endTime"`
		Tolerance  float64    `json:"tolerance"`
		TargetQty  float64    `json:"targetQty"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.ID == "" || req.MaterialID == "" {
		badRequest(c, msgMissingField)
		return
	}
	in := process.EndWeighingInput{
		ProcessID:    req.ID,
		WeighingID:   req.MaterialID,
		Quantity:     req.Quantity,
		TolerancePct: req.Tolerance,
		TargetQty:    req.TargetQty,
	}
	if req.EndTime != nil {
		in.EndTime = *req.EndTime
	}
	p, w, err := h.svc.EndWeighing(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"process": p, "material": w})
}

func (h *processHandler) cancelWeighing(c *gin.Context) {
	var req struct {
		ID         string `json:"id"`
		MaterialID string `json:"materialId"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.ID == "" || req.MaterialID == "" {
		badRequest(c, msgMissingField)
		return
	}
	p, err := h.svc.CancelWeighing(c.Request.Context(), req.ID, req.MaterialID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"process": p})
}

func (h *processHandler) get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"process": p})
}
