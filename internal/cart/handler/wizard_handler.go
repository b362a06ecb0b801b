package handler

import (
	"errors"

	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/entity"
	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/service"
	"github.com/antonioqueb/inventory-shopping-cart/internal/shared/erpgw"
	"github.com/gin-gonic/gin"
)

// WizardHandler 转换向导接口
type WizardHandler struct {
	wizards    *service.WizardService
	conversion *service.ConversionService
}

// NewWizardHandler 创建向导处理器
func NewWizardHandler(wizards *service.WizardService, conversion *service.ConversionService) *WizardHandler {
	return &WizardHandler{wizards: wizards, conversion: conversion}
}

type openWizardRequest struct {
	Kind    entity.WizardKind    `json:"kind" binding:"required"`
	Options entity.WizardOptions `json:"options"`
}

// Open 打开转换向导
// POST /api/v1/wizards
func (h *WizardHandler) Open(c *gin.Context) {
	userID := GetUserID(c)

	var req openWizardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	state, err := h.wizards.Open(c.Request.Context(), userID, req.Kind, req.Options)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCart), errors.Is(err, service.ErrHeldLotsInCart):
			Conflict(c, err.Error())
		case errors.Is(err, service.ErrPermissionDenied):
			Forbidden(c, err.Error())
		default:
			InternalError(c, err.Error())
		}
		return
	}
	Created(c, state)
}

// Get 返回向导状态
// GET /api/v1/wizards/:id
func (h *WizardHandler) Get(c *gin.Context) {
	state, err := h.wizards.Get(GetUserID(c), c.Param("id"))
	if err != nil {
		NotFound(c, err.Error())
		return
	}
	Success(c, state)
}

// Advance 前进一步
// POST /api/v1/wizards/:id/advance
func (h *WizardHandler) Advance(c *gin.Context) {
	state, err := h.wizards.Advance(GetUserID(c), c.Param("id"))
	if err != nil {
		NotFound(c, err.Error())
		return
	}
	Success(c, state)
}

// Retreat 后退一步
// POST /api/v1/wizards/:id/retreat
func (h *WizardHandler) Retreat(c *gin.Context) {
	state, err := h.wizards.Retreat(GetUserID(c), c.Param("id"))
	if err != nil {
		NotFound(c, err.Error())
		return
	}
	Success(c, state)
}

// SetFields 部分更新向导字段
// PATCH /api/v1/wizards/:id/fields
func (h *WizardHandler) SetFields(c *gin.Context) {
	var update service.FieldsUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	state, err := h.wizards.SetFields(c.Request.Context(), GetUserID(c), c.Param("id"), update)
	if err != nil {
		NotFound(c, err.Error())
		return
	}
	Success(c, state)
}

type searchRequest struct {
	Field erpgw.SearchField `json:"field" binding:"required"`
	Term  string            `json:"term"`
}

// Search 发起防抖搜索。结果通过SSE推送，也可轮询 Results 接口
// POST /api/v1/wizards/:id/search
func (h *WizardHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	if err := h.wizards.Search(GetUserID(c), c.Param("id"), req.Field, req.Term); err != nil {
		NotFound(c, err.Error())
		return
	}
	Success(c, nil)
}

// Results 返回字段最近一次被采纳的搜索结果
// GET /api/v1/wizards/:id/results?field=counterpart
func (h *WizardHandler) Results(c *gin.Context) {
	field := erpgw.SearchField(c.Query("field"))
	if field == "" {
		BadRequest(c, "缺少field参数")
		return
	}

	candidates, err := h.wizards.Results(GetUserID(c), c.Param("id"), field)
	if err != nil {
		NotFound(c, err.Error())
		return
	}
	Success(c, candidates)
}

type createRecordRequest struct {
	Field erpgw.SearchField         `json:"field" binding:"required"`
	Body  erpgw.CreateRecordRequest `json:"body" binding:"required"`
}

// CreateRecord 内联创建业务对象并选入向导
// POST /api/v1/wizards/:id/create-record
func (h *WizardHandler) CreateRecord(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数无效: "+err.Error())
		return
	}
	if req.Body.Name == "" {
		BadRequest(c, "名称不能为空")
		return
	}

	state, err := h.wizards.CreateRecord(c.Request.Context(), GetUserID(c), c.Param("id"), req.Field, &req.Body)
	if err != nil {
		if errors.Is(err, service.ErrWizardNotFound) {
			NotFound(c, err.Error())
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, state)
}

// Submit 提交向导执行转换
// POST /api/v1/wizards/:id/submit
func (h *WizardHandler) Submit(c *gin.Context) {
	outcome, err := h.conversion.Submit(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWizardNotFound):
			NotFound(c, err.Error())
		case errors.Is(err, service.ErrNotOnLastStep), errors.Is(err, service.ErrAlreadySubmitting), errors.Is(err, service.ErrEmptyCart):
			Conflict(c, err.Error())
		default:
			InternalError(c, err.Error())
		}
		return
	}
	Success(c, outcome)
}

// Close 关闭向导
// DELETE /api/v1/wizards/:id
func (h *WizardHandler) Close(c *gin.Context) {
	h.wizards.Close(GetUserID(c), c.Param("id"))
	Success(c, nil)
}
