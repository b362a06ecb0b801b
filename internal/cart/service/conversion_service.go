package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/entity"
	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/sse"
	"github.com/antonioqueb/inventory-shopping-cart/internal/shared/erpgw"
	"go.uber.org/zap"
)

var (
	// ErrNotOnLastStep 只有最后一步允许提交
	ErrNotOnLastStep = errors.New("向导未到确认步骤")
	// ErrAlreadySubmitting 提交已在进行中
	ErrAlreadySubmitting = errors.New("提交进行中")
)

// ConversionOutcome 一次转换提交的统一结果
type ConversionOutcome struct {
	Status       string          `json:"status"` // created / deferred / partial / failed
	OrderID      string          `json:"order_id,omitempty"`
	OrderName    string          `json:"order_name,omitempty"`
	Pickings     []erpgw.Picking `json:"pickings,omitempty"`
	SuccessCount int             `json:"success_count,omitempty"`
	ErrorCount   int             `json:"error_count,omitempty"`
	DownloadURL  string          `json:"download_url,omitempty"`
	Filename     string          `json:"filename,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// ConversionService 转换分发器。提交前整体同步购物车，按向导类型分发到
// 对应的ERP创建操作，统一解读结果：成功清空购物车并失效产品明细，
// 待授权按延迟成功处理，部分失败成功与失败并列呈现，传输失败保持现场
type ConversionService struct {
	cart     *CartService
	wizards  *WizardService
	catalog  UnitCatalog
	gw       ERPGateway
	notifier Notifier
	labels   LabelStore

	holdExpiryDays int
	logger         *zap.Logger
}

// NewConversionService 创建转换服务
func NewConversionService(cart *CartService, wizards *WizardService, catalog UnitCatalog, gw ERPGateway, notifier Notifier, labels LabelStore, holdExpiryDays int, logger *zap.Logger) *ConversionService {
	return &ConversionService{
		cart:           cart,
		wizards:        wizards,
		catalog:        catalog,
		gw:             gw,
		notifier:       notifier,
		labels:         labels,
		holdExpiryDays: holdExpiryDays,
		logger:         logger,
	}
}

// Submit 提交向导。全部步骤重新校验一遍，任何一步不通过都拒绝分发
func (s *ConversionService) Submit(ctx context.Context, userID, wizardID string) (*ConversionOutcome, error) {
	state, err := s.wizards.Get(userID, wizardID)
	if err != nil {
		return nil, err
	}
	if !state.OnLastStep() {
		return nil, ErrNotOnLastStep
	}

	snapshot := s.cart.Snapshot(userID)
	if len(snapshot.Items) == 0 {
		s.notifier.Notify(userID, sse.Notice{Type: sse.NoticeWarning, Message: "购物车为空"})
		return nil, ErrEmptyCart
	}

	productIDs := productIDsOf(snapshot)
	for _, step := range state.Steps {
		if ok, message := state.ValidateStep(step, productIDs); !ok {
			s.notifier.Notify(userID, sse.Notice{Type: sse.NoticeWarning, Message: message})
			return nil, fmt.Errorf("向导校验未通过: %s", message)
		}
	}

	started, err := s.wizards.beginSubmit(userID, wizardID)
	if err != nil {
		return nil, err
	}
	if !started {
		return nil, ErrAlreadySubmitting
	}
	defer s.wizards.endSubmit(userID, wizardID)

	if err := s.cart.Sync(ctx, userID); err != nil {
		s.notifier.Notify(userID, sse.Notice{Type: sse.NoticeDanger, Message: "同步购物车失败，请重试"})
		return nil, err
	}

	var outcome *ConversionOutcome
	switch state.Kind {
	case entity.WizardHold:
		outcome, err = s.submitHold(ctx, userID, state, snapshot)
	case entity.WizardSale:
		outcome, err = s.submitSale(ctx, userID, state, snapshot)
	case entity.WizardTransfer:
		outcome, err = s.submitTransfer(ctx, userID, state, snapshot)
	case entity.WizardLabel:
		outcome, err = s.submitLabels(ctx, userID, state, snapshot)
	default:
		return nil, fmt.Errorf("未知向导类型: %s", state.Kind)
	}
	if err != nil {
		// 传输失败：向导保持打开、购物车不动，只提示
		s.logger.Error("转换提交失败",
			zap.String("user_id", userID),
			zap.String("wizard_id", wizardID),
			zap.String("kind", string(state.Kind)),
			zap.Error(err))
		s.notifier.Notify(userID, sse.Notice{Type: sse.NoticeDanger, Message: "操作失败，请稍后重试"})
		return nil, err
	}

	if outcome.Status == "created" || outcome.Status == "deferred" || outcome.Status == "partial" {
		if state.Kind != entity.WizardLabel {
			s.finishSuccess(ctx, userID)
		}
		s.wizards.Close(userID, wizardID)
	}
	return outcome, nil
}

// finishSuccess 成功回调：失效购物车产品的明细缓存并清空购物车
func (s *ConversionService) finishSuccess(ctx context.Context, userID string) {
	s.cart.InvalidateCartProducts(ctx, userID)
	if err := s.cart.Clear(ctx, userID); err != nil {
		s.logger.Error("转换成功后清空购物车失败", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *ConversionService) submitHold(ctx context.Context, userID string, state *entity.WizardState, snapshot entity.Cart) (*ConversionOutcome, error) {
	req := &erpgw.HoldRequest{
		CounterpartID: state.Counterpart.ID,
		ProjectID:     state.Project.ID,
		ContactID:     state.Contact.ID,
		UnitIDs:       snapshot.UnitIDs(),
		Notes:         state.Notes,
		Currency:      state.Currency,
		ProductPrices: state.ProductPrices,
		Services:      toGatewayLines(state.Services),
		BackOrders:    toGatewayLines(state.BackOrders),
		ExpiresAt:     businessDaysFromNow(time.Now(), s.holdExpiryDays).Format(time.RFC3339),
	}

	result, err := s.gw.CreateHolds(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	if result.NeedsAuthorization {
		return s.deferredOutcome(userID, result.Message), nil
	}

	outcome := &ConversionOutcome{
		Status:       "created",
		OrderID:      result.OrderID,
		SuccessCount: result.SuccessCount,
		ErrorCount:   result.ErrorCount,
	}
	if result.SuccessCount > 0 {
		s.notifier.Notify(userID, sse.Notice{
			Type:    sse.NoticeSuccess,
			Message: fmt.Sprintf("%d 个lot预留成功", result.SuccessCount),
		})
		if result.OrderID != "" {
			s.notifier.PublishDocumentCreated(userID, "hold", result.OrderID, "")
		}
	}
	if result.ErrorCount > 0 {
		// 部分失败：逐项列出失败原因，与成功通知并列呈现。
		// 全部失败时购物车保持原样
		outcome.Status = "partial"
		if result.SuccessCount == 0 {
			outcome.Status = "failed"
		}
		lines := make([]string, 0, len(result.Failed))
		for _, f := range result.Failed {
			lines = append(lines, fmt.Sprintf("%s: %s", f.Label, f.Error))
		}
		s.notifier.Notify(userID, sse.Notice{
			Type:    sse.NoticeWarning,
			Message: fmt.Sprintf("%d 个lot预留失败\n%s", result.ErrorCount, strings.Join(lines, "\n")),
			Sticky:  true,
		})
	}
	if result.SuccessCount == 0 && result.ErrorCount == 0 {
		outcome.Status = "failed"
		s.notifier.Notify(userID, sse.Notice{Type: sse.NoticeWarning, Message: "没有可预留的lot"})
	}
	return outcome, nil
}

func (s *ConversionService) submitSale(ctx context.Context, userID string, state *entity.WizardState, snapshot entity.Cart) (*ConversionOutcome, error) {
	req := &erpgw.SaleOrderRequest{
		CounterpartID: state.Counterpart.ID,
		Lines:         saleLinesOf(snapshot, state.ProductPrices),
		Services:      toGatewayLines(state.Services),
		Notes:         state.Notes,
		PricelistID:   state.PricelistID,
		ApplyTax:      state.ApplyTax,
	}
	if state.Project != nil {
		req.ProjectID = state.Project.ID
	}
	if state.Contact != nil {
		req.ContactID = state.Contact.ID
	}

	result, err := s.gw.CreateSaleOrder(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	if result.NeedsAuthorization {
		return s.deferredOutcome(userID, result.Message), nil
	}
	if !result.Success {
		s.notifier.Notify(userID, sse.Notice{Type: sse.NoticeWarning, Message: failureMessage(result.Message)})
		return &ConversionOutcome{Status: "failed", Message: result.Message}, nil
	}

	s.notifier.Notify(userID, sse.Notice{
		Type:    sse.NoticeSuccess,
		Message: fmt.Sprintf("销售订单 %s 创建成功", result.OrderName),
	})
	s.notifier.PublishDocumentCreated(userID, "sale_order", result.OrderID, result.OrderName)
	return &ConversionOutcome{Status: "created", OrderID: result.OrderID, OrderName: result.OrderName}, nil
}

func (s *ConversionService) submitTransfer(ctx context.Context, userID string, state *entity.WizardState, snapshot entity.Cart) (*ConversionOutcome, error) {
	req := &erpgw.TransferRequest{
		UnitIDs:               snapshot.UnitIDs(),
		DestinationLocationID: state.Destination.ID,
		Notes:                 state.Notes,
	}

	result, err := s.gw.CreateTransfer(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	if !result.Success || len(result.Pickings) == 0 {
		s.notifier.Notify(userID, sse.Notice{Type: sse.NoticeWarning, Message: "没有生成调拨单"})
		return &ConversionOutcome{Status: "failed"}, nil
	}

	// 按源库位逐单列出，保持粘性便于操作员逐个跳转
	lines := make([]string, 0, len(result.Pickings))
	for _, p := range result.Pickings {
		lines = append(lines, fmt.Sprintf("%s (%s)", p.Name, p.OriginLocation))
	}
	s.notifier.Notify(userID, sse.Notice{
		Type:    sse.NoticeSuccess,
		Message: fmt.Sprintf("已生成 %d 张调拨单\n%s", len(result.Pickings), strings.Join(lines, "\n")),
		Sticky:  true,
	})
	first := result.Pickings[0]
	s.notifier.PublishDocumentCreated(userID, "picking", first.ID, first.Name)
	return &ConversionOutcome{Status: "created", Pickings: result.Pickings}, nil
}

// submitLabels 生成标签批次。与其他转换不同：成功后不清空购物车，
// 原始标签数据存入对象存储并返回下载链接
func (s *ConversionService) submitLabels(ctx context.Context, userID string, state *entity.WizardState, snapshot entity.Cart) (*ConversionOutcome, error) {
	req := &erpgw.LabelRequest{
		UnitIDs:  snapshot.UnitIDs(),
		FormatID: state.LabelFormat,
	}

	result, err := s.gw.GenerateLabels(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		s.notifier.Notify(userID, sse.Notice{Type: sse.NoticeWarning, Message: failureMessage(result.Message)})
		return &ConversionOutcome{Status: "failed", Message: result.Message}, nil
	}

	outcome := &ConversionOutcome{Status: "created", Filename: result.Filename}
	if s.labels != nil && result.RawLabelData != "" {
		url, err := s.labels.Save(ctx, result.Filename, []byte(result.RawLabelData))
		if err != nil {
			s.logger.Error("保存标签批次失败",
				zap.String("user_id", userID),
				zap.String("filename", result.Filename),
				zap.Error(err))
		} else {
			outcome.DownloadURL = url
		}
	}

	s.notifier.Notify(userID, sse.Notice{
		Type:    sse.NoticeSuccess,
		Message: fmt.Sprintf("标签批次 %s 已生成", result.Filename),
	})
	return outcome, nil
}

// deferredOutcome 待授权的延迟成功：粘性提示、走成功回调、不产生单据跳转
func (s *ConversionService) deferredOutcome(userID, message string) *ConversionOutcome {
	if message == "" {
		message = "价格低于授权下限，已提交审批，审批通过后自动生成单据"
	}
	s.notifier.Notify(userID, sse.Notice{
		Type:    sse.NoticeInfo,
		Message: message,
		Sticky:  true,
	})
	return &ConversionOutcome{Status: "deferred", Message: message}
}

// saleLinesOf 把购物车的产品分组重建为订单行，lot 作为行内的选中明细
func saleLinesOf(snapshot entity.Cart, prices map[string]float64) []erpgw.SaleLine {
	lines := make([]erpgw.SaleLine, 0, len(snapshot.ProductGroups))
	for productID, group := range snapshot.ProductGroups {
		lots := make([]string, 0, len(group.Lots))
		for _, lot := range group.Lots {
			lots = append(lots, lot.ID)
		}
		lines = append(lines, erpgw.SaleLine{
			ProductID:    productID,
			Quantity:     group.TotalQuantity,
			UnitPrice:    prices[productID],
			SelectedLots: lots,
		})
	}
	return lines
}

func toGatewayLines(lines []entity.ExtraLine) []erpgw.ExtraLine {
	if len(lines) == 0 {
		return nil
	}
	out := make([]erpgw.ExtraLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, erpgw.ExtraLine{
			ProductID:   l.ProductID,
			DisplayName: l.DisplayName,
			UOMName:     l.UOMName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}
	return out
}

func failureMessage(message string) string {
	if message == "" {
		return "操作失败"
	}
	return message
}

// businessDaysFromNow 从 start 起顺延 n 个工作日（跳过周六周日）
func businessDaysFromNow(start time.Time, n int) time.Time {
	t := start
	for added := 0; added < n; {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return t
}
