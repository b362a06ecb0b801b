package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/entity"
	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/sse"
	"github.com/antonioqueb/inventory-shopping-cart/internal/shared/erpgw"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrWizardNotFound 向导会话不存在或已关闭
	ErrWizardNotFound = errors.New("向导会话不存在")
	// ErrEmptyCart 购物车为空时不允许打开向导
	ErrEmptyCart = errors.New("购物车为空")
	// ErrPermissionDenied 无对应转换权限
	ErrPermissionDenied = errors.New("无操作权限")
	// ErrHeldLotsInCart 购物车内有已预留的lot，销售流程拒绝打开
	ErrHeldLotsInCart = errors.New("购物车中存在已预留的lot")
)

// WizardService 转换向导状态机。每个向导是一次独立会话：
// 线性步骤推进、前进校验当前步、后退不校验，搜索经过防抖且只采纳最新结果
type WizardService struct {
	mu       sync.Mutex
	sessions map[string]*wizardSession

	cart       *CartService
	gw         ERPGateway
	notifier   Notifier
	permission PermissionSource
	debounce   time.Duration
	logger     *zap.Logger
}

type wizardSession struct {
	state   entity.WizardState
	results map[erpgw.SearchField][]erpgw.Candidate

	// 防抖定时器与单调序号，均按搜索字段独立
	timers map[erpgw.SearchField]*time.Timer
	seq    map[erpgw.SearchField]int64
}

// FieldsUpdate 向导字段的部分更新，nil 字段保持不变
type FieldsUpdate struct {
	Counterpart   *entity.NamedRef         `json:"counterpart,omitempty"`
	Project       *entity.NamedRef         `json:"project,omitempty"`
	Contact       *entity.NamedRef         `json:"contact,omitempty"`
	Destination   *entity.NamedRef         `json:"destination,omitempty"`
	Currency      *string                  `json:"currency,omitempty"`
	PricelistID   *string                  `json:"pricelist_id,omitempty"`
	ProductPrices map[string]float64       `json:"product_prices,omitempty"`
	Services      []entity.ExtraLine       `json:"services,omitempty"`
	BackOrders    []entity.ExtraLine       `json:"back_orders,omitempty"`
	Notes         *string                  `json:"notes,omitempty"`
	ApplyTax      *bool                    `json:"apply_tax,omitempty"`
	LabelFormat   *string                  `json:"label_format,omitempty"`
}

// NewWizardService 创建向导服务
func NewWizardService(cart *CartService, gw ERPGateway, notifier Notifier, permission PermissionSource, debounce time.Duration, logger *zap.Logger) *WizardService {
	return &WizardService{
		sessions:   make(map[string]*wizardSession),
		cart:       cart,
		gw:         gw,
		notifier:   notifier,
		permission: permission,
		debounce:   debounce,
		logger:     logger,
	}
}

// Open 打开一个转换向导。打开前同步购物车、检查权限、
// 校验购物车非空；销售流程在购物车含已预留lot时拒绝打开
func (s *WizardService) Open(ctx context.Context, userID string, kind entity.WizardKind, opts entity.WizardOptions) (*entity.WizardState, error) {
	snapshot := s.cart.Snapshot(userID)
	if len(snapshot.Items) == 0 {
		s.notifier.Notify(userID, sse.Notice{Type: sse.NoticeWarning, Message: "购物车为空，请先选择库存"})
		return nil, ErrEmptyCart
	}

	sales, inventory, err := s.permission.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("加载权限失败: %w", err)
	}
	switch kind {
	case entity.WizardHold, entity.WizardSale:
		if !sales {
			return nil, ErrPermissionDenied
		}
	case entity.WizardTransfer:
		if !inventory {
			return nil, ErrPermissionDenied
		}
	}

	if kind == entity.WizardSale && snapshot.HasHeldItems() {
		s.notifier.Notify(userID, sse.Notice{
			Type:    sse.NoticeWarning,
			Message: "购物车中存在已预留的lot，请先移除后再创建销售订单",
			Sticky:  true,
		})
		return nil, ErrHeldLotsInCart
	}

	if err := s.cart.Sync(ctx, userID); err != nil {
		return nil, err
	}

	state := entity.WizardState{
		ID:            uuid.New().String(),
		UserID:        userID,
		Kind:          kind,
		Steps:         entity.StepsFor(kind, opts),
		CurrentStep:   1,
		Currency:      "USD",
		ProductPrices: make(map[string]float64),
		PriceOptions:  make(map[string][]entity.PriceOption),
		ApplyTax:      kind == entity.WizardSale,
	}

	if kind == entity.WizardSale || (kind == entity.WizardHold && opts.Priced) {
		s.loadPricing(ctx, userID, &state, snapshot)
	}

	sess := &wizardSession{
		state:   state,
		results: make(map[erpgw.SearchField][]erpgw.Candidate),
		timers:  make(map[erpgw.SearchField]*time.Timer),
		seq:     make(map[erpgw.SearchField]int64),
	}

	s.mu.Lock()
	s.sessions[state.ID] = sess
	s.mu.Unlock()

	s.logger.Info("wizard opened",
		zap.String("wizard_id", state.ID),
		zap.String("user_id", userID),
		zap.String("kind", string(kind)),
		zap.Int("steps", len(state.Steps)))

	result := state
	return &result, nil
}

// loadPricing 加载价格表与每个产品的价格档位，首个档位作为默认价格。
// 加载失败不阻塞向导，只提示操作员稍后手动填价
func (s *WizardService) loadPricing(ctx context.Context, userID string, state *entity.WizardState, snapshot entity.Cart) {
	pricelists, err := s.gw.ListPricelists(ctx, userID)
	if err != nil {
		s.logger.Warn("加载价格表失败", zap.String("user_id", userID), zap.Error(err))
		s.notifier.Notify(userID, sse.Notice{Type: sse.NoticeWarning, Message: "加载价格表失败，请手动填写价格"})
	} else if len(pricelists) > 0 {
		state.PricelistID = pricelists[0].ID
	}

	for productID := range snapshot.ProductGroups {
		options, err := s.gw.GetPriceOptions(ctx, userID, productID, state.Currency)
		if err != nil {
			s.logger.Warn("加载价格档位失败",
				zap.String("user_id", userID),
				zap.String("product_id", productID),
				zap.Error(err))
			continue
		}
		converted := make([]entity.PriceOption, 0, len(options))
		for _, opt := range options {
			converted = append(converted, entity.PriceOption{Label: opt.Label, Value: opt.Value})
		}
		state.PriceOptions[productID] = converted
		if len(converted) > 0 {
			state.ProductPrices[productID] = converted[0].Value
		}
	}
}

// Get 返回向导状态，校验归属
func (s *WizardService) Get(userID, wizardID string) (*entity.WizardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.get(userID, wizardID)
	if err != nil {
		return nil, err
	}
	state := sess.state
	return &state, nil
}

// get 调用方持有锁
func (s *WizardService) get(userID, wizardID string) (*wizardSession, error) {
	sess, ok := s.sessions[wizardID]
	if !ok || sess.state.UserID != userID {
		return nil, ErrWizardNotFound
	}
	return sess, nil
}

// Advance 前进一步。先校验当前步的必填项，不通过时停在原地并提示
func (s *WizardService) Advance(userID, wizardID string) (*entity.WizardState, error) {
	productIDs := productIDsOf(s.cart.Snapshot(userID))

	s.mu.Lock()
	sess, err := s.get(userID, wizardID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	ok, message := sess.state.ValidateStep(sess.state.Current(), productIDs)
	if ok && !sess.state.OnLastStep() {
		sess.state.CurrentStep++
	}
	state := sess.state
	s.mu.Unlock()

	if !ok {
		s.notifier.Notify(userID, sse.Notice{Type: sse.NoticeWarning, Message: message})
	}
	return &state, nil
}

// Retreat 后退一步，不做校验，下限是第一步
func (s *WizardService) Retreat(userID, wizardID string) (*entity.WizardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.get(userID, wizardID)
	if err != nil {
		return nil, err
	}
	if sess.state.CurrentStep > 1 {
		sess.state.CurrentStep--
	}
	state := sess.state
	return &state, nil
}

// SetFields 部分更新向导字段。币种变更会重新加载价格档位并重置默认价格
func (s *WizardService) SetFields(ctx context.Context, userID, wizardID string, update FieldsUpdate) (*entity.WizardState, error) {
	s.mu.Lock()
	sess, err := s.get(userID, wizardID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	if update.Counterpart != nil {
		sess.state.Counterpart = update.Counterpart
	}
	if update.Project != nil {
		sess.state.Project = update.Project
	}
	if update.Contact != nil {
		sess.state.Contact = update.Contact
	}
	if update.Destination != nil {
		sess.state.Destination = update.Destination
	}
	if update.PricelistID != nil {
		sess.state.PricelistID = *update.PricelistID
	}
	for productID, price := range update.ProductPrices {
		sess.state.ProductPrices[productID] = price
	}
	if update.Services != nil {
		sess.state.Services = update.Services
	}
	if update.BackOrders != nil {
		sess.state.BackOrders = update.BackOrders
	}
	if update.Notes != nil {
		sess.state.Notes = *update.Notes
	}
	if update.ApplyTax != nil {
		sess.state.ApplyTax = *update.ApplyTax
	}
	if update.LabelFormat != nil {
		sess.state.LabelFormat = *update.LabelFormat
	}

	currencyChanged := update.Currency != nil && *update.Currency != sess.state.Currency
	if currencyChanged {
		sess.state.Currency = *update.Currency
		sess.state.PriceOptions = make(map[string][]entity.PriceOption)
		sess.state.ProductPrices = make(map[string]float64)
	}
	state := sess.state
	s.mu.Unlock()

	if currencyChanged {
		snapshot := s.cart.Snapshot(userID)
		reloaded := state
		reloaded.ProductPrices = make(map[string]float64)
		reloaded.PriceOptions = make(map[string][]entity.PriceOption)
		s.loadPricing(ctx, userID, &reloaded, snapshot)

		s.mu.Lock()
		if sess, err := s.get(userID, wizardID); err == nil {
			sess.state.PricelistID = reloaded.PricelistID
			sess.state.PriceOptions = reloaded.PriceOptions
			sess.state.ProductPrices = reloaded.ProductPrices
			state = sess.state
		}
		s.mu.Unlock()
	}

	return &state, nil
}

// Search 发起一次防抖搜索。连续输入只触发最后一次；
// 每个字段维护单调递增的请求序号，过期响应直接丢弃
func (s *WizardService) Search(userID, wizardID string, field erpgw.SearchField, term string) error {
	s.mu.Lock()
	sess, err := s.get(userID, wizardID)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if timer, ok := sess.timers[field]; ok {
		timer.Stop()
	}
	sess.timers[field] = time.AfterFunc(s.debounce, func() {
		seq := s.nextSeq(wizardID, field)
		if seq == 0 {
			return
		}
		s.executeSearch(userID, wizardID, field, term, seq)
	})
	s.mu.Unlock()
	return nil
}

// nextSeq 为字段分配下一个请求序号，向导已关闭时返回 0
func (s *WizardService) nextSeq(wizardID string, field erpgw.SearchField) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[wizardID]
	if !ok {
		return 0
	}
	sess.seq[field]++
	return sess.seq[field]
}

func (s *WizardService) executeSearch(userID, wizardID string, field erpgw.SearchField, term string, seq int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	candidates, err := s.gw.SearchCandidates(ctx, userID, field, term)
	if err != nil {
		s.logger.Warn("搜索失败",
			zap.String("wizard_id", wizardID),
			zap.String("field", string(field)),
			zap.Error(err))
		return
	}
	s.applyResults(userID, wizardID, field, seq, candidates)
}

// applyResults 采纳一次搜索响应。序号落后于该字段最新序号的响应丢弃，
// 保证展示的候选永远对应最后一次输入
func (s *WizardService) applyResults(userID, wizardID string, field erpgw.SearchField, seq int64, candidates []erpgw.Candidate) bool {
	s.mu.Lock()
	sess, ok := s.sessions[wizardID]
	if !ok || seq < sess.seq[field] {
		s.mu.Unlock()
		return false
	}
	sess.results[field] = candidates
	s.mu.Unlock()

	s.notifier.PublishSearchResults(userID, wizardID, string(field), candidates)
	return true
}

// Results 返回字段最近一次被采纳的搜索结果
func (s *WizardService) Results(userID, wizardID string, field erpgw.SearchField) ([]erpgw.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.get(userID, wizardID)
	if err != nil {
		return nil, err
	}
	return sess.results[field], nil
}

// CreateRecord 内联创建业务对象并立即选入向导对应字段
func (s *WizardService) CreateRecord(ctx context.Context, userID, wizardID string, field erpgw.SearchField, req *erpgw.CreateRecordRequest) (*entity.WizardState, error) {
	var (
		created *erpgw.Candidate
		err     error
	)
	switch field {
	case erpgw.FieldCounterpart:
		created, err = s.gw.CreateCounterpart(ctx, userID, req)
	case erpgw.FieldProject:
		created, err = s.gw.CreateProject(ctx, userID, req)
	case erpgw.FieldContact:
		created, err = s.gw.CreateContact(ctx, userID, req)
	default:
		return nil, fmt.Errorf("字段 %s 不支持内联创建", field)
	}
	if err != nil {
		s.notifier.Notify(userID, sse.Notice{
			Type:    sse.NoticeDanger,
			Message: fmt.Sprintf("创建 %s 失败", req.Name),
		})
		return nil, fmt.Errorf("内联创建记录失败: %w", err)
	}

	ref := &entity.NamedRef{ID: created.ID, Name: created.Label()}
	update := FieldsUpdate{}
	switch field {
	case erpgw.FieldCounterpart:
		update.Counterpart = ref
	case erpgw.FieldProject:
		update.Project = ref
	case erpgw.FieldContact:
		update.Contact = ref
	}

	state, err := s.SetFields(ctx, userID, wizardID, update)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(userID, sse.Notice{
		Type:    sse.NoticeSuccess,
		Message: fmt.Sprintf("%s 创建成功", created.Label()),
	})
	return state, nil
}

// Close 关闭向导并释放会话
func (s *WizardService) Close(userID, wizardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[wizardID]
	if !ok || sess.state.UserID != userID {
		return
	}
	for _, timer := range sess.timers {
		timer.Stop()
	}
	delete(s.sessions, wizardID)
}

// beginSubmit 标记向导进入提交态，已在提交中返回 false
func (s *WizardService) beginSubmit(userID, wizardID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.get(userID, wizardID)
	if err != nil {
		return false, err
	}
	if sess.state.IsSubmitting {
		return false, nil
	}
	sess.state.IsSubmitting = true
	return true, nil
}

func (s *WizardService) endSubmit(userID, wizardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, err := s.get(userID, wizardID); err == nil {
		sess.state.IsSubmitting = false
	}
}

func productIDsOf(cart entity.Cart) []string {
	ids := make([]string, 0, len(cart.ProductGroups))
	for productID := range cart.ProductGroups {
		ids = append(ids, productID)
	}
	return ids
}
