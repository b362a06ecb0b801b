package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/entity"
	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/sse"
	"github.com/antonioqueb/inventory-shopping-cart/internal/shared/erpgw"
	"go.uber.org/zap"
)

// fakeBasket 内存购物车存储，可注入写失败
type fakeBasket struct {
	mu       sync.Mutex
	lines    map[string]map[string]entity.BasketLine // userID -> unitID -> line
	failNext bool
	upserts  int
	removes  int
	replaced int
}

func newFakeBasket() *fakeBasket {
	return &fakeBasket{lines: make(map[string]map[string]entity.BasketLine)}
}

func (f *fakeBasket) userLines(userID string) map[string]entity.BasketLine {
	if f.lines[userID] == nil {
		f.lines[userID] = make(map[string]entity.BasketLine)
	}
	return f.lines[userID]
}

func (f *fakeBasket) takeFailure() bool {
	if f.failNext {
		f.failNext = false
		return true
	}
	return false
}

func (f *fakeBasket) ListByUser(_ context.Context, userID string) ([]entity.BasketLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.BasketLine, 0, len(f.userLines(userID)))
	for _, line := range f.userLines(userID) {
		out = append(out, line)
	}
	return out, nil
}

func (f *fakeBasket) Upsert(_ context.Context, line *entity.BasketLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.takeFailure() {
		return errors.New("connection refused")
	}
	f.userLines(line.UserID)[line.UnitID] = *line
	return nil
}

func (f *fakeBasket) Remove(_ context.Context, userID, unitID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++
	if f.takeFailure() {
		return errors.New("connection refused")
	}
	delete(f.userLines(userID), unitID)
	return nil
}

func (f *fakeBasket) Clear(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.takeFailure() {
		return errors.New("connection refused")
	}
	f.lines[userID] = make(map[string]entity.BasketLine)
	return nil
}

func (f *fakeBasket) RemoveHeld(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for unitID, line := range f.userLines(userID) {
		if line.HasHold {
			delete(f.userLines(userID), unitID)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeBasket) ReplaceAll(_ context.Context, userID string, lines []entity.BasketLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced++
	if f.takeFailure() {
		return errors.New("connection refused")
	}
	fresh := make(map[string]entity.BasketLine, len(lines))
	for _, line := range lines {
		fresh[line.UnitID] = line
	}
	f.lines[userID] = fresh
	return nil
}

func (f *fakeBasket) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.userLines(userID))
}

// fakeCatalog 内存产品明细目录，记录失效调用
type fakeCatalog struct {
	mu          sync.Mutex
	units       map[string][]erpgw.ProductUnit
	invalidated []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{units: make(map[string][]erpgw.ProductUnit)}
}

func (f *fakeCatalog) ListUnits(_ context.Context, _, productID string) ([]erpgw.ProductUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.units[productID], nil
}

func (f *fakeCatalog) Invalidate(_ context.Context, productID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, productID)
}

// fakePermission 固定权限标志
type fakePermission struct {
	sales     bool
	inventory bool
	err       error
}

func (f *fakePermission) Load(context.Context, string) (bool, bool, error) {
	return f.sales, f.inventory, f.err
}

// recorderNotifier 记录全部通知与事件
type recorderNotifier struct {
	mu        sync.Mutex
	notices   []sse.Notice
	detailed  []string
	documents []string
	searches  []string
}

func (r *recorderNotifier) Notify(_ string, notice sse.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *recorderNotifier) PublishDetailUpdate(productID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detailed = append(r.detailed, productID)
}

func (r *recorderNotifier) PublishDocumentCreated(_, docType, docID, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents = append(r.documents, docType+":"+docID)
}

func (r *recorderNotifier) PublishSearchResults(_, _, field string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches = append(r.searches, field)
}

func (r *recorderNotifier) noticesOfType(tp sse.NoticeType) []sse.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sse.Notice
	for _, n := range r.notices {
		if n.Type == tp {
			out = append(out, n)
		}
	}
	return out
}

// fakeGateway 可编排的ERP网关
type fakeGateway struct {
	mu sync.Mutex

	candidates  map[erpgw.SearchField][]erpgw.Candidate
	searchCalls []string
	pricelists  []erpgw.Pricelist
	options     map[string][]erpgw.PriceOption

	holdResult  *erpgw.HoldResult
	holdErr     error
	lastHoldReq *erpgw.HoldRequest
	saleResult  *erpgw.SaleOrderResult
	saleErr     error
	lastSaleReq *erpgw.SaleOrderRequest
	transferRes *erpgw.TransferResult
	transferErr error
	labelResult *erpgw.LabelResult
	labelErr    error
	createdSeq  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		candidates: make(map[erpgw.SearchField][]erpgw.Candidate),
		options:    make(map[string][]erpgw.PriceOption),
	}
}

func (f *fakeGateway) SearchCandidates(_ context.Context, _ string, field erpgw.SearchField, term string) ([]erpgw.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, string(field)+":"+term)
	return f.candidates[field], nil
}

func (f *fakeGateway) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searchCalls)
}

func (f *fakeGateway) ListProductUnits(_ context.Context, _, _ string) ([]erpgw.ProductUnit, error) {
	return nil, nil
}

func (f *fakeGateway) ListPricelists(_ context.Context, _ string) ([]erpgw.Pricelist, error) {
	return f.pricelists, nil
}

func (f *fakeGateway) GetPriceOptions(_ context.Context, _, productID, _ string) ([]erpgw.PriceOption, error) {
	return f.options[productID], nil
}

func (f *fakeGateway) CheckSalesPermission(context.Context, string) (bool, error) {
	return true, nil
}

func (f *fakeGateway) CheckInventoryPermission(context.Context, string) (bool, error) {
	return true, nil
}

func (f *fakeGateway) CreateHolds(_ context.Context, _ string, req *erpgw.HoldRequest) (*erpgw.HoldResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastHoldReq = req
	return f.holdResult, f.holdErr
}

func (f *fakeGateway) CreateSaleOrder(_ context.Context, _ string, req *erpgw.SaleOrderRequest) (*erpgw.SaleOrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSaleReq = req
	return f.saleResult, f.saleErr
}

func (f *fakeGateway) CreateTransfer(_ context.Context, _ string, _ *erpgw.TransferRequest) (*erpgw.TransferResult, error) {
	return f.transferRes, f.transferErr
}

func (f *fakeGateway) GenerateLabels(_ context.Context, _ string, _ *erpgw.LabelRequest) (*erpgw.LabelResult, error) {
	return f.labelResult, f.labelErr
}

func (f *fakeGateway) createCandidate(name string) (*erpgw.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdSeq++
	return &erpgw.Candidate{ID: fmt.Sprintf("new-%d", f.createdSeq), Name: name}, nil
}

func (f *fakeGateway) CreateCounterpart(_ context.Context, _ string, req *erpgw.CreateRecordRequest) (*erpgw.Candidate, error) {
	return f.createCandidate(req.Name)
}

func (f *fakeGateway) CreateProject(_ context.Context, _ string, req *erpgw.CreateRecordRequest) (*erpgw.Candidate, error) {
	return f.createCandidate(req.Name)
}

func (f *fakeGateway) CreateContact(_ context.Context, _ string, req *erpgw.CreateRecordRequest) (*erpgw.Candidate, error) {
	return f.createCandidate(req.Name)
}

// fakeLabelStore 记录保存的标签文件
type fakeLabelStore struct {
	saved map[string][]byte
}

func newFakeLabelStore() *fakeLabelStore {
	return &fakeLabelStore{saved: make(map[string][]byte)}
}

func (f *fakeLabelStore) Save(_ context.Context, filename string, data []byte) (string, error) {
	f.saved[filename] = data
	return "https://storage.local/" + filename, nil
}

func testUnit(id, productID string, qty float64) erpgw.ProductUnit {
	return erpgw.ProductUnit{
		ID:           id,
		LotID:        "lot-" + id,
		LotName:      "L" + id,
		ProductID:    productID,
		ProductName:  "Product " + productID,
		Quantity:     qty,
		LocationName: "WH/Stock",
		UnitType:     "plate",
	}
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
