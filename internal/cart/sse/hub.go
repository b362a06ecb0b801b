package sse

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// NoticeType 通知级别
type NoticeType string

const (
	NoticeSuccess NoticeType = "success"
	NoticeInfo    NoticeType = "info"
	NoticeWarning NoticeType = "warning"
	NoticeDanger  NoticeType = "danger"
)

// Notice 推送给前端的操作通知。Sticky 的通知不会自动消失
type Notice struct {
	Type    NoticeType `json:"type"`
	Message string     `json:"message"`
	Sticky  bool       `json:"sticky,omitempty"`
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a new SSE Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	log.Printf("[SSE] Client registered: id=%s user=%s (total: %d)", client.ID, client.UserID, len(h.clients))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		log.Printf("[SSE] Client unregistered: id=%s (total: %d)", clientID, len(h.clients))
	}
}

// Broadcast sends an event to all connected clients
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			log.Printf("[SSE] Client %s buffer full, skipping event", client.ID)
		}
	}
}

// SendToUser 给特定用户发送事件（而非广播）
func (h *Hub) SendToUser(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.UserID == userID {
			select {
			case client.Events <- event:
			default:
				log.Printf("[SSE] Client %s buffer full, skipping user event", client.ID)
			}
		}
	}
}

// Notify 给特定用户推送操作通知
func (h *Hub) Notify(userID string, notice Notice) {
	data, _ := json.Marshal(notice)
	h.SendToUser(userID, Event{
		EventType: "notice",
		Data:      string(data),
	})
	log.Printf("[SSE] Published notice to user=%s: type=%s sticky=%v", userID, notice.Type, notice.Sticky)
}

// PublishDetailUpdate 通知前端某产品的明细视图需要重新拉取
func (h *Hub) PublishDetailUpdate(productID string) {
	data := fmt.Sprintf(`{"product_id":"%s"}`, productID)
	h.Broadcast(Event{
		EventType: "detail_update",
		Data:      data,
	})
	log.Printf("[SSE] Published detail_update: product=%s", productID)
}

// PublishSearchResults 给特定用户推送向导搜索结果
func (h *Hub) PublishSearchResults(userID, wizardID, field string, payload interface{}) {
	data, _ := json.Marshal(map[string]interface{}{
		"wizard_id":  wizardID,
		"field":      field,
		"candidates": payload,
	})
	h.SendToUser(userID, Event{
		EventType: "search_results",
		Data:      string(data),
	})
}

// PublishDocumentCreated 给特定用户推送单据创建事件（用于跳转）
func (h *Hub) PublishDocumentCreated(userID, docType, docID, docName string) {
	data := fmt.Sprintf(`{"doc_type":"%s","doc_id":"%s","doc_name":"%s"}`, docType, docID, docName)
	h.SendToUser(userID, Event{
		EventType: "document_created",
		Data:      data,
	})
	log.Printf("[SSE] Published document_created to user=%s: type=%s id=%s", userID, docType, docID)
}
