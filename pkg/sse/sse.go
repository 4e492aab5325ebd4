package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Event 一条待推送的 SSE 消息
type Event struct {
	ID   string
	Name string
	Data string
}

func (e Event) encode() string {
	var b strings.Builder
	if e.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", e.ID)
	}
	if e.Name != "" {
		fmt.Fprintf(&b, "event: %s\n", e.Name)
	}
	for _, line := range strings.Split(e.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return b.String()
}

type Client struct {
	id     string
	lang   string
	groups map[string]bool
	ch     chan string
	done   chan struct{}
}

// Hub 管理 SSE 连接；用户的所有连接加入以用户 ID 命名的组
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	groups   map[string]map[string]bool // group -> clientID set
	interval time.Duration
	retryMs  int
}

func NewHub(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Hub{clients: make(map[string]*Client), groups: make(map[string]map[string]bool), interval: interval, retryMs: 5000}
}

func (h *Hub) AddClient(id, lang string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &Client{id: id, lang: lang, groups: make(map[string]bool), ch: make(chan string, 64), done: make(chan struct{})}
	h.clients[id] = c
	return c
}

func (h *Hub) RemoveClient(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	close(c.done)
	for g := range c.groups {
		delete(h.groups[g], id)
		if len(h.groups[g]) == 0 {
			delete(h.groups, g)
		}
	}
	delete(h.clients, id)
}

func (h *Hub) Join(id, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	c.groups[group] = true
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]bool)
	}
	h.groups[group][id] = true
}

// GroupSize 组内在线连接数
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// GroupLangs 组内连接使用的语言（去重），未声明语言的连接记为 ""
func (h *Hub) GroupLangs(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]bool)
	var langs []string
	for id := range h.groups[group] {
		if c := h.clients[id]; c != nil && !seen[c.lang] {
			seen[c.lang] = true
			langs = append(langs, c.lang)
		}
	}
	return langs
}

// SendToGroup 返回实际写入缓冲区的连接数；缓冲区满的连接不计入
func (h *Hub) SendToGroup(group string, ev Event) int {
	return h.sendToGroup(group, ev, func(*Client) bool { return true })
}

// SendToGroupLang 只发给组内使用 lang 的连接
func (h *Hub) SendToGroupLang(group, lang string, ev Event) int {
	return h.sendToGroup(group, ev, func(c *Client) bool { return c.lang == lang })
}

// SendToGroupJSON 序列化后发送
func (h *Hub) SendToGroupJSON(group, name string, v interface{}) (int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return h.SendToGroup(group, Event{Name: name, Data: string(b)}), nil
}

func (h *Hub) SendToGroupLangJSON(group, lang, name string, v interface{}) (int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return h.SendToGroupLang(group, lang, Event{Name: name, Data: string(b)}), nil
}

func (h *Hub) sendToGroup(group string, ev Event, match func(*Client) bool) int {
	msg := ev.encode()
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for id := range h.groups[group] {
		if c := h.clients[id]; c != nil && match(c) && trySend(c, msg) {
			n++
		}
	}
	return n
}

func trySend(c *Client, msg string) bool {
	select {
	case c.ch <- msg:
		return true
	default:
		return false
	}
}

// Serve 把当前请求挂成 SSE 连接并加入 group，直到客户端断开
func (h *Hub) Serve(c *gin.Context, clientID, group, lang string) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)
	flusher.Flush()

	client := h.AddClient(clientID, lang)
	defer h.RemoveClient(clientID)
	if group != "" {
		h.Join(clientID, group)
	}

	ping := time.NewTicker(h.interval)
	defer ping.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprint(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case msg := <-client.ch:
			_, _ = c.Writer.Write([]byte(msg))
			flusher.Flush()
		}
	}
}
