package websocket

import (
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"autotrader/internal/bot"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// broadcastBufferSize - ёмкость очереди рассылки
const broadcastBufferSize = 256

// Hub управляет всеми активными WebSocket соединениями
//
// Рассылает клиентам уведомления, состояние движка и итоги циклов.
// Broadcast никогда не блокирует отправителя: при переполнении очереди
// сообщение отбрасывается и учитывается в DroppedMessages. Медленные
// клиенты отключаются.
//
// Использование:
// 1. hub := NewHub(logger)
// 2. go hub.Run()
// 3. hub.Broadcast(message) / hub.BroadcastNotification(n)
// 4. hub.Stop() при завершении
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once

	mu sync.RWMutex

	dropped atomic.Uint64
	logger  *utils.Logger
}

// NewHub создает новый Hub
func NewHub(logger ...*utils.Logger) *Hub {
	l := utils.L()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		logger:     l.WithComponent("websocket"),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run().
// Завершается после Stop, закрывая каналы всех клиентов.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", utils.Int("clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", utils.Int("clients", total))

		case message := <-h.broadcast:
			// Копируем список клиентов под коротким RLock
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			// Удаляем медленных клиентов под Write Lock
			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.logger.Warn("slow clients removed",
					utils.Int("removed", len(toRemove)),
					utils.Int("clients", total))
			}
		}
	}
}

// Stop завершает Run; повторный вызов безопасен
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Broadcast сериализует message и ставит в очередь рассылки
func (h *Hub) Broadcast(message interface{}) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	stream.WriteVal(message)
	if stream.Error != nil {
		h.logger.Error("failed to marshal broadcast message", utils.Err(stream.Error))
		return
	}

	// Копируем данные: буфер stream вернётся в пул
	msg := make([]byte, len(stream.Buffer()))
	copy(msg, stream.Buffer())

	h.BroadcastRaw(msg)
}

// BroadcastRaw ставит в очередь уже сериализованное сообщение
func (h *Hub) BroadcastRaw(data []byte) {
	select {
	case <-h.stop:
		h.dropped.Add(1)
		return
	default:
	}

	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastNotification отправляет уведомление (service.WebSocketBroadcaster)
func (h *Hub) BroadcastNotification(notif *models.Notification) {
	if notif == nil {
		return
	}
	h.Broadcast(NewNotificationMessage(notif))
}

// CycleFinished рассылает итог цикла и состояние движка (bot.CycleObserver)
func (h *Hub) CycleFinished(report *bot.CycleReport, status bot.EngineStatus) {
	if report != nil {
		h.Broadcast(NewCycleReportMessage(report))
	}
	h.Broadcast(NewEngineStatusMessage(status))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages возвращает число отброшенных сообщений
func (h *Hub) DroppedMessages() uint64 {
	return h.dropped.Load()
}
