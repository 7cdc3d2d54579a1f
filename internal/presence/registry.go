package presence

import (
	"sync"

	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

// Conn - живое соединение пользователя, способное принимать пуш-события.
// Реализация обязана быть неблокирующей: медленный клиент не должен
// задерживать отправителя.
type Conn interface {
	Push(action string, data interface{}) error
}

// Registry отслеживает, у кого из пользователей сейчас есть живое
// соединение. На пользователя хранится ровно один handle; повторная
// регистрация вытесняет предыдущий (last writer wins).
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
	log   logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		conns: make(map[string]Conn),
		log:   log,
	}
}

// Register привязывает соединение к пользователю и возвращает вытесненный
// handle (nil, если его не было), чтобы вызывающий мог его закрыть.
func (r *Registry) Register(user string, conn Conn) Conn {
	r.mu.Lock()
	prev := r.conns[user]
	r.conns[user] = conn
	r.mu.Unlock()

	if prev != nil {
		r.log.Debug("Presence handle replaced", "user", user)
	}
	return prev
}

// Unregister удаляет запись пользователя; отсутствие записи не ошибка
func (r *Registry) Unregister(user string) {
	r.mu.Lock()
	delete(r.conns, user)
	r.mu.Unlock()
}

// Lookup возвращает соединение пользователя. Отсутствие означает "оффлайн"
func (r *Registry) Lookup(user string) (Conn, bool) {
	r.mu.RLock()
	conn, ok := r.conns[user]
	r.mu.RUnlock()
	return conn, ok
}

// ListOnline возвращает имена всех пользователей с живым соединением
func (r *Registry) ListOnline() []string {
	r.mu.RLock()
	users := make([]string, 0, len(r.conns))
	for user := range r.conns {
		users = append(users, user)
	}
	r.mu.RUnlock()
	return users
}
