package repository

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dak-1306/pyctalk-sub001/internal/domain"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

// ConversationStore хранит упорядоченные журналы сообщений по каноническому
// ключу пары. Журналы живут в памяти процесса; долговременное хранение -
// забота внешнего коллаборатора (см. SnapshotRepository).
type ConversationStore struct {
	mu    sync.RWMutex
	convs map[domain.PairKey]*conversation
	log   logger.Logger
}

// conversation - журнал одной пары. Собственный мьютекс дает дисциплину
// единственного писателя: порядок в журнале совпадает с порядком отправки,
// а выдача sequence-номеров свободна от гонок. Блокировки разных диалогов
// независимы и не конкурируют между собой.
type conversation struct {
	mu   sync.Mutex
	key  domain.PairKey
	seq  uint64
	msgs []*domain.Message
}

func NewConversationStore(log logger.Logger) *ConversationStore {
	return &ConversationStore{
		convs: make(map[domain.PairKey]*conversation),
		log:   log,
	}
}

// conversation возвращает журнал пары, лениво создавая его при первом обращении
func (s *ConversationStore) conversation(key domain.PairKey) *conversation {
	s.mu.RLock()
	c := s.convs[key]
	s.mu.RUnlock()
	if c != nil {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c = s.convs[key]; c == nil {
		c = &conversation{key: key}
		s.convs[key] = c
	}
	return c
}

// lookup возвращает журнал пары без создания
func (s *ConversationStore) lookup(key domain.PairKey) *conversation {
	s.mu.RLock()
	c := s.convs[key]
	s.mu.RUnlock()
	return c
}

// Append добавляет сообщение в журнал пары и присваивает ему идентификатор.
// Идентификатор собирается из канонического ключа диалога и монотонного
// счетчика, поэтому уникален даже при всплесках быстрее разрешения часов.
func (s *ConversationStore) Append(sender, recipient, content, messageType string, att *domain.Attachment) domain.Message {
	key := domain.NewPairKey(sender, recipient)
	c := s.conversation(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	msg := &domain.Message{
		ID:             fmt.Sprintf("%s#%d", key.ID(), c.seq),
		ConversationID: key.ID(),
		Sender:         sender,
		Recipient:      recipient,
		Content:        content,
		MessageType:    messageType,
		Attachment:     att,
		CreatedAt:      time.Now(),
	}
	c.msgs = append(c.msgs, msg)
	return *msg
}

// History возвращает окно [offset, offset+limit) журнала пары в порядке
// возрастания времени создания. Выход за границы журнала дает пустой срез.
func (s *ConversationStore) History(a, b string, limit, offset int) []domain.Message {
	c := s.lookup(domain.NewPairKey(a, b))
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(c.msgs) || limit <= 0 {
		return nil
	}
	end := offset + limit
	if end > len(c.msgs) {
		end = len(c.msgs)
	}

	out := make([]domain.Message, 0, end-offset)
	for _, m := range c.msgs[offset:end] {
		out = append(out, *m)
	}
	return out
}

// Size возвращает длину журнала пары
func (s *ConversationStore) Size(a, b string) int {
	c := s.lookup(domain.NewPairKey(a, b))
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// MarkRead помечает прочитанными все сообщения от sender к reader и
// возвращает число фактически помеченных. Повторный вызов ничего не меняет.
func (s *ConversationStore) MarkRead(reader, sender string) int {
	c := s.lookup(domain.NewPairKey(reader, sender))
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	marked := 0
	for _, m := range c.msgs {
		if m.Recipient == reader && m.Sender == sender && !m.IsRead {
			m.IsRead = true
			marked++
		}
	}
	return marked
}

// UnreadCount считает непрочитанные сообщения, адресованные пользователю,
// по всем его диалогам
func (s *ConversationStore) UnreadCount(user string) int {
	s.mu.RLock()
	convs := make([]*conversation, 0, len(s.convs))
	for key, c := range s.convs {
		if key.Involves(user) {
			convs = append(convs, c)
		}
	}
	s.mu.RUnlock()

	total := 0
	for _, c := range convs {
		c.mu.Lock()
		for _, m := range c.msgs {
			if m.Recipient == user && !m.IsRead {
				total++
			}
		}
		c.mu.Unlock()
	}
	return total
}

// Dump снимает копию всех журналов для снапшота
func (s *ConversationStore) Dump() map[domain.PairKey][]domain.Message {
	s.mu.RLock()
	convs := make(map[domain.PairKey]*conversation, len(s.convs))
	for key, c := range s.convs {
		convs[key] = c
	}
	s.mu.RUnlock()

	out := make(map[domain.PairKey][]domain.Message, len(convs))
	for key, c := range convs {
		c.mu.Lock()
		msgs := make([]domain.Message, 0, len(c.msgs))
		for _, m := range c.msgs {
			msgs = append(msgs, *m)
		}
		c.mu.Unlock()
		out[key] = msgs
	}
	return out
}

// Restore восстанавливает журнал пары из снапшота. Счетчик sequence
// продолжается с максимального номера в восстановленных идентификаторах.
func (s *ConversationStore) Restore(key domain.PairKey, msgs []domain.Message) {
	c := s.conversation(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.msgs = make([]*domain.Message, 0, len(msgs))
	c.seq = 0
	for i := range msgs {
		m := msgs[i]
		c.msgs = append(c.msgs, &m)
		if seq := parseSeq(m.ID); seq > c.seq {
			c.seq = seq
		}
	}
}

func parseSeq(id string) uint64 {
	idx := strings.LastIndexByte(id, '#')
	if idx < 0 {
		return 0
	}
	seq, err := strconv.ParseUint(id[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return seq
}
