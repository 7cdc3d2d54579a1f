package domain

// PairKey - канонический идентификатор диалога двух пользователей.
// Участники хранятся отсортированными, поэтому ключ не зависит от порядка
// аргументов и не ломается, если имя пользователя содержит разделитель.
type PairKey struct {
	First  string
	Second string
}

// NewPairKey строит канонический ключ: NewPairKey(a, b) == NewPairKey(b, a)
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{First: a, Second: b}
}

// ID возвращает строковую форму ключа для идентификаторов сообщений и логов
func (k PairKey) ID() string {
	return k.First + ":" + k.Second
}

// Involves сообщает, участвует ли пользователь в диалоге
func (k PairKey) Involves(user string) bool {
	return k.First == user || k.Second == user
}

// Other возвращает собеседника пользователя в этом диалоге
func (k PairKey) Other(user string) string {
	if k.First == user {
		return k.Second
	}
	return k.First
}
