package authclient

import "sync"

// result — исход волны обновления для одного ожидающего.
type result struct {
	token string
	err   error
}

// deferred — отложенный результат ожидающего запроса. Буфер на одно значение:
// лидер никогда не блокируется на отправке, даже если ожидающий уже ушёл по ctx.
type deferred chan result

// coordinator гарантирует не более одного refresh в полёте.
//
// Состояние волны: Idle -> Refreshing -> (Success | Failure) -> Idle.
// Первый, кто вызвал join в Idle, становится лидером и выполняет refresh;
// остальные получают deferred и ждут. finish разрешает очередь ровно один раз.
type coordinator struct {
	mu         sync.Mutex
	refreshing bool
	queue      []deferred
	// hard — к волне присоединился post-flight вызов (ответ 401):
	// её неудача завершает сессию.
	hard bool

	// expiredNotified — уведомление об истечении сессии уже отправлено.
	// Сбрасывается успешным логином или refresh.
	expiredNotified bool
}

// join атомарно проверяет и выставляет refreshing.
// leader == true — вызывающий обязан вызвать finish.
func (c *coordinator) join(hard bool) (d deferred, leader bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hard = c.hard || hard

	if !c.refreshing {
		c.refreshing = true
		return nil, true
	}

	d = make(deferred, 1)
	c.queue = append(c.queue, d)
	return d, false
}

// finish завершает волну: все ожидающие получают r, очередь обнуляется.
// hard сообщает, был ли в волне хотя бы один post-flight участник.
func (c *coordinator) finish(r result) (released int, hard bool) {
	c.mu.Lock()
	q := c.queue
	hard = c.hard
	c.queue = nil
	c.refreshing = false
	c.hard = false
	c.mu.Unlock()

	for _, d := range q {
		d <- r
	}

	return len(q), hard
}

// Pending — длина очереди ожидающих (для тестов и метрик).
func (c *coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.queue)
}

// Refreshing сообщает, идёт ли сейчас обновление.
func (c *coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.refreshing
}

// markExpired возвращает true только для первого вызова после rearm.
func (c *coordinator) markExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expiredNotified {
		return false
	}
	c.expiredNotified = true
	return true
}

func (c *coordinator) rearm() {
	c.mu.Lock()
	c.expiredNotified = false
	c.mu.Unlock()
}
