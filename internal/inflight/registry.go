package inflight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"story-wizard/internal/models"

	"go.uber.org/zap"
)

var (
	ErrTooManyTasks = errors.New("too many generations in flight")
	ErrShuttingDown = errors.New("generation registry is shutting down")
)

// Key определяет форму, для которой идет генерация: не более одной задачи на ключ.
type Key struct {
	SessionID string
	Kind      string
}

func (k Key) String() string {
	return k.SessionID + "/" + k.Kind
}

// TaskFunc выполняется в отдельной горутине с контекстом задачи.
type TaskFunc func(ctx context.Context)

// Task - выполняющаяся генерация.
type Task struct {
	Key       Key
	Token     string
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Done закрывается, когда функция задачи вернулась.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Config содержит конфигурацию для Registry.
type Config struct {
	MaxTasks int
	Timeout  time.Duration
}

// Registry отслеживает выполняющиеся генерации, ограничивает их число и отменяет их.
type Registry struct {
	mu       sync.Mutex
	tasks    map[Key]*Task
	maxTasks int
	timeout  time.Duration
	closed   bool
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New создает новый реестр.
func New(cfg Config, logger *zap.Logger) *Registry {
	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 100
	}
	return &Registry{
		tasks:    make(map[Key]*Task),
		maxTasks: maxTasks,
		timeout:  cfg.Timeout,
		logger:   logger.Named("InflightRegistry"),
	}
}

// Start регистрирует задачу для key и запускает fn.
// Контекст задачи не зависит от контекста запроса, ограничен таймаутом и отменяется через Cancel.
// Если для key уже есть задача, возвращается models.ErrGenerationInProgress.
func (r *Registry) Start(key Key, token string, fn TaskFunc) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrShuttingDown
	}
	if _, busy := r.tasks[key]; busy {
		return nil, fmt.Errorf("%w: %s", models.ErrGenerationInProgress, key.Kind)
	}
	if len(r.tasks) >= r.maxTasks {
		return nil, ErrTooManyTasks
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), r.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	task := &Task{
		Key:       key,
		Token:     token,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	r.tasks[key] = task

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(task.done)
		defer cancel()
		defer r.remove(task)

		fn(ctx)
	}()

	r.logger.Debug("Task started", zap.String("key", key.String()), zap.String("token", token))
	return task, nil
}

// remove удаляет задачу, если в реестре все еще она, а не более новая.
func (r *Registry) remove(task *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.tasks[task.Key]; ok && cur == task {
		delete(r.tasks, task.Key)
	}
}

// CancelKey отменяет задачу для key. Ключ освобождается сразу, поздний результат отбрасывает вызывающий.
func (r *Registry) CancelKey(key Key) bool {
	r.mu.Lock()
	task, ok := r.tasks[key]
	if ok {
		delete(r.tasks, key)
	}
	r.mu.Unlock()

	if ok {
		task.cancel()
		r.logger.Info("Task cancelled", zap.String("key", key.String()), zap.String("token", task.Token))
	}
	return ok
}

// Cancel отменяет все задачи сессии и возвращает их количество.
func (r *Registry) Cancel(sessionID string) int {
	r.mu.Lock()
	var cancelled []*Task
	for key, task := range r.tasks {
		if key.SessionID == sessionID {
			cancelled = append(cancelled, task)
			delete(r.tasks, key)
		}
	}
	r.mu.Unlock()

	for _, task := range cancelled {
		task.cancel()
		r.logger.Info("Task cancelled", zap.String("key", task.Key.String()), zap.String("token", task.Token))
	}
	return len(cancelled)
}

// Lookup возвращает задачу для key.
func (r *Registry) Lookup(key Key) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[key]
	return t, ok
}

// Active возвращает число выполняющихся задач.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Wait ждет завершения всех текущих задач сессии.
func (r *Registry) Wait(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	var pending []*Task
	for key, task := range r.tasks {
		if key.SessionID == sessionID {
			pending = append(pending, task)
		}
	}
	r.mu.Unlock()

	for _, task := range pending {
		select {
		case <-task.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Shutdown отменяет все задачи и ожидает их завершения с таймаутом.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	for key, task := range r.tasks {
		task.cancel()
		delete(r.tasks, key)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("timeout waiting for in-flight generations")
	}
}
