package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"story-wizard/internal/generation"
	"story-wizard/internal/inflight"
	"story-wizard/internal/messaging"
	"story-wizard/internal/models"
	"story-wizard/internal/notifier"
	"story-wizard/internal/repository"
	"story-wizard/internal/wizard"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// lockGrace добавляется к таймауту генерации при захвате распределенной блокировки.
const lockGrace = 30 * time.Second

// publishTimeout ограничивает публикацию событий из фоновых задач.
const publishTimeout = 5 * time.Second

// Compile-time check to ensure wizardServiceImpl implements WizardService
var _ WizardService = (*wizardServiceImpl)(nil)

// Deps - зависимости контроллера мастера.
type Deps struct {
	Repo              repository.SessionRepository
	Narrator          generation.NarrativeGenerator
	Synthesizer       generation.DiscussionSynthesizer
	Inflight          *inflight.Registry
	Publisher         messaging.EventPublisher
	Notifier          notifier.Notifier
	GenerationTimeout time.Duration
	Logger            *zap.Logger
}

type wizardServiceImpl struct {
	repo        repository.SessionRepository
	narrator    generation.NarrativeGenerator
	synthesizer generation.DiscussionSynthesizer
	inflight    *inflight.Registry
	publisher   messaging.EventPublisher
	notifier    notifier.Notifier
	lockTTL     time.Duration
	locks       *keyedMutex
	validate    *validator.Validate
	now         func() time.Time
	logger      *zap.Logger
}

// NewWizardService creates a new instance of wizardServiceImpl.
// Синтезатор оборачивается EnsureSupportResources.
func NewWizardService(d Deps) WizardService {
	publisher := d.Publisher
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	n := d.Notifier
	if n == nil {
		n = notifier.NoopNotifier{}
	}
	return &wizardServiceImpl{
		repo:        d.Repo,
		narrator:    d.Narrator,
		synthesizer: generation.EnsureSupportResources(d.Synthesizer),
		inflight:    d.Inflight,
		publisher:   publisher,
		notifier:    n,
		lockTTL:     d.GenerationTimeout + lockGrace,
		locks:       newKeyedMutex(),
		validate:    newValidator(),
		now:         func() time.Time { return time.Now().UTC() },
		logger:      d.Logger.Named("WizardService"),
	}
}

// --- Сессии ---

func (s *wizardServiceImpl) EnsureSession(ctx context.Context, sessionID string) (*models.Session, bool, error) {
	if sessionID != "" {
		sess, err := s.repo.Get(ctx, sessionID)
		if err == nil {
			return sess, false, nil
		}
		if !errors.Is(err, models.ErrSessionNotFound) {
			return nil, false, err
		}
	}

	// Для неизвестного идентификатора создается новый, а не переиспользуется присланный клиентом
	sess := models.NewSession(repository.NewSessionID(), s.now())
	if err := s.repo.Save(ctx, sess); err != nil {
		s.logger.Error("Failed to save new session", zap.Error(err))
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("Session created", zap.String("sessionID", sess.ID))
	s.emit(ctx, sess, messaging.NewWizardEvent(sess.ID, messaging.EventSessionStarted, string(sess.State.Screen)))
	return sess, true, nil
}

func (s *wizardServiceImpl) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.repo.Get(ctx, sessionID)
}

func (s *wizardServiceImpl) Wait(ctx context.Context, sessionID string) (*models.Session, error) {
	if err := s.inflight.Wait(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, sessionID)
}

// --- Переходы ---

func (s *wizardServiceImpl) SubmitStory(ctx context.Context, sessionID string, input map[string]string) (*models.Session, error) {
	fresh := normalizeInput(input)
	if err := s.validate.Struct(newStoryForm(fresh)); err != nil {
		s.logger.Debug("Story form rejected", zap.String("sessionID", sessionID), zap.Error(err))
		return nil, validationError(err)
	}

	token := uuid.NewString()
	sess, err := s.startGeneration(ctx, sessionID, wizard.PendingNarrative, token,
		func(st wizard.State) (wizard.State, error) {
			return st.SubmitStory(fresh, token, s.now())
		},
		func(taskCtx context.Context) {
			start := time.Now()
			text, genErr := s.narrator.GenerateNarrative(taskCtx, copyInput(fresh))
			s.finishNarrative(sessionID, token, text, genErr, taskCtx.Err(), time.Since(start))
		},
	)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Story submitted", zap.String("sessionID", sessionID), zap.String("outcome", string(generation.ParseOutcome(fresh[generation.FieldOutcome]))))
	s.emit(ctx, sess, messaging.NewWizardEvent(sessionID, messaging.EventStorySubmitted, string(sess.State.Screen)))
	return sess, nil
}

func (s *wizardServiceImpl) Modify(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, _, err := s.update(ctx, sessionID, wizard.EventModify, func(st wizard.State) (wizard.State, error) {
		return st.Modify()
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, sess, messaging.NewWizardEvent(sessionID, messaging.EventStoryModified, string(sess.State.Screen)))
	return sess, nil
}

func (s *wizardServiceImpl) Finalize(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, _, err := s.update(ctx, sessionID, wizard.EventFinalize, func(st wizard.State) (wizard.State, error) {
		return st.Finalize()
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, sess, messaging.NewWizardEvent(sessionID, messaging.EventStoryFinalized, string(sess.State.Screen)))
	return sess, nil
}

func (s *wizardServiceImpl) SubmitTone(ctx context.Context, sessionID string, tone string) (*models.Session, error) {
	tone = strings.TrimSpace(tone)
	if err := s.validate.Struct(toneForm{Tone: tone}); err != nil {
		return nil, validationError(err)
	}
	if !generation.Tone(tone).IsKnown() {
		s.logger.Warn("Unknown tone submitted, generic discussion will be used",
			zap.String("sessionID", sessionID), zap.String("tone", tone))
	}

	token := uuid.NewString()
	var req generation.SynthesisRequest
	sess, err := s.startGeneration(ctx, sessionID, wizard.PendingSynthesis, token,
		func(st wizard.State) (wizard.State, error) {
			next, err := st.SubmitTone(tone, token, s.now())
			if err != nil {
				return st, err
			}
			req = generation.SynthesisRequest{
				Narrative: next.NarrativeText,
				Tone:      generation.Tone(tone),
				Input:     copyInput(next.UserInput),
			}
			return next, nil
		},
		func(taskCtx context.Context) {
			start := time.Now()
			text, genErr := s.synthesizer.SynthesizeDiscussion(taskCtx, req)
			s.finishSynthesis(sessionID, token, text, genErr, taskCtx.Err(), time.Since(start))
		},
	)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Tone submitted", zap.String("sessionID", sessionID), zap.String("tone", tone))
	ev := messaging.NewWizardEvent(sessionID, messaging.EventToneSubmitted, string(sess.State.Screen))
	ev.Tone = tone
	s.emit(ctx, sess, ev)
	return sess, nil
}

func (s *wizardServiceImpl) Back(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, prev, err := s.update(ctx, sessionID, wizard.EventBack, func(st wizard.State) (wizard.State, error) {
		return st.Back()
	})
	if err != nil {
		return nil, err
	}
	cancelled := s.abandon(ctx, sessionID, prev)

	s.emit(ctx, sess, messaging.NewWizardEvent(sessionID, messaging.EventNavigatedBack, string(sess.State.Screen)))
	if cancelled != nil {
		s.emitCancelled(ctx, sess, cancelled.Kind, "navigated_back")
	}
	return sess, nil
}

func (s *wizardServiceImpl) Cancel(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, prev, err := s.update(ctx, sessionID, wizard.EventCancel, func(st wizard.State) (wizard.State, error) {
		return st.Cancel()
	})
	if err != nil {
		return nil, err
	}
	if cancelled := s.abandon(ctx, sessionID, prev); cancelled != nil {
		s.emitCancelled(ctx, sess, cancelled.Kind, "user_cancelled")
	} else {
		s.notify(sess)
	}
	return sess, nil
}

func (s *wizardServiceImpl) Reset(ctx context.Context, sessionID string) (*models.Session, error) {
	unlock := s.locks.Lock(sessionID)
	prev, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, err
	}

	if n := s.inflight.Cancel(sessionID); n > 0 {
		s.logger.Info("In-flight generations cancelled by reset", zap.String("sessionID", sessionID), zap.Int("count", n))
	}
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		unlock()
		return nil, err
	}
	sess := models.NewSession(sessionID, s.now())
	sess.CreatedAt = prev.CreatedAt
	if err := s.repo.Save(ctx, sess); err != nil {
		unlock()
		return nil, fmt.Errorf("failed to save reset session: %w", err)
	}
	unlock()

	transitionsTotal.WithLabelValues("reset").Inc()
	s.emit(ctx, sess, messaging.NewWizardEvent(sessionID, messaging.EventSessionReset, string(sess.State.Screen)))
	return sess, nil
}

// --- Внутренние шаги ---

// update выполняет переход над сохраненным состоянием под мьютексом сессии.
// Возвращает новую сессию и состояние до перехода.
func (s *wizardServiceImpl) update(ctx context.Context, sessionID string, ev wizard.Event, fn func(wizard.State) (wizard.State, error)) (*models.Session, wizard.State, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, wizard.State{}, err
	}
	prev := sess.State
	next, err := fn(prev)
	if err != nil {
		return nil, prev, mapWizardError(err)
	}
	sess.State = next
	sess.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, sess); err != nil {
		s.logger.Error("Failed to save session", zap.String("sessionID", sessionID), zap.Error(err))
		return nil, prev, fmt.Errorf("failed to save session: %w", err)
	}
	transitionsTotal.WithLabelValues(string(ev)).Inc()
	return sess, prev, nil
}

// startGeneration применяет переход, помечающий генерацию как ожидаемую, захватывает
// блокировки формы и запускает задачу. Задача не может применить результат раньше
// сохранения сессии: она берет тот же мьютекс.
func (s *wizardServiceImpl) startGeneration(ctx context.Context, sessionID string, kind wizard.PendingKind, token string,
	transition func(wizard.State) (wizard.State, error), task inflight.TaskFunc) (*models.Session, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	next, err := transition(sess.State)
	if err != nil {
		return nil, mapWizardError(err)
	}

	ok, err := s.repo.AcquireLock(ctx, sessionID, string(kind), token, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("Generation lock is held elsewhere", zap.String("sessionID", sessionID), zap.String("kind", string(kind)))
		return nil, fmt.Errorf("%w: %s", models.ErrGenerationInProgress, kind)
	}

	key := inflight.Key{SessionID: sessionID, Kind: string(kind)}
	if _, err := s.inflight.Start(key, token, func(taskCtx context.Context) {
		defer s.releaseLock(sessionID, kind, token)
		task(taskCtx)
	}); err != nil {
		s.releaseLock(sessionID, kind, token)
		if errors.Is(err, inflight.ErrTooManyTasks) || errors.Is(err, inflight.ErrShuttingDown) {
			return nil, fmt.Errorf("%w: %v", models.ErrSessionBusy, err)
		}
		return nil, err
	}

	sess.State = next
	sess.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, sess); err != nil {
		s.inflight.CancelKey(key)
		s.logger.Error("Failed to save session", zap.String("sessionID", sessionID), zap.Error(err))
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if kind == wizard.PendingNarrative {
		transitionsTotal.WithLabelValues(string(wizard.EventSubmitStory)).Inc()
	} else {
		transitionsTotal.WithLabelValues(string(wizard.EventSubmitTone)).Inc()
	}
	return sess, nil
}

func (s *wizardServiceImpl) finishNarrative(sessionID, token, text string, genErr, ctxErr error, elapsed time.Duration) {
	status, message, cause := classifyFailure(genErr, ctxErr, models.MsgNarrativeFailed)

	// Результат применяется и после отмены: если ожидание уже снято пользователем,
	// токен не совпадет и результат будет отброшен.
	sess, err := s.applyResult(sessionID, func(st wizard.State) (wizard.State, error) {
		if status == "success" {
			return st.CompleteNarrative(token, text)
		}
		return st.FailNarrative(token, message)
	})
	if err != nil {
		s.discard(sessionID, wizard.PendingNarrative, status, elapsed, err)
		return
	}
	s.observe(wizard.PendingNarrative, status, elapsed)

	evType := messaging.EventNarrativeCompleted
	if status != "success" {
		evType = messaging.EventNarrativeFailed
		s.logger.Warn("Narrative generation failed", zap.String("sessionID", sessionID), zap.String("status", status), zap.Error(cause))
	} else {
		s.logger.Info("Narrative ready", zap.String("sessionID", sessionID), zap.Duration("elapsed", elapsed))
	}
	s.emitResult(sess, evType, wizard.PendingNarrative, status, elapsed)
}

func (s *wizardServiceImpl) finishSynthesis(sessionID, token, text string, genErr, ctxErr error, elapsed time.Duration) {
	status, message, cause := classifyFailure(genErr, ctxErr, models.MsgSynthesisFailed)

	sess, err := s.applyResult(sessionID, func(st wizard.State) (wizard.State, error) {
		if status == "success" {
			return st.CompleteSynthesis(token, generation.WithSupportResources(text))
		}
		// Блок помощи показывается и при ошибке
		return st.FailSynthesis(token, message, generation.SupportResources)
	})
	if err != nil {
		s.discard(sessionID, wizard.PendingSynthesis, status, elapsed, err)
		return
	}
	s.observe(wizard.PendingSynthesis, status, elapsed)

	evType := messaging.EventSynthesisCompleted
	if status != "success" {
		evType = messaging.EventSynthesisFailed
		s.logger.Warn("Discussion synthesis failed", zap.String("sessionID", sessionID), zap.String("status", status), zap.Error(cause))
	} else {
		s.logger.Info("Discussion ready", zap.String("sessionID", sessionID), zap.Duration("elapsed", elapsed))
	}
	s.emitResult(sess, evType, wizard.PendingSynthesis, status, elapsed)
}

// applyResult применяет результат генерации к актуальному состоянию сессии.
func (s *wizardServiceImpl) applyResult(sessionID string, fn func(wizard.State) (wizard.State, error)) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	next, err := fn(sess.State)
	if err != nil {
		return nil, err
	}
	sess.State = next
	sess.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save generation result: %w", err)
	}
	return sess, nil
}

// discard логирует результат, который больше не нужен (отменен, сессия сброшена или удалена).
func (s *wizardServiceImpl) discard(sessionID string, kind wizard.PendingKind, status string, elapsed time.Duration, err error) {
	if status != "cancelled" {
		status = "stale"
	}
	s.observe(kind, status, elapsed)
	if errors.Is(err, wizard.ErrStalePending) || errors.Is(err, models.ErrSessionNotFound) {
		s.logger.Debug("Discarding stale generation result", zap.String("sessionID", sessionID), zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	s.logger.Error("Failed to apply generation result", zap.String("sessionID", sessionID), zap.String("kind", string(kind)), zap.Error(err))
}

// abandon отменяет генерацию, которая ожидалась до перехода, и снимает ее блокировку.
func (s *wizardServiceImpl) abandon(ctx context.Context, sessionID string, prev wizard.State) *wizard.Pending {
	if prev.Pending == nil {
		return nil
	}
	p := prev.Pending
	s.inflight.CancelKey(inflight.Key{SessionID: sessionID, Kind: string(p.Kind)})
	s.releaseLock(sessionID, p.Kind, p.Token)
	s.logger.Info("Pending generation abandoned", zap.String("sessionID", sessionID), zap.String("kind", string(p.Kind)))
	return p
}

func (s *wizardServiceImpl) releaseLock(sessionID string, kind wizard.PendingKind, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.repo.ReleaseLock(ctx, sessionID, string(kind), token); err != nil {
		s.logger.Warn("Failed to release generation lock", zap.String("sessionID", sessionID), zap.Error(err))
	}
}

func (s *wizardServiceImpl) observe(kind wizard.PendingKind, status string, elapsed time.Duration) {
	generationsTotal.WithLabelValues(string(kind), status).Inc()
	generationDuration.WithLabelValues(string(kind), status).Observe(elapsed.Seconds())
}

// --- События и уведомления ---

func (s *wizardServiceImpl) emit(ctx context.Context, sess *models.Session, ev messaging.WizardEvent) {
	if err := s.publisher.PublishWizardEvent(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish wizard event", zap.String("type", ev.Type), zap.Error(err))
	}
	s.notify(sess)
}

func (s *wizardServiceImpl) emitResult(sess *models.Session, evType string, kind wizard.PendingKind, status string, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	ev := messaging.NewWizardEvent(sess.ID, evType, string(sess.State.Screen))
	ev.Kind = string(kind)
	ev.Tone = sess.State.Tone
	ev.DurationMs = elapsed.Milliseconds()
	if status != "success" {
		ev.Reason = status
	}
	s.emit(ctx, sess, ev)
}

func (s *wizardServiceImpl) emitCancelled(ctx context.Context, sess *models.Session, kind wizard.PendingKind, reason string) {
	ev := messaging.NewWizardEvent(sess.ID, messaging.EventGenerationCanceled, string(sess.State.Screen))
	ev.Kind = string(kind)
	ev.Reason = reason
	s.emit(ctx, sess, ev)
}

func (s *wizardServiceImpl) notify(sess *models.Session) {
	s.notifier.SendToSession(sess.ID, notifier.MessageTypeWizardUpdate, models.NewSessionView(sess))
}

// --- Хелперы ---

// classifyFailure определяет статус завершения генерации, сообщение для пользователя
// и причину для логов. Отменой считается только отмена контекста самой задачи.
func classifyFailure(genErr, ctxErr error, failedMsg string) (status, message string, cause error) {
	switch {
	case genErr == nil && ctxErr == nil:
		return "success", "", nil
	case errors.Is(ctxErr, context.Canceled):
		return "cancelled", models.MsgGenerationCancelled, models.ErrGenerationCancelled
	case errors.Is(ctxErr, context.DeadlineExceeded) || errors.Is(genErr, context.DeadlineExceeded):
		return "timeout", models.MsgGenerationTimeout, generationCause(models.ErrGenerationTimeout, genErr)
	default:
		return "failed", failedMsg, generationCause(models.ErrGenerationFailed, genErr)
	}
}

func generationCause(kind, genErr error) error {
	if genErr == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, genErr)
}

func mapWizardError(err error) error {
	switch {
	case errors.Is(err, wizard.ErrPendingGeneration):
		return fmt.Errorf("%w: %w", models.ErrGenerationInProgress, err)
	case errors.Is(err, wizard.ErrInvalidTransition), errors.Is(err, wizard.ErrUnknownScreen):
		return fmt.Errorf("%w: %w", models.ErrInvalidTransition, err)
	default:
		return err
	}
}

func copyInput(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
