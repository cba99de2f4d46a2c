package notify

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// User-facing messages.
const (
	MsgMissingFields     = "Por favor completa todos los campos"
	MsgInvalidEmail      = "Email inválido"
	MsgSent              = "Comentario enviado exitosamente"
	MsgSavedOffline      = "Comentario guardado localmente. Se enviará cuando vuelva la conexión."
	MsgSavedAfterReject  = "Error al enviar. Comentario guardado localmente para enviar más tarde."
	MsgSavedAfterFailure = "Sin conexión. Comentario guardado localmente. Se enviará cuando vuelva la conexión."
	MsgLocalSaveFailed   = "Error al guardar el comentario localmente"
	MsgConnectionBack    = "Conexión restaurada. Sincronizando comentarios..."
	MsgConnectionLost    = "Sin conexión. Los comentarios se guardarán localmente."
)

type Notification struct {
	Level   Level
	Message string
}

// Surface shows notifications and the pending-count indicator. It holds
// no business logic.
type Surface interface {
	Notify(Notification)
	PendingChanged(count int)
}

func Success(msg string) Notification { return Notification{Level: LevelSuccess, Message: msg} }
func Error(msg string) Notification   { return Notification{Level: LevelError, Message: msg} }
func Info(msg string) Notification    { return Notification{Level: LevelInfo, Message: msg} }

// SyncedMessage is the notice shown after a sync pass delivered n comments.
func SyncedMessage(n int) string {
	return fmt.Sprintf("%d comentario(s) sincronizado(s) exitosamente", n)
}

// IndicatorText renders the pending indicator; empty when nothing is pending.
func IndicatorText(count int) string {
	if count <= 0 {
		return ""
	}
	return fmt.Sprintf("%d comentario(s) pendiente(s) de enviar", count)
}

// LogSurface writes notifications to a logrus logger.
type LogSurface struct {
	Logger *logrus.Logger
}

func (s LogSurface) Notify(n Notification) {
	entry := s.Logger.WithField("kind", string(n.Level))
	if n.Level == LevelError {
		entry.Error(n.Message)
		return
	}
	entry.Info(n.Message)
}

func (s LogSurface) PendingChanged(count int) {
	if count == 0 {
		s.Logger.WithField("pending", 0).Debug("No pending comments")
		return
	}
	s.Logger.WithField("pending", count).Info(IndicatorText(count))
}

// Multi fans out to several surfaces.
type Multi []Surface

func (m Multi) Notify(n Notification) {
	for _, s := range m {
		s.Notify(n)
	}
}

func (m Multi) PendingChanged(count int) {
	for _, s := range m {
		s.PendingChanged(count)
	}
}

// Recorder keeps everything it is shown. Safe for concurrent use.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
	counts        []int
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.notifications = append(r.notifications, n)
	r.mu.Unlock()
}

func (r *Recorder) PendingChanged(count int) {
	r.mu.Lock()
	r.counts = append(r.counts, count)
	r.mu.Unlock()
}

func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

// Last returns the most recent notification, or the zero value.
func (r *Recorder) Last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return Notification{}
	}
	return r.notifications[len(r.notifications)-1]
}

// Pending returns the last indicator count and whether one was reported.
func (r *Recorder) Pending() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.counts) == 0 {
		return 0, false
	}
	return r.counts[len(r.counts)-1], true
}
