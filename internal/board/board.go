package board

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"
	"time"

	"precioverdadero/internal/models"
	"precioverdadero/pkg/commentapi"

	"github.com/sirupsen/logrus"
)

const (
	MsgEmpty      = "No hay comentarios aún. ¡Sé el primero en comentar!"
	MsgLoadFailed = "Error al cargar comentarios"
	MsgConnection = "Error de conexión al cargar comentarios"
)

// Lister fetches the newest comments from the server.
type Lister interface {
	List(ctx context.Context) ([]models.Comment, error)
}

type Format int

const (
	FormatText Format = iota
	FormatHTML
)

var months = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FormatDate renders t as "17 de octubre de 2026, 14:05" in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%d de %s de %d, %02d:%02d", t.Day(), months[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

var listTemplate = template.Must(template.New("comments").Funcs(template.FuncMap{
	"date": FormatDate,
}).Parse(`{{if .Err}}<p class="text-center text-red-500">{{.Err}}</p>
{{else if not .Comments}}<p class="text-center text-gray-500">{{.Empty}}</p>
{{else}}{{range .Comments}}<div class="bg-white p-4 rounded-lg shadow-md">
  <div class="flex justify-between items-start mb-2">
    <div>
      <h5 class="font-semibold text-gray-800">{{.Name}}</h5>
      <p class="text-sm text-gray-500">{{.Email}}</p>
    </div>
    <span class="text-xs text-gray-400">{{date .CreatedAt $.Loc}}</span>
  </div>
  <p class="text-gray-700">{{.Text}}</p>
</div>
{{end}}{{end}}`))

type view struct {
	Comments []models.Comment
	Err      string
	Empty    string
	Loc      *time.Location
}

// RenderHTML writes the comment list as HTML. Every user field is escaped.
func RenderHTML(w io.Writer, comments []models.Comment, loc *time.Location) error {
	return listTemplate.Execute(w, view{Comments: comments, Empty: MsgEmpty, Loc: loc})
}

// RenderHTMLError writes the failure notice shown in place of the list.
func RenderHTMLError(w io.Writer, message string) error {
	return listTemplate.Execute(w, view{Err: message})
}

// RenderText writes the comment list for a terminal.
func RenderText(w io.Writer, comments []models.Comment, loc *time.Location) error {
	if len(comments) == 0 {
		_, err := fmt.Fprintln(w, MsgEmpty)
		return err
	}
	var b strings.Builder
	for i, c := range comments {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s <%s> · %s\n", c.Name, c.Email, FormatDate(c.CreatedAt, loc))
		fmt.Fprintf(&b, "  %s\n", strings.ReplaceAll(c.Text, "\n", "\n  "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// ErrorMessage picks the notice for a failed fetch: a refusal from the
// server versus no answer at all.
func ErrorMessage(err error) string {
	if commentapi.IsRejected(err) {
		return MsgLoadFailed
	}
	return MsgConnection
}

// Board keeps the rendered comment list current.
type Board struct {
	lister Lister
	format Format
	loc    *time.Location
	logger *logrus.Logger

	mu   sync.Mutex
	out  io.Writer
	last []models.Comment
}

func New(lister Lister, out io.Writer, format Format, logger *logrus.Logger) *Board {
	return &Board{
		lister: lister,
		out:    out,
		format: format,
		loc:    time.Local,
		logger: logger,
	}
}

// SetLocation changes the zone dates are shown in.
func (b *Board) SetLocation(loc *time.Location) {
	b.mu.Lock()
	b.loc = loc
	b.mu.Unlock()
}

// Refresh re-fetches the list and redraws it. On failure the error notice
// is drawn instead and the error returned.
func (b *Board) Refresh(ctx context.Context) error {
	comments, err := b.lister.List(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.logger.WithError(err).Warn("Failed to load comments")
		msg := ErrorMessage(err)
		if b.format == FormatHTML {
			if rerr := RenderHTMLError(b.out, msg); rerr != nil {
				return rerr
			}
		} else {
			fmt.Fprintln(b.out, msg)
		}
		return err
	}

	b.last = comments
	b.logger.WithField("count", len(comments)).Debug("Comment list refreshed")
	if b.format == FormatHTML {
		return RenderHTML(b.out, comments, b.loc)
	}
	return RenderText(b.out, comments, b.loc)
}

// Comments returns the list drawn by the last successful refresh.
func (b *Board) Comments() []models.Comment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Comment(nil), b.last...)
}
