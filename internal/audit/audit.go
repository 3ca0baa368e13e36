// Package audit escribe un log diario de operaciones que cambian estado o
// que cuestan dinero (cambios de estado de SIM, consultas SIV).
package audit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Logger struct {
	dir    string
	prefix string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// New con dir == "" devuelve nil; Record sobre nil no hace nada.
func New(dir, prefix string, lg *slog.Logger) *Logger {
	if dir == "" {
		return nil
	}
	return &Logger{dir: dir, prefix: prefix, logger: lg.With("component", "audit"), now: time.Now}
}

// Path del fichero del día actual.
func (l *Logger) Path() string {
	return filepath.Join(l.dir, l.prefix+"_"+l.now().Format("20060102")+".log")
}

// Record añade una línea "HH:MM:SS - action k=v k=v".
func (l *Logger) Record(action string, kv ...any) {
	if l == nil {
		return
	}
	var sb strings.Builder
	sb.WriteString(l.now().Format("15:04:05"))
	sb.WriteString(" - ")
	sb.WriteString(action)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", kv[i], kv[i+1])
	}
	sb.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		l.logger.Error("audit: mkdir failed", "dir", l.dir, "err", err)
		return
	}
	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Error("audit: open failed", "err", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(sb.String()); err != nil {
		l.logger.Error("audit: write failed", "err", err)
	}
}
