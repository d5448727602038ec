// Package notify maps classified outcomes to user-visible severity, display
// duration, and remediation suggestions.
package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hackfest/syncengine/internal/core/domain"
)

// Severity orders banner importance. Duration strictly follows severity:
// Error >= Warning > Info >= Success.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
)

// Banner is one resolved user-visible notification.
type Banner struct {
	Severity    Severity
	Message     string
	Duration    time.Duration
	Suggestions []string
}

// Emitter is the banner/toast channel exposed to the host UI.
type Emitter interface {
	Emit(b Banner)
}

// Outcome is a classified result to surface.
type Outcome struct {
	Err       *domain.ClassifiedError
	Operation string // e.g. "createSubmission", "signIn"; keys contextual suggestions
	Message   string // optional override for the banner text
	Queued    bool   // write deferred to the offline queue
	Success   bool
}

const (
	durationCritical = 10 * time.Second
	durationError    = 8 * time.Second
	durationWarning  = 5 * time.Second
	durationInfo     = 3 * time.Second
	durationSuccess  = 2 * time.Second
)

// Resolve maps an outcome to a banner deterministically.
func Resolve(o Outcome) Banner {
	switch {
	case o.Queued:
		return Banner{
			Severity:    SeverityInfo,
			Message:     messageOr(o, fmt.Sprintf("%s saved; it will sync when you're back online", o.Operation)),
			Duration:    durationInfo,
			Suggestions: []string{"Your change is queued and will replay automatically"},
		}
	case o.Success:
		return Banner{
			Severity:    SeveritySuccess,
			Message:     messageOr(o, fmt.Sprintf("%s succeeded", o.Operation)),
			Duration:    durationSuccess,
			Suggestions: []string{"You're all set"},
		}
	case o.Err != nil:
		sev := severityFor(o.Err.Kind)
		return Banner{
			Severity:    sev,
			Message:     messageOr(o, o.Err.Message),
			Duration:    durationFor(sev),
			Suggestions: suggestionsFor(o.Err.Kind, o.Operation),
		}
	default:
		return Banner{
			Severity:    SeverityInfo,
			Message:     messageOr(o, o.Operation),
			Duration:    durationInfo,
			Suggestions: []string{"No action needed"},
		}
	}
}

func messageOr(o Outcome, fallback string) string {
	if o.Message != "" {
		return o.Message
	}
	return fallback
}

func severityFor(kind domain.ErrorKind) Severity {
	switch kind {
	case domain.ErrNetwork, domain.ErrTimeout, domain.ErrValidation:
		return SeverityWarning
	case domain.ErrServer:
		return SeverityCritical
	default:
		return SeverityError
	}
}

func durationFor(sev Severity) time.Duration {
	switch sev {
	case SeverityCritical:
		return durationCritical
	case SeverityError:
		return durationError
	case SeverityWarning:
		return durationWarning
	case SeverityInfo:
		return durationInfo
	default:
		return durationSuccess
	}
}

// suggestionsFor keys remediation text off the error kind plus operation
// context. Always non-empty, de-duplicated.
func suggestionsFor(kind domain.ErrorKind, operation string) []string {
	var out []string
	switch kind {
	case domain.ErrNetwork:
		out = append(out, "Check your connection")
		if isWrite(operation) {
			out = append(out, "Your change will sync once you're back online")
		}
	case domain.ErrTimeout:
		out = append(out, "The server took too long; try again in a moment")
		if operation == "createSubmission" || operation == "updateSubmission" {
			out = append(out, "Large uploads may need a faster connection")
		}
	case domain.ErrValidation:
		out = append(out, "Review the highlighted fields and resubmit")
	case domain.ErrPermission:
		if operation == "signIn" {
			out = append(out, "Check your credentials")
		} else {
			out = append(out, "Sign in again", "Contact an organizer if you should have access")
		}
	case domain.ErrServer:
		out = append(out, "The service is having trouble; try again later")
	case domain.ErrClient:
		out = append(out, "Refresh and try again")
	default:
		out = append(out, "Try again")
	}
	return dedupe(out)
}

func isWrite(operation string) bool {
	switch operation {
	case "", "fetch":
		return false
	}
	return true
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// SlogEmitter logs banners; the default channel when no UI is attached.
type SlogEmitter struct {
	Log *slog.Logger
}

func (e SlogEmitter) Emit(b Banner) {
	log := e.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("banner",
		"severity", b.Severity, "message", b.Message,
		"duration", b.Duration, "suggestions", b.Suggestions)
}

// ChannelEmitter pushes banners onto a channel, dropping when the consumer
// lags. Exposed for host UIs that render their own toasts.
type ChannelEmitter struct {
	C chan Banner
}

// NewChannelEmitter creates an emitter with the given buffer size.
func NewChannelEmitter(buffer int) *ChannelEmitter {
	return &ChannelEmitter{C: make(chan Banner, buffer)}
}

func (e *ChannelEmitter) Emit(b Banner) {
	select {
	case e.C <- b:
	default:
	}
}
