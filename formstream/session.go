package formstream

import (
	"fmt"

	"github.com/erraggy/oasguard/contract"
	"github.com/erraggy/oasguard/internal/httputil"
	"github.com/erraggy/oasguard/oaserrors"
	"github.com/erraggy/oasguard/sanitizer"
	"github.com/erraggy/oasguard/validator"
)

// EventKind tags a multipart event.
type EventKind int

// Event kinds.
const (
	EventField EventKind = iota
	EventFile
	EventEnd
)

// Event is one multipart event fed to a Session.
type Event struct {
	Kind EventKind
	Name string
	// Value is the raw text of a field.
	Value string
	// MediaType is the detected media type of a file.
	MediaType string
}

// Decision tells the reader what to do with the part an event came from.
type Decision int

// Decisions.
const (
	// Forward passes the part to the handler.
	Forward Decision = iota
	// Suppress means the part is valid but an earlier error blocks forwarding.
	Suppress
	// Reject means the part failed validation.
	Reject
	// Discard means the part is undeclared or an illegal repeat.
	Discard
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Forward:
		return "forward"
	case Suppress:
		return "suppress"
	case Reject:
		return "reject"
	case Discard:
		return "discard"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a Session.
type State int

// States.
const (
	Streaming State = iota
	Finishing
	Done
)

// Result is the outcome of applying one event.
type Result struct {
	Decision Decision
	// Value is the sanitized field value (fields only).
	Value any
}

// Session accumulates the validation state of one multipart body. It is owned by a
// single request and is not safe for concurrent use.
type Session struct {
	fields    []*contract.Field
	byName    map[string]*contract.Field
	validator *validator.Validator

	received map[string]bool
	repeated map[string]bool
	errs     []oaserrors.ValidationError
	failed   bool
	state    State
}

// NewSession starts a session for the declared form fields. A nil validator uses
// a private one.
func NewSession(fields []*contract.Field, v *validator.Validator) *Session {
	if v == nil {
		v = validator.New()
	}
	byName := make(map[string]*contract.Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	return &Session{
		fields:    fields,
		byName:    byName,
		validator: v,
		received:  make(map[string]bool),
		repeated:  make(map[string]bool),
	}
}

// Apply feeds one event to the session and returns what to do with its part.
//
// Undeclared names are discarded. A second occurrence of a non-repeatable name
// records a single repeat error and is discarded; processing continues. Once any
// error has been recorded, valid parts are suppressed rather than forwarded. An
// EventEnd finishes the session, as [Session.Finish] does.
func (s *Session) Apply(ev Event) Result {
	if s.state != Streaming {
		return Result{Decision: Discard}
	}
	if ev.Kind == EventEnd {
		s.Finish()
		return Result{Decision: Discard}
	}

	f, declared := s.byName[ev.Name]
	if !declared {
		return Result{Decision: Discard}
	}

	multi := f.Repeat || f.IsArray()
	if s.received[ev.Name] && !multi {
		if !s.repeated[ev.Name] {
			s.repeated[ev.Name] = true
			s.record(validator.Repeat(ev.Value, f, oaserrors.CategoryForm, ev.Name))
		}
		return Result{Decision: Discard}
	}
	s.received[ev.Name] = true

	item := f
	if multi {
		item = f.ItemField()
	}

	var value any
	var errs []oaserrors.ValidationError
	switch ev.Kind {
	case EventFile:
		errs = checkFile(ev, item)
	default:
		value = sanitizer.Value(ev.Value, item)
		if item.EffectiveType() == contract.TypeFile {
			errs = []oaserrors.ValidationError{{
				Category: oaserrors.CategoryForm,
				Path:     ev.Name,
				Keyword:  oaserrors.KeywordType,
				Data:     ev.Value,
				Schema:   string(contract.TypeFile),
				Message:  "expected file but got field",
			}}
		} else {
			errs = s.validator.Value(value, item, oaserrors.CategoryForm, ev.Name)
		}
	}

	if len(errs) > 0 {
		for _, e := range errs {
			s.record(e)
		}
		return Result{Decision: Reject}
	}
	if s.failed {
		return Result{Decision: Suppress, Value: value}
	}
	return Result{Decision: Forward, Value: value}
}

// Finish moves the session to Done, appending a required error for every required
// field never received, in declaration order. It returns the final report and is
// idempotent.
func (s *Session) Finish() oaserrors.Report {
	if s.state == Done {
		return oaserrors.NewReport(s.errs)
	}
	s.state = Finishing
	for _, f := range s.fields {
		if f.Required && !s.received[f.Name] {
			s.record(validator.Required(f, oaserrors.CategoryForm, f.Name))
		}
	}
	s.state = Done
	return oaserrors.NewReport(s.errs)
}

// Failed reports whether any error has been recorded.
func (s *Session) Failed() bool { return s.failed }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Errors returns the errors recorded so far, in arrival order.
func (s *Session) Errors() []oaserrors.ValidationError { return s.errs }

// Declared returns the declaration for name.
func (s *Session) Declared(name string) (*contract.Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

func (s *Session) record(e oaserrors.ValidationError) {
	s.errs = append(s.errs, e)
	s.failed = true
}

func checkFile(ev Event, f *contract.Field) []oaserrors.ValidationError {
	if f.EffectiveType() != contract.TypeFile {
		return []oaserrors.ValidationError{{
			Category: oaserrors.CategoryForm,
			Path:     ev.Name,
			Keyword:  oaserrors.KeywordType,
			Data:     ev.MediaType,
			Schema:   string(f.EffectiveType()),
			Message:  fmt.Sprintf("expected %s but got file", f.EffectiveType()),
		}}
	}
	if len(f.FileTypes) == 0 {
		return nil
	}
	for _, allowed := range f.FileTypes {
		if httputil.MatchMediaType(allowed, ev.MediaType) {
			return nil
		}
	}
	return []oaserrors.ValidationError{{
		Category: oaserrors.CategoryForm,
		Path:     ev.Name,
		Keyword:  oaserrors.KeywordFileTypes,
		Data:     ev.MediaType,
		Schema:   f.FileTypes,
		Message:  fmt.Sprintf("file type %s is not one of %v", ev.MediaType, f.FileTypes),
	}}
}
