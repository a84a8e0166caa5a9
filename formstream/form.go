package formstream

import (
	"bufio"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/gabriel-vasile/mimetype"

	"github.com/erraggy/oasguard/internal/httputil"
	"github.com/erraggy/oasguard/logging"
	"github.com/erraggy/oasguard/oaserrors"
)

// sniffLen is how much of a file part is buffered for content detection.
const sniffLen = 3072

// Limits bounds one multipart body. Zero means unlimited.
type Limits struct {
	Parts     int   `mapstructure:"parts" validate:"gte=0"`
	Fields    int   `mapstructure:"fields" validate:"gte=0"`
	Files     int   `mapstructure:"files" validate:"gte=0"`
	FieldSize int64 `mapstructure:"field_size" validate:"gte=0"`
	FileSize  int64 `mapstructure:"file_size" validate:"gte=0"`
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		Parts:     1000,
		Fields:    1000,
		Files:     100,
		FieldSize: 1 << 20,
	}
}

// Part is one forwarded multipart part.
type Part struct {
	Name     string
	FileName string
	// ContentType is the detected media type for files, the declared one for fields.
	ContentType string
	Header      textproto.MIMEHeader
	// Value is the sanitized field value. It is nil for files.
	Value any

	reader io.Reader
}

// IsFile reports whether the part is a file upload.
func (p *Part) IsFile() bool { return p.FileName != "" }

// Read reads file content. Fields have no content to read.
func (p *Part) Read(b []byte) (int, error) {
	if p.reader == nil {
		return 0, io.EOF
	}
	return p.reader.Read(b)
}

// Form streams a multipart body through a Session. The handler pulls parts with
// [Form.Next]; only parts that pass validation while the body is still error-free
// are returned. Everything else is validated and drained internally.
//
// A Form is owned by one request and is not safe for concurrent use.
type Form struct {
	mr      *multipart.Reader
	session *Session
	limits  Limits
	logger  logging.Logger

	parts, fields, files int
	current              *Part
	err                  error
	done                 bool
}

// NewForm creates a Form reading body with the given boundary.
func NewForm(body io.Reader, boundary string, session *Session, limits Limits, logger logging.Logger) *Form {
	return &Form{
		mr:      multipart.NewReader(body, boundary),
		session: session,
		limits:  limits,
		logger:  logging.OrNop(logger),
	}
}

// Next returns the next forwarded part. Unread content of the previous file part
// is drained first.
//
// At the end of the body Next returns io.EOF when the form is valid, or a
// *oaserrors.RequestError carrying every validation error found. A malformed body
// or an exceeded limit ends the form with the matching RequestError and no
// validation records. Once Next has returned an error it keeps returning it.
func (f *Form) Next() (*Part, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.done {
		return nil, io.EOF
	}
	if f.current != nil {
		current := f.current
		f.current = nil
		if _, err := io.Copy(io.Discard, current.reader); err != nil {
			return nil, f.fail(err)
		}
	}

	for {
		p, err := f.mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, f.finish()
		}
		if err != nil {
			return nil, f.fail(classify(err))
		}

		f.parts++
		if f.limits.Parts > 0 && f.parts > f.limits.Parts {
			return nil, f.fail(oaserrors.NewResourceLimitError("multipart parts", int64(f.limits.Parts), nil))
		}

		var part *Part
		if p.FileName() == "" {
			part, err = f.readField(p)
		} else {
			part, err = f.readFile(p)
		}
		if err != nil {
			return nil, f.fail(err)
		}
		if part != nil {
			return part, nil
		}
	}
}

// Drain consumes the rest of the body and returns the terminal error, or nil when
// the form ended valid.
func (f *Form) Drain() error {
	for {
		_, err := f.Next()
		if errors.Is(err, io.EOF) && f.err == nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Done reports whether the body has been fully consumed or has failed.
func (f *Form) Done() bool { return f.done || f.err != nil }

// Err returns the terminal error, if any.
func (f *Form) Err() error { return f.err }

// Session returns the underlying validation session.
func (f *Form) Session() *Session { return f.session }

func (f *Form) readField(p *multipart.Part) (*Part, error) {
	f.fields++
	if f.limits.Fields > 0 && f.fields > f.limits.Fields {
		return nil, oaserrors.NewResourceLimitError("multipart fields", int64(f.limits.Fields), nil)
	}

	var r io.Reader = p
	if f.limits.FieldSize > 0 {
		r = io.LimitReader(p, f.limits.FieldSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, classify(err)
	}
	if f.limits.FieldSize > 0 && int64(len(data)) > f.limits.FieldSize {
		return nil, oaserrors.NewResourceLimitError("multipart field size", f.limits.FieldSize, nil)
	}

	name := p.FormName()
	res := f.session.Apply(Event{Kind: EventField, Name: name, Value: string(data)})
	if res.Decision != Forward {
		f.logger.Debug("multipart part not forwarded", "name", name, "decision", res.Decision.String())
		return nil, nil
	}
	return &Part{
		Name:        name,
		ContentType: p.Header.Get("Content-Type"),
		Header:      p.Header,
		Value:       res.Value,
	}, nil
}

func (f *Form) readFile(p *multipart.Part) (*Part, error) {
	f.files++
	if f.limits.Files > 0 && f.files > f.limits.Files {
		return nil, oaserrors.NewResourceLimitError("multipart files", int64(f.limits.Files), nil)
	}

	name := p.FormName()
	content := &partReader{r: p, limit: f.limits.FileSize}

	if _, declared := f.session.Declared(name); !declared {
		f.session.Apply(Event{Kind: EventFile, Name: name})
		f.logger.Debug("multipart part not forwarded", "name", name, "decision", Discard.String())
		_, err := io.Copy(io.Discard, content)
		return nil, err
	}

	br := bufio.NewReaderSize(content, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}
	detected := httputil.Essence(mimetype.Detect(head).String())

	res := f.session.Apply(Event{Kind: EventFile, Name: name, MediaType: detected})
	if res.Decision != Forward {
		f.logger.Debug("multipart part not forwarded", "name", name, "decision", res.Decision.String())
		_, err := io.Copy(io.Discard, br)
		return nil, err
	}

	part := &Part{
		Name:        name,
		FileName:    p.FileName(),
		ContentType: detected,
		Header:      p.Header,
		reader:      &formReader{r: br, form: f},
	}
	f.current = part
	return part, nil
}

func (f *Form) finish() error {
	f.done = true
	report := f.session.Finish()
	if !report.Valid {
		f.err = oaserrors.NewValidationError(report.Errors)
		return f.err
	}
	return io.EOF
}

// fail records the first terminal error and returns it.
func (f *Form) fail(err error) error {
	if f.err == nil {
		f.err = err
	}
	return f.err
}

// classify maps a body read error to its request error.
func classify(err error) error {
	var reqErr *oaserrors.RequestError
	if errors.As(err, &reqErr) {
		return err
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return oaserrors.NewResourceLimitError("body size", maxErr.Limit, err)
	}
	return oaserrors.NewMalformedBodyError("multipart/form-data", err)
}

// partReader enforces the per-file size limit.
type partReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func (pr *partReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	pr.read += int64(n)
	if pr.limit > 0 && pr.read > pr.limit {
		return 0, oaserrors.NewResourceLimitError("multipart file size", pr.limit, nil)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, classify(err)
	}
	return n, err
}

// formReader hands file content to the handler and records read failures on the
// form, so a limit hit while the handler reads ends the whole form.
type formReader struct {
	r    io.Reader
	form *Form
}

func (fr *formReader) Read(b []byte) (int, error) {
	if fr.form.err != nil {
		return 0, fr.form.err
	}
	n, err := fr.r.Read(b)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fr.form.fail(err)
	}
	return n, err
}
