// Package formstream validates multipart/form-data bodies incrementally, without
// buffering file uploads.
//
// A [Session] is an explicit state machine (Streaming, Finishing, Done) fed with
// field, file and end events. For every event it decides whether the part is
// forwarded to the handler, suppressed, rejected or discarded, and it accumulates
// validation errors in arrival order:
//
//   - undeclared names are discarded
//   - a second occurrence of a non-repeatable name records one repeat error and is
//     discarded, and processing continues
//   - once any error is recorded, later valid parts are validated but never forwarded
//   - at the end, every required field never received adds a required error
//
// A [Form] drives a Session from a multipart stream. Handlers pull forwarded parts
// with [Form.Next]; rejected and discarded parts are drained so the connection is
// never stalled. File parts are sniffed with github.com/gabriel-vasile/mimetype to
// enforce fileTypes.
//
//	for {
//		part, err := form.Next()
//		if errors.Is(err, io.EOF) {
//			break
//		}
//		if err != nil {
//			return err // *oaserrors.RequestError with every validation error
//		}
//		if part.IsFile() {
//			io.Copy(dst, part)
//		}
//	}
package formstream
