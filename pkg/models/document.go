package models

// DocumentText holds the plain text extracted from an uploaded PDF.
// It lives only for the duration of a single request; uploaded content
// is never retained after the response is assembled.
type DocumentText struct {
	PageCount int
	Text      string
}

// Empty reports whether extraction produced no usable text.
func (d *DocumentText) Empty() bool {
	return d == nil || len(d.Text) == 0
}
