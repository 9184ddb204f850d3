package http

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrNotNegotiable = errors.New("result cannot be converted to a response")
)

// Responder is implemented by action results that know how to build their response
type Responder interface {
	Respond(f *Formatter) (*Response, error)
}

// Negotiator converts an action result into a Response
type Negotiator func(result any, c *Context) (*Response, error)

// JSON is an action result encoded with the JSON codec
type JSON struct {
	Status int
	Model  any
}

func (r JSON) Respond(f *Formatter) (*Response, error) {
	return f.AsJSON(statusOr(r.Status), r.Model)
}

// XML is an action result encoded with the XML codec
type XML struct {
	Status int
	Model  any
}

func (r XML) Respond(f *Formatter) (*Response, error) {
	return f.AsXML(statusOr(r.Status), r.Model)
}

// Proto is an action result encoded as a protobuf message
type Proto struct {
	Status int
	Model  any
}

func (r Proto) Respond(f *Formatter) (*Response, error) {
	return f.AsProtobuf(statusOr(r.Status), r.Model)
}

// Text is a plain text result; Charset defaults to utf-8
type Text struct {
	Status  int
	Body    string
	Charset string
}

func (r Text) Respond(f *Formatter) (*Response, error) {
	if r.Charset == "" {
		return NewText(statusOr(r.Status), r.Body), nil
	}
	return NewTextCharset(statusOr(r.Status), r.Body, r.Charset)
}

// Redirect sends the client elsewhere
type Redirect struct {
	Location string
	Kind     RedirectType
}

func (r Redirect) Respond(f *Formatter) (*Response, error) {
	return f.AsRedirect(r.Location, r.Kind), nil
}

// Stream copies the body from a stream opened at write time
type Stream struct {
	Open        func() (io.ReadCloser, error)
	ContentType string
}

func (r Stream) Respond(f *Formatter) (*Response, error) {
	if r.Open == nil {
		return nil, fmt.Errorf("%w: stream without opener", ErrNotNegotiable)
	}
	return f.FromStream(r.Open, r.ContentType), nil
}

func statusOr(code int) int {
	if code == 0 {
		return 200
	}
	return code
}

// Negotiate converts the closed set of supported action results into a Response
func Negotiate(result any, c *Context) (*Response, error) {
	f := c.Formatter
	if f == nil {
		f = NewFormatter(c, nil, nil)
	}
	switch v := result.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrNotNegotiable)
	case *Response:
		if v == nil {
			return nil, fmt.Errorf("%w: nil response", ErrNotNegotiable)
		}
		return v, nil
	case Responder:
		return v.Respond(f)
	case string:
		return f.AsText(v), nil
	case []byte:
		return NewBytes(200, "application/octet-stream", v), nil
	case Status:
		return NewStatus(int(v)), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotNegotiable, result)
	}
}
