package errors

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
)

// ContentTypeProblemJSON is the media type for problem responses.
const ContentTypeProblemJSON = "application/problem+json"

// ErrorMapper turns a domain or application error into a problem. It reports false
// when the error is not one it knows.
type ErrorMapper func(err error) (ProblemDetail, bool)

// Responder writes problems, consulting its mappers in order before falling back
// to a 500.
type Responder struct {
	baseURI string
	mappers []ErrorMapper
	logger  *slog.Logger
}

func NewResponder(baseURI string, mappers ...ErrorMapper) *Responder {
	return &Responder{baseURI: baseURI, mappers: mappers}
}

// WithLogger logs unmapped errors before they are rendered as 500s.
func (r *Responder) WithLogger(logger *slog.Logger) *Responder {
	r.logger = logger
	return r
}

// Respond writes problem with the problem+json content type.
func (r *Responder) Respond(c *gin.Context, problem ProblemDetail) {
	if r.baseURI != "" && len(problem.Type) > 0 && problem.Type[0] == '/' {
		problem.Type = r.baseURI + problem.Type
	}
	if problem.Instance == "" && c.Request != nil {
		problem.Instance = c.Request.URL.Path
	}
	c.Header("Content-Type", ContentTypeProblemJSON)
	c.AbortWithStatusJSON(problem.Status, problem)
}

// RespondError maps err and writes the result.
func (r *Responder) RespondError(c *gin.Context, err error) {
	var problem ProblemDetail
	if errors.As(err, &problem) {
		r.Respond(c, problem)
		return
	}
	for _, mapper := range r.mappers {
		if mapped, ok := mapper(err); ok {
			r.Respond(c, mapped)
			return
		}
	}
	if r.logger != nil {
		r.logger.ErrorContext(c.Request.Context(), "unhandled error", slog.String("error", err.Error()))
	}
	r.Respond(c, ErrInternal)
}
