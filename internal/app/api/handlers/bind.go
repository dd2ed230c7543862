package handlers

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/fatflowers/matchpay/pkg/logctx"
	"github.com/fatflowers/matchpay/pkg/response"
)

// clientPriceFields may never be supplied by a client.
var clientPriceFields = []string{"amount", "price", "currency"}

func init() {
	// report json names in validation errors
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// bindJSON binds the body into req and validates its binding tags. Bodies
// carrying any of the forbidden keys are rejected. An empty body binds to
// the zero request, which still has to pass validation.
func bindJSON(c *gin.Context, req any, forbidden ...string) error {
	if len(forbidden) > 0 {
		var fields map[string]any
		if err := c.ShouldBindBodyWith(&fields, binding.JSON); err != nil && !errors.Is(err, io.EOF) {
			return bindError(err)
		}
		for _, f := range forbidden {
			if _, ok := fields[f]; ok {
				return apperr.InvalidArgument("%s must not be supplied by the client", f)
			}
		}
	}
	err := c.ShouldBindBodyWith(req, binding.JSON)
	if errors.Is(err, io.EOF) {
		err = binding.Validator.ValidateStruct(req)
	}
	if err != nil {
		return bindError(err)
	}
	return nil
}

func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return apperr.InvalidArgument("%s is required", fe.Field())
		}
		return apperr.InvalidArgument("%s is invalid", fe.Field())
	}
	return apperr.InvalidArgument("invalid json body")
}

// writeError renders err in the response envelope with its HTTP status.
func writeError(c *gin.Context, log *zap.SugaredLogger, err error) {
	status, body := response.FromError(err)
	if status >= http.StatusInternalServerError {
		logctx.FromGin(c, log).Errorw("request_failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, body)
}
