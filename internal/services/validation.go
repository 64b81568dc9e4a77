package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperrors "github.com/Rayan1605/MainChatApplication/pkg/errors"
)

// ErrValidation marks a request rejected before any side effect.
var ErrValidation = errors.New("validation failed")

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return primitive.IsValidObjectID(fl.Field().String())
	})
	return v
}

// validationError turns validator output into a 400 that still matches
// ErrValidation.
func validationError(err error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return fmt.Errorf("%w: %w", apperrors.BadRequest(err.Error()), ErrValidation)
	}

	problems := make([]string, 0, len(fields))
	for _, f := range fields {
		switch f.Tag() {
		case "required":
			problems = append(problems, f.Field()+" is required")
		case "oneof":
			problems = append(problems, fmt.Sprintf("%s must be one of [%s]", f.Field(), f.Param()))
		case "objectid":
			problems = append(problems, f.Field()+" must be a valid ObjectId")
		default:
			problems = append(problems, f.Field()+" is invalid")
		}
	}
	return fmt.Errorf("%w: %w", apperrors.BadRequest(strings.Join(problems, "; ")), ErrValidation)
}
