package goals

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidGoal wraps every rejection by Validate.
var ErrInvalidGoal = errors.New("invalid goal")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("goal_type", func(fl validator.FieldLevel) bool {
		return GoalType(fl.Field().String()).Valid()
	})
	return v
}

// Validate rejects malformed goals and goals whose criteria are empty for their type.
func Validate(g ConversionGoal) error {
	if err := validate.Struct(g); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %q", ErrInvalidGoal, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %w", ErrInvalidGoal, err)
	}
	if _, err := g.Rule(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGoal, err)
	}
	if g.GoalType == GoalCombined && (g.MinScrollDepth != nil || g.MinTimeSeconds != nil) {
		return fmt.Errorf("%w: combined goals cannot use scroll or time criteria", ErrInvalidGoal)
	}
	return nil
}
