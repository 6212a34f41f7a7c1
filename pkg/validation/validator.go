package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/cluso-forcegraph/pkg/colors"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxKeyLength     = 256
	MaxAttributes    = 100
	MaxAttributeName = 100
	MaxBatchSize     = 1000
	MinBatchSize     = 1

	// Regular expressions
	attrNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.-]*$`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("color", func(fl validator.FieldLevel) bool {
		_, err := colors.Parse(fl.Field().String())
		return err == nil
	})
}

// NodeRequest represents a request to add or update a node
type NodeRequest struct {
	Key        string         `json:"key" validate:"required,max=256"`
	Attributes map[string]any `json:"attributes" validate:"omitempty,max=100"`
}

// EdgeRequest represents a request to add an edge. An empty key is generated.
type EdgeRequest struct {
	Key        string         `json:"key" validate:"omitempty,max=256"`
	Source     string         `json:"source" validate:"required,max=256"`
	Target     string         `json:"target" validate:"required,max=256"`
	Attributes map[string]any `json:"attributes" validate:"omitempty,max=100"`
}

// AttributesRequest sets and removes attributes of a node or edge
type AttributesRequest struct {
	Set    map[string]any `json:"set" validate:"omitempty,max=100"`
	Remove []string       `json:"remove" validate:"omitempty,max=100,dive,required"`
}

// ValidateNodeRequest validates a node request
func ValidateNodeRequest(req *NodeRequest) error {
	if req == nil {
		return errors.New("node request cannot be nil")
	}

	// Validate using struct tags
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	return validateAttributes(req.Attributes)
}

// ValidateEdgeRequest validates an edge request
func ValidateEdgeRequest(req *EdgeRequest) error {
	if req == nil {
		return errors.New("edge request cannot be nil")
	}

	// Validate using struct tags
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	return validateAttributes(req.Attributes)
}

// ValidateAttributesRequest validates an attribute update
func ValidateAttributesRequest(req *AttributesRequest) error {
	if req == nil {
		return errors.New("attributes request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	if len(req.Set) == 0 && len(req.Remove) == 0 {
		return errors.New("attributes request changes nothing")
	}
	for _, name := range req.Remove {
		if err := ValidateAttributeName(name); err != nil {
			return fmt.Errorf("Remove: %w", err)
		}
	}
	return validateAttributes(req.Set)
}

func validateAttributes(attrs map[string]any) error {
	if len(attrs) > MaxAttributes {
		return fmt.Errorf("Attributes: maximum %d attributes allowed, got %d", MaxAttributes, len(attrs))
	}
	for name := range attrs {
		if err := ValidateAttributeName(name); err != nil {
			return fmt.Errorf("Attributes: %w", err)
		}
	}
	return nil
}

// ValidateBatchSize validates the size of a batch request
func ValidateBatchSize(size int) error {
	if size < MinBatchSize {
		return fmt.Errorf("batch size must be at least %d, got %d", MinBatchSize, size)
	}
	if size > MaxBatchSize {
		return fmt.Errorf("batch size must not exceed %d, got %d", MaxBatchSize, size)
	}
	return nil
}

// ValidateAttributeName validates an attribute name
func ValidateAttributeName(name string) error {
	if name == "" {
		return errors.New("attribute name cannot be empty")
	}
	if len(name) > MaxAttributeName {
		return fmt.Errorf("attribute name '%s' exceeds maximum length of %d characters", name, MaxAttributeName)
	}
	if !attrNamePattern.MatchString(name) {
		return fmt.Errorf("attribute name '%s' is invalid (must start with letter or underscore, followed by alphanumeric, underscore, dot or dash)", name)
	}
	return nil
}

// Struct validates v against its struct tags
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Namespace()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max", "lte":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		case "color":
			return fmt.Errorf("%s: %q is not a color", field, e.Value())
		case "dive":
			// For array elements
			return fmt.Errorf("%s: invalid element in array", field)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}

	return err
}
