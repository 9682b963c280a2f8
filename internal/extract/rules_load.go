package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/common"
)

// ErrConfiguration is wrapped by every error caused by invalid rule tables.
var ErrConfiguration = common.ErrConfiguration

func configError(msg string, cause error) error {
	if cause == nil {
		cause = ErrConfiguration
	} else {
		cause = fmt.Errorf("%w: %v", ErrConfiguration, cause)
	}
	return common.NewAppError(common.CodeConfig, msg, cause)
}

// LoadRules reads a rules file (YAML or JSON) and overlays it on
// DefaultRules. Lists present in the file replace the built-in list;
// confusable entries are merged; absent fields keep their defaults.
func LoadRules(path string) (Rules, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, configError("read rules file "+path, err)
	}
	return ParseRules(b)
}

// ParseRules validates data against the rules schema and decodes it on top
// of DefaultRules.
func ParseRules(data []byte) (Rules, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Rules{}, configError("decode rules", err)
	}
	if doc == nil {
		return DefaultRules(), nil
	}
	// round-trip through JSON so the validator sees JSON-typed values
	js, err := json.Marshal(doc)
	if err != nil {
		return Rules{}, configError("re-encode rules", err)
	}
	if err := validateJSONAgainstSchema(BuildRulesJSONSchema(), js); err != nil {
		return Rules{}, configError("rules do not match schema", err)
	}

	r := DefaultRules()
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, configError("decode rules", err)
	}
	if err := validateRules(r); err != nil {
		return Rules{}, err
	}
	return r, nil
}

func validateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rules.schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("rules.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return schema.Validate(v)
}

// validateRules checks the semantic constraints the schema cannot express.
func validateRules(r Rules) error {
	v := common.NewValidator()

	v.Field("currencies", len(r.Currencies), common.Positive)
	seen := map[string]bool{}
	for i, c := range r.Currencies {
		field := fmt.Sprintf("currencies[%d]", i)
		v.Field(field+".code", c.Code, common.CurrencyCode)
		v.Field(field+".patterns", c.Patterns, common.NonEmptyList)
		for j, p := range c.Patterns {
			v.Field(fmt.Sprintf("%s.patterns[%d]", field, j), `(?i)`+p, common.Regexp)
		}
		if seen[c.Code] {
			v.Field(field+".code", c.Code, func(f string, val interface{}) *common.ValidationError {
				return &common.ValidationError{Field: f, Value: val, Message: "is registered twice"}
			})
		}
		seen[c.Code] = true
	}
	v.Field("default_currency", r.DefaultCurrency, common.Required, common.CurrencyCode)

	for k, d := range r.Confusables {
		v.Field("confusables", k+"->"+d, func(f string, val interface{}) *common.ValidationError {
			dr, _ := utf8.DecodeRuneInString(d)
			if utf8.RuneCountInString(k) != 1 || utf8.RuneCountInString(d) != 1 || dr < '0' || dr > '9' {
				return &common.ValidationError{Field: f, Value: val, Message: "must map one glyph to one digit"}
			}
			return nil
		})
	}

	v.Field("dates.patterns", r.Dates.Patterns, common.NonEmptyList)
	for i, p := range r.Dates.Patterns {
		v.Field(fmt.Sprintf("dates.patterns[%d]", i), p, common.Regexp)
	}
	v.Field("dates.layouts", r.Dates.Layouts, common.NonEmptyList)
	v.Field("dates.order", r.Dates.Order, common.OneOf(DateOrderMDY, DateOrderDMY))
	if r.Calendar.Enabled {
		v.Field("calendar.offset", r.Calendar.Offset, common.Positive)
		v.Field("calendar.upper_bound", r.Calendar.UpperBound, common.Positive)
	}

	v.Field("merchant.head_lines", r.Merchant.HeadLines, common.Positive)
	v.Field("merchant.tail_lines", r.Merchant.TailLines, common.Positive)
	for i, mc := range r.Merchant.Corrections {
		v.Field(fmt.Sprintf("merchant.corrections[%d].canonical", i), mc.Canonical, common.Required)
		v.Field(fmt.Sprintf("merchant.corrections[%d].variants", i), mc.Variants, common.NonEmptyList)
	}

	v.Field("amount.total_keywords", r.Amount.TotalKeywords, common.NonEmptyList)
	v.Field("amount.tail_fraction", r.Amount.TailFraction, common.InRange(0, 1))
	v.Field("amount.keyword_weight", r.Amount.KeywordWeight, common.InRange(0, 1))
	v.Field("amount.positional_weight", r.Amount.PositionalWeight, common.InRange(0, 1))
	v.Field("amount.numeric_weight", r.Amount.NumericWeight, common.InRange(0, 1))
	v.Field("amount.max_total", r.Amount.MaxTotal, common.Positive)
	if r.Amount.PositionalWeight >= r.Amount.KeywordWeight || r.Amount.NumericWeight >= r.Amount.PositionalWeight {
		v.Field("amount", "weights", func(f string, val interface{}) *common.ValidationError {
			return &common.ValidationError{Field: f, Value: val, Message: "must satisfy keyword > positional > numeric"}
		})
	}

	v.Field("items.max_item_amount", r.Items.MaxItemAmount, common.Positive)
	v.Field("items.min_description_len", r.Items.MinDescriptionLen, common.Positive)
	if r.Items.MaxItemAmount > r.Amount.MaxTotal {
		v.Field("items.max_item_amount", r.Items.MaxItemAmount, func(f string, val interface{}) *common.ValidationError {
			return &common.ValidationError{Field: f, Value: val, Message: "must not exceed amount.max_total"}
		})
	}

	for name, w := range map[string]float64{
		"weights.date":     r.Weights.Date,
		"weights.amount":   r.Weights.Amount,
		"weights.merchant": r.Weights.Merchant,
		"weights.currency": r.Weights.Currency,
	} {
		v.Field(name, w, common.InRange(0, 1))
	}

	if v.HasErrors() {
		return configError(v.ErrorMessage(), nil)
	}
	return nil
}

// BuildRulesJSONSchema returns the structural schema for rules files.
func BuildRulesJSONSchema() map[string]any {
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	number := map[string]any{"type": "number"}
	integer := map[string]any{"type": "integer"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"currencies": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"code", "patterns"},
					"properties": map[string]any{
						"code":     map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
						"patterns": stringList,
						"tokens":   stringList,
					},
				},
			},
			"default_currency": map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
			"confusables": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string", "pattern": `^[0-9]$`},
			},
			"dates": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"keywords": stringList,
					"patterns": stringList,
					"layouts":  stringList,
					"order":    map[string]any{"enum": []string{DateOrderMDY, DateOrderDMY}},
				},
			},
			"calendar": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"enabled":     map[string]any{"type": "boolean"},
					"offset":      integer,
					"margin":      integer,
					"upper_bound": integer,
				},
			},
			"merchant": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"issued_by_labels":  stringList,
					"head_lines":        integer,
					"tail_lines":        integer,
					"noise_keywords":    stringList,
					"entity_keywords":   stringList,
					"scanner_artifacts": stringList,
					"corrections": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []string{"canonical", "variants"},
							"properties": map[string]any{
								"canonical": map[string]any{"type": "string", "minLength": 1},
								"variants":  stringList,
							},
						},
					},
				},
			},
			"amount": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"total_keywords":     stringList,
					"tail_fraction":      number,
					"keyword_weight":     number,
					"positional_weight":  number,
					"numeric_weight":     number,
					"min_numeric_amount": number,
					"max_total":          number,
				},
			},
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"noise_keywords":      stringList,
					"stop_keywords":       stringList,
					"max_item_amount":     number,
					"min_description_len": integer,
				},
			},
			"weights": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"date":     number,
					"amount":   number,
					"merchant": number,
					"currency": number,
				},
			},
			"receipt_types": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"type", "keywords"},
					"properties": map[string]any{
						"type":     map[string]any{"type": "string"},
						"keywords": stringList,
					},
				},
			},
		},
	}
}
