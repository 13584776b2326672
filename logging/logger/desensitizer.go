package logger

import (
	"regexp"
	"strings"

	"github.com/ncobase/genqueue/logging/logger/config"
	"github.com/sirupsen/logrus"
)

// bearerPattern matches bearer credentials embedded in free text.
var bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.=]+`)

// Desensitizer handles sensitive data masking in log fields
type Desensitizer struct {
	config   *config.Desensitization
	patterns []*regexp.Regexp
	mask     string
}

// NewDesensitizer creates a new desensitizer instance
func NewDesensitizer(cfg *config.Desensitization) *Desensitizer {
	if cfg == nil {
		cfg = config.DefaultDesensitization()
	}

	d := &Desensitizer{
		config:   cfg,
		patterns: []*regexp.Regexp{bearerPattern},
		mask:     strings.Repeat(cfg.MaskChar, cfg.FixedMaskLength),
	}

	for _, pattern := range cfg.CustomPatterns {
		if regex, err := regexp.Compile(pattern); err == nil {
			d.patterns = append(d.patterns, regex)
		}
	}

	return d
}

// DesensitizeFields processes log fields and masks sensitive data
func (d *Desensitizer) DesensitizeFields(fields logrus.Fields) logrus.Fields {
	if !d.config.Enabled || len(fields) == 0 {
		return fields
	}

	result := make(logrus.Fields, len(fields))
	for key, value := range fields {
		result[key] = d.desensitizeValue(key, value, 0)
	}
	return result
}

// desensitizeValue masks value when key is sensitive, recursing into maps.
func (d *Desensitizer) desensitizeValue(key string, value any, depth int) any {
	if value == nil || depth > 8 {
		return value
	}

	if d.isSensitiveField(key) {
		return d.mask
	}

	switch v := value.(type) {
	case string:
		return d.desensitizeString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = d.desensitizeValue(k, val, depth+1)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, val := range v {
			if d.isSensitiveField(k) {
				out[k] = d.mask
			} else {
				out[k] = d.desensitizeString(val)
			}
		}
		return out
	default:
		return value
	}
}

// isSensitiveField checks if field name contains sensitive keywords
func (d *Desensitizer) isSensitiveField(fieldName string) bool {
	if fieldName == "" {
		return false
	}

	lowerName := strings.ToLower(fieldName)
	for _, sensitiveField := range d.config.SensitiveFields {
		if strings.Contains(lowerName, strings.ToLower(sensitiveField)) {
			return true
		}
	}
	return false
}

// desensitizeString applies pattern-based desensitization to strings
func (d *Desensitizer) desensitizeString(str string) string {
	if str == "" {
		return str
	}

	result := str
	for _, pattern := range d.patterns {
		result = pattern.ReplaceAllString(result, d.mask)
	}
	return result
}
