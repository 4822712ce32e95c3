// Package domain defines the errors of the analysis feature.
package domain

import "errors"

// ErrAnalyzer means the LLM call failed or returned nothing.
var ErrAnalyzer = errors.New("analyzer failed")

// ErrInvalidQuestion is returned for a question that is too long.
var ErrInvalidQuestion = errors.New("invalid question")
