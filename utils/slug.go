// utils/slug.go
package utils

import (
	"fmt"

	"github.com/gosimple/slug"
)

// UniqueSlug slugifies title and appends -2, -3... until taken reports false.
func UniqueSlug(title string, taken func(candidate string) (bool, error)) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "item"
	}
	candidate := base
	for n := 2; ; n++ {
		exists, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}
