// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package pointers helps with the nullable string fields of profiles
package pointers

import "strings"

// SafeString returns the value from ptr or "" if the pointer is nil
func SafeString(ptr *string) string {
	if ptr != nil {
		return *ptr
	}
	return ""
}

// StringPtr returns a pointer to the string passed as parameter
func StringPtr(str string) *string {
	return &str
}

// OptionalString returns a pointer to the trimmed str, or nil if nothing remains
func OptionalString(str string) *string {
	str = strings.TrimSpace(str)
	if str == "" {
		return nil
	}
	return &str
}

// Value returns the string ptr points to as a database or JSON value, nil for a nil pointer
func Value(ptr *string) interface{} {
	if ptr == nil {
		return nil
	}
	return *ptr
}
