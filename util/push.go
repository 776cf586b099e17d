// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package util

func Push[T any](slice *[]T, thing T) {
	*slice = append(*slice, thing)
}

func PushSlice[T any](slice *[]T, things []T) {
	*slice = append(*slice, things...)
}
