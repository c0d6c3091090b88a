package collection

import "github.com/nitrited/nitrite/pkg/nitriteerr"

func errInvalidName(msg string) error { return nitriteerr.InvalidFieldName(msg) }
