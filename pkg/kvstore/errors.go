package kvstore

import "github.com/nitrited/nitrite/pkg/nitriteerr"

func errClosed(name string) error {
	return nitriteerr.Closed("map " + name + " is closed")
}
